// Package config loads tablekv configuration from YAML.
//
// A minimal config file:
//
//	server:
//	  http_addr: ":8080"
//	database:
//	  path: /var/lib/tablekv/tablekv.db
//	auth:
//	  session_duration: 24h
//	logging:
//	  level: info
//	  format: text
//
// Values support ${ENV_VAR} expansion before parsing, so secrets and
// machine-specific paths can stay out of the file:
//
//	database:
//	  path: ${TABLEKV_DB_PATH}
//
// Durations use Go syntax ("24h", "90m"). An unset session_duration falls
// back to 24 hours. Load validates that the
// server address and database path are present and returns a descriptive
// error naming the first failing field.
package config
