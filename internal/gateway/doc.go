// ABOUTME: Package documentation for the gateway package
// ABOUTME: Describes the HTTP surface and policy evaluation

// Package gateway implements the HTTP front end of the key-value service.
//
// The gateway exposes a small JSON API:
//
//   - GET /ping responds "pong" without touching the database
//   - POST /login exchanges credentials for a session cookie
//   - POST /create_kv registers a new key-value table
//   - GET/POST/DELETE /kv/{table}/{key} read, write, and delete items
//
// Every /kv and /create_kv request passes through session middleware that
// resolves the sid cookie into an identity, then through Policy.Can, which
// decides access in a fixed order: admins are always allowed, an explicit
// per-user grant decides next (including explicit denial), guest flags on
// the table decide for everyone else, and an unknown table denies.
package gateway
