// ABOUTME: Admin CLI for tablekv user and permission management
// ABOUTME: Operates directly on the SQLite database, bypassing the HTTP API

package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"

	"github.com/tablekv/tablekv/internal/auth"
	"github.com/tablekv/tablekv/internal/config"
	"github.com/tablekv/tablekv/internal/store"
)

const banner = `
 _        _     _      _                        _           _
| |_ __ _| |__ | | ___| | ____   __      __ _  __| |_ __ ___ (_)_ __
| __/ _' | '_ \| |/ _ \ |/ /\ \ / /____ / _' |/ _' | '_ ' _ \| | '_ \
| || (_| | |_) | |  __/   <  \ V /_____| (_| | (_| | | | | | | | | | |
 \__\__,_|_.__/|_|\___|_|\_\  \_/       \__,_|\__,_|_| |_| |_|_|_| |_|
`

// auditActor is recorded on every mutation made through this CLI.
const auditActor = "cli"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	if cmd == "help" || cmd == "-h" || cmd == "--help" {
		printUsage()
		return
	}

	s, err := openStore()
	if err != nil {
		color.Red("Error: %v\n", err)
		os.Exit(1)
	}
	defer s.Close()

	ctx := context.Background()

	switch cmd {
	case "users":
		err = cmdUsers(ctx, s, args)
	case "admin":
		err = cmdAdmin(ctx, s, args)
	case "grant":
		err = cmdGrant(ctx, s, args)
	case "tables":
		err = cmdTables(ctx, s)
	case "audit":
		err = cmdAudit(ctx, s, args)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		color.Red("Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	cyan := color.New(color.FgCyan)
	yellow := color.New(color.FgYellow)

	cyan.Print(banner)
	fmt.Println()
	fmt.Println("Usage: tablekv-admin <command> [args]")
	fmt.Println()
	yellow.Println("Commands:")
	fmt.Println("  users                              List all users")
	fmt.Println("  users list                         List all users")
	fmt.Println("  users create <username> [password] Create a user (prompts if omitted)")
	fmt.Println("  users delete <username>            Delete a user and their grants")
	fmt.Println("  admin <username> [--remove]        Grant or revoke admin status")
	fmt.Println("  grant <username> <table>... [flags]")
	fmt.Println("                                     Grant table access (default read+write)")
	fmt.Println("      --no-read                      Grant without read access")
	fmt.Println("      --no-write                     Grant without write access")
	fmt.Println("      --remove                       Remove the grant instead")
	fmt.Println("  tables                             List registered tables")
	fmt.Println("  audit [limit]                      Show recent audit entries")
	fmt.Println()
	yellow.Println("Environment:")
	fmt.Println("  TABLEKV_CONFIG       Config file path (default: ~/.config/tablekv/server.yaml)")
	fmt.Println("  TABLEKV_DB           Database path (overrides the config file)")
	fmt.Println()
}

// openStore resolves the database path and opens it. TABLEKV_DB wins over
// the config file so the CLI works on a copied database without a config.
func openStore() (*store.SQLiteStore, error) {
	if dbPath := os.Getenv("TABLEKV_DB"); dbPath != "" {
		return store.NewSQLiteStore(dbPath)
	}

	configPath := os.Getenv("TABLEKV_CONFIG")
	if configPath == "" {
		configDir := os.Getenv("XDG_CONFIG_HOME")
		if configDir == "" {
			homeDir, err := os.UserHomeDir()
			if err != nil {
				return nil, fmt.Errorf("resolving home directory: %w", err)
			}
			configDir = filepath.Join(homeDir, ".config")
		}
		configPath = filepath.Join(configDir, "tablekv", "server.yaml")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	return store.NewSQLiteStore(cfg.Database.Path)
}

// cmdUsers handles users subcommands
func cmdUsers(ctx context.Context, s *store.SQLiteStore, args []string) error {
	// Default to list
	subcmd := "list"
	if len(args) > 0 {
		subcmd = args[0]
		args = args[1:]
	}

	switch subcmd {
	case "list", "ls":
		return cmdUsersList(ctx, s)
	case "create", "add":
		return cmdUsersCreate(ctx, s, args)
	case "delete", "rm", "remove":
		return cmdUsersDelete(ctx, s, args)
	default:
		return fmt.Errorf("unknown users subcommand: %s (use list, create, delete)", subcmd)
	}
}

func cmdUsersList(ctx context.Context, s *store.SQLiteStore) error {
	users, err := s.ListUsers(ctx)
	if err != nil {
		return fmt.Errorf("listing users: %w", err)
	}

	cyan := color.New(color.FgCyan)
	fmt.Println()
	cyan.Println("  Users")
	cyan.Println("  -----")

	if len(users) == 0 {
		fmt.Println("  (no users)")
		fmt.Println()
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  UID\tUSERNAME\tADMIN\tCREATED")
	fmt.Fprintln(w, "  ---\t--------\t-----\t-------")

	for _, u := range users {
		admin := ""
		if u.IsAdmin {
			admin = "yes"
		}
		fmt.Fprintf(w, "  %d\t%s\t%s\t%s\n", u.ID, u.Username, admin, u.CreatedAt.Format("Jan 02 15:04"))
	}
	w.Flush()
	fmt.Println()

	return nil
}

func cmdUsersCreate(ctx context.Context, s *store.SQLiteStore, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: tablekv-admin users create <username> [password]")
	}
	username := args[0]

	var password string
	if len(args) > 1 {
		password = args[1]
	} else {
		var err error
		password, err = promptPassword(fmt.Sprintf("Password for %s", username))
		if err != nil {
			return err
		}
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}

	user := &store.User{
		Username:     username,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.CreateUser(ctx, user); err != nil {
		return fmt.Errorf("creating user: %w", err)
	}

	if err := s.AppendAudit(ctx, &store.AuditEntry{
		Actor:  auditActor,
		Action: store.AuditCreateUser,
		Target: username,
	}); err != nil {
		return fmt.Errorf("recording audit entry: %w", err)
	}

	green := color.New(color.FgGreen)
	green.Printf("  ✓ Created user: %s (uid %d)\n", username, user.ID)
	return nil
}

func cmdUsersDelete(ctx context.Context, s *store.SQLiteStore, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: tablekv-admin users delete <username>")
	}
	username := args[0]

	user, err := s.GetUserByUsername(ctx, username)
	if err != nil {
		return fmt.Errorf("looking up user: %w", err)
	}

	// Grants and sessions go with the user via ON DELETE CASCADE.
	if err := s.DeleteUser(ctx, user.ID); err != nil {
		return fmt.Errorf("deleting user: %w", err)
	}

	if err := s.AppendAudit(ctx, &store.AuditEntry{
		Actor:  auditActor,
		Action: store.AuditDeleteUser,
		Target: username,
	}); err != nil {
		return fmt.Errorf("recording audit entry: %w", err)
	}

	green := color.New(color.FgGreen)
	green.Printf("  ✓ Deleted user: %s\n", username)
	return nil
}

// cmdAdmin grants or revokes admin status for a user
func cmdAdmin(ctx context.Context, s *store.SQLiteStore, args []string) error {
	var username string
	remove := false
	for _, arg := range args {
		switch {
		case arg == "--remove":
			remove = true
		case strings.HasPrefix(arg, "-"):
			return fmt.Errorf("unknown flag: %s", arg)
		case username == "":
			username = arg
		default:
			return fmt.Errorf("unexpected argument: %s", arg)
		}
	}
	if username == "" {
		return fmt.Errorf("usage: tablekv-admin admin <username> [--remove]")
	}

	user, err := s.GetUserByUsername(ctx, username)
	if err != nil {
		return fmt.Errorf("looking up user: %w", err)
	}

	if err := s.SetAdmin(ctx, user.ID, !remove); err != nil {
		return fmt.Errorf("updating admin status: %w", err)
	}

	if err := s.AppendAudit(ctx, &store.AuditEntry{
		Actor:      auditActor,
		Action:     store.AuditSetAdmin,
		Target:     username,
		DetailJSON: fmt.Sprintf(`{"is_admin":%t}`, !remove),
	}); err != nil {
		return fmt.Errorf("recording audit entry: %w", err)
	}

	green := color.New(color.FgGreen)
	if remove {
		green.Printf("  ✓ Revoked admin: %s\n", username)
	} else {
		green.Printf("  ✓ Granted admin: %s\n", username)
	}
	return nil
}

// cmdGrant manages per-table grants. Multiple tables can be named in one
// invocation; each gets the same flags applied.
func cmdGrant(ctx context.Context, s *store.SQLiteStore, args []string) error {
	var username string
	var tables []string
	remove := false
	canRead := true
	canWrite := true

	for _, arg := range args {
		switch {
		case arg == "--remove":
			remove = true
		case arg == "--no-read":
			canRead = false
		case arg == "--no-write":
			canWrite = false
		case strings.HasPrefix(arg, "-"):
			return fmt.Errorf("unknown flag: %s", arg)
		case username == "":
			username = arg
		default:
			tables = append(tables, arg)
		}
	}
	if username == "" || len(tables) == 0 {
		return fmt.Errorf("usage: tablekv-admin grant <username> <table>... [--remove] [--no-read] [--no-write]")
	}

	user, err := s.GetUserByUsername(ctx, username)
	if err != nil {
		return fmt.Errorf("looking up user: %w", err)
	}

	green := color.New(color.FgGreen)
	for _, table := range tables {
		if _, err := s.GetTable(ctx, table); err != nil {
			return fmt.Errorf("looking up table %s: %w", table, err)
		}

		if remove {
			if err := s.DeletePermission(ctx, user.ID, table); err != nil {
				return fmt.Errorf("removing grant on %s: %w", table, err)
			}
			if err := s.AppendAudit(ctx, &store.AuditEntry{
				Actor:      auditActor,
				Action:     store.AuditRevoke,
				Target:     username,
				DetailJSON: fmt.Sprintf(`{"table":%q}`, table),
			}); err != nil {
				return fmt.Errorf("recording audit entry: %w", err)
			}
			green.Printf("  ✓ Removed grant: %s on %s\n", username, table)
			continue
		}

		perm := &store.Permission{
			UserID:    user.ID,
			TableName: table,
			CanRead:   canRead,
			CanWrite:  canWrite,
		}
		if err := s.UpsertPermission(ctx, perm); err != nil {
			return fmt.Errorf("granting on %s: %w", table, err)
		}
		if err := s.AppendAudit(ctx, &store.AuditEntry{
			Actor:      auditActor,
			Action:     store.AuditGrant,
			Target:     username,
			DetailJSON: fmt.Sprintf(`{"table":%q,"read":%t,"write":%t}`, table, canRead, canWrite),
		}); err != nil {
			return fmt.Errorf("recording audit entry: %w", err)
		}
		green.Printf("  ✓ Granted: %s on %s (read=%t write=%t)\n", username, table, canRead, canWrite)
	}

	return nil
}

func cmdTables(ctx context.Context, s *store.SQLiteStore) error {
	tables, err := s.ListTables(ctx)
	if err != nil {
		return fmt.Errorf("listing tables: %w", err)
	}

	cyan := color.New(color.FgCyan)
	fmt.Println()
	cyan.Println("  Tables")
	cyan.Println("  ------")

	if len(tables) == 0 {
		fmt.Println("  (no tables)")
		fmt.Println()
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  NAME\tGUEST READ\tGUEST WRITE\tCREATED BY\tCREATED")
	fmt.Fprintln(w, "  ----\t----------\t-----------\t----------\t-------")

	for _, t := range tables {
		creator := strconv.FormatInt(t.CreatedBy, 10)
		if u, err := s.GetUser(ctx, t.CreatedBy); err == nil {
			creator = u.Username
		}
		fmt.Fprintf(w, "  %s\t%t\t%t\t%s\t%s\n",
			t.Name, t.AllowGuestRead, t.AllowGuestWrite, creator, t.CreatedAt.Format("Jan 02 15:04"))
	}
	w.Flush()
	fmt.Println()

	return nil
}

func cmdAudit(ctx context.Context, s *store.SQLiteStore, args []string) error {
	limit := 0
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid limit: %s", args[0])
		}
		limit = n
	}

	entries, err := s.ListAudit(ctx, limit)
	if err != nil {
		return fmt.Errorf("listing audit entries: %w", err)
	}

	cyan := color.New(color.FgCyan)
	fmt.Println()
	cyan.Println("  Audit Log")
	cyan.Println("  ---------")

	if len(entries) == 0 {
		fmt.Println("  (no entries)")
		fmt.Println()
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  TIME\tACTOR\tACTION\tTARGET\tDETAIL")
	fmt.Fprintln(w, "  ----\t-----\t------\t------\t------")

	for _, e := range entries {
		fmt.Fprintf(w, "  %s\t%s\t%s\t%s\t%s\n",
			e.Timestamp.Format("Jan 02 15:04"), e.Actor, e.Action, e.Target, e.DetailJSON)
	}
	w.Flush()
	fmt.Println()

	return nil
}

func promptPassword(question string) (string, error) {
	fmt.Printf("%s: ", question)
	reader := bufio.NewReader(os.Stdin)
	input, err := reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}

	password := strings.TrimRight(input, "\r\n")
	if len(password) < auth.MinPasswordLength {
		return "", fmt.Errorf("password must be at least %d characters", auth.MinPasswordLength)
	}
	return password, nil
}
