package cli

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/tenantgate/pkg/storage/postgres"
)

// Command represents a CLI command
type Command struct {
	Name        string
	Description string
	Run         func(ctx context.Context, args []string) error
	Subcommands map[string]*Command
	Flags       *flag.FlagSet
}

// Env carries the process dependencies commands run against
type Env struct {
	Out    io.Writer
	Logger *logrus.Logger
	// OpenDB connects to PostgreSQL
	OpenDB func(ctx context.Context, url string) (*sql.DB, error)
}

// DefaultEnv writes to stdout, logs to stderr and connects with lib/pq
func DefaultEnv(logLevel string) *Env {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	return &Env{
		Out:    os.Stdout,
		Logger: logger,
		OpenDB: func(ctx context.Context, url string) (*sql.DB, error) {
			return postgres.Open(ctx, url, postgres.ConnectionConfig{MaxConns: 2})
		},
	}
}

// NewRootCommand creates the root command
func NewRootCommand(env *Env) *Command {
	root := &Command{
		Name:        "tenantgate-admin",
		Description: "Tenantgate operator CLI",
		Subcommands: make(map[string]*Command),
		Flags:       flag.NewFlagSet("tenantgate-admin", flag.ContinueOnError),
	}
	root.Flags.SetOutput(env.Out)

	root.Subcommands["migrate"] = newMigrateCommand(env)
	root.Subcommands["create-activation-code"] = newCreateActivationCodeCommand(env)
	root.Subcommands["show-subscription"] = newShowSubscriptionCommand(env)
	root.Subcommands["set-role"] = newSetRoleCommand(env)

	return root
}

// Execute runs the subcommand named by args[0]
func (c *Command) Execute(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return c.usage()
	}

	if args[0] == "-h" || args[0] == "--help" {
		return c.usage()
	}

	if subcmd, ok := c.Subcommands[args[0]]; ok {
		return subcmd.Run(ctx, args[1:])
	}

	return fmt.Errorf("unknown command: %s", args[0])
}

// usage prints the command usage
func (c *Command) usage() error {
	out := c.Flags.Output()
	fmt.Fprintf(out, "Usage: %s <command> [args]\n\n", c.Name)
	fmt.Fprintf(out, "Commands:\n")

	names := make([]string, 0, len(c.Subcommands))
	for name := range c.Subcommands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(out, "  %-24s %s\n", name, c.Subcommands[name].Description)
	}
	return nil
}

func newFlagSet(env *Env, name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(env.Out)
	return fs
}

// dbFlag registers the shared --db flag
func dbFlag(fs *flag.FlagSet) *string {
	return fs.String("db", os.Getenv("TENANTGATE_POSTGRES_URL"), "PostgreSQL connection URL")
}

// openDB connects using the --db flag value
func (e *Env) openDB(ctx context.Context, url string) (*sql.DB, error) {
	if url == "" {
		return nil, fmt.Errorf("--db or TENANTGATE_POSTGRES_URL is required")
	}
	db, err := e.OpenDB(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}
