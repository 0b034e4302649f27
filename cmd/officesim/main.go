package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"officesim/internal/app"
	"officesim/internal/config"
	"officesim/internal/db"
	"officesim/internal/logger"
	"officesim/internal/migrate"
	"officesim/internal/repo"
)

var rootCmd = &cobra.Command{
	Use:   "officesim",
	Short: "Office simulator CLI",
	Long: `officesim runs a minute-by-minute simulation of an office floor.
- Workspace: the directory holding officesim.yml and the .officesim journal database.
- Workers: staff with a role, a personality and a mood; one security guard patrols at night.
- Tasks: work items with a duration and a success rate; failures can leave a mess that spawns cleanup work.
- Scenarios: data files under scenarios.dir that add tasks when their requirements hold.
- Journal: every assignment, completion, failure and activation, view with 'officesim log tail'.`,
	SilenceUsage: true,
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Println("error:", err)
		stop()
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("OFFICESIM")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().Uint64("seed", 0, "random seed (overrides config)")
	rootCmd.PersistentFlags().Int("workers", 0, "regular worker count (overrides config)")
	rootCmd.PersistentFlags().String("log-level", "", "debug, info, warn or error (overrides config)")
	rootCmd.PersistentFlags().Bool("no-journal", false, "do not write the event journal")
	for _, name := range []string{"workspace", "json", "seed", "workers", "log-level", "no-journal"} {
		_ = viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name))
	}
	_ = viper.BindEnv("jwt-secret")
}

func registerCommands() {
	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(layoutCmd())
	rootCmd.AddCommand(scenarioCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(tokenCmd())
}

// --- helpers ---

// loadConfig reads officesim.yml, falling back to defaults, and applies
// flag and environment overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadOptional(viper.GetString("workspace"))
	if err != nil {
		return nil, err
	}
	if viper.IsSet("seed") {
		cfg.Simulation.Seed = viper.GetUint64("seed")
	}
	if viper.IsSet("workers") {
		cfg.Simulation.Workers = viper.GetInt("workers")
	}
	if lvl := viper.GetString("log-level"); lvl != "" {
		cfg.Logging.Level = lvl
	}
	if viper.GetBool("no-journal") {
		cfg.Journal.Enabled = false
	}
	if secret := viper.GetString("jwt-secret"); secret != "" {
		cfg.Server.JWTSecret = secret
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// session bundles what most commands need: config, logger and, when the
// journal is on, an open migrated database.
type session struct {
	cfg  *config.Config
	log  *slog.Logger
	conn *sql.DB
}

func (s *session) Close() {
	if s.conn != nil {
		s.conn.Close()
	}
}

func (s *session) repo() *repo.Repo {
	if s.conn == nil {
		return nil
	}
	return &repo.Repo{DB: s.conn}
}

func openSession(ctx context.Context, journal bool) (*session, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	s := &session{cfg: cfg, log: logger.New(cfg.Logging)}
	if !journal || !cfg.Journal.Enabled {
		return s, nil
	}
	conn, err := openJournal(ctx)
	if err != nil {
		return nil, err
	}
	s.conn = conn
	return s, nil
}

func openJournal(ctx context.Context) (*sql.DB, error) {
	workspace := viper.GetString("workspace")
	if _, err := db.EnsureWorkspace(workspace); err != nil {
		return nil, err
	}
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return nil, err
	}
	if err := migrate.MigrateContext(ctx, conn); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

func withRepo(ctx context.Context, fn func(context.Context, repo.Repo) error) error {
	conn, err := openJournal(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()
	return fn(ctx, repo.Repo{DB: conn})
}

func buildRunner(ctx context.Context, s *session, label string) (*app.Runner, error) {
	reg, err := app.LoadRegistry(s.cfg, s.log)
	if err != nil {
		return nil, err
	}
	return app.Build(ctx, app.Options{
		Config:   s.cfg,
		Registry: reg,
		Logger:   s.log,
		DB:       s.conn,
		Label:    label,
	})
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTable() table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	return tw
}
