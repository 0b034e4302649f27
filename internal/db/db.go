package db

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const (
	// StateDir holds the journal inside a workspace.
	StateDir    = ".officesim"
	journalFile = "officesim.db"

	defaultBusyTimeout = 5 * time.Second
)

// Config locates the journal. BusyTimeout defaults to 5s.
type Config struct {
	Workspace   string
	BusyTimeout time.Duration
}

func (c Config) workspace() string {
	if c.Workspace == "" {
		return "."
	}
	return c.Workspace
}

// dsn enables foreign keys and WAL so the API can read the journal while a
// run appends to it.
func (c Config) dsn() string {
	timeout := c.BusyTimeout
	if timeout <= 0 {
		timeout = defaultBusyTimeout
	}
	q := url.Values{}
	q.Add("_pragma", "foreign_keys(1)")
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", timeout.Milliseconds()))
	return "file:" + Path(c.workspace()) + "?" + q.Encode()
}

// EnsureWorkspace creates <workspace>/.officesim and returns its path.
func EnsureWorkspace(workspace string) (string, error) {
	dir := filepath.Join(Config{Workspace: workspace}.workspace(), StateDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create state dir: %w", err)
	}
	return dir, nil
}

// Open opens the journal of cfg.Workspace, creating the state dir first.
// Writes go through one connection.
func Open(cfg Config) (*sql.DB, error) {
	if _, err := EnsureWorkspace(cfg.Workspace); err != nil {
		return nil, err
	}
	conn, err := sql.Open("sqlite", cfg.dsn())
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	conn.SetMaxOpenConns(1)
	return conn, nil
}

// Path is the journal file of workspace.
func Path(workspace string) string {
	return filepath.Join(Config{Workspace: workspace}.workspace(), StateDir, journalFile)
}
