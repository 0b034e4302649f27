package db

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenCreatesJournal(t *testing.T) {
	ws := t.TempDir()
	conn, err := Open(Config{Workspace: ws})
	require.NoError(t, err)
	defer conn.Close()

	var mode string
	require.NoError(t, conn.QueryRowContext(context.Background(), "PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)
	var fk int
	require.NoError(t, conn.QueryRowContext(context.Background(), "PRAGMA foreign_keys").Scan(&fk))
	assert.Equal(t, 1, fk)

	_, err = os.Stat(Path(ws))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(ws, StateDir, "officesim.db"), Path(ws))
}

func TestPathDefaultsToCurrentDir(t *testing.T) {
	assert.Equal(t, filepath.Join(".", StateDir, "officesim.db"), Path(""))
}
