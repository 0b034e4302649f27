package migrate_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"officesim/internal/db"
	"officesim/internal/migrate"
)

func TestMigrateIdempotent(t *testing.T) {
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	defer conn.Close()
	ctx := context.Background()

	v, err := migrate.Version(ctx, conn)
	require.NoError(t, err)
	require.Zero(t, v)

	require.NoError(t, migrate.Migrate(conn))
	require.NoError(t, migrate.Migrate(conn))

	latest, err := migrate.Latest()
	require.NoError(t, err)
	v, err = migrate.Version(ctx, conn)
	require.NoError(t, err)
	require.Equal(t, latest, v)

	_, err = conn.Exec(`INSERT INTO runs(id,seed,workers,started_at,label) VALUES ('r1',1,2,'2024-01-01T00:00:00Z','demo')`)
	require.NoError(t, err)
}
