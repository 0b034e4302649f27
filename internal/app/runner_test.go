package app_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"officesim/internal/app"
	"officesim/internal/config"
	"officesim/internal/db"
	"officesim/internal/domain"
	"officesim/internal/logger"
	"officesim/internal/migrate"
	"officesim/internal/office"
	"officesim/internal/repo"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.FromYAML([]byte(`
simulation:
  seed: 17
  workers: 5
weather:
  fixed: rain
`))
	require.NoError(t, err)
	return cfg
}

func TestBuildWithoutJournal(t *testing.T) {
	r, err := app.Build(context.Background(), app.Options{Config: testConfig(t), Logger: logger.Discard()})
	require.NoError(t, err)

	snap := r.Snapshot()
	assert.Len(t, snap.Workers, 6)
	assert.Equal(t, "rain", snap.Weather)
	assert.Equal(t, 20, snap.PoolSize)

	var got []domain.TickSummary
	r.OnTick(func(s domain.TickSummary) { got = append(got, s) })
	last, err := r.Advance(context.Background(), 3, 10)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "Day 1 - 08:30", last.Clock)

	_, err = r.Step(context.Background(), 0)
	require.Error(t, err)
}

func TestJournalRecordsEvents(t *testing.T) {
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, migrate.Migrate(conn))

	r, err := app.Build(context.Background(), app.Options{Config: testConfig(t), Logger: logger.Discard(), DB: conn, Label: "test"})
	require.NoError(t, err)

	var mu sync.Mutex
	var forwarded int
	r.OnEvents(func(evts []domain.Event) {
		mu.Lock()
		forwarded += len(evts)
		mu.Unlock()
	})
	_, err = r.Step(context.Background(), 1)
	require.NoError(t, err)

	rp := repo.Repo{DB: conn}
	run, err := rp.GetRun(context.Background(), r.RunInfo().ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(17), run.Seed)
	assert.Equal(t, "test", run.Label)

	counts, err := rp.CountEventsByType(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Positive(t, counts["task.assigned"])
	mu.Lock()
	assert.Positive(t, forwarded)
	mu.Unlock()
}

func TestActivateUnknown(t *testing.T) {
	r, err := app.Build(context.Background(), app.Options{Config: testConfig(t), Logger: logger.Discard()})
	require.NoError(t, err)
	_, err = r.Activate(context.Background(), "missing", false)
	require.True(t, errors.Is(err, office.ErrUnknownScenario))
}

func TestLoadRegistry(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(t)
	cfg.Scenarios.Dir = filepath.Join(dir, "scenarios")
	cfg.Scenarios.TemplatesDir = filepath.Join(dir, "tasks")
	require.NoError(t, os.MkdirAll(filepath.Join(cfg.Scenarios.Dir, "random"), 0o755))
	require.NoError(t, os.MkdirAll(cfg.Scenarios.TemplatesDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.Scenarios.Dir, "random", "leak.json"),
		[]byte(`{"probability": 1, "tasks": [{"reference_task": "mop"}]}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.Scenarios.TemplatesDir, "mop.json"),
		[]byte(`{"name": "Mop floor", "duration": 10, "success_rate": 0.9}`), 0o644))

	reg, err := app.LoadRegistry(cfg, logger.Discard())
	require.NoError(t, err)
	require.Equal(t, 1, reg.Len())

	r, err := app.Build(context.Background(), app.Options{Config: cfg, Registry: reg, Logger: logger.Discard()})
	require.NoError(t, err)
	ids, err := r.Activate(context.Background(), "leak", false)
	require.NoError(t, err)
	require.Len(t, ids, 1)

	var name string
	r.View(func(s *office.Simulation) {
		task, ok := s.Task(ids[0])
		require.True(t, ok)
		name = task.Name
	})
	assert.Equal(t, "Mop floor", name)
}

func TestActivateChecksRequirements(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(t)
	cfg.Scenarios.Dir = dir
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "general"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "general", "picnic.yml"),
		[]byte("requirements:\n  weather: [sunny]\ntasks:\n  - name: Carry the blankets\n    duration: 15\n"), 0o644))
	reg, err := app.LoadRegistry(cfg, logger.Discard())
	require.NoError(t, err)
	r, err := app.Build(context.Background(), app.Options{Config: cfg, Registry: reg, Logger: logger.Discard()})
	require.NoError(t, err)

	before := len(r.Snapshot().Tasks)
	ids, err := r.Activate(context.Background(), "picnic", false)
	require.True(t, errors.Is(err, office.ErrRequirementsUnmet))
	assert.Empty(t, ids)
	assert.Len(t, r.Snapshot().Tasks, before)

	ids, err = r.Activate(context.Background(), "picnic", true)
	require.NoError(t, err)
	require.Len(t, ids, 1)
	assert.Len(t, r.Snapshot().Tasks, before+1)
}
