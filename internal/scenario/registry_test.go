package scenario

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func TestLoadScenariosFromTree(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "random", "rain_leak.json"), `{
  "name": "Roof leak",
  "probability": 0.3,
  "requirements": {"weather": ["rain"]},
  "tasks": [{"name": "Place buckets", "duration": 20}]
}`)
	writeFile(t, filepath.Join(dir, "audit.yml"), `
id: audit
name: Quarterly audit
requirements:
  time_start: "09:00"
  time_end: "11:00"
  weekdays: [0]
tasks:
  - reference_task: review
    assignees: [worker-1]
`)
	writeFile(t, filepath.Join(dir, "broken.json"), `{"id": `)
	writeFile(t, filepath.Join(dir, "notes.txt"), "ignored")

	reg := NewRegistry(quietLogger())
	n, err := reg.LoadScenarios(dir)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	leak, ok := reg.Get("rain_leak")
	require.True(t, ok, "id defaults to file name")
	assert.Equal(t, TypeRandom, leak.Type)
	assert.Equal(t, 0.3, leak.ActivationProbability())

	audit, ok := reg.Get("audit")
	require.True(t, ok)
	assert.Equal(t, TypeGeneral, audit.Type)
	require.Len(t, audit.Tasks, 1)
	assert.Equal(t, []string{"worker-1"}, audit.Tasks[0].Assignees)

	assert.Len(t, reg.ByType(TypeRandom), 1)
	assert.Len(t, reg.All(), 2)
}

func TestLoadScenariosMissingDir(t *testing.T) {
	reg := NewRegistry(quietLogger())
	n, err := reg.LoadScenarios(filepath.Join(t.TempDir(), "nope"))
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, reg.Len())
}

func TestEvaluate(t *testing.T) {
	reg := NewRegistry(quietLogger())
	require.NoError(t, reg.Add(Scenario{ID: "storm", Requirements: &Requirements{Weather: []string{"rain"}}}))

	assert.True(t, reg.Evaluate("storm", Conditions{Weather: "rain"}))
	assert.False(t, reg.Evaluate("storm", Conditions{Weather: "sunny"}))
	assert.False(t, reg.Evaluate("missing", Conditions{Weather: "rain"}))
}

func TestTemplatesAndResolve(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "review.yml"), `
name: Review documents
description: Review important project documents
duration: 60
success_rate: 0.8
`)
	reg := NewRegistry(quietLogger())
	n, err := reg.LoadTemplates(dir)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got := reg.Resolve(TaskSpec{ReferenceTask: "review", Duration: ptr(10)})
	require.NotNil(t, got.Name)
	assert.Equal(t, "Review documents", *got.Name)
	assert.Equal(t, 10, *got.Duration)
	assert.Equal(t, 0.8, *got.SuccessRate)

	missing := reg.Resolve(TaskSpec{ReferenceTask: "nope"})
	assert.Nil(t, missing.Name)
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	reg := NewRegistry(quietLogger())
	sc := Scenario{
		ID:          "fire_drill",
		Type:        TypeRandom,
		Probability: ptr(0.2),
		Tasks:       []TaskSpec{{Name: ptr("Evacuate"), RandomAssignees: ptr(3)}},
	}
	require.NoError(t, reg.Save(dir, sc))
	assert.FileExists(t, filepath.Join(dir, TypeRandom, "fire_drill.yml"))

	fresh := NewRegistry(quietLogger())
	n, err := fresh.LoadScenarios(dir)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	got, ok := fresh.Get("fire_drill")
	require.True(t, ok)
	assert.Equal(t, TypeRandom, got.Type)
	assert.Equal(t, 3, *got.Tasks[0].RandomAssignees)
}
