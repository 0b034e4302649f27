package office

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdjustedSuccessRateClamped(t *testing.T) {
	cases := []struct {
		name string
		base float64
		p    Personality
		want float64
	}{
		{"diligent floor", 0.0, Diligent, 0.10},
		{"lazy from one", 1.0, Lazy, 0.90},
		{"diligent ceiling", 1.0, Diligent, 0.95},
		{"lazy floor", 0.05, Lazy, 0.10},
		{"social unchanged", 0.5, Social, 0.5},
		{"chaotic ceiling", 0.99, Chaotic, 0.95},
		{"diligent bump", 0.8, Diligent, 0.9},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			task := NewTask("t", TaskTemplate{Name: "x", Duration: 10, SuccessRate: tc.base})
			require.True(t, newWorker("w", tc.p, RoleJunior).AssignTask(task))
			got := task.AdjustedSuccessRate()
			assert.InDelta(t, tc.want, got, 1e-9)
			assert.GreaterOrEqual(t, got, minSuccessRate)
			assert.LessOrEqual(t, got, maxSuccessRate)
		})
	}
}

func TestAdjustedSuccessRateUnassigned(t *testing.T) {
	task := NewTask("t", TaskTemplate{Duration: 10, SuccessRate: 1.0})
	assert.Equal(t, 1.0, task.AdjustedSuccessRate())
}

func TestAdvanceDrawsExactlyOnce(t *testing.T) {
	rng := newForcedRand(0.99)
	task := NewTask("t", TaskTemplate{Duration: 10, SuccessRate: 0.8})

	assert.False(t, task.Advance(5, rng), "pending tasks do not progress")
	assert.Zero(t, task.Progress)

	require.True(t, newWorker("w", Social, RoleJunior).AssignTask(task))
	assert.False(t, task.Advance(5, rng))
	assert.Equal(t, StatusInProgress, task.Status)
	assert.Zero(t, rng.draws)

	assert.True(t, task.Advance(7, rng))
	assert.Equal(t, StatusFailed, task.Status)
	assert.Equal(t, 12, task.Progress)
	assert.Equal(t, 1, rng.draws)

	rng.f = 0
	assert.False(t, task.Advance(30, rng))
	assert.Equal(t, StatusFailed, task.Status, "settled status is never redrawn")
	assert.Equal(t, 12, task.Progress)
	assert.Equal(t, 1, rng.draws)
}

func TestAdvanceCompletes(t *testing.T) {
	task := NewTask("t", TaskTemplate{Duration: 5, SuccessRate: 0.5})
	require.True(t, newWorker("w", Introvert, RoleJunior).AssignTask(task))
	require.True(t, task.Advance(5, newForcedRand(0.2)))
	assert.Equal(t, StatusCompleted, task.Status)
	assert.True(t, task.Finished())
}

func TestCanBeAssignedTo(t *testing.T) {
	review := NewTask("t", TaskTemplate{Duration: 60, SuccessRate: 0.7, RequiredRole: RoleSenior})
	assert.True(t, review.CanBeAssignedTo(newWorker("a", Social, RoleSenior)))
	assert.False(t, review.CanBeAssignedTo(newWorker("b", Social, RoleIntern)))

	open := NewTask("o", TaskTemplate{Duration: 5})
	assert.True(t, open.CanBeAssignedTo(newWorker("c", Social, RoleSecurity)))
}

func TestReset(t *testing.T) {
	task := NewTask("t", TaskTemplate{Duration: 10, SuccessRate: 0.3})
	require.True(t, newWorker("w", Diligent, RoleJunior).AssignTask(task))
	task.Advance(4, newForcedRand(0))
	task.Reset()
	assert.Equal(t, StatusPending, task.Status)
	assert.Zero(t, task.Progress)
	assert.Empty(t, task.AssignedTo)
	assert.Equal(t, 0.3, task.AdjustedSuccessRate())
}
