package office

const (
	minSuccessRate = 0.10
	maxSuccessRate = 0.95
)

// TaskTemplate is the constructor shape for tasks.
type TaskTemplate struct {
	Name         string
	Description  string
	Duration     int
	SuccessRate  float64
	RequiredRole Role
	FailEvent    string
}

type Task struct {
	ID           string
	Name         string
	Description  string
	Duration     int
	SuccessRate  float64
	RequiredRole Role
	FailEvent    string
	Status       TaskStatus
	Progress     int
	AssignedTo   string

	assignee Personality
	handled  bool
}

func NewTask(id string, tpl TaskTemplate) *Task {
	return &Task{
		ID:           id,
		Name:         tpl.Name,
		Description:  tpl.Description,
		Duration:     tpl.Duration,
		SuccessRate:  tpl.SuccessRate,
		RequiredRole: tpl.RequiredRole,
		FailEvent:    tpl.FailEvent,
		Status:       StatusPending,
	}
}

// CanBeAssignedTo reports whether w satisfies the role constraint.
func (t *Task) CanBeAssignedTo(w *Worker) bool {
	return t.RequiredRole == "" || t.RequiredRole == w.Role
}

// Advance adds elapsed minutes while the task is in progress. Once progress
// reaches the duration it draws once against the adjusted rate and settles
// on Completed or Failed. It reports whether that happened on this call.
func (t *Task) Advance(elapsed int, rng Rand) bool {
	if t.Status != StatusInProgress {
		return false
	}
	t.Progress += elapsed
	if t.Progress < t.Duration {
		return false
	}
	if rng.Float64() < t.AdjustedSuccessRate() {
		t.Status = StatusCompleted
	} else {
		t.Status = StatusFailed
	}
	return true
}

// AdjustedSuccessRate applies the assignee's personality to the base rate.
func (t *Task) AdjustedSuccessRate() float64 {
	if t.AssignedTo == "" {
		return t.SuccessRate
	}
	return clamp(t.SuccessRate+t.assignee.trait().rateDelta, minSuccessRate, maxSuccessRate)
}

// Reset returns the task to the pool state.
func (t *Task) Reset() {
	t.Status = StatusPending
	t.Progress = 0
	t.AssignedTo = ""
	t.assignee = ""
}

func (t *Task) Finished() bool {
	return t.Status == StatusCompleted || t.Status == StatusFailed
}

func (t *Task) bind(w *Worker) {
	t.AssignedTo = w.ID
	t.assignee = w.Personality
	t.Status = StatusInProgress
}
