package office

import "math"

const (
	offsiteX = -100
	offsiteY = -100

	moodStep = 0.10
	snapDist = 1.0
)

type WorkerState string

const (
	StateIdle    WorkerState = "idle"
	StateBusy    WorkerState = "busy"
	StateOffDuty WorkerState = "off_duty"
)

// Outcome is what happened to a worker's task during a tick.
type Outcome int

const (
	OutcomeNone Outcome = iota
	OutcomeCompleted
	OutcomeFailed
)

type Worker struct {
	ID          string
	Name        string
	Department  Department
	Role        Role
	Personality Personality
	Mood        float64

	X, Y             float64
	TargetX, TargetY float64
	Speed            float64 // units per simulated hour

	CurrentTask    string
	CompletedTasks []string
	FailedTasks    []string
	CurrentRoom    string
	AtOffice       bool
	Productivity   int
}

// NewWorker draws personality, mood and speed from rng.
func NewWorker(id, name string, dept Department, role Role, rng Rand) *Worker {
	return &Worker{
		ID:          id,
		Name:        name,
		Department:  dept,
		Role:        role,
		Personality: Personalities[rng.IntN(len(Personalities))],
		Mood:        floatBetween(rng, 0.5, 1.0),
		Speed:       floatBetween(rng, 1.5, 3.0),
		AtOffice:    true,
	}
}

func (w *Worker) State() WorkerState {
	switch {
	case !w.AtOffice:
		return StateOffDuty
	case w.CurrentTask != "":
		return StateBusy
	default:
		return StateIdle
	}
}

func (w *Worker) IsSecurity() bool { return w.Role == RoleSecurity }

// AssignTask links t to w. It rejects without side effects when w is busy
// or off duty, t is not pending, or the role does not match.
func (w *Worker) AssignTask(t *Task) bool {
	if w.CurrentTask != "" || !w.AtOffice {
		return false
	}
	if t.Status != StatusPending || !t.CanBeAssignedTo(w) {
		return false
	}
	t.bind(w)
	w.CurrentTask = t.ID
	return true
}

func (w *Worker) SetTarget(x, y float64) {
	w.TargetX, w.TargetY = x, y
}

// Tick advances the current task (passed resolved as task) and moves the
// worker toward its target. Off-duty workers are untouched.
func (w *Worker) Tick(elapsed int, task *Task, rng Rand) Outcome {
	if !w.AtOffice {
		return OutcomeNone
	}
	out := OutcomeNone
	if task != nil && task.ID == w.CurrentTask && task.Advance(elapsed, rng) {
		switch task.Status {
		case StatusCompleted:
			w.CompletedTasks = append(w.CompletedTasks, task.ID)
			w.Mood = min(1.0, w.Mood+moodStep)
			w.Productivity++
			out = OutcomeCompleted
		case StatusFailed:
			w.FailedTasks = append(w.FailedTasks, task.ID)
			w.Mood = max(0.0, w.Mood-moodStep)
			out = OutcomeFailed
		}
		w.CurrentTask = ""
	}
	w.move(elapsed)
	return out
}

func (w *Worker) move(elapsed int) {
	dx, dy := w.TargetX-w.X, w.TargetY-w.Y
	dist := math.Hypot(dx, dy)
	if dist < snapDist {
		w.X, w.Y = w.TargetX, w.TargetY
		return
	}
	step := min(dist, w.Speed*float64(elapsed)/60)
	w.X += dx / dist * step
	w.Y += dy / dist * step
}

// LeaveOffice sends the worker home. An in-progress task is reset to
// pending; the caller decides where it goes next.
func (w *Worker) LeaveOffice(task *Task, room *Room) {
	w.AtOffice = false
	if room != nil {
		room.RemoveOccupant(w)
	}
	w.CurrentRoom = ""
	w.Productivity = 0
	if task != nil && task.ID == w.CurrentTask {
		task.Reset()
	}
	w.CurrentTask = ""
	w.X, w.Y = offsiteX, offsiteY
	w.TargetX, w.TargetY = offsiteX, offsiteY
}

// EnterOffice puts the worker back on duty inside room and applies the
// personality's arrival mood change.
func (w *Worker) EnterOffice(room *Room, rng Rand) {
	w.AtOffice = true
	w.placeIn(room, rng)
	if tr := w.Personality.trait(); tr.arrivalDelta != 0 {
		w.Mood = clamp(w.Mood+tr.arrivalDelta, tr.arrivalFloor, 1.0)
	}
}

func (w *Worker) placeIn(room *Room, rng Rand) {
	x, y := room.RandomInteriorPoint(rng)
	w.X, w.Y = float64(x), float64(y)
	w.TargetX, w.TargetY = w.X, w.Y
	room.AddOccupant(w)
}
