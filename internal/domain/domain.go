package domain

// Run is one simulation session recorded in the journal.
type Run struct {
	ID        string `json:"id"`
	Seed      uint64 `json:"seed"`
	Workers   int    `json:"workers"`
	Label     string `json:"label,omitempty"`
	StartedAt string `json:"started_at" format:"date-time"`
}

// Event is a journal entry produced by the simulation. Payload holds JSON.
type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	RunID      string `json:"run_id"`
	Day        int    `json:"day"`
	Minute     int    `json:"minute"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind" enum:"task,worker,room,scenario,office"`
	EntityID   string `json:"entity_id,omitempty"`
	Payload    string `json:"payload_json"`
}

type RoomView struct {
	ID        string   `json:"id"`
	Type      string   `json:"type"`
	X         int      `json:"x"`
	Y         int      `json:"y"`
	Width     int      `json:"width"`
	Height    int      `json:"height"`
	Occupants []string `json:"occupants"`
	Events    []string `json:"events"`
}

type WorkerView struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Department     string   `json:"department"`
	Role           string   `json:"role"`
	Personality    string   `json:"personality"`
	Mood           float64  `json:"mood"`
	X              float64  `json:"x"`
	Y              float64  `json:"y"`
	TargetX        float64  `json:"target_x"`
	TargetY        float64  `json:"target_y"`
	State          string   `json:"state" enum:"idle,busy,off_duty"`
	CurrentTask    string   `json:"current_task,omitempty"`
	CurrentRoom    string   `json:"current_room,omitempty"`
	AtOffice       bool     `json:"at_office"`
	Productivity   int      `json:"productivity"`
	CompletedTasks []string `json:"completed_tasks"`
	FailedTasks    []string `json:"failed_tasks"`
}

type TaskView struct {
	ID                  string  `json:"id"`
	Name                string  `json:"name"`
	Description         string  `json:"description,omitempty"`
	Status              string  `json:"status" enum:"Pending,In Progress,Completed,Failed"`
	Progress            int     `json:"progress"`
	Duration            int     `json:"duration"`
	SuccessRate         float64 `json:"success_rate"`
	AdjustedSuccessRate float64 `json:"adjusted_success_rate"`
	RequiredRole        string  `json:"required_role,omitempty"`
	FailEvent           string  `json:"fail_event,omitempty"`
	AssignedTo          string  `json:"assigned_to,omitempty"`
	InPool              bool    `json:"in_pool"`
}

// Snapshot is the read-only view handed to rendering collaborators.
type Snapshot struct {
	Day                 int          `json:"day"`
	Minute              int          `json:"minute"`
	Clock               string       `json:"clock"`
	Weather             string       `json:"weather"`
	AverageProductivity float64      `json:"average_productivity"`
	PoolSize            int          `json:"pool_size"`
	Rooms               []RoomView   `json:"rooms"`
	Workers             []WorkerView `json:"workers"`
	Tasks               []TaskView   `json:"tasks"`
}

// TickSummary is broadcast to stream subscribers after each step.
type TickSummary struct {
	Day       int      `json:"day"`
	Minute    int      `json:"minute"`
	Clock     string   `json:"clock"`
	Weather   string   `json:"weather"`
	DayEnded  bool     `json:"day_ended"`
	Completed []string `json:"completed,omitempty"`
	Failed    []string `json:"failed,omitempty"`
	Assigned  []string `json:"assigned,omitempty"`
	Activated []string `json:"activated,omitempty"`
	PoolSize  int      `json:"pool_size"`
}
