package office

import (
	"fmt"
	"slices"
	"time"

	"officesim/internal/domain"
	"officesim/internal/scenario"
	"officesim/internal/weather"
)

func (s *Simulation) Day() int    { return s.day }
func (s *Simulation) Minute() int { return s.minute }

// Date is the calendar date of the current simulated day.
func (s *Simulation) Date() time.Time {
	return s.opts.CalendarStart.AddDate(0, 0, s.day-1)
}

// ClockString renders the clock as "Day X - HH:MM".
func (s *Simulation) ClockString() string {
	return fmt.Sprintf("Day %d - %02d:%02d", s.day, s.minute/60, s.minute%60)
}

func (s *Simulation) Weather() weather.Condition { return s.weather.Current() }

func (s *Simulation) Registry() *scenario.Registry { return s.registry }

func (s *Simulation) Rooms() []*Room { return s.rooms }

func (s *Simulation) Room(id string) (*Room, bool) {
	r, ok := s.roomByID[id]
	return r, ok
}

// Workers returns the roster in creation order.
func (s *Simulation) Workers() []*Worker {
	out := make([]*Worker, 0, len(s.roster))
	for _, id := range s.roster {
		out = append(out, s.workers[id])
	}
	return out
}

func (s *Simulation) Worker(id string) (*Worker, bool) {
	w, ok := s.workers[id]
	return w, ok
}

// Tasks returns every task in creation order.
func (s *Simulation) Tasks() []*Task {
	out := make([]*Task, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.tasks[id])
	}
	return out
}

func (s *Simulation) Task(id string) (*Task, bool) {
	t, ok := s.tasks[id]
	return t, ok
}

// Pool returns the ids of unassigned tasks.
func (s *Simulation) Pool() []string { return slices.Clone(s.pool) }

func (s *Simulation) InPool(id string) bool { return slices.Contains(s.pool, id) }

// Snapshot copies the current state into plain views.
func (s *Simulation) Snapshot() domain.Snapshot {
	snap := domain.Snapshot{
		Day:                 s.day,
		Minute:              s.minute,
		Clock:               s.ClockString(),
		Weather:             string(s.weather.Current()),
		AverageProductivity: s.AverageProductivity(),
		PoolSize:            len(s.pool),
		Rooms:               make([]domain.RoomView, 0, len(s.rooms)),
		Workers:             make([]domain.WorkerView, 0, len(s.roster)),
		Tasks:               make([]domain.TaskView, 0, len(s.order)),
	}
	for _, r := range s.rooms {
		snap.Rooms = append(snap.Rooms, RoomView(r))
	}
	for _, id := range s.roster {
		snap.Workers = append(snap.Workers, WorkerView(s.workers[id]))
	}
	for _, id := range s.order {
		snap.Tasks = append(snap.Tasks, s.TaskView(s.tasks[id]))
	}
	return snap
}

func RoomView(r *Room) domain.RoomView {
	return domain.RoomView{
		ID:        r.ID,
		Type:      string(r.Type),
		X:         r.X,
		Y:         r.Y,
		Width:     r.Width,
		Height:    r.Height,
		Occupants: nonNil(r.Occupants),
		Events:    nonNil(r.Events),
	}
}

func WorkerView(w *Worker) domain.WorkerView {
	return domain.WorkerView{
		ID:             w.ID,
		Name:           w.Name,
		Department:     string(w.Department),
		Role:           string(w.Role),
		Personality:    string(w.Personality),
		Mood:           w.Mood,
		X:              w.X,
		Y:              w.Y,
		TargetX:        w.TargetX,
		TargetY:        w.TargetY,
		State:          string(w.State()),
		CurrentTask:    w.CurrentTask,
		CurrentRoom:    w.CurrentRoom,
		AtOffice:       w.AtOffice,
		Productivity:   w.Productivity,
		CompletedTasks: nonNil(w.CompletedTasks),
		FailedTasks:    nonNil(w.FailedTasks),
	}
}

func (s *Simulation) TaskView(t *Task) domain.TaskView {
	return domain.TaskView{
		ID:                  t.ID,
		Name:                t.Name,
		Description:         t.Description,
		Status:              string(t.Status),
		Progress:            t.Progress,
		Duration:            t.Duration,
		SuccessRate:         t.SuccessRate,
		AdjustedSuccessRate: t.AdjustedSuccessRate(),
		RequiredRole:        string(t.RequiredRole),
		FailEvent:           t.FailEvent,
		AssignedTo:          t.AssignedTo,
		InPool:              s.InPool(t.ID),
	}
}

func nonNil(v []string) []string {
	if v == nil {
		return []string{}
	}
	return slices.Clone(v)
}
