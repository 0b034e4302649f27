// Package scenario holds data-defined triggers that spawn office tasks, and
// evaluates whether their requirements hold.
package scenario

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"officesim/internal/config"
)

const (
	TypeGeneral = "general"
	TypeRandom  = "random"

	// DefaultProbability applies to random scenarios without an explicit probability.
	DefaultProbability = 0.10
)

// Scenario is immutable reference data loaded once.
type Scenario struct {
	ID           string        `yaml:"id" json:"id"`
	Name         string        `yaml:"name,omitempty" json:"name,omitempty"`
	Description  string        `yaml:"description,omitempty" json:"description,omitempty"`
	Type         string        `yaml:"type,omitempty" json:"type,omitempty"`
	Requirements *Requirements `yaml:"requirements,omitempty" json:"requirements,omitempty"`
	Probability  *float64      `yaml:"probability,omitempty" json:"probability,omitempty"`
	Tasks        []TaskSpec    `yaml:"tasks,omitempty" json:"tasks,omitempty"`
}

// Requirements gate activation. Absent fields do not constrain.
type Requirements struct {
	TimeStart       string   `yaml:"time_start,omitempty" json:"time_start,omitempty"`
	TimeEnd         string   `yaml:"time_end,omitempty" json:"time_end,omitempty"`
	Weekdays        []int    `yaml:"weekdays,omitempty" json:"weekdays,omitempty"`
	Weather         []string `yaml:"weather,omitempty" json:"weather,omitempty"`
	MinProductivity *float64 `yaml:"min_productivity,omitempty" json:"min_productivity,omitempty"`
	MaxProductivity *float64 `yaml:"max_productivity,omitempty" json:"max_productivity,omitempty"`
}

// TaskSpec describes a task to materialize on activation. It doubles as the
// task template shape used for reference_task inheritance.
type TaskSpec struct {
	ID              string   `yaml:"id,omitempty" json:"id,omitempty"`
	ReferenceTask   string   `yaml:"reference_task,omitempty" json:"reference_task,omitempty"`
	Name            *string  `yaml:"name,omitempty" json:"name,omitempty"`
	Description     *string  `yaml:"description,omitempty" json:"description,omitempty"`
	Duration        *int     `yaml:"duration,omitempty" json:"duration,omitempty"`
	SuccessRate     *float64 `yaml:"success_rate,omitempty" json:"success_rate,omitempty"`
	RequiredRole    *string  `yaml:"required_role,omitempty" json:"required_role,omitempty"`
	FailEvent       *string  `yaml:"fail_event,omitempty" json:"fail_event,omitempty"`
	Assignees       []string `yaml:"assignees,omitempty" json:"assignees,omitempty"`
	RandomAssignees *int     `yaml:"random_assignees,omitempty" json:"random_assignees,omitempty"`
}

// Conditions is the state requirements are evaluated against.
type Conditions struct {
	Minute              int // minutes after midnight
	Weekday             int // 0=Monday .. 6=Sunday
	Weather             string
	AverageProductivity float64
}

var ErrInvalid = errors.New("invalid scenario")

// ActivationProbability returns the per-check chance of a random scenario.
func (s Scenario) ActivationProbability() float64 {
	if s.Probability == nil {
		return DefaultProbability
	}
	return *s.Probability
}

// DisplayName falls back to the id when no name is set.
func (s Scenario) DisplayName() string {
	if strings.TrimSpace(s.Name) != "" {
		return s.Name
	}
	return s.ID
}

// Validate rejects data the evaluator cannot interpret.
func (s Scenario) Validate() error {
	if strings.TrimSpace(s.ID) == "" {
		return fmt.Errorf("%w: id is required", ErrInvalid)
	}
	if s.Probability != nil && (*s.Probability < 0 || *s.Probability > 1) {
		return fmt.Errorf("%w: %s: probability must be within [0,1]", ErrInvalid, s.ID)
	}
	if s.Requirements != nil {
		if err := s.Requirements.Validate(); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalid, s.ID, err)
		}
	}
	for i, spec := range s.Tasks {
		if err := spec.Validate(); err != nil {
			return fmt.Errorf("%w: %s: tasks[%d]: %v", ErrInvalid, s.ID, i, err)
		}
	}
	return nil
}

func (r *Requirements) Validate() error {
	if r.TimeStart != "" {
		if _, err := config.ParseClock(r.TimeStart); err != nil {
			return fmt.Errorf("time_start: %w", err)
		}
	}
	if r.TimeEnd != "" {
		if _, err := config.ParseClock(r.TimeEnd); err != nil {
			return fmt.Errorf("time_end: %w", err)
		}
	}
	for _, d := range r.Weekdays {
		if d < 0 || d > 6 {
			return fmt.Errorf("weekday %d out of range 0-6", d)
		}
	}
	return nil
}

// Satisfied reports whether every present requirement holds for c.
func (r *Requirements) Satisfied(c Conditions) bool {
	if r == nil {
		return true
	}
	if r.TimeStart != "" {
		start, err := config.ParseClock(r.TimeStart)
		if err != nil || c.Minute < start {
			return false
		}
	}
	if r.TimeEnd != "" {
		end, err := config.ParseClock(r.TimeEnd)
		if err != nil || c.Minute > end {
			return false
		}
	}
	if r.Weekdays != nil && !slices.Contains(r.Weekdays, c.Weekday) {
		return false
	}
	if r.Weather != nil && !slices.Contains(r.Weather, c.Weather) {
		return false
	}
	if r.MinProductivity != nil && c.AverageProductivity < *r.MinProductivity {
		return false
	}
	if r.MaxProductivity != nil && c.AverageProductivity > *r.MaxProductivity {
		return false
	}
	return true
}

func (t TaskSpec) Validate() error {
	if t.Duration != nil && *t.Duration <= 0 {
		return fmt.Errorf("duration must be positive")
	}
	if t.SuccessRate != nil && (*t.SuccessRate < 0 || *t.SuccessRate > 1) {
		return fmt.Errorf("success_rate must be within [0,1]")
	}
	if t.RandomAssignees != nil && *t.RandomAssignees < 0 {
		return fmt.Errorf("random_assignees must not be negative")
	}
	return nil
}

// Merge fills every field t leaves unset from base. Fields set on t win;
// the id is never inherited.
func (t TaskSpec) Merge(base TaskSpec) TaskSpec {
	out := t
	if out.Name == nil {
		out.Name = base.Name
	}
	if out.Description == nil {
		out.Description = base.Description
	}
	if out.Duration == nil {
		out.Duration = base.Duration
	}
	if out.SuccessRate == nil {
		out.SuccessRate = base.SuccessRate
	}
	if out.RequiredRole == nil {
		out.RequiredRole = base.RequiredRole
	}
	if out.FailEvent == nil {
		out.FailEvent = base.FailEvent
	}
	if out.Assignees == nil {
		out.Assignees = base.Assignees
	}
	if out.RandomAssignees == nil {
		out.RandomAssignees = base.RandomAssignees
	}
	return out
}
