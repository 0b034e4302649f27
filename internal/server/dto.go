package server

import (
	"encoding/json"

	"officesim/internal/domain"
	"officesim/internal/scenario"
)

// Request payloads

type TickRequest struct {
	Minutes int `json:"minutes,omitempty" minimum:"1" maximum:"1440" doc:"Simulated minutes per step" default:"1"`
	Steps   int `json:"steps,omitempty" minimum:"1" maximum:"10080" doc:"Number of steps to run" default:"1"`
}

// Response payloads

type HealthResponse struct {
	Status        string `json:"status"`
	RunID         string `json:"run_id"`
	Journal       bool   `json:"journal"`
	SchemaVersion int    `json:"schema_version,omitempty"`
	Streams       int    `json:"streams"`
}

type RoomList struct {
	Items []domain.RoomView `json:"items"`
}

type WorkerList struct {
	Items []domain.WorkerView `json:"items"`
}

type TaskList struct {
	Items []domain.TaskView `json:"items"`
}

type ScenarioResponse struct {
	ID          string                 `json:"id"`
	Name        string                 `json:"name"`
	Type        string                 `json:"type"`
	Description string                 `json:"description,omitempty"`
	Probability *float64               `json:"probability,omitempty"`
	Tasks       int                    `json:"tasks"`
	Eligible    bool                   `json:"eligible"`
	Requires    *scenario.Requirements `json:"requirements,omitempty"`
}

type ScenarioList struct {
	Items []ScenarioResponse `json:"items"`
}

type ActivationResponse struct {
	ScenarioID string   `json:"scenario_id"`
	TaskIDs    []string `json:"task_ids"`
}

type StartDayResponse struct {
	Day     int    `json:"day"`
	Clock   string `json:"clock"`
	OnDuty  int    `json:"on_duty"`
	Workers int    `json:"workers"`
}

type EventResponse struct {
	ID         int64           `json:"id"`
	TS         string          `json:"ts" format:"date-time"`
	RunID      string          `json:"run_id"`
	Day        int             `json:"day"`
	Minute     int             `json:"minute"`
	Type       string          `json:"type"`
	EntityKind string          `json:"entity_kind"`
	EntityID   string          `json:"entity_id,omitempty"`
	Payload    json.RawMessage `json:"payload"`
}

type paginatedEvents struct {
	Items      []EventResponse `json:"items"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

type RunList struct {
	Items []domain.Run `json:"items"`
}

func eventResponse(evt domain.Event) EventResponse {
	payload := json.RawMessage("{}")
	if evt.Payload != "" && json.Valid([]byte(evt.Payload)) {
		payload = json.RawMessage(evt.Payload)
	}
	return EventResponse{
		ID:         evt.ID,
		TS:         evt.TS,
		RunID:      evt.RunID,
		Day:        evt.Day,
		Minute:     evt.Minute,
		Type:       evt.Type,
		EntityKind: evt.EntityKind,
		EntityID:   evt.EntityID,
		Payload:    payload,
	}
}

func scenarioResponse(sc scenario.Scenario, eligible bool) ScenarioResponse {
	return ScenarioResponse{
		ID:          sc.ID,
		Name:        sc.DisplayName(),
		Type:        sc.Type,
		Description: sc.Description,
		Probability: sc.Probability,
		Tasks:       len(sc.Tasks),
		Eligible:    eligible,
		Requires:    sc.Requirements,
	}
}
