package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"officesim/internal/app"
	"officesim/internal/domain"
	"officesim/internal/migrate"
	"officesim/internal/office"
	"officesim/internal/repo"
	"officesim/internal/scenario"
)

// Config for the HTTP API handler.
type Config struct {
	Runner *app.Runner
	// Repo serves /events and /runs; nil when the journal is disabled.
	Repo     *repo.Repo
	BasePath string
	Auth     AuthConfig
	Logger   *slog.Logger
	// Hub receives tick summaries; one is created when nil.
	Hub *Hub
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"not_found"`
	Message string         `json:"message" example:"unknown scenario"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true" example:"{\"id\":\"fire_drill\"}"`
}

type bodyBytesKey struct{}

// apiError models the required error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

type handlers struct {
	runner *app.Runner
	repo   *repo.Repo
	hub    *Hub
	log    *slog.Logger
}

// New returns an HTTP handler exposing the simulator API.
func New(cfg Config) (http.Handler, error) {
	if cfg.Runner == nil {
		return nil, errors.New("server: runner required")
	}
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	hub := cfg.Hub
	if hub == nil {
		hub = NewHub(log)
	}
	cfg.Runner.OnTick(func(s domain.TickSummary) { hub.Publish("tick", s) })
	cfg.Runner.OnEvents(func(evts []domain.Event) {
		for _, evt := range evts {
			hub.Publish("event", eventResponse(evt))
		}
	})

	huma.DefaultArrayNullable = false
	// Override Huma errors to use the envelope.
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			bodyBytes, _ := io.ReadAll(r.Body)
			r.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
			ctx := context.WithValue(r.Context(), bodyBytesKey{}, bodyBytes)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	})
	router.Use(newAuthMiddleware(basePath, cfg.Auth))
	hcfg := huma.DefaultConfig("Office Simulator API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = "" // custom Swagger UI below
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	h := handlers{runner: cfg.Runner, repo: cfg.Repo, hub: hub, log: log.With("component", "api")}
	router.Get(path.Join(basePath, "ws"), hub.HandleWS)
	registerDocs(router, basePath)
	registerHealth(group, h)
	registerState(group, h)
	registerScenarios(group, h)
	registerControl(group, h)
	registerEvents(group, h)
	registerOpenAPI(router, api, basePath)

	return router, nil
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	if errors.Is(err, office.ErrUnknownScenario) {
		return newAPIError(http.StatusNotFound, "scenario_not_found", err.Error(), nil)
	}
	if errors.Is(err, office.ErrRequirementsUnmet) {
		return newAPIError(http.StatusConflict, "requirements_unmet", err.Error(), nil)
	}
	if errors.Is(err, repo.ErrNotFound) {
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return newAPIError(http.StatusServiceUnavailable, "canceled", err.Error(), nil)
	}
	msg := err.Error()
	lowered := strings.ToLower(msg)
	switch {
	case strings.Contains(lowered, "invalid") || strings.Contains(lowered, "must") || strings.Contains(lowered, "required"):
		return newAPIError(http.StatusBadRequest, "bad_request", msg, nil)
	default:
		return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": msg})
	}
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusServiceUnavailable:
		return "unavailable"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func registerDocs(r chi.Router, basePath string) {
	r.Get(path.Join(basePath, "docs"), func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, swaggerHTML(basePath))
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var spec []byte
	specPath := path.Join(basePath, "openapi.json")
	r.Get(specPath, func(w http.ResponseWriter, r *http.Request) {
		if spec == nil {
			oas := api.OpenAPI()
			ensureDefaultErrorResponses(oas)
			applyAuthSecurity(oas)
			spec, _ = json.Marshal(oas)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}

func ensureDefaultErrorResponses(oas *huma.OpenAPI) {
	if oas == nil || oas.Paths == nil {
		return
	}
	for _, item := range oas.Paths {
		for _, op := range []*huma.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace,
		} {
			if op == nil {
				continue
			}
			if op.Responses == nil {
				op.Responses = map[string]*huma.Response{}
			}
			op.Responses["default"] = &huma.Response{
				Description: "Error",
				Content: map[string]*huma.MediaType{
					"application/json": {
						Schema: &huma.Schema{Ref: "#/components/schemas/ApiError"},
					},
				},
			}
		}
	}
}

// applyAuthSecurity marks mutating operations as bearer-protected.
func applyAuthSecurity(oas *huma.OpenAPI) {
	if oas == nil {
		return
	}
	if oas.Components == nil {
		oas.Components = &huma.Components{}
	}
	if oas.Components.SecuritySchemes == nil {
		oas.Components.SecuritySchemes = map[string]*huma.SecurityScheme{}
	}
	oas.Components.SecuritySchemes["bearerAuth"] = &huma.SecurityScheme{
		Type:         "http",
		Scheme:       "bearer",
		BearerFormat: "JWT",
	}
	security := []map[string][]string{{"bearerAuth": {}}}
	for _, item := range oas.Paths {
		for _, op := range []*huma.Operation{item.Put, item.Post, item.Delete, item.Patch} {
			if op != nil {
				op.Security = security
			}
		}
	}
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>Office Simulator API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
    <script>
      window.onload = () => {
        SwaggerUIBundle({
          url: '%s',
          dom_id: '#swagger-ui'
        });
      };
    </script>
    <p style="padding: 1rem; font-family: sans-serif; color: #444;">
      Mutating operations take Authorization: Bearer &lt;token&gt; when the server has a JWT secret.
    </p>
  </body>
</html>`, specURL)
}

func registerHealth(api huma.API, h handlers) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body HealthResponse `json:"body"`
	}, error) {
		resp := HealthResponse{
			Status:  "ok",
			RunID:   h.runner.RunInfo().ID,
			Journal: h.repo != nil,
			Streams: h.hub.ConnectionCount(),
		}
		if h.repo != nil {
			v, err := migrate.Version(ctx, h.repo.DB)
			if err != nil {
				return nil, handleError(err)
			}
			resp.SchemaVersion = v
		}
		return &struct {
			Body HealthResponse `json:"body"`
		}{Body: resp}, nil
	})
}

func registerState(api huma.API, h handlers) {
	huma.Register(api, huma.Operation{
		OperationID: "snapshot",
		Method:      http.MethodGet,
		Path:        "/snapshot",
		Summary:     "Full simulation snapshot",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body domain.Snapshot `json:"body"`
	}, error) {
		return &struct {
			Body domain.Snapshot `json:"body"`
		}{Body: h.runner.Snapshot()}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-rooms",
		Method:      http.MethodGet,
		Path:        "/rooms",
		Summary:     "List rooms",
	}, func(ctx context.Context, input *struct {
		Type string `query:"type" doc:"Filter by room type"`
	}) (*struct {
		Body RoomList `json:"body"`
	}, error) {
		resp := RoomList{Items: []domain.RoomView{}}
		h.runner.View(func(s *office.Simulation) {
			for _, r := range s.Rooms() {
				if input.Type != "" && !strings.EqualFold(string(r.Type), input.Type) {
					continue
				}
				resp.Items = append(resp.Items, office.RoomView(r))
			}
		})
		return &struct {
			Body RoomList `json:"body"`
		}{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-workers",
		Method:      http.MethodGet,
		Path:        "/workers",
		Summary:     "List workers",
	}, func(ctx context.Context, input *struct {
		State string `query:"state" enum:"idle,busy,off_duty"`
	}) (*struct {
		Body WorkerList `json:"body"`
	}, error) {
		resp := WorkerList{Items: []domain.WorkerView{}}
		h.runner.View(func(s *office.Simulation) {
			for _, w := range s.Workers() {
				if input.State != "" && string(w.State()) != input.State {
					continue
				}
				resp.Items = append(resp.Items, office.WorkerView(w))
			}
		})
		return &struct {
			Body WorkerList `json:"body"`
		}{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-worker",
		Method:      http.MethodGet,
		Path:        "/workers/{id}",
		Summary:     "Get a worker",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body domain.WorkerView `json:"body"`
	}, error) {
		var (
			view  domain.WorkerView
			found bool
		)
		h.runner.View(func(s *office.Simulation) {
			if w, ok := s.Worker(input.ID); ok {
				view, found = office.WorkerView(w), true
			}
		})
		if !found {
			return nil, newAPIError(http.StatusNotFound, "not_found", "worker not found", map[string]any{"id": input.ID})
		}
		return &struct {
			Body domain.WorkerView `json:"body"`
		}{Body: view}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-tasks",
		Method:      http.MethodGet,
		Path:        "/tasks",
		Summary:     "List tasks",
	}, func(ctx context.Context, input *struct {
		Status     string `query:"status" doc:"Pending, In Progress, Completed or Failed"`
		AssignedTo string `query:"assigned_to"`
		Pool       bool   `query:"pool" doc:"Only tasks waiting in the pool"`
	}) (*struct {
		Body TaskList `json:"body"`
	}, error) {
		resp := TaskList{Items: []domain.TaskView{}}
		h.runner.View(func(s *office.Simulation) {
			for _, t := range s.Tasks() {
				if input.Status != "" && !strings.EqualFold(string(t.Status), input.Status) {
					continue
				}
				if input.AssignedTo != "" && t.AssignedTo != input.AssignedTo {
					continue
				}
				if input.Pool && !s.InPool(t.ID) {
					continue
				}
				resp.Items = append(resp.Items, s.TaskView(t))
			}
		})
		return &struct {
			Body TaskList `json:"body"`
		}{Body: resp}, nil
	})
}

func registerScenarios(api huma.API, h handlers) {
	huma.Register(api, huma.Operation{
		OperationID: "list-scenarios",
		Method:      http.MethodGet,
		Path:        "/scenarios",
		Summary:     "List scenarios with current eligibility",
	}, func(ctx context.Context, input *struct {
		Type string `query:"type" enum:"general,random"`
	}) (*struct {
		Body ScenarioList `json:"body"`
	}, error) {
		resp := ScenarioList{Items: []ScenarioResponse{}}
		h.runner.View(func(s *office.Simulation) {
			var items []scenario.Scenario
			if input.Type != "" {
				items = s.Registry().ByType(input.Type)
			} else {
				items = s.Registry().All()
			}
			for _, sc := range items {
				resp.Items = append(resp.Items, scenarioResponse(sc, s.EvaluateScenario(sc.ID)))
			}
		})
		return &struct {
			Body ScenarioList `json:"body"`
		}{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "activate-scenario",
		Method:      http.MethodPost,
		Path:        "/scenarios/{id}/activate",
		Summary:     "Activate a scenario whose requirements hold",
		Description: "Returns 409 when the requirements do not hold. force=true skips the check.",
		Errors:      []int{http.StatusUnauthorized, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		ID    string `path:"id"`
		Force bool   `query:"force"`
	}) (*struct {
		Body ActivationResponse `json:"body"`
	}, error) {
		ids, err := h.runner.Activate(ctx, input.ID, input.Force)
		if err != nil {
			return nil, handleError(err)
		}
		h.log.Info("scenario activated", "scenario", input.ID, "tasks", len(ids), "force", input.Force, "by", callerFromContext(ctx))
		if ids == nil {
			ids = []string{}
		}
		return &struct {
			Body ActivationResponse `json:"body"`
		}{Body: ActivationResponse{ScenarioID: input.ID, TaskIDs: ids}}, nil
	})
}

func registerControl(api huma.API, h handlers) {
	huma.Register(api, huma.Operation{
		OperationID: "tick",
		Method:      http.MethodPost,
		Path:        "/tick",
		Summary:     "Advance the simulation",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		Body *TickRequest `json:"body"`
	}) (*struct {
		Body domain.TickSummary `json:"body"`
	}, error) {
		req := TickRequest{Minutes: 1, Steps: 1}
		if input.Body != nil {
			if input.Body.Minutes > 0 {
				req.Minutes = input.Body.Minutes
			}
			if input.Body.Steps > 0 {
				req.Steps = input.Body.Steps
			}
		}
		summary, err := h.runner.Advance(ctx, req.Steps, req.Minutes)
		if err != nil {
			return nil, handleError(err)
		}
		h.log.Debug("tick", "steps", req.Steps, "minutes", req.Minutes, "clock", summary.Clock, "by", callerFromContext(ctx))
		return &struct {
			Body domain.TickSummary `json:"body"`
		}{Body: summary}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "start-day",
		Method:      http.MethodPost,
		Path:        "/start-day",
		Summary:     "Recall off-duty workers",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body StartDayResponse `json:"body"`
	}, error) {
		if err := h.runner.StartDay(ctx); err != nil {
			return nil, handleError(err)
		}
		var resp StartDayResponse
		h.runner.View(func(s *office.Simulation) {
			resp.Day = s.Day()
			resp.Clock = s.ClockString()
			for _, w := range s.Workers() {
				resp.Workers++
				if w.AtOffice {
					resp.OnDuty++
				}
			}
		})
		h.log.Info("day started", "day", resp.Day, "on_duty", resp.OnDuty, "by", callerFromContext(ctx))
		return &struct {
			Body StartDayResponse `json:"body"`
		}{Body: resp}, nil
	})
}

func (h handlers) journal() (*repo.Repo, huma.StatusError) {
	if h.repo == nil {
		return nil, newAPIError(http.StatusServiceUnavailable, "journal_disabled", "event journal is disabled", nil)
	}
	return h.repo, nil
}

func registerEvents(api huma.API, h handlers) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "List recent journal events",
		Errors:      []int{http.StatusBadRequest, http.StatusServiceUnavailable},
	}, func(ctx context.Context, input *struct {
		RunID      string `query:"run_id" doc:"Defaults to the current run; * for every run"`
		Type       string `query:"type"`
		EntityKind string `query:"entity_kind" enum:"task,worker,room,scenario,office"`
		EntityID   string `query:"entity_id"`
		Day        int    `query:"day"`
		Limit      int    `query:"limit" default:"50"`
		Cursor     string `query:"cursor"`
	}) (*struct {
		Body paginatedEvents `json:"body"`
	}, error) {
		r, apiErr := h.journal()
		if apiErr != nil {
			return nil, apiErr
		}
		limit := normalizeLimit(input.Limit)
		var cursorID int64
		if input.Cursor != "" {
			parsed, err := strconv.ParseInt(input.Cursor, 10, 64)
			if err != nil {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid cursor", map[string]any{"cursor": input.Cursor})
			}
			cursorID = parsed
		}
		filter := repo.EventFilter{
			RunID:      input.RunID,
			Type:       input.Type,
			EntityKind: input.EntityKind,
			EntityID:   input.EntityID,
			Day:        input.Day,
		}
		switch filter.RunID {
		case "":
			filter.RunID = h.runner.RunInfo().ID
		case "*":
			filter.RunID = ""
		}
		items, err := r.LatestEventsFrom(ctx, limit+1, cursorID, filter)
		if err != nil {
			return nil, handleError(err)
		}
		resp := paginatedEvents{Items: []EventResponse{}}
		if len(items) > limit {
			resp.NextCursor = fmt.Sprintf("%d", items[limit-1].ID)
			items = items[:limit]
		}
		for _, evt := range items {
			resp.Items = append(resp.Items, eventResponse(evt))
		}
		return &struct {
			Body paginatedEvents `json:"body"`
		}{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-runs",
		Method:      http.MethodGet,
		Path:        "/runs",
		Summary:     "List journaled runs",
		Errors:      []int{http.StatusServiceUnavailable},
	}, func(ctx context.Context, input *struct {
		Limit int `query:"limit" default:"50"`
	}) (*struct {
		Body RunList `json:"body"`
	}, error) {
		r, apiErr := h.journal()
		if apiErr != nil {
			return nil, apiErr
		}
		runs, err := r.ListRuns(ctx, normalizeLimit(input.Limit))
		if err != nil {
			return nil, handleError(err)
		}
		if runs == nil {
			runs = []domain.Run{}
		}
		return &struct {
			Body RunList `json:"body"`
		}{Body: RunList{Items: runs}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-run",
		Method:      http.MethodGet,
		Path:        "/runs/{id}",
		Summary:     "Get a run",
		Errors:      []int{http.StatusNotFound, http.StatusServiceUnavailable},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body domain.Run `json:"body"`
	}, error) {
		r, apiErr := h.journal()
		if apiErr != nil {
			return nil, apiErr
		}
		run, err := r.GetRun(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Run `json:"body"`
		}{Body: run}, nil
	})
}

func normalizeLimit(in int) int {
	if in <= 0 {
		return 50
	}
	if in > 200 {
		return 200
	}
	return in
}
