package office

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	"officesim/internal/domain"
	"officesim/internal/scenario"
	"officesim/internal/weather"
)

const (
	minutesPerDay = 24 * 60

	defaultTaskDuration    = 30
	defaultTaskSuccessRate = 0.8

	minDailyTasks = 5
	maxDailyTasks = 15
)

// WeatherProvider is the condition source consulted by scenario checks.
type WeatherProvider interface {
	Update(absMinutes int)
	Current() weather.Condition
}

// Options configure a Simulation. Start from DefaultOptions.
type Options struct {
	Seed uint64
	// Rand overrides the stream derived from Seed.
	Rand     Rand
	Registry *scenario.Registry
	// Weather overrides the seasonal provider.
	Weather         WeatherProvider
	WeatherInterval int
	Logger          *slog.Logger
	Catalog         []TaskTemplate

	DayStart                 int // minutes after midnight
	DayEnd                   int
	InitialTasks             int
	ScenarioCheckProbability float64

	// CalendarStart is the date of day 1. It drives scenario weekdays and
	// the weather season.
	CalendarStart time.Time
	// WallClock gates scenarios on Now instead of the simulated clock.
	WallClock bool
	Now       func() time.Time

	// RecordEvents buffers journal events for DrainEvents.
	RecordEvents bool
}

func DefaultOptions() Options {
	return Options{
		WeatherInterval:          weather.DefaultInterval,
		Catalog:                  DefaultCatalog,
		DayStart:                 8 * 60,
		DayEnd:                   18 * 60,
		InitialTasks:             20,
		ScenarioCheckProbability: 0.05,
		CalendarStart:            time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
		Now:                      time.Now,
	}
}

// TickReport lists what changed during one tick.
type TickReport struct {
	DayEnded  bool
	Completed []string
	Failed    []string
	Assigned  []string
	Activated []string
}

// Simulation owns every room, worker and task. Cross references between
// them are ids into these collections.
type Simulation struct {
	opts     Options
	rng      Rand
	log      *slog.Logger
	registry *scenario.Registry
	weather  WeatherProvider
	layout   Generator

	minute int
	day    int

	rooms    []*Room
	roomByID map[string]*Room
	workers  map[string]*Worker
	roster   []string
	tasks    map[string]*Task
	order    []string
	pool     []string

	seq    uint64
	events []domain.Event
}

func New(opts Options) *Simulation {
	if opts.Rand == nil {
		opts.Rand = NewRand(opts.Seed)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Registry == nil {
		opts.Registry = scenario.NewRegistry(opts.Logger)
	}
	if len(opts.Catalog) == 0 {
		opts.Catalog = DefaultCatalog
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.CalendarStart.IsZero() {
		opts.CalendarStart = DefaultOptions().CalendarStart
	}
	s := &Simulation{
		opts:     opts,
		rng:      opts.Rand,
		log:      opts.Logger,
		registry: opts.Registry,
		layout:   NewGenerator(),
		minute:   opts.DayStart,
		day:      1,
		roomByID: map[string]*Room{},
		workers:  map[string]*Worker{},
		tasks:    map[string]*Task{},
	}
	s.weather = opts.Weather
	if s.weather == nil {
		s.weather = weather.New(s.rng, opts.WeatherInterval, func() time.Month { return s.Date().Month() })
	}
	return s
}

// Initialize builds the floor plan, the roster and the initial task pool.
// workerCount regular workers start in random offices; one security guard
// starts at reception.
func (s *Simulation) Initialize(workerCount int) {
	s.rooms = s.layout.Generate(s.opts.Seed)
	s.roomByID = make(map[string]*Room, len(s.rooms))
	for _, r := range s.rooms {
		s.roomByID[r.ID] = r
	}
	s.workers = map[string]*Worker{}
	s.roster = nil
	s.tasks = map[string]*Task{}
	s.order = nil
	s.pool = nil

	offices := s.roomsOfType(RoomOffice)
	for i := 0; i < workerCount; i++ {
		dept := Departments[s.rng.IntN(len(Departments))]
		role := regularRoles[s.rng.IntN(len(regularRoles))]
		w := NewWorker(s.newID("worker"), fmt.Sprintf("Worker-%d", i+1), dept, role, s.rng)
		if len(offices) > 0 {
			w.placeIn(offices[s.rng.IntN(len(offices))], s.rng)
		}
		s.addWorker(w)
	}

	guard := NewWorker(s.newID("worker"), "Security", DeptSupport, RoleSecurity, s.rng)
	if reception := s.firstRoomOfType(RoomReception); reception != nil {
		guard.placeIn(reception, s.rng)
	}
	s.addWorker(guard)

	s.generateTasks(s.opts.InitialTasks)
	s.log.Info("simulation initialized",
		"seed", s.opts.Seed, "rooms", len(s.rooms), "workers", len(s.roster), "tasks", len(s.pool))
}

// Tick advances the simulation by elapsed minutes. Workers advance before
// assignment, assignment precedes occupancy, occupancy precedes scenarios.
func (s *Simulation) Tick(elapsed int) TickReport {
	var rep TickReport

	s.minute += elapsed
	if s.minute >= s.opts.DayEnd {
		s.minute = s.opts.DayStart
		s.day++
		s.endDay()
		s.generateTasks(intBetween(s.rng, minDailyTasks, maxDailyTasks))
		rep.DayEnded = true
		s.emit("day.ended", "office", "", map[string]any{"pool": len(s.pool)})
	}
	before := s.weather.Current()
	s.weather.Update((s.day-1)*minutesPerDay + s.minute)
	if now := s.weather.Current(); now != before {
		s.emit("weather.changed", "office", "", map[string]any{"from": before, "to": now})
	}

	for _, id := range s.roster {
		w := s.workers[id]
		task := s.tasks[w.CurrentTask]
		switch w.Tick(elapsed, task, s.rng) {
		case OutcomeCompleted:
			rep.Completed = append(rep.Completed, task.ID)
			s.emit("task.completed", "task", task.ID, map[string]any{"worker": w.ID, "name": task.Name})
		case OutcomeFailed:
			rep.Failed = append(rep.Failed, task.ID)
			s.emit("task.failed", "task", task.ID, map[string]any{"worker": w.ID, "name": task.Name, "fail_event": task.FailEvent})
		}
	}

	for _, id := range s.roster {
		w := s.workers[id]
		if w.State() != StateIdle || w.IsSecurity() {
			continue
		}
		if t := s.tryAssign(w); t != nil {
			rep.Assigned = append(rep.Assigned, t.ID)
		}
	}

	s.reconcileOccupancy()

	if s.rng.Float64() < s.opts.ScenarioCheckProbability {
		rep.Activated = s.CheckRandomScenarios()
	}
	return rep
}

// Step runs one tick followed by the follow-ups a driver loop performs:
// failure handling and the morning recall.
func (s *Simulation) Step(elapsed int) TickReport {
	rep := s.Tick(elapsed)
	for _, id := range rep.Failed {
		s.HandleFailedTask(id)
	}
	if s.minute == s.opts.DayStart {
		s.StartDay()
	}
	return rep
}

// StartDay recalls every off-duty regular worker into a random office.
func (s *Simulation) StartDay() {
	offices := s.roomsOfType(RoomOffice)
	if len(offices) == 0 {
		return
	}
	recalled := 0
	for _, id := range s.roster {
		w := s.workers[id]
		if w.IsSecurity() || w.AtOffice {
			continue
		}
		w.EnterOffice(offices[s.rng.IntN(len(offices))], s.rng)
		recalled++
	}
	if recalled > 0 {
		s.emit("day.started", "office", "", map[string]any{"workers": recalled})
	}
}

// HandleFailedTask records the failure event in the assignee's room and
// queues a cleanup task for known events. Each failure is handled once.
func (s *Simulation) HandleFailedTask(id string) bool {
	t := s.tasks[id]
	if t == nil || t.Status != StatusFailed || t.FailEvent == "" || t.handled {
		return false
	}
	w := s.workers[t.AssignedTo]
	if w == nil {
		return false
	}
	room := s.roomByID[w.CurrentRoom]
	if room == nil {
		s.log.Debug("fail event dropped, assignee outside every room", "event", t.FailEvent, "task", t.ID, "worker", w.ID)
		return false
	}
	t.handled = true
	room.AddEvent(t.FailEvent)
	s.emit("room.event", "room", room.ID, map[string]any{"event": t.FailEvent, "task": t.ID})
	if tpl, ok := CleanupFor(t.FailEvent); ok {
		cleanup := s.AddTask(tpl)
		s.log.Debug("cleanup queued", "event", t.FailEvent, "task", cleanup.ID, "room", room.ID)
	}
	return true
}

// AddTask creates a task from tpl and puts it in the pool.
func (s *Simulation) AddTask(tpl TaskTemplate) *Task {
	t := NewTask(s.newID("task"), tpl)
	s.addTask(t)
	s.pool = append(s.pool, t.ID)
	return t
}

// AverageProductivity is the mean productivity of on-duty workers.
func (s *Simulation) AverageProductivity() float64 {
	total, n := 0, 0
	for _, id := range s.roster {
		if w := s.workers[id]; w.AtOffice {
			total += w.Productivity
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return float64(total) / float64(n)
}

// Conditions is the state scenario requirements are evaluated against.
func (s *Simulation) Conditions() scenario.Conditions {
	c := scenario.Conditions{
		Minute:              s.minute,
		Weekday:             mondayFirst(s.Date().Weekday()),
		Weather:             string(s.weather.Current()),
		AverageProductivity: s.AverageProductivity(),
	}
	if s.opts.WallClock {
		now := s.opts.Now()
		c.Minute = now.Hour()*60 + now.Minute()
		c.Weekday = mondayFirst(now.Weekday())
	}
	return c
}

// EvaluateScenario reports whether a registered scenario may fire now.
func (s *Simulation) EvaluateScenario(id string) bool {
	return s.registry.Evaluate(id, s.Conditions())
}

// CheckRandomScenarios rolls once for every eligible random scenario and
// returns the ids that fired.
func (s *Simulation) CheckRandomScenarios() []string {
	c := s.Conditions()
	var fired []string
	for _, sc := range s.registry.ByType(scenario.TypeRandom) {
		if !sc.Requirements.Satisfied(c) {
			continue
		}
		if s.rng.Float64() <= sc.ActivationProbability() {
			s.activate(sc)
			fired = append(fired, sc.ID)
		}
	}
	return fired
}

// ActivateScenario materializes the scenario's tasks and returns their ids.
// A scenario whose requirements do not hold creates nothing.
func (s *Simulation) ActivateScenario(id string) ([]string, error) {
	sc, err := s.lookupScenario(id)
	if err != nil {
		return nil, err
	}
	if !sc.Requirements.Satisfied(s.Conditions()) {
		s.log.Info("scenario requirements not met", "scenario", id)
		return nil, fmt.Errorf("activate %q: %w", id, ErrRequirementsUnmet)
	}
	return s.activate(sc), nil
}

// ForceActivateScenario is ActivateScenario without the requirements check.
func (s *Simulation) ForceActivateScenario(id string) ([]string, error) {
	sc, err := s.lookupScenario(id)
	if err != nil {
		return nil, err
	}
	return s.activate(sc), nil
}

func (s *Simulation) lookupScenario(id string) (scenario.Scenario, error) {
	sc, ok := s.registry.Get(id)
	if !ok {
		s.log.Warn("activate unknown scenario", "scenario", id)
		return scenario.Scenario{}, fmt.Errorf("activate %q: %w", id, ErrUnknownScenario)
	}
	return sc, nil
}

func (s *Simulation) activate(sc scenario.Scenario) []string {
	s.log.Info("scenario activated", "scenario", sc.ID, "name", sc.DisplayName())
	created := make([]string, 0, len(sc.Tasks))
	for _, spec := range sc.Tasks {
		created = append(created, s.materialize(sc.ID, spec).ID)
	}
	s.emit("scenario.activated", "scenario", sc.ID, map[string]any{"tasks": created})
	return created
}

func (s *Simulation) materialize(scenarioID string, spec scenario.TaskSpec) *Task {
	spec = s.registry.Resolve(spec)

	id := spec.ID
	if id == "" || s.tasks[id] != nil {
		for {
			id = fmt.Sprintf("%s_%d", scenarioID, intBetween(s.rng, 1000, 9999))
			if s.tasks[id] == nil {
				break
			}
		}
	}
	tpl := TaskTemplate{
		Name:        "Task " + id,
		Duration:    defaultTaskDuration,
		SuccessRate: defaultTaskSuccessRate,
	}
	if spec.Name != nil {
		tpl.Name = *spec.Name
	}
	if spec.Description != nil {
		tpl.Description = *spec.Description
	}
	if spec.Duration != nil {
		tpl.Duration = *spec.Duration
	}
	if spec.SuccessRate != nil {
		tpl.SuccessRate = *spec.SuccessRate
	}
	if spec.RequiredRole != nil {
		tpl.RequiredRole = Role(*spec.RequiredRole)
	}
	if spec.FailEvent != nil {
		tpl.FailEvent = *spec.FailEvent
	}
	t := NewTask(id, tpl)
	s.addTask(t)

	var candidates []*Worker
	if spec.Assignees != nil {
		for _, ref := range spec.Assignees {
			w := s.lookupWorker(ref)
			if w == nil {
				s.log.Warn("scenario assignee not found", "scenario", scenarioID, "worker", ref)
				continue
			}
			candidates = append(candidates, w)
		}
	} else {
		n := 1
		if spec.RandomAssignees != nil {
			n = *spec.RandomAssignees
		}
		candidates = s.sampleOnDuty(n)
	}
	for _, w := range candidates {
		if w.AssignTask(t) {
			s.sendToDestination(w, t)
			s.emit("task.assigned", "task", t.ID, map[string]any{"worker": w.ID, "scenario": scenarioID})
			return t
		}
	}
	s.pool = append(s.pool, t.ID)
	return t
}

// lookupWorker resolves an assignee by id, then by display name.
func (s *Simulation) lookupWorker(ref string) *Worker {
	if w := s.workers[ref]; w != nil {
		return w
	}
	for _, id := range s.roster {
		if w := s.workers[id]; w.Name == ref {
			return w
		}
	}
	return nil
}

// sampleOnDuty draws up to n on-duty workers without replacement.
func (s *Simulation) sampleOnDuty(n int) []*Worker {
	var present []*Worker
	for _, id := range s.roster {
		if w := s.workers[id]; w.AtOffice {
			present = append(present, w)
		}
	}
	n = min(n, len(present))
	for i := 0; i < n; i++ {
		j := i + s.rng.IntN(len(present)-i)
		present[i], present[j] = present[j], present[i]
	}
	return present[:n]
}

func (s *Simulation) tryAssign(w *Worker) *Task {
	var eligible []*Task
	for _, id := range s.pool {
		if t := s.tasks[id]; t.CanBeAssignedTo(w) {
			eligible = append(eligible, t)
		}
	}
	if len(eligible) == 0 {
		return nil
	}
	t := eligible[s.rng.IntN(len(eligible))]
	if !w.AssignTask(t) {
		return nil
	}
	s.removeFromPool(t.ID)
	s.sendToDestination(w, t)
	s.emit("task.assigned", "task", t.ID, map[string]any{"worker": w.ID})
	return t
}

func (s *Simulation) sendToDestination(w *Worker, t *Task) {
	rooms := s.roomsOfType(DestinationFor(t.Name))
	if len(rooms) == 0 {
		return
	}
	x, y := rooms[s.rng.IntN(len(rooms))].RandomInteriorPoint(s.rng)
	w.SetTarget(float64(x), float64(y))
}

// endDay sends regular workers home, returning their in-flight tasks to the
// pool, and points security at the corridor.
func (s *Simulation) endDay() {
	corridor := s.firstRoomOfType(RoomCorridor)
	for _, id := range s.roster {
		w := s.workers[id]
		if w.IsSecurity() {
			if corridor != nil {
				x, y := corridor.RandomInteriorPoint(s.rng)
				w.SetTarget(float64(x), float64(y))
			}
			continue
		}
		held := s.tasks[w.CurrentTask]
		w.LeaveOffice(held, s.roomByID[w.CurrentRoom])
		if held != nil && held.Status == StatusPending {
			s.pool = append(s.pool, held.ID)
		}
	}
}

func (s *Simulation) reconcileOccupancy() {
	for _, id := range s.roster {
		w := s.workers[id]
		var here *Room
		for _, r := range s.rooms {
			if r.ContainsPoint(w.X, w.Y) {
				here = r
				break
			}
		}
		hereID := ""
		if here != nil {
			hereID = here.ID
		}
		if hereID == w.CurrentRoom {
			continue
		}
		if prev := s.roomByID[w.CurrentRoom]; prev != nil {
			prev.RemoveOccupant(w)
		}
		if here != nil {
			here.AddOccupant(w)
		}
	}
}

func (s *Simulation) generateTasks(n int) {
	for i := 0; i < n; i++ {
		s.AddTask(s.opts.Catalog[s.rng.IntN(len(s.opts.Catalog))])
	}
}

func (s *Simulation) addWorker(w *Worker) {
	s.workers[w.ID] = w
	s.roster = append(s.roster, w.ID)
}

func (s *Simulation) addTask(t *Task) {
	s.tasks[t.ID] = t
	s.order = append(s.order, t.ID)
}

func (s *Simulation) removeFromPool(id string) {
	if i := slices.Index(s.pool, id); i >= 0 {
		s.pool = slices.Delete(s.pool, i, i+1)
	}
}

func (s *Simulation) roomsOfType(t RoomType) []*Room {
	var out []*Room
	for _, r := range s.rooms {
		if r.Type == t {
			out = append(out, r)
		}
	}
	return out
}

func (s *Simulation) firstRoomOfType(t RoomType) *Room {
	for _, r := range s.rooms {
		if r.Type == t {
			return r
		}
	}
	return nil
}

// newID derives a stable id from the seed so equal seeds give equal ids.
func (s *Simulation) newID(kind string) string {
	s.seq++
	name := fmt.Sprintf("%d|%s|%d", s.opts.Seed, kind, s.seq)
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(name)).String()
}

func (s *Simulation) emit(typ, kind, entityID string, payload map[string]any) {
	if !s.opts.RecordEvents {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		s.log.Error("marshal event payload", "type", typ, "error", err)
		data = []byte("{}")
	}
	s.events = append(s.events, domain.Event{
		Day:        s.day,
		Minute:     s.minute,
		Type:       typ,
		EntityKind: kind,
		EntityID:   entityID,
		Payload:    string(data),
	})
}

// DrainEvents returns buffered journal events and clears the buffer.
func (s *Simulation) DrainEvents() []domain.Event {
	out := s.events
	s.events = nil
	return out
}

func mondayFirst(d time.Weekday) int {
	return (int(d) + 6) % 7
}
