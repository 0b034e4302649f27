package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"officesim/internal/app"
	"officesim/internal/config"
	"officesim/internal/domain"
	"officesim/internal/logger"
	"officesim/internal/office"
	"officesim/internal/repo"
	"officesim/internal/server"
)

// speeds are the accepted simulated minutes per step.
var speeds = map[int]bool{1: true, 10: true, 100: true}

func runCmd() *cobra.Command {
	var steps, minutes, speed int
	var pace time.Duration
	var label string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the simulation headless and print a summary",
		Long:  "Each step advances the clock by --minutes. --speed picks a preset multiplier (1, 10 or 100 minutes per step) and wins over --minutes. --pace sleeps between steps.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("speed") {
				if !speeds[speed] {
					return fmt.Errorf("invalid --speed %d (want 1, 10 or 100)", speed)
				}
				minutes = speed
			}
			if steps <= 0 || minutes <= 0 {
				return fmt.Errorf("--steps and --minutes must be positive")
			}
			s, err := openSession(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer s.Close()
			runner, err := buildRunner(cmd.Context(), s, label)
			if err != nil {
				return err
			}
			if !viper.GetBool("json") {
				runner.OnTick(func(sum domain.TickSummary) {
					if sum.DayEnded {
						fmt.Printf("%s  day ended, %d tasks waiting\n", sum.Clock, sum.PoolSize)
					}
					for _, id := range sum.Activated {
						fmt.Printf("%s  scenario %s activated\n", sum.Clock, id)
					}
				})
			}
			ctx := cmd.Context()
			for i := 0; i < steps; i++ {
				if _, err := runner.Step(ctx, minutes); err != nil {
					return err
				}
				if pace > 0 {
					select {
					case <-ctx.Done():
						i = steps
					case <-time.After(pace):
					}
				}
			}
			snap := runner.Snapshot()
			if viper.GetBool("json") {
				return printJSON(snap)
			}
			printWorkers(snap)
			fmt.Printf("%s  weather %s  average productivity %.2f  run %s\n",
				snap.Clock, snap.Weather, snap.AverageProductivity, runner.RunInfo().ID)
			return nil
		},
	}
	cmd.Flags().IntVar(&steps, "steps", 600, "number of steps")
	cmd.Flags().IntVar(&minutes, "minutes", 1, "simulated minutes per step")
	cmd.Flags().IntVar(&speed, "speed", 1, "speed multiplier in minutes per step: 1, 10 or 100")
	cmd.Flags().DurationVar(&pace, "pace", 0, "real time to wait between steps")
	cmd.Flags().StringVar(&label, "label", "", "label stored with the run")
	return cmd
}

func printWorkers(snap domain.Snapshot) {
	tw := newTable()
	tw.AppendHeader(table.Row{"Name", "Role", "Personality", "State", "Room", "Mood", "Done", "Failed"})
	for _, w := range snap.Workers {
		tw.AppendRow(table.Row{w.Name, w.Role, w.Personality, w.State, w.CurrentRoom,
			fmt.Sprintf("%.2f", w.Mood), len(w.CompletedTasks), len(w.FailedTasks)})
	}
	tw.Render()
}

func layoutCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "layout",
		Short: "Print the floor plan generated for the seed",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			rooms := office.NewGenerator().Generate(cfg.Simulation.Seed)
			if viper.GetBool("json") {
				views := make([]domain.RoomView, 0, len(rooms))
				for _, r := range rooms {
					views = append(views, office.RoomView(r))
				}
				return printJSON(views)
			}
			tw := newTable()
			tw.AppendHeader(table.Row{"ID", "Type", "X", "Y", "Width", "Height"})
			for _, r := range rooms {
				tw.AppendRow(table.Row{r.ID, r.Type, r.X, r.Y, r.Width, r.Height})
			}
			tw.Render()
			return nil
		},
	}
	return cmd
}

func scenarioCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scenario",
		Short: "Inspect and fire scenarios",
		Long:  "Scenarios live under scenarios.dir; the first subdirectory names the type (random scenarios roll during ticks).",
	}
	cmd.AddCommand(scenarioListCmd())
	cmd.AddCommand(scenarioCheckCmd())
	cmd.AddCommand(scenarioActivateCmd())
	return cmd
}

func scenarioListCmd() *cobra.Command {
	var scenarioType string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List loaded scenarios",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			reg, err := app.LoadRegistry(cfg, logger.New(cfg.Logging))
			if err != nil {
				return err
			}
			items := reg.All()
			if scenarioType != "" {
				items = reg.ByType(scenarioType)
			}
			if viper.GetBool("json") {
				return printJSON(items)
			}
			tw := newTable()
			tw.AppendHeader(table.Row{"ID", "Type", "Name", "Probability", "Tasks"})
			for _, sc := range items {
				prob := ""
				if sc.Type == "random" {
					prob = fmt.Sprintf("%.2f", sc.ActivationProbability())
				}
				tw.AppendRow(table.Row{sc.ID, sc.Type, sc.DisplayName(), prob, len(sc.Tasks)})
			}
			tw.Render()
			return nil
		},
	}
	cmd.Flags().StringVar(&scenarioType, "type", "", "filter by type")
	return cmd
}

func scenarioCheckCmd() *cobra.Command {
	var advance int
	cmd := &cobra.Command{
		Use:   "check <id>",
		Short: "Report whether a scenario's requirements hold",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer s.Close()
			runner, err := buildRunner(cmd.Context(), s, "")
			if err != nil {
				return err
			}
			if advance > 0 {
				if _, err := runner.Advance(cmd.Context(), advance, 1); err != nil {
					return err
				}
			}
			var (
				known, eligible bool
				clock           string
			)
			runner.View(func(sim *office.Simulation) {
				_, known = sim.Registry().Get(args[0])
				eligible = sim.EvaluateScenario(args[0])
				clock = sim.ClockString()
			})
			if !known {
				return fmt.Errorf("scenario %q: %w", args[0], office.ErrUnknownScenario)
			}
			if viper.GetBool("json") {
				return printJSON(map[string]any{"id": args[0], "clock": clock, "eligible": eligible})
			}
			fmt.Printf("%s at %s: eligible=%t\n", args[0], clock, eligible)
			return nil
		},
	}
	cmd.Flags().IntVar(&advance, "advance", 0, "simulated minutes to run before checking")
	return cmd
}

func scenarioActivateCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "activate <id>",
		Short: "Fire a scenario in a fresh simulation and show the tasks it creates",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer s.Close()
			runner, err := buildRunner(cmd.Context(), s, "activate "+args[0])
			if err != nil {
				return err
			}
			ids, err := runner.Activate(cmd.Context(), args[0], force)
			if err != nil {
				return err
			}
			var tasks []domain.TaskView
			runner.View(func(sim *office.Simulation) {
				for _, id := range ids {
					if t, ok := sim.Task(id); ok {
						tasks = append(tasks, sim.TaskView(t))
					}
				}
			})
			if viper.GetBool("json") {
				return printJSON(tasks)
			}
			tw := newTable()
			tw.AppendHeader(table.Row{"ID", "Name", "Duration", "Success", "Role", "Assigned", "Pool"})
			for _, t := range tasks {
				tw.AppendRow(table.Row{t.ID, t.Name, t.Duration, fmt.Sprintf("%.2f", t.SuccessRate), t.RequiredRole, t.AssignedTo, t.InPool})
			}
			tw.Render()
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "activate even when the requirements do not hold")
	return cmd
}

func logCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "log",
		Short: "Event journal",
		Long:  "Everything the simulation did: assignments, completions, failures, room events, scenario activations.",
	}
	cmd.AddCommand(logTailCmd())
	cmd.AddCommand(logRunsCmd())
	return cmd
}

func logTailCmd() *cobra.Command {
	var n int
	var runID, evtType, entityKind, entityID string
	var day int
	var follow bool
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events of a run (latest run by default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				if runID == "" {
					run, err := r.LatestRun(ctx)
					if err != nil {
						return fmt.Errorf("no runs journaled: %w", err)
					}
					runID = run.ID
				}
				filter := repo.EventFilter{RunID: runID, Type: evtType, EntityKind: entityKind, EntityID: entityID, Day: day}
				events, err := r.LatestEvents(ctx, n, filter)
				if err != nil {
					return err
				}
				// newest first from the query; print oldest first
				for i, j := 0, len(events)-1; i < j; i, j = i+1, j-1 {
					events[i], events[j] = events[j], events[i]
				}
				if err := printEvents(events); err != nil {
					return err
				}
				if !follow {
					return nil
				}
				cursor, err := r.LatestEventID(ctx, runID)
				if err != nil {
					return err
				}
				ticker := time.NewTicker(time.Second)
				defer ticker.Stop()
				for {
					select {
					case <-ctx.Done():
						return nil
					case <-ticker.C:
					}
					fresh, err := r.EventsAfter(ctx, 100, cursor, filter)
					if err != nil {
						return err
					}
					if len(fresh) == 0 {
						continue
					}
					cursor = fresh[len(fresh)-1].ID
					if err := printEvents(fresh); err != nil {
						return err
					}
				}
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	cmd.Flags().StringVar(&runID, "run", "", "run id")
	cmd.Flags().StringVar(&evtType, "type", "", "event type filter")
	cmd.Flags().StringVar(&entityKind, "entity-kind", "", "entity kind")
	cmd.Flags().StringVar(&entityID, "entity-id", "", "entity id")
	cmd.Flags().IntVar(&day, "day", 0, "simulated day")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "keep polling for new events")
	return cmd
}

func printEvents(events []domain.Event) error {
	if viper.GetBool("json") {
		return printJSON(events)
	}
	tw := newTable()
	tw.AppendHeader(table.Row{"ID", "Day", "Time", "Type", "Entity", "Payload"})
	for _, e := range events {
		tw.AppendRow(table.Row{e.ID, e.Day, fmt.Sprintf("%02d:%02d", e.Minute/60, e.Minute%60),
			e.Type, strings.TrimPrefix(e.EntityKind+"/"+e.EntityID, "/"), e.Payload})
	}
	tw.Render()
	return nil
}

func logRunsCmd() *cobra.Command {
	var n int
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List journaled runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				runs, err := r.ListRuns(ctx, n)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(runs)
				}
				tw := newTable()
				tw.AppendHeader(table.Row{"ID", "Started", "Seed", "Workers", "Label", "Events"})
				for _, run := range runs {
					counts, err := r.CountEventsByType(ctx, run.ID)
					if err != nil {
						return err
					}
					total := 0
					for _, c := range counts {
						total += c
					}
					tw.AppendRow(table.Row{run.ID, run.StartedAt, run.Seed, run.Workers, run.Label, total})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of runs")
	return cmd
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage officesim.yml",
	}
	cmd.AddCommand(configInitCmd())
	cmd.AddCommand(configShowCmd())
	return cmd
}

func configInitCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default officesim.yml into the workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return err
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault(viper.GetUint64("seed"))), 0o644); err != nil {
				return err
			}
			fmt.Println("wrote", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

func configShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the effective config after overrides",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Server.JWTSecret != "" {
				cfg.Server.JWTSecret = "***"
			}
			if viper.GetBool("json") {
				return printJSON(cfg)
			}
			out, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			fmt.Print(string(out))
			return nil
		},
	}
	return cmd
}

func tokenCmd() *cobra.Command {
	var subject string
	var roles []string
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for the API's mutating operations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Server.JWTSecret == "" {
				return fmt.Errorf("server.jwt_secret or OFFICESIM_JWT_SECRET is required")
			}
			token, err := server.IssueToken(cfg.Server.JWTSecret, subject, roles, ttl)
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(map[string]string{"token": token})
			}
			fmt.Println(token)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "operator", "token subject")
	cmd.Flags().StringSliceVar(&roles, "role", nil, "roles claim")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}
