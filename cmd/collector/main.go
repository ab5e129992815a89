package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/nats-io/nats.go"
	"github.com/pelletier/go-toml/v2"
	"github.com/urfave/cli/v3"

	"github.com/pif-course/collector/internal/dict"
	"github.com/pif-course/collector/internal/environment"
	"github.com/pif-course/collector/internal/gatherer/natsgath"
	"github.com/pif-course/collector/internal/gatherer/termgath"
	"github.com/pif-course/collector/internal/logging"
	"github.com/pif-course/collector/internal/merge"
	"github.com/pif-course/collector/internal/pipeline"
	"github.com/pif-course/collector/internal/record"
	"github.com/pif-course/collector/internal/source/classroom"
	"github.com/pif-course/collector/internal/tabstore"
)

func main() {
	cmd := &cli.Command{
		Name:  "collector",
		Usage: "collect, normalize and merge student submissions",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Value: "assignment.toml",
				Usage: "assignment run configuration",
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "enable debug logging",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "run the full pipeline and merge into the grade store",
				Action: runAction,
			},
			{
				Name:   "plan",
				Usage:  "show the merge plan from existing cohort snapshots without writing",
				Action: planAction,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "collector: %v\n", err)
		os.Exit(1)
	}
}

// runConfig is the per-assignment TOML run configuration.
type runConfig struct {
	Assignment string `toml:"assignment"`
	Dictionary string `toml:"dictionary"`
	Cohorts    []struct {
		Name         string `toml:"name"`
		CourseID     string `toml:"course_id"`
		CourseworkID string `toml:"coursework_id"`
	} `toml:"cohorts"`
}

func loadRunConfig(path string) (*runConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read run config: %w", err)
	}
	var cfg runConfig
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse run config: %w", err)
	}
	if cfg.Assignment == "" {
		return nil, fmt.Errorf("run config is missing the assignment name")
	}
	if cfg.Dictionary == "" {
		return nil, fmt.Errorf("run config is missing the dictionary path")
	}
	if len(cfg.Cohorts) == 0 {
		return nil, fmt.Errorf("run config lists no cohorts")
	}
	return &cfg, nil
}

func runAction(ctx context.Context, cmd *cli.Command) error {
	env, err := environment.ReadEnvConfig()
	if err != nil {
		return err
	}
	cfg, err := loadRunConfig(cmd.String("config"))
	if err != nil {
		return err
	}
	d, err := dict.Parse(cfg.Dictionary)
	if err != nil {
		return err
	}

	log := logging.New(cmd.Bool("debug"))
	runID := uuid.NewString()

	var gath pipeline.ProgressGatherer = termgath.New()
	if env.NatsURL != "" {
		nc, err := nats.Connect(env.NatsURL)
		if err != nil {
			return fmt.Errorf("failed to connect to NATS: %w", err)
		}
		defer nc.Close()
		gath = natsgath.New(nc, runID, env.NatsSubject)
	}

	src := classroom.New(env.SourceBaseURL, env.SourceToken)
	runner := pipeline.NewRunner(src, d, gath, env.DownloadsRoot, log)

	store, err := openStore(env, cfg, d)
	if err != nil {
		return err
	}
	defer store.Close()

	if _, _, err := runner.Run(ctx, cfg.Assignment, cohortSpecs(cfg), store); err != nil {
		return err
	}
	if err := store.RefreshTotals(ctx); err != nil {
		return err
	}

	return printSummary(env, cfg)
}

func planAction(ctx context.Context, cmd *cli.Command) error {
	env, err := environment.ReadEnvConfig()
	if err != nil {
		return err
	}
	cfg, err := loadRunConfig(cmd.String("config"))
	if err != nil {
		return err
	}
	d, err := dict.Parse(cfg.Dictionary)
	if err != nil {
		return err
	}

	var cohorts []*record.CohortResult
	for _, c := range cfg.Cohorts {
		snapshot := filepath.Join(env.DownloadsRoot, cfg.Assignment, c.Name, "students.json")
		records, err := record.LoadSnapshot(snapshot)
		if err != nil {
			return fmt.Errorf("cohort %s has no snapshot yet, run the pipeline first: %w", c.Name, err)
		}
		cohorts = append(cohorts, &record.CohortResult{Cohort: c.Name, Records: records})
	}

	records, err := merge.Aggregate(cohorts)
	if err != nil {
		return err
	}

	store, err := openStore(env, cfg, d)
	if err != nil {
		return err
	}
	defer store.Close()

	existing, err := store.Rows(ctx)
	if err != nil {
		return err
	}
	plan := merge.BuildPlan(existing, records, d.MaxID())

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"action", "login", "delivered", "late", "format"})
	for _, row := range plan.Inserts {
		t.AppendRow(table.Row{"insert", row.Login, row.Delivered, row.LateDays, row.FormatOk})
	}
	for _, u := range plan.Updates {
		t.AppendRow(table.Row{"update", u.Login, u.Delivered, u.LateDays, u.FormatOk})
	}
	t.Render()
	return nil
}

func openStore(env *environment.EnvConfig, cfg *runConfig, d *dict.Dictionary) (*tabstore.SQLiteStore, error) {
	if err := os.MkdirAll(env.StoreDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	path := filepath.Join(env.StoreDir, cfg.Assignment+".db")
	return tabstore.OpenSQLite(path, d.MaxID(), d.Weights())
}

func cohortSpecs(cfg *runConfig) []pipeline.CohortSpec {
	specs := make([]pipeline.CohortSpec, 0, len(cfg.Cohorts))
	for _, c := range cfg.Cohorts {
		specs = append(specs, pipeline.CohortSpec{
			Name:         c.Name,
			CourseID:     c.CourseID,
			CourseworkID: c.CourseworkID,
		})
	}
	return specs
}

func printSummary(env *environment.EnvConfig, cfg *runConfig) error {
	snapshot := filepath.Join(env.DownloadsRoot, cfg.Assignment, "students_final.json")
	records, err := record.LoadSnapshot(snapshot)
	if err != nil {
		return err
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"login", "name", "delivered", "late", "format", "comment"})
	for _, r := range records {
		t.AppendRow(table.Row{r.Login, r.Name, r.Delivered, r.LateDays, r.FormatOk, r.Comment})
	}
	t.Render()
	return nil
}
