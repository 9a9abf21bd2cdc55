// Command features turns cleaned motion recordings into the feature table
// used to train the exercise classifier.
//
//	features -input data/interim/sets.csv -output data/features.csv
//	features -input store.db#readings -output store.db#features -db runs.db
//	features migrate -db runs.db up
//	features runs -db runs.db
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/banshee-data/motion.report/internal/config"
	"github.com/banshee-data/motion.report/internal/dataset"
	"github.com/banshee-data/motion.report/internal/db"
	"github.com/banshee-data/motion.report/internal/pipeline"
	"github.com/banshee-data/motion.report/internal/timeutil"
	"github.com/banshee-data/motion.report/internal/version"
)

type options struct {
	Input      string
	Output     string
	ConfigPath string
	LedgerPath string
	Workers    int
}

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "migrate":
			fs := flag.NewFlagSet("migrate", flag.ExitOnError)
			dbPath := fs.String("db", "runs.db", "path to the run ledger database")
			_ = fs.Parse(os.Args[2:])
			if err := db.RunMigrateCommand(os.Stdout, fs.Args(), *dbPath); err != nil {
				log.Fatalf("migrate: %v", err)
			}
			return
		case "runs":
			fs := flag.NewFlagSet("runs", flag.ExitOnError)
			dbPath := fs.String("db", "runs.db", "path to the run ledger database")
			limit := fs.Int("n", 20, "number of runs to show")
			_ = fs.Parse(os.Args[2:])
			if err := listRuns(context.Background(), os.Stdout, *dbPath, *limit); err != nil {
				log.Fatalf("runs: %v", err)
			}
			return
		}
	}

	var opts options
	flag.StringVar(&opts.Input, "input", "", "input table (.csv, or .db/.sqlite with optional #table)")
	flag.StringVar(&opts.Output, "output", "", "output table (.csv, .parquet, or .db/.sqlite with optional #table)")
	flag.StringVar(&opts.ConfigPath, "config", "", "pipeline config JSON (defaults built in)")
	flag.StringVar(&opts.LedgerPath, "db", "", "record the run in this SQLite ledger")
	flag.IntVar(&opts.Workers, "workers", -1, "segment workers, 0 for GOMAXPROCS (overrides config)")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}
	if opts.Input == "" || opts.Output == "" {
		log.Fatal("-input and -output are required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts, timeutil.RealClock{}); err != nil {
		log.Fatalf("features: %v", err)
	}
}

func loadConfig(opts options) (*config.PipelineConfig, error) {
	cfg := config.EmptyPipelineConfig()
	if opts.ConfigPath != "" {
		var err error
		if cfg, err = config.LoadPipelineConfig(opts.ConfigPath); err != nil {
			return nil, err
		}
	}
	if opts.Workers >= 0 {
		w := opts.Workers
		cfg.Workers = &w
	}
	return cfg, nil
}

// run executes one batch. With a ledger configured the run is recorded
// before the pipeline starts and finished whatever the outcome.
func run(ctx context.Context, opts options, clock timeutil.Clock) (err error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	p, err := pipeline.New(cfg, pipeline.WithClock(clock))
	if err != nil {
		return err
	}
	if d := cfg.GetRunTimeout(); d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	reader, err := dataset.Open(opts.Input, cfg.GetIndexColumn())
	if err != nil {
		return err
	}
	writer, err := dataset.Create(opts.Output)
	if err != nil {
		return err
	}

	in, err := reader.Read(ctx)
	if err != nil {
		return fmt.Errorf("read %s: %w", opts.Input, err)
	}
	log.Printf("loaded %d rows, %d columns from %s", in.Len(), len(in.Columns()), opts.Input)

	var ledger *db.DB
	var runRec *db.Run
	if opts.LedgerPath != "" {
		if ledger, err = db.NewDB(opts.LedgerPath); err != nil {
			return fmt.Errorf("open ledger: %w", err)
		}
		defer ledger.Close()

		params, err := json.Marshal(cfg)
		if err != nil {
			return err
		}
		runRec = &db.Run{
			StartedAt: clock.Now(),
			Input:     opts.Input,
			Output:    opts.Output,
			Params:    params,
			InputRows: in.Len(),
			Version:   version.Version,
		}
		if err := ledger.StartRun(ctx, runRec); err != nil {
			return err
		}
		log.Printf("run %s started", runRec.ID)
	}

	outputRows := 0
	defer func() {
		if ledger == nil {
			return
		}
		// The run context may be cancelled already.
		if ferr := ledger.FinishRun(context.Background(), runRec.ID, clock.Now(), outputRows, err); ferr != nil {
			log.Printf("failed to finish run %s: %v", runRec.ID, ferr)
		}
	}()

	out, rep, err := p.Run(ctx, in)
	if ledger != nil && rep != nil {
		if nerr := ledger.RecordNotices(context.Background(), runRec.ID, rep.Notices()); nerr != nil {
			log.Printf("failed to record notices: %v", nerr)
		}
	}
	if err != nil {
		return err
	}

	if err := writer.Write(ctx, out); err != nil {
		return fmt.Errorf("write %s: %w", opts.Output, err)
	}
	outputRows = out.Len()
	log.Printf("wrote %d rows, %d columns to %s (inertia %.4g, %d notices)",
		out.Len(), len(out.Columns()), opts.Output, rep.Inertia, len(rep.Notices()))
	return nil
}

func listRuns(ctx context.Context, w io.Writer, dbPath string, limit int) error {
	ledger, err := db.NewDB(dbPath)
	if err != nil {
		return err
	}
	defer ledger.Close()

	runs, err := ledger.ListRuns(ctx, limit)
	if err != nil {
		return err
	}
	for _, r := range runs {
		fmt.Fprintf(w, "%s  %s  %-9s  %s -> %s  rows %d/%d", r.ID,
			r.StartedAt.Format("2006-01-02T15:04:05Z07:00"), r.Status, r.Input, r.Output, r.InputRows, r.OutputRows)
		if r.Error != "" {
			fmt.Fprintf(w, "  error: %s", r.Error)
		}
		fmt.Fprintln(w)
	}
	return nil
}
