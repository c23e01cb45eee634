// Command efile files a completed return against the (simulated) filing
// authority and tracks its lifecycle through acceptance or rejection.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/tashiscool/UsTaxes-sub000/internal/ack"
	"github.com/tashiscool/UsTaxes-sub000/internal/authority"
	"github.com/tashiscool/UsTaxes-sub000/internal/config"
	"github.com/tashiscool/UsTaxes-sub000/internal/migrate"
	"github.com/tashiscool/UsTaxes-sub000/internal/model"
	"github.com/tashiscool/UsTaxes-sub000/internal/orchestrator"
	"github.com/tashiscool/UsTaxes-sub000/internal/storage"
	pgstore "github.com/tashiscool/UsTaxes-sub000/internal/storage/postgres"
	"github.com/tashiscool/UsTaxes-sub000/internal/tracker"
	"github.com/tashiscool/UsTaxes-sub000/internal/validation"
	"github.com/tashiscool/UsTaxes-sub000/internal/xmlsig"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

func usage() {
	fmt.Fprintf(os.Stderr, `efile transmission engine
Usage:
  efile [-config file.toml] <cmd> [args]

Commands:
  version
  file    -return <return.toml>      prepare, validate, sign, submit, poll
  status  -id <submissionID>         print record state and history
  list                               list tracked submissions
  retry   -id <submissionID>         requeue an errored submission
  rm      -id <submissionID>         delete a tracked submission
`)
	os.Exit(2)
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(1)
}

// main loads configuration, wires the storage backend and dispatches
// subcommands.
func main() {
	cfgPath := flag.String("config", "", "TOML config file (optional)")
	flag.Usage = usage
	flag.Parse()
	if flag.NArg() < 1 {
		usage()
	}
	cmd := flag.Arg(0)

	logger, _ := zap.NewProduction()
	defer func() { _ = logger.Sync() }()

	cfg := config.Default()
	if *cfgPath != "" {
		var err error
		cfg, err = config.Load(*cfgPath)
		if err != nil {
			fail(err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		fail(err)
	}
	defer closeStore()
	trk := tracker.New(store, logger)

	switch cmd {
	case "version":
		fmt.Printf("efile %s (%s)\n", version, buildDate)

	case "file":
		fs := flag.NewFlagSet("file", flag.ExitOnError)
		retPath := fs.String("return", "", "return TOML file")
		_ = fs.Parse(flag.Args()[1:])
		if *retPath == "" {
			fmt.Fprintln(os.Stderr, "need -return")
			os.Exit(1)
		}
		if err := runFile(ctx, cfg, logger, trk, *retPath); err != nil {
			fail(err)
		}

	case "status":
		id := idArg()
		rec, err := trk.Get(ctx, id)
		if err != nil {
			fail(err)
		}
		printRecord(rec)

	case "list":
		recs, err := trk.List(ctx)
		if err != nil {
			fail(err)
		}
		for _, rec := range recs {
			fmt.Printf("%s  %d %s  %-9s  %s\n",
				rec.SubmissionID, rec.TaxYear, rec.FormType, rec.State, rec.TaxpayerName)
		}

	case "retry":
		id := idArg()
		rec, err := trk.Retry(ctx, id)
		if err != nil {
			fail(err)
		}
		fmt.Printf("%s requeued (retry %d of %d)\n", rec.SubmissionID, rec.RetryCount, tracker.MaxRetries)

	case "rm":
		id := idArg()
		if err := trk.Delete(ctx, id); err != nil {
			fail(err)
		}
		fmt.Println("deleted", id)

	default:
		usage()
	}
}

func idArg() string {
	fs := flag.NewFlagSet("id", flag.ExitOnError)
	id := fs.String("id", "", "submission id")
	_ = fs.Parse(flag.Args()[1:])
	if *id == "" {
		fmt.Fprintln(os.Stderr, "need -id")
		os.Exit(1)
	}
	return *id
}

// openStore builds the configured storage backend, optionally sealed.
func openStore(ctx context.Context, cfg config.Config) (storage.Store, func(), error) {
	var (
		store   storage.Store
		cleanup = func() {}
	)
	switch cfg.Storage {
	case "memory":
		store = storage.NewMemory()
	case "sqlite":
		s, err := storage.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		store, cleanup = s, func() { _ = s.Close() }
	case "postgres":
		if err := migrate.Up(ctx, cfg.PostgresDSN); err != nil {
			return nil, nil, fmt.Errorf("migrate up: %w", err)
		}
		s, err := pgstore.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		store, cleanup = s, s.Close
	}
	key, err := cfg.SealKey()
	if err != nil {
		return nil, nil, err
	}
	if key != nil {
		sealed, err := storage.NewSealed(store, key)
		if err != nil {
			return nil, nil, err
		}
		store = sealed
	}
	return store, cleanup, nil
}

// runFile drives the full pipeline for one return and records every
// lifecycle transition in the tracker.
func runFile(ctx context.Context, cfg config.Config, logger *zap.Logger, trk *tracker.Tracker, retPath string) error {
	src, identity, sig, err := loadReturnFile(retPath)
	if err != nil {
		return err
	}

	key, cert, err := xmlsig.GenerateKeyAndCert("UsTaxes E-File " + cfg.ETIN)
	if err != nil {
		return fmt.Errorf("generate signing key: %w", err)
	}

	sim := authority.NewSimulated(authority.SimConfig{
		JWTKey:        []byte(cfg.Secret + "-session"),
		AckAfterPolls: cfg.SimAckAfterPolls,
		RejectNth:     cfg.SimRejectNth,
	}, logger)
	sim.RegisterTransmitter(cfg.ETIN, cfg.Secret)

	orch := orchestrator.New(orchestrator.Config{
		ETIN:         cfg.ETIN,
		EFIN:         cfg.EFIN,
		Secret:       cfg.Secret,
		SoftwareID:   cfg.SoftwareID,
		Sign:         xmlsig.Options{PrivateKey: key, Certificate: cert},
		PollAttempts: cfg.PollAttempts,
		PollInterval: time.Duration(cfg.PollIntervalMS) * time.Millisecond,
	}, validation.NewEngine(logger), sim, logger)

	orch.SetProgress(func(step model.EFileStep, msg string, pct int) {
		fmt.Fprintf(os.Stderr, "[%3d%%] %-10s %s\n", pct, step, msg)
	})

	res := orch.EFile(ctx, src, identity, sig)

	// Record the lifecycle. Artifacts exist only as far as the pipeline got.
	if res.Signed != nil {
		name, ssn := src.PrimaryTaxpayer()
		if _, err := trk.Track(ctx, res.Signed.Submission, name, ssn); err != nil {
			return err
		}
		subID := res.Signed.Submission.SubmissionID
		if res.Submit != nil && res.Submit.Success {
			if _, err := trk.UpdateStatus(ctx, subID, model.StateSubmitted, "transmitted to authority"); err != nil {
				return err
			}
			if _, err := trk.UpdateStatus(ctx, subID, model.StatePending, "awaiting acknowledgment"); err != nil {
				return err
			}
			if res.Ack != nil && !res.Ack.Pending {
				if _, err := trk.SetAcknowledgment(ctx, &res.Ack.Processed.Ack); err != nil {
					return err
				}
			}
		} else if res.Submit != nil {
			if _, err := trk.RecordError(ctx, subID, res.Submit.ErrorMessage); err != nil {
				return err
			}
		}
	}

	// Report.
	switch {
	case res.Validation != nil && !res.Validation.Valid:
		fmt.Printf("validation failed: %d error(s), %d warning(s)\n",
			len(res.Validation.Errors), len(res.Validation.Warnings))
		for i, v := range res.Validation.Errors {
			fmt.Printf("%d. [%s/%s] %s\n", i+1, v.RuleID, v.Category, v.Message)
			if v.Suggestion != "" {
				fmt.Printf("   - %s\n", v.Suggestion)
			}
		}
	case res.Ack != nil && res.Ack.Processed != nil:
		fmt.Print(ack.Summary(res.Ack.Processed))
	case res.ErrorMessage != "":
		fmt.Println("filing stopped:", res.ErrorMessage)
	default:
		fmt.Println("submission pending; check status later")
	}
	return nil
}

func printRecord(rec *model.SubmissionRecord) {
	fmt.Printf("Submission %s\n", rec.SubmissionID)
	fmt.Printf("Taxpayer: %s (%s)\n", rec.TaxpayerName, rec.MaskedSSN)
	fmt.Printf("Form %s, tax year %d\n", rec.FormType, rec.TaxYear)
	fmt.Printf("State: %s (retries: %d)\n", rec.State, rec.RetryCount)
	if rec.ErrorMessage != "" {
		fmt.Printf("Last error: %s\n", rec.ErrorMessage)
	}
	fmt.Println("History:")
	for _, h := range rec.History {
		fmt.Printf("  %s  %-9s  %s\n", h.At.Format(time.RFC3339), h.State, h.Detail)
	}
	if rec.Ack != nil {
		fmt.Printf("Acknowledgment: %s", rec.Ack.Status)
		if rec.Ack.ConfirmationNumber != "" {
			fmt.Printf(" (confirmation %s)", rec.Ack.ConfirmationNumber)
		}
		fmt.Println()
		for _, e := range rec.Ack.Errors {
			r := ack.ErrorResolution(e.Code)
			fmt.Printf("  [%s] %s\n", e.Code, r.Message)
		}
	}
}
