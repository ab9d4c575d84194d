package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"chess-persona/engine"
	"chess-persona/match"
	"chess-persona/persona"
)

type runOptions struct {
	white       string
	black       string
	count       int
	engineTime  time.Duration
	maxMoves    int
	seed        int64
	csvPath     string
	outDir      string
	enginePath  string
	engineMode  string
	concurrency int
	overrides   string
	debug       bool
}

var runOpts runOptions

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Play a batch of games between two personas",
	Example: `  personasim run --white student --black ninja --count 10 --seed 42
  personasim run --white adept --black adept --concurrency 4 --csv results.csv`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBatch(cmd, runOpts, cmd.Flags().Changed("seed"))
	},
}

func init() {
	f := runCmd.Flags()
	f.StringVar(&runOpts.white, "white", "", "white persona name")
	f.StringVar(&runOpts.black, "black", "", "black persona name")
	f.IntVar(&runOpts.count, "count", 1, "number of games to run")
	f.DurationVar(&runOpts.engineTime, "engine-time", persona.DefaultEngineTime, "engine time per move")
	f.IntVar(&runOpts.maxMoves, "max-moves", 400, "max plies per game")
	f.Int64Var(&runOpts.seed, "seed", 0, "base RNG seed; games are replayable when set")
	f.StringVar(&runOpts.csvPath, "csv", "", "CSV summary path (default <outdir>/summary.csv)")
	f.StringVar(&runOpts.outDir, "outdir", filepath.Join("games", "tests"), "output directory for PGNs")
	f.StringVar(&runOpts.enginePath, "engine", "stockfish", "UCI engine binary")
	f.StringVar(&runOpts.engineMode, "mode", engine.ModeMultiPV, "engine mode: multipv or bestmove")
	f.IntVar(&runOpts.concurrency, "concurrency", 1, "games played in parallel, one engine each")
	f.StringVar(&runOpts.overrides, "overrides", "", "persona override JSON document to apply")
	f.BoolVar(&runOpts.debug, "debug", false, "log every move selection")
	_ = runCmd.MarkFlagRequired("white")
	_ = runCmd.MarkFlagRequired("black")
}

func runBatch(cmd *cobra.Command, opts runOptions, seeded bool) error {
	logger := zap.NewNop()
	if opts.debug {
		var err error
		if logger, err = zap.NewDevelopment(); err != nil {
			return err
		}
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	store := persona.NewDefaultStore(nil, logger)
	if opts.overrides != "" {
		doc, err := os.ReadFile(opts.overrides)
		if err != nil {
			return err
		}
		if err := store.ImportJSON(ctx, doc); err != nil {
			return fmt.Errorf("apply overrides: %w", err)
		}
	}

	pool, err := engine.OpenPool(ctx, opts.enginePath, opts.engineMode, opts.concurrency, logger)
	if err != nil {
		return fmt.Errorf("start engine: %w", err)
	}
	defer pool.Close()

	cfg := match.BatchConfig{
		SimulationConfig: match.SimulationConfig{
			White:      opts.white,
			Black:      opts.black,
			EngineTime: opts.engineTime,
			MaxMoves:   opts.maxMoves,
		},
		Count:       opts.count,
		Concurrency: opts.concurrency,
	}
	if seeded {
		seed := opts.seed
		cfg.Seed = &seed
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Running %s games: %s (white) vs %s (black)\n",
		humanize.Comma(int64(opts.count)), opts.white, opts.black)
	started := time.Now()

	results, summary, err := match.NewManager(store, pool, logger).RunBatch(ctx, cfg)
	if err != nil {
		if match.IsCanceled(err) {
			return fmt.Errorf("interrupted: %w", err)
		}
		return err
	}

	rows, written, err := savePGNs(opts.outDir, results, time.Now())
	if err != nil {
		return err
	}
	for i, r := range results {
		fmt.Fprintf(out, "  %s game finished: result=%s reason=%s moves=%d saved=%s\n",
			humanize.Ordinal(r.GameNumber), r.Result, r.Reason, len(r.Moves), rows[i].File)
	}

	csvPath := opts.csvPath
	if csvPath == "" {
		csvPath = filepath.Join(opts.outDir, "summary.csv")
	}
	if err := appendCSV(csvPath, rows); err != nil {
		return err
	}

	fmt.Fprintf(out, "\nWhite wins %d, Black wins %d, Draws %d, Unfinished %d, Errors %d\n",
		summary.WhiteWins, summary.BlackWins, summary.Draws, summary.Unfinished, summary.Errors)
	fmt.Fprintf(out, "%s plies, %s of PGN in %s, started %s\n",
		humanize.Comma(int64(summary.Plies)), humanize.Bytes(uint64(written)),
		time.Since(started).Round(time.Millisecond), humanize.Time(started))
	fmt.Fprintln(out, "Wrote CSV summary to", csvPath)
	return nil
}
