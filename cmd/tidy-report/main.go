// Command tidy-report scores a room from a JSON detection document, tracks
// recurring problem objects across runs and keeps an analysis history in a
// local SQLite database.
//
// Usage:
//
//	tidy-report -input detections.json
//	tidy-report -history 20
//	tidy-report -stats
//	tidy-report -tracks
//	tidy-report -reset-tracks
//	tidy-report -track-state tracker_state.json -input detections.json
//	tidy-report -version
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/banshee-data/tidy.report/internal/config"
	"github.com/banshee-data/tidy.report/internal/db"
	"github.com/banshee-data/tidy.report/internal/monitoring"
	"github.com/banshee-data/tidy.report/internal/tidy/pipeline"
	"github.com/banshee-data/tidy.report/internal/tidy/storage/sqlite"
	"github.com/banshee-data/tidy.report/internal/tidy/tracks"
	"github.com/banshee-data/tidy.report/internal/version"
)

const maxInputSize = 32 << 20

type options struct {
	input       string
	dbPath      string
	configPath  string
	trackState  string
	resetTracks bool
	history     int
	runID       string
	stats       bool
	tracks      bool
	logJSON     bool
	logLevel    string
	version     bool
}

func parseFlags(fs *flag.FlagSet, args []string) (*options, error) {
	o := &options{}
	fs.StringVar(&o.input, "input", "-", "Detection document to analyse (- for stdin)")
	fs.StringVar(&o.dbPath, "db", "tidy.db", "SQLite database path")
	fs.StringVar(&o.configPath, "config", "", "Tuning config JSON (empty for built-in defaults)")
	fs.StringVar(&o.trackState, "track-state", "", "JSON file for tracker state instead of the database")
	fs.BoolVar(&o.resetTracks, "reset-tracks", false, "Clear all tracked objects and exit")
	fs.IntVar(&o.history, "history", 0, "Print the N most recent analyses and exit")
	fs.StringVar(&o.runID, "get", "", "Print the stored analysis with this run id and exit")
	fs.BoolVar(&o.stats, "stats", false, "Print history and tracking statistics and exit")
	fs.BoolVar(&o.tracks, "tracks", false, "Print every tracked object and exit")
	fs.BoolVar(&o.logJSON, "log-json", false, "Emit logs as JSON")
	fs.StringVar(&o.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	fs.BoolVar(&o.version, "version", false, "Print version information and exit")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return o, nil
}

func main() {
	opts, err := parseFlags(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("failed to parse flags: %v", err)
	}
	if opts.version {
		fmt.Println(version.String("tidy-report"))
		return
	}

	logger, err := monitoring.NewZapLogger(opts.logLevel, opts.logJSON)
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer logger.Sync()
	monitoring.SetLogger(monitoring.ZapLogf(logger))
	monitoring.SetWarnLogger(monitoring.ZapWarnf(logger))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts, os.Stdin, os.Stdout); err != nil {
		logger.Errorf("tidy-report: %v", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, opts *options, stdin io.Reader, stdout io.Writer) error {
	tuning := config.EmptyTuningConfig()
	if opts.configPath != "" {
		var err error
		if tuning, err = config.LoadTuningConfig(opts.configPath); err != nil {
			return err
		}
	}

	database, err := db.Open(opts.dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer database.Close()

	history := sqlite.NewHistoryStore(database.DB)
	var trackStore tracks.Store = sqlite.NewTrackStore(database.DB)
	if opts.trackState != "" {
		trackStore = tracks.NewFileStore(nil, opts.trackState)
	}

	switch {
	case opts.history > 0:
		recent, err := history.Recent(ctx, opts.history)
		if err != nil {
			return err
		}
		return writeJSON(stdout, recent)

	case opts.runID != "":
		rec, err := history.Get(ctx, opts.runID)
		if err != nil {
			return err
		}
		return writeJSON(stdout, rec)
	}

	tracker := tracks.NewTracker(ctx, tracks.TrackerConfigFromTuning(tuning), trackStore, nil)

	switch {
	case opts.resetTracks:
		if err := tracker.Reset(ctx); err != nil {
			return fmt.Errorf("reset tracks: %w", err)
		}
		return writeJSON(stdout, map[string]string{"status": "tracks reset"})

	case opts.tracks:
		return writeJSON(stdout, tracker.GetAllTracks())

	case opts.stats:
		hs, err := history.Statistics(ctx)
		if err != nil {
			return err
		}
		return writeJSON(stdout, struct {
			History  sqlite.HistoryStats `json:"history"`
			Tracking tracks.Statistics   `json:"tracking"`
		}{hs, tracker.GetStatistics()})
	}

	in, err := readInput(opts.input, stdin)
	if err != nil {
		return err
	}

	analyzer := pipeline.NewAnalyzer(pipeline.Options{
		Tuning:  tuning,
		Tracker: tracker,
		History: history,
	})
	return writeJSON(stdout, analyzer.Analyze(ctx, *in))
}

func readInput(path string, stdin io.Reader) (*pipeline.Input, error) {
	r := stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open input: %w", err)
		}
		defer f.Close()
		r = f
	}

	var in pipeline.Input
	dec := json.NewDecoder(io.LimitReader(r, maxInputSize))
	if err := dec.Decode(&in); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("input document is empty")
		}
		return nil, fmt.Errorf("decode input: %w", err)
	}
	return &in, nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
