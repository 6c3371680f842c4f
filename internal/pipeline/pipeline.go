// Package pipeline wires the stages together: load, gap analysis,
// corpus scan, filtering, extraction, matching, merge, save.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/tripstitch/tripstitch/internal/config"
	"github.com/tripstitch/tripstitch/internal/extract"
	"github.com/tripstitch/tripstitch/internal/filter"
	"github.com/tripstitch/tripstitch/internal/gap"
	"github.com/tripstitch/tripstitch/internal/itinerary"
	"github.com/tripstitch/tripstitch/internal/mailbox"
	"github.com/tripstitch/tripstitch/internal/match"
	"github.com/tripstitch/tripstitch/internal/merge"
	"github.com/tripstitch/tripstitch/internal/report"
)

// Options is everything a run needs, resolved from config.
type Options struct {
	CSVPath   string
	EmailDir  string
	VocabPath string
	OutputDir string // defaults to the CSV's directory

	Client  extract.Completer
	Batcher extract.BatcherConfig

	LookbackMonths int
	LookaheadDays  int

	// Now is injectable for deterministic output filenames in tests.
	Now func() time.Time
}

// FromConfig builds run options from resolved configuration. The
// extraction client is constructed here so the API key never leaves
// the config layer except into the HTTP Authorization header.
func FromConfig(cfg config.ResolvedConfig) (Options, error) {
	clientCfg := extract.ClientConfig{
		Endpoint:    cfg.Endpoint.Value,
		Model:       cfg.Model.Value,
		APIKey:      cfg.APIKey.Value,
		TimeoutSecs: cfg.TimeoutSecs.Int(0),
	}
	if clientCfg.Endpoint == "" {
		clientCfg.Endpoint = "https://api.openai.com/v1/chat/completions"
	}
	if clientCfg.Model == "" {
		clientCfg.Model = "gpt-4o-mini"
	}
	if err := clientCfg.Validate(); err != nil {
		return Options{}, err
	}

	batcher := extract.DefaultBatcherConfig()
	batcher.BatchSize = cfg.BatchSize.Int(batcher.BatchSize)
	batcher.BodyBudget = cfg.BodyBudget.Int(batcher.BodyBudget)
	batcher.MaxRetries = cfg.MaxRetries.Int(batcher.MaxRetries)
	batcher.Concurrency = cfg.Concurrency.Int(batcher.Concurrency)
	if secs := cfg.InterBatchSecs.Int(0); secs > 0 {
		batcher.InterBatchDelay = time.Duration(secs) * time.Second
	}

	return Options{
		CSVPath:        cfg.CSVPath.Value,
		EmailDir:       cfg.EmailDir.Value,
		VocabPath:      cfg.Vocab.Value,
		Client:         extract.NewClient(clientCfg),
		Batcher:        batcher,
		LookbackMonths: cfg.LookbackMonths.Int(12),
		LookaheadDays:  cfg.LookaheadDays.Int(7),
		Now:            time.Now,
	}, nil
}

// Run executes the full reconstruction pipeline and returns the run
// report. The itinerary file is never modified; results go to a fresh
// timestamped CSV.
func Run(ctx context.Context, opts Options) (*report.RunReport, error) {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	rep := &report.RunReport{
		RunID:     uuid.NewString(),
		StartedAt: opts.Now(),
	}

	store, loadResult, err := itinerary.Load(opts.CSVPath)
	if err != nil {
		return nil, err
	}
	rep.LegsLoaded = store.Len()
	rep.RowsDropped = len(loadResult.Dropped)

	gaps, err := gap.Analyze(store.Legs())
	if err != nil {
		return nil, err
	}
	rep.Incongruent = gap.DetectIncongruentEvents(store.Legs())

	if len(gaps) == 0 {
		rep.FinishedAt = opts.Now()
		return rep, nil
	}

	docs, scan, err := scanCorpus(ctx, opts.EmailDir)
	if err != nil {
		return nil, err
	}
	rep.EmailsScanned = scan.FilesParsed

	vocab, err := filter.LoadVocabulary(opts.VocabPath)
	if err != nil {
		return nil, err
	}
	keyworded := filter.NewKeywordFilter(vocab).Apply(docs, gaps)
	rep.EmailsKeyword = len(keyworded)

	temporal := &filter.TemporalFilter{
		LookbackMonths: opts.LookbackMonths,
		LookaheadDays:  opts.LookaheadDays,
	}
	windowed := temporal.Apply(keyworded, gaps)
	rep.EmailsTemporal = len(windowed)

	batcher := extract.NewBatcher(opts.Client, opts.Batcher)
	out := batcher.Run(ctx, windowed, gaps)
	rep.BatchesTotal = out.BatchesTotal
	rep.BatchesFailed = len(out.FailedBatches)
	rep.Candidates = len(out.Candidates)
	rep.Malformed = len(out.Malformed)
	if out.PermanentError != nil {
		return rep, fmt.Errorf("extraction stopped: %w", out.PermanentError)
	}

	matched := match.NewMatcher().Match(gaps, out.Candidates)
	outcome := merge.NewMerger(store).Apply(matched)

	rep.Gaps = gapReports(gaps, matched, outcome, len(out.FailedBatches) > 0)

	outDir := opts.OutputDir
	if outDir == "" {
		outDir = filepath.Dir(opts.CSVPath)
	}
	outPath := filepath.Join(outDir, itinerary.OutputFilename(opts.Now()))
	if err := store.Save(outPath); err != nil {
		return rep, err
	}
	rep.OutputFile = outPath
	rep.FinishedAt = opts.Now()
	return rep, nil
}

// GapsOnly analyzes the itinerary without touching the email corpus or
// the API.
func GapsOnly(csvPath string, now func() time.Time) (*report.RunReport, error) {
	if now == nil {
		now = time.Now
	}
	rep := &report.RunReport{RunID: uuid.NewString(), StartedAt: now()}

	store, loadResult, err := itinerary.Load(csvPath)
	if err != nil {
		return nil, err
	}
	rep.LegsLoaded = store.Len()
	rep.RowsDropped = len(loadResult.Dropped)

	gaps, err := gap.Analyze(store.Legs())
	if err != nil {
		return nil, err
	}
	rep.Incongruent = gap.DetectIncongruentEvents(store.Legs())

	for _, g := range gaps {
		rep.Gaps = append(rep.Gaps, report.GapReport{Gap: g, Outcome: report.OutcomeOpen})
	}
	rep.FinishedAt = now()
	return rep, nil
}

func scanCorpus(ctx context.Context, dir string) ([]mailbox.EmailDocument, mailbox.ScanResult, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, mailbox.ScanResult{}, fmt.Errorf("email directory %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, mailbox.ScanResult{}, fmt.Errorf("email directory %s: not a directory", dir)
	}
	scanner := &mailbox.Scanner{}
	return scanner.Scan(ctx, dir)
}

// gapReports assigns each gap its final outcome. A gap that stayed
// open when batches failed transiently is reported retries-exhausted
// rather than no-evidence, since the evidence may simply never have
// been extracted.
func gapReports(gaps []gap.Gap, matched match.Result, outcome merge.Outcome, hadFailedBatches bool) []report.GapReport {
	rejected := map[int]bool{}
	for _, rej := range outcome.Rejected {
		rejected[rej.GapNumber] = true
	}

	sources := map[int][]string{}
	for _, ins := range outcome.Inserted {
		sources[ins.GapNumber] = append(sources[ins.GapNumber], ins.Leg.SourceFile)
	}

	filled := map[int]bool{}
	for _, res := range matched.Resolutions {
		if res.Filled() {
			filled[res.Gap.Number] = true
		}
	}

	reports := make([]report.GapReport, 0, len(gaps))
	for _, g := range gaps {
		gr := report.GapReport{Gap: g}
		switch {
		case outcome.GapsFixed[g.Number]:
			gr.Outcome = report.OutcomeFilled
			gr.Sources = sources[g.Number]
		case rejected[g.Number] || filled[g.Number]:
			gr.Outcome = report.OutcomeRejected
		case hadFailedBatches:
			gr.Outcome = report.OutcomeRetriesExhausted
		default:
			gr.Outcome = report.OutcomeNoEvidence
		}
		reports = append(reports, gr)
	}
	return reports
}
