// Package differ runs a whole comparison: index both roots, reconcile them,
// compare the common images, and write the report.
package differ

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"imdirdiff/artifacts"
	"imdirdiff/config"
	"imdirdiff/database"
	"imdirdiff/imageprocessor"
	"imdirdiff/logging"
	"imdirdiff/metrics"
	"imdirdiff/report"
	"imdirdiff/scanner"
	"imdirdiff/signalhandler"
	"imdirdiff/types"
	"imdirdiff/utils"
)

// Options defines one run
type Options struct {
	DirA    string
	DirB    string
	Config  *config.Config
	Out     io.Writer
	NoColor bool
	// Comparator overrides the backend selected by Config.Compare
	Comparator imageprocessor.Comparator
}

// Result is what a finished run produced
type Result struct {
	RunID      string
	RootA      string
	RootB      string
	Backend    string
	Manifest   types.Manifest
	Compared   int
	ReportPath string
	StartedAt  time.Time
	Elapsed    time.Duration
}

// Run executes the pipeline. The first error aborts it and no report is
// written.
func Run(ctx context.Context, opts Options) (*Result, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	if err := utils.CheckDir(opts.DirA); err != nil {
		return nil, err
	}
	if err := utils.CheckDir(opts.DirB); err != nil {
		return nil, err
	}

	comparator := opts.Comparator
	if comparator == nil {
		c, err := imageprocessor.NewComparator(cfg.Compare)
		if err != nil {
			return nil, err
		}
		comparator = c
	}

	for _, ext := range cfg.Index.NormalizedExtensions() {
		if !imageprocessor.CanLoad("image." + ext) {
			return nil, fmt.Errorf("%w: no loader for .%s images", imageprocessor.ErrDecode, ext)
		}
	}

	result := &Result{
		RunID:     database.NewRunID(),
		RootA:     opts.DirA,
		RootB:     opts.DirB,
		Backend:   comparator.Name(),
		StartedAt: time.Now(),
	}
	logging.LogInfo("run started", "run", result.RunID, "a", opts.DirA, "b", opts.DirB, "backend", result.Backend)

	indexOpts := scanner.IndexOptions{
		Extensions:     cfg.Index.NormalizedExtensions(),
		FollowSymlinks: true,
	}
	setA, err := scanner.IndexImages(opts.DirA, indexOpts)
	if err != nil {
		return nil, err
	}
	setB, err := scanner.IndexImages(opts.DirB, indexOpts)
	if err != nil {
		return nil, err
	}

	rec := scanner.Reconcile(setA, setB)
	logging.DebugLog("reconciled", "only_in_a", len(rec.OnlyInA), "only_in_b", len(rec.OnlyInB), "common", len(rec.Common))

	p := &pipeline{
		opts:     opts,
		cfg:      cfg,
		cmp:      comparator,
		store:    artifacts.NewStore(cfg.Report),
		printer:  NewPrinter(out, opts.NoColor),
		counters: metrics.NewRun(result.Backend),
	}

	var manifest types.Manifest
	for _, path := range rec.OnlyInA {
		r := types.OnlyInARecord{Path: path}
		if err := p.emitUnmatched(r, artifacts.SideA, opts.DirA); err != nil {
			return nil, err
		}
		manifest = append(manifest, r)
	}
	for _, path := range rec.OnlyInB {
		r := types.OnlyInBRecord{Path: path}
		if err := p.emitUnmatched(r, artifacts.SideB, opts.DirB); err != nil {
			return nil, err
		}
		manifest = append(manifest, r)
	}

	changed, err := p.compareAll(ctx, rec.Common)
	if err != nil {
		return nil, err
	}
	manifest = append(manifest, changed...)

	result.Manifest = manifest
	result.Compared = len(rec.Common)

	builder := report.NewBuilder(cfg.Report)
	reportPath, err := builder.Write(manifest, report.Meta{
		RootA:       opts.DirA,
		RootB:       opts.DirB,
		Backend:     result.Backend,
		GeneratedAt: time.Now(),
	})
	if err != nil {
		return nil, err
	}
	result.ReportPath = reportPath
	result.Elapsed = time.Since(result.StartedAt)

	if err := p.record(result); err != nil {
		return nil, err
	}

	var size int64
	if info, err := os.Stat(reportPath); err == nil {
		size = info.Size()
	}
	p.printer.Summary(Summary{
		Counts:     manifest.Counts(),
		Compared:   result.Compared,
		Elapsed:    result.Elapsed,
		ReportPath: reportPath,
		ReportSize: size,
	})

	logging.LogInfo("run finished", "run", result.RunID, "changed", manifest.Counts().Changed,
		"elapsed", result.Elapsed.String())
	return result, nil
}

type pipeline struct {
	opts     Options
	cfg      *config.Config
	cmp      imageprocessor.Comparator
	store    *artifacts.Store
	printer  *Printer
	counters *metrics.Run
}

func (p *pipeline) emitUnmatched(r types.DiffRecord, side artifacts.Side, root string) error {
	p.printer.Record(r)
	p.counters.ObserveRecord(r)

	if !p.cfg.Report.CopyUnmatched {
		return nil
	}
	src := filepath.Join(root, string(r.RelPath()))
	return p.store.CopySource(side, r.RelPath(), src)
}

// compareAll compares every common path and returns the changed records in
// the order of paths, whatever the number of workers.
func (p *pipeline) compareAll(ctx context.Context, paths []types.ImagePath) (types.Manifest, error) {
	workers := p.cfg.Compare.Workers
	if workers == 0 {
		workers = signalhandler.GetOptimalProcs()
	}

	found := make([]*types.ChangedRecord, len(paths))

	if workers <= 1 {
		for i, path := range paths {
			r, err := p.compareOne(ctx, path)
			if err != nil {
				return nil, err
			}
			found[i] = r
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(workers)

		var mu sync.Mutex
		for i, path := range paths {
			g.Go(func() error {
				r, err := p.compareOne(gctx, path)
				if err != nil {
					return err
				}
				mu.Lock()
				found[i] = r
				mu.Unlock()
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	var changed types.Manifest
	for _, r := range found {
		if r != nil {
			changed = append(changed, *r)
		}
	}
	return changed, nil
}

// compareOne scores one common path and stores its artifacts. It returns
// nil when the images are identical.
func (p *pipeline) compareOne(ctx context.Context, path types.ImagePath) (*types.ChangedRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// flip output and thumbnails are named by stem, shared by x.png and x.jpg
	unlock := p.store.Lock(path)
	defer unlock()

	diffDir, err := p.store.DiffDir(path)
	if err != nil {
		return nil, err
	}

	pair := imageprocessor.ImagePair{
		Rel:     path,
		PathA:   filepath.Join(p.opts.DirA, string(path)),
		PathB:   filepath.Join(p.opts.DirB, string(path)),
		DiffDir: diffDir,
	}

	outcome, err := p.cmp.Compare(ctx, pair)
	logging.LogCompared(string(path), scoreOf(outcome), err)
	if err != nil {
		return nil, fmt.Errorf("comparing %s: %w", path, err)
	}
	p.counters.ObserveComparison(outcome.Score)

	isChanged := outcome.Score < 1.0
	if !isChanged && p.cfg.Report.SkipUnchanged {
		return nil, nil
	}

	if err := p.store.CopySource(artifacts.SideA, path, pair.PathA); err != nil {
		return nil, err
	}
	if err := p.store.CopySource(artifacts.SideB, path, pair.PathB); err != nil {
		return nil, err
	}
	asset, err := p.store.SaveDiff(path, outcome)
	if err != nil {
		return nil, err
	}

	if !isChanged {
		return nil, nil
	}

	r := types.ChangedRecord{Path: path, Score: outcome.Score, DiffAsset: asset}
	p.printer.Record(r)
	p.counters.ObserveRecord(r)
	return &r, nil
}

// record stores the run in the history database and the metrics textfile
// when either is configured
func (p *pipeline) record(result *Result) error {
	p.counters.Finish(result.Elapsed, time.Now())

	if path := p.cfg.History.Database; path != "" {
		if err := storeHistory(path, result); err != nil {
			return err
		}
	}

	if path := p.cfg.Metrics.Textfile; path != "" {
		if err := p.counters.WriteTextfile(path); err != nil {
			return err
		}
	}
	return nil
}

func storeHistory(path string, result *Result) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating history directory: %w", err)
	}

	db, err := database.InitDatabase(path)
	if err != nil {
		return fmt.Errorf("opening run history: %w", err)
	}
	defer db.Close()

	run := database.Run{
		ID:         result.RunID,
		StartedAt:  result.StartedAt,
		Duration:   result.Elapsed,
		RootA:      result.RootA,
		RootB:      result.RootB,
		Backend:    result.Backend,
		ReportPath: result.ReportPath,
		Counts:     result.Manifest.Counts(),
	}
	return database.StoreRun(db, run, result.Manifest)
}

func scoreOf(outcome *types.ComparisonOutcome) float64 {
	if outcome == nil {
		return 0
	}
	return outcome.Score
}
