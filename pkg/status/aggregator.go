// Package status aggregates tagged tasks across the workspace and renders
// them grouped by status, source and section.
package status

import (
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/harrisonrobin/taskview/pkg/config"
	"github.com/harrisonrobin/taskview/pkg/model"
	"github.com/harrisonrobin/taskview/pkg/outline"
	"github.com/harrisonrobin/taskview/pkg/sources"
	"github.com/harrisonrobin/taskview/pkg/util"
)

// WriteError reports a persisted view that could not be written.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("could not write view %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// Aggregator reads every resolved source and renders status reports.
// It holds no state between runs: each call re-reads the files.
type Aggregator struct {
	layout sources.Layout
	cfg    *config.Config
	logger *zap.Logger
}

func NewAggregator(layout sources.Layout, cfg *config.Config, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg == nil {
		cfg = &config.Config{}
	}
	return &Aggregator{layout: layout, cfg: cfg, logger: logger}
}

// Snapshot is one scan of the workspace.
type Snapshot struct {
	Sources *sources.Resolution
	Records []model.TaskRecord
}

// Collect resolves and parses all sources. Unreadable or binary files are
// marked skipped on the resolution and never abort the scan. Configured view
// files are never read back, so persisting stays idempotent.
func (a *Aggregator) Collect() *Snapshot {
	res := sources.Resolve(a.layout, a.cfg, a.logger)
	snap := &Snapshot{Sources: res}

	for _, out := range a.cfg.StatusOutputs {
		if path, err := util.ExpandPath(res.Root, out.Path); err == nil {
			res.MarkSkipped(util.Canonical(path), "persisted view")
		}
	}

	included := append([]model.SourceSpec(nil), res.Included...)
	for _, spec := range included {
		records, err := outline.ParseFile(spec, res.DisplayID(spec))
		if err != nil {
			a.logger.Warn("Skipping unreadable source", zap.String("path", spec.Path), zap.Error(err))
			res.MarkSkipped(spec.Path, err.Error())
			continue
		}
		a.logger.Debug("Parsed source", zap.String("path", spec.Path), zap.Int("records", len(records)))
		snap.Records = append(snap.Records, records...)
	}
	return snap
}

// Render produces the grouped report for statuses (all non-transfer
// statuses when empty).
func (a *Aggregator) Render(statuses []model.Status) string {
	return RenderReport(a.Collect(), statuses)
}

// ListSources resolves sources without reading file contents.
func (a *Aggregator) ListSources() *sources.Resolution {
	return sources.Resolve(a.layout, a.cfg, a.logger)
}

// Persist writes every output as a whole-file replace. All outputs are
// attempted; failures are returned together.
func (a *Aggregator) Persist(outputs []model.OutputSpec) ([]string, error) {
	if len(outputs) == 0 {
		return nil, nil
	}
	snap := a.Collect()

	var written []string
	var errs error
	for _, out := range outputs {
		path, err := util.ExpandPath(a.layout.Root, out.Path)
		if err != nil {
			errs = multierr.Append(errs, &WriteError{Path: out.Path, Err: err})
			continue
		}
		content := RenderView(snap, out)
		if err := util.WriteFileAtomic(path, []byte(content)); err != nil {
			a.logger.Error("Failed to write view", zap.String("path", path), zap.Error(err))
			errs = multierr.Append(errs, &WriteError{Path: path, Err: err})
			continue
		}
		a.logger.Debug("Wrote view", zap.String("path", path), zap.String("title", out.Title))
		written = append(written, path)
	}
	return written, errs
}
