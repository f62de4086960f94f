// Package importer copies tagged lines from external files into the today
// file, under a destination section chosen per import target, skipping lines
// the today file already contains.
package importer

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/harrisonrobin/taskview/pkg/config"
	"github.com/harrisonrobin/taskview/pkg/model"
	"github.com/harrisonrobin/taskview/pkg/outline"
	"github.com/harrisonrobin/taskview/pkg/util"
)

// SourceResolutionError reports a required source file that does not exist.
type SourceResolutionError struct {
	Path string
}

func (e *SourceResolutionError) Error() string {
	return fmt.Sprintf("source not found: %s", e.Path)
}

// ImportError reports a failed import of one target.
type ImportError struct {
	Target string
	Err    error
}

func (e *ImportError) Error() string {
	return fmt.Sprintf("import %q: %v", e.Target, e.Err)
}

func (e *ImportError) Unwrap() error { return e.Err }

// Addition is one record planned for insertion.
type Addition struct {
	Section string
	Record  model.TaskRecord
}

// Result describes what an import did, or would do on a dry run.
type Result struct {
	Target      string
	Source      string
	Destination string
	Proposed    []Addition
	Duplicates  []model.TaskRecord
	Sections    []string // destination sections in first-seen order
	Matched     int      // records whose status was eligible
	Applied     bool
}

// Engine applies import targets to one destination file.
type Engine struct {
	root        string
	destination string
	extraFiles  []string
	logger      *zap.Logger
}

// NewEngine builds an engine for the workspace at root. The destination is
// cfg.TodayFile resolved against root.
func NewEngine(root string, cfg *config.Config, logger *zap.Logger) (*Engine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg == nil {
		cfg = &config.Config{}
	}
	todayFile := cfg.TodayFile
	if todayFile == "" {
		todayFile = config.DefaultTodayFile
	}
	dest, err := util.ExpandPath(root, todayFile)
	if err != nil {
		return nil, fmt.Errorf("could not resolve today file: %w", err)
	}
	return &Engine{
		root:        root,
		destination: dest,
		extraFiles:  cfg.ExtraFiles,
		logger:      logger,
	}, nil
}

// Destination returns the absolute path of the file imports write to.
func (e *Engine) Destination() string {
	return e.destination
}

// ResolveSource finds the file behind a target's source: a direct path
// first, then an extra_files entry whose base name or stem matches.
func (e *Engine) ResolveSource(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", &SourceResolutionError{Path: raw}
	}
	direct, err := util.ExpandPath(e.root, raw)
	if err != nil {
		return "", err
	}
	if isRegular(direct) {
		return direct, nil
	}
	for _, extra := range e.extraFiles {
		p, err := util.ExpandPath(e.root, extra)
		if err != nil || !isRegular(p) {
			continue
		}
		base := filepath.Base(p)
		if base == raw || strings.TrimSuffix(base, filepath.Ext(base)) == raw {
			return p, nil
		}
	}
	return "", &SourceResolutionError{Path: direct}
}

func isRegular(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// Import plans and, unless dryRun, applies one target. The destination is
// rewritten once, after the whole plan is known.
func (e *Engine) Import(target model.ImportTarget, dryRun bool) (*Result, error) {
	log := e.logger.With(zap.String("target", target.Name))
	fail := func(err error) (*Result, error) {
		return nil, &ImportError{Target: target.Name, Err: err}
	}

	srcPath, err := e.ResolveSource(target.Source)
	if err != nil {
		return fail(err)
	}
	result := &Result{Target: target.Name, Source: srcPath, Destination: e.destination}

	spec := model.SourceSpec{Path: srcPath, Origin: model.OriginExtra, Pattern: target.Source}
	records, err := outline.ParseFile(spec, util.DisplayPath(e.root, srcPath))
	if err != nil {
		return fail(err)
	}

	eligible := make(map[model.Status]bool)
	for _, s := range target.EffectiveStatuses() {
		eligible[s] = true
	}

	destLines, err := readDestination(e.destination)
	if err != nil {
		return fail(err)
	}
	existing := make(map[string]bool, len(destLines))
	for _, line := range destLines {
		if key := outline.Normalize(line); key != "" {
			existing[key] = true
		}
	}

	for _, r := range records {
		if !eligible[r.Status] {
			continue
		}
		result.Matched++
		key := outline.Normalize(r.Text)
		if key == "" {
			continue
		}
		if !target.AllowDuplicates {
			if existing[key] {
				result.Duplicates = append(result.Duplicates, r)
				continue
			}
			existing[key] = true
		}
		section := target.SectionFor(r)
		if !contains(result.Sections, section) {
			result.Sections = append(result.Sections, section)
		}
		result.Proposed = append(result.Proposed, Addition{Section: section, Record: r})
	}
	log.Debug("Planned import",
		zap.String("source", srcPath),
		zap.Int("matched", result.Matched),
		zap.Int("proposed", len(result.Proposed)),
		zap.Int("duplicates", len(result.Duplicates)))

	if dryRun || len(result.Proposed) == 0 {
		return result, nil
	}

	content := applyPlan(destLines, result, target, outline.ModeFor(e.destination))
	if err := util.WriteFileAtomic(e.destination, []byte(content)); err != nil {
		return fail(err)
	}
	result.Applied = true
	log.Info("Imported tasks",
		zap.String("destination", e.destination),
		zap.Int("inserted", len(result.Proposed)))
	return result, nil
}

// ImportAll runs every target in order. A failing target is logged and does
// not stop the ones after it; all failures are returned together.
func (e *Engine) ImportAll(targets []model.ImportTarget, dryRun bool) ([]*Result, error) {
	var results []*Result
	var errs error
	for _, t := range targets {
		res, err := e.Import(t, dryRun)
		if err != nil {
			e.logger.Warn("Import target failed", zap.String("target", t.Name), zap.Error(err))
			errs = multierr.Append(errs, err)
			continue
		}
		results = append(results, res)
	}
	return results, errs
}

func readDestination(path string) ([]string, error) {
	lines, err := outline.ReadLines(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	return lines, err
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
