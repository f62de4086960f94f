// Package sources turns the workspace layout and configuration into the
// ordered list of files the aggregator and importer read.
package sources

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"go.uber.org/zap"

	"github.com/harrisonrobin/taskview/pkg/config"
	"github.com/harrisonrobin/taskview/pkg/model"
	"github.com/harrisonrobin/taskview/pkg/util"
)

// Layout describes the built-in files of a workspace.
type Layout struct {
	Root        string
	Files       []string // root-relative, always scanned
	ProjectsDir string   // every regular file directly inside is scanned
}

// DefaultLayout is the standard workspace rooted at root.
func DefaultLayout(root string) Layout {
	return Layout{
		Root: root,
		Files: []string{
			config.DefaultTodayFile,
			"02.2_tomorrow",
			"02.3_next_week",
			"03_in_progress",
		},
		ProjectsDir: "projects",
	}
}

type Outcome string

const (
	Included    Outcome = "included"
	Skipped     Outcome = "skipped"
	Duplicate   Outcome = "duplicate"
	MatchedZero Outcome = "matched-zero"
)

// Entry is one line of the resolution log.
type Entry struct {
	Spec    model.SourceSpec
	Outcome Outcome
	Reason  string
}

// Resolution is the outcome of Resolve.
type Resolution struct {
	Root     string
	Included []model.SourceSpec
	Entries  []Entry
}

// DisplayID is the identifier shown for a source in reports.
func (r *Resolution) DisplayID(spec model.SourceSpec) string {
	return util.DisplayPath(r.Root, spec.Path)
}

// MarkSkipped downgrades an included source, e.g. after it failed to parse.
func (r *Resolution) MarkSkipped(path, reason string) {
	for i := range r.Entries {
		if r.Entries[i].Spec.Path == path && r.Entries[i].Outcome == Included {
			r.Entries[i].Outcome = Skipped
			r.Entries[i].Reason = reason
		}
	}
	kept := r.Included[:0]
	for _, spec := range r.Included {
		if spec.Path != path {
			kept = append(kept, spec)
		}
	}
	r.Included = kept
}

// Skipped returns the entries that were not included.
func (r *Resolution) Skipped() []Entry {
	var out []Entry
	for _, e := range r.Entries {
		if e.Outcome == Skipped {
			out = append(out, e)
		}
	}
	return out
}

type resolver struct {
	res    *Resolution
	seen   map[string]bool
	logger *zap.Logger
}

// Resolve builds the deterministic source list: built-ins, then extra files
// in listed order, then glob matches in lexical order. Missing files are
// recorded as skipped, never returned as errors.
func Resolve(layout Layout, cfg *config.Config, logger *zap.Logger) *Resolution {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg == nil {
		cfg = &config.Config{}
	}
	root := layout.Root
	if abs, err := filepath.Abs(root); err == nil {
		root = util.Canonical(abs)
	}
	r := &resolver{
		res:    &Resolution{Root: root},
		seen:   make(map[string]bool),
		logger: logger,
	}

	for _, rel := range layout.Files {
		r.addPath(rel, model.SourceSpec{Origin: model.OriginBuiltin, Pattern: rel})
	}
	if layout.ProjectsDir != "" {
		r.addProjects(layout)
	}
	for _, extra := range cfg.ExtraFiles {
		base := filepath.Base(extra)
		r.addPath(extra, model.SourceSpec{
			Origin:  model.OriginExtra,
			Pattern: extra,
			Alias:   strings.TrimSuffix(base, filepath.Ext(base)),
		})
	}
	for _, pattern := range cfg.GlobPatterns {
		r.addGlob(pattern)
	}

	logger.Debug("Resolved sources",
		zap.Int("included", len(r.res.Included)),
		zap.Int("entries", len(r.res.Entries)))
	return r.res
}

func (r *resolver) addProjects(layout Layout) {
	dir := filepath.Join(r.res.Root, layout.ProjectsDir)
	children, err := os.ReadDir(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			r.logger.Warn("Could not list projects directory", zap.String("path", dir), zap.Error(err))
		}
		return
	}
	// ReadDir sorts by name
	for _, child := range children {
		if child.IsDir() {
			continue
		}
		rel := filepath.Join(layout.ProjectsDir, child.Name())
		r.addPath(rel, model.SourceSpec{Origin: model.OriginBuiltin, Pattern: rel})
	}
}

func (r *resolver) addPath(raw string, spec model.SourceSpec) {
	abs, err := util.ExpandPath(r.res.Root, raw)
	if err != nil {
		spec.Path = raw
		r.record(spec, Skipped, err.Error())
		return
	}
	spec.Path = util.Canonical(abs)

	info, err := os.Stat(spec.Path)
	switch {
	case err != nil && os.IsNotExist(err):
		r.record(spec, Skipped, "missing file")
		return
	case err != nil:
		r.record(spec, Skipped, err.Error())
		return
	case !info.Mode().IsRegular():
		r.record(spec, Skipped, "not a regular file")
		return
	}
	if r.seen[spec.Path] {
		r.record(spec, Duplicate, "already listed")
		return
	}
	f, err := os.Open(spec.Path)
	if err != nil {
		r.record(spec, Skipped, "unreadable: "+err.Error())
		return
	}
	f.Close()

	r.seen[spec.Path] = true
	r.res.Included = append(r.res.Included, spec)
	r.record(spec, Included, "")
}

func (r *resolver) addGlob(pattern string) {
	expanded, err := util.ExpandPath(r.res.Root, pattern)
	spec := model.SourceSpec{Origin: model.OriginGlob, Pattern: pattern, Path: pattern}
	if err != nil {
		r.record(spec, Skipped, err.Error())
		return
	}
	if !doublestar.ValidatePathPattern(expanded) {
		r.record(spec, Skipped, "malformed glob pattern")
		return
	}

	matches, err := doublestar.FilepathGlob(expanded, doublestar.WithFilesOnly())
	if err != nil {
		r.record(spec, Skipped, fmt.Sprintf("glob failed: %v", err))
		return
	}
	sort.Strings(matches)
	if len(matches) == 0 {
		r.record(spec, MatchedZero, "no files matched")
		return
	}
	for _, match := range matches {
		r.addPath(match, model.SourceSpec{Origin: model.OriginGlob, Pattern: pattern})
	}
}

func (r *resolver) record(spec model.SourceSpec, outcome Outcome, reason string) {
	if outcome == Skipped {
		r.logger.Debug("Skipping source", zap.String("path", spec.Path), zap.String("reason", reason))
	}
	r.res.Entries = append(r.res.Entries, Entry{Spec: spec, Outcome: outcome, Reason: reason})
}
