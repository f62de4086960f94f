package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/harrisonrobin/taskview/pkg/model"
)

const (
	FileName         = "task_sources.json"
	DefaultTodayFile = "02.1_today.txt"
)

// Config is the decoded task_sources.json document.
type Config struct {
	ExtraFiles    []string
	GlobPatterns  []string
	StatusOutputs []model.OutputSpec
	ImportTargets []model.ImportTarget
	TodayFile     string
	// Unknown holds top-level keys this version does not read.
	Unknown []string
}

// ConfigError reports a key whose value has the wrong shape.
type ConfigError struct {
	Path   string
	Key    string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("invalid config %s: %s", e.Path, e.Reason)
	}
	return fmt.Sprintf("invalid config %s: key %q: %s", e.Path, e.Key, e.Reason)
}

type outputEntry struct {
	Path     *string  `json:"path"`
	Title    string   `json:"title"`
	Statuses []string `json:"statuses"`
}

type targetEntry struct {
	Name             string            `json:"name"`
	Source           *string           `json:"source"`
	Section          string            `json:"section"`
	UseSourceSection bool              `json:"use_source_section"`
	Statuses         []string          `json:"statuses"`
	SectionMap       map[string]string `json:"section_map"`
	AllowDuplicates  bool              `json:"allow_duplicates"`
	TagStyle         string            `json:"tag_style"`
	NestHeadings     bool              `json:"nest_source_headings"`
}

// Load reads the configuration at path. A missing file yields an empty Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{TodayFile: DefaultTodayFile}, nil
		}
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	return Parse(path, data)
}

// Parse decodes and validates a configuration document. path is only used
// in error messages.
func Parse(path string, data []byte) (*Config, error) {
	cfg := &Config{TodayFile: DefaultTodayFile}
	if len(bytes.TrimSpace(data)) == 0 {
		return cfg, nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &ConfigError{Path: path, Reason: "document must be a JSON object: " + err.Error()}
	}

	keys := make([]string, 0, len(raw))
	for key := range raw {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		msg := raw[key]
		var err error
		switch key {
		case "extra_files":
			cfg.ExtraFiles, err = decodeStrings(path, key, msg)
		case "glob_patterns":
			cfg.GlobPatterns, err = decodeStrings(path, key, msg)
		case "status_outputs":
			cfg.StatusOutputs, err = decodeOutputs(path, msg)
		case "import_targets":
			cfg.ImportTargets, err = decodeTargets(path, msg)
		case "today_file":
			var s string
			if isNull(msg) {
				continue
			}
			if jerr := json.Unmarshal(msg, &s); jerr != nil || strings.TrimSpace(s) == "" {
				err = &ConfigError{Path: path, Key: key, Reason: "expected a non-empty string"}
			} else {
				cfg.TodayFile = strings.TrimSpace(s)
			}
		default:
			cfg.Unknown = append(cfg.Unknown, key)
		}
		if err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// FindTarget returns the import target with the given name.
func (c *Config) FindTarget(name string) (model.ImportTarget, bool) {
	for _, t := range c.ImportTargets {
		if t.Name == name {
			return t, true
		}
	}
	return model.ImportTarget{}, false
}

func isNull(msg json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(msg), []byte("null"))
}

func decodeStrings(path, key string, msg json.RawMessage) ([]string, error) {
	if isNull(msg) {
		return nil, nil
	}
	var out []string
	if err := json.Unmarshal(msg, &out); err != nil {
		return nil, &ConfigError{Path: path, Key: key, Reason: "expected an array of strings"}
	}
	return out, nil
}

func decodeOutputs(path string, msg json.RawMessage) ([]model.OutputSpec, error) {
	if isNull(msg) {
		return nil, nil
	}
	var entries []json.RawMessage
	if err := json.Unmarshal(msg, &entries); err != nil {
		return nil, &ConfigError{Path: path, Key: "status_outputs", Reason: "expected an array of objects"}
	}

	outputs := make([]model.OutputSpec, 0, len(entries))
	for i, entryMsg := range entries {
		key := fmt.Sprintf("status_outputs[%d]", i)
		var entry outputEntry
		if err := json.Unmarshal(entryMsg, &entry); err != nil {
			return nil, &ConfigError{Path: path, Key: key, Reason: "expected an object with path, title and statuses"}
		}
		if entry.Path == nil || strings.TrimSpace(*entry.Path) == "" {
			return nil, &ConfigError{Path: path, Key: key + ".path", Reason: "required"}
		}
		if entry.Statuses == nil {
			return nil, &ConfigError{Path: path, Key: key + ".statuses", Reason: "required"}
		}
		statuses, err := model.ParseStatusList(entry.Statuses)
		if err != nil {
			return nil, &ConfigError{Path: path, Key: key + ".statuses", Reason: err.Error()}
		}
		for _, s := range statuses {
			if s == model.Transfer {
				return nil, &ConfigError{Path: path, Key: key + ".statuses", Reason: "transfer cannot be persisted as a view"}
			}
		}
		if len(statuses) == 0 {
			statuses = model.DefaultStatuses()
		}
		title := strings.TrimSpace(entry.Title)
		if title == "" {
			title = defaultTitle(statuses)
		}
		outputs = append(outputs, model.OutputSpec{
			Path:     strings.TrimSpace(*entry.Path),
			Title:    title,
			Statuses: statuses,
		})
	}
	return outputs, nil
}

func decodeTargets(path string, msg json.RawMessage) ([]model.ImportTarget, error) {
	if isNull(msg) {
		return nil, nil
	}
	var entries []json.RawMessage
	if err := json.Unmarshal(msg, &entries); err != nil {
		return nil, &ConfigError{Path: path, Key: "import_targets", Reason: "expected an array of objects"}
	}

	targets := make([]model.ImportTarget, 0, len(entries))
	seen := make(map[string]bool)
	for i, entryMsg := range entries {
		key := fmt.Sprintf("import_targets[%d]", i)
		var entry targetEntry
		if err := json.Unmarshal(entryMsg, &entry); err != nil {
			return nil, &ConfigError{Path: path, Key: key, Reason: "expected an object with source and statuses"}
		}
		if entry.Source == nil || strings.TrimSpace(*entry.Source) == "" {
			return nil, &ConfigError{Path: path, Key: key + ".source", Reason: "required"}
		}
		if entry.Statuses == nil {
			return nil, &ConfigError{Path: path, Key: key + ".statuses", Reason: "required"}
		}
		statuses, err := model.ParseStatusList(entry.Statuses)
		if err != nil {
			return nil, &ConfigError{Path: path, Key: key + ".statuses", Reason: err.Error()}
		}

		source := strings.TrimSpace(*entry.Source)
		name := strings.TrimSpace(entry.Name)
		if name == "" {
			base := filepath.Base(source)
			name = strings.TrimSuffix(base, filepath.Ext(base))
		}
		if seen[name] {
			return nil, &ConfigError{Path: path, Key: key + ".name", Reason: fmt.Sprintf("duplicate target name %q", name)}
		}
		seen[name] = true

		tagStyle := model.TagStrip
		switch strings.ToLower(strings.TrimSpace(entry.TagStyle)) {
		case "", string(model.TagStrip):
		case string(model.TagKeep):
			tagStyle = model.TagKeep
		default:
			return nil, &ConfigError{Path: path, Key: key + ".tag_style", Reason: `expected "strip" or "keep"`}
		}

		strategy := model.SectionFixed
		if entry.UseSourceSection {
			strategy = model.SectionFromSource
		}
		section := strings.TrimSpace(entry.Section)
		if section == "" {
			section = model.DefaultImportSection
		}
		sectionMap := make(map[string]string, len(entry.SectionMap))
		for from, to := range entry.SectionMap {
			sectionMap[strings.TrimSpace(from)] = strings.TrimSpace(to)
		}

		targets = append(targets, model.ImportTarget{
			Name:            name,
			Source:          source,
			Strategy:        strategy,
			Section:         section,
			SectionMap:      sectionMap,
			Statuses:        statuses,
			AllowDuplicates: entry.AllowDuplicates,
			TagStyle:        tagStyle,
			NestHeadings:    entry.NestHeadings,
		})
	}
	return targets, nil
}

func defaultTitle(statuses []model.Status) string {
	labels := make([]string, len(statuses))
	for i, s := range statuses {
		labels[i] = s.Label()
	}
	return "Tasks: " + strings.Join(labels, ", ")
}
