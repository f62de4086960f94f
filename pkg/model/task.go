package model

import (
	"fmt"
	"strings"
)

type Status string

const (
	InProgress Status = "in-progress"
	Blocked    Status = "blocked"
	Waiting    Status = "waiting"
	Delegated  Status = "delegated"
	Done       Status = "done"
	Transfer   Status = "transfer"
)

// StatusOrder is the display order used by reports. Transfer is last and
// excluded from DefaultStatuses.
var StatusOrder = []Status{InProgress, Blocked, Waiting, Delegated, Done, Transfer}

var tagStatuses = map[byte]Status{
	'i': InProgress,
	'b': Blocked,
	'w': Waiting,
	'd': Delegated,
	'x': Done,
	't': Transfer,
}

var statusLabels = map[Status]string{
	InProgress: "In Progress",
	Blocked:    "Blocked",
	Waiting:    "Waiting",
	Delegated:  "Delegated",
	Done:       "Completed",
	Transfer:   "Transfer",
}

var statusAliases = map[string]Status{
	"b":           Blocked,
	"block":       Blocked,
	"blocked":     Blocked,
	"i":           InProgress,
	"ip":          InProgress,
	"inprogress":  InProgress,
	"in-progress": InProgress,
	"progress":    InProgress,
	"w":           Waiting,
	"wait":        Waiting,
	"waiting":     Waiting,
	"hold":        Waiting,
	"d":           Delegated,
	"delegate":    Delegated,
	"delegated":   Delegated,
	"x":           Done,
	"done":        Done,
	"complete":    Done,
	"completed":   Done,
	"t":           Transfer,
	"transfer":    Transfer,
	"move":        Transfer,
}

// DefaultStatuses returns the statuses shown when no filter is given.
func DefaultStatuses() []Status {
	return []Status{InProgress, Blocked, Waiting, Delegated, Done}
}

// StatusForTag maps a tag letter (case-insensitive) to its status.
func StatusForTag(c byte) (Status, bool) {
	if c >= 'A' && c <= 'Z' {
		c += 'a' - 'A'
	}
	s, ok := tagStatuses[c]
	return s, ok
}

// Tag returns the single-letter tag for s, e.g. "[b]".
func (s Status) Tag() string {
	for c, st := range tagStatuses {
		if st == s {
			return "[" + string(c) + "]"
		}
	}
	return ""
}

func (s Status) Label() string {
	if l, ok := statusLabels[s]; ok {
		return l
	}
	return string(s)
}

// ParseStatus resolves a status name or alias.
func ParseStatus(raw string) (Status, error) {
	key := strings.ToLower(strings.TrimSpace(raw))
	if s, ok := statusAliases[key]; ok {
		return s, nil
	}
	return "", fmt.Errorf("unknown status %q", raw)
}

// ParseStatusList accepts repeated and comma separated values, dropping
// duplicates while keeping first-seen order.
func ParseStatusList(raw []string) ([]Status, error) {
	var out []Status
	seen := make(map[Status]bool)
	for _, item := range raw {
		for _, token := range strings.Split(item, ",") {
			if strings.TrimSpace(token) == "" {
				continue
			}
			s, err := ParseStatus(token)
			if err != nil {
				return nil, err
			}
			if !seen[s] {
				seen[s] = true
				out = append(out, s)
			}
		}
	}
	return out, nil
}

// TaskRecord is a single tagged line found in a source file.
type TaskRecord struct {
	Text        string   // line content with the tag removed
	Raw         string   // trimmed original line, tag included
	Status      Status
	SectionPath []string // headings, outermost first
	SourceID    string
	OrderKey    int      // 0-based line index in the source
	Body        []string // indented continuation lines
}

// Section returns the innermost heading, or "" when the record has none.
func (r TaskRecord) Section() string {
	if len(r.SectionPath) == 0 {
		return ""
	}
	return r.SectionPath[len(r.SectionPath)-1]
}
