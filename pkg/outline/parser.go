package outline

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/harrisonrobin/taskview/pkg/model"
)

// ErrUndecodable is returned for files that are not UTF-8 text.
var ErrUndecodable = errors.New("file is not valid UTF-8 text")

var (
	markdownHeading = regexp.MustCompile(`^(#{1,6})\s+(.+)$`)
	taskTag         = regexp.MustCompile(`^\s*(?:[-*+]\s+)?\[([A-Za-z])\](?:\s+(.*))?$`)
	legendLine      = regexp.MustCompile(`^\s*\[[^\]]+\]\s*=`)
	bulletLine      = regexp.MustCompile(`^(?:[-*+]|\d+[.)])\s`)
	leadingToken    = regexp.MustCompile(`^\s*(?:[-*+]\s+|\d+[.)]\s+)?(?:\[[^\]]?\](?:\s+|$))?`)
)

const tabWidth = 4

// Mode selects which lines count as headings.
type Mode int

const (
	// Markdown recognizes only "#" headings.
	Markdown Mode = iota
	// Outline additionally treats unindented plain lines as top-level
	// headings, the layout used by the workspace .txt lists.
	Outline
)

// ModeFor picks the heading mode from a file name.
func ModeFor(path string) Mode {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
		return Markdown
	}
	return Outline
}

// Heading is a recognized heading line.
type Heading struct {
	Depth int
	Text  string
}

// ParseHeading reports whether line is a heading under mode.
func ParseHeading(line string, mode Mode) (Heading, bool) {
	if m := markdownHeading.FindStringSubmatch(line); m != nil {
		text := strings.TrimSpace(m[2])
		if text == "" {
			return Heading{}, false
		}
		return Heading{Depth: len(m[1]), Text: text}, true
	}
	if mode != Outline {
		return Heading{}, false
	}
	if line == "" || line[0] == ' ' || line[0] == '\t' {
		return Heading{}, false
	}
	stripped := strings.TrimSpace(line)
	if stripped == "" || taskTag.MatchString(line) || legendLine.MatchString(line) || bulletLine.MatchString(stripped) {
		return Heading{}, false
	}
	if strings.HasPrefix(stripped, "[") {
		// untagged checkbox or priority marker
		return Heading{}, false
	}
	return Heading{Depth: 1, Text: strings.TrimSuffix(stripped, ":")}, true
}

// ParseTaskLine extracts the status and the tag-free text of a task line.
func ParseTaskLine(line string) (model.Status, string, bool) {
	if legendLine.MatchString(line) {
		return "", "", false
	}
	m := taskTag.FindStringSubmatch(line)
	if m == nil {
		return "", "", false
	}
	status, ok := model.StatusForTag(m[1][0])
	if !ok {
		return "", "", false
	}
	return status, strings.TrimSpace(m[2]), true
}

// Normalize reduces a line to its comparison key: leading bullet and tag
// (any single character in brackets) removed, whitespace collapsed.
func Normalize(line string) string {
	line = leadingToken.ReplaceAllString(line, "")
	return strings.Join(strings.Fields(line), " ")
}

// Indent returns the width of leading whitespace, tabs counted as four.
func Indent(line string) int {
	n := 0
	for _, r := range line {
		switch r {
		case ' ':
			n++
		case '\t':
			n += tabWidth - n%tabWidth
		default:
			return n
		}
	}
	return n
}

// Parse scans lines for tagged tasks, tracking the heading stack so each
// record carries the headings in effect where it appeared.
func Parse(lines []string, src model.SourceSpec, sourceID string) []model.TaskRecord {
	mode := ModeFor(src.Path)
	var records []model.TaskRecord
	var stack []Heading

	for idx := 0; idx < len(lines); idx++ {
		line := strings.TrimRight(lines[idx], " \t\r")

		status, text, ok := ParseTaskLine(line)
		if !ok {
			if h, isHeading := ParseHeading(line, mode); isHeading {
				keep := 0
				for keep < len(stack) && stack[keep].Depth < h.Depth {
					keep++
				}
				stack = append(stack[:keep], h)
			}
			continue
		}

		path := make([]string, len(stack))
		for i, h := range stack {
			path[i] = h.Text
		}
		record := model.TaskRecord{
			Text:        text,
			Raw:         strings.TrimSpace(line),
			Status:      status,
			SectionPath: path,
			SourceID:    sourceID,
			OrderKey:    idx,
		}

		base := Indent(line)
		for idx+1 < len(lines) {
			next := strings.TrimRight(lines[idx+1], " \t\r")
			if strings.TrimSpace(next) == "" {
				record.Body = append(record.Body, "")
				idx++
				continue
			}
			if Indent(next) <= base {
				break
			}
			if _, _, tagged := ParseTaskLine(next); tagged {
				break
			}
			if _, isHeading := ParseHeading(next, mode); isHeading {
				break
			}
			record.Body = append(record.Body, next)
			idx++
		}
		// blank lines between blocks belong to nobody
		for len(record.Body) > 0 && record.Body[len(record.Body)-1] == "" {
			record.Body = record.Body[:len(record.Body)-1]
			idx--
		}
		record.Body = dedent(record.Body)

		records = append(records, record)
	}
	return records
}

// dedent strips the indentation shared by all non-blank lines, keeping the
// nesting of deeper lines as spaces.
func dedent(lines []string) []string {
	shared := -1
	for _, line := range lines {
		if line == "" {
			continue
		}
		if n := Indent(line); shared < 0 || n < shared {
			shared = n
		}
	}
	for i, line := range lines {
		if line == "" {
			continue
		}
		lines[i] = strings.Repeat(" ", Indent(line)-shared) + strings.TrimLeft(line, " \t")
	}
	return lines
}

// SplitLines splits file content into lines without the trailing newline.
func SplitLines(data []byte) []string {
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	text = strings.TrimSuffix(text, "\n")
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}

// ReadLines reads a text file, refusing binary content.
func ReadLines(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if bytes.IndexByte(data, 0) >= 0 || !utf8.Valid(data) {
		return nil, fmt.Errorf("%s: %w", path, ErrUndecodable)
	}
	return SplitLines(data), nil
}

// ParseFile reads and parses one source file.
func ParseFile(src model.SourceSpec, sourceID string) ([]model.TaskRecord, error) {
	lines, err := ReadLines(src.Path)
	if err != nil {
		return nil, err
	}
	return Parse(lines, src, sourceID), nil
}
