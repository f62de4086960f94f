package importer

import (
	"fmt"
	"io"
	"strings"

	"github.com/harrisonrobin/taskview/pkg/model"
	"github.com/harrisonrobin/taskview/pkg/outline"
)

// applyPlan returns the destination content with every proposed addition
// appended to the end of its section. Missing sections are created at the
// end of the file.
func applyPlan(lines []string, res *Result, target model.ImportTarget, mode outline.Mode) string {
	out := append([]string(nil), lines...)
	for _, section := range res.Sections {
		var block []string
		if target.NestHeadings {
			block = nestedBlock(res.Proposed, section, target.TagStyle, mode)
		} else {
			for _, add := range res.Proposed {
				if add.Section == section {
					block = append(block, formatEntry(add.Record, target.TagStyle, mode, 0)...)
				}
			}
		}
		out = insertIntoSection(out, section, block, mode)
	}
	for len(out) > 0 && strings.TrimSpace(out[len(out)-1]) == "" {
		out = out[:len(out)-1]
	}
	return strings.Join(out, "\n") + "\n"
}

// nestedBlock groups the additions for section by source heading chain in
// first-seen order and writes each chain once, entries one level below it.
func nestedBlock(adds []Addition, section string, style model.TagStyle, mode outline.Mode) []string {
	var order []string
	chains := make(map[string][]string)
	groups := make(map[string][]model.TaskRecord)
	for _, add := range adds {
		if add.Section != section {
			continue
		}
		key := strings.Join(add.Record.SectionPath, "\x00")
		if _, ok := groups[key]; !ok {
			order = append(order, key)
			chains[key] = add.Record.SectionPath
		}
		groups[key] = append(groups[key], add.Record)
	}

	var block []string
	for _, key := range order {
		chain := chains[key]
		for depth, heading := range chain {
			block = append(block, indent(depth, mode)+chainMarker(mode)+heading)
		}
		for _, r := range groups[key] {
			block = append(block, formatEntry(r, style, mode, len(chain))...)
		}
	}
	return block
}

// findSection locates the heading named section and the index where its
// content ends (the next heading of the same or shallower depth).
func findSection(lines []string, section string, mode outline.Mode) (heading, end int) {
	heading, end = -1, len(lines)
	depth := 0
	for i, line := range lines {
		h, ok := outline.ParseHeading(line, mode)
		if !ok {
			continue
		}
		if heading >= 0 {
			if h.Depth <= depth {
				return heading, i
			}
			continue
		}
		if h.Text == section {
			heading, depth = i, h.Depth
		}
	}
	return heading, end
}

func insertIntoSection(lines []string, section string, block []string, mode outline.Mode) []string {
	heading, end := findSection(lines, section, mode)
	if heading < 0 {
		for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
			lines = lines[:len(lines)-1]
		}
		if len(lines) > 0 {
			lines = append(lines, "")
		}
		lines = append(lines, headingLine(section, mode))
		return append(lines, block...)
	}

	at := heading + 1
	for i := end - 1; i > heading; i-- {
		if strings.TrimSpace(lines[i]) != "" {
			at = i + 1
			break
		}
	}
	out := make([]string, 0, len(lines)+len(block))
	out = append(out, lines[:at]...)
	out = append(out, block...)
	return append(out, lines[at:]...)
}

func headingLine(section string, mode outline.Mode) string {
	if mode == outline.Markdown {
		return "## " + section
	}
	return section
}

// indent is the leading whitespace for an entry depth levels below the
// section heading.
func indent(depth int, mode outline.Mode) string {
	if mode == outline.Markdown {
		return strings.Repeat("  ", depth)
	}
	return strings.Repeat("\t", depth+1)
}

func chainMarker(mode outline.Mode) string {
	if mode == outline.Markdown {
		return "- "
	}
	return ""
}

func formatEntry(r model.TaskRecord, style model.TagStyle, mode outline.Mode, depth int) []string {
	text := r.Text
	if style == model.TagKeep {
		text = strings.TrimSpace(r.Status.Tag() + " " + r.Text)
	}
	prefix := indent(depth, mode)
	if mode == outline.Markdown {
		prefix += "- "
	}
	bodyPrefix := indent(depth+1, mode)
	lines := []string{prefix + text}
	for _, body := range r.Body {
		if body == "" {
			lines = append(lines, "")
			continue
		}
		lines = append(lines, bodyPrefix+body)
	}
	return lines
}

// WritePlan prints a human-readable summary of res.
func WritePlan(w io.Writer, res *Result, dryRun bool) {
	name := res.Target
	switch {
	case res.Matched == 0:
		fmt.Fprintf(w, "[%s] No tasks matched.\n", name)
		return
	case len(res.Proposed) == 0:
		fmt.Fprintf(w, "[%s] Nothing new to import (all duplicates).\n", name)
		return
	}

	if dryRun {
		fmt.Fprintf(w, "[%s] Dry run: would insert %d task(s) into sections: %s\n",
			name, len(res.Proposed), strings.Join(res.Sections, ", "))
	} else {
		fmt.Fprintf(w, "[%s] Inserted %d task(s) into sections: %s\n",
			name, len(res.Proposed), strings.Join(res.Sections, ", "))
	}
	for _, section := range res.Sections {
		fmt.Fprintf(w, "\n  Section: %s\n", section)
		for _, add := range res.Proposed {
			if add.Section == section {
				fmt.Fprintf(w, "    %s\n", add.Record.Text)
			}
		}
	}
	if len(res.Duplicates) > 0 {
		fmt.Fprintf(w, "[%s] Skipped %d duplicate(s).\n", name, len(res.Duplicates))
	}
}
