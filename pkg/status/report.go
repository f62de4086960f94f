package status

import (
	"fmt"
	"sort"
	"strings"

	"github.com/harrisonrobin/taskview/pkg/model"
)

const (
	ruleWidth        = 70
	noTasksMessage   = "No tasks found for the requested status filters."
	uncategorized    = "Uncategorized"
	breadcrumbJoiner = " / "
)

// group holds the records of one status, source and section.
type group struct {
	sourceID string
	section  []string
	records  []model.TaskRecord
}

// groupRecords orders records for one status: sources in resolver order,
// sections in first-seen order within a source, records in line order.
func groupRecords(snap *Snapshot, status model.Status) []group {
	sourceRank := make(map[string]int)
	for i, spec := range snap.Sources.Included {
		sourceRank[snap.Sources.DisplayID(spec)] = i
	}
	rank := func(id string) int {
		if r, ok := sourceRank[id]; ok {
			return r
		}
		return len(sourceRank)
	}

	var groups []group
	index := make(map[string]int)
	for _, r := range snap.Records {
		if r.Status != status {
			continue
		}
		key := r.SourceID + "\x00" + strings.Join(r.SectionPath, "\x00")
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, group{sourceID: r.SourceID, section: r.SectionPath})
		}
		groups[i].records = append(groups[i].records, r)
	}

	sort.SliceStable(groups, func(i, j int) bool {
		return rank(groups[i].sourceID) < rank(groups[j].sourceID)
	})
	for _, g := range groups {
		sort.SliceStable(g.records, func(i, j int) bool {
			return g.records[i].OrderKey < g.records[j].OrderKey
		})
	}
	return groups
}

// Breadcrumb renders a section path for display.
func Breadcrumb(path []string) string {
	if len(path) == 0 {
		return uncategorized
	}
	return strings.Join(path, breadcrumbJoiner)
}

// RenderReport renders the grouped report for the requested statuses.
func RenderReport(snap *Snapshot, statuses []model.Status) string {
	if len(statuses) == 0 {
		statuses = model.DefaultStatuses()
	}
	requested := make(map[model.Status]bool, len(statuses))
	for _, s := range statuses {
		requested[s] = true
	}

	var b strings.Builder
	rule := strings.Repeat("=", ruleWidth)
	printed := false
	for _, status := range model.StatusOrder {
		if !requested[status] {
			continue
		}
		groups := groupRecords(snap, status)
		if len(groups) == 0 {
			continue
		}
		total := 0
		for _, g := range groups {
			total += len(g.records)
		}
		printed = true

		fmt.Fprintf(&b, "\n%s\n%s (%d)\n%s\n", rule, status.Label(), total, rule)
		for _, g := range groups {
			fmt.Fprintf(&b, "\n%s — %s\n", Breadcrumb(g.section), g.sourceID)
			for _, r := range g.records {
				fmt.Fprintf(&b, "  %s\n", r.Raw)
				for _, line := range r.Body {
					if line == "" {
						b.WriteString("\n")
						continue
					}
					fmt.Fprintf(&b, "    %s\n", line)
				}
			}
		}
		b.WriteString("\n")
	}
	if !printed {
		return noTasksMessage + "\n"
	}
	return b.String()
}

// RenderView is the persisted form of a report: the title line followed by
// the report for the output's statuses.
func RenderView(snap *Snapshot, out model.OutputSpec) string {
	return out.Title + "\n" + RenderReport(snap, out.Statuses)
}
