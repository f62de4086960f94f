package model

type Origin string

const (
	OriginBuiltin Origin = "builtin"
	OriginExtra   Origin = "extra"
	OriginGlob    Origin = "glob"
)

// SourceSpec identifies one resolved input file.
type SourceSpec struct {
	Path    string // absolute, cleaned
	Alias   string
	Origin  Origin
	Pattern string // config entry that produced the path
}

// OutputSpec is a persisted view: a file holding the report for Statuses.
type OutputSpec struct {
	Path     string
	Title    string
	Statuses []Status
}

type SectionStrategy int

const (
	// SectionFixed sends every record to ImportTarget.Section.
	SectionFixed SectionStrategy = iota
	// SectionFromSource uses the record's innermost heading, remapped
	// through ImportTarget.SectionMap.
	SectionFromSource
)

type TagStyle string

const (
	TagStrip TagStyle = "strip"
	TagKeep  TagStyle = "keep"
)

const DefaultImportSection = "Imported"

// ImportTarget is a named import policy.
type ImportTarget struct {
	Name            string
	Source          string
	Strategy        SectionStrategy
	Section         string
	SectionMap      map[string]string
	Statuses        []Status
	AllowDuplicates bool
	TagStyle        TagStyle

	// NestHeadings writes each record under its source heading chain,
	// nested inside the destination section.
	NestHeadings bool
}

// EffectiveStatuses returns Statuses, defaulting to transfer only.
func (t ImportTarget) EffectiveStatuses() []Status {
	if len(t.Statuses) == 0 {
		return []Status{Transfer}
	}
	return t.Statuses
}

// SectionFor resolves the destination section for a record.
func (t ImportTarget) SectionFor(r TaskRecord) string {
	fallback := t.Section
	if fallback == "" {
		fallback = DefaultImportSection
	}
	if t.Strategy != SectionFromSource {
		return fallback
	}
	name := r.Section()
	if name == "" {
		return fallback
	}
	if mapped, ok := t.SectionMap[name]; ok && mapped != "" {
		return mapped
	}
	return name
}
