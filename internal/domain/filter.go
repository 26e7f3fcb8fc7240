package domain

import "strings"

// Filter is a conjunction of equality/membership constraints over course
// metadata. A zero value for a field means that field is unconstrained.
// Multi-valued fields (languages, levels) use membership semantics: the
// course matches if any of its values satisfies the constraint.
type Filter struct {
	Semester  Semester
	Language  Language
	Level     Level
	Location  string
	LocalOnly bool
}

// IsZero reports whether the filter constrains nothing.
func (f *Filter) IsZero() bool {
	return f == nil || (f.Semester == "" && f.Language == "" && f.Level == "" && f.Location == "" && !f.LocalOnly)
}

// Matches reports whether the metadata satisfies every constraint.
func (f *Filter) Matches(m Metadata) bool {
	if f == nil {
		return true
	}
	if f.Semester != "" && m.Semester != f.Semester {
		return false
	}
	if f.Language != "" && !containsLanguage(m.Languages, f.Language) {
		return false
	}
	if f.Level != "" && !containsLevel(m.Levels, f.Level) {
		return false
	}
	if f.Location != "" && !strings.EqualFold(m.Location, f.Location) {
		return false
	}
	if f.LocalOnly && !m.LocalOffering {
		return false
	}
	return true
}

func containsLanguage(list []Language, want Language) bool {
	for _, l := range list {
		if l == want {
			return true
		}
	}
	return false
}

func containsLevel(list []Level, want Level) bool {
	for _, l := range list {
		if l == want {
			return true
		}
	}
	return false
}
