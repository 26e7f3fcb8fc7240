package domain

import "strings"

// Semester is a canonical offering semester.
type Semester string

const (
	SemesterAutumn Semester = "autumn"
	SemesterSpring Semester = "spring"
)

// Language is a canonical instruction language code.
type Language string

const (
	LangET Language = "et"
	LangEN Language = "en"
	LangRU Language = "ru"
	LangDE Language = "de"
)

// Level is a canonical study level.
type Level string

const (
	LevelBachelor Level = "bachelor"
	LevelMaster   Level = "master"
	LevelDoctoral Level = "doctoral"
)

// ParseSemester collapses feed spellings (English and Estonian) to a
// canonical semester. Unrecognized values are reported, not guessed.
func ParseSemester(s string) (Semester, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "autumn", "fall", "sügis", "sügissemester":
		return SemesterAutumn, true
	case "spring", "kevad", "kevadsemester":
		return SemesterSpring, true
	}
	return "", false
}

// ParseLanguage collapses feed spellings to a canonical language code.
func ParseLanguage(s string) (Language, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "et", "est", "estonian", "eesti", "eesti keel":
		return LangET, true
	case "en", "eng", "english", "inglise", "inglise keel":
		return LangEN, true
	case "ru", "rus", "russian", "vene", "vene keel":
		return LangRU, true
	case "de", "ger", "german", "saksa", "saksa keel":
		return LangDE, true
	}
	return "", false
}

// ParseLevel collapses feed spellings to a canonical study level.
func ParseLevel(s string) (Level, bool) {
	v := strings.ToLower(strings.TrimSpace(s))
	switch {
	case strings.HasPrefix(v, "bachelor"), strings.HasPrefix(v, "bakalaureus"):
		return LevelBachelor, true
	case strings.HasPrefix(v, "master"), strings.HasPrefix(v, "magistri"), strings.HasPrefix(v, "magister"):
		return LevelMaster, true
	case strings.HasPrefix(v, "doctoral"), strings.HasPrefix(v, "phd"), strings.HasPrefix(v, "doktori"):
		return LevelDoctoral, true
	}
	return "", false
}
