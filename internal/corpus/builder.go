package corpus

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"courserec/internal/domain"
	"courserec/internal/logging"
)

// Rejection reasons recorded during a build pass.
const (
	ReasonMissingCode        = "missing course code"
	ReasonMissingDescription = "missing description in both languages"
	ReasonDuplicateCode      = "duplicate course code"
	ReasonOversized          = "text exceeds maximum length"
)

// Rejection records one course dropped during a build pass, with the reason.
type Rejection struct {
	Code   string
	Reason string
}

// Builder turns validated course records into immutable corpus entries:
// a bilingual labeled rag_text block plus normalized metadata per course.
//
// A build pass never aborts on a bad record; problems are recorded as
// rejections and logged. Rebuilding from the same records yields
// byte-identical rag_text.
type Builder struct {
	maxTextLen int
	log        *zap.SugaredLogger
}

// DefaultMaxTextLen bounds rag_text size. Embedding quality degrades on
// oversized input and the target model's context window is finite.
const DefaultMaxTextLen = 8000

// NewBuilder creates a Builder with the given rag_text length cap.
func NewBuilder(maxTextLen int, log *zap.SugaredLogger) *Builder {
	if maxTextLen <= 0 {
		maxTextLen = DefaultMaxTextLen
	}
	if log == nil {
		log = logging.Nop()
	}
	return &Builder{maxTextLen: maxTextLen, log: log}
}

// Build converts records into corpus entries. Records missing a mandatory
// field, carrying a duplicate code, or producing oversized text are dropped
// and reported; one bad record never fails the batch.
func (b *Builder) Build(records []domain.CourseRecord) ([]domain.CorpusEntry, []Rejection) {
	entries := make([]domain.CorpusEntry, 0, len(records))
	var rejections []Rejection
	seen := make(map[string]struct{}, len(records))

	reject := func(code, reason string) {
		rejections = append(rejections, Rejection{Code: code, Reason: reason})
		b.log.Warnw("course rejected", "code", code, "reason", reason)
	}

	for _, rec := range records {
		code := strings.TrimSpace(rec.Code)
		if code == "" {
			reject("", ReasonMissingCode)
			continue
		}
		if strings.TrimSpace(rec.DescriptionEN) == "" && strings.TrimSpace(rec.DescriptionET) == "" {
			reject(code, ReasonMissingDescription)
			continue
		}
		if _, dup := seen[code]; dup {
			reject(code, ReasonDuplicateCode)
			continue
		}

		meta := b.normalizeMetadata(code, rec)
		text, truncated, ok := b.assembleText(code, rec, meta)
		if !ok {
			reject(code, ReasonOversized)
			continue
		}
		if truncated {
			b.log.Infow("rag_text truncated at field boundary", "code", code, "max_len", b.maxTextLen)
		}

		seen[code] = struct{}{}
		entries = append(entries, domain.CorpusEntry{Code: code, RAGText: text, Metadata: meta})
	}
	return entries, rejections
}

// normalizeMetadata collapses raw feed values to the canonical enumerations
// used for filtering. Unknown values are dropped, not preserved verbatim.
func (b *Builder) normalizeMetadata(code string, rec domain.CourseRecord) domain.Metadata {
	meta := domain.Metadata{
		TitleEN:       strings.TrimSpace(rec.TitleEN),
		TitleET:       strings.TrimSpace(rec.TitleET),
		Credits:       rec.Credits,
		Location:      strings.TrimSpace(rec.Location),
		Assessment:    strings.ToLower(strings.TrimSpace(rec.Assessment)),
		LocalOffering: rec.LocalOffering,
	}
	if sem, ok := domain.ParseSemester(rec.Semester); ok {
		meta.Semester = sem
	} else if strings.TrimSpace(rec.Semester) != "" {
		b.log.Debugw("unknown semester value", "code", code, "semester", rec.Semester)
	}
	for _, raw := range rec.Languages {
		if lang, ok := domain.ParseLanguage(raw); ok {
			if !hasLanguage(meta.Languages, lang) {
				meta.Languages = append(meta.Languages, lang)
			}
		} else if strings.TrimSpace(raw) != "" {
			b.log.Debugw("unknown language value", "code", code, "language", raw)
		}
	}
	for _, raw := range rec.Levels {
		if lvl, ok := domain.ParseLevel(raw); ok {
			if !hasLevel(meta.Levels, lvl) {
				meta.Levels = append(meta.Levels, lvl)
			}
		} else if strings.TrimSpace(raw) != "" {
			b.log.Debugw("unknown level value", "code", code, "level", raw)
		}
	}
	sortLanguages(meta.Languages)
	sortLevels(meta.Levels)
	return meta
}

// assembleText concatenates present fields under constant labels in a fixed
// order, both languages per field, so an interest described in either
// language lands near the right courses in embedding space. Sections that
// would push the text past the cap are dropped whole; the text is never cut
// mid-word. The returned bool is false when even the code section does not
// fit, which rejects the record.
func (b *Builder) assembleText(code string, rec domain.CourseRecord, meta domain.Metadata) (text string, truncated, ok bool) {
	sections := []struct {
		label string
		value string
	}{
		{"Course code", code},
		{"Title (EN)", rec.TitleEN},
		{"Title (ET)", rec.TitleET},
		{"Description (EN)", rec.DescriptionEN},
		{"Description (ET)", rec.DescriptionET},
		{"Objectives (EN)", rec.ObjectivesEN},
		{"Objectives (ET)", rec.ObjectivesET},
		{"Learning outcomes (EN)", rec.OutcomesEN},
		{"Learning outcomes (ET)", rec.OutcomesET},
		{"Attributes", attributesLine(meta)},
	}

	var sb strings.Builder
	for _, s := range sections {
		value := strings.TrimSpace(s.value)
		if value == "" {
			continue
		}
		line := s.label + ": " + value
		add := len(line)
		if sb.Len() > 0 {
			add++ // newline separator
		}
		if sb.Len()+add > b.maxTextLen {
			truncated = true
			break
		}
		if sb.Len() > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(line)
	}
	text = sb.String()
	if !strings.Contains(text, code) {
		return "", false, false
	}
	return text, truncated, true
}

// attributesLine renders the canonical metadata as a compact text line so
// structural attributes contribute to the embedding as well.
func attributesLine(meta domain.Metadata) string {
	var parts []string
	if meta.Semester != "" {
		parts = append(parts, "semester "+string(meta.Semester))
	}
	if meta.Location != "" {
		parts = append(parts, "location "+meta.Location)
	}
	if len(meta.Languages) > 0 {
		langs := make([]string, len(meta.Languages))
		for i, l := range meta.Languages {
			langs[i] = string(l)
		}
		parts = append(parts, "languages "+strings.Join(langs, ", "))
	}
	if len(meta.Levels) > 0 {
		lvls := make([]string, len(meta.Levels))
		for i, l := range meta.Levels {
			lvls[i] = string(l)
		}
		parts = append(parts, "levels "+strings.Join(lvls, ", "))
	}
	if meta.Credits > 0 {
		parts = append(parts, strconv.FormatFloat(meta.Credits, 'f', -1, 64)+" EAP")
	}
	if meta.Assessment != "" {
		parts = append(parts, "assessment "+meta.Assessment)
	}
	return strings.Join(parts, "; ")
}

// Summary renders a short per-reason count, for operator logs.
func Summary(rejections []Rejection) string {
	if len(rejections) == 0 {
		return "no rejections"
	}
	counts := make(map[string]int)
	for _, r := range rejections {
		counts[r.Reason]++
	}
	reasons := make([]string, 0, len(counts))
	for reason := range counts {
		reasons = append(reasons, reason)
	}
	sort.Strings(reasons)
	parts := make([]string, len(reasons))
	for i, reason := range reasons {
		parts[i] = fmt.Sprintf("%s: %d", reason, counts[reason])
	}
	return strings.Join(parts, ", ")
}

func hasLanguage(list []domain.Language, want domain.Language) bool {
	for _, l := range list {
		if l == want {
			return true
		}
	}
	return false
}

func hasLevel(list []domain.Level, want domain.Level) bool {
	for _, l := range list {
		if l == want {
			return true
		}
	}
	return false
}

func sortLanguages(list []domain.Language) {
	sort.Slice(list, func(i, j int) bool { return list[i] < list[j] })
}

func sortLevels(list []domain.Level) {
	sort.Slice(list, func(i, j int) bool { return list[i] < list[j] })
}
