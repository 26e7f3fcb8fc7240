package corpus

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"courserec/internal/domain"
)

func validRecord() domain.CourseRecord {
	return domain.CourseRecord{
		Code:          "LTAT.02.004",
		TitleEN:       "Machine Learning",
		TitleET:       "Masinõpe",
		DescriptionEN: "Introduction to supervised and unsupervised machine learning.",
		DescriptionET: "Sissejuhatus juhendatud ja juhendamata masinõppesse.",
		Credits:       6,
		Semester:      "autumn",
		Location:      "Tartu",
		Languages:     []string{"English", "eesti"},
		Levels:        []string{"bachelor's studies"},
		Assessment:    "Graded",
		LocalOffering: true,
	}
}

func TestBuildContainsCourseCode(t *testing.T) {
	b := NewBuilder(0, nil)
	entries, rejections := b.Build([]domain.CourseRecord{validRecord()})
	require.Len(t, entries, 1)
	require.Empty(t, rejections)
	assert.Contains(t, entries[0].RAGText, "LTAT.02.004")
	assert.Contains(t, entries[0].RAGText, "Description (EN): Introduction to supervised")
	assert.Contains(t, entries[0].RAGText, "Description (ET): Sissejuhatus juhendatud")
}

func TestBuildIsReproducible(t *testing.T) {
	b := NewBuilder(0, nil)
	first, _ := b.Build([]domain.CourseRecord{validRecord()})
	second, _ := b.Build([]domain.CourseRecord{validRecord()})
	require.Len(t, first, 1)
	require.Len(t, second, 1)
	assert.Equal(t, first[0].RAGText, second[0].RAGText)
	assert.Equal(t, first[0].Metadata, second[0].Metadata)
}

func TestBuildRejectsMissingCode(t *testing.T) {
	rec := validRecord()
	rec.Code = "   "
	b := NewBuilder(0, nil)
	entries, rejections := b.Build([]domain.CourseRecord{rec})
	assert.Empty(t, entries)
	require.Len(t, rejections, 1)
	assert.Equal(t, ReasonMissingCode, rejections[0].Reason)
}

func TestBuildRejectsMissingDescriptions(t *testing.T) {
	rec := validRecord()
	rec.DescriptionEN = ""
	rec.DescriptionET = ""
	b := NewBuilder(0, nil)
	entries, rejections := b.Build([]domain.CourseRecord{rec})
	assert.Empty(t, entries)
	require.Len(t, rejections, 1)
	assert.Equal(t, ReasonMissingDescription, rejections[0].Reason)
	assert.Equal(t, "LTAT.02.004", rejections[0].Code)
}

func TestBuildSingleLanguageDescriptionSuffices(t *testing.T) {
	rec := validRecord()
	rec.DescriptionEN = ""
	b := NewBuilder(0, nil)
	entries, rejections := b.Build([]domain.CourseRecord{rec})
	require.Len(t, entries, 1)
	assert.Empty(t, rejections)
}

func TestBuildRejectsDuplicateCodeNotBatch(t *testing.T) {
	first := validRecord()
	dup := validRecord()
	other := validRecord()
	other.Code = "MTAT.03.100"
	b := NewBuilder(0, nil)
	entries, rejections := b.Build([]domain.CourseRecord{first, dup, other})
	require.Len(t, entries, 2)
	require.Len(t, rejections, 1)
	assert.Equal(t, ReasonDuplicateCode, rejections[0].Reason)
	assert.Equal(t, "LTAT.02.004", entries[0].Code)
	assert.Equal(t, "MTAT.03.100", entries[1].Code)
}

func TestBuildTruncatesAtFieldBoundary(t *testing.T) {
	rec := validRecord()
	rec.DescriptionEN = strings.Repeat("supervised learning ", 50)
	b := NewBuilder(120, nil)
	entries, rejections := b.Build([]domain.CourseRecord{rec})
	require.Len(t, entries, 1)
	assert.Empty(t, rejections)

	text := entries[0].RAGText
	assert.LessOrEqual(t, len(text), 120)
	assert.Contains(t, text, "LTAT.02.004")
	// The oversized description section is dropped whole, not cut mid-word.
	assert.NotContains(t, text, "supervised learning")
	for _, line := range strings.Split(text, "\n") {
		assert.NotEmpty(t, strings.TrimSpace(line))
	}
}

func TestBuildRejectsWhenNothingFits(t *testing.T) {
	rec := validRecord()
	b := NewBuilder(10, nil)
	entries, rejections := b.Build([]domain.CourseRecord{rec})
	assert.Empty(t, entries)
	require.Len(t, rejections, 1)
	assert.Equal(t, ReasonOversized, rejections[0].Reason)
}

func TestBuildNormalizesMetadata(t *testing.T) {
	rec := validRecord()
	rec.Semester = "Sügis"
	rec.Languages = []string{"Inglise keel", "Estonian", "Klingon"}
	rec.Levels = []string{"Master's studies", "continuing education"}
	b := NewBuilder(0, nil)
	entries, _ := b.Build([]domain.CourseRecord{rec})
	require.Len(t, entries, 1)

	meta := entries[0].Metadata
	assert.Equal(t, domain.SemesterAutumn, meta.Semester)
	assert.Equal(t, []domain.Language{domain.LangEN, domain.LangET}, meta.Languages)
	assert.Equal(t, []domain.Level{domain.LevelMaster}, meta.Levels)
	assert.True(t, meta.LocalOffering)
	assert.Equal(t, "graded", meta.Assessment)
}

func TestSummaryCountsReasons(t *testing.T) {
	s := Summary([]Rejection{
		{Code: "A", Reason: ReasonMissingCode},
		{Code: "B", Reason: ReasonDuplicateCode},
		{Code: "C", Reason: ReasonDuplicateCode},
	})
	assert.Contains(t, s, ReasonDuplicateCode+": 2")
	assert.Contains(t, s, ReasonMissingCode+": 1")
	assert.Equal(t, "no rejections", Summary(nil))
}
