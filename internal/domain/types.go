package domain

import "time"

// CourseRecord is one validated row from the course feed. The feed is
// produced by an external cleaning stage; fields arrive as raw strings and
// are normalized by the corpus builder.
type CourseRecord struct {
	Code          string
	TitleEN       string
	TitleET       string
	DescriptionEN string
	DescriptionET string
	ObjectivesEN  string
	ObjectivesET  string
	OutcomesEN    string
	OutcomesET    string
	Credits       float64
	Semester      string
	Location      string
	Languages     []string
	Levels        []string
	Assessment    string
	LocalOffering bool
}

// Metadata holds the normalized, filterable attributes of a course plus the
// display fields the presentation layer renders alongside a match.
type Metadata struct {
	TitleEN       string     `json:"title_en,omitempty"`
	TitleET       string     `json:"title_et,omitempty"`
	Credits       float64    `json:"credits,omitempty"`
	Semester      Semester   `json:"semester,omitempty"`
	Location      string     `json:"location,omitempty"`
	Languages     []Language `json:"languages,omitempty"`
	Levels        []Level    `json:"levels,omitempty"`
	Assessment    string     `json:"assessment,omitempty"`
	LocalOffering bool       `json:"local_offering,omitempty"`
}

// CorpusEntry is the immutable searchable representation of one course:
// a bilingual labeled text block plus normalized metadata. Entries are
// produced only during a build pass and never mutated afterwards.
type CorpusEntry struct {
	Code     string
	RAGText  string
	Metadata Metadata
}

// IndexedVector ties a course code to its embedding and metadata inside one
// index generation. RAGText is kept so a generation can be reloaded and the
// embedder re-prepared without re-embedding anything.
type IndexedVector struct {
	Code      string
	Embedding []float64
	Metadata  Metadata
	RAGText   string
}

// Generation is one complete, immutable build of the vector index. Vectors
// are sorted by course code. A rebuild produces a new generation that
// atomically replaces the prior one.
type Generation struct {
	ID        string
	CreatedAt time.Time
	Embedder  string
	Dimension int
	Vectors   []IndexedVector
}

// Texts returns the rag_text of every vector, in code order.
func (g *Generation) Texts() []string {
	out := make([]string, len(g.Vectors))
	for i := range g.Vectors {
		out[i] = g.Vectors[i].RAGText
	}
	return out
}

// QueryRequest is the single input of the query engine: free text plus an
// optional metadata filter and a result-count bound.
type QueryRequest struct {
	Text   string
	Filter *Filter
	TopK   int
}

// Match is one ranked search hit.
type Match struct {
	Code     string
	Score    float64
	Metadata Metadata
}

// QueryResult is an ordered result set, descending by score. The
// FiltersExhausted flag distinguishes "the filter eliminated every
// candidate" from "nothing scored highly"; an empty Matches slice alone is
// ambiguous.
type QueryResult struct {
	Matches          []Match
	FiltersExhausted bool
}
