// Package feed reads the validated course feed produced by the external
// data-cleaning stage. The feed is a CSV file with named columns; cleaning
// and encoding concerns belong to that stage, not here.
package feed

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"courserec/internal/domain"
)

// multiValueSep separates values inside multi-valued columns
// (languages, levels).
const multiValueSep = ";"

// ReadCourses reads every record from the CSV feed at path. The file must
// carry a header row including at least a "code" column; other known
// columns are optional and default to empty. Row-level validity (missing
// descriptions and the like) is the corpus builder's concern.
func ReadCourses(path string) ([]domain.CourseRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening course feed: %w", err)
	}
	defer f.Close()
	return parse(f)
}

func parse(r io.Reader) ([]domain.CourseRecord, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading feed header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	if _, ok := cols["code"]; !ok {
		return nil, fmt.Errorf("course feed has no %q column", "code")
	}

	var records []domain.CourseRecord
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading feed row: %w", err)
		}
		field := func(name string) string {
			i, ok := cols[name]
			if !ok || i >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[i])
		}
		records = append(records, domain.CourseRecord{
			Code:          field("code"),
			TitleEN:       field("title_en"),
			TitleET:       field("title_et"),
			DescriptionEN: field("description_en"),
			DescriptionET: field("description_et"),
			ObjectivesEN:  field("objectives_en"),
			ObjectivesET:  field("objectives_et"),
			OutcomesEN:    field("outcomes_en"),
			OutcomesET:    field("outcomes_et"),
			Credits:       parseFloat(field("eap")),
			Semester:      field("semester"),
			Location:      field("location"),
			Languages:     splitMulti(field("languages")),
			Levels:        splitMulti(field("levels")),
			Assessment:    field("assessment"),
			LocalOffering: parseBool(field("local_offering")),
		})
	}
	return records, nil
}

func splitMulti(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, multiValueSep)
	out := parts[:0]
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseFloat(s string) float64 {
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
	if err != nil {
		return 0
	}
	return v
}

func parseBool(s string) bool {
	switch strings.ToLower(s) {
	case "1", "true", "yes", "jah":
		return true
	}
	return false
}
