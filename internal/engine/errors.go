package engine

import "fmt"

// RejectReason classifies why a query was refused before any search ran.
type RejectReason string

const (
	ReasonEmpty   RejectReason = "empty"
	ReasonTooLong RejectReason = "too_long"
	ReasonDenied  RejectReason = "denylisted"
	ReasonBadTopK RejectReason = "invalid_top_k"
)

// QueryRejectedError reports a sanitization rejection. It is an error, not
// an empty result: the caller must be able to tell "we refused to run this"
// apart from "nothing matched".
type QueryRejectedError struct {
	Reason RejectReason
	Detail string
}

func (e *QueryRejectedError) Error() string {
	return fmt.Sprintf("query rejected (%s): %s", e.Reason, e.Detail)
}
