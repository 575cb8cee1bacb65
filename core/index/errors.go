// Package index implements the segment lifecycle described in
// spec.md §4: the postings accumulator, the segment flusher, the
// block-tree terms dictionary, the buffered-deletes stream, the
// segments manifest commit protocol, and the compound-file container.
package index

import (
	"errors"
	"fmt"
)

// Error taxonomy per spec §7.

// CorruptIndexError signals a magic/version mismatch, checksum
// failure, or structural inconsistency (spec §7 "Corruption"). It is
// fatal to the affected segment; a writer that hits one while reading
// the manifest falls back to the prior generation (spec §4.7).
type CorruptIndexError struct {
	Resource string
	Reason   string
}

func (e *CorruptIndexError) Error() string {
	return fmt.Sprintf("index: corrupt index (resource=%s): %s", e.Resource, e.Reason)
}

// NewCorruptIndexError constructs a CorruptIndexError.
func NewCorruptIndexError(resource, reason string) error {
	return &CorruptIndexError{Resource: resource, Reason: reason}
}

// AbortingError wraps a non-recoverable failure encountered during
// flush or commit (spec §7 "Abort"). The in-RAM segment must be
// discarded and the manifest must never advance.
type AbortingError struct {
	Cause error
}

func (e *AbortingError) Error() string { return fmt.Sprintf("index: aborting error: %v", e.Cause) }
func (e *AbortingError) Unwrap() error { return e.Cause }

// NewAbortingError wraps cause as an AbortingError.
func NewAbortingError(cause error) error { return &AbortingError{Cause: cause} }

// AnalyzerError represents a single document's non-aborting analysis
// failure (spec §7 "Non-aborting analyzer error"): the docID is marked
// deleted-before-flush and indexing continues.
type AnalyzerError struct {
	DocID int
	Cause error
}

func (e *AnalyzerError) Error() string {
	return fmt.Sprintf("index: analyzer error on doc %d: %v", e.DocID, e.Cause)
}
func (e *AnalyzerError) Unwrap() error { return e.Cause }

// ErrProgrammer is returned for invariant violations (spec §7
// "Programmer error"), e.g. terms submitted out of order to the
// block-tree writer. These should fail loud and fast; they are never
// expected in correct caller code.
var ErrProgrammer = errors.New("index: programmer error: invariant violated")

// IsCorrupt reports whether err is (or wraps) a CorruptIndexError.
func IsCorrupt(err error) bool {
	var c *CorruptIndexError
	return errors.As(err, &c)
}
