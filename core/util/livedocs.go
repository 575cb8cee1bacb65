package util

import (
	"bytes"
	"io"

	"github.com/RoaringBitmap/roaring"
)

// LiveDocs is the live-docs bitset described in spec §3 Segment: a
// segment with no LiveDocs is "all live"; otherwise the set holds the
// *deleted* docIDs (the bitmap's complement within [0, maxDoc) is what
// is live). Storing deletes rather than survivors means a freshly
// flushed segment with zero deletions needs no bitset at all, matching
// "absent means all live".
//
// Backed by github.com/RoaringBitmap/roaring (see SPEC_FULL.md Domain
// Stack) for compact storage and fast Contains/Add under concurrent
// buffered-deletes application.
type LiveDocs struct {
	deleted *roaring.Bitmap
	maxDoc  int
}

// NewLiveDocs returns an all-live bitset for maxDoc documents.
func NewLiveDocs(maxDoc int) *LiveDocs {
	return &LiveDocs{deleted: roaring.New(), maxDoc: maxDoc}
}

// Delete marks docID deleted. Returns true if this is a new deletion.
func (l *LiveDocs) Delete(docID int) bool {
	return l.deleted.CheckedAdd(uint32(docID))
}

// IsLive reports whether docID is still live.
func (l *LiveDocs) IsLive(docID int) bool {
	return !l.deleted.Contains(uint32(docID))
}

// DeletedCount returns the number of deleted documents.
func (l *LiveDocs) DeletedCount() int {
	return int(l.deleted.GetCardinality())
}

// MaxDoc returns the segment's document count this bitset covers.
func (l *LiveDocs) MaxDoc() int { return l.maxDoc }

// Clone returns an independent copy, used when a segment's live-docs
// must be copy-on-write published as a new delGen (spec §5 "published
// via copy-on-write of a small handle").
func (l *LiveDocs) Clone() *LiveDocs {
	return &LiveDocs{deleted: l.deleted.Clone(), maxDoc: l.maxDoc}
}

// WriteTo serializes the bitset (Roaring's own portable format) to w.
func (l *LiveDocs) WriteTo(w io.Writer) (int64, error) {
	return l.deleted.WriteTo(w)
}

// ReadLiveDocs deserializes a bitset previously written by WriteTo.
func ReadLiveDocs(data []byte, maxDoc int) (*LiveDocs, error) {
	bm := roaring.New()
	if _, err := bm.ReadFrom(bytes.NewReader(data)); err != nil {
		return nil, err
	}
	return &LiveDocs{deleted: bm, maxDoc: maxDoc}, nil
}

// Or merges other's deletions into l in place (used when coalescing
// delete sets in the buffered-deletes apply algorithm, spec §4.6).
func (l *LiveDocs) Or(other *LiveDocs) {
	l.deleted.Or(other.deleted)
}
