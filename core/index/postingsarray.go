package index

import "github.com/golucene/golucene/core/util"

// ParallelPostingsArray holds, per term id, the parallel streams the
// postings accumulator needs: the pending (not-yet-flushed) doc delta
// for the document currently being indexed, the running frequency and
// total-term-frequency counters, and the pool-backed doc/position
// streams themselves.
//
// Adapted from the teacher's ParallelPostingsArray
// (invertedDocConsumerPerField.go), which only carried generic
// textStarts/intStarts/byteStarts placeholders; here the fields are
// the concrete ones TermsHashPerField in this module actually needs,
// following the same "parallel array indexed by term id, grown
// together" shape.
type ParallelPostingsArray struct {
	size int

	lastDocID     []int32 // last docID this term was seen in (0 = never)
	pendingDelta  []int32 // docID delta pending a flush at finishDocument
	curFreq       []int32 // in-progress frequency for the open doc
	lastPosition  []int32 // last position written, for delta coding

	docFreq       []int32 // number of docs containing this term
	totalTermFreq []int64 // sum of freq across all docs (DOCS_ONLY: unused)

	docStream []*util.PostingsStreamWriter
	docStreamLen []int64
	posStream []*util.PostingsStreamWriter
	posStreamLen []int64
}

// BytesPerPosting mirrors BYTES_PER_POSTING in the teacher, scaled up
// to this array's wider per-term footprint (8 int32/int64-ish fields),
// used for the RAM accounting callback.
const BytesPerPosting = 8 * 8

func newParallelPostingsArray() *ParallelPostingsArray {
	return &ParallelPostingsArray{}
}

func (a *ParallelPostingsArray) bytesPerPosting() int { return BytesPerPosting }

// grow ensures the parallel slices can address id.
func (a *ParallelPostingsArray) grow(id int) {
	if id < a.size {
		return
	}
	newSize := a.size
	if newSize == 0 {
		newSize = 2
	}
	for newSize <= id {
		newSize *= 2
	}
	a.lastDocID = growInt32(a.lastDocID, newSize)
	a.pendingDelta = growInt32(a.pendingDelta, newSize)
	a.curFreq = growInt32(a.curFreq, newSize)
	a.lastPosition = growInt32(a.lastPosition, newSize)
	a.docFreq = growInt32(a.docFreq, newSize)
	a.totalTermFreq = growInt64(a.totalTermFreq, newSize)
	a.docStream = growStreamPtr(a.docStream, newSize)
	a.docStreamLen = growInt64(a.docStreamLen, newSize)
	a.posStream = growStreamPtr(a.posStream, newSize)
	a.posStreamLen = growInt64(a.posStreamLen, newSize)
	a.size = newSize
}

func growInt32(s []int32, n int) []int32 {
	next := make([]int32, n)
	copy(next, s)
	return next
}

func growInt64(s []int64, n int) []int64 {
	next := make([]int64, n)
	copy(next, s)
	return next
}

func growStreamPtr(s []*util.PostingsStreamWriter, n int) []*util.PostingsStreamWriter {
	next := make([]*util.PostingsStreamWriter, n)
	copy(next, s)
	return next
}
