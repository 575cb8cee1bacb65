package index

import (
	"github.com/golucene/golucene/core/index/model"
	"github.com/golucene/golucene/core/util"
)

// DocumentsWriterPerThread is the per-thread indexing session of spec
// §4.3/§4.4: it owns one set of slab pools and one TermsHashPerField
// per field name, processes documents one at a time, and reports when
// its RAM usage has crossed the configured flush threshold so the
// owning writer can hand it off to flush.go.
//
// Not present in the teacher fragment (the teacher only got as far as
// the per-field consumer plumbing); built in the teacher's idiom,
// reusing its pool/counter vocabulary, to drive TermsHashPerField
// across a whole segment's worth of documents.
type DocumentsWriterPerThread struct {
	globalFieldNumbers *model.FieldNumbers

	pools *indexingPools
	ds    *docState

	fields    map[string]*TermsHashPerField
	fieldInfo map[string]*model.FieldInfo

	docCount int

	// deletedDocIDs accumulates docIDs struck before flush, either by
	// an explicit caller delete-by-docID or by a non-aborting analyzer
	// error on that document (spec §7 "Non-aborting analyzer error":
	// "the docID is marked deleted-before-flush and indexing
	// continues").
	deletedDocIDs map[int]bool

	ramBufferBytes int64
}

// NewDocumentsWriterPerThread constructs an empty per-thread session.
// ramBufferBytes is the RAM threshold at which NeedsFlush starts
// reporting true (spec §4.3 "RAM-threshold triggered flush").
func NewDocumentsWriterPerThread(globalFieldNumbers *model.FieldNumbers, ramBufferBytes int64) *DocumentsWriterPerThread {
	bytesUsed := util.NewCounter()
	return &DocumentsWriterPerThread{
		globalFieldNumbers: globalFieldNumbers,
		pools: &indexingPools{
			intPool:      util.NewIntBlockPool(bytesUsed),
			bytePool:     util.NewByteBlockPool(bytesUsed),
			termBytePool: util.NewByteBlockPool(bytesUsed),
			bytesUsed:    bytesUsed,
		},
		ds:             &docState{},
		fields:         make(map[string]*TermsHashPerField),
		fieldInfo:      make(map[string]*model.FieldInfo),
		deletedDocIDs:  make(map[int]bool),
		ramBufferBytes: ramBufferBytes,
	}
}

// StartDocument opens a new document and returns its docID, assigning
// IDs sequentially starting at 0 within this segment (spec §3 Segment
// "docID 0..DocCount-1").
func (dw *DocumentsWriterPerThread) StartDocument() int {
	docID := dw.docCount
	dw.docCount++
	dw.ds.docID = docID
	return docID
}

// perField resolves (creating on first use) the accumulator for
// fieldName, registering the field's number in the shared global map
// (spec §3 Field info invariant) and recording its IndexOptions for
// flush-time field-infos serialization.
func (dw *DocumentsWriterPerThread) perField(fieldName string, opts model.IndexOptions) *TermsHashPerField {
	h, ok := dw.fields[fieldName]
	if ok {
		return h
	}
	number := dw.globalFieldNumbers.AddOrGet(fieldName)
	fi := model.NewFieldInfo(fieldName, number, opts)
	dw.fieldInfo[fieldName] = fi
	h = newTermsHashPerField(dw.ds, dw.pools, fi)
	dw.fields[fieldName] = h
	return h
}

// AddTerm feeds one analyzed token of fieldName into that field's
// accumulator for the document currently open via StartDocument (spec
// §4.3). opts determines whether freq/positions are tracked for this
// field and must be consistent across calls for the same field name
// within one segment.
func (dw *DocumentsWriterPerThread) AddTerm(fieldName string, opts model.IndexOptions, term []byte, position int32, payload []byte) {
	dw.perField(fieldName, opts).Add(term, position, payload)
}

// FinishDocument closes out the document opened by the most recent
// StartDocument, flushing every touched field's pending postings (spec
// §4.3 "At document end, call finish-document").
func (dw *DocumentsWriterPerThread) FinishDocument() {
	for _, h := range dw.fields {
		h.FinishDocument()
	}
}

// DeleteDocID marks docID deleted-before-flush without removing it
// from the segment's doc count, matching spec §7's analyzer-error
// handling and any caller-driven "delete this doc before it's ever
// searchable" use.
func (dw *DocumentsWriterPerThread) DeleteDocID(docID int) {
	dw.deletedDocIDs[docID] = true
}

// DeletedDocIDs returns the set of docIDs struck before flush.
func (dw *DocumentsWriterPerThread) DeletedDocIDs() map[int]bool {
	return dw.deletedDocIDs
}

// RAMBytesUsed reports this thread's current slab-pool RAM footprint.
func (dw *DocumentsWriterPerThread) RAMBytesUsed() int64 {
	return dw.pools.bytesUsed.Get()
}

// NeedsFlush reports whether RAM usage has crossed the configured
// threshold, the trigger condition for spec §4.4's flush.
func (dw *DocumentsWriterPerThread) NeedsFlush() bool {
	return dw.ramBufferBytes > 0 && dw.RAMBytesUsed() >= dw.ramBufferBytes
}

// DocCount returns the number of documents started (including deleted
// ones) in this thread's in-progress segment.
func (dw *DocumentsWriterPerThread) DocCount() int {
	return dw.docCount
}

// FieldNames returns the field names touched so far, in no particular
// order; flush.go sorts them via model.FieldInfos before serializing
// (spec §4.4 step 3).
func (dw *DocumentsWriterPerThread) FieldNames() []string {
	names := make([]string, 0, len(dw.fields))
	for name := range dw.fields {
		names = append(names, name)
	}
	return names
}

// FieldHash returns the accumulator for a previously-touched field.
func (dw *DocumentsWriterPerThread) FieldHash(name string) *TermsHashPerField {
	return dw.fields[name]
}

// FieldInfo returns the FieldInfo recorded for a previously-touched
// field.
func (dw *DocumentsWriterPerThread) FieldInfo(name string) *model.FieldInfo {
	return dw.fieldInfo[name]
}

// Abort discards all in-RAM state for this thread after a fatal
// (aborting) error, per spec §7: "the in-RAM segment must be discarded
// and the manifest must never advance."
func (dw *DocumentsWriterPerThread) Abort() {
	for _, h := range dw.fields {
		h.abort()
	}
	dw.pools.bytePool.Reset()
	dw.pools.termBytePool.Reset()
	dw.pools.intPool.Reset()
	dw.docCount = 0
	dw.deletedDocIDs = make(map[int]bool)
}
