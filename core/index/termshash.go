package index

import (
	"sort"

	"github.com/golucene/golucene/core/index/model"
	"github.com/golucene/golucene/core/util"
)

// hashInitSize mirrors HASH_INIT_SIZE in the teacher's
// invertedDocConsumerPerField.go.
const hashInitSize = 4

// docState carries the handful of fields every per-field consumer
// needs about the document currently being processed, mirroring
// *docState referenced throughout the teacher.
type docState struct {
	docID int
}

// TermsHashPerField is the postings accumulator of spec §4.3: it
// consumes a stream of (term, position, payload) events for one field
// of the current document and maintains a term-hash from term bytes
// to a small integer term id indexing into parallel byte/int pools
// holding each term's docID/freq/position streams.
//
// Adapted directly from the teacher's TermsHashPerField
// (invertedDocConsumerPerField.go): the pool/hash/bytesUsed wiring is
// unchanged in shape, but where the teacher only built the plumbing
// (addField/reset/abort) this fills in the actual per-token consume
// loop and per-document finalize the spec describes.
type TermsHashPerField struct {
	docState *docState

	intPool      *util.IntBlockPool
	bytePool     *util.ByteBlockPool
	termBytePool *util.ByteBlockPool

	fieldInfo *model.FieldInfo

	bytesHash *util.BytesRefHash
	postings  *ParallelPostingsArray

	bytesUsed *util.Counter

	// touchedThisDoc holds the term ids that were touched while
	// processing the current document, so FinishDocument (spec §4.3
	// "finish-document, which finalizes the per-term state") knows
	// exactly which pending postings to flush without scanning every
	// term in the field.
	touchedThisDoc []int

	storesPayloads bool

	// fieldDocCount and lastFieldDocID track how many distinct
	// documents touched this field at all (spec §3 Field info's
	// per-field "docCount" aggregate written at flush), independent of
	// how many distinct terms each document used.
	fieldDocCount  int
	lastFieldDocID int32
}

// newTermsHashPerField constructs the per-(thread,field) accumulator.
// Mirrors newTermsHashPerField in the teacher.
func newTermsHashPerField(ds *docState, pools *indexingPools, fieldInfo *model.FieldInfo) *TermsHashPerField {
	h := &TermsHashPerField{
		docState:       ds,
		intPool:        pools.intPool,
		bytePool:       pools.bytePool,
		termBytePool:   pools.termBytePool,
		fieldInfo:      fieldInfo,
		bytesUsed:      pools.bytesUsed,
		postings:       newParallelPostingsArray(),
		storesPayloads: fieldInfo.StoresPayloads,
		lastFieldDocID: -1,
	}
	start := newPostingsBytesStartArray(h)
	h.bytesHash = util.NewBytesRefHash(h.termBytePool, hashInitSize, start)
	return h
}

// Add consumes one analyzed token: field, term bytes, position and
// optional payload (spec §4.3). On first occurrence of a term this
// doc it opens a new docID entry; on repeat it increments frequency
// and appends a position delta.
func (h *TermsHashPerField) Add(term []byte, position int32, payload []byte) {
	id := h.bytesHash.Add(term)
	isNew := id >= 0
	if !isNew {
		id = -(id + 1)
	}
	h.postings.grow(id)

	docID := int32(h.docState.docID)
	if docID != h.lastFieldDocID {
		h.fieldDocCount++
		h.lastFieldDocID = docID
	}
	if isNew {
		h.postings.lastDocID[id] = 0
		h.postings.docStream[id] = util.NewPostingsStreamWriter(h.bytePool)
		if h.fieldInfo.IndexOptions == model.DocsAndFreqsAndPositions {
			h.postings.posStream[id] = util.NewPostingsStreamWriter(h.bytePool)
		}
	}

	firstOccurrenceInDoc := isNew || h.postings.lastDocID[id] != docID || h.postings.curFreq[id] == 0
	if firstOccurrenceInDoc {
		// First occurrence of this term within the current document:
		// remember the delta to flush at FinishDocument, once freq is
		// final, and reset the per-doc position cursor. For a brand
		// new term lastDocID is 0, so the delta is simply docID itself
		// (the gap from "never seen" to this document).
		h.postings.pendingDelta[id] = docID - h.postings.lastDocID[id]
		h.postings.curFreq[id] = 1
		h.postings.lastPosition[id] = 0
		h.postings.lastDocID[id] = docID
		h.touchedThisDoc = append(h.touchedThisDoc, id)
	} else {
		h.postings.curFreq[id]++
	}

	if h.fieldInfo.IndexOptions == model.DocsAndFreqsAndPositions {
		posDelta := position - h.postings.lastPosition[id]
		w := h.postings.posStream[id]
		w.WriteVInt(posDelta)
		if h.storesPayloads {
			w.WriteVInt(int32(len(payload)))
			for _, b := range payload {
				w.WriteByte(b)
			}
		}
		h.postings.lastPosition[id] = position
		h.postings.posStreamLen[id] = w.Len()
	}
}

// FinishDocument finalizes every term touched while processing the
// current document: it flushes the pending (delta, freq) pair to the
// term's doc stream and bumps docFreq/totalTermFreq (spec §4.3).
func (h *TermsHashPerField) FinishDocument() {
	for _, id := range h.touchedThisDoc {
		w := h.postings.docStream[id]
		w.WriteVInt(h.postings.pendingDelta[id])
		if h.fieldInfo.IndexOptions != model.DocsOnly {
			w.WriteVInt(h.postings.curFreq[id])
		}
		h.postings.docStreamLen[id] = w.Len()
		h.postings.docFreq[id]++
		h.postings.totalTermFreq[id] += int64(h.postings.curFreq[id])
		h.postings.curFreq[id] = 0
	}
	h.touchedThisDoc = h.touchedThisDoc[:0]
}

// shrinkHash frees the bytesHash (and its term pool) on each flush
// while keeping the pool object itself around for reuse, matching
// h.bytesHash.Clear(false) in the teacher's shrinkHash.
func (h *TermsHashPerField) shrinkHash() {
	h.bytesHash.Clear(false)
}

// reset clears the hash without reclaiming its pool.
func (h *TermsHashPerField) reset() {
	h.bytesHash.Clear(false)
}

// abort discards all in-RAM state for this field, called when the
// owning thread hits a fatal (non-analyzer) error (spec §4.3, §7).
func (h *TermsHashPerField) abort() {
	h.reset()
}

// FieldDocCount returns the number of distinct documents that touched
// this field.
func (h *TermsHashPerField) FieldDocCount() int { return h.fieldDocCount }

// sortedTermIDs returns term ids 0..n-1 ordered by the term's byte
// value, the order flush must emit them in (spec §4.4 step 3, §4.5.1
// "strictly increasing term order").
func (h *TermsHashPerField) sortedTermIDs() []int {
	ids := h.bytesHash.CompactIDs()
	sort.Slice(ids, func(i, j int) bool {
		return compareBytes(h.bytesHash.Term(ids[i]), h.bytesHash.Term(ids[j])) < 0
	})
	return ids
}

func compareBytes(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return int(a[i]) - int(b[i])
		}
	}
	return len(a) - len(b)
}

// PostingsBytesStartArray is the BytesStartArray callback the
// BytesRefHash delegates its parallel-array growth to, matching
// PostingsBytesStartArray in the teacher's
// invertedDocConsumerPerField.go.
type PostingsBytesStartArray struct {
	perField  *TermsHashPerField
	bytesUsed *util.Counter
}

func newPostingsBytesStartArray(perField *TermsHashPerField) *PostingsBytesStartArray {
	return &PostingsBytesStartArray{perField: perField, bytesUsed: perField.bytesUsed}
}

func (ss *PostingsBytesStartArray) Init() []int {
	// Term byte storage lives directly in BytesRefHash in this port
	// (see core/util/bytesrefhash.go); the parallel postings array is
	// grown lazily from TermsHashPerField.Add instead of through this
	// callback, so Init has nothing to hand back but must satisfy the
	// BytesStartArray contract.
	return nil
}

func (ss *PostingsBytesStartArray) Clear() []int {
	ss.perField.postings = newParallelPostingsArray()
	return nil
}

func (ss *PostingsBytesStartArray) BytesUsed() *util.Counter { return ss.bytesUsed }

// indexingPools bundles the three pools TermsHashPerField shares with
// its owning per-thread state (spec §4.3: "Storage is slab-based").
type indexingPools struct {
	intPool      *util.IntBlockPool
	bytePool     *util.ByteBlockPool
	termBytePool *util.ByteBlockPool
	bytesUsed    *util.Counter
}
