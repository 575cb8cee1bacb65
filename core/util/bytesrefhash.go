package util

import "github.com/cespare/xxhash/v2"

// BytesStartArray is the parallel-array-of-term-state callback a
// BytesRefHash delegates growth to; the index package's
// ParallelPostingsArray implements this. Mirrors the BytesStartArray
// interface implied by PostingsBytesStartArray in the teacher's
// invertedDocConsumerPerField.go.
type BytesStartArray interface {
	// Init is called lazily the first time a slot is needed and
	// returns the (possibly freshly allocated) textStarts slice to
	// index into.
	Init() []int
	// Clear releases the backing array.
	Clear() []int
	// BytesUsed returns the RAM counter the array should charge growth to.
	BytesUsed() *Counter
}

const hashInitSize = 4

// BytesRefHash maps term byte sequences to small integer term ids,
// backed by a ByteBlockPool for the actual bytes (so the hash table
// itself never stores more than a slab offset per slot) and rehashing
// at load factor >= 1/2 per spec §4.3.
//
// Mirrors util.BytesRefHash, constructed in the teacher's
// invertedDocConsumerPerField.go as
// util.NewBytesRefHash(termBytePool, HASH_INIT_SIZE, byteStarts).
type BytesRefHash struct {
	pool       *ByteBlockPool
	startArray BytesStartArray
	bytesStart []int // term id -> textStart in pool

	hashSize int
	hashMask int
	ids      []int // hash slot -> term id, or -1

	count int
	lastCount int
}

// NewBytesRefHash constructs a hash table over pool, sized to
// initialCapacity (rounded up to a power of two >= hashInitSize), with
// startArray supplying/growing the parallel bytesStart array.
func NewBytesRefHash(pool *ByteBlockPool, initialCapacity int, startArray BytesStartArray) *BytesRefHash {
	if initialCapacity < hashInitSize {
		initialCapacity = hashInitSize
	}
	size := 1
	for size < initialCapacity {
		size <<= 1
	}
	h := &BytesRefHash{
		pool:       pool,
		startArray: startArray,
		hashSize:   size,
		hashMask:   size - 1,
		lastCount:  -1,
	}
	h.ids = make([]int, size)
	for i := range h.ids {
		h.ids[i] = -1
	}
	return h
}

// Size returns the number of distinct terms currently hashed.
func (h *BytesRefHash) Size() int { return h.count }

func hashBytes(b []byte) uint32 {
	return uint32(xxhash.Sum64(b))
}

// Find returns the term id for term, or -1 if absent.
func (h *BytesRefHash) Find(term []byte) int {
	code := hashBytes(term)
	hashPos := int(code) & h.hashMask
	id := h.ids[hashPos]
	for id != -1 && !h.equals(id, term) {
		hashPos = (hashPos + 1) & h.hashMask
		id = h.ids[hashPos]
	}
	return id
}

func (h *BytesRefHash) equals(id int, term []byte) bool {
	start := h.bytesStart[id]
	buf, off := h.pool.BufferAndOffset(start)
	length := int(buf[off])
	off++
	if length != len(term) {
		return false
	}
	for i := 0; i < length; i++ {
		if buf[off+i] != term[i] {
			return false
		}
	}
	return true
}

// Add inserts term if absent and returns its term id (>= 0). If the
// term already exists, returns -(id+1) the way Lucene's BytesRefHash
// does, so callers can distinguish "new term" from "seen before"
// without a second lookup.
func (h *BytesRefHash) Add(term []byte) int {
	if h.bytesStart == nil {
		h.bytesStart = h.startArray.Init()
	}
	code := hashBytes(term)
	hashPos := int(code) & h.hashMask
	id := h.ids[hashPos]
	for id != -1 {
		if h.equals(id, term) {
			return -(id + 1)
		}
		hashPos = (hashPos + 1) & h.hashMask
		id = h.ids[hashPos]
	}

	textStart := h.writeTerm(term)
	id = h.count
	h.count++
	if id >= len(h.bytesStart) {
		h.bytesStart = h.startArray.Init()
	}
	h.bytesStart[id] = textStart
	h.ids[hashPos] = id

	if h.count >= h.hashSize/2 {
		h.rehash(2 * h.hashSize)
	}
	return id
}

// writeTerm copies the term bytes (length-prefixed with a single byte,
// sufficient for terms up to 255 bytes as Lucene enforces) into the
// pool and returns its global (pool-wide) start offset. Unlike a posting
// stream's growable slice chain, a term's bytes are fixed-length once
// known, so this allocates the exact span directly rather than going
// through the level-sized NewSlice growth table.
func (h *BytesRefHash) writeTerm(term []byte) int {
	needed := 1 + len(term)
	if h.pool.Buffer == nil || ByteBlockSize-h.pool.ByteUpto < needed {
		h.pool.NextBuffer()
	}
	start := h.pool.ByteOffset - ByteBlockSize + h.pool.ByteUpto
	buf, off := h.pool.BufferAndOffset(start)
	buf[off] = byte(len(term))
	copy(buf[off+1:], term)
	h.pool.ByteUpto += needed
	return start
}

// Term returns the bytes previously stored for id.
func (h *BytesRefHash) Term(id int) []byte {
	start := h.bytesStart[id]
	buf, off := h.pool.BufferAndOffset(start)
	length := int(buf[off])
	out := make([]byte, length)
	copy(out, buf[off+1:off+1+length])
	return out
}

func (h *BytesRefHash) rehash(newSize int) {
	newMask := newSize - 1
	newIds := make([]int, newSize)
	for i := range newIds {
		newIds[i] = -1
	}
	for _, id := range h.ids {
		if id == -1 {
			continue
		}
		term := h.Term(id)
		code := hashBytes(term)
		pos := int(code) & newMask
		for newIds[pos] != -1 {
			pos = (pos + 1) & newMask
		}
		newIds[pos] = id
	}
	h.ids = newIds
	h.hashSize = newSize
	h.hashMask = newMask
}

// Clear empties the hash. If clearPool is true the backing byte pool
// is also released; TermsHashPerField.shrinkHash calls this with false
// so the slab allocation can be reused across documents within the
// same flush cycle cheaply, matching h.bytesHash.Clear(false) in the
// teacher.
func (h *BytesRefHash) Clear(clearPool bool) {
	h.lastCount = h.count
	h.count = 0
	if clearPool {
		h.pool.Reset()
	}
	for i := range h.ids {
		h.ids[i] = -1
	}
	h.bytesStart = h.startArray.Clear()
}

// CompactIDs returns term ids 0..Size()-1 in insertion order (the order
// callers iterate docs in); term-order sorting for dictionary emission
// is done separately by the caller using Term.
func (h *BytesRefHash) CompactIDs() []int {
	ids := make([]int, h.count)
	for i := range ids {
		ids[i] = i
	}
	return ids
}
