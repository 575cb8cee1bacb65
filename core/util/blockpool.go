package util

// Slab sizes match the teacher's vocabulary: a 32 KiB byte-block pool
// and an 8 KiB int-block pool (spec §4.3).
const (
	ByteBlockShift = 15
	ByteBlockSize  = 1 << ByteBlockShift // 32768
	ByteBlockMask  = ByteBlockSize - 1

	IntBlockShift = 11
	IntBlockSize  = 1 << IntBlockShift // 2048 ints == 8 KiB
	IntBlockMask  = IntBlockSize - 1

	// levelSizeArray (below) models Lucene's forward-pointer
	// level table used to grow a per-term stream without copying: each
	// stream starts at a small slice length and doubles through a fixed
	// table of level sizes, the last byte of each level reserved as a
	// forward pointer to the next slab.
)

var levelSizeArray = [...]int{5, 14, 20, 30, 40, 40, 80, 80, 120, 200}

// levelSize returns the slice length to allocate for the given level,
// clamping to the last (largest, steady-state) entry.
func levelSize(level int) int {
	if level >= len(levelSizeArray) {
		level = len(levelSizeArray) - 1
	}
	return levelSizeArray[level]
}

// ByteBlockPool is a growable pool of fixed-size byte slabs. Per-term
// streams are linked across slabs via a forward pointer stored in the
// last byte of each allocated slice, avoiding a copy on growth.
//
// Mirrors util.ByteBlockPool referenced as termsHash.bytePool /
// termBytePool in the teacher's invertedDocConsumerPerField.go.
type ByteBlockPool struct {
	Buffers     [][]byte
	bufferUpto  int
	ByteUpto    int
	Buffer      []byte
	ByteOffset  int
	bytesUsed   *Counter
}

// NewByteBlockPool returns an empty pool; bytesUsed may be nil.
func NewByteBlockPool(bytesUsed *Counter) *ByteBlockPool {
	return &ByteBlockPool{bufferUpto: -1, bytesUsed: bytesUsed}
}

// NextBuffer allocates a new 32 KiB slab and makes it current.
func (p *ByteBlockPool) NextBuffer() {
	buf := make([]byte, ByteBlockSize)
	p.Buffers = append(p.Buffers, buf)
	p.Buffer = buf
	p.bufferUpto++
	p.ByteUpto = 0
	p.ByteOffset += ByteBlockSize
	if p.bytesUsed != nil {
		p.bytesUsed.AddAndGet(ByteBlockSize)
	}
}

// NewSlice allocates a new per-term stream slot at the given level and
// returns its offset within the *current* buffer. The allocated bytes
// are zeroed except the trailing marker byte, which is set to 16 (the
// sentinel Lucene uses to recognize a slice end without a length
// prefix on the final level).
func (p *ByteBlockPool) NewSlice(level int) int {
	size := levelSize(level)
	if ByteBlockSize-p.ByteUpto < size {
		p.NextBuffer()
	}
	upto := p.ByteUpto
	p.ByteUpto += size
	p.Buffer[p.ByteUpto-1] = 16
	return upto
}

// AllocSlice allocates the first slice (level 0) for a brand-new term
// stream and returns its global (pool-wide) text-start-style offset,
// which BufferAndOffset resolves later.
func (p *ByteBlockPool) AllocSlice() (textStart int) {
	if p.Buffer == nil || ByteBlockSize-p.ByteUpto < levelSize(0) {
		p.NextBuffer()
	}
	textStart = p.ByteUpto + p.ByteOffset - ByteBlockSize
	p.ByteUpto += levelSize(0)
	p.Buffer[p.ByteUpto-1] = 16
	return textStart
}

// BufferAndOffset resolves a global offset into (buffer, offsetWithinBuffer).
func (p *ByteBlockPool) BufferAndOffset(globalOffset int) ([]byte, int) {
	bufIdx := globalOffset >> ByteBlockShift
	return p.Buffers[bufIdx], globalOffset & ByteBlockMask
}

// Reset releases all slabs (used on flush / shrinkHash, matching
// TermsHashPerField.shrinkHash which clears the hash but keeps the pool
// object alive).
func (p *ByteBlockPool) Reset() {
	if p.bytesUsed != nil {
		p.bytesUsed.AddAndGet(-int64(len(p.Buffers)) * ByteBlockSize)
	}
	p.Buffers = nil
	p.bufferUpto = -1
	p.ByteUpto = 0
	p.Buffer = nil
	p.ByteOffset = 0
}

// IntBlockPool is the int-width sibling of ByteBlockPool, holding the
// per-term pair of (byte-stream-offset, byte-stream-end) cursors that
// TermsHashPerField advances as postings are appended.
type IntBlockPool struct {
	Buffers    [][]int32
	bufferUpto int
	IntUpto    int
	Buffer     []int32
	IntOffset  int
	bytesUsed  *Counter
}

// NewIntBlockPool returns an empty pool; bytesUsed may be nil.
func NewIntBlockPool(bytesUsed *Counter) *IntBlockPool {
	return &IntBlockPool{bufferUpto: -1, bytesUsed: bytesUsed}
}

// NextBuffer allocates a new 8 KiB (2048-int32) slab.
func (p *IntBlockPool) NextBuffer() {
	buf := make([]int32, IntBlockSize)
	p.Buffers = append(p.Buffers, buf)
	p.Buffer = buf
	p.bufferUpto++
	p.IntUpto = 0
	p.IntOffset += IntBlockSize
	if p.bytesUsed != nil {
		p.bytesUsed.AddAndGet(IntBlockSize * 4)
	}
}

// Reset releases all slabs.
func (p *IntBlockPool) Reset() {
	if p.bytesUsed != nil {
		p.bytesUsed.AddAndGet(-int64(len(p.Buffers)) * IntBlockSize * 4)
	}
	p.Buffers = nil
	p.bufferUpto = -1
	p.IntUpto = 0
	p.Buffer = nil
	p.IntOffset = 0
}
