package util

// PostingsStreamWriter appends bytes to a chain of fixed-size chunks
// carved out of a ByteBlockPool, linking chunks by a 4-byte forward
// pointer stored in each chunk's trailing bytes (spec §4.3 "streams
// are linked by forward pointers across slabs to avoid copying on
// growth", spec §9 "FST traversal"/"Iterator reuse" apply the same
// no-copy-on-growth idea to postings).
//
// This is a deliberately simplified cousin of Lucene's variable-level
// slice-growth scheme (5/14/20/30/40/80/120/200-byte levels): a single
// fixed chunk size keeps the forward-pointer bookkeeping small while
// preserving the property the spec actually cares about — appending
// never reallocates or copies previously written bytes.
const postingsChunkSize = 32
const postingsChunkPayload = postingsChunkSize - 4

// PostingsStreamWriter is the write cursor for one term's per-doc (or
// per-position) byte stream.
type PostingsStreamWriter struct {
	pool        *ByteBlockPool
	startOffset int
	curOffset   int
	curPos      int
	length      int64
}

// NewPostingsStreamWriter allocates the first chunk of a new stream.
func NewPostingsStreamWriter(pool *ByteBlockPool) *PostingsStreamWriter {
	off := pool.allocChunk(postingsChunkSize)
	w := &PostingsStreamWriter{pool: pool, startOffset: off, curOffset: off}
	w.clearForwardPointer()
	return w
}

// StartOffset is the stream's stable start, stored by the caller
// (ParallelPostingsArray) to hand to a reader later.
func (w *PostingsStreamWriter) StartOffset() int { return w.startOffset }

// Len returns the number of bytes written so far.
func (w *PostingsStreamWriter) Len() int64 { return w.length }

func (w *PostingsStreamWriter) clearForwardPointer() {
	buf, off := w.pool.BufferAndOffset(w.curOffset)
	buf[off+postingsChunkPayload] = 0
	buf[off+postingsChunkPayload+1] = 0
	buf[off+postingsChunkPayload+2] = 0
	buf[off+postingsChunkPayload+3] = 0
}

// WriteByte appends a single byte, rolling over to a freshly allocated
// chunk (and wiring the forward pointer) when the current one fills.
func (w *PostingsStreamWriter) WriteByte(b byte) {
	if w.curPos == postingsChunkPayload {
		next := w.pool.allocChunk(postingsChunkSize)
		buf, off := w.pool.BufferAndOffset(w.curOffset)
		putUint32(buf[off+postingsChunkPayload:], uint32(next+1)) // +1 so 0 stays "no next"
		w.curOffset = next
		w.curPos = 0
		w.clearForwardPointer()
	}
	buf, off := w.pool.BufferAndOffset(w.curOffset)
	buf[off+w.curPos] = b
	w.curPos++
	w.length++
}

// WriteVInt appends v using the shared VInt encoding.
func (w *PostingsStreamWriter) WriteVInt(v int32) {
	var tmp []byte
	tmp = WriteVInt(tmp, v)
	for _, b := range tmp {
		w.WriteByte(b)
	}
}

// WriteVLong appends v using the shared VLong encoding.
func (w *PostingsStreamWriter) WriteVLong(v int64) {
	var tmp []byte
	tmp = WriteVLong(tmp, v)
	for _, b := range tmp {
		w.WriteByte(b)
	}
}

func putUint32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

func getUint32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

// PostingsStreamReader replays a stream written by PostingsStreamWriter.
type PostingsStreamReader struct {
	pool      *ByteBlockPool
	curOffset int
	pos       int
	remaining int64
}

// NewPostingsStreamReader begins reading the stream starting at
// startOffset with the given total length (the length is tracked
// alongside the stream by the caller, e.g. in ParallelPostingsArray,
// since the chunk chain itself carries no length prefix).
func NewPostingsStreamReader(pool *ByteBlockPool, startOffset int, length int64) *PostingsStreamReader {
	return &PostingsStreamReader{pool: pool, curOffset: startOffset, remaining: length}
}

// ReadByte returns the next byte, or ok=false at end of stream.
func (r *PostingsStreamReader) ReadByte() (byte, bool) {
	if r.remaining <= 0 {
		return 0, false
	}
	if r.pos == postingsChunkPayload {
		buf, off := r.pool.BufferAndOffset(r.curOffset)
		next := getUint32(buf[off+postingsChunkPayload:])
		if next == 0 {
			return 0, false
		}
		r.curOffset = int(next) - 1
		r.pos = 0
	}
	buf, off := r.pool.BufferAndOffset(r.curOffset)
	b := buf[off+r.pos]
	r.pos++
	r.remaining--
	return b, true
}

// ReadVInt decodes a VInt from the stream.
func (r *PostingsStreamReader) ReadVInt() (int32, bool) {
	var result uint32
	var shift uint
	for {
		b, ok := r.ReadByte()
		if !ok {
			return 0, false
		}
		result |= uint32(b&0x7F) << shift
		if b&0x80 == 0 {
			return int32(result), true
		}
		shift += 7
	}
}

// ReadVLong decodes a VLong from the stream.
func (r *PostingsStreamReader) ReadVLong() (int64, bool) {
	var result uint64
	var shift uint
	for {
		b, ok := r.ReadByte()
		if !ok {
			return 0, false
		}
		result |= uint64(b&0x7F) << shift
		if b&0x80 == 0 {
			return int64(result), true
		}
		shift += 7
	}
}

// allocChunk carves size bytes out of the pool's current buffer,
// rolling to a new slab when it doesn't fit, and returns the global
// (buffer-index-encoded) offset.
func (p *ByteBlockPool) allocChunk(size int) int {
	if p.Buffer == nil || ByteBlockSize-p.ByteUpto < size {
		p.NextBuffer()
	}
	off := p.ByteOffset - ByteBlockSize + p.ByteUpto
	p.ByteUpto += size
	return off
}
