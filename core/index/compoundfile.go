package index

import (
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/golang/snappy"

	"github.com/golucene/golucene/core/codec"
	"github.com/golucene/golucene/core/index/model"
	"github.com/golucene/golucene/core/store"
)

// Compound-file container (spec §4.2, §4.8): packs K logical files into
// one physical "<segment>.cfs" data file plus a "<segment>.cfe" entries
// table recording (name -> offset, length).

const (
	cfsCodecName = "CompoundFileData"
	cfeCodecName = "CompoundFileEntries"
	cfsVersion   = 1

	compoundDataExtension    = "cfs"
	compoundEntriesExtension = "cfe"

	// defaultSpillCompressThreshold is the entry size, in bytes, at or
	// above which a spilled (not directly streamed) entry is
	// snappy-compressed before being merged into the .cfs data file
	// (SPEC_FULL.md Domain Stack).
	defaultSpillCompressThreshold = 1024
)

// compoundEntry is one row of the .cfe entries table.
type compoundEntry struct {
	Name               string
	Offset             int64
	Length             int64 // on-disk length within the .cfs data file
	Compressed         bool
	UncompressedLength int64
}

type spillEntry struct {
	name     string
	tempName string
}

// CompoundFileWriter packs logical files into one physical .cfs data
// file plus a .cfe entries table (spec §4.2). At most one output
// streams directly into the data file at a time (spec §4.2
// "Concurrency: at most one output may write directly into the data
// stream at a time"); a CreateOutput call made while another output is
// still open is spilled to a temporary file in dir and merged into the
// data file, optionally snappy-compressed, when the writer itself is
// closed ("others are spilled... and copied in on close").
type CompoundFileWriter struct {
	dir         store.Directory
	segmentName string

	dataOut store.IndexOutput

	CompressThreshold int64

	mu           sync.Mutex
	directActive bool
	entries      []compoundEntry
	spills       []spillEntry
	closed       bool
}

// NewCompoundFileWriter opens "<segmentName>.cfs" and writes its header.
func NewCompoundFileWriter(dir store.Directory, segmentName string) (*CompoundFileWriter, error) {
	out, err := dir.CreateOutput(segmentName + "." + compoundDataExtension)
	if err != nil {
		return nil, err
	}
	if err := codec.WriteHeader(out, cfsCodecName, cfsVersion); err != nil {
		out.Close()
		return nil, err
	}
	return &CompoundFileWriter{
		dir:               dir,
		segmentName:       segmentName,
		dataOut:           out,
		CompressThreshold: defaultSpillCompressThreshold,
	}, nil
}

// CreateOutput opens a new logical file named name within the
// compound: directly into the data stream if no other output is
// currently open, otherwise spilled to a temporary file merged in on
// Close.
func (w *CompoundFileWriter) CreateOutput(name string) (store.IndexOutput, error) {
	w.mu.Lock()
	if !w.directActive {
		w.directActive = true
		start := w.dataOut.FilePointer()
		w.mu.Unlock()
		return &compoundDirectOutput{writer: w, name: name, start: start}, nil
	}
	w.mu.Unlock()

	tempName := fmt.Sprintf("%s.spill.%s", w.segmentName, name)
	out, err := w.dir.CreateOutput(tempName)
	if err != nil {
		return nil, err
	}
	return &compoundSpillOutput{writer: w, name: name, tempName: tempName, out: out}, nil
}

// AddFile copies an already-written, already-synced file straight into
// the compound (spec §4.8's post-flush packing sequence: "after all
// segment files are written and synced, copy each into the compound
// container in a deterministic order").
func (w *CompoundFileWriter) AddFile(name string) error {
	in, err := w.dir.OpenInput(name, store.DefaultIOContext)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := w.CreateOutput(name)
	if err != nil {
		return err
	}
	// Read the exact known length rather than io.Copy: some
	// store.IndexInput implementations (e.g. RAMDirectory's) signal EOF
	// with a plain error rather than io.EOF, which io.Copy doesn't treat
	// as a clean stream end.
	data := make([]byte, in.Length())
	if _, err := io.ReadFull(in, data); err != nil {
		out.Close()
		return err
	}
	if _, err := out.Write(data); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func (w *CompoundFileWriter) releaseDirect() {
	w.mu.Lock()
	w.directActive = false
	w.mu.Unlock()
}

func (w *CompoundFileWriter) addEntry(e compoundEntry) {
	w.mu.Lock()
	w.entries = append(w.entries, e)
	w.mu.Unlock()
}

func (w *CompoundFileWriter) addSpill(s spillEntry) {
	w.mu.Lock()
	w.spills = append(w.spills, s)
	w.mu.Unlock()
}

// Close merges every spilled file into the data stream, writes the
// data file's footer, then writes the .cfe entries table.
func (w *CompoundFileWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	for _, s := range w.spills {
		if err := w.mergeSpill(s); err != nil {
			return err
		}
	}
	if err := codec.WriteFooter(w.dataOut); err != nil {
		w.dataOut.Close()
		return err
	}
	if err := w.dataOut.Close(); err != nil {
		return err
	}
	return w.writeEntriesTable()
}

func (w *CompoundFileWriter) mergeSpill(s spillEntry) error {
	in, err := w.dir.OpenInput(s.tempName, store.DefaultIOContext)
	if err != nil {
		return err
	}
	data := make([]byte, in.Length())
	if _, err := io.ReadFull(in, data); err != nil {
		in.Close()
		return err
	}
	in.Close()
	if err := w.dir.DeleteFile(s.tempName); err != nil {
		return err
	}

	offset := w.dataOut.FilePointer()
	payload := data
	compressed := false
	if int64(len(data)) >= w.CompressThreshold {
		payload = snappy.Encode(nil, data)
		compressed = true
	}
	if _, err := w.dataOut.Write(payload); err != nil {
		return err
	}
	w.entries = append(w.entries, compoundEntry{
		Name:               s.name,
		Offset:             offset,
		Length:             int64(len(payload)),
		Compressed:         compressed,
		UncompressedLength: int64(len(data)),
	})
	return nil
}

func (w *CompoundFileWriter) writeEntriesTable() error {
	sort.Slice(w.entries, func(i, j int) bool { return w.entries[i].Name < w.entries[j].Name })

	out, err := w.dir.CreateOutput(w.segmentName + "." + compoundEntriesExtension)
	if err != nil {
		return err
	}
	if err := codec.WriteHeader(out, cfeCodecName, cfsVersion); err != nil {
		out.Close()
		return err
	}
	if err := writeVInt(out, int32(len(w.entries))); err != nil {
		out.Close()
		return err
	}
	for _, e := range w.entries {
		if err := writeCompoundEntry(out, e); err != nil {
			out.Close()
			return err
		}
	}
	if err := codec.WriteFooter(out); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func writeCompoundEntry(out store.IndexOutput, e compoundEntry) error {
	if err := writeCompoundString(out, e.Name); err != nil {
		return err
	}
	if err := writeVLong(out, e.Offset); err != nil {
		return err
	}
	if err := writeVLong(out, e.Length); err != nil {
		return err
	}
	if err := writeBool(out, e.Compressed); err != nil {
		return err
	}
	return writeVLong(out, e.UncompressedLength)
}

func writeCompoundString(out store.IndexOutput, s string) error {
	if err := writeVInt(out, int32(len(s))); err != nil {
		return err
	}
	_, err := out.Write([]byte(s))
	return err
}

func readCompoundString(in store.IndexInput) (string, error) {
	n, err := readVIntIn(in)
	if err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(in, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

// compoundDirectOutput streams straight into the compound's shared data
// file, recording its own [start, end) span as an entry on Close.
type compoundDirectOutput struct {
	writer *CompoundFileWriter
	name   string
	start  int64
	closed bool
}

func (o *compoundDirectOutput) Write(p []byte) (int, error) { return o.writer.dataOut.Write(p) }
func (o *compoundDirectOutput) WriteByte(b byte) error       { return o.writer.dataOut.WriteByte(b) }
func (o *compoundDirectOutput) Name() string                 { return o.name }
func (o *compoundDirectOutput) FilePointer() int64 {
	return o.writer.dataOut.FilePointer() - o.start
}
func (o *compoundDirectOutput) Checksum() uint32 { return o.writer.dataOut.Checksum() }

func (o *compoundDirectOutput) Close() error {
	if o.closed {
		return nil
	}
	o.closed = true
	length := o.writer.dataOut.FilePointer() - o.start
	o.writer.addEntry(compoundEntry{Name: o.name, Offset: o.start, Length: length})
	o.writer.releaseDirect()
	return nil
}

// compoundSpillOutput writes to a temporary backing file; the writer
// merges it into the shared data stream when the whole
// CompoundFileWriter is closed.
type compoundSpillOutput struct {
	writer   *CompoundFileWriter
	name     string
	tempName string
	out      store.IndexOutput
	closed   bool
}

func (o *compoundSpillOutput) Write(p []byte) (int, error) { return o.out.Write(p) }
func (o *compoundSpillOutput) WriteByte(b byte) error       { return o.out.WriteByte(b) }
func (o *compoundSpillOutput) Name() string                 { return o.name }
func (o *compoundSpillOutput) FilePointer() int64           { return o.out.FilePointer() }
func (o *compoundSpillOutput) Checksum() uint32              { return o.out.Checksum() }

func (o *compoundSpillOutput) Close() error {
	if o.closed {
		return nil
	}
	o.closed = true
	if err := o.out.Close(); err != nil {
		return err
	}
	o.writer.addSpill(spillEntry{name: o.name, tempName: o.tempName})
	return nil
}

// CompoundFileReader opens a previously written .cfs/.cfe pair and
// implements store.Directory over its packed entries (spec §4.1: "a
// concrete implementation... packs many logical files into one
// physical compound file"), so a segment's files can be read uniformly
// whether or not it was ever packed.
type CompoundFileReader struct {
	segmentName string
	dataName    string
	dataIn      store.IndexInput
	entries     map[string]compoundEntry
	names       []string
}

// OpenCompoundFileReader opens "<segmentName>.cfs"/".cfe" and reads the
// entries table.
func OpenCompoundFileReader(dir store.Directory, segmentName string) (*CompoundFileReader, error) {
	dataName := segmentName + "." + compoundDataExtension
	entriesName := segmentName + "." + compoundEntriesExtension

	dataIn, err := dir.OpenInput(dataName, store.DefaultIOContext)
	if err != nil {
		return nil, err
	}
	if _, err := codec.CheckHeader(dataIn, cfsCodecName, cfsVersion, cfsVersion); err != nil {
		dataIn.Close()
		return nil, err
	}

	entriesIn, err := dir.OpenInput(entriesName, store.DefaultIOContext)
	if err != nil {
		dataIn.Close()
		return nil, err
	}
	defer entriesIn.Close()
	if _, err := codec.CheckHeader(entriesIn, cfeCodecName, cfsVersion, cfsVersion); err != nil {
		dataIn.Close()
		return nil, err
	}
	count, err := readVIntIn(entriesIn)
	if err != nil {
		dataIn.Close()
		return nil, err
	}

	r := &CompoundFileReader{
		segmentName: segmentName,
		dataName:    dataName,
		dataIn:      dataIn,
		entries:     make(map[string]compoundEntry, count),
		names:       make([]string, 0, count),
	}
	for i := int32(0); i < count; i++ {
		e, err := readCompoundEntry(entriesIn)
		if err != nil {
			dataIn.Close()
			return nil, err
		}
		r.entries[e.Name] = e
		r.names = append(r.names, e.Name)
	}
	sort.Strings(r.names)
	return r, nil
}

func readCompoundEntry(in store.IndexInput) (compoundEntry, error) {
	var e compoundEntry
	name, err := readCompoundString(in)
	if err != nil {
		return e, err
	}
	offset, err := readVLongIn(in)
	if err != nil {
		return e, err
	}
	length, err := readVLongIn(in)
	if err != nil {
		return e, err
	}
	compressedByte, err := in.ReadByte()
	if err != nil {
		return e, err
	}
	uncompressedLength, err := readVLongIn(in)
	if err != nil {
		return e, err
	}
	e.Name, e.Offset, e.Length = name, offset, length
	e.Compressed = compressedByte != 0
	e.UncompressedLength = uncompressedLength
	return e, nil
}

// OpenInput implements the spec §4.2 "openSlice(name) -> sliced input"
// operation: a bounded, offset-relative cursor over one packed entry.
// Compressed entries are decompressed eagerly into an in-memory
// IndexInput since Roaring/vellum/block-tree readers all expect
// Seek/ReadAt over the decoded bytes.
func (r *CompoundFileReader) OpenInput(name string, ctx store.IOContext) (store.IndexInput, error) {
	e, ok := r.entries[name]
	if !ok {
		return nil, fmt.Errorf("index: compound file %s has no entry %q", r.segmentName, name)
	}
	if !e.Compressed {
		return r.dataIn.Slice(name, e.Offset, e.Length)
	}

	raw := make([]byte, e.Length)
	if _, err := r.dataIn.ReadAt(raw, e.Offset); err != nil {
		return nil, err
	}
	decoded, err := snappy.Decode(nil, raw)
	if err != nil {
		return nil, err
	}
	return newMemoryIndexInput(name, decoded), nil
}

func (r *CompoundFileReader) ListAll() ([]string, error) {
	return append([]string(nil), r.names...), nil
}

func (r *CompoundFileReader) FileExists(name string) bool {
	_, ok := r.entries[name]
	return ok
}

func (r *CompoundFileReader) FileLength(name string) (int64, error) {
	e, ok := r.entries[name]
	if !ok {
		return 0, fmt.Errorf("index: compound file %s has no entry %q", r.segmentName, name)
	}
	if e.Compressed {
		return e.UncompressedLength, nil
	}
	return e.Length, nil
}

func (r *CompoundFileReader) CreateOutput(name string) (store.IndexOutput, error) {
	return nil, fmt.Errorf("index: compound file %s is read-only", r.segmentName)
}

func (r *CompoundFileReader) DeleteFile(name string) error {
	return fmt.Errorf("index: compound file %s is read-only", r.segmentName)
}

func (r *CompoundFileReader) Sync(names []string) error { return nil }

func (r *CompoundFileReader) MakeLock(name string) store.Lock {
	panic("index: compound file reader does not support locking")
}

func (r *CompoundFileReader) Close() error { return r.dataIn.Close() }

// memoryIndexInput is a small IndexInput over an in-memory byte slice,
// used to hand back a decompressed spilled-and-compressed compound
// entry (compound entries are otherwise served by slicing the .cfs
// file directly, with no decode step).
type memoryIndexInput struct {
	name string
	data []byte
	pos  int64
}

func newMemoryIndexInput(name string, data []byte) *memoryIndexInput {
	return &memoryIndexInput{name: name, data: data}
}

func (in *memoryIndexInput) Read(p []byte) (int, error) {
	if in.pos >= int64(len(in.data)) {
		return 0, io.EOF
	}
	n := copy(p, in.data[in.pos:])
	in.pos += int64(n)
	return n, nil
}

func (in *memoryIndexInput) ReadByte() (byte, error) {
	if in.pos >= int64(len(in.data)) {
		return 0, io.EOF
	}
	b := in.data[in.pos]
	in.pos++
	return b, nil
}

func (in *memoryIndexInput) ReadAt(p []byte, off int64) (int, error) {
	if off >= int64(len(in.data)) {
		return 0, io.EOF
	}
	return copy(p, in.data[off:]), nil
}

func (in *memoryIndexInput) Seek(pos int64) error { in.pos = pos; return nil }
func (in *memoryIndexInput) FilePointer() int64   { return in.pos }
func (in *memoryIndexInput) Length() int64        { return int64(len(in.data)) }
func (in *memoryIndexInput) Name() string         { return in.name }
func (in *memoryIndexInput) Close() error         { return nil }

func (in *memoryIndexInput) Clone() store.IndexInput {
	clone := *in
	return &clone
}

func (in *memoryIndexInput) Slice(_ string, offset, length int64) (store.IndexInput, error) {
	if offset < 0 || length < 0 || offset+length > int64(len(in.data)) {
		return nil, fmt.Errorf("index: slice out of bounds")
	}
	return &memoryIndexInput{name: in.name, data: in.data[offset : offset+length]}, nil
}

// PackSegment implements spec §4.8's post-flush packing sequence: copy
// every one of info's files into a new compound container in sorted
// (deterministic) order, then delete the originals and repoint info at
// the compound pair.
func PackSegment(dir store.Directory, info *model.SegmentInfo) error {
	files := info.Files()
	sort.Strings(files)

	w, err := NewCompoundFileWriter(dir, info.Name)
	if err != nil {
		return err
	}
	for _, f := range files {
		if err := w.AddFile(f); err != nil {
			return err
		}
	}
	if err := w.Close(); err != nil {
		return err
	}

	cfsName := info.Name + "." + compoundDataExtension
	cfeName := info.Name + "." + compoundEntriesExtension
	if err := dir.Sync([]string{cfsName, cfeName}); err != nil {
		return err
	}
	for _, f := range files {
		if err := dir.DeleteFile(f); err != nil {
			return err
		}
	}
	info.SetCompoundFiles(cfsName, cfeName)
	return nil
}
