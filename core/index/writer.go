package index

import (
	"fmt"
	"sync"

	"github.com/golucene/golucene/core/index/model"
	"github.com/golucene/golucene/core/store"
	"github.com/golucene/golucene/core/util"
)

// writeLockName is the process-wide advisory lock a writer holds for
// its whole lifetime (spec §4.1 makeLock, §5 "a typical writer...").
const writeLockName = "write.lock"

// findCurrentGenerationRetries bounds the reader-side fallback of spec
// §4.7: "retry a bounded number of times, then fall back to
// segments_<max-1> once".
const findCurrentGenerationRetries = 2

// WriterConfig groups the tunables spec §4.3/§4.4/§4.5/§4.8 leave to
// the caller: the RAM buffer threshold that triggers a flush, the
// block-tree's min/max items per block, and whether (and above what
// size) a flushed segment is packaged into a compound file. Grouped
// into one value and passed by construction, never read from
// environment variables (SPEC_FULL.md Ambient Stack).
type WriterConfig struct {
	// RAMBufferBytes is the RAM threshold, in bytes, at which the
	// active DocumentsWriterPerThread is flushed (spec §4.3 "RAM
	// threshold triggered flush"). Zero disables automatic flush;
	// Commit always flushes any pending documents regardless.
	RAMBufferBytes int64

	// MinItemsPerBlock/MaxItemsPerBlock hold block-tree floor-splitting
	// bounds (spec §4.5.1, §4.5.3 invariants). IndexWriter does not pass
	// them on: flush always writes with the registered BlockTree41
	// format, whose bounds are 25 and 48.
	MinItemsPerBlock int
	MaxItemsPerBlock int

	// UseCompoundFile, when true, packs every flushed segment into a
	// .cfs/.cfe pair once its total size reaches
	// CompoundFileThresholdBytes (spec §4.8). A zero threshold with
	// UseCompoundFile true packs every segment regardless of size.
	UseCompoundFile            bool
	CompoundFileThresholdBytes int64
}

// DefaultWriterConfig returns reasonable defaults: a 16MB RAM buffer, a
// block-tree floor between 25 and 48 items (matching Lucene's own
// BlockTreeTermsWriter defaults), and compound-file packing disabled
// (left to the caller to opt into, since it costs an extra copy pass).
func DefaultWriterConfig() *WriterConfig {
	return &WriterConfig{
		RAMBufferBytes:   16 << 20,
		MinItemsPerBlock: 25,
		MaxItemsPerBlock: 48,
	}
}

// IndexWriter is the top-level writer of spec §4.7: it owns the
// current published SegmentInfos manifest, the buffered-deletes
// stream, and the global field-number map behind the one coarse lock
// spec §5 assigns them ("shared and guarded by the writer's monitor").
// A single active DocumentsWriterPerThread accumulates incoming
// documents (a deliberate simplification of spec §4.3's "multiple
// indexing threads" for this port: concurrent document ingestion
// would need a thread-pool of per-thread states merged at flush time,
// which no SPEC_FULL.md component beyond this data-flow actually
// exercises).
type IndexWriter struct {
	mu sync.Mutex // the one coarse lock, spec §5

	dir    store.Directory
	config *WriterConfig
	lock   store.Lock

	fieldNumbers *model.FieldNumbers
	deletes      *BufferedDeletesStream

	segments *model.SegmentInfos // last published, durable manifest

	active      *DocumentsWriterPerThread
	nextSegGen  int64
	pendingNew  []*pendingSegment // flushed-but-not-yet-committed segments

	closed bool
}

// pendingSegment is a segment flushed to disk but not yet folded into
// a committed manifest generation.
type pendingSegment struct {
	commit   *model.SegmentCommitInfo
	liveDocs *util.LiveDocs
}

// OpenIndexWriter obtains the write lock, discovers the current commit
// generation (spec §4.7 reader side), and restores the global
// field-number map from it. The buffered-deletes stream starts empty,
// and new segment names continue after the highest committed one. dir
// must outlive the returned writer.
func OpenIndexWriter(dir store.Directory, config *WriterConfig) (*IndexWriter, error) {
	if config == nil {
		config = DefaultWriterConfig()
	}
	lock := dir.MakeLock(writeLockName)
	if err := lock.Obtain(); err != nil {
		return nil, fmt.Errorf("index: obtain write lock: %v", err)
	}

	sis, err := readCurrentSegmentInfos(dir)
	if err != nil {
		lock.Close()
		return nil, err
	}

	fieldNumbers := model.NewFieldNumbers()
	if sis.FieldNumbersVersion > 0 {
		fileName := model.FieldNumbersFileName(sis.FieldNumbersVersion)
		if dir.FileExists(fileName) {
			version, names, err := model.ReadFieldNumbers(dir, fileName)
			if err != nil {
				lock.Close()
				return nil, err
			}
			fieldNumbers = model.RestoreFieldNumbers(version, names)
		}
	}

	w := &IndexWriter{
		dir:          dir,
		config:       config,
		lock:         lock,
		fieldNumbers: fieldNumbers,
		deletes:      NewBufferedDeletesStream(),
		segments:     sis,
	}
	for _, sci := range sis.Segments {
		name := sci.Info.Name
		if len(name) > 1 && name[0] == '_' {
			if gen, ok := parseBase36(name[1:]); ok && gen >= w.nextSegGen {
				w.nextSegGen = gen + 1
			}
		}
	}
	w.active = NewDocumentsWriterPerThread(w.fieldNumbers, w.config.RAMBufferBytes)
	return w, nil
}

// readCurrentSegmentInfos implements spec §4.7's reader-side
// generation discovery: list the directory for the highest
// segments_<N>, cross-check segments.gen for a torn-write-resistant
// pointer, re-read segments_<N> up to findCurrentGenerationRetries more
// times on failure, then try segments_<N-1> once.
func readCurrentSegmentInfos(dir store.Directory) (*model.SegmentInfos, error) {
	maxGen, err := maxSegmentsGeneration(dir)
	if err != nil {
		return nil, err
	}
	if maxGen < 0 {
		return model.NewSegmentInfos(), nil // brand new, empty index
	}

	if gen1, gen2, err := model.ReadSegmentsGen(dir); err == nil {
		if gen1 == gen2 && gen1 >= maxGen {
			maxGen = gen1
		}
	}

	var lastErr error
	for attempt := 0; attempt <= findCurrentGenerationRetries+1; attempt++ {
		gen := maxGen
		if attempt > findCurrentGenerationRetries {
			gen = maxGen - 1
		}
		if gen < 0 {
			break
		}
		sis, err := tryReadSegmentInfos(dir, gen)
		if err == nil {
			return sis, nil
		}
		lastErr = err
	}
	return nil, NewCorruptIndexError("segments_<N>", fmt.Sprintf("no readable generation at or below %d: %v", maxGen, lastErr))
}

func maxSegmentsGeneration(dir store.Directory) (int64, error) {
	names, err := dir.ListAll()
	if err != nil {
		return -1, err
	}
	max := int64(-1)
	for _, name := range names {
		if len(name) <= len("segments_") || name[:len("segments_")] != "segments_" {
			continue
		}
		gen, ok := parseBase36(name[len("segments_"):])
		if ok && gen > max {
			max = gen
		}
	}
	return max, nil
}

func parseBase36(s string) (int64, bool) {
	if s == "" {
		return 0, false
	}
	neg := s[0] == '-'
	if neg {
		s = s[1:]
	}
	var n int64
	for _, c := range s {
		var d int64
		switch {
		case c >= '0' && c <= '9':
			d = int64(c - '0')
		case c >= 'a' && c <= 'z':
			d = int64(c-'a') + 10
		default:
			return 0, false
		}
		n = n*36 + d
	}
	if neg {
		n = -n
	}
	return n, true
}

func tryReadSegmentInfos(dir store.Directory, gen int64) (*model.SegmentInfos, error) {
	name := model.FileNameForGen(gen)
	in, err := dir.OpenInput(name, store.DefaultIOContext)
	if err != nil {
		return nil, err
	}
	defer in.Close()
	return model.ReadSegmentInfos(in, gen)
}

// NewDocument opens a new document on the active per-thread state and
// returns its docID (spec §4.3). IndexWriter doesn't itself know about
// analyzers or field types — the accumulator is token-level — so
// callers add terms directly via AddTerm after this call.
func (w *IndexWriter) NewDocument() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.active.StartDocument()
}

// AddTerm feeds one analyzed token of fieldName into the document most
// recently opened by NewDocument (spec §4.3).
func (w *IndexWriter) AddTerm(fieldName string, opts model.IndexOptions, term []byte, position int32, payload []byte) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.active.AddTerm(fieldName, opts, term, position, payload)
}

// FinishDocument closes out the document opened by NewDocument, and
// triggers a flush if the active thread has crossed its RAM threshold
// (spec §4.3/§4.4).
func (w *IndexWriter) FinishDocument() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.active.FinishDocument()
	if w.active.NeedsFlush() {
		return w.flushActiveLocked()
	}
	return nil
}

// DeleteTerm buffers a delete-by-term against every segment (spec
// §4.6). It does not strike documents still in the active, unflushed
// thread; NewDocument/AddTerm callers are responsible for excluding
// documents they mean to suppress before they are ever flushed.
func (w *IndexWriter) DeleteTerm(field string, term []byte) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.deletes.Push([]DeleteTerm{{Field: field, Term: term}}, nil)
}

// DeleteQuery buffers a delete-by-query (spec §4.6).
func (w *IndexWriter) DeleteQuery(q Query) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.deletes.Push(nil, []Query{q})
}

// flushActiveLocked drains the active thread to a new segment and
// starts a fresh one in its place. Caller must hold w.mu.
func (w *IndexWriter) flushActiveLocked() error {
	if w.active.DocCount() == 0 {
		return nil
	}
	name := w.newSegmentNameLocked()
	fs, err := Flush(w.active, w.dir, name)
	if err != nil {
		return err
	}
	fs.Commit.SetBufferedDelGen(w.deletes.CurrentGen())
	w.pendingNew = append(w.pendingNew, &pendingSegment{commit: fs.Commit, liveDocs: fs.LiveDocs})
	w.active = NewDocumentsWriterPerThread(w.fieldNumbers, w.config.RAMBufferBytes)
	return nil
}

func (w *IndexWriter) newSegmentNameLocked() string {
	name := "_" + model.Base36(w.nextSegGen)
	w.nextSegGen++
	return name
}

// Commit performs the full spec §4.7 two-phase commit: flush any
// pending documents, apply buffered deletes to every live segment,
// optionally pack newly flushed segments into compound files (spec
// §4.8), then PrepareCommit/FinishCommit the manifest. On any failure
// before FinishCommit completes, the prior generation remains current
// (rollbackPartial removes a partially written segments_<N>).
func (w *IndexWriter) Commit() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return fmt.Errorf("index: writer is closed")
	}

	if err := w.flushActiveLocked(); err != nil {
		return err
	}

	next := w.segments.Clone()
	next.Generation++
	for _, ps := range w.pendingNew {
		if w.config.UseCompoundFile {
			size, err := ps.commit.SizeInBytes(w.dir)
			if err != nil {
				return err
			}
			if size >= w.config.CompoundFileThresholdBytes {
				if err := PackSegment(w.dir, ps.commit.Info); err != nil {
					return err
				}
			}
		}
		if ps.liveDocs != nil {
			if err := writeLiveDocsFile(w.dir, ps.commit, ps.liveDocs); err != nil {
				return err
			}
		}
		next.Segments = append(next.Segments, ps.commit)
	}
	w.pendingNew = nil

	segs, err := w.segmentsForApplyLocked(next)
	if err != nil {
		w.closeFieldsProducers(segs)
		return err
	}
	prevDelCount := make([]int, len(segs))
	for i, seg := range segs {
		prevDelCount[i] = seg.Commit.DelCount
	}
	if err := w.deletes.Apply(segs); err != nil {
		w.closeFieldsProducers(segs)
		return err
	}
	for i, seg := range segs {
		if seg.LiveDocs != nil && seg.Commit.DelCount != prevDelCount[i] {
			if err := writeLiveDocsFile(w.dir, seg.Commit, seg.LiveDocs); err != nil {
				w.closeFieldsProducers(segs)
				return err
			}
		}
	}
	w.closeFieldsProducers(segs)

	fnxVersion := w.fieldNumbers.Version()
	if fnxVersion > next.FieldNumbersVersion {
		if _, err := model.WriteFieldNumbers(w.dir, fnxVersion, snapshotNames(w.fieldNumbers)); err != nil {
			return err
		}
		next.FieldNumbersVersion = fnxVersion
	}
	next.Version++

	if err := w.prepareAndFinishCommit(next); err != nil {
		return err
	}
	w.segments = next
	return nil
}

func snapshotNames(fn *model.FieldNumbers) map[int]string {
	_, names := fn.Snapshot()
	return names
}

// segmentsForApplyLocked opens a FieldsProducer for every segment in
// next so BufferedDeletesStream.Apply can evaluate term/query deletes
// against it (spec §4.6). Each Segment.OwnPacketGen is left at -1 (no
// packet ever matches it): this port's indexing thread strikes
// pre-flush deletes directly into the flushed segment's own live-docs
// bitset rather than pushing a distinct producing-thread packet for
// Apply to exempt, so there is no "own packet" generation to carry.
func (w *IndexWriter) segmentsForApplyLocked(next *model.SegmentInfos) ([]*Segment, error) {
	out := make([]*Segment, 0, len(next.Segments))
	for _, sci := range next.Segments {
		fp, err := openFieldsProducer(w.dir, sci.Info)
		if err != nil {
			return nil, err
		}
		var liveDocs *util.LiveDocs
		if sci.HasDeletions() {
			liveDocs, err = readLiveDocsFile(w.dir, sci)
			if err != nil {
				return nil, err
			}
		}
		out = append(out, &Segment{
			Commit:       sci,
			Fields:       fp,
			LiveDocs:     liveDocs,
			OwnPacketGen: -1,
		})
	}
	return out, nil
}

func (w *IndexWriter) closeFieldsProducers(segs []*Segment) {
	for _, seg := range segs {
		if seg.Fields != nil {
			seg.Fields.Close()
		}
	}
}

// openFieldsProducer opens info's postings for reading, dispatching
// through PerFieldPostingsFormat the same way flush.go wrote it.
func openFieldsProducer(dir store.Directory, info *model.SegmentInfo) (FieldsProducer, error) {
	readDir := dir
	if info.IsCompoundFile {
		cfr, err := OpenCompoundFileReader(dir, info.Name)
		if err != nil {
			return nil, err
		}
		readDir = cfr
	}
	fis, err := model.ReadFieldInfos(readDir, model.FieldInfosFileName(info.Name))
	if err != nil {
		return nil, err
	}
	format := NewPerFieldPostingsFormat(func(string) PostingsFormat {
		bt, err := LoadPostingsFormat("BlockTree41")
		if err != nil {
			panic(err)
		}
		return bt
	})
	return format.FieldsProducer(&SegmentReadState{
		Directory:   readDir,
		SegmentInfo: info,
		FieldInfos:  fis,
		Context:     store.DefaultIOContext,
	})
}

func writeLiveDocsFile(dir store.Directory, sci *model.SegmentCommitInfo, liveDocs *util.LiveDocs) error {
	sci.AdvanceDelGen()
	name := sci.LiveDocsFileName()
	out, err := dir.CreateOutput(name)
	if err != nil {
		sci.AdvanceNextWriteDelGen()
		return err
	}
	if _, err := liveDocs.WriteTo(out); err != nil {
		out.Close()
		sci.AdvanceNextWriteDelGen()
		return err
	}
	if err := out.Close(); err != nil {
		sci.AdvanceNextWriteDelGen()
		return err
	}
	if err := sci.SetDelCount(liveDocs.DeletedCount()); err != nil {
		return err
	}
	return dir.Sync([]string{name})
}

func readLiveDocsFile(dir store.Directory, sci *model.SegmentCommitInfo) (*util.LiveDocs, error) {
	name := sci.LiveDocsFileName()
	in, err := dir.OpenInput(name, store.DefaultIOContext)
	if err != nil {
		return nil, err
	}
	defer in.Close()
	buf := make([]byte, in.Length())
	if _, err := in.ReadAt(buf, 0); err != nil {
		return nil, err
	}
	return util.ReadLiveDocs(buf, sci.Info.DocCount)
}

// prepareAndFinishCommit runs spec §4.7 steps 1 and 3 back to back: in
// this port there is no separate merge/analysis window between
// prepareCommit and finishCommit (both run under the same w.mu
// critical section), so there is nothing useful a caller could do
// between them; PrepareCommit and FinishCommit are still exposed
// separately below for a caller that does need the window (e.g. to
// fsync replicated copies before publishing).
func (w *IndexWriter) prepareAndFinishCommit(next *model.SegmentInfos) error {
	out, err := w.PrepareCommit(next)
	if err != nil {
		return err
	}
	return w.FinishCommit(next, out)
}

// PrepareCommit implements spec §4.7 step 1: assigns generation N
// (already set on next by the caller), writes "segments_<N>"'s body
// (including its checksum-bearing codec footer) and fsyncs it, and
// returns the still-open output for FinishCommit to close. On any error the partially
// written file is removed (§4.7 step 4 rollbackCommit).
func (w *IndexWriter) PrepareCommit(next *model.SegmentInfos) (store.IndexOutput, error) {
	name := next.FileName()
	out, err := w.dir.CreateOutput(name)
	if err != nil {
		return nil, err
	}
	if err := next.Serialize(out); err != nil {
		out.Close()
		w.rollbackPartial(name)
		return nil, err
	}
	if err := w.dir.Sync([]string{name}); err != nil {
		out.Close()
		w.rollbackPartial(name)
		return nil, err
	}
	return out, nil
}

// FinishCommit implements spec §4.7 step 3: closes the prepared
// "segments_<N>" output (its codec footer, written as part of
// Serialize, already carries the real checksum — see note below) and
// then durably repoints segments.gen at the new generation.
//
// Note on the checksum placeholder: spec §4.7 describes overwriting a
// placeholder checksum in a second pass; this port's
// model.SegmentInfos.Serialize instead writes the real CRC32 footer in
// one pass (core/codec's footer format computes the checksum from the
// output's running CRC32, which is already known once the body is
// fully written), so there is no placeholder to patch — the effect
// (finishCommit durably seals a self-checksummed file before
// segments.gen ever points at it) is the same.
func (w *IndexWriter) FinishCommit(next *model.SegmentInfos, out store.IndexOutput) error {
	if err := out.Close(); err != nil {
		w.rollbackPartial(next.FileName())
		return err
	}
	if err := model.WriteSegmentsGen(w.dir, next.Generation); err != nil {
		return err
	}
	return nil
}

// rollbackPartial implements spec §4.7 step 4: delete a partially
// written segments_<N>, leaving the prior generation current.
func (w *IndexWriter) rollbackPartial(name string) {
	if w.dir.FileExists(name) {
		w.dir.DeleteFile(name)
	}
}

// Close releases the write lock. Any buffered-but-uncommitted
// documents or deletes are discarded, matching spec §5's "abort...
// the manifest is never advanced".
func (w *IndexWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	w.active.Abort()
	return w.lock.Close()
}
