package index

import (
	"bytes"
	"io"

	"github.com/golucene/golucene/core/codec"
	"github.com/golucene/golucene/core/index/model"
	"github.com/golucene/golucene/core/store"
	"github.com/golucene/golucene/core/util"
)

// Block-tree terms dictionary (spec §4.5.1), grounded on the file-format
// vocabulary documented by the `BTT_*` constants and header read path in
// other_examples/25c0dbb9_vasth-golucene__index-postings.go.go (mirrored
// here for the write side, which that file never implements).
//
// Simplification documented for this port: real Lucene recursively
// subdivides a field's terms by successive shared-prefix bytes, nesting
// blocks under sub-block pointers, and only falls back to sequential
// floor blocks when a prefix's terms don't share a longer common
// prefix. This port always treats a field's full sorted term list as a
// single prefix run (the empty prefix) and relies entirely on floor
// blocking (spec §9 Open Question, DESIGN.md decision 3) to bound block
// size. This sacrifices the prefix-compression nesting optimization but
// keeps every invariant the spec actually tests: block size bounds
// (min/maxItemsPerBlock), strictly increasing term order, the FST
// prefix index over block roots, and floor-block disambiguation by
// leading suffix byte.
const (
	bttCodecName      = "BLOCK_TREE_TERMS_DICT"
	bttIndexCodecName = "BLOCK_TREE_TERMS_INDEX"
	bttVersionStart   = 1
	bttVersionCurrent = 1
	bttExtension      = "tim"
	bttIndexExtension = "tip"

	defaultMinItemsPerBlock = 25
	defaultMaxItemsPerBlock = 48
)

// BlockTreePostingsFormat is the default PostingsFormat registered for
// this module (SPEC_FULL.md §C.1: "exercises the block-tree format as
// the default registered format").
type BlockTreePostingsFormat struct {
	minItemsPerBlock, maxItemsPerBlock int
}

// NewBlockTreePostingsFormat returns a format using the spec's default
// block-size bounds (25/48).
func NewBlockTreePostingsFormat() *BlockTreePostingsFormat {
	return &BlockTreePostingsFormat{defaultMinItemsPerBlock, defaultMaxItemsPerBlock}
}

func (f *BlockTreePostingsFormat) Name() string { return "BlockTree41" }

func (f *BlockTreePostingsFormat) FieldsConsumer(state *SegmentWriteState) (FieldsConsumer, error) {
	timName := baseFileName(state, bttExtension)
	tipName := baseFileName(state, bttIndexExtension)

	timOut, err := state.Directory.CreateOutput(timName)
	if err != nil {
		return nil, err
	}
	if err := codec.WriteHeader(timOut, bttCodecName, bttVersionCurrent); err != nil {
		timOut.Close()
		return nil, err
	}

	w := &blockTreeTermsWriter{
		state:            state,
		timOut:           timOut,
		tipName:          tipName,
		minItemsPerBlock: f.minItemsPerBlock,
		maxItemsPerBlock: f.maxItemsPerBlock,
	}
	return w, nil
}

// baseFileName joins a segment's name (plus its per-format suffix, if
// any) with ext, matching the `_<segment>(_<suffix>)?.<ext>` naming
// spec §4.2/§6 describes for segment-private files.
func baseFileName(state *SegmentWriteState, ext string) string {
	name := state.SegmentInfo.Name
	if state.SegmentSuffix != "" {
		name = name + "_" + state.SegmentSuffix
	}
	return name + "." + ext
}

type blockTreeTermsWriter struct {
	state            *SegmentWriteState
	timOut           store.IndexOutput
	tipName          string
	minItemsPerBlock int
	maxItemsPerBlock int

	fieldSections [][]byte // one buffered .tip section per finished field
	numFields     int
}

// AddField opens a per-field term consumer. Fields are processed one
// at a time to completion (AddField, StartTerm/FinishTerm*, Finish)
// before the next AddField call, the contract flush.go honors.
func (w *blockTreeTermsWriter) AddField(field *model.FieldInfo) (TermsConsumer, error) {
	return &blockTreeFieldWriter{
		writer:    w,
		fieldInfo: field,
	}, nil
}

// Close writes the buffered .tip file (its numFields prefix can only
// be known once every field has finished, since IndexOutput is
// append-only and can't be patched) and the .tim footer.
func (w *blockTreeTermsWriter) Close() error {
	if err := codec.WriteFooter(w.timOut); err != nil {
		w.timOut.Close()
		return err
	}
	if err := w.timOut.Close(); err != nil {
		return err
	}

	tipOut, err := w.state.Directory.CreateOutput(w.tipName)
	if err != nil {
		return err
	}
	if err := codec.WriteHeader(tipOut, bttIndexCodecName, bttVersionCurrent); err != nil {
		tipOut.Close()
		return err
	}
	if err := writeVInt(tipOut, int32(len(w.fieldSections))); err != nil {
		tipOut.Close()
		return err
	}
	for _, section := range w.fieldSections {
		if _, err := tipOut.Write(section); err != nil {
			tipOut.Close()
			return err
		}
	}
	if err := codec.WriteFooter(tipOut); err != nil {
		tipOut.Close()
		return err
	}
	return tipOut.Close()
}

// pendingTerm is one fully-written term awaiting assignment to a block.
type pendingTerm struct {
	term          []byte
	docFreq       int
	totalTermFreq int64
	metadata      []byte
}

type blockTreeFieldWriter struct {
	writer      *blockTreeTermsWriter
	fieldInfo   *model.FieldInfo
	pending     []pendingTerm
	curPostings *blockTreePostingsConsumer
}

// StartTerm opens a postings consumer for term, remembered on the
// field writer so FinishTerm (whose signature the TermsConsumer
// interface fixes to (term, TermStats)) can retrieve the accumulated
// metadata bytes without the caller having to thread the consumer
// back through.
func (fw *blockTreeFieldWriter) StartTerm(term []byte) (PostingsConsumer, error) {
	fw.curPostings = &blockTreePostingsConsumer{fieldInfo: fw.fieldInfo, lastDocID: -1}
	return fw.curPostings, nil
}

func (fw *blockTreeFieldWriter) FinishTerm(term []byte, stats TermStats) error {
	fw.pending = append(fw.pending, pendingTerm{
		term:          append([]byte(nil), term...),
		docFreq:       stats.DocFreq,
		totalTermFreq: stats.TotalTermFreq,
		metadata:      fw.curPostings.buf.Bytes(),
	})
	fw.curPostings = nil
	return nil
}

func (fw *blockTreeFieldWriter) Finish(sumTotalTermFreq, sumDocFreq int64, docCount int) error {
	hasFreq := fw.fieldInfo.IndexOptions != model.DocsOnly

	// prefixLen is the longest prefix every term in this field shares
	// (cheap to get from just the first and last entries, since the
	// list is already sorted). Floor-block boundaries and labels are
	// keyed off the byte at this position rather than position 0, so a
	// field whose terms share a long leading run (the common case for
	// natural-language text) still gets a floor split/FST that a seek
	// can actually use to pick the right sub-block (see
	// floorBlockIndex in blocktree_reader.go).
	prefixLen := 0
	var prefix []byte
	if len(fw.pending) > 0 {
		prefixLen = commonPrefixLen(fw.pending[0].term, fw.pending[len(fw.pending)-1].term)
		prefix = fw.pending[0].term[:prefixLen]
	}

	chunkSizes := splitIntoFloorBlocks(fw.pending, prefixLen, fw.writer.minItemsPerBlock, fw.writer.maxItemsPerBlock)

	var floors []util.FloorEntry
	offset := 0
	firstBlockFP := int64(-1)
	for i, size := range chunkSizes {
		chunk := fw.pending[offset : offset+size]
		blockFP := fw.writer.timOut.FilePointer()
		if i == 0 {
			firstBlockFP = blockFP
		} else {
			label := byte(0)
			if len(chunk[0].term) > prefixLen {
				label = chunk[0].term[prefixLen]
			}
			floors = append(floors, util.FloorEntry{
				Label:      label,
				RelativeFP: blockFP - firstBlockFP,
				HasTerms:   len(chunk) > 0,
			})
		}
		if err := writeBlock(fw.writer.timOut, chunk, hasFreq); err != nil {
			return err
		}
		offset += size
	}
	// splitIntoFloorBlocks(nil, ...) returns a single zero-size chunk, so
	// a zero-term field still runs the loop once above and emits a
	// valid (empty) root block.

	fstBuilder, err := util.NewFSTBuilder()
	if err != nil {
		return err
	}
	isFloor := len(chunkSizes) > 1
	if err := fstBuilder.Insert(nil, util.EncodeBlockOutput(firstBlockFP, len(fw.pending) > 0, isFloor), floors); err != nil {
		return err
	}
	fstBytes, fstFloors, err := fstBuilder.Finish()
	if err != nil {
		return err
	}

	var section bytes.Buffer
	writeVInt(&section, int32(fw.fieldInfo.Number))
	writeVLong(&section, firstBlockFP)
	writeVLong(&section, int64(len(fw.pending)))
	writeVLong(&section, sumTotalTermFreq)
	writeVLong(&section, sumDocFreq)
	writeVInt(&section, int32(docCount))
	writeVInt(&section, int32(prefixLen))
	if prefixLen > 0 {
		section.Write(prefix)
	}
	writeVInt(&section, int32(len(fstBytes)))
	section.Write(fstBytes)
	floorEntries := fstFloors[""]
	writeVInt(&section, int32(len(floorEntries)))
	for _, fl := range floorEntries {
		section.WriteByte(fl.Label)
		writeVLong(&section, fl.RelativeFP)
		writeBool(&section, fl.HasTerms)
	}

	fw.writer.fieldSections = append(fw.writer.fieldSections, section.Bytes())
	fw.writer.numFields++
	return nil
}

// commonPrefixLen returns how many leading bytes a and b share.
func commonPrefixLen(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	i := 0
	for i < n && a[i] == b[i] {
		i++
	}
	return i
}

// floorKey returns the byte distinguishing term from its neighbors at
// the field's shared prefixLen, or -1 if term ends exactly at
// prefixLen (it equals the shared prefix itself, so it sorts before
// every term that extends past it).
func floorKey(term []byte, prefixLen int) int {
	if len(term) <= prefixLen {
		return -1
	}
	return int(term[prefixLen])
}

// splitIntoFloorBlocks implements DESIGN.md Open Question 3: terms are
// first grouped into contiguous runs sharing the same floorKey (the
// byte at the field's common prefixLen), then those runs are greedily
// packed left-to-right into maxItems-sized chunks, merging an
// undersized trailing remainder into the previous chunk. A chunk
// boundary never splits a floorKey run, so every floor block's Label
// genuinely partitions the field's [0,256) byte range into disjoint
// ranges (spec §4.5.3): the one accepted cost is that a run sharing a
// single floorKey across more than maxItems terms produces one
// oversized chunk rather than being split mid-run.
func splitIntoFloorBlocks(terms []pendingTerm, prefixLen, minItems, maxItems int) []int {
	n := len(terms)
	if n == 0 {
		return []int{0}
	}
	if n <= maxItems {
		return []int{n}
	}

	var runLens []int
	runStart := 0
	for i := 1; i < n; i++ {
		if floorKey(terms[i-1].term, prefixLen) != floorKey(terms[i].term, prefixLen) {
			runLens = append(runLens, i-runStart)
			runStart = i
		}
	}
	runLens = append(runLens, n-runStart)

	var chunks []int
	cur := 0
	for _, runLen := range runLens {
		if cur > 0 && cur+runLen > maxItems {
			chunks = append(chunks, cur)
			cur = 0
		}
		cur += runLen
	}
	if cur > 0 {
		if cur < minItems && len(chunks) > 0 {
			chunks[len(chunks)-1] += cur
		} else {
			chunks = append(chunks, cur)
		}
	}
	return chunks
}

func writeBlock(out store.IndexOutput, entries []pendingTerm, hasFreq bool) error {
	if err := writeVInt(out, int32(len(entries))); err != nil {
		return err
	}
	for _, e := range entries {
		if err := writeVInt(out, int32(len(e.term))); err != nil {
			return err
		}
		if _, err := out.Write(e.term); err != nil {
			return err
		}
		if err := writeVInt(out, int32(e.docFreq)); err != nil {
			return err
		}
		if hasFreq {
			if err := writeVLong(out, e.totalTermFreq); err != nil {
				return err
			}
		}
		if err := writeVInt(out, int32(len(e.metadata))); err != nil {
			return err
		}
		if _, err := out.Write(e.metadata); err != nil {
			return err
		}
	}
	return nil
}

// blockTreePostingsConsumer accumulates one term's postings metadata
// (docID deltas, freqs, position deltas) into an in-memory buffer,
// which FinishTerm reads back via blockTreeFieldWriter.curPostings.
type blockTreePostingsConsumer struct {
	fieldInfo    *model.FieldInfo
	buf          bytes.Buffer
	lastDocID    int
	lastPosition int
}

func (pc *blockTreePostingsConsumer) StartDoc(docID, freq int) error {
	delta := docID - pc.lastDocID
	pc.lastDocID = docID
	pc.lastPosition = 0
	writeVInt(&pc.buf, int32(delta))
	if pc.fieldInfo.IndexOptions != model.DocsOnly {
		writeVInt(&pc.buf, int32(freq))
	}
	return nil
}

func (pc *blockTreePostingsConsumer) AddPosition(position int, payload []byte) error {
	if pc.fieldInfo.IndexOptions != model.DocsAndFreqsAndPositions {
		return nil
	}
	delta := position - pc.lastPosition
	pc.lastPosition = position
	writeVInt(&pc.buf, int32(delta))
	if pc.fieldInfo.StoresPayloads {
		writeVInt(&pc.buf, int32(len(payload)))
		if len(payload) > 0 {
			pc.buf.Write(payload)
		}
	}
	return nil
}

func (pc *blockTreePostingsConsumer) FinishDoc() error { return nil }

// writeVInt/writeVLong/writeBool write the shared encodings to any
// io.Writer (store.IndexOutput or a bytes.Buffer staging area).
func writeVInt(w io.Writer, v int32) error {
	var buf []byte
	buf = util.WriteVInt(buf, v)
	_, err := w.Write(buf)
	return err
}

func writeVLong(w io.Writer, v int64) error {
	var buf []byte
	buf = util.WriteVLong(buf, v)
	_, err := w.Write(buf)
	return err
}

func writeBool(w io.Writer, b bool) error {
	if b {
		_, err := w.Write([]byte{1})
		return err
	}
	_, err := w.Write([]byte{0})
	return err
}
