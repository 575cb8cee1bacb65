package index

import (
	"fmt"
	"runtime"
	"sort"

	"github.com/golucene/golucene/core/index/model"
	"github.com/golucene/golucene/core/store"
	"github.com/golucene/golucene/core/util"
)

// goluceneVersion is the creation-version string stamped into every
// segment's SegmentInfo (spec §3 Segment "creation version").
const goluceneVersion = "1.0"

func init() {
	RegisterPostingsFormat(NewBlockTreePostingsFormat())
}

// FlushedSegment is the result of draining one DocumentsWriterPerThread
// to disk (spec §4.4): the new segment's commit handle plus a live-docs
// bitset for any documents struck before the segment was ever
// searchable (nil if none were).
type FlushedSegment struct {
	Commit   *model.SegmentCommitInfo
	LiveDocs *util.LiveDocs
}

// Flush drains dw's in-memory postings into segmentName's files (spec
// §4.4): sorted fields, each field's terms in sorted order replayed
// through the block-tree format (dispatched per field via
// PerFieldPostingsFormat, SPEC_FULL.md §C.1), the field-infos file, and
// a live-docs bitset if any docs were deleted before flush.
func Flush(dw *DocumentsWriterPerThread, dir store.Directory, segmentName string) (*FlushedSegment, error) {
	fieldNames := dw.FieldNames()
	sort.Strings(fieldNames)

	infos := make([]*model.FieldInfo, 0, len(fieldNames))
	for _, name := range fieldNames {
		infos = append(infos, dw.FieldInfo(name))
	}
	fieldInfos := model.NewFieldInfos(infos)

	diagnostics := map[string]string{
		"source":    "flush",
		"os":        runtime.GOOS,
		"goVersion": runtime.Version(),
	}

	// SegmentInfo used only to drive file naming while writing; the
	// final, file-complete SegmentInfo is built below once every file
	// this flush wrote is known.
	namingInfo := model.NewSegmentInfo(segmentName, dw.DocCount(), "", "", diagnostics, nil)

	format := NewPerFieldPostingsFormat(func(string) PostingsFormat {
		bt, err := LoadPostingsFormat("BlockTree41")
		if err != nil {
			panic(err) // registered in this file's init; cannot fail
		}
		return bt
	})
	writeState := &SegmentWriteState{
		Directory:   dir,
		SegmentInfo: namingInfo,
		FieldInfos:  fieldInfos,
		Context:     store.DefaultIOContext,
	}
	fc, err := format.FieldsConsumer(writeState)
	if err != nil {
		return nil, fmt.Errorf("index: flush %s: %v", segmentName, err)
	}

	for _, name := range fieldNames {
		if err := flushField(dw, fc, name); err != nil {
			fc.Close()
			return nil, fmt.Errorf("index: flush %s field %q: %v", segmentName, name, err)
		}
	}
	if err := fc.Close(); err != nil {
		return nil, fmt.Errorf("index: flush %s: %v", segmentName, err)
	}

	fnmName := model.FieldInfosFileName(segmentName)
	if err := model.WriteFieldInfos(dir, fnmName, fieldInfos); err != nil {
		return nil, err
	}

	files := append([]string{fnmName}, perFieldBlockTreeFiles(segmentName)...)
	if err := dir.Sync(files); err != nil {
		return nil, err
	}

	segInfo := model.NewSegmentInfo(segmentName, dw.DocCount(), "BlockTree41", goluceneVersion, diagnostics, files)

	var liveDocs *util.LiveDocs
	delCount := 0
	if deleted := dw.DeletedDocIDs(); len(deleted) > 0 {
		liveDocs = util.NewLiveDocs(dw.DocCount())
		for docID := range deleted {
			liveDocs.Delete(docID)
		}
		delCount = len(deleted)
	}

	return &FlushedSegment{
		Commit:   model.NewSegmentCommitInfo(segInfo, delCount, -1),
		LiveDocs: liveDocs,
	}, nil
}

// perFieldBlockTreeFiles names the .tim/.tip files PerFieldPostingsFormat
// writes when every field routes to the same (first-registered) format:
// a single suffix "0" is ever handed out, so the pair is deterministic
// without needing FieldsConsumer to report its own file names back.
func perFieldBlockTreeFiles(segmentName string) []string {
	suffix := "BlockTree41_0"
	return []string{
		segmentName + "_" + suffix + "." + bttExtension,
		segmentName + "_" + suffix + "." + bttIndexExtension,
	}
}

// flushField replays one field's accumulated postings, in sorted term
// order, through fc (spec §4.4 step 3, §4.5.1 "strictly increasing term
// order").
func flushField(dw *DocumentsWriterPerThread, fc FieldsConsumer, name string) error {
	fi := dw.FieldInfo(name)
	h := dw.FieldHash(name)

	tc, err := fc.AddField(fi)
	if err != nil {
		return err
	}

	var sumTotalTermFreq, sumDocFreq int64
	for _, id := range h.sortedTermIDs() {
		term := h.bytesHash.Term(id)
		pc, err := tc.StartTerm(term)
		if err != nil {
			return err
		}
		if err := replayPostings(h, id, fi, pc); err != nil {
			return err
		}
		stats := TermStats{
			DocFreq:       int(h.postings.docFreq[id]),
			TotalTermFreq: h.postings.totalTermFreq[id],
		}
		if err := tc.FinishTerm(term, stats); err != nil {
			return err
		}
		sumDocFreq += int64(stats.DocFreq)
		sumTotalTermFreq += stats.TotalTermFreq
	}
	return tc.Finish(sumTotalTermFreq, sumDocFreq, h.FieldDocCount())
}

// replayPostings decodes one term's doc/position streams (written by
// TermsHashPerField.Add/FinishDocument) and re-emits them through pc in
// docID order (spec §4.3 -> §4.5.1 data flow).
func replayPostings(h *TermsHashPerField, id int, fi *model.FieldInfo, pc PostingsConsumer) error {
	hasFreq := fi.IndexOptions != model.DocsOnly
	hasPositions := fi.IndexOptions == model.DocsAndFreqsAndPositions

	docReader := util.NewPostingsStreamReader(h.bytePool, h.postings.docStream[id].StartOffset(), h.postings.docStreamLen[id])
	var posReader *util.PostingsStreamReader
	if hasPositions {
		posReader = util.NewPostingsStreamReader(h.bytePool, h.postings.posStream[id].StartOffset(), h.postings.posStreamLen[id])
	}

	docID := 0
	for {
		delta, ok := docReader.ReadVInt()
		if !ok {
			break
		}
		docID += int(delta)

		freq := 1
		if hasFreq {
			f, ok := docReader.ReadVInt()
			if !ok {
				return fmt.Errorf("truncated doc stream for field %q", fi.Name)
			}
			freq = int(f)
		}

		if err := pc.StartDoc(docID, freq); err != nil {
			return err
		}

		if hasPositions {
			pos := 0
			for i := 0; i < freq; i++ {
				posDelta, ok := posReader.ReadVInt()
				if !ok {
					return fmt.Errorf("truncated position stream for field %q", fi.Name)
				}
				pos += int(posDelta)

				var payload []byte
				if h.storesPayloads {
					n, ok := posReader.ReadVInt()
					if !ok {
						return fmt.Errorf("truncated payload length for field %q", fi.Name)
					}
					if n > 0 {
						payload = make([]byte, n)
						for j := range payload {
							b, ok := posReader.ReadByte()
							if !ok {
								return fmt.Errorf("truncated payload bytes for field %q", fi.Name)
							}
							payload[j] = b
						}
					}
				}
				if err := pc.AddPosition(pos, payload); err != nil {
					return err
				}
			}
		}

		if err := pc.FinishDoc(); err != nil {
			return err
		}
	}
	return nil
}
