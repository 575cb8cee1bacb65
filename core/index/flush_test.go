package index

import (
	"testing"

	"github.com/golucene/golucene/core/index/model"
	"github.com/golucene/golucene/core/store"
)

func perFieldChooser(string) PostingsFormat {
	bt, err := LoadPostingsFormat("BlockTree41")
	if err != nil {
		panic(err)
	}
	return bt
}

func TestFlushRoundTrip(t *testing.T) {
	dir := store.NewRAMDirectory()
	globalFieldNumbers := model.NewFieldNumbers()
	dw := NewDocumentsWriterPerThread(globalFieldNumbers, 0)

	docs := []struct {
		title, body string
	}{
		{"red fox", "the quick red fox"},
		{"lazy dog", "a lazy dog sleeps"},
		{"red dog", "a red dog barks"},
	}
	for _, d := range docs {
		dw.StartDocument()
		for i, tok := range splitWords(d.title) {
			dw.AddTerm("title", model.DocsAndFreqsAndPositions, []byte(tok), int32(i), nil)
		}
		for i, tok := range splitWords(d.body) {
			dw.AddTerm("body", model.DocsAndFreqsAndPositions, []byte(tok), int32(i), nil)
		}
		dw.FinishDocument()
	}

	flushed, err := Flush(dw, dir, "_0")
	if err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if flushed.Commit.Info.DocCount != len(docs) {
		t.Errorf("DocCount = %d, want %d", flushed.Commit.Info.DocCount, len(docs))
	}
	if flushed.LiveDocs != nil {
		t.Error("no docs were deleted before flush, LiveDocs should be nil")
	}

	fis, err := model.ReadFieldInfos(dir, model.FieldInfosFileName("_0"))
	if err != nil {
		t.Fatalf("ReadFieldInfos: %v", err)
	}

	format := NewPerFieldPostingsFormat(perFieldChooser)
	readState := &SegmentReadState{Directory: dir, SegmentInfo: flushed.Commit.Info, FieldInfos: fis, Context: store.DefaultIOContext}
	producer, err := format.FieldsProducer(readState)
	if err != nil {
		t.Fatalf("FieldsProducer: %v", err)
	}
	defer producer.Close()

	titleTerms, err := producer.Terms("title")
	if err != nil || titleTerms == nil {
		t.Fatalf("Terms(title) = (%v,%v)", titleTerms, err)
	}
	it, err := titleTerms.Iterator()
	if err != nil {
		t.Fatalf("Iterator: %v", err)
	}
	ok, err := it.SeekExact([]byte("red"))
	if err != nil || !ok {
		t.Fatalf("SeekExact(red) = (%v,%v)", ok, err)
	}
	if it.DocFreq() != 2 {
		t.Errorf("DocFreq(red in title) = %d, want 2 (docs 0 and 2)", it.DocFreq())
	}
	postings, err := it.Postings()
	if err != nil {
		t.Fatalf("Postings: %v", err)
	}
	var gotDocs []int
	for {
		doc, err := postings.NextDoc()
		if err != nil {
			t.Fatalf("NextDoc: %v", err)
		}
		if doc == NoMoreDocs {
			break
		}
		gotDocs = append(gotDocs, doc)
	}
	if len(gotDocs) != 2 || gotDocs[0] != 0 || gotDocs[1] != 2 {
		t.Errorf("docs for 'red' in title = %v, want [0 2]", gotDocs)
	}

	bodyTerms, err := producer.Terms("body")
	if err != nil || bodyTerms == nil {
		t.Fatalf("Terms(body) = (%v,%v)", bodyTerms, err)
	}
	bit, err := bodyTerms.Iterator()
	if err != nil {
		t.Fatalf("Iterator: %v", err)
	}
	if ok, _ := bit.SeekExact([]byte("dog")); !ok {
		t.Error("SeekExact(dog) in body should succeed")
	}
	if bit.DocFreq() != 2 {
		t.Errorf("DocFreq(dog in body) = %d, want 2 (docs 1 and 2)", bit.DocFreq())
	}
}

func TestFlushWithDeletedBeforeFlushDoc(t *testing.T) {
	dir := store.NewRAMDirectory()
	dw := NewDocumentsWriterPerThread(model.NewFieldNumbers(), 0)

	dw.StartDocument()
	dw.AddTerm("body", model.DocsAndFreqsAndPositions, []byte("keep"), 0, nil)
	dw.FinishDocument()

	docID := dw.StartDocument()
	dw.AddTerm("body", model.DocsAndFreqsAndPositions, []byte("discard"), 0, nil)
	dw.FinishDocument()
	dw.DeleteDocID(docID)

	flushed, err := Flush(dw, dir, "_0")
	if err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if flushed.LiveDocs == nil {
		t.Fatal("a deleted-before-flush doc should produce a live-docs bitset")
	}
	if flushed.LiveDocs.IsLive(docID) {
		t.Errorf("doc %d should be deleted", docID)
	}
	if !flushed.LiveDocs.IsLive(0) {
		t.Error("doc 0 should still be live")
	}
}

func splitWords(s string) []string {
	var words []string
	start := -1
	for i, r := range s {
		if r == ' ' {
			if start >= 0 {
				words = append(words, s[start:i])
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		words = append(words, s[start:])
	}
	return words
}
