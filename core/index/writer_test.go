package index

import (
	"testing"

	"github.com/golucene/golucene/core/index/model"
	"github.com/golucene/golucene/core/store"
)

func addTestDocument(t *testing.T, w *IndexWriter, title, body string) int {
	t.Helper()
	docID := w.NewDocument()
	for i, tok := range splitWords(title) {
		w.AddTerm("title", model.DocsAndFreqsAndPositions, []byte(tok), int32(i), nil)
	}
	for i, tok := range splitWords(body) {
		w.AddTerm("body", model.DocsAndFreqsAndPositions, []byte(tok), int32(i), nil)
	}
	if err := w.FinishDocument(); err != nil {
		t.Fatalf("FinishDocument: %v", err)
	}
	return docID
}

func TestWriterCommitRoundTrip(t *testing.T) {
	dir := store.NewRAMDirectory()

	w, err := OpenIndexWriter(dir, nil)
	if err != nil {
		t.Fatalf("OpenIndexWriter: %v", err)
	}
	addTestDocument(t, w, "red fox", "the quick red fox")
	addTestDocument(t, w, "lazy dog", "a lazy dog sleeps")
	addTestDocument(t, w, "red dog", "a red dog barks")

	if err := w.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if len(w.segments.Segments) != 1 {
		t.Fatalf("segments after first commit = %d, want 1", len(w.segments.Segments))
	}
	firstGen := w.segments.Generation
	if firstGen != 1 {
		t.Errorf("Generation after first commit = %d, want 1", firstGen)
	}
	sci := w.segments.Segments[0]
	if sci.Info.DocCount != 3 {
		t.Errorf("DocCount = %d, want 3", sci.Info.DocCount)
	}
	if !dir.FileExists(model.FileNameForGen(firstGen)) {
		t.Errorf("segments_%d should exist on disk", firstGen)
	}

	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Reopen: the new writer must discover the same committed generation
	// and segment.
	w2, err := OpenIndexWriter(dir, nil)
	if err != nil {
		t.Fatalf("reopen OpenIndexWriter: %v", err)
	}
	defer w2.Close()
	if w2.segments.Generation != firstGen {
		t.Errorf("reopened Generation = %d, want %d", w2.segments.Generation, firstGen)
	}
	if len(w2.segments.Segments) != 1 || w2.segments.Segments[0].Info.Name != sci.Info.Name {
		t.Fatalf("reopened segments = %+v, want one segment named %s", w2.segments.Segments, sci.Info.Name)
	}

	// Add one more document and commit again; the generation must
	// advance and both segments must be present.
	addTestDocument(t, w2, "new doc", "a brand new doc")
	if err := w2.Commit(); err != nil {
		t.Fatalf("second Commit: %v", err)
	}
	if w2.segments.Generation != firstGen+1 {
		t.Errorf("Generation after second commit = %d, want %d", w2.segments.Generation, firstGen+1)
	}
	if len(w2.segments.Segments) != 2 {
		t.Fatalf("segments after second commit = %d, want 2", len(w2.segments.Segments))
	}
}

func TestWriterDeleteTermThenCommit(t *testing.T) {
	dir := store.NewRAMDirectory()

	w, err := OpenIndexWriter(dir, nil)
	if err != nil {
		t.Fatalf("OpenIndexWriter: %v", err)
	}
	addTestDocument(t, w, "red fox", "the quick red fox")
	addTestDocument(t, w, "lazy dog", "a lazy dog sleeps")
	addTestDocument(t, w, "red dog", "a red dog barks")
	if err := w.Commit(); err != nil {
		t.Fatalf("first Commit: %v", err)
	}

	w.DeleteTerm("body", []byte("red"))
	if err := w.Commit(); err != nil {
		t.Fatalf("second Commit: %v", err)
	}

	if len(w.segments.Segments) != 1 {
		t.Fatalf("segments = %d, want 1", len(w.segments.Segments))
	}
	sci := w.segments.Segments[0]
	if sci.DelCount != 2 {
		t.Errorf("DelCount = %d, want 2 (docs 0 and 2 contain 'red')", sci.DelCount)
	}
	if !sci.HasDeletions() {
		t.Fatal("segment should report deletions after a matching DeleteTerm commit")
	}

	liveDocs, err := readLiveDocsFile(dir, sci)
	if err != nil {
		t.Fatalf("readLiveDocsFile: %v", err)
	}
	if liveDocs.IsLive(0) || liveDocs.IsLive(2) {
		t.Error("docs 0 and 2 contain 'red' and should be struck")
	}
	if !liveDocs.IsLive(1) {
		t.Error("doc 1 does not contain 'red' and should stay live")
	}

	producer, err := openFieldsProducer(dir, sci.Info)
	if err != nil {
		t.Fatalf("openFieldsProducer: %v", err)
	}
	defer producer.Close()
	terms, err := producer.Terms("body")
	if err != nil || terms == nil {
		t.Fatalf("Terms(body) = (%v,%v)", terms, err)
	}
	it, err := terms.Iterator()
	if err != nil {
		t.Fatalf("Iterator: %v", err)
	}
	if ok, _ := it.SeekExact([]byte("red")); !ok {
		t.Fatal("SeekExact(red) should still find the term (postings aren't rewritten, only live-docs)")
	}
	if it.DocFreq() != 2 {
		t.Errorf("DocFreq(red) = %d, want 2 (raw postings are untouched by delete-by-term)", it.DocFreq())
	}
}

func TestWriterRejectsOperationsAfterClose(t *testing.T) {
	dir := store.NewRAMDirectory()
	w, err := OpenIndexWriter(dir, nil)
	if err != nil {
		t.Fatalf("OpenIndexWriter: %v", err)
	}
	addTestDocument(t, w, "one", "one two three")
	if err := w.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := w.Commit(); err == nil {
		t.Error("Commit after Close should error")
	}
}

func TestWriterLockExclusion(t *testing.T) {
	dir := store.NewRAMDirectory()
	w, err := OpenIndexWriter(dir, nil)
	if err != nil {
		t.Fatalf("OpenIndexWriter: %v", err)
	}
	defer w.Close()

	if _, err := OpenIndexWriter(dir, nil); err == nil {
		t.Error("a second OpenIndexWriter while the first is open should fail to obtain the write lock")
	}
}

func TestWriterEmptyCommitPublishesNewGeneration(t *testing.T) {
	dir := store.NewRAMDirectory()
	w, err := OpenIndexWriter(dir, nil)
	if err != nil {
		t.Fatalf("OpenIndexWriter: %v", err)
	}
	defer w.Close()

	if err := w.Commit(); err != nil {
		t.Fatalf("Commit with no pending documents: %v", err)
	}
	if len(w.segments.Segments) != 0 {
		t.Errorf("segments after an empty commit = %d, want 0", len(w.segments.Segments))
	}
	if w.segments.Generation != 1 {
		t.Errorf("Generation after an empty commit = %d, want 1 (commit still publishes a manifest)", w.segments.Generation)
	}
}
