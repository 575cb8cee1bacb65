package util

import (
	"bytes"
	"testing"
)

func TestLiveDocsDeleteAndIsLive(t *testing.T) {
	ld := NewLiveDocs(10)
	for i := 0; i < 10; i++ {
		if !ld.IsLive(i) {
			t.Fatalf("doc %d should start live", i)
		}
	}
	if !ld.Delete(3) {
		t.Fatal("Delete(3) on a fresh bitset should report a new deletion")
	}
	if ld.Delete(3) {
		t.Fatal("Delete(3) again should report no new deletion")
	}
	if ld.IsLive(3) {
		t.Error("doc 3 should be deleted")
	}
	if !ld.IsLive(4) {
		t.Error("doc 4 should still be live")
	}
	if ld.DeletedCount() != 1 {
		t.Errorf("DeletedCount() = %d, want 1", ld.DeletedCount())
	}
	if ld.MaxDoc() != 10 {
		t.Errorf("MaxDoc() = %d, want 10", ld.MaxDoc())
	}
}

func TestLiveDocsCloneIsIndependent(t *testing.T) {
	ld := NewLiveDocs(5)
	ld.Delete(1)
	clone := ld.Clone()
	clone.Delete(2)

	if ld.IsLive(2) != true {
		t.Error("deleting in the clone must not affect the original")
	}
	if clone.IsLive(1) {
		t.Error("clone should have inherited the original's deletion of doc 1")
	}
	if !clone.IsLive(0) {
		t.Error("doc 0 should be live in the clone")
	}
}

func TestLiveDocsWriteToAndReadLiveDocs(t *testing.T) {
	ld := NewLiveDocs(20)
	ld.Delete(0)
	ld.Delete(5)
	ld.Delete(19)

	var buf bytes.Buffer
	if _, err := ld.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}

	read, err := ReadLiveDocs(buf.Bytes(), 20)
	if err != nil {
		t.Fatalf("ReadLiveDocs: %v", err)
	}
	for _, d := range []int{0, 5, 19} {
		if read.IsLive(d) {
			t.Errorf("doc %d should be deleted after round trip", d)
		}
	}
	for _, d := range []int{1, 2, 3, 4, 6, 18} {
		if !read.IsLive(d) {
			t.Errorf("doc %d should still be live after round trip", d)
		}
	}
	if read.DeletedCount() != 3 {
		t.Errorf("DeletedCount() after round trip = %d, want 3", read.DeletedCount())
	}
}

func TestLiveDocsOrMerge(t *testing.T) {
	a := NewLiveDocs(10)
	a.Delete(1)
	a.Delete(2)

	b := NewLiveDocs(10)
	b.Delete(2)
	b.Delete(3)

	a.Or(b)

	for _, d := range []int{1, 2, 3} {
		if a.IsLive(d) {
			t.Errorf("doc %d should be deleted after Or-merge", d)
		}
	}
	if a.DeletedCount() != 3 {
		t.Errorf("DeletedCount() after Or-merge = %d, want 3", a.DeletedCount())
	}
	// b must be unaffected by merging into a.
	if b.DeletedCount() != 2 {
		t.Errorf("Or must not mutate its argument, but b.DeletedCount() = %d", b.DeletedCount())
	}
}
