package model

import (
	"testing"

	"github.com/golucene/golucene/core/store"
)

func TestFieldInfosByNameAndByNumber(t *testing.T) {
	a := NewFieldInfo("title", 1, DocsAndFreqsAndPositions)
	b := NewFieldInfo("body", 0, DocsAndFreqs)
	fis := NewFieldInfos([]*FieldInfo{a, b})

	if fis.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", fis.Len())
	}
	// NewFieldInfos sorts Values by name, so "body" precedes "title".
	if fis.Values[0].Name != "body" || fis.Values[1].Name != "title" {
		t.Errorf("Values not sorted by name: %v", fis.Values)
	}
	if fis.ByName("title") != a {
		t.Error("ByName(title) did not return the title FieldInfo")
	}
	if fis.ByNumber(0) != b {
		t.Error("ByNumber(0) did not return the body FieldInfo")
	}
}

func TestFieldInfosWriteReadRoundTrip(t *testing.T) {
	dir := store.NewRAMDirectory()
	title := NewFieldInfo("title", 0, DocsAndFreqsAndPositions)
	title.OmitNorms = true
	title.PutAttribute("PostingsFormat", "BlockTree41")
	body := NewFieldInfo("body", 1, DocsOnly)
	body.StoresPayloads = true

	fis := NewFieldInfos([]*FieldInfo{title, body})
	if err := WriteFieldInfos(dir, "_0.fnm", fis); err != nil {
		t.Fatalf("WriteFieldInfos: %v", err)
	}

	read, err := ReadFieldInfos(dir, "_0.fnm")
	if err != nil {
		t.Fatalf("ReadFieldInfos: %v", err)
	}
	if read.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", read.Len())
	}
	rt := read.ByName("title")
	if rt == nil || rt.Number != 0 || rt.IndexOptions != DocsAndFreqsAndPositions || !rt.OmitNorms {
		t.Errorf("title round trip mismatch: %+v", rt)
	}
	if rt.Attribute("PostingsFormat") != "BlockTree41" {
		t.Errorf("title attribute = %q, want BlockTree41", rt.Attribute("PostingsFormat"))
	}
	rb := read.ByName("body")
	if rb == nil || rb.Number != 1 || rb.IndexOptions != DocsOnly || !rb.StoresPayloads {
		t.Errorf("body round trip mismatch: %+v", rb)
	}
}

func TestFieldNumbersAddOrGetStable(t *testing.T) {
	fn := NewFieldNumbers()
	n1 := fn.AddOrGet("title")
	n2 := fn.AddOrGet("body")
	again := fn.AddOrGet("title")
	if again != n1 {
		t.Errorf("AddOrGet(title) again = %d, want stable %d", again, n1)
	}
	if n1 == n2 {
		t.Errorf("distinct field names got the same number: %d", n1)
	}
	if fn.Version() != 2 {
		t.Errorf("Version() = %d, want 2 (one bump per newly assigned field)", fn.Version())
	}
	name, err := fn.NameFor(n1)
	if err != nil || name != "title" {
		t.Errorf("NameFor(%d) = (%q, %v), want (title, nil)", n1, name, err)
	}
}

func TestFieldNumbersWriteReadRoundTrip(t *testing.T) {
	dir := store.NewRAMDirectory()
	fn := NewFieldNumbers()
	fn.AddOrGet("title")
	fn.AddOrGet("body")
	version, names := fn.Snapshot()

	fileName, err := WriteFieldNumbers(dir, version, names)
	if err != nil {
		t.Fatalf("WriteFieldNumbers: %v", err)
	}
	if fileName != FieldNumbersFileName(version) {
		t.Errorf("fileName = %q, want %q", fileName, FieldNumbersFileName(version))
	}

	readVersion, readNames, err := ReadFieldNumbers(dir, fileName)
	if err != nil {
		t.Fatalf("ReadFieldNumbers: %v", err)
	}
	if readVersion != version {
		t.Errorf("readVersion = %d, want %d", readVersion, version)
	}
	if len(readNames) != len(names) {
		t.Fatalf("readNames = %v, want %v", readNames, names)
	}
	for n, name := range names {
		if readNames[n] != name {
			t.Errorf("readNames[%d] = %q, want %q", n, readNames[n], name)
		}
	}
}

func TestRestoreFieldNumbersPreservesExactNumbers(t *testing.T) {
	names := map[int]string{5: "title", 2: "body"}
	fn := RestoreFieldNumbers(7, names)

	if fn.Version() != 7 {
		t.Errorf("Version() = %d, want 7", fn.Version())
	}
	if n := fn.AddOrGet("title"); n != 5 {
		t.Errorf("AddOrGet(title) = %d, want the restored number 5", n)
	}
	if n := fn.AddOrGet("body"); n != 2 {
		t.Errorf("AddOrGet(body) = %d, want the restored number 2", n)
	}
	// A genuinely new field must not collide with any restored number.
	n := fn.AddOrGet("new-field")
	if n == 5 || n == 2 {
		t.Errorf("AddOrGet(new-field) = %d, collides with a restored number", n)
	}
}
