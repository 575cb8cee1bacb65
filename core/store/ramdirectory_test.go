package store

import (
	"io"
	"testing"
)

func TestRAMDirectoryCreateAndOpen(t *testing.T) {
	dir := NewRAMDirectory()
	out, err := dir.CreateOutput("a.txt")
	if err != nil {
		t.Fatalf("CreateOutput: %v", err)
	}
	if _, err := out.Write([]byte("hello")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := out.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	in, err := dir.OpenInput("a.txt", DefaultIOContext)
	if err != nil {
		t.Fatalf("OpenInput: %v", err)
	}
	defer in.Close()
	if in.Length() != 5 {
		t.Errorf("Length() = %d, want 5", in.Length())
	}
	buf := make([]byte, 5)
	if _, err := io.ReadFull(in, buf); err != nil {
		t.Fatalf("ReadFull: %v", err)
	}
	if string(buf) != "hello" {
		t.Errorf("read back %q, want hello", buf)
	}
}

func TestRAMDirectoryNoOverwrite(t *testing.T) {
	dir := NewRAMDirectory()
	out, err := dir.CreateOutput("a.txt")
	if err != nil {
		t.Fatalf("CreateOutput: %v", err)
	}
	out.Close()

	if _, err := dir.CreateOutput("a.txt"); err == nil {
		t.Fatal("CreateOutput on an existing name should fail")
	}
}

func TestRAMDirectoryDeleteAndListAll(t *testing.T) {
	dir := NewRAMDirectory()
	for _, name := range []string{"c.txt", "a.txt", "b.txt"} {
		out, err := dir.CreateOutput(name)
		if err != nil {
			t.Fatalf("CreateOutput(%s): %v", name, err)
		}
		out.Close()
	}

	names, err := dir.ListAll()
	if err != nil {
		t.Fatalf("ListAll: %v", err)
	}
	want := []string{"a.txt", "b.txt", "c.txt"}
	if len(names) != len(want) {
		t.Fatalf("ListAll() = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("ListAll()[%d] = %q, want %q (sorted)", i, names[i], want[i])
		}
	}

	if err := dir.DeleteFile("b.txt"); err != nil {
		t.Fatalf("DeleteFile: %v", err)
	}
	if dir.FileExists("b.txt") {
		t.Error("b.txt should no longer exist")
	}
	names, _ = dir.ListAll()
	if len(names) != 2 {
		t.Errorf("ListAll() after delete = %v, want 2 entries", names)
	}
}

func TestRAMDirectorySyncMissingFile(t *testing.T) {
	dir := NewRAMDirectory()
	if err := dir.Sync([]string{"missing.txt"}); err == nil {
		t.Fatal("Sync should fail for a file that was never created")
	}
}

func TestRAMDirectoryLockExclusion(t *testing.T) {
	dir := NewRAMDirectory()
	l1 := dir.MakeLock("write.lock")
	if err := l1.Obtain(); err != nil {
		t.Fatalf("first Obtain: %v", err)
	}

	l2 := dir.MakeLock("write.lock")
	if err := l2.Obtain(); err == nil {
		t.Fatal("second Obtain of the same lock name should fail while held")
	}

	if err := l1.Close(); err != nil {
		t.Fatalf("release: %v", err)
	}
	if err := l2.Obtain(); err != nil {
		t.Fatalf("Obtain after release should succeed: %v", err)
	}
}

func TestRAMDirectoryFileLengthAndChecksum(t *testing.T) {
	dir := NewRAMDirectory()
	out, err := dir.CreateOutput("x")
	if err != nil {
		t.Fatalf("CreateOutput: %v", err)
	}
	out.Write([]byte("abc"))
	sum := out.Checksum()
	out.Close()

	n, err := dir.FileLength("x")
	if err != nil {
		t.Fatalf("FileLength: %v", err)
	}
	if n != 3 {
		t.Errorf("FileLength() = %d, want 3", n)
	}
	if sum == 0 {
		t.Error("Checksum() should not be zero for non-empty content")
	}
}
