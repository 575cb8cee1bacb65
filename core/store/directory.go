package store

import "io"

// IndexOutput is a write-only, append-only byte stream (spec §4.1).
// Close flushes buffered bytes to the underlying file; it does not by
// itself guarantee durability — callers must call Directory.Sync with
// the output's name before publishing it anywhere durable (a
// segments_N manifest, a compound-file entry table).
type IndexOutput interface {
	io.Writer
	io.Closer
	// Name is the file name this output was created for.
	Name() string
	// FilePointer returns the number of bytes written so far.
	FilePointer() int64
	// WriteByte writes a single byte (VInt/VLong coding needs this).
	WriteByte(b byte) error
	// Checksum returns the running CRC32 of bytes written so far; the
	// codec footer (core/codec/footer.go) reads this just before close.
	Checksum() uint32
}

// IndexInput is a random-access, cloneable read cursor (spec §4.1).
// Clone yields an independent cursor (its own file pointer) sharing
// the underlying file handle/bytes, so concurrent readers never
// serialize on a single seek+read pair.
type IndexInput interface {
	io.Reader
	io.Closer
	ReadByte() (byte, error)
	ReadAt(p []byte, off int64) (int, error)
	// Seek repositions this cursor's file pointer.
	Seek(pos int64) error
	// FilePointer returns this cursor's current position.
	FilePointer() int64
	// Length returns the total length of the underlying file.
	Length() int64
	// Clone returns an independent cursor over the same file.
	Clone() IndexInput
	// Slice returns a bounded view [offset, offset+length) whose file
	// pointer is offset-relative (spec §4.2 openSlice).
	Slice(description string, offset, length int64) (IndexInput, error)
}

// Lock is an exclusive, process-wide advisory lock held for the life
// of a writer (spec §4.1 makeLock).
type Lock interface {
	io.Closer
	// Obtain acquires the lock, failing if already held.
	Obtain() error
}

// Directory is the named-byte-stream abstraction (spec §4.1). A
// concrete implementation backs it by the filesystem
// (FSDirectory); another could pack many logical files into one
// physical compound file (see core/index/compoundfile.go, which reads
// its own entries through Directory.OpenInput against a single
// physical .cfs file).
type Directory interface {
	// CreateOutput fails if name already exists; a Directory never
	// silently overwrites a published segment file.
	CreateOutput(name string) (IndexOutput, error)
	OpenInput(name string, ctx IOContext) (IndexInput, error)
	DeleteFile(name string) error
	FileExists(name string) bool
	FileLength(name string) (int64, error)
	ListAll() ([]string, error)
	// Sync durably persists the named files before returning (spec
	// §4.1 guarantee: "after sync returns, contents ... survive a
	// process crash"). Writers must call this before publishing any
	// file name into a manifest.
	Sync(names []string) error
	MakeLock(name string) Lock
	Close() error
}
