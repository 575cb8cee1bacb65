package store

import (
	"errors"
	"fmt"
	"hash"
	"hash/crc32"
	"os"
	"path/filepath"
	"sync"
)

// FSDirectory is the filesystem-backed Directory (spec §4.1). Reads
// are positional (os.File.ReadAt), so concurrent IndexInput clones
// never serialize on a shared seek+read pair, matching spec §4.1
// "implementations may back IO by positional reads (parallel-safe)".
type FSDirectory struct {
	path string
	mu   sync.Mutex
}

// NewFSDirectory opens (creating if necessary) a directory rooted at path.
func NewFSDirectory(path string) (*FSDirectory, error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("store: create directory %s: %w", path, err)
	}
	return &FSDirectory{path: path}, nil
}

func (d *FSDirectory) full(name string) string {
	return filepath.Join(d.path, name)
}

// CreateOutput implements Directory; fails if name already exists, a
// "no-overwrite" guarantee per spec §4.1.
func (d *FSDirectory) CreateOutput(name string) (IndexOutput, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	f, err := os.OpenFile(d.full(name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, fmt.Errorf("store: create output %s: %w", name, err)
	}
	return &fsOutput{name: name, f: f, crc: crc32.NewIEEE()}, nil
}

func (d *FSDirectory) OpenInput(name string, _ IOContext) (IndexInput, error) {
	f, err := os.Open(d.full(name))
	if err != nil {
		return nil, fmt.Errorf("store: open input %s: %w", name, err)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	return &fsInput{name: name, f: f, length: fi.Size()}, nil
}

func (d *FSDirectory) DeleteFile(name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	err := os.Remove(d.full(name))
	if err != nil && os.IsNotExist(err) {
		return nil
	}
	return err
}

func (d *FSDirectory) FileExists(name string) bool {
	_, err := os.Stat(d.full(name))
	return err == nil
}

func (d *FSDirectory) FileLength(name string) (int64, error) {
	fi, err := os.Stat(d.full(name))
	if err != nil {
		return 0, err
	}
	return fi.Size(), nil
}

func (d *FSDirectory) ListAll() ([]string, error) {
	entries, err := os.ReadDir(d.path)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

// Sync fsyncs each named file then the containing directory, so a
// crash cannot leave the directory entry visible without the data
// (spec §4.1 durability guarantee).
func (d *FSDirectory) Sync(names []string) error {
	for _, name := range names {
		f, err := os.OpenFile(d.full(name), os.O_RDWR, 0o644)
		if err != nil {
			return fmt.Errorf("store: sync %s: %w", name, err)
		}
		err = f.Sync()
		cerr := f.Close()
		if err != nil {
			return fmt.Errorf("store: fsync %s: %w", name, err)
		}
		if cerr != nil {
			return cerr
		}
	}
	dirF, err := os.Open(d.path)
	if err != nil {
		return err
	}
	defer dirF.Close()
	// Best-effort: not all platforms support fsync on a directory fd.
	_ = dirF.Sync()
	return nil
}

func (d *FSDirectory) MakeLock(name string) Lock {
	return &fsLock{path: d.full(name)}
}

func (d *FSDirectory) Close() error { return nil }

// fsLock is an exclusive write-lock realized as an O_EXCL create;
// releasing it removes the lock file. This is advisory among
// processes using this same package, matching spec §4.1's "exclusive
// process-wide lock" contract without requiring platform-specific
// flock syscalls.
type fsLock struct {
	path string
	f    *os.File
}

func (l *fsLock) Obtain() error {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("store: lock %s already held", l.path)
		}
		return err
	}
	l.f = f
	return nil
}

func (l *fsLock) Close() error {
	if l.f == nil {
		return nil
	}
	if err := l.f.Close(); err != nil {
		return err
	}
	return os.Remove(l.path)
}

type fsOutput struct {
	name string
	f    *os.File
	fp   int64
	crc  hash.Hash32
}

func (o *fsOutput) Write(p []byte) (int, error) {
	n, err := o.f.Write(p)
	o.fp += int64(n)
	o.crc.Write(p[:n])
	return n, err
}

func (o *fsOutput) WriteByte(b byte) error {
	_, err := o.Write([]byte{b})
	return err
}

func (o *fsOutput) Close() error { return o.f.Close() }
func (o *fsOutput) Name() string { return o.name }
func (o *fsOutput) FilePointer() int64 { return o.fp }
func (o *fsOutput) Checksum() uint32 { return o.crc.Sum32() }

type fsInput struct {
	name   string
	f      *os.File
	pos    int64
	length int64
	offset int64 // for Slice: absolute base offset into the underlying file
}

func (in *fsInput) Read(p []byte) (int, error) {
	n, err := in.f.ReadAt(p, in.offset+in.pos)
	in.pos += int64(n)
	return n, err
}

func (in *fsInput) ReadByte() (byte, error) {
	var b [1]byte
	_, err := in.Read(b[:])
	return b[0], err
}

func (in *fsInput) ReadAt(p []byte, off int64) (int, error) {
	return in.f.ReadAt(p, in.offset+off)
}

func (in *fsInput) Seek(pos int64) error {
	in.pos = pos
	return nil
}

func (in *fsInput) FilePointer() int64 { return in.pos }
func (in *fsInput) Length() int64      { return in.length }
func (in *fsInput) Name() string       { return in.name }

func (in *fsInput) Clone() IndexInput {
	clone := *in
	return &clone
}

func (in *fsInput) Slice(_ string, offset, length int64) (IndexInput, error) {
	if offset < 0 || length < 0 || offset+length > in.length {
		return nil, fmt.Errorf("store: slice [%d,%d) out of bounds for length %d", offset, offset+length, in.length)
	}
	return &fsInput{name: in.name, f: in.f, offset: in.offset + offset, length: length}, nil
}

func (in *fsInput) Close() error { return nil }
