// Package codec implements the small shared wire conventions every
// on-disk format in core/index builds on: a magic-number + codec-name
// + version header, and a checksum footer (spec §6).
package codec

import (
	"encoding/binary"
	"fmt"

	"github.com/golucene/golucene/core/store"
)

// CodecMagic is written at the start of every codec header, the way
// Lucene's CodecUtil.CODEC_MAGIC guards against opening a file that
// isn't one of ours at all (as opposed to merely the wrong version).
const CodecMagic = int32(0x3fd76c17)

// WriteHeader writes CodecMagic, the codec name (length-prefixed) and
// version to out. Every block-tree, manifest and compound-entries
// file begins with one of these.
func WriteHeader(out store.IndexOutput, codecName string, version int32) error {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], uint32(CodecMagic))
	if _, err := out.Write(buf[:]); err != nil {
		return err
	}
	if len(codecName) > 127 {
		return fmt.Errorf("codec: name %q too long", codecName)
	}
	if err := out.WriteByte(byte(len(codecName))); err != nil {
		return err
	}
	if _, err := out.Write([]byte(codecName)); err != nil {
		return err
	}
	binary.BigEndian.PutUint32(buf[:], uint32(version))
	_, err := out.Write(buf[:])
	return err
}

// CheckHeader reads and validates a header written by WriteHeader,
// returning the stored version. Grounded on codec.CheckHeader, called
// from BlockTreeTermsReader.readHeader/readIndexHeader in
// other_examples/25c0dbb9_vasth-golucene__index-postings.go.go.
func CheckHeader(in store.IndexInput, expectedName string, minVersion, maxVersion int32) (int32, error) {
	var buf [4]byte
	if _, err := in.Read(buf[:]); err != nil {
		return 0, fmt.Errorf("codec: read magic: %w", err)
	}
	magic := int32(binary.BigEndian.Uint32(buf[:]))
	if magic != CodecMagic {
		return 0, fmt.Errorf("codec: corrupt index: wrong magic %x (resource=%s)", magic, nameOf(in))
	}
	nameLen, err := in.ReadByte()
	if err != nil {
		return 0, err
	}
	nameBuf := make([]byte, nameLen)
	if _, err := in.Read(nameBuf); err != nil {
		return 0, err
	}
	name := string(nameBuf)
	if name != expectedName {
		return 0, fmt.Errorf("codec: corrupt index: codec mismatch: %q vs expected %q (resource=%s)", name, expectedName, nameOf(in))
	}
	if _, err := in.Read(buf[:]); err != nil {
		return 0, err
	}
	version := int32(binary.BigEndian.Uint32(buf[:]))
	if version < minVersion || version > maxVersion {
		return 0, fmt.Errorf("codec: unsupported version %d for %q, expected [%d-%d] (resource=%s)", version, name, minVersion, maxVersion, nameOf(in))
	}
	return version, nil
}

func nameOf(in store.IndexInput) string {
	type named interface{ Name() string }
	if n, ok := in.(named); ok {
		return n.Name()
	}
	return "?"
}

// HeaderLength returns the number of bytes WriteHeader will emit for
// codecName, used by writers that need to know a file's data start
// offset before the header is actually written.
func HeaderLength(codecName string) int {
	return 4 + 1 + len(codecName) + 4
}
