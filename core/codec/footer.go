package codec

import (
	"encoding/binary"
	"fmt"

	"github.com/golucene/golucene/core/store"
)

// FooterMagic closes every codec file; its presence (plus a matching
// checksum) is what lets a reader distinguish a torn/truncated write
// from a deliberately short file.
const FooterMagic = int32(-1071082520) // 0xC02893E8 as int32, the bitwise complement of CodecMagic

// WriteFooter appends the footer magic and the CRC32 of every byte
// written to out before the footer; it leaves out open. Called as the
// last write of every on-disk writer (block-tree .tim/.tip, segments_N,
// compound entries).
func WriteFooter(out store.IndexOutput) error {
	checksum := out.Checksum()
	magic := FooterMagic
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], uint32(magic))
	if _, err := out.Write(buf[:]); err != nil {
		return err
	}
	binary.BigEndian.PutUint32(buf[:], checksum)
	_, err := out.Write(buf[:])
	return err
}

// CheckFooter reads and validates the footer at the current position
// of in (normally after seeking to length-8), comparing the recorded
// checksum against an independently computed one supplied by the
// caller (computed while scanning the file body).
func CheckFooter(in store.IndexInput, computedChecksum uint32) error {
	var buf [4]byte
	if _, err := in.Read(buf[:]); err != nil {
		return fmt.Errorf("codec: read footer magic: %w", err)
	}
	magic := int32(binary.BigEndian.Uint32(buf[:]))
	if magic != FooterMagic {
		return fmt.Errorf("codec: corrupt index: wrong footer magic %x", magic)
	}
	if _, err := in.Read(buf[:]); err != nil {
		return fmt.Errorf("codec: read footer checksum: %w", err)
	}
	stored := binary.BigEndian.Uint32(buf[:])
	if stored != computedChecksum {
		return fmt.Errorf("codec: corrupt index: checksum mismatch: stored=%x computed=%x", stored, computedChecksum)
	}
	return nil
}

// FooterLength is the fixed size of the footer in bytes.
const FooterLength = 8
