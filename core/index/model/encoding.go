package model

import (
	"github.com/golucene/golucene/core/store"
	"github.com/golucene/golucene/core/util"
)

// Small wire-coding helpers shared by segmentinfos.go. The model
// package deliberately does its own (de)serialization rather than
// importing core/index, since the manifest is pure data with no
// dependency on the indexing pipeline.

func writeVInt(out store.IndexOutput, v int32) error {
	var buf []byte
	buf = util.WriteVInt(buf, v)
	_, err := out.Write(buf)
	return err
}

func writeVLong(out store.IndexOutput, v int64) error {
	var buf []byte
	buf = util.WriteVLong(buf, v)
	_, err := out.Write(buf)
	return err
}

func writeBool(out store.IndexOutput, b bool) error {
	if b {
		return out.WriteByte(1)
	}
	return out.WriteByte(0)
}

func writeString(out store.IndexOutput, s string) error {
	if err := writeVInt(out, int32(len(s))); err != nil {
		return err
	}
	_, err := out.Write([]byte(s))
	return err
}

func readVInt(in store.IndexInput) (int32, error) {
	var shift uint
	var result uint32
	for {
		b, err := in.ReadByte()
		if err != nil {
			return 0, err
		}
		result |= uint32(b&0x7F) << shift
		if b&0x80 == 0 {
			return int32(result), nil
		}
		shift += 7
	}
}

func readVLong(in store.IndexInput) (int64, error) {
	var shift uint
	var result uint64
	for {
		b, err := in.ReadByte()
		if err != nil {
			return 0, err
		}
		result |= uint64(b&0x7F) << shift
		if b&0x80 == 0 {
			return int64(result), nil
		}
		shift += 7
	}
}

func readBool(in store.IndexInput) (bool, error) {
	b, err := in.ReadByte()
	return b != 0, err
}

func readString(in store.IndexInput) (string, error) {
	n, err := readVInt(in)
	if err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if n > 0 {
		if _, err := in.Read(buf); err != nil {
			return "", err
		}
	}
	return string(buf), nil
}
