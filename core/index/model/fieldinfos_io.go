package model

import (
	"fmt"

	"github.com/golucene/golucene/core/codec"
	"github.com/golucene/golucene/core/store"
)

// On-disk field-infos file (spec §4.4 step 4 "Write the field-infos
// file (field-name -> field-id, options)") and the global field-number
// map file (spec §4.7 step 2 "<version>.fnx").

const (
	fieldInfosCodecName    = "FieldInfos"
	fieldInfosVersionStart = 1

	fieldNumbersCodecName    = "FieldNumberMap"
	fieldNumbersVersionStart = 1
)

// FieldInfosFileName returns the segment-local field-infos file name.
func FieldInfosFileName(segmentName string) string {
	return segmentName + ".fnm"
}

// WriteFieldInfos serializes fis to name in dir, with a codec
// header/footer and per-field attributes (spec §3 Field info).
func WriteFieldInfos(dir store.Directory, name string, fis *FieldInfos) error {
	out, err := dir.CreateOutput(name)
	if err != nil {
		return err
	}
	if err := codec.WriteHeader(out, fieldInfosCodecName, fieldInfosVersionStart); err != nil {
		out.Close()
		return err
	}
	if err := writeVInt(out, int32(len(fis.Values))); err != nil {
		out.Close()
		return err
	}
	for _, fi := range fis.Values {
		if err := writeFieldInfo(out, fi); err != nil {
			out.Close()
			return err
		}
	}
	if err := codec.WriteFooter(out); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func writeFieldInfo(out store.IndexOutput, fi *FieldInfo) error {
	if err := writeVInt(out, int32(fi.Number)); err != nil {
		return err
	}
	if err := writeString(out, fi.Name); err != nil {
		return err
	}
	if err := out.WriteByte(byte(fi.IndexOptions)); err != nil {
		return err
	}
	if err := writeBool(out, fi.OmitNorms); err != nil {
		return err
	}
	if err := writeBool(out, fi.StoresPayloads); err != nil {
		return err
	}
	if err := writeBool(out, fi.HasVectorsFlag); err != nil {
		return err
	}
	if err := writeBool(out, fi.HasDocValuesFlag); err != nil {
		return err
	}
	if err := writeBool(out, fi.Indexed); err != nil {
		return err
	}
	names := fi.AttributeNames()
	if err := writeVInt(out, int32(len(names))); err != nil {
		return err
	}
	for _, k := range names {
		if err := writeString(out, k); err != nil {
			return err
		}
		if err := writeString(out, fi.Attribute(k)); err != nil {
			return err
		}
	}
	return nil
}

// ReadFieldInfos deserializes a field-infos file written by
// WriteFieldInfos.
func ReadFieldInfos(dir store.Directory, name string) (*FieldInfos, error) {
	in, err := dir.OpenInput(name, store.DefaultIOContext)
	if err != nil {
		return nil, err
	}
	defer in.Close()
	if _, err := codec.CheckHeader(in, fieldInfosCodecName, fieldInfosVersionStart, fieldInfosVersionStart); err != nil {
		return nil, err
	}
	count, err := readVInt(in)
	if err != nil {
		return nil, err
	}
	infos := make([]*FieldInfo, count)
	for i := range infos {
		fi, err := readFieldInfo(in)
		if err != nil {
			return nil, err
		}
		infos[i] = fi
	}
	return NewFieldInfos(infos), nil
}

func readFieldInfo(in store.IndexInput) (*FieldInfo, error) {
	number, err := readVInt(in)
	if err != nil {
		return nil, err
	}
	name, err := readString(in)
	if err != nil {
		return nil, err
	}
	optByte, err := in.ReadByte()
	if err != nil {
		return nil, err
	}
	fi := NewFieldInfo(name, int(number), IndexOptions(optByte))
	if fi.OmitNorms, err = readBool(in); err != nil {
		return nil, err
	}
	if fi.StoresPayloads, err = readBool(in); err != nil {
		return nil, err
	}
	if fi.HasVectorsFlag, err = readBool(in); err != nil {
		return nil, err
	}
	if fi.HasDocValuesFlag, err = readBool(in); err != nil {
		return nil, err
	}
	if fi.Indexed, err = readBool(in); err != nil {
		return nil, err
	}
	numAttrs, err := readVInt(in)
	if err != nil {
		return nil, err
	}
	for i := int32(0); i < numAttrs; i++ {
		k, err := readString(in)
		if err != nil {
			return nil, err
		}
		v, err := readString(in)
		if err != nil {
			return nil, err
		}
		fi.PutAttribute(k, v)
	}
	return fi, nil
}

// FieldNumbersFileName returns the "<version>.fnx" name for the global
// field-number map (spec §4.7 step 2), base-36 encoding version the
// same way segments_<N> encodes its generation.
func FieldNumbersFileName(version int64) string {
	return fmt.Sprintf("%s.fnx", Base36(version))
}

// WriteFieldNumbers serializes a snapshot of the global field-number
// map, fsyncing it before returning (spec §4.7 step 2 "write... and
// fsync it").
func WriteFieldNumbers(dir store.Directory, version int64, names map[int]string) (string, error) {
	fileName := FieldNumbersFileName(version)
	out, err := dir.CreateOutput(fileName)
	if err != nil {
		return "", err
	}
	if err := codec.WriteHeader(out, fieldNumbersCodecName, fieldNumbersVersionStart); err != nil {
		out.Close()
		return "", err
	}
	if err := writeVLong(out, version); err != nil {
		out.Close()
		return "", err
	}
	if err := writeVInt(out, int32(len(names))); err != nil {
		out.Close()
		return "", err
	}
	for n, name := range names {
		if err := writeVInt(out, int32(n)); err != nil {
			out.Close()
			return "", err
		}
		if err := writeString(out, name); err != nil {
			out.Close()
			return "", err
		}
	}
	if err := codec.WriteFooter(out); err != nil {
		out.Close()
		return "", err
	}
	if err := out.Close(); err != nil {
		return "", err
	}
	return fileName, dir.Sync([]string{fileName})
}

// ReadFieldNumbers deserializes a "<version>.fnx" file.
func ReadFieldNumbers(dir store.Directory, fileName string) (version int64, names map[int]string, err error) {
	in, err := dir.OpenInput(fileName, store.DefaultIOContext)
	if err != nil {
		return 0, nil, err
	}
	defer in.Close()
	if _, err := codec.CheckHeader(in, fieldNumbersCodecName, fieldNumbersVersionStart, fieldNumbersVersionStart); err != nil {
		return 0, nil, err
	}
	version, err = readVLong(in)
	if err != nil {
		return 0, nil, err
	}
	count, err := readVInt(in)
	if err != nil {
		return 0, nil, err
	}
	names = make(map[int]string, count)
	for i := int32(0); i < count; i++ {
		n, err := readVInt(in)
		if err != nil {
			return 0, nil, err
		}
		name, err := readString(in)
		if err != nil {
			return 0, nil, err
		}
		names[int(n)] = name
	}
	return version, names, nil
}
