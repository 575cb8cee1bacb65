// Package model holds the on-disk/in-memory data model shared across
// the index package: field metadata, segment metadata and the
// segments manifest (spec §3).
package model

import "sort"

// IndexOptions enumerates how much per-term detail a field's postings
// carry (spec §3 Field info).
type IndexOptions int

const (
	DocsOnly IndexOptions = iota
	DocsAndFreqs
	DocsAndFreqsAndPositions
)

func (o IndexOptions) String() string {
	switch o {
	case DocsOnly:
		return "DOCS_ONLY"
	case DocsAndFreqs:
		return "DOCS_AND_FREQS"
	case DocsAndFreqsAndPositions:
		return "DOCS_AND_FREQS_AND_POSITIONS"
	default:
		return "UNKNOWN"
	}
}

// FieldInfo is the per-field metadata record of spec §3: a stable
// numeric id (unique within a segment, and via the global field-number
// map across an index's segment generations), indexing options, and
// the handful of boolean capability flags. Mirrors model.FieldInfo
// referenced throughout the teacher (invertedDocConsumerPerField.go,
// perfield.go) and segmentInfoPerCommit.go.
type FieldInfo struct {
	Name           string
	Number         int
	IndexOptions   IndexOptions
	OmitNorms      bool
	StoresPayloads bool
	HasVectorsFlag   bool
	HasDocValuesFlag bool
	Indexed          bool

	attributes map[string]string
}

// NewFieldInfo constructs a FieldInfo with the given identity and
// options; Indexed defaults to true since every field reaching the
// postings accumulator (spec §4.3) by definition carries a term
// stream.
func NewFieldInfo(name string, number int, opts IndexOptions) *FieldInfo {
	return &FieldInfo{Name: name, Number: number, IndexOptions: opts, Indexed: true}
}

// IsIndexed reports whether this field carries postings at all,
// consistent with fi.IsIndexed() checks in the teacher's perfield.go.
func (fi *FieldInfo) IsIndexed() bool { return fi.Indexed }

func (fi *FieldInfo) HasVectors() bool    { return fi.HasVectorsFlag }
func (fi *FieldInfo) HasDocValues() bool  { return fi.HasDocValuesFlag }

// PutAttribute stores an opaque string attribute (used by
// PerFieldPostingsFormat to record which codec/suffix a field uses)
// and returns the previous value, or "" if unset. Mirrors
// field.PutAttribute in the teacher's perfield.go.
func (fi *FieldInfo) PutAttribute(key, value string) string {
	if fi.attributes == nil {
		fi.attributes = make(map[string]string)
	}
	prev := fi.attributes[key]
	fi.attributes[key] = value
	return prev
}

// Attribute returns a previously stored attribute, or "".
func (fi *FieldInfo) Attribute(key string) string {
	if fi.attributes == nil {
		return ""
	}
	return fi.attributes[key]
}

// AttributeNames returns attribute keys sorted for deterministic
// serialization.
func (fi *FieldInfo) AttributeNames() []string {
	keys := make([]string, 0, len(fi.attributes))
	for k := range fi.attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
