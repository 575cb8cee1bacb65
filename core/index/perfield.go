package index

import (
	"fmt"
	"strconv"

	"github.com/golucene/golucene/core/index/model"
)

// PerFieldPostingsFormat lets different fields of the same segment use
// different postings encodings (SPEC_FULL.md §C.1): the chosen format's
// name is stored as a field attribute at write time and used to resolve
// the right FieldsProducer back on read, via the package-level format
// registry in format.go.
//
// Adapted from the teacher's PerFieldPostingsFormat (perfield.go):
// unlike the teacher's version, which only got as far as the
// FieldsConsumer/FieldsProducer plumbing with a "not implemented yet"
// panic on a second format, this completes addField's multi-format
// path and wires Terms() on the read side.
type PerFieldPostingsFormat struct {
	postingsFormatForField func(field string) PostingsFormat
}

// NewPerFieldPostingsFormat returns a PostingsFormat that dispatches
// each field to chooser(fieldName).
func NewPerFieldPostingsFormat(chooser func(field string) PostingsFormat) *PerFieldPostingsFormat {
	return &PerFieldPostingsFormat{postingsFormatForField: chooser}
}

func (pf *PerFieldPostingsFormat) Name() string { return "PerField40" }

func (pf *PerFieldPostingsFormat) FieldsConsumer(state *SegmentWriteState) (FieldsConsumer, error) {
	return newPerFieldPostingsWriter(pf, state), nil
}

func (pf *PerFieldPostingsFormat) FieldsProducer(state *SegmentReadState) (FieldsProducer, error) {
	return newPerFieldPostingsReader(state)
}

// Field attribute keys a format/suffix pair is recorded under, matching
// PER_FIELD_FORMAT_KEY/PER_FIELD_SUFFIX_KEY in the teacher.
const (
	perFieldFormatKey = "PerFieldPostingsFormat.format"
	perFieldSuffixKey = "PerFieldPostingsFormat.suffix"
)

type fieldsConsumerAndSuffix struct {
	consumer FieldsConsumer
	suffix   int
}

type perFieldPostingsWriter struct {
	owner    *PerFieldPostingsFormat
	formats  map[string]*fieldsConsumerAndSuffix // keyed by format name
	suffixes map[string]int
	state    *SegmentWriteState
}

func newPerFieldPostingsWriter(owner *PerFieldPostingsFormat, state *SegmentWriteState) *perFieldPostingsWriter {
	return &perFieldPostingsWriter{
		owner:    owner,
		formats:  make(map[string]*fieldsConsumerAndSuffix),
		suffixes: make(map[string]int),
		state:    state,
	}
}

// AddField resolves field's chosen format, lazily opening one
// FieldsConsumer per distinct format name (each subsequent field using
// an already-open format reuses it rather than panicking, completing
// the teacher's "not implemented yet" branch), and records the
// (format, suffix) pair as field attributes for the read side.
func (w *perFieldPostingsWriter) AddField(field *model.FieldInfo) (TermsConsumer, error) {
	format := w.owner.postingsFormatForField(field.Name)
	if format == nil {
		return nil, fmt.Errorf("index: no PostingsFormat chosen for field %q", field.Name)
	}
	formatName := format.Name()
	field.PutAttribute(perFieldFormatKey, formatName)

	entry, ok := w.formats[formatName]
	if !ok {
		suffix := w.suffixes[formatName]
		w.suffixes[formatName] = suffix + 1

		segmentSuffix := fullSegmentSuffix(w.state.SegmentSuffix, _suffix(formatName, strconv.Itoa(suffix)))
		consumer, err := format.FieldsConsumer(NewSegmentWriteStateFrom(w.state, segmentSuffix))
		if err != nil {
			return nil, err
		}
		entry = &fieldsConsumerAndSuffix{consumer: consumer, suffix: suffix}
		w.formats[formatName] = entry
	}

	field.PutAttribute(perFieldSuffixKey, strconv.Itoa(entry.suffix))
	return entry.consumer.AddField(field)
}

func (w *perFieldPostingsWriter) Close() error {
	var firstErr error
	for _, entry := range w.formats {
		if err := entry.consumer.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func _suffix(formatName, suffix string) string {
	return formatName + "_" + suffix
}

// fullSegmentSuffix mirrors the teacher's function of the same name:
// embedding a PerFieldPostingsFormat inside itself is refused rather
// than supported, matching the teacher's explicit panic for that case.
func fullSegmentSuffix(outerSuffix, suffix string) string {
	if len(outerSuffix) == 0 {
		return suffix
	}
	panic(fmt.Sprintf("index: cannot embed PerFieldPostingsFormat inside itself (outer suffix %q)", outerSuffix))
}

type perFieldPostingsReader struct {
	fields  map[string]FieldsProducer // fieldName -> owning producer
	formats map[string]FieldsProducer // segmentSuffix -> producer
}

// newPerFieldPostingsReader reopens, for every indexed field with a
// recorded format attribute, the FieldsProducer for that field's
// (format, suffix) pair, reusing an already-open producer when two
// fields share one.
func newPerFieldPostingsReader(state *SegmentReadState) (FieldsProducer, error) {
	r := &perFieldPostingsReader{
		fields:  make(map[string]FieldsProducer),
		formats: make(map[string]FieldsProducer),
	}
	success := false
	defer func() {
		if !success {
			for _, fp := range r.formats {
				fp.Close()
			}
		}
	}()

	for _, fi := range state.FieldInfos.Values {
		if !fi.IsIndexed() {
			continue
		}
		formatName := fi.Attribute(perFieldFormatKey)
		if formatName == "" {
			continue // field has no postings
		}
		suffix := fi.Attribute(perFieldSuffixKey)
		if suffix == "" {
			return nil, fmt.Errorf("index: field %q records format %q with no suffix", fi.Name, formatName)
		}
		segmentSuffix := formatName + "_" + suffix
		fp, ok := r.formats[segmentSuffix]
		if !ok {
			format, err := LoadPostingsFormat(formatName)
			if err != nil {
				return nil, err
			}
			sub := *state
			sub.SegmentSuffix = segmentSuffix
			fp, err = format.FieldsProducer(&sub)
			if err != nil {
				return nil, err
			}
			r.formats[segmentSuffix] = fp
		}
		r.fields[fi.Name] = fp
	}
	success = true
	return r, nil
}

func (r *perFieldPostingsReader) Terms(field string) (Terms, error) {
	fp, ok := r.fields[field]
	if !ok {
		return nil, nil
	}
	return fp.Terms(field)
}

func (r *perFieldPostingsReader) Close() error {
	var firstErr error
	for _, fp := range r.formats {
		if err := fp.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
