package index

import (
	"fmt"
	"sync"

	"github.com/golucene/golucene/core/index/model"
	"github.com/golucene/golucene/core/store"
)

// SegmentWriteState bundles everything a PostingsFormat needs to start
// writing one segment's worth of fields, mirroring
// model.SegmentWriteState referenced throughout the teacher's
// perfield.go.
type SegmentWriteState struct {
	Directory     store.Directory
	SegmentInfo   *model.SegmentInfo
	FieldInfos    *model.FieldInfos
	SegmentSuffix string
	Context       store.IOContext
}

// NewSegmentWriteStateFrom clones s with a different SegmentSuffix, the
// way PerFieldPostingsWriter.addField derives a per-format sub-state in
// the teacher (fullSegmentSuffix / NewSegmentWriteStateFrom).
func NewSegmentWriteStateFrom(s *SegmentWriteState, suffix string) *SegmentWriteState {
	clone := *s
	clone.SegmentSuffix = suffix
	return &clone
}

// SegmentReadState is SegmentWriteState's read-side counterpart.
type SegmentReadState struct {
	Directory     store.Directory
	SegmentInfo   *model.SegmentInfo
	FieldInfos    *model.FieldInfos
	SegmentSuffix string
	Context       store.IOContext
}

// TermStats is the pair of aggregate counters a TermsConsumer reports
// back when a term's postings are fully written (spec §3 Term:
// "document frequency" and "total term frequency").
type TermStats struct {
	DocFreq       int
	TotalTermFreq int64
}

// PostingsConsumer receives one term's postings in docID order: a
// StartDoc/AddPosition*/FinishDoc cycle per document, mirroring the
// write side of spec §4.3/§4.5.1.
type PostingsConsumer interface {
	StartDoc(docID, freq int) error
	AddPosition(position int, payload []byte) error
	FinishDoc() error
}

// TermsConsumer receives a field's terms in strictly increasing byte
// order (spec §4.5.1), one StartTerm/FinishTerm pair per term.
type TermsConsumer interface {
	StartTerm(term []byte) (PostingsConsumer, error)
	FinishTerm(term []byte, stats TermStats) error
	Finish(sumTotalTermFreq int64, sumDocFreq int64, docCount int) error
}

// FieldsConsumer receives a whole segment's fields, one AddField call
// per indexed field (spec §4.4 step 3).
type FieldsConsumer interface {
	AddField(field *model.FieldInfo) (TermsConsumer, error)
	Close() error
}

// PostingsEnum iterates a positioned term's postings in docID order,
// the read-side mirror of PostingsConsumer.
type PostingsEnum interface {
	// NextDoc advances to the next doc, returning NoMoreDocs when
	// exhausted.
	NextDoc() (int, error)
	Freq() int
	NextPosition() (int, []byte, error)
}

// NoMoreDocs is the PostingsEnum.NextDoc sentinel, matching Lucene's
// DocIdSetIterator.NO_MORE_DOCS convention.
const NoMoreDocs = int(^uint32(0) >> 1)

// SeekStatus is the three-way outcome of TermsEnum.SeekCeil (spec
// §4.5.2): FOUND when the positioned term equals the target exactly,
// NOT_FOUND when it is the smallest term strictly greater, and END
// when no such term exists in the field.
type SeekStatus int

const (
	SeekStatusEnd SeekStatus = iota
	SeekStatusFound
	SeekStatusNotFound
)

// TermState is an opaque, cloneable snapshot of a TermsEnum's current
// position (spec §4.5.2 "termState()"), letting a caller reseek to the
// same term later without repeating the seek's block lookup/binary
// search. Concrete contents are defined by the producing PostingsFormat
// (see blocktree_reader.go); callers only clone and pass it back to the
// same TermsEnum instance that produced it.
type TermState struct {
	blockIdx int
	pos      int
	term     []byte
}

// Clone returns an independent copy, safe to hold across further calls
// on the TermsEnum that produced the original.
func (ts *TermState) Clone() *TermState {
	clone := *ts
	return &clone
}

// Automaton is the minimal deterministic-finite-automaton contract
// TermsEnum.Intersect walks (spec §4.5.2 "intersect(automaton,
// startTerm)"). This module implements it for literal terms and plain,
// wildcard-free prefixes (SPEC_FULL.md §C.4); it does not compile a
// general regular-expression/wildcard language.
type Automaton interface {
	// Accepts reports whether term is in the automaton's language.
	Accepts(term []byte) bool
	// CanContinue reports whether some term sorting at or after current
	// could still be accepted, letting Intersect stop scanning (and skip
	// any remaining blocks) as soon as it turns false (spec §4.5.2 "uses
	// the FST to skip entire blocks..."). current is the last term
	// actually read, not a partial/growing prefix.
	CanContinue(current []byte) bool
}

// LiteralAutomaton accepts exactly one term.
type LiteralAutomaton struct{ Term []byte }

func (a *LiteralAutomaton) Accepts(term []byte) bool { return compareBytes(term, a.Term) == 0 }

func (a *LiteralAutomaton) CanContinue(current []byte) bool {
	return compareBytes(current, a.Term) <= 0
}

// PrefixAutomaton accepts every term beginning with Prefix.
type PrefixAutomaton struct{ Prefix []byte }

func (a *PrefixAutomaton) Accepts(term []byte) bool {
	if len(term) < len(a.Prefix) {
		return false
	}
	return compareBytes(term[:len(a.Prefix)], a.Prefix) == 0
}

func (a *PrefixAutomaton) CanContinue(current []byte) bool {
	n := len(a.Prefix)
	if n > len(current) {
		n = len(current)
	}
	return compareBytes(current[:n], a.Prefix[:n]) <= 0
}

// TermsEnum iterates one field's terms in sorted order.
type TermsEnum interface {
	// SeekExact positions exactly on term, or reports false if absent.
	SeekExact(term []byte) (bool, error)
	// SeekCeil positions on the smallest term >= target (spec §4.5.2).
	SeekCeil(target []byte) ([]byte, SeekStatus, error)
	// Next advances to the next term, returning ok=false at the end.
	Next() (term []byte, ok bool, err error)
	DocFreq() int
	TotalTermFreq() int64
	Postings() (PostingsEnum, error)
	// TermState captures the enum's current position (spec §4.5.2
	// "Lazy metadata decode"). Must not be called before a successful
	// seek or Next.
	TermState() (*TermState, error)
	// SeekUsingTermState repositions directly from a previously
	// captured TermState, in O(1) rather than re-running a block
	// lookup and binary search.
	SeekUsingTermState(term []byte, state *TermState) error
}

// Terms is a field's term dictionary view, the reader-side mirror of
// TermsConsumer.
type Terms interface {
	Iterator() (TermsEnum, error)
	DocCount() int
	SumTotalTermFreq() int64
	SumDocFreq() int64
	// Intersect returns a TermsEnum restricted to automaton's accepted
	// language, resuming strictly after startTerm when non-nil (spec
	// §4.5.2 "intersect(automaton, startTerm)").
	Intersect(automaton Automaton, startTerm []byte) (TermsEnum, error)
}

// FieldsProducer is the reader-side mirror of FieldsConsumer: resolves
// a field name to its Terms, or nil if the field carries none.
type FieldsProducer interface {
	Terms(field string) (Terms, error)
	Close() error
}

// PostingsFormat names one on-disk encoding of a field's postings and
// builds its reader/writer. Mirrors format.PostingsFormat as consumed
// by the teacher's PerFieldPostingsFormat.
type PostingsFormat interface {
	Name() string
	FieldsConsumer(state *SegmentWriteState) (FieldsConsumer, error)
	FieldsProducer(state *SegmentReadState) (FieldsProducer, error)
}

var (
	formatRegistryMu sync.Mutex
	formatRegistry   = make(map[string]PostingsFormat)
)

// RegisterPostingsFormat makes f resolvable by name for readers that
// only have the name persisted in a field's attributes (spec-adjacent:
// SPEC_FULL.md §C.1 "the format name is stored as a field attribute and
// resolved on read via a small format registry").
func RegisterPostingsFormat(f PostingsFormat) {
	formatRegistryMu.Lock()
	defer formatRegistryMu.Unlock()
	formatRegistry[f.Name()] = f
}

// LoadPostingsFormat resolves a previously registered format by name.
func LoadPostingsFormat(name string) (PostingsFormat, error) {
	formatRegistryMu.Lock()
	defer formatRegistryMu.Unlock()
	f, ok := formatRegistry[name]
	if !ok {
		return nil, fmt.Errorf("index: no PostingsFormat registered for name %q", name)
	}
	return f, nil
}
