package util

import (
	"bytes"

	"github.com/couchbase/vellum"
)

// Block-tree FST output encoding (spec §4.5.1 "FST index"): the
// packed uint64 stored per indexed prefix is
//
//	(blockFP << 2) | (hasTerms << 1) | isFloor
//
// Floor blocks additionally need a run-length array of
// (nextFloorLabel, relativeFP, hasTerms) triples; vellum's output
// type is a single uint64; we side-channel the floor array in a
// sibling map keyed by prefix, loaded only for arcs flagged isFloor.
// This is the concession DESIGN.md documents: vellum, a production
// Go FST library, gives us the minimal-acyclic-automaton construction
// and packed on-disk representation spec §4.5.1/§9 ask for; the small
// amount of floor metadata that doesn't fit a single uint64 output
// rides alongside it rather than forcing a hand-rolled FST.
const (
	OutputFlagIsFloor  = 1
	OutputFlagHasTerms = 2
	OutputFlagsBits    = 2
)

// EncodeBlockOutput packs a block file pointer and its flags into the
// single uint64 the FST stores per indexed prefix.
func EncodeBlockOutput(blockFP int64, hasTerms, isFloor bool) uint64 {
	out := uint64(blockFP) << OutputFlagsBits
	if hasTerms {
		out |= OutputFlagHasTerms
	}
	if isFloor {
		out |= OutputFlagIsFloor
	}
	return out
}

// DecodeBlockOutput reverses EncodeBlockOutput.
func DecodeBlockOutput(out uint64) (blockFP int64, hasTerms, isFloor bool) {
	blockFP = int64(out >> OutputFlagsBits)
	hasTerms = out&OutputFlagHasTerms != 0
	isFloor = out&OutputFlagIsFloor != 0
	return
}

// FloorEntry is one (nextFloorLabel, relativeFP, hasTerms) triple read
// by the reader to find the sub-block covering a given next-byte
// (spec §4.5.1/§4.5.2 floor-data array).
type FloorEntry struct {
	Label      byte
	RelativeFP int64
	HasTerms   bool
}

// FSTBuilder accumulates (prefix -> packed output) pairs in strictly
// increasing prefix order, as block-tree writer emits block roots, and
// produces an immutable FST. Floor data for a given prefix is recorded
// separately since vellum's output alphabet is a single uint64.
type FSTBuilder struct {
	buf     bytes.Buffer
	builder *vellum.Builder
	floors  map[string][]FloorEntry
}

// NewFSTBuilder constructs an empty builder.
func NewFSTBuilder() (*FSTBuilder, error) {
	b := &FSTBuilder{floors: make(map[string][]FloorEntry)}
	builder, err := vellum.New(&b.buf, nil)
	if err != nil {
		return nil, err
	}
	b.builder = builder
	return b, nil
}

// Insert records prefix -> output. prefix must be lexicographically
// greater than every previously inserted prefix (vellum's contract,
// matching spec §4.5.3's "strictly increasing byte-lexicographic
// order" invariant applied to block roots).
func (b *FSTBuilder) Insert(prefix []byte, output uint64, floor []FloorEntry) error {
	if err := b.builder.Insert(prefix, output); err != nil {
		return err
	}
	if len(floor) > 0 {
		b.floors[string(prefix)] = floor
	}
	return nil
}

// Finish closes the builder and returns the packed FST bytes plus the
// floor-data side table.
func (b *FSTBuilder) Finish() ([]byte, map[string][]FloorEntry, error) {
	if err := b.builder.Close(); err != nil {
		return nil, nil, err
	}
	return b.buf.Bytes(), b.floors, nil
}

// FST is the read side: an immutable, thread-safe (per spec §5) prefix
// index over block file pointers.
type FST struct {
	fst    *vellum.FST
	floors map[string][]FloorEntry
}

// LoadFST parses previously written FST bytes plus its floor side
// table (serialized separately in the .tip file, see blocktree_writer.go).
func LoadFST(data []byte, floors map[string][]FloorEntry) (*FST, error) {
	f, err := vellum.Load(data)
	if err != nil {
		return nil, err
	}
	if floors == nil {
		floors = map[string][]FloorEntry{}
	}
	return &FST{fst: f, floors: floors}, nil
}

// Get returns the packed output for an exact prefix match.
func (f *FST) Get(prefix []byte) (uint64, bool, error) {
	return f.fst.Get(prefix)
}

// Floor returns the floor-data array recorded for prefix, if any.
func (f *FST) Floor(prefix []byte) []FloorEntry {
	return f.floors[string(prefix)]
}

// LongestPrefix walks the FST along target's bytes and returns the
// deepest indexed prefix that is itself a prefix of target, along with
// its packed output. This implements the "Seek algorithm" of spec
// §4.5.2: walk while the FST can extend, remembering the deepest final
// (indexed) arc.
func (f *FST) LongestPrefix(target []byte) (prefixLen int, output uint64, found bool, err error) {
	it, err := f.fst.Iterator(nil, nil)
	if err == vellum.ErrIteratorDone {
		return 0, 0, false, nil
	}
	if err != nil {
		return 0, 0, false, err
	}
	defer it.Close()

	best := -1
	var bestOut uint64
	for {
		k, v := it.Current()
		if len(k) <= len(target) && bytes.Equal(k, target[:len(k)]) {
			if len(k) > best {
				best = len(k)
				bestOut = v
			}
		} else if len(k) > 0 && bytes.Compare(k, target) > 0 {
			break
		}
		if err := it.Next(); err == vellum.ErrIteratorDone {
			break
		} else if err != nil {
			return 0, 0, false, err
		}
	}
	if best < 0 {
		return 0, 0, false, nil
	}
	return best, bestOut, true, nil
}
