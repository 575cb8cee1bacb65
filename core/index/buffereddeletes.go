package index

import (
	"math"
	"sort"
	"sync"

	"github.com/golucene/golucene/core/index/model"
	"github.com/golucene/golucene/core/util"
)

// DeleteTerm names one delete-by-term target (spec §4.6 "delete terms").
type DeleteTerm struct {
	Field string
	Term  []byte
}

// Query identifies documents to strike by delete-by-query (spec §4.6
// "query deletes"). The core ships one implementation, TermQuery,
// enough to exercise query-deletes through the apply algorithm without
// building a full query/scoring language, which is outside this
// module's scope (spec.md §1's data flow stops at "applied to
// segments", never "ranked/scored").
type Query interface {
	// MatchingDocs returns every docID within fp this query matches.
	MatchingDocs(fp FieldsProducer) ([]int, error)
}

// TermQuery matches every document containing Term in Field, the same
// lookup a delete-by-term uses, exposed as a Query so a caller can also
// express it as a query-delete (e.g. to delete regardless of whether
// the indexing thread already struck the term directly).
type TermQuery struct {
	Field string
	Term  []byte
}

func (q *TermQuery) MatchingDocs(fp FieldsProducer) ([]int, error) {
	return matchingDocsForTerm(fp, q.Field, q.Term)
}

func matchingDocsForTerm(fp FieldsProducer, field string, term []byte) ([]int, error) {
	terms, err := fp.Terms(field)
	if err != nil || terms == nil {
		return nil, err
	}
	it, err := terms.Iterator()
	if err != nil {
		return nil, err
	}
	ok, err := it.SeekExact(term)
	if err != nil || !ok {
		return nil, err
	}
	pe, err := it.Postings()
	if err != nil {
		return nil, err
	}
	var docs []int
	for {
		d, err := pe.NextDoc()
		if err != nil {
			return nil, err
		}
		if d == NoMoreDocs {
			break
		}
		docs = append(docs, d)
	}
	return docs, nil
}

// DeletePacket is one frozen, immutable unit of the buffered-deletes
// stream (spec §4.6): a generation number assigned at push time from a
// monotonic counter, plus the term- and query-deletes it carries.
type DeletePacket struct {
	Gen     int64
	Terms   []DeleteTerm
	Queries []Query
}

// BufferedDeletesStream is the thread-safe, FIFO-ordered packet list of
// spec §4.6, guarded by the one coarse lock spec §5 assigns it ("The
// deletes stream... [is] shared and guarded by the writer's monitor").
type BufferedDeletesStream struct {
	mu      sync.Mutex
	nextGen int64
	packets []*DeletePacket
}

// NewBufferedDeletesStream returns an empty stream; the first packet
// pushed is generation 1 (0 is reserved as "nothing applied yet",
// matching SegmentCommitInfo.BufferedDelGen's zero value).
func NewBufferedDeletesStream() *BufferedDeletesStream {
	return &BufferedDeletesStream{nextGen: 1}
}

// Push freezes terms/queries into a new packet, sorting terms by
// (field, term bytes) so Apply's within-field scan sees them in the
// sorted order spec §4.6 describes, and returns the assigned
// generation.
func (s *BufferedDeletesStream) Push(terms []DeleteTerm, queries []Query) int64 {
	frozenTerms := append([]DeleteTerm(nil), terms...)
	sort.Slice(frozenTerms, func(i, j int) bool {
		if frozenTerms[i].Field != frozenTerms[j].Field {
			return frozenTerms[i].Field < frozenTerms[j].Field
		}
		return compareBytes(frozenTerms[i].Term, frozenTerms[j].Term) < 0
	})
	frozenQueries := append([]Query(nil), queries...)

	s.mu.Lock()
	defer s.mu.Unlock()
	g := s.nextGen
	s.nextGen++
	s.packets = append(s.packets, &DeletePacket{Gen: g, Terms: frozenTerms, Queries: frozenQueries})
	return g
}

// CurrentGen returns the generation of the most recently pushed packet,
// or 0 if none has been pushed yet.
func (s *BufferedDeletesStream) CurrentGen() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextGen - 1
}

func (s *BufferedDeletesStream) snapshot() []*DeletePacket {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*DeletePacket(nil), s.packets...)
}

// Segment is the subset of in-RAM segment state Apply needs: the
// segment's commit handle (carrying BufferedDelGen), its reader (to
// evaluate query-deletes and look up term postings), its live-docs
// bitset (lazily allocated the first time a delete actually strikes a
// document), and — if this segment has one — the generation of the
// packet that was pushed as part of this very segment's flush, whose
// term-deletes the producing indexing thread already applied directly
// (spec §4.6: "term-deletes for a segment's own packet were already
// applied... and are not reapplied").
type Segment struct {
	Commit       *model.SegmentCommitInfo
	Fields       FieldsProducer
	LiveDocs     *util.LiveDocs
	OwnPacketGen int64 // -1 if this segment has no own producing packet
}

// Apply runs the spec §4.6 apply algorithm over segments against every
// currently buffered packet: segments are walked in ascending
// BufferedDelGen order, each one resolving the coalesced set of
// packets newer than its own BufferedDelGen, applying their
// term-deletes (skipped for the segment's own producing packet) and
// query-deletes, then advancing BufferedDelGen to the stream's current
// generation. Packets older than the minimum resulting BufferedDelGen
// across all segments are then pruned.
//
// Simplification (documented, correctness-preserving): the coalesced
// set C is recomputed per segment by filtering the full packet
// snapshot rather than incrementally merged while walking S and P in
// lockstep; with the small packet/segment counts this module expects,
// the O(segments*packets) filter is equivalent in result and simpler
// to reason about. Likewise, within-field term matching calls
// TermsEnum.SeekExact once per delete term, each call doing its own FST
// lookup and in-block binary search (see blocktree_reader.go), rather
// than sharing one stateful seekCeil cursor across the sorted batch.
func (s *BufferedDeletesStream) Apply(segments []*Segment) error {
	if len(segments) == 0 {
		return nil
	}
	packets := s.snapshot()
	sorted := append([]*Segment(nil), segments...)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Commit.BufferedDelGen < sorted[j].Commit.BufferedDelGen
	})

	currentGen := s.CurrentGen()
	minBufferedDelGen := int64(math.MaxInt64)

	for _, seg := range sorted {
		threshold := seg.Commit.BufferedDelGen
		for _, p := range packets {
			if p.Gen <= threshold {
				continue
			}
			if err := applyPacket(seg, p); err != nil {
				return err
			}
		}
		if currentGen > seg.Commit.BufferedDelGen {
			seg.Commit.SetBufferedDelGen(currentGen)
		}
		if seg.LiveDocs != nil {
			if err := seg.Commit.SetDelCount(seg.LiveDocs.DeletedCount()); err != nil {
				return err
			}
		}
		if seg.Commit.BufferedDelGen < minBufferedDelGen {
			minBufferedDelGen = seg.Commit.BufferedDelGen
		}
	}

	s.prune(minBufferedDelGen)
	return nil
}

// applyPacket applies one packet's deletes to seg, lazily allocating
// seg.LiveDocs on first strike.
func applyPacket(seg *Segment, p *DeletePacket) error {
	ensureLiveDocs := func() *util.LiveDocs {
		if seg.LiveDocs == nil {
			seg.LiveDocs = util.NewLiveDocs(seg.Commit.Info.DocCount)
		}
		return seg.LiveDocs
	}

	if p.Gen != seg.OwnPacketGen {
		byField := make(map[string][][]byte)
		order := make([]string, 0)
		for _, dt := range p.Terms {
			if _, ok := byField[dt.Field]; !ok {
				order = append(order, dt.Field)
			}
			byField[dt.Field] = append(byField[dt.Field], dt.Term)
		}
		for _, field := range order {
			for _, term := range byField[field] {
				docs, err := matchingDocsForTerm(seg.Fields, field, term)
				if err != nil {
					return err
				}
				if len(docs) == 0 {
					continue
				}
				ld := ensureLiveDocs()
				for _, d := range docs {
					ld.Delete(d)
				}
			}
		}
	}

	for _, q := range p.Queries {
		docs, err := q.MatchingDocs(seg.Fields)
		if err != nil {
			return err
		}
		if len(docs) == 0 {
			continue
		}
		ld := ensureLiveDocs()
		for _, d := range docs {
			ld.Delete(d)
		}
	}
	return nil
}

// prune drops every packet whose generation is below the minimum
// BufferedDelGen now recorded across all known segments (spec §4.6
// step 3).
func (s *BufferedDeletesStream) prune(minBufferedDelGen int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.packets[:0]
	for _, p := range s.packets {
		if p.Gen >= minBufferedDelGen {
			kept = append(kept, p)
		}
	}
	s.packets = kept
}
