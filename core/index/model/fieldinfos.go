package model

import (
	"fmt"
	"sort"
	"sync"
)

// FieldInfos is a segment's resolved field table, addressable both by
// name and by number. Mirrors fieldInfos.Values /
// fieldInfos.byNumber referenced in the teacher's perfield.go and the
// vasth-golucene BlockTreeTermsReader.
type FieldInfos struct {
	Values   []*FieldInfo
	byNumber map[int]*FieldInfo
	byName   map[string]*FieldInfo
}

// NewFieldInfos builds a FieldInfos from an unordered slice, sorting
// Values by name so flush (spec §4.4 step 3 "Sort fields by name") can
// simply range over it.
func NewFieldInfos(infos []*FieldInfo) *FieldInfos {
	sorted := append([]*FieldInfo(nil), infos...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })
	fis := &FieldInfos{
		Values:   sorted,
		byNumber: make(map[int]*FieldInfo, len(sorted)),
		byName:   make(map[string]*FieldInfo, len(sorted)),
	}
	for _, fi := range sorted {
		fis.byNumber[fi.Number] = fi
		fis.byName[fi.Name] = fi
	}
	return fis
}

func (fis *FieldInfos) ByNumber(n int) *FieldInfo   { return fis.byNumber[n] }
func (fis *FieldInfos) ByName(name string) *FieldInfo { return fis.byName[name] }
func (fis *FieldInfos) Len() int                    { return len(fis.Values) }

// FieldNumbers is the global field-number map shared across all
// segments of an index (spec §3 Field info invariant: "a field's
// numeric id never changes across segment generations once
// assigned"). One coarse lock guards it per spec §5.
type FieldNumbers struct {
	mu        sync.Mutex
	numberFor map[string]int
	nameFor   map[int]string
	next      int
	version   int64
}

// NewFieldNumbers returns an empty global map at version 0.
func NewFieldNumbers() *FieldNumbers {
	return &FieldNumbers{numberFor: make(map[string]int), nameFor: make(map[int]string)}
}

// RestoreFieldNumbers rebuilds a FieldNumbers map from a snapshot
// previously read back from a "<version>.fnx" file (spec §4.7 step 2),
// used when a writer reopens an existing index: assigned numbers must
// never be reassigned across generations (spec §3 Field info
// invariant), so this restores the exact (number -> name) pairs rather
// than re-deriving them via AddOrGet.
func RestoreFieldNumbers(version int64, names map[int]string) *FieldNumbers {
	m := &FieldNumbers{
		numberFor: make(map[string]int, len(names)),
		nameFor:   make(map[int]string, len(names)),
		version:   version,
	}
	for n, name := range names {
		m.numberFor[name] = n
		m.nameFor[n] = name
		if n >= m.next {
			m.next = n + 1
		}
	}
	return m
}

// AddOrGet returns the stable number for name, assigning a new one
// (and bumping the map's version) the first time the name is seen.
func (m *FieldNumbers) AddOrGet(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n, ok := m.numberFor[name]; ok {
		return n
	}
	n := m.next
	m.next++
	m.numberFor[name] = n
	m.nameFor[n] = name
	m.version++
	return n
}

// Version returns the map's current version, referenced by
// SegmentInfos as the "pointer to the global field-number map
// version" (spec §3 SegmentInfos).
func (m *FieldNumbers) Version() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.version
}

// NameFor resolves a previously assigned number back to a field name,
// used when replaying a persisted .fnx file.
func (m *FieldNumbers) NameFor(n int) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	name, ok := m.nameFor[n]
	if !ok {
		return "", fmt.Errorf("model: no field registered for number %d", n)
	}
	return name, nil
}

// Snapshot returns a stable, version-stamped (number -> name) view for
// serialization into a <version>.fnx file (spec §4.7 step 2).
func (m *FieldNumbers) Snapshot() (version int64, names map[int]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[int]string, len(m.nameFor))
	for k, v := range m.nameFor {
		out[k] = v
	}
	return m.version, out
}
