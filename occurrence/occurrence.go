// Package occurrence implements the occurrence map: an ordered index of
// 4-byte window hits over a block's decoded bytes, used by both the
// compressor (to enumerate back-reference candidates) and the
// decompressor (to recover which candidate the compressor chose).
//
// The map's behavior must be bit-for-bit identical between compression
// and decompression: same hash key, same pruning rule, same candidate
// filter, same FIFO iteration order. container/list gives O(1)
// front-pruning without reaching for a third-party ordered-map, which
// the pack never imports for this shape.
package occurrence

import "container/list"

const (
	// KeyLen is the width of the window key used to bucket positions.
	KeyLen = 4
	// MaxOffset is the maximum LZ4 back-reference distance.
	MaxOffset = 65535
	// EndLiteralNum is the mandatory uncompressed tail reserved at the
	// end of every block.
	EndLiteralNum = 5
)

// Map indexes positions in data by their 4-byte window, honoring the
// prefer-hidden policy when building candidate sets.
type Map struct {
	data         []byte
	buckets      map[[KeyLen]byte]*list.List
	preferHidden bool
}

// New returns a Map over data. data must remain valid and unchanged for
// the lifetime of the Map.
func New(data []byte, preferHidden bool) *Map {
	return &Map{
		data:         data,
		buckets:      make(map[[KeyLen]byte]*list.List),
		preferHidden: preferHidden,
	}
}

func (m *Map) key(index int) [KeyLen]byte {
	var k [KeyLen]byte
	copy(k[:], m.data[index:index+KeyLen])
	return k
}

// Add registers positions [index, index+count) in the map, truncating the
// range to the trailing MaxOffset positions so long constant runs cannot
// grow the map unboundedly.
func (m *Map) Add(index, count int) {
	start, n := index, count
	if count > MaxOffset {
		start, n = index+count-MaxOffset, MaxOffset
	}

	for i := start; i < start+n; i++ {
		k := m.key(i)
		bucket := m.buckets[k]
		if bucket == nil {
			bucket = list.New()
			m.buckets[k] = bucket
		}
		bucket.PushBack(i)
	}
}

// Get returns the candidate Set at cursor: the 4-byte key at cursor is
// looked up, entries older than cursor-MaxOffset are pruned, and the
// result is filtered per the prefer-hidden policy.
func (m *Map) Get(cursor int) Set {
	k := m.key(cursor)
	bucket := m.buckets[k]
	if bucket == nil {
		return Set{}
	}

	for e := bucket.Front(); e != nil; {
		next := e.Next()
		pos := e.Value.(int)
		if cursor-pos > MaxOffset {
			bucket.Remove(e)
		}
		e = next
	}

	if bucket.Len() == 0 {
		return Set{}
	}

	positions := make([]int, 0, bucket.Len())
	for e := bucket.Front(); e != nil; e = e.Next() {
		positions = append(positions, e.Value.(int))
	}

	if m.preferHidden {
		return Set{positions: positions, data: m.data, index: cursor}
	}

	lengths := make([]int, len(positions))
	maxLen := 0
	for i, p := range positions {
		lengths[i] = matchLength(m.data, cursor, p)
		if lengths[i] > maxLen {
			maxLen = lengths[i]
		}
	}

	tied := make([]int, 0, len(positions))
	for i, p := range positions {
		if lengths[i] == maxLen {
			tied = append(tied, p)
		}
	}

	return Set{positions: tied, fixedLength: maxLen, hasFixed: true}
}

// matchLength returns the effective match length between the window
// starting at index and the earlier occurrence at occIndex, extending the
// shared 4-byte prefix and capping so the sequence leaves EndLiteralNum
// bytes of mandatory tail literal.
func matchLength(data []byte, index, occIndex int) int {
	common := commonPrefixLen(data[index+KeyLen:], data[occIndex+KeyLen:])
	length := KeyLen + common

	tailCap := len(data) - EndLiteralNum - index
	if length > tailCap {
		length = tailCap
	}
	return length
}

func commonPrefixLen(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	i := 0
	for i < n && a[i] == b[i] {
		i++
	}
	return i
}

// Set is an ordered candidate list for a single cursor position.
type Set struct {
	positions   []int
	data        []byte
	index       int
	fixedLength int
	hasFixed    bool
}

// Len returns the number of candidates, usable directly as a numeral
// codec bound.
func (s Set) Len() int {
	return len(s.positions)
}

// Choose resolves candidate i to its (sourceIndex, matchLength) pair.
func (s Set) Choose(i int) (sourceIndex, length int) {
	occIndex := s.positions[i]
	if s.hasFixed {
		return occIndex, s.fixedLength
	}
	return occIndex, matchLength(s.data, s.index, occIndex)
}

// IndexOf returns the candidate index whose source position equals
// sourceIndex, used by the decompressor to recover the choice the
// compressor made.
func (s Set) IndexOf(sourceIndex int) (int, bool) {
	for i, p := range s.positions {
		if p == sourceIndex {
			return i, true
		}
	}
	return 0, false
}
