// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package util

import (
	"bytes"
	"fmt"
	"math/bits"
)

// smallCutoff is the size of the small bitmap. Values below it never
// allocate.
const smallCutoff = 64

// FastIntSet keeps track of a set of non-negative integers. It does not
// perform any allocations when the values are small. It is not thread-safe.
//
// The large bitmap is shared between copies and is cloned before every
// write, so a FastIntSet can be copied by value like a plain struct.
type FastIntSet struct {
	small uint64
	large []uint64
}

// MakeFastIntSet returns a set initialized with the given values.
func MakeFastIntSet(vals ...int) FastIntSet {
	var res FastIntSet
	for _, v := range vals {
		res.Add(v)
	}
	return res
}

func checkNonNegative(i int) {
	if i < 0 {
		panic(fmt.Sprintf("FastIntSet does not support negative value %d", i))
	}
}

// cloneLarge makes the large bitmap private to this set, growing it so that
// it holds at least n words.
func (s *FastIntSet) cloneLarge(n int) {
	if n < len(s.large) {
		n = len(s.large)
	}
	large := make([]uint64, n)
	copy(large, s.large)
	s.large = large
}

// Add adds a value to the set.
func (s *FastIntSet) Add(i int) {
	checkNonNegative(i)
	if i < smallCutoff {
		s.small |= 1 << uint(i)
		return
	}
	word := (i - smallCutoff) / 64
	s.cloneLarge(word + 1)
	s.large[word] |= 1 << uint((i-smallCutoff)%64)
}

// AddRange adds values 'from' up to 'to' (inclusively) to the set.
func (s *FastIntSet) AddRange(from, to int) {
	if from > to {
		panic("invalid range when adding range to FastIntSet")
	}
	for i := from; i <= to; i++ {
		s.Add(i)
	}
}

// Remove removes a value from the set. No-op if the value is not in the set.
func (s *FastIntSet) Remove(i int) {
	if i < 0 {
		return
	}
	if i < smallCutoff {
		s.small &^= 1 << uint(i)
		return
	}
	word := (i - smallCutoff) / 64
	if word >= len(s.large) {
		return
	}
	s.cloneLarge(0)
	s.large[word] &^= 1 << uint((i-smallCutoff)%64)
	s.trim()
}

// trim drops trailing empty words so that Equals can compare lengths.
func (s *FastIntSet) trim() {
	n := len(s.large)
	for n > 0 && s.large[n-1] == 0 {
		n--
	}
	if n == 0 {
		s.large = nil
	} else {
		s.large = s.large[:n]
	}
}

// Contains returns true if the set contains the value.
func (s FastIntSet) Contains(i int) bool {
	if i < 0 {
		return false
	}
	if i < smallCutoff {
		return s.small&(1<<uint(i)) != 0
	}
	word := (i - smallCutoff) / 64
	if word >= len(s.large) {
		return false
	}
	return s.large[word]&(1<<uint((i-smallCutoff)%64)) != 0
}

// Empty returns true if the set is empty.
func (s FastIntSet) Empty() bool {
	return s.small == 0 && len(s.large) == 0
}

// Len returns the number of the elements in the set.
func (s FastIntSet) Len() int {
	n := bits.OnesCount64(s.small)
	for _, w := range s.large {
		n += bits.OnesCount64(w)
	}
	return n
}

// Next returns the first value in the set which is >= startVal. If there is no
// value, the second return value is false.
func (s FastIntSet) Next(startVal int) (int, bool) {
	if startVal < 0 {
		startVal = 0
	}
	if startVal < smallCutoff {
		if ntz := bits.TrailingZeros64(s.small >> uint(startVal)); ntz < 64 {
			return startVal + ntz, true
		}
		startVal = smallCutoff
	}
	word := (startVal - smallCutoff) / 64
	bit := (startVal - smallCutoff) % 64
	for ; word < len(s.large); word++ {
		if ntz := bits.TrailingZeros64(s.large[word] >> uint(bit)); ntz < 64 {
			return smallCutoff + word*64 + bit + ntz, true
		}
		bit = 0
	}
	return 0, false
}

// ForEach calls a function for each value in the set (in increasing order).
func (s FastIntSet) ForEach(f func(i int)) {
	for i, ok := s.Next(0); ok; i, ok = s.Next(i + 1) {
		f(i)
	}
}

// Ordered returns a slice with all the integers in the set, in increasing order.
func (s FastIntSet) Ordered() []int {
	if s.Empty() {
		return nil
	}
	result := make([]int, 0, s.Len())
	s.ForEach(func(i int) {
		result = append(result, i)
	})
	return result
}

// Copy returns a copy of s which can be modified independently.
func (s FastIntSet) Copy() FastIntSet {
	c := FastIntSet{small: s.small}
	if len(s.large) > 0 {
		c.large = append([]uint64(nil), s.large...)
	}
	return c
}

// CopyFrom sets the receiver to a copy of other, which can then be modified
// independently.
func (s *FastIntSet) CopyFrom(other FastIntSet) {
	*s = other.Copy()
}

// UnionWith adds all the elements from rhs to this set.
func (s *FastIntSet) UnionWith(rhs FastIntSet) {
	s.small |= rhs.small
	if len(rhs.large) == 0 {
		return
	}
	s.cloneLarge(len(rhs.large))
	for i, w := range rhs.large {
		s.large[i] |= w
	}
}

// Union returns the union of s and rhs as a new set.
func (s FastIntSet) Union(rhs FastIntSet) FastIntSet {
	r := s.Copy()
	r.UnionWith(rhs)
	return r
}

// IntersectionWith removes any elements not in rhs from this set.
func (s *FastIntSet) IntersectionWith(rhs FastIntSet) {
	s.small &= rhs.small
	if len(s.large) == 0 {
		return
	}
	s.cloneLarge(0)
	for i := range s.large {
		if i < len(rhs.large) {
			s.large[i] &= rhs.large[i]
		} else {
			s.large[i] = 0
		}
	}
	s.trim()
}

// Intersection returns the intersection of s and rhs as a new set.
func (s FastIntSet) Intersection(rhs FastIntSet) FastIntSet {
	r := s.Copy()
	r.IntersectionWith(rhs)
	return r
}

// Intersects returns true if s has any elements in common with rhs.
func (s FastIntSet) Intersects(rhs FastIntSet) bool {
	if s.small&rhs.small != 0 {
		return true
	}
	for i := 0; i < len(s.large) && i < len(rhs.large); i++ {
		if s.large[i]&rhs.large[i] != 0 {
			return true
		}
	}
	return false
}

// DifferenceWith removes any elements in rhs from this set.
func (s *FastIntSet) DifferenceWith(rhs FastIntSet) {
	s.small &^= rhs.small
	if len(s.large) == 0 || len(rhs.large) == 0 {
		return
	}
	s.cloneLarge(0)
	for i := 0; i < len(s.large) && i < len(rhs.large); i++ {
		s.large[i] &^= rhs.large[i]
	}
	s.trim()
}

// Difference returns the elements of s that are not in rhs as a new set.
func (s FastIntSet) Difference(rhs FastIntSet) FastIntSet {
	r := s.Copy()
	r.DifferenceWith(rhs)
	return r
}

// Equals returns true if the two sets are identical.
func (s FastIntSet) Equals(rhs FastIntSet) bool {
	if s.small != rhs.small || len(s.large) != len(rhs.large) {
		return false
	}
	for i := range s.large {
		if s.large[i] != rhs.large[i] {
			return false
		}
	}
	return true
}

// SubsetOf returns true if rhs contains all the elements in s.
func (s FastIntSet) SubsetOf(rhs FastIntSet) bool {
	if s.small&^rhs.small != 0 {
		return false
	}
	for i, w := range s.large {
		var r uint64
		if i < len(rhs.large) {
			r = rhs.large[i]
		}
		if w&^r != 0 {
			return false
		}
	}
	return true
}

// String returns a list representation of elements. Sequential runs of three
// or more values are collapsed into ranges, e.g. "(1,3-5)".
func (s FastIntSet) String() string {
	var buf bytes.Buffer
	buf.WriteByte('(')
	appendRange := func(start, end int) {
		if buf.Len() > 1 {
			buf.WriteByte(',')
		}
		switch {
		case start == end:
			fmt.Fprintf(&buf, "%d", start)
		case start+1 == end:
			fmt.Fprintf(&buf, "%d,%d", start, end)
		default:
			fmt.Fprintf(&buf, "%d-%d", start, end)
		}
	}
	rangeStart, rangeEnd := -1, -1
	s.ForEach(func(i int) {
		if rangeStart != -1 && rangeEnd == i-1 {
			rangeEnd = i
			return
		}
		if rangeStart != -1 {
			appendRange(rangeStart, rangeEnd)
		}
		rangeStart, rangeEnd = i, i
	})
	if rangeStart != -1 {
		appendRange(rangeStart, rangeEnd)
	}
	buf.WriteByte(')')
	return buf.String()
}
