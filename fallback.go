package fmph

import (
	"bytes"
	"sort"
)

// fallbackMap resolves the keys the level cascade could not place. Such
// keys receive the index range [base, base+len) above the fingerprint
// indices, keeping the overall mapping a bijection onto [0, n).
//
// A nil *fallbackMap is valid and empty; every build without leftover keys
// uses nil so the common path pays nothing.
type fallbackMap struct {
	index map[string]uint64
	keys  [][]byte // sorted, owned copies; fixes the serialized order
	base  uint64
}

// newFallbackMap assigns indices base, base+1, ... to keys in lexicographic
// order. Key bytes are copied so the map does not alias caller memory.
func newFallbackMap(keys [][]byte, base uint64) *fallbackMap {
	if len(keys) == 0 {
		return nil
	}
	owned := make([][]byte, len(keys))
	for i, k := range keys {
		owned[i] = bytes.Clone(k)
	}
	sort.Slice(owned, func(i, j int) bool {
		return bytes.Compare(owned[i], owned[j]) < 0
	})
	m := &fallbackMap{
		index: make(map[string]uint64, len(owned)),
		keys:  owned,
		base:  base,
	}
	for i, k := range owned {
		m.index[string(k)] = base + uint64(i)
	}
	return m
}

func (m *fallbackMap) lookup(key []byte) (uint64, bool) {
	if m == nil {
		return 0, false
	}
	v, ok := m.index[string(key)]
	return v, ok
}

func (m *fallbackMap) len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}
