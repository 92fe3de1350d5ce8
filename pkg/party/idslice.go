package party

import (
	"encoding/binary"
	"errors"
	"io"
	"sort"
)

var ErrDuplicateID = errors.New("party: duplicate ID")

type IDSlice []ID

// NewIDSlice returns a sorted copy of ids, after checking that no ID is 0 or repeated.
func NewIDSlice(ids []ID) (IDSlice, error) {
	s := IDSlice(ids).Copy()
	if err := s.Valid(); err != nil {
		return nil, err
	}
	return s, nil
}

// Sequential returns the IDs 1, …, n.
func Sequential(n int) IDSlice {
	ids := make(IDSlice, n)
	for i := range ids {
		ids[i] = ID(i + 1)
	}
	return ids
}

func (partyIDs IDSlice) Len() int           { return len(partyIDs) }
func (partyIDs IDSlice) Less(i, j int) bool { return partyIDs[i] < partyIDs[j] }
func (partyIDs IDSlice) Swap(i, j int)      { partyIDs[i], partyIDs[j] = partyIDs[j], partyIDs[i] }

// Sort is a convenience method: x.Sort() calls Sort(x).
func (partyIDs IDSlice) Sort() { sort.Sort(partyIDs) }

// Sorted returns true if partyIDs is strictly increasing.
func (partyIDs IDSlice) Sorted() bool {
	for i := range partyIDs {
		if i > 0 && partyIDs[i-1] >= partyIDs[i] {
			return false
		}
	}
	return true
}

// Valid returns an error if partyIDs contains 0 or a duplicate.
// It does not require partyIDs to be sorted.
func (partyIDs IDSlice) Valid() error {
	seen := make(map[ID]bool, len(partyIDs))
	for _, id := range partyIDs {
		if id == 0 {
			return ErrZeroID
		}
		if seen[id] {
			return ErrDuplicateID
		}
		seen[id] = true
	}
	return nil
}

// Contains returns true if partyIDs contains id.
// Assumes that partyIDs is sorted.
func (partyIDs IDSlice) Contains(id ID) bool {
	_, ok := partyIDs.Search(id)
	return ok
}

// GetIndex returns the index of id in partyIDs.
// If no index was found, return -1.
// Assumes that partyIDs is sorted.
func (partyIDs IDSlice) GetIndex(id ID) int {
	if idx, ok := partyIDs.Search(id); ok {
		return idx
	}
	return -1
}

// Search returns the index of x, and whether it was found.
func (partyIDs IDSlice) Search(x ID) (int, bool) {
	index := sort.Search(len(partyIDs), func(i int) bool { return partyIDs[i] >= x })
	if index < len(partyIDs) && partyIDs[index] == x {
		return index, true
	}
	return 0, false
}

// Copy returns a sorted copy of partyIDs.
func (partyIDs IDSlice) Copy() IDSlice {
	a := make(IDSlice, len(partyIDs))
	copy(a, partyIDs)
	a.Sort()
	return a
}

// WriteTo implements io.WriterTo and should be used within the hash.Hash function.
func (partyIDs IDSlice) WriteTo(w io.Writer) (int64, error) {
	if err := binary.Write(w, binary.BigEndian, uint64(len(partyIDs))); err != nil {
		return 0, err
	}
	nAll := int64(8)
	for _, id := range partyIDs {
		n, err := w.Write(id.Bytes())
		nAll += int64(n)
		if err != nil {
			return nAll, err
		}
	}
	return nAll, nil
}

// Domain implements WriterToWithDomain, and separates this type within hash.Hash.
func (IDSlice) Domain() string {
	return "IDSlice"
}
