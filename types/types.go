package types

import (
	"image"
	"sort"
)

// ImagePath is a path relative to one of the two compared roots
type ImagePath string

// ImageSet holds the relative image paths found under one root
type ImageSet map[ImagePath]struct{}

// NewImageSet builds a set from the given paths, collapsing duplicates
func NewImageSet(paths ...ImagePath) ImageSet {
	set := make(ImageSet, len(paths))
	for _, p := range paths {
		set[p] = struct{}{}
	}
	return set
}

// Contains reports whether the path is a member of the set
func (s ImageSet) Contains(p ImagePath) bool {
	_, ok := s[p]
	return ok
}

// Len returns the number of paths in the set
func (s ImageSet) Len() int {
	return len(s)
}

// Sorted returns the members ordered by path
func (s ImageSet) Sorted() []ImagePath {
	paths := make([]ImagePath, 0, len(s))
	for p := range s {
		paths = append(paths, p)
	}
	SortPaths(paths)
	return paths
}

// SortPaths orders paths lexically in place
func SortPaths(paths []ImagePath) {
	sort.Slice(paths, func(i, j int) bool {
		return paths[i] < paths[j]
	})
}

// DiffKind names the category of a DiffRecord
type DiffKind string

const (
	KindOnlyInA DiffKind = "only_in_a"
	KindOnlyInB DiffKind = "only_in_b"
	KindChanged DiffKind = "changed"
)

// DiffRecord is one reported difference. The concrete type is one of
// OnlyInARecord, OnlyInBRecord or ChangedRecord.
type DiffRecord interface {
	Kind() DiffKind
	RelPath() ImagePath
	isDiffRecord()
}

// OnlyInARecord marks an image present under root A only
type OnlyInARecord struct {
	Path ImagePath
}

func (r OnlyInARecord) Kind() DiffKind { return KindOnlyInA }
func (r OnlyInARecord) RelPath() ImagePath { return r.Path }
func (OnlyInARecord) isDiffRecord() {}

// OnlyInBRecord marks an image present under root B only
type OnlyInBRecord struct {
	Path ImagePath
}

func (r OnlyInBRecord) Kind() DiffKind { return KindOnlyInB }
func (r OnlyInBRecord) RelPath() ImagePath { return r.Path }
func (OnlyInBRecord) isDiffRecord() {}

// ChangedRecord marks an image present on both sides that compared below 1.0
type ChangedRecord struct {
	Path  ImagePath
	Score float64
	// DiffAsset is the report-root-relative, slash-separated path of the diff image
	DiffAsset string
}

func (r ChangedRecord) Kind() DiffKind { return KindChanged }
func (r ChangedRecord) RelPath() ImagePath { return r.Path }
func (ChangedRecord) isDiffRecord() {}

// ComparisonOutcome is what a comparator produces for one common path.
// Exactly one of Heatmap and DiffFile is set.
type ComparisonOutcome struct {
	Score    float64
	Heatmap  image.Image
	DiffFile string
}

// Manifest is the ordered list of records produced by a run
type Manifest []DiffRecord

// OnlyInA returns the only-in-A records in manifest order
func (m Manifest) OnlyInA() []OnlyInARecord {
	var out []OnlyInARecord
	for _, r := range m {
		if rec, ok := r.(OnlyInARecord); ok {
			out = append(out, rec)
		}
	}
	return out
}

// OnlyInB returns the only-in-B records in manifest order
func (m Manifest) OnlyInB() []OnlyInBRecord {
	var out []OnlyInBRecord
	for _, r := range m {
		if rec, ok := r.(OnlyInBRecord); ok {
			out = append(out, rec)
		}
	}
	return out
}

// Changed returns the changed records in manifest order
func (m Manifest) Changed() []ChangedRecord {
	var out []ChangedRecord
	for _, r := range m {
		if rec, ok := r.(ChangedRecord); ok {
			out = append(out, rec)
		}
	}
	return out
}

// Counts tallies records per kind
type Counts struct {
	OnlyInA int
	OnlyInB int
	Changed int
}

// Total returns the number of records
func (c Counts) Total() int {
	return c.OnlyInA + c.OnlyInB + c.Changed
}

// Counts tallies the manifest per kind
func (m Manifest) Counts() Counts {
	var c Counts
	for _, r := range m {
		switch r.Kind() {
		case KindOnlyInA:
			c.OnlyInA++
		case KindOnlyInB:
			c.OnlyInB++
		case KindChanged:
			c.Changed++
		}
	}
	return c
}
