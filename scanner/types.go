package scanner

import "imdirdiff/types"

// IndexOptions defines the options for indexing one root
type IndexOptions struct {
	// Extensions is the allow-list, with or without leading dots
	Extensions []string
	// FollowSymlinks descends into linked directories and indexes linked files
	FollowSymlinks bool
}

// Reconciliation is the three-way split of two image sets.
// Every slice is sorted by path.
type Reconciliation struct {
	OnlyInA []types.ImagePath
	OnlyInB []types.ImagePath
	Common  []types.ImagePath
}

// IndexStats counts what a walk saw; it is only used for debug logging
type IndexStats struct {
	Images  int
	Skipped int
	Ignored int
}
