package scanner

import "imdirdiff/types"

// Reconcile splits two image sets into paths only in a, only in b, and in
// both. The three results are disjoint and together cover a ∪ b.
func Reconcile(a, b types.ImageSet) Reconciliation {
	var r Reconciliation

	for p := range a {
		if b.Contains(p) {
			r.Common = append(r.Common, p)
		} else {
			r.OnlyInA = append(r.OnlyInA, p)
		}
	}
	for p := range b {
		if !a.Contains(p) {
			r.OnlyInB = append(r.OnlyInB, p)
		}
	}

	types.SortPaths(r.OnlyInA)
	types.SortPaths(r.OnlyInB)
	types.SortPaths(r.Common)

	return r
}
