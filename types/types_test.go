package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImageSetCollapsesDuplicates(t *testing.T) {
	set := NewImageSet("b.png", "a.png", "b.png")

	require.Equal(t, 2, set.Len())
	assert.True(t, set.Contains("a.png"))
	assert.False(t, set.Contains("c.png"))
	assert.Equal(t, []ImagePath{"a.png", "b.png"}, set.Sorted())
}

func TestManifestSplitsByKind(t *testing.T) {
	m := Manifest{
		OnlyInARecord{Path: "gone.png"},
		OnlyInBRecord{Path: "new.png"},
		OnlyInBRecord{Path: "new2.png"},
		ChangedRecord{Path: "x.png", Score: 0.5, DiffAsset: "diff/x.png"},
	}

	assert.Len(t, m.OnlyInA(), 1)
	assert.Len(t, m.OnlyInB(), 2)
	require.Len(t, m.Changed(), 1)
	assert.Equal(t, 0.5, m.Changed()[0].Score)

	c := m.Counts()
	assert.Equal(t, Counts{OnlyInA: 1, OnlyInB: 2, Changed: 1}, c)
	assert.Equal(t, 4, c.Total())
}

func TestRecordKinds(t *testing.T) {
	tests := []struct {
		rec  DiffRecord
		kind DiffKind
	}{
		{OnlyInARecord{Path: "a"}, KindOnlyInA},
		{OnlyInBRecord{Path: "b"}, KindOnlyInB},
		{ChangedRecord{Path: "c"}, KindChanged},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.kind, tt.rec.Kind())
	}
}
