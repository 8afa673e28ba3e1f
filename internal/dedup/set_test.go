package dedup

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSet_MarkAndCheck(t *testing.T) {
	s := New(10)

	assert.True(t, s.IsNew("a"))
	_, evicted := s.MarkSeen("a")
	assert.False(t, evicted)
	assert.False(t, s.IsNew("a"))
	assert.True(t, s.Has("a"))

	// second mark is a no-op
	s.MarkSeen("a")
	assert.Equal(t, 1, s.Len())
}

func TestSet_CheckAndMark(t *testing.T) {
	s := New(10)
	assert.True(t, s.CheckAndMark("x"))
	assert.False(t, s.CheckAndMark("x"))
}

func TestSet_EvictsSingleOldest(t *testing.T) {
	s := New(3)
	s.MarkSeen("a")
	s.MarkSeen("b")
	s.MarkSeen("c")

	evictedID, ok := s.MarkSeen("d")
	require.True(t, ok)
	assert.Equal(t, "a", evictedID)
	assert.Equal(t, []string{"b", "c", "d"}, s.Keys())
}

func TestSet_CapacityScenario(t *testing.T) {
	// 2000 distinct ids fill the cache; the 2001st evicts exactly the first.
	s := New(DefaultCapacity)
	for i := 0; i < DefaultCapacity; i++ {
		s.MarkSeen(fmt.Sprintf("mint-%d", i))
	}
	require.Equal(t, DefaultCapacity, s.Len())

	s.MarkSeen("mint-new")
	assert.Equal(t, DefaultCapacity, s.Len())

	assert.True(t, s.IsNew("mint-0"), "oldest id becomes eligible for reprocessing")
	for i := 1; i < DefaultCapacity; i++ {
		require.False(t, s.IsNew(fmt.Sprintf("mint-%d", i)))
	}
	assert.False(t, s.IsNew("mint-new"))
}

func TestSet_DistinctSurvivesEviction(t *testing.T) {
	s := New(100)
	for i := 0; i < 1000; i++ {
		s.MarkSeen(fmt.Sprintf("id-%d", i))
	}
	assert.Equal(t, 100, s.Len())
	assert.InDelta(t, 1000, float64(s.Distinct()), 50)
}
