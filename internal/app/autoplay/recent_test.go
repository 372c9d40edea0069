package autoplay

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecentSet_AddAndContains(t *testing.T) {
	rs := NewRecentSet(3)

	assert.False(t, rs.Contains("a"))
	rs.Add("a")
	assert.True(t, rs.Contains("a"))
	assert.Equal(t, 1, rs.Len())
}

func TestRecentSet_EvictsOldestAtCapacity(t *testing.T) {
	rs := NewRecentSet(3)
	rs.Add("a")
	rs.Add("b")
	rs.Add("c")
	rs.Add("d")

	assert.False(t, rs.Contains("a"), "Oldest entry should be evicted")
	assert.True(t, rs.Contains("b"))
	assert.True(t, rs.Contains("c"))
	assert.True(t, rs.Contains("d"))
	assert.Equal(t, 3, rs.Len())
}

func TestRecentSet_ReAddDoesNotRefreshAge(t *testing.T) {
	rs := NewRecentSet(3)
	rs.Add("a")
	rs.Add("b")
	rs.Add("c")

	// Re-adding an existing member is a no-op: "a" keeps its original age
	// and is still the next eviction victim.
	rs.Add("a")
	rs.Add("d")

	assert.False(t, rs.Contains("a"))
	assert.True(t, rs.Contains("d"))
}

func TestRecentSet_IgnoresEmptyID(t *testing.T) {
	rs := NewRecentSet(3)
	rs.Add("")

	assert.Equal(t, 0, rs.Len())
	assert.False(t, rs.Contains(""))
}

func TestRecentSet_LongRotation(t *testing.T) {
	rs := NewRecentSet(20)
	for i := 0; i < 40; i++ {
		rs.Add(fmt.Sprintf("t%d", i))
	}

	assert.Equal(t, 20, rs.Len())
	assert.False(t, rs.Contains("t19"))
	assert.True(t, rs.Contains("t20"))
	assert.True(t, rs.Contains("t39"))
}
