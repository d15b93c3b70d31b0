package fleet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestContainer() *Container {
	return &Container{
		games:      make(map[uint64]*Wrapper),
		allIDs:     make(map[uint64]bool),
		byName:     make(map[string]map[uint64]bool),
		byRunning:  map[bool]map[uint64]bool{true: {}, false: {}},
		predicates: registerPredicates(),
	}
}

func seedIndex(c *Container, id uint64, name string, running bool) {
	c.allIDs[id] = true
	if c.byName[name] == nil {
		c.byName[name] = make(map[uint64]bool)
	}
	c.byName[name][id] = true
	c.byRunning[running][id] = true
}

func TestFilterUnionIsUnionOfGroupIntersections(t *testing.T) {
	c := newTestContainer()
	seedIndex(c, 1, "alpha", true)
	seedIndex(c, 2, "alphabet", false)
	seedIndex(c, 3, "beta", true)

	// (name_starts=alpha AND is_running=true) OR (is_running=false)
	union := Union{
		Group{{Type: "name_starts", Value: "alpha"}, {Type: "is_running", Value: true}},
		Group{{Type: "is_running", Value: false}},
	}

	got, err := c.evaluate(union)
	require.NoError(t, err)
	assert.Equal(t, map[uint64]bool{1: true, 2: true}, got)
}

func TestFilterGroupWithEmptyResultYieldsEmpty(t *testing.T) {
	c := newTestContainer()
	seedIndex(c, 1, "alpha", true)

	union := Union{Group{{Type: "name_starts", Value: "zzz"}, {Type: "is_running", Value: true}}}
	got, err := c.evaluate(union)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFilterUnionOfEmptyGroupsIsEmpty(t *testing.T) {
	c := newTestContainer()
	seedIndex(c, 1, "alpha", true)

	got, err := c.evaluate(Union{Group{}, Group{}})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestUnsupportedFilterTypeErrors(t *testing.T) {
	c := newTestContainer()
	_, err := c.evaluate(Union{Group{{Type: "nope", Value: "x"}}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Unsupported filter")
}
