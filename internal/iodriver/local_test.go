package iodriver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalOutputFIFOAndOrder(t *testing.T) {
	out := NewLocalOutput()
	require.NoError(t, out.Push(1, "player", "test", Message{Content: "hi"}))
	require.NoError(t, out.Push(1, "player", "test", Message{Content: "there"}))

	msg, ok, err := out.Pop(1, "player", "test")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "hi", msg.Content)
	assert.Equal(t, uint64(0), msg.Order)

	msg, ok, err = out.Pop(1, "player", "test")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "there", msg.Content)
	assert.Equal(t, uint64(1), msg.Order)

	_, ok, err = out.Pop(1, "player", "test")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLocalInputSetOverwritesAndConsumeDrains(t *testing.T) {
	in := NewLocalInput()
	require.NoError(t, in.Set(1, "player", "north"))
	require.NoError(t, in.Set(1, "player", "south"))

	set, err := in.IsSet(1, "player")
	require.NoError(t, err)
	assert.True(t, set)

	cmd, ok, err := in.Consume(1, "player")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "south", cmd)

	_, ok, err = in.Consume(1, "player")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLocalDriversDestroyDropsGame(t *testing.T) {
	out := NewLocalOutput()
	require.NoError(t, out.Push(1, "player", "test", Message{Content: "hi"}))
	out.Destroy(1)

	n, err := out.Size(1, "player", "test")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestRegistryUnknownDriverNotFound(t *testing.T) {
	r := NewRegistry()
	_, err := r.Output("missing")
	require.Error(t, err)
}
