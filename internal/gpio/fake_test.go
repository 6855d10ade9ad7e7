package gpio

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFakeLine(t *testing.T) {
	l := NewFakeLine(false)

	on, err := l.Get()
	require.NoError(t, err)
	assert.False(t, on)

	require.NoError(t, l.Set(true))
	require.NoError(t, l.Set(false))

	writes := l.Writes()
	require.Len(t, writes, 2)
	assert.True(t, writes[0].State)
	assert.False(t, writes[1].State)
	assert.False(t, writes[1].At.Before(writes[0].At))

	l.FailSet(errors.New("broken"))
	assert.Error(t, l.Set(true))
	l.FailGet(errors.New("broken"))
	_, err = l.Get()
	assert.Error(t, err)

	require.NoError(t, l.Close())
	assert.True(t, l.Closed())
}

func TestSimLine(t *testing.T) {
	l := NewSimLine()
	assert.False(t, l.On())
	require.NoError(t, l.Set(true))
	on, err := l.Get()
	require.NoError(t, err)
	assert.True(t, on)
	assert.True(t, l.On())
	assert.NoError(t, l.Close())
}
