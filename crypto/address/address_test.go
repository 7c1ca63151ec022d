package address

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	a, err := New([]byte("node-1"))
	require.NoError(t, err)
	b, err := New([]byte("node-1"))
	require.NoError(t, err)
	c, err := New([]byte("node-2"))
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.True(t, strings.HasPrefix(a, AddressHRP+"1"))
	assert.True(t, Validate(a))
}

func TestValidate(t *testing.T) {
	assert.False(t, Validate(""))
	assert.False(t, Validate("node-1"))

	// valid bech32, wrong HRP
	assert.False(t, Validate("bc1qw508d6qejxtdg4y5r3zarvary0c5xw7kv8f3t4"))
}
