package password

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndVerify(t *testing.T) {
	hash, err := Hash("correct horse battery staple")
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse battery staple", hash)

	assert.True(t, Verify("correct horse battery staple", hash))
	assert.False(t, Verify("wrong password", hash))
}

func TestHashesAreSalted(t *testing.T) {
	h1, err := Hash("same input")
	require.NoError(t, err)
	h2, err := Hash("same input")
	require.NoError(t, err)
	assert.NotEqual(t, h1, h2)

	assert.True(t, Verify("same input", h1))
	assert.True(t, Verify("same input", h2))
}

func TestLongPasswordsTruncateAt72Bytes(t *testing.T) {
	prefix := strings.Repeat("a", 72)
	hash, err := Hash(prefix + "tail-one")
	require.NoError(t, err)

	// Only the first 72 bytes participate in the hash.
	assert.True(t, Verify(prefix+"tail-two", hash))
	assert.True(t, Verify(prefix, hash))
	assert.False(t, Verify(prefix[:71], hash))
}

func TestVerifyMalformedHash(t *testing.T) {
	assert.False(t, Verify("anything", "not-a-bcrypt-hash"))
	assert.False(t, Verify("anything", ""))
}
