package seal_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"colonies/internal/seal"
)

func newSealer(t *testing.T) seal.Sealer {
	t.Helper()
	key, err := seal.GenerateKey()
	require.NoError(t, err)
	s, err := seal.FromBase64(key)
	require.NoError(t, err)
	return s
}

func TestSealRoundTrip(t *testing.T) {
	s := newSealer(t)
	token, err := s.Seal("alice::bob:1700000000000")
	require.NoError(t, err)
	assert.NotContains(t, token, "alice")

	got, err := s.Open(token)
	require.NoError(t, err)
	assert.Equal(t, "alice::bob:1700000000000", got)

	again, err := s.Seal("alice::bob:1700000000000")
	require.NoError(t, err)
	assert.NotEqual(t, token, again, "nonces must differ")
}

func TestOpenRejectsTampering(t *testing.T) {
	s := newSealer(t)
	token, err := s.Seal("key")
	require.NoError(t, err)

	swap := "A"
	if token[10] == 'A' {
		swap = "B"
	}
	_, err = s.Open(token[:10] + swap + token[11:])
	require.ErrorIs(t, err, seal.ErrInvalidToken)

	_, err = s.Open("not base64!")
	require.ErrorIs(t, err, seal.ErrInvalidToken)

	_, err = s.Open("")
	require.ErrorIs(t, err, seal.ErrInvalidToken)
}

func TestOpenRejectsForeignKey(t *testing.T) {
	token, err := newSealer(t).Seal("key")
	require.NoError(t, err)
	_, err = newSealer(t).Open(token)
	require.ErrorIs(t, err, seal.ErrInvalidToken)
}

func TestKeyLength(t *testing.T) {
	_, err := seal.New([]byte(strings.Repeat("k", 16)))
	require.Error(t, err)
	_, err = seal.FromBase64("%%%")
	require.Error(t, err)
}
