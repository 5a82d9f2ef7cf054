package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashService_HashAndVerify(t *testing.T) {
	svc := NewHashService()

	hash, err := svc.Hash("correct horse battery staple")
	require.NoError(t, err)
	assert.Contains(t, hash, "$argon2id$")

	ok, err := svc.Verify("correct horse battery staple", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.Verify("wrong password", hash)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHashService_SaltedHashesDiffer(t *testing.T) {
	svc := NewHashService()

	h1, err := svc.Hash("same password")
	require.NoError(t, err)
	h2, err := svc.Hash("same password")
	require.NoError(t, err)
	assert.NotEqual(t, h1, h2)
}

func TestHashService_Verify_MalformedHash(t *testing.T) {
	svc := NewHashService()

	_, err := svc.Verify("pw", "not-a-hash")
	assert.Error(t, err)

	_, err = svc.Verify("pw", "$bcrypt$whatever$x$y$z")
	assert.Error(t, err)
}
