package secrets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)

	store, err := NewStore(key)
	require.NoError(t, err)

	token, err := store.Encrypt("hunter2")
	require.NoError(t, err)
	assert.NotEqual(t, "hunter2", token)

	plaintext, err := store.Decrypt(token)
	require.NoError(t, err)
	assert.Equal(t, "hunter2", plaintext)
}

func TestDecryptWithWrongKeyFails(t *testing.T) {
	key1, _ := GenerateKey()
	key2, _ := GenerateKey()

	store1, err := NewStore(key1)
	require.NoError(t, err)
	store2, err := NewStore(key2)
	require.NoError(t, err)

	token, err := store1.Encrypt("hunter2")
	require.NoError(t, err)

	_, err = store2.Decrypt(token)
	assert.Error(t, err)
}

func TestNewStoreRejectsBadKey(t *testing.T) {
	_, err := NewStore("")
	assert.Error(t, err)

	_, err = NewStore("not-a-key")
	assert.Error(t, err)
}
