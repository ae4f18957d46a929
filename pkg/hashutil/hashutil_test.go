package hashutil_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rohmanhakim/crawlkit/pkg/hashutil"
)

func TestHashBytesSHA256(t *testing.T) {
	// Known digest of the empty string.
	got, err := hashutil.HashBytes(nil, hashutil.HashAlgoSHA256)
	require.NoError(t, err)
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", got)

	got, err = hashutil.HashBytes([]byte("hello"), hashutil.HashAlgoSHA256)
	require.NoError(t, err)
	assert.Equal(t, "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824", got)
}

func TestHashBytesBlake3(t *testing.T) {
	got, err := hashutil.HashBytes([]byte("hello"), hashutil.HashAlgoBLAKE3)
	require.NoError(t, err)
	assert.Len(t, got, 64)

	again, err := hashutil.HashBytes([]byte("hello"), hashutil.HashAlgoBLAKE3)
	require.NoError(t, err)
	assert.Equal(t, got, again)

	sha, err := hashutil.HashBytes([]byte("hello"), hashutil.HashAlgoSHA256)
	require.NoError(t, err)
	assert.NotEqual(t, sha, got)
}

func TestHashBytesUnsupportedAlgo(t *testing.T) {
	_, err := hashutil.HashBytes([]byte("x"), hashutil.HashAlgo("md5"))
	assert.Error(t, err)
}

func TestSHA256HexMatchesHashBytes(t *testing.T) {
	viaAlgo, err := hashutil.HashBytes([]byte("body"), hashutil.HashAlgoSHA256)
	require.NoError(t, err)
	assert.Equal(t, viaAlgo, hashutil.SHA256Hex([]byte("body")))
}
