package password

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndVerify(t *testing.T) {
	encoded, err := Hash("s3cret-pass")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(encoded, "$argon2id$v=19$m=65536,t=1,p=4$"))

	assert.True(t, Verify("s3cret-pass", encoded))
	assert.False(t, Verify("wrong", encoded))
	assert.False(t, NeedsRehash(encoded))
}

func TestVerifyRejectsMalformed(t *testing.T) {
	assert.False(t, Verify("x", ""))
	assert.False(t, Verify("x", "$argon2i$v=19$m=1,t=1,p=1$aa$bb"))
	assert.False(t, Verify("x", "$argon2id$v=19$m=a,t=1,p=1$aa$bb"))
	assert.False(t, Verify("x", "$argon2id$v=19$m=8,t=0,p=1$aa$bb"))
	assert.False(t, Verify("x", "$argon2id$v=19$m=8,t=1,p=1,x=2$aa$bb"))
}

func TestNeedsRehashOnOlderSettings(t *testing.T) {
	legacy, err := hashWith("s3cret-pass", params{memory: 16 * 1024, time: 2, threads: 1, keyLen: 16})
	require.NoError(t, err)

	assert.True(t, Verify("s3cret-pass", legacy))
	assert.True(t, NeedsRehash(legacy))
	assert.True(t, NeedsRehash("not-a-hash"))
}
