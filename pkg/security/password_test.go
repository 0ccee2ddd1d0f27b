package security_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/security"
)

var cheap = config.PasswordConfig{ArgonMemoryKB: 64, ArgonTime: 1, ArgonParallelism: 1, ArgonSaltLen: 16, ArgonKeyLen: 32}

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := security.HashPassword("very-secure-password", cheap)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$argon2id$v=19$m=64,t=1,p=1$"), hash)

	ok, err := security.VerifyPassword("very-secure-password", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = security.VerifyPassword("bogus-password", hash)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHashPasswordIsSalted(t *testing.T) {
	first, err := security.HashPassword("pw", cheap)
	require.NoError(t, err)
	second, err := security.HashPassword("pw", cheap)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	_, err = security.HashPassword("", cheap)
	assert.ErrorIs(t, err, security.ErrEmptyPassword)
}

func TestVerifyPasswordRejectsMalformedHashes(t *testing.T) {
	valid, err := security.HashPassword("pw", cheap)
	require.NoError(t, err)
	parts := strings.Split(valid, "$")

	for name, encoded := range map[string]string{
		"not a hash":    "not-a-hash",
		"wrong algo":    strings.Replace(valid, "argon2id", "argon2i", 1),
		"wrong version": strings.Replace(valid, "v=19", "v=16", 1),
		"zero memory":   strings.Replace(valid, "m=64", "m=0", 1),
		"bad params":    strings.Replace(valid, "m=64,t=1,p=1", "m=64;t=1", 1),
		"bad salt":      strings.Join([]string{"", parts[1], parts[2], parts[3], "!!", parts[5]}, "$"),
		"empty key":     strings.Join([]string{"", parts[1], parts[2], parts[3], parts[4], ""}, "$"),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := security.VerifyPassword("pw", encoded)
			assert.ErrorIs(t, err, security.ErrInvalidHash)
		})
	}
}

func TestNeedsRehash(t *testing.T) {
	hash, err := security.HashPassword("pw", cheap)
	require.NoError(t, err)
	assert.False(t, security.NeedsRehash(hash, cheap))

	stronger := cheap
	stronger.ArgonTime = 2
	assert.True(t, security.NeedsRehash(hash, stronger))
	assert.True(t, security.NeedsRehash("garbage", cheap))
}

func TestParamsAreClamped(t *testing.T) {
	p := security.ParamsFromConfig(config.PasswordConfig{})
	assert.Equal(t, security.ArgonParams{Memory: 8, Time: 1, Parallelism: 1, SaltLen: 8, KeyLen: 16}, p)
}
