package hash

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	opts := Options{BcryptCost: 4, HMACSecret: "k"}

	h, err := New("bcrypt", opts)
	require.NoError(t, err)
	assert.IsType(t, &Bcrypt{}, h)

	h, err = New("", opts)
	require.NoError(t, err)
	assert.IsType(t, &Argon2id{}, h)

	h, err = New("HMAC", opts)
	require.NoError(t, err)
	assert.IsType(t, &HMACSHA256{}, h)

	_, err = New("md5", opts)
	assert.Error(t, err)
}

func TestHashers_RoundTrip(t *testing.T) {
	hashers := map[string]Hash{
		"bcrypt":   NewBcrypt(4, "pepper"),
		"argon2id": NewArgon2id("pepper"),
		"hmac":     NewHMACSHA256("secret"),
	}

	for name, h := range hashers {
		t.Run(name, func(t *testing.T) {
			hashed, err := h.Hash("N3w-Passw0rd!")
			require.NoError(t, err)
			assert.NotEqual(t, "N3w-Passw0rd!", string(hashed))

			assert.True(t, h.Verify(string(hashed), "N3w-Passw0rd!"))
			assert.False(t, h.Verify(string(hashed), "wrong"))
		})
	}
}

func TestBcrypt_MaxInputBytes(t *testing.T) {
	plain := NewBcrypt(4, "")
	assert.Equal(t, BcryptMaxInput, plain.MaxInputBytes())

	peppered := NewBcrypt(4, "pepper")
	assert.Equal(t, BcryptMaxInput-len("pepper"), peppered.MaxInputBytes())

	_, err := peppered.Hash(strings.Repeat("a", peppered.MaxInputBytes()))
	require.NoError(t, err)

	_, err = peppered.Hash(strings.Repeat("a", peppered.MaxInputBytes()+1))
	require.Error(t, err)

	_, err = plain.Hash(strings.Repeat("é", 37))
	require.Error(t, err)

	var _ Limiter = peppered
}

func TestHMACSHA256_Deterministic(t *testing.T) {
	a, _ := NewHMACSHA256("k1").Hash("ref")
	b, _ := NewHMACSHA256("k1").Hash("ref")
	c, _ := NewHMACSHA256("k2").Hash("ref")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
}

func TestArgon2id_VerifyMalformed(t *testing.T) {
	h := NewArgon2id("")

	assert.False(t, h.Verify("", "x"))
	assert.False(t, h.Verify("$bcrypt$v=19$m=1,t=1,p=1$AA$AA", "x"))
	assert.False(t, h.Verify("not-a-hash", "x"))
}
