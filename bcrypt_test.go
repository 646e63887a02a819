package identity

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHashPasswordWithCost(t *testing.T) {
	cases := map[string]struct {
		password string
		cost     int
		invalid  bool
	}{
		"min cost":              {password: "correct horse battery", cost: bcrypt.MinCost},
		"cost above max clamps": {password: "correct horse battery", cost: bcrypt.MaxCost + 1},
		"empty password":        {password: "", cost: bcrypt.MinCost, invalid: true},
		"over bcrypt limit":     {password: strings.Repeat("a", MaxPasswordBytes+1), cost: bcrypt.MinCost, invalid: true},
		"exactly at limit":      {password: strings.Repeat("b", MaxPasswordBytes), cost: bcrypt.MinCost},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			hash, err := HashPasswordWithCost(tc.password, tc.cost)
			if tc.invalid {
				require.Error(t, err)
				assert.True(t, IsValidation(err))
				assert.Empty(t, hash)
				return
			}

			require.NoError(t, err)
			assert.NotEqual(t, tc.password, hash)
			assert.NoError(t, ComparePasswordAndHash(tc.password, hash))
		})
	}
}

func TestComparePasswordAndHash(t *testing.T) {
	hash, err := HashPasswordWithCost("s3cret-passphrase", bcrypt.MinCost)
	require.NoError(t, err)

	t.Run("match", func(t *testing.T) {
		assert.NoError(t, ComparePasswordAndHash("s3cret-passphrase", hash))
	})

	t.Run("mismatch is a sentinel", func(t *testing.T) {
		err := ComparePasswordAndHash("not-it", hash)
		assert.ErrorIs(t, err, ErrMismatchedHashAndPassword)
	})

	t.Run("garbage hash", func(t *testing.T) {
		err := ComparePasswordAndHash("s3cret-passphrase", "not-a-bcrypt-hash")
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrMismatchedHashAndPassword)
	})
}

func TestHashPasswordIsSalted(t *testing.T) {
	first, err := HashPasswordWithCost("same-password", bcrypt.MinCost)
	require.NoError(t, err)
	second, err := HashPasswordWithCost("same-password", bcrypt.MinCost)
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}
