package visitors_test

import (
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"beaconly/internal/visitors"
)

func TestFingerprintIsDeterministic(t *testing.T) {
	a := visitors.Fingerprint(1, "203.0.113.10", "visitor-abc", "salt")
	b := visitors.Fingerprint(1, "203.0.113.10", "visitor-abc", "salt")
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
}

func TestFingerprintScopesByWebsite(t *testing.T) {
	a := visitors.Fingerprint(1, "203.0.113.10", "visitor-abc", "salt")
	b := visitors.Fingerprint(2, "203.0.113.10", "visitor-abc", "salt")
	assert.NotEqual(t, a, b)
}

func TestFingerprintChangesWithSalt(t *testing.T) {
	a := visitors.Fingerprint(1, "203.0.113.10", "visitor-abc", "salt-one")
	b := visitors.Fingerprint(1, "203.0.113.10", "visitor-abc", "salt-two")
	assert.NotEqual(t, a, b)
}

func TestFingerprintWithoutClientIDFallsBackToHashedIP(t *testing.T) {
	fp := visitors.Fingerprint(1, "203.0.113.10", "", "salt")
	assert.Equal(t, visitors.HashIP("203.0.113.10", "salt"), fp)
}

func TestAliasIsStable(t *testing.T) {
	fp := visitors.Fingerprint(1, "203.0.113.10", "visitor-abc", "salt")
	first := visitors.Alias(fp)
	second := visitors.Alias(fp)
	assert.Equal(t, first, second)
	assert.NotEmpty(t, first)

	other := visitors.Alias(visitors.Fingerprint(1, "203.0.113.99", "visitor-xyz", "salt"))
	assert.NotEmpty(t, other)
}

func TestAliasIsWellFormedAcrossHashRange(t *testing.T) {
	// Covers hash sums above MaxInt32, which a signed 32-bit index would
	// turn negative.
	sawHighSum := false
	for i := 0; i < 512; i++ {
		fp := fmt.Sprintf("fingerprint-%d", i)

		h := fnv.New32a()
		h.Write([]byte(fp))
		if h.Sum32() > math.MaxInt32 {
			sawHighSum = true
		}

		parts := strings.SplitN(visitors.Alias(fp), " ", 2)
		require.Len(t, parts, 2)
		assert.NotEmpty(t, parts[0])
		assert.NotEmpty(t, parts[1])
	}
	require.True(t, sawHighSum)
}
