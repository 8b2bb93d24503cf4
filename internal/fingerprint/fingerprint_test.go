package fingerprint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOfHashesData(t *testing.T) {
	a, err := Of("docker-base-image", "golang", "1.24")
	require.NoError(t, err)
	b, err := Of("docker-base-image", "golang", "1.24")
	require.NoError(t, err)
	c, err := Of("docker-base-image", "golang", "1.23")
	require.NoError(t, err)

	assert.Equal(t, a.SHA, b.SHA)
	assert.NotEqual(t, a.SHA, c.SHA)
	assert.Equal(t, Kind{Type: "docker-base-image", Name: "golang"}, a.Kind())

	s, ok := a.DataString()
	require.True(t, ok)
	assert.Equal(t, "1.24", s)
}

func TestOfRequiresType(t *testing.T) {
	if _, err := Of(" ", "x", 1); err == nil {
		t.Fatalf("expected error for empty type")
	}
	fp, err := Of("language", "", "go")
	require.NoError(t, err)
	assert.Equal(t, "language", fp.Name)
}

func TestBandOf(t *testing.T) {
	cases := map[float64]EntropyBand{
		0:   EntropyZero,
		0.5: EntropyLow,
		1:   EntropyMedium,
		1.9: EntropyMedium,
		2:   EntropyHigh,
		3.2: EntropyHigh,
	}
	for in, want := range cases {
		if got := BandOf(in); got != want {
			t.Fatalf("BandOf(%v) = %s, want %s", in, got, want)
		}
	}
}

func TestParseEntropyBand(t *testing.T) {
	b, ok := ParseEntropyBand("HIGH")
	require.True(t, ok)
	assert.Equal(t, EntropyHigh, b)
	_, ok = ParseEntropyBand("huge")
	assert.False(t, ok)
}

func TestUsageOf(t *testing.T) {
	usage := UsageOf(map[Kind]map[string]int{
		{Type: "b", Name: "x"}: {"s1": 4},
		{Type: "a", Name: "y"}: {"s1": 1, "s2": 1},
		{Type: "a", Name: "z"}: {"s1": 1, "s2": 1, "s3": 1, "s4": 1},
	})
	require.Len(t, usage, 3)

	assert.Equal(t, "a", usage[0].Type)
	assert.Equal(t, "y", usage[0].Name)
	assert.InDelta(t, 1.0, usage[0].Entropy, 1e-9)
	assert.Equal(t, EntropyMedium, usage[0].EntropyBand)

	assert.Equal(t, 4, usage[1].Variants)
	assert.Equal(t, EntropyHigh, usage[1].EntropyBand)

	assert.Equal(t, 4, usage[2].Count)
	assert.Equal(t, 1, usage[2].Variants)
	assert.Equal(t, EntropyZero, usage[2].EntropyBand)
}
