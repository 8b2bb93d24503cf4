package fingerprint

import (
	"math"
	"sort"
	"strings"
)

// EntropyBand is a coarse classification of how diverse the values of a kind are.
type EntropyBand string

const (
	EntropyZero   EntropyBand = "zero"
	EntropyLow    EntropyBand = "low"
	EntropyMedium EntropyBand = "medium"
	EntropyHigh   EntropyBand = "high"
)

var bands = []EntropyBand{EntropyZero, EntropyLow, EntropyMedium, EntropyHigh}

// ParseEntropyBand is case-insensitive. ok is false for unknown input.
func ParseEntropyBand(s string) (EntropyBand, bool) {
	b := EntropyBand(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range bands {
		if b == known {
			return b, true
		}
	}
	return "", false
}

// BandOf buckets a Shannon entropy (bits).
func BandOf(entropy float64) EntropyBand {
	switch {
	case entropy <= 0:
		return EntropyZero
	case entropy < 1:
		return EntropyLow
	case entropy < 2:
		return EntropyMedium
	default:
		return EntropyHigh
	}
}

// FingerprintUsage aggregates one kind across a workspace.
type FingerprintUsage struct {
	Type        string      `json:"type"`
	Name        string      `json:"name"`
	Variants    int         `json:"variants"`
	Count       int         `json:"count"`
	Entropy     float64     `json:"entropy"`
	EntropyBand EntropyBand `json:"entropyBand"`
}

// UsageOf computes usage from the number of occurrences of each value (sha) per kind.
// Results are sorted by type then name.
func UsageOf(counts map[Kind]map[string]int) []FingerprintUsage {
	out := make([]FingerprintUsage, 0, len(counts))
	for kind, bySHA := range counts {
		total := 0
		for _, n := range bySHA {
			total += n
		}
		entropy := 0.0
		for _, n := range bySHA {
			if n <= 0 || total == 0 {
				continue
			}
			p := float64(n) / float64(total)
			entropy -= p * math.Log2(p)
		}
		// Guard against -0 and float noise for single-valued kinds.
		if entropy < 1e-12 {
			entropy = 0
		}
		out = append(out, FingerprintUsage{
			Type:        kind.Type,
			Name:        kind.Name,
			Variants:    len(bySHA),
			Count:       total,
			Entropy:     entropy,
			EntropyBand: BandOf(entropy),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Type != out[j].Type {
			return out[i].Type < out[j].Type
		}
		return out[i].Name < out[j].Name
	})
	return out
}
