package embed

import (
	"context"
	"hash/fnv"
	"strings"

	"github.com/lazypower/memvault/internal/index"
)

// Hash is a local embedder that feature-hashes words and character
// trigrams into a fixed number of buckets. It needs no network and is
// deterministic, which makes it useful offline and in tests. It captures
// lexical overlap only.
type Hash struct {
	dims int
}

// NewHash returns a hashing embedder producing vectors of length dims.
func NewHash(dims int) *Hash {
	if dims <= 0 {
		dims = 384
	}
	return &Hash{dims: dims}
}

func (h *Hash) Model() string   { return "hash" }
func (h *Hash) Dimensions() int { return h.dims }

// Embed returns an L2-normalized vector. Empty text yields the zero vector.
func (h *Hash) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, h.dims)
	for _, tok := range tokenize(text) {
		h.add(vec, "w:"+tok, 1)
		padded := " " + tok + " "
		for i := 0; i+3 <= len(padded); i++ {
			h.add(vec, "g:"+padded[i:i+3], 0.5)
		}
	}
	index.Normalize(vec)
	return vec, nil
}

// add uses a signed hash so colliding features tend to cancel.
func (h *Hash) add(vec []float32, feature string, weight float32) {
	f := fnv.New64a()
	f.Write([]byte(feature))
	sum := f.Sum64()
	i := int(sum % uint64(h.dims))
	if sum&(1<<63) != 0 {
		weight = -weight
	}
	vec[i] += weight
}

// tokenize splits text into lowercase tokens, stripping punctuation.
func tokenize(text string) []string {
	text = strings.ToLower(text)
	var tokens []string
	var current strings.Builder
	for _, r := range text {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			current.WriteRune(r)
		} else {
			if current.Len() > 1 { // skip single-char tokens
				tokens = append(tokens, current.String())
			}
			current.Reset()
		}
	}
	if current.Len() > 1 {
		tokens = append(tokens, current.String())
	}
	return tokens
}
