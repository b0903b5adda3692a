// Package keyword is a lexical retrieval index that ranks records with
// Okapi BM25 over their text. It needs no embedding provider.
package keyword

import (
	"context"
	"errors"
	"math"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/lazypower/memvault/internal/memory"
)

// BM25 parameters.
const (
	k1 = 1.5
	b  = 0.75
)

var errVectorCall = errors.New("keyword index ranks text, not vectors")

type doc struct {
	seq    uint64
	length int
}

// Index is an in-memory inverted index. Ties are broken by insertion
// order, earlier first.
type Index struct {
	mu          sync.RWMutex
	postings    map[string]map[string]int // term -> id -> term frequency
	docs        map[string]doc
	totalLength int
	next        uint64
}

var _ memory.TextIndex = (*Index)(nil)

func New() *Index {
	return &Index{
		postings: make(map[string]map[string]int),
		docs:     make(map[string]doc),
	}
}

// Tokenize lowercases text, splits it on whitespace and trims surrounding
// punctuation from each token.
func Tokenize(text string) []string {
	fields := strings.Fields(strings.ToLower(text))
	out := fields[:0]
	for _, f := range fields {
		f = strings.TrimFunc(f, func(r rune) bool { return !unicode.IsLetter(r) && !unicode.IsDigit(r) })
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

// Dimensions is 0: records in keyword mode carry no vectors.
func (x *Index) Dimensions() int { return 0 }

// InsertText indexes text under id, replacing any earlier text for id
// while keeping its original insertion position.
func (x *Index) InsertText(_ context.Context, id, text string) error {
	tokens := Tokenize(text)
	tf := make(map[string]int, len(tokens))
	for _, t := range tokens {
		tf[t]++
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	seq := x.next
	if old, ok := x.docs[id]; ok {
		seq = old.seq
		x.removeLocked(id)
	} else {
		x.next++
	}
	for t, n := range tf {
		p := x.postings[t]
		if p == nil {
			p = make(map[string]int)
			x.postings[t] = p
		}
		p[id] = n
	}
	x.docs[id] = doc{seq: seq, length: len(tokens)}
	x.totalLength += len(tokens)
	return nil
}

func (x *Index) Insert(context.Context, string, []float32) error { return errVectorCall }

func (x *Index) Query(context.Context, []float32, int) ([]memory.Hit, error) {
	return nil, errVectorCall
}

func (x *Index) Remove(_ context.Context, id string) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.removeLocked(id)
	return nil
}

func (x *Index) removeLocked(id string) {
	d, ok := x.docs[id]
	if !ok {
		return
	}
	for t, p := range x.postings {
		if _, ok := p[id]; ok {
			delete(p, id)
			if len(p) == 0 {
				delete(x.postings, t)
			}
		}
	}
	delete(x.docs, id)
	x.totalLength -= d.length
}

// QueryText returns up to k records with a positive BM25 score for query,
// best first. Records sharing no term with the query are never returned.
func (x *Index) QueryText(_ context.Context, query string, k int) ([]memory.Hit, error) {
	if k <= 0 {
		return nil, nil
	}
	terms := Tokenize(query)

	x.mu.RLock()
	defer x.mu.RUnlock()
	if len(x.docs) == 0 {
		return []memory.Hit{}, nil
	}
	n := float64(len(x.docs))
	avgLen := float64(x.totalLength) / n
	if avgLen == 0 {
		avgLen = 1
	}

	scores := make(map[string]float64)
	for _, t := range terms {
		p := x.postings[t]
		if len(p) == 0 {
			continue
		}
		df := float64(len(p))
		idf := math.Log(1 + (n-df+0.5)/(df+0.5))
		for id, freq := range p {
			tf := float64(freq)
			dl := float64(x.docs[id].length)
			scores[id] += idf * tf * (k1 + 1) / (tf + k1*(1-b+b*dl/avgLen))
		}
	}

	hits := make([]memory.Hit, 0, len(scores))
	for id, s := range scores {
		if s > 0 {
			hits = append(hits, memory.Hit{ID: id, Score: s})
		}
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return x.docs[hits[i].ID].seq < x.docs[hits[j].ID].seq
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func (x *Index) Clear(_ context.Context) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.postings = make(map[string]map[string]int)
	x.docs = make(map[string]doc)
	x.totalLength = 0
	x.next = 0
	return nil
}

func (x *Index) Len(_ context.Context) (int, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.docs), nil
}
