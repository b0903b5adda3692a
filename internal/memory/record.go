// Package memory holds the types shared by the record stores, the
// retrieval indexes and the engine that coordinates them.
package memory

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"
)

// Conventional metadata keys.
const (
	MetaType   = "type"
	MetaSource = "source"
	MetaTags   = "tags"
)

// Metadata is an open mapping of keys to scalar values
// (string, bool, int64, float64).
type Metadata map[string]any

// Record is a single stored memory.
type Record struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Embedding []float32 `json:"embedding,omitempty"`
	Model     string    `json:"model,omitempty"`
	Metadata  Metadata  `json:"metadata,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a deep copy of r.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := *r
	if r.Embedding != nil {
		c.Embedding = append([]float32(nil), r.Embedding...)
	}
	c.Metadata = r.Metadata.Clone()
	return &c
}

// Clone returns a shallow copy of the map. Values are scalars so this is a
// full copy.
func (m Metadata) Clone() Metadata {
	if m == nil {
		return nil
	}
	c := make(Metadata, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}

// UnmarshalJSON decodes integral numbers as int64 and the rest as float64,
// so metadata survives a JSON round trip with its numeric kinds intact.
func (m *Metadata) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	if raw == nil {
		*m = nil
		return nil
	}
	out := make(Metadata, len(raw))
	for k, v := range raw {
		n, ok := v.(json.Number)
		if !ok {
			out[k] = v
			continue
		}
		if i, err := n.Int64(); err == nil {
			out[k] = i
		} else if f, err := n.Float64(); err == nil {
			out[k] = f
		} else {
			return fmt.Errorf("metadata %q: %w", k, err)
		}
	}
	*m = out
	return nil
}

// Normalize validates m and converts numeric values to int64 or float64.
// Anything that is not a scalar is rejected with ErrInvalidRecord.
func (m Metadata) Normalize() (Metadata, error) {
	if len(m) == 0 {
		return nil, nil
	}
	out := make(Metadata, len(m))
	for k, v := range m {
		if strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("%w: empty metadata key", ErrInvalidRecord)
		}
		switch x := v.(type) {
		case string, bool, int64, float64:
			out[k] = x
		case int:
			out[k] = int64(x)
		case int8:
			out[k] = int64(x)
		case int16:
			out[k] = int64(x)
		case int32:
			out[k] = int64(x)
		case uint8:
			out[k] = int64(x)
		case uint16:
			out[k] = int64(x)
		case uint32:
			out[k] = int64(x)
		case uint:
			if uint64(x) > math.MaxInt64 {
				return nil, fmt.Errorf("%w: metadata %q value %d overflows int64", ErrInvalidRecord, k, x)
			}
			out[k] = int64(x)
		case uint64:
			if x > math.MaxInt64 {
				return nil, fmt.Errorf("%w: metadata %q value %d overflows int64", ErrInvalidRecord, k, x)
			}
			out[k] = int64(x)
		case float32:
			out[k] = float64(x)
		case nil:
			// dropped
		default:
			return nil, fmt.Errorf("%w: metadata %q has non-scalar value of type %T", ErrInvalidRecord, k, v)
		}
	}
	return out, nil
}

// Order selects the listing order by creation time.
type Order int

const (
	OrderNewest Order = iota
	OrderOldest
)

// ParseOrder maps "newest"/"desc" and "oldest"/"asc" to an Order.
// The empty string means OrderNewest.
func ParseOrder(s string) (Order, error) {
	switch strings.ToLower(s) {
	case "", "newest", "desc":
		return OrderNewest, nil
	case "oldest", "asc":
		return OrderOldest, nil
	default:
		return OrderNewest, fmt.Errorf("unknown order %q", s)
	}
}

func (o Order) String() string {
	if o == OrderOldest {
		return "oldest"
	}
	return "newest"
}

// ListOptions bounds and orders a listing. Limit <= 0 means no limit.
type ListOptions struct {
	Limit int
	Order Order
}

// Hit is a single index match.
type Hit struct {
	ID    string
	Score float64
}

// SearchResult pairs a hydrated record with its similarity score.
type SearchResult struct {
	Record *Record `json:"record"`
	Score  float64 `json:"score"`
}
