package embed

import "context"

// None produces no vectors. It pairs with a text-ranked index such as the
// keyword index, where records are stored without embeddings.
type None struct{}

func (None) Embed(context.Context, string) ([]float32, error) { return nil, nil }
func (None) Model() string                                    { return "none" }
func (None) Dimensions() int                                  { return 0 }
