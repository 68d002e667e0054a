package domain

import "fmt"

// EmbeddingTargetKind names the catalog table an embedding belongs to.
type EmbeddingTargetKind string

const (
	EmbeddingTargetFamily  EmbeddingTargetKind = "family"
	EmbeddingTargetProduct EmbeddingTargetKind = "product"
)

// EmbeddingTargetKinds lists the kinds in backfill order. Families come
// first because family-first search depends on them.
var EmbeddingTargetKinds = []EmbeddingTargetKind{EmbeddingTargetFamily, EmbeddingTargetProduct}

// EmbeddingTarget is a catalog row still missing its embedding. ID is the
// family label or the product id.
type EmbeddingTarget struct {
	Kind EmbeddingTargetKind
	ID   string
	Text string
}

// ValidateEmbeddingTarget validates an EmbeddingTarget instance
func ValidateEmbeddingTarget(t EmbeddingTarget) error {
	switch t.Kind {
	case EmbeddingTargetFamily, EmbeddingTargetProduct:
	default:
		return fmt.Errorf("embedding target Kind is invalid: %q", t.Kind)
	}

	if t.ID == "" {
		return fmt.Errorf("embedding target ID is required")
	}

	if t.Text == "" {
		return fmt.Errorf("embedding target %s has no text to embed", t.ID)
	}

	return nil
}
