package recognition

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Candidate is a stored identity eligible for matching.
type Candidate struct {
	UserID    uuid.UUID
	Name      string
	Embedding []float32
}

// CandidateSource supplies all stored identities in registration order.
// Registration order matters: equal scores resolve to the earliest entry.
type CandidateSource interface {
	Candidates(ctx context.Context) ([]Candidate, error)
}

// Match is the best-scoring identity for a query embedding.
type Match struct {
	UserID uuid.UUID
	Name   string
	Score  float64
}

// Resolver performs a full linear scan over the candidate set. Dataset
// sizes are assumed small; no index is maintained.
type Resolver struct {
	source CandidateSource
}

func NewResolver(source CandidateSource) *Resolver {
	return &Resolver{source: source}
}

// Resolve returns the candidate with the maximal cosine similarity to the
// query. Ties resolve to the first-encountered candidate (strict > update).
// Returns ErrNoCandidates on an empty store, and a hard error if any stored
// embedding does not match the query's length.
func (r *Resolver) Resolve(ctx context.Context, query []float32) (*Match, error) {
	candidates, err := r.source.Candidates(ctx)
	if err != nil {
		return nil, fmt.Errorf("load candidates: %w", err)
	}
	if len(candidates) == 0 {
		return nil, ErrNoCandidates
	}

	best := Match{Score: -1}
	found := false
	for _, c := range candidates {
		score, err := CosineSimilarity(query, c.Embedding)
		if err != nil {
			return nil, fmt.Errorf("score user %s: %w", c.UserID, err)
		}
		if !found || score > best.Score {
			best = Match{UserID: c.UserID, Name: c.Name, Score: score}
			found = true
		}
	}

	return &best, nil
}
