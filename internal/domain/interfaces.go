package domain

import "context"

// EvidenceRetriever fetches guideline passages relevant to a
// gene-drug-phenotype triple from a semantic index. Implementations
// return passages in descending relevance order, possibly empty, and
// never fabricate passage text. A retrieval failure is local to the
// calling branch and must not block the deterministic risk path.
type EvidenceRetriever interface {
	Retrieve(ctx context.Context, drug, gene string, phenotype Phenotype) ([]EvidencePassage, error)
}

// ExplanationGenerator produces a plain-language explanation grounded
// strictly in the supplied passages, walking a fixed provider cascade
// on failure. Exhausting the cascade returns a DegradedGenerationError.
type ExplanationGenerator interface {
	Generate(ctx context.Context, req *ExplanationRequest) (*Explanation, error)
}
