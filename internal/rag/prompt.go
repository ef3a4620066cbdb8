// Package rag implements grounded evidence retrieval and explanation
// generation. Retrieval queries a semantic guideline index; generation
// walks a fixed provider cascade and constrains every prompt to the
// retrieved passages, so explanations annotate a risk assessment but
// never invent clinical facts.
package rag

import (
	"fmt"
	"strings"

	"github.com/niramay/risk-engine/internal/domain"
)

// noContextFallback is inserted when retrieval produced no usable
// passages, so the prompt stays well-formed and the model cannot be
// tricked into citing an empty context block.
const noContextFallback = "No specific CPIC context found for %s. Consult official guidelines."

// BuildPrompt renders the constrained generation prompt for one drug.
// The rules pin the model to the retrieved context and forbid dosage
// advice; dosing lives exclusively in the deterministic recommendation.
func BuildPrompt(req *domain.ExplanationRequest) string {
	context := joinPassages(req.Passages)
	if context == "" {
		context = fmt.Sprintf(noContextFallback, req.Drug)
	}

	var b strings.Builder
	fmt.Fprintf(&b,
		"You are a clinical pharmacogenomics expert. Explain the biological mechanism of risk for a patient taking %s with a %s %s diplotype (%s).\n\n",
		req.Drug, req.Gene, req.Diplotype, req.Phenotype)
	b.WriteString("STRICT RULES:\n")
	fmt.Fprintf(&b, "1. ONLY use the provided clinical context: %q\n", context)
	b.WriteString("2. Explain WHY the genetic variant alters metabolism or transport.\n")
	fmt.Fprintf(&b, "3. Explicitly cite the patient's %s diplotype.\n", req.Diplotype)
	b.WriteString("4. DO NOT recommend a specific dosage.\n")
	b.WriteString("5. Keep the explanation to exactly 3 sentences.\n")
	return b.String()
}

// BuildQueryText renders the retrieval query for one (drug, phenotype)
// pair. Kept stable so cached embeddings stay valid across requests.
func BuildQueryText(drug string, phenotype domain.Phenotype) string {
	return fmt.Sprintf("%s %s pharmacogenomic mechanism biological pathway", drug, phenotype)
}

func joinPassages(passages []domain.EvidencePassage) string {
	if len(passages) == 0 {
		return ""
	}
	parts := make([]string, 0, len(passages))
	for _, p := range passages {
		if strings.TrimSpace(p.Text) == "" {
			continue
		}
		parts = append(parts, strings.TrimSpace(p.Text))
	}
	return strings.Join(parts, "\n\n")
}
