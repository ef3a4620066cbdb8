package domain

import "time"

// GenomicCall is one variant observation produced by the upstream VCF
// parser. Calls are immutable and scoped to a single analysis request.
type GenomicCall struct {
	Gene            string   `json:"gene" binding:"required"`
	RSID            string   `json:"rsid,omitempty"`
	Position        string   `json:"position"`
	ReferenceAllele string   `json:"reference_allele"`
	ObservedAlleles []string `json:"observed_alleles"`
}

// AnalysisRequest is the inbound contract consumed from the web
// frontend. An empty drug list selects the default panel.
type AnalysisRequest struct {
	VariantCalls []GenomicCall `json:"variant_calls"`
	Drugs        []string      `json:"drugs"`
}

// DetectedVariant describes one matched variant within a gene profile.
type DetectedVariant struct {
	RSID                 string   `json:"rsid"`
	Gene                 string   `json:"gene"`
	Position             string   `json:"position,omitempty"`
	ReferenceAllele      string   `json:"ref,omitempty"`
	ObservedAlleles      []string `json:"alt,omitempty"`
	Zygosity             string   `json:"zygosity"`
	ClinicalSignificance string   `json:"clinical_significance,omitempty"`
}

// PharmacogenomicProfile is the resolved genomic context for one drug.
type PharmacogenomicProfile struct {
	PrimaryGene      string            `json:"primary_gene"`
	Diplotype        Diplotype         `json:"diplotype"`
	Phenotype        Phenotype         `json:"phenotype"`
	DetectedVariants []DetectedVariant `json:"detected_variants"`
}

// RiskAssessment is the deterministic output of the rules engine for
// one (drug, gene) pair. Identical inputs always produce identical
// assessments; downstream explanation text annotates but never
// supersedes it.
type RiskAssessment struct {
	Severity        Severity `json:"severity"`
	RiskLabel       string   `json:"risk_label"`
	ConfidenceScore float64  `json:"confidence_score"`
	RuleVersion     string   `json:"rule_version,omitempty"`
}

// ClinicalRecommendation carries the actionable guidance attached to a
// rule match.
type ClinicalRecommendation struct {
	Action               string   `json:"action"`
	GuidelineSource      string   `json:"guideline_source"`
	GuidelineVersion     string   `json:"guideline_version,omitempty"`
	DosingRecommendation string   `json:"dosing_recommendation,omitempty"`
	AlternativeDrugs     []string `json:"alternative_drugs,omitempty"`
}

// EvidencePassage is one retrieved guideline chunk with provenance.
// Passage text is never fabricated; it comes verbatim from the index.
type EvidencePassage struct {
	ID     string  `json:"id"`
	Text   string  `json:"text"`
	Score  float64 `json:"score"`
	Source string  `json:"source"`
	Drug   string  `json:"drug,omitempty"`
	Gene   string  `json:"gene,omitempty"`
}

// Explanation is a grounded, plain-language account of the risk
// mechanism. Absent entirely when the provider cascade is exhausted.
type Explanation struct {
	Summary   string   `json:"summary"`
	Citations []string `json:"citations"`
	RAGSource string   `json:"rag_source"`
	ModelUsed string   `json:"model_used"`
}

// PerDrugResult is one entry of the final report. The risk assessment
// is always present for drugs whose gene resolved; the explanation is
// best effort and its absence is explicit.
type PerDrugResult struct {
	Drug              string                  `json:"drug"`
	Profile           *PharmacogenomicProfile `json:"pharmacogenomic_profile,omitempty"`
	RiskAssessment    RiskAssessment          `json:"risk_assessment"`
	Recommendation    *ClinicalRecommendation `json:"clinical_recommendation,omitempty"`
	Explanation       *Explanation            `json:"llm_generated_explanation,omitempty"`
	ExplanationStatus string                  `json:"explanation_status,omitempty"`
}

// Performance summarizes request-level timing for the caller.
type Performance struct {
	TotalSeconds  float64 `json:"total_seconds"`
	DrugsAnalyzed int     `json:"drugs_analyzed"`
	ParallelTasks int     `json:"parallel_tasks"`
}

// AnalysisReport is the top-level aggregate, assembled once per request
// and immutable once returned. Result order matches the caller's drug
// order regardless of branch completion order.
type AnalysisReport struct {
	RequestID   string          `json:"request_id"`
	Timestamp   time.Time       `json:"timestamp"`
	Results     []PerDrugResult `json:"results"`
	Performance Performance     `json:"performance"`
}

// ExplanationRequest is the input to the explanation generator: the
// deterministic risk context plus the retrieved passages it must be
// grounded in.
type ExplanationRequest struct {
	Drug      string
	Gene      string
	Diplotype Diplotype
	Phenotype Phenotype
	RiskLabel string
	Severity  Severity
	Passages  []EvidencePassage
}
