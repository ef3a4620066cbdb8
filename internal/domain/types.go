package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Severity is the ordinal risk level attached to a drug-gene-phenotype
// combination. The ordering matters: conservative fallbacks must never
// report a severity below a known one for the same drug-gene pair.
type Severity int

const (
	SeverityNone Severity = iota
	SeverityLow
	SeverityModerate
	SeverityHigh
	SeverityCritical
)

// String returns the wire representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityNone:
		return "none"
	case SeverityLow:
		return "low"
	case SeverityModerate:
		return "moderate"
	case SeverityHigh:
		return "high"
	case SeverityCritical:
		return "critical"
	default:
		return "none"
	}
}

// MarshalJSON encodes the severity as its lowercase string form.
func (s Severity) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON decodes a severity from its string form.
func (s *Severity) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseSeverity(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseSeverity converts a string severity into its ordinal form.
func ParseSeverity(raw string) (Severity, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "none":
		return SeverityNone, nil
	case "low":
		return SeverityLow, nil
	case "moderate":
		return SeverityModerate, nil
	case "high":
		return SeverityHigh, nil
	case "critical":
		return SeverityCritical, nil
	default:
		return SeverityNone, fmt.Errorf("unknown severity: %q", raw)
	}
}

// Diplotype is the resolved pair of star-allele labels for a gene,
// e.g. "*1/*4". DiplotypeIndeterminate is the sentinel for call sets
// that could not be resolved; it is a reporting outcome, not an error.
type Diplotype string

const DiplotypeIndeterminate Diplotype = "Indeterminate"

// Phenotype is the categorical metabolizer (or transporter function)
// class derived from a diplotype. PhenotypeUnknown is returned for any
// diplotype absent from the assignment table.
type Phenotype string

const (
	PhenotypeUnknown Phenotype = "Unknown"

	PhenotypePoorMetabolizer         Phenotype = "Poor Metabolizer"
	PhenotypeIntermediateMetabolizer Phenotype = "Intermediate Metabolizer"
	PhenotypeNormalMetabolizer       Phenotype = "Normal Metabolizer"
	PhenotypeRapidMetabolizer        Phenotype = "Rapid Metabolizer"
	PhenotypeUltrarapidMetabolizer   Phenotype = "Ultrarapid Metabolizer"

	PhenotypePoorFunction      Phenotype = "Poor Function"
	PhenotypeDecreasedFunction Phenotype = "Decreased Function"
	PhenotypeNormalFunction    Phenotype = "Normal Function"
)

// IsNormal reports whether the phenotype is the unaffected wild-type
// class for its gene.
func (p Phenotype) IsNormal() bool {
	return p == PhenotypeNormalMetabolizer || p == PhenotypeNormalFunction
}

// RequestState tracks the per-request pipeline state machine.
type RequestState string

const (
	StateReceived          RequestState = "RECEIVED"
	StateNormalizing       RequestState = "NORMALIZING"
	StateRiskEvaluating    RequestState = "RISK_EVALUATING"
	StateEvidenceGathering RequestState = "EVIDENCE_GATHERING"
	StateExplaining        RequestState = "EXPLAINING"
	StateCompiling         RequestState = "COMPILING"
	StateDone              RequestState = "DONE"
	StateFailed            RequestState = "FAILED"
)

// Confidence constants for risk assessments. These are rule-provenance
// constants tied to match specificity, not statistical estimates.
const (
	ConfidenceExactMatch   = 0.98
	ConfidenceWildType     = 0.95
	ConfidenceConservative = 0.60
	ConfidenceNoGuidance   = 0.0
)

// Explanation status markers attached to per-drug results when no
// grounded explanation could be produced.
const (
	ExplanationUnavailable  = "unavailable"
	ExplanationNotAttempted = "not_attempted"
)
