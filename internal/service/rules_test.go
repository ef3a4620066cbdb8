package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/niramay/risk-engine/internal/domain"
)

func TestRulesEngine_ExactMatch(t *testing.T) {
	e := NewRulesEngine(testLogger(), testTables(t))

	assessment, recommendation := e.Evaluate("CLOPIDOGREL", "CYP2C19", domain.PhenotypePoorMetabolizer)

	assert.Equal(t, domain.SeverityCritical, assessment.Severity)
	assert.Equal(t, "Ineffective", assessment.RiskLabel)
	assert.Equal(t, domain.ConfidenceExactMatch, assessment.ConfidenceScore)
	assert.NotEmpty(t, assessment.RuleVersion)

	require.NotNil(t, recommendation)
	assert.Contains(t, recommendation.Action, "Avoid clopidogrel")
	assert.Equal(t, "CPIC", recommendation.GuidelineSource)
	assert.Contains(t, recommendation.AlternativeDrugs, "Prasugrel")
}

func TestRulesEngine_WildTypeConfidence(t *testing.T) {
	e := NewRulesEngine(testLogger(), testTables(t))

	assessment, recommendation := e.Evaluate("WARFARIN", "CYP2C9", domain.PhenotypeNormalMetabolizer)

	assert.Equal(t, domain.SeverityNone, assessment.Severity)
	assert.Equal(t, "Safe", assessment.RiskLabel)
	assert.Equal(t, domain.ConfidenceWildType, assessment.ConfidenceScore)
	require.NotNil(t, recommendation)
}

func TestRulesEngine_CodeinePoorMetabolizerIsIneffective(t *testing.T) {
	e := NewRulesEngine(testLogger(), testTables(t))

	// Poor metabolizers cannot activate codeine: the risk is lack of
	// efficacy, not toxicity.
	assessment, _ := e.Evaluate("CODEINE", "CYP2D6", domain.PhenotypePoorMetabolizer)

	assert.Equal(t, domain.SeverityHigh, assessment.Severity)
	assert.Equal(t, "Ineffective", assessment.RiskLabel)
}

func TestRulesEngine_CodeineUltrarapidIsToxic(t *testing.T) {
	e := NewRulesEngine(testLogger(), testTables(t))

	assessment, _ := e.Evaluate("CODEINE", "CYP2D6", domain.PhenotypeUltrarapidMetabolizer)

	assert.Equal(t, domain.SeverityCritical, assessment.Severity)
	assert.Equal(t, "Toxic", assessment.RiskLabel)
}

func TestRulesEngine_ConservativeFallback(t *testing.T) {
	e := NewRulesEngine(testLogger(), testTables(t))

	assessment, recommendation := e.Evaluate("FLUOROURACIL", "DPYD", domain.PhenotypeUnknown)

	// An unknown phenotype is never reported safer than the worst known
	// phenotype for the pair.
	assert.Equal(t, domain.SeverityCritical, assessment.Severity)
	assert.Equal(t, RiskLabelUnknown, assessment.RiskLabel)
	assert.Equal(t, domain.ConfidenceConservative, assessment.ConfidenceScore)

	require.NotNil(t, recommendation)
	assert.Contains(t, recommendation.Action, "Insufficient genotype information")
}

func TestRulesEngine_FallbackNeverBelowKnownSeverity(t *testing.T) {
	e := NewRulesEngine(testLogger(), testTables(t))

	pairs := []struct {
		drug string
		gene string
	}{
		{"SIMVASTATIN", "SLCO1B1"},
		{"WARFARIN", "CYP2C9"},
		{"CLOPIDOGREL", "CYP2C19"},
		{"AZATHIOPRINE", "TPMT"},
		{"FLUOROURACIL", "DPYD"},
		{"CODEINE", "CYP2D6"},
	}

	for _, p := range pairs {
		fallback, _ := e.Evaluate(p.drug, p.gene, domain.PhenotypeUnknown)
		for _, known := range []domain.Phenotype{
			domain.PhenotypePoorMetabolizer, domain.PhenotypeIntermediateMetabolizer,
			domain.PhenotypeNormalMetabolizer, domain.PhenotypeUltrarapidMetabolizer,
			domain.PhenotypePoorFunction, domain.PhenotypeDecreasedFunction,
			domain.PhenotypeNormalFunction,
		} {
			if assessment, _ := e.Evaluate(p.drug, p.gene, known); assessment.RiskLabel != RiskLabelUnknown {
				assert.GreaterOrEqual(t, int(fallback.Severity), int(assessment.Severity),
					"%s/%s fallback below known severity for %s", p.drug, p.gene, known)
			}
		}
	}
}

func TestRulesEngine_UnknownDrugGetsNoGuidance(t *testing.T) {
	e := NewRulesEngine(testLogger(), testTables(t))

	assessment, recommendation := e.Evaluate("ASPIRIN", "CYP2C9", domain.PhenotypeNormalMetabolizer)

	assert.Equal(t, domain.SeverityNone, assessment.Severity)
	assert.Equal(t, RiskLabelNoGuidance, assessment.RiskLabel)
	assert.Equal(t, domain.ConfidenceNoGuidance, assessment.ConfidenceScore)
	assert.Nil(t, recommendation)
}

func TestRulesEngine_Deterministic(t *testing.T) {
	e := NewRulesEngine(testLogger(), testTables(t))

	first, firstRec := e.Evaluate("AZATHIOPRINE", "TPMT", domain.PhenotypeIntermediateMetabolizer)
	for i := 0; i < 50; i++ {
		assessment, recommendation := e.Evaluate("AZATHIOPRINE", "TPMT", domain.PhenotypeIntermediateMetabolizer)
		assert.Equal(t, first, assessment)
		assert.Equal(t, firstRec, recommendation)
	}
}
