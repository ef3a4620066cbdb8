package service

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/niramay/risk-engine/internal/domain"
	"github.com/niramay/risk-engine/internal/reference"
)

// Risk labels emitted outside exact rule matches.
const (
	RiskLabelUnknown    = "Unknown"
	RiskLabelNoGuidance = "No pharmacogenomic guidance available"
)

// RulesEngine is the deterministic, auditable safety core. It resolves
// (drug, gene, phenotype) triples against the static rule table and is
// strictly side-effect free: it never consults the generative layer,
// and its output cannot be overridden downstream. Identical inputs
// against an unchanged table always produce identical output.
type RulesEngine struct {
	logger *logrus.Logger
	tables *reference.Tables
}

// NewRulesEngine creates a rules engine over the loaded tables.
func NewRulesEngine(logger *logrus.Logger, tables *reference.Tables) *RulesEngine {
	return &RulesEngine{logger: logger, tables: tables}
}

// Evaluate resolves the risk for one (drug, gene, phenotype) triple.
//
// Matching order:
//  1. exact (drug, gene, phenotype) rule;
//  2. conservative fallback for phenotypes absent from the table:
//     severity is the maximum across the pair's known phenotypes, so
//     an unknown genotype is never reported as safer than a known one;
//  3. no rule for the pair at all: explicit "no guidance" result with
//     zero confidence, never silence and never an error.
func (e *RulesEngine) Evaluate(drug, gene string, phenotype domain.Phenotype) (domain.RiskAssessment, *domain.ClinicalRecommendation) {
	if rule := e.tables.LookupRule(drug, gene, phenotype); rule != nil {
		confidence := domain.ConfidenceExactMatch
		if phenotype.IsNormal() {
			confidence = domain.ConfidenceWildType
		}
		assessment := domain.RiskAssessment{
			Severity:        rule.Severity,
			RiskLabel:       rule.RiskLabel,
			ConfidenceScore: confidence,
			RuleVersion:     e.tables.Rules.Version,
		}
		recommendation := &domain.ClinicalRecommendation{
			Action:               rule.Action,
			GuidelineSource:      rule.GuidelineSource,
			GuidelineVersion:     rule.GuidelineVersion,
			DosingRecommendation: rule.DosingRecommendation,
			AlternativeDrugs:     rule.AlternativeDrugs,
		}
		return assessment, recommendation
	}

	if maxSeverity, ok := e.tables.MaxKnownSeverity(drug, gene); ok {
		e.logger.WithFields(logrus.Fields{
			"drug":      drug,
			"gene":      gene,
			"phenotype": phenotype,
			"severity":  maxSeverity.String(),
		}).Info("No rule for phenotype, applying conservative fallback")

		assessment := domain.RiskAssessment{
			Severity:        maxSeverity,
			RiskLabel:       RiskLabelUnknown,
			ConfidenceScore: domain.ConfidenceConservative,
			RuleVersion:     e.tables.Rules.Version,
		}
		recommendation := &domain.ClinicalRecommendation{
			Action: fmt.Sprintf(
				"Insufficient genotype information for %s. Pharmacogenomic risk for %s cannot be excluded; consult CPIC guidelines before prescribing.",
				gene, drug),
			GuidelineSource:  "CPIC",
			GuidelineVersion: e.tables.Rules.Version,
		}
		return assessment, recommendation
	}

	return domain.RiskAssessment{
		Severity:        domain.SeverityNone,
		RiskLabel:       RiskLabelNoGuidance,
		ConfidenceScore: domain.ConfidenceNoGuidance,
		RuleVersion:     e.tables.Rules.Version,
	}, nil
}
