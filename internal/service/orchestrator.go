package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/niramay/risk-engine/internal/audit"
	"github.com/niramay/risk-engine/internal/domain"
	"github.com/niramay/risk-engine/internal/metrics"
	"github.com/niramay/risk-engine/internal/reference"
)

// Orchestrator drives the per-request pipeline: normalize calls, map
// phenotypes, evaluate the deterministic rules fast path for every drug
// in order, then fan out the best-effort retrieval and generation slow
// path. A slow-path failure degrades one drug's explanation; it never
// alters or delays the risk assessments.
type Orchestrator struct {
	logger     *logrus.Logger
	tables     *reference.Tables
	normalizer *Normalizer
	phenotypes *PhenotypeMapper
	rules      *RulesEngine
	retriever  domain.EvidenceRetriever
	generator  domain.ExplanationGenerator
	auditStore audit.Store
	config     domain.PipelineConfig
}

// NewOrchestrator wires the pipeline stages. retriever, generator and
// auditStore may each be nil: the fast path runs regardless.
func NewOrchestrator(
	logger *logrus.Logger,
	tables *reference.Tables,
	retriever domain.EvidenceRetriever,
	generator domain.ExplanationGenerator,
	auditStore audit.Store,
	config domain.PipelineConfig,
) *Orchestrator {
	return &Orchestrator{
		logger:     logger,
		tables:     tables,
		normalizer: NewNormalizer(logger, tables),
		phenotypes: NewPhenotypeMapper(logger, tables),
		rules:      NewRulesEngine(logger, tables),
		retriever:  retriever,
		generator:  generator,
		auditStore: auditStore,
		config:     config,
	}
}

// Analyze runs one request through the full pipeline and assembles the
// report. Result order always matches the requested drug order, no
// matter which slow-path branches finish first.
func (o *Orchestrator) Analyze(ctx context.Context, requestID string, req *domain.AnalysisRequest) (*domain.AnalysisReport, error) {
	start := time.Now()

	if o.config.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.config.RequestTimeout)
		defer cancel()
	}

	log := o.logger.WithFields(logrus.Fields{"request_id": requestID})
	log.WithField("state", domain.StateReceived).Info("Analysis request received")

	if len(req.VariantCalls) == 0 {
		metrics.AnalysisRequests.WithLabelValues(string(domain.StateFailed)).Inc()
		return nil, domain.NewFatalInputError("variant call set is empty")
	}

	drugs := o.resolveDrugPanel(req.Drugs)
	if len(drugs) == 0 {
		metrics.AnalysisRequests.WithLabelValues(string(domain.StateFailed)).Inc()
		return nil, domain.NewFatalInputError("no requested drug is recognized")
	}
	if !o.anyDrugResolvable(drugs) {
		metrics.AnalysisRequests.WithLabelValues(string(domain.StateFailed)).Inc()
		return nil, domain.NewFatalInputError("no requested drug resolves to a known gene")
	}

	log.WithFields(logrus.Fields{
		"state": domain.StateNormalizing,
		"calls": len(req.VariantCalls),
		"drugs": len(drugs),
	}).Info("Normalizing variant calls")

	resolutions := o.normalizer.Resolve(req.VariantCalls)
	phenotypes := o.phenotypes.MapAll(resolutions)

	log.WithField("state", domain.StateRiskEvaluating).Info("Evaluating risk rules")

	results := make([]domain.PerDrugResult, len(drugs))
	for i, drug := range drugs {
		results[i] = o.evaluateFastPath(requestID, drug, resolutions, phenotypes)
	}

	log.WithField("state", domain.StateEvidenceGathering).Info("Gathering evidence and generating explanations")
	parallel := o.runSlowPath(ctx, requestID, drugs, results)

	log.WithField("state", domain.StateCompiling).Info("Compiling analysis report")

	elapsed := time.Since(start)
	report := &domain.AnalysisReport{
		RequestID: requestID,
		Timestamp: time.Now().UTC(),
		Results:   results,
		Performance: domain.Performance{
			TotalSeconds:  elapsed.Seconds(),
			DrugsAnalyzed: len(drugs),
			ParallelTasks: parallel,
		},
	}

	metrics.AnalysisRequests.WithLabelValues(string(domain.StateDone)).Inc()
	metrics.AnalysisDuration.Observe(elapsed.Seconds())
	log.WithFields(logrus.Fields{
		"state":         domain.StateDone,
		"drugs":         len(drugs),
		"total_seconds": elapsed.Seconds(),
	}).Info("Analysis complete")

	return report, nil
}

// resolveDrugPanel canonicalizes the requested drug list, substituting
// the default panel when the request names none. Order is preserved and
// duplicates collapse to their first occurrence.
func (o *Orchestrator) resolveDrugPanel(requested []string) []string {
	source := requested
	if len(source) == 0 {
		source = o.config.DefaultPanel
	}

	seen := make(map[string]bool, len(source))
	drugs := make([]string, 0, len(source))
	for _, d := range source {
		drug := strings.ToUpper(strings.TrimSpace(d))
		if drug == "" || seen[drug] {
			continue
		}
		seen[drug] = true
		drugs = append(drugs, drug)
	}
	return drugs
}

func (o *Orchestrator) anyDrugResolvable(drugs []string) bool {
	for _, drug := range drugs {
		if o.tables.PrimaryGene(drug) != "" {
			return true
		}
	}
	return false
}

// evaluateFastPath produces the deterministic portion of one drug's
// result and queues its audit record.
func (o *Orchestrator) evaluateFastPath(requestID, drug string, resolutions map[string]GeneResolution, phenotypes map[string]domain.Phenotype) domain.PerDrugResult {
	result := domain.PerDrugResult{
		Drug:              drug,
		ExplanationStatus: domain.ExplanationNotAttempted,
	}

	gene := o.tables.PrimaryGene(drug)
	if gene == "" {
		assessment, _ := o.rules.Evaluate(drug, "", domain.PhenotypeUnknown)
		result.RiskAssessment = assessment
		return result
	}

	resolution := resolutions[gene]
	phenotype := phenotypes[gene]
	result.Profile = &domain.PharmacogenomicProfile{
		PrimaryGene:      gene,
		Diplotype:        resolution.Diplotype,
		Phenotype:        phenotype,
		DetectedVariants: resolution.Variants,
	}

	assessment, recommendation := o.rules.Evaluate(drug, gene, phenotype)
	result.RiskAssessment = assessment
	result.Recommendation = recommendation

	o.writeAudit(requestID, drug, gene, resolution.Diplotype, phenotype, assessment)
	return result
}

// runSlowPath fans the retrieval and generation branch out per eligible
// drug. Each goroutine owns exactly one element of results, so no
// locking is needed and completion order cannot reorder the report.
func (o *Orchestrator) runSlowPath(ctx context.Context, requestID string, drugs []string, results []domain.PerDrugResult) int {
	if o.generator == nil {
		for i := range results {
			metrics.Explanations.WithLabelValues("skipped").Inc()
			results[i].ExplanationStatus = domain.ExplanationNotAttempted
		}
		return 0
	}

	var wg sync.WaitGroup
	parallel := 0
	for i := range results {
		if results[i].Profile == nil || results[i].Profile.Phenotype == domain.PhenotypeUnknown {
			metrics.Explanations.WithLabelValues("skipped").Inc()
			continue
		}

		parallel++
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			o.explainDrug(ctx, requestID, &results[i])
		}(i)
	}
	wg.Wait()
	return parallel
}

// explainDrug runs one drug's retrieval and generation under the
// per-drug timeout. A retrieval failure omits the explanation outright:
// an ungrounded explanation is worse than none. An empty but successful
// retrieval still generates, against the no-context fallback. Either
// way the deterministic fields are left untouched.
func (o *Orchestrator) explainDrug(ctx context.Context, requestID string, result *domain.PerDrugResult) {
	if o.config.DrugTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.config.DrugTimeout)
		defer cancel()
	}

	log := o.logger.WithFields(logrus.Fields{
		"request_id": requestID,
		"drug":       result.Drug,
	})

	var passages []domain.EvidencePassage
	if o.retriever != nil {
		retrieved, err := o.retriever.Retrieve(ctx, result.Drug, result.Profile.PrimaryGene, result.Profile.Phenotype)
		if err != nil {
			metrics.Explanations.WithLabelValues("degraded").Inc()
			log.WithError(err).Warn("Evidence retrieval degraded, omitting explanation")
			result.Explanation = nil
			result.ExplanationStatus = domain.ExplanationUnavailable
			return
		}
		passages = retrieved
	}

	explanation, err := o.generator.Generate(ctx, &domain.ExplanationRequest{
		Drug:      result.Drug,
		Gene:      result.Profile.PrimaryGene,
		Diplotype: result.Profile.Diplotype,
		Phenotype: result.Profile.Phenotype,
		RiskLabel: result.RiskAssessment.RiskLabel,
		Severity:  result.RiskAssessment.Severity,
		Passages:  passages,
	})
	if err != nil {
		metrics.Explanations.WithLabelValues("degraded").Inc()
		log.WithError(err).Warn("Explanation generation degraded")
		result.Explanation = nil
		result.ExplanationStatus = domain.ExplanationUnavailable
		return
	}

	metrics.Explanations.WithLabelValues("generated").Inc()
	result.Explanation = explanation
	result.ExplanationStatus = ""
}

// writeAudit persists one rule evaluation off the request path. Audit
// failures are logged, never surfaced to the caller.
func (o *Orchestrator) writeAudit(requestID, drug, gene string, diplotype domain.Diplotype, phenotype domain.Phenotype, assessment domain.RiskAssessment) {
	if o.auditStore == nil {
		return
	}

	record := &audit.Record{
		RequestID:   requestID,
		Drug:        drug,
		Gene:        gene,
		Diplotype:   string(diplotype),
		Phenotype:   phenotype,
		Severity:    assessment.Severity.String(),
		RiskLabel:   assessment.RiskLabel,
		Confidence:  assessment.ConfidenceScore,
		RuleVersion: assessment.RuleVersion,
		CreatedAt:   time.Now().UTC(),
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := o.auditStore.Save(ctx, record); err != nil {
			o.logger.WithFields(logrus.Fields{
				"request_id": requestID,
				"drug":       drug,
			}).WithError(err).Warn("Failed to write audit record")
		}
	}()
}
