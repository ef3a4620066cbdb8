package service

import (
	"github.com/sirupsen/logrus"

	"github.com/niramay/risk-engine/internal/domain"
	"github.com/niramay/risk-engine/internal/reference"
)

// PhenotypeMapper derives metabolizer phenotypes from diplotypes via
// the versioned assignment table. Pure lookup: missing entries map to
// Unknown so the pipeline can report insufficient information instead
// of failing the request.
type PhenotypeMapper struct {
	logger *logrus.Logger
	tables *reference.Tables
}

// NewPhenotypeMapper creates a phenotype mapper over the loaded tables.
func NewPhenotypeMapper(logger *logrus.Logger, tables *reference.Tables) *PhenotypeMapper {
	return &PhenotypeMapper{logger: logger, tables: tables}
}

// Map returns the phenotype for a (gene, diplotype) pair, or Unknown.
func (m *PhenotypeMapper) Map(gene string, diplotype domain.Diplotype) domain.Phenotype {
	phenotype := m.tables.PhenotypeFor(gene, diplotype)
	if phenotype == domain.PhenotypeUnknown {
		m.logger.WithFields(logrus.Fields{
			"gene":      gene,
			"diplotype": diplotype,
		}).Debug("No phenotype assignment for diplotype")
	}
	return phenotype
}

// MapAll maps every resolved gene to its phenotype.
func (m *PhenotypeMapper) MapAll(resolutions map[string]GeneResolution) map[string]domain.Phenotype {
	phenotypes := make(map[string]domain.Phenotype, len(resolutions))
	for gene, res := range resolutions {
		phenotypes[gene] = m.Map(gene, res.Diplotype)
	}
	return phenotypes
}
