package service

import (
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/niramay/risk-engine/internal/domain"
	"github.com/niramay/risk-engine/internal/reference"
)

// Normalizer turns raw per-gene genotype calls into canonical
// diplotype labels using the static allele-definition table. It is a
// pure function of its input calls and the table: no side effects, no
// shared mutable state.
type Normalizer struct {
	logger *logrus.Logger
	tables *reference.Tables
}

// GeneResolution is the normalizer's output for one gene: the resolved
// diplotype plus the variant observations that produced it.
type GeneResolution struct {
	Gene      string
	Diplotype domain.Diplotype
	Variants  []domain.DetectedVariant
}

// NewNormalizer creates a variant normalizer over the loaded tables.
func NewNormalizer(logger *logrus.Logger, tables *reference.Tables) *Normalizer {
	return &Normalizer{logger: logger, tables: tables}
}

// matchedAllele tracks one allele definition observed in the call set.
type matchedAllele struct {
	def      reference.AlleleDefinition
	copies   int
	call     domain.GenomicCall
	conflict bool
}

// Resolve maps every gene in the allele table to exactly one
// diplotype. Genes with no calls resolve to Indeterminate; genes whose
// calls carry none of the known variant alleles resolve to wild-type.
// Conflicting or unresolvable combinations resolve to Indeterminate
// rather than failing: partial genomic coverage is expected.
func (n *Normalizer) Resolve(calls []domain.GenomicCall) map[string]GeneResolution {
	byGene := make(map[string][]domain.GenomicCall)
	for _, call := range calls {
		gene := strings.ToUpper(strings.TrimSpace(call.Gene))
		byGene[gene] = append(byGene[gene], call)
	}

	resolutions := make(map[string]GeneResolution)
	for _, gene := range n.tables.Genes() {
		res := n.resolveGene(gene, byGene[gene])
		resolutions[gene] = res

		n.logger.WithFields(logrus.Fields{
			"gene":      gene,
			"calls":     len(byGene[gene]),
			"diplotype": res.Diplotype,
		}).Debug("Resolved gene diplotype")
	}
	return resolutions
}

func (n *Normalizer) resolveGene(gene string, calls []domain.GenomicCall) GeneResolution {
	if len(calls) == 0 {
		return GeneResolution{Gene: gene, Diplotype: domain.DiplotypeIndeterminate}
	}

	matched := n.matchAlleles(gene, calls)

	conflicted := false
	totalCopies := 0
	for _, m := range matched {
		if m.conflict {
			conflicted = true
		}
		totalCopies += m.copies
	}
	if conflicted {
		return GeneResolution{Gene: gene, Diplotype: domain.DiplotypeIndeterminate}
	}

	wild := n.tables.Alleles.WildType
	switch {
	case len(matched) == 0:
		// Calls present but no known variant allele observed.
		return GeneResolution{Gene: gene, Diplotype: domain.Diplotype(wild + "/" + wild)}

	case len(matched) == 1:
		m := matched[0]
		star := m.def.StarAllele
		d := wild + "/" + star
		if m.copies >= 2 {
			d = star + "/" + star
		}
		return GeneResolution{Gene: gene, Diplotype: domain.Diplotype(d), Variants: detectedVariants(matched)}

	case len(matched) == 2 && totalCopies == 2:
		// Compound heterozygote: one copy of each variant allele.
		stars := []string{matched[0].def.StarAllele, matched[1].def.StarAllele}
		sort.Strings(stars)
		return GeneResolution{Gene: gene, Diplotype: domain.Diplotype(stars[0] + "/" + stars[1]), Variants: detectedVariants(matched)}

	default:
		// Over-constrained call set. The highest-evidence definition
		// wins only when it strictly dominates; otherwise report
		// Indeterminate instead of guessing.
		if best := dominantAllele(matched); best != nil {
			star := best.def.StarAllele
			d := wild + "/" + star
			if best.copies >= 2 {
				d = star + "/" + star
			}
			return GeneResolution{Gene: gene, Diplotype: domain.Diplotype(d), Variants: detectedVariants([]matchedAllele{*best})}
		}
		return GeneResolution{Gene: gene, Diplotype: domain.DiplotypeIndeterminate, Variants: detectedVariants(matched)}
	}
}

// matchAlleles resolves calls against the gene's known allele
// definitions. A call matches by rsID when present, by position
// otherwise. Copies are derived from the observed alleles; a call with
// no observed-allele detail counts as homozygous for the variant,
// matching the upstream parser's bare-rsID output.
func (n *Normalizer) matchAlleles(gene string, calls []domain.GenomicCall) []matchedAllele {
	defs := n.tables.AllelesFor(gene)
	byStar := make(map[string]*matchedAllele)

	for _, call := range calls {
		for _, def := range defs {
			if !callMatches(call, def) {
				continue
			}
			copies := variantCopies(call, def)
			if copies == 0 {
				continue
			}
			if existing, ok := byStar[def.StarAllele]; ok {
				if existing.copies != copies {
					existing.conflict = true
				}
				continue
			}
			byStar[def.StarAllele] = &matchedAllele{def: def, copies: copies, call: call}
		}
	}

	matched := make([]matchedAllele, 0, len(byStar))
	for _, m := range byStar {
		matched = append(matched, *m)
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].def.EvidenceRank != matched[j].def.EvidenceRank {
			return matched[i].def.EvidenceRank > matched[j].def.EvidenceRank
		}
		return matched[i].def.StarAllele < matched[j].def.StarAllele
	})
	return matched
}

func callMatches(call domain.GenomicCall, def reference.AlleleDefinition) bool {
	if call.RSID != "" {
		return strings.EqualFold(call.RSID, def.RSID)
	}
	return call.Position != "" && call.Position == def.Position
}

func variantCopies(call domain.GenomicCall, def reference.AlleleDefinition) int {
	if len(call.ObservedAlleles) == 0 {
		return 2
	}
	copies := 0
	for _, allele := range call.ObservedAlleles {
		if strings.EqualFold(allele, def.AltAllele) {
			copies++
		}
	}
	if copies > 2 {
		copies = 2
	}
	return copies
}

// dominantAllele returns the matched allele with a strictly higher
// evidence rank than every other, or nil when no single definition
// dominates.
func dominantAllele(matched []matchedAllele) *matchedAllele {
	if len(matched) < 2 {
		return nil
	}
	// matched is sorted by evidence rank descending.
	if matched[0].def.EvidenceRank > matched[1].def.EvidenceRank {
		return &matched[0]
	}
	return nil
}

func detectedVariants(matched []matchedAllele) []domain.DetectedVariant {
	variants := make([]domain.DetectedVariant, 0, len(matched))
	for _, m := range matched {
		zygosity := "heterozygous"
		if m.copies >= 2 {
			zygosity = "homozygous"
		}
		position := m.call.Position
		if position == "" {
			position = m.def.Position
		}
		variants = append(variants, domain.DetectedVariant{
			RSID:            m.def.RSID,
			Gene:            strings.ToUpper(m.call.Gene),
			Position:        position,
			ReferenceAllele: m.def.ReferenceAllele,
			ObservedAlleles: m.call.ObservedAlleles,
			Zygosity:        zygosity,
		})
	}
	return variants
}
