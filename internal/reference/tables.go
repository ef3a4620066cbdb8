// Package reference loads the versioned allele, phenotype and
// drug-gene rule tables the deterministic risk path depends on.
// Tables are loaded once at startup and are read-only afterwards; a
// missing or malformed table is a ConfigurationFault and the process
// must refuse to start rather than serve partial rule data.
package reference

import (
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/niramay/risk-engine/internal/domain"
)

//go:embed data/*.json
var embeddedTables embed.FS

const (
	alleleFile    = "alleles.json"
	phenotypeFile = "phenotypes.json"
	ruleFile      = "rules.json"
)

// AlleleDefinition describes one known functional variant of a gene.
type AlleleDefinition struct {
	RSID            string `json:"rsid"`
	Position        string `json:"position"`
	StarAllele      string `json:"star_allele"`
	ReferenceAllele string `json:"reference_allele"`
	AltAllele       string `json:"alt_allele"`
	Function        string `json:"function"`
	EvidenceRank    int    `json:"evidence_rank"`
}

// AlleleTable is the population of star alleles per gene of interest.
type AlleleTable struct {
	Version  string                        `json:"version"`
	WildType string                        `json:"wild_type"`
	Genes    map[string][]AlleleDefinition `json:"genes"`
}

// PhenotypeTable assigns metabolizer phenotypes to diplotypes per gene.
type PhenotypeTable struct {
	Version     string                                 `json:"version"`
	Assignments map[string]map[string]domain.Phenotype `json:"assignments"`
}

// Rule is one static drug x gene x phenotype reference entry.
type Rule struct {
	Drug                 string           `json:"drug"`
	Gene                 string           `json:"gene"`
	Phenotype            domain.Phenotype `json:"phenotype"`
	Severity             domain.Severity  `json:"severity"`
	RiskLabel            string           `json:"risk_label"`
	Action               string           `json:"action"`
	DosingRecommendation string           `json:"dosing_recommendation"`
	AlternativeDrugs     []string         `json:"alternative_drugs"`
	GuidelineSource      string           `json:"guideline_source"`
	GuidelineVersion     string           `json:"guideline_version"`
}

// RuleTable is the versioned drug-gene rule set.
type RuleTable struct {
	Version string `json:"version"`
	Rules   []Rule `json:"rules"`
}

// Tables bundles the loaded reference data with lookup indexes.
// Shared process-wide; immutable after Load.
type Tables struct {
	Alleles    *AlleleTable
	Phenotypes *PhenotypeTable
	Rules      *RuleTable

	ruleIndex   map[string]*Rule
	primaryGene map[string]string
	maxSeverity map[string]domain.Severity
}

// Load reads the reference tables from dir, or from the embedded
// defaults when dir is empty. Any read or parse failure is returned as
// a ConfigurationFault.
func Load(dir string) (*Tables, error) {
	t := &Tables{}

	if err := loadJSON(dir, alleleFile, &t.Alleles); err != nil {
		return nil, domain.NewConfigurationFault("allele table", err)
	}
	if err := loadJSON(dir, phenotypeFile, &t.Phenotypes); err != nil {
		return nil, domain.NewConfigurationFault("phenotype table", err)
	}
	if err := loadJSON(dir, ruleFile, &t.Rules); err != nil {
		return nil, domain.NewConfigurationFault("rule table", err)
	}

	if err := t.validate(); err != nil {
		return nil, err
	}

	t.buildIndexes()
	return t, nil
}

func loadJSON(dir, name string, out interface{}) error {
	var (
		raw []byte
		err error
	)
	if dir == "" {
		raw, err = embeddedTables.ReadFile("data/" + name)
	} else {
		raw, err = os.ReadFile(filepath.Join(dir, name))
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", name, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to parse %s: %w", name, err)
	}
	return nil
}

func (t *Tables) validate() error {
	if t.Alleles.Version == "" || len(t.Alleles.Genes) == 0 {
		return domain.NewConfigurationFault("allele table", fmt.Errorf("missing version or gene definitions"))
	}
	if t.Alleles.WildType == "" {
		return domain.NewConfigurationFault("allele table", fmt.Errorf("missing wild-type allele label"))
	}
	if t.Phenotypes.Version == "" || len(t.Phenotypes.Assignments) == 0 {
		return domain.NewConfigurationFault("phenotype table", fmt.Errorf("missing version or assignments"))
	}
	if t.Rules.Version == "" || len(t.Rules.Rules) == 0 {
		return domain.NewConfigurationFault("rule table", fmt.Errorf("missing version or rules"))
	}
	for i, r := range t.Rules.Rules {
		if r.Drug == "" || r.Gene == "" || r.Phenotype == "" {
			return domain.NewConfigurationFault("rule table", fmt.Errorf("rule %d has empty drug, gene or phenotype", i))
		}
	}
	return nil
}

func (t *Tables) buildIndexes() {
	t.ruleIndex = make(map[string]*Rule, len(t.Rules.Rules))
	t.primaryGene = make(map[string]string)
	t.maxSeverity = make(map[string]domain.Severity)

	for i := range t.Rules.Rules {
		r := &t.Rules.Rules[i]
		drug := strings.ToUpper(r.Drug)
		t.ruleIndex[ruleKey(drug, r.Gene, r.Phenotype)] = r
		t.primaryGene[drug] = r.Gene

		pair := pairKey(drug, r.Gene)
		if cur, ok := t.maxSeverity[pair]; !ok || r.Severity > cur {
			t.maxSeverity[pair] = r.Severity
		}
	}
}

func ruleKey(drug, gene string, phenotype domain.Phenotype) string {
	return drug + "|" + gene + "|" + string(phenotype)
}

func pairKey(drug, gene string) string {
	return drug + "|" + gene
}

// LookupRule returns the rule for an exact (drug, gene, phenotype)
// match, or nil when no such rule exists.
func (t *Tables) LookupRule(drug, gene string, phenotype domain.Phenotype) *Rule {
	return t.ruleIndex[ruleKey(strings.ToUpper(drug), gene, phenotype)]
}

// PrimaryGene returns the gene of interest for a drug, or "" when the
// drug has no pharmacogenomic guidance in the rule table.
func (t *Tables) PrimaryGene(drug string) string {
	return t.primaryGene[strings.ToUpper(drug)]
}

// MaxKnownSeverity returns the most severe level among all known
// phenotypes for a drug-gene pair. Used by the conservative fallback
// so that unknown phenotypes are never reported below it.
func (t *Tables) MaxKnownSeverity(drug, gene string) (domain.Severity, bool) {
	sev, ok := t.maxSeverity[pairKey(strings.ToUpper(drug), gene)]
	return sev, ok
}

// AllelesFor returns the known allele definitions for a gene.
func (t *Tables) AllelesFor(gene string) []AlleleDefinition {
	return t.Alleles.Genes[gene]
}

// Genes returns the genes covered by the allele table.
func (t *Tables) Genes() []string {
	genes := make([]string, 0, len(t.Alleles.Genes))
	for g := range t.Alleles.Genes {
		genes = append(genes, g)
	}
	return genes
}

// PhenotypeFor maps a (gene, diplotype) pair to its phenotype, or
// Unknown when the table has no assignment. Never fails.
func (t *Tables) PhenotypeFor(gene string, diplotype domain.Diplotype) domain.Phenotype {
	assignments, ok := t.Phenotypes.Assignments[gene]
	if !ok {
		return domain.PhenotypeUnknown
	}
	phenotype, ok := assignments[string(diplotype)]
	if !ok {
		return domain.PhenotypeUnknown
	}
	return phenotype
}

// Versions reports the loaded table versions for health and audit
// surfaces.
func (t *Tables) Versions() map[string]string {
	return map[string]string{
		"alleles":    t.Alleles.Version,
		"phenotypes": t.Phenotypes.Version,
		"rules":      t.Rules.Version,
	}
}
