package reference

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/niramay/risk-engine/internal/domain"
)

func TestLoad_Embedded(t *testing.T) {
	tables, err := Load("")

	require.NoError(t, err)
	require.NotNil(t, tables)

	versions := tables.Versions()
	assert.NotEmpty(t, versions["alleles"])
	assert.NotEmpty(t, versions["phenotypes"])
	assert.NotEmpty(t, versions["rules"])

	// Every core gene must be present in the allele table.
	for _, gene := range []string{"SLCO1B1", "CYP2C9", "CYP2C19", "TPMT", "DPYD", "CYP2D6"} {
		assert.NotEmpty(t, tables.AllelesFor(gene), "missing alleles for %s", gene)
	}
}

func TestLoad_MissingDir(t *testing.T) {
	tables, err := Load("/nonexistent/reference/dir")

	require.Error(t, err)
	assert.Nil(t, tables)

	var fault *domain.ConfigurationFault
	require.ErrorAs(t, err, &fault)
}

func TestLoad_MalformedTable(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "alleles.json"), []byte("{not json"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "phenotypes.json"), []byte("{}"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "rules.json"), []byte("{}"), 0644))

	tables, err := Load(dir)

	require.Error(t, err)
	assert.Nil(t, tables)

	var fault *domain.ConfigurationFault
	require.ErrorAs(t, err, &fault)
	assert.Equal(t, "allele table", fault.Table)
}

func TestLookupRule(t *testing.T) {
	tables, err := Load("")
	require.NoError(t, err)

	rule := tables.LookupRule("SIMVASTATIN", "SLCO1B1", domain.PhenotypePoorFunction)
	require.NotNil(t, rule)
	assert.Equal(t, domain.SeverityCritical, rule.Severity)
	assert.Equal(t, "Toxic", rule.RiskLabel)

	// Drug lookup is case-insensitive.
	assert.NotNil(t, tables.LookupRule("simvastatin", "SLCO1B1", domain.PhenotypePoorFunction))

	// Unknown phenotype has no exact rule.
	assert.Nil(t, tables.LookupRule("SIMVASTATIN", "SLCO1B1", domain.PhenotypeUnknown))
}

func TestPrimaryGene(t *testing.T) {
	tables, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "SLCO1B1", tables.PrimaryGene("SIMVASTATIN"))
	assert.Equal(t, "CYP2C9", tables.PrimaryGene("WARFARIN"))
	assert.Equal(t, "CYP2C19", tables.PrimaryGene("CLOPIDOGREL"))
	assert.Equal(t, "TPMT", tables.PrimaryGene("AZATHIOPRINE"))
	assert.Equal(t, "DPYD", tables.PrimaryGene("FLUOROURACIL"))
	assert.Equal(t, "CYP2D6", tables.PrimaryGene("CODEINE"))
	assert.Empty(t, tables.PrimaryGene("ASPIRIN"))
}

func TestMaxKnownSeverity(t *testing.T) {
	tables, err := Load("")
	require.NoError(t, err)

	sev, ok := tables.MaxKnownSeverity("FLUOROURACIL", "DPYD")
	require.True(t, ok)
	assert.Equal(t, domain.SeverityCritical, sev)

	_, ok = tables.MaxKnownSeverity("ASPIRIN", "CYP2C9")
	assert.False(t, ok)
}

func TestPhenotypeFor(t *testing.T) {
	tables, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, domain.PhenotypeNormalMetabolizer, tables.PhenotypeFor("CYP2C19", "*1/*1"))
	assert.Equal(t, domain.PhenotypePoorMetabolizer, tables.PhenotypeFor("CYP2C19", "*2/*2"))
	assert.Equal(t, domain.PhenotypeDecreasedFunction, tables.PhenotypeFor("SLCO1B1", "*1/*5"))
	assert.Equal(t, domain.PhenotypeUnknown, tables.PhenotypeFor("CYP2C19", "*99/*99"))
	assert.Equal(t, domain.PhenotypeUnknown, tables.PhenotypeFor("NOSUCHGENE", "*1/*1"))
}
