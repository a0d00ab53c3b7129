package routing

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hadlocna/operations/internal/domain/entity"
)

func testRegistry() *Registry {
	return &Registry{
		LegalSuffixes: []string{"LDA", "SA", "UNIPESSOAL"},
		Entries: []entity.RegistryEntry{
			{Category: "SPVs_AgriOps", FolderName: "AMANDEL - Sociedade Agricola", Aliases: []string{"AMANDEL", "Amandel Sociedade Agrícola"}},
			{Category: "SPVs_AgriOps", FolderName: "OLIVAL DO SUL", Aliases: []string{"Olival do Sul"}},
			{Category: "HoldCo_Services", FolderName: "HADLOC OPERATIONS", Aliases: []string{"Hadloc Operations"}},
			{Category: "HoldCo_Services", FolderName: "HADLOC HOLDINGS", Aliases: []string{"Hadloc"}},
		},
	}
}

func newTestRouter(t *testing.T) *Router {
	t.Helper()
	r, err := NewRouter(testRegistry())
	require.NoError(t, err)
	return r
}

func TestNormalizer_Normalize(t *testing.T) {
	n := NewNormalizer([]string{"Lda", "SA", "Unipessoal"})

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"uppercases and trims", "  amandel  ", "AMANDEL"},
		{"strips punctuation", "Amandel, (Sociedade) Agrícola.", "AMANDEL SOCIEDADE AGRÍCOLA"},
		{"collapses whitespace", "Olival \t do\n  Sul", "OLIVAL DO SUL"},
		{"strips trailing legal suffix", "EDP Comercial, S.A.", "EDP COMERCIAL"},
		{"strips stacked suffixes", "Hadloc Unipessoal, Lda.", "HADLOC"},
		{"keeps suffix in the middle", "SA Pinto Lda Transportes", "SA PINTO LDA TRANSPORTES"},
		{"keeps a name that is only a suffix", "S.A.", "SA"},
		{"hyphens and underscores", "Hadloc-Operations_PT", "HADLOCOPERATIONSPT"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, n.Normalize(tt.input))
		})
	}
}

func TestRouter_RoutesDeclaredAliases(t *testing.T) {
	r := newTestRouter(t)

	for _, e := range testRegistry().Entries {
		for _, alias := range e.Aliases {
			t.Run(alias, func(t *testing.T) {
				got := r.Route(alias, "")
				// Hadloc Operations also contains the Hadloc alias but its own entry is listed first
				assert.Equal(t, e.Category, got.Category)
				assert.Equal(t, e.FolderName, got.EntityFolderName)
			})
		}
	}
}

func TestRouter_SubstringMatch(t *testing.T) {
	r := newTestRouter(t)

	got := r.Route("AMANDEL - SOCIEDADE AGRÍCOLA, LDA", "EDP Comercial")
	assert.Equal(t, entity.RoutingResult{Category: "SPVs_AgriOps", EntityFolderName: "AMANDEL - Sociedade Agricola"}, got)
}

func TestRouter_FirstMatchWins(t *testing.T) {
	reg := testRegistry()
	reg.Entries = []entity.RegistryEntry{reg.Entries[3], reg.Entries[2]}
	r, err := NewRouter(reg)
	require.NoError(t, err)

	// With HADLOC HOLDINGS listed first its broader alias captures the name
	got := r.Route("Hadloc Operations Lda", "")
	assert.Equal(t, "HADLOC HOLDINGS", got.EntityFolderName)

	got = newTestRouter(t).Route("Hadloc Operations Lda", "")
	assert.Equal(t, "HADLOC OPERATIONS", got.EntityFolderName)
}

func TestRouter_PrefersCustomerOverSupplier(t *testing.T) {
	r := newTestRouter(t)

	got := r.Route("Olival do Sul", "Amandel")
	assert.Equal(t, "OLIVAL DO SUL", got.EntityFolderName)

	got = r.Route("   ", "Amandel")
	assert.Equal(t, "AMANDEL - Sociedade Agricola", got.EntityFolderName)
}

func TestRouter_CustomerWithoutMatchDoesNotFallBackToSupplier(t *testing.T) {
	r := newTestRouter(t)

	got := r.Route("Quinta Nova, Lda", "Amandel")
	assert.Equal(t, entity.CategoryUnsorted, got.Category)
	assert.Equal(t, "QUINTA NOVA", got.EntityFolderName)
}

func TestRouter_UnsortedSentinel(t *testing.T) {
	r := newTestRouter(t)

	got := r.Route("", "")
	assert.True(t, got.IsUnsorted())
	assert.Equal(t, entity.UnknownEntity, got.EntityFolderName)
}

func TestRouter_AccentsAreNotFolded(t *testing.T) {
	reg := &Registry{Entries: []entity.RegistryEntry{
		{Category: "SPVs_AgriOps", FolderName: "HERDADE DA LEZIRIA", Aliases: []string{"Herdade da Lezíria"}},
	}}
	r, err := NewRouter(reg)
	require.NoError(t, err)

	assert.Equal(t, "HERDADE DA LEZIRIA", r.Route("Herdade da Lezíria", "").EntityFolderName)
	assert.True(t, r.Route("Herdade da Leziria", "").IsUnsorted())
}

func TestRouter_PunctuationOnlyAliasIsIgnored(t *testing.T) {
	reg := &Registry{Entries: []entity.RegistryEntry{
		{Category: "SPVs_AgriOps", FolderName: "BROKEN", Aliases: []string{"--"}},
	}}
	r, err := NewRouter(reg)
	require.NoError(t, err)

	assert.True(t, r.Route("Anything", "").IsUnsorted())
}

func TestRouter_IsDeterministic(t *testing.T) {
	r := newTestRouter(t)
	first := r.Route("Amandel", "EDP")
	for i := 0; i < 50; i++ {
		assert.Equal(t, first, r.Route("Amandel", "EDP"))
	}
}

func TestRegistry_Validate(t *testing.T) {
	tests := []struct {
		name string
		reg  Registry
	}{
		{"no entries", Registry{}},
		{"missing folder", Registry{Entries: []entity.RegistryEntry{{Category: "A", Aliases: []string{"x"}}}}},
		{"reserved category", Registry{Entries: []entity.RegistryEntry{{Category: entity.CategoryUnsorted, FolderName: "X", Aliases: []string{"x"}}}}},
		{"no aliases", Registry{Entries: []entity.RegistryEntry{{Category: "A", FolderName: "X"}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.reg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, entity.ErrConfiguration)
		})
	}
}

func TestLoadRegistry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.yaml")
	content := `
legal_suffixes: [LDA]
entries:
  - category: SPVs_AgriOps
    folder_name: AMANDEL - Sociedade Agricola
    aliases: [AMANDEL]
  - category: HoldCo_Services
    folder_name: HADLOC HOLDINGS
    aliases: [HADLOC]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	reg, err := LoadRegistry(path)
	require.NoError(t, err)
	require.Len(t, reg.Entries, 2)
	assert.Equal(t, entity.Category("SPVs_AgriOps"), reg.Entries[0].Category)
	assert.Equal(t, "HADLOC HOLDINGS", reg.Entries[1].FolderName)

	_, err = LoadRegistry(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadRegistry_ShippedConfig(t *testing.T) {
	reg, err := LoadRegistry("../../configs/registry.yaml")
	require.NoError(t, err)

	r, err := NewRouter(reg)
	require.NoError(t, err)

	got := r.Route("AMANDEL", "EDP Comercial")
	assert.Equal(t, entity.Category("SPVs_AgriOps"), got.Category)
	assert.Equal(t, "AMANDEL - Sociedade Agricola", got.EntityFolderName)
}

func TestLoadRegistry_ShippedConfigEveryEntryReachable(t *testing.T) {
	reg, err := LoadRegistry("../../configs/registry.yaml")
	require.NoError(t, err)

	r, err := NewRouter(reg)
	require.NoError(t, err)

	for _, e := range reg.Entries {
		for _, alias := range e.Aliases {
			got := r.Route(alias+", Lda.", "")
			assert.Equal(t, e.FolderName, got.EntityFolderName, "alias %q", alias)
		}
	}

	got := r.Route("HADLOC OPERATIONS LDA", "EDP Comercial")
	assert.Equal(t, "HADLOC OPERATIONS", got.EntityFolderName)
	got = r.Route("Hadloc, S.A.", "EDP Comercial")
	assert.Equal(t, "HADLOC HOLDINGS", got.EntityFolderName)
}
