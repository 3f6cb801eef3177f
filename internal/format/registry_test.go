package format

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func simpleConfig() *FormatConfig {
	return &FormatConfig{
		Delimiter:        ';',
		DecimalSeparator: ',',
		DateFormat:       "%d.%m.%Y",
		Columns: map[CanonicalField]ColumnStrategy{
			FieldDateValue:   Name("Datum"),
			FieldAmount:      Name("Betrag"),
			FieldDescription: Name("Text"),
		},
	}
}

func TestRegistry_ResolveDefaultVersion(t *testing.T) {
	r := NewRegistry()
	v2 := simpleConfig()
	v2.HeaderSkipLines = 3
	require.NoError(t, r.Register(Format{
		Name:           "bank",
		DefaultVersion: "2",
		Versions:       map[string]*FormatConfig{"1": simpleConfig(), "2": v2},
	}))

	cfg, err := r.Resolve("bank", "")
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.HeaderSkipLines)

	cfg, err = r.Resolve("bank", "1")
	require.NoError(t, err)
	assert.Equal(t, 0, cfg.HeaderSkipLines)
	assert.True(t, cfg.Compiled())
}

func TestRegistry_CaseInsensitive(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(Format{Name: "DKB", Versions: map[string]*FormatConfig{"1": simpleConfig()}}))

	_, err := r.Resolve("dkb", "")
	assert.NoError(t, err)
	_, err = r.Resolve("Dkb", "1")
	assert.NoError(t, err)
}

func TestRegistry_UnknownFormat(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(Format{Name: "sparkasse", Versions: map[string]*FormatConfig{"1": simpleConfig()}}))

	_, err := r.Resolve("sparkase", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownFormat)

	var fe *Error
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "sparkasse", fe.Suggestion)
	assert.Contains(t, err.Error(), `did you mean "sparkasse"`)
}

func TestRegistry_UnknownVersion(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(Format{Name: "bank", Versions: map[string]*FormatConfig{"1": simpleConfig()}}))

	_, err := r.Resolve("bank", "7")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownVersion)
	assert.NotErrorIs(t, err, ErrUnknownFormat)
}

func TestRegistry_MissingDefaultVersion(t *testing.T) {
	r := NewRegistry()
	err := r.Register(Format{
		Name:           "bank",
		DefaultVersion: "3",
		Versions:       map[string]*FormatConfig{"1": simpleConfig(), "2": simpleConfig()},
	})
	assert.ErrorIs(t, err, ErrUnknownVersion)
	assert.Empty(t, r.Names())
}

func TestRegistry_SingleVersionIsDefault(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(Format{Name: "bank", Versions: map[string]*FormatConfig{"only": simpleConfig()}}))

	f, ok := r.Get("bank")
	require.True(t, ok)
	assert.Equal(t, "only", f.DefaultVersion)
}

func TestRegistry_RejectsBadRegex(t *testing.T) {
	cfg := simpleConfig()
	cfg.Columns[FieldIBAN] = Regex(RegexSource{Column: "Text", Pattern: `IBAN (\w+`})

	r := NewRegistry()
	err := r.Register(Format{Name: "bank", Versions: map[string]*FormatConfig{"1": cfg}})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBadRegex)

	var fe *Error
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "bank", fe.Format)
	assert.Equal(t, "1", fe.Version)
	assert.Equal(t, FieldIBAN, fe.Field)
}

func TestRegistry_RejectsColumnMissingFromExplicitHeader(t *testing.T) {
	cfg := simpleConfig()
	cfg.Header = []string{"Datum", "Betrag", "Txt"}

	r := NewRegistry()
	err := r.Register(Format{Name: "bank", Versions: map[string]*FormatConfig{"1": cfg}})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBadColumn)
	assert.Contains(t, err.Error(), `did you mean "Txt"`)
}

func TestRegistry_RejectsUnmappedMandatoryField(t *testing.T) {
	cfg := simpleConfig()
	delete(cfg.Columns, FieldAmount)

	err := NewRegistry().Register(Format{Name: "bank", Versions: map[string]*FormatConfig{"1": cfg}})
	assert.ErrorIs(t, err, ErrInvalid)
	assert.Contains(t, err.Error(), "amount")
}

func TestRegistry_RejectsMappedAccount(t *testing.T) {
	cfg := simpleConfig()
	cfg.Columns[FieldAccount] = Name("Konto")

	err := NewRegistry().Register(Format{Name: "bank", Versions: map[string]*FormatConfig{"1": cfg}})
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestRegistry_ScalarValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*FormatConfig)
	}{
		{"decimal separator", func(c *FormatConfig) { c.DecimalSeparator = ':' }},
		{"same separators", func(c *FormatConfig) { c.Delimiter = ',' }},
		{"quote delimiter", func(c *FormatConfig) { c.Delimiter = '"' }},
		{"missing date format", func(c *FormatConfig) { c.DateFormat = " " }},
		{"negative skip", func(c *FormatConfig) { c.HeaderSkipLines = -1 }},
		{"encoding", func(c *FormatConfig) { c.Encoding = "klingon-8" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := simpleConfig()
			tt.mutate(cfg)
			err := NewRegistry().Register(Format{Name: "bank", Versions: map[string]*FormatConfig{"1": cfg}})
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}
}

func TestRegistry_SnapshotSurvivesReplace(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(Format{Name: "bank", Versions: map[string]*FormatConfig{"1": simpleConfig()}}))
	before, err := r.Resolve("bank", "")
	require.NoError(t, err)

	replaced := simpleConfig()
	replaced.DateFormat = "%Y-%m-%d"
	require.NoError(t, r.Register(Format{Name: "bank", Versions: map[string]*FormatConfig{"1": replaced}}))

	after, err := r.Resolve("bank", "")
	require.NoError(t, err)
	assert.Equal(t, "%d.%m.%Y", before.DateFormat)
	assert.Equal(t, "%Y-%m-%d", after.DateFormat)
}

func TestRegistry_Remove(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(Format{Name: "bank", Versions: map[string]*FormatConfig{"1": simpleConfig()}}))
	assert.True(t, r.Remove("BANK"))
	assert.False(t, r.Remove("bank"))
	_, err := r.Resolve("bank", "")
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestDefaultRegistry(t *testing.T) {
	r := DefaultRegistry()
	assert.Equal(t, []string{"chase", "dkb"}, r.Names())

	cfg, err := r.Resolve("dkb", "")
	require.NoError(t, err)
	assert.Equal(t, ';', cfg.Delimiter)
	assert.Equal(t, 4, cfg.HeaderSkipLines)
}
