package format

// Builtins returns the formats shipped with tally.
func Builtins() []Format {
	return []Format{
		{
			Name:           "chase",
			DefaultVersion: "checking",
			Versions: map[string]*FormatConfig{
				"checking": {
					Delimiter:        ',',
					DecimalSeparator: '.',
					DateFormat:       "%m/%d/%Y",
					Columns: map[CanonicalField]ColumnStrategy{
						FieldDateValue:   Name("Posting Date"),
						FieldAmount:      Name("Amount"),
						FieldDescription: Name("Description"),
						FieldRecipientApplicant: Regex(RegexSource{
							Column:  "Description",
							Pattern: `^([A-Za-z0-9]+)`,
						}),
					},
				},
			},
		},
		{
			Name:           "dkb",
			DefaultVersion: "2023",
			Versions: map[string]*FormatConfig{
				"2019": {
					Encoding:         "windows-1252",
					Delimiter:        ';',
					DecimalSeparator: ',',
					DateFormat:       "%d.%m.%Y",
					HeaderSkipLines:  6,
					Columns: map[CanonicalField]ColumnStrategy{
						FieldDateValue:          Name("Wertstellung"),
						FieldDateCreation:       Name("Buchungstag"),
						FieldAmount:             Name("Betrag (EUR)"),
						FieldDescription:        Join(" | ", "Buchungstext", "Verwendungszweck"),
						FieldRecipientApplicant: Name("Auftraggeber / Begünstigter"),
						FieldIBAN:               Name("Kontonummer"),
						FieldBIC:                Name("BLZ"),
					},
				},
				"2023": {
					Encoding:         "utf-8",
					Delimiter:        ';',
					DecimalSeparator: ',',
					DateFormat:       "%d.%m.%y",
					HeaderSkipLines:  4,
					Columns: map[CanonicalField]ColumnStrategy{
						FieldDateValue:          Name("Wertstellung"),
						FieldDateCreation:       Name("Buchungsdatum"),
						FieldAmount:             Name("Betrag (€)"),
						FieldDescription:        Name("Verwendungszweck"),
						FieldRecipientApplicant: Join(" / ", "Zahlungspflichtige*r", "Zahlungsempfänger*in"),
						FieldIBAN:               Name("IBAN"),
					},
				},
			},
		},
	}
}

// DefaultRegistry returns a registry with all built-in formats.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, f := range Builtins() {
		if err := r.Register(f); err != nil {
			panic("invalid built-in format: " + err.Error())
		}
	}
	return r
}
