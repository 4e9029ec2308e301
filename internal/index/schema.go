package index

// FieldMapping names the analyzers of one field. An empty SearchAnalyzer
// falls back to Analyzer.
type FieldMapping struct {
	Analyzer       string
	SearchAnalyzer string
}

// Schema resolves the analyzers used for each field.
type Schema struct {
	DefaultAnalyzer string
	Fields          map[string]FieldMapping
}

// IndexAnalyzer returns the analyzer name used when indexing field.
func (s Schema) IndexAnalyzer(field string) string {
	if m, ok := s.Fields[field]; ok && m.Analyzer != "" {
		return m.Analyzer
	}
	if s.DefaultAnalyzer == "" {
		return "standard"
	}
	return s.DefaultAnalyzer
}

// SearchAnalyzer returns the analyzer name used to analyze query text for
// field.
func (s Schema) SearchAnalyzer(field string) string {
	if m, ok := s.Fields[field]; ok && m.SearchAnalyzer != "" {
		return m.SearchAnalyzer
	}
	return s.IndexAnalyzer(field)
}
