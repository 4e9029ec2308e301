package indexer

import (
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/search-ltr/internal/analysis"
	"github.com/Adithya-Monish-Kumar-K/search-ltr/internal/index"
	"github.com/Adithya-Monish-Kumar-K/search-ltr/pkg/config"
)

// Schema converts the analysis section of the config into an index schema,
// checking that every analyzer it names is registered.
func Schema(cfg config.AnalysisConfig, analyzers *analysis.Registry) (index.Schema, error) {
	schema := index.Schema{
		DefaultAnalyzer: cfg.DefaultAnalyzer,
		Fields:          make(map[string]index.FieldMapping, len(cfg.Fields)),
	}
	if _, err := analyzers.Get(schema.IndexAnalyzer("")); err != nil {
		return index.Schema{}, fmt.Errorf("default analyzer: %w", err)
	}
	for field, m := range cfg.Fields {
		schema.Fields[field] = index.FieldMapping{Analyzer: m.Analyzer, SearchAnalyzer: m.SearchAnalyzer}
		for _, name := range []string{schema.IndexAnalyzer(field), schema.SearchAnalyzer(field)} {
			if _, err := analyzers.Get(name); err != nil {
				return index.Schema{}, fmt.Errorf("field %s: %w", field, err)
			}
		}
	}
	return schema, nil
}
