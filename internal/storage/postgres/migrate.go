package postgres

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"text/template"
)

//go:embed schema.sql
var schemaSQL string

var schemaTemplate = template.Must(template.New("schema").Option("missingkey=error").Parse(schemaSQL))

// Schema renders the DDL for the given table names.
func Schema(tables Tables) (string, error) {
	tables = tables.withDefaults()
	if err := tables.Validate(); err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := schemaTemplate.Execute(&buf, tables); err != nil {
		return "", fmt.Errorf("render schema: %w", err)
	}
	return buf.String(), nil
}

// Migrate creates the ranking tables and indexes if they do not exist.
func (s *RankingStore) Migrate(ctx context.Context) error {
	ddl, err := Schema(s.tables)
	if err != nil {
		return err
	}
	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
