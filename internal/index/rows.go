package index

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dshills/artifact-index/internal/driver"
	"github.com/dshills/artifact-index/pkg/types"
)

const (
	indexColumns = `id, artifact_id, vault_id, vault_name, type, category, tags, links,
		related_artifacts, related_code_paths, related_components, author, owner, reviewers,
		properties, created_at, updated_at, metadata_file_path, title, description`
	indexPlaceholders = `?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?`
	indexUpdateSet    = `artifact_id = excluded.artifact_id,
		vault_id = excluded.vault_id,
		vault_name = excluded.vault_name,
		type = excluded.type,
		category = excluded.category,
		tags = excluded.tags,
		links = excluded.links,
		related_artifacts = excluded.related_artifacts,
		related_code_paths = excluded.related_code_paths,
		related_components = excluded.related_components,
		author = excluded.author,
		owner = excluded.owner,
		reviewers = excluded.reviewers,
		properties = excluded.properties,
		created_at = excluded.created_at,
		updated_at = excluded.updated_at,
		metadata_file_path = excluded.metadata_file_path,
		title = excluded.title,
		description = excluded.description`
)

// indexRow is one artifact_metadata_index row ready for binding. Nullable
// columns use sql.NullString.
type indexRow struct {
	ID                string
	ArtifactID        string
	VaultID           string
	VaultName         sql.NullString
	Type              sql.NullString
	Category          sql.NullString
	Tags              string
	Links             string
	RelatedArtifacts  string
	RelatedCodePaths  string
	RelatedComponents string
	Author            sql.NullString
	Owner             sql.NullString
	Reviewers         string
	Properties        string
	CreatedAt         sql.NullString
	UpdatedAt         sql.NullString
	MetadataFilePath  string
	Title             sql.NullString
	Description       sql.NullString
}

func (r indexRow) bindings() []any {
	return []any{
		r.ID, r.ArtifactID, r.VaultID, r.VaultName, r.Type, r.Category,
		r.Tags, r.Links, r.RelatedArtifacts, r.RelatedCodePaths, r.RelatedComponents,
		r.Author, r.Owner, r.Reviewers, r.Properties,
		r.CreatedAt, r.UpdatedAt, r.MetadataFilePath, r.Title, r.Description,
	}
}

func encodeRow(md *types.ArtifactMetadata, path string, title, description *string) (indexRow, error) {
	row := indexRow{
		ID:               md.ID,
		ArtifactID:       md.ArtifactID,
		VaultID:          md.VaultID,
		VaultName:        optString(md.VaultName),
		Type:             optString(md.Type),
		Category:         optString(md.Category),
		Author:           optString(md.Author),
		Owner:            optString(md.Owner),
		CreatedAt:        optTime(md.CreatedAt),
		UpdatedAt:        optTime(md.UpdatedAt),
		MetadataFilePath: path,
		Title:            ptrString(title),
		Description:      ptrString(description),
	}

	var err error
	lists := []struct {
		dst *string
		src []string
	}{
		{&row.Tags, md.Tags},
		{&row.Links, md.Links},
		{&row.RelatedArtifacts, md.RelatedArtifacts},
		{&row.RelatedCodePaths, md.RelatedCodePaths},
		{&row.RelatedComponents, md.RelatedComponents},
		{&row.Reviewers, md.Reviewers},
	}
	for _, l := range lists {
		if *l.dst, err = encodeList(l.src); err != nil {
			return indexRow{}, err
		}
	}

	props := md.Properties
	if props == nil {
		props = map[string]any{}
	}
	b, err := json.Marshal(props)
	if err != nil {
		return indexRow{}, fmt.Errorf("failed to encode properties: %w", err)
	}
	row.Properties = string(b)
	return row, nil
}

func encodeList(v []string) (string, error) {
	if v == nil {
		v = []string{}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode list: %w", err)
	}
	return string(b), nil
}

func optString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func ptrString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func optTime(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339Nano), Valid: true}
}

func nullString(s sql.NullString) string {
	if !s.Valid {
		return ""
	}
	return s.String
}

// Record is an index row read back as the metadata it was synced from
type Record struct {
	Metadata         types.ArtifactMetadata
	MetadataFilePath string
	Title            *string
	Description      *string
}

// Get returns the index row with the given artifact id
func (ix *Index) Get(ctx context.Context, artifactID string) (*Record, error) {
	h, err := ix.ready()
	if err != nil {
		return nil, err
	}
	res, err := ix.client.Execute(ctx, h.conn.DB, driver.Statement{
		SQL:      `SELECT ` + indexColumns + ` FROM artifact_metadata_index WHERE artifact_id = ? ORDER BY id LIMIT 1`,
		Bindings: []any{artifactID},
		Kind:     driver.OpSelect,
	})
	if err != nil {
		return nil, &OpError{Op: "get", ArtifactID: artifactID, Err: err}
	}
	if len(res.Rows) == 0 {
		return nil, &OpError{Op: "get", ArtifactID: artifactID, Err: ErrNotFound}
	}
	rec, err := decodeRow(res.Rows[0])
	if err != nil {
		return nil, &OpError{Op: "get", ArtifactID: artifactID, Err: err}
	}
	return rec, nil
}

func decodeRow(row driver.Row) (*Record, error) {
	md := types.ArtifactMetadata{
		ID:         row.String("id"),
		ArtifactID: row.String("artifact_id"),
		VaultID:    row.String("vault_id"),
		VaultName:  row.String("vault_name"),
		Type:       row.String("type"),
		Category:   row.String("category"),
		Author:     row.String("author"),
		Owner:      row.String("owner"),
	}

	lists := []struct {
		col string
		dst *[]string
	}{
		{"tags", &md.Tags},
		{"links", &md.Links},
		{"related_artifacts", &md.RelatedArtifacts},
		{"related_code_paths", &md.RelatedCodePaths},
		{"related_components", &md.RelatedComponents},
		{"reviewers", &md.Reviewers},
	}
	for _, l := range lists {
		if err := decodeJSON(row, l.col, l.dst); err != nil {
			return nil, err
		}
		if len(*l.dst) == 0 {
			*l.dst = nil
		}
	}
	if err := decodeJSON(row, "properties", &md.Properties); err != nil {
		return nil, err
	}
	if len(md.Properties) == 0 {
		md.Properties = nil
	}

	var err error
	if md.CreatedAt, err = parseTime(row.String("created_at")); err != nil {
		return nil, err
	}
	if md.UpdatedAt, err = parseTime(row.String("updated_at")); err != nil {
		return nil, err
	}

	rec := &Record{Metadata: md, MetadataFilePath: row.String("metadata_file_path")}
	if row.Valid("title") {
		t := row.String("title")
		rec.Title = &t
	}
	if row.Valid("description") {
		d := row.String("description")
		rec.Description = &d
	}
	return rec, nil
}

// decodeJSON reads a JSON column. DuckDB may hand back already-decoded
// lists and maps, which are re-marshalled into dst.
func decodeJSON(row driver.Row, col string, dst any) error {
	var raw []byte
	switch v := row[col].(type) {
	case nil:
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("failed to decode %s: %w", col, err)
		}
		raw = b
	}
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("failed to decode %s: %w", col, err)
	}
	return nil
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse timestamp %q: %w", s, err)
	}
	return t, nil
}

// buildQuery turns a filter into a parameterised select over the primary
// table
func (ix *Index) buildQuery(f types.Filter) driver.Statement {
	var conds []string
	var args []any

	exact := []struct {
		col, val string
	}{
		{"vault_id", f.VaultID},
		{"vault_name", f.VaultName},
		{"type", f.Type},
		{"category", f.Category},
	}
	for _, e := range exact {
		if e.val == "" {
			continue
		}
		conds = append(conds, ix.client.QuoteIdentifier(e.col)+" = ?")
		args = append(args, e.val)
	}

	for _, tag := range f.Tags {
		if ix.client.Dialect() == driver.DialectDuckDB {
			conds = append(conds, `list_contains(CAST(tags AS VARCHAR[]), ?)`)
		} else {
			conds = append(conds, `EXISTS (SELECT 1 FROM json_each(artifact_metadata_index.tags) WHERE json_each.value = ?)`)
		}
		args = append(args, tag)
	}

	var b strings.Builder
	b.WriteString(`SELECT metadata_file_path FROM artifact_metadata_index`)
	if len(conds) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(conds, " AND "))
	}
	if f.OrderBy != "" {
		b.WriteString(" ORDER BY ")
		b.WriteString(ix.client.QuoteIdentifier(f.OrderBy))
		if f.OrderDesc {
			b.WriteString(" DESC")
		}
	}
	if f.Limit > 0 {
		b.WriteString(" LIMIT ?")
		args = append(args, f.Limit)
	}

	return driver.Statement{SQL: b.String(), Bindings: args, Kind: driver.OpSelect}
}

// IndexedArtifact pairs an artifact id with the file it was synced from
type IndexedArtifact struct {
	ArtifactID       string
	VaultID          string
	MetadataFilePath string
}

// Artifacts lists every indexed artifact, optionally restricted to a vault
func (ix *Index) Artifacts(ctx context.Context, vaultID string) ([]IndexedArtifact, error) {
	h, err := ix.ready()
	if err != nil {
		return nil, err
	}

	stmt := driver.Statement{
		SQL:  `SELECT DISTINCT artifact_id, vault_id, metadata_file_path FROM artifact_metadata_index`,
		Kind: driver.OpSelect,
	}
	if vaultID != "" {
		stmt.SQL += ` WHERE vault_id = ?`
		stmt.Bindings = []any{vaultID}
	}
	stmt.SQL += ` ORDER BY artifact_id`

	res, err := ix.client.Execute(ctx, h.conn.DB, stmt)
	if err != nil {
		return nil, &OpError{Op: "artifacts", Err: err}
	}
	out := make([]IndexedArtifact, 0, len(res.Rows))
	for _, row := range res.Rows {
		out = append(out, IndexedArtifact{
			ArtifactID:       row.String("artifact_id"),
			VaultID:          row.String("vault_id"),
			MetadataFilePath: row.String("metadata_file_path"),
		})
	}
	return out, nil
}

// LookupByPath returns the artifact synced from a metadata file
func (ix *Index) LookupByPath(ctx context.Context, metadataFilePath string) (string, bool, error) {
	h, err := ix.ready()
	if err != nil {
		return "", false, err
	}
	res, err := ix.client.Execute(ctx, h.conn.DB, driver.Statement{
		SQL:      `SELECT artifact_id FROM artifact_metadata_index WHERE metadata_file_path = ? LIMIT 1`,
		Bindings: []any{metadataFilePath},
		Kind:     driver.OpSelect,
	})
	if err != nil {
		return "", false, &OpError{Op: "lookup", Err: err}
	}
	if len(res.Rows) == 0 {
		return "", false, nil
	}
	return res.Rows[0].String("artifact_id"), true, nil
}
