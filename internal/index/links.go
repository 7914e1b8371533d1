package index

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dshills/artifact-index/internal/driver"
	"github.com/dshills/artifact-index/pkg/types"
)

const linkColumns = `id, source_artifact_id, target_type, target_id, target_path, target_url,
	link_type, strength, line_start, line_end, vault_id, created_at, updated_at`

// SyncLinks replaces every outgoing link of sourceArtifactID. Links missing
// an id get a fresh one; missing source and vault fields are filled in.
func (ix *Index) SyncLinks(ctx context.Context, sourceArtifactID, vaultID string, links []types.Link) (err error) {
	h, err := ix.ready()
	if err != nil {
		return err
	}
	if sourceArtifactID == "" {
		return &OpError{Op: "sync_links", Err: types.ErrInvalidArtifactID}
	}

	now := time.Now().UTC()
	prepared := make([]types.Link, 0, len(links))
	for i := range links {
		l := links[i]
		if l.SourceArtifactID == "" {
			l.SourceArtifactID = sourceArtifactID
		}
		if l.VaultID == "" {
			l.VaultID = vaultID
		}
		if l.SourceArtifactID != sourceArtifactID {
			return &OpError{Op: "sync_links", ArtifactID: sourceArtifactID,
				Err: fmt.Errorf("%w: link %d belongs to %s", types.ErrInvalidLink, i, l.SourceArtifactID)}
		}
		if err := l.Validate(); err != nil {
			return &OpError{Op: "sync_links", ArtifactID: sourceArtifactID, Err: err}
		}
		if l.ID == "" {
			l.ID = uuid.NewString()
		}
		if l.CreatedAt.IsZero() {
			l.CreatedAt = now
		}
		if l.UpdatedAt.IsZero() {
			l.UpdatedAt = now
		}
		prepared = append(prepared, l)
	}

	tx, err := h.conn.BeginTx(ctx)
	if err != nil {
		return &OpError{Op: "sync_links", ArtifactID: sourceArtifactID, Err: err}
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := ix.client.Execute(ctx, tx, driver.Statement{
		SQL:      `DELETE FROM artifact_links WHERE source_artifact_id = ?`,
		Bindings: []any{sourceArtifactID},
		Kind:     driver.OpDelete,
	}); err != nil {
		return &OpError{Op: "sync_links", ArtifactID: sourceArtifactID, Err: err}
	}

	for _, l := range prepared {
		if _, err := ix.client.Execute(ctx, tx, driver.Statement{
			SQL:      `INSERT INTO artifact_links (` + linkColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			Bindings: linkBindings(l),
			Kind:     driver.OpInsert,
		}); err != nil {
			return &OpError{Op: "sync_links", ArtifactID: sourceArtifactID, Err: err}
		}
	}

	if err := tx.Commit(); err != nil {
		return &OpError{Op: "sync_links", ArtifactID: sourceArtifactID, Err: err}
	}
	return nil
}

func linkBindings(l types.Link) []any {
	var strength sql.NullFloat64
	if l.Strength != nil {
		strength = sql.NullFloat64{Float64: *l.Strength, Valid: true}
	}
	var lineStart, lineEnd sql.NullInt64
	if l.Location != nil {
		lineStart = sql.NullInt64{Int64: int64(l.Location.LineStart), Valid: true}
		lineEnd = sql.NullInt64{Int64: int64(l.Location.LineEnd), Valid: true}
	}
	return []any{
		l.ID, l.SourceArtifactID, string(l.TargetType),
		optString(l.TargetID), optString(l.TargetPath), optString(l.TargetURL),
		l.LinkType, strength, lineStart, lineEnd, l.VaultID,
		optTime(l.CreatedAt), optTime(l.UpdatedAt),
	}
}

// LinksFrom returns the outgoing links of an artifact
func (ix *Index) LinksFrom(ctx context.Context, artifactID string) ([]types.Link, error) {
	return ix.selectLinks(ctx, "links_from", `source_artifact_id = ?`, artifactID)
}

// Backlinks returns links pointing at target, which is matched against
// artifact ids and file paths
func (ix *Index) Backlinks(ctx context.Context, target string) ([]types.Link, error) {
	return ix.selectLinks(ctx, "backlinks", `target_id = ? OR target_path = ?`, target, target)
}

func (ix *Index) selectLinks(ctx context.Context, op, where string, args ...any) ([]types.Link, error) {
	h, err := ix.ready()
	if err != nil {
		return nil, err
	}
	res, err := ix.client.Execute(ctx, h.conn.DB, driver.Statement{
		SQL:      `SELECT ` + linkColumns + ` FROM artifact_links WHERE ` + where + ` ORDER BY source_artifact_id, link_type, id`,
		Bindings: args,
		Kind:     driver.OpSelect,
	})
	if err != nil {
		return nil, &OpError{Op: op, Err: err}
	}

	out := make([]types.Link, 0, len(res.Rows))
	for _, row := range res.Rows {
		l := types.Link{
			ID:               row.String("id"),
			SourceArtifactID: row.String("source_artifact_id"),
			TargetType:       types.TargetType(row.String("target_type")),
			TargetID:         row.String("target_id"),
			TargetPath:       row.String("target_path"),
			TargetURL:        row.String("target_url"),
			LinkType:         row.String("link_type"),
			VaultID:          row.String("vault_id"),
		}
		if row.Valid("strength") {
			s := row.Float("strength")
			l.Strength = &s
		}
		if row.Valid("line_start") {
			l.Location = &types.CodeLocation{
				LineStart: int(row.Int("line_start")),
				LineEnd:   int(row.Int("line_end")),
			}
		}
		if l.CreatedAt, err = parseTime(row.String("created_at")); err != nil {
			return nil, &OpError{Op: op, Err: err}
		}
		if l.UpdatedAt, err = parseTime(row.String("updated_at")); err != nil {
			return nil, &OpError{Op: op, Err: err}
		}
		out = append(out, l)
	}
	return out, nil
}
