package postgres

import (
	"context"
	"fmt"

	"github.com/meikuraledutech/workflow/execctx"
)

// Resolve fetches the record an input node points at.
// Returns nil, nil if not found.
func (s *PGStore) Resolve(ctx context.Context, kind execctx.RecordKind, refID string) (*execctx.Record, error) {
	rec := execctx.Record{ID: refID, Kind: kind}
	var payload []byte
	err := s.db.QueryRow(ctx,
		`SELECT title, payload, evidence_refs FROM records WHERE kind = $1 AND id = $2`, string(kind), refID,
	).Scan(&rec.Title, &payload, &rec.EvidenceRefs)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("workflow: get record %s/%s: %w", kind, refID, err)
	}
	rec.Payload = payload
	if len(rec.EvidenceRefs) == 0 {
		rec.EvidenceRefs = nil
	}
	return &rec, nil
}

// PutRecord inserts or replaces a record.
func (s *PGStore) PutRecord(ctx context.Context, rec execctx.Record) error {
	payload := []byte(rec.Payload)
	if len(payload) == 0 {
		payload = []byte("null")
	}
	refs := rec.EvidenceRefs
	if refs == nil {
		refs = []string{}
	}
	_, err := s.db.Exec(ctx,
		`INSERT INTO records (kind, id, title, payload, evidence_refs) VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (kind, id) DO UPDATE SET title = EXCLUDED.title, payload = EXCLUDED.payload, evidence_refs = EXCLUDED.evidence_refs`,
		string(rec.Kind), rec.ID, rec.Title, payload, refs,
	)
	if err != nil {
		return fmt.Errorf("workflow: put record %s/%s: %w", rec.Kind, rec.ID, err)
	}
	return nil
}

// DeleteRecord removes a record. No error if it doesn't exist.
func (s *PGStore) DeleteRecord(ctx context.Context, kind execctx.RecordKind, id string) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM records WHERE kind = $1 AND id = $2`, string(kind), id); err != nil {
		return fmt.Errorf("workflow: delete record %s/%s: %w", kind, id, err)
	}
	return nil
}
