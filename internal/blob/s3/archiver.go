package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"stockradar/internal/domain"
)

// PositionSource is the slice of the ledger the archiver needs: closed
// positions cut by exit date. domain.Ledger satisfies it.
type PositionSource interface {
	ListClosedBefore(ctx context.Context, before time.Time) ([]domain.Position, error)
	DeleteClosedBefore(ctx context.Context, before time.Time) (int64, error)
}

// SnapshotSource is the slice of the snapshot store the archiver needs.
// domain.SnapshotStore satisfies it.
type SnapshotSource interface {
	ListBefore(ctx context.Context, before time.Time) ([]domain.Snapshot, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// Archiver implements domain.Archiver: old ledger rows are serialized to
// JSONL, uploaded to the object store, and only then pruned from the hot
// store. A failed upload leaves the rows in place for the next run.
type Archiver struct {
	writer    domain.BlobWriter
	positions PositionSource
	snapshots SnapshotSource
	audit     domain.AuditStore
}

// NewArchiver wires the archiver to its stores.
func NewArchiver(writer domain.BlobWriter, positions PositionSource, snapshots SnapshotSource, audit domain.AuditStore) *Archiver {
	return &Archiver{
		writer:    writer,
		positions: positions,
		snapshots: snapshots,
		audit:     audit,
	}
}

var _ domain.Archiver = (*Archiver)(nil)

// ArchivePositions moves closed positions with an exit date before the
// cutoff to archive/positions/YYYY-MM.jsonl and deletes them from the
// ledger. Returns the number of positions archived.
func (a *Archiver) ArchivePositions(ctx context.Context, before time.Time) (int64, error) {
	positions, err := a.positions.ListClosedBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive positions query: %w", err)
	}
	if len(positions) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(positions)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive positions marshal: %w", err)
	}

	path := archivePath("positions", before)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive positions upload: %w", err)
	}

	deleted, err := a.positions.DeleteClosedBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive positions prune: %w", err)
	}

	count := int64(len(positions))

	if err := a.audit.Log(ctx, "archive.positions", map[string]any{
		"path":    path,
		"count":   count,
		"deleted": deleted,
		"before":  before.Format(time.RFC3339),
	}); err != nil {
		return count, fmt.Errorf("s3blob: archive positions audit log: %w", err)
	}

	return count, nil
}

// ArchiveSnapshots moves daily snapshots dated before the cutoff to
// archive/snapshots/YYYY-MM.jsonl and deletes them from the store. Returns
// the number of snapshots archived.
func (a *Archiver) ArchiveSnapshots(ctx context.Context, before time.Time) (int64, error) {
	snaps, err := a.snapshots.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive snapshots query: %w", err)
	}
	if len(snaps) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(snaps)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive snapshots marshal: %w", err)
	}

	path := archivePath("snapshots", before)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive snapshots upload: %w", err)
	}

	deleted, err := a.snapshots.DeleteBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive snapshots prune: %w", err)
	}

	count := int64(len(snaps))

	if err := a.audit.Log(ctx, "archive.snapshots", map[string]any{
		"path":    path,
		"count":   count,
		"deleted": deleted,
		"before":  before.Format(time.RFC3339),
	}); err != nil {
		return count, fmt.Errorf("s3blob: archive snapshots audit log: %w", err)
	}

	return count, nil
}

// archivePath partitions archive files by the year-month of the cutoff:
//
//	archive/positions/2025-06.jsonl
//	archive/snapshots/2025-06.jsonl
func archivePath(kind string, before time.Time) string {
	return fmt.Sprintf("archive/%s/%s.jsonl", kind, before.Format("2006-01"))
}

// marshalJSONL encodes records as newline-delimited JSON, one compact line
// per record.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
