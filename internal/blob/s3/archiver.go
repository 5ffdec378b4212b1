package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/flipscout/flipscout/internal/domain"
)

// ArchivedDeal is one JSONL record in a deal archive: the terminal deal
// together with its complete audit trail.
type ArchivedDeal struct {
	Deal  domain.Deal            `json:"deal"`
	Trail []domain.AuditLogEntry `json:"trail"`
}

// DealArchiver exports terminal deals and their audit trails to cold
// storage as newline-delimited JSON, partitioned by year-month. Records
// are never deleted from the primary store here; pruning is a separate,
// explicit step taken after an archive has been verified.
type DealArchiver struct {
	writer domain.BlobWriter
	reader domain.BlobReader
	deals  domain.DealStore
	audit  domain.AuditStore
}

// NewDealArchiver creates a DealArchiver over the given blob backend and
// stores.
func NewDealArchiver(writer domain.BlobWriter, reader domain.BlobReader, deals domain.DealStore, audit domain.AuditStore) *DealArchiver {
	return &DealArchiver{
		writer: writer,
		reader: reader,
		deals:  deals,
		audit:  audit,
	}
}

// ArchiveCompleted exports all deals that reached a terminal state strictly
// before the cutoff, each with its full audit trail, to
// archive/deals/YYYY-MM.jsonl. It returns the number of deals archived.
// An existing archive for the same month is left untouched and the call
// returns 0; re-running after a verified prune is the supported way to
// produce a fresh archive.
func (a *DealArchiver) ArchiveCompleted(ctx context.Context, before time.Time) (int64, error) {
	path := archivePath("deals", before)

	exists, err := a.reader.Exists(ctx, path)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive deals head %s: %w", path, err)
	}
	if exists {
		return 0, nil
	}

	deals, err := a.deals.List(ctx, domain.ListOpts{
		Until:  &before,
		States: domain.TerminalStates(),
	})
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive deals query: %w", err)
	}
	if len(deals) == 0 {
		return 0, nil
	}

	records := make([]ArchivedDeal, 0, len(deals))
	for _, d := range deals {
		trail, err := a.audit.ListByDeal(ctx, d.ID)
		if err != nil {
			return 0, fmt.Errorf("s3blob: archive deals trail %s: %w", d.ID, err)
		}
		records = append(records, ArchivedDeal{Deal: d, Trail: trail})
	}

	buf, err := marshalJSONL(records)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive deals marshal: %w", err)
	}

	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive deals upload: %w", err)
	}

	return int64(len(records)), nil
}

// archivePath builds the blob key for an archive file, partitioned by the
// year-month of the cutoff time.
//
//	archive/deals/2026-08.jsonl
func archivePath(kind string, before time.Time) string {
	return fmt.Sprintf("archive/%s/%s.jsonl", kind, before.Format("2006-01"))
}

// marshalJSONL serialises a slice of values as newline-delimited JSON, one
// compact line per record.
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
