package batch

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrNoBatch is returned when no batch exists yet.
var ErrNoBatch = errors.New("no batch")

// CreateBatch inserts a fresh empty batch and returns it.
func (s *Store) CreateBatch(ctx context.Context) (*Batch, error) {
	ctx = ensureContext(ctx)
	now := time.Now().UTC()

	var id int64
	err := retryOnBusy(ctx, func() error {
		res, execErr := s.db.ExecContext(ctx,
			"INSERT INTO batches (created_at, updated_at) VALUES (?, ?)",
			now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano),
		)
		if execErr != nil {
			return execErr
		}
		id, execErr = res.LastInsertId()
		return execErr
	})
	if err != nil {
		return nil, fmt.Errorf("insert batch: %w", err)
	}

	return &Batch{ID: id, CreatedAt: now, UpdatedAt: now}, nil
}

// CurrentBatch loads the most recently created batch with its items.
// Returns ErrNoBatch when the store is empty.
func (s *Store) CurrentBatch(ctx context.Context) (*Batch, error) {
	ctx = ensureContext(ctx)
	var id int64
	err := s.db.QueryRowContext(ctx, "SELECT id FROM batches ORDER BY id DESC LIMIT 1").Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoBatch
	}
	if err != nil {
		return nil, fmt.Errorf("find current batch: %w", err)
	}
	return s.GetBatch(ctx, id)
}

// GetBatch loads one batch with its items in original submission order.
func (s *Store) GetBatch(ctx context.Context, id int64) (*Batch, error) {
	ctx = ensureContext(ctx)

	b := &Batch{}
	var createdAt, updatedAt string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, ocr_locked, compare_locked, cancelled, last_error,
		       upload_ms, ocr_ms, compare_ms, created_at, updated_at
		FROM batches WHERE id = ?`, id,
	).Scan(&b.ID, &b.OcrLocked, &b.CompareLocked, &b.Cancelled, &b.LastError,
		&b.UploadMs, &b.OcrMs, &b.CompareMs, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoBatch
	}
	if err != nil {
		return nil, fmt.Errorf("load batch %d: %w", id, err)
	}
	b.CreatedAt = parseTime(createdAt)
	b.UpdatedAt = parseTime(updatedAt)

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, original_filename, normalized_filename, server_filename,
		       source_path, status, result_json, publish_ids_json,
		       publish_links_json, error_message, created_at, updated_at
		FROM items WHERE batch_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("load items for batch %d: %w", id, err)
	}
	defer rows.Close()

	for rows.Next() {
		item := &Item{}
		var status, resultJSON, publishIDsJSON, publishLinksJSON string
		var itemCreated, itemUpdated string
		if err := rows.Scan(&item.ID, &item.OriginalFilename, &item.NormalizedFilename,
			&item.ServerFilename, &item.SourcePath, &status, &resultJSON,
			&publishIDsJSON, &publishLinksJSON, &item.ErrorMessage,
			&itemCreated, &itemUpdated); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		item.Status = Status(status)
		item.CreatedAt = parseTime(itemCreated)
		item.UpdatedAt = parseTime(itemUpdated)
		if resultJSON != "" {
			result := &Result{}
			if err := json.Unmarshal([]byte(resultJSON), result); err != nil {
				return nil, fmt.Errorf("decode result for item %s: %w", item.ID, err)
			}
			item.Result = result
		}
		if publishIDsJSON != "" {
			if err := json.Unmarshal([]byte(publishIDsJSON), &item.PublishIDs); err != nil {
				return nil, fmt.Errorf("decode publish ids for item %s: %w", item.ID, err)
			}
		}
		if publishLinksJSON != "" {
			if err := json.Unmarshal([]byte(publishLinksJSON), &item.PublishLinks); err != nil {
				return nil, fmt.Errorf("decode publish links for item %s: %w", item.ID, err)
			}
		}
		b.Items = append(b.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate items: %w", err)
	}
	return b, nil
}

// SaveBatch persists the whole batch snapshot in one transaction: flags,
// timings, and the full item collection. Readers never observe a partial
// update.
func (s *Store) SaveBatch(ctx context.Context, b *Batch) error {
	ctx = ensureContext(ctx)
	if b == nil {
		return errors.New("save batch: nil batch")
	}
	b.UpdatedAt = time.Now().UTC()

	return retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin save tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		res, err := tx.ExecContext(ctx, `
			UPDATE batches SET ocr_locked = ?, compare_locked = ?, cancelled = ?,
			       last_error = ?, upload_ms = ?, ocr_ms = ?, compare_ms = ?,
			       updated_at = ?
			WHERE id = ?`,
			b.OcrLocked, b.CompareLocked, b.Cancelled, b.LastError,
			b.UploadMs, b.OcrMs, b.CompareMs,
			b.UpdatedAt.Format(time.RFC3339Nano), b.ID)
		if err != nil {
			return fmt.Errorf("update batch %d: %w", b.ID, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("update batch %d: %w", b.ID, err)
		}
		if affected == 0 {
			return fmt.Errorf("save batch %d: %w", b.ID, ErrNoBatch)
		}

		if _, err := tx.ExecContext(ctx, "DELETE FROM items WHERE batch_id = ?", b.ID); err != nil {
			return fmt.Errorf("clear items for batch %d: %w", b.ID, err)
		}
		for position, item := range b.Items {
			if err := insertItem(ctx, tx, b.ID, position, item); err != nil {
				return err
			}
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit batch %d: %w", b.ID, err)
		}
		return nil
	})
}

// ResetBatch discards a batch and all of its items.
func (s *Store) ResetBatch(ctx context.Context, id int64) error {
	ctx = ensureContext(ctx)
	return retryOnBusy(ctx, func() error {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM items WHERE batch_id = ?", id); err != nil {
			return fmt.Errorf("delete items for batch %d: %w", id, err)
		}
		if _, err := s.db.ExecContext(ctx, "DELETE FROM batches WHERE id = ?", id); err != nil {
			return fmt.Errorf("delete batch %d: %w", id, err)
		}
		return nil
	})
}

func insertItem(ctx context.Context, tx *sql.Tx, batchID int64, position int, item *Item) error {
	resultJSON, err := encodeJSON(item.Result)
	if err != nil {
		return fmt.Errorf("encode result for item %s: %w", item.ID, err)
	}
	publishIDsJSON, err := encodeJSON(item.PublishIDs)
	if err != nil {
		return fmt.Errorf("encode publish ids for item %s: %w", item.ID, err)
	}
	publishLinksJSON, err := encodeJSON(item.PublishLinks)
	if err != nil {
		return fmt.Errorf("encode publish links for item %s: %w", item.ID, err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO items (batch_id, id, position, original_filename,
		       normalized_filename, server_filename, source_path, status,
		       result_json, publish_ids_json, publish_links_json,
		       error_message, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		batchID, item.ID, position, item.OriginalFilename,
		item.NormalizedFilename, item.ServerFilename, item.SourcePath,
		string(item.Status), resultJSON, publishIDsJSON, publishLinksJSON,
		item.ErrorMessage,
		item.CreatedAt.UTC().Format(time.RFC3339Nano),
		item.UpdatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert item %s: %w", item.ID, err)
	}
	return nil
}

func encodeJSON(value any) (string, error) {
	switch v := value.(type) {
	case *Result:
		if v == nil {
			return "", nil
		}
	case map[string]string:
		if len(v) == 0 {
			return "", nil
		}
	}
	encoded, err := json.Marshal(value)
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}

func parseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	parsed, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return parsed
}
