package repository

import (
	"context"
	"fmt"

	"github.com/conorfennell/studydeck/internal/domain"
	"github.com/conorfennell/studydeck/internal/storage"
)

// PutTempFile stages a transient binary blob under a fresh id. Temp files
// are create-only: the id is returned to the owning workflow, which must
// delete the file when done, including on its error paths.
func (r *Repository) PutTempFile(ctx context.Context, kind string, blob []byte) (domain.TempFile, error) {
	tf := domain.TempFile{ID: domain.NewID(), Kind: kind, Blob: blob}

	err := r.store.RunInTransaction(ctx, func(tx *storage.Tx) error {
		var existing domain.TempFile
		found, err := tx.Get(ctx, storage.CollectionTempFiles, tf.ID, &existing)
		if err != nil {
			return err
		}
		if found {
			return fmt.Errorf("%w: temp file %s", ErrDuplicate, tf.ID)
		}
		return tx.Put(ctx, storage.CollectionTempFiles, tf.ID, tf)
	})
	if err != nil {
		return domain.TempFile{}, fmt.Errorf("put temp file: %w", err)
	}
	return tf, nil
}

// GetTempFile loads a staged blob by id.
func (r *Repository) GetTempFile(ctx context.Context, id string) (domain.TempFile, error) {
	var tf domain.TempFile
	found, err := r.store.Get(ctx, storage.CollectionTempFiles, id, &tf)
	if err != nil {
		return domain.TempFile{}, fmt.Errorf("get temp file %s: %w", id, err)
	}
	if !found {
		return domain.TempFile{}, fmt.Errorf("%w: %s", ErrTempFileNotFound, id)
	}
	return tf, nil
}

// DeleteTempFile removes a staged blob. Deleting an absent id is a no-op,
// so cleanup paths can run unconditionally.
func (r *Repository) DeleteTempFile(ctx context.Context, id string) error {
	if err := r.store.Delete(ctx, storage.CollectionTempFiles, id); err != nil {
		return fmt.Errorf("delete temp file %s: %w", id, err)
	}
	return nil
}
