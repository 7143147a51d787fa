package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// migrate brings the database schema up to the latest version. Each
// pending step runs in its own transaction together with the version
// bump, so a crash mid-history leaves a clean lower version and the
// next open resumes from there.
func (s *Store) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx,
		`CREATE TABLE IF NOT EXISTS schema_info (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			version INTEGER NOT NULL
		)`); err != nil {
		return fmt.Errorf("%w: create schema_info: %v", ErrUnavailable, err)
	}

	current, err := s.schemaVersion(ctx)
	if err != nil {
		return err
	}

	for _, m := range migrations() {
		if m.Version <= current {
			continue
		}
		if err := s.applyMigration(ctx, m); err != nil {
			return fmt.Errorf("%w: migrate to version %d: %v", ErrUnavailable, m.Version, err)
		}
		s.logger.Info("schema migrated", slog.Int("version", m.Version))
		current = m.Version
	}
	return nil
}

func (s *Store) schemaVersion(ctx context.Context) (int, error) {
	var version int
	err := s.db.QueryRowContext(ctx, `SELECT version FROM schema_info WHERE id = 1`).Scan(&version)
	switch {
	case err == sql.ErrNoRows:
		if _, err := s.db.ExecContext(ctx, `INSERT INTO schema_info (id, version) VALUES (1, 0)`); err != nil {
			return 0, fmt.Errorf("%w: initialise schema_info: %v", ErrUnavailable, err)
		}
		return 0, nil
	case err != nil:
		return 0, fmt.Errorf("%w: read schema version: %v", ErrUnavailable, err)
	}
	return version, nil
}

func (s *Store) applyMigration(ctx context.Context, m Migration) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, col := range m.Create {
		if err := createCollection(ctx, tx, col); err != nil {
			return err
		}
	}
	for _, up := range m.Upgrades {
		col, ok := s.collections[up.Collection]
		if !ok {
			return fmt.Errorf("upgrade targets unknown collection %q", up.Collection)
		}
		if err := upgradeRecords(ctx, tx, col, up.Apply); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx, `UPDATE schema_info SET version = ? WHERE id = 1`, m.Version); err != nil {
		return err
	}
	return tx.Commit()
}

func createCollection(ctx context.Context, tx *sql.Tx, col Collection) error {
	columns := `key TEXT PRIMARY KEY, record TEXT NOT NULL`
	for _, idx := range col.Indexes {
		columns += fmt.Sprintf(`, %q TEXT`, idx.Name)
	}
	if _, err := tx.ExecContext(ctx,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %q (%s)`, col.Name, columns)); err != nil {
		return fmt.Errorf("create collection %s: %w", col.Name, err)
	}
	for _, idx := range col.Indexes {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(
			`CREATE INDEX IF NOT EXISTS %q ON %q (%q)`,
			col.Name+"_"+idx.Name, col.Name, idx.Name)); err != nil {
			return fmt.Errorf("create index %s on %s: %w", idx.Name, col.Name, err)
		}
	}
	return nil
}

// upgradeRecords rewrites every record in the collection through fn.
// Rewritten records go back through the normal put path, so index
// columns are re-derived from the upgraded document.
func upgradeRecords(ctx context.Context, tx *sql.Tx, col Collection, fn UpgradeFunc) error {
	var records []Record
	for rec, err := range scanRows(ctx, tx, fmt.Sprintf(`SELECT key, record FROM %q ORDER BY rowid`, col.Name)) {
		if err != nil {
			return fmt.Errorf("upgrade %s: %w", col.Name, err)
		}
		records = append(records, rec)
	}

	for _, rec := range records {
		upgraded, changed, err := fn(rec.Key, rec.Data)
		if err != nil {
			return fmt.Errorf("upgrade %s/%s: %w", col.Name, rec.Key, err)
		}
		if !changed {
			continue
		}
		if err := putRaw(ctx, tx, col, rec.Key, upgraded); err != nil {
			return fmt.Errorf("upgrade %s/%s: %w", col.Name, rec.Key, err)
		}
	}
	return nil
}
