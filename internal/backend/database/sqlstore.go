package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// dialect captures the few places where the SQL backends differ.
type dialect struct {
	name string
	// schema holds idempotent DDL statements executed by CreateDatabase.
	schema []string
	// orderBy is appended to formula queries so that ordering is bytewise on every engine.
	orderBy string
	// numberedPlaceholders switches '?' to '$1, $2, ...'.
	numberedPlaceholders bool
}

// sqlStore implements DatabaseService on top of database/sql.
type sqlStore struct {
	db      *sql.DB
	dialect dialect
}

func (s *sqlStore) rebind(query string) string {
	if !s.dialect.numberedPlaceholders {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *sqlStore) CreateDatabase(ctx context.Context) error {
	for _, stmt := range s.dialect.schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply %s schema: %w", s.dialect.name, err)
		}
	}
	return nil
}

func (s *sqlStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *sqlStore) DoesDatabaseExist(ctx context.Context) bool {
	return s.db.PingContext(ctx) == nil
}

func (s *sqlStore) GetFormulas(ctx context.Context, kind FormulaKind) ([]*Formula, error) {
	table, err := kind.tableName()
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("SELECT id, formula FROM %s ORDER BY formula%s", table, s.dialect.orderBy))
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	formulas := make([]*Formula, 0)
	for rows.Next() {
		var f Formula
		if err := rows.Scan(&f.ID, &f.Formula); err != nil {
			return nil, err
		}
		formulas = append(formulas, &f)
	}
	return formulas, rows.Err()
}

func (s *sqlStore) InsertFormulas(ctx context.Context, entries []FormulaEntry) (inserted []bool, err error) {
	if len(entries) == 0 {
		return []bool{}, nil
	}
	if err := validateEntries(entries); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	inserted = make([]bool, len(entries))
	for i, entry := range entries {
		table, terr := entry.Kind.tableName()
		if terr != nil {
			return nil, terr
		}
		query := s.rebind(fmt.Sprintf("INSERT INTO %s (formula) VALUES (?) ON CONFLICT (formula) DO NOTHING", table))
		result, xerr := tx.ExecContext(ctx, query, entry.Formula)
		if xerr != nil {
			return nil, fmt.Errorf("failed to insert %s formula %q: %w", entry.Kind, entry.Formula, xerr)
		}
		affected, aerr := result.RowsAffected()
		if aerr != nil {
			return nil, aerr
		}
		inserted[i] = affected > 0
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit formulas: %w", err)
	}
	return inserted, nil
}

func (s *sqlStore) ReplaceOriginalImage(ctx context.Context, imageData string) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, "DELETE FROM original_image"); err != nil {
		return fmt.Errorf("failed to clear original image: %w", err)
	}
	if _, err = tx.ExecContext(ctx, s.rebind("INSERT INTO original_image (id, image_data) VALUES (?, ?)"), OriginalImageID, imageData); err != nil {
		return fmt.Errorf("failed to insert original image: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit original image: %w", err)
	}
	return nil
}

func (s *sqlStore) GetOriginalImage(ctx context.Context) (*OriginalImage, error) {
	row := s.db.QueryRowContext(ctx, "SELECT id, image_data FROM original_image ORDER BY id LIMIT 1")
	var img OriginalImage
	if err := row.Scan(&img.ID, &img.ImageData); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrImageNotFound
		}
		return nil, err
	}
	return &img, nil
}

func (s *sqlStore) DeleteOriginalImage(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM original_image")
	return err
}
