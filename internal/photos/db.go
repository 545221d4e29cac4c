package photos

import (
	"context"
	"database/sql"
	"fmt"
)

// DBStore keeps photos in the photos table of the application database.
type DBStore struct {
	DB *sql.DB
}

func (s *DBStore) Put(ctx context.Context, key string, data []byte, mime string) error {
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO photos (key, data, mime) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET data = excluded.data, mime = excluded.mime`,
		key, data, mime,
	)
	if err != nil {
		return fmt.Errorf("storing photo: %w", err)
	}
	return nil
}

func (s *DBStore) Get(ctx context.Context, key string) ([]byte, string, error) {
	var data []byte
	var mime string
	err := s.DB.QueryRowContext(ctx, `SELECT data, mime FROM photos WHERE key = ?`, key).Scan(&data, &mime)
	if err == sql.ErrNoRows {
		return nil, "", ErrNotFound
	}
	if err != nil {
		return nil, "", fmt.Errorf("loading photo: %w", err)
	}
	return data, mime, nil
}

func (s *DBStore) Delete(ctx context.Context, key string) error {
	if _, err := s.DB.ExecContext(ctx, `DELETE FROM photos WHERE key = ?`, key); err != nil {
		return fmt.Errorf("deleting photo: %w", err)
	}
	return nil
}
