package main

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/erazemk/posoja/internal/auth"
	"github.com/erazemk/posoja/internal/config"
	"github.com/erazemk/posoja/internal/db"
	"github.com/erazemk/posoja/internal/photos"
	"github.com/erazemk/posoja/internal/store"
)

func TestGeneratePassword(t *testing.T) {
	p, err := generatePassword(16)
	if err != nil {
		t.Fatal(err)
	}
	if len(p) != 16 {
		t.Errorf("expected 16 characters, got %d", len(p))
	}
	q, _ := generatePassword(16)
	if p == q {
		t.Error("expected different passwords")
	}
}

func TestInitDatabase(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "posoja.sqlite3")

	password, err := initDatabase(ctx, path, "Admin")
	if err != nil {
		t.Fatal(err)
	}

	database, err := db.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer database.Close()

	user, err := store.GetUserByUsername(ctx, database, "Admin")
	if err != nil || user == nil {
		t.Fatalf("expected admin user, got %v (%v)", user, err)
	}
	if user.Role != "admin" {
		t.Errorf("expected admin role, got %s", user.Role)
	}
	if !auth.CheckPassword(user.PasswordHash, password) {
		t.Error("printed password does not match stored hash")
	}
}

func TestOpenPhotoStore(t *testing.T) {
	database := db.NewTestDB(t)

	s, err := openPhotoStore(context.Background(), config.Defaults(), database)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := s.(*photos.DBStore); !ok {
		t.Errorf("expected DBStore, got %T", s)
	}

	cfg := config.Defaults()
	cfg.PhotoStore = config.PhotoStoreS3
	cfg.S3Bucket = ""
	if _, err := openPhotoStore(context.Background(), cfg, database); err == nil || !strings.Contains(err.Error(), "S3") {
		t.Errorf("expected S3 setup error, got %v", err)
	}
}
