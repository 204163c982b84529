package testutil

import (
	"database/sql"
	"io/fs"
	"sort"
	"strings"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/pratik-mahalle/panelbot/internal/domain/panel"
	"github.com/pratik-mahalle/panelbot/internal/pkg/logger"
	"github.com/pratik-mahalle/panelbot/migrations"
)

// NewTestDB creates an in-memory SQLite database with the embedded schema applied
func NewTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	// every connection to :memory: is a separate database
	db.SetMaxOpenConns(1)

	entries, err := fs.ReadDir(migrations.GetFS(), ".")
	if err != nil {
		t.Fatalf("Failed to read migrations: %v", err)
	}
	var names []string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		content, err := fs.ReadFile(migrations.GetFS(), name)
		if err != nil {
			t.Fatalf("Failed to read migration %s: %v", name, err)
		}
		if _, err := db.Exec(string(content)); err != nil {
			t.Fatalf("Failed to apply migration %s: %v", name, err)
		}
	}

	t.Cleanup(func() { CleanupDB(db) })
	return db
}

// CleanupDB closes the test database
func CleanupDB(db *sql.DB) {
	if db != nil {
		db.Close()
	}
}

// NewTestLogger returns a logger that only prints errors
func NewTestLogger() *logger.Logger {
	return logger.New(logger.Config{Level: "error", Format: "json"})
}

// MarzneshinServer returns a Marzneshin server fixture
func MarzneshinServer(id string) *panel.Server {
	return &panel.Server{
		ID:        id,
		Remark:    "mn-" + id,
		Type:      panel.ServerTypeMarzneshin,
		Host:      "https://panel.example.com",
		Username:  "root",
		Password:  "secret",
		SizeValue: 10,
	}
}

// MarzbanServer returns a Marzban server fixture
func MarzbanServer(id string) *panel.Server {
	s := MarzneshinServer(id)
	s.Remark = "mb-" + id
	s.Type = panel.ServerTypeMarzban
	return s
}
