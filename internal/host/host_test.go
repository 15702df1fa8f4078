// ABOUTME: Tests for the host orchestrator lifecycle.
// ABOUTME: Validates boot-time restore and graceful shutdown over a mock connector.

package host

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/vireonhq/vireon/internal/config"
	"github.com/vireonhq/vireon/internal/gateway"
	"github.com/vireonhq/vireon/internal/store"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Server:   config.ServerConfig{HTTPAddr: "127.0.0.1:0"},
		Database: config.DatabaseConfig{Path: filepath.Join(t.TempDir(), "vireon.db")},
		Auth: config.AuthConfig{
			JWTSecret: "test-secret-key-for-jwt-signing",
			TokenTTL:  time.Hour,
		},
		Bots: config.BotsConfig{
			CommandPrefix:  "!",
			Nodes:          []string{"node-1"},
			ConnectTimeout: time.Second,
		},
	}
}

// seedOnlineBot writes a user and an online bot record directly, simulating
// state left behind by a previous process.
func seedOnlineBot(t *testing.T, dbPath, credential string) {
	t.Helper()

	s, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	user := &store.User{ID: "user-1", Username: "alice", PasswordHash: "x", CreatedAt: time.Now().UTC()}
	if err := s.CreateUser(ctx, user); err != nil {
		t.Fatalf("seeding user: %v", err)
	}
	rec := &store.BotRecord{
		ID:         "bot-1",
		Credential: credential,
		OwnerID:    "user-1",
		Node:       "node-1",
		Status:     store.BotStatusOnline,
	}
	if err := s.UpsertBotRecord(ctx, rec); err != nil {
		t.Fatalf("seeding bot: %v", err)
	}
}

func TestRunRestoresAndShutsDown(t *testing.T) {
	cfg := testConfig(t)
	seedOnlineBot(t, cfg.Database.Path, "cred-placeholder-1")

	connector := gateway.NewMockConnector()
	h, err := New(cfg, slog.Default(), WithConnector(connector))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.Run(ctx) }()

	// Wait for the background restore to reconnect the seeded bot.
	deadline := time.After(5 * time.Second)
	for h.Registry().Count() == 0 {
		select {
		case <-deadline:
			t.Fatal("restore did not reconnect the seeded bot")
		case <-time.After(10 * time.Millisecond):
		}
	}
	if connector.ConnectCount("cred-placeholder-1") != 1 {
		t.Errorf("connect count = %d, want 1", connector.ConnectCount("cred-placeholder-1"))
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	if !connector.LastHandle("cred-placeholder-1").Disconnected() {
		t.Error("shutdown should disconnect the restored bot")
	}
}

func TestNewWithMissingDatabaseDir(t *testing.T) {
	cfg := testConfig(t)
	cfg.Database.Path = filepath.Join(t.TempDir(), "nested", "deeper", "vireon.db")

	h, err := New(cfg, slog.Default(), WithConnector(gateway.NewMockConnector()))
	if err != nil {
		t.Fatalf("New() should create parent directories, got %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_ = h.Run(ctx)
}
