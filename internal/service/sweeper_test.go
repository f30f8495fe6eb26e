package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bigkaa/photoalbum/internal/storage/tempstore"
)

// TestArtifactSweeper_RunOnce — забытые артефакты удаляются, активные остаются.
func TestArtifactSweeper_RunOnce(t *testing.T) {
	dir := t.TempDir()
	store, err := tempstore.New(dir, testLogger())
	if err != nil {
		t.Fatalf("tempstore.New() вернул ошибку: %v", err)
	}

	stale := filepath.Join(dir, "deadbeef.mp4")
	if err := os.WriteFile(stale, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}
	old := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(stale, old, old); err != nil {
		t.Fatal(err)
	}

	ws, err := store.Acquire()
	if err != nil {
		t.Fatalf("Acquire() вернул ошибку: %v", err)
	}
	defer ws.Release()
	if err := os.WriteFile(ws.OutputPath, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(ws.OutputPath, old, old); err != nil {
		t.Fatal(err)
	}

	sweeper := NewArtifactSweeper(store, time.Hour, time.Minute, testLogger())
	res := sweeper.RunOnce()

	if res.Removed != 1 || res.Errors != 0 {
		t.Errorf("результат = %+v, ожидается 1 удалённый файл", res)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Error("забытый артефакт не удалён")
	}
	if _, err := os.Stat(ws.OutputPath); err != nil {
		t.Errorf("активный артефакт удалён: %v", err)
	}
}

// TestArtifactSweeper_StartStop — первый проход выполняется сразу после старта.
func TestArtifactSweeper_StartStop(t *testing.T) {
	dir := t.TempDir()
	store, err := tempstore.New(dir, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	stale := filepath.Join(dir, "cafebabe.txt")
	if err := os.WriteFile(stale, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}
	old := time.Now().Add(-time.Hour)
	if err := os.Chtimes(stale, old, old); err != nil {
		t.Fatal(err)
	}

	sweeper := NewArtifactSweeper(store, time.Minute, time.Hour, testLogger())
	sweeper.Start(context.Background())

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(stale); os.IsNotExist(err) {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	sweeper.Stop()

	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Error("артефакт не удалён первым проходом")
	}
}
