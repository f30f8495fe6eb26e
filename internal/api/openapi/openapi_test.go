package openapi

import (
	"context"
	"testing"
)

// TestLoad проверяет, что встроенный контракт разбирается и валиден.
func TestLoad(t *testing.T) {
	doc, err := Load(context.Background())
	if err != nil {
		t.Fatalf("Load() вернул ошибку: %v", err)
	}

	for _, path := range []string{
		"/api/auth/register", "/api/auth/login", "/api/auth/me",
		"/api/photos", "/api/photos/{id}", "/api/photos/{id}/file",
		"/api/generate-video",
	} {
		if doc.Paths.Find(path) == nil {
			t.Errorf("путь %s отсутствует в контракте", path)
		}
	}
}
