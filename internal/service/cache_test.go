package service

import (
	"testing"
	"time"

	"github.com/bigkaa/photoalbum/internal/domain/model"
)

// TestPhotoCache_GetSet проверяет базовые операции Get/Set.
func TestPhotoCache_GetSet(t *testing.T) {
	cache := NewPhotoCache(100, 5*time.Minute)

	if _, ok := cache.Get(1); ok {
		t.Fatal("ожидался cache miss для нового ключа")
	}

	cache.Set(&model.Photo{ID: 1, UserID: 7, Filename: "a.jpg"})
	got, ok := cache.Get(1)
	if !ok {
		t.Fatal("ожидался cache hit после Set")
	}
	if got.UserID != 7 || got.Filename != "a.jpg" {
		t.Errorf("запись из кэша = %+v", got)
	}

	// Изменение полученной копии не портит кэш
	got.Filename = "changed.jpg"
	again, _ := cache.Get(1)
	if again.Filename != "a.jpg" {
		t.Errorf("кэш изменён через возвращённую запись: %q", again.Filename)
	}
}

// TestPhotoCache_TTLExpiration проверяет истечение TTL.
func TestPhotoCache_TTLExpiration(t *testing.T) {
	cache := NewPhotoCache(100, 50*time.Millisecond)
	cache.Set(&model.Photo{ID: 2})

	time.Sleep(120 * time.Millisecond)

	if _, ok := cache.Get(2); ok {
		t.Error("ожидался cache miss после истечения TTL")
	}
}

// TestPhotoCache_Eviction проверяет вытеснение при переполнении.
func TestPhotoCache_Eviction(t *testing.T) {
	cache := NewPhotoCache(2, time.Minute)
	cache.Set(&model.Photo{ID: 1})
	cache.Set(&model.Photo{ID: 2})
	cache.Set(&model.Photo{ID: 3})

	if cache.Len() != 2 {
		t.Errorf("Len() = %d, ожидается 2", cache.Len())
	}
	if _, ok := cache.Get(1); ok {
		t.Error("самая старая запись должна быть вытеснена")
	}
}
