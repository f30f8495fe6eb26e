package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/photoalbum/internal/domain/model"
)

// PhotoRepository — доступ к таблице photos.
// Записи неизменяемы: есть только создание и чтение.
type PhotoRepository interface {
	// Create сохраняет запись фотографии, заполняет ID и CreatedAt.
	Create(ctx context.Context, p *model.Photo) error
	// GetByID возвращает фотографию по ID без проверки владельца.
	GetByID(ctx context.Context, id int64) (*model.Photo, error)
	// ListByUser возвращает фотографии пользователя, новые первыми.
	ListByUser(ctx context.Context, userID int64, filters PhotoListFilters, limit, offset int) ([]*model.Photo, error)
	// CountByUser возвращает количество фотографий пользователя с фильтрацией.
	CountByUser(ctx context.Context, userID int64, filters PhotoListFilters) (int, error)
}

// PhotoListFilters — фильтры списка фотографий.
type PhotoListFilters struct {
	// Tag — фотография должна содержать тег
	Tag *string
	// Event — точное совпадение события
	Event *string
}

type photoRepo struct {
	db DBTX
}

// NewPhotoRepository создаёт репозиторий фотографий.
func NewPhotoRepository(db DBTX) PhotoRepository {
	return &photoRepo{db: db}
}

func (r *photoRepo) Create(ctx context.Context, p *model.Photo) error {
	if p.Metadata.Tags == nil {
		p.Metadata.Tags = []string{}
	}
	meta, err := json.Marshal(p.Metadata)
	if err != nil {
		return fmt.Errorf("ошибка сериализации метаданных: %w", err)
	}

	query := `
		INSERT INTO photos (user_id, filename, metadata)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`

	if err := r.db.QueryRow(ctx, query, p.UserID, p.Filename, meta).Scan(&p.ID, &p.CreatedAt); err != nil {
		return fmt.Errorf("ошибка создания фотографии: %w", err)
	}
	return nil
}

func (r *photoRepo) GetByID(ctx context.Context, id int64) (*model.Photo, error) {
	query := `
		SELECT id, user_id, filename, metadata, created_at
		FROM photos
		WHERE id = $1`

	p, err := scanPhoto(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения фотографии: %w", err)
	}
	return p, nil
}

// buildPhotoWhere строит WHERE для списка фотографий пользователя.
// $1 всегда user_id.
func buildPhotoWhere(userID int64, filters PhotoListFilters) (string, []any) {
	conditions := []string{"user_id = $1"}
	args := []any{userID}
	argNum := 2

	if filters.Tag != nil {
		conditions = append(conditions, fmt.Sprintf("metadata -> 'tags' ? $%d", argNum))
		args = append(args, *filters.Tag)
		argNum++
	}
	if filters.Event != nil {
		conditions = append(conditions, fmt.Sprintf("metadata ->> 'event' = $%d", argNum))
		args = append(args, *filters.Event)
	}

	return "WHERE " + strings.Join(conditions, " AND "), args
}

func (r *photoRepo) ListByUser(ctx context.Context, userID int64, filters PhotoListFilters, limit, offset int) ([]*model.Photo, error) {
	where, args := buildPhotoWhere(userID, filters)
	argNum := len(args) + 1

	query := fmt.Sprintf(`
		SELECT id, user_id, filename, metadata, created_at
		FROM photos
		%s
		ORDER BY created_at DESC, id DESC
		LIMIT $%d OFFSET $%d`, where, argNum, argNum+1)
	args = append(args, limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка фотографий: %w", err)
	}
	defer rows.Close()

	result := make([]*model.Photo, 0)
	for rows.Next() {
		p, err := scanPhoto(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования фотографии: %w", err)
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

func (r *photoRepo) CountByUser(ctx context.Context, userID int64, filters PhotoListFilters) (int, error) {
	where, args := buildPhotoWhere(userID, filters)

	var count int
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM photos "+where, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("ошибка подсчёта фотографий: %w", err)
	}
	return count, nil
}

// scanPhoto читает строку photos; metadata декодируется из JSONB.
func scanPhoto(row pgx.Row) (*model.Photo, error) {
	p := &model.Photo{}
	var meta []byte
	if err := row.Scan(&p.ID, &p.UserID, &p.Filename, &meta, &p.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(meta, &p.Metadata); err != nil {
		return nil, fmt.Errorf("некорректные метаданные фотографии %d: %w", p.ID, err)
	}
	return p, nil
}
