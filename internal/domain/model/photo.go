// Пакет model — доменные модели фотоальбома.
// Photo — маппинг таблицы photos, User — маппинг таблицы users.
package model

import "time"

// Photo — запись фотографии в библиотеке пользователя.
// После создания не изменяется; слайдшоу только читает её.
type Photo struct {
	// ID — идентификатор фотографии (bigserial)
	ID int64
	// UserID — владелец фотографии
	UserID int64
	// Filename — имя файла в директории загрузок (PA_UPLOAD_DIR)
	Filename string
	// Path — абсолютный путь к файлу на диске (заполняется сервисом, в БД не хранится)
	Path string
	// Metadata — метаданные (JSONB)
	Metadata PhotoMetadata
	// CreatedAt — время создания записи
	CreatedAt time.Time
}

// PhotoMetadata — метаданные фотографии, хранятся в колонке metadata (JSONB).
// Формат полей совместим с клиентом (camelCase).
type PhotoMetadata struct {
	// Tags — теги фотографии
	Tags []string `json:"tags"`
	// UploadDate — время загрузки в формате RFC 3339 (строка, как пришла из хранилища)
	UploadDate string `json:"uploadDate"`
	// Description — описание (опционально)
	Description *string `json:"description,omitempty"`
	// Event — событие (опционально)
	Event *string `json:"event,omitempty"`
	// Location — место съёмки (опционально)
	Location *string `json:"location,omitempty"`
	// CaptionText — подпись для слайдшоу (опционально)
	CaptionText *string `json:"captionText,omitempty"`
}

// EventName возвращает событие фотографии или пустую строку, если оно не задано.
func (m PhotoMetadata) EventName() string {
	if m.Event == nil {
		return ""
	}
	return *m.Event
}

// Caption возвращает подпись фотографии или пустую строку.
func (m PhotoMetadata) Caption() string {
	if m.CaptionText == nil {
		return ""
	}
	return *m.CaptionText
}

// HasTag проверяет наличие тега у фотографии.
func (m PhotoMetadata) HasTag(tag string) bool {
	for _, t := range m.Tags {
		if t == tag {
			return true
		}
	}
	return false
}
