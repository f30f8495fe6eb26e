package encoder

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/bigkaa/photoalbum/internal/slideshow"
)

// BuildManifest формирует манифест в формате ffconcat: по одной записи file
// на кадр в порядке таймлайна. duration записи — время до начала следующего
// кадра, у последнего — полная длительность. Последний файл повторяется,
// иначе concat игнорирует его duration.
func BuildManifest(tl *slideshow.Timeline) (string, error) {
	if tl == nil || len(tl.Segments) == 0 {
		return "", fmt.Errorf("%w: пустой таймлайн", slideshow.ErrInvalidOptions)
	}

	var b strings.Builder
	b.WriteString("ffconcat version 1.0\n")

	var last string
	for i, seg := range tl.Segments {
		path, err := segmentPath(seg)
		if err != nil {
			return "", err
		}

		hold := seg.Duration
		if i+1 < len(tl.Segments) {
			hold = tl.Segments[i+1].Start - seg.Start
		}

		fmt.Fprintf(&b, "file %s\n", quotePath(path))
		fmt.Fprintf(&b, "duration %s\n", formatSeconds(hold))
		last = path
	}
	fmt.Fprintf(&b, "file %s\n", quotePath(last))

	return b.String(), nil
}

// WriteManifest записывает манифест таймлайна в path.
func WriteManifest(path string, tl *slideshow.Timeline) error {
	content, err := BuildManifest(tl)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		return fmt.Errorf("ошибка записи манифеста %s: %w", path, err)
	}
	return nil
}

func segmentPath(seg slideshow.Segment) (string, error) {
	if seg.Photo == nil || seg.Photo.Path == "" {
		return "", fmt.Errorf("%w: у кадра нет пути к файлу", slideshow.ErrDataIntegrity)
	}
	abs, err := filepath.Abs(seg.Photo.Path)
	if err != nil {
		return "", fmt.Errorf("%w: путь %q: %v", slideshow.ErrDataIntegrity, seg.Photo.Path, err)
	}
	return abs, nil
}

// quotePath заключает путь в одинарные кавычки; кавычки внутри
// записываются как '\''.
func quotePath(path string) string {
	return "'" + strings.ReplaceAll(path, "'", `'\''`) + "'"
}

func formatSeconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 3, 64)
}
