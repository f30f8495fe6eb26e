// Пакет encoder — драйвер внешнего кодировщика (ffmpeg).
//
// По таймлайну формируются манифест (ffconcat) и граф фильтров,
// затем ffmpeg запускается дочерним процессом. Успех — нулевой код
// завершения и непустой выходной файл. Повторных попыток нет.
package encoder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/bigkaa/photoalbum/internal/slideshow"
)

// stderrTailSize — сколько последних байт stderr сохраняется для диагностики.
const stderrTailSize = 8 << 10

// Job — одно задание кодирования.
type Job struct {
	// Timeline — план видео
	Timeline *slideshow.Timeline
	// ManifestPath — записанный манифест входных файлов
	ManifestPath string
	// OutputPath — куда записать видео
	OutputPath string
}

// Encoder — кодирование таймлайна в видеофайл.
type Encoder interface {
	Encode(ctx context.Context, job Job) error
}

// Options — параметры ffmpeg-кодировщика.
type Options struct {
	// Path — исполняемый файл ffmpeg
	Path string
	Frame
}

// FFmpeg — реализация Encoder через внешний процесс ffmpeg.
type FFmpeg struct {
	opts   Options
	logger *slog.Logger
}

// NewFFmpeg создаёт драйвер ffmpeg.
func NewFFmpeg(opts Options, logger *slog.Logger) *FFmpeg {
	if opts.Path == "" {
		opts.Path = "ffmpeg"
	}
	return &FFmpeg{
		opts:   opts,
		logger: logger.With(slog.String("component", "encoder")),
	}
}

// Args возвращает аргументы командной строки ffmpeg для задания.
func (f *FFmpeg) Args(job Job) []string {
	return []string{
		"-hide_banner",
		"-loglevel", "error",
		"-nostdin",
		"-f", "concat",
		"-safe", "0",
		"-i", job.ManifestPath,
		"-filter_complex", BuildFilterGraph(job.Timeline, f.opts.Frame),
		"-map", outputLabel,
		"-an",
		"-c:v", "libx264",
		"-pix_fmt", "yuv420p",
		"-r", fmt.Sprint(f.opts.FPS),
		"-t", formatSeconds(job.Timeline.Total()),
		"-movflags", "+faststart",
		"-y",
		job.OutputPath,
	}
}

// Encode запускает ffmpeg и ждёт его завершения.
//
// Ошибки:
//   - ErrProcessSpawn — процесс не удалось запустить
//   - ErrProcessExit (*slideshow.ExitError) — ненулевой код или отмена ctx
//   - ErrOutputMissing — код 0, но выходного файла нет или он пуст
func (f *FFmpeg) Encode(ctx context.Context, job Job) error {
	if job.Timeline == nil {
		return fmt.Errorf("%w: нет таймлайна", slideshow.ErrInvalidOptions)
	}

	args := f.Args(job)
	f.logger.Debug("Запуск ffmpeg",
		slog.String("path", f.opts.Path),
		slog.Any("args", args),
	)

	cmd := exec.CommandContext(ctx, f.opts.Path, args...)
	stderr := &tailBuffer{limit: stderrTailSize}
	cmd.Stderr = stderr
	// После отмены не ждём бесконечно потомков, держащих stderr
	cmd.WaitDelay = 2 * time.Second

	start := time.Now()
	if err := cmd.Start(); err != nil {
		f.logger.Error("Не удалось запустить ffmpeg",
			slog.String("path", f.opts.Path),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("%w: %w", slideshow.ErrProcessSpawn, err)
	}

	if err := cmd.Wait(); err != nil {
		exitErr := &slideshow.ExitError{Code: -1, Stderr: stderr.String(), Err: err}
		var ee *exec.ExitError
		if errors.As(err, &ee) {
			exitErr.Code = ee.ExitCode()
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			exitErr.Err = fmt.Errorf("%w: %w", ctxErr, err)
		}
		f.logger.Error("ffmpeg завершился с ошибкой",
			slog.Int("exit_code", exitErr.Code),
			slog.String("stderr", exitErr.Stderr),
			slog.Duration("elapsed", time.Since(start)),
			slog.String("error", err.Error()),
		)
		return exitErr
	}

	info, err := os.Stat(job.OutputPath)
	if err != nil || info.Size() == 0 {
		f.logger.Error("ffmpeg не создал видео",
			slog.String("output", job.OutputPath),
			slog.String("stderr", stderr.String()),
		)
		return fmt.Errorf("%w: %s", slideshow.ErrOutputMissing, job.OutputPath)
	}

	f.logger.Info("Видео закодировано",
		slog.Int("segments", len(job.Timeline.Segments)),
		slog.Int64("size", info.Size()),
		slog.Duration("elapsed", time.Since(start)),
	)
	return nil
}

// tailBuffer — io.Writer, хранящий только последние limit байт.
type tailBuffer struct {
	mu    sync.Mutex
	limit int
	buf   []byte
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.limit; over > 0 {
		t.buf = append(t.buf[:0], t.buf[over:]...)
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.buf)
}
