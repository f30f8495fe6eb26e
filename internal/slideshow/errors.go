package slideshow

import (
	"errors"
	"fmt"
)

// Kind — машиночитаемый вид ошибки генерации слайдшоу.
type Kind string

const (
	KindUnauthenticated Kind = "UNAUTHENTICATED"
	KindForbidden       Kind = "FORBIDDEN"
	KindInvalidOptions  Kind = "INVALID_OPTIONS"
	KindNotFound        Kind = "NOT_FOUND"
	KindDataIntegrity   Kind = "DATA_INTEGRITY"
	KindProcessSpawn    Kind = "PROCESS_SPAWN_FAILURE"
	KindProcessExit     Kind = "PROCESS_EXIT_FAILURE"
	KindOutputMissing   Kind = "OUTPUT_MISSING"
	KindCleanup         Kind = "CLEANUP_FAILURE"
	KindInternal        Kind = "INTERNAL_ERROR"
)

// Ошибки конвейера. Вызывающий код различает их через errors.Is.
var (
	// ErrUnauthenticated — запрос без идентификатора пользователя.
	ErrUnauthenticated = errors.New("пользователь не аутентифицирован")
	// ErrForbidden — фотография принадлежит другому пользователю.
	ErrForbidden = errors.New("доступ к фотографии запрещён")
	// ErrInvalidOptions — некорректные параметры запроса.
	ErrInvalidOptions = errors.New("некорректные параметры видео")
	// ErrNotFound — фотография не найдена.
	ErrNotFound = errors.New("фотография не найдена")
	// ErrDataIntegrity — повреждённые метаданные в хранилище.
	ErrDataIntegrity = errors.New("нарушена целостность метаданных")
	// ErrProcessSpawn — не удалось запустить кодировщик.
	ErrProcessSpawn = errors.New("не удалось запустить кодировщик")
	// ErrProcessExit — кодировщик завершился с ошибкой.
	ErrProcessExit = errors.New("кодировщик завершился с ошибкой")
	// ErrOutputMissing — кодировщик завершился успешно, но видео не создано.
	ErrOutputMissing = errors.New("кодировщик не создал видео")
	// ErrCleanup — не удалось удалить временный артефакт. Только логируется.
	ErrCleanup = errors.New("ошибка удаления временного артефакта")
)

// ExitError — ненулевой код завершения кодировщика.
// Совпадает с ErrProcessExit через errors.Is.
type ExitError struct {
	// Code — код завершения процесса (-1, если процесс убит сигналом)
	Code int
	// Stderr — хвост stderr процесса для диагностики
	Stderr string
	// Err — исходная ошибка (exec.ExitError или ошибка контекста)
	Err error
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s: код %d", ErrProcessExit.Error(), e.Code)
}

// Is сопоставляет ExitError с ErrProcessExit.
func (e *ExitError) Is(target error) bool {
	return target == ErrProcessExit
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

var kindByErr = []struct {
	err  error
	kind Kind
}{
	{ErrUnauthenticated, KindUnauthenticated},
	{ErrForbidden, KindForbidden},
	{ErrInvalidOptions, KindInvalidOptions},
	{ErrNotFound, KindNotFound},
	{ErrDataIntegrity, KindDataIntegrity},
	{ErrProcessSpawn, KindProcessSpawn},
	{ErrProcessExit, KindProcessExit},
	{ErrOutputMissing, KindOutputMissing},
	{ErrCleanup, KindCleanup},
}

// KindOf возвращает вид ошибки конвейера. Для неизвестных ошибок — KindInternal.
func KindOf(err error) Kind {
	for _, k := range kindByErr {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindInternal
}

func invalidOptions(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidOptions, fmt.Sprintf(format, args...))
}
