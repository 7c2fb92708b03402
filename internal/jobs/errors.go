package jobs

import (
	"errors"
	"fmt"
)

// Ошибки remote job client.
var (
	// ErrRemoteSubmit — не удалось отправить job на сервис.
	ErrRemoteSubmit = errors.New("remote submit failed")

	// ErrRemotePoll — терминальная ошибка опроса статуса.
	ErrRemotePoll = errors.New("remote poll failed")

	// ErrJobFailed — сам job завершился с ошибкой на сервисе.
	ErrJobFailed = errors.New("remote job failed")

	// ErrStillRunning — потолок ожидания исчерпан, job не достиг
	// терминального статуса. Это не hard failure: job продолжает
	// выполняться на сервисе.
	ErrStillRunning = errors.New("job still running after polling ceiling")

	// ErrStopped — опрос остановлен кооперативно (stop пользователя).
	ErrStopped = errors.New("polling stopped")

	// ErrJobCancelled — job отменён на стороне сервиса. Это не ошибка
	// узла: запуск завершается как остановленный.
	ErrJobCancelled = errors.New("remote job cancelled")

	// ErrUnknownJobType — для типа узла нет адаптера.
	ErrUnknownJobType = errors.New("unknown job type")

	// ErrInvalidConfig — config узла не проходит валидацию адаптера.
	// Выполнение прерывается до любых remote вызовов.
	ErrInvalidConfig = errors.New("invalid node config")

	// ErrMalformedResponse — сервис вернул ответ неожиданной формы.
	ErrMalformedResponse = errors.New("malformed service response")
)

// terminalStatusCodes — HTTP-коды, при которых опрос прекращается
// немедленно, без retry.
var terminalStatusCodes = map[int]bool{
	400: true,
	401: true,
	403: true,
	404: true,
	410: true,
}

// StatusError — HTTP-ошибка от вычислительного сервиса.
type StatusError struct {
	// Code — HTTP-код ответа.
	Code int

	// Body — усечённое тело ответа для диагностики.
	Body string
}

// Error реализует интерфейс error.
func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("HTTP %d: %s", e.Code, e.Body)
	}
	return fmt.Sprintf("HTTP %d", e.Code)
}

// Terminal возвращает true, если код означает терминальный отказ
// (retry бессмысленен). 5xx считаются транзиентными.
func (e *StatusError) Terminal() bool {
	return terminalStatusCodes[e.Code]
}

// IsTerminalError проверяет, содержит ли цепочка ошибок терминальный
// StatusError. Сетевые ошибки и 5xx — транзиентные.
func IsTerminalError(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Terminal()
	}
	return false
}
