// классификация ошибок извлечения
// разные классы по-разному влияют на circuit breaker и здоровье источника:
// 429/403 - серьёзные сигналы (источник нас заметил), сетевые ошибки - обычные
package extraction

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrRateLimited - источник ответил 429, мы превысили допустимую частоту
	ErrRateLimited = errors.New("rate limited by source (HTTP 429)")
	// ErrBlocked - источник ответил 403, запросы заблокированы
	ErrBlocked = errors.New("blocked by source (HTTP 403)")
	// ErrParseExhausted - все стратегии разбора отработали, но кандидатов нет
	// это НЕ пустой результат: пустая выдача без ошибки значит "товаров нет"
	ErrParseExhausted = errors.New("parsing failed: all strategies exhausted")
)

// HTTPStatusError - не-2xx ответ источника после всех ретраев
type HTTPStatusError struct {
	StatusCode int
	SourceID   string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("source %s returned HTTP %d", e.SourceID, e.StatusCode)
}

// IsSevere сообщает, является ли ошибка серьёзным сигналом для circuit breaker
// (rate limiting и блокировка весят больше обычной сетевой ошибки)
func IsSevere(err error) bool {
	if errors.Is(err, ErrRateLimited) || errors.Is(err, ErrBlocked) {
		return true
	}

	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode == http.StatusTooManyRequests ||
			statusErr.StatusCode == http.StatusForbidden
	}

	return false
}
