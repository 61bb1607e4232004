// инфраструктурные контракты: rate limiter, circuit breaker, очередь, джобы
package interfaces

import "context"

// RateLimiter - ограничитель частоты запросов к одному источнику
type RateLimiter interface {
	Wait(ctx context.Context) error
	Stop()
}

// CBInterface - circuit breaker, защищающий источник от повторных обращений при сбоях
type CBInterface interface {
	// Allow резервирует право на одно обращение: в Half-Open его получает
	// ровно один вызывающий; возвращённая функция записывает исход обращения
	// (с обычным или повышенным весом неудачи) и обязана быть вызвана
	// ровно один раз, если право выдано
	Allow() (func(err error, severe bool), error)
	// IsOpen сообщает, открыт ли breaker в данный момент
	IsOpen() bool
	// Reset принудительно возвращает breaker в Closed и сбрасывает счётчики
	Reset()
}

// FIFOQueueInterface - ограниченная FIFO очередь (дженерик)
type FIFOQueueInterface[T any] interface {
	// Enqueue - неблокирующая попытка добавить элемент; false = очередь полна или закрыта
	Enqueue(item T) bool
	// EnqueueWait блокируется на полной очереди (backpressure), уважает контекст
	EnqueueWait(ctx context.Context, item T) error
	// Dequeue - неблокирующая попытка забрать элемент
	Dequeue() (T, bool)
	// DequeueWait блокируется до появления элемента, закрытия очереди или отмены контекста
	DequeueWait(ctx context.Context) (T, bool)
	Size() int
	Close()
}

// Job - единица работы в очереди оркестратора
type Job interface {
	GetID() string
}
