// ограниченная FIFO очередь на канале (дженерик)
// используется очередью джоб оркестратора и очередью отправки алертов
package queue

import (
	"context"
	"errors"
	"sync"

	"dropalert/internal/interfaces"
)

var ErrQueueClosed = errors.New("queue is closed")

// FIFOQueue - очередь с фиксированной ёмкостью поверх буферизированного канала
// канал сам даёт строгий FIFO порядок и backpressure на полной очереди
type FIFOQueue[T any] struct {
	items  chan T
	mu     sync.RWMutex // защищает closed и закрытие канала от конкурентной записи
	closed bool
}

// NewFIFOQueue создаёт очередь заданной ёмкости
func NewFIFOQueue[T any](capacity int) *FIFOQueue[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &FIFOQueue[T]{
		items: make(chan T, capacity),
	}
}

// Enqueue - неблокирующая попытка добавить элемент
// false = очередь переполнена или закрыта
func (q *FIFOQueue[T]) Enqueue(item T) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return false
	}

	select {
	case q.items <- item:
		return true
	default:
		return false
	}
}

// EnqueueWait блокируется на полной очереди вместо потери элемента (backpressure)
// полная очередь - сигнал, что потребитель стал бутылочным горлышком
func (q *FIFOQueue[T]) EnqueueWait(ctx context.Context, item T) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.items <- item:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dequeue - неблокирующая попытка забрать элемент
func (q *FIFOQueue[T]) Dequeue() (T, bool) {
	var zeroVal T
	select {
	case item, ok := <-q.items:
		if !ok {
			return zeroVal, false
		}
		return item, true
	default:
		return zeroVal, false
	}
}

// DequeueWait блокируется до появления элемента
// после закрытия очереди дочитывает оставшиеся элементы, потом возвращает false
func (q *FIFOQueue[T]) DequeueWait(ctx context.Context) (T, bool) {
	var zeroVal T
	select {
	case item, ok := <-q.items:
		if !ok {
			return zeroVal, false
		}
		return item, true
	case <-ctx.Done():
		return zeroVal, false
	}
}

// Size возвращает текущее количество элементов в очереди
func (q *FIFOQueue[T]) Size() int {
	return len(q.items)
}

// Close безопасно закрывает очередь
// после закрытия добавление невозможно, чтение вернёт оставшиеся элементы
func (q *FIFOQueue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.closed {
		q.closed = true
		close(q.items)
	}
}

// Проверка на этапе компиляции, что тип реализует интерфейс
var _ interfaces.FIFOQueueInterface[int] = (*FIFOQueue[int])(nil)
