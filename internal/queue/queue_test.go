package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// проверяем базовые операции очереди
func TestFIFOQueue_Basic(t *testing.T) {
	q := NewFIFOQueue[int](2)

	assert.True(t, q.Enqueue(1))
	assert.True(t, q.Enqueue(2))
	// очередь полна - неблокирующее добавление отбивается
	assert.False(t, q.Enqueue(3))
	assert.Equal(t, 2, q.Size())

	v, ok := q.Dequeue()
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	v, ok = q.Dequeue()
	assert.True(t, ok)
	assert.Equal(t, 2, v)

	// очередь пуста
	_, ok = q.Dequeue()
	assert.False(t, ok)
}

// проверяем, что EnqueueWait блокируется на полной очереди и продолжает после вычитки
func TestFIFOQueue_Backpressure(t *testing.T) {
	q := NewFIFOQueue[int](1)
	assert.True(t, q.Enqueue(1))

	unblocked := make(chan struct{})
	go func() {
		// producer блокируется, а не теряет элемент
		err := q.EnqueueWait(context.Background(), 2)
		assert.NoError(t, err)
		close(unblocked)
	}()

	select {
	case <-unblocked:
		t.Fatal("EnqueueWait должен блокироваться на полной очереди")
	case <-time.After(50 * time.Millisecond):
	}

	// потребитель освобождает место - producer просыпается
	v, ok := q.Dequeue()
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	select {
	case <-unblocked:
	case <-time.After(time.Second):
		t.Fatal("EnqueueWait не разблокировался после вычитки")
	}
}

// проверяем, что отмена контекста прерывает заблокированный EnqueueWait
func TestFIFOQueue_EnqueueWaitContextCancel(t *testing.T) {
	q := NewFIFOQueue[int](1)
	assert.True(t, q.Enqueue(1))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := q.EnqueueWait(ctx, 2)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

// проверяем FIFO порядок при конкурентных производителях:
// каждый producer пишет монотонную последовательность, на выходе
// порядок каждого producer-а должен сохраниться
func TestFIFOQueue_FIFOUnderConcurrentProducers(t *testing.T) {
	const producers = 4
	const perProducer = 50

	q := NewFIFOQueue[[2]int](producers * perProducer)

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				assert.NoError(t, q.EnqueueWait(context.Background(), [2]int{id, i}))
			}
		}(p)
	}
	wg.Wait()
	q.Close()

	lastSeen := make(map[int]int)
	for p := 0; p < producers; p++ {
		lastSeen[p] = -1
	}

	for {
		item, ok := q.DequeueWait(context.Background())
		if !ok {
			break
		}
		id, seq := item[0], item[1]
		assert.Greater(t, seq, lastSeen[id], "нарушен порядок элементов producer-а %d", id)
		lastSeen[id] = seq
	}

	for p := 0; p < producers; p++ {
		assert.Equal(t, perProducer-1, lastSeen[p])
	}
}

// проверяем поведение закрытой очереди
func TestFIFOQueue_Close(t *testing.T) {
	q := NewFIFOQueue[int](4)
	assert.True(t, q.Enqueue(1))

	q.Close()
	q.Close() // повторное закрытие не паникует

	// добавление после закрытия невозможно
	assert.False(t, q.Enqueue(2))
	assert.ErrorIs(t, q.EnqueueWait(context.Background(), 2), ErrQueueClosed)

	// оставшиеся элементы дочитываются
	v, ok := q.DequeueWait(context.Background())
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	_, ok = q.DequeueWait(context.Background())
	assert.False(t, ok)
}
