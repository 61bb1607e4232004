package ratelimiter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"dropalert/internal/domain/models"
	"dropalert/internal/interfaces"
)

func fixedDelay(d time.Duration) models.DelayRange {
	return models.DelayRange{Min: d, Max: d}
}

// проверяем создание лимитера и соответствие интерфейсу
func TestNewJitterRateLimiter(t *testing.T) {
	t.Run("creates with valid range", func(t *testing.T) {
		rl, err := NewJitterRateLimiter(models.DelayRange{Min: 10 * time.Millisecond, Max: 20 * time.Millisecond})
		assert.NoError(t, err)
		defer rl.Stop()
		assert.NotNil(t, rl)

		var _ interfaces.RateLimiter = rl
	})

	t.Run("rejects zero min", func(t *testing.T) {
		rl, err := NewJitterRateLimiter(models.DelayRange{Min: 0, Max: time.Second})
		assert.ErrorIs(t, err, ErrInvalidRate)
		assert.Nil(t, rl)
	})

	t.Run("rejects max below min", func(t *testing.T) {
		rl, err := NewJitterRateLimiter(models.DelayRange{Min: time.Second, Max: time.Millisecond})
		assert.ErrorIs(t, err, ErrInvalidRate)
		assert.Nil(t, rl)
	})
}

// проверяем, что последовательные запросы разделены минимум нижней границей диапазона
func TestJitterRateLimiter_Wait(t *testing.T) {
	rate := 50 * time.Millisecond
	rl, err := NewJitterRateLimiter(fixedDelay(rate))
	assert.NoError(t, err)
	defer rl.Stop()

	ctx := context.Background()

	start := time.Now()
	assert.NoError(t, rl.Wait(ctx))
	assert.NoError(t, rl.Wait(ctx))
	elapsed := time.Since(start)

	// два запроса - минимум два тика
	assert.GreaterOrEqual(t, elapsed, 2*rate-5*time.Millisecond)
}

// проверяем, что отмена контекста прерывает ожидание токена
func TestJitterRateLimiter_ContextCancel(t *testing.T) {
	rl, err := NewJitterRateLimiter(fixedDelay(time.Minute))
	assert.NoError(t, err)
	defer rl.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err = rl.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

// проверяем механизм остановки
func TestJitterRateLimiter_Stop(t *testing.T) {
	t.Run("wait after stop returns error", func(t *testing.T) {
		rl, err := NewJitterRateLimiter(fixedDelay(10 * time.Millisecond))
		assert.NoError(t, err)

		rl.Stop()

		err = rl.Wait(context.Background())
		assert.ErrorIs(t, err, ErrStopped)
	})

	t.Run("stop during active token delivery", func(t *testing.T) {
		rl, err := NewJitterRateLimiter(fixedDelay(time.Millisecond))
		assert.NoError(t, err)

		// потребитель крутится в цикле, пока остановка не разбудит его ошибкой
		done := make(chan error, 1)
		go func() {
			for {
				if err := rl.Wait(context.Background()); err != nil {
					done <- err
					return
				}
			}
		}()

		// останавливаемся посреди потока токенов: горутина run в этот момент
		// может как раз класть очередной токен в канал
		time.Sleep(20 * time.Millisecond)
		rl.Stop()

		assert.ErrorIs(t, <-done, ErrStopped)
	})

	t.Run("idempotent stop", func(t *testing.T) {
		rl, err := NewJitterRateLimiter(fixedDelay(10 * time.Millisecond))
		assert.NoError(t, err)

		// двойной вызов не должен паниковать
		rl.Stop()
		rl.Stop()
		rl.Stop()
	})
}
