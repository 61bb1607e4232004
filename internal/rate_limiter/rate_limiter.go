// ограничитель частоты запросов к источнику на основе канала с токенами
// интервал между токенами берётся случайно из диапазона задержек источника (джиттер),
// чтобы запросы не шли с машинной регулярностью
package ratelimiter

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"dropalert/internal/domain/models"
	"dropalert/internal/interfaces"
)

var (
	ErrStopped     = errors.New("rate limiter stopped")
	ErrInvalidRate = errors.New("delay range must be positive")
)

// JitterRateLimiter - rate limiter с джиттером на базе канала
type JitterRateLimiter struct {
	limiter chan struct{}
	ctx     context.Context
	cancel  context.CancelFunc
	mu      sync.RWMutex
	stopped bool
	delay   models.DelayRange
}

// NewJitterRateLimiter создаёт rate limiter с указанным диапазоном задержки между запросами
// внутри запускается одна горутина, которая через случайный интервал кладёт токен в канал
func NewJitterRateLimiter(delay models.DelayRange) (*JitterRateLimiter, error) {
	if delay.Min <= 0 || delay.Max < delay.Min {
		return nil, ErrInvalidRate
	}

	ctx, cancel := context.WithCancel(context.Background())

	rl := &JitterRateLimiter{
		limiter: make(chan struct{}, 1),
		ctx:     ctx,
		cancel:  cancel,
		delay:   delay,
	}

	go rl.run()

	return rl, nil
}

// nextInterval возвращает случайную задержку из диапазона [Min, Max]
func (rl *JitterRateLimiter) nextInterval() time.Duration {
	spread := rl.delay.Max - rl.delay.Min
	if spread <= 0 {
		return rl.delay.Min
	}
	return rl.delay.Min + time.Duration(rand.Int63n(int64(spread)))
}

func (rl *JitterRateLimiter) run() {
	timer := time.NewTimer(rl.nextInterval())
	defer timer.Stop()

	for {
		select {
		case <-timer.C:
			rl.mu.RLock()
			stopped := rl.stopped
			rl.mu.RUnlock()
			if stopped {
				return
			}

			// non-blocking send: если токен уже лежит в буфере, не копим "долги"
			select {
			case rl.limiter <- struct{}{}:
			case <-rl.ctx.Done():
				return
			default:
			}

			timer.Reset(rl.nextInterval())
		case <-rl.ctx.Done():
			return
		}
	}
}

// Wait блокируется, пока не появится токен, не отменится контекст или не остановят лимитер
func (rl *JitterRateLimiter) Wait(ctx context.Context) error {
	rl.mu.RLock()
	stopped := rl.stopped
	rl.mu.RUnlock()
	if stopped {
		return ErrStopped
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-rl.ctx.Done():
		return ErrStopped
	case <-rl.limiter:
		return nil
	}
}

// Stop останавливает лимитер; повторный вызов безопасен
// канал токенов не закрывается: горутина run может как раз сейчас класть токен,
// ожидающие разбужены отменой внутреннего контекста
func (rl *JitterRateLimiter) Stop() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if !rl.stopped {
		rl.stopped = true
		rl.cancel()
	}
}

// Проверка на этапе компиляции, что тип реализует интерфейс
var _ interfaces.RateLimiter = (*JitterRateLimiter)(nil)
