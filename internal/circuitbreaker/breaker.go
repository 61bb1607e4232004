// Circuit Breaker на источник: изолирует постоянно сбоящий источник от повторных запросов
package circuitbreaker

import (
	"errors"
	"sync"
	"time"

	"dropalert/configs"
	"dropalert/internal/interfaces"
)

// Состояния Circuit Breaker
type State int

const (
	StateClosed State = iota // работаем нормально
	StateOpen                // все запросы отбиваются мгновенно
	StateHalfOpen            // пробный режим: пропускаем один запрос
)

var (
	ErrCircuitOpen     = errors.New("circuit breaker is open")
	ErrTooManyRequests = errors.New("too many requests in half-open state")
)

// CircuitBreaker - счётчик последовательных неудач одного источника
// все мутации - под мьютексом: счётчики дёргают конкурентные воркеры
type CircuitBreaker struct {
	mu sync.Mutex

	// конфигурация
	failureThreshold uint32        // взвешенное кол-во неудач до перехода в Open
	cooldown         time.Duration // время ожидания перед Half-Open
	severeWeight     uint32        // вес неудачи повышенной серьёзности (429/403)

	// состояние
	state           State
	failures        uint32 // взвешенный счётчик последовательных неудач
	lastFailureTime time.Time
	halfOpenInUse   bool // занят ли единственный пробный слот Half-Open

	// статистика
	totalRequests  uint64
	totalSuccesses uint64
	totalFailures  uint64
}

// NewCircuitBreaker создаёт breaker c дефолтами на невалидных значениях конфига
func NewCircuitBreaker(config configs.CircuitBreakerConfig) *CircuitBreaker {
	if config.FailureThreshold == 0 {
		config.FailureThreshold = 5
	}
	if config.Cooldown <= 0 {
		config.Cooldown = 300 * time.Second
	}
	if config.SevereWeight == 0 {
		config.SevereWeight = 2
	}

	return &CircuitBreaker{
		failureThreshold: config.FailureThreshold,
		cooldown:         config.Cooldown,
		severeWeight:     config.SevereWeight,
		state:            StateClosed,
	}
}

// Allow резервирует право на одно обращение к источнику
// право выдаётся атомарно: в Half-Open его получает ровно один вызывающий,
// остальные отбиваются, пока пробный запрос не завершится
// возвращённая функция done обязана быть вызвана ровно один раз с исходом обращения
func (cb *CircuitBreaker) Allow() (func(err error, severe bool), error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	// breaker открыт: отбиваем мгновенно, пока не истёк cooldown
	case StateOpen:
		if time.Since(cb.lastFailureTime) < cb.cooldown {
			return nil, ErrCircuitOpen
		}
		// cooldown истёк: переходим в Half-Open, пробный слот достаётся этому вызову
		cb.state = StateHalfOpen
		cb.halfOpenInUse = true

	// пробный режим: слот уже занят - отбиваем
	case StateHalfOpen:
		if cb.halfOpenInUse {
			return nil, ErrTooManyRequests
		}
		cb.halfOpenInUse = true
	}

	cb.totalRequests++
	return cb.settle, nil
}

// settle записывает исход обращения, право на которое выдал Allow
func (cb *CircuitBreaker) settle(err error, severe bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateHalfOpen {
		cb.halfOpenInUse = false
	}

	weight := uint32(1)
	if severe {
		weight = cb.severeWeight
	}

	if err != nil {
		cb.totalFailures++
		cb.onFailure(weight)
		return
	}
	cb.totalSuccesses++
	cb.onSuccess()
}

// onFailure обрабатывает неудачное выполнение (мьютекс уже захвачен вызывающим кодом)
func (cb *CircuitBreaker) onFailure(weight uint32) {
	switch cb.state {
	case StateClosed:
		cb.failures += weight
		cb.lastFailureTime = time.Now()
		if cb.failures >= cb.failureThreshold {
			cb.state = StateOpen
		}
	case StateHalfOpen:
		// неудача пробного запроса возвращает в Open и перезапускает cooldown
		cb.state = StateOpen
		cb.lastFailureTime = time.Now()
	}
}

// onSuccess обрабатывает удачное выполнение (мьютекс уже захвачен вызывающим кодом)
func (cb *CircuitBreaker) onSuccess() {
	switch cb.state {
	case StateClosed:
		cb.failures = 0
	case StateHalfOpen:
		// успешный пробный запрос закрывает breaker и сбрасывает счётчик
		cb.state = StateClosed
		cb.failures = 0
	}
}

// IsOpen сообщает, отобьёт ли breaker запрос прямо сейчас
// Open с истёкшим cooldown считается не открытым: следующий Allow выдаст пробный слот
func (cb *CircuitBreaker) IsOpen() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state == StateOpen && time.Since(cb.lastFailureTime) < cb.cooldown
}

// Reset принудительно закрывает breaker (используется авто-хилом после успешной пробы)
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = StateClosed
	cb.failures = 0
	cb.halfOpenInUse = false
}

// GetState возвращает текущее состояние (для тестов и дашборда)
func (cb *CircuitBreaker) GetState() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// GetStats возвращает статистику запросов
func (cb *CircuitBreaker) GetStats() (total, success, failure uint64) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.totalRequests, cb.totalSuccesses, cb.totalFailures
}

// Проверка на этапе компиляции, что тип реализует интерфейс
var _ interfaces.CBInterface = (*CircuitBreaker)(nil)
