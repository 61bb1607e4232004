// учёт исходов запросов к источникам
// пайплайн пишет сюда результат каждой попытки извлечения,
// монитор здоровья читает скользящее окно для классификации
package sourcehealth

import (
	"sync"
	"time"

	"dropalert/internal/domain/models"
)

// sourceState - накопленное состояние одного источника
type sourceState struct {
	mu                  sync.Mutex
	outcomes            []models.Outcome // скользящее окно последних исходов
	consecutiveFailures int
	lastSuccess         time.Time
	totalRequests       int // за всё время жизни процесса
	totalSuccesses      int
}

// stateView - неизменяемый срез состояния для классификатора
type stateView struct {
	Outcomes            []models.Outcome
	ConsecutiveFailures int
	LastSuccess         time.Time
	TotalRequests       int
	TotalSuccesses      int
}

// Tracker хранит состояния всех источников
// глобальный RWMutex защищает только карту, у каждого источника свой мьютекс,
// чтобы запись исходов разных источников не конкурировала
type Tracker struct {
	mu     sync.RWMutex
	states map[string]*sourceState
	window int
}

func NewTracker(window int) *Tracker {
	if window <= 0 {
		window = 50
	}
	return &Tracker{
		states: make(map[string]*sourceState),
		window: window,
	}
}

// getState возвращает состояние источника, создавая его при первом обращении
func (t *Tracker) getState(sourceID string) *sourceState {
	t.mu.RLock()
	st, ok := t.states[sourceID]
	t.mu.RUnlock()
	if ok {
		return st
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	// перепроверка: другая горутина могла успеть создать
	if st, ok = t.states[sourceID]; ok {
		return st
	}
	st = &sourceState{}
	t.states[sourceID] = st
	return st
}

// Record записывает исход одной попытки извлечения
func (t *Tracker) Record(outcome models.Outcome) {
	st := t.getState(outcome.SourceID)

	st.mu.Lock()
	defer st.mu.Unlock()

	st.outcomes = append(st.outcomes, outcome)
	if len(st.outcomes) > t.window {
		st.outcomes = st.outcomes[len(st.outcomes)-t.window:]
	}

	st.totalRequests++
	if outcome.Success {
		st.totalSuccesses++
		st.consecutiveFailures = 0
		st.lastSuccess = outcome.At
	} else {
		st.consecutiveFailures++
	}
}

// View возвращает копию состояния источника для классификации
func (t *Tracker) View(sourceID string) stateView {
	st := t.getState(sourceID)

	st.mu.Lock()
	defer st.mu.Unlock()

	outcomes := make([]models.Outcome, len(st.outcomes))
	copy(outcomes, st.outcomes)

	return stateView{
		Outcomes:            outcomes,
		ConsecutiveFailures: st.consecutiveFailures,
		LastSuccess:         st.lastSuccess,
		TotalRequests:       st.totalRequests,
		TotalSuccesses:      st.totalSuccesses,
	}
}
