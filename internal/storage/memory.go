// хранилище в памяти
// полнофункциональная реализация Persistence для локальной разработки и тестов;
// в проде вместо неё подключается Postgres
package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"dropalert/internal/domain/models"
	"dropalert/internal/interfaces"
)

type MemoryStore struct {
	mu           sync.RWMutex
	snapshots    map[string]models.ProductSnapshot // по ключу товара
	metrics      []models.HealthMetric
	healthAlerts []models.HealthAlert
	history      []models.AlertHistoryRecord
	subscribers  []models.SubscriberCriteria
	resale       map[string][]models.ResaleSample // по ключевому слову
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		snapshots: make(map[string]models.ProductSnapshot),
		resale:    make(map[string][]models.ResaleSample),
	}
}

func (m *MemoryStore) UpsertSnapshot(ctx context.Context, snap models.ProductSnapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots[snap.ItemKey()] = snap
	return nil
}

func (m *MemoryStore) GetLastSnapshot(ctx context.Context, itemKey string) (*models.ProductSnapshot, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	snap, ok := m.snapshots[itemKey]
	if !ok {
		return nil, false, nil
	}
	return &snap, true, nil
}

func (m *MemoryStore) AppendHealthMetric(ctx context.Context, metric models.HealthMetric) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.metrics = append(m.metrics, metric)
	return nil
}

func (m *MemoryStore) AppendHealthAlert(ctx context.Context, alert models.HealthAlert, cooldown time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// дедупликация (source, type) внутри окна cooldown
	for i := len(m.healthAlerts) - 1; i >= 0; i-- {
		prev := m.healthAlerts[i]
		if prev.SourceID == alert.SourceID && prev.Type == alert.Type &&
			alert.Timestamp.Sub(prev.Timestamp) < cooldown {
			return false, nil
		}
	}

	m.healthAlerts = append(m.healthAlerts, alert)
	return true, nil
}

func (m *MemoryStore) GetRecentHealthAlerts(ctx context.Context, since time.Time) ([]models.HealthAlert, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.HealthAlert
	for _, alert := range m.healthAlerts {
		if alert.Timestamp.After(since) {
			out = append(out, alert)
		}
	}
	return out, nil
}

func (m *MemoryStore) AppendAlertHistory(ctx context.Context, rec models.AlertHistoryRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.history = append(m.history, rec)
	return nil
}

func (m *MemoryStore) GetAlertHistory(ctx context.Context, recipientID, itemKey string, kind models.ChangeKind, since time.Time) ([]models.AlertHistoryRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.AlertHistoryRecord
	for _, rec := range m.history {
		if rec.RecipientID != recipientID || !rec.SentAt.After(since) {
			continue
		}
		if itemKey != "" && rec.ItemKey != itemKey {
			continue
		}
		if kind != "" && rec.Kind != kind {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// AddSubscriber регистрирует критерии подписчика (нет в интерфейсе Persistence:
// наполнение приходит из внешней админки, в памяти - руками или тестом)
func (m *MemoryStore) AddSubscriber(criteria models.SubscriberCriteria) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscribers = append(m.subscribers, criteria)
}

func (m *MemoryStore) GetSubscriberCriteria(ctx context.Context, keyword string) ([]models.SubscriberCriteria, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.SubscriberCriteria
	for _, sub := range m.subscribers {
		if sub.Keyword == keyword {
			out = append(out, sub)
		}
	}
	return out, nil
}

func (m *MemoryStore) GetTrackedKeywords(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[string]struct{})
	var out []string
	for _, sub := range m.subscribers {
		if _, dup := seen[sub.Keyword]; dup {
			continue
		}
		seen[sub.Keyword] = struct{}{}
		out = append(out, sub.Keyword)
	}
	sort.Strings(out)
	return out, nil
}

func (m *MemoryStore) AppendResaleSample(ctx context.Context, sample models.ResaleSample) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.resale[sample.Keyword] = append(m.resale[sample.Keyword], sample)
	return nil
}

func (m *MemoryStore) GetResaleSamples(ctx context.Context, keyword string, limit int) ([]models.ResaleSample, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	samples := m.resale[keyword]
	if limit > 0 && len(samples) > limit {
		samples = samples[len(samples)-limit:]
	}

	out := make([]models.ResaleSample, len(samples))
	copy(out, samples)
	return out, nil
}

// Проверка на этапе компиляции, что тип реализует интерфейс
var _ interfaces.Persistence = (*MemoryStore)(nil)
