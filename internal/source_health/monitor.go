// монитор здоровья источников
// периодически классифицирует каждый источник, поднимает алерты оператору,
// аварийно замедляет опрос проблемных источников и лечит открытые breaker-ы
package sourcehealth

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"dropalert/configs"
	"dropalert/internal/domain/models"
	"dropalert/internal/interfaces"
)

// SourceRegistry - то, что монитору нужно знать об источниках
// реализуется оркестратором; SetPollInterval вправе ограничить предложенный
// интервал снизу базовым интервалом источника
type SourceRegistry interface {
	ActiveSources() []models.Source
	SetPollInterval(sourceID string, interval time.Duration)
	BreakerFor(sourceID string) interfaces.CBInterface
}

// Prober выполняет одну пробную попытку извлечения для авто-лечения
type Prober interface {
	Probe(ctx context.Context, sourceID string) error
}

// Monitor - монитор здоровья; единственный владелец классификации
type Monitor struct {
	cfg        *configs.HealthMonitorConfig
	tracker    *Tracker
	classifier *Classifier
	store      interfaces.Persistence
	registry   SourceRegistry
	prober     Prober

	mu      sync.RWMutex
	latest  map[string]models.HealthMetric // последняя метрика каждого источника
	running bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewMonitor(cfg *configs.HealthMonitorConfig, tracker *Tracker, store interfaces.Persistence, registry SourceRegistry, prober Prober) *Monitor {
	return &Monitor{
		cfg:        cfg,
		tracker:    tracker,
		classifier: NewClassifier(cfg),
		store:      store,
		registry:   registry,
		prober:     prober,
		latest:     make(map[string]models.HealthMetric),
	}
}

// Tracker отдаёт учёт исходов, в который пишет пайплайн
func (m *Monitor) Tracker() *Tracker {
	return m.tracker
}

// Start запускает циклы классификации и авто-лечения
// повторный запуск уже работающего монитора - ошибка
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return fmt.Errorf("health monitor is already running")
	}
	m.running = true
	ctx, m.cancel = context.WithCancel(ctx)
	m.mu.Unlock()

	log.Printf("🚀 Монитор здоровья источников запущен (интервал проверки: %s)", m.cfg.CheckInterval)

	m.wg.Add(2)
	go m.checkLoop(ctx)
	go m.healLoop(ctx)

	return nil
}

// Stop останавливает монитор и дожидается завершения циклов
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	cancel := m.cancel
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
	log.Printf("🛑 Монитор здоровья источников остановлен")
}

func (m *Monitor) checkLoop(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.RunCheck(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (m *Monitor) healLoop(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cfg.AutoHealInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.autoHeal(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// RunCheck выполняет один цикл классификации всех источников
func (m *Monitor) RunCheck(ctx context.Context) {
	now := time.Now().UTC()

	for _, src := range m.registry.ActiveSources() {
		breaker := m.registry.BreakerFor(src.ID)
		breakerOpen := breaker != nil && breaker.IsOpen()

		metric := m.classifier.Classify(src.ID, m.tracker.View(src.ID), src.Enabled, breakerOpen, now)

		m.mu.Lock()
		m.latest[src.ID] = metric
		m.mu.Unlock()

		// метрики пишутся best-effort: недоступное хранилище не останавливает мониторинг
		if err := m.store.AppendHealthMetric(ctx, metric); err != nil {
			log.Printf("⚠️ Не удалось сохранить метрику здоровья %s: %v", src.ID, err)
		}

		m.raiseAlerts(ctx, metric)
		m.throttle(src, metric)
	}
}

// raiseAlerts поднимает алерты оператору; дедупликация по (source, type)
// внутри окна cooldown делается хранилищем
func (m *Monitor) raiseAlerts(ctx context.Context, metric models.HealthMetric) {
	var alerts []models.HealthAlert

	if metric.Status == models.StatusCritical || metric.Status == models.StatusDown {
		alerts = append(alerts, models.HealthAlert{
			SourceID: metric.SourceID,
			Type:     "status_critical",
			Severity: metric.Status,
			Message:  fmt.Sprintf("source %s is %s", metric.SourceID, metric.Status),
			Details: map[string]any{
				"success_rate":         metric.SuccessRate,
				"consecutive_failures": metric.ConsecutiveFailures,
				"circuit_open":         metric.CircuitOpen,
				"messages":             metric.Messages,
			},
			Timestamp: metric.CheckedAt,
		})
	}

	// отдельные алерты по тегам, требующим разных действий оператора
	for _, tag := range metric.Issues {
		if tag != models.IssueRateLimiting && tag != models.IssueSiteChanges {
			continue
		}
		alerts = append(alerts, models.HealthAlert{
			SourceID: metric.SourceID,
			Type:     string(tag),
			Severity: models.StatusWarning,
			Message:  fmt.Sprintf("source %s: %s detected", metric.SourceID, tag),
			Details: map[string]any{
				"remediation": SuggestRemediation(tag),
			},
			Timestamp: metric.CheckedAt,
		})
	}

	for _, alert := range alerts {
		recorded, err := m.store.AppendHealthAlert(ctx, alert, m.cfg.AlertCooldown)
		if err != nil {
			log.Printf("⚠️ Не удалось сохранить алерт здоровья %s/%s: %v", alert.SourceID, alert.Type, err)
			continue
		}
		if recorded {
			log.Printf("🚨 Алерт здоровья: %s", alert.Message)
		}
	}
}

// throttle аварийно управляет интервалом опроса источника:
// проблемному источнику интервал растягивается в полтора раза (до потолка),
// выздоровевшему - постепенно сокращается обратно (до пола)
func (m *Monitor) throttle(src models.Source, metric models.HealthMetric) {
	// порог восстановления выше порога замедления: между ними интервал не трогаем
	const recoveryRate = 0.95

	troubled := metric.Status == models.StatusCritical ||
		metric.SuccessRate < m.cfg.SuccessRateWarning ||
		hasTag(metric.Issues, models.IssueRateLimiting)

	switch {
	case troubled:
		next := time.Duration(float64(src.PollInterval) * 1.5)
		if next > m.cfg.ThrottleMaxInterval {
			next = m.cfg.ThrottleMaxInterval
		}
		if next != src.PollInterval {
			m.registry.SetPollInterval(src.ID, next)
			log.Printf("🛑 Источник %s замедлен: интервал опроса %s -> %s", src.ID, src.PollInterval, next)
		}
	case metric.Status == models.StatusHealthy && metric.SuccessRate > recoveryRate:
		next := time.Duration(float64(src.PollInterval) * 0.8)
		if next < m.cfg.ThrottleMinInterval {
			next = m.cfg.ThrottleMinInterval
		}
		if next != src.PollInterval {
			m.registry.SetPollInterval(src.ID, next)
		}
	}
}

// autoHeal пробует закрыть открытые breaker-ы одной пробной попыткой извлечения
// Down-источники тоже пробуются: из поиска они исключены, и без пробы
// в их окне исходов никогда не появится успех
func (m *Monitor) autoHeal(ctx context.Context) {
	for _, src := range m.registry.ActiveSources() {
		breaker := m.registry.BreakerFor(src.ID)
		open := breaker != nil && breaker.IsOpen()

		metric, known := m.MetricFor(src.ID)
		down := known && metric.Status == models.StatusDown

		if !open && !down {
			continue
		}

		log.Printf("🔧 Авто-лечение: пробная попытка извлечения из %s", src.ID)
		if err := m.prober.Probe(ctx, src.ID); err != nil {
			log.Printf("⚠️ Авто-лечение %s не удалось: %v", src.ID, err)
			continue
		}

		if open {
			breaker.Reset()
		}
		log.Printf("✅ Авто-лечение: источник %s снова отвечает", src.ID)
	}
}

// MetricFor возвращает последнюю рассчитанную метрику источника
func (m *Monitor) MetricFor(sourceID string) (models.HealthMetric, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	metric, ok := m.latest[sourceID]
	return metric, ok
}

// Summary собирает сводку по всем источникам для дашборда
func (m *Monitor) Summary(ctx context.Context) (models.HealthSummary, error) {
	m.mu.RLock()
	metrics := make([]models.HealthMetric, 0, len(m.latest))
	for _, metric := range m.latest {
		metrics = append(metrics, metric)
	}
	m.mu.RUnlock()

	summary := models.HealthSummary{
		TotalSources: len(metrics),
		CheckedAt:    time.Now().UTC(),
	}

	var rateSum float64
	for _, metric := range metrics {
		switch metric.Status {
		case models.StatusHealthy:
			summary.Healthy++
		case models.StatusWarning:
			summary.Warning++
		case models.StatusCritical:
			summary.Critical++
		case models.StatusDown:
			summary.Down++
		}
		if metric.Status.WorseThan(summary.OverallStatus) {
			summary.OverallStatus = metric.Status
		}
		rateSum += metric.SuccessRate
	}
	if len(metrics) > 0 {
		summary.AvgSuccessRate = rateSum / float64(len(metrics))
	}

	alerts, err := m.store.GetRecentHealthAlerts(ctx, time.Now().Add(-24*time.Hour))
	if err != nil {
		return summary, fmt.Errorf("failed to load recent alerts: %w", err)
	}
	summary.RecentAlerts = len(alerts)

	return summary, nil
}

// TrendingIssues возвращает, какие источники страдают от каких проблем
func (m *Monitor) TrendingIssues() map[models.IssueTag][]string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	trending := make(map[models.IssueTag][]string)
	for sourceID, metric := range m.latest {
		for _, tag := range metric.Issues {
			trending[tag] = append(trending[tag], sourceID)
		}
	}
	return trending
}

func hasTag(tags []models.IssueTag, want models.IssueTag) bool {
	for _, tag := range tags {
		if tag == want {
			return true
		}
	}
	return false
}
