// оркестратор источников: владеет коннекторами, очередью джоб и воркерами
// решает, какие источники опрашивать и в каком порядке, исходя из их здоровья
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"dropalert/configs"
	changedetector "dropalert/internal/change_detector"
	"dropalert/internal/circuitbreaker"
	"dropalert/internal/domain/models"
	inmemorycache "dropalert/internal/inmemory_cache"
	"dropalert/internal/interfaces"
	"dropalert/internal/queue"
	sourcehealth "dropalert/internal/source_health"
)

// AlertSink - приёмник готовых алертов (очередь отправки)
type AlertSink interface {
	Enqueue(ctx context.Context, alert models.Alert) error
}

// HealthReader - источник последних метрик здоровья для приоритизации
// (устанавливается после создания монитора, до этого все источники считаются здоровыми)
type HealthReader interface {
	MetricFor(sourceID string) (models.HealthMetric, bool)
}

// sourceRuntime - рантайм-состояние одного источника
type sourceRuntime struct {
	src     models.Source
	conn    interfaces.SourceConnector
	breaker interfaces.CBInterface
	sema    chan struct{} // ограничение конкурентности конкретного источника
}

// Orchestrator - менеджер источников
type Orchestrator struct {
	cfg      *configs.Config
	pipeline Pipeline
	store    interfaces.Persistence
	tracker  *sourcehealth.Tracker
	detector *changedetector.Detector
	alerts   AlertSink

	searchCache *inmemorycache.ShardedCache // кэш результатов поиска
	resaleCache *inmemorycache.ShardedCache // кэш средних ресейл-цен

	// Поля для управления нагрузкой --------------------------------------------------------------------------
	semaphore       chan struct{}                                 // глобальный семафор одновременных запросов
	jobQueue        interfaces.FIFOQueueInterface[interfaces.Job] // очередь джоб
	workers         int                                           // количество воркеров
	stopWorkers     chan struct{}                                 // сигнал остановки воркеров
	semaSlotTimeout time.Duration                                 // таймаут ожидания слота глобального семафора
	wg              sync.WaitGroup                                // для graceful shutdown
	// --------------------------------------------------------------------------------------------------------

	mu           sync.RWMutex
	runtimes     map[string]*sourceRuntime
	order        []string // стабильный порядок источников
	healthReader HealthReader
	paused       bool // мониторинг приостановлен из-за недоступности хранилища

	workerCancel context.CancelFunc
	loopCancel   context.CancelFunc
	loopWG       sync.WaitGroup
	started      bool
}

// Pipeline - то, что оркестратору нужно от пайплайна извлечения
type Pipeline interface {
	Extract(ctx context.Context, conn interfaces.SourceConnector, query string) ([]models.ProductSnapshot, error)
}

// Load - параметры системы управления нагрузкой оркестратора
type Load struct {
	numOfWorkers  int
	semaphoreSize int
	queueSize     int
}

// NewLoad рассчитывает нагрузочные параметры относительно доступных ядер
func NewLoad(numCPUCores int) *Load {
	numOfWorkers := numCPUCores * 2
	semaphoreSize := int(math.Ceil(0.7 * float64(numOfWorkers))) // 70% от количества воркеров
	queueSize := semaphoreSize * 3

	return &Load{
		numOfWorkers:  numOfWorkers,
		semaphoreSize: semaphoreSize,
		queueSize:     queueSize,
	}
}

// NewOrchestrator создаёт оркестратор и запускает воркеры
// коннекторы сопоставляются с источниками конфига по имени
func NewOrchestrator(cfg *configs.Config,
	numCPUCores int,
	pipeline Pipeline,
	store interfaces.Persistence,
	tracker *sourcehealth.Tracker,
	alerts AlertSink,
	searchCache *inmemorycache.ShardedCache,
	resaleCache *inmemorycache.ShardedCache,
	connectors ...interfaces.SourceConnector) (*Orchestrator, error) {

	load := NewLoad(numCPUCores)

	// Валидация
	if pipeline == nil {
		return nil, errors.New("pipeline обязателен")
	}
	if store == nil || tracker == nil || alerts == nil {
		return nil, errors.New("store, tracker и alerts обязательны")
	}
	if searchCache == nil || resaleCache == nil {
		return nil, errors.New("кэши обязательны")
	}
	if len(connectors) == 0 {
		return nil, errors.New("нужен хотя бы один коннектор источника")
	}

	entries := make(map[string]configs.SourceEntry)
	for _, entry := range cfg.Sources.Sources {
		entries[entry.ID] = entry
	}

	o := &Orchestrator{
		cfg:             cfg,
		pipeline:        pipeline,
		store:           store,
		tracker:         tracker,
		detector:        changedetector.NewDetector(cfg.Detector),
		alerts:          alerts,
		searchCache:     searchCache,
		resaleCache:     resaleCache,
		workers:         load.numOfWorkers,
		semaphore:       make(chan struct{}, load.semaphoreSize),
		jobQueue:        queue.NewFIFOQueue[interfaces.Job](load.queueSize),
		stopWorkers:     make(chan struct{}),
		semaSlotTimeout: cfg.Orchestrator.SemaSlotTimeout,
		runtimes:        make(map[string]*sourceRuntime),
	}

	for _, conn := range connectors {
		entry, ok := entries[conn.Name()]
		if !ok {
			return nil, fmt.Errorf("коннектор %q не описан в конфиге источников", conn.Name())
		}
		if !entry.Enabled {
			continue
		}

		maxConcurrent := entry.MaxConcurrent
		if maxConcurrent <= 0 {
			maxConcurrent = 1
		}

		o.runtimes[entry.ID] = &sourceRuntime{
			src: models.Source{
				ID:            entry.ID,
				Name:          entry.Name,
				Enabled:       entry.Enabled,
				PollInterval:  entry.PollInterval,
				MaxConcurrent: maxConcurrent,
				Priority:      entry.Priority,
				RequestDelay:  models.DelayRange{Min: entry.RequestDelayMin, Max: entry.RequestDelayMax},
				Resale:        entry.Resale,
			},
			conn:    conn,
			breaker: circuitbreaker.NewCircuitBreaker(cfg.Orchestrator.CircuitBreakerCfg),
			sema:    make(chan struct{}, maxConcurrent),
		}
		o.order = append(o.order, entry.ID)
	}

	if len(o.runtimes) == 0 {
		return nil, errors.New("все источники выключены в конфиге")
	}

	// запускаем воркеры для обработки очереди
	o.startWorkers()

	return o, nil
}

// SetHealthReader подключает монитор здоровья; до этого приоритизация
// считает все источники здоровыми
func (o *Orchestrator) SetHealthReader(hr HealthReader) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.healthReader = hr
}

// ActiveSources возвращает копии описаний источников с текущими интервалами опроса
func (o *Orchestrator) ActiveSources() []models.Source {
	o.mu.RLock()
	defer o.mu.RUnlock()

	out := make([]models.Source, 0, len(o.order))
	for _, id := range o.order {
		out = append(out, o.runtimes[id].src)
	}
	return out
}

// SetPollInterval применяет аварийный троттлинг от монитора здоровья
func (o *Orchestrator) SetPollInterval(sourceID string, interval time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if rt, ok := o.runtimes[sourceID]; ok && interval > 0 {
		rt.src.PollInterval = interval
	}
}

// BreakerFor возвращает circuit breaker источника
func (o *Orchestrator) BreakerFor(sourceID string) interfaces.CBInterface {
	o.mu.RLock()
	defer o.mu.RUnlock()

	if rt, ok := o.runtimes[sourceID]; ok {
		return rt.breaker
	}
	return nil
}

// Probe выполняет одну пробную попытку извлечения для авто-лечения
// идёт мимо breaker-а: смысл пробы - проверить источник, пока breaker открыт
func (o *Orchestrator) Probe(ctx context.Context, sourceID string) error {
	o.mu.RLock()
	rt, ok := o.runtimes[sourceID]
	o.mu.RUnlock()
	if !ok {
		return fmt.Errorf("неизвестный источник: %s", sourceID)
	}

	probeQuery := "jordan"
	if keywords, err := o.store.GetTrackedKeywords(ctx); err == nil && len(keywords) > 0 {
		probeQuery = keywords[0]
	}

	start := time.Now()
	_, err := o.pipeline.Extract(ctx, rt.conn, probeQuery)
	o.recordOutcome(sourceID, start, err)
	return err
}

// recordOutcome пишет исход попытки в трекер здоровья
func (o *Orchestrator) recordOutcome(sourceID string, start time.Time, err error) {
	outcome := models.Outcome{
		SourceID: sourceID,
		Success:  err == nil,
		Latency:  time.Since(start),
		At:       time.Now().UTC(),
	}
	if err != nil {
		outcome.ErrorText = err.Error()
	}
	o.tracker.Record(outcome)
}

// проверки соответствия интерфейсам монитора здоровья на этапе компиляции
var (
	_ sourcehealth.SourceRegistry = (*Orchestrator)(nil)
	_ sourcehealth.Prober         = (*Orchestrator)(nil)
)
