// описание и инициализация всех общих зависимостей сервиса
package core

import (
	"context"
	"fmt"
	"log"
	"runtime"

	"dropalert/configs"
	"dropalert/internal/dispatch"
	"dropalert/internal/domain/models"
	"dropalert/internal/extraction"
	inmemorycache "dropalert/internal/inmemory_cache"
	"dropalert/internal/interfaces"
	"dropalert/internal/monitor_server/handlers"
	"dropalert/internal/notify"
	"dropalert/internal/orchestrator"
	ratelimiter "dropalert/internal/rate_limiter"
	sourcehealth "dropalert/internal/source_health"
	"dropalert/internal/storage"
)

// Dependencies содержит все общие зависимости сервиса
type Dependencies struct {
	Config       *configs.Config
	Store        interfaces.Persistence
	SearchCache  *inmemorycache.ShardedCache
	ResaleCache  *inmemorycache.ShardedCache
	Orchestrator *orchestrator.Orchestrator
	Monitor      *sourcehealth.Monitor
	Dispatcher   *dispatch.Dispatcher
	Handler      *handlers.MonitorHandler

	limiters []interfaces.RateLimiter
	closers  []func()
}

// InitDependencies инициализирует общие зависимости сервиса
func InitDependencies(ctx context.Context) (*Dependencies, error) {
	// Получаем количество CPU
	currentMaxProcs := runtime.GOMAXPROCS(-1)
	fmt.Printf("Текущее значение GOMAXPROCS: %d\n", currentMaxProcs)

	// Получаем конфигурацию
	conf, err := configs.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	deps := &Dependencies{Config: conf}

	// хранилище: Postgres в проде, in-memory без DSN (локальная разработка)
	if conf.Postgres.DSN != "" {
		pgStore, err := storage.NewPostgresStore(ctx, conf.Postgres)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		deps.Store = pgStore
		deps.closers = append(deps.closers, pgStore.Close)
	} else {
		log.Println("⚠️ POSTGRES_DSN не задан, используем in-memory хранилище (данные не переживут рестарт)")
		deps.Store = storage.NewMemoryStore()
	}

	// Redis кэш cooldown-ов опционален: без него очередь отправки ходит в хранилище
	var cooldown interfaces.CooldownCache
	if conf.Redis.Enabled {
		redisCache, err := storage.NewRedisCooldownCache(conf.Redis)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		cooldown = redisCache
		deps.closers = append(deps.closers, func() {
			if err := redisCache.Close(); err != nil {
				log.Printf("error closing redis client: %v", err)
			}
		})
	}

	// создаём экземпляр inmemory cache для результатов поиска
	searchCache, err := inmemorycache.NewShardedCache(conf.Cache.NumOfShards, conf.Cache.CleanUpInterval)
	if err != nil {
		return nil, fmt.Errorf("failed to create search cache: %w", err)
	}
	deps.SearchCache = searchCache

	// создаём экземпляр inmemory cache для ресейл-сэмплов
	resaleCache, err := inmemorycache.NewShardedCache(conf.Cache.NumOfShards, conf.Cache.CleanUpInterval)
	if err != nil {
		return nil, fmt.Errorf("failed to create resale cache: %w", err)
	}
	deps.ResaleCache = resaleCache

	// очередь отправки алертов с лог-нотификатором
	// (доставка в мессенджер подключается заменой нотификатора)
	dispatcher := dispatch.NewDispatcher(conf.Dispatch, notify.NewLogNotifier(), deps.Store, cooldown)
	deps.Dispatcher = dispatcher

	// собираем HTTP коннекторы для включённых источников
	connectors := make([]interfaces.SourceConnector, 0, len(conf.Sources.Sources))
	for _, entry := range conf.Sources.Sources {
		if !entry.Enabled {
			continue
		}

		limiter, err := ratelimiter.NewJitterRateLimiter(models.DelayRange{
			Min: entry.RequestDelayMin,
			Max: entry.RequestDelayMax,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create rate limiter for %s: %w", entry.ID, err)
		}
		deps.limiters = append(deps.limiters, limiter)

		strategies := extraction.StrategiesFor(entry.Strategies)
		connectors = append(connectors, extraction.NewHTTPConnector(entry, conf.Sources, limiter, strategies))
	}

	// трекер исходов и пайплайн извлечения
	tracker := sourcehealth.NewTracker(conf.Health.OutcomeWindow)
	pipeline := extraction.NewPipeline(conf.Extraction)

	// Создаём оркестратор источников
	orch, err := orchestrator.NewOrchestrator(conf, currentMaxProcs, pipeline, deps.Store,
		tracker, dispatcher, searchCache, resaleCache, connectors...)
	if err != nil {
		return nil, fmt.Errorf("failed to create orchestrator: %w", err)
	}
	deps.Orchestrator = orch

	// монитор здоровья смотрит на реестр источников оркестратора,
	// а оркестратор читает статусы монитора при приоритизации
	monitor := sourcehealth.NewMonitor(conf.Health, tracker, deps.Store, orch, orch)
	orch.SetHealthReader(monitor)
	deps.Monitor = monitor

	// хэндлер HTTP дашборда
	deps.Handler = handlers.NewMonitorHandler(orch, monitor, deps.Store, dispatcher)

	return deps, nil
}

// Start запускает фоновые компоненты: очередь отправки, мониторинг, health-чеки
func (d *Dependencies) Start(ctx context.Context) error {
	if err := d.Dispatcher.Start(ctx); err != nil {
		return fmt.Errorf("failed to start dispatcher: %w", err)
	}
	if err := d.Orchestrator.Start(ctx); err != nil {
		return fmt.Errorf("failed to start orchestrator: %w", err)
	}
	if err := d.Monitor.Start(ctx); err != nil {
		return fmt.Errorf("failed to start health monitor: %w", err)
	}
	return nil
}

// Shutdown останавливает компоненты в обратном порядке запуска
func (d *Dependencies) Shutdown() {
	d.Monitor.Stop()
	d.Orchestrator.Shutdown()
	d.Dispatcher.Stop() // дожидается отправки принятых алертов

	for _, limiter := range d.limiters {
		limiter.Stop()
	}
	d.SearchCache.Stop()
	d.ResaleCache.Stop()

	for _, closeFn := range d.closers {
		closeFn()
	}
}
