package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dropalert/configs"
	"dropalert/internal/domain/models"
	"dropalert/internal/extraction"
	inmemorycache "dropalert/internal/inmemory_cache"
	"dropalert/internal/interfaces"
	sourcehealth "dropalert/internal/source_health"
	"dropalert/internal/storage"
)

// ---------- фейки ----------

// fakeConnector - коннектор-заглушка; сами данные отдаёт fakePipeline
type fakeConnector struct {
	id string
}

func (c *fakeConnector) Name() string { return c.id }

func (c *fakeConnector) Fetch(context.Context, string) ([]byte, error) { return nil, nil }

func (c *fakeConnector) Strategies() []interfaces.ParseStrategy { return nil }

var _ interfaces.SourceConnector = (*fakeConnector)(nil)

// fakePipeline отдаёт заготовленные снапшоты либо ошибку по id источника
// hold позволяет подвесить извлечение до закрытия канала
type fakePipeline struct {
	mu    sync.Mutex
	calls map[string]int
	snaps map[string][]models.ProductSnapshot
	errs  map[string]error
	holds map[string]chan struct{}
}

func newFakePipeline() *fakePipeline {
	return &fakePipeline{
		calls: make(map[string]int),
		snaps: make(map[string][]models.ProductSnapshot),
		errs:  make(map[string]error),
		holds: make(map[string]chan struct{}),
	}
}

func (p *fakePipeline) Extract(_ context.Context, conn interfaces.SourceConnector, _ string) ([]models.ProductSnapshot, error) {
	p.mu.Lock()
	p.calls[conn.Name()]++
	err := p.errs[conn.Name()]
	snaps := p.snaps[conn.Name()]
	hold := p.holds[conn.Name()]
	p.mu.Unlock()

	if hold != nil {
		<-hold
	}
	if err != nil {
		return nil, err
	}
	return snaps, nil
}

func (p *fakePipeline) callCount(sourceID string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[sourceID]
}

func (p *fakePipeline) setErr(sourceID string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err == nil {
		delete(p.errs, sourceID)
		return
	}
	p.errs[sourceID] = err
}

func (p *fakePipeline) setHold(sourceID string, hold chan struct{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.holds[sourceID] = hold
}

// fakeSink копит алерты, попавшие в очередь отправки
type fakeSink struct {
	mu     sync.Mutex
	alerts []models.Alert
}

func (s *fakeSink) Enqueue(_ context.Context, alert models.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = append(s.alerts, alert)
	return nil
}

func (s *fakeSink) all() []models.Alert {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Alert(nil), s.alerts...)
}

// fakeHealthReader отдаёт фиксированные статусы источников
type fakeHealthReader struct {
	statuses map[string]models.HealthStatus
}

func (r *fakeHealthReader) MetricFor(sourceID string) (models.HealthMetric, bool) {
	status, ok := r.statuses[sourceID]
	if !ok {
		return models.HealthMetric{}, false
	}
	return models.HealthMetric{SourceID: sourceID, Status: status}, true
}

// failingStore ломает отдельные методы хранилища для проверки паузы мониторинга
type failingStore struct {
	interfaces.Persistence
	mu           sync.Mutex
	failKeywords bool
}

func (s *failingStore) setFailKeywords(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failKeywords = v
}

func (s *failingStore) GetTrackedKeywords(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	fail := s.failKeywords
	s.mu.Unlock()

	if fail {
		return nil, errors.New("connection refused")
	}
	return s.Persistence.GetTrackedKeywords(ctx)
}

// pruningStore записывает вызовы чистки снапшотов
type pruningStore struct {
	interfaces.Persistence
	mu        sync.Mutex
	calls     int
	retention time.Duration
}

func (s *pruningStore) PruneSnapshots(_ context.Context, retention time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.retention = retention
	return 3, nil
}

func (s *pruningStore) stats() (int, time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls, s.retention
}

// ---------- хелперы ----------

func testConfig() *configs.Config {
	return &configs.Config{
		Sources: &configs.SourcesConfig{
			Sources: []configs.SourceEntry{
				{ID: "alpha", Name: "Alpha", Enabled: true, MaxConcurrent: 2, Priority: 1, PollInterval: 10 * time.Minute},
				{ID: "beta", Name: "Beta", Enabled: true, MaxConcurrent: 2, Priority: 2, PollInterval: 10 * time.Minute},
				{ID: "flipside", Name: "Flipside", Enabled: true, MaxConcurrent: 1, Priority: 3, PollInterval: 15 * time.Minute, Resale: true},
			},
		},
		Extraction: configs.DefaultExtractionConfig(),
		Orchestrator: &configs.OrchestratorConfig{
			MinResults:        2,
			BackupDelay:       10 * time.Millisecond,
			SearchTimeout:     2 * time.Second,
			MonitorInterval:   time.Hour,
			ResaleInterval:    time.Hour,
			SemaSlotTimeout:   200 * time.Millisecond,
			MaxTrackedKeyword: 10,
			CircuitBreakerCfg: configs.CircuitBreakerConfig{
				FailureThreshold: 3,
				Cooldown:         time.Minute,
				SevereWeight:     2,
			},
		},
		Detector: configs.DefaultDetectorConfig(),
		Cache: &configs.CacheConfig{
			NumOfShards: 4,
			SearchTTL:   time.Minute,
			ResaleTTL:   time.Minute,
		},
	}
}

func newCache(t *testing.T) *inmemorycache.ShardedCache {
	t.Helper()
	cache, err := inmemorycache.NewShardedCache(4, 0)
	require.NoError(t, err)
	return cache
}

func newTestOrchestrator(t *testing.T, cfg *configs.Config, pipeline Pipeline, store interfaces.Persistence, sink AlertSink) *Orchestrator {
	t.Helper()

	orch, err := NewOrchestrator(cfg, 2, pipeline, store,
		sourcehealth.NewTracker(50), sink, newCache(t), newCache(t),
		&fakeConnector{id: "alpha"}, &fakeConnector{id: "beta"}, &fakeConnector{id: "flipside"})
	require.NoError(t, err)
	t.Cleanup(orch.Shutdown)
	return orch
}

func snap(sourceID, sku, name string, price float64, inStock bool, confidence float64) models.ProductSnapshot {
	return models.ProductSnapshot{
		SourceID:   sourceID,
		SKU:        sku,
		Name:       name,
		Price:      &price,
		InStock:    inStock,
		URL:        "https://example.com/" + sku,
		CapturedAt: time.Now().UTC(),
		Confidence: confidence,
		Method:     models.MethodJSONLD,
	}
}

// ---------- конструктор ----------

func TestNewOrchestrator_Validation(t *testing.T) {
	cfg := testConfig()
	pipeline := newFakePipeline()
	store := storage.NewMemoryStore()
	tracker := sourcehealth.NewTracker(50)
	sink := &fakeSink{}

	t.Run("без коннекторов", func(t *testing.T) {
		_, err := NewOrchestrator(cfg, 2, pipeline, store, tracker, sink, newCache(t), newCache(t))
		assert.Error(t, err)
	})

	t.Run("коннектор без описания в конфиге", func(t *testing.T) {
		_, err := NewOrchestrator(cfg, 2, pipeline, store, tracker, sink, newCache(t), newCache(t),
			&fakeConnector{id: "ghost"})
		assert.Error(t, err)
	})

	t.Run("выключенный источник не попадает в рантайм", func(t *testing.T) {
		disabledCfg := testConfig()
		disabledCfg.Sources.Sources[1].Enabled = false

		orch, err := NewOrchestrator(disabledCfg, 2, pipeline, store, tracker, sink, newCache(t), newCache(t),
			&fakeConnector{id: "alpha"}, &fakeConnector{id: "beta"}, &fakeConnector{id: "flipside"})
		require.NoError(t, err)
		defer orch.Shutdown()

		ids := make([]string, 0)
		for _, src := range orch.ActiveSources() {
			ids = append(ids, src.ID)
		}
		assert.Equal(t, []string{"alpha", "flipside"}, ids)
	})
}

// ---------- поиск ----------

// результаты должны прийти со всех здоровых источников и кэшироваться
func TestSearch_MergesAndCaches(t *testing.T) {
	cfg := testConfig()
	pipeline := newFakePipeline()
	pipeline.snaps["alpha"] = []models.ProductSnapshot{snap("alpha", "AJ1", "Air Jordan 1", 180, true, 0.9)}
	pipeline.snaps["beta"] = []models.ProductSnapshot{snap("beta", "AJ1", "Air Jordan 1", 175, true, 0.8)}

	orch := newTestOrchestrator(t, cfg, pipeline, storage.NewMemoryStore(), &fakeSink{})

	results, err := orch.Search(context.Background(), "Air Jordan")
	require.NoError(t, err)
	assert.Len(t, results, 2) // разные источники - разные ключи товара

	// повторный запрос отдаётся из кэша, к источникам не ходим
	alphaCalls := pipeline.callCount("alpha")
	results, err = orch.Search(context.Background(), "air jordan")
	require.NoError(t, err)
	assert.Len(t, results, 2)
	assert.Equal(t, alphaCalls, pipeline.callCount("alpha"))
}

func TestSearch_EmptyQueryRejected(t *testing.T) {
	orch := newTestOrchestrator(t, testConfig(), newFakePipeline(), storage.NewMemoryStore(), &fakeSink{})

	_, err := orch.Search(context.Background(), "   ")
	assert.Error(t, err)
}

// деградировавший источник подключается только когда здоровые не добрали минимум
func TestExecuteSearch_BackupOnlyWhenShort(t *testing.T) {
	cfg := testConfig()
	cfg.Orchestrator.MinResults = 1

	pipeline := newFakePipeline()
	pipeline.snaps["alpha"] = []models.ProductSnapshot{snap("alpha", "AJ1", "Air Jordan 1", 180, true, 0.9)}
	pipeline.snaps["beta"] = []models.ProductSnapshot{snap("beta", "DUNK", "Nike Dunk Low", 120, true, 0.8)}

	orch := newTestOrchestrator(t, cfg, pipeline, storage.NewMemoryStore(), &fakeSink{})
	orch.SetHealthReader(&fakeHealthReader{statuses: map[string]models.HealthStatus{
		"alpha":    models.StatusHealthy,
		"beta":     models.StatusWarning,
		"flipside": models.StatusHealthy,
	}})

	// здоровые дали достаточно - деградировавший beta не опрашивается
	results, err := orch.executeSearch(context.Background(), "nike")
	require.NoError(t, err)
	assert.NotEmpty(t, results)
	assert.Zero(t, pipeline.callCount("beta"))

	// поднимаем планку - beta подключается после задержки
	cfg.Orchestrator.MinResults = 5
	results, err = orch.executeSearch(context.Background(), "nike")
	require.NoError(t, err)
	assert.Equal(t, 1, pipeline.callCount("beta"))
	assert.Len(t, results, 2)
}

// лежачий источник не опрашивается вообще
func TestExecuteSearch_DownSourceSkipped(t *testing.T) {
	pipeline := newFakePipeline()
	pipeline.snaps["alpha"] = []models.ProductSnapshot{snap("alpha", "AJ1", "Air Jordan 1", 180, true, 0.9)}

	orch := newTestOrchestrator(t, testConfig(), pipeline, storage.NewMemoryStore(), &fakeSink{})
	orch.SetHealthReader(&fakeHealthReader{statuses: map[string]models.HealthStatus{
		"alpha":    models.StatusHealthy,
		"beta":     models.StatusDown,
		"flipside": models.StatusDown,
	}})

	_, err := orch.executeSearch(context.Background(), "jordan")
	require.NoError(t, err)
	assert.Zero(t, pipeline.callCount("beta"))
	assert.Zero(t, pipeline.callCount("flipside"))
}

// после порога неудач breaker открывается и источник перестаёт опрашиваться
func TestExecuteSearch_BreakerStopsFailingSource(t *testing.T) {
	pipeline := newFakePipeline()
	pipeline.snaps["alpha"] = []models.ProductSnapshot{snap("alpha", "AJ1", "Air Jordan 1", 180, true, 0.9)}
	pipeline.errs["beta"] = extraction.ErrBlocked // severe: вес 2, порог 3 добирается за 2 неудачи

	orch := newTestOrchestrator(t, testConfig(), pipeline, storage.NewMemoryStore(), &fakeSink{})

	for i := 0; i < 3; i++ {
		_, err := orch.executeSearch(context.Background(), "jordan")
		require.NoError(t, err)
	}

	// двух severe-неудач хватило: третий проход beta уже не трогал
	assert.Equal(t, 2, pipeline.callCount("beta"))
	assert.True(t, orch.BreakerFor("beta").IsOpen())
}

// пустая выдача парсинга не открывает breaker: источник жив,
// а за деградацию разбора отвечает монитор здоровья
func TestFetchFromSource_ParseExhaustedKeepsBreakerClosed(t *testing.T) {
	pipeline := newFakePipeline()
	pipeline.errs["beta"] = fmt.Errorf("источник beta: %w", extraction.ErrParseExhausted)

	orch := newTestOrchestrator(t, testConfig(), pipeline, storage.NewMemoryStore(), &fakeSink{})
	rt := orch.runtimes["beta"]

	// порог breaker-а 3, проходов больше: каждый доходит до источника
	for i := 0; i < 5; i++ {
		_, err := orch.fetchFromSource(context.Background(), rt, "jordan")
		assert.ErrorIs(t, err, extraction.ErrParseExhausted)
	}

	assert.False(t, orch.BreakerFor("beta").IsOpen())
	assert.Equal(t, 5, pipeline.callCount("beta"))
}

// после cooldown к источнику проходит ровно один пробный запрос,
// конкурентные обращения отбиваются без похода в источник
func TestFetchFromSource_SingleTrialAfterCooldown(t *testing.T) {
	cfg := testConfig()
	cfg.Orchestrator.CircuitBreakerCfg.Cooldown = 50 * time.Millisecond

	pipeline := newFakePipeline()
	pipeline.errs["beta"] = extraction.ErrBlocked

	orch := newTestOrchestrator(t, cfg, pipeline, storage.NewMemoryStore(), &fakeSink{})
	rt := orch.runtimes["beta"]

	// две severe-неудачи открывают breaker (вес 2, порог 3)
	for i := 0; i < 2; i++ {
		_, err := orch.fetchFromSource(context.Background(), rt, "jordan")
		assert.Error(t, err)
	}
	require.True(t, orch.BreakerFor("beta").IsOpen())

	time.Sleep(70 * time.Millisecond)

	// источник починился, но отвечает медленно: проба зависает в полёте
	pipeline.setErr("beta", nil)
	hold := make(chan struct{})
	pipeline.setHold("beta", hold)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		skipped int
	)
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := orch.fetchFromSource(context.Background(), rt, "jordan")
			if errors.Is(err, errSourceSkipped) {
				mu.Lock()
				skipped++
				mu.Unlock()
			}
		}()
	}

	// дожидаемся, пока все конкуренты пробы получат отказ
	deadline := time.Now().Add(2 * time.Second)
	for {
		mu.Lock()
		n := skipped
		mu.Unlock()
		if n == 5 || time.Now().After(deadline) {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	// пока проба в полёте, к источнику больше никто не прошёл
	assert.Equal(t, 3, pipeline.callCount("beta"))

	close(hold)
	wg.Wait()

	assert.Equal(t, 5, skipped)
	assert.False(t, orch.BreakerFor("beta").IsOpen())
}

// ошибки всех источников без единого результата - ошибка поиска
func TestExecuteSearch_AllSourcesFailing(t *testing.T) {
	pipeline := newFakePipeline()
	pipeline.errs["alpha"] = errors.New("timeout")
	pipeline.errs["beta"] = errors.New("timeout")
	pipeline.errs["flipside"] = errors.New("timeout")

	orch := newTestOrchestrator(t, testConfig(), pipeline, storage.NewMemoryStore(), &fakeSink{})

	_, err := orch.executeSearch(context.Background(), "jordan")
	assert.Error(t, err)
}

func TestMergeSnapshots_KeepsHigherConfidence(t *testing.T) {
	low := snap("alpha", "AJ1", "Air Jordan 1", 180, true, 0.5)
	high := snap("alpha", "AJ1", "Air Jordan 1", 180, true, 0.9)
	other := snap("beta", "DUNK", "Nike Dunk Low", 120, true, 0.7)

	merged := mergeSnapshots([]models.ProductSnapshot{low, high, other})
	require.Len(t, merged, 2)
	assert.Equal(t, 0.9, merged[0].Confidence)
	assert.Equal(t, "DUNK", merged[1].SKU)
}

// ---------- реестр источников ----------

func TestRegistry_SetPollInterval(t *testing.T) {
	orch := newTestOrchestrator(t, testConfig(), newFakePipeline(), storage.NewMemoryStore(), &fakeSink{})

	orch.SetPollInterval("alpha", 25*time.Minute)

	for _, src := range orch.ActiveSources() {
		if src.ID == "alpha" {
			assert.Equal(t, 25*time.Minute, src.PollInterval)
			return
		}
	}
	t.Fatal("источник alpha не найден")
}

func TestProbe_ReturnsSourceError(t *testing.T) {
	pipeline := newFakePipeline()
	pipeline.errs["beta"] = errors.New("still broken")

	orch := newTestOrchestrator(t, testConfig(), pipeline, storage.NewMemoryStore(), &fakeSink{})

	assert.Error(t, orch.Probe(context.Background(), "beta"))
	assert.NoError(t, orch.Probe(context.Background(), "alpha"))
	assert.Error(t, orch.Probe(context.Background(), "ghost"))
}

// ---------- мониторинг ----------

// полный проход мониторинга: возврат товара в наличие даёт алерт подписчику
func TestProcessMonitorKeyword_RestockAlert(t *testing.T) {
	store := storage.NewMemoryStore()
	sink := &fakeSink{}

	// предыдущее состояние: товар был недоступен час назад
	prior := snap("alpha", "AJ1", "Air Jordan 1 Retro", 180, false, 0.9)
	prior.CapturedAt = time.Now().UTC().Add(-time.Hour)
	require.NoError(t, store.UpsertSnapshot(context.Background(), prior))

	store.AddSubscriber(models.SubscriberCriteria{
		RecipientID: "user-1",
		Keyword:     "air jordan",
		Kinds:       []models.ChangeKind{models.KindRestock},
		Tier:        models.TierPremium,
	})

	pipeline := newFakePipeline()
	pipeline.snaps["alpha"] = []models.ProductSnapshot{snap("alpha", "AJ1", "Air Jordan 1 Retro", 180, true, 0.9)}

	orch := newTestOrchestrator(t, testConfig(), pipeline, store, sink)

	require.NoError(t, orch.processMonitorKeyword(context.Background(), "air jordan"))

	alerts := sink.all()
	require.Len(t, alerts, 1)
	assert.Equal(t, models.KindRestock, alerts[0].Kind)
	assert.Equal(t, "user-1", alerts[0].RecipientID)
	assert.Equal(t, models.TierPremium, alerts[0].Tier)

	// новый снапшот записан: повторный проход без изменений алертов не даёт
	require.NoError(t, orch.processMonitorKeyword(context.Background(), "air jordan"))
	assert.Len(t, sink.all(), 1)
}

// недоступность хранилища ставит мониторинг на паузу и снимает её после восстановления
func TestMonitorCycle_PausesOnStorageFailure(t *testing.T) {
	store := &failingStore{Persistence: storage.NewMemoryStore()}
	pipeline := newFakePipeline()

	orch := newTestOrchestrator(t, testConfig(), pipeline, store, &fakeSink{})

	store.setFailKeywords(true)
	orch.runMonitorCycle(context.Background())
	assert.True(t, orch.isPaused())

	// на паузе джобы мониторинга не выполняются
	err := orch.processMonitorKeyword(context.Background(), "jordan")
	assert.ErrorIs(t, err, errMonitoringPaused)

	store.setFailKeywords(false)
	orch.runMonitorCycle(context.Background())
	assert.False(t, orch.isPaused())
}

// запуск оркестратора включает плановую чистку снапшотов старше окна хранения
func TestStart_RunsSnapshotPrune(t *testing.T) {
	cfg := testConfig()
	cfg.Postgres = &configs.PostgresConfig{SnapshotRetention: 24 * time.Hour}

	store := &pruningStore{Persistence: storage.NewMemoryStore()}
	orch := newTestOrchestrator(t, cfg, newFakePipeline(), store, &fakeSink{})

	require.NoError(t, orch.Start(context.Background()))

	// первая чистка выполняется сразу при запуске цикла
	deadline := time.Now().Add(time.Second)
	for {
		calls, _ := store.stats()
		if calls > 0 || time.Now().After(deadline) {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	calls, retention := store.stats()
	require.Greater(t, calls, 0)
	assert.Equal(t, 24*time.Hour, retention)
}

// ---------- ресейл ----------

// сбор ресейл-данных пишет сэмплы только с ресейл-площадок и только с ценой
func TestProcessResaleKeyword_RecordsSamples(t *testing.T) {
	store := storage.NewMemoryStore()
	pipeline := newFakePipeline()

	withPrice := snap("flipside", "AJ1", "Air Jordan 1", 320, true, 0.9)
	noPrice := snap("flipside", "DUNK", "Nike Dunk Low", 0, true, 0.9)
	noPrice.Price = nil
	pipeline.snaps["flipside"] = []models.ProductSnapshot{withPrice, noPrice}
	pipeline.snaps["alpha"] = []models.ProductSnapshot{snap("alpha", "AJ1", "Air Jordan 1", 180, true, 0.9)}

	orch := newTestOrchestrator(t, testConfig(), pipeline, store, &fakeSink{})

	require.NoError(t, orch.processResaleKeyword(context.Background(), "air jordan"))

	samples, err := store.GetResaleSamples(context.Background(), "air jordan", 10)
	require.NoError(t, err)
	require.Len(t, samples, 1)
	assert.Equal(t, "flipside", samples[0].SourceID)
	assert.Equal(t, 320.0, samples[0].Price)

	// ритейл-источники в ресейл-сборе не участвуют
	assert.Zero(t, pipeline.callCount("alpha"))
}

// ---------- shutdown ----------

func TestShutdown_RejectsNewSearches(t *testing.T) {
	cfg := testConfig()
	pipeline := newFakePipeline()
	pipeline.snaps["alpha"] = []models.ProductSnapshot{snap("alpha", "AJ1", "Air Jordan 1", 180, true, 0.9)}

	orch, err := NewOrchestrator(cfg, 2, pipeline, storage.NewMemoryStore(),
		sourcehealth.NewTracker(50), &fakeSink{}, newCache(t), newCache(t),
		&fakeConnector{id: "alpha"}, &fakeConnector{id: "beta"}, &fakeConnector{id: "flipside"})
	require.NoError(t, err)

	orch.Shutdown()

	_, err = orch.Search(context.Background(), "jordan")
	assert.ErrorIs(t, err, ErrOverloaded)
}
