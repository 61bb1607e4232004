// фоновые циклы: мониторинг отслеживаемых товаров и сбор ресейл-данных
package orchestrator

import (
	"context"
	"errors"
	"log"
	"time"

	"dropalert/internal/dispatch"
	"dropalert/internal/domain/models"
	"dropalert/internal/jobs"
)

var errMonitoringPaused = errors.New("мониторинг приостановлен: хранилище недоступно")

// интервал плановой чистки устаревших снапшотов
const pruneInterval = 6 * time.Hour

// snapshotPruner реализуется хранилищами, умеющими чистить историю снапшотов
// (in-memory хранилище держит только последнее состояние, ему чистка не нужна)
type snapshotPruner interface {
	PruneSnapshots(ctx context.Context, retention time.Duration) (int64, error)
}

// Start запускает фоновые циклы мониторинга и сбора ресейл-данных
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	if o.started {
		o.mu.Unlock()
		return errors.New("оркестратор уже запущен")
	}
	o.started = true
	loopCtx, cancel := context.WithCancel(ctx)
	o.loopCancel = cancel
	o.mu.Unlock()

	o.loopWG.Add(3)
	go o.monitorLoop(loopCtx)
	go o.resaleLoop(loopCtx)
	go o.pruneLoop(loopCtx)

	log.Printf("🚀 Оркестратор: мониторинг каждые %v, сбор ресейл-данных каждые %v",
		o.cfg.Orchestrator.MonitorInterval, o.cfg.Orchestrator.ResaleInterval)
	return nil
}

// stopLoops останавливает фоновые циклы (вызывается из Shutdown)
func (o *Orchestrator) stopLoops() {
	o.mu.Lock()
	cancel := o.loopCancel
	o.started = false
	o.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	o.loopWG.Wait()
}

func (o *Orchestrator) monitorLoop(ctx context.Context) {
	defer o.loopWG.Done()

	ticker := time.NewTicker(o.cfg.Orchestrator.MonitorInterval)
	defer ticker.Stop()

	// первый цикл сразу, не ждём целый интервал
	o.runMonitorCycle(ctx)

	for {
		select {
		case <-ticker.C:
			o.runMonitorCycle(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (o *Orchestrator) resaleLoop(ctx context.Context) {
	defer o.loopWG.Done()

	ticker := time.NewTicker(o.cfg.Orchestrator.ResaleInterval)
	defer ticker.Stop()

	o.runResaleCycle(ctx)

	for {
		select {
		case <-ticker.C:
			o.runResaleCycle(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// pruneLoop периодически удаляет снапшоты старше окна хранения
// цикл работает только с хранилищем, умеющим чистку, и при заданном окне
func (o *Orchestrator) pruneLoop(ctx context.Context) {
	defer o.loopWG.Done()

	pruner, ok := o.store.(snapshotPruner)
	if !ok || o.cfg.Postgres == nil || o.cfg.Postgres.SnapshotRetention <= 0 {
		return
	}
	retention := o.cfg.Postgres.SnapshotRetention

	o.runPrune(ctx, pruner, retention)

	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			o.runPrune(ctx, pruner, retention)
		case <-ctx.Done():
			return
		}
	}
}

func (o *Orchestrator) runPrune(ctx context.Context, pruner snapshotPruner, retention time.Duration) {
	removed, err := pruner.PruneSnapshots(ctx, retention)
	if err != nil {
		log.Printf("⚠️ Чистка снапшотов не удалась: %v", err)
		return
	}
	if removed > 0 {
		log.Printf("🧹 Чистка снапшотов: удалено %d записей старше %v", removed, retention)
	}
}

// runMonitorCycle ставит джобу мониторинга на каждое отслеживаемое ключевое слово
// недоступность хранилища приостанавливает мониторинг до следующего удачного цикла:
// без предыдущих снапшотов детектор бесполезен, а слать дубли нельзя
func (o *Orchestrator) runMonitorCycle(ctx context.Context) {
	keywords, err := o.store.GetTrackedKeywords(ctx)
	if err != nil {
		o.setPaused(true, err)
		return
	}
	o.setPaused(false, nil)

	if max := o.cfg.Orchestrator.MaxTrackedKeyword; len(keywords) > max {
		log.Printf("⚠️ Мониторинг: %d ключевых слов, обрабатываем первые %d", len(keywords), max)
		keywords = keywords[:max]
	}

	enqueued := make([]*jobs.MonitorJob, 0, len(keywords))
	for _, kw := range keywords {
		j := newMonitorJob(kw)
		if err := o.jobQueue.EnqueueWait(ctx, j); err != nil {
			log.Printf("⚠️ Мониторинг: не удалось поставить джобу %q: %v", kw, err)
			continue
		}
		enqueued = append(enqueued, j)
	}

	for _, j := range enqueued {
		if _, err := waitJobResult[any](ctx, j.ResultChan, j.ID); err != nil && !errors.Is(err, errMonitoringPaused) {
			log.Printf("⚠️ Мониторинг: джоба %q завершилась ошибкой: %v", j.Keyword, err)
		}
	}
}

// runResaleCycle ставит джобу сбора ресейл-данных на каждое ключевое слово
func (o *Orchestrator) runResaleCycle(ctx context.Context) {
	if o.isPaused() {
		return
	}

	keywords, err := o.store.GetTrackedKeywords(ctx)
	if err != nil {
		o.setPaused(true, err)
		return
	}

	if max := o.cfg.Orchestrator.MaxTrackedKeyword; len(keywords) > max {
		keywords = keywords[:max]
	}

	enqueued := make([]*jobs.ResaleJob, 0, len(keywords))
	for _, kw := range keywords {
		j := newResaleJob(kw)
		if err := o.jobQueue.EnqueueWait(ctx, j); err != nil {
			log.Printf("⚠️ Ресейл-сбор: не удалось поставить джобу %q: %v", kw, err)
			continue
		}
		enqueued = append(enqueued, j)
	}

	for _, j := range enqueued {
		if _, err := waitJobResult[any](ctx, j.ResultChan, j.ID); err != nil && !errors.Is(err, errMonitoringPaused) {
			log.Printf("⚠️ Ресейл-сбор: джоба %q завершилась ошибкой: %v", j.Keyword, err)
		}
	}
}

// processMonitorKeyword - один проход мониторинга по ключевому слову:
// поиск, сравнение с предыдущими снапшотами, генерация алертов, запись нового состояния
func (o *Orchestrator) processMonitorKeyword(ctx context.Context, keyword string) error {
	if o.isPaused() {
		return errMonitoringPaused
	}

	snaps, err := o.executeSearch(ctx, keyword)
	if err != nil {
		return err
	}

	subscribers, err := o.store.GetSubscriberCriteria(ctx, keyword)
	if err != nil {
		o.setPaused(true, err)
		return errMonitoringPaused
	}

	tiers := make(map[string]models.SubscriberTier, len(subscribers))
	for _, sub := range subscribers {
		tiers[sub.RecipientID] = sub.Tier
	}

	samples := o.resaleSamplesFor(ctx, keyword)

	for _, snap := range snaps {
		prior, found, err := o.store.GetLastSnapshot(ctx, snap.ItemKey())
		if err != nil {
			o.setPaused(true, err)
			return errMonitoringPaused
		}
		if !found {
			prior = nil
		}

		events := o.detector.Detect(snap, prior, samples)
		for _, ev := range o.detector.ForSubscribers(events, subscribers) {
			alert := dispatch.BuildAlert(ev, tiers[ev.RecipientID])
			if err := o.alerts.Enqueue(ctx, alert); err != nil {
				log.Printf("⚠️ Мониторинг %q: алерт %s не попал в очередь отправки: %v", keyword, alert.Kind, err)
			}
		}

		// снапшот пишем после детекции: упавшая запись не должна съесть событие
		if err := o.store.UpsertSnapshot(ctx, snap); err != nil {
			o.setPaused(true, err)
			return errMonitoringPaused
		}
	}
	return nil
}

// processResaleKeyword собирает цены с ресейл-площадок и пишет их в хранилище
func (o *Orchestrator) processResaleKeyword(ctx context.Context, keyword string) error {
	o.mu.RLock()
	resaleRuntimes := make([]*sourceRuntime, 0)
	for _, id := range o.order {
		if o.runtimes[id].src.Resale {
			resaleRuntimes = append(resaleRuntimes, o.runtimes[id])
		}
	}
	o.mu.RUnlock()

	if len(resaleRuntimes) == 0 {
		return nil
	}

	var recorded int
	for _, rt := range resaleRuntimes {
		snaps, err := o.fetchFromSource(ctx, rt, keyword)
		if err != nil {
			if !errors.Is(err, errSourceSkipped) {
				log.Printf("⚠️ Ресейл-сбор %q: площадка %s вернула ошибку: %v", keyword, rt.src.ID, err)
			}
			continue
		}

		for _, snap := range snaps {
			if !snap.HasPrice() {
				continue
			}
			sample := models.ResaleSample{
				Keyword:    keyword,
				SourceID:   rt.src.ID,
				Price:      *snap.Price,
				RecordedAt: snap.CapturedAt,
			}
			if err := o.store.AppendResaleSample(ctx, sample); err != nil {
				o.setPaused(true, err)
				return errMonitoringPaused
			}
			recorded++
		}
	}

	if recorded > 0 {
		// свежие сэмплы инвалидируют кэш, следующий мониторинг перечитает
		o.resaleCache.DeleteItem(resaleCacheKey(keyword))
	}
	return nil
}

func resaleCacheKey(keyword string) string {
	return "resale:" + keyword
}

// resaleSamplesFor возвращает ресейл-сэмплы из кэша или хранилища
// ошибка чтения не останавливает мониторинг: без сэмплов просто не будет flip-событий
func (o *Orchestrator) resaleSamplesFor(ctx context.Context, keyword string) []models.ResaleSample {
	key := resaleCacheKey(keyword)
	if cached, ok := o.resaleCache.GetItem(key); ok {
		if samples, valid := cached.([]models.ResaleSample); valid {
			return samples
		}
	}

	samples, err := o.store.GetResaleSamples(ctx, keyword, o.cfg.Detector.ResaleSampleCap)
	if err != nil {
		log.Printf("⚠️ Мониторинг %q: не удалось прочитать ресейл-сэмплы: %v", keyword, err)
		return nil
	}

	if len(samples) > 0 {
		o.resaleCache.AddItemWithTTL(key, samples, o.cfg.Cache.ResaleTTL)
	}
	return samples
}

// setPaused переключает флаг паузы мониторинга с логированием переходов
func (o *Orchestrator) setPaused(paused bool, cause error) {
	o.mu.Lock()
	changed := o.paused != paused
	o.paused = paused
	o.mu.Unlock()

	if !changed {
		return
	}
	if paused {
		log.Printf("🚨 Хранилище недоступно, мониторинг приостановлен: %v", cause)
	} else {
		log.Println("✅ Хранилище снова доступно, мониторинг возобновлён")
	}
}

func (o *Orchestrator) isPaused() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.paused
}
