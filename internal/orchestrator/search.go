// конкурентный поиск по источникам: сначала здоровые, резервные - только при нехватке результатов
package orchestrator

import (
	"context"
	"errors"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"dropalert/internal/domain/models"
	"dropalert/internal/extraction"
)

// errSourceSkipped - источник пропущен без обращения (открытый breaker)
var errSourceSkipped = errors.New("источник пропущен: circuit breaker открыт")

// Search - публичная точка входа поиска; результат кэшируется
func (o *Orchestrator) Search(ctx context.Context, query string) ([]models.ProductSnapshot, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil, errors.New("пустой поисковый запрос")
	}

	cacheKey := "search:" + q
	if cached, ok := o.searchCache.GetItem(cacheKey); ok {
		if snaps, valid := cached.([]models.ProductSnapshot); valid {
			return snaps, nil
		}
	}

	job := newSearchJob(q)
	if !o.jobQueue.Enqueue(job) {
		return nil, ErrOverloaded
	}

	results, err := waitJobResult[[]models.ProductSnapshot](ctx, job.ResultChan, job.ID)
	if err != nil {
		return nil, err
	}

	if len(results) > 0 {
		o.searchCache.AddItemWithTTL(cacheKey, results, o.cfg.Cache.SearchTTL)
	}
	return results, nil
}

// executeSearch опрашивает источники по схеме healthy-first:
// сразу идём в здоровые, деградировавшие подключаем после задержки
// и только если здоровые не дали минимум результатов
func (o *Orchestrator) executeSearch(ctx context.Context, query string) ([]models.ProductSnapshot, error) {
	primary, backup := o.partitionByHealth()
	if len(primary) == 0 && len(backup) == 0 {
		return nil, errors.New("нет доступных источников")
	}

	results, errCount := o.fanOut(ctx, query, primary)

	if len(results) < o.cfg.Orchestrator.MinResults && len(backup) > 0 {
		// резервные источники нездоровы: даём им шанс, но не спешим
		select {
		case <-time.After(o.cfg.Orchestrator.BackupDelay):
		case <-ctx.Done():
			return mergeSnapshots(results), ctx.Err()
		}

		backupResults, backupErrs := o.fanOut(ctx, query, backup)
		results = append(results, backupResults...)
		errCount += backupErrs
	}

	merged := mergeSnapshots(results)
	if len(merged) == 0 && errCount > 0 && errCount == len(primary)+len(backup) {
		return nil, errors.New("все источники недоступны")
	}
	return merged, nil
}

// partitionByHealth делит активные источники на здоровые и деградировавшие
// Down-источники не опрашиваются вообще; без монитора все считаются здоровыми
func (o *Orchestrator) partitionByHealth() (primary, backup []*sourceRuntime) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	for _, id := range o.order {
		rt := o.runtimes[id]

		if o.healthReader == nil {
			primary = append(primary, rt)
			continue
		}

		metric, known := o.healthReader.MetricFor(id)
		switch {
		case !known || metric.Status == models.StatusHealthy:
			primary = append(primary, rt)
		case metric.Status == models.StatusDown:
			// не трогаем лежачий источник
		default:
			backup = append(backup, rt)
		}
	}

	// внутри группы порядок по приоритету источника
	byPriority := func(group []*sourceRuntime) {
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].src.Priority < group[j].src.Priority
		})
	}
	byPriority(primary)
	byPriority(backup)
	return primary, backup
}

// fanOut конкурентно опрашивает группу источников и собирает результаты
// возвращает снапшоты и количество источников, завершившихся ошибкой
func (o *Orchestrator) fanOut(ctx context.Context, query string, group []*sourceRuntime) ([]models.ProductSnapshot, int) {
	var (
		mu       sync.Mutex
		results  []models.ProductSnapshot
		errCount int
		wg       sync.WaitGroup
	)

	for _, rt := range group {
		wg.Add(1)
		go func(rt *sourceRuntime) {
			defer wg.Done()

			snaps, err := o.fetchFromSource(ctx, rt, query)
			if err != nil {
				if !errors.Is(err, errSourceSkipped) {
					log.Printf("⚠️ Поиск %q: источник %s вернул ошибку: %v", query, rt.src.ID, err)
					mu.Lock()
					errCount++
					mu.Unlock()
				}
				return
			}

			mu.Lock()
			results = append(results, snaps...)
			mu.Unlock()
		}(rt)
	}

	wg.Wait()
	return results, errCount
}

// fetchFromSource - одно обращение к источнику под защитой breaker-а и семафора источника
// право на обращение резервируется в breaker-е до запроса: в Half-Open
// к источнику проходит ровно один пробный запрос, конкуренты отбиваются
func (o *Orchestrator) fetchFromSource(ctx context.Context, rt *sourceRuntime, query string) ([]models.ProductSnapshot, error) {
	// пер-источниковое ограничение конкурентности
	select {
	case rt.sema <- struct{}{}:
		defer func() { <-rt.sema }()
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	done, gateErr := rt.breaker.Allow()
	if gateErr != nil {
		return nil, errSourceSkipped
	}

	start := time.Now()
	snaps, err := o.pipeline.Extract(ctx, rt.conn, query)
	o.recordOutcome(rt.src.ID, start, err)

	// транслируем исход в breaker: 429/403 весят больше обычной ошибки,
	// а исчерпание стратегий парсинга сбоем источника не считается -
	// источник ответил, просто выдача пуста; это забота монитора здоровья
	breakerErr := err
	if err != nil && errors.Is(err, extraction.ErrParseExhausted) {
		breakerErr = nil
	}
	done(breakerErr, err != nil && extraction.IsSevere(err))

	if err != nil {
		return nil, err
	}
	return snaps, nil
}

// mergeSnapshots дедуплицирует снапшоты по ключу товара,
// оставляя вариант с большей уверенностью извлечения
func mergeSnapshots(snaps []models.ProductSnapshot) []models.ProductSnapshot {
	if len(snaps) <= 1 {
		return snaps
	}

	best := make(map[string]models.ProductSnapshot, len(snaps))
	order := make([]string, 0, len(snaps))
	for _, s := range snaps {
		key := s.ItemKey()
		if prev, seen := best[key]; seen {
			if s.Confidence > prev.Confidence {
				best[key] = s
			}
			continue
		}
		best[key] = s
		order = append(order, key)
	}

	merged := make([]models.ProductSnapshot, 0, len(order))
	for _, key := range order {
		merged = append(merged, best[key])
	}
	return merged
}
