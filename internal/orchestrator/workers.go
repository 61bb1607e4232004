// пул воркеров оркестратора: джобы из очереди, глобальный семафор, graceful shutdown
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"dropalert/internal/interfaces"
	"dropalert/internal/jobs"
)

const shutdownTimeout = 10 * time.Second

var (
	// ErrOverloaded - очередь джоб переполнена, запрос отклонён
	ErrOverloaded = errors.New("оркестратор перегружен, попробуйте позже")
	// ErrSlotTimeout - воркер не дождался слота глобального семафора
	ErrSlotTimeout = errors.New("не удалось получить слот семафора: перегрузка")
)

// newSearchJob создаёт джобу поиска с буферизированным результирующим каналом
func newSearchJob(query string) *jobs.SearchJob {
	return &jobs.SearchJob{
		BaseJob: jobs.BaseJob{
			ID:         uuid.NewString(),
			ResultChan: make(chan *jobs.JobOutput, 1),
			CreatedAt:  time.Now(),
		},
		Query: query,
	}
}

func newMonitorJob(keyword string) *jobs.MonitorJob {
	return &jobs.MonitorJob{
		BaseJob: jobs.BaseJob{
			ID:         uuid.NewString(),
			ResultChan: make(chan *jobs.JobOutput, 1),
			CreatedAt:  time.Now(),
		},
		Keyword: keyword,
	}
}

func newResaleJob(keyword string) *jobs.ResaleJob {
	return &jobs.ResaleJob{
		BaseJob: jobs.BaseJob{
			ID:         uuid.NewString(),
			ResultChan: make(chan *jobs.JobOutput, 1),
			CreatedAt:  time.Now(),
		},
		Keyword: keyword,
	}
}

// waitJobResult ждёт результат джобы и приводит данные к ожидаемому типу
func waitJobResult[T any](ctx context.Context, resultChan chan *jobs.JobOutput, jobID string) (T, error) {
	var zeroVal T

	select {
	case output := <-resultChan:
		if output.Error != nil {
			return zeroVal, output.Error
		}
		if output.Data == nil {
			return zeroVal, nil
		}
		data, ok := output.Data.(T)
		if !ok {
			return zeroVal, fmt.Errorf("job %s: неожиданный тип результата %T", jobID, output.Data)
		}
		return data, nil
	case <-ctx.Done():
		return zeroVal, ctx.Err()
	}
}

// startWorkers запускает пул воркеров обработки очереди джоб
func (o *Orchestrator) startWorkers() {
	workerCtx, cancel := context.WithCancel(context.Background())
	o.workerCancel = cancel

	for i := 0; i < o.workers; i++ {
		o.wg.Add(1)
		go o.worker(workerCtx, i)
	}
	log.Printf("🔧 Оркестратор: запущено %d воркеров (семафор %d)", o.workers, cap(o.semaphore))
}

// worker - основной цикл одного воркера
func (o *Orchestrator) worker(ctx context.Context, id int) {
	defer o.wg.Done()

	for {
		select {
		case <-o.stopWorkers:
			return
		default:
		}

		job, ok := o.jobQueue.DequeueWait(ctx)
		if !ok {
			// очередь закрыта или контекст отменён
			return
		}

		// слот глобального семафора с таймаутом: на перегрузке
		// честнее быстро вернуть ошибку, чем копить латентность
		timer := time.NewTimer(o.semaSlotTimeout)
		select {
		case o.semaphore <- struct{}{}:
			timer.Stop()
		case <-timer.C:
			o.failJob(job, ErrSlotTimeout)
			continue
		case <-o.stopWorkers:
			timer.Stop()
			o.failJob(job, errors.New("оркестратор останавливается"))
			return
		}

		o.processJob(ctx, job)
		<-o.semaphore
	}
}

// processJob диспетчеризует джобу по её типу
func (o *Orchestrator) processJob(ctx context.Context, job interfaces.Job) {
	switch j := job.(type) {
	case *jobs.SearchJob:
		searchCtx, cancel := context.WithTimeout(ctx, o.cfg.Orchestrator.SearchTimeout)
		results, err := o.executeSearch(searchCtx, j.Query)
		cancel()
		j.Complete(results, err)
	case *jobs.MonitorJob:
		j.Complete(nil, o.processMonitorKeyword(ctx, j.Keyword))
	case *jobs.ResaleJob:
		j.Complete(nil, o.processResaleKeyword(ctx, j.Keyword))
	default:
		log.Printf("⚠️ Воркер: неизвестный тип джобы %T (id=%s), пропускаем", job, job.GetID())
	}
}

// failJob завершает джобу ошибкой, не выполняя её
func (o *Orchestrator) failJob(job interfaces.Job, err error) {
	switch j := job.(type) {
	case *jobs.SearchJob:
		j.Complete(nil, err)
	case *jobs.MonitorJob:
		j.Complete(nil, err)
	case *jobs.ResaleJob:
		j.Complete(nil, err)
	}
}

// Shutdown останавливает фоновые циклы и воркеры, дожидаясь текущих джоб
func (o *Orchestrator) Shutdown() {
	log.Println("🛑 Оркестратор: начинаем graceful shutdown...")

	o.stopLoops()

	close(o.stopWorkers)
	o.jobQueue.Close()
	if o.workerCancel != nil {
		o.workerCancel()
	}

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("✅ Оркестратор: все воркеры остановлены")
	case <-time.After(shutdownTimeout):
		log.Println("⚠️ Оркестратор: таймаут остановки воркеров, продолжаем завершение")
	}
}
