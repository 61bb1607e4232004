// очередь отправки алертов: один потребитель, ограниченная ёмкость
// здесь живут все правила "не спамить": cooldown по ключу дедупликации,
// дневные квоты по тарифу и пауза между отправками
package dispatch

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"dropalert/configs"
	"dropalert/internal/domain/models"
	"dropalert/internal/interfaces"
	"dropalert/internal/queue"
)

// Dispatcher - владелец очереди алертов и единственный, кто зовёт нотификатор
type Dispatcher struct {
	cfg      *configs.DispatchConfig
	alerts   *queue.FIFOQueue[models.Alert]
	notifier interfaces.Notifier
	store    interfaces.Persistence
	cooldown interfaces.CooldownCache // опционален; при nil или ошибке ходим в store

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewDispatcher(cfg *configs.DispatchConfig, notifier interfaces.Notifier, store interfaces.Persistence, cooldown interfaces.CooldownCache) *Dispatcher {
	return &Dispatcher{
		cfg:      cfg,
		alerts:   queue.NewFIFOQueue[models.Alert](cfg.QueueCapacity),
		notifier: notifier,
		store:    store,
		cooldown: cooldown,
	}
}

// Enqueue ставит алерт в очередь
// на полной очереди продюсер блокируется: давить на нотификатор нельзя,
// а терять алерты - тем более
func (d *Dispatcher) Enqueue(ctx context.Context, alert models.Alert) error {
	return d.alerts.EnqueueWait(ctx, alert)
}

// Saturation возвращает заполненность очереди [0,1] для мониторинга
func (d *Dispatcher) Saturation() float64 {
	return float64(d.alerts.Size()) / float64(d.cfg.QueueCapacity)
}

// Start запускает единственного потребителя очереди
func (d *Dispatcher) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running {
		return fmt.Errorf("dispatcher is already running")
	}
	d.running = true
	ctx, d.cancel = context.WithCancel(ctx)

	d.wg.Add(1)
	go d.consume(ctx)

	log.Printf("🚀 Очередь отправки алертов запущена (ёмкость: %d)", d.cfg.QueueCapacity)
	return nil
}

// Stop закрывает очередь и дожидается, пока потребитель дольёт остатки
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.running = false
	d.mu.Unlock()

	// очередь закрывается, но уже принятые алерты будут отправлены
	d.alerts.Close()
	d.wg.Wait()
	d.cancel()
	log.Printf("🛑 Очередь отправки алертов остановлена")
}

// consume - цикл единственного потребителя
// один потребитель даёт строгий FIFO порядок отправки без дополнительных блокировок
func (d *Dispatcher) consume(ctx context.Context) {
	defer d.wg.Done()

	for {
		alert, ok := d.alerts.DequeueWait(ctx)
		if !ok {
			return
		}

		if err := d.process(ctx, alert); err != nil {
			log.Printf("⚠️ Алерт %s не отправлен: %v", alert.ID, err)
		}

		// пауза между отправками: щадим внешний нотификатор
		select {
		case <-time.After(d.cfg.SendDelay):
		case <-ctx.Done():
			// контекст отменён, но очередь ещё дренируется - продолжаем без пауз
		}
	}
}

// process выполняет все проверки и отправку одного алерта
func (d *Dispatcher) process(ctx context.Context, alert models.Alert) error {
	onCooldown, err := d.onCooldown(ctx, alert)
	if err != nil {
		return fmt.Errorf("cooldown check failed: %w", err)
	}
	if onCooldown {
		log.Printf("Алерт %s подавлен: cooldown по ключу %s", alert.ID, alert.DedupKey())
		return nil
	}

	exceeded, err := d.quotaExceeded(ctx, alert)
	if err != nil {
		return fmt.Errorf("quota check failed: %w", err)
	}
	if exceeded {
		log.Printf("Алерт %s подавлен: дневная квота получателя %s исчерпана", alert.ID, alert.RecipientID)
		return nil
	}

	message, links := RenderAlert(alert)
	if err := d.notifier.Send(ctx, alert.RecipientID, message, links); err != nil {
		return fmt.Errorf("notifier send failed: %w", err)
	}

	sentAt := time.Now().UTC()
	if err := d.store.AppendAlertHistory(ctx, models.AlertHistoryRecord{
		RecipientID: alert.RecipientID,
		ItemKey:     alert.ItemKey,
		Kind:        alert.Kind,
		SentAt:      sentAt,
	}); err != nil {
		// история важнее кэша: без неё и cooldown, и квоты слепнут
		return fmt.Errorf("failed to append alert history: %w", err)
	}

	if d.cooldown != nil {
		if err := d.cooldown.MarkSent(ctx, alert.DedupKey(), sentAt, d.cfg.AlertCooldown); err != nil {
			log.Printf("⚠️ Кэш cooldown недоступен при записи: %v", err)
		}
	}

	return nil
}

// onCooldown проверяет, не отправляли ли такой же алерт внутри окна cooldown
// сначала быстрый кэш, при его недоступности - история в хранилище
func (d *Dispatcher) onCooldown(ctx context.Context, alert models.Alert) (bool, error) {
	if d.cooldown != nil {
		lastSent, found, err := d.cooldown.LastSent(ctx, alert.DedupKey())
		if err == nil {
			return found && time.Since(lastSent) < d.cfg.AlertCooldown, nil
		}
		log.Printf("⚠️ Кэш cooldown недоступен при чтении, идём в хранилище: %v", err)
	}

	since := time.Now().Add(-d.cfg.AlertCooldown)
	history, err := d.store.GetAlertHistory(ctx, alert.RecipientID, alert.ItemKey, alert.Kind, since)
	if err != nil {
		return false, err
	}
	return len(history) > 0, nil
}

// quotaExceeded проверяет дневной лимит алертов получателя по его тарифу
func (d *Dispatcher) quotaExceeded(ctx context.Context, alert models.Alert) (bool, error) {
	limit := d.cfg.DailyFree
	if alert.Tier == models.TierPremium {
		limit = d.cfg.DailyPremium
	}

	now := time.Now().UTC()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	// пустые itemKey/kind означают "вся история получателя за сегодня"
	history, err := d.store.GetAlertHistory(ctx, alert.RecipientID, "", "", startOfDay)
	if err != nil {
		return false, err
	}
	return len(history) >= limit, nil
}
