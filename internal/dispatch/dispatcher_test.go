package dispatch

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"dropalert/configs"
	"dropalert/internal/domain/models"
	"dropalert/internal/interfaces"
)

// fakeNotifier записывает отправленные сообщения
type fakeNotifier struct {
	mu       sync.Mutex
	sent     []string // recipientID отправленных алертов
	texts    []string
	attempts int
	err      error
}

func (f *fakeNotifier) Send(_ context.Context, recipientID, message string, _ []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts++
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, recipientID)
	f.texts = append(f.texts, message)
	return nil
}

func (f *fakeNotifier) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

// fakeDispatchStore - история алертов в памяти
type fakeDispatchStore struct {
	interfaces.Persistence
	mu      sync.Mutex
	history []models.AlertHistoryRecord
}

func (f *fakeDispatchStore) AppendAlertHistory(_ context.Context, rec models.AlertHistoryRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.history = append(f.history, rec)
	return nil
}

func (f *fakeDispatchStore) GetAlertHistory(_ context.Context, recipientID, itemKey string, kind models.ChangeKind, since time.Time) ([]models.AlertHistoryRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.AlertHistoryRecord
	for _, rec := range f.history {
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

// fakeCooldownCache - кэш cooldown в памяти с переключаемой недоступностью
type fakeCooldownCache struct {
	mu    sync.Mutex
	seen  map[string]time.Time
	fail  bool
	reads int
}

func newFakeCooldownCache() *fakeCooldownCache {
	return &fakeCooldownCache{seen: make(map[string]time.Time)}
}

func (f *fakeCooldownCache) LastSent(_ context.Context, key string) (time.Time, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	if f.fail {
		return time.Time{}, false, assert.AnError
	}
	at, ok := f.seen[key]
	return at, ok, nil
}

func (f *fakeCooldownCache) MarkSent(_ context.Context, key string, at time.Time, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return assert.AnError
	}
	f.seen[key] = at
	return nil
}

func testAlert(recipient, sku string, kind models.ChangeKind, tier models.SubscriberTier) models.Alert {
	price := 180.0
	return BuildAlert(models.ChangeEvent{
		Kind:        kind,
		RecipientID: recipient,
		Snapshot: models.ProductSnapshot{
			SourceID: "nike",
			SKU:      sku,
			Name:     "Air Jordan 1",
			Price:    &price,
			URL:      "https://www.nike.com/aj1",
			InStock:  true,
		},
	}, tier)
}

func fastCfg() *configs.DispatchConfig {
	cfg := configs.DefaultDispatchConfig()
	cfg.SendDelay = time.Millisecond
	return cfg
}

// два алерта с одним ключом дедупликации внутри cooldown - одна отправка
func TestDispatcher_CooldownDeduplicates(t *testing.T) {
	notifier := &fakeNotifier{}
	store := &fakeDispatchStore{}
	cache := newFakeCooldownCache()
	d := NewDispatcher(fastCfg(), notifier, store, cache)

	assert.NoError(t, d.Start(context.Background()))

	assert.NoError(t, d.Enqueue(context.Background(), testAlert("user-1", "sku-1", models.KindRestock, models.TierPremium)))
	assert.NoError(t, d.Enqueue(context.Background(), testAlert("user-1", "sku-1", models.KindRestock, models.TierPremium)))
	// другой тип события - другой ключ, проходит
	assert.NoError(t, d.Enqueue(context.Background(), testAlert("user-1", "sku-1", models.KindPriceDrop, models.TierPremium)))

	d.Stop()

	assert.Equal(t, 2, notifier.sentCount())
	assert.Len(t, store.history, 2)
}

// при недоступном кэше cooldown работает через историю в хранилище
func TestDispatcher_CooldownFallsBackToStore(t *testing.T) {
	notifier := &fakeNotifier{}
	store := &fakeDispatchStore{}
	cache := newFakeCooldownCache()
	cache.fail = true
	d := NewDispatcher(fastCfg(), notifier, store, cache)

	assert.NoError(t, d.Start(context.Background()))
	assert.NoError(t, d.Enqueue(context.Background(), testAlert("user-1", "sku-1", models.KindRestock, models.TierPremium)))
	assert.NoError(t, d.Enqueue(context.Background(), testAlert("user-1", "sku-1", models.KindRestock, models.TierPremium)))
	d.Stop()

	// дедупликация состоялась несмотря на мёртвый кэш
	assert.Equal(t, 1, notifier.sentCount())
}

// дневная квота free-тарифа: шестой алерт подавляется
func TestDispatcher_FreeTierDailyQuota(t *testing.T) {
	notifier := &fakeNotifier{}
	store := &fakeDispatchStore{}
	d := NewDispatcher(fastCfg(), notifier, store, newFakeCooldownCache())

	assert.NoError(t, d.Start(context.Background()))
	for i := 0; i < 6; i++ {
		// разные товары, чтобы cooldown не вмешивался
		sku := string(rune('a' + i))
		assert.NoError(t, d.Enqueue(context.Background(), testAlert("user-free", sku, models.KindRestock, models.TierFree)))
	}
	d.Stop()

	assert.Equal(t, 5, notifier.sentCount())
}

// premium-тариф квотой в 5 не ограничен
func TestDispatcher_PremiumQuota(t *testing.T) {
	notifier := &fakeNotifier{}
	store := &fakeDispatchStore{}
	d := NewDispatcher(fastCfg(), notifier, store, newFakeCooldownCache())

	assert.NoError(t, d.Start(context.Background()))
	for i := 0; i < 6; i++ {
		sku := string(rune('a' + i))
		assert.NoError(t, d.Enqueue(context.Background(), testAlert("user-prem", sku, models.KindRestock, models.TierPremium)))
	}
	d.Stop()

	assert.Equal(t, 6, notifier.sentCount())
}

// Stop дожидается отправки всего, что уже принято в очередь
func TestDispatcher_DrainsOnShutdown(t *testing.T) {
	notifier := &fakeNotifier{}
	store := &fakeDispatchStore{}
	d := NewDispatcher(fastCfg(), notifier, store, newFakeCooldownCache())

	assert.NoError(t, d.Start(context.Background()))
	for i := 0; i < 10; i++ {
		sku := string(rune('a' + i))
		assert.NoError(t, d.Enqueue(context.Background(), testAlert("user-prem", sku, models.KindRestock, models.TierPremium)))
	}
	d.Stop()

	assert.Equal(t, 10, notifier.sentCount())
}

// после Stop новые алерты не принимаются
func TestDispatcher_RejectsAfterStop(t *testing.T) {
	d := NewDispatcher(fastCfg(), &fakeNotifier{}, &fakeDispatchStore{}, newFakeCooldownCache())
	assert.NoError(t, d.Start(context.Background()))
	d.Stop()

	err := d.Enqueue(context.Background(), testAlert("user-1", "sku-1", models.KindRestock, models.TierFree))
	assert.Error(t, err)
}

// ошибка нотификатора не останавливает потребителя
func TestDispatcher_NotifierErrorDoesNotStopConsumer(t *testing.T) {
	notifier := &fakeNotifier{err: assert.AnError}
	store := &fakeDispatchStore{}
	d := NewDispatcher(fastCfg(), notifier, store, newFakeCooldownCache())

	assert.NoError(t, d.Start(context.Background()))
	assert.NoError(t, d.Enqueue(context.Background(), testAlert("user-1", "sku-1", models.KindRestock, models.TierFree)))

	// дожидаемся, пока первый алерт будет обработан (и упадёт)
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		notifier.mu.Lock()
		done := notifier.attempts >= 1
		notifier.mu.Unlock()
		if done {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	notifier.mu.Lock()
	notifier.err = nil
	notifier.mu.Unlock()

	assert.NoError(t, d.Enqueue(context.Background(), testAlert("user-1", "sku-2", models.KindRestock, models.TierFree)))
	d.Stop()

	// первый упал, второй отправлен
	assert.Equal(t, 1, notifier.sentCount())
	// история содержит только реально отправленный
	assert.Len(t, store.history, 1)
}

// рендер текста по типам событий
func TestRenderAlert(t *testing.T) {
	price := 180.0

	t.Run("restock", func(t *testing.T) {
		msg, links := RenderAlert(models.Alert{
			Kind: models.KindRestock, ItemName: "Air Jordan 1", SourceID: "nike",
			Price: &price, URL: "https://www.nike.com/aj1",
		})
		assert.Contains(t, msg, "RESTOCK")
		assert.Contains(t, msg, "Air Jordan 1")
		assert.Contains(t, msg, "$180.00")
		assert.Equal(t, []string{"https://www.nike.com/aj1"}, links)
	})

	t.Run("price drop", func(t *testing.T) {
		msg, _ := RenderAlert(models.Alert{
			Kind: models.KindPriceDrop, ItemName: "Dunk Low", SourceID: "nike",
			Price: &price, Savings: 20,
		})
		assert.Contains(t, msg, "PRICE DROP")
		assert.Contains(t, msg, "save $20.00")
	})

	t.Run("flip opportunity", func(t *testing.T) {
		msg, _ := RenderAlert(models.Alert{
			Kind: models.KindFlipOpportunity, ItemName: "Jordan 4", SourceID: "stockx",
			Price: &price, ResaleAvg: 250, MarginPct: 38.9,
		})
		assert.Contains(t, msg, "FLIP")
		assert.Contains(t, msg, "$250.00")
	})
}
