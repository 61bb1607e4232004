// события изменений и алерты для внешнего нотификатора
package models

import (
	"fmt"
	"strings"
	"time"
)

// ChangeKind - тип обнаруженного изменения
type ChangeKind string

const (
	KindRestock         ChangeKind = "restock"          // товар снова в наличии
	KindPriceDrop       ChangeKind = "price_drop"       // цена упала на 5% и больше
	KindFlipOpportunity ChangeKind = "flip_opportunity" // ресейл-маржа >= 25%
)

// ChangeEvent - эфемерное событие от детектора изменений
// производится детектором, потребляется один раз очередью отправки алертов
type ChangeEvent struct {
	Kind        ChangeKind       // тип события
	Snapshot    ProductSnapshot  // текущий снапшот
	Prior       *ProductSnapshot // предыдущий снапшот (nil для flip)
	RecipientID string           // подписчик, для которого событие прошло фильтры
	Savings     float64          // экономия для price_drop
	ResaleAvg   float64          // средняя ресейл-цена для flip
	MarginPct   float64          // маржа в процентах для flip
	SampleSize  int              // количество ресейл-сэмплов в расчёте
}

// Alert - алерт, который уйдёт во внешний нотификатор
type Alert struct {
	ID          string     // uuid
	RecipientID string     // получатель
	Kind        ChangeKind // тип алерта
	ItemKey     string     // ключ товара
	ItemName    string     // название товара
	SourceID    string     // источник
	Price       *float64   // текущая цена
	URL         string     // ссылка на товар
	Savings     float64    // для price_drop
	MarginPct   float64    // для flip
	ResaleAvg   float64    // для flip
	Tier        SubscriberTier
	CreatedAt   time.Time
}

// DedupKey - ключ дедупликации: получатель + товар + тип
// инвариант: два алерта с одним ключом не отправляются внутри окна cooldown
func (a *Alert) DedupKey() string {
	return strings.Join([]string{a.RecipientID, a.ItemKey, string(a.Kind)}, "|")
}

// AlertHistoryRecord - запись истории отправленных алертов (для cooldown и квот)
type AlertHistoryRecord struct {
	RecipientID string
	ItemKey     string
	Kind        ChangeKind
	SentAt      time.Time
}

// SubscriberTier - тариф подписчика
type SubscriberTier string

const (
	TierFree    SubscriberTier = "free"
	TierPremium SubscriberTier = "premium"
)

// SubscriberCriteria - критерии одного подписчика по одному отслеживаемому товару
type SubscriberCriteria struct {
	RecipientID string         // кому слать
	Keyword     string         // ключевое слово товара
	Sizes       []string       // желаемые размеры, пустой срез = любые
	MaxPrice    *float64       // потолок цены (nil = без ограничения)
	Kinds       []ChangeKind   // какие типы событий интересуют
	Tier        SubscriberTier // тариф
}

// WantsKind проверяет, подписан ли получатель на данный тип события
func (c *SubscriberCriteria) WantsKind(kind ChangeKind) bool {
	for _, k := range c.Kinds {
		if k == kind {
			return true
		}
	}
	return false
}

// MatchesKeyword проверяет, что все слова ключа входят в название товара
func (c *SubscriberCriteria) MatchesKeyword(productName string) bool {
	name := strings.ToLower(productName)
	for _, word := range strings.Fields(strings.ToLower(c.Keyword)) {
		if !strings.Contains(name, word) {
			return false
		}
	}
	return true
}

// MatchesSize проверяет пересечение желаемых размеров с доступными
// пустой список желаемых размеров означает "любой размер"
func (c *SubscriberCriteria) MatchesSize(available []string) bool {
	if len(c.Sizes) == 0 {
		return true
	}
	for _, want := range c.Sizes {
		for _, have := range available {
			if strings.EqualFold(want, have) {
				return true
			}
		}
	}
	return false
}

// MatchesPrice проверяет потолок цены подписчика
func (c *SubscriberCriteria) MatchesPrice(price *float64) bool {
	if c.MaxPrice == nil || price == nil {
		return true
	}
	return *price <= *c.MaxPrice
}

// String для отладочных логов
func (e *ChangeEvent) String() string {
	return fmt.Sprintf("[%s] %s (source: %s, recipient: %s)", e.Kind, e.Snapshot.Name, e.Snapshot.SourceID, e.RecipientID)
}
