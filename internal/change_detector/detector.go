// детектор изменений: сравнивает свежий снапшот с предыдущим
// и превращает значимые переходы в события
// детектор чистый: состояние (прошлые снапшоты, ресейл-сэмплы) приходит параметрами
package changedetector

import (
	"dropalert/configs"
	"dropalert/internal/domain/models"
)

type Detector struct {
	cfg *configs.DetectorConfig
}

func NewDetector(cfg *configs.DetectorConfig) *Detector {
	return &Detector{cfg: cfg}
}

// Restock проверяет переход "не было в наличии -> появился"
// условия: прошлый снапшот без наличия, снят минимум RestockMinGap назад,
// но не старше окна RestockLookback (протухшие данные не основание для алерта)
func (d *Detector) Restock(current models.ProductSnapshot, prior *models.ProductSnapshot) (models.ChangeEvent, bool) {
	if prior == nil || !current.InStock || prior.InStock {
		return models.ChangeEvent{}, false
	}

	gap := current.CapturedAt.Sub(prior.CapturedAt)
	if gap < d.cfg.RestockMinGap || gap > d.cfg.RestockLookback {
		return models.ChangeEvent{}, false
	}

	return models.ChangeEvent{
		Kind:     models.KindRestock,
		Snapshot: current,
		Prior:    prior,
	}, true
}

// PriceDrop проверяет падение цены минимум на порог (по умолчанию 5%)
// кратковременные колебания отсекаются минимальным разрывом между снапшотами
func (d *Detector) PriceDrop(current models.ProductSnapshot, prior *models.ProductSnapshot) (models.ChangeEvent, bool) {
	if prior == nil || !current.HasPrice() || !prior.HasPrice() {
		return models.ChangeEvent{}, false
	}
	if current.CapturedAt.Sub(prior.CapturedAt) < d.cfg.PriceDropMinGap {
		return models.ChangeEvent{}, false
	}
	if *current.Price > *prior.Price*d.cfg.PriceDropRatio {
		return models.ChangeEvent{}, false
	}

	return models.ChangeEvent{
		Kind:     models.KindPriceDrop,
		Snapshot: current,
		Prior:    prior,
		Savings:  *prior.Price - *current.Price,
	}, true
}

// FlipOpportunity сравнивает розничную цену со средней ресейл-ценой
// мало сэмплов - нет события: среднее по одной-двум продажам ничего не значит
func (d *Detector) FlipOpportunity(current models.ProductSnapshot, samples []models.ResaleSample) (models.ChangeEvent, bool) {
	if !current.HasPrice() || !current.InStock || len(samples) < d.cfg.FlipMinSamples {
		return models.ChangeEvent{}, false
	}

	if len(samples) > d.cfg.ResaleSampleCap {
		samples = samples[len(samples)-d.cfg.ResaleSampleCap:]
	}

	var sum float64
	for _, s := range samples {
		sum += s.Price
	}
	avg := sum / float64(len(samples))

	retail := *current.Price
	marginPct := (avg - retail) / retail * 100
	if marginPct < d.cfg.FlipMarginPct {
		return models.ChangeEvent{}, false
	}

	return models.ChangeEvent{
		Kind:       models.KindFlipOpportunity,
		Snapshot:   current,
		ResaleAvg:  avg,
		MarginPct:  marginPct,
		SampleSize: len(samples),
	}, true
}

// Detect прогоняет снапшот через все детекторы и возвращает найденные события
// (ещё без привязки к подписчикам)
func (d *Detector) Detect(current models.ProductSnapshot, prior *models.ProductSnapshot, samples []models.ResaleSample) []models.ChangeEvent {
	var events []models.ChangeEvent

	if ev, ok := d.Restock(current, prior); ok {
		events = append(events, ev)
	}
	if ev, ok := d.PriceDrop(current, prior); ok {
		events = append(events, ev)
	}
	if ev, ok := d.FlipOpportunity(current, samples); ok {
		events = append(events, ev)
	}

	return events
}

// ForSubscribers размножает события по подписчикам, чьи фильтры они проходят
// фильтры: тип события, ключевые слова в названии, размер, потолок цены
// квота здесь не списывается - это забота очереди отправки в момент отправки
func (d *Detector) ForSubscribers(events []models.ChangeEvent, subscribers []models.SubscriberCriteria) []models.ChangeEvent {
	var out []models.ChangeEvent

	for _, ev := range events {
		for i := range subscribers {
			sub := &subscribers[i]
			if !sub.WantsKind(ev.Kind) {
				continue
			}
			if !sub.MatchesKeyword(ev.Snapshot.Name) {
				continue
			}
			if !sub.MatchesSize(ev.Snapshot.Sizes) {
				continue
			}
			if !sub.MatchesPrice(ev.Snapshot.Price) {
				continue
			}

			targeted := ev
			targeted.RecipientID = sub.RecipientID
			out = append(out, targeted)
		}
	}

	return out
}
