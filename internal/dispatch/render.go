// сборка алерта из события и рендер текста для нотификатора
package dispatch

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"dropalert/internal/domain/models"
)

// BuildAlert собирает алерт из события, прошедшего фильтры подписчика
func BuildAlert(ev models.ChangeEvent, tier models.SubscriberTier) models.Alert {
	return models.Alert{
		ID:          uuid.NewString(),
		RecipientID: ev.RecipientID,
		Kind:        ev.Kind,
		ItemKey:     ev.Snapshot.ItemKey(),
		ItemName:    ev.Snapshot.Name,
		SourceID:    ev.Snapshot.SourceID,
		Price:       ev.Snapshot.Price,
		URL:         ev.Snapshot.URL,
		Savings:     ev.Savings,
		MarginPct:   ev.MarginPct,
		ResaleAvg:   ev.ResaleAvg,
		Tier:        tier,
		CreatedAt:   time.Now().UTC(),
	}
}

// RenderAlert возвращает текст сообщения и ссылки действий
// тексты на английском: аудитория бота международная
func RenderAlert(alert models.Alert) (string, []string) {
	var message string

	switch alert.Kind {
	case models.KindRestock:
		message = fmt.Sprintf("🔥 RESTOCK: %s is back in stock at %s!%s",
			alert.ItemName, alert.SourceID, priceSuffix(alert.Price))
	case models.KindPriceDrop:
		message = fmt.Sprintf("💸 PRICE DROP: %s at %s%s — save $%.2f!",
			alert.ItemName, alert.SourceID, priceSuffix(alert.Price), alert.Savings)
	case models.KindFlipOpportunity:
		message = fmt.Sprintf("📈 FLIP ALERT: %s retails%s, resells around $%.2f (+%.0f%% margin)",
			alert.ItemName, priceSuffix(alert.Price), alert.ResaleAvg, alert.MarginPct)
	default:
		message = fmt.Sprintf("%s: %s", alert.Kind, alert.ItemName)
	}

	var links []string
	if alert.URL != "" {
		links = append(links, alert.URL)
	}
	return message, links
}

func priceSuffix(price *float64) string {
	if price == nil {
		return ""
	}
	return fmt.Sprintf(" for $%.2f", *price)
}
