// лог-нотификатор: печатает алерты в stdout
// доставка в мессенджер - внешний коллаборатор, этот нотификатор закрывает
// локальную разработку и стенды без бота
package notify

import (
	"context"
	"log"
	"strings"

	"dropalert/internal/interfaces"
)

type LogNotifier struct{}

func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

// Send печатает алерт; ошибки тут невозможны
func (n *LogNotifier) Send(_ context.Context, recipientID string, message string, actionLinks []string) error {
	if len(actionLinks) > 0 {
		log.Printf("📨 [%s] %s | %s", recipientID, message, strings.Join(actionLinks, " "))
		return nil
	}
	log.Printf("📨 [%s] %s", recipientID, message)
	return nil
}

// Проверка на этапе компиляции, что тип реализует интерфейс
var _ interfaces.Notifier = (*LogNotifier)(nil)
