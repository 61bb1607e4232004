// интерфейсы внешних коллабораторов: нотификатор и персистентность
// ядро не импортирует библиотеку бота и конкретную технологию хранения
package interfaces

import (
	"context"
	"time"

	"dropalert/internal/domain/models"
)

// Notifier - внешний отправитель уведомлений
// рендеринг и локализация текста - зона ответственности нотификатора, не ядра
type Notifier interface {
	Send(ctx context.Context, recipientID string, message string, actionLinks []string) error
}

// Persistence - контракт хранилища; конкретная технология вне скоупа ядра
type Persistence interface {
	// снапшоты товаров
	UpsertSnapshot(ctx context.Context, snap models.ProductSnapshot) error
	GetLastSnapshot(ctx context.Context, itemKey string) (*models.ProductSnapshot, bool, error)

	// метрики и алерты здоровья
	AppendHealthMetric(ctx context.Context, metric models.HealthMetric) error
	// AppendHealthAlert сохраняет алерт, только если такого же (source, type)
	// не было внутри окна cooldown; возвращает true, если алерт записан
	AppendHealthAlert(ctx context.Context, alert models.HealthAlert, cooldown time.Duration) (bool, error)
	GetRecentHealthAlerts(ctx context.Context, since time.Time) ([]models.HealthAlert, error)

	// история алертов пользователям (cooldown и квоты)
	AppendAlertHistory(ctx context.Context, rec models.AlertHistoryRecord) error
	// GetAlertHistory возвращает записи после since; пустые itemKey/kind означают "любой"
	GetAlertHistory(ctx context.Context, recipientID, itemKey string, kind models.ChangeKind, since time.Time) ([]models.AlertHistoryRecord, error)

	// подписчики и отслеживаемые товары
	GetSubscriberCriteria(ctx context.Context, keyword string) ([]models.SubscriberCriteria, error)
	GetTrackedKeywords(ctx context.Context) ([]string, error)

	// данные ресейл-рынка
	AppendResaleSample(ctx context.Context, sample models.ResaleSample) error
	GetResaleSamples(ctx context.Context, keyword string, limit int) ([]models.ResaleSample, error)
}

// CooldownCache - быстрый кэш "когда последний раз отправляли алерт с этим dedup-ключом"
// реализация на Redis; при недоступности кэша очередь отправки ходит в Persistence
type CooldownCache interface {
	LastSent(ctx context.Context, dedupKey string) (time.Time, bool, error)
	MarkSent(ctx context.Context, dedupKey string, at time.Time, ttl time.Duration) error
}
