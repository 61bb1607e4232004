// хранилище на Postgres поверх пула pgxpool
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"dropalert/configs"
	"dropalert/internal/domain/models"
	"dropalert/internal/interfaces"
)

type PostgresStore struct {
	closeOnce sync.Once
	pool      *pgxpool.Pool
}

// NewPostgresStore создаёт пул соединений и проверяет подключение
func NewPostgresStore(ctx context.Context, conf *configs.PostgresConfig) (*PostgresStore, error) {
	poolConfig, err := pgxpool.ParseConfig(conf.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DB DSN: %w", err)
	}

	// настройки пула и здоровья соединений
	poolConfig.MaxConns = conf.MaxConns
	poolConfig.MinConns = conf.MinConns
	poolConfig.HealthCheckPeriod = conf.HealthCheckPeriod
	poolConfig.MaxConnLifetime = conf.MaxConnLifetime
	poolConfig.MaxConnIdleTime = conf.MaxConnIdleTime
	poolConfig.ConnConfig.ConnectTimeout = conf.ConnectTimeout

	pool, err := pgxpool.ConnectConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	connCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := pool.Ping(connCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

// Close закрывает пул (только один раз)
func (s *PostgresStore) Close() {
	s.closeOnce.Do(func() {
		if s.pool != nil {
			s.pool.Close()
		}
	})
}

func (s *PostgresStore) UpsertSnapshot(ctx context.Context, snap models.ProductSnapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	const query = `
        INSERT INTO product_snapshots
            (item_key, source_id, sku, name, price, in_stock, sizes, url, brand, model, image, captured_at, confidence, method)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
        ON CONFLICT (item_key) DO UPDATE SET
            name = EXCLUDED.name,
            price = EXCLUDED.price,
            in_stock = EXCLUDED.in_stock,
            sizes = EXCLUDED.sizes,
            url = EXCLUDED.url,
            brand = EXCLUDED.brand,
            model = EXCLUDED.model,
            image = EXCLUDED.image,
            captured_at = EXCLUDED.captured_at,
            confidence = EXCLUDED.confidence,
            method = EXCLUDED.method
    `

	_, err := s.pool.Exec(ctx, query,
		snap.ItemKey(), snap.SourceID, snap.SKU, snap.Name, snap.Price, snap.InStock,
		snap.Sizes, snap.URL, snap.Brand, snap.Model, snap.Image,
		snap.CapturedAt, snap.Confidence, string(snap.Method),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert snapshot: %w", err)
	}

	return nil
}

func (s *PostgresStore) GetLastSnapshot(ctx context.Context, itemKey string) (*models.ProductSnapshot, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	const query = `
        SELECT source_id, sku, name, price, in_stock, sizes, url, brand, model, image, captured_at, confidence, method
        FROM product_snapshots
        WHERE item_key = $1
        LIMIT 1
    `

	var snap models.ProductSnapshot
	var method string
	err := s.pool.QueryRow(ctx, query, itemKey).Scan(
		&snap.SourceID, &snap.SKU, &snap.Name, &snap.Price, &snap.InStock,
		&snap.Sizes, &snap.URL, &snap.Brand, &snap.Model, &snap.Image,
		&snap.CapturedAt, &snap.Confidence, &method,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to query snapshot: %w", err)
	}

	snap.Method = models.ExtractionMethod(method)
	return &snap, true, nil
}

func (s *PostgresStore) AppendHealthMetric(ctx context.Context, metric models.HealthMetric) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	const query = `
        INSERT INTO health_metrics
            (source_id, status, success_rate, total_requests, successful_requests,
             consecutive_failures, last_success, circuit_open, avg_response_ms, checked_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
    `

	var lastSuccess *time.Time
	if !metric.LastSuccess.IsZero() {
		lastSuccess = &metric.LastSuccess
	}

	_, err := s.pool.Exec(ctx, query,
		metric.SourceID, metric.Status.String(), metric.SuccessRate,
		metric.TotalRequests, metric.SuccessfulRequests, metric.ConsecutiveFailures,
		lastSuccess, metric.CircuitOpen, metric.AvgResponseTime.Milliseconds(), metric.CheckedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert health metric: %w", err)
	}

	return nil
}

func (s *PostgresStore) AppendHealthAlert(ctx context.Context, alert models.HealthAlert, cooldown time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	details, err := json.Marshal(alert.Details)
	if err != nil {
		return false, fmt.Errorf("failed to marshal alert details: %w", err)
	}

	// дедупликация (source, type) внутри окна cooldown одним запросом
	const query = `
        INSERT INTO health_alerts (source_id, type, severity, message, details, created_at, acknowledged)
        SELECT $1, $2, $3, $4, $5, $6, FALSE
        WHERE NOT EXISTS (
            SELECT 1 FROM health_alerts
            WHERE source_id = $1 AND type = $2 AND created_at > $6::timestamptz - $7::interval
        )
    `

	tag, err := s.pool.Exec(ctx, query,
		alert.SourceID, alert.Type, alert.Severity.String(), alert.Message,
		details, alert.Timestamp, cooldown.String(),
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert health alert: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) GetRecentHealthAlerts(ctx context.Context, since time.Time) ([]models.HealthAlert, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	const query = `
        SELECT source_id, type, severity, message, details, created_at, acknowledged
        FROM health_alerts
        WHERE created_at > $1
        ORDER BY created_at DESC
    `

	rows, err := s.pool.Query(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query health alerts: %w", err)
	}
	defer rows.Close()

	var out []models.HealthAlert
	for rows.Next() {
		var alert models.HealthAlert
		var severity string
		var details []byte
		if err := rows.Scan(&alert.SourceID, &alert.Type, &severity, &alert.Message,
			&details, &alert.Timestamp, &alert.Acknowledged); err != nil {
			return nil, fmt.Errorf("failed to scan health alert: %w", err)
		}
		alert.Severity = parseStatus(severity)
		if len(details) > 0 {
			// битые детали не мешают отдать сам алерт
			_ = json.Unmarshal(details, &alert.Details)
		}
		out = append(out, alert)
	}

	return out, rows.Err()
}

func (s *PostgresStore) AppendAlertHistory(ctx context.Context, rec models.AlertHistoryRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	const query = `
        INSERT INTO alert_history (recipient_id, item_key, kind, sent_at)
        VALUES ($1, $2, $3, $4)
    `

	_, err := s.pool.Exec(ctx, query, rec.RecipientID, rec.ItemKey, string(rec.Kind), rec.SentAt)
	if err != nil {
		return fmt.Errorf("failed to insert alert history: %w", err)
	}

	return nil
}

func (s *PostgresStore) GetAlertHistory(ctx context.Context, recipientID, itemKey string, kind models.ChangeKind, since time.Time) ([]models.AlertHistoryRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// пустые itemKey/kind означают "любой"
	const query = `
        SELECT recipient_id, item_key, kind, sent_at
        FROM alert_history
        WHERE recipient_id = $1
          AND sent_at > $2
          AND ($3 = '' OR item_key = $3)
          AND ($4 = '' OR kind = $4)
        ORDER BY sent_at DESC
    `

	rows, err := s.pool.Query(ctx, query, recipientID, since, itemKey, string(kind))
	if err != nil {
		return nil, fmt.Errorf("failed to query alert history: %w", err)
	}
	defer rows.Close()

	var out []models.AlertHistoryRecord
	for rows.Next() {
		var rec models.AlertHistoryRecord
		var recKind string
		if err := rows.Scan(&rec.RecipientID, &rec.ItemKey, &recKind, &rec.SentAt); err != nil {
			return nil, fmt.Errorf("failed to scan alert history: %w", err)
		}
		rec.Kind = models.ChangeKind(recKind)
		out = append(out, rec)
	}

	return out, rows.Err()
}

func (s *PostgresStore) GetSubscriberCriteria(ctx context.Context, keyword string) ([]models.SubscriberCriteria, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	const query = `
        SELECT recipient_id, keyword, sizes, max_price, kinds, tier
        FROM subscriber_criteria
        WHERE keyword = $1
    `

	rows, err := s.pool.Query(ctx, query, keyword)
	if err != nil {
		return nil, fmt.Errorf("failed to query subscribers: %w", err)
	}
	defer rows.Close()

	var out []models.SubscriberCriteria
	for rows.Next() {
		var sub models.SubscriberCriteria
		var kinds []string
		var tier string
		if err := rows.Scan(&sub.RecipientID, &sub.Keyword, &sub.Sizes, &sub.MaxPrice,
			&kinds, &tier); err != nil {
			return nil, fmt.Errorf("failed to scan subscriber: %w", err)
		}
		sub.Tier = models.SubscriberTier(tier)
		for _, k := range kinds {
			sub.Kinds = append(sub.Kinds, models.ChangeKind(k))
		}
		out = append(out, sub)
	}

	return out, rows.Err()
}

func (s *PostgresStore) GetTrackedKeywords(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	const query = `SELECT DISTINCT keyword FROM subscriber_criteria ORDER BY keyword`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query tracked keywords: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var keyword string
		if err := rows.Scan(&keyword); err != nil {
			return nil, fmt.Errorf("failed to scan keyword: %w", err)
		}
		out = append(out, keyword)
	}

	return out, rows.Err()
}

func (s *PostgresStore) AppendResaleSample(ctx context.Context, sample models.ResaleSample) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	const query = `
        INSERT INTO resale_samples (keyword, source_id, price, recorded_at)
        VALUES ($1, $2, $3, $4)
    `

	_, err := s.pool.Exec(ctx, query, sample.Keyword, sample.SourceID, sample.Price, sample.RecordedAt)
	if err != nil {
		return fmt.Errorf("failed to insert resale sample: %w", err)
	}

	return nil
}

func (s *PostgresStore) GetResaleSamples(ctx context.Context, keyword string, limit int) ([]models.ResaleSample, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	const query = `
        SELECT keyword, source_id, price, recorded_at
        FROM resale_samples
        WHERE keyword = $1
        ORDER BY recorded_at DESC
        LIMIT $2
    `

	rows, err := s.pool.Query(ctx, query, keyword, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query resale samples: %w", err)
	}
	defer rows.Close()

	var out []models.ResaleSample
	for rows.Next() {
		var sample models.ResaleSample
		if err := rows.Scan(&sample.Keyword, &sample.SourceID, &sample.Price, &sample.RecordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan resale sample: %w", err)
		}
		out = append(out, sample)
	}

	return out, rows.Err()
}

// PruneSnapshots удаляет снапшоты старше окна хранения
// вызывается по расписанию из ядра, не из горячего пути
func (s *PostgresStore) PruneSnapshots(ctx context.Context, retention time.Duration) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	const query = `DELETE FROM product_snapshots WHERE captured_at < $1`

	tag, err := s.pool.Exec(ctx, query, time.Now().Add(-retention))
	if err != nil {
		return 0, fmt.Errorf("failed to prune snapshots: %w", err)
	}

	return tag.RowsAffected(), nil
}

func parseStatus(s string) models.HealthStatus {
	switch s {
	case "warning":
		return models.StatusWarning
	case "critical":
		return models.StatusCritical
	case "down":
		return models.StatusDown
	}
	return models.StatusHealthy
}

// Проверка на этапе компиляции, что тип реализует интерфейс
var _ interfaces.Persistence = (*PostgresStore)(nil)
