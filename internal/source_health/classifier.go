// классификация здоровья источника по скользящему окну исходов
// порядок проверок важен: статус только ухудшается, никогда не понижается
// внутри одной классификации
package sourcehealth

import (
	"fmt"
	"strings"
	"time"

	"dropalert/configs"
	"dropalert/internal/domain/models"
)

// Classifier превращает срез состояния источника в метрику здоровья
type Classifier struct {
	cfg *configs.HealthMonitorConfig
}

func NewClassifier(cfg *configs.HealthMonitorConfig) *Classifier {
	return &Classifier{cfg: cfg}
}

// Classify считает метрику здоровья источника
// порядок: выключен или потерявший связность -> Down, открытый breaker -> Critical,
// дальше пороги success rate, подряд идущих неудач, свежести и времени ответа
func (c *Classifier) Classify(sourceID string, view stateView, enabled bool, breakerOpen bool, now time.Time) models.HealthMetric {
	metric := models.HealthMetric{
		SourceID:            sourceID,
		Status:              models.StatusHealthy,
		ConsecutiveFailures: view.ConsecutiveFailures,
		LastSuccess:         view.LastSuccess,
		CircuitOpen:         breakerOpen,
		TotalRequests:       view.TotalRequests,
		SuccessfulRequests:  view.TotalSuccesses,
		CheckedAt:           now,
	}

	metric.SuccessRate, metric.AvgResponseTime = windowStats(view.Outcomes)
	metric.Issues, metric.Messages = detectIssues(view.Outcomes)

	if !enabled {
		metric.Status = models.StatusDown
		metric.Messages = append(metric.Messages, "source is disabled")
		return metric
	}

	upgrade := func(status models.HealthStatus, msg string) {
		if status.WorseThan(metric.Status) {
			metric.Status = status
		}
		metric.Messages = append(metric.Messages, msg)
	}

	// окно из одних сетевых ошибок без единого успеха - источник недостижим
	if len(view.Outcomes) >= c.cfg.ConsecutiveWarning && connectivityLost(view.Outcomes) {
		upgrade(models.StatusDown, "source is unreachable: network failures only")
	}

	if breakerOpen {
		upgrade(models.StatusCritical, "circuit breaker is open")
	}

	// пороги имеют смысл только при наличии данных в окне
	if len(view.Outcomes) > 0 {
		switch {
		case metric.SuccessRate < c.cfg.SuccessRateCritical:
			upgrade(models.StatusCritical, fmt.Sprintf("success rate %.0f%% below critical threshold", metric.SuccessRate*100))
		case metric.SuccessRate < c.cfg.SuccessRateWarning:
			upgrade(models.StatusWarning, fmt.Sprintf("success rate %.0f%% below warning threshold", metric.SuccessRate*100))
		}
	}

	switch {
	case view.ConsecutiveFailures >= c.cfg.ConsecutiveCritical:
		upgrade(models.StatusCritical, fmt.Sprintf("%d consecutive failures", view.ConsecutiveFailures))
	case view.ConsecutiveFailures >= c.cfg.ConsecutiveWarning:
		upgrade(models.StatusWarning, fmt.Sprintf("%d consecutive failures", view.ConsecutiveFailures))
	}

	// свежесть: давно не было успешного извлечения
	if view.TotalRequests > 0 {
		if view.LastSuccess.IsZero() {
			// ни одного успеха за всю жизнь процесса - это не застой, это неработающий источник
			upgrade(models.StatusCritical, "no successful extraction ever recorded")
		} else if now.Sub(view.LastSuccess) > c.cfg.StaleWindow {
			upgrade(models.StatusWarning, fmt.Sprintf("no successful extraction for %s", now.Sub(view.LastSuccess).Round(time.Minute)))
		}
	}

	if metric.AvgResponseTime > 0 {
		switch {
		case metric.AvgResponseTime > c.cfg.ResponseTimeCrit:
			upgrade(models.StatusCritical, fmt.Sprintf("average response time %s is critical", metric.AvgResponseTime.Round(time.Millisecond)))
		case metric.AvgResponseTime > c.cfg.ResponseTimeWarning:
			upgrade(models.StatusWarning, fmt.Sprintf("average response time %s is degraded", metric.AvgResponseTime.Round(time.Millisecond)))
		}
	}

	return metric
}

// connectivityLost проверяет, что в окне нет ни одного успеха
// и каждая неудача относится к сетевому классу (таймауты, DNS, refused)
func connectivityLost(outcomes []models.Outcome) bool {
	for _, o := range outcomes {
		if o.Success {
			return false
		}
		if classifyErrorText(o.ErrorText) != models.IssueNetwork {
			return false
		}
	}
	return len(outcomes) > 0
}

// windowStats считает success rate и среднее время ответа по окну
func windowStats(outcomes []models.Outcome) (float64, time.Duration) {
	if len(outcomes) == 0 {
		return 1.0, 0
	}

	successes := 0
	var totalLatency time.Duration
	for _, o := range outcomes {
		if o.Success {
			successes++
		}
		totalLatency += o.Latency
	}

	rate := float64(successes) / float64(len(outcomes))
	avg := totalLatency / time.Duration(len(outcomes))
	return rate, avg
}

// detectIssues выводит теги проблем из текстов ошибок в окне
// один исход даёт максимум один тег (по убыванию специфичности)
func detectIssues(outcomes []models.Outcome) ([]models.IssueTag, []string) {
	counts := make(map[models.IssueTag]int)
	for _, o := range outcomes {
		if o.Success || o.ErrorText == "" {
			continue
		}
		counts[classifyErrorText(o.ErrorText)]++
	}

	var tags []models.IssueTag
	var messages []string
	// стабильный порядок вывода
	for _, tag := range []models.IssueTag{
		models.IssueRateLimiting,
		models.IssueBlocking,
		models.IssueSiteChanges,
		models.IssueParsing,
		models.IssueNetwork,
	} {
		if n := counts[tag]; n > 0 {
			tags = append(tags, tag)
			messages = append(messages, fmt.Sprintf("%s: %d occurrences in window", tag, n))
		}
	}
	return tags, messages
}

// classifyErrorText маппит текст ошибки на тег проблемы
func classifyErrorText(text string) models.IssueTag {
	lower := strings.ToLower(text)

	switch {
	case strings.Contains(lower, "429"),
		strings.Contains(lower, "rate limit"),
		strings.Contains(lower, "too many requests"):
		return models.IssueRateLimiting
	case strings.Contains(lower, "403"),
		strings.Contains(lower, "forbidden"),
		strings.Contains(lower, "blocked"),
		strings.Contains(lower, "captcha"):
		return models.IssueBlocking
	case strings.Contains(lower, "exhausted"),
		strings.Contains(lower, "selector"),
		strings.Contains(lower, "layout"):
		return models.IssueSiteChanges
	case strings.Contains(lower, "unmarshal"),
		strings.Contains(lower, "decode"),
		strings.Contains(lower, "invalid json"),
		strings.Contains(lower, "parse"):
		return models.IssueParsing
	default:
		// таймауты, DNS, connection refused и всё прочее сетевое
		return models.IssueNetwork
	}
}
