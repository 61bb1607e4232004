// хэндлеры HTTP сервера операционного дашборда
package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"dropalert/internal/domain/models"
	"dropalert/internal/interfaces"
	"dropalert/internal/monitor_server/dto"
	sourcehealth "dropalert/internal/source_health"
)

// Searcher - поиск товара по всем доступным источникам
type Searcher interface {
	Search(ctx context.Context, query string) ([]models.ProductSnapshot, error)
}

// HealthProvider - доступ к метрикам здоровья источников
type HealthProvider interface {
	Summary(ctx context.Context) (models.HealthSummary, error)
	MetricFor(sourceID string) (models.HealthMetric, bool)
	TrendingIssues() map[models.IssueTag][]string
}

// QueueStats - статистика очереди отправки алертов
type QueueStats interface {
	Saturation() float64
}

type MonitorHandler struct {
	searcher Searcher
	health   HealthProvider
	store    interfaces.Persistence
	queue    QueueStats
}

// конструктор хэндлера дашборда
func NewMonitorHandler(searcher Searcher, health HealthProvider, store interfaces.Persistence, queue QueueStats) *MonitorHandler {
	return &MonitorHandler{
		searcher: searcher,
		health:   health,
		store:    store,
		queue:    queue,
	}
}

// метод для теста запуска сервера
func (h *MonitorHandler) EchoMonitorServer(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Hello from drop monitor server!"})
}

// метод обработки запроса поиска товара по всем источникам
func (h *MonitorHandler) ProcessSearchRequest(c *gin.Context) {
	var req dto.SearchRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	if err := req.ValidateAndNormalize(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	snaps, err := h.searcher.Search(c.Request.Context(), req.Query)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if len(snaps) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "no products found"})
		return
	}

	c.JSON(http.StatusOK, dto.SearchResponse{
		Query:    req.Query,
		Total:    len(snaps),
		Products: snapshotsToDTO(snaps),
	})
}

// метод отдачи сводки здоровья всех источников
func (h *MonitorHandler) GetHealthSummary(c *gin.Context) {
	summary, err := h.health.Summary(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"overall_status":       summary.OverallStatus.String(),
		"total_sources":        summary.TotalSources,
		"healthy":              summary.Healthy,
		"warning":              summary.Warning,
		"critical":             summary.Critical,
		"down":                 summary.Down,
		"average_success_rate": summary.AvgSuccessRate,
		"recent_alerts":        summary.RecentAlerts,
		"checked_at":           summary.CheckedAt,
	})
}

// метод отдачи метрики здоровья конкретного источника
func (h *MonitorHandler) GetSourceHealth(c *gin.Context) {
	sourceID := c.Param("id")

	metric, ok := h.health.MetricFor(sourceID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown source: " + sourceID})
		return
	}

	// к метрике прикладываем рекомендации оператору по каждому тегу проблемы
	remediation := make([]string, 0)
	for _, tag := range metric.Issues {
		remediation = append(remediation, sourcehealth.SuggestRemediation(tag)...)
	}

	c.JSON(http.StatusOK, gin.H{
		"metric":      metricToDTO(metric),
		"remediation": remediation,
	})
}

// метод отдачи трендов проблем по тегам (какие источники чем болеют)
func (h *MonitorHandler) GetTrendingIssues(c *gin.Context) {
	trends := h.health.TrendingIssues()

	out := make(map[string][]string, len(trends))
	for tag, sources := range trends {
		out[string(tag)] = sources
	}
	c.JSON(http.StatusOK, gin.H{"issues": out})
}

// метод отдачи недавних алертов здоровья; горизонт задаётся параметром hours
func (h *MonitorHandler) GetRecentAlerts(c *gin.Context) {
	hours := 24
	if raw := c.Query("hours"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 168 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "hours must be an integer between 1 and 168"})
			return
		}
		hours = parsed
	}

	since := time.Now().UTC().Add(-time.Duration(hours) * time.Hour)
	alerts, err := h.store.GetRecentHealthAlerts(c.Request.Context(), since)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	out := make([]dto.HealthAlertDTO, 0, len(alerts))
	for _, alert := range alerts {
		out = append(out, dto.HealthAlertDTO{
			SourceID:  alert.SourceID,
			Type:      alert.Type,
			Severity:  alert.Severity.String(),
			Message:   alert.Message,
			Details:   alert.Details,
			Timestamp: alert.Timestamp,
		})
	}
	c.JSON(http.StatusOK, gin.H{"total": len(out), "alerts": out})
}

// метод отдачи насыщенности очереди отправки алертов
func (h *MonitorHandler) GetQueueStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"saturation": h.queue.Saturation()})
}

// конвертация Domain -> DTO для снапшотов
func snapshotsToDTO(snaps []models.ProductSnapshot) []dto.ProductDTO {
	out := make([]dto.ProductDTO, 0, len(snaps))
	for _, s := range snaps {
		out = append(out, dto.ProductDTO{
			SourceID:   s.SourceID,
			SKU:        s.SKU,
			Name:       s.Name,
			Price:      s.Price,
			InStock:    s.InStock,
			Sizes:      s.Sizes,
			URL:        s.URL,
			Brand:      s.Brand,
			Model:      s.Model,
			Image:      s.Image,
			Confidence: s.Confidence,
			Method:     string(s.Method),
			CapturedAt: s.CapturedAt,
		})
	}
	return out
}

// конвертация Domain -> DTO для метрики здоровья
func metricToDTO(m models.HealthMetric) dto.SourceHealthDTO {
	out := dto.SourceHealthDTO{
		SourceID:            m.SourceID,
		Status:              m.Status.String(),
		SuccessRate:         m.SuccessRate,
		TotalRequests:       m.TotalRequests,
		SuccessfulRequests:  m.SuccessfulRequests,
		ConsecutiveFailures: m.ConsecutiveFailures,
		CircuitOpen:         m.CircuitOpen,
		AvgResponseMs:       m.AvgResponseTime.Milliseconds(),
	}
	if !m.LastSuccess.IsZero() {
		out.LastSuccess = m.LastSuccess.UTC().Format(time.RFC3339)
	}
	for _, issue := range m.Issues {
		out.Issues = append(out.Issues, string(issue))
	}
	out.Messages = m.Messages
	return out
}
