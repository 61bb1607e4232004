// DTO модели HTTP сервера операционного дашборда
package dto

import (
	"errors"
	"strings"
	"time"
)

// SearchRequest - запрос поиска товара по всем источникам
type SearchRequest struct {
	Query string `json:"query"`
}

// ValidateAndNormalize проверяет и нормализует поисковый запрос
func (r *SearchRequest) ValidateAndNormalize() error {
	r.Query = strings.TrimSpace(r.Query)
	if r.Query == "" {
		return errors.New("query must not be empty")
	}
	if len(r.Query) > 200 {
		return errors.New("query is too long")
	}
	r.Query = strings.ToLower(r.Query)
	return nil
}

// ProductDTO - снапшот товара в ответе поиска
type ProductDTO struct {
	SourceID   string    `json:"source_id"`
	SKU        string    `json:"sku"`
	Name       string    `json:"name"`
	Price      *float64  `json:"price,omitempty"`
	InStock    bool      `json:"in_stock"`
	Sizes      []string  `json:"sizes,omitempty"`
	URL        string    `json:"url"`
	Brand      string    `json:"brand,omitempty"`
	Model      string    `json:"model,omitempty"`
	Image      string    `json:"image,omitempty"`
	Confidence float64   `json:"confidence"`
	Method     string    `json:"method"`
	CapturedAt time.Time `json:"captured_at"`
}

// SearchResponse - ответ поиска
type SearchResponse struct {
	Query    string       `json:"query"`
	Total    int          `json:"total"`
	Products []ProductDTO `json:"products"`
}

// SourceHealthDTO - метрика здоровья одного источника
type SourceHealthDTO struct {
	SourceID            string   `json:"source_id"`
	Status              string   `json:"status"`
	SuccessRate         float64  `json:"success_rate"`
	TotalRequests       int      `json:"total_requests"`
	SuccessfulRequests  int      `json:"successful_requests"`
	ConsecutiveFailures int      `json:"consecutive_failures"`
	LastSuccess         string   `json:"last_success,omitempty"`
	CircuitOpen         bool     `json:"circuit_open"`
	AvgResponseMs       int64    `json:"avg_response_ms"`
	Issues              []string `json:"issues,omitempty"`
	Messages            []string `json:"messages,omitempty"`
}

// HealthAlertDTO - алерт здоровья для оператора
type HealthAlertDTO struct {
	SourceID  string         `json:"source_id"`
	Type      string         `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}
