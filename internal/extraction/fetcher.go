// HTTP-коннектор источника: загрузка страницы выдачи с ретраями и вежливыми паузами
// каждый источник получает свой коннектор со своим rate limiter-ом и набором стратегий
package extraction

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"dropalert/configs"
	"dropalert/internal/interfaces"
)

// ротация User-Agent, чтобы запросы не выглядели однообразно
var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:125.0) Gecko/20100101 Firefox/125.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.3 Safari/605.1.15",
}

// maxBodyBytes ограничивает размер читаемого ответа (страница выдачи, не файл)
const maxBodyBytes = 8 << 20

// HTTPConnector - коннектор одного источника поверх стандартного http.Client
type HTTPConnector struct {
	sourceID   string
	baseURL    string
	queryParam string
	client     *http.Client
	limiter    interfaces.RateLimiter
	strategies []interfaces.ParseStrategy
	maxRetries int
	retryBase  time.Duration
}

// NewHTTPConnector создаёт коннектор источника
// limiter обязателен: каждый запрос сначала ждёт токен, потом идёт в сеть
func NewHTTPConnector(entry configs.SourceEntry, cfg *configs.SourcesConfig, limiter interfaces.RateLimiter, strategies []interfaces.ParseStrategy) *HTTPConnector {
	transport := &http.Transport{
		MaxIdleConns:          cfg.MaxIdleConns,
		MaxIdleConnsPerHost:   cfg.MaxIdleConns,
		IdleConnTimeout:       cfg.IdleConnTimeout,
		TLSHandshakeTimeout:   cfg.TLSHandshakeTimeout,
		ResponseHeaderTimeout: cfg.ResponseHeaderTimeout,
	}

	return &HTTPConnector{
		sourceID:   entry.ID,
		baseURL:    entry.BaseURL,
		queryParam: "q",
		client: &http.Client{
			Transport: transport,
			Timeout:   cfg.RequestTimeout,
		},
		limiter:    limiter,
		strategies: strategies,
		maxRetries: cfg.MaxRetries,
		retryBase:  cfg.RetryBaseDelay,
	}
}

func (c *HTTPConnector) Name() string {
	return c.sourceID
}

func (c *HTTPConnector) Strategies() []interfaces.ParseStrategy {
	return c.strategies
}

// Fetch загружает страницу выдачи по запросу
// transport-ошибки, 5xx и 429 ретраятся с экспоненциальным backoff и джиттером,
// 429 дополнительно уважает Retry-After, 403 не ретраится вовсе - источник нас заблокировал
func (c *HTTPConnector) Fetch(ctx context.Context, query string) ([]byte, error) {
	searchURL := c.buildURL(query)

	var lastErr error
	var retryAfter time.Duration
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			if err := c.sleepBackoff(ctx, attempt, retryAfter); err != nil {
				return nil, err
			}
		}

		// вежливая пауза перед каждым запросом
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait failed: %w", err)
		}

		body, hint, err := c.doRequest(ctx, searchURL)
		if err == nil {
			return body, nil
		}
		lastErr = err
		retryAfter = hint

		// блокировку ретраями не пробить, только усугубим
		if errors.Is(err, ErrBlocked) {
			return nil, err
		}
	}

	return nil, fmt.Errorf("fetch from %s failed after %d attempts: %w", c.sourceID, c.maxRetries+1, lastErr)
}

// buildURL добавляет поисковый запрос к базовому URL источника
func (c *HTTPConnector) buildURL(query string) string {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return c.baseURL
	}
	params := u.Query()
	params.Set(c.queryParam, query)
	u.RawQuery = params.Encode()
	return u.String()
}

// doRequest выполняет один HTTP запрос
// второй результат - подсказка Retry-After от источника (0 = не было)
func (c *HTTPConnector) doRequest(ctx context.Context, searchURL string) ([]byte, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build request: %w", err)
	}

	req.Header.Set("User-Agent", userAgents[rand.Intn(len(userAgents))])
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/json;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("network error: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, parseRetryAfter(resp), ErrRateLimited
	case resp.StatusCode == http.StatusForbidden:
		return nil, 0, ErrBlocked
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, 0, &HTTPStatusError{StatusCode: resp.StatusCode, SourceID: c.sourceID}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read response body: %w", err)
	}
	return body, 0, nil
}

// parseRetryAfter читает задержку из заголовка Retry-After (формат в секундах)
func parseRetryAfter(resp *http.Response) time.Duration {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return 0
}

// sleepBackoff ждёт перед повторной попыткой
// база удваивается с каждой попыткой, джиттер размазывает повторы по времени,
// Retry-After от источника имеет приоритет, если он больше расчётной задержки
func (c *HTTPConnector) sleepBackoff(ctx context.Context, attempt int, retryAfter time.Duration) error {
	delay := c.retryBase * time.Duration(1<<(attempt-1))
	if c.retryBase > 1 {
		delay += time.Duration(rand.Int63n(int64(c.retryBase / 2)))
	}
	if retryAfter > delay {
		delay = retryAfter
	}

	select {
	case <-time.After(delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Проверка на этапе компиляции, что тип реализует интерфейс
var _ interfaces.SourceConnector = (*HTTPConnector)(nil)
