package sourcehealth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"dropalert/configs"
	"dropalert/internal/domain/models"
)

func outcomes(sourceID string, at time.Time, results ...bool) []models.Outcome {
	out := make([]models.Outcome, 0, len(results))
	for _, ok := range results {
		o := models.Outcome{SourceID: sourceID, Success: ok, Latency: 100 * time.Millisecond, At: at}
		if !ok {
			o.ErrorText = "network error: connection refused"
		}
		out = append(out, o)
	}
	return out
}

func viewFrom(outs []models.Outcome) stateView {
	v := stateView{Outcomes: outs, TotalRequests: len(outs)}
	consecutive := 0
	for _, o := range outs {
		if o.Success {
			v.TotalSuccesses++
			v.LastSuccess = o.At
			consecutive = 0
		} else {
			consecutive++
		}
	}
	v.ConsecutiveFailures = consecutive
	return v
}

// проверяем классификацию по порогам success rate
func TestClassifier_SuccessRateThresholds(t *testing.T) {
	c := NewClassifier(configs.DefaultHealthMonitorConfig())
	now := time.Now()

	t.Run("healthy at high rate", func(t *testing.T) {
		view := viewFrom(outcomes("nike", now, true, true, true, true, true, true, true, true, true, false))
		m := c.Classify("nike", view, true, false, now)
		assert.Equal(t, models.StatusHealthy, m.Status)
		assert.InDelta(t, 0.9, m.SuccessRate, 0.001)
	})

	t.Run("warning below 0.7", func(t *testing.T) {
		view := viewFrom(outcomes("nike", now, true, true, true, false, false, true, true, false, true, false))
		m := c.Classify("nike", view, true, false, now)
		assert.Equal(t, models.StatusWarning, m.Status)
	})

	t.Run("critical below 0.5", func(t *testing.T) {
		view := viewFrom(outcomes("nike", now, true, false, false, false, true, false, false, false, true, false))
		m := c.Classify("nike", view, true, false, now)
		assert.Equal(t, models.StatusCritical, m.Status)
	})
}

// проверяем пороги подряд идущих неудач
func TestClassifier_ConsecutiveFailures(t *testing.T) {
	c := NewClassifier(configs.DefaultHealthMonitorConfig())
	now := time.Now()

	t.Run("five in a row is warning", func(t *testing.T) {
		// success rate держим выше порогов большим окном успехов
		results := make([]bool, 0, 45)
		for i := 0; i < 40; i++ {
			results = append(results, true)
		}
		for i := 0; i < 5; i++ {
			results = append(results, false)
		}
		m := c.Classify("nike", viewFrom(outcomes("nike", now, results...)), true, false, now)
		assert.Equal(t, models.StatusWarning, m.Status)
		assert.Equal(t, 5, m.ConsecutiveFailures)
	})

	t.Run("ten in a row is critical", func(t *testing.T) {
		results := make([]bool, 0, 50)
		for i := 0; i < 40; i++ {
			results = append(results, true)
		}
		for i := 0; i < 10; i++ {
			results = append(results, false)
		}
		m := c.Classify("nike", viewFrom(outcomes("nike", now, results...)), true, false, now)
		assert.Equal(t, models.StatusCritical, m.Status)
	})
}

// статус не понижается: критичный по одному признаку источник
// не становится warning из-за более мягкого признака
func TestClassifier_NoDowngrade(t *testing.T) {
	c := NewClassifier(configs.DefaultHealthMonitorConfig())
	now := time.Now()

	// breaker открыт (Critical) + success rate в зоне Warning
	view := viewFrom(outcomes("nike", now, true, true, true, false, false, true, true, false, true, false))
	m := c.Classify("nike", view, true, true, now)
	assert.Equal(t, models.StatusCritical, m.Status)
	assert.True(t, m.CircuitOpen)
}

// проверяем выключенный источник и застой
func TestClassifier_DownAndStaleness(t *testing.T) {
	c := NewClassifier(configs.DefaultHealthMonitorConfig())
	now := time.Now()

	t.Run("disabled source is down", func(t *testing.T) {
		m := c.Classify("goat", stateView{}, false, false, now)
		assert.Equal(t, models.StatusDown, m.Status)
	})

	t.Run("stale success is warning", func(t *testing.T) {
		view := viewFrom(outcomes("goat", now.Add(-3*time.Hour), true, true))
		m := c.Classify("goat", view, true, false, now)
		assert.Equal(t, models.StatusWarning, m.Status)
	})

	t.Run("no success ever is critical", func(t *testing.T) {
		view := viewFrom(outcomes("goat", now, false, false))
		m := c.Classify("goat", view, true, false, now)
		assert.Equal(t, models.StatusCritical, m.Status)
	})

	t.Run("no data stays healthy", func(t *testing.T) {
		m := c.Classify("goat", stateView{}, true, false, now)
		assert.Equal(t, models.StatusHealthy, m.Status)
	})
}

// источник без связности классифицируется как Down, а не Critical
func TestClassifier_UnreachableIsDown(t *testing.T) {
	c := NewClassifier(configs.DefaultHealthMonitorConfig())
	now := time.Now()

	t.Run("all network failures is down", func(t *testing.T) {
		view := viewFrom(outcomes("goat", now, false, false, false, false, false))
		m := c.Classify("goat", view, true, false, now)
		assert.Equal(t, models.StatusDown, m.Status)
	})

	t.Run("non-network failure means source responds", func(t *testing.T) {
		outs := outcomes("goat", now, false, false, false, false)
		outs = append(outs, models.Outcome{
			SourceID: "goat", Success: false,
			ErrorText: "blocked by source (HTTP 403)", At: now,
		})
		m := c.Classify("goat", viewFrom(outs), true, false, now)
		assert.Equal(t, models.StatusCritical, m.Status)
	})

	t.Run("single success keeps source reachable", func(t *testing.T) {
		outs := outcomes("goat", now, false, false, true, false, false, false)
		m := c.Classify("goat", viewFrom(outs), true, false, now)
		assert.NotEqual(t, models.StatusDown, m.Status)
	})

	t.Run("short window is not enough", func(t *testing.T) {
		// двух сетевых неудач мало для вывода о потере связности
		view := viewFrom(outcomes("goat", now, false, false))
		m := c.Classify("goat", view, true, false, now)
		assert.Equal(t, models.StatusCritical, m.Status)
	})
}

// проверяем теги проблем из текстов ошибок
func TestClassifier_IssueTags(t *testing.T) {
	c := NewClassifier(configs.DefaultHealthMonitorConfig())
	now := time.Now()

	view := viewFrom([]models.Outcome{
		{SourceID: "nike", Success: false, ErrorText: "rate limited by source (HTTP 429)", At: now},
		{SourceID: "nike", Success: false, ErrorText: "blocked by source (HTTP 403)", At: now},
		{SourceID: "nike", Success: false, ErrorText: "parsing failed: all strategies exhausted", At: now},
		{SourceID: "nike", Success: false, ErrorText: "network error: dial tcp: i/o timeout", At: now},
		{SourceID: "nike", Success: true, At: now},
	})

	m := c.Classify("nike", view, true, false, now)
	assert.Contains(t, m.Issues, models.IssueRateLimiting)
	assert.Contains(t, m.Issues, models.IssueBlocking)
	assert.Contains(t, m.Issues, models.IssueSiteChanges)
	assert.Contains(t, m.Issues, models.IssueNetwork)
	assert.NotContains(t, m.Issues, models.IssueParsing)
}

// один текст ошибки даёт ровно один тег по специфичности
func TestClassifyErrorText(t *testing.T) {
	assert.Equal(t, models.IssueRateLimiting, classifyErrorText("HTTP 429 too many requests"))
	assert.Equal(t, models.IssueBlocking, classifyErrorText("captcha challenge returned"))
	assert.Equal(t, models.IssueSiteChanges, classifyErrorText("all strategies exhausted"))
	assert.Equal(t, models.IssueParsing, classifyErrorText("json decode error"))
	assert.Equal(t, models.IssueNetwork, classifyErrorText("dial tcp: connection refused"))
}
