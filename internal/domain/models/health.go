// модели для мониторинга здоровья источников
package models

import "time"

// HealthStatus - уровень здоровья источника
type HealthStatus int

const (
	StatusHealthy HealthStatus = iota
	StatusWarning
	StatusCritical
	StatusDown
)

// String возвращает строковое представление статуса
func (s HealthStatus) String() string {
	switch s {
	case StatusHealthy:
		return "healthy"
	case StatusWarning:
		return "warning"
	case StatusCritical:
		return "critical"
	case StatusDown:
		return "down"
	}
	return "unknown"
}

// WorseThan сравнивает серьёзность статусов (больше = хуже)
func (s HealthStatus) WorseThan(other HealthStatus) bool {
	return s > other
}

// IssueTag - тег проблемы, выведенный из текста недавних ошибок
type IssueTag string

const (
	IssueRateLimiting IssueTag = "rate_limiting" // 429, too many requests
	IssueBlocking     IssueTag = "blocking"      // 403, captcha
	IssueSiteChanges  IssueTag = "site_changes"  // селекторы перестали находить данные
	IssueNetwork      IssueTag = "network"       // таймауты, DNS, connection refused
	IssueParsing      IssueTag = "parsing"       // ошибки декодирования
)

// HealthMetric - рассчитанная метрика здоровья одного источника
// пересчитывается монитором на фиксированном интервале по скользящему окну исходов
type HealthMetric struct {
	SourceID            string        // источник
	Status              HealthStatus  // классификация
	SuccessRate         float64       // доля успешных запросов в окне
	TotalRequests       int           // всего запросов
	SuccessfulRequests  int           // успешных запросов
	ConsecutiveFailures int           // подряд идущих неудач
	LastSuccess         time.Time     // время последнего успешного извлечения (zero = не было)
	CircuitOpen         bool          // открыт ли circuit breaker
	AvgResponseTime     time.Duration // среднее время ответа в окне
	Issues              []IssueTag    // обнаруженные теги проблем
	Messages            []string      // человекочитаемые описания проблем
	CheckedAt           time.Time     // момент классификации
}

// HealthAlert - алерт о здоровье источника (для оператора)
// создаётся монитором при пересечении порога, мутируется только подтверждением
type HealthAlert struct {
	SourceID     string         // источник
	Type         string         // тип алерта (status_critical, site_changes, rate_limiting)
	Severity     HealthStatus   // серьёзность
	Message      string         // описание
	Details      map[string]any // детали для оператора
	Timestamp    time.Time      // когда поднят
	Acknowledged bool           // подтверждён ли оператором
}

// HealthSummary - сводка по всем источникам для операционных дашбордов
type HealthSummary struct {
	OverallStatus  HealthStatus `json:"overall_status"`
	TotalSources   int          `json:"total_sources"`
	Healthy        int          `json:"healthy"`
	Warning        int          `json:"warning"`
	Critical       int          `json:"critical"`
	Down           int          `json:"down"`
	AvgSuccessRate float64      `json:"average_success_rate"`
	RecentAlerts   int          `json:"recent_alerts"`
	CheckedAt      time.Time    `json:"checked_at"`
}

// Outcome - исход одной попытки извлечения, записывается пайплайном
// и потребляется монитором здоровья
type Outcome struct {
	SourceID  string
	Success   bool
	Latency   time.Duration
	ErrorText string    // текст ошибки для паттерн-матчинга тегов
	At        time.Time // момент завершения попытки
}
