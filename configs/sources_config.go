package configs

import "time"

// SourceEntry - статическое описание одного источника из конфигурации
type SourceEntry struct {
	ID              string        `yaml:"id"`
	Name            string        `yaml:"name"`
	Enabled         bool          `yaml:"enabled"`
	BaseURL         string        `yaml:"base_url"`
	PollInterval    time.Duration `yaml:"poll_interval"`
	MaxConcurrent   int           `yaml:"max_concurrent"`
	Priority        int           `yaml:"priority"` // 1 - наивысший
	Strategies      []string      `yaml:"strategies"`
	RequestDelayMin time.Duration `yaml:"request_delay_min"`
	RequestDelayMax time.Duration `yaml:"request_delay_max"`
	Resale          bool          `yaml:"resale"` // ресейл-площадка (данные для flip-анализа)
}

// SourcesConfig - список источников плюс общие настройки их HTTP клиентов
type SourcesConfig struct {
	Sources               []SourceEntry `yaml:"sources"`
	RequestTimeout        time.Duration `yaml:"request_timeout"`         // обязательный пер-запросный таймаут
	MaxRetries            int           `yaml:"max_retries"`             // попытки на transport-ошибках
	RetryBaseDelay        time.Duration `yaml:"retry_base_delay"`        // база экспоненциального backoff
	MaxIdleConns          int           `yaml:"max_idle_conns"`          // keep-alive соединения http клиента
	IdleConnTimeout       time.Duration `yaml:"idle_conn_timeout"`       // закрытие неиспользуемого соединения
	TLSHandshakeTimeout   time.Duration `yaml:"tls_handshake_timeout"`   // максимум на TLS handshake
	ResponseHeaderTimeout time.Duration `yaml:"response_header_timeout"` // ожидание заголовков ответа
}

// DefaultSourcesConfig - дефолтный набор источников
// приоритеты и интервалы повторяют продовую раскладку: ритейл чаще, ресейл реже
func DefaultSourcesConfig() *SourcesConfig {
	return &SourcesConfig{
		Sources: []SourceEntry{
			{
				ID: "nike", Name: "Nike", Enabled: true,
				BaseURL:      "https://www.nike.com/w",
				PollInterval: 8 * time.Minute, MaxConcurrent: 3, Priority: 1,
				Strategies:      []string{"json_ld", "script_json", "html_structured", "html_fallback"},
				RequestDelayMin: 500 * time.Millisecond, RequestDelayMax: 2 * time.Second,
			},
			{
				ID: "adidas", Name: "Adidas", Enabled: true,
				BaseURL:      "https://www.adidas.com/us/search",
				PollInterval: 8 * time.Minute, MaxConcurrent: 3, Priority: 1,
				Strategies:      []string{"json_ld", "script_json", "html_structured", "html_fallback"},
				RequestDelayMin: 500 * time.Millisecond, RequestDelayMax: 2 * time.Second,
			},
			{
				ID: "footlocker", Name: "Foot Locker", Enabled: true,
				BaseURL:      "https://www.footlocker.com/search",
				PollInterval: 12 * time.Minute, MaxConcurrent: 2, Priority: 2,
				Strategies:      []string{"json_ld", "html_structured", "html_fallback"},
				RequestDelayMin: time.Second, RequestDelayMax: 3 * time.Second,
			},
			{
				ID: "stockx", Name: "StockX", Enabled: true,
				BaseURL:      "https://stockx.com/search",
				PollInterval: 15 * time.Minute, MaxConcurrent: 2, Priority: 3,
				Strategies:      []string{"script_json", "json_ld", "html_fallback"},
				RequestDelayMin: time.Second, RequestDelayMax: 3 * time.Second,
				Resale:          true,
			},
			{
				ID: "goat", Name: "GOAT", Enabled: true,
				BaseURL:      "https://www.goat.com/search",
				PollInterval: 15 * time.Minute, MaxConcurrent: 2, Priority: 3,
				Strategies:      []string{"script_json", "json_ld", "html_fallback"},
				RequestDelayMin: time.Second, RequestDelayMax: 3 * time.Second,
				Resale:          true,
			},
		},
		RequestTimeout:        30 * time.Second,
		MaxRetries:            3,
		RetryBaseDelay:        time.Second,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 15 * time.Second,
	}
}
