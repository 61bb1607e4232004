package configs

import "time"

// OrchestratorConfig - настройки оркестратора поиска/мониторинга
type OrchestratorConfig struct {
	MinResults        int           `yaml:"min_results"`         // меньше - подключаем резервные источники
	BackupDelay       time.Duration `yaml:"backup_delay"`        // задержка перед запросом к нездоровому источнику
	SearchTimeout     time.Duration `yaml:"search_timeout"`      // таймаут конкурентного поиска
	MonitorInterval   time.Duration `yaml:"monitor_interval"`    // период цикла мониторинга
	ResaleInterval    time.Duration `yaml:"resale_interval"`     // период сбора ресейл-данных
	SemaSlotTimeout   time.Duration `yaml:"sema_slot_timeout"`   // ожидание слота глобального семафора воркером
	MaxTrackedKeyword int           `yaml:"max_tracked_keyword"` // ограничение ключевых слов за цикл
	CircuitBreakerCfg CircuitBreakerConfig `yaml:"circuit_breaker"`
}

// DefaultOrchestratorConfig возвращает дефолты оркестратора
func DefaultOrchestratorConfig() *OrchestratorConfig {
	return &OrchestratorConfig{
		MinResults:        5,
		BackupDelay:       2 * time.Second,
		SearchTimeout:     45 * time.Second,
		MonitorInterval:   10 * time.Minute,
		ResaleInterval:    2 * time.Hour,
		SemaSlotTimeout:   200 * time.Millisecond,
		MaxTrackedKeyword: 50,
		CircuitBreakerCfg: DefaultCircuitBreakerConfig(),
	}
}
