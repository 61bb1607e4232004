package configs

import "time"

// DispatchConfig - настройки очереди отправки алертов
type DispatchConfig struct {
	QueueCapacity int           `yaml:"queue_capacity"` // размер ограниченной очереди
	AlertCooldown time.Duration `yaml:"alert_cooldown"` // cooldown по (получатель, товар, тип)
	DailyFree     int           `yaml:"daily_free"`     // дневной лимит алертов для free
	DailyPremium  int           `yaml:"daily_premium"`  // дневной лимит для premium
	SendDelay     time.Duration `yaml:"send_delay"`     // пауза между отправками (щадим нотификатор)
}

// DefaultDispatchConfig - лимиты из продовой конфигурации
func DefaultDispatchConfig() *DispatchConfig {
	return &DispatchConfig{
		QueueCapacity: 256,
		AlertCooldown: 2 * time.Hour,
		DailyFree:     5,
		DailyPremium:  1000,
		SendDelay:     30 * time.Millisecond,
	}
}
