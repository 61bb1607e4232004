package configs

import "time"

// DetectorConfig - пороги детектора изменений
type DetectorConfig struct {
	RestockMinGap   time.Duration `yaml:"restock_min_gap"`    // минимальный возраст прошлого "нет в наличии"
	RestockLookback time.Duration `yaml:"restock_lookback"`   // старше - предыдущий снапшот не учитывается
	PriceDropRatio  float64       `yaml:"price_drop_ratio"`   // новая цена <= доля от старой
	PriceDropMinGap time.Duration `yaml:"price_drop_min_gap"` // минимальный разрыв между сравниваемыми ценами
	FlipMarginPct   float64       `yaml:"flip_margin_pct"`    // минимальная ресейл-маржа в процентах
	FlipMinSamples  int           `yaml:"flip_min_samples"`   // минимум ресейл-сэмплов для расчёта
	ResaleSampleCap int           `yaml:"resale_sample_cap"`  // сколько последних сэмплов брать в среднее
}

// DefaultDetectorConfig - пороги из продовой конфигурации
func DefaultDetectorConfig() *DetectorConfig {
	return &DetectorConfig{
		RestockMinGap:   30 * time.Minute,
		RestockLookback: 7 * 24 * time.Hour,
		PriceDropRatio:  0.95,
		PriceDropMinGap: time.Hour,
		FlipMarginPct:   25.0,
		FlipMinSamples:  3,
		ResaleSampleCap: 20,
	}
}
