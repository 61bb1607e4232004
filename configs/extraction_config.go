package configs

// ExtractionConfig - настройки пайплайна извлечения и скоринга уверенности
type ExtractionConfig struct {
	MinConfidence   float64 `yaml:"min_confidence"`   // порог принятия результата стратегии
	RequiredWeight  float64 `yaml:"required_weight"`  // суммарный вес обязательных полей
	ImportantWeight float64 `yaml:"important_weight"` // суммарный вес важных полей
	InvalidPenalty  float64 `yaml:"invalid_penalty"`  // штраф за каждое невалидное поле
	PriceMin        float64 `yaml:"price_min"`        // нижняя граница валидной цены
	PriceMax        float64 `yaml:"price_max"`        // верхняя граница валидной цены
	MinNameLen      int     `yaml:"min_name_len"`     // минимальная длина валидного названия
}

// DefaultExtractionConfig - веса и пороги скоринга:
// required {name, price, url} по 0.7/3, important {brand, model, sku, image} по 0.3/4,
// штраф 0.2 за невалидное поле, порог принятия 0.3
func DefaultExtractionConfig() *ExtractionConfig {
	return &ExtractionConfig{
		MinConfidence:   0.3,
		RequiredWeight:  0.7,
		ImportantWeight: 0.3,
		InvalidPenalty:  0.2,
		PriceMin:        0.01,
		PriceMax:        10000,
		MinNameLen:      3,
	}
}
