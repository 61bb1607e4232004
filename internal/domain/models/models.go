// описание базовых доменных моделей: источник и снапшот товара
package models

import (
	"fmt"
	"strings"
	"time"
)

// ExtractionMethod - метод, которым была извлечена карточка товара (в порядке предпочтения)
type ExtractionMethod string

const (
	MethodJSONLD       ExtractionMethod = "json_ld"         // встроенные structured-data блоки
	MethodScriptJSON   ExtractionMethod = "script_json"     // JSON-состояние внутри <script>
	MethodHTMLStruct   ExtractionMethod = "html_structured" // структурные селекторы по разметке
	MethodHTMLFallback ExtractionMethod = "html_fallback"   // эвристический разбор текста (последний шанс)
)

// DelayRange - диапазон задержки между запросами к источнику (джиттер)
type DelayRange struct {
	Min time.Duration `yaml:"min"`
	Max time.Duration `yaml:"max"`
}

// Source - внешний ритейлер/маркетплейс, который мы опрашиваем
// создаётся из статической конфигурации, в рантайме меняется только интервал опроса
// (аварийный троттлинг от монитора здоровья)
type Source struct {
	ID            string             // стабильный идентификатор источника
	Name          string             // отображаемое имя
	Enabled       bool               // включён ли источник
	PollInterval  time.Duration      // интервал опроса
	MaxConcurrent int                // ограничение конкурентности для этого источника
	Priority      int                // приоритет (1 - наивысший)
	Strategies    []ExtractionMethod // порядок стратегий парсинга
	RequestDelay  DelayRange         // диапазон задержки между запросами
	Resale        bool               // ресейл-площадка (сбор данных для flip-анализа)
}

// ProductSnapshot - состояние одного товара на одном источнике в момент времени
type ProductSnapshot struct {
	SourceID   string           // источник, откуда пришли данные
	SKU        string           // артикул товара
	Name       string           // название товара
	Price      *float64         // цена (может отсутствовать)
	InStock    bool             // наличие
	Sizes      []string         // доступные размеры
	URL        string           // ссылка на товар
	Brand      string           // бренд (важное, но не обязательное поле)
	Model      string           // модель
	Image      string           // ссылка на изображение
	CapturedAt time.Time        // момент снятия снапшота
	Confidence float64          // уверенность извлечения [0,1]
	Method     ExtractionMethod // какой стратегией получены данные
}

// ItemKey возвращает стабильный ключ товара: SKU + источник
// по этому ключу достаём предыдущий снапшот для детектора изменений
func (s *ProductSnapshot) ItemKey() string {
	return fmt.Sprintf("%s@%s", strings.ToLower(s.SKU), s.SourceID)
}

// HasPrice сообщает, есть ли у снапшота валидная цена
func (s *ProductSnapshot) HasPrice() bool {
	return s.Price != nil
}

// ResaleSample - одна точка данных ресейл-рынка по товару
type ResaleSample struct {
	Keyword    string    // ключевое слово товара
	SourceID   string    // ресейл-площадка
	Price      float64   // цена продажи
	RecordedAt time.Time // когда зафиксирована
}
