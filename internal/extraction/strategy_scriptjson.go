// стратегия №2: JSON-состояние приложения внутри <script>
// SPA-магазины кладут весь каталог в window.__INITIAL_STATE__ / __NEXT_DATA__,
// разбираем этот блоб и ищем в нём товароподобные объекты
package extraction

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"dropalert/internal/domain/models"
	"dropalert/internal/interfaces"
)

// маркеры, за которыми лежит JSON состояния
var stateMarkers = []*regexp.Regexp{
	regexp.MustCompile(`window\.__INITIAL_STATE__\s*=\s*`),
	regexp.MustCompile(`window\.__PRELOADED_STATE__\s*=\s*`),
	regexp.MustCompile(`window\.__NUXT__\s*=\s*`),
	regexp.MustCompile(`<script[^>]+id="__NEXT_DATA__"[^>]*>`),
}

type ScriptJSONStrategy struct{}

func NewScriptJSONStrategy() *ScriptJSONStrategy {
	return &ScriptJSONStrategy{}
}

func (s *ScriptJSONStrategy) Method() models.ExtractionMethod {
	return models.MethodScriptJSON
}

// Parse ищет в странице JSON-блобы состояния и обходит их в поисках товаров
func (s *ScriptJSONStrategy) Parse(raw []byte, pageURL string) ([]models.Candidate, error) {
	page := string(raw)

	var out []models.Candidate
	for _, marker := range stateMarkers {
		loc := marker.FindStringIndex(page)
		if loc == nil {
			continue
		}

		blob := extractJSONObject(page[loc[1]:])
		if blob == "" {
			continue
		}

		var payload interface{}
		if err := json.Unmarshal([]byte(blob), &payload); err != nil {
			continue
		}

		walkForProducts(payload, &out, 0)
	}

	return out, nil
}

// extractJSONObject вырезает сбалансированный JSON-объект с начала строки
// строковые литералы учитываются, чтобы скобки внутри строк не ломали счётчик
func extractJSONObject(s string) string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}

const maxWalkDepth = 12

// walkForProducts рекурсивно ищет объекты с товарными признаками:
// есть поле названия и поле цены - значит перед нами карточка товара
func walkForProducts(payload interface{}, out *[]models.Candidate, depth int) {
	if depth > maxWalkDepth {
		return
	}

	switch v := payload.(type) {
	case []interface{}:
		for _, item := range v {
			walkForProducts(item, out, depth+1)
		}
	case map[string]interface{}:
		if c, ok := candidateFromStateObject(v); ok {
			*out = append(*out, c)
			return
		}
		for _, nested := range v {
			walkForProducts(nested, out, depth+1)
		}
	}
}

// candidateFromStateObject пробует собрать кандидата из generic JSON-объекта
func candidateFromStateObject(m map[string]interface{}) (models.Candidate, bool) {
	name := firstString(m, "name", "title", "productName", "displayName")
	price := firstPriceText(m)
	if name == "" || price == "" {
		return models.Candidate{}, false
	}

	c := models.Candidate{
		Name:      name,
		PriceText: price,
		URL:       firstString(m, "url", "productUrl", "link", "href"),
		SKU:       firstString(m, "sku", "styleCode", "styleId", "productId", "id"),
		Brand:     firstString(m, "brand", "brandName"),
		Model:     firstString(m, "model", "colorway", "style"),
		Image:     firstString(m, "image", "imageUrl", "thumbnail"),
		InStock:   stockFromStateObject(m),
	}
	return c, true
}

// firstString возвращает первое непустое строковое значение из списка ключей
func firstString(m map[string]interface{}, keys ...string) string {
	for _, key := range keys {
		switch v := m[key].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return fmt.Sprintf("%g", v)
		}
	}
	return ""
}

// firstPriceText достаёт цену: плоское поле или вложенный объект {amount|value|current}
func firstPriceText(m map[string]interface{}) string {
	for _, key := range []string{"price", "currentPrice", "retailPrice", "lowestAsk", "salePrice"} {
		switch v := m[key].(type) {
		case float64:
			return fmt.Sprintf("%g", v)
		case string:
			if v != "" {
				return v
			}
		case map[string]interface{}:
			if nested := firstString(v, "amount", "value", "current", "fullPrice"); nested != "" {
				return nested
			}
		}
	}
	return ""
}

// stockFromStateObject читает признак наличия; отсутствие поля трактуем как "в наличии",
// потому что карточки распроданных товаров каталоги обычно помечают явно
func stockFromStateObject(m map[string]interface{}) bool {
	for _, key := range []string{"inStock", "available", "isAvailable", "purchasable"} {
		if v, ok := m[key].(bool); ok {
			return v
		}
	}
	if status, ok := m["availability"].(string); ok {
		return strings.Contains(strings.ToLower(status), "instock") ||
			strings.EqualFold(status, "available")
	}
	return true
}

// Проверка на этапе компиляции, что тип реализует интерфейс
var _ interfaces.ParseStrategy = (*ScriptJSONStrategy)(nil)
