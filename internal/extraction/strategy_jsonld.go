// стратегия №1: structured data (JSON-LD)
// самый надёжный источник: магазины сами размечают товары для поисковиков
// в <script type="application/ld+json"> блоках
package extraction

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/net/html"

	"dropalert/internal/domain/models"
	"dropalert/internal/interfaces"
)

type JSONLDStrategy struct{}

func NewJSONLDStrategy() *JSONLDStrategy {
	return &JSONLDStrategy{}
}

func (s *JSONLDStrategy) Method() models.ExtractionMethod {
	return models.MethodJSONLD
}

// Parse вытаскивает все ld+json блоки и собирает из них Product-сущности
func (s *JSONLDStrategy) Parse(raw []byte, pageURL string) ([]models.Candidate, error) {
	doc, err := html.Parse(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}

	scripts := findAll(doc, func(n *html.Node) bool {
		return isElem(n, "script") && strings.EqualFold(attrVal(n, "type"), "application/ld+json")
	})

	var out []models.Candidate
	for _, node := range scripts {
		if node.FirstChild == nil {
			continue
		}

		var payload interface{}
		// один битый блок не должен ронять всю страницу
		if err := json.Unmarshal([]byte(node.FirstChild.Data), &payload); err != nil {
			continue
		}

		collectLDProducts(payload, &out)
	}

	return out, nil
}

// collectLDProducts рекурсивно обходит JSON-LD структуру
// Product может лежать на верхнем уровне, в массиве, в @graph или в itemListElement
func collectLDProducts(payload interface{}, out *[]models.Candidate) {
	switch v := payload.(type) {
	case []interface{}:
		for _, item := range v {
			collectLDProducts(item, out)
		}
	case map[string]interface{}:
		if ldType, _ := v["@type"].(string); strings.EqualFold(ldType, "Product") {
			if c, ok := candidateFromLDProduct(v); ok {
				*out = append(*out, c)
			}
			return
		}
		for _, key := range []string{"@graph", "itemListElement", "item", "mainEntity"} {
			if nested, ok := v[key]; ok {
				collectLDProducts(nested, out)
			}
		}
	}
}

// candidateFromLDProduct маппит один schema.org Product в кандидата
func candidateFromLDProduct(p map[string]interface{}) (models.Candidate, bool) {
	c := models.Candidate{
		Name:  stringField(p, "name"),
		URL:   stringField(p, "url"),
		SKU:   stringField(p, "sku"),
		Model: stringField(p, "model"),
	}
	if c.Name == "" {
		return models.Candidate{}, false
	}

	// brand бывает строкой или объектом {"@type": "Brand", "name": ...}
	switch b := p["brand"].(type) {
	case string:
		c.Brand = b
	case map[string]interface{}:
		c.Brand = stringField(b, "name")
	}

	// image бывает строкой или массивом строк
	switch img := p["image"].(type) {
	case string:
		c.Image = img
	case []interface{}:
		if len(img) > 0 {
			if first, ok := img[0].(string); ok {
				c.Image = first
			}
		}
	}

	if offers := firstOffer(p["offers"]); offers != nil {
		c.PriceText = priceFromOffer(offers)
		availability := strings.ToLower(stringField(offers, "availability"))
		c.InStock = strings.Contains(availability, "instock")
		if c.URL == "" {
			c.URL = stringField(offers, "url")
		}
	}

	return c, true
}

// firstOffer нормализует offers: объект, массив или AggregateOffer
func firstOffer(offers interface{}) map[string]interface{} {
	switch v := offers.(type) {
	case map[string]interface{}:
		return v
	case []interface{}:
		if len(v) > 0 {
			if first, ok := v[0].(map[string]interface{}); ok {
				return first
			}
		}
	}
	return nil
}

// priceFromOffer достаёт цену: price, lowPrice (AggregateOffer) или priceSpecification
func priceFromOffer(offer map[string]interface{}) string {
	for _, key := range []string{"price", "lowPrice"} {
		switch p := offer[key].(type) {
		case string:
			if p != "" {
				return p
			}
		case float64:
			return fmt.Sprintf("%g", p)
		}
	}
	if spec, ok := offer["priceSpecification"].(map[string]interface{}); ok {
		return stringField(spec, "price")
	}
	return ""
}

// stringField возвращает строковое поле JSON-объекта, число конвертируется в строку
func stringField(m map[string]interface{}, key string) string {
	switch v := m[key].(type) {
	case string:
		return v
	case float64:
		return fmt.Sprintf("%g", v)
	}
	return ""
}

// Проверка на этапе компиляции, что тип реализует интерфейс
var _ interfaces.ParseStrategy = (*JSONLDStrategy)(nil)
