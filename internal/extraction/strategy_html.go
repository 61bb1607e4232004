// стратегии №3 и №4: разбор разметки
// html_structured ищет карточки товаров по характерным классам,
// html_fallback - последний шанс: любые ссылки, рядом с которыми видна цена
package extraction

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/net/html"

	"dropalert/internal/domain/models"
	"dropalert/internal/interfaces"
)

// HTMLStructuredStrategy разбирает сетку товаров по классовым селекторам
type HTMLStructuredStrategy struct{}

func NewHTMLStructuredStrategy() *HTMLStructuredStrategy {
	return &HTMLStructuredStrategy{}
}

func (s *HTMLStructuredStrategy) Method() models.ExtractionMethod {
	return models.MethodHTMLStruct
}

// классы контейнеров карточек, встречающиеся у поддерживаемых ритейлеров
var cardClassTokens = []string{"product-card", "product-tile", "product-item", "grid-product"}

// Parse находит контейнеры карточек и вынимает из каждого имя, цену, ссылку и картинку
func (s *HTMLStructuredStrategy) Parse(raw []byte, pageURL string) ([]models.Candidate, error) {
	doc, err := html.Parse(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}

	cards := findAll(doc, func(n *html.Node) bool {
		if n.Type != html.ElementNode {
			return false
		}
		for _, token := range cardClassTokens {
			if hasClassToken(n, token) {
				return true
			}
		}
		return false
	})

	var out []models.Candidate
	for _, card := range cards {
		// вложенные контейнеры дадут дубликаты - пропускаем карточку внутри карточки
		if insideCard(card) {
			continue
		}
		if c, ok := candidateFromCard(card); ok {
			out = append(out, c)
		}
	}

	return out, nil
}

// insideCard проверяет, лежит ли узел внутри другого контейнера карточки
func insideCard(n *html.Node) bool {
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Type != html.ElementNode {
			continue
		}
		for _, token := range cardClassTokens {
			if hasClassToken(p, token) {
				return true
			}
		}
	}
	return false
}

// candidateFromCard собирает кандидата из одного контейнера карточки
func candidateFromCard(card *html.Node) (models.Candidate, bool) {
	var c models.Candidate

	// название: элемент с классом *title*/*name* или заголовок
	if nameNode := findFirst(card, func(n *html.Node) bool {
		return n.Type == html.ElementNode &&
			(hasClassToken(n, "title") || hasClassToken(n, "name") || isElem(n, "h1", "h2", "h3", "h4"))
	}); nameNode != nil {
		c.Name = nodeText(nameNode)
	}

	if priceNode := findFirst(card, func(n *html.Node) bool {
		return n.Type == html.ElementNode && hasClassToken(n, "price")
	}); priceNode != nil {
		c.PriceText = nodeText(priceNode)
	}

	if link := findFirst(card, func(n *html.Node) bool {
		return isElem(n, "a") && attrVal(n, "href") != ""
	}); link != nil {
		c.URL = attrVal(link, "href")
	}

	if img := findFirst(card, func(n *html.Node) bool {
		return isElem(n, "img")
	}); img != nil {
		c.Image = attrVal(img, "src")
		if c.Image == "" {
			c.Image = attrVal(img, "data-src")
		}
	}

	if sku := attrVal(card, "data-sku"); sku != "" {
		c.SKU = sku
	} else if pid := attrVal(card, "data-product-id"); pid != "" {
		c.SKU = pid
	}

	// распроданность помечается бейджем в карточке
	cardText := strings.ToLower(nodeText(card))
	c.InStock = !strings.Contains(cardText, "sold out") && !strings.Contains(cardText, "out of stock")

	if c.Name == "" {
		return models.Candidate{}, false
	}
	return c, true
}

// HTMLFallbackStrategy - эвристика последнего шанса: разметка неизвестна,
// цепляемся за любую ссылку с осмысленным текстом, рядом с которой стоит цена
type HTMLFallbackStrategy struct{}

func NewHTMLFallbackStrategy() *HTMLFallbackStrategy {
	return &HTMLFallbackStrategy{}
}

func (s *HTMLFallbackStrategy) Method() models.ExtractionMethod {
	return models.MethodHTMLFallback
}

var currencyPriceRe = regexp.MustCompile(`[$€£]\s?\d[\d.,]*`)

func (s *HTMLFallbackStrategy) Parse(raw []byte, pageURL string) ([]models.Candidate, error) {
	doc, err := html.Parse(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}

	links := findAll(doc, func(n *html.Node) bool {
		return isElem(n, "a") && attrVal(n, "href") != ""
	})

	var out []models.Candidate
	for _, link := range links {
		name := nodeText(link)
		if len([]rune(name)) < 3 {
			continue
		}

		// цену ищем внутри самой ссылки или в ближайшем общем контейнере
		price := currencyPriceRe.FindString(nodeText(link))
		if price == "" && link.Parent != nil {
			price = currencyPriceRe.FindString(nodeText(link.Parent))
		}
		if price == "" {
			continue
		}

		// текст ссылки включает цену - вырезаем её из названия
		name = strings.TrimSpace(strings.Replace(name, price, "", 1))
		if name == "" {
			continue
		}

		out = append(out, models.Candidate{
			Name:      name,
			PriceText: price,
			URL:       attrVal(link, "href"),
			InStock:   true,
		})
	}

	return out, nil
}

// Проверка на этапе компиляции, что типы реализуют интерфейс
var (
	_ interfaces.ParseStrategy = (*HTMLStructuredStrategy)(nil)
	_ interfaces.ParseStrategy = (*HTMLFallbackStrategy)(nil)
)
