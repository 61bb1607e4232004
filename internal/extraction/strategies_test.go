package extraction

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"dropalert/internal/domain/models"
)

// страница с разметкой schema.org Product
const jsonLDPage = `<!DOCTYPE html>
<html><head>
<script type="application/ld+json">
{
  "@context": "https://schema.org",
  "@type": "Product",
  "name": "Air Jordan 4 Retro",
  "sku": "DH6927-111",
  "brand": {"@type": "Brand", "name": "Nike"},
  "image": ["https://static.nike.com/aj4.jpg"],
  "offers": {
    "@type": "Offer",
    "price": "210.00",
    "priceCurrency": "USD",
    "availability": "https://schema.org/InStock",
    "url": "https://www.nike.com/t/air-jordan-4-retro"
  }
}
</script>
</head><body></body></html>`

// страница, где товары лежат в @graph
const jsonLDGraphPage = `<html><head>
<script type="application/ld+json">
{
  "@context": "https://schema.org",
  "@graph": [
    {"@type": "WebPage", "name": "Search results"},
    {
      "@type": "Product",
      "name": "Dunk Low Panda",
      "sku": "DD1391-100",
      "offers": {"price": 110, "availability": "http://schema.org/OutOfStock"}
    }
  ]
}
</script>
</head></html>`

// проверяем разбор JSON-LD: одиночный Product
func TestJSONLDStrategy_Parse(t *testing.T) {
	s := NewJSONLDStrategy()
	assert.Equal(t, models.MethodJSONLD, s.Method())

	candidates, err := s.Parse([]byte(jsonLDPage), "")
	assert.NoError(t, err)
	assert.Len(t, candidates, 1)

	c := candidates[0]
	assert.Equal(t, "Air Jordan 4 Retro", c.Name)
	assert.Equal(t, "DH6927-111", c.SKU)
	assert.Equal(t, "Nike", c.Brand)
	assert.Equal(t, "210.00", c.PriceText)
	assert.Equal(t, "https://www.nike.com/t/air-jordan-4-retro", c.URL)
	assert.Equal(t, "https://static.nike.com/aj4.jpg", c.Image)
	assert.True(t, c.InStock)
}

// проверяем разбор JSON-LD: Product внутри @graph, распроданный товар
func TestJSONLDStrategy_ParseGraph(t *testing.T) {
	s := NewJSONLDStrategy()

	candidates, err := s.Parse([]byte(jsonLDGraphPage), "")
	assert.NoError(t, err)
	assert.Len(t, candidates, 1)

	c := candidates[0]
	assert.Equal(t, "Dunk Low Panda", c.Name)
	assert.Equal(t, "110", c.PriceText)
	assert.False(t, c.InStock)
}

// битый JSON в одном блоке не должен ронять разбор страницы
func TestJSONLDStrategy_BrokenBlockSkipped(t *testing.T) {
	page := `<html><head>
<script type="application/ld+json">{broken json</script>
<script type="application/ld+json">{"@type":"Product","name":"Yeezy Slide","offers":{"price":"70"}}</script>
</head></html>`

	candidates, err := NewJSONLDStrategy().Parse([]byte(page), "")
	assert.NoError(t, err)
	assert.Len(t, candidates, 1)
	assert.Equal(t, "Yeezy Slide", candidates[0].Name)
}

// проверяем разбор JSON-состояния SPA приложения
func TestScriptJSONStrategy_Parse(t *testing.T) {
	page := `<html><body>
<script>
window.__INITIAL_STATE__ = {"search":{"results":[
  {"name":"Air Max 1 '86","price":{"amount":"150.00"},"sku":"DO9844-100","url":"https://www.nike.com/am1","inStock":true},
  {"name":"Air Force 1 Low","price":115,"styleCode":"CW2288-111","available":false}
]}};
</script>
</body></html>`

	s := NewScriptJSONStrategy()
	assert.Equal(t, models.MethodScriptJSON, s.Method())

	candidates, err := s.Parse([]byte(page), "")
	assert.NoError(t, err)
	assert.Len(t, candidates, 2)

	assert.Equal(t, "Air Max 1 '86", candidates[0].Name)
	assert.Equal(t, "150.00", candidates[0].PriceText)
	assert.Equal(t, "DO9844-100", candidates[0].SKU)
	assert.True(t, candidates[0].InStock)

	assert.Equal(t, "Air Force 1 Low", candidates[1].Name)
	assert.Equal(t, "115", candidates[1].PriceText)
	assert.Equal(t, "CW2288-111", candidates[1].SKU)
	assert.False(t, candidates[1].InStock)
}

// проверяем вырезание сбалансированного JSON-объекта из JS
func TestExtractJSONObject(t *testing.T) {
	t.Run("stops at balanced brace", func(t *testing.T) {
		got := extractJSONObject(`{"a":{"b":1}};window.other = {}`)
		assert.Equal(t, `{"a":{"b":1}}`, got)
	})

	t.Run("braces inside strings ignored", func(t *testing.T) {
		got := extractJSONObject(`{"name":"size {10}"}`)
		assert.Equal(t, `{"name":"size {10}"}`, got)
	})

	t.Run("no object", func(t *testing.T) {
		assert.Equal(t, "", extractJSONObject("var x = 1;"))
	})
}

// проверяем разбор сетки карточек по классам
func TestHTMLStructuredStrategy_Parse(t *testing.T) {
	page := `<html><body>
<div class="product-grid">
  <div class="product-card" data-sku="FZ8117-100">
    <a href="https://www.footlocker.com/aj1"><img src="https://img.fl.com/aj1.jpg"/></a>
    <div class="product-card-title">Air Jordan 1 Mid</div>
    <span class="product-price">$125.00</span>
  </div>
  <div class="product-card">
    <a href="https://www.footlocker.com/nb9060">
      <div class="product-name">New Balance 9060</div>
    </a>
    <span class="price">$150.00</span>
    <span class="badge">Sold Out</span>
  </div>
</div>
</body></html>`

	s := NewHTMLStructuredStrategy()
	assert.Equal(t, models.MethodHTMLStruct, s.Method())

	candidates, err := s.Parse([]byte(page), "")
	assert.NoError(t, err)
	assert.Len(t, candidates, 2)

	assert.Equal(t, "Air Jordan 1 Mid", candidates[0].Name)
	assert.Equal(t, "$125.00", candidates[0].PriceText)
	assert.Equal(t, "FZ8117-100", candidates[0].SKU)
	assert.Equal(t, "https://www.footlocker.com/aj1", candidates[0].URL)
	assert.Equal(t, "https://img.fl.com/aj1.jpg", candidates[0].Image)
	assert.True(t, candidates[0].InStock)

	// карточка с бейджем Sold Out
	assert.Equal(t, "New Balance 9060", candidates[1].Name)
	assert.False(t, candidates[1].InStock)
}

// проверяем эвристику последнего шанса: ссылка + цена рядом
func TestHTMLFallbackStrategy_Parse(t *testing.T) {
	page := `<html><body>
<ul>
  <li><a href="/item/yeezy-350">Yeezy Boost 350 V2 $230.00</a></li>
  <li><a href="/about">About us</a></li>
</ul>
</body></html>`

	s := NewHTMLFallbackStrategy()
	assert.Equal(t, models.MethodHTMLFallback, s.Method())

	candidates, err := s.Parse([]byte(page), "")
	assert.NoError(t, err)
	assert.Len(t, candidates, 1)

	assert.Equal(t, "Yeezy Boost 350 V2", candidates[0].Name)
	assert.Equal(t, "$230.00", candidates[0].PriceText)
	assert.Equal(t, "/item/yeezy-350", candidates[0].URL)
}
