package extraction

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// проверяем нормализацию цен в разных форматах источников
func TestParsePrice(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want float64
	}{
		{"plain dollars", "$189.99", 189.99},
		{"integer price", "$250", 250},
		{"us thousands", "$1,234.56", 1234.56},
		{"european decimal comma", "189,99 €", 189.99},
		{"european thousands", "1.299,50", 1299.5},
		{"comma as thousands", "1,299", 1299},
		{"currency code prefix", "USD 149.00", 149},
		{"spaces as thousands", "1 299,00", 1299},
		{"bare number", "95", 95},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParsePrice(tc.in)
			assert.NoError(t, err)
			assert.InDelta(t, tc.want, got, 0.001)
		})
	}

	t.Run("no digits", func(t *testing.T) {
		_, err := ParsePrice("Sold Out")
		assert.ErrorIs(t, err, ErrNoPrice)
	})

	t.Run("empty string", func(t *testing.T) {
		_, err := ParsePrice("")
		assert.ErrorIs(t, err, ErrNoPrice)
	})
}
