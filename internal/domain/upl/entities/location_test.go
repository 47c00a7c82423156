package entities

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLocation_Equal(t *testing.T) {
	tests := []struct {
		name  string
		a, b  Location
		equal bool
	}{
		{"same stock", NewStockLocation(1), NewStockLocation(1), true},
		{"different stock", NewStockLocation(1), NewStockLocation(2), false},
		{"same delivery", NewDeliveryLocation(9), NewDeliveryLocation(9), true},
		{"different delivery", NewDeliveryLocation(9), NewDeliveryLocation(10), false},
		{"same cart", NewCartLocation("cart-a"), NewCartLocation("cart-a"), true},
		{"different cart", NewCartLocation("cart-a"), NewCartLocation("cart-b"), false},
		{"discard equals discard", NewDiscardLocation(), NewDiscardLocation(), true},
		{"stock vs delivery zero value", NewStockLocation(0), NewDeliveryLocation(0), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.equal, tt.a.Equal(tt.b))
			assert.Equal(t, tt.equal, tt.b.Equal(tt.a))
		})
	}
}
