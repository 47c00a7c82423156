package entities

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLock_IsNone(t *testing.T) {
	assert.True(t, NoLock().IsNone())
	assert.False(t, NewCartLock("cart-1").IsNone())
	assert.False(t, NewDeliveryLock(7).IsNone())
	assert.False(t, NewInventoryLock(9).IsNone())
}

func TestLock_Equal(t *testing.T) {
	tests := []struct {
		name  string
		a, b  Lock
		equal bool
	}{
		{"none equals none", NoLock(), NoLock(), true},
		{"none differs from cart", NoLock(), NewCartLock("cart-1"), false},
		{"same cart id", NewCartLock("cart-1"), NewCartLock("cart-1"), true},
		{"different cart id", NewCartLock("cart-1"), NewCartLock("cart-2"), false},
		{"same delivery id", NewDeliveryLock(5), NewDeliveryLock(5), true},
		{"different delivery id", NewDeliveryLock(5), NewDeliveryLock(6), false},
		{"same inventory id", NewInventoryLock(3), NewInventoryLock(3), true},
		{"different inventory id", NewInventoryLock(3), NewInventoryLock(4), false},
		{"cart vs delivery same payload zero value", NewCartLock(""), NewDeliveryLock(0), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.equal, tt.a.Equal(tt.b))
			assert.Equal(t, tt.equal, tt.b.Equal(tt.a))
		})
	}
}
