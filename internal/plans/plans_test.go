package plans

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCatalog(t *testing.T) {
	all := All()
	assert.Len(t, all, 7)

	// Отсортирован по цене
	for i := 1; i < len(all); i++ {
		assert.LessOrEqual(t, all[i-1].Price, all[i].Price)
	}
}

func TestGet(t *testing.T) {
	plan, ok := Get(MobileV4Premium)
	assert.True(t, ok)
	assert.Equal(t, 49.99, plan.Price)
	assert.Equal(t, 60, plan.DurationDays)

	_, ok = Get("mobile-v9-ultra")
	assert.False(t, ok)
}

func TestIsValid(t *testing.T) {
	assert.True(t, IsValid(FullSuitePremium))
	assert.False(t, IsValid(""))
	assert.False(t, IsValid("Mobile-V4-Basic")) // регистр значим
}

func TestPriceUnknownPlan(t *testing.T) {
	assert.Equal(t, 0.0, Price("unknown"))
	assert.Equal(t, 0, DurationDays("unknown"))
}
