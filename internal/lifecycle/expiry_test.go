package lifecycle_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/primevault/rvm/internal/lifecycle"
)

func TestNextFridayExpiry(t *testing.T) {
	t.Run("midweek resolves to the coming Friday", func(t *testing.T) {
		// Wednesday 2024-01-10.
		now := time.Date(2024, 1, 10, 15, 30, 0, 0, time.UTC)
		want := time.Date(2024, 1, 12, 8, 0, 0, 0, time.UTC)
		assert.Equal(t, want, lifecycle.NextFridayExpiry(now))
	})

	t.Run("friday before the cutoff stays on the same day", func(t *testing.T) {
		now := time.Date(2024, 1, 12, 7, 59, 59, 0, time.UTC)
		want := time.Date(2024, 1, 12, 8, 0, 0, 0, time.UTC)
		assert.Equal(t, want, lifecycle.NextFridayExpiry(now))
	})

	t.Run("friday at the cutoff rolls a full week", func(t *testing.T) {
		now := time.Date(2024, 1, 12, 8, 0, 0, 0, time.UTC)
		want := time.Date(2024, 1, 19, 8, 0, 0, 0, time.UTC)
		assert.Equal(t, want, lifecycle.NextFridayExpiry(now))
	})

	t.Run("saturday resolves to next week", func(t *testing.T) {
		now := time.Date(2024, 1, 13, 0, 0, 0, 0, time.UTC)
		want := time.Date(2024, 1, 19, 8, 0, 0, 0, time.UTC)
		assert.Equal(t, want, lifecycle.NextFridayExpiry(now))
	})
}

func TestNextMaturity(t *testing.T) {
	friday := time.Date(2024, 1, 12, 8, 0, 0, 0, time.UTC)

	t.Run("bootstrap picks the nearest expiry", func(t *testing.T) {
		now := time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)
		assert.Equal(t, friday, lifecycle.NextMaturity(now, time.Time{}))
	})

	t.Run("on schedule advances exactly one interval", func(t *testing.T) {
		now := friday.Add(2 * time.Hour)
		assert.Equal(t, friday.Add(lifecycle.ExpiryInterval), lifecycle.NextMaturity(now, friday))
	})

	t.Run("one missed interval still advances from the old maturity", func(t *testing.T) {
		now := friday.Add(lifecycle.ExpiryInterval)
		assert.Equal(t, friday.Add(lifecycle.ExpiryInterval), lifecycle.NextMaturity(now, friday))
	})

	t.Run("more than one missed interval resyncs to the calendar", func(t *testing.T) {
		now := friday.Add(lifecycle.ExpiryInterval + 73*time.Hour)
		got := lifecycle.NextMaturity(now, friday)
		assert.Equal(t, lifecycle.NextFridayExpiry(now), got)
		assert.True(t, got.After(now))
	})
}
