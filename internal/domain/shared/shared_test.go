package shared

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseWindow(t *testing.T) {
	tests := []struct {
		in   string
		want Window
	}{
		{"7d", WindowWeek},
		{"30d", WindowMonth},
		{"all", WindowAll},
		{"week", WindowWeek},
		{"month", WindowMonth},
		{"  ALL  ", WindowAll},
	}
	for _, tt := range tests {
		w, err := ParseWindow(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, w, tt.in)
	}

	_, err := ParseWindow("fortnight")
	assert.Error(t, err)
}

func TestWindowCutoff(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, now.AddDate(0, 0, -7), WindowWeek.Cutoff(now))
	assert.Equal(t, now.AddDate(0, 0, -30), WindowMonth.Cutoff(now))
	assert.True(t, WindowAll.Cutoff(now).IsZero())
}

func TestTimeRangeOverlap(t *testing.T) {
	base := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)
	r := TimeRange{From: base, To: base.Add(2 * time.Hour)}

	partial := TimeRange{From: base.Add(time.Hour), To: base.Add(3 * time.Hour)}
	assert.Equal(t, time.Hour, r.Overlap(partial))
	assert.Equal(t, time.Hour, partial.Overlap(r))

	disjoint := TimeRange{From: base.Add(5 * time.Hour), To: base.Add(6 * time.Hour)}
	assert.Equal(t, time.Duration(0), r.Overlap(disjoint))

	// Touching edges share no time in a half-open interval.
	adjacent := TimeRange{From: base.Add(2 * time.Hour), To: base.Add(3 * time.Hour)}
	assert.Equal(t, time.Duration(0), r.Overlap(adjacent))
}

func TestDomainErrorIs(t *testing.T) {
	err := NewStoreUnavailableError("session", "Store.Append", fmt.Errorf("connection refused"))

	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.NotErrorIs(t, err, ErrInvalidEvent)

	var de *DomainError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, KindUnavailable, de.Kind)
	assert.Equal(t, "session", de.Domain)
}
