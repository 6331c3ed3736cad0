// Package shared contains domain primitives used across bounded contexts.
package shared

import (
	"fmt"
	"strings"
	"time"
)

// ═══════════════════════════════════════════════════════════════════════════
// GuildID
// ═══════════════════════════════════════════════════════════════════════════

// GuildID identifies a community (a Discord guild / server).
type GuildID string

// IsValid reports whether the guild ID is non-empty.
func (g GuildID) IsValid() bool {
	return strings.TrimSpace(string(g)) != ""
}

func (g GuildID) String() string {
	return string(g)
}

// ═══════════════════════════════════════════════════════════════════════════
// MemberID
// ═══════════════════════════════════════════════════════════════════════════

// MemberID identifies a member within a guild.
type MemberID string

// IsValid reports whether the member ID is non-empty.
func (m MemberID) IsValid() bool {
	return strings.TrimSpace(string(m)) != ""
}

func (m MemberID) String() string {
	return string(m)
}

// ═══════════════════════════════════════════════════════════════════════════
// Window
// ═══════════════════════════════════════════════════════════════════════════

// Window selects the time horizon for aggregate queries.
type Window string

const (
	WindowWeek  Window = "7d"
	WindowMonth Window = "30d"
	WindowAll   Window = "all"
)

// IsValid reports whether the window is one of the supported horizons.
func (w Window) IsValid() bool {
	switch w {
	case WindowWeek, WindowMonth, WindowAll:
		return true
	}
	return false
}

func (w Window) String() string {
	return string(w)
}

// Days returns the number of days the window spans, or 0 for WindowAll.
func (w Window) Days() int {
	switch w {
	case WindowWeek:
		return 7
	case WindowMonth:
		return 30
	default:
		return 0
	}
}

// Cutoff returns the inclusive lower bound for sessions in the window,
// or the zero time for WindowAll.
func (w Window) Cutoff(now time.Time) time.Time {
	d := w.Days()
	if d == 0 {
		return time.Time{}
	}
	return now.AddDate(0, 0, -d)
}

// ParseWindow converts a user supplied string into a Window.
func ParseWindow(s string) (Window, error) {
	w := Window(strings.ToLower(strings.TrimSpace(s)))
	switch w {
	case "week":
		w = WindowWeek
	case "month":
		w = WindowMonth
	}
	if !w.IsValid() {
		return "", fmt.Errorf("unknown window %q (want 7d, 30d or all)", s)
	}
	return w, nil
}

// ═══════════════════════════════════════════════════════════════════════════
// TimeRange
// ═══════════════════════════════════════════════════════════════════════════

// TimeRange is a half-open interval [From, To).
type TimeRange struct {
	From time.Time
	To   time.Time
}

// IsValid reports whether the range is well ordered and non-empty.
func (r TimeRange) IsValid() bool {
	return !r.From.IsZero() && !r.To.IsZero() && r.To.After(r.From)
}

// Duration returns the length of the range.
func (r TimeRange) Duration() time.Duration {
	if !r.IsValid() {
		return 0
	}
	return r.To.Sub(r.From)
}

// Contains reports whether t falls inside the range.
func (r TimeRange) Contains(t time.Time) bool {
	return !t.Before(r.From) && t.Before(r.To)
}

// Overlap returns the duration both ranges share.
func (r TimeRange) Overlap(other TimeRange) time.Duration {
	from := r.From
	if other.From.After(from) {
		from = other.From
	}
	to := r.To
	if other.To.Before(to) {
		to = other.To
	}
	if !to.After(from) {
		return 0
	}
	return to.Sub(from)
}
