package aggregate

import (
	"cmp"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"allocation-dashboard/internal/models"
)

type Direction int

const (
	Descending Direction = iota
	Ascending
)

func (d Direction) String() string {
	if d == Ascending {
		return "asc"
	}
	return "desc"
}

// ParseDirection accepts "asc" or "desc". An empty string means descending.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "desc":
		return Descending, nil
	case "asc":
		return Ascending, nil
	default:
		return Descending, fmt.Errorf("invalid sort direction %q", s)
	}
}

// Limit caps the number of rows a view returns. Unbounded, or any limit below one, keeps
// everything.
type Limit int

const Unbounded Limit = 0

// LimitOptions are the Top-N choices offered by the dashboard.
var LimitOptions = []string{"5", "10", "20", "50", "All"}

func (l Limit) bounded() bool { return l > 0 }

func (l Limit) String() string {
	if !l.bounded() {
		return "All"
	}
	return strconv.Itoa(int(l))
}

// ParseLimit accepts a positive integer or "All".
func ParseLimit(s string) (Limit, error) {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "all") {
		return Unbounded, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return Unbounded, fmt.Errorf("invalid limit %q: want a positive integer or All", s)
	}
	return Limit(n), nil
}

// Head returns at most limit leading elements of items. The input is not modified.
func Head[T any](items []T, limit Limit) []T {
	n := len(items)
	if limit.bounded() && int(limit) < n {
		n = int(limit)
	}
	out := make([]T, n)
	copy(out, items[:n])
	return out
}

// Select sorts a copy of totals by Total in the given direction and keeps the first limit
// entries. Ties keep their original relative order.
func Select[K comparable](totals []models.Total[K], dir Direction, limit Limit) []models.Total[K] {
	sorted := Head(totals, Unbounded)
	slices.SortStableFunc(sorted, func(a, b models.Total[K]) int {
		if dir == Ascending {
			return cmp.Compare(a.Total, b.Total)
		}
		return cmp.Compare(b.Total, a.Total)
	})
	return Head(sorted, limit)
}

// SortByKey sorts a copy of totals ascending by key.
func SortByKey[K cmp.Ordered](totals []models.Total[K]) []models.Total[K] {
	sorted := Head(totals, Unbounded)
	slices.SortStableFunc(sorted, func(a, b models.Total[K]) int {
		return cmp.Compare(a.Key, b.Key)
	})
	return sorted
}
