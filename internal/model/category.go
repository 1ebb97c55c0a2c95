package model

import (
	"strconv"
	"time"
)

// Category groups tools. Tools reference a category by name.
type Category struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Code      string    `json:"code"`
	CreatedAt time.Time `json:"created_at"`
}

// CategoryCode returns the code for the n-th category (0-based):
// A..Z, then A1..Z1, A2..Z2 and so on.
func CategoryCode(n int) string {
	letter := string(rune('A' + n%26))
	if cycle := n / 26; cycle > 0 {
		return letter + strconv.Itoa(cycle)
	}
	return letter
}

// NextCategoryCode returns the lowest code in sequence not present in inUse.
func NextCategoryCode(inUse []string) string {
	used := make(map[string]bool, len(inUse))
	for _, c := range inUse {
		used[c] = true
	}
	for n := 0; ; n++ {
		if code := CategoryCode(n); !used[code] {
			return code
		}
	}
}
