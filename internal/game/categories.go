package game

import (
	_ "embed"
	"math/rand"
	"strings"
)

//go:embed categories.txt
var categoriesFile string

// DefaultCategories returns the embedded search categories.
func DefaultCategories() []string {
	return parseCategories(categoriesFile)
}

// parseCategories reads one category per line, skipping blanks and # comments.
func parseCategories(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		c := strings.TrimSpace(line)
		if c == "" || strings.HasPrefix(c, "#") {
			continue
		}
		out = append(out, c)
	}
	return out
}

func pickCategory(rng *rand.Rand, categories []string) string {
	if len(categories) == 0 {
		return ""
	}
	return categories[rng.Intn(len(categories))]
}
