package filter

import (
	"strings"

	"github.com/maxvaer/gmapscan/internal/classify"
	"github.com/maxvaer/gmapscan/internal/scanner"
)

// LabelFilter shows only (or hides) results with the given verdicts.
type LabelFilter struct {
	include map[classify.Label]struct{}
	exclude map[classify.Label]struct{}
}

// NewLabelFilter creates a verdict filter. Label names are case-insensitive.
func NewLabelFilter(include, exclude []string) *LabelFilter {
	toSet := func(names []string) map[classify.Label]struct{} {
		set := make(map[classify.Label]struct{}, len(names))
		for _, n := range names {
			set[classify.Label(strings.ToUpper(strings.TrimSpace(n)))] = struct{}{}
		}
		return set
	}
	return &LabelFilter{include: toSet(include), exclude: toSet(exclude)}
}

func (f *LabelFilter) Name() string { return "label" }

func (f *LabelFilter) ShouldFilter(result *scanner.Result) bool {
	if len(f.include) > 0 {
		_, ok := f.include[result.Label]
		return !ok
	}
	_, ok := f.exclude[result.Label]
	return ok
}
