package commands

import (
	"fmt"
	"sort"
	"strings"

	"github.com/quantfold/quantfold/internal/contracts"
)

// Shared output formatting so every command prints the same way.

func printSeparator() {
	fmt.Println(strings.Repeat("-", 60))
}

func printDoubleSeparator() {
	fmt.Println(strings.Repeat("=", 60))
}

// formatMoney renders a dollar amount with thousands separators.
func formatMoney(v float64) string {
	neg := v < 0
	if neg {
		v = -v
	}

	whole := int64(v)
	frac := v - float64(whole)

	digits := fmt.Sprintf("%d", whole)
	var b strings.Builder
	for i, d := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(d)
	}

	out := fmt.Sprintf("$%s.%02d", b.String(), int(frac*100+0.5))
	if neg {
		return "-" + out
	}
	return out
}

// sortedByWeight orders symbols by descending weight, ties by symbol.
func sortedByWeight(weights map[string]float64) []string {
	symbols := make([]string, 0, len(weights))
	for symbol := range weights {
		symbols = append(symbols, symbol)
	}
	sort.Slice(symbols, func(i, j int) bool {
		wi, wj := weights[symbols[i]], weights[symbols[j]]
		if wi != wj {
			return wi > wj
		}
		return symbols[i] < symbols[j]
	})
	return symbols
}

func sectorsOf(universe map[string]*contracts.InstrumentSeries) map[string]string {
	sectors := make(map[string]string, len(universe))
	for symbol, series := range universe {
		sectors[symbol] = series.Sector
	}
	return sectors
}
