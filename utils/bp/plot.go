// Package bp draws numeric series as braille text plots.
package bp

import (
	"fmt"
	"math"
	"strings"

	"github.com/egregors/hkenv/log"
)

const (
	braille = 0x2800
	// dots per cell column, bottom to top
	cellDots = 4
)

// Braille dot bits filled from the bottom up: leftFill[n] lights the n lowest
// dots of the left column (dots 7, 3, 2, 1), rightFill[n] of the right one
// (dots 8, 6, 5, 4).
var (
	leftFill  = [cellDots + 1]rune{0, 0x40, 0x44, 0x46, 0x47}
	rightFill = [cellDots + 1]rune{0, 0x80, 0xA0, 0xB0, 0xB8}
)

func cell(l, r int) rune {
	return braille | leftFill[clamp(l, 0, cellDots)] | rightFill[clamp(r, 0, cellDots)]
}

// SimplePlot draws data as a braille plot of size rows, two values per
// column. The max value is printed above the plot and the min value below.
func SimplePlot(size int, data []float64) string {
	if len(data) == 0 || size <= 0 {
		return ""
	}

	lo, hi := minMax(data)
	height := size * cellDots
	log.Debg.Printf("plot %d values in %d dots, range %.2f..%.2f", len(data), height, lo, hi)

	heights := make([]int, len(data), len(data)+1)
	for i, v := range data {
		heights[i] = scale(v, lo, hi, height)
	}
	if len(heights)%2 != 0 {
		heights = append(heights, 1)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%.2f\n", hi)
	for row := size - 1; row >= 0; row-- {
		base := row * cellDots
		for c := 0; c < len(heights); c += 2 {
			sb.WriteRune(cell(heights[c]-base, heights[c+1]-base))
		}
		sb.WriteByte('\n')
	}
	fmt.Fprintf(&sb, "%.2f", lo)

	return sb.String()
}

// scale maps v onto 1..height dots. A flat series stays on the bottom line.
func scale(v, lo, hi float64, height int) int {
	if hi == lo {
		return 1
	}

	return clamp(int(math.Round((v-lo)/(hi-lo)*float64(height))), 1, height)
}

func clamp(v, lo, hi int) int {
	return min(hi, max(lo, v))
}

func minMax(xs []float64) (float64, float64) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, x := range xs {
		lo, hi = math.Min(lo, x), math.Max(hi, x)
	}

	return lo, hi
}
