// Package layout computes the masonry arrangement used by the gallery pages.
package layout

import (
	"errors"
	"sort"
)

// ErrInvalidColumns is returned for column counts other than 2 or 4.
var ErrInvalidColumns = errors.New("columns must be 2 or 4")

const epsilon = 1e-9

// Item is one image in curated order.
type Item struct {
	ID     uint
	Width  int
	Height int
}

// Placement is where an item ends up. Top and Height are in column-width units.
type Placement struct {
	ID     uint    `json:"id"`
	Column int     `json:"column"`
	Top    float64 `json:"top"`
	Height float64 `json:"height"`
}

// Result is the computed masonry layout.
type Result struct {
	Columns       int         `json:"columns"`
	ColumnItems   [][]uint    `json:"columnItems"`
	ColumnHeights []float64   `json:"columnHeights"`
	Order         []uint      `json:"order"`
	Placements    []Placement `json:"placements"`
}

// ValidColumns reports whether n is a supported column count.
func ValidColumns(n int) bool {
	return n == 2 || n == 4
}

// AspectHeight returns height/width, treating unknown dimensions as a square.
func AspectHeight(width, height int) float64 {
	if width <= 0 || height <= 0 {
		return 1
	}
	return float64(height) / float64(width)
}

// Masonry 按顺序将每张图片放入当前最短的列（高度相同取最左列）。
// Order 为按 (top, column) 排序后的视觉阅读顺序。
func Masonry(items []Item, columns int) (Result, error) {
	if !ValidColumns(columns) {
		return Result{}, ErrInvalidColumns
	}

	result := Result{
		Columns:       columns,
		ColumnItems:   make([][]uint, columns),
		ColumnHeights: make([]float64, columns),
		Order:         make([]uint, 0, len(items)),
		Placements:    make([]Placement, 0, len(items)),
	}
	for i := range result.ColumnItems {
		result.ColumnItems[i] = []uint{}
	}

	for _, item := range items {
		col := shortestColumn(result.ColumnHeights)
		h := AspectHeight(item.Width, item.Height)
		result.Placements = append(result.Placements, Placement{
			ID:     item.ID,
			Column: col,
			Top:    result.ColumnHeights[col],
			Height: h,
		})
		result.ColumnItems[col] = append(result.ColumnItems[col], item.ID)
		result.ColumnHeights[col] += h
	}

	ordered := make([]Placement, len(result.Placements))
	copy(ordered, result.Placements)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if diff := a.Top - b.Top; diff < -epsilon || diff > epsilon {
			return a.Top < b.Top
		}
		return a.Column < b.Column
	})
	for _, p := range ordered {
		result.Order = append(result.Order, p.ID)
	}

	return result, nil
}

func shortestColumn(heights []float64) int {
	best := 0
	for i := 1; i < len(heights); i++ {
		if heights[i] < heights[best]-epsilon {
			best = i
		}
	}
	return best
}
