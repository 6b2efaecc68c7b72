// Package colors assigns stable terminal colors to the topics currently
// shown in the chart, per spec.md §4.5. Only the live generation (stat_idx
// 0) of the top-N topics by messages seen gets a color; everything else falls
// back to a neutral shade. Eviction favors keeping a topic's existing color
// across redraws over reassigning the whole palette each frame.
package colors

import "github.com/charmbracelet/lipgloss"

// Palette mirrors the seven-color rotation used by the original tool's
// terminal chart (spec.md §4.5, grounded on colors.rs): a short, high
// contrast set that reads well on both light and dark terminal themes.
var Palette = []lipgloss.Color{
	lipgloss.Color("4"), // blue
	lipgloss.Color("3"), // yellow
	lipgloss.Color("1"), // red
	lipgloss.Color("2"), // green
	lipgloss.Color("5"), // magenta
	lipgloss.Color("6"), // cyan
	lipgloss.Color("7"), // white
}

// Neutral is used for any topic not in the top-N live set.
const Neutral = lipgloss.Color("8") // gray

// Assignment tracks the live topic -> palette-slot mapping across redraws.
type Assignment struct {
	inner map[string]int // topic name -> index into Palette
	used  [7]bool
}

// New returns an empty Assignment.
func New() *Assignment {
	return &Assignment{inner: make(map[string]int)}
}

// Ranked is one topic under consideration for a color slot, ordered by the
// caller (spec.md §4.5: by descending seen, the same order BaseStats sorts
// live generations in).
type Ranked struct {
	Topic string
	Seen  int64
}

// Update recomputes the assignment given the current ranked list of live
// topics (already sorted, generation 0 only). Topics outside the top
// len(Palette) lose their slot. A topic keeps its existing color across
// calls if it's still in range; only topics gaining a slot for the first
// time get a freshly chosen one.
func (a *Assignment) Update(ranked []Ranked) {
	n := len(Palette)
	top := ranked
	if len(top) > n {
		top = top[:n]
	}
	keep := make(map[string]bool, len(top))
	for _, r := range top {
		keep[r.Topic] = true
	}

	for topic, idx := range a.inner {
		if !keep[topic] {
			delete(a.inner, topic)
			a.used[idx] = false
		}
	}

	for _, r := range top {
		if _, ok := a.inner[r.Topic]; ok {
			continue
		}
		slot := a.firstFree()
		if slot < 0 {
			continue // shouldn't happen: len(top) <= n <= len(used)
		}
		a.inner[r.Topic] = slot
		a.used[slot] = true
	}
}

func (a *Assignment) firstFree() int {
	for i, used := range a.used {
		if !used {
			return i
		}
	}
	return -1
}

// Color returns the assigned color for topic, or Neutral if it has none.
func (a *Assignment) Color(topic string) lipgloss.Color {
	if idx, ok := a.inner[topic]; ok {
		return Palette[idx]
	}
	return Neutral
}
