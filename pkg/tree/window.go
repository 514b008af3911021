package tree

// Default window constants for a pixel based renderer. The terminal UI uses
// one line per row instead.
const (
	DefaultItemHeight  = 28
	DefaultBufferCount = 3
)

// Window holds the fixed sizing constants of a virtual list.
type Window struct {
	ItemHeight  int
	BufferCount int
}

// Range is the part of the flat list to materialize. Rows [Start, End) are
// drawn translated by OffsetY inside a spacer TotalHeight tall.
type Range struct {
	Start       int
	End         int
	OffsetY     int
	TotalHeight int
}

// Len returns the number of rows in the range.
func (r Range) Len() int {
	return r.End - r.Start
}

// Contains reports whether index i is materialized.
func (r Range) Contains(i int) bool {
	return i >= r.Start && i < r.End
}

func (w Window) normalized() Window {
	if w.ItemHeight <= 0 {
		w.ItemHeight = DefaultItemHeight
	}
	if w.BufferCount < 0 {
		w.BufferCount = 0
	}
	return w
}

// Compute returns the range of an n row list to render at scrollOffset in a
// container containerHeight tall. It is a fresh calculation every time.
func (w Window) Compute(n, scrollOffset, containerHeight int) Range {
	if n <= 0 {
		return Range{}
	}
	w = w.normalized()
	if scrollOffset < 0 {
		scrollOffset = 0
	}
	if containerHeight < 0 {
		containerHeight = 0
	}

	start := scrollOffset/w.ItemHeight - w.BufferCount
	if start < 0 {
		start = 0
	}
	end := ceilDiv(scrollOffset+containerHeight, w.ItemHeight) + w.BufferCount
	if end > n {
		end = n
	}
	if start > end {
		start = end
	}
	return Range{
		Start:       start,
		End:         end,
		OffsetY:     start * w.ItemHeight,
		TotalHeight: n * w.ItemHeight,
	}
}

// Slice returns the rows to render together with their range.
func (w Window) Slice(rows []Row, scrollOffset, containerHeight int) ([]Row, Range) {
	r := w.Compute(len(rows), scrollOffset, containerHeight)
	return rows[r.Start:r.End], r
}

func ceilDiv(a, b int) int {
	if a <= 0 {
		return 0
	}
	return (a + b - 1) / b
}
