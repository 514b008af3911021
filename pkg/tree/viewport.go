package tree

// Viewport is the derived render state of a windowed list. Every setter
// recomputes the range wholesale from the current rows.
type Viewport struct {
	window          Window
	rows            []Row
	scrollOffset    int
	containerHeight int
	rendered        Range
}

// NewViewport creates an empty viewport.
func NewViewport(w Window) *Viewport {
	return &Viewport{window: w.normalized()}
}

// Window returns the sizing constants.
func (v *Viewport) Window() Window {
	return v.window
}

// Rows returns the full flat list.
func (v *Viewport) Rows() []Row {
	return v.rows
}

// Len returns the number of rows.
func (v *Viewport) Len() int {
	return len(v.rows)
}

// ScrollOffset returns the current scroll position.
func (v *Viewport) ScrollOffset() int {
	return v.scrollOffset
}

// ContainerHeight returns the current container height.
func (v *Viewport) ContainerHeight() int {
	return v.containerHeight
}

// Range returns the last computed range.
func (v *Viewport) Range() Range {
	return v.rendered
}

// Visible returns the materialized rows.
func (v *Viewport) Visible() []Row {
	return v.rows[v.rendered.Start:v.rendered.End]
}

// SetRows replaces the flat list, typically after a structural change.
func (v *Viewport) SetRows(rows []Row) {
	v.rows = rows
	v.recompute()
}

// SetScroll moves the scroll position.
func (v *Viewport) SetScroll(offset int) {
	v.scrollOffset = offset
	v.recompute()
}

// ScrollBy moves the scroll position by delta.
func (v *Viewport) ScrollBy(delta int) {
	v.SetScroll(v.scrollOffset + delta)
}

// Resize changes the container height.
func (v *Viewport) Resize(containerHeight int) {
	v.containerHeight = containerHeight
	v.recompute()
}

// MaxScroll is the largest offset that still fills the container.
func (v *Viewport) MaxScroll() int {
	m := len(v.rows)*v.window.ItemHeight - v.containerHeight
	if m < 0 {
		return 0
	}
	return m
}

// ScrollToIndex scrolls the minimum amount needed to show row i in full.
func (v *Viewport) ScrollToIndex(i int) {
	if i < 0 || i >= len(v.rows) {
		return
	}
	top := i * v.window.ItemHeight
	bottom := top + v.window.ItemHeight
	switch {
	case top < v.scrollOffset:
		v.SetScroll(top)
	case bottom > v.scrollOffset+v.containerHeight:
		v.SetScroll(bottom - v.containerHeight)
	}
}

// IndexAt returns the row index at vertical position y inside the container,
// or -1 if there is none.
func (v *Viewport) IndexAt(y int) int {
	if y < 0 {
		return -1
	}
	i := (v.scrollOffset + y) / v.window.ItemHeight
	if i >= len(v.rows) {
		return -1
	}
	return i
}

// FirstVisible returns the index of the top row inside the container,
// ignoring the buffer.
func (v *Viewport) FirstVisible() int {
	return v.scrollOffset / v.window.ItemHeight
}

func (v *Viewport) recompute() {
	if v.scrollOffset > v.MaxScroll() {
		v.scrollOffset = v.MaxScroll()
	}
	if v.scrollOffset < 0 {
		v.scrollOffset = 0
	}
	v.rendered = v.window.Compute(len(v.rows), v.scrollOffset, v.containerHeight)
}
