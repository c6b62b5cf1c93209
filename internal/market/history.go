package market

// History is a bounded ring of the most recent bars.
type History struct {
	bars []Bar
	head int
	size int
}

func NewHistory(size int) *History {
	return &History{
		bars: make([]Bar, size),
		head: -1,
		size: size,
	}
}

func NewHistoryWithBars(size int, bars []Bar) *History {
	h := NewHistory(size)
	for _, b := range bars {
		h.Receive(b)
	}
	return h
}

func (h *History) Receive(bar Bar) {
	if h.size == 0 {
		return
	}

	h.head++
	h.bars[h.head%h.size] = bar
}

func (h *History) Len() int {
	return min(h.head+1, h.size)
}

func (h *History) Cap() int {
	return h.size
}

// Bars returns a copy of the retained bars, oldest first.
func (h *History) Bars() []Bar {
	n := h.Len()
	res := make([]Bar, 0, n)
	if n == 0 {
		return res
	}

	e := h.head%h.size + 1
	s := e - n
	if s >= 0 {
		return append(res, h.bars[s:e]...)
	}

	res = append(res, h.bars[h.size+s:]...)
	return append(res, h.bars[:e]...)
}

func (h *History) Last() (Bar, bool) {
	if h.head < 0 || h.size == 0 {
		return Bar{}, false
	}

	return h.bars[h.head%h.size], true
}
