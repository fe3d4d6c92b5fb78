package strategies

// window is a fixed-size evicting buffer of float64 samples. Not safe for concurrent use;
// each strategy owns its windows.
type window struct {
	size int
	vals []float64
}

func newWindow(size int) *window {
	return &window{size: size, vals: make([]float64, 0, size)}
}

// push appends v, evicting the oldest sample when full.
func (w *window) push(v float64) {
	if len(w.vals) == w.size {
		copy(w.vals, w.vals[1:])
		w.vals[len(w.vals)-1] = v
		return
	}
	w.vals = append(w.vals, v)
}

func (w *window) full() bool { return len(w.vals) == w.size }

func (w *window) len() int { return len(w.vals) }

func (w *window) oldest() float64 {
	if len(w.vals) == 0 {
		return 0
	}
	return w.vals[0]
}

func (w *window) max() float64 {
	if len(w.vals) == 0 {
		return 0
	}
	m := w.vals[0]
	for _, v := range w.vals[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

func (w *window) min() float64 {
	if len(w.vals) == 0 {
		return 0
	}
	m := w.vals[0]
	for _, v := range w.vals[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

// dot returns the sum of element-wise products with o, over the common length.
func (w *window) dot(o *window) float64 {
	n := len(w.vals)
	if len(o.vals) < n {
		n = len(o.vals)
	}
	var s float64
	for i := 0; i < n; i++ {
		s += w.vals[i] * o.vals[i]
	}
	return s
}

func (w *window) sum() float64 {
	var s float64
	for _, v := range w.vals {
		s += v
	}
	return s
}
