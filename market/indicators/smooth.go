package indicators

// wilder is Wilder's running average: a plain mean over the first n inputs,
// then avg += (x - avg) / n.
type wilder struct {
	n     int
	count int
	avg   float64
}

func (w *wilder) add(x float64) {
	w.count++
	d := w.count
	if d > w.n {
		d = w.n
	}
	w.avg += (x - w.avg) / float64(d)
}

func (w *wilder) ready() bool { return w.count >= w.n }

func (w *wilder) reset() { w.count, w.avg = 0, 0 }
