package resample

// Linear interpolates between neighboring input frames. Past the last frame
// it interpolates towards silence.
type Linear struct {
	frac float64
}

func (l *Linear) Process(src []float32, channels, pos int, out []float32, step float64) (produced, consumed int, err error) {
	frames := len(src) / channels
	n := len(out) / channels
	p := l.frac
	for produced < n {
		i := pos + int(p)
		if i >= frames {
			break
		}
		f := float32(p - float64(int(p)))
		for c := 0; c < channels; c++ {
			a := src[i*channels+c]
			var b float32
			if i+1 < frames {
				b = src[(i+1)*channels+c]
			}
			out[produced*channels+c] = a + (b-a)*f
		}
		produced++
		p += step
	}
	consumed = int(p)
	l.frac = p - float64(consumed)
	if pos+consumed >= frames {
		consumed = max(frames-pos, 0)
		l.frac = 0
	}
	return produced, consumed, nil
}

func (l *Linear) Reset() {
	l.frac = 0
}

func (l *Linear) Close() error {
	return nil
}
