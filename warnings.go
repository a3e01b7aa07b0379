package drumkit

type warnKind uint8

const (
	warnUnknownPad warnKind = iota
	warnNoLayer
	warnUnknownSample
	warnVoice
)

const warningBuffer = 256

// warning is what the render thread reports instead of logging.
type warning struct {
	kind warnKind
	id   string
}

func (w warning) String() string {
	switch w.kind {
	case warnUnknownPad:
		return "skipped trigger for unknown pad " + quote(w.id)
	case warnNoLayer:
		return "pad " + quote(w.id) + " has no enabled layer"
	case warnUnknownSample:
		return "skipped trigger for unloaded sample " + quote(w.id)
	default:
		return "could not build voice for sample " + quote(w.id)
	}
}

func quote(s string) string { return `"` + s + `"` }

// warn never blocks; warnings that do not fit are counted and reported by
// the drain goroutine.
func (e *Engine) warn(w warning) {
	select {
	case e.warnings <- w:
	default:
		e.dropped.Add(1)
	}
}

func (e *Engine) drainWarnings() {
	defer e.drained.Done()
	for {
		select {
		case w := <-e.warnings:
			e.log.Print(w)
			if n := e.dropped.Swap(0); n > 0 {
				e.log.Printf("%d render warnings dropped", n)
			}
		case <-e.done:
			for {
				select {
				case w := <-e.warnings:
					e.log.Print(w)
				default:
					return
				}
			}
		}
	}
}
