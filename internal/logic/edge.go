package logic

// PressEdge turns a polled button level into press events.
// Only the released → pressed transition is reported, so a held button
// produces a single event.
type PressEdge struct {
	last bool
}

// Observe records the current level and reports whether it is a new press.
func (e *PressEdge) Observe(pressed bool) bool {
	rising := pressed && !e.last
	e.last = pressed
	return rising
}

// Held reports whether the last observed level was pressed.
func (e *PressEdge) Held() bool {
	return e.last
}
