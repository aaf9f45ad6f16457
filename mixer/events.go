package mixer

// EventKind discriminates the control events delivered alongside an audio
// block.
type EventKind uint8

const (
	EventNoteOn EventKind = iota
	EventNoteOff
	EventControlChange
	EventPitchBend
)

// Event is one timestamped control event. Offset is the sample index
// within the current block at which the event takes effect. Data1/Data2
// carry the raw MIDI bytes (note/velocity, controller/value); Value is the
// normalized payload for kinds that have one, such as pitch bend in
// [-1, 1].
type Event struct {
	Offset  int
	Kind    EventKind
	Channel uint8
	Data1   uint8
	Data2   uint8
	Value   float64
}

// Source generates one block of planar stereo audio for a track. Render
// must fill both buffers completely and may consume the events, whose
// offsets are relative to the start of the buffers. Render runs on the
// audio goroutine and must not allocate or block.
type Source interface {
	Render(left, right []float64, events []Event)
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func(left, right []float64, events []Event)

// Render calls f.
func (f SourceFunc) Render(left, right []float64, events []Event) {
	f(left, right, events)
}
