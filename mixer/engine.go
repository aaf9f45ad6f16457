// Package mixer implements a real-time stereo mixing engine: tracks render
// into buses, buses carry reconfigurable effect chains, and everything
// meets in a master bus that feeds the audio output.
//
// The engine splits work across two roles. The audio goroutine calls
// ProcessBlock and nothing else; it never allocates once the engine is
// built. Control goroutines edit topology and chains through the engine
// and bus methods, which serialize against ProcessBlock with a mutex held
// only for the duration of one block or one edit. Parameter changes go
// through lock-free per-unit setters and take effect at the next block.
package mixer

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/cwbudde/algo-mixer/dsp/core"
	"github.com/cwbudde/algo-mixer/dsp/fx"
)

const (
	defaultSampleRate = 48000.0
	defaultBlockSize  = 512

	// MasterBusName is the name of the always-present output bus.
	MasterBusName = "master"
)

// standardBusNames are the buses created alongside the master at engine
// construction. Further buses appear on first use.
var standardBusNames = []string{"drums", "bass", "melodic"}

var (
	errBufferMismatch = errors.New("mixer: left/right buffer lengths differ")
	errDuplicateBus   = errors.New("mixer: bus already exists")
)

// Tap observes the master output. Push is called from the audio goroutine
// once per processed chunk with read-only buffers; it must not block.
type Tap interface {
	Push(left, right []float64)
}

// Option configures an Engine.
type Option func(*Engine) error

// WithSampleRate sets the engine sample rate in Hz.
func WithSampleRate(sampleRate float64) Option {
	return func(e *Engine) error {
		if sampleRate <= 0 || !core.IsFinite(sampleRate) {
			return fmt.Errorf("mixer: sample rate must be > 0 and finite: %f", sampleRate)
		}

		e.sampleRate = sampleRate

		return nil
	}
}

// WithBlockSize sets the maximum samples processed per graph pass. Larger
// ProcessBlock calls are chunked to this size.
func WithBlockSize(blockSize int) Option {
	return func(e *Engine) error {
		if blockSize <= 0 {
			return fmt.Errorf("mixer: block size must be > 0: %d", blockSize)
		}

		e.blockSize = blockSize

		return nil
	}
}

// WithLogger sets the structured logger for control-path diagnostics.
func WithLogger(log *slog.Logger) Option {
	return func(e *Engine) error {
		if log == nil {
			return errors.New("mixer: nil logger")
		}

		e.log = log

		return nil
	}
}

// WithRegistry sets the effect registry used to build bus chains.
func WithRegistry(registry *fx.Registry) Option {
	return func(e *Engine) error {
		if registry == nil {
			return errors.New("mixer: nil registry")
		}

		e.registry = registry

		return nil
	}
}

// inputFeed renders the external input slices set for the current chunk.
type inputFeed struct {
	left, right []float64
}

func (f *inputFeed) Render(left, right []float64, _ []Event) {
	if f.left == nil {
		core.Zero(left)
		core.Zero(right)

		return
	}

	copy(left, f.left)
	copy(right, f.right)
}

// Engine is the mixing engine. Construct with New, feed audio with
// ProcessBlock, and shape the topology with AddTrack, AddBus and the bus
// chain methods.
type Engine struct {
	mu sync.Mutex

	graph    *Graph
	registry *fx.Registry
	log      *slog.Logger

	sampleRate float64
	blockSize  int

	audioIn  NodeID
	audioOut NodeID
	midiIn   NodeID
	midiOut  NodeID

	feed inputFeed

	buses  map[string]*Bus
	master *Bus
	tracks []*Track

	tap          Tap
	eventScratch []Event
}

// New builds an engine with the fixed endpoint nodes (AudioIn, AudioOut,
// MIDIIn, MIDIOut), the master bus between them, and a default passthrough
// route from the input to the master bus.
func New(opts ...Option) (*Engine, error) {
	e := &Engine{
		graph:        NewGraph(),
		registry:     fx.DefaultRegistry(),
		log:          slog.Default(),
		sampleRate:   defaultSampleRate,
		blockSize:    defaultBlockSize,
		buses:        make(map[string]*Bus),
		eventScratch: make([]Event, 0, 256),
	}

	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}

	if err := e.graph.Prepare(e.blockSize); err != nil {
		return nil, err
	}

	e.audioIn = e.graph.AddSource("AudioIn", &e.feed)
	e.audioOut = e.graph.AddNode("AudioOut", nil)
	e.midiIn = e.graph.AddNode("MIDIIn", nil)
	e.midiOut = e.graph.AddNode("MIDIOut", nil)

	master, err := e.newBus(MasterBusName, e.audioOut)
	if err != nil {
		return nil, err
	}

	e.master = master

	for _, name := range standardBusNames {
		if _, err := e.newBus(name, master.in); err != nil {
			return nil, err
		}
	}

	if err := e.graph.Connect(e.audioIn, master.in); err != nil {
		return nil, err
	}

	if err := e.graph.Compile(); err != nil {
		return nil, err
	}

	return e, nil
}

// SampleRate returns the engine sample rate in Hz.
func (e *Engine) SampleRate() float64 { return e.sampleRate }

// BlockSize returns the maximum samples per graph pass.
func (e *Engine) BlockSize() int { return e.blockSize }

// Master returns the always-present master bus.
func (e *Engine) Master() *Bus { return e.master }

// Bus returns the named bus, creating it on first use. An empty name
// resolves to the master bus.
func (e *Engine) Bus(name string) (*Bus, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.ensureBusLocked(name)
}

// AddBus creates a named bus routed into the master bus. It fails if the
// name is already taken.
func (e *Engine) AddBus(name string) (*Bus, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.buses[name]; exists {
		return nil, fmt.Errorf("%w: %s", errDuplicateBus, name)
	}

	bus, err := e.newBus(name, e.master.in)
	if err != nil {
		return nil, err
	}

	if err := e.graph.Compile(); err != nil {
		return nil, err
	}

	return bus, nil
}

// ensureBusLocked resolves a bus name, creating the bus on first use.
// Callers hold the mutex.
func (e *Engine) ensureBusLocked(name string) (*Bus, error) {
	if name == "" {
		name = MasterBusName
	}

	if bus, ok := e.buses[name]; ok {
		return bus, nil
	}

	bus, err := e.newBus(name, e.master.in)
	if err != nil {
		return nil, err
	}

	if err := e.graph.Compile(); err != nil {
		return nil, err
	}

	e.log.Info("created bus on first use", "bus", name)

	return bus, nil
}

// newBus wires in -> fader -> out and registers the bus. Callers hold the
// mutex (or run before the engine is shared).
func (e *Engine) newBus(name string, out NodeID) (*Bus, error) {
	fader := fx.NewGain()
	if err := fader.Prepare(e.sampleRate, e.blockSize); err != nil {
		return nil, err
	}

	bus := &Bus{
		engine:    e,
		name:      name,
		in:        e.graph.AddNode(name+"/in", nil),
		faderUnit: fader,
		out:       out,
	}
	bus.fader = e.graph.AddNode(name+"/fader", fader)

	if err := e.graph.Connect(bus.in, bus.fader); err != nil {
		return nil, err
	}

	if err := e.graph.Connect(bus.fader, bus.out); err != nil {
		return nil, err
	}

	e.buses[name] = bus

	return bus, nil
}

// Buses returns the bus names in sorted order, master included.
func (e *Engine) Buses() []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	names := make([]string, 0, len(e.buses))
	for name := range e.buses {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// Prepare reconfigures the engine for a new format: every unit is
// re-prepared for the sample rate, every node buffer resized for the block
// size, and all transient state cleared. Call between processing runs, not
// concurrently with ProcessBlock from another goroutine (the mutex makes
// it safe either way, just not glitch-free).
func (e *Engine) Prepare(sampleRate float64, blockSize int) error {
	if sampleRate <= 0 || !core.IsFinite(sampleRate) {
		return fmt.Errorf("mixer: sample rate must be > 0 and finite: %f", sampleRate)
	}

	if blockSize <= 0 {
		return fmt.Errorf("mixer: block size must be > 0: %d", blockSize)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.sampleRate = sampleRate
	e.blockSize = blockSize

	if err := e.graph.Prepare(blockSize); err != nil {
		return err
	}

	for _, unit := range e.allUnitsLocked() {
		if err := unit.Prepare(sampleRate, blockSize); err != nil {
			return err
		}

		unit.Reset()
	}

	return nil
}

// allUnitsLocked collects every live effect unit: bus faders, chain units
// and track strips. Callers hold the mutex.
func (e *Engine) allUnitsLocked() []fx.Unit {
	units := make([]fx.Unit, 0, 2*len(e.buses)+2*len(e.tracks))

	for _, bus := range e.buses {
		units = append(units, bus.faderUnit)
		for _, u := range bus.units {
			units = append(units, u.unit)
		}
	}

	for _, track := range e.tracks {
		units = append(units, track.gainUnit, track.panUnit)
	}

	return units
}

// SetParameter locates a unit by ID across all bus chains and writes the
// parameter. Unknown IDs and names are logged and ignored.
func (e *Engine) SetParameter(unitID, name string, value float64) bool {
	unit, busName := e.findChainUnit(unitID)
	if unit == nil {
		e.log.Warn("parameter write to unknown unit", "unit", unitID)
		return false
	}

	if !unit.SetParam(name, value) {
		e.log.Warn("ignoring unknown effect parameter",
			"bus", busName, "unit", unitID, "param", name)

		return false
	}

	return true
}

// SetUnitEnabled locates a unit by ID across all bus chains and toggles
// it. Unknown IDs are logged and ignored.
func (e *Engine) SetUnitEnabled(unitID string, enabled bool) bool {
	unit, _ := e.findChainUnit(unitID)
	if unit == nil {
		e.log.Warn("enable toggle for unknown unit", "unit", unitID)
		return false
	}

	unit.SetEnabled(enabled)

	return true
}

// takenUnitIDsLocked collects the unit IDs of every bus except the one
// being rebuilt, so chain builds can keep IDs unique engine-wide. Callers
// hold the mutex.
func (e *Engine) takenUnitIDsLocked(except *Bus) map[string]bool {
	taken := make(map[string]bool)

	for _, bus := range e.buses {
		if bus == except {
			continue
		}

		for _, u := range bus.units {
			taken[u.id] = true
		}
	}

	return taken
}

func (e *Engine) findChainUnit(unitID string) (fx.Unit, string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for name, bus := range e.buses {
		for _, u := range bus.units {
			if u.id == unitID {
				return u.unit, name
			}
		}
	}

	return nil, ""
}

// AttachMasterTap installs the observer for the master output. A nil tap
// detaches.
func (e *Engine) AttachMasterTap(tap Tap) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.tap = tap
}

// ProcessBlock runs one block of planar stereo audio through the graph in
// place: left/right carry the external input on entry and the master
// output on return. Blocks larger than the engine block size are processed
// in chunks. Event offsets are relative to the start of the block.
func (e *Engine) ProcessBlock(left, right []float64, events []Event) error {
	if len(left) != len(right) {
		return errBufferMismatch
	}

	if len(left) == 0 {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	for start := 0; start < len(left); start += e.blockSize {
		end := start + e.blockSize
		if end > len(left) {
			end = len(left)
		}

		chunkLen := end - start

		e.feed.left = left[start:end]
		e.feed.right = right[start:end]

		chunkEvents := e.sliceEvents(events, start, end)

		if err := e.graph.Process(chunkLen, chunkEvents); err != nil {
			e.feed.left = nil
			e.feed.right = nil

			return err
		}

		outL, outR, err := e.graph.Buffers(e.audioOut, chunkLen)
		if err != nil {
			return err
		}

		copy(left[start:end], outL)
		copy(right[start:end], outR)

		if e.tap != nil {
			e.tap.Push(outL, outR)
		}
	}

	e.feed.left = nil
	e.feed.right = nil

	return nil
}

// sliceEvents copies the events falling inside [start, end) into the
// scratch slice with offsets rebased to the chunk start.
func (e *Engine) sliceEvents(events []Event, start, end int) []Event {
	if len(events) == 0 {
		return nil
	}

	scratch := e.eventScratch[:0]
	for _, ev := range events {
		if ev.Offset < start || ev.Offset >= end {
			continue
		}

		ev.Offset -= start
		scratch = append(scratch, ev)
	}

	e.eventScratch = scratch[:0]

	return scratch
}

// AddTrack creates a silent track routed to the named bus (created on
// first use; "" means master): a source node into a gain stage into a
// constant-power pan stage.
func (e *Engine) AddTrack(name, busName string) (*Track, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	bus, err := e.ensureBusLocked(busName)
	if err != nil {
		return nil, err
	}

	gain := fx.NewGain()
	if err := gain.Prepare(e.sampleRate, e.blockSize); err != nil {
		return nil, err
	}

	pan := fx.NewPan()
	if err := pan.Prepare(e.sampleRate, e.blockSize); err != nil {
		return nil, err
	}

	track := &Track{
		engine:   e,
		name:     name,
		gainUnit: gain,
		panUnit:  pan,
		bus:      bus,
	}

	track.src = e.graph.AddSource(name+"/src", nil)
	track.gain = e.graph.AddNode(name+"/gain", gain)
	track.pan = e.graph.AddNode(name+"/pan", pan)

	if err := e.graph.Connect(track.src, track.gain); err != nil {
		return nil, err
	}

	if err := e.graph.Connect(track.gain, track.pan); err != nil {
		return nil, err
	}

	if err := e.graph.Connect(track.pan, bus.in); err != nil {
		return nil, err
	}

	if err := e.graph.Compile(); err != nil {
		return nil, err
	}

	e.tracks = append(e.tracks, track)

	return track, nil
}

// Tracks returns the live tracks in creation order.
func (e *Engine) Tracks() []*Track {
	e.mu.Lock()
	defer e.mu.Unlock()

	return append([]*Track(nil), e.tracks...)
}

// ClearTracks removes every track and its graph nodes.
func (e *Engine) ClearTracks() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, track := range e.tracks {
		if err := e.graph.RemoveNode(track.pan); err != nil {
			return err
		}

		if err := e.graph.RemoveNode(track.gain); err != nil {
			return err
		}

		if err := e.graph.RemoveNode(track.src); err != nil {
			return err
		}
	}

	e.tracks = e.tracks[:0]

	return e.graph.Compile()
}

// NodeCount returns the number of live graph nodes. Useful for asserting
// that chain edits do not leak nodes.
func (e *Engine) NodeCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.graph.NodeCount()
}

// Track is one input strip: a source feeding a gain stage and a pan stage
// on its way into a bus.
type Track struct {
	engine *Engine
	name   string

	src  NodeID
	gain NodeID
	pan  NodeID

	gainUnit *fx.Gain
	panUnit  *fx.Pan

	bus *Bus
}

// Name returns the track name.
func (t *Track) Name() string { return t.name }

// SetSource installs the audio generator. A nil source silences the track.
// Takes effect at the next processed block.
func (t *Track) SetSource(source Source) error {
	t.engine.mu.Lock()
	defer t.engine.mu.Unlock()

	return t.engine.graph.SetNodeSource(t.src, source)
}

// SetGainDB sets the track fader in dB. Lock-free; ramps over the
// smoothing window.
func (t *Track) SetGainDB(db float64) {
	t.gainUnit.SetGainDB(db)
}

// SetPan sets the stereo position in [-1, 1]. Lock-free; ramps over the
// smoothing window.
func (t *Track) SetPan(pan float64) {
	t.panUnit.SetPan(pan)
}

// RouteTo moves the track's output to the named bus, creating the bus on
// first use.
func (t *Track) RouteTo(busName string) error {
	t.engine.mu.Lock()
	defer t.engine.mu.Unlock()

	bus, err := t.engine.ensureBusLocked(busName)
	if err != nil {
		return err
	}

	if bus == t.bus {
		return nil
	}

	if err := t.engine.graph.Disconnect(t.pan, t.bus.in); err != nil {
		return err
	}

	if err := t.engine.graph.Connect(t.pan, bus.in); err != nil {
		return err
	}

	t.bus = bus

	return t.engine.graph.Compile()
}
