package mixer

import (
	"io"
	"log/slog"
	"math"
	"testing"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()

	opts = append([]Option{WithLogger(quietLogger())}, opts...)

	e, err := New(opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	return e
}

// TestEnginePassthrough checks the default route: external input through
// the unity master fader to the output, unchanged.
func TestEnginePassthrough(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t)

	left := make([]float64, 512)
	right := make([]float64, 512)

	for i := range left {
		left[i] = math.Sin(2 * math.Pi * 440 * float64(i) / e.SampleRate())
		right[i] = -left[i]
	}

	wantL := append([]float64(nil), left...)
	wantR := append([]float64(nil), right...)

	if err := e.ProcessBlock(left, right, nil); err != nil {
		t.Fatalf("ProcessBlock: %v", err)
	}

	for i := range left {
		if left[i] != wantL[i] || right[i] != wantR[i] {
			t.Fatalf("sample %d changed: %v/%v", i, left[i], right[i])
		}
	}
}

// TestEngineChunkingMatchesSingleBlock processes the same signal with two
// different engine block sizes and compares the outputs.
func TestEngineChunkingMatchesSingleBlock(t *testing.T) {
	t.Parallel()

	run := func(blockSize int) []float64 {
		e := newTestEngine(t, WithBlockSize(blockSize))

		track, err := e.AddTrack("osc", "")
		if err != nil {
			t.Fatalf("AddTrack: %v", err)
		}

		phase := 0.0
		err = track.SetSource(SourceFunc(func(left, right []float64, _ []Event) {
			for i := range left {
				left[i] = math.Sin(phase)
				right[i] = math.Sin(phase)
				phase += 2 * math.Pi * 440 / e.SampleRate()
			}
		}))
		if err != nil {
			t.Fatalf("SetSource: %v", err)
		}

		left := make([]float64, 1024)
		right := make([]float64, 1024)

		if err := e.ProcessBlock(left, right, nil); err != nil {
			t.Fatalf("ProcessBlock: %v", err)
		}

		return left
	}

	big := run(1024)
	small := run(64)

	for i := range big {
		if math.Abs(big[i]-small[i]) > 1e-12 {
			t.Fatalf("sample %d: %v vs %v", i, big[i], small[i])
		}
	}
}

// TestEngineTrackMixesIntoMaster renders a constant source on a track and
// checks it sums with the external input.
func TestEngineTrackMixesIntoMaster(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t)

	track, err := e.AddTrack("pad", MasterBusName)
	if err != nil {
		t.Fatalf("AddTrack: %v", err)
	}

	if err := track.SetSource(SourceFunc(func(left, right []float64, _ []Event) {
		for i := range left {
			left[i] = 0.25
			right[i] = 0.25
		}
	})); err != nil {
		t.Fatalf("SetSource: %v", err)
	}

	left := make([]float64, 256)
	right := make([]float64, 256)

	for i := range left {
		left[i] = 0.5
		right[i] = 0.5
	}

	if err := e.ProcessBlock(left, right, nil); err != nil {
		t.Fatalf("ProcessBlock: %v", err)
	}

	// Track pan is centered, so each channel carries 0.25/sqrt(2).
	want := 0.5 + 0.25/math.Sqrt2
	for i := range left {
		if math.Abs(left[i]-want) > 1e-12 {
			t.Fatalf("sample %d = %v, want %v", i, left[i], want)
		}
	}
}

// TestEngineClearTracksSilencesSources removes all tracks and checks only
// the external input remains.
func TestEngineClearTracksSilencesSources(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t)

	track, err := e.AddTrack("noise", "")
	if err != nil {
		t.Fatalf("AddTrack: %v", err)
	}

	if err := track.SetSource(SourceFunc(func(left, right []float64, _ []Event) {
		for i := range left {
			left[i] = 1
			right[i] = 1
		}
	})); err != nil {
		t.Fatalf("SetSource: %v", err)
	}

	baseline := e.NodeCount()

	if err := e.ClearTracks(); err != nil {
		t.Fatalf("ClearTracks: %v", err)
	}

	if got := e.NodeCount(); got != baseline-3 {
		t.Errorf("NodeCount = %d, want %d", got, baseline-3)
	}

	left := make([]float64, 64)
	right := make([]float64, 64)

	if err := e.ProcessBlock(left, right, nil); err != nil {
		t.Fatalf("ProcessBlock: %v", err)
	}

	for i := range left {
		if left[i] != 0 {
			t.Fatalf("sample %d = %v, want silence", i, left[i])
		}
	}
}

// tapRecorder counts pushes and remembers the last peak.
type tapRecorder struct {
	pushes int
	peak   float64
}

func (r *tapRecorder) Push(left, _ []float64) {
	r.pushes++

	for _, v := range left {
		if a := math.Abs(v); a > r.peak {
			r.peak = a
		}
	}
}

func TestEngineMasterTap(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, WithBlockSize(128))

	rec := &tapRecorder{}
	e.AttachMasterTap(rec)

	left := make([]float64, 512)
	right := make([]float64, 512)

	for i := range left {
		left[i] = 0.5
		right[i] = 0.5
	}

	if err := e.ProcessBlock(left, right, nil); err != nil {
		t.Fatalf("ProcessBlock: %v", err)
	}

	if rec.pushes != 4 {
		t.Errorf("pushes = %d, want 4", rec.pushes)
	}

	if math.Abs(rec.peak-0.5) > 1e-12 {
		t.Errorf("peak = %v, want 0.5", rec.peak)
	}
}

// TestEngineEventsReachSourcesRebased checks events are delivered to the
// chunk they fall into, with offsets rebased to the chunk start.
func TestEngineEventsReachSourcesRebased(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, WithBlockSize(100))

	track, err := e.AddTrack("sampler", "")
	if err != nil {
		t.Fatalf("AddTrack: %v", err)
	}

	var got []Event

	if err := track.SetSource(SourceFunc(func(left, right []float64, events []Event) {
		got = append(got, events...)

		for i := range left {
			left[i] = 0
			right[i] = 0
		}
	})); err != nil {
		t.Fatalf("SetSource: %v", err)
	}

	left := make([]float64, 250)
	right := make([]float64, 250)

	events := []Event{
		{Offset: 10, Kind: EventNoteOn, Data1: 60, Data2: 100},
		{Offset: 150, Kind: EventNoteOff, Data1: 60},
		{Offset: 240, Kind: EventControlChange, Data1: 7, Data2: 90},
	}

	if err := e.ProcessBlock(left, right, events); err != nil {
		t.Fatalf("ProcessBlock: %v", err)
	}

	if len(got) != 3 {
		t.Fatalf("delivered %d events, want 3", len(got))
	}

	wantOffsets := []int{10, 50, 40}
	for i, ev := range got {
		if ev.Offset != wantOffsets[i] {
			t.Errorf("event %d offset = %d, want %d", i, ev.Offset, wantOffsets[i])
		}
	}
}

func TestEngineTrackRouting(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t)

	drums, err := e.Bus("drums")
	if err != nil {
		t.Fatalf("Bus: %v", err)
	}

	track, err := e.AddTrack("kick", "")
	if err != nil {
		t.Fatalf("AddTrack: %v", err)
	}

	if err := track.SetSource(SourceFunc(func(left, right []float64, _ []Event) {
		for i := range left {
			left[i] = 0.5
			right[i] = 0.5
		}
	})); err != nil {
		t.Fatalf("SetSource: %v", err)
	}

	if err := track.RouteTo("drums"); err != nil {
		t.Fatalf("RouteTo: %v", err)
	}

	// Pull the drums bus down hard and confirm the output follows.
	drums.SetGainDB(-60)

	left := make([]float64, 48000)
	right := make([]float64, 48000)

	if err := e.ProcessBlock(left, right, nil); err != nil {
		t.Fatalf("ProcessBlock: %v", err)
	}

	// After the fader ramp settles, the signal is 60 dB down.
	var peak float64
	for _, v := range left[24000:] {
		if a := math.Abs(v); a > peak {
			peak = a
		}
	}

	want := 0.5 / math.Sqrt2 * math.Pow(10, -60.0/20)
	if peak > want*1.5 {
		t.Errorf("settled peak = %v, want about %v", peak, want)
	}
}

func TestEngineRejectsBadOptions(t *testing.T) {
	t.Parallel()

	if _, err := New(WithSampleRate(-1)); err == nil {
		t.Error("negative sample rate accepted")
	}

	if _, err := New(WithBlockSize(0)); err == nil {
		t.Error("zero block size accepted")
	}

	if _, err := New(WithLogger(nil)); err == nil {
		t.Error("nil logger accepted")
	}
}

// TestEngineStandardBuses checks the fixed buses exist from construction
// and that asking for a new name creates it instead of failing.
func TestEngineStandardBuses(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t)

	want := []string{"bass", "drums", "master", "melodic"}

	names := e.Buses()
	if len(names) != len(want) {
		t.Fatalf("Buses = %v, want %v", names, want)
	}

	for i, name := range names {
		if name != want[i] {
			t.Fatalf("Buses = %v, want %v", names, want)
		}
	}

	if _, err := e.AddBus("drums"); err == nil {
		t.Error("duplicate bus name accepted")
	}

	before := e.NodeCount()

	vox, err := e.Bus("vox")
	if err != nil {
		t.Fatalf("Bus: %v", err)
	}

	if vox.Name() != "vox" {
		t.Errorf("Name = %q", vox.Name())
	}

	if got := e.NodeCount(); got != before+2 {
		t.Errorf("NodeCount = %d, want %d", got, before+2)
	}

	// Second lookup returns the same bus without growing the graph.
	again, err := e.Bus("vox")
	if err != nil {
		t.Fatalf("Bus: %v", err)
	}

	if again != vox || e.NodeCount() != before+2 {
		t.Error("second lookup created a new bus")
	}

	// The empty name resolves to the master bus.
	master, err := e.Bus("")
	if err != nil {
		t.Fatalf("Bus: %v", err)
	}

	if master != e.Master() {
		t.Error("empty name did not resolve to master")
	}
}

// TestEngineWideUnitControl addresses units by ID without knowing which
// bus holds them.
func TestEngineWideUnitControl(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t)

	drums, err := e.Bus("drums")
	if err != nil {
		t.Fatalf("Bus: %v", err)
	}

	if err := drums.SetChain([]UnitSpec{{ID: "squash", Type: "compressor"}}); err != nil {
		t.Fatalf("SetChain: %v", err)
	}

	if !e.SetParameter("squash", "ratio", 8) {
		t.Error("parameter write rejected")
	}

	if got := drums.Unit("squash").Params()["ratio"]; got != 8 {
		t.Errorf("ratio = %v, want 8", got)
	}

	if !e.SetUnitEnabled("squash", false) {
		t.Error("enable toggle rejected")
	}

	if drums.Unit("squash").Enabled() {
		t.Error("unit still enabled")
	}

	if e.SetParameter("ghost", "ratio", 2) {
		t.Error("write to unknown unit accepted")
	}

	if e.SetUnitEnabled("ghost", true) {
		t.Error("toggle of unknown unit accepted")
	}
}

// TestEngineUnitIDsUniqueAcrossBuses puts the same effect type on two
// buses and checks generated IDs do not collide, so engine-level
// addressing reaches each unit.
func TestEngineUnitIDsUniqueAcrossBuses(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t)

	drums, err := e.Bus("drums")
	if err != nil {
		t.Fatalf("Bus: %v", err)
	}

	bass, err := e.Bus("bass")
	if err != nil {
		t.Fatalf("Bus: %v", err)
	}

	if err := drums.SetChain([]UnitSpec{{Type: "gain"}}); err != nil {
		t.Fatalf("SetChain: %v", err)
	}

	if err := bass.SetChain([]UnitSpec{{Type: "gain"}}); err != nil {
		t.Fatalf("SetChain: %v", err)
	}

	drumsID := drums.Chain()[0].ID
	bassID := bass.Chain()[0].ID

	if drumsID == bassID {
		t.Fatalf("both buses generated id %q", drumsID)
	}

	if !e.SetParameter(drumsID, "gainDB", -6) {
		t.Errorf("write to %q rejected", drumsID)
	}

	if !e.SetParameter(bassID, "gainDB", -12) {
		t.Errorf("write to %q rejected", bassID)
	}

	if got := drums.Unit(drumsID).Params()["gainDB"]; got != -6 {
		t.Errorf("drums gainDB = %v, want -6", got)
	}

	if got := bass.Unit(bassID).Params()["gainDB"]; got != -12 {
		t.Errorf("bass gainDB = %v, want -12", got)
	}

	// An explicit ID already taken on another bus is regenerated.
	if err := bass.SetChain([]UnitSpec{{ID: drumsID, Type: "saturator"}}); err != nil {
		t.Fatalf("SetChain: %v", err)
	}

	if got := bass.Chain()[0].ID; got == drumsID {
		t.Errorf("colliding id %q kept", got)
	}
}

// TestEnginePrepareChangesFormat reconfigures sample rate and block size
// after construction and checks processing still works at the new format.
func TestEnginePrepareChangesFormat(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t)

	if err := e.Master().SetChain([]UnitSpec{
		{ID: "echo", Type: "delay", Params: map[string]float64{"timeMs": 10, "dry": 0, "wet": 1}},
	}); err != nil {
		t.Fatalf("SetChain: %v", err)
	}

	if err := e.Prepare(44100, 128); err != nil {
		t.Fatalf("Prepare: %v", err)
	}

	if e.SampleRate() != 44100 || e.BlockSize() != 128 {
		t.Fatalf("format = %v/%d", e.SampleRate(), e.BlockSize())
	}

	left := make([]float64, 2048)
	right := make([]float64, 2048)
	left[0] = 1
	right[0] = 1

	if err := e.ProcessBlock(left, right, nil); err != nil {
		t.Fatalf("ProcessBlock: %v", err)
	}

	// The delay echoes the impulse 10 ms later at the new rate.
	want := int(math.Round(10.0 / 1000 * 44100))

	peak := 0
	for i := range left {
		if math.Abs(left[i]) > math.Abs(left[peak]) {
			peak = i
		}
	}

	if peak != want {
		t.Errorf("echo at sample %d, want %d", peak, want)
	}

	if err := e.Prepare(0, 128); err == nil {
		t.Error("zero sample rate accepted")
	}

	if err := e.Prepare(48000, -1); err == nil {
		t.Error("negative block size accepted")
	}
}

// TestEngineConcurrentParameterWrites hammers a chain parameter from
// another goroutine while the audio loop runs, then checks the final value
// is audible in the next block.
func TestEngineConcurrentParameterWrites(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, WithBlockSize(64))

	if err := e.Master().SetChain([]UnitSpec{{ID: "sat", Type: "saturator"}}); err != nil {
		t.Fatalf("SetChain: %v", err)
	}

	done := make(chan struct{})

	go func() {
		defer close(done)

		for i := range 200 {
			e.SetParameter("sat", "drive", 1+float64(i%19))
			e.SetUnitEnabled("sat", i%2 == 0)
		}
	}()

	left := make([]float64, 64)
	right := make([]float64, 64)

	for range 100 {
		for i := range left {
			left[i] = 0.5
			right[i] = 0.5
		}

		if err := e.ProcessBlock(left, right, nil); err != nil {
			t.Fatalf("ProcessBlock: %v", err)
		}
	}

	<-done

	e.SetParameter("sat", "drive", 1)
	e.SetParameter("sat", "mix", 0)
	e.SetUnitEnabled("sat", true)

	for i := range left {
		left[i] = 0.5
		right[i] = 0.5
	}

	if err := e.ProcessBlock(left, right, nil); err != nil {
		t.Fatalf("ProcessBlock: %v", err)
	}

	// With mix 0 the saturator passes the input through unchanged.
	for i := range left {
		if math.Abs(left[i]-0.5) > 1e-12 {
			t.Fatalf("sample %d = %v after settling", i, left[i])
		}
	}
}

func TestEngineBufferMismatch(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t)

	if err := e.ProcessBlock(make([]float64, 8), make([]float64, 4), nil); err == nil {
		t.Error("mismatched buffers accepted")
	}
}
