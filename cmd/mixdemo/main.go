// Command mixdemo renders a short offline mix through the engine and
// prints level and spectrum readings of the result.
//
// Usage:
//
//	mixdemo [flags]
//
// Examples:
//
//	mixdemo -seconds 2 -freq 440
//	mixdemo -chain '{"units":[{"type":"saturator","params":{"drive":8}}]}'
//	mixdemo -chain-file mastering.json -gain -6
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"math"
	"os"
	"text/tabwriter"

	"github.com/cwbudde/algo-mixer/measure/level"
	"github.com/cwbudde/algo-mixer/measure/spectrum"
	"github.com/cwbudde/algo-mixer/mixer"
)

func main() {
	var (
		sampleRate = flag.Float64("rate", 48000, "sample rate in Hz")
		blockSize  = flag.Int("block", 512, "engine block size in samples")
		seconds    = flag.Float64("seconds", 1, "length of audio to render")
		freq       = flag.Float64("freq", 440, "test tone frequency in Hz")
		gainDB     = flag.Float64("gain", 0, "test tone track gain in dB")
		pan        = flag.Float64("pan", 0, "test tone pan position in [-1, 1]")
		chainJSON  = flag.String("chain", "", "master chain config as inline JSON")
		chainFile  = flag.String("chain-file", "", "master chain config file")
		fftSize    = flag.Int("fft", 4096, "spectrum analyzer FFT size")
	)

	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stderr, nil))

	if err := run(log, *sampleRate, *blockSize, *seconds, *freq, *gainDB, *pan,
		*chainJSON, *chainFile, *fftSize); err != nil {
		log.Error("mixdemo failed", "err", err)
		os.Exit(1)
	}
}

func run(
	log *slog.Logger,
	sampleRate float64,
	blockSize int,
	seconds, freq, gainDB, pan float64,
	chainJSON, chainFile string,
	fftSize int,
) error {
	engine, err := mixer.New(
		mixer.WithSampleRate(sampleRate),
		mixer.WithBlockSize(blockSize),
		mixer.WithLogger(log),
	)
	if err != nil {
		return err
	}

	units, err := loadChain(chainJSON, chainFile)
	if err != nil {
		return err
	}

	if len(units) > 0 {
		if err := engine.Master().SetChain(units); err != nil {
			return err
		}
	}

	track, err := engine.AddTrack("tone", "")
	if err != nil {
		return err
	}

	track.SetGainDB(gainDB)
	track.SetPan(pan)

	phase := 0.0
	step := 2 * math.Pi * freq / sampleRate

	if err := track.SetSource(mixer.SourceFunc(func(left, right []float64, _ []mixer.Event) {
		for i := range left {
			left[i] = math.Sin(phase)
			right[i] = left[i]
			phase += step
		}
	})); err != nil {
		return err
	}

	meter, err := level.NewMeter(sampleRate)
	if err != nil {
		return err
	}

	analyzer, err := spectrum.NewAnalyzer(sampleRate, fftSize)
	if err != nil {
		return err
	}

	engine.AttachMasterTap(tapFan{meter, analyzer})

	total := int(seconds * sampleRate)
	left := make([]float64, blockSize)
	right := make([]float64, blockSize)

	for rendered := 0; rendered < total; rendered += blockSize {
		for i := range left {
			left[i] = 0
			right[i] = 0
		}

		if err := engine.ProcessBlock(left, right, nil); err != nil {
			return err
		}
	}

	return report(meter, analyzer)
}

// tapFan forwards the master tap to both consumers.
type tapFan struct {
	meter    *level.Meter
	analyzer *spectrum.Analyzer
}

func (t tapFan) Push(left, right []float64) {
	t.meter.Push(left, right)
	t.analyzer.Push(left, right)
}

func loadChain(inline, file string) ([]mixer.UnitSpec, error) {
	if inline != "" {
		return mixer.ParseChainConfig([]byte(inline))
	}

	if file == "" {
		return nil, nil
	}

	data, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}

	return mixer.ParseChainConfig(data)
}

func report(meter *level.Meter, analyzer *spectrum.Analyzer) error {
	peakL, peakR := meter.PeakDB()
	rmsL, rmsR := meter.RMSDB()

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "peak\t%.2f dBFS\t%.2f dBFS\n", peakL, peakR)
	fmt.Fprintf(w, "rms\t%.2f dBFS\t%.2f dBFS\n", rmsL, rmsR)

	if analyzer.Filled() {
		mags := make([]float64, analyzer.Bins())
		if err := analyzer.Compute(mags); err != nil {
			return err
		}

		peakBin := 0
		for i, v := range mags {
			if v > mags[peakBin] {
				peakBin = i
			}
		}

		fmt.Fprintf(w, "dominant\t%.1f Hz\t%.3f\n",
			analyzer.BinFrequency(peakBin), mags[peakBin])
	}

	return w.Flush()
}
