// Command spaceecho-tone plays the built-in test tone through the space
// echo on the default audio device. Useful for auditioning mode,
// feedback, and reverb settings without an input file.
package main

import (
	"encoding/binary"
	"flag"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/ebitengine/oto/v3"

	"github.com/laurentcbn/obstaclespaceecho/engine"
)

func main() {
	duration := flag.Float64("duration", 10.0, "Playback duration in seconds")
	sampleRate := flag.Int("sample-rate", 48000, "Playback sample rate in Hz")
	mode := flag.Int("mode", 7, "Mode selector position 0-11")
	repeatMs := flag.Float64("repeat", 150, "Head-1 delay time in milliseconds (20-500)")
	intensity := flag.Float64("intensity", 0.5, "Echo feedback intensity (0-0.95)")
	echoLevel := flag.Float64("echo", 0.7, "Echo mix level (0-1)")
	reverbLevel := flag.Float64("reverb", 0.5, "Reverb mix level (0-1)")
	wowFlutter := flag.Float64("wow", 0.3, "Wow/flutter depth (0-1)")
	saturation := flag.Float64("saturation", 0.3, "Tape saturation amount (0-1)")
	noise := flag.Float64("noise", 0.15, "Tape hiss amount (0-1)")
	shimmer := flag.Float64("shimmer", 0, "Shimmer feedback amount (0-1)")
	pingPong := flag.Bool("ping-pong", true, "Cross-route the stereo feedback")
	flag.Parse()

	e, err := engine.New(float64(*sampleRate))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating engine: %v\n", err)
		os.Exit(1)
	}
	e.SetMode(*mode)
	e.SetRepeatRate(*repeatMs)
	e.SetIntensity(*intensity)
	e.SetEchoLevel(*echoLevel)
	e.SetReverbLevel(*reverbLevel)
	e.SetWowFlutter(*wowFlutter)
	e.SetSaturation(*saturation)
	e.SetTapeNoise(*noise)
	e.SetShimmer(*shimmer)
	e.SetPingPong(*pingPong)
	e.SetTestTone(true)

	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   *sampleRate,
		ChannelCount: 2,
		Format:       oto.FormatFloat32LE,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening audio device: %v\n", err)
		os.Exit(1)
	}
	<-ready

	player := ctx.NewPlayer(newEngineReader(e))
	player.Play()

	fmt.Printf("Playing test tone for %.1f seconds (mode %d, repeat %.0f ms)...\n",
		*duration, *mode, *repeatMs)
	time.Sleep(time.Duration(*duration * float64(time.Second)))

	player.Close()
	e.Release()
}

// engineReader adapts engine.ProcessBlock to the io.Reader the audio
// device pulls from: interleaved little-endian float32 stereo.
type engineReader struct {
	engine *engine.Engine
	left   []float64
	right  []float64
}

func newEngineReader(e *engine.Engine) *engineReader {
	const blockSize = 512
	return &engineReader{
		engine: e,
		left:   make([]float64, blockSize),
		right:  make([]float64, blockSize),
	}
}

func (r *engineReader) Read(p []byte) (int, error) {
	const bytesPerFrame = 8 // 2 channels x 4 bytes
	frames := len(p) / bytesPerFrame
	written := 0
	for frames > 0 {
		n := frames
		if n > len(r.left) {
			n = len(r.left)
		}
		left := r.left[:n]
		right := r.right[:n]
		for i := range left {
			left[i] = 0
			right[i] = 0
		}
		r.engine.ProcessBlock(left, right)

		for i := 0; i < n; i++ {
			binary.LittleEndian.PutUint32(p[written:], math.Float32bits(float32(left[i])))
			binary.LittleEndian.PutUint32(p[written+4:], math.Float32bits(float32(right[i])))
			written += bytesPerFrame
		}
		frames -= n
	}
	return written, nil
}
