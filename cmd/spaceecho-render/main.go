// Command spaceecho-render processes a WAV file through the space echo
// and writes the result, including the echo/reverb tail, to a new WAV
// file. With no input file it renders the built-in test tone instead.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/cwbudde/wav"
	"github.com/go-audio/audio"
	gowav "github.com/go-audio/wav"

	"github.com/laurentcbn/obstaclespaceecho/engine"
)

func main() {
	input := flag.String("input", "", "Input WAV file path (empty = render the built-in test tone)")
	output := flag.String("output", "output.wav", "Output WAV file path")
	duration := flag.Float64("duration", 4.0, "Test tone render duration in seconds (ignored with -input)")
	tail := flag.Float64("tail", 2.0, "Extra seconds rendered after the input for the echo tail")
	sampleRate := flag.Int("sample-rate", 48000, "Render sample rate in Hz (ignored with -input)")

	mode := flag.Int("mode", 0, "Mode selector position 0-11")
	repeatMs := flag.Float64("repeat", 150, "Head-1 delay time in milliseconds (20-500)")
	intensity := flag.Float64("intensity", 0.4, "Echo feedback intensity (0-0.95)")
	echoLevel := flag.Float64("echo", 0.7, "Echo mix level (0-1)")
	reverbLevel := flag.Float64("reverb", 0.5, "Reverb mix level (0-1)")
	bassDB := flag.Float64("bass", 0, "Feedback-path low shelf gain in dB (-12..+12)")
	trebleDB := flag.Float64("treble", 0, "Feedback-path high shelf gain in dB (-12..+12)")
	wowFlutter := flag.Float64("wow", 0.3, "Wow/flutter depth (0-1)")
	saturation := flag.Float64("saturation", 0.3, "Tape saturation amount (0-1)")
	noise := flag.Float64("noise", 0.15, "Tape hiss amount (0-1)")
	shimmer := flag.Float64("shimmer", 0, "Shimmer feedback amount (0-1)")
	pingPong := flag.Bool("ping-pong", false, "Cross-route the stereo feedback")
	flag.Parse()

	var left, right []float64
	rate := *sampleRate
	if *input != "" {
		var err error
		left, right, rate, err = readWAV(*input)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading %s: %v\n", *input, err)
			os.Exit(1)
		}
	} else {
		frames := int(float64(rate) * (*duration))
		if frames < 1 {
			frames = 1
		}
		left = make([]float64, frames)
		right = make([]float64, frames)
	}

	e, err := engine.New(float64(rate))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating engine: %v\n", err)
		os.Exit(1)
	}
	e.SetMode(*mode)
	e.SetRepeatRate(*repeatMs)
	e.SetIntensity(*intensity)
	e.SetEchoLevel(*echoLevel)
	e.SetReverbLevel(*reverbLevel)
	e.SetBass(*bassDB)
	e.SetTreble(*trebleDB)
	e.SetWowFlutter(*wowFlutter)
	e.SetSaturation(*saturation)
	e.SetTapeNoise(*noise)
	e.SetShimmer(*shimmer)
	e.SetPingPong(*pingPong)
	e.SetTestTone(*input == "")

	tailFrames := int(float64(rate) * (*tail))
	if tailFrames < 0 {
		tailFrames = 0
	}
	left = append(left, make([]float64, tailFrames)...)
	right = append(right, make([]float64, tailFrames)...)

	const blockSize = 128
	for pos := 0; pos < len(left); pos += blockSize {
		end := pos + blockSize
		if end > len(left) {
			end = len(left)
		}
		e.ProcessBlock(left[pos:end], right[pos:end])
	}

	if err := writeWAV(*output, left, right, rate); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing %s: %v\n", *output, err)
		os.Exit(1)
	}

	fmt.Printf("Wrote %s (%d frames at %d Hz)\n", *output, len(left), rate)
}

// readWAV decodes a WAV file into normalized stereo float64 channels.
// Mono files are duplicated to both channels.
func readWAV(path string) (left, right []float64, sampleRate int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, 0, err
	}
	defer f.Close()

	dec := gowav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, nil, 0, fmt.Errorf("invalid wav file: %s", path)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, nil, 0, err
	}
	if buf == nil || buf.Format == nil || buf.Format.NumChannels < 1 {
		return nil, nil, 0, fmt.Errorf("invalid wav buffer: %s", path)
	}

	numCh := buf.Format.NumChannels
	rate := buf.Format.SampleRate
	if rate <= 0 {
		return nil, nil, 0, fmt.Errorf("invalid wav sample-rate: %d", rate)
	}
	frames := len(buf.Data) / numCh
	if frames == 0 {
		return nil, nil, 0, fmt.Errorf("empty wav data: %s", path)
	}

	bitDepth := int(dec.BitDepth)
	if bitDepth <= 0 {
		bitDepth = 16
	}
	scale := 1.0 / float64(int(1)<<(bitDepth-1))

	left = make([]float64, frames)
	right = make([]float64, frames)
	if numCh == 1 {
		for i := 0; i < frames; i++ {
			v := float64(buf.Data[i]) * scale
			left[i] = v
			right[i] = v
		}
	} else {
		for i := 0; i < frames; i++ {
			left[i] = float64(buf.Data[i*numCh]) * scale
			right[i] = float64(buf.Data[i*numCh+1]) * scale
		}
	}
	return left, right, rate, nil
}

// writeWAV encodes stereo float64 channels as 16-bit PCM.
func writeWAV(path string, left, right []float64, sampleRate int) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	const numChannels = 2
	encoder := wav.NewEncoder(file, sampleRate, 16, numChannels, 1)
	defer encoder.Close()

	samples := make([]float32, 0, len(left)*numChannels)
	for i := range left {
		samples = append(samples, float32(left[i]), float32(right[i]))
	}

	buf := &audio.Float32Buffer{
		Format: &audio.Format{
			SampleRate:  sampleRate,
			NumChannels: numChannels,
		},
		Data:           samples,
		SourceBitDepth: 16,
	}
	return encoder.Write(buf)
}
