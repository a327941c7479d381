package engine

import "github.com/laurentcbn/obstaclespaceecho/dsp/tape"

// Mode selects which playback heads contribute to the echo sum and
// whether the spring reverb is engaged.
type Mode struct {
	Heads  [tape.NumHeads]bool
	Reverb bool
}

// NumModes is the number of selector positions.
const NumModes = 12

// modeTable mirrors the 12-position rotary selector: single heads, head
// combinations, all heads, heads with reverb, and reverb only.
var modeTable = [NumModes]Mode{
	{Heads: [3]bool{true, false, false}},               // 1  - H1
	{Heads: [3]bool{false, true, false}},               // 2  - H2
	{Heads: [3]bool{false, false, true}},               // 3  - H3
	{Heads: [3]bool{true, true, false}},                // 4  - H1+H2
	{Heads: [3]bool{true, false, true}},                // 5  - H1+H3
	{Heads: [3]bool{false, true, true}},                // 6  - H2+H3
	{Heads: [3]bool{true, true, true}},                 // 7  - ALL
	{Heads: [3]bool{true, false, false}, Reverb: true}, // 8  - H1+Reverb
	{Heads: [3]bool{false, true, false}, Reverb: true}, // 9  - H2+Reverb
	{Heads: [3]bool{false, false, true}, Reverb: true}, // 10 - H3+Reverb
	{Heads: [3]bool{true, true, true}, Reverb: true},   // 11 - ALL+Reverb
	{Heads: [3]bool{false, false, false}, Reverb: true}, // 12 - Reverb only
}

// ModeAt returns the mode at the given selector index, clamped to the
// valid range.
func ModeAt(index int) Mode {
	if index < 0 {
		index = 0
	}
	if index >= NumModes {
		index = NumModes - 1
	}
	return modeTable[index]
}

// ActiveHeads returns the number of heads enabled in m.
func (m Mode) ActiveHeads() int {
	n := 0
	for _, enabled := range m.Heads {
		if enabled {
			n++
		}
	}
	return n
}
