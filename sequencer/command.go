package sequencer

import (
	"fmt"

	"github.com/vsariola/stepseq"
	"github.com/vsariola/stepseq/resample"
)

type (
	// Command is a fixed-size record sent from the control goroutine to the
	// audio goroutine. Which fields are meaningful depends on Kind; slices and
	// pointers are payloads built by the control goroutine that become owned
	// by the audio goroutine once sent.
	Command struct {
		Kind  CommandKind
		Track int
		Arg   int // second track for SwapTracks, beat for SetBeat and SetMaskBeat
		Value float64
		Pitch float64
		On    bool
		On2   bool // transport query flag for SetTransport

		Tracks []int  // LockTracks, UnlockTracks
		Mask   []bool // EnableMask

		Resize *ResizeArgs
		Sample *SampleArgs
	}

	CommandKind uint8

	// ResizeArgs replaces the track array. Origins[i] is the index of the old
	// track whose runtime state new track i inherits, or -1 for a new track.
	ResizeArgs struct {
		Tracks     []*Track
		Origins    []int
		BeatsNum   int
		MeasureLen int
	}

	// SampleArgs swaps the sample of a track together with everything that
	// depends on its channel count.
	SampleArgs struct {
		Sample    *stepseq.Sample
		Resampler resample.Resampler
		Step      float64
		Scratch   []float32
	}
)

const (
	CmdNone CommandKind = iota
	CmdSetBpm
	CmdSetTransport
	CmdSetLooping
	CmdStart
	CmdStop
	CmdRewind
	CmdSetResamplerRatio
	CmdSetVolume
	CmdMultiplyVolume
	CmdSetSmoothing
	CmdMuteTrack
	CmdSoloTrack
	CmdSwapTracks
	CmdLockTracks
	CmdUnlockTracks
	CmdLockTrack
	CmdUnlockTrack
	CmdResize
	CmdSetSample
	CmdEnableMask
	CmdDisableMask
	CmdSetBeat
	CmdSetMaskBeat
	CmdAckEnable
	CmdAckDisable
	NumCommandKinds
)

var commandNames = [...]string{
	"None",
	"SetBpm",
	"SetTransport",
	"SetLooping",
	"Start",
	"Stop",
	"Rewind",
	"SetResamplerRatio",
	"SetVolume",
	"MultiplyVolume",
	"SetSmoothing",
	"MuteTrack",
	"SoloTrack",
	"SwapTracks",
	"LockTracks",
	"UnlockTracks",
	"LockTrack",
	"UnlockTrack",
	"Resize",
	"SetSample",
	"EnableMask",
	"DisableMask",
	"SetBeat",
	"SetMaskBeat",
	"AckEnable",
	"AckDisable",
}

func (k CommandKind) String() string {
	if k >= NumCommandKinds {
		return fmt.Sprintf("CommandKind(%d)", k)
	}
	return commandNames[k]
}
