package sequencer

import "fmt"

type (
	// Notification is a fixed-size record sent from the audio goroutine to
	// the control goroutine. Track and Beat are -1 when not applicable.
	//
	//   BeatOn, BeatOff       Track, Beat
	//   BeatChanged           Track, Beat, Flag = new state, Value = 1 for the mask
	//   BpmChanged            Value = bpm
	//   TransportChanged      Flag = started
	//   LoopingChanged        Flag = looping
	//   TrackMuteChanged      Track, Flag = muted
	//   TrackSoloChanged      Track, Flag = solo
	//   TrackPitchChanged     Track, Value = semitones
	//   TrackVolumeChanged    Track, Value = dB
	//   Reordered             Track and Beat are the swapped track indices
	//   TrackFailed           Track
	//   Ended                 Beat = number of beats played
	Notification struct {
		Kind  NotificationKind
		Track int
		Beat  int
		Value float64
		Flag  bool
	}

	NotificationKind uint8
)

const (
	NoteNone NotificationKind = iota
	BeatOn
	BeatOff
	BeatChanged
	BpmChanged
	TransportChanged
	LoopingChanged
	TrackMuteChanged
	TrackSoloChanged
	TrackPitchChanged
	TrackVolumeChanged
	Reordered
	TrackFailed
	Ended
	NumNotificationKinds
)

// notificationNames are also the event names the pump fires.
var notificationNames = [...]string{
	"none",
	"beat-on",
	"beat-off",
	"beat-changed",
	"bpm-changed",
	"transport-changed",
	"looping-changed",
	"track-mute-changed",
	"track-solo-changed",
	"track-pitch-changed",
	"track-volume-changed",
	"reordered",
	"track-failed",
	"ended",
}

func (k NotificationKind) String() string {
	if k >= NumNotificationKinds {
		return fmt.Sprintf("NotificationKind(%d)", k)
	}
	return notificationNames[k]
}

// EventNames lists the names of every event a Sequence fires.
func EventNames() []string {
	return append([]string(nil), notificationNames[1:]...)
}
