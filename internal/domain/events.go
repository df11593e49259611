package domain

import "github.com/pion/rtp"

// ConnectionState is the media connection state reported by the engine.
type ConnectionState int

const (
	ConnectionStateNew ConnectionState = iota
	ConnectionStateConnecting
	ConnectionStateConnected
	ConnectionStateDisconnected
	ConnectionStateFailed
	ConnectionStateClosed
)

func (s ConnectionState) String() string {
	switch s {
	case ConnectionStateNew:
		return "new"
	case ConnectionStateConnecting:
		return "connecting"
	case ConnectionStateConnected:
		return "connected"
	case ConnectionStateDisconnected:
		return "disconnected"
	case ConnectionStateFailed:
		return "failed"
	case ConnectionStateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Track is a remote media track delivered by the engine.
type Track interface {
	ID() string
	Kind() string
	MimeType() string
	ReadRTP() (*rtp.Packet, error)
}

// EngineEvent is an asynchronous notification from an Engine. Generation
// identifies the session the engine was created for.
type EngineEvent interface {
	Generation() uint64
	engineEvent()
}

// RemoteDescriptionSet reports the result of Engine.SetRemoteDescription.
type RemoteDescriptionSet struct {
	Gen uint64
	Err error
}

// LocalDescriptionSet reports the result of Engine.SetLocalDescription.
type LocalDescriptionSet struct {
	Gen uint64
	Err error
}

// AnswerCreated carries the answer SDP, or Err if creation failed.
type AnswerCreated struct {
	Gen uint64
	SDP string
	Err error
}

// CandidateGenerated is a local ICE candidate to send to the remote peer.
type CandidateGenerated struct {
	Gen       uint64
	Candidate Candidate
}

// TrackReceived is a remote media track ready for presentation.
type TrackReceived struct {
	Gen   uint64
	Track Track
}

// ConnectionStateChanged reports a new peer connection state.
type ConnectionStateChanged struct {
	Gen   uint64
	State ConnectionState
}

func (e RemoteDescriptionSet) Generation() uint64   { return e.Gen }
func (e LocalDescriptionSet) Generation() uint64    { return e.Gen }
func (e AnswerCreated) Generation() uint64          { return e.Gen }
func (e CandidateGenerated) Generation() uint64     { return e.Gen }
func (e TrackReceived) Generation() uint64          { return e.Gen }
func (e ConnectionStateChanged) Generation() uint64 { return e.Gen }

func (RemoteDescriptionSet) engineEvent()   {}
func (LocalDescriptionSet) engineEvent()    {}
func (AnswerCreated) engineEvent()          {}
func (CandidateGenerated) engineEvent()     {}
func (TrackReceived) engineEvent()          {}
func (ConnectionStateChanged) engineEvent() {}
