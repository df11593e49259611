package domain

// Signaler sends control messages to the signaling server.
type Signaler interface {
	Send(msg ControlMessage) error
	Connected() bool
	Close()
}

// Handler receives inbound control messages in arrival order.
type Handler interface {
	OnControlMessage(msg ControlMessage)
	OnChannelError(err error)
}

// Engine is one negotiation session of the media-transport engine.
// All methods return immediately; results arrive as EngineEvents.
type Engine interface {
	SetRemoteDescription(sdp string)
	CreateAnswer()
	SetLocalDescription(sdp string)
	AddCandidate(c Candidate)
	Close()
}

// EngineEvents receives events emitted by an Engine.
type EngineEvents interface {
	OnEngineEvent(ev EngineEvent)
}

// EngineFactory creates an Engine whose events are tagged with gen.
type EngineFactory interface {
	NewEngine(gen uint64, events EngineEvents) (Engine, error)
}

// Presenter consumes remote tracks for display.
type Presenter interface {
	Present(track Track)
}
