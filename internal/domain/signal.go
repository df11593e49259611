package domain

// MessageType is the value of the "type" field of a control message.
type MessageType string

const (
	TypeIdentify   MessageType = "identify"
	TypeIdentified MessageType = "identified"
	TypePing       MessageType = "ping"
	TypePong       MessageType = "pong"
	TypeOffer      MessageType = "offer"
	TypeAnswer     MessageType = "answer"
	TypeCandidate  MessageType = "candidate"
	TypePeerStatus MessageType = "peer-status"
)

// ControlMessage is one message exchanged with the signaling server.
// The set of implementations is closed to this package.
type ControlMessage interface {
	Type() MessageType
	controlMessage()
}

// Identify announces the receiver right after the control socket connects.
type Identify struct {
	From string
	TVID string
	Name string
}

// Identified acknowledges Identify.
type Identified struct{}

// Ping is a server keepalive; it is answered with Pong.
type Ping struct{}

// Pong answers Ping.
type Pong struct{}

// Offer carries the remote peer's SDP offer.
type Offer struct {
	SDP string
}

// Answer carries the receiver's SDP answer.
type Answer struct {
	SDP string
}

// Candidate is one ICE connectivity candidate, sent in both directions.
type Candidate struct {
	SDPMid        string
	SDPMLineIndex int
	Candidate     string
}

// PeerStatus is informational and never changes negotiation state.
type PeerStatus struct {
	Status string
}

// Unknown is a well-formed message with an unrecognized type.
type Unknown struct {
	Kind string
}

func (Identify) Type() MessageType   { return TypeIdentify }
func (Identified) Type() MessageType { return TypeIdentified }
func (Ping) Type() MessageType       { return TypePing }
func (Pong) Type() MessageType       { return TypePong }
func (Offer) Type() MessageType      { return TypeOffer }
func (Answer) Type() MessageType     { return TypeAnswer }
func (Candidate) Type() MessageType  { return TypeCandidate }
func (PeerStatus) Type() MessageType { return TypePeerStatus }
func (u Unknown) Type() MessageType  { return MessageType(u.Kind) }

func (Identify) controlMessage()   {}
func (Identified) controlMessage() {}
func (Ping) controlMessage()       {}
func (Pong) controlMessage()       {}
func (Offer) controlMessage()      {}
func (Answer) controlMessage()     {}
func (Candidate) controlMessage()  {}
func (PeerStatus) controlMessage() {}
func (Unknown) controlMessage()    {}
