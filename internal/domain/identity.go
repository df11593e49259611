package domain

// IdentifyFrom is the fixed "from" value of the identify handshake.
const IdentifyFrom = "tv"

// Identity names this receiver to the signaling server.
type Identity struct {
	ID   string
	Name string
}

// IdentifyMessage builds the handshake sent on every new connection.
func (id Identity) IdentifyMessage() Identify {
	return Identify{From: IdentifyFrom, TVID: id.ID, Name: id.Name}
}

// ICEServer holds STUN/TURN server configuration.
type ICEServer struct {
	URL        string
	Username   string
	Credential string
}
