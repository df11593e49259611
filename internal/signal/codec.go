package signal

import (
	"encoding/json"
	"math"

	"tvcast/receiver/internal/domain"

	"github.com/pkg/errors"
)

// envelope is decoded first to find the message type.
type envelope struct {
	Type *string `json:"type"`
}

type identifyPayload struct {
	TVID string `json:"tvId"`
	Name string `json:"name"`
}

type identifyMessage struct {
	Type    domain.MessageType `json:"type"`
	From    string             `json:"from"`
	Payload identifyPayload    `json:"payload"`
}

type bareMessage struct {
	Type domain.MessageType `json:"type"`
}

type sdpMessage struct {
	Type domain.MessageType `json:"type"`
	SDP  string             `json:"sdp"`
}

type candidateMessage struct {
	Type          domain.MessageType `json:"type"`
	SDPMid        string             `json:"sdpMid"`
	SDPMLineIndex int                `json:"sdpMLineIndex"`
	Candidate     string             `json:"candidate"`
}

type peerStatusMessage struct {
	Type   domain.MessageType `json:"type"`
	Status string             `json:"status"`
}

// Encode returns the wire form of msg.
func Encode(msg domain.ControlMessage) ([]byte, error) {
	var v any
	switch m := msg.(type) {
	case domain.Identify:
		v = identifyMessage{
			Type:    domain.TypeIdentify,
			From:    m.From,
			Payload: identifyPayload{TVID: m.TVID, Name: m.Name},
		}
	case domain.Identified, domain.Ping, domain.Pong:
		v = bareMessage{Type: m.Type()}
	case domain.Offer:
		v = sdpMessage{Type: domain.TypeOffer, SDP: m.SDP}
	case domain.Answer:
		v = sdpMessage{Type: domain.TypeAnswer, SDP: m.SDP}
	case domain.Candidate:
		v = candidateMessage{
			Type:          domain.TypeCandidate,
			SDPMid:        m.SDPMid,
			SDPMLineIndex: m.SDPMLineIndex,
			Candidate:     m.Candidate,
		}
	case domain.PeerStatus:
		v = peerStatusMessage{Type: domain.TypePeerStatus, Status: m.Status}
	case domain.Unknown:
		v = bareMessage{Type: m.Type()}
	default:
		return nil, errors.Errorf("encode: unsupported message %T", msg)
	}

	data, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "encode")
	}
	return data, nil
}

// Decode parses one frame. Every failure wraps domain.ErrMalformedMessage.
func Decode(data []byte) (domain.ControlMessage, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, malformed(err, "envelope")
	}
	if env.Type == nil {
		return nil, errors.Wrap(domain.ErrMalformedMessage, "missing type")
	}

	switch kind := domain.MessageType(*env.Type); kind {
	case domain.TypeIdentify:
		var p struct {
			From    *string          `json:"from"`
			Payload *identifyPayload `json:"payload"`
		}
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, malformed(err, string(kind))
		}
		if p.Payload == nil || p.Payload.TVID == "" {
			return nil, errors.Wrap(domain.ErrMalformedMessage, "identify: missing tvId")
		}
		msg := domain.Identify{TVID: p.Payload.TVID, Name: p.Payload.Name}
		if p.From != nil {
			msg.From = *p.From
		}
		return msg, nil

	case domain.TypeIdentified:
		return domain.Identified{}, nil

	case domain.TypePing:
		return domain.Ping{}, nil

	case domain.TypePong:
		return domain.Pong{}, nil

	case domain.TypeOffer, domain.TypeAnswer:
		var p struct {
			SDP *string `json:"sdp"`
		}
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, malformed(err, string(kind))
		}
		if p.SDP == nil || *p.SDP == "" {
			return nil, errors.Wrapf(domain.ErrMalformedMessage, "%s: missing sdp", kind)
		}
		if kind == domain.TypeOffer {
			return domain.Offer{SDP: *p.SDP}, nil
		}
		return domain.Answer{SDP: *p.SDP}, nil

	case domain.TypeCandidate:
		var p struct {
			SDPMid        *string `json:"sdpMid"`
			SDPMLineIndex *int    `json:"sdpMLineIndex"`
			Candidate     *string `json:"candidate"`
		}
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, malformed(err, string(kind))
		}
		switch {
		case p.SDPMid == nil:
			return nil, errors.Wrap(domain.ErrMalformedMessage, "candidate: missing sdpMid")
		case p.SDPMLineIndex == nil:
			return nil, errors.Wrap(domain.ErrMalformedMessage, "candidate: missing sdpMLineIndex")
		case *p.SDPMLineIndex < 0:
			return nil, errors.Wrapf(domain.ErrMalformedMessage, "candidate: negative sdpMLineIndex %d", *p.SDPMLineIndex)
		case *p.SDPMLineIndex > math.MaxUint16:
			return nil, errors.Wrapf(domain.ErrMalformedMessage, "candidate: sdpMLineIndex %d out of range", *p.SDPMLineIndex)
		case p.Candidate == nil || *p.Candidate == "":
			return nil, errors.Wrap(domain.ErrMalformedMessage, "candidate: missing candidate")
		}
		return domain.Candidate{
			SDPMid:        *p.SDPMid,
			SDPMLineIndex: *p.SDPMLineIndex,
			Candidate:     *p.Candidate,
		}, nil

	case domain.TypePeerStatus:
		var p struct {
			Status *string `json:"status"`
		}
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, malformed(err, string(kind))
		}
		if p.Status == nil {
			return nil, errors.Wrap(domain.ErrMalformedMessage, "peer-status: missing status")
		}
		return domain.PeerStatus{Status: *p.Status}, nil

	default:
		return domain.Unknown{Kind: string(kind)}, nil
	}
}

func malformed(cause error, what string) error {
	return errors.Wrapf(domain.ErrMalformedMessage, "%s: %v", what, cause)
}
