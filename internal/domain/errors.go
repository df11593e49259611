package domain

import "github.com/pkg/errors"

var (
	// ErrChannelClosed is returned when a message is sent without a live connection.
	ErrChannelClosed = errors.New("control channel closed")
	// ErrMalformedMessage is returned when an inbound frame cannot be decoded.
	ErrMalformedMessage = errors.New("malformed control message")
	// ErrNegotiation reports an engine failure during offer/answer.
	ErrNegotiation = errors.New("negotiation failed")
	// ErrConnectivityLost reports a failed or disconnected media connection.
	ErrConnectivityLost = errors.New("connectivity lost")
)
