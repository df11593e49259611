package viewer

import (
	"sync"

	"tvcast/receiver/internal/domain"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// State is the negotiation state of the receiver.
type State int

const (
	StateIdle State = iota
	StateAwaitingLocalAnswer
	StateNegotiating
	StateConnected
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingLocalAnswer:
		return "awaiting-local-answer"
	case StateNegotiating:
		return "negotiating"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// session is the single active negotiation. gen tags every event its
// engine emits so late completions from a replaced engine are dropped.
type session struct {
	gen    uint64
	id     string
	engine domain.Engine
}

// Status is a point-in-time view of the receiver.
type Status struct {
	State             string `json:"state"`
	Generation        uint64 `json:"generation"`
	SessionID         string `json:"sessionId,omitempty"`
	PendingCandidates int    `json:"pendingCandidates"`
	ChannelConnected  bool   `json:"channelConnected"`
}

// Viewer coordinates the signaling and WebRTC flows.
// It implements domain.Handler and domain.EngineEvents.
type Viewer struct {
	engines   domain.EngineFactory
	presenter domain.Presenter

	mu      sync.Mutex
	signal  domain.Signaler
	state   State
	gen     uint64
	session *session
	pending []domain.Candidate
}

// New creates a Viewer. Call SetSignaler before use to complete the
// circular dependency.
func New(engines domain.EngineFactory, presenter domain.Presenter) *Viewer {
	return &Viewer{
		engines:   engines,
		presenter: presenter,
	}
}

// SetSignaler injects the signaler after construction to resolve the
// circular dependency (Viewer needs Signaler, Signal needs Handler).
func (v *Viewer) SetSignaler(s domain.Signaler) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.signal = s
}

// State returns the current negotiation state.
func (v *Viewer) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// Status returns a snapshot for health reporting.
func (v *Viewer) Status() Status {
	v.mu.Lock()
	defer v.mu.Unlock()

	st := Status{
		State:             v.state.String(),
		Generation:        v.gen,
		PendingCandidates: len(v.pending),
	}
	if v.session != nil {
		st.SessionID = v.session.id
	}
	if v.signal != nil {
		st.ChannelConnected = v.signal.Connected()
	}
	return st
}

// OnControlMessage handles one inbound message. It never blocks.
func (v *Viewer) OnControlMessage(msg domain.ControlMessage) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.state == StateClosed {
		return
	}

	switch m := msg.(type) {
	case domain.Ping:
		v.send(domain.Pong{})

	case domain.Offer:
		v.handleOffer(m)

	case domain.Candidate:
		v.handleCandidate(m)

	case domain.Identified:
		log.Info().Str("module", "viewer").Msg("identified by signaling server")

	case domain.PeerStatus:
		log.Info().Str("module", "viewer").Str("status", m.Status).Msg("peer status")

	case domain.Pong:
		log.Debug().Str("module", "viewer").Msg("pong")

	case domain.Answer, domain.Identify:
		log.Warn().Str("module", "viewer").Str("type", string(m.Type())).Msg("ignoring message not meant for a receiver")

	case domain.Unknown:
		log.Debug().Str("module", "viewer").Str("type", m.Kind).Msg("ignoring unknown message type")

	default:
		log.Warn().Str("module", "viewer").Str("type", string(msg.Type())).Msg("unhandled message")
	}
}

// OnChannelError records a control channel failure. Negotiation state is
// left alone: the media session does not depend on the socket.
func (v *Viewer) OnChannelError(err error) {
	log.Warn().Err(err).Str("module", "viewer").Msg("control channel error")
}

func (v *Viewer) handleOffer(offer domain.Offer) {
	if v.session != nil {
		log.Info().
			Str("module", "viewer").
			Str("session", v.session.id).
			Str("state", v.state.String()).
			Msg("new offer replaces active session")
		v.teardown()
	}

	v.gen++
	engine, err := v.engines.NewEngine(v.gen, v)
	if err != nil {
		log.Error().Err(errors.Wrap(domain.ErrNegotiation, err.Error())).Str("module", "viewer").Msg("create engine")
		v.pending = nil
		v.state = StateIdle
		return
	}

	v.session = &session{gen: v.gen, id: uuid.NewString(), engine: engine}
	v.state = StateAwaitingLocalAnswer
	log.Info().Str("module", "viewer").Str("session", v.session.id).Uint64("gen", v.gen).Msg("offer received, setting remote description")
	engine.SetRemoteDescription(offer.SDP)
}

func (v *Viewer) handleCandidate(c domain.Candidate) {
	switch v.state {
	case StateNegotiating, StateConnected:
		v.session.engine.AddCandidate(c)
	default:
		v.pending = append(v.pending, c)
		log.Debug().Str("module", "viewer").Int("pending", len(v.pending)).Msg("buffering remote candidate")
	}
}

// OnEngineEvent handles one engine callback. Events from a replaced
// session, or arriving after Shutdown, are dropped.
func (v *Viewer) OnEngineEvent(ev domain.EngineEvent) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.state == StateClosed || v.session == nil || ev.Generation() != v.session.gen {
		log.Debug().Str("module", "viewer").Uint64("gen", ev.Generation()).Msg("dropping stale engine event")
		return
	}
	s := v.session

	switch e := ev.(type) {
	case domain.RemoteDescriptionSet:
		if v.state != StateAwaitingLocalAnswer {
			log.Warn().Str("module", "viewer").Str("state", v.state.String()).Msg("unexpected remote description result")
			return
		}
		if e.Err != nil {
			v.fail(domain.ErrNegotiation, e.Err)
			return
		}
		v.state = StateNegotiating
		for _, c := range v.pending {
			s.engine.AddCandidate(c)
		}
		if len(v.pending) > 0 {
			log.Debug().Str("module", "viewer").Int("count", len(v.pending)).Msg("flushed buffered candidates")
		}
		v.pending = nil
		s.engine.CreateAnswer()

	case domain.AnswerCreated:
		if v.state != StateNegotiating {
			log.Warn().Str("module", "viewer").Str("state", v.state.String()).Msg("unexpected answer")
			return
		}
		if e.Err != nil {
			v.fail(domain.ErrNegotiation, e.Err)
			return
		}
		s.engine.SetLocalDescription(e.SDP)
		v.send(domain.Answer{SDP: e.SDP})
		log.Info().Str("module", "viewer").Str("session", s.id).Msg("answer sent")

	case domain.LocalDescriptionSet:
		if e.Err != nil {
			v.fail(domain.ErrNegotiation, e.Err)
			return
		}
		log.Debug().Str("module", "viewer").Str("session", s.id).Msg("local description set")

	case domain.CandidateGenerated:
		v.send(e.Candidate)

	case domain.TrackReceived:
		if v.presenter != nil {
			v.presenter.Present(e.Track)
		}

	case domain.ConnectionStateChanged:
		v.handleConnectionState(e.State)

	default:
		log.Warn().Str("module", "viewer").Msgf("unhandled engine event %T", ev)
	}
}

func (v *Viewer) handleConnectionState(state domain.ConnectionState) {
	switch state {
	case domain.ConnectionStateConnected:
		v.state = StateConnected
		log.Info().Str("module", "viewer").Str("session", v.session.id).Msg("media connected")

	case domain.ConnectionStateFailed, domain.ConnectionStateClosed:
		v.fail(domain.ErrConnectivityLost, errors.Errorf("connection %s", state))

	case domain.ConnectionStateDisconnected:
		if v.state == StateConnected {
			v.fail(domain.ErrConnectivityLost, errors.Errorf("connection %s", state))
			return
		}
		log.Debug().Str("module", "viewer").Str("state", v.state.String()).Msg("disconnected before connecting")

	default:
		log.Debug().Str("module", "viewer").Str("connection", state.String()).Msg("connection state")
	}
}

// fail logs a NegotiationError or ConnectivityLost and returns to Idle.
func (v *Viewer) fail(kind, cause error) {
	log.Warn().
		Err(errors.Wrap(kind, cause.Error())).
		Str("module", "viewer").
		Str("session", v.session.id).
		Str("state", v.state.String()).
		Msg("tearing down session")
	v.teardown()
}

// teardown drops the session and buffered candidates. The engine is closed
// off the lock since closing waits for its in-flight callbacks.
func (v *Viewer) teardown() {
	s := v.session
	v.session = nil
	v.pending = nil
	v.state = StateIdle
	if s != nil {
		go s.engine.Close()
	}
}

func (v *Viewer) send(msg domain.ControlMessage) {
	if v.signal == nil {
		log.Warn().Str("module", "viewer").Str("type", string(msg.Type())).Msg("no signaler, dropping message")
		return
	}
	if err := v.signal.Send(msg); err != nil {
		log.Debug().Err(err).Str("module", "viewer").Str("type", string(msg.Type())).Msg("send failed")
	}
}

// Shutdown closes the active session and the control channel. After it
// returns every entry point is a no-op. It is idempotent.
func (v *Viewer) Shutdown() {
	v.mu.Lock()
	if v.state == StateClosed {
		v.mu.Unlock()
		return
	}
	v.state = StateClosed
	s := v.session
	v.session = nil
	v.pending = nil
	sig := v.signal
	v.mu.Unlock()

	log.Info().Str("module", "viewer").Msg("shutting down")
	if s != nil {
		s.engine.Close()
	}
	if sig != nil {
		sig.Close()
	}
}
