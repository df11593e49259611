package webrtc

import (
	"net"
	"sync/atomic"

	"tvcast/receiver/internal/domain"

	"github.com/pion/interceptor"
	"github.com/pion/interceptor/pkg/nack"
	"github.com/pion/logging"
	"github.com/pion/rtp"
	pion "github.com/pion/webrtc/v4"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Config configures the engine Factory.
type Config struct {
	ICEServers []domain.ICEServer

	// LoggerFactory receives pion's internal logs. Nil keeps pion's default.
	LoggerFactory logging.LoggerFactory
}

// Factory builds one Peer per negotiation session from a shared pion API.
type Factory struct {
	api    *pion.API
	config pion.Configuration
}

// NewFactory registers the default codecs (which already advertise NACK
// feedback for video) plus the NACK interceptors, and prepares the
// PeerConnection configuration.
func NewFactory(cfg Config) (*Factory, error) {
	m := &pion.MediaEngine{}
	if err := m.RegisterDefaultCodecs(); err != nil {
		return nil, errors.Wrap(err, "register codecs")
	}

	i := &interceptor.Registry{}
	generator, err := nack.NewGeneratorInterceptor()
	if err != nil {
		return nil, errors.Wrap(err, "create nack generator")
	}
	i.Add(generator)
	responder, err := nack.NewResponderInterceptor()
	if err != nil {
		return nil, errors.Wrap(err, "create nack responder")
	}
	i.Add(responder)

	se := pion.SettingEngine{}
	if cfg.LoggerFactory != nil {
		se.LoggerFactory = cfg.LoggerFactory
	}

	var servers []pion.ICEServer
	for _, s := range cfg.ICEServers {
		servers = append(servers, pion.ICEServer{
			URLs:       []string{s.URL},
			Username:   s.Username,
			Credential: s.Credential,
		})
	}

	return &Factory{
		api: pion.NewAPI(
			pion.WithMediaEngine(m),
			pion.WithInterceptorRegistry(i),
			pion.WithSettingEngine(se),
		),
		config: pion.Configuration{
			ICEServers:   servers,
			BundlePolicy: pion.BundlePolicyMaxBundle,
		},
	}, nil
}

// NewEngine implements domain.EngineFactory.
func (f *Factory) NewEngine(gen uint64, events domain.EngineEvents) (domain.Engine, error) {
	pc, err := f.api.NewPeerConnection(f.config)
	if err != nil {
		return nil, errors.Wrap(err, "create peer connection")
	}

	p := &Peer{
		pc:     pc,
		gen:    gen,
		events: events,
		ops:    newOpQueue(),
	}

	pc.OnICECandidate(p.onICECandidate)
	pc.OnTrack(p.onTrack)
	pc.OnICEConnectionStateChange(func(state pion.ICEConnectionState) {
		log.Debug().Str("module", "webrtc").Uint64("gen", gen).Str("ice_state", state.String()).Msg("ICE state")
	})
	pc.OnConnectionStateChange(func(state pion.PeerConnectionState) {
		log.Info().Str("module", "webrtc").Uint64("gen", gen).Str("peer_connection_state", state.String()).Msg("peer state")
		p.emit(domain.ConnectionStateChanged{Gen: gen, State: connectionState(state)})
	})

	return p, nil
}

// Peer adapts a pion PeerConnection to domain.Engine. Commands run in
// order on one goroutine and report back through events.
type Peer struct {
	pc     *pion.PeerConnection
	gen    uint64
	events domain.EngineEvents
	ops    *opQueue
	closed atomic.Bool
}

// SetRemoteDescription applies the remote offer.
func (p *Peer) SetRemoteDescription(sdp string) {
	p.ops.push(func() {
		err := p.pc.SetRemoteDescription(pion.SessionDescription{Type: pion.SDPTypeOffer, SDP: sdp})
		if err != nil {
			err = errors.Wrap(err, "set remote description")
		} else {
			log.Debug().Str("module", "webrtc").Uint64("gen", p.gen).Msg("remote SDP offer set")
		}
		p.emit(domain.RemoteDescriptionSet{Gen: p.gen, Err: err})
	})
}

// CreateAnswer creates an answer for the current remote offer.
func (p *Peer) CreateAnswer() {
	p.ops.push(func() {
		answer, err := p.pc.CreateAnswer(nil)
		if err != nil {
			p.emit(domain.AnswerCreated{Gen: p.gen, Err: errors.Wrap(err, "create answer")})
			return
		}
		p.emit(domain.AnswerCreated{Gen: p.gen, SDP: answer.SDP})
	})
}

// SetLocalDescription applies the local answer and starts ICE gathering.
func (p *Peer) SetLocalDescription(sdp string) {
	p.ops.push(func() {
		err := p.pc.SetLocalDescription(pion.SessionDescription{Type: pion.SDPTypeAnswer, SDP: sdp})
		if err != nil {
			err = errors.Wrap(err, "set local description")
		} else {
			log.Debug().Str("module", "webrtc").Uint64("gen", p.gen).Msg("local SDP answer set")
		}
		p.emit(domain.LocalDescriptionSet{Gen: p.gen, Err: err})
	})
}

// AddCandidate adds a remote ICE candidate. Failures are only logged.
func (p *Peer) AddCandidate(c domain.Candidate) {
	p.ops.push(func() {
		sdpMid := c.SDPMid
		sdpMLineIndex := uint16(c.SDPMLineIndex)
		init := pion.ICECandidateInit{
			Candidate:     c.Candidate,
			SDPMid:        &sdpMid,
			SDPMLineIndex: &sdpMLineIndex,
		}
		if err := p.pc.AddICECandidate(init); err != nil {
			log.Warn().Err(err).Str("module", "webrtc").Uint64("gen", p.gen).Msg("add ice candidate")
			return
		}
		log.Debug().Str("module", "webrtc").Uint64("gen", p.gen).Msg("added remote ICE candidate")
	})
}

// Close stops event delivery, drops queued commands and closes the
// PeerConnection. It is idempotent.
func (p *Peer) Close() {
	if !p.closed.CompareAndSwap(false, true) {
		return
	}
	p.ops.stop()
	if err := p.pc.Close(); err != nil {
		log.Error().Err(err).Str("module", "webrtc").Uint64("gen", p.gen).Msg("close error")
		return
	}
	log.Info().Str("module", "webrtc").Uint64("gen", p.gen).Msg("closed")
}

func (p *Peer) emit(ev domain.EngineEvent) {
	if p.closed.Load() {
		return
	}
	p.events.OnEngineEvent(ev)
}

func (p *Peer) onICECandidate(c *pion.ICECandidate) {
	if c == nil {
		log.Debug().Str("module", "webrtc").Uint64("gen", p.gen).Msg("ICE gathering complete")
		return
	}

	if isLoopback(c) {
		log.Debug().Str("module", "webrtc").Str("address", c.Address).Msg("filtering loopback ICE candidate")
		return
	}

	init := c.ToJSON()

	cand := domain.Candidate{Candidate: init.Candidate}
	if init.SDPMid != nil {
		cand.SDPMid = *init.SDPMid
	}
	if init.SDPMLineIndex != nil {
		cand.SDPMLineIndex = int(*init.SDPMLineIndex)
	}
	p.emit(domain.CandidateGenerated{Gen: p.gen, Candidate: cand})
}

func (p *Peer) onTrack(track *pion.TrackRemote, _ *pion.RTPReceiver) {
	codec := track.Codec()
	log.Info().
		Str("module", "webrtc").
		Uint64("gen", p.gen).
		Str("kind", track.Kind().String()).
		Str("codec", codec.MimeType).
		Uint8("pt", uint8(codec.PayloadType)).
		Msg("got track")
	p.emit(domain.TrackReceived{Gen: p.gen, Track: remoteTrack{track}})
}

// remoteTrack exposes a pion TrackRemote as a domain.Track.
type remoteTrack struct {
	t *pion.TrackRemote
}

func (r remoteTrack) ID() string       { return r.t.ID() }
func (r remoteTrack) Kind() string     { return r.t.Kind().String() }
func (r remoteTrack) MimeType() string { return r.t.Codec().MimeType }

func (r remoteTrack) ReadRTP() (*rtp.Packet, error) {
	pkt, _, err := r.t.ReadRTP()
	return pkt, err
}

func connectionState(s pion.PeerConnectionState) domain.ConnectionState {
	switch s {
	case pion.PeerConnectionStateConnecting:
		return domain.ConnectionStateConnecting
	case pion.PeerConnectionStateConnected:
		return domain.ConnectionStateConnected
	case pion.PeerConnectionStateDisconnected:
		return domain.ConnectionStateDisconnected
	case pion.PeerConnectionStateFailed:
		return domain.ConnectionStateFailed
	case pion.PeerConnectionStateClosed:
		return domain.ConnectionStateClosed
	default:
		return domain.ConnectionStateNew
	}
}

// isLoopback checks the candidate's own address only; a related address
// of a srflx or relay candidate does not count.
func isLoopback(c *pion.ICECandidate) bool {
	ip := net.ParseIP(c.Address)
	return ip != nil && ip.IsLoopback()
}
