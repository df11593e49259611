package render

import (
	"io"
	"strings"
	"sync"

	"tvcast/receiver/internal/domain"

	pion "github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

var startCode = []byte{0x00, 0x00, 0x00, 0x01}

// Sink writes received H264 video as an Annex-B byte stream. Audio and
// other codecs are read and discarded so the engine's buffers keep moving.
type Sink struct {
	mu sync.Mutex
	w  io.Writer
	wg sync.WaitGroup
}

// NewSink creates a Sink writing to w.
func NewSink(w io.Writer) *Sink {
	return &Sink{w: w}
}

// Present implements domain.Presenter. Each track is read on its own
// goroutine until the track ends.
func (s *Sink) Present(track domain.Track) {
	s.wg.Add(1)
	if track.Kind() == "video" && strings.EqualFold(track.MimeType(), pion.MimeTypeH264) {
		go s.readVideo(track)
		return
	}

	log.Info().Str("module", "render").Str("kind", track.Kind()).Str("codec", track.MimeType()).Msg("draining track")
	go s.drain(track)
}

// Wait blocks until every presented track has ended.
func (s *Sink) Wait() {
	s.wg.Wait()
}

func (s *Sink) readVideo(track domain.Track) {
	defer s.wg.Done()
	log.Info().Str("module", "render").Str("track", track.ID()).Msg("reading H264 video track")

	depack := NewH264Depacketizer()
	for {
		pkt, err := track.ReadRTP()
		if err != nil {
			log.Info().Err(err).Str("module", "render").Str("track", track.ID()).Msg("video track ended")
			return
		}

		for _, nalu := range depack.Depacketize(pkt.SequenceNumber, pkt.Payload) {
			if len(nalu) == 0 {
				continue
			}
			if err := s.write(nalu); err != nil {
				log.Error().Err(err).Str("module", "render").Msg("write video")
				s.drainRest(track)
				return
			}
		}
	}
}

func (s *Sink) write(nalu []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.w.Write(startCode); err != nil {
		return err
	}
	_, err := s.w.Write(nalu)
	return err
}

func (s *Sink) drain(track domain.Track) {
	defer s.wg.Done()
	s.drainRest(track)
}

func (s *Sink) drainRest(track domain.Track) {
	for {
		if _, err := track.ReadRTP(); err != nil {
			return
		}
	}
}
