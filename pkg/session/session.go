// Package session drives one peer connection per room through
// offer/answer/candidate negotiation over a polled signaling transport,
// with bounded automatic retry on connection failure.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gofrs/uuid"
	"github.com/pion/webrtc/v3"
	"github.com/snapbooth/snapbooth/pkg/api"
	"github.com/snapbooth/snapbooth/pkg/config"
	"github.com/snapbooth/snapbooth/pkg/logger"
)

type State int

const (
	StateIdle State = iota
	StateJoining
	StateNegotiating
	StateConnected
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateJoining:
		return "joining"
	case StateNegotiating:
		return "negotiating"
	case StateConnected:
		return "connected"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

var (
	ErrBusy             = errors.New("session already in a room")
	ErrRetriesExhausted = errors.New("connection failed after retries")
)

type Session struct {
	conf      config.Session
	log       *logger.Logger
	transport Transport
	peers     PeerFactory

	id string

	mu        sync.Mutex
	state     State
	room      string
	initiator bool
	pc        PeerConn
	retries   int
	poll      *poller
	epoch     uint64

	// OnRemoteTrack fires when the remote media stream arrives.
	OnRemoteTrack func(*webrtc.TrackRemote)
	// OnStateChange observes every state transition.
	OnStateChange func(State)
	// OnError surfaces the terminal failure after retries are exhausted.
	OnError func(error)
}

func New(conf config.Session, transport Transport, peers PeerFactory, log *logger.Logger) *Session {
	id := uuid.Must(uuid.NewV4()).String()
	return &Session{
		conf:      conf,
		log:       log.Extend(log.With().Str("m", "session").Str("peer", id[:8])),
		transport: transport,
		peers:     peers,
		id:        id,
		state:     StateIdle,
	}
}

func (s *Session) Id() string { return s.id }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Join enters the room and starts negotiation. The first participant of a
// room becomes the initiator and sends the opening offer; everyone else
// waits for one. Message polling runs until Leave.
func (s *Session) Join(ctx context.Context, room string) error {
	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return ErrBusy
	}
	s.setStateLocked(StateJoining)
	s.mu.Unlock()

	reply, err := s.transport.Join(ctx, room, s.id)
	if err != nil {
		s.mu.Lock()
		s.setStateLocked(StateIdle)
		s.mu.Unlock()
		return err
	}

	s.mu.Lock()
	s.room = room
	s.initiator = reply.First || len(reply.Others) == 0
	s.retries = 0
	s.setStateLocked(StateNegotiating)
	initiator := s.initiator
	epoch := s.epoch
	s.mu.Unlock()
	s.log.Info().Str("room", room).Bool("initiator", initiator).Msg("joined")

	if err := s.negotiate(ctx, epoch); err != nil {
		_ = s.Leave(ctx)
		return err
	}

	poll := newPoller(s.conf.PollInterval)
	s.mu.Lock()
	// a Leave racing negotiation already tore the session down, a poller
	// started now would tick forever with nothing to stop it
	if s.epoch != epoch || s.state == StateIdle {
		s.mu.Unlock()
		return nil
	}
	s.poll = poll
	s.mu.Unlock()
	poll.run(func() { s.pollOnce(epoch) })
	return nil
}

// Leave tears the session down unconditionally: polling stops at once, the
// peer connection closes, and the room is notified best-effort. Responses
// of requests still in flight are discarded by the epoch guard.
func (s *Session) Leave(ctx context.Context) error {
	s.mu.Lock()
	if s.state == StateIdle {
		s.mu.Unlock()
		return nil
	}
	room := s.room
	s.room = ""
	s.epoch++
	s.retries = 0
	if s.poll != nil {
		s.poll.stop()
		s.poll = nil
	}
	pc := s.pc
	s.pc = nil
	s.setStateLocked(StateIdle)
	s.mu.Unlock()

	if pc != nil {
		_ = pc.Close()
	}
	if room != "" {
		if err := s.transport.Leave(ctx, room, s.id); err != nil {
			s.log.Debug().Err(err).Msg("leave notify failed")
		}
	}
	return nil
}

func (s *Session) negotiate(ctx context.Context, epoch uint64) error {
	pc, err := s.peers()
	if err != nil {
		return err
	}

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		room, ok := s.current(epoch)
		if !ok {
			return
		}
		init := c.ToJSON()
		candidate := api.Candidate{Candidate: init.Candidate, SDPMid: init.SDPMid, SDPMLineIndex: init.SDPMLineIndex}
		if err := s.transport.SendCandidate(context.Background(), room, s.id, candidate); err != nil {
			s.log.Debug().Err(err).Msg("candidate send failed")
		}
	})
	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		switch state {
		case webrtc.PeerConnectionStateConnected:
			s.connected(epoch)
		case webrtc.PeerConnectionStateFailed:
			s.failed(epoch)
		}
	})
	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		if s.OnRemoteTrack != nil {
			s.OnRemoteTrack(track)
		}
	})

	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		return pc.Close()
	}
	s.pc = pc
	initiator := s.initiator
	room := s.room
	s.mu.Unlock()

	if !initiator {
		return nil
	}
	offer, err := pc.CreateOffer()
	if err != nil {
		return err
	}
	if err := pc.SetLocalDescription(offer); err != nil {
		return err
	}
	return s.transport.SendOffer(ctx, room, s.id, api.SessionDescription{Type: offer.Type.String(), SDP: offer.SDP})
}

func (s *Session) pollOnce(epoch uint64) {
	room, ok := s.current(epoch)
	if !ok {
		return
	}
	messages, err := s.transport.Messages(context.Background(), room, s.id)
	if err != nil {
		s.log.Debug().Err(err).Msg("poll failed")
		return
	}
	// left or re-negotiated while the request was in flight
	if _, ok := s.current(epoch); !ok {
		return
	}
	for _, m := range messages {
		s.handle(room, m)
	}
}

func (s *Session) handle(room string, m api.Message) {
	s.mu.Lock()
	pc := s.pc
	s.mu.Unlock()
	if pc == nil {
		return
	}

	switch m.T {
	case api.Offer:
		sd := api.Unwrap[api.SessionDescription](m.Data)
		if sd == nil {
			s.log.Debug().Str("from", m.From).Msg("broken offer dropped")
			return
		}
		s.acceptOffer(room, pc, *sd)
	case api.Answer:
		sd := api.Unwrap[api.SessionDescription](m.Data)
		if sd == nil {
			s.log.Debug().Str("from", m.From).Msg("broken answer dropped")
			return
		}
		// a stray or duplicate answer has no matching local offer
		if pc.SignalingState() != webrtc.SignalingStateHaveLocalOffer {
			s.log.Debug().Str("from", m.From).Msg("stray answer dropped")
			return
		}
		if err := pc.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: sd.SDP}); err != nil {
			s.log.Error().Err(err).Msg("answer apply failed")
		}
	case api.IceCandidate:
		c := api.Unwrap[api.Candidate](m.Data)
		if c == nil {
			s.log.Debug().Str("from", m.From).Msg("broken candidate dropped")
			return
		}
		// candidates outrunning the remote description are dropped; the
		// sender keeps trickling more as ICE progresses
		if pc.RemoteDescription() == nil {
			s.log.Debug().Str("from", m.From).Msg("early candidate dropped")
			return
		}
		init := webrtc.ICECandidateInit{Candidate: c.Candidate, SDPMid: c.SDPMid, SDPMLineIndex: c.SDPMLineIndex}
		if err := pc.AddICECandidate(init); err != nil {
			s.log.Debug().Err(err).Msg("candidate apply failed")
		}
	default:
		s.log.Debug().Str("type", string(m.T)).Msg("unexpected message dropped")
	}
}

func (s *Session) acceptOffer(room string, pc PeerConn, sd api.SessionDescription) {
	if err := pc.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: sd.SDP}); err != nil {
		s.log.Error().Err(err).Msg("offer apply failed")
		return
	}
	answer, err := pc.CreateAnswer()
	if err != nil {
		s.log.Error().Err(err).Msg("answer create failed")
		return
	}
	if err := pc.SetLocalDescription(answer); err != nil {
		s.log.Error().Err(err).Msg("answer local apply failed")
		return
	}
	reply := api.SessionDescription{Type: answer.Type.String(), SDP: answer.SDP}
	if err := s.transport.SendAnswer(context.Background(), room, s.id, reply); err != nil {
		s.log.Error().Err(err).Msg("answer send failed")
	}
}

func (s *Session) connected(epoch uint64) {
	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		return
	}
	s.retries = 0
	s.setStateLocked(StateConnected)
	s.mu.Unlock()
	s.log.Info().Msg("peer connected")
}

func (s *Session) failed(epoch uint64) {
	s.mu.Lock()
	if s.epoch != epoch || s.state == StateIdle {
		s.mu.Unlock()
		return
	}
	s.setStateLocked(StateFailed)
	exhausted := s.retries >= s.conf.MaxRetries
	if !exhausted {
		s.retries++
	}
	attempt := s.retries
	s.mu.Unlock()

	if exhausted {
		s.log.Error().Msg("negotiation failed, retries exhausted")
		if s.OnError != nil {
			s.OnError(ErrRetriesExhausted)
		}
		return
	}
	s.log.Warn().Int("attempt", attempt).Msg("negotiation failed, retrying")
	time.AfterFunc(s.conf.RetryBackoff, func() { s.retry(epoch) })
}

func (s *Session) retry(epoch uint64) {
	s.mu.Lock()
	if s.epoch != epoch || s.state != StateFailed {
		s.mu.Unlock()
		return
	}
	pc := s.pc
	s.pc = nil
	s.setStateLocked(StateNegotiating)
	s.mu.Unlock()

	if pc != nil {
		_ = pc.Close()
	}
	if err := s.negotiate(context.Background(), epoch); err != nil {
		s.log.Error().Err(err).Msg("renegotiation failed")
		s.failed(epoch)
	}
}

// current returns the room when the session still lives in the given
// epoch, guarding callbacks of a past life.
func (s *Session) current(epoch uint64) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch || s.room == "" {
		return "", false
	}
	return s.room, true
}

func (s *Session) setStateLocked(state State) {
	if s.state == state {
		return
	}
	s.state = state
	if s.OnStateChange != nil {
		cb := s.OnStateChange
		go cb(state)
	}
}
