package session

import (
	"github.com/pion/webrtc/v3"
	webrtcx "github.com/snapbooth/snapbooth/pkg/webrtc"
)

// PeerConn is the slice of a peer connection the state machine drives.
// Production wraps pion; tests substitute a scripted double.
type PeerConn interface {
	CreateOffer() (webrtc.SessionDescription, error)
	CreateAnswer() (webrtc.SessionDescription, error)
	SetLocalDescription(webrtc.SessionDescription) error
	SetRemoteDescription(webrtc.SessionDescription) error
	RemoteDescription() *webrtc.SessionDescription
	SignalingState() webrtc.SignalingState
	AddICECandidate(webrtc.ICECandidateInit) error
	OnICECandidate(func(*webrtc.ICECandidate))
	OnConnectionStateChange(func(webrtc.PeerConnectionState))
	OnTrack(func(*webrtc.TrackRemote, *webrtc.RTPReceiver))
	Close() error
}

// PeerFactory builds a fresh peer connection per negotiation attempt.
type PeerFactory func() (PeerConn, error)

type pionPeer struct {
	pc *webrtc.PeerConnection
}

// PionPeers adapts the api factory into a PeerFactory with the booth's
// media intent: send local camera, receive the remote one.
func PionPeers(factory *webrtcx.ApiFactory) PeerFactory {
	return func() (PeerConn, error) {
		pc, err := factory.NewPeer()
		if err != nil {
			return nil, err
		}
		for _, kind := range []webrtc.RTPCodecType{webrtc.RTPCodecTypeVideo, webrtc.RTPCodecTypeAudio} {
			if _, err := pc.AddTransceiverFromKind(kind); err != nil {
				_ = pc.Close()
				return nil, err
			}
		}
		return &pionPeer{pc: pc}, nil
	}
}

func (p *pionPeer) CreateOffer() (webrtc.SessionDescription, error) {
	return p.pc.CreateOffer(nil)
}

func (p *pionPeer) CreateAnswer() (webrtc.SessionDescription, error) {
	return p.pc.CreateAnswer(nil)
}

func (p *pionPeer) SetLocalDescription(sd webrtc.SessionDescription) error {
	return p.pc.SetLocalDescription(sd)
}

func (p *pionPeer) SetRemoteDescription(sd webrtc.SessionDescription) error {
	return p.pc.SetRemoteDescription(sd)
}

func (p *pionPeer) RemoteDescription() *webrtc.SessionDescription {
	return p.pc.RemoteDescription()
}

func (p *pionPeer) SignalingState() webrtc.SignalingState { return p.pc.SignalingState() }

func (p *pionPeer) AddICECandidate(c webrtc.ICECandidateInit) error {
	return p.pc.AddICECandidate(c)
}

func (p *pionPeer) OnICECandidate(fn func(*webrtc.ICECandidate)) { p.pc.OnICECandidate(fn) }

func (p *pionPeer) OnConnectionStateChange(fn func(webrtc.PeerConnectionState)) {
	p.pc.OnConnectionStateChange(fn)
}

func (p *pionPeer) OnTrack(fn func(*webrtc.TrackRemote, *webrtc.RTPReceiver)) { p.pc.OnTrack(fn) }

func (p *pionPeer) Close() error { return p.pc.Close() }
