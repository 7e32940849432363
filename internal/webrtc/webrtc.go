// Package webrtc relays a camera's RTP video to a browser peer.
package webrtc

import (
	"sync"

	"github.com/pion/interceptor"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v3"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Session represents a WebRTC session with a client
type Session struct {
	pc         *webrtc.PeerConnection
	videoTrack *webrtc.TrackLocalStaticRTP
	onICE      func(candidate *webrtc.ICECandidate)
	log        *zap.Logger
	mu         sync.Mutex
	closed     bool
}

// Config for WebRTC session
type Config struct {
	ICEServers []string // STUN/TURN server URLs

	// PublicIPs switches to ICE-lite and advertises these host addresses
	PublicIPs []string
}

// NewSession creates a new WebRTC session
func NewSession(cfg Config, onICE func(*webrtc.ICECandidate), log *zap.Logger) (*Session, error) {
	config := webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{},
	}
	for _, url := range cfg.ICEServers {
		config.ICEServers = append(config.ICEServers, webrtc.ICEServer{
			URLs: []string{url},
		})
	}

	// Same codecs and interceptors as webrtc.NewPeerConnection
	m := &webrtc.MediaEngine{}
	if err := m.RegisterDefaultCodecs(); err != nil {
		return nil, errors.Wrap(err, "failed to register codecs")
	}
	ir := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(m, ir); err != nil {
		return nil, errors.Wrap(err, "failed to register interceptors")
	}

	opts := []func(*webrtc.API){webrtc.WithMediaEngine(m), webrtc.WithInterceptorRegistry(ir)}
	if len(cfg.PublicIPs) > 0 {
		se := webrtc.SettingEngine{}
		se.SetLite(true)
		se.SetNAT1To1IPs(cfg.PublicIPs, webrtc.ICECandidateTypeHost)
		opts = append(opts, webrtc.WithSettingEngine(se))
		// ICE-lite peers gather no server reflexive candidates
		config.ICEServers = nil
	}
	api := webrtc.NewAPI(opts...)

	pc, err := api.NewPeerConnection(config)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create peer connection")
	}

	session := &Session{
		pc:    pc,
		onICE: onICE,
		log:   log,
	}

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c != nil && session.onICE != nil {
			session.onICE(c)
		}
	})

	pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		log.Debug("connection state", zap.String("state", s.String()))
	})

	return session, nil
}

// AddH264Track adds an H264 video track to the session
func (s *Session) AddH264Track() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	videoTrack, err := webrtc.NewTrackLocalStaticRTP(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeH264},
		"video",
		"ptz-bridge",
	)
	if err != nil {
		return errors.Wrap(err, "failed to create video track")
	}

	if _, err := s.pc.AddTrack(videoTrack); err != nil {
		return errors.Wrap(err, "failed to add video track")
	}

	s.videoTrack = videoTrack
	return nil
}

// CreateOffer creates an SDP offer, waiting for ICE gathering to finish
func (s *Session) CreateOffer() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	offer, err := s.pc.CreateOffer(nil)
	if err != nil {
		return "", errors.Wrap(err, "failed to create offer")
	}

	gatherComplete := webrtc.GatheringCompletePromise(s.pc)
	if err := s.pc.SetLocalDescription(offer); err != nil {
		return "", errors.Wrap(err, "failed to set local description")
	}
	<-gatherComplete

	return s.pc.LocalDescription().SDP, nil
}

// SetAnswer sets the remote SDP answer
func (s *Session) SetAnswer(sdp string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	answer := webrtc.SessionDescription{
		Type: webrtc.SDPTypeAnswer,
		SDP:  sdp,
	}
	if err := s.pc.SetRemoteDescription(answer); err != nil {
		return errors.Wrap(err, "failed to set remote description")
	}
	return nil
}

// AddICECandidate adds a remote ICE candidate
func (s *Session) AddICECandidate(candidate string, sdpMid string, sdpMLineIndex uint16) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ice := webrtc.ICECandidateInit{
		Candidate:     candidate,
		SDPMid:        &sdpMid,
		SDPMLineIndex: &sdpMLineIndex,
	}
	if err := s.pc.AddICECandidate(ice); err != nil {
		return errors.Wrap(err, "failed to add ICE candidate")
	}
	return nil
}

// WriteRTP writes a marshaled RTP packet to the video track. The track
// rewrites SSRC and payload type, so packets from any camera can be fed in.
func (s *Session) WriteRTP(packet []byte) error {
	s.mu.Lock()
	track := s.videoTrack
	s.mu.Unlock()

	if track == nil {
		return errors.New("no video track")
	}

	var pkt rtp.Packet
	if err := pkt.Unmarshal(packet); err != nil {
		return errors.Wrap(err, "invalid RTP packet")
	}
	return track.WriteRTP(&pkt)
}

// Close closes the WebRTC session
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if s.pc != nil {
		return s.pc.Close()
	}
	return nil
}
