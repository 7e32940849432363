package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	pwebrtc "github.com/pion/webrtc/v3"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"ptz-bridge/internal/camera"
	"ptz-bridge/internal/protocol"
	"ptz-bridge/internal/ptz"
	"ptz-bridge/internal/webrtc"
)

// Client represents a connected WebSocket client
type Client struct {
	id      string
	conn    *websocket.Conn
	server  *Server
	log     *zap.Logger
	webrtc  *webrtc.Session
	send    chan []byte
	rtpChan chan []byte // Per-client RTP channel
	stopRTP chan struct{}

	// limiter throttles continuous-move commands
	limiter *rate.Limiter

	// ctx is canceled when the client goes away, aborting camera requests
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	camera string
	closed bool
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade error", zap.Error(err))
		return
	}

	id := uuid.NewString()
	ctx, cancel := context.WithCancel(context.Background())
	client := &Client{
		id:      id,
		conn:    conn,
		server:  s,
		log:     s.log.With(zap.String("client", id)),
		send:    make(chan []byte, 256),
		rtpChan: make(chan []byte, 500),
		stopRTP: make(chan struct{}),
		limiter: rate.NewLimiter(rate.Limit(s.cfg.CommandRate), 1),
		ctx:     ctx,
		cancel:  cancel,
	}
	if cam := s.cameras.Default(); cam != nil {
		client.camera = cam.Name()
	}

	s.clientsMu.Lock()
	s.clients[client] = true
	s.clientsMu.Unlock()

	client.log.Info("client connected", zap.String("remote", r.RemoteAddr))

	// Start client goroutines
	go client.writePump()
	go client.readPump()

	// Send initial status
	client.sendStatus()

	if s.hasVideo() {
		if err := client.initWebRTC(); err != nil {
			client.log.Warn("failed to initialize WebRTC", zap.Error(err))
		}
	}
}

func (c *Client) cameraName() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.camera
}

func (c *Client) initWebRTC() error {
	cfg := webrtc.Config{
		ICEServers: c.server.cfg.ICEServers,
		PublicIPs:  c.server.cfg.ICEIPs,
	}
	session, err := webrtc.NewSession(cfg, func(candidate *pwebrtc.ICECandidate) {
		cand := candidate.ToJSON()
		payload := protocol.ICECandidatePayload{Candidate: cand.Candidate}
		if cand.SDPMid != nil {
			payload.SDPMid = *cand.SDPMid
		}
		if cand.SDPMLineIndex != nil {
			payload.SDPMLineIndex = *cand.SDPMLineIndex
		}
		c.sendMessage(protocol.TypeICECandidate, payload)
	}, c.log.Named("webrtc"))
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return session.Close()
	}
	c.webrtc = session
	c.mu.Unlock()

	if err := session.AddH264Track(); err != nil {
		return err
	}

	offer, err := session.CreateOffer()
	if err != nil {
		return err
	}
	c.sendMessage(protocol.TypeOffer, protocol.SDPPayload{SDP: offer})

	go c.forwardRTP(session)
	return nil
}

func (c *Client) forwardRTP(session *webrtc.Session) {
	for {
		select {
		case <-c.stopRTP:
			return
		case packet := <-c.rtpChan:
			if err := session.WriteRTP(packet); err != nil {
				c.log.Debug("RTP write failed", zap.Error(err))
				return
			}
		}
	}
}

func (c *Client) session() *webrtc.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.webrtc
}

func (c *Client) sendStatus() {
	c.sendMessage(protocol.TypeStatus, protocol.StatusPayload{
		ClientID:      c.id,
		Cameras:       c.server.cameras.List(),
		Selected:      c.cameraName(),
		VideoProtocol: "rtsp",
	})
}

func (c *Client) sendMessage(msgType string, payload any) {
	msg, err := protocol.NewMessage(msgType, payload)
	if err != nil {
		c.log.Error("failed to create message", zap.Error(err))
		return
	}

	data, err := json.Marshal(msg)
	if err != nil {
		c.log.Error("failed to marshal message", zap.Error(err))
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- data:
	default:
		c.log.Warn("client send buffer full, dropping message", zap.String("type", msgType))
	}
}

// sendError reports err to the client with a code for its class
func (c *Client) sendError(err error) {
	code, _ := classify(err)
	c.sendMessage(protocol.TypeError, protocol.ErrorPayload{Code: code, Message: err.Error()})
}

func (c *Client) readPump() {
	defer func() {
		c.server.clientsMu.Lock()
		delete(c.server.clients, c)
		c.server.clientsMu.Unlock()
		c.Close()
		c.log.Info("client disconnected")
	}()

	c.conn.SetReadLimit(65536)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Warn("websocket error", zap.Error(err))
			}
			return
		}

		c.handleMessage(data)
	}
}

func (c *Client) handleMessage(data []byte) {
	var msg protocol.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		c.sendMessage(protocol.TypeError, protocol.ErrorPayload{
			Code:    protocol.ErrInvalidMessage,
			Message: "Failed to parse message",
		})
		return
	}

	switch msg.Type {
	case protocol.TypePing:
		var payload protocol.PingPayload
		if err := msg.ParsePayload(&payload); err != nil {
			return
		}
		c.sendMessage(protocol.TypePong, protocol.PongPayload{
			ClientTimestamp: payload.Timestamp,
			ServerTimestamp: time.Now().UnixMilli(),
		})

	case protocol.TypeAnswer:
		var payload protocol.SDPPayload
		if err := msg.ParsePayload(&payload); err != nil {
			return
		}
		if session := c.session(); session != nil {
			if err := session.SetAnswer(payload.SDP); err != nil {
				c.log.Warn("failed to set answer", zap.Error(err))
			}
		}

	case protocol.TypeICECandidate:
		var payload protocol.ICECandidatePayload
		if err := msg.ParsePayload(&payload); err != nil {
			return
		}
		if session := c.session(); session != nil {
			if err := session.AddICECandidate(payload.Candidate, payload.SDPMid, payload.SDPMLineIndex); err != nil {
				c.log.Warn("failed to add ICE candidate", zap.Error(err))
			}
		}

	case protocol.TypeSelectCamera:
		var payload protocol.SelectCameraPayload
		if !c.parse(msg, &payload) {
			return
		}
		if _, err := c.server.cameras.Get(payload.Camera); err != nil {
			c.sendError(err)
			return
		}
		c.mu.Lock()
		c.camera = payload.Camera
		c.mu.Unlock()
		c.sendStatus()

	case protocol.TypePTZCommand:
		var payload protocol.PTZCommandPayload
		if !c.parse(msg, &payload) {
			return
		}
		c.handlePTZCommand(payload)

	case protocol.TypePTZStop:
		c.withCamera(func(cam *camera.Camera) error {
			_, err := cam.Stop(c.ctx)
			return err
		})

	case protocol.TypePTZMove:
		var payload protocol.PTZMovePayload
		if !c.parse(msg, &payload) {
			return
		}
		c.withCamera(func(cam *camera.Camera) error {
			reply, err := move(c.ctx, cam, payload)
			if err != nil {
				return err
			}
			c.sendResult(cam, payload.Mode+"_move", reply)
			return nil
		})

	case protocol.TypePTZPreset:
		var payload protocol.PTZPresetPayload
		if !c.parse(msg, &payload) {
			return
		}
		c.withCamera(func(cam *camera.Camera) error {
			reply, err := preset(c.ctx, cam, payload)
			if err != nil {
				return err
			}
			c.sendResult(cam, "preset_"+payload.Action, reply)
			return nil
		})

	case protocol.TypePTZPresets:
		c.withCamera(func(cam *camera.Camera) error {
			presets, err := cam.Presets(c.ctx)
			if err != nil {
				return err
			}
			c.sendMessage(protocol.TypePTZPresets, protocol.PTZPresetsPayload{Camera: cam.Name(), Presets: presets})
			return nil
		})

	case protocol.TypePTZPosition:
		c.withCamera(func(cam *camera.Camera) error {
			st, err := cam.Status(c.ctx)
			if err != nil {
				return err
			}
			c.sendMessage(protocol.TypePTZPosition, protocol.PTZPositionPayload{Camera: cam.Name(), Status: st})
			return nil
		})

	default:
		c.log.Debug("unknown message type", zap.String("type", msg.Type))
	}
}

// parse decodes the payload of msg, reporting failures to the client
func (c *Client) parse(msg protocol.Message, v any) bool {
	if err := msg.ParsePayload(v); err != nil {
		c.sendMessage(protocol.TypeError, protocol.ErrorPayload{
			Code:    protocol.ErrInvalidMessage,
			Message: "Invalid " + msg.Type + " payload",
		})
		return false
	}
	return true
}

// withCamera runs fn against the selected camera and reports its error
func (c *Client) withCamera(fn func(cam *camera.Camera) error) {
	cam, err := c.server.cameras.Get(c.cameraName())
	if err == nil {
		err = fn(cam)
	}
	if err != nil {
		if c.ctx.Err() != nil {
			return
		}
		c.log.Warn("camera command failed", zap.Error(err))
		c.sendError(err)
	}
}

func (c *Client) sendResult(cam *camera.Camera, action string, reply *ptz.Reply) {
	c.sendMessage(protocol.TypePTZResult, protocol.PTZResultPayload{
		Camera:  cam.Name(),
		Action:  action,
		Applied: reply != nil,
		Reply:   reply,
	})
}

// handlePTZCommand starts continuous motion. A zero velocity stops and is
// never throttled; other commands beyond the client's rate are dropped.
func (c *Client) handlePTZCommand(cmd protocol.PTZCommandPayload) {
	c.withCamera(func(cam *camera.Camera) error {
		if cmd.Pan == 0 && cmd.Tilt == 0 && cmd.Zoom == 0 {
			_, err := cam.Stop(c.ctx)
			return err
		}
		if !c.limiter.Allow() {
			c.log.Debug("ptz command throttled")
			return nil
		}
		_, err := cam.ContinuousMove(c.ctx, ptz.Velocity{Pan: cmd.Pan, Tilt: cmd.Tilt, Zoom: cmd.Zoom})
		return err
	})
}

// move dispatches a positioning command on its mode
func move(ctx context.Context, cam ptz.Controller, p protocol.PTZMovePayload) (*ptz.Reply, error) {
	switch p.Mode {
	case protocol.MoveAbsolute:
		return cam.AbsoluteMove(ctx, p.Position())
	case protocol.MoveRelative:
		return cam.RelativeMove(ctx, p.Delta())
	case protocol.MoveContinuous:
		pos := p.Position()
		return cam.ContinuousMove(ctx, ptz.Velocity{Pan: pos.Pan, Tilt: pos.Tilt, Zoom: pos.Zoom})
	}
	return nil, errors.Wrapf(ptz.ErrInvalidArgument, "move mode %q", p.Mode)
}

// preset dispatches a named preset action
func preset(ctx context.Context, cam ptz.Controller, p protocol.PTZPresetPayload) (*ptz.Reply, error) {
	if p.Name == "" {
		return nil, errors.Wrap(ptz.ErrInvalidArgument, "preset name is required")
	}
	switch p.Action {
	case protocol.PresetGo:
		return cam.GoToPreset(ctx, p.Name)
	case protocol.PresetSave:
		return cam.SetPreset(ctx, p.Name)
	case protocol.PresetRemove:
		return cam.RemovePreset(ctx, p.Name)
	}
	return nil, errors.Wrapf(ptz.ErrInvalidArgument, "preset action %q", p.Action)
}

func (c *Client) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Close closes the client connection
func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	session := c.webrtc
	c.webrtc = nil

	// Stop RTP forwarding and in-flight camera requests
	close(c.stopRTP)
	c.cancel()
	close(c.send)
	c.mu.Unlock()

	if session != nil {
		session.Close()
	}
}
