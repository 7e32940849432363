// Package server exposes the registered cameras to browsers over a
// websocket control channel, a REST API and WebRTC video.
package server

import (
	"context"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"ptz-bridge/internal/camera"
	"ptz-bridge/internal/rtsp"
)

// Config for the server
type Config struct {
	ListenAddr string
	ICEServers []string
	ICEIPs     []string // enables ICE-lite when set

	// CommandRate bounds continuous-move commands per second per client
	CommandRate float64
}

// Server is the main PTZ bridge server
type Server struct {
	cfg       Config
	cameras   *camera.Registry
	log       *zap.Logger
	clients   map[*Client]bool
	clientsMu sync.RWMutex
	upgrader  websocket.Upgrader
	staticFS  fs.FS

	streamsMu sync.Mutex
	streams   map[string]*rtsp.Client // by camera name

	httpSrv *http.Server
}

// New creates a new server instance. staticFS must hold the UI under web/.
func New(cfg Config, cameras *camera.Registry, staticFS fs.FS, log *zap.Logger) (*Server, error) {
	webFS, err := fs.Sub(staticFS, "web")
	if err != nil {
		return nil, errors.Wrap(err, "failed to access embedded web files")
	}
	if cfg.CommandRate <= 0 {
		cfg.CommandRate = 20
	}

	return &Server{
		cfg:      cfg,
		cameras:  cameras,
		log:      log,
		clients:  make(map[*Client]bool),
		staticFS: webFS,
		streams:  make(map[string]*rtsp.Client),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins for local use
			},
		},
	}, nil
}

// Handler returns the HTTP routes: /ws, /api and the static UI
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/ws", s.handleWebSocket)
	s.registerAPI(r.PathPrefix("/api").Subrouter())
	r.PathPrefix("/").Handler(http.FileServer(http.FS(s.staticFS)))
	return r
}

// Start connects the camera streams and serves until Stop
func (s *Server) Start() error {
	for _, cam := range s.cameras.Cameras() {
		if cam.StreamURL() == "" {
			continue
		}
		s.connectStream(cam.Name(), cam.StreamURL())
	}

	s.httpSrv = &http.Server{
		Addr:              s.cfg.ListenAddr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.log.Info("server starting", zap.String("listen", s.cfg.ListenAddr))
	return s.httpSrv.ListenAndServe()
}

// connectStream starts relaying a camera's RTSP stream. Failures are logged;
// the camera stays controllable without video.
func (s *Server) connectStream(name, url string) {
	log := s.log.Named("rtsp").With(zap.String("camera", name))

	client, err := rtsp.NewClient(url, log)
	if err != nil {
		log.Warn("failed to create RTSP client", zap.Error(err))
		return
	}
	if err := client.Connect(); err != nil {
		log.Warn("failed to connect to RTSP", zap.Error(err))
		return
	}

	s.streamsMu.Lock()
	s.streams[name] = client
	s.streamsMu.Unlock()

	go s.broadcastRTP(name, client)
}

// broadcastRTP sends a camera's packets to the clients watching it
func (s *Server) broadcastRTP(name string, stream *rtsp.Client) {
	rtpChan := stream.RTPChannel()

	for {
		select {
		case <-stream.Done():
			return
		case packet := <-rtpChan:
			s.clientsMu.RLock()
			for client := range s.clients {
				if client.cameraName() != name {
					continue
				}
				// Non-blocking send to each client's RTP channel
				select {
				case client.rtpChan <- packet:
				default:
					// Client's buffer full, drop packet for this client
				}
			}
			s.clientsMu.RUnlock()
		}
	}
}

// hasVideo reports whether any camera has a stream configured
func (s *Server) hasVideo() bool {
	for _, cam := range s.cameras.Cameras() {
		if cam.StreamURL() != "" {
			return true
		}
	}
	return false
}

// Stop closes clients and streams and shuts the HTTP server down
func (s *Server) Stop() {
	s.clientsMu.Lock()
	for client := range s.clients {
		client.Close()
	}
	s.clientsMu.Unlock()

	s.streamsMu.Lock()
	for _, stream := range s.streams {
		stream.Close()
	}
	s.streamsMu.Unlock()

	if s.httpSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpSrv.Shutdown(ctx); err != nil {
			s.log.Warn("shutdown", zap.Error(err))
		}
	}
}
