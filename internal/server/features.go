package server

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"ptz-bridge/internal/camera"
	"ptz-bridge/internal/ptz"
)

// registerFeatures adds the routes for optional camera operations. A camera
// without the operation answers 400 INVALID_ARGUMENT.
func (s *Server) registerFeatures(c *mux.Router) {
	c.HandleFunc("/focus", s.cameraHandler(s.handleFocus)).Methods(http.MethodPost)
	c.HandleFunc("/areazoom", s.cameraHandler(s.handleAreaZoom)).Methods(http.MethodPost)
	c.HandleFunc("/zoomout", s.cameraHandler(s.handleZoomOut)).Methods(http.MethodPost)
	c.HandleFunc("/center", s.cameraHandler(s.handleCenter)).Methods(http.MethodPost)
	c.HandleFunc("/step", s.cameraHandler(s.handleStep)).Methods(http.MethodPost)
	c.HandleFunc("/swing", s.cameraHandler(s.handleSwing)).Methods(http.MethodPost)
	c.HandleFunc("/sequences/{kind}/{n:[0-9]+}", s.cameraHandler(s.handleSequence)).Methods(http.MethodPost)
	c.HandleFunc("/aux", s.cameraHandler(s.handleAux)).Methods(http.MethodPost)
	c.HandleFunc("/speed", s.cameraHandler(s.handleSpeed)).Methods(http.MethodGet)
	c.HandleFunc("/speed", s.cameraHandler(s.handleSetSpeed)).Methods(http.MethodPut)
	c.HandleFunc("/preset-numbers/{n:[0-9]+}/goto", s.cameraHandler(s.handleGoToPresetNumber)).Methods(http.MethodPost)
	c.HandleFunc("/device-presets", s.cameraHandler(s.handleDevicePresets)).Methods(http.MethodGet)
	c.HandleFunc("/device-presets/{n:[0-9]+}/goto", s.cameraHandler(s.handleGoToDevicePreset)).Methods(http.MethodPost)
	c.HandleFunc("/info", s.cameraHandler(s.handleInfo)).Methods(http.MethodGet)
	c.HandleFunc("/applications", s.cameraHandler(s.handleApplications)).Methods(http.MethodGet)
}

// SpeedPayload reports or sets a camera's head speed
type SpeedPayload struct {
	Camera string `json:"camera,omitempty"`
	Speed  int    `json:"speed"`
}

// TextPayload carries a device's raw description
type TextPayload struct {
	Camera string `json:"camera"`
	Text   string `json:"text"`
}

// number reads the {n} route variable
func number(r *http.Request) (int, error) {
	n, err := strconv.Atoi(mux.Vars(r)["n"])
	if err != nil {
		return 0, errors.Wrapf(ptz.ErrInvalidArgument, "number %q", mux.Vars(r)["n"])
	}
	return n, nil
}

// replyHandler adapts an operation returning a Reply into a JSON result
func replyHandler(action string, op func(cam *camera.Camera, ctx context.Context) (*ptz.Reply, error)) cameraFunc {
	return func(ctx context.Context, cam *camera.Camera, w http.ResponseWriter, r *http.Request) error {
		reply, err := op(cam, ctx)
		if err != nil {
			return err
		}
		writeResult(w, cam, action, reply)
		return nil
	}
}

func (s *Server) handleFocus(ctx context.Context, cam *camera.Camera, w http.ResponseWriter, r *http.Request) error {
	var body struct {
		Focus string `json:"focus"`
	}
	if err := decodeBody(w, r, &body); err != nil {
		return err
	}
	return replyHandler("focus", func(cam *camera.Camera, ctx context.Context) (*ptz.Reply, error) {
		return cam.Focus(ctx, body.Focus)
	})(ctx, cam, w, r)
}

func (s *Server) handleAreaZoom(ctx context.Context, cam *camera.Camera, w http.ResponseWriter, r *http.Request) error {
	var body camera.AreaZoom
	if err := decodeBody(w, r, &body); err != nil {
		return err
	}
	return replyHandler("area_zoom", func(cam *camera.Camera, ctx context.Context) (*ptz.Reply, error) {
		return cam.ZoomArea(ctx, body)
	})(ctx, cam, w, r)
}

func (s *Server) handleZoomOut(ctx context.Context, cam *camera.Camera, w http.ResponseWriter, r *http.Request) error {
	return replyHandler("zoom_out", (*camera.Camera).ZoomOut)(ctx, cam, w, r)
}

func (s *Server) handleCenter(ctx context.Context, cam *camera.Camera, w http.ResponseWriter, r *http.Request) error {
	var body struct {
		X int `json:"x"`
		Y int `json:"y"`
	}
	if err := decodeBody(w, r, &body); err != nil {
		return err
	}
	return replyHandler("center", func(cam *camera.Camera, ctx context.Context) (*ptz.Reply, error) {
		return cam.Center(ctx, body.X, body.Y)
	})(ctx, cam, w, r)
}

func (s *Server) handleStep(ctx context.Context, cam *camera.Camera, w http.ResponseWriter, r *http.Request) error {
	var body struct {
		Direction string  `json:"direction"`
		Speed     float64 `json:"speed"`
	}
	if err := decodeBody(w, r, &body); err != nil {
		return err
	}
	return replyHandler("step", func(cam *camera.Camera, ctx context.Context) (*ptz.Reply, error) {
		return cam.Step(ctx, body.Direction, body.Speed)
	})(ctx, cam, w, r)
}

func (s *Server) handleSwing(ctx context.Context, cam *camera.Camera, w http.ResponseWriter, r *http.Request) error {
	var body struct {
		Mode string `json:"mode"`
	}
	if err := decodeBody(w, r, &body); err != nil {
		return err
	}
	return replyHandler("swing", func(cam *camera.Camera, ctx context.Context) (*ptz.Reply, error) {
		return cam.Swing(ctx, body.Mode)
	})(ctx, cam, w, r)
}

func (s *Server) handleSequence(ctx context.Context, cam *camera.Camera, w http.ResponseWriter, r *http.Request) error {
	n, err := number(r)
	if err != nil {
		return err
	}
	var body struct {
		Mode string `json:"mode"`
	}
	if err := decodeBody(w, r, &body); err != nil {
		return err
	}
	kind := mux.Vars(r)["kind"]
	return replyHandler(kind, func(cam *camera.Camera, ctx context.Context) (*ptz.Reply, error) {
		return cam.Sequence(ctx, kind, n, body.Mode)
	})(ctx, cam, w, r)
}

func (s *Server) handleAux(ctx context.Context, cam *camera.Camera, w http.ResponseWriter, r *http.Request) error {
	var body struct {
		Command string `json:"command"`
	}
	if err := decodeBody(w, r, &body); err != nil {
		return err
	}
	return replyHandler("aux", func(cam *camera.Camera, ctx context.Context) (*ptz.Reply, error) {
		return cam.Aux(ctx, body.Command)
	})(ctx, cam, w, r)
}

func (s *Server) handleSpeed(ctx context.Context, cam *camera.Camera, w http.ResponseWriter, r *http.Request) error {
	speed, err := cam.Speed(ctx)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, SpeedPayload{Camera: cam.Name(), Speed: speed})
	return nil
}

func (s *Server) handleSetSpeed(ctx context.Context, cam *camera.Camera, w http.ResponseWriter, r *http.Request) error {
	var body SpeedPayload
	if err := decodeBody(w, r, &body); err != nil {
		return err
	}
	return replyHandler("set_speed", func(cam *camera.Camera, ctx context.Context) (*ptz.Reply, error) {
		return cam.SetSpeed(ctx, body.Speed)
	})(ctx, cam, w, r)
}

func (s *Server) handleGoToPresetNumber(ctx context.Context, cam *camera.Camera, w http.ResponseWriter, r *http.Request) error {
	n, err := number(r)
	if err != nil {
		return err
	}
	return replyHandler("preset_number", func(cam *camera.Camera, ctx context.Context) (*ptz.Reply, error) {
		return cam.GoToPresetNumber(ctx, n)
	})(ctx, cam, w, r)
}

func (s *Server) handleGoToDevicePreset(ctx context.Context, cam *camera.Camera, w http.ResponseWriter, r *http.Request) error {
	n, err := number(r)
	if err != nil {
		return err
	}
	return replyHandler("device_preset", func(cam *camera.Camera, ctx context.Context) (*ptz.Reply, error) {
		return cam.GoToDevicePreset(ctx, n)
	})(ctx, cam, w, r)
}

// textHandler serves a raw device description
func textHandler(op func(cam *camera.Camera, ctx context.Context) (string, error)) cameraFunc {
	return func(ctx context.Context, cam *camera.Camera, w http.ResponseWriter, r *http.Request) error {
		text, err := op(cam, ctx)
		if err != nil {
			return err
		}
		writeJSON(w, http.StatusOK, TextPayload{Camera: cam.Name(), Text: text})
		return nil
	}
}

func (s *Server) handleDevicePresets(ctx context.Context, cam *camera.Camera, w http.ResponseWriter, r *http.Request) error {
	return textHandler((*camera.Camera).DevicePresets)(ctx, cam, w, r)
}

func (s *Server) handleInfo(ctx context.Context, cam *camera.Camera, w http.ResponseWriter, r *http.Request) error {
	return textHandler((*camera.Camera).DeviceInfo)(ctx, cam, w, r)
}

func (s *Server) handleApplications(ctx context.Context, cam *camera.Camera, w http.ResponseWriter, r *http.Request) error {
	return textHandler((*camera.Camera).Applications)(ctx, cam, w, r)
}
