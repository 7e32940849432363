package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"ptz-bridge/internal/camera"
	"ptz-bridge/internal/protocol"
	"ptz-bridge/internal/ptz"
)

// apiTimeout bounds a single REST request to a camera
const apiTimeout = 15 * time.Second

func (s *Server) registerAPI(r *mux.Router) {
	r.HandleFunc("/cameras", s.handleCameras).Methods(http.MethodGet)

	c := r.PathPrefix("/cameras/{camera}").Subrouter()
	c.HandleFunc("/status", s.cameraHandler(s.handleStatus)).Methods(http.MethodGet)
	c.HandleFunc("/presets", s.cameraHandler(s.handlePresets)).Methods(http.MethodGet)
	c.HandleFunc("/presets", s.cameraHandler(s.handleSavePreset)).Methods(http.MethodPost)
	c.HandleFunc("/presets/{preset}", s.cameraHandler(s.handleRemovePreset)).Methods(http.MethodDelete)
	c.HandleFunc("/presets/{preset}/goto", s.cameraHandler(s.handleGoToPreset)).Methods(http.MethodPost)
	c.HandleFunc("/move", s.cameraHandler(s.handleMove)).Methods(http.MethodPost)
	c.HandleFunc("/stop", s.cameraHandler(s.handleStop)).Methods(http.MethodPost)
	c.HandleFunc("/home", s.cameraHandler(s.handleGoHome)).Methods(http.MethodPost)
	c.HandleFunc("/home", s.cameraHandler(s.handleSetHome)).Methods(http.MethodPut)

	s.registerFeatures(c)
}

type cameraFunc func(ctx context.Context, cam *camera.Camera, w http.ResponseWriter, r *http.Request) error

// cameraHandler resolves the {camera} route variable and reports the
// handler's error as JSON
func (s *Server) cameraHandler(fn cameraFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cam, err := s.cameras.Get(mux.Vars(r)["camera"])
		if err == nil {
			ctx, cancel := context.WithTimeout(r.Context(), apiTimeout)
			defer cancel()
			err = fn(ctx, cam, w, r)
		}
		if err != nil {
			s.log.Warn("api request failed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Error(err))
			writeError(w, err)
		}
	}
}

func (s *Server) handleCameras(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.cameras.List())
}

func (s *Server) handleStatus(ctx context.Context, cam *camera.Camera, w http.ResponseWriter, r *http.Request) error {
	st, err := cam.Status(ctx)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, protocol.PTZPositionPayload{Camera: cam.Name(), Status: st})
	return nil
}

func (s *Server) handlePresets(ctx context.Context, cam *camera.Camera, w http.ResponseWriter, r *http.Request) error {
	presets, err := cam.Presets(ctx)
	if err != nil {
		return err
	}
	if presets == nil {
		presets = []ptz.Preset{}
	}
	writeJSON(w, http.StatusOK, protocol.PTZPresetsPayload{Camera: cam.Name(), Presets: presets})
	return nil
}

func (s *Server) handleSavePreset(ctx context.Context, cam *camera.Camera, w http.ResponseWriter, r *http.Request) error {
	var body struct {
		Name string `json:"name"`
	}
	if err := decodeBody(w, r, &body); err != nil {
		return err
	}
	reply, err := preset(ctx, cam, protocol.PTZPresetPayload{Action: protocol.PresetSave, Name: body.Name})
	if err != nil {
		return err
	}
	writeResult(w, cam, "preset_save", reply)
	return nil
}

func (s *Server) handleRemovePreset(ctx context.Context, cam *camera.Camera, w http.ResponseWriter, r *http.Request) error {
	reply, err := preset(ctx, cam, protocol.PTZPresetPayload{Action: protocol.PresetRemove, Name: mux.Vars(r)["preset"]})
	if err != nil {
		return err
	}
	writeResult(w, cam, "preset_remove", reply)
	return nil
}

func (s *Server) handleGoToPreset(ctx context.Context, cam *camera.Camera, w http.ResponseWriter, r *http.Request) error {
	reply, err := preset(ctx, cam, protocol.PTZPresetPayload{Action: protocol.PresetGo, Name: mux.Vars(r)["preset"]})
	if err != nil {
		return err
	}
	writeResult(w, cam, "preset_go", reply)
	return nil
}

func (s *Server) handleMove(ctx context.Context, cam *camera.Camera, w http.ResponseWriter, r *http.Request) error {
	var body protocol.PTZMovePayload
	if err := decodeBody(w, r, &body); err != nil {
		return err
	}
	reply, err := move(ctx, cam, body)
	if err != nil {
		return err
	}
	writeResult(w, cam, body.Mode+"_move", reply)
	return nil
}

func (s *Server) handleStop(ctx context.Context, cam *camera.Camera, w http.ResponseWriter, r *http.Request) error {
	reply, err := cam.Stop(ctx)
	if err != nil {
		return err
	}
	writeResult(w, cam, "stop", reply)
	return nil
}

func (s *Server) handleGoHome(ctx context.Context, cam *camera.Camera, w http.ResponseWriter, r *http.Request) error {
	reply, err := cam.GoHome(ctx)
	if err != nil {
		return err
	}
	writeResult(w, cam, "go_home", reply)
	return nil
}

func (s *Server) handleSetHome(ctx context.Context, cam *camera.Camera, w http.ResponseWriter, r *http.Request) error {
	reply, err := cam.SetHome(ctx)
	if err != nil {
		return err
	}
	writeResult(w, cam, "set_home", reply)
	return nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 65536))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.Wrapf(ptz.ErrInvalidArgument, "request body: %v", err)
	}
	return nil
}

func writeResult(w http.ResponseWriter, cam *camera.Camera, action string, reply *ptz.Reply) {
	writeJSON(w, http.StatusOK, protocol.PTZResultPayload{
		Camera:  cam.Name(),
		Action:  action,
		Applied: reply != nil,
		Reply:   reply,
	})
}

func writeError(w http.ResponseWriter, err error) {
	code, status := classify(err)
	writeJSON(w, status, protocol.ErrorPayload{Code: code, Message: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
