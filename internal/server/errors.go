package server

import (
	"net/http"

	"github.com/pkg/errors"

	"ptz-bridge/internal/camera"
	"ptz-bridge/internal/protocol"
	"ptz-bridge/internal/ptz"
)

// classify maps an error to its wire code and HTTP status
func classify(err error) (string, int) {
	var devErr *ptz.DeviceError
	switch {
	case errors.Is(err, camera.ErrUnknownCamera):
		return protocol.ErrUnknownCamera, http.StatusNotFound
	case errors.Is(err, ptz.ErrInvalidArgument):
		return protocol.ErrInvalidArgument, http.StatusBadRequest
	case errors.Is(err, ptz.ErrUnauthorized):
		return protocol.ErrCameraAuth, http.StatusBadGateway
	case errors.As(err, &devErr), errors.Is(err, ptz.ErrMalformedReply):
		return protocol.ErrCameraError, http.StatusBadGateway
	}
	return protocol.ErrCameraDisconnected, http.StatusBadGateway
}
