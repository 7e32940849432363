package ptz

import (
	"fmt"
	"net/http"

	"github.com/pkg/errors"
)

// Error classes. Match with errors.Is.
var (
	ErrUnauthorized    = errors.New("ptz: authentication failed")
	ErrInvalidArgument = errors.New("ptz: invalid argument")
	ErrMalformedReply  = errors.New("ptz: malformed reply")
)

// DeviceError is returned when the device answers with a status other than
// 200 or 204. A 401 DeviceError also matches ErrUnauthorized, as does one
// whose body reported an authentication failure.
type DeviceError struct {
	Code    int
	Message string

	// Unauthorized is set when the reply body, not the status, says the
	// credentials were rejected
	Unauthorized bool
}

func (e *DeviceError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("ptz: device returned %d %s", e.Code, http.StatusText(e.Code))
	}
	return fmt.Sprintf("ptz: device returned %d: %s", e.Code, e.Message)
}

// Is reports whether target is ErrUnauthorized for an authentication failure.
func (e *DeviceError) Is(target error) bool {
	return target == ErrUnauthorized && (e.Code == http.StatusUnauthorized || e.Unauthorized)
}

// OneOf returns an ErrInvalidArgument error unless v is one of allowed.
// The empty string is accepted and means the parameter is omitted.
func OneOf(param, v string, allowed ...string) error {
	if v == "" {
		return nil
	}
	for _, a := range allowed {
		if v == a {
			return nil
		}
	}
	return errors.Wrapf(ErrInvalidArgument, "%s %q not in %q", param, v, allowed)
}
