package vapix

import (
	"context"
	"net/url"
	"strconv"

	"github.com/pkg/errors"

	"ptz-bridge/internal/decode"
	"ptz-bridge/internal/ptz"
)

// Directions accepted by Move
var directions = []string{
	"home", "up", "down", "left", "right",
	"upleft", "upright", "downleft", "downright", "stop",
}

// CenterMove centers the image on pixel (x, y)
func (c *Camera) CenterMove(ctx context.Context, x, y int) (*ptz.Reply, error) {
	q := url.Values{}
	q.Set("center", strconv.Itoa(x)+","+strconv.Itoa(y))
	return c.cmd(ctx, c.withSpeed(q))
}

// AreaZoom centers on pixel (x, y) and zooms by a factor of zoom/100
func (c *Camera) AreaZoom(ctx context.Context, x, y, zoom int) (*ptz.Reply, error) {
	q := url.Values{}
	q.Set("areazoom", strconv.Itoa(x)+","+strconv.Itoa(y)+","+strconv.Itoa(zoom))
	return c.cmd(ctx, c.withSpeed(q))
}

// Move steps the head in direction, e.g. "upleft"
func (c *Camera) Move(ctx context.Context, direction string) (*ptz.Reply, error) {
	if direction == "" {
		return nil, errors.Wrap(ptz.ErrInvalidArgument, "direction is required")
	}
	if err := ptz.OneOf("direction", direction, directions...); err != nil {
		return nil, err
	}
	return c.cmd(ctx, c.withSpeed(url.Values{"move": {direction}}))
}

// GoToPresetNumber moves to server preset n
func (c *Camera) GoToPresetNumber(ctx context.Context, n int) (*ptz.Reply, error) {
	return c.cmd(ctx, c.withSpeed(url.Values{"gotoserverpresetno": {strconv.Itoa(n)}}))
}

// GoToDevicePreset moves to preset n stored in the head itself, bypassing the
// server preset table
func (c *Camera) GoToDevicePreset(ctx context.Context, n int) (*ptz.Reply, error) {
	return c.cmd(ctx, c.withSpeed(url.Values{"gotodevicepreset": {strconv.Itoa(n)}}))
}

// DevicePresets returns the raw listing of presets stored in the head
func (c *Camera) DevicePresets(ctx context.Context) (*ptz.Reply, error) {
	return c.cmd(ctx, url.Values{"query": {"presetposcam"}})
}

// SetSpeed sets the head speed (1-100)
func (c *Camera) SetSpeed(ctx context.Context, speed int) (*ptz.Reply, error) {
	if speed < 1 || speed > 100 {
		return nil, errors.Wrapf(ptz.ErrInvalidArgument, "speed %d not in 1..100", speed)
	}
	return c.cmd(ctx, url.Values{"speed": {strconv.Itoa(speed)}})
}

// Speed returns the head speed
func (c *Camera) Speed(ctx context.Context) (int, error) {
	reply, err := c.cmd(ctx, url.Values{"query": {"speed"}})
	if err != nil {
		return 0, err
	}
	return decode.Int(reply.Body, "speed")
}

// Info returns the device's description of the commands it supports
func (c *Camera) Info(ctx context.Context) (string, error) {
	reply, err := c.cmd(ctx, url.Values{"info": {"1"}})
	if err != nil {
		return "", err
	}
	return reply.Body, nil
}
