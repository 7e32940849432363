// Package onvif controls cameras through the ONVIF PTZ service.
package onvif

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/pkg/errors"
	goonvif "github.com/use-go/onvif"
	"github.com/use-go/onvif/media"
	onvif_ptz "github.com/use-go/onvif/ptz"
	"github.com/use-go/onvif/xsd"
	xsd_onvif "github.com/use-go/onvif/xsd/onvif"
	"go.uber.org/zap"

	"ptz-bridge/internal/decode"
	"ptz-bridge/internal/ptz"
	"ptz-bridge/internal/transport"
)

// DefaultPort is the ONVIF service port used when none is configured
const DefaultPort = 80

// Caller sends one SOAP request. *goonvif.Device implements it.
type Caller interface {
	CallMethod(method interface{}) (*http.Response, error)
}

// Config for an ONVIF camera
type Config struct {
	Address  string // Camera host (e.g., "192.168.1.100")
	Port     int
	Username string
	Password string
	Timeout  time.Duration
}

// Camera is an ONVIF-backed ptz.Controller bound to the first media profile
type Camera struct {
	dev   Caller
	token xsd_onvif.ReferenceToken
	log   *zap.Logger
}

var _ ptz.Controller = (*Camera)(nil)

// New connects to the device and selects its first media profile
func New(ctx context.Context, cfg Config, log *zap.Logger) (*Camera, error) {
	if cfg.Address == "" {
		return nil, errors.New("onvif: camera address is required")
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dev, err := goonvif.NewDevice(goonvif.DeviceParams{
		Xaddr:      fmt.Sprintf("%s:%d", cfg.Address, cfg.Port),
		Username:   cfg.Username,
		Password:   cfg.Password,
		HttpClient: &http.Client{Timeout: cfg.Timeout},
	})
	if err != nil {
		return nil, errors.Wrapf(err, "onvif: failed to connect to %s:%d", cfg.Address, cfg.Port)
	}
	return NewWithCaller(ctx, dev, log)
}

// NewWithCaller binds dev to its first media profile
func NewWithCaller(ctx context.Context, dev Caller, log *zap.Logger) (*Camera, error) {
	c := &Camera{dev: dev, log: log}

	reply, err := c.call(ctx, media.GetProfiles{})
	if err != nil {
		return nil, errors.Wrap(err, "onvif: failed to get profiles")
	}
	tokens, err := decode.ProfileTokens([]byte(reply.Body))
	if err != nil {
		return nil, errors.Wrap(err, "onvif")
	}
	if len(tokens) == 0 {
		return nil, errors.Wrap(ptz.ErrMalformedReply, "onvif: device has no media profiles")
	}

	c.token = xsd_onvif.ReferenceToken(tokens[0])
	log.Debug("selected media profile", zap.String("token", tokens[0]), zap.Int("profiles", len(tokens)))
	return c, nil
}

// Protocol returns "onvif"
func (c *Camera) Protocol() string { return ptz.ProtocolONVIF }

// Close is a no-op; each request opens its own connection.
func (c *Camera) Close() error { return nil }

// ProfileToken returns the media profile commands are sent for
func (c *Camera) ProfileToken() string { return string(c.token) }

// call sends method and classifies the reply. The SOAP client takes no
// context, so cancellation is only observed before the exchange.
func (c *Camera) call(ctx context.Context, method interface{}) (*ptz.Reply, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	name := fmt.Sprintf("%T", method)
	c.log.Debug("request", zap.String("method", name))

	resp, err := c.dev.CallMethod(method)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to send %s", name)
	}

	var subcode string
	reply, err := transport.Read(resp, func(body []byte) string {
		subcode = decode.FaultSubcode(body)
		return decode.Fault(body)
	})
	// Devices reject credentials with a ter:NotAuthorized fault under 400 or 500
	var devErr *ptz.DeviceError
	if errors.As(err, &devErr) && decode.NotAuthorized(subcode) {
		devErr.Unauthorized = true
	}
	if err != nil {
		c.log.Warn("device error", zap.String("method", name), zap.Error(err))
	}
	return reply, err
}

func vector(pan, tilt, zoom float64) xsd_onvif.PTZVector {
	return xsd_onvif.PTZVector{
		PanTilt: xsd_onvif.Vector2D{X: pan, Y: tilt},
		Zoom:    xsd_onvif.Vector1D{X: zoom},
	}
}

// orZero dereferences an optional axis
func orZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

// AbsoluteMove moves to pos in the profile's default position space
func (c *Camera) AbsoluteMove(ctx context.Context, pos ptz.Position) (*ptz.Reply, error) {
	return c.call(ctx, onvif_ptz.AbsoluteMove{
		ProfileToken: c.token,
		Position:     vector(pos.Pan, pos.Tilt, pos.Zoom),
	})
}

// ContinuousMove starts moving at vel (-1..1 per axis)
func (c *Camera) ContinuousMove(ctx context.Context, vel ptz.Velocity) (*ptz.Reply, error) {
	return c.call(ctx, onvif_ptz.ContinuousMove{
		ProfileToken: c.token,
		Velocity: xsd_onvif.PTZSpeed{
			PanTilt: xsd_onvif.Vector2D{X: vel.Pan, Y: vel.Tilt},
			Zoom:    xsd_onvif.Vector1D{X: vel.Zoom},
		},
	})
}

// RelativeMove translates by d. Nil axes translate by 0.
func (c *Camera) RelativeMove(ctx context.Context, d ptz.Delta) (*ptz.Reply, error) {
	return c.call(ctx, onvif_ptz.RelativeMove{
		ProfileToken: c.token,
		Translation:  vector(orZero(d.Pan), orZero(d.Tilt), orZero(d.Zoom)),
	})
}

// Stop stops pan, tilt and zoom movement
func (c *Camera) Stop(ctx context.Context) (*ptz.Reply, error) {
	return c.call(ctx, onvif_ptz.Stop{
		ProfileToken: c.token,
		PanTilt:      xsd.Boolean(true),
		Zoom:         xsd.Boolean(true),
	})
}

// Status queries the current position
func (c *Camera) Status(ctx context.Context) (ptz.Status, error) {
	reply, err := c.call(ctx, onvif_ptz.GetStatus{ProfileToken: c.token})
	if err != nil {
		return ptz.Status{}, err
	}
	st, err := decode.SOAPStatus([]byte(reply.Body))
	if err != nil {
		return ptz.Status{}, errors.Wrap(err, "onvif")
	}
	return st, nil
}

// SetHome saves the current position as home. Some devices keep moving
// after SetHomePosition, so a Stop follows; its result is only logged.
func (c *Camera) SetHome(ctx context.Context) (*ptz.Reply, error) {
	reply, err := c.call(ctx, onvif_ptz.SetHomePosition{ProfileToken: c.token})
	if err != nil {
		return nil, err
	}
	if _, err := c.Stop(ctx); err != nil {
		c.log.Warn("stop after set home failed", zap.Error(err))
	}
	return reply, nil
}

// GoHome moves to the home position
func (c *Camera) GoHome(ctx context.Context) (*ptz.Reply, error) {
	return c.call(ctx, onvif_ptz.GotoHomePosition{ProfileToken: c.token})
}

// Presets lists the profile's presets
func (c *Camera) Presets(ctx context.Context) ([]ptz.Preset, error) {
	reply, err := c.call(ctx, onvif_ptz.GetPresets{ProfileToken: c.token})
	if err != nil {
		return nil, err
	}
	presets, err := decode.SOAPPresets([]byte(reply.Body))
	if err != nil {
		return nil, errors.Wrap(err, "onvif")
	}
	return presets, nil
}

// SetPreset stores the current position as preset name. Nothing is sent if
// name already exists.
func (c *Camera) SetPreset(ctx context.Context, name string) (*ptz.Reply, error) {
	presets, err := c.Presets(ctx)
	if err != nil {
		return nil, err
	}
	if _, ok := ptz.FindPreset(presets, name); ok {
		return nil, nil
	}
	return c.call(ctx, onvif_ptz.SetPreset{
		ProfileToken: c.token,
		PresetName:   xsd.String(name),
	})
}

// RemovePreset removes the first preset called name
func (c *Camera) RemovePreset(ctx context.Context, name string) (*ptz.Reply, error) {
	p, ok, err := c.findPreset(ctx, name)
	if err != nil || !ok {
		return nil, err
	}
	return c.call(ctx, onvif_ptz.RemovePreset{
		ProfileToken: c.token,
		PresetToken:  xsd_onvif.ReferenceToken(p.Token),
	})
}

// GoToPreset moves to the first preset called name
func (c *Camera) GoToPreset(ctx context.Context, name string) (*ptz.Reply, error) {
	p, ok, err := c.findPreset(ctx, name)
	if err != nil || !ok {
		return nil, err
	}
	return c.call(ctx, onvif_ptz.GotoPreset{
		ProfileToken: c.token,
		PresetToken:  xsd_onvif.ReferenceToken(p.Token),
	})
}

func (c *Camera) findPreset(ctx context.Context, name string) (ptz.Preset, bool, error) {
	presets, err := c.Presets(ctx)
	if err != nil {
		return ptz.Preset{}, false, err
	}
	p, ok := ptz.FindPreset(presets, name)
	return p, ok, nil
}
