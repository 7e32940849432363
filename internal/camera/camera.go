// Package camera opens configured PTZ controllers and keeps them in a
// registry that serializes access per device.
package camera

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"ptz-bridge/internal/config"
	"ptz-bridge/internal/onvif"
	"ptz-bridge/internal/ptz"
	"ptz-bridge/internal/sunapi"
	"ptz-bridge/internal/vapix"
)

// Open builds the controller for cfg. Only ONVIF contacts the device here.
func Open(ctx context.Context, cfg config.Camera, log *zap.Logger) (ptz.Controller, error) {
	log = log.Named(cfg.Protocol).With(zap.String("camera", cfg.Name))

	switch cfg.Protocol {
	case ptz.ProtocolONVIF:
		c, err := onvif.New(ctx, onvif.Config{
			Address:  cfg.Address,
			Port:     cfg.Port,
			Username: cfg.Username,
			Password: cfg.Password,
			Timeout:  cfg.Timeout(),
		}, log)
		if err != nil {
			return nil, err
		}
		return c, nil
	case ptz.ProtocolSUNAPI:
		c, err := sunapi.New(sunapi.Config{
			Address:         cfg.Address,
			Username:        cfg.Username,
			Password:        cfg.Password,
			Channel:         cfg.Channel,
			NormalizedSpeed: cfg.NormalizedSpeed,
			Timeout:         cfg.Timeout(),
		}, log)
		if err != nil {
			return nil, err
		}
		return c, nil
	case ptz.ProtocolVAPIX:
		c, err := vapix.New(vapix.Config{
			Address:  cfg.Address,
			Username: cfg.Username,
			Password: cfg.Password,
			Camera:   cfg.Camera,
			Speed:    cfg.Speed,
			Timeout:  cfg.Timeout(),
		}, log)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
	return nil, errors.Wrapf(ptz.ErrInvalidArgument, "unknown protocol %q", cfg.Protocol)
}

// Camera is a registered controller. Its methods run one at a time.
type Camera struct {
	name   string
	stream string
	ctrl   ptz.Controller
	mu     sync.Mutex
}

var _ ptz.Controller = (*Camera)(nil)

// Info describes a registered camera to clients
type Info struct {
	Name     string `json:"name"`
	Protocol string `json:"protocol"`
	Stream   bool   `json:"stream"`

	// Features lists the optional operations the camera supports
	Features []string `json:"features,omitempty"`
}

// Name returns the configured camera name
func (c *Camera) Name() string { return c.name }

// StreamURL returns the RTSP source, if any
func (c *Camera) StreamURL() string { return c.stream }

// Info describes c
func (c *Camera) Info() Info {
	return Info{
		Name:     c.name,
		Protocol: c.ctrl.Protocol(),
		Stream:   c.stream != "",
		Features: features(c.ctrl),
	}
}

// AbsoluteMove moves to pos
func (c *Camera) AbsoluteMove(ctx context.Context, pos ptz.Position) (*ptz.Reply, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ctrl.AbsoluteMove(ctx, pos)
}

// ContinuousMove starts moving at vel until Stop
func (c *Camera) ContinuousMove(ctx context.Context, vel ptz.Velocity) (*ptz.Reply, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ctrl.ContinuousMove(ctx, vel)
}

// RelativeMove moves by d from the current position
func (c *Camera) RelativeMove(ctx context.Context, d ptz.Delta) (*ptz.Reply, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ctrl.RelativeMove(ctx, d)
}

// Stop stops all movement
func (c *Camera) Stop(ctx context.Context) (*ptz.Reply, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ctrl.Stop(ctx)
}

// Status queries the current position
func (c *Camera) Status(ctx context.Context) (ptz.Status, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ctrl.Status(ctx)
}

// SetHome saves the current position as home
func (c *Camera) SetHome(ctx context.Context) (*ptz.Reply, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ctrl.SetHome(ctx)
}

// GoHome moves to the home position
func (c *Camera) GoHome(ctx context.Context) (*ptz.Reply, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ctrl.GoHome(ctx)
}

// SetPreset saves the current position as preset name
func (c *Camera) SetPreset(ctx context.Context, name string) (*ptz.Reply, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ctrl.SetPreset(ctx, name)
}

// RemovePreset removes the first preset called name
func (c *Camera) RemovePreset(ctx context.Context, name string) (*ptz.Reply, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ctrl.RemovePreset(ctx, name)
}

// GoToPreset moves to the first preset called name
func (c *Camera) GoToPreset(ctx context.Context, name string) (*ptz.Reply, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ctrl.GoToPreset(ctx, name)
}

// Presets lists the device presets
func (c *Camera) Presets(ctx context.Context) ([]ptz.Preset, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ctrl.Presets(ctx)
}

// Protocol names the camera's control protocol
func (c *Camera) Protocol() string { return c.ctrl.Protocol() }

// Close releases the controller
func (c *Camera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ctrl.Close()
}
