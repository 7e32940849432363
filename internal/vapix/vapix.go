// Package vapix controls Axis cameras through the VAPIX ptz.cgi interface.
package vapix

import (
	"context"
	"net/url"
	"regexp"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"ptz-bridge/internal/decode"
	"ptz-bridge/internal/ptz"
	"ptz-bridge/internal/transport"
)

const cgiPTZ = "ptz.cgi"

// presetLine matches one entry of a preset listing, e.g. "presetposno3=Gate"
var presetLine = regexp.MustCompile(`^presetposno(\d+)=(.*)$`)

// Config for a VAPIX camera
type Config struct {
	Address  string // Camera host or host:port (e.g., "192.168.1.100")
	Username string
	Password string

	// Camera is the video source number, 1 if zero
	Camera int

	// Speed (1-100) is sent with positioning commands when non-zero
	Speed int

	Timeout time.Duration
}

// Camera is a VAPIX-backed ptz.Controller
type Camera struct {
	cfg  Config
	http *transport.Client
	log  *zap.Logger
	now  func() time.Time
}

var _ ptz.Controller = (*Camera)(nil)

// New creates a new VAPIX camera. No request is made.
func New(cfg Config, log *zap.Logger) (*Camera, error) {
	if cfg.Address == "" {
		return nil, errors.New("vapix: camera address is required")
	}
	if cfg.Camera == 0 {
		cfg.Camera = 1
	}

	client, err := transport.New(transport.Config{
		BaseURL:  "http://" + cfg.Address + "/axis-cgi/com/",
		Username: cfg.Username,
		Password: cfg.Password,
		Timeout:  cfg.Timeout,
	}, log)
	if err != nil {
		return nil, errors.Wrap(err, "vapix")
	}

	return &Camera{
		cfg:  cfg,
		http: client,
		log:  log,
		now:  time.Now,
	}, nil
}

// Protocol returns "vapix"
func (c *Camera) Protocol() string { return ptz.ProtocolVAPIX }

// Close is a no-op; VAPIX holds no connection.
func (c *Camera) Close() error { return nil }

// cmd sends q to ptz.cgi with the camera number, html=no and a timestamp
// added. The timestamp defeats caching proxies.
func (c *Camera) cmd(ctx context.Context, q url.Values) (*ptz.Reply, error) {
	q.Set("camera", strconv.Itoa(c.cfg.Camera))
	q.Set("html", "no")
	q.Set("timestamp", strconv.FormatInt(c.now().Unix(), 10))
	return c.http.Get(ctx, cgiPTZ, q)
}

// withSpeed adds the configured speed to q
func (c *Camera) withSpeed(q url.Values) url.Values {
	if c.cfg.Speed != 0 {
		q.Set("speed", strconv.Itoa(c.cfg.Speed))
	}
	return q
}

// Status queries the current position. Pan readings next to 0 or 360 are
// reported as exactly 0.
func (c *Camera) Status(ctx context.Context) (ptz.Status, error) {
	reply, err := c.cmd(ctx, url.Values{"query": {"position"}})
	if err != nil {
		return ptz.Status{}, err
	}
	st, err := decode.TextStatus(reply.Body, ptz.DefaultLimits.FullTurn, false)
	if err != nil {
		return ptz.Status{}, errors.Wrap(err, "vapix: status")
	}
	return st, nil
}

// AbsoluteMove moves to pos
func (c *Camera) AbsoluteMove(ctx context.Context, pos ptz.Position) (*ptz.Reply, error) {
	q := url.Values{}
	q.Set("pan", transport.Float(pos.Pan))
	q.Set("tilt", transport.Float(pos.Tilt))
	q.Set("zoom", transport.Float(pos.Zoom))
	return c.cmd(ctx, c.withSpeed(q))
}

// RelativeMove moves by d from the current position. The device applies
// its own limits, so no status query is made.
func (c *Camera) RelativeMove(ctx context.Context, d ptz.Delta) (*ptz.Reply, error) {
	q := url.Values{}
	transport.SetFloat(q, "rpan", d.Pan)
	transport.SetFloat(q, "rtilt", d.Tilt)
	transport.SetFloat(q, "rzoom", d.Zoom)
	return c.cmd(ctx, c.withSpeed(q))
}

// ContinuousMove starts moving at vel (-100..100 per axis)
func (c *Camera) ContinuousMove(ctx context.Context, vel ptz.Velocity) (*ptz.Reply, error) {
	q := url.Values{}
	q.Set("continuouspantiltmove", transport.Float(vel.Pan)+","+transport.Float(vel.Tilt))
	q.Set("continuouszoommove", transport.Float(vel.Zoom))
	return c.cmd(ctx, q)
}

// Stop stops all pan, tilt and zoom movement
func (c *Camera) Stop(ctx context.Context) (*ptz.Reply, error) {
	q := url.Values{}
	q.Set("continuouspantiltmove", "0,0")
	q.Set("continuouszoommove", "0")
	return c.cmd(ctx, q)
}

// GoHome moves to the home position
func (c *Camera) GoHome(ctx context.Context) (*ptz.Reply, error) {
	return c.cmd(ctx, c.withSpeed(url.Values{"move": {"home"}}))
}

// SetHome saves the current position as the "Home" server preset and marks
// it as home
func (c *Camera) SetHome(ctx context.Context) (*ptz.Reply, error) {
	q := url.Values{}
	q.Set("setserverpresetname", "Home")
	q.Set("home", "yes")
	return c.cmd(ctx, q)
}

// Presets lists the server presets with their preset numbers
func (c *Camera) Presets(ctx context.Context) ([]ptz.Preset, error) {
	reply, err := c.cmd(ctx, url.Values{"query": {"presetposall"}})
	if err != nil {
		return nil, err
	}
	// Listings may come wrapped in markup depending on firmware
	return decode.IndexedPresets(decode.Text([]byte(reply.Body)), presetLine), nil
}

// SetPreset stores the current position as server preset name. Nothing is
// sent if name already exists.
func (c *Camera) SetPreset(ctx context.Context, name string) (*ptz.Reply, error) {
	presets, err := c.Presets(ctx)
	if err != nil {
		return nil, err
	}
	if _, ok := ptz.FindPreset(presets, name); ok {
		return nil, nil
	}
	return c.cmd(ctx, url.Values{"setserverpresetname": {name}})
}

// RemovePreset removes the first server preset called name
func (c *Camera) RemovePreset(ctx context.Context, name string) (*ptz.Reply, error) {
	p, ok, err := c.findPreset(ctx, name)
	if err != nil || !ok {
		return nil, err
	}
	return c.cmd(ctx, url.Values{"removeserverpresetno": {strconv.Itoa(p.Index)}})
}

// GoToPreset moves to the first server preset called name
func (c *Camera) GoToPreset(ctx context.Context, name string) (*ptz.Reply, error) {
	p, ok, err := c.findPreset(ctx, name)
	if err != nil || !ok {
		return nil, err
	}
	return c.GoToPresetNumber(ctx, p.Index)
}

func (c *Camera) findPreset(ctx context.Context, name string) (ptz.Preset, bool, error) {
	presets, err := c.Presets(ctx)
	if err != nil {
		return ptz.Preset{}, false, err
	}
	p, ok := ptz.FindPreset(presets, name)
	return p, ok, nil
}
