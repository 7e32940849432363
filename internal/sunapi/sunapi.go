// Package sunapi controls Hanwha (Samsung) cameras through the SUNAPI CGI
// interface.
package sunapi

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

// CGI endpoints below /stw-cgi/
const (
	cgiControl    = "ptzcontrol.cgi"
	cgiConfig     = "ptzconfig.cgi"
	cgiAttributes = "attributes.cgi"
	cgiOpenSDK    = "opensdk.cgi"
)

// presetLine matches one entry of a preset listing, e.g.
// "Channel.0.Preset.3.Name=Gate"
var presetLine = regexp.MustCompile(`^Channel\.\d+\.Preset\.(\d+)\.Name=(.*)$`)

// Config for a SUNAPI camera
type Config struct {
	Address  string // Camera host or host:port (e.g., "192.168.1.100")
	Username string
	Password string

	// Channel is sent with channel-scoped commands when set
	Channel *int

	// NormalizedSpeed selects the -100..100 speed range for continuous moves
	NormalizedSpeed bool

	Timeout time.Duration
}

// Camera is a SUNAPI-backed ptz.Controller
type Camera struct {
	cfg    Config
	http   *transport.Client
	limits ptz.Limits
	log    *zap.Logger
}

var _ ptz.Controller = (*Camera)(nil)

// New creates a new SUNAPI camera. No request is made.
func New(cfg Config, log *zap.Logger) (*Camera, error) {
	if cfg.Address == "" {
		return nil, errors.New("sunapi: camera address is required")
	}

	client, err := transport.New(transport.Config{
		BaseURL:  "http://" + cfg.Address + "/stw-cgi/",
		Username: cfg.Username,
		Password: cfg.Password,
		Timeout:  cfg.Timeout,
	}, log)
	if err != nil {
		return nil, errors.Wrap(err, "sunapi")
	}

	return &Camera{
		cfg:    cfg,
		http:   client,
		limits: ptz.DefaultLimits,
		log:    log,
	}, nil
}

// Protocol returns "sunapi"
func (c *Camera) Protocol() string { return ptz.ProtocolSUNAPI }

// Close is a no-op; SUNAPI holds no connection.
func (c *Camera) Close() error { return nil }

// control sends a ptzcontrol.cgi command for msubmenu
func (c *Camera) control(ctx context.Context, msubmenu string, q url.Values) (*ptz.Reply, error) {
	q.Set("msubmenu", msubmenu)
	q.Set("action", "control")
	return c.http.Get(ctx, cgiControl, q)
}

// values starts a parameter set, with the channel when configured
func (c *Camera) values() url.Values {
	q := url.Values{}
	transport.SetInt(q, "Channel", c.cfg.Channel)
	return q
}

// Status queries the current position. Pan readings next to 0 or 360 are
// reported as exactly 0.
func (c *Camera) Status(ctx context.Context) (ptz.Status, error) {
	q := url.Values{}
	q.Set("msubmenu", "query")
	q.Set("action", "view")
	q.Set("Query", "Pan,Tilt,Zoom")
	reply, err := c.http.Get(ctx, cgiControl, q)
	if err != nil {
		return ptz.Status{}, err
	}

	// Firmware appends the zoom pulse after the requested values
	pulse := len(decode.KeyValues(reply.Body)) >= 4
	st, err := decode.TextStatus(reply.Body, c.limits.FullTurn, pulse)
	if err != nil {
		return ptz.Status{}, errors.Wrap(err, "sunapi: status")
	}
	return st, nil
}

// Stop stops all pan, tilt and zoom movement
func (c *Camera) Stop(ctx context.Context) (*ptz.Reply, error) {
	q := url.Values{}
	q.Set("OperationType", "All")
	return c.control(ctx, "stop", q)
}

// AbsoluteMove moves to pos in degrees and zoom steps
func (c *Camera) AbsoluteMove(ctx context.Context, pos ptz.Position) (*ptz.Reply, error) {
	return c.control(ctx, "absolute", c.moveValues(ptz.Delta{
		Pan:  &pos.Pan,
		Tilt: &pos.Tilt,
		Zoom: &pos.Zoom,
	}))
}

// RelativeMove clamps d against the current position and sends it. When the
// camera reports pan 0 the move goes out as a relative command; otherwise the
// firmware only honours it as an absolute command, which is sent with the same
// clamped values.
func (c *Camera) RelativeMove(ctx context.Context, d ptz.Delta) (*ptz.Reply, error) {
	st, err := c.Status(ctx)
	if err != nil {
		return nil, err
	}

	clamped := c.limits.Clamp(st.Position, d)
	msubmenu := "absolute"
	if ptz.UseRelative(st.Position) {
		msubmenu = "relative"
	}

	c.log.Debug("relative move",
		zap.Float64("current_pan", st.Pan),
		zap.Float64("current_tilt", st.Tilt),
		zap.Float64("current_zoom", st.Zoom),
		zap.String("msubmenu", msubmenu))

	return c.control(ctx, msubmenu, c.moveValues(clamped))
}

// moveValues builds Pan/Tilt/Zoom parameters, leaving out nil axes
func (c *Camera) moveValues(d ptz.Delta) url.Values {
	q := c.values()
	transport.SetFloat(q, "Pan", d.Pan)
	transport.SetFloat(q, "Tilt", d.Tilt)
	transport.SetFloat(q, "Zoom", d.Zoom)
	return q
}

// ContinuousMove starts moving at vel
func (c *Camera) ContinuousMove(ctx context.Context, vel ptz.Velocity) (*ptz.Reply, error) {
	q := url.Values{}
	q.Set("NormalizedSpeed", boolParam(c.cfg.NormalizedSpeed))
	q.Set("Pan", transport.Float(vel.Pan))
	q.Set("Tilt", transport.Float(vel.Tilt))
	q.Set("Zoom", transport.Float(vel.Zoom))
	return c.control(ctx, "continuous", q)
}

// ContinuousFocus drives focus: "Near", "Far" or "Stop". Focus cannot be sent
// together with pan, tilt or zoom.
func (c *Camera) ContinuousFocus(ctx context.Context, focus string) (*ptz.Reply, error) {
	if focus == "" {
		return nil, errors.Wrap(ptz.ErrInvalidArgument, "focus is required")
	}
	if err := ptz.OneOf("focus", focus, "Near", "Far", "Stop"); err != nil {
		return nil, err
	}
	q := url.Values{}
	q.Set("Focus", focus)
	return c.control(ctx, "continuous", q)
}

// SetHome saves the current position as home
func (c *Camera) SetHome(ctx context.Context) (*ptz.Reply, error) {
	q := c.values()
	q.Set("msubmenu", "home")
	q.Set("action", "set")
	return c.http.Get(ctx, cgiConfig, q)
}

// GoHome moves to the home position
func (c *Camera) GoHome(ctx context.Context) (*ptz.Reply, error) {
	return c.control(ctx, "home", c.values())
}

// Presets lists presets with their device preset numbers
func (c *Camera) Presets(ctx context.Context) ([]ptz.Preset, error) {
	q := c.values()
	q.Set("msubmenu", "preset")
	q.Set("action", "view")
	reply, err := c.http.Get(ctx, cgiConfig, q)
	if err != nil {
		return nil, err
	}
	return decode.IndexedPresets(reply.Body, presetLine), nil
}

// SetPreset stores the current position as a new preset called name, using
// the lowest free preset number. Nothing is sent if name already exists.
func (c *Camera) SetPreset(ctx context.Context, name string) (*ptz.Reply, error) {
	presets, err := c.Presets(ctx)
	if err != nil {
		return nil, err
	}
	if _, ok := ptz.FindPreset(presets, name); ok {
		return nil, nil
	}

	q := c.values()
	q.Set("msubmenu", "preset")
	q.Set("action", "add")
	q.Set("Preset", strconv.Itoa(ptz.FreeIndex(presets, 1)))
	q.Set("Name", name)
	return c.http.Get(ctx, cgiConfig, q)
}

// RemovePreset removes the first preset called name
func (c *Camera) RemovePreset(ctx context.Context, name string) (*ptz.Reply, error) {
	p, ok, err := c.findPreset(ctx, name)
	if err != nil || !ok {
		return nil, err
	}

	q := c.values()
	q.Set("msubmenu", "preset")
	q.Set("action", "remove")
	q.Set("Preset", strconv.Itoa(p.Index))
	return c.http.Get(ctx, cgiConfig, q)
}

// GoToPreset moves to the first preset called name
func (c *Camera) GoToPreset(ctx context.Context, name string) (*ptz.Reply, error) {
	p, ok, err := c.findPreset(ctx, name)
	if err != nil || !ok {
		return nil, err
	}

	q := c.values()
	q.Set("Preset", strconv.Itoa(p.Index))
	return c.control(ctx, "preset", q)
}

func (c *Camera) findPreset(ctx context.Context, name string) (ptz.Preset, bool, error) {
	presets, err := c.Presets(ctx)
	if err != nil {
		return ptz.Preset{}, false, err
	}
	p, ok := ptz.FindPreset(presets, name)
	return p, ok, nil
}

// boolParam formats b as SUNAPI expects it
func boolParam(b bool) string {
	if b {
		return "True"
	}
	return "False"
}
