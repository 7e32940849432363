package camera

import (
	"context"

	"github.com/pkg/errors"

	"ptz-bridge/internal/ptz"
)

// Optional controller capabilities. A controller offers one by having the
// method; Camera checks for it on every call.

type focuser interface {
	ContinuousFocus(ctx context.Context, focus string) (*ptz.Reply, error)
}

// rectZoomer zooms into a rectangle of a tile of known pixel size
type rectZoomer interface {
	AreaZoom(ctx context.Context, x1, y1, x2, y2, tileWidth, tileHeight int) (*ptz.Reply, error)
}

// pointZoomer centers on a pixel and zooms by a factor
type pointZoomer interface {
	AreaZoom(ctx context.Context, x, y, zoom int) (*ptz.Reply, error)
}

type zoomResetter interface {
	ZoomOut(ctx context.Context) (*ptz.Reply, error)
}

type centerer interface {
	CenterMove(ctx context.Context, x, y int) (*ptz.Reply, error)
}

// speedStepper moves in a named direction at a speed
type speedStepper interface {
	Move(ctx context.Context, direction string, speed float64) (*ptz.Reply, error)
}

// stepper moves in a named direction at the configured speed
type stepper interface {
	Move(ctx context.Context, direction string) (*ptz.Reply, error)
}

type swinger interface {
	Swing(ctx context.Context, mode string) (*ptz.Reply, error)
}

type sequencer interface {
	Group(ctx context.Context, group int, mode string) (*ptz.Reply, error)
	Tour(ctx context.Context, tour int, mode string) (*ptz.Reply, error)
	Trace(ctx context.Context, trace int, mode string) (*ptz.Reply, error)
}

type auxController interface {
	AuxControl(ctx context.Context, command string) (*ptz.Reply, error)
}

type speedController interface {
	SetSpeed(ctx context.Context, speed int) (*ptz.Reply, error)
	Speed(ctx context.Context) (int, error)
}

type presetNumberer interface {
	GoToPresetNumber(ctx context.Context, n int) (*ptz.Reply, error)
}

type devicePresetter interface {
	GoToDevicePreset(ctx context.Context, n int) (*ptz.Reply, error)
	DevicePresets(ctx context.Context) (*ptz.Reply, error)
}

type infoReporter interface {
	Info(ctx context.Context) (string, error)
}

type attributeReporter interface {
	Attributes(ctx context.Context) (*ptz.Reply, error)
}

type appLister interface {
	Applications(ctx context.Context) (*ptz.Reply, error)
}

// Feature names reported in Info
const (
	FeatureFocus         = "focus"
	FeatureAreaZoom      = "area_zoom"
	FeatureZoomOut       = "zoom_out"
	FeatureCenter        = "center"
	FeatureStep          = "step"
	FeatureSwing         = "swing"
	FeatureSequence      = "sequence"
	FeatureAux           = "aux"
	FeatureSpeed         = "speed"
	FeaturePresetNumber  = "preset_number"
	FeatureDevicePresets = "device_presets"
	FeatureInfo          = "info"
	FeatureApplications  = "applications"
)

// Sequence kinds for Sequence
const (
	SequenceGroup = "group"
	SequenceTour  = "tour"
	SequenceTrace = "trace"
)

// AreaZoom is an area zoom request. Controllers that zoom into a rectangle
// use X, Y, X2, Y2, TileWidth and TileHeight; controllers that zoom around a
// point use X, Y and Zoom.
type AreaZoom struct {
	X          int `json:"x"`
	Y          int `json:"y"`
	X2         int `json:"x2,omitempty"`
	Y2         int `json:"y2,omitempty"`
	TileWidth  int `json:"tile_width,omitempty"`
	TileHeight int `json:"tile_height,omitempty"`
	Zoom       int `json:"zoom,omitempty"`
}

// features lists the optional capabilities of ctrl
func features(ctrl ptz.Controller) []string {
	var fs []string
	add := func(ok bool, name string) {
		if ok {
			fs = append(fs, name)
		}
	}
	_, ok := ctrl.(focuser)
	add(ok, FeatureFocus)
	_, rect := ctrl.(rectZoomer)
	_, point := ctrl.(pointZoomer)
	add(rect || point, FeatureAreaZoom)
	_, ok = ctrl.(zoomResetter)
	add(ok, FeatureZoomOut)
	_, ok = ctrl.(centerer)
	add(ok, FeatureCenter)
	_, speed := ctrl.(speedStepper)
	_, plain := ctrl.(stepper)
	add(speed || plain, FeatureStep)
	_, ok = ctrl.(swinger)
	add(ok, FeatureSwing)
	_, ok = ctrl.(sequencer)
	add(ok, FeatureSequence)
	_, ok = ctrl.(auxController)
	add(ok, FeatureAux)
	_, ok = ctrl.(speedController)
	add(ok, FeatureSpeed)
	_, ok = ctrl.(presetNumberer)
	add(ok, FeaturePresetNumber)
	_, ok = ctrl.(devicePresetter)
	add(ok, FeatureDevicePresets)
	_, info := ctrl.(infoReporter)
	_, attrs := ctrl.(attributeReporter)
	add(info || attrs, FeatureInfo)
	_, ok = ctrl.(appLister)
	add(ok, FeatureApplications)
	return fs
}

func (c *Camera) unsupported(feature string) error {
	return errors.Wrapf(ptz.ErrInvalidArgument, "%s is not supported by %s camera %q", feature, c.ctrl.Protocol(), c.name)
}

// Focus drives continuous focus ("Near", "Far" or "Stop")
func (c *Camera) Focus(ctx context.Context, focus string) (*ptz.Reply, error) {
	f, ok := c.ctrl.(focuser)
	if !ok {
		return nil, c.unsupported(FeatureFocus)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return f.ContinuousFocus(ctx, focus)
}

// ZoomArea zooms into an image area
func (c *Camera) ZoomArea(ctx context.Context, a AreaZoom) (*ptz.Reply, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch z := c.ctrl.(type) {
	case rectZoomer:
		return z.AreaZoom(ctx, a.X, a.Y, a.X2, a.Y2, a.TileWidth, a.TileHeight)
	case pointZoomer:
		return z.AreaZoom(ctx, a.X, a.Y, a.Zoom)
	}
	return nil, c.unsupported(FeatureAreaZoom)
}

// ZoomOut returns to the widest zoom
func (c *Camera) ZoomOut(ctx context.Context) (*ptz.Reply, error) {
	z, ok := c.ctrl.(zoomResetter)
	if !ok {
		return nil, c.unsupported(FeatureZoomOut)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return z.ZoomOut(ctx)
}

// Center centers the image on pixel (x, y)
func (c *Camera) Center(ctx context.Context, x, y int) (*ptz.Reply, error) {
	m, ok := c.ctrl.(centerer)
	if !ok {
		return nil, c.unsupported(FeatureCenter)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return m.CenterMove(ctx, x, y)
}

// Step moves in a named direction. speed is ignored by controllers that
// move at their configured speed.
func (c *Camera) Step(ctx context.Context, direction string, speed float64) (*ptz.Reply, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch m := c.ctrl.(type) {
	case speedStepper:
		return m.Move(ctx, direction, speed)
	case stepper:
		return m.Move(ctx, direction)
	}
	return nil, c.unsupported(FeatureStep)
}

// Swing runs or stops a swing between presets
func (c *Camera) Swing(ctx context.Context, mode string) (*ptz.Reply, error) {
	s, ok := c.ctrl.(swinger)
	if !ok {
		return nil, c.unsupported(FeatureSwing)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return s.Swing(ctx, mode)
}

// Sequence starts or stops preset group, tour or trace n
func (c *Camera) Sequence(ctx context.Context, kind string, n int, mode string) (*ptz.Reply, error) {
	s, ok := c.ctrl.(sequencer)
	if !ok {
		return nil, c.unsupported(FeatureSequence)
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	switch kind {
	case SequenceGroup:
		return s.Group(ctx, n, mode)
	case SequenceTour:
		return s.Tour(ctx, n, mode)
	case SequenceTrace:
		return s.Trace(ctx, n, mode)
	}
	return nil, errors.Wrapf(ptz.ErrInvalidArgument, "sequence kind %q", kind)
}

// Aux runs an auxiliary command such as "WiperOn"
func (c *Camera) Aux(ctx context.Context, command string) (*ptz.Reply, error) {
	a, ok := c.ctrl.(auxController)
	if !ok {
		return nil, c.unsupported(FeatureAux)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return a.AuxControl(ctx, command)
}

// SetSpeed sets the head speed
func (c *Camera) SetSpeed(ctx context.Context, speed int) (*ptz.Reply, error) {
	s, ok := c.ctrl.(speedController)
	if !ok {
		return nil, c.unsupported(FeatureSpeed)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return s.SetSpeed(ctx, speed)
}

// Speed returns the head speed
func (c *Camera) Speed(ctx context.Context) (int, error) {
	s, ok := c.ctrl.(speedController)
	if !ok {
		return 0, c.unsupported(FeatureSpeed)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return s.Speed(ctx)
}

// GoToPresetNumber moves to preset n without resolving a name
func (c *Camera) GoToPresetNumber(ctx context.Context, n int) (*ptz.Reply, error) {
	p, ok := c.ctrl.(presetNumberer)
	if !ok {
		return nil, c.unsupported(FeaturePresetNumber)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return p.GoToPresetNumber(ctx, n)
}

// GoToDevicePreset moves to preset n stored in the head
func (c *Camera) GoToDevicePreset(ctx context.Context, n int) (*ptz.Reply, error) {
	p, ok := c.ctrl.(devicePresetter)
	if !ok {
		return nil, c.unsupported(FeatureDevicePresets)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return p.GoToDevicePreset(ctx, n)
}

// DevicePresets returns the raw listing of presets stored in the head
func (c *Camera) DevicePresets(ctx context.Context) (string, error) {
	p, ok := c.ctrl.(devicePresetter)
	if !ok {
		return "", c.unsupported(FeatureDevicePresets)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	reply, err := p.DevicePresets(ctx)
	if err != nil {
		return "", err
	}
	return reply.Body, nil
}

// DeviceInfo returns the device's own description of itself
func (c *Camera) DeviceInfo(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch d := c.ctrl.(type) {
	case infoReporter:
		return d.Info(ctx)
	case attributeReporter:
		reply, err := d.Attributes(ctx)
		if err != nil {
			return "", err
		}
		return reply.Body, nil
	}
	return "", c.unsupported(FeatureInfo)
}

// Applications returns the applications installed on the device
func (c *Camera) Applications(ctx context.Context) (string, error) {
	a, ok := c.ctrl.(appLister)
	if !ok {
		return "", c.unsupported(FeatureApplications)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	reply, err := a.Applications(ctx)
	if err != nil {
		return "", err
	}
	return reply.Body, nil
}
