package sunapi

import (
	"context"
	"net/url"
	"strconv"

	"ptz-bridge/internal/ptz"
)

// AreaZoom zooms into the rectangle (x1,y1)-(x2,y2) of a tile of the given
// pixel size
func (c *Camera) AreaZoom(ctx context.Context, x1, y1, x2, y2, tileWidth, tileHeight int) (*ptz.Reply, error) {
	q := url.Values{}
	q.Set("X1", strconv.Itoa(x1))
	q.Set("Y1", strconv.Itoa(y1))
	q.Set("X2", strconv.Itoa(x2))
	q.Set("Y2", strconv.Itoa(y2))
	q.Set("TileWidth", strconv.Itoa(tileWidth))
	q.Set("TileHeight", strconv.Itoa(tileHeight))
	return c.control(ctx, "areazoom", q)
}

// ZoomOut returns to 1x zoom
func (c *Camera) ZoomOut(ctx context.Context) (*ptz.Reply, error) {
	q := url.Values{}
	q.Set("Type", "1x")
	return c.control(ctx, "areazoom", q)
}

// Move moves continuously in direction (e.g. "Up", "DownLeft") at speed
func (c *Camera) Move(ctx context.Context, direction string, speed float64) (*ptz.Reply, error) {
	q := url.Values{}
	q.Set("Direction", direction)
	q.Set("MoveSpeed", strconv.FormatFloat(speed, 'f', -1, 64))
	return c.control(ctx, "move", q)
}

// AuxControl runs an auxiliary action: "WiperOn", "HeaterOn" or "HeaterOff"
func (c *Camera) AuxControl(ctx context.Context, command string) (*ptz.Reply, error) {
	if err := ptz.OneOf("aux command", command, "WiperOn", "HeaterOn", "HeaterOff"); err != nil {
		return nil, err
	}
	q := url.Values{}
	q.Set("Command", command)
	return c.control(ctx, "aux", q)
}

// Attributes returns the device attribute listing
func (c *Camera) Attributes(ctx context.Context) (*ptz.Reply, error) {
	return c.http.Get(ctx, cgiAttributes, url.Values{})
}

// Applications returns the installed Open SDK applications
func (c *Camera) Applications(ctx context.Context) (*ptz.Reply, error) {
	q := url.Values{}
	q.Set("msubmenu", "apps")
	q.Set("action", "view")
	return c.http.Get(ctx, cgiOpenSDK, q)
}

// Swing moves between the swing presets: "Pan", "Tilt", "PanTilt" or "Stop"
func (c *Camera) Swing(ctx context.Context, mode string) (*ptz.Reply, error) {
	if err := ptz.OneOf("swing mode", mode, "Pan", "Tilt", "PanTilt", "Stop"); err != nil {
		return nil, err
	}
	q := c.values()
	setNonEmpty(q, "Mode", mode)
	return c.control(ctx, "swing", q)
}

// Group starts or stops the preset group sequence group
func (c *Camera) Group(ctx context.Context, group int, mode string) (*ptz.Reply, error) {
	return c.sequence(ctx, "group", "Group", group, mode)
}

// Tour starts or stops the tour sequence tour
func (c *Camera) Tour(ctx context.Context, tour int, mode string) (*ptz.Reply, error) {
	return c.sequence(ctx, "tour", "Tour", tour, mode)
}

// Trace starts or stops the recorded trace trace
func (c *Camera) Trace(ctx context.Context, trace int, mode string) (*ptz.Reply, error) {
	return c.sequence(ctx, "trace", "Trace", trace, mode)
}

// sequence drives group, tour and trace playback; mode is "Start" or "Stop"
func (c *Camera) sequence(ctx context.Context, msubmenu, key string, n int, mode string) (*ptz.Reply, error) {
	if err := ptz.OneOf(msubmenu+" mode", mode, "Start", "Stop"); err != nil {
		return nil, err
	}
	q := c.values()
	q.Set(key, strconv.Itoa(n))
	setNonEmpty(q, "Mode", mode)
	return c.control(ctx, msubmenu, q)
}

func setNonEmpty(q url.Values, key, v string) {
	if v != "" {
		q.Set(key, v)
	}
}
