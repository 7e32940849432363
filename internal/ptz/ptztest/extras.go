package ptztest

import (
	"context"

	"ptz-bridge/internal/ptz"
)

// FakeSUNAPI is a Fake with the optional operations of a SUNAPI camera
type FakeSUNAPI struct {
	Fake
}

func (f *FakeSUNAPI) ContinuousFocus(ctx context.Context, focus string) (*ptz.Reply, error) {
	return f.reply("ContinuousFocus", "%s", focus)
}

func (f *FakeSUNAPI) AreaZoom(ctx context.Context, x1, y1, x2, y2, tileWidth, tileHeight int) (*ptz.Reply, error) {
	return f.reply("AreaZoom", "%d,%d,%d,%d,%d,%d", x1, y1, x2, y2, tileWidth, tileHeight)
}

func (f *FakeSUNAPI) ZoomOut(ctx context.Context) (*ptz.Reply, error) {
	return f.reply("ZoomOut", "")
}

func (f *FakeSUNAPI) Move(ctx context.Context, direction string, speed float64) (*ptz.Reply, error) {
	return f.reply("Move", "%s,%v", direction, speed)
}

func (f *FakeSUNAPI) Swing(ctx context.Context, mode string) (*ptz.Reply, error) {
	return f.reply("Swing", "%s", mode)
}

func (f *FakeSUNAPI) Group(ctx context.Context, group int, mode string) (*ptz.Reply, error) {
	return f.reply("Group", "%d,%s", group, mode)
}

func (f *FakeSUNAPI) Tour(ctx context.Context, tour int, mode string) (*ptz.Reply, error) {
	return f.reply("Tour", "%d,%s", tour, mode)
}

func (f *FakeSUNAPI) Trace(ctx context.Context, trace int, mode string) (*ptz.Reply, error) {
	return f.reply("Trace", "%d,%s", trace, mode)
}

func (f *FakeSUNAPI) AuxControl(ctx context.Context, command string) (*ptz.Reply, error) {
	return f.reply("AuxControl", "%s", command)
}

func (f *FakeSUNAPI) Attributes(ctx context.Context) (*ptz.Reply, error) {
	if err := f.record("Attributes", ""); err != nil {
		return nil, err
	}
	return &ptz.Reply{StatusCode: 200, Body: "<attributes/>"}, nil
}

func (f *FakeSUNAPI) Applications(ctx context.Context) (*ptz.Reply, error) {
	if err := f.record("Applications", ""); err != nil {
		return nil, err
	}
	return &ptz.Reply{StatusCode: 200, Body: "App=none"}, nil
}

// FakeVAPIX is a Fake with the optional operations of a VAPIX camera
type FakeVAPIX struct {
	Fake

	speed int
}

func (f *FakeVAPIX) AreaZoom(ctx context.Context, x, y, zoom int) (*ptz.Reply, error) {
	return f.reply("AreaZoom", "%d,%d,%d", x, y, zoom)
}

func (f *FakeVAPIX) CenterMove(ctx context.Context, x, y int) (*ptz.Reply, error) {
	return f.reply("CenterMove", "%d,%d", x, y)
}

func (f *FakeVAPIX) Move(ctx context.Context, direction string) (*ptz.Reply, error) {
	return f.reply("Move", "%s", direction)
}

func (f *FakeVAPIX) SetSpeed(ctx context.Context, speed int) (*ptz.Reply, error) {
	reply, err := f.reply("SetSpeed", "%d", speed)
	if err == nil {
		f.mu.Lock()
		f.speed = speed
		f.mu.Unlock()
	}
	return reply, err
}

func (f *FakeVAPIX) Speed(ctx context.Context) (int, error) {
	if err := f.record("Speed", ""); err != nil {
		return 0, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.speed, nil
}

func (f *FakeVAPIX) GoToPresetNumber(ctx context.Context, n int) (*ptz.Reply, error) {
	return f.reply("GoToPresetNumber", "%d", n)
}

func (f *FakeVAPIX) GoToDevicePreset(ctx context.Context, n int) (*ptz.Reply, error) {
	return f.reply("GoToDevicePreset", "%d", n)
}

func (f *FakeVAPIX) DevicePresets(ctx context.Context) (*ptz.Reply, error) {
	if err := f.record("DevicePresets", ""); err != nil {
		return nil, err
	}
	return &ptz.Reply{StatusCode: 200, Body: "presetposno1=Door"}, nil
}

func (f *FakeVAPIX) Info(ctx context.Context) (string, error) {
	if err := f.record("Info", ""); err != nil {
		return "", err
	}
	return "ptz.cgi?move=<string>", nil
}

// reply records op and answers like the device accepted it
func (f *Fake) reply(op, format string, args ...interface{}) (*ptz.Reply, error) {
	if err := f.record(op, format, args...); err != nil {
		return nil, err
	}
	return ok, nil
}
