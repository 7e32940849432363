// Package ptztest provides an in-memory ptz.Controller for tests.
package ptztest

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"ptz-bridge/internal/ptz"
)

// Call is one recorded controller operation
type Call struct {
	Op   string
	Args string
}

// Fake is a ptz.Controller that keeps its position and presets in memory.
// Set Err to make every operation fail with it.
type Fake struct {
	Name string // returned by Protocol, "fake" if empty

	mu       sync.Mutex
	Position ptz.Position
	Home     ptz.Position
	List     []ptz.Preset
	Err      error
	Calls    []Call
	Closed   bool

	// Enter, if set, is called at the start of every operation
	Enter func(op string)
}

var _ ptz.Controller = (*Fake)(nil)

var ok = &ptz.Reply{StatusCode: http.StatusOK, Body: "OK"}

func (f *Fake) record(op string, format string, args ...interface{}) error {
	if f.Enter != nil {
		f.Enter(op)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, Call{Op: op, Args: fmt.Sprintf(format, args...)})
	return f.Err
}

// Recorded returns a copy of the calls made so far
func (f *Fake) Recorded() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.Calls...)
}

func (f *Fake) AbsoluteMove(ctx context.Context, pos ptz.Position) (*ptz.Reply, error) {
	if err := f.record("AbsoluteMove", "%v,%v,%v", pos.Pan, pos.Tilt, pos.Zoom); err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.Position = pos
	f.mu.Unlock()
	return ok, nil
}

func (f *Fake) ContinuousMove(ctx context.Context, vel ptz.Velocity) (*ptz.Reply, error) {
	if err := f.record("ContinuousMove", "%v,%v,%v", vel.Pan, vel.Tilt, vel.Zoom); err != nil {
		return nil, err
	}
	return ok, nil
}

func (f *Fake) RelativeMove(ctx context.Context, d ptz.Delta) (*ptz.Reply, error) {
	if err := f.record("RelativeMove", "%s,%s,%s", axis(d.Pan), axis(d.Tilt), axis(d.Zoom)); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if d.Pan != nil {
		f.Position.Pan += *d.Pan
	}
	if d.Tilt != nil {
		f.Position.Tilt += *d.Tilt
	}
	if d.Zoom != nil {
		f.Position.Zoom += *d.Zoom
	}
	return ok, nil
}

func axis(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprint(*v)
}

func (f *Fake) Stop(ctx context.Context) (*ptz.Reply, error) {
	if err := f.record("Stop", ""); err != nil {
		return nil, err
	}
	return ok, nil
}

func (f *Fake) Status(ctx context.Context) (ptz.Status, error) {
	if err := f.record("Status", ""); err != nil {
		return ptz.Status{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return ptz.Status{Position: f.Position}, nil
}

func (f *Fake) SetHome(ctx context.Context) (*ptz.Reply, error) {
	if err := f.record("SetHome", ""); err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.Home = f.Position
	f.mu.Unlock()
	return ok, nil
}

func (f *Fake) GoHome(ctx context.Context) (*ptz.Reply, error) {
	if err := f.record("GoHome", ""); err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.Position = f.Home
	f.mu.Unlock()
	return ok, nil
}

func (f *Fake) SetPreset(ctx context.Context, name string) (*ptz.Reply, error) {
	if err := f.record("SetPreset", "%s", name); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, found := ptz.FindPreset(f.List, name); found {
		return nil, nil
	}
	f.List = append(f.List, ptz.Preset{Index: ptz.FreeIndex(f.List, 1), Name: name})
	return ok, nil
}

func (f *Fake) RemovePreset(ctx context.Context, name string) (*ptz.Reply, error) {
	if err := f.record("RemovePreset", "%s", name); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, p := range f.List {
		if p.Name == name {
			f.List = append(f.List[:i], f.List[i+1:]...)
			return ok, nil
		}
	}
	return nil, nil
}

func (f *Fake) GoToPreset(ctx context.Context, name string) (*ptz.Reply, error) {
	if err := f.record("GoToPreset", "%s", name); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, found := ptz.FindPreset(f.List, name); !found {
		return nil, nil
	}
	return ok, nil
}

func (f *Fake) Presets(ctx context.Context) ([]ptz.Preset, error) {
	if err := f.record("Presets", ""); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ptz.Preset(nil), f.List...), nil
}

func (f *Fake) Protocol() string {
	if f.Name == "" {
		return "fake"
	}
	return f.Name
}

func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}
