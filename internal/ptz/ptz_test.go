package ptz

import (
	"fmt"
	"math"
	"net/http"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
)

func TestClampScenario(t *testing.T) {
	cur := Position{Pan: 358, Tilt: 80, Zoom: 35}
	got := DefaultLimits.Clamp(cur, Delta{Pan: Float(5), Tilt: Float(15), Zoom: Float(10)})
	want := Delta{Pan: Float(-355), Tilt: Float(10), Zoom: Float(5)}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("unexpected clamp: got(+)/want(-):\n%s", diff)
	}
	if UseRelative(cur) {
		t.Errorf("pan %v should dispatch as absolute", cur.Pan)
	}
	if final := cur.Pan + *got.Pan; final != 3 {
		t.Errorf("projected pan = %v, want 3", final)
	}
}

func TestClampPanStaysOnCircle(t *testing.T) {
	for _, p := range []float64{0.02, 1, 45.5, 179.99, 270, 358, 359.98} {
		for _, d := range []float64{-359.5, -200, -10.25, -0.5, 0.5, 10.25, 200, 359.5} {
			got := DefaultLimits.Clamp(Position{Pan: p}, Delta{Pan: Float(d)})
			proj := p + *got.Pan
			if proj < 0 || proj >= 360 {
				t.Errorf("pan %v delta %v: projected %v outside [0, 360)", p, d, proj)
			}
		}
	}
}

// The wrap triggers strictly past a full turn and is applied once.
func TestClampPanBoundary(t *testing.T) {
	for _, test := range []struct {
		pan, delta, want float64
	}{
		{350, 10, 10}, // lands on 360, the same heading as 0
		{350, 10.5, -349.5},
		{10, -10, -10}, // lands on 0
		{10, -10.5, 349.5},
		{10, 400, 40},   // one wrap leaves 50
		{10, -400, -40}, // one wrap leaves -30
		{0, 360, 360},
	} {
		got := *DefaultLimits.Clamp(Position{Pan: test.pan}, Delta{Pan: Float(test.delta)}).Pan
		if got != test.want {
			t.Errorf("pan %v delta %v: got %v, want %v", test.pan, test.delta, got, test.want)
		}
	}
}

func TestClampTilt(t *testing.T) {
	for _, tilt := range []float64{-20, -10, 0, 45, 80, 90} {
		for _, d := range []float64{-120, -30, -5, 0, 5, 30, 120} {
			got := *DefaultLimits.Clamp(Position{Tilt: tilt}, Delta{Tilt: Float(d)}).Tilt
			want := d
			switch {
			case tilt+d > 90:
				want = 90 - tilt
			case tilt+d < -20:
				want = -20 + math.Abs(tilt)
			}
			if got != want {
				t.Errorf("tilt %v delta %v: got %v, want %v", tilt, d, got, want)
			}
		}
	}
}

func TestClampZoom(t *testing.T) {
	for _, zoom := range []float64{1, 5, 20, 39, 40} {
		for _, d := range []float64{-50, -10, -1, 0, 1, 10, 50} {
			got := *DefaultLimits.Clamp(Position{Zoom: zoom}, Delta{Zoom: Float(d)}).Zoom
			want := d
			switch {
			case zoom+d > 40:
				want = 40 - zoom
			case zoom+d < 1:
				want = 1 - zoom
			}
			if got != want {
				t.Errorf("zoom %v delta %v: got %v, want %v", zoom, d, got, want)
			}
		}
	}
}

func TestClampNilAxes(t *testing.T) {
	d := Delta{Tilt: Float(200)}
	got := DefaultLimits.Clamp(Position{Pan: 10, Tilt: 10, Zoom: 10}, d)
	if got.Pan != nil || got.Zoom != nil {
		t.Errorf("nil axes should stay nil: %+v", got)
	}
	if *d.Tilt != 200 {
		t.Errorf("input delta modified: %v", *d.Tilt)
	}
}

func TestNormalizePan(t *testing.T) {
	for _, test := range []struct {
		in, want float64
	}{
		{359.99, 0},
		{359.981, 0},
		{0.01, 0},
		{0, 0},
		{360, 0},
		{-0.01, 0},
		{0.03, 0.03},
		{359.97, 359.97},
		{180, 180},
	} {
		if got := NormalizePan(test.in, 360); got != test.want {
			t.Errorf("NormalizePan(%v) = %v, want %v", test.in, got, test.want)
		}
	}
}

func TestUseRelative(t *testing.T) {
	if !UseRelative(Position{Pan: NormalizePan(359.99, 360)}) {
		t.Error("normalized zero pan should dispatch as relative")
	}
	if UseRelative(Position{Pan: 0.5}) {
		t.Error("non-zero pan should dispatch as absolute")
	}
}

func TestFindPreset(t *testing.T) {
	presets := []Preset{
		{Index: 1, Name: "Home"},
		{Index: 4, Name: "Gate"},
		{Index: 7, Name: "Gate"},
	}
	p, ok := FindPreset(presets, "Gate")
	if !ok || p.Index != 4 {
		t.Errorf("FindPreset = %+v, %v; want first Gate at index 4", p, ok)
	}
	if _, ok := FindPreset(presets, "gate"); ok {
		t.Error("match must be exact")
	}
	if _, ok := FindPreset(nil, "Gate"); ok {
		t.Error("empty list matched")
	}
}

func TestFreeIndex(t *testing.T) {
	presets := []Preset{{Index: 1}, {Index: 2}, {Index: 4}}
	if got := FreeIndex(presets, 1); got != 3 {
		t.Errorf("FreeIndex = %d, want 3", got)
	}
	if got := FreeIndex(nil, 1); got != 1 {
		t.Errorf("FreeIndex(nil) = %d, want 1", got)
	}
}

func TestDeviceErrorClassification(t *testing.T) {
	var err error = &DeviceError{Code: http.StatusUnauthorized, Message: "Unauthorized"}
	wrapped := errors.Wrap(err, "sunapi: status")
	if !errors.Is(wrapped, ErrUnauthorized) {
		t.Error("401 should match ErrUnauthorized")
	}
	var de *DeviceError
	if !errors.As(wrapped, &de) || de.Code != 401 {
		t.Errorf("errors.As = %v", de)
	}
	if errors.Is(&DeviceError{Code: 500}, ErrUnauthorized) {
		t.Error("500 should not match ErrUnauthorized")
	}
	if !errors.Is(errors.Wrap(&DeviceError{Code: 400, Unauthorized: true}, "onvif"), ErrUnauthorized) {
		t.Error("400 with rejected credentials should match ErrUnauthorized")
	}
}

func TestOneOf(t *testing.T) {
	for _, test := range []struct {
		v       string
		wantErr bool
	}{
		{"Near", false},
		{"", false},
		{"near", true},
		{"Sideways", true},
	} {
		t.Run(fmt.Sprintf("%q", test.v), func(t *testing.T) {
			err := OneOf("focus", test.v, "Near", "Far", "Stop")
			if (err != nil) != test.wantErr {
				t.Fatalf("OneOf(%q) = %v", test.v, err)
			}
			if err != nil && !errors.Is(err, ErrInvalidArgument) {
				t.Errorf("error %v should match ErrInvalidArgument", err)
			}
		})
	}
}
