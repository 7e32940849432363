package sunapi

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"ptz-bridge/internal/ptz"
)

type request struct {
	CGI   string
	Query url.Values
}

// fakeCamera is a minimal SUNAPI device: it answers position queries with
// status and keeps a preset table.
type fakeCamera struct {
	mu       sync.Mutex
	status   string
	presets  []ptz.Preset
	code     int
	requests []request
}

func (f *fakeCamera) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	q := r.URL.Query()
	cgi := path.Base(r.URL.Path)
	f.requests = append(f.requests, request{CGI: cgi, Query: q})

	if f.code != 0 {
		if f.code == http.StatusUnauthorized {
			w.Header().Set("WWW-Authenticate", `Digest realm="iPolis", nonce="5f1c0a", qop="auth"`)
		}
		w.WriteHeader(f.code)
		w.Write([]byte("<html><body>" + http.StatusText(f.code) + "</body></html>"))
		return
	}

	switch {
	case cgi == cgiControl && q.Get("msubmenu") == "query":
		w.Write([]byte(f.status))
	case cgi == cgiConfig && q.Get("msubmenu") == "preset" && q.Get("action") == "view":
		for _, p := range f.presets {
			fmt.Fprintf(w, "Channel.0.Preset.%d.Name=%s\r\n", p.Index, p.Name)
		}
	case cgi == cgiConfig && q.Get("msubmenu") == "preset" && q.Get("action") == "add":
		n, _ := strconv.Atoi(q.Get("Preset"))
		f.presets = append(f.presets, ptz.Preset{Index: n, Name: q.Get("Name")})
		w.Write([]byte("OK"))
	case cgi == cgiConfig && q.Get("msubmenu") == "preset" && q.Get("action") == "remove":
		n, _ := strconv.Atoi(q.Get("Preset"))
		for i, p := range f.presets {
			if p.Index == n {
				f.presets = append(f.presets[:i], f.presets[i+1:]...)
				break
			}
		}
		w.Write([]byte("OK"))
	default:
		w.Write([]byte("OK"))
	}
}

func (f *fakeCamera) last() request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

func (f *fakeCamera) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func newTestCamera(t *testing.T, f *fakeCamera, cfg Config) *Camera {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)

	cfg.Address = srv.Listener.Addr().String()
	c, err := New(cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestStatus(t *testing.T) {
	f := &fakeCamera{status: "Pan=359.99\r\nTilt=12.5\r\nZoom=4\r\nZoomPulse=812\r\n"}
	c := newTestCamera(t, f, Config{})

	got, err := c.Status(context.Background())
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	want := ptz.Status{Position: ptz.Position{Pan: 0, Tilt: 12.5, Zoom: 4}, ZoomPulse: ptz.Float(812)}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("unexpected status: got(+)/want(-):\n%s", diff)
	}

	wantQuery := url.Values{"msubmenu": {"query"}, "action": {"view"}, "Query": {"Pan,Tilt,Zoom"}}
	if diff := cmp.Diff(request{cgiControl, wantQuery}, f.last()); diff != "" {
		t.Errorf("unexpected request: got(+)/want(-):\n%s", diff)
	}
}

func TestRelativeMove(t *testing.T) {
	for _, test := range []struct {
		name   string
		status string
		delta  ptz.Delta
		want   url.Values
	}{
		{
			name:   "clamped absolute branch",
			status: "Pan=358 Tilt=80 Zoom=35 ZoomPulse=3000",
			delta:  ptz.Delta{Pan: ptz.Float(5), Tilt: ptz.Float(15), Zoom: ptz.Float(10)},
			want: url.Values{
				"msubmenu": {"absolute"}, "action": {"control"},
				"Pan": {"-355"}, "Tilt": {"10"}, "Zoom": {"5"},
			},
		},
		{
			name:   "relative branch at pan zero",
			status: "Pan=359.99 Tilt=0 Zoom=1 ZoomPulse=0",
			delta:  ptz.Delta{Pan: ptz.Float(10)},
			want: url.Values{
				"msubmenu": {"relative"}, "action": {"control"},
				"Pan": {"10"},
			},
		},
		{
			name:   "within bounds untouched",
			status: "Pan=90 Tilt=0 Zoom=10 ZoomPulse=100",
			delta:  ptz.Delta{Pan: ptz.Float(-30), Tilt: ptz.Float(20), Zoom: ptz.Float(-2.5)},
			want: url.Values{
				"msubmenu": {"absolute"}, "action": {"control"},
				"Pan": {"-30"}, "Tilt": {"20"}, "Zoom": {"-2.5"},
			},
		},
		{
			name:   "pan below zero wraps",
			status: "Pan=10 Tilt=-15 Zoom=2 ZoomPulse=100",
			delta:  ptz.Delta{Pan: ptz.Float(-20), Tilt: ptz.Float(-10), Zoom: ptz.Float(-5)},
			want: url.Values{
				"msubmenu": {"absolute"}, "action": {"control"},
				"Pan": {"340"}, "Tilt": {"-5"}, "Zoom": {"-1"},
			},
		},
	} {
		t.Run(test.name, func(t *testing.T) {
			f := &fakeCamera{status: test.status}
			c := newTestCamera(t, f, Config{})

			if _, err := c.RelativeMove(context.Background(), test.delta); err != nil {
				t.Fatalf("RelativeMove: %v", err)
			}
			if n := f.count(); n != 2 {
				t.Errorf("got %d requests, want status query and one move", n)
			}
			if diff := cmp.Diff(request{cgiControl, test.want}, f.last()); diff != "" {
				t.Errorf("unexpected move: got(+)/want(-):\n%s", diff)
			}
		})
	}
}

func TestRelativeMoveStatusFailure(t *testing.T) {
	f := &fakeCamera{status: "Error=NotSupported"}
	c := newTestCamera(t, f, Config{})
	if _, err := c.RelativeMove(context.Background(), ptz.Delta{Pan: ptz.Float(1)}); !errors.Is(err, ptz.ErrMalformedReply) {
		t.Errorf("error = %v, want ErrMalformedReply", err)
	}
	if n := f.count(); n != 1 {
		t.Errorf("got %d requests, want no move after failed status", n)
	}
}

func TestMoves(t *testing.T) {
	ch := 0
	f := &fakeCamera{}
	c := newTestCamera(t, f, Config{Channel: &ch, NormalizedSpeed: true})
	ctx := context.Background()

	for _, test := range []struct {
		name string
		do   func() (*ptz.Reply, error)
		want request
	}{
		{
			name: "absolute",
			do:   func() (*ptz.Reply, error) { return c.AbsoluteMove(ctx, ptz.Position{Pan: 120, Tilt: 5.5, Zoom: 3}) },
			want: request{cgiControl, url.Values{"msubmenu": {"absolute"}, "action": {"control"}, "Channel": {"0"}, "Pan": {"120"}, "Tilt": {"5.5"}, "Zoom": {"3"}}},
		},
		{
			name: "continuous",
			do:   func() (*ptz.Reply, error) { return c.ContinuousMove(ctx, ptz.Velocity{Pan: -50, Tilt: 0, Zoom: 10}) },
			want: request{cgiControl, url.Values{"msubmenu": {"continuous"}, "action": {"control"}, "NormalizedSpeed": {"True"}, "Pan": {"-50"}, "Tilt": {"0"}, "Zoom": {"10"}}},
		},
		{
			name: "stop",
			do:   func() (*ptz.Reply, error) { return c.Stop(ctx) },
			want: request{cgiControl, url.Values{"msubmenu": {"stop"}, "action": {"control"}, "OperationType": {"All"}}},
		},
		{
			name: "go home",
			do:   func() (*ptz.Reply, error) { return c.GoHome(ctx) },
			want: request{cgiControl, url.Values{"msubmenu": {"home"}, "action": {"control"}, "Channel": {"0"}}},
		},
		{
			name: "set home",
			do:   func() (*ptz.Reply, error) { return c.SetHome(ctx) },
			want: request{cgiConfig, url.Values{"msubmenu": {"home"}, "action": {"set"}, "Channel": {"0"}}},
		},
		{
			name: "focus",
			do:   func() (*ptz.Reply, error) { return c.ContinuousFocus(ctx, "Far") },
			want: request{cgiControl, url.Values{"msubmenu": {"continuous"}, "action": {"control"}, "Focus": {"Far"}}},
		},
		{
			name: "zoom out",
			do:   func() (*ptz.Reply, error) { return c.ZoomOut(ctx) },
			want: request{cgiControl, url.Values{"msubmenu": {"areazoom"}, "action": {"control"}, "Type": {"1x"}}},
		},
		{
			name: "tour",
			do:   func() (*ptz.Reply, error) { return c.Tour(ctx, 2, "Start") },
			want: request{cgiControl, url.Values{"msubmenu": {"tour"}, "action": {"control"}, "Channel": {"0"}, "Tour": {"2"}, "Mode": {"Start"}}},
		},
		{
			name: "aux",
			do:   func() (*ptz.Reply, error) { return c.AuxControl(ctx, "WiperOn") },
			want: request{cgiControl, url.Values{"msubmenu": {"aux"}, "action": {"control"}, "Command": {"WiperOn"}}},
		},
		{
			name: "applications",
			do:   func() (*ptz.Reply, error) { return c.Applications(ctx) },
			want: request{cgiOpenSDK, url.Values{"msubmenu": {"apps"}, "action": {"view"}}},
		},
	} {
		t.Run(test.name, func(t *testing.T) {
			reply, err := test.do()
			if err != nil {
				t.Fatalf("call failed: %v", err)
			}
			if reply.StatusCode != http.StatusOK || reply.Body != "OK" {
				t.Errorf("reply = %+v", reply)
			}
			if diff := cmp.Diff(test.want, f.last()); diff != "" {
				t.Errorf("unexpected request: got(+)/want(-):\n%s", diff)
			}
		})
	}
}

func TestInvalidArguments(t *testing.T) {
	f := &fakeCamera{}
	c := newTestCamera(t, f, Config{})
	ctx := context.Background()

	for name, do := range map[string]func() (*ptz.Reply, error){
		"focus":       func() (*ptz.Reply, error) { return c.ContinuousFocus(ctx, "Closer") },
		"empty focus": func() (*ptz.Reply, error) { return c.ContinuousFocus(ctx, "") },
		"swing":       func() (*ptz.Reply, error) { return c.Swing(ctx, "Roll") },
		"group":       func() (*ptz.Reply, error) { return c.Group(ctx, 1, "Pause") },
		"tour":        func() (*ptz.Reply, error) { return c.Tour(ctx, 1, "start") },
		"trace":       func() (*ptz.Reply, error) { return c.Trace(ctx, 1, "Go") },
		"aux":         func() (*ptz.Reply, error) { return c.AuxControl(ctx, "WiperOff") },
	} {
		if _, err := do(); !errors.Is(err, ptz.ErrInvalidArgument) {
			t.Errorf("%s: error = %v, want ErrInvalidArgument", name, err)
		}
	}
	if n := f.count(); n != 0 {
		t.Errorf("invalid arguments reached the device: %d requests", n)
	}
}

func TestPresetRoundTrip(t *testing.T) {
	f := &fakeCamera{presets: []ptz.Preset{{Index: 1, Name: "Home"}, {Index: 2, Name: "Dock"}, {Index: 4, Name: "Road"}}}
	c := newTestCamera(t, f, Config{})
	ctx := context.Background()

	reply, err := c.SetPreset(ctx, "Gate")
	if err != nil || reply == nil {
		t.Fatalf("SetPreset = %v, %v", reply, err)
	}
	want := request{cgiConfig, url.Values{"msubmenu": {"preset"}, "action": {"add"}, "Preset": {"3"}, "Name": {"Gate"}}}
	if diff := cmp.Diff(want, f.last()); diff != "" {
		t.Errorf("unexpected add: got(+)/want(-):\n%s", diff)
	}

	// A second set with the same name is a no-op
	before := f.count()
	reply, err = c.SetPreset(ctx, "Gate")
	if err != nil || reply != nil {
		t.Errorf("second SetPreset = %v, %v; want nil, nil", reply, err)
	}
	if n := f.count() - before; n != 1 {
		t.Errorf("second SetPreset made %d requests, want only the listing", n)
	}

	presets, err := c.Presets(ctx)
	if err != nil {
		t.Fatalf("Presets: %v", err)
	}
	wantList := []ptz.Preset{{Index: 1, Name: "Home"}, {Index: 2, Name: "Dock"}, {Index: 4, Name: "Road"}, {Index: 3, Name: "Gate"}}
	if diff := cmp.Diff(wantList, presets); diff != "" {
		t.Errorf("unexpected presets: got(+)/want(-):\n%s", diff)
	}

	if _, err := c.GoToPreset(ctx, "Gate"); err != nil {
		t.Fatalf("GoToPreset: %v", err)
	}
	want = request{cgiControl, url.Values{"msubmenu": {"preset"}, "action": {"control"}, "Preset": {"3"}}}
	if diff := cmp.Diff(want, f.last()); diff != "" {
		t.Errorf("unexpected goto: got(+)/want(-):\n%s", diff)
	}

	if _, err := c.RemovePreset(ctx, "Gate"); err != nil {
		t.Fatalf("RemovePreset: %v", err)
	}
	presets, _ = c.Presets(ctx)
	if _, ok := ptz.FindPreset(presets, "Gate"); ok {
		t.Errorf("Gate still listed after remove: %+v", presets)
	}
}

func TestPresetMissing(t *testing.T) {
	f := &fakeCamera{presets: []ptz.Preset{{Index: 1, Name: "Home"}}}
	c := newTestCamera(t, f, Config{})
	ctx := context.Background()

	for name, do := range map[string]func(context.Context, string) (*ptz.Reply, error){
		"goto":   c.GoToPreset,
		"remove": c.RemovePreset,
	} {
		before := f.count()
		reply, err := do(ctx, "Nowhere")
		if reply != nil || err != nil {
			t.Errorf("%s = %v, %v; want nil, nil", name, reply, err)
		}
		if n := f.count() - before; n != 1 {
			t.Errorf("%s made %d requests, want only the listing", name, n)
		}
	}
}

func TestUnauthorized(t *testing.T) {
	f := &fakeCamera{code: http.StatusUnauthorized}
	c := newTestCamera(t, f, Config{})

	_, err := c.Stop(context.Background())
	if !errors.Is(err, ptz.ErrUnauthorized) {
		t.Fatalf("error = %v, want ErrUnauthorized", err)
	}
	if !strings.Contains(err.Error(), "Unauthorized") {
		t.Errorf("error text %q lacks device message", err)
	}
}
