package onvif

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
	"github.com/use-go/onvif/media"
	onvif_ptz "github.com/use-go/onvif/ptz"
	xsd_onvif "github.com/use-go/onvif/xsd/onvif"
	"go.uber.org/zap"

	"ptz-bridge/internal/ptz"
)

const envelope = `<?xml version="1.0" encoding="UTF-8"?>
<s:Envelope xmlns:s="http://www.w3.org/2003/05/soap-envelope" xmlns:trt="http://www.onvif.org/ver10/media/wsdl" xmlns:tptz="http://www.onvif.org/ver20/ptz/wsdl" xmlns:tt="http://www.onvif.org/ver10/schema"><s:Body>%s</s:Body></s:Envelope>`

func soap(body string) string {
	return strings.Replace(envelope, "%s", body, 1)
}

var profilesReply = soap(`<trt:GetProfilesResponse>
<trt:Profiles token="Profile_1" fixed="true"><tt:Name>mainStream</tt:Name></trt:Profiles>
<trt:Profiles token="Profile_2" fixed="true"><tt:Name>subStream</tt:Name></trt:Profiles>
</trt:GetProfilesResponse>`)

var statusReply = soap(`<tptz:GetStatusResponse><tptz:PTZStatus><tt:Position>
<tt:PanTilt x="-0.25" y="0.5" space="http://www.onvif.org/ver10/tptz/PanTiltSpaces/PositionGenericSpace"/>
<tt:Zoom x="0.1" space="http://www.onvif.org/ver10/tptz/ZoomSpaces/PositionGenericSpace"/>
</tt:Position></tptz:PTZStatus></tptz:GetStatusResponse>`)

var notAuthorizedReply = soap(`<s:Fault><s:Code><s:Value>s:Sender</s:Value><s:Subcode><s:Value>ter:NotAuthorized</s:Value></s:Subcode></s:Code>
<s:Reason><s:Text xml:lang="en">Sender not authorized</s:Text></s:Reason></s:Fault>`)

var faultReply = soap(`<s:Fault><s:Code><s:Value>s:Sender</s:Value><s:Subcode><s:Value>ter:InvalidArgVal</s:Value></s:Subcode></s:Code>
<s:Reason><s:Text xml:lang="en">Invalid preset token</s:Text></s:Reason></s:Fault>`)

// fakeDevice answers SOAP requests from a preset table and records them
type fakeDevice struct {
	presets  []ptz.Preset
	code     int
	fault    string // reply body with code, faultReply if empty
	calls    []interface{}
	failWith error
}

func (f *fakeDevice) CallMethod(method interface{}) (*http.Response, error) {
	f.calls = append(f.calls, method)
	if f.failWith != nil {
		return nil, f.failWith
	}
	if f.code != 0 {
		if f.fault != "" {
			return response(f.code, f.fault), nil
		}
		return response(f.code, faultReply), nil
	}

	switch m := method.(type) {
	case media.GetProfiles:
		return response(http.StatusOK, profilesReply), nil
	case onvif_ptz.GetStatus:
		return response(http.StatusOK, statusReply), nil
	case onvif_ptz.GetPresets:
		var sb strings.Builder
		sb.WriteString("<tptz:GetPresetsResponse>")
		for _, p := range f.presets {
			sb.WriteString(`<tptz:Preset token="` + p.Token + `"><tt:Name>` + p.Name + `</tt:Name></tptz:Preset>`)
		}
		sb.WriteString("</tptz:GetPresetsResponse>")
		return response(http.StatusOK, soap(sb.String())), nil
	case onvif_ptz.SetPreset:
		token := "preset_" + string(m.PresetName)
		f.presets = append(f.presets, ptz.Preset{Name: string(m.PresetName), Token: token})
		return response(http.StatusOK, soap(`<tptz:SetPresetResponse><tptz:PresetToken>`+token+`</tptz:PresetToken></tptz:SetPresetResponse>`)), nil
	case onvif_ptz.RemovePreset:
		for i, p := range f.presets {
			if p.Token == string(m.PresetToken) {
				f.presets = append(f.presets[:i], f.presets[i+1:]...)
				break
			}
		}
	}
	return response(http.StatusOK, soap("")), nil
}

func (f *fakeDevice) last() interface{} {
	return f.calls[len(f.calls)-1]
}

func response(code int, body string) *http.Response {
	return &http.Response{
		StatusCode: code,
		Status:     http.StatusText(code),
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     http.Header{"Content-Type": {"application/soap+xml; charset=utf-8"}},
	}
}

func newTestCamera(t *testing.T, f *fakeDevice) *Camera {
	t.Helper()
	c, err := NewWithCaller(context.Background(), f, zap.NewNop())
	if err != nil {
		t.Fatalf("NewWithCaller: %v", err)
	}
	return c
}

func TestFirstProfileSelected(t *testing.T) {
	f := &fakeDevice{}
	c := newTestCamera(t, f)
	if got := c.ProfileToken(); got != "Profile_1" {
		t.Errorf("profile token = %q, want Profile_1", got)
	}
	if len(f.calls) != 1 {
		t.Errorf("got %d calls during construction, want 1", len(f.calls))
	}
}

func TestNoProfiles(t *testing.T) {
	if _, err := NewWithCaller(context.Background(), emptyProfiles{}, zap.NewNop()); !errors.Is(err, ptz.ErrMalformedReply) {
		t.Errorf("error = %v, want ErrMalformedReply", err)
	}
}

type emptyProfiles struct{}

func (emptyProfiles) CallMethod(interface{}) (*http.Response, error) {
	return response(http.StatusOK, soap("<trt:GetProfilesResponse></trt:GetProfilesResponse>")), nil
}

func TestStatus(t *testing.T) {
	c := newTestCamera(t, &fakeDevice{})
	got, err := c.Status(context.Background())
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	want := ptz.Status{Position: ptz.Position{Pan: -0.25, Tilt: 0.5, Zoom: 0.1}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("unexpected status: got(+)/want(-):\n%s", diff)
	}
}

func TestMoves(t *testing.T) {
	f := &fakeDevice{}
	c := newTestCamera(t, f)
	ctx := context.Background()
	token := xsd_onvif.ReferenceToken("Profile_1")

	if _, err := c.AbsoluteMove(ctx, ptz.Position{Pan: 0.5, Tilt: -0.2, Zoom: 0.3}); err != nil {
		t.Fatalf("AbsoluteMove: %v", err)
	}
	abs, ok := f.last().(onvif_ptz.AbsoluteMove)
	if !ok || abs.ProfileToken != token || abs.Position.PanTilt.X != 0.5 || abs.Position.PanTilt.Y != -0.2 || abs.Position.Zoom.X != 0.3 {
		t.Errorf("unexpected absolute move %+v", f.last())
	}

	if _, err := c.ContinuousMove(ctx, ptz.Velocity{Pan: -1, Tilt: 0, Zoom: 0.5}); err != nil {
		t.Fatalf("ContinuousMove: %v", err)
	}
	cont, ok := f.last().(onvif_ptz.ContinuousMove)
	if !ok || cont.ProfileToken != token || cont.Velocity.PanTilt.X != -1 || cont.Velocity.Zoom.X != 0.5 {
		t.Errorf("unexpected continuous move %+v", f.last())
	}

	// Relative moves go straight to the device, with nil axes as 0
	before := len(f.calls)
	if _, err := c.RelativeMove(ctx, ptz.Delta{Tilt: ptz.Float(0.1)}); err != nil {
		t.Fatalf("RelativeMove: %v", err)
	}
	if n := len(f.calls) - before; n != 1 {
		t.Errorf("RelativeMove made %d calls, want 1", n)
	}
	rel, ok := f.last().(onvif_ptz.RelativeMove)
	if !ok || rel.Translation.PanTilt.X != 0 || rel.Translation.PanTilt.Y != 0.1 || rel.Translation.Zoom.X != 0 {
		t.Errorf("unexpected relative move %+v", f.last())
	}

	if _, err := c.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	stop, ok := f.last().(onvif_ptz.Stop)
	if !ok || !bool(stop.PanTilt) || !bool(stop.Zoom) {
		t.Errorf("unexpected stop %+v", f.last())
	}

	if _, err := c.GoHome(ctx); err != nil {
		t.Fatalf("GoHome: %v", err)
	}
	if _, ok := f.last().(onvif_ptz.GotoHomePosition); !ok {
		t.Errorf("unexpected go home %+v", f.last())
	}
}

func TestSetHomeStops(t *testing.T) {
	f := &fakeDevice{}
	c := newTestCamera(t, f)

	if _, err := c.SetHome(context.Background()); err != nil {
		t.Fatalf("SetHome: %v", err)
	}
	calls := f.calls[1:]
	if len(calls) != 2 {
		t.Fatalf("got %d calls, want SetHomePosition and Stop", len(calls))
	}
	if _, ok := calls[0].(onvif_ptz.SetHomePosition); !ok {
		t.Errorf("first call %T, want SetHomePosition", calls[0])
	}
	if _, ok := calls[1].(onvif_ptz.Stop); !ok {
		t.Errorf("second call %T, want Stop", calls[1])
	}
}

func TestPresetRoundTrip(t *testing.T) {
	f := &fakeDevice{presets: []ptz.Preset{{Name: "Home", Token: "1"}, {Name: "Dock", Token: "2"}}}
	c := newTestCamera(t, f)
	ctx := context.Background()

	if _, err := c.SetPreset(ctx, "Gate"); err != nil {
		t.Fatalf("SetPreset: %v", err)
	}
	set, ok := f.last().(onvif_ptz.SetPreset)
	if !ok || string(set.PresetName) != "Gate" {
		t.Errorf("unexpected set %+v", f.last())
	}

	reply, err := c.SetPreset(ctx, "Gate")
	if reply != nil || err != nil {
		t.Errorf("second SetPreset = %v, %v; want nil, nil", reply, err)
	}
	if _, ok := f.last().(onvif_ptz.GetPresets); !ok {
		t.Errorf("second SetPreset sent %T", f.last())
	}

	presets, err := c.Presets(ctx)
	if err != nil {
		t.Fatalf("Presets: %v", err)
	}
	want := []ptz.Preset{
		{Index: 0, Name: "Home", Token: "1"},
		{Index: 1, Name: "Dock", Token: "2"},
		{Index: 2, Name: "Gate", Token: "preset_Gate"},
	}
	if diff := cmp.Diff(want, presets); diff != "" {
		t.Errorf("unexpected presets: got(+)/want(-):\n%s", diff)
	}

	if _, err := c.GoToPreset(ctx, "Dock"); err != nil {
		t.Fatalf("GoToPreset: %v", err)
	}
	gotoReq, ok := f.last().(onvif_ptz.GotoPreset)
	if !ok || gotoReq.PresetToken != "2" {
		t.Errorf("unexpected goto %+v", f.last())
	}

	if _, err := c.RemovePreset(ctx, "Gate"); err != nil {
		t.Fatalf("RemovePreset: %v", err)
	}
	rm, ok := f.last().(onvif_ptz.RemovePreset)
	if !ok || rm.PresetToken != "preset_Gate" {
		t.Errorf("unexpected remove %+v", f.last())
	}

	before := len(f.calls)
	reply, err = c.GoToPreset(ctx, "Gate")
	if reply != nil || err != nil {
		t.Errorf("GoToPreset(removed) = %v, %v; want nil, nil", reply, err)
	}
	if n := len(f.calls) - before; n != 1 {
		t.Errorf("GoToPreset(removed) made %d calls, want only the listing", n)
	}
}

func TestFaults(t *testing.T) {
	f := &fakeDevice{}
	c := newTestCamera(t, f)

	f.code = http.StatusBadRequest
	_, err := c.GoHome(context.Background())
	var de *ptz.DeviceError
	if !errors.As(err, &de) {
		t.Fatalf("error = %v, want DeviceError", err)
	}
	if de.Message != "Invalid preset token (ter:InvalidArgVal)" {
		t.Errorf("message = %q", de.Message)
	}
	if errors.Is(err, ptz.ErrUnauthorized) {
		t.Errorf("InvalidArgVal fault matched ErrUnauthorized")
	}

	// Rejected credentials come back as a fault under 400 or 500
	f.fault = notAuthorizedReply
	for _, code := range []int{http.StatusBadRequest, http.StatusInternalServerError} {
		f.code = code
		_, err := c.Status(context.Background())
		if !errors.Is(err, ptz.ErrUnauthorized) {
			t.Errorf("NotAuthorized fault with %d: error = %v, want ErrUnauthorized", code, err)
		}
		if !errors.As(err, &de) || de.Code != code {
			t.Errorf("NotAuthorized fault with %d: error = %v, want DeviceError", code, err)
		}
	}
	f.fault = ""

	f.code = http.StatusUnauthorized
	if _, err := c.Stop(context.Background()); !errors.Is(err, ptz.ErrUnauthorized) {
		t.Errorf("error = %v, want ErrUnauthorized", err)
	}

	f.code = 0
	f.failWith = errors.New("connection refused")
	if _, err := c.Stop(context.Background()); err == nil || errors.As(err, &de) {
		t.Errorf("transport failure = %v, want plain error", err)
	}
}

func TestCanceledContext(t *testing.T) {
	f := &fakeDevice{}
	c := newTestCamera(t, f)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	before := len(f.calls)
	if _, err := c.Stop(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
	if len(f.calls) != before {
		t.Error("request sent on canceled context")
	}
}
