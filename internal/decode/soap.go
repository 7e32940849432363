package decode

import (
	"encoding/xml"
	"strings"

	"github.com/pkg/errors"

	"ptz-bridge/internal/ptz"
)

// SOAP envelopes are matched on local names only, so any namespace prefix the
// device picks is accepted.

type profilesEnvelope struct {
	Body struct {
		GetProfilesResponse *struct {
			Profiles []struct {
				Token string `xml:"token,attr"`
				Name  string `xml:"Name"`
			} `xml:"Profiles"`
		} `xml:"GetProfilesResponse"`
	} `xml:"Body"`
}

type vector struct {
	X float64 `xml:"x,attr"`
	Y float64 `xml:"y,attr"`
}

type statusEnvelope struct {
	Body struct {
		GetStatusResponse *struct {
			PTZStatus struct {
				Position *struct {
					PanTilt vector `xml:"PanTilt"`
					Zoom    vector `xml:"Zoom"`
				} `xml:"Position"`
			} `xml:"PTZStatus"`
		} `xml:"GetStatusResponse"`
	} `xml:"Body"`
}

type presetsEnvelope struct {
	Body struct {
		GetPresetsResponse *struct {
			Preset []struct {
				Token string `xml:"token,attr"`
				Name  string `xml:"Name"`
			} `xml:"Preset"`
		} `xml:"GetPresetsResponse"`
	} `xml:"Body"`
}

type faultEnvelope struct {
	Body struct {
		Fault *struct {
			Reason struct {
				Text []string `xml:"Text"`
			} `xml:"Reason"`
			FaultString string `xml:"faultstring"`
			Subcode     string `xml:"Code>Subcode>Value"`
		} `xml:"Fault"`
	} `xml:"Body"`
}

// ProfileTokens decodes a media GetProfilesResponse into its profile tokens
func ProfileTokens(body []byte) ([]string, error) {
	var env profilesEnvelope
	if err := xml.Unmarshal(body, &env); err != nil {
		return nil, errors.Wrapf(ptz.ErrMalformedReply, "profiles: %v", err)
	}
	resp := env.Body.GetProfilesResponse
	if resp == nil {
		return nil, errors.Wrap(ptz.ErrMalformedReply, "profiles: no GetProfilesResponse")
	}

	tokens := make([]string, 0, len(resp.Profiles))
	for _, p := range resp.Profiles {
		tokens = append(tokens, p.Token)
	}
	return tokens, nil
}

// SOAPStatus decodes a GetStatusResponse position. Pan is reported as-is.
func SOAPStatus(body []byte) (ptz.Status, error) {
	var env statusEnvelope
	if err := xml.Unmarshal(body, &env); err != nil {
		return ptz.Status{}, errors.Wrapf(ptz.ErrMalformedReply, "status: %v", err)
	}
	resp := env.Body.GetStatusResponse
	if resp == nil || resp.PTZStatus.Position == nil {
		return ptz.Status{}, errors.Wrap(ptz.ErrMalformedReply, "status: no position")
	}

	pos := resp.PTZStatus.Position
	return ptz.Status{
		Position: ptz.Position{
			Pan:  pos.PanTilt.X,
			Tilt: pos.PanTilt.Y,
			Zoom: pos.Zoom.X,
		},
	}, nil
}

// SOAPPresets decodes a GetPresetsResponse. Index is the listing ordinal.
func SOAPPresets(body []byte) ([]ptz.Preset, error) {
	var env presetsEnvelope
	if err := xml.Unmarshal(body, &env); err != nil {
		return nil, errors.Wrapf(ptz.ErrMalformedReply, "presets: %v", err)
	}
	resp := env.Body.GetPresetsResponse
	if resp == nil {
		return nil, errors.Wrap(ptz.ErrMalformedReply, "presets: no GetPresetsResponse")
	}

	presets := make([]ptz.Preset, 0, len(resp.Preset))
	for i, p := range resp.Preset {
		presets = append(presets, ptz.Preset{Index: i, Name: p.Name, Token: p.Token})
	}
	return presets, nil
}

// Fault returns the reason of a SOAP fault, falling back to the visible
// text of body when it holds no fault.
func Fault(body []byte) string {
	var env faultEnvelope
	if err := xml.Unmarshal(body, &env); err == nil && env.Body.Fault != nil {
		f := env.Body.Fault
		reason := strings.TrimSpace(strings.Join(f.Reason.Text, " "))
		if reason == "" {
			reason = strings.TrimSpace(f.FaultString)
		}
		if sub := strings.TrimSpace(f.Subcode); sub != "" && reason != "" {
			return reason + " (" + sub + ")"
		}
		if reason != "" {
			return reason
		}
	}
	return Text(body)
}

// FaultSubcode returns the first subcode value of a SOAP 1.2
// fault, e.g. "ter:NotAuthorized", or "" when body holds no fault.
func FaultSubcode(body []byte) string {
	var env faultEnvelope
	if err := xml.Unmarshal(body, &env); err != nil || env.Body.Fault == nil {
		return ""
	}
	return strings.TrimSpace(env.Body.Fault.Subcode)
}

// NotAuthorized reports whether a fault subcode is the ONVIF authentication
// failure, whatever namespace prefix the device used.
func NotAuthorized(subcode string) bool {
	if i := strings.LastIndexByte(subcode, ':'); i >= 0 {
		subcode = subcode[i+1:]
	}
	return subcode == "NotAuthorized"
}
