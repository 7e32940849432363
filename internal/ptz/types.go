package ptz

// Protocol names
const (
	ProtocolONVIF  = "onvif"
	ProtocolSUNAPI = "sunapi"
	ProtocolVAPIX  = "vapix"
)

// Position is an absolute pan/tilt/zoom triple in device units
type Position struct {
	Pan  float64 `json:"pan"`
	Tilt float64 `json:"tilt"`
	Zoom float64 `json:"zoom"`
}

// Velocity is a signed continuous-motion speed per axis
type Velocity struct {
	Pan  float64 `json:"pan"`
	Tilt float64 `json:"tilt"`
	Zoom float64 `json:"zoom"`
}

// Delta is a relative move. A nil axis is not moved.
type Delta struct {
	Pan  *float64 `json:"pan,omitempty"`
	Tilt *float64 `json:"tilt,omitempty"`
	Zoom *float64 `json:"zoom,omitempty"`
}

// Preset is a device-stored position. Index is the device-native preset
// number for the query-string protocols and the zero-based listing ordinal
// for ONVIF. Token is only set for ONVIF.
type Preset struct {
	Index int    `json:"index"`
	Name  string `json:"name"`
	Token string `json:"token,omitempty"`
}

// Status is a decoded position query. ZoomPulse is only reported by SUNAPI.
type Status struct {
	Position
	ZoomPulse *float64 `json:"zoom_pulse,omitempty"`
}

// Reply is the undecoded acknowledgement of a control command
type Reply struct {
	StatusCode int    `json:"status_code"`
	Body       string `json:"body,omitempty"`
}

// Float returns a pointer to v, for building a Delta
func Float(v float64) *float64 {
	return &v
}
