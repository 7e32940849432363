package protocol

import (
	"encoding/json"

	"ptz-bridge/internal/camera"
	"ptz-bridge/internal/ptz"
)

// Message types
const (
	TypePing         = "ping"
	TypePong         = "pong"
	TypeStatus       = "status"
	TypeSelectCamera = "select_camera"
	TypeOffer        = "offer"
	TypeAnswer       = "answer"
	TypeICECandidate = "ice_candidate"
	TypePTZCommand   = "ptz_command"
	TypePTZStop      = "ptz_stop"
	TypePTZMove      = "ptz_move"
	TypePTZPreset    = "ptz_preset"
	TypePTZPresets   = "ptz_presets"
	TypePTZPosition  = "ptz_position"
	TypePTZResult    = "ptz_result"
	TypeError        = "error"
)

// Error codes
const (
	ErrCameraDisconnected = "CAMERA_DISCONNECTED"
	ErrCameraAuth         = "CAMERA_AUTH"
	ErrCameraError        = "CAMERA_ERROR"
	ErrUnknownCamera      = "UNKNOWN_CAMERA"
	ErrInvalidArgument    = "INVALID_ARGUMENT"
	ErrRTSP               = "RTSP_ERROR"
	ErrInvalidMessage     = "INVALID_MESSAGE"
	ErrRateLimited        = "RATE_LIMITED"
)

// Move modes
const (
	MoveAbsolute   = "absolute"
	MoveRelative   = "relative"
	MoveContinuous = "continuous"
)

// Preset actions
const (
	PresetGo     = "go"
	PresetSave   = "save"
	PresetRemove = "remove"
)

// Message is the base envelope for all WebSocket messages
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// PingPayload for ping messages
type PingPayload struct {
	Timestamp int64 `json:"timestamp"`
}

// PongPayload for pong messages
type PongPayload struct {
	ClientTimestamp int64 `json:"client_timestamp"`
	ServerTimestamp int64 `json:"server_timestamp"`
}

// StatusPayload for status messages
type StatusPayload struct {
	ClientID      string        `json:"client_id"`
	Cameras       []camera.Info `json:"cameras"`
	Selected      string        `json:"selected"`
	VideoProtocol string        `json:"video_protocol"`
}

// SelectCameraPayload switches the client's camera
type SelectCameraPayload struct {
	Camera string `json:"camera"`
}

// SDPPayload for offer/answer messages
type SDPPayload struct {
	SDP string `json:"sdp"`
}

// ICECandidatePayload for ICE candidate messages
type ICECandidatePayload struct {
	Candidate     string `json:"candidate"`
	SDPMid        string `json:"sdp_mid"`
	SDPMLineIndex uint16 `json:"sdp_mline_index"`
}

// PTZCommandPayload is a continuous velocity. All zero stops.
type PTZCommandPayload struct {
	Pan  float64 `json:"pan"`
	Tilt float64 `json:"tilt"`
	Zoom float64 `json:"zoom"`
}

// PTZMovePayload is an absolute, relative or continuous move. Axes left out
// are not moved by relative moves and are 0 otherwise.
type PTZMovePayload struct {
	Mode string   `json:"mode"`
	Pan  *float64 `json:"pan,omitempty"`
	Tilt *float64 `json:"tilt,omitempty"`
	Zoom *float64 `json:"zoom,omitempty"`
}

// PTZPresetPayload for preset go/save/remove
type PTZPresetPayload struct {
	Action string `json:"action"`
	Name   string `json:"name"`
}

// PTZPresetsPayload lists a camera's presets
type PTZPresetsPayload struct {
	Camera  string       `json:"camera"`
	Presets []ptz.Preset `json:"presets"`
}

// PTZPositionPayload reports a camera's position
type PTZPositionPayload struct {
	Camera string     `json:"camera"`
	Status ptz.Status `json:"status"`
}

// PTZResultPayload acknowledges a command. Applied is false when the command
// was a no-op, e.g. saving a preset name that already exists.
type PTZResultPayload struct {
	Camera  string     `json:"camera"`
	Action  string     `json:"action"`
	Applied bool       `json:"applied"`
	Reply   *ptz.Reply `json:"reply,omitempty"`
}

// ErrorPayload for error messages
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewMessage creates a new message with the given type and payload
func NewMessage(msgType string, payload any) (*Message, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Message{
		Type:    msgType,
		Payload: data,
	}, nil
}

// ParsePayload unmarshals the payload into the given struct
func (m *Message) ParsePayload(v any) error {
	return json.Unmarshal(m.Payload, v)
}

// Delta converts a relative move payload
func (p PTZMovePayload) Delta() ptz.Delta {
	return ptz.Delta{Pan: p.Pan, Tilt: p.Tilt, Zoom: p.Zoom}
}

// Position converts an absolute move payload
func (p PTZMovePayload) Position() ptz.Position {
	var pos ptz.Position
	if p.Pan != nil {
		pos.Pan = *p.Pan
	}
	if p.Tilt != nil {
		pos.Tilt = *p.Tilt
	}
	if p.Zoom != nil {
		pos.Zoom = *p.Zoom
	}
	return pos
}
