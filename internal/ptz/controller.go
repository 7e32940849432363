package ptz

import "context"

// Controller defines the uniform PTZ operation set shared by every camera
// protocol. Operations that resolve presets by name return a nil Reply and a
// nil error when no preset matches (or, for SetPreset, when one already does).
type Controller interface {
	// AbsoluteMove moves to an absolute position in device units
	AbsoluteMove(ctx context.Context, pos Position) (*Reply, error)

	// ContinuousMove starts velocity-controlled motion until Stop
	ContinuousMove(ctx context.Context, vel Velocity) (*Reply, error)

	// RelativeMove applies a positional delta to the current position
	RelativeMove(ctx context.Context, d Delta) (*Reply, error)

	// Stop stops all ongoing pan, tilt and zoom movement
	Stop(ctx context.Context) (*Reply, error)

	// Status queries the current position
	Status(ctx context.Context) (Status, error)

	// SetHome saves the current position as the home position
	SetHome(ctx context.Context) (*Reply, error)

	// GoHome moves to the home position
	GoHome(ctx context.Context) (*Reply, error)

	// SetPreset saves the current position under name
	SetPreset(ctx context.Context, name string) (*Reply, error)

	// RemovePreset deletes the first preset called name
	RemovePreset(ctx context.Context, name string) (*Reply, error)

	// GoToPreset moves to the first preset called name
	GoToPreset(ctx context.Context, name string) (*Reply, error)

	// Presets lists the presets stored on the device in device order
	Presets(ctx context.Context) ([]Preset, error)

	// Protocol names the control surface, e.g. "onvif"
	Protocol() string

	// Close releases the controller
	Close() error
}
