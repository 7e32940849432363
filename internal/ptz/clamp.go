package ptz

import "math"

// Limits are the legal absolute ranges used to clamp relative moves.
// Pan is circular over [0, FullTurn).
type Limits struct {
	FullTurn float64
	TiltMin  float64
	TiltMax  float64
	ZoomMin  float64
	ZoomMax  float64
}

// DefaultLimits are the ranges of query-string protocol cameras: a full pan
// circle in degrees, tilt -20..90 degrees and zoom 1..40x.
var DefaultLimits = Limits{
	FullTurn: 360,
	TiltMin:  -20,
	TiltMax:  90,
	ZoomMin:  1,
	ZoomMax:  40,
}

// Clamp adjusts each non-nil delta so that cur+delta stays within l.
// Only deltas whose projection crosses a bound are changed. The returned
// Delta never aliases d.
func (l Limits) Clamp(cur Position, d Delta) Delta {
	var out Delta

	if d.Pan != nil {
		pan := *d.Pan
		// Going past a full turn either way is wrapped into the other direction.
		// Landing exactly on FullTurn is left alone (it is heading 0), and a
		// delta of a full turn or more is only wrapped once.
		if cur.Pan+pan > l.FullTurn {
			pan -= l.FullTurn
		} else if cur.Pan+pan < 0 {
			pan += l.FullTurn
		}
		out.Pan = &pan
	}

	if d.Tilt != nil {
		tilt := *d.Tilt
		if cur.Tilt+tilt > l.TiltMax {
			tilt = l.TiltMax - cur.Tilt
		} else if cur.Tilt+tilt < l.TiltMin {
			// Device firmware expects the magnitude of the current tilt here
			tilt = l.TiltMin + math.Abs(cur.Tilt)
		}
		out.Tilt = &tilt
	}

	if d.Zoom != nil {
		zoom := *d.Zoom
		if cur.Zoom+zoom > l.ZoomMax {
			zoom = l.ZoomMax - cur.Zoom
		} else if cur.Zoom+zoom < l.ZoomMin {
			zoom = l.ZoomMin - cur.Zoom
		}
		out.Zoom = &zoom
	}

	return out
}

// UseRelative reports whether a clamped relative move from cur is sent as a
// relative command. Away from pan zero the move is sent as an absolute
// command carrying the same delta values.
func UseRelative(cur Position) bool {
	return cur.Pan == 0
}

// PanEpsilon is how close to 0 or a full turn a reported pan must be to be
// read as exactly 0.
const PanEpsilon = 0.02

// NormalizePan returns 0 for readings within PanEpsilon of 0 or fullTurn.
// Both readings are the same heading and must compare equal.
func NormalizePan(pan, fullTurn float64) float64 {
	if math.Abs(fullTurn-pan) < PanEpsilon || math.Abs(pan) < PanEpsilon {
		return 0
	}
	return pan
}
