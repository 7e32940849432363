// Package decode turns raw camera replies into typed values. It covers the
// three reply encodings in use: whitespace separated key=value text, markup
// documents and SOAP envelopes.
package decode

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"ptz-bridge/internal/ptz"
)

// Pair is a single key=value token
type Pair struct {
	Key   string
	Value string
}

// KeyValues splits body on whitespace and returns the key=value tokens in
// order. Tokens without '=' are skipped.
func KeyValues(body string) []Pair {
	var pairs []Pair
	for _, tok := range strings.Fields(body) {
		k, v, ok := strings.Cut(tok, "=")
		if !ok {
			continue
		}
		pairs = append(pairs, Pair{Key: k, Value: v})
	}
	return pairs
}

// Lookup returns the value of the first pair with key, ignoring case
func Lookup(pairs []Pair, key string) (string, bool) {
	for _, p := range pairs {
		if strings.EqualFold(p.Key, key) {
			return p.Value, true
		}
	}
	return "", false
}

// Floats parses the values of the first n key=value tokens of body as floats.
// The devices report positions in a fixed order, so keys are not checked.
func Floats(body string, n int) ([]float64, error) {
	pairs := KeyValues(body)
	if len(pairs) < n {
		return nil, errors.Wrapf(ptz.ErrMalformedReply, "want %d values, got %d in %q", n, len(pairs), body)
	}

	vals := make([]float64, n)
	for i := 0; i < n; i++ {
		v, err := strconv.ParseFloat(pairs[i].Value, 64)
		if err != nil {
			return nil, errors.Wrapf(ptz.ErrMalformedReply, "value %s=%q: %v", pairs[i].Key, pairs[i].Value, err)
		}
		vals[i] = v
	}
	return vals, nil
}

// TextStatus decodes a positional pan/tilt/zoom reply. With pulse set, a
// fourth zoom pulse value is required. Pan is normalized against fullTurn so
// that readings next to 0 and next to a full turn both decode as 0.
func TextStatus(body string, fullTurn float64, pulse bool) (ptz.Status, error) {
	n := 3
	if pulse {
		n = 4
	}
	vals, err := Floats(body, n)
	if err != nil {
		return ptz.Status{}, err
	}

	st := ptz.Status{
		Position: ptz.Position{
			Pan:  ptz.NormalizePan(vals[0], fullTurn),
			Tilt: vals[1],
			Zoom: vals[2],
		},
	}
	if pulse {
		st.ZoomPulse = ptz.Float(vals[3])
	}
	return st, nil
}

// Int parses the value of key in body as an integer
func Int(body, key string) (int, error) {
	v, ok := Lookup(KeyValues(body), key)
	if !ok {
		return 0, errors.Wrapf(ptz.ErrMalformedReply, "no %s in %q", key, body)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, errors.Wrapf(ptz.ErrMalformedReply, "%s=%q: %v", key, v, err)
	}
	return n, nil
}
