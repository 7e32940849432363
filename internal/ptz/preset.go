package ptz

// FindPreset returns the first preset called name in device order.
// Display names are not unique on the device; the first match wins.
func FindPreset(presets []Preset, name string) (Preset, bool) {
	for _, p := range presets {
		if p.Name == name {
			return p, true
		}
	}
	return Preset{}, false
}

// FreeIndex returns the lowest preset number >= first not used in presets.
func FreeIndex(presets []Preset, first int) int {
	used := make(map[int]bool, len(presets))
	for _, p := range presets {
		used[p.Index] = true
	}
	n := first
	for used[n] {
		n++
	}
	return n
}
