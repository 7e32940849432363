package decode

import (
	"bytes"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"ptz-bridge/internal/ptz"
)

// Text returns the visible text of a markup document. Plain text passes
// through unchanged apart from surrounding whitespace.
func Text(body []byte) string {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return strings.TrimSpace(string(body))
	}

	var sb strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			sb.WriteString(n.Data)
		case html.ElementNode:
			if n.Data == "script" || n.Data == "style" {
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return strings.TrimSpace(sb.String())
}

// IndexedPresets scans text line by line for preset entries. line must have
// two groups: the device preset number and the display name. Other lines,
// such as listing headers, are ignored. Order is preserved.
func IndexedPresets(text string, line *regexp.Regexp) []ptz.Preset {
	var presets []ptz.Preset
	for _, l := range strings.Split(text, "\n") {
		l = strings.TrimSpace(strings.TrimRight(l, "\r"))
		m := line.FindStringSubmatch(l)
		if m == nil {
			continue
		}
		idx, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		presets = append(presets, ptz.Preset{Index: idx, Name: m[2]})
	}
	return presets
}
