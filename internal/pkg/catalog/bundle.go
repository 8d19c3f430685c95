package catalog

import (
	"bytes"
	"encoding/json"
	"slices"

	"github.com/operator-framework/operator-registry/alpha/declcfg"
)

// BundlesEqual compares scalar fields exactly and list fields as unordered
// multisets.
func BundlesEqual(a, b declcfg.Bundle) bool {
	if a.Schema != b.Schema || a.Name != b.Name || a.Package != b.Package || a.Image != b.Image || a.CsvJSON != b.CsvJSON {
		return false
	}

	props := func(bundle declcfg.Bundle) []string {
		keys := make([]string, 0, len(bundle.Properties))
		for _, p := range bundle.Properties {
			keys = append(keys, p.Type+"\x00"+compactJSON(p.Value))
		}
		return keys
	}
	related := func(bundle declcfg.Bundle) []string {
		keys := make([]string, 0, len(bundle.RelatedImages))
		for _, ri := range bundle.RelatedImages {
			keys = append(keys, ri.Name+"\x00"+ri.Image)
		}
		return keys
	}
	return sameMultiset(props(a), props(b)) &&
		sameMultiset(related(a), related(b)) &&
		sameMultiset(a.Objects, b.Objects)
}

// sameMultiset sorts copies of both lists and compares them.
func sameMultiset(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	x := slices.Clone(a)
	y := slices.Clone(b)
	slices.Sort(x)
	slices.Sort(y)
	return slices.Equal(x, y)
}

func compactJSON(raw json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}
