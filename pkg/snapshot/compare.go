package snapshot

import (
	"bytes"
	"encoding/json"
)

func equal(mode Comparison, previous, current []byte) bool {
	switch mode {
	case CompareCanonical:
		return canonicalEqual(previous, current)
	default:
		return bytes.Equal(previous, current)
	}
}

// canonicalEqual reports whether two JSON payloads encode the same
// structure regardless of object key order. Payloads that fail to parse
// fall back to byte comparison, so malformed data is never silently
// treated as unchanged.
func canonicalEqual(a, b []byte) bool {
	ca, ok := canonicalize(a)
	if !ok {
		return bytes.Equal(a, b)
	}
	cb, ok := canonicalize(b)
	if !ok {
		return bytes.Equal(a, b)
	}
	return bytes.Equal(ca, cb)
}

// canonicalize round-trips a JSON payload through the generic decoder;
// re-encoded objects have sorted keys, giving a stable form.
func canonicalize(data []byte) ([]byte, bool) {
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, false
	}
	out, err := json.Marshal(v)
	if err != nil {
		return nil, false
	}
	return out, true
}
