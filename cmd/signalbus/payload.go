package main

import (
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// buildPayload turns a command line argument into a JSON value. Valid JSON is
// used as is, anything else becomes a string. Each set is a path=value pair
// applied with sjson; values that are valid JSON are inserted raw.
func buildPayload(arg string, sets []string) (json.RawMessage, error) {
	var doc []byte
	switch {
	case arg == "" && len(sets) > 0:
		doc = []byte(`{}`)
	case arg == "":
		doc = []byte(`null`)
	case gjson.Valid(arg):
		doc = []byte(arg)
	default:
		b, err := json.Marshal(arg)
		if err != nil {
			return nil, err
		}
		doc = b
	}

	for _, set := range sets {
		path, value, ok := strings.Cut(set, "=")
		if !ok || path == "" {
			return nil, fmt.Errorf("invalid --set %q, want path=value", set)
		}
		var err error
		if gjson.Valid(value) {
			doc, err = sjson.SetRawBytes(doc, path, []byte(value))
		} else {
			doc, err = sjson.SetBytes(doc, path, value)
		}
		if err != nil {
			return nil, fmt.Errorf("set %s: %w", path, err)
		}
	}
	return doc, nil
}
