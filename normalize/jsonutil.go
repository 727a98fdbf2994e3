package normalize

import "encoding/json"

// rawJSON is a local alias for json.RawMessage, used so the
// current-schema wire structs read a little closer to the legacy ones
// in legacy.go.
type rawJSON = json.RawMessage

func unmarshalBytes(raw []byte, dst any) error {
	return json.Unmarshal(raw, dst)
}

func unmarshalRawField(raw map[string]rawJSON, key string, dst any) error {
	msg, ok := raw[key]
	if !ok {
		return nil
	}
	return json.Unmarshal(msg, dst)
}
