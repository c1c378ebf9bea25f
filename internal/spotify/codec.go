package spotify

import (
	"github.com/goccy/go-json"
)

// decodeFields decodes a JSON object body into its top-level fields. Anything
// that is not an object yields an empty map.
func decodeFields(body []byte) map[string]json.RawMessage {
	fields := map[string]json.RawMessage{}
	if len(body) == 0 {
		return fields
	}
	if err := json.Unmarshal(body, &fields); err != nil {
		return map[string]json.RawMessage{}
	}
	return fields
}

// decodeString returns the string value of a top-level field, or "" when the
// body is malformed, the field is missing, or it is not a string.
func decodeString(body []byte, field string) string {
	raw, ok := decodeFields(body)[field]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

// decodeInto fills dest from body, reporting whether decoding succeeded.
func decodeInto(body []byte, dest any) bool {
	if len(body) == 0 {
		return false
	}
	return json.Unmarshal(body, dest) == nil
}

// decodeDevices returns the addressable devices from a device list body.
// Devices without an id cannot be targeted and are skipped.
func decodeDevices(body []byte) []Device {
	var payload devicesResponse
	if !decodeInto(body, &payload) {
		return nil
	}
	devices := make([]Device, 0, len(payload.Devices))
	for _, d := range payload.Devices {
		if d.ID == "" {
			continue
		}
		devices = append(devices, d)
	}
	return devices
}

func encodePlayBody(uri string) []byte {
	data, err := json.Marshal(playRequest{ContextURI: uri})
	if err != nil {
		return nil
	}
	return data
}
