package conn

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/gorilla/websocket"
)

// Encode maps a payload to a websocket frame.
//
//   - []byte is sent as a binary frame unchanged.
//   - A string or json.RawMessage holding a JSON object or array is sent as text as-is.
//   - Anything else is encoded with encoding/json into a text frame.
func Encode(data any) (messageType int, payload []byte, err error) {
	switch v := data.(type) {
	case []byte:
		return websocket.BinaryMessage, v, nil
	case string:
		if IsJSON([]byte(v)) {
			return websocket.TextMessage, []byte(v), nil
		}
	case json.RawMessage:
		if IsJSON(v) {
			return websocket.TextMessage, v, nil
		}
	}

	payload, err = json.Marshal(data)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %w", ErrSerialization, err)
	}
	return websocket.TextMessage, payload, nil
}

// IsJSON reports whether b is a valid JSON object or array.
// Scalars such as numbers, strings and null are not considered JSON documents.
func IsJSON(b []byte) bool {
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) < 2 {
		return false
	}
	switch trimmed[0] {
	case '{', '[':
		return json.Valid(trimmed)
	default:
		return false
	}
}
