package websocket

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformedFrame is returned for a client frame that is not a JSON object.
// It terminates the connection.
var ErrMalformedFrame = errors.New("malformed chat frame")

// PublishedEvent is the payload fanned out on a room channel and delivered to
// every participant unchanged.
type PublishedEvent struct {
	Username string `json:"username"`
	Message  string `json:"message"`
}

// decodeChatFrame extracts the chat text from a client frame. ok is false for
// a well-formed frame without usable content (absent, empty, null or not a
// string); such frames are skipped rather than treated as errors.
func decodeChatFrame(data []byte) (content string, ok bool, err error) {
	var frame map[string]any
	if err := json.Unmarshal(data, &frame); err != nil {
		return "", false, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	// "null" decodes into a nil map without error.
	if frame == nil {
		return "", false, fmt.Errorf("%w: not an object", ErrMalformedFrame)
	}

	content, ok = frame["message"].(string)
	if !ok || content == "" {
		return "", false, nil
	}
	return content, true, nil
}

func encodeEvent(username, message string) ([]byte, error) {
	return json.Marshal(PublishedEvent{Username: username, Message: message})
}
