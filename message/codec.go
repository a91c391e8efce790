package message

import (
	"encoding/json"

	"github.com/G-Node/wdat2-sub001/errors"
)

// Encode serialises a request or reply for a transport boundary.
func Encode(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, errors.WrapInvalid(err, "message", "Encode", "marshal")
	}
	return b, nil
}

// DecodeRequest parses a request received over a transport.
func DecodeRequest(data []byte) (Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return Request{}, errors.WrapInvalid(err, "message", "DecodeRequest", "unmarshal")
	}
	return req, nil
}

// DecodeReply parses a reply received over a transport.
func DecodeReply(data []byte) (Reply, error) {
	var reply Reply
	if err := json.Unmarshal(data, &reply); err != nil {
		return Reply{}, errors.WrapInvalid(err, "message", "DecodeReply", "unmarshal")
	}
	return reply, nil
}

// Clone returns a deep copy of v made by a JSON round trip. Messages
// crossing into a worker are cloned so neither side shares memory with the
// other.
func Clone[T any](v T) (T, error) {
	var out T
	b, err := json.Marshal(v)
	if err != nil {
		return out, errors.WrapInvalid(err, "message", "Clone", "marshal")
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return out, errors.WrapInvalid(err, "message", "Clone", "unmarshal")
	}
	return out, nil
}
