package bridge

import (
	"bytes"
	"encoding/json"
	"strings"
)

// ParseMaybeJSON returns the decoded JSON value when raw is text that looks like
// an object or array and parses; any other input comes back unchanged.
func ParseMaybeJSON(raw any) any {
	b, ok := textOf(raw)
	if !ok {
		return raw
	}
	b = bytes.TrimSpace(b)
	if !looksStructured(b) {
		return raw
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return raw
	}
	return v
}

// Decode classifies an inbound value. The second result is false for anything
// that is not a protocol message; callers drop those silently because the
// channel may carry foreign traffic.
func Decode(raw any) (Message, bool) {
	switch m := raw.(type) {
	case nil:
		return nil, false
	case *Request:
		return m, m != nil
	case *Response:
		return m, m != nil
	case *Event:
		return m, m != nil
	case Request:
		return &m, true
	case Response:
		return &m, true
	case Event:
		return &m, true
	}

	if b, ok := textOf(raw); ok {
		b = bytes.TrimSpace(b)
		if !looksStructured(b) {
			return nil, false
		}
		return decodeJSON(b)
	}

	// already structured (map, struct): classify from its JSON form
	b, err := json.Marshal(raw)
	if err != nil {
		return nil, false
	}
	return decodeJSON(b)
}

// Encode returns the wire form of m.
func Encode(m Message) ([]byte, error) {
	return json.Marshal(m)
}

// decodeJSON reads keys by exact name; encoding/json struct decoding would also
// accept "TYPE" or "__NATIVEEVENTS".
func decodeJSON(b []byte) (Message, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(b, &fields); err != nil {
		return nil, false
	}
	var tag bool
	if !field(fields, ProtocolTag, &tag) || !tag {
		return nil, false
	}
	var typ string
	if !field(fields, "type", &typ) {
		return nil, false
	}
	switch typ {
	case typRequest:
		req := &Request{}
		if !field(fields, "id", &req.ID) || !field(fields, "method", &req.Method) {
			return nil, false
		}
		if p := fields["params"]; len(p) > 0 {
			req.Params = p
		}
		return req, true
	case typResponse:
		resp := &Response{}
		if !field(fields, "id", &resp.ID) || !field(fields, "ok", &resp.OK) {
			return nil, false
		}
		if resp.OK {
			resp.Result = fields["result"]
		} else {
			resp.Error = errorShape(fields["error"])
		}
		return resp, true
	case typEvent:
		ev := &Event{Payload: fields["payload"]}
		if !field(fields, "name", &ev.Name) {
			return nil, false
		}
		return ev, true
	default:
		return nil, false
	}
}

// field decodes fields[key] into v; a missing key or null counts as absent.
func field(fields map[string]json.RawMessage, key string, v any) bool {
	raw, ok := fields[key]
	if !ok || string(raw) == "null" {
		return false
	}
	return json.Unmarshal(raw, v) == nil
}

// errorShape never fails: a failed Response must settle its call even when the
// host sends an error body of an unexpected shape.
func errorShape(raw json.RawMessage) *ErrorShape {
	shape := &ErrorShape{}
	if len(raw) == 0 || string(raw) == "null" {
		return shape
	}
	if err := json.Unmarshal(raw, shape); err == nil {
		return shape
	}
	var msg string
	if json.Unmarshal(raw, &msg) == nil {
		return &ErrorShape{Message: msg}
	}
	return &ErrorShape{Data: raw}
}

func textOf(raw any) ([]byte, bool) {
	switch v := raw.(type) {
	case string:
		return []byte(v), true
	case []byte:
		return v, true
	case json.RawMessage:
		return v, true
	}
	return nil, false
}

func looksStructured(b []byte) bool {
	return len(b) > 0 && strings.ContainsRune("{[", rune(b[0]))
}
