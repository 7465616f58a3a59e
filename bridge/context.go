package bridge

import (
	"encoding/json"
	"fmt"
	"reflect"
)

// Reply is the result of a successful call.
type Reply struct {
	method string
	value  any
}

// Method returns the invoked method name.
func (r *Reply) Method() string { return r.method }

// Value returns the result as delivered: json.RawMessage when it came from a
// Response, otherwise whatever the transport returned.
func (r *Reply) Value() any { return r.value }

// Raw returns the result as JSON.
func (r *Reply) Raw() (json.RawMessage, error) {
	raw, err := marshalValue(r.value)
	if err != nil {
		return nil, fmt.Errorf("encode result of %s: %w", r.method, err)
	}
	if len(raw) == 0 {
		return json.RawMessage("null"), nil
	}
	return raw, nil
}

// Bind decodes the result into v (a non-nil pointer).
func (r *Reply) Bind(v any) error {
	return bindValue(r.value, v)
}

// Payload is what an event handler receives.
type Payload struct {
	topic string
	raw   json.RawMessage
}

// Topic returns the event name.
func (p Payload) Topic() string { return p.topic }

// Raw returns the payload JSON; empty when the event had none.
func (p Payload) Raw() json.RawMessage { return p.raw }

// Bind decodes the payload into v.
func (p Payload) Bind(v any) error {
	return bindValue(p.raw, v)
}

// EventHandler receives host events for one topic.
type EventHandler func(p Payload)

func bindValue(value, v any) error {
	switch x := value.(type) {
	case json.RawMessage:
		return unmarshalRaw(x, v)
	case []byte:
		return unmarshalRaw(x, v)
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("bind target must be a non-nil pointer, got %T", v)
	}
	if value != nil {
		if src := reflect.ValueOf(value); src.Type().AssignableTo(rv.Elem().Type()) {
			rv.Elem().Set(src)
			return nil
		}
	}
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

func unmarshalRaw(raw []byte, v any) error {
	if len(raw) == 0 {
		raw = []byte("null")
	}
	return json.Unmarshal(raw, v)
}
