package bridge

import (
	"encoding/json"
	"errors"
)

// ProtocolTag marks a JSON object as belonging to this protocol.
const ProtocolTag = "__nativeEvents"

const (
	typRequest  = "request"
	typResponse = "response"
	typEvent    = "event"
)

// MessageKind is the wire "type" of a message.
type MessageKind string

const (
	KindRequest  MessageKind = typRequest
	KindResponse MessageKind = typResponse
	KindEvent    MessageKind = typEvent
)

// Message is one of *Request, *Response or *Event.
type Message interface {
	Kind() MessageKind
	isMessage()
}

// Request: outbound call.
type Request struct {
	ID     string
	Method string
	Params any // json.RawMessage when decoded from the wire
}

// ErrorShape is the error body the host attaches to a failed Response.
type ErrorShape struct {
	Message string          `json:"message"`
	Code    string          `json:"code,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// UnmarshalJSON accepts a numeric code, as JSON-RPC style hosts send, and
// keeps its decimal text. A non-string message is kept as raw JSON text.
func (e *ErrorShape) UnmarshalJSON(b []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(b, &fields); err != nil {
		return err
	}
	if fields == nil {
		return errors.New("error body is not an object")
	}
	*e = ErrorShape{}
	if raw, ok := fields["message"]; ok && string(raw) != "null" {
		if json.Unmarshal(raw, &e.Message) != nil {
			e.Message = string(raw)
		}
	}
	if raw, ok := fields["code"]; ok && string(raw) != "null" {
		var n json.Number
		switch {
		case json.Unmarshal(raw, &e.Code) == nil:
		case json.Unmarshal(raw, &n) == nil:
			e.Code = n.String()
		default:
			e.Code = string(raw)
		}
	}
	if raw, ok := fields["data"]; ok {
		e.Data = raw
	}
	return nil
}

// Response: answer to exactly one Request, matched by ID.
type Response struct {
	ID     string
	OK     bool
	Result json.RawMessage
	Error  *ErrorShape
}

// Event: unsolicited host push addressed by topic Name.
type Event struct {
	Name    string
	Payload json.RawMessage
}

func (*Request) Kind() MessageKind  { return KindRequest }
func (*Response) Kind() MessageKind { return KindResponse }
func (*Event) Kind() MessageKind    { return KindEvent }

func (*Request) isMessage()  {}
func (*Response) isMessage() {}
func (*Event) isMessage()    {}

// wire forms keep the field order stable for hosts that compare text.
type requestWire struct {
	Tag    bool   `json:"__nativeEvents"`
	Type   string `json:"type"`
	ID     string `json:"id"`
	Method string `json:"method"`
	Params any    `json:"params,omitempty"`
}

type responseOKWire struct {
	Tag    bool            `json:"__nativeEvents"`
	Type   string          `json:"type"`
	ID     string          `json:"id"`
	OK     bool            `json:"ok"`
	Result json.RawMessage `json:"result"`
}

type responseErrWire struct {
	Tag   bool       `json:"__nativeEvents"`
	Type  string     `json:"type"`
	ID    string     `json:"id"`
	OK    bool       `json:"ok"`
	Error ErrorShape `json:"error"`
}

type eventWire struct {
	Tag     bool            `json:"__nativeEvents"`
	Type    string          `json:"type"`
	Name    string          `json:"name"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func (r *Request) MarshalJSON() ([]byte, error) {
	return json.Marshal(requestWire{Tag: true, Type: typRequest, ID: r.ID, Method: r.Method, Params: r.Params})
}

func (r *Response) MarshalJSON() ([]byte, error) {
	if r.OK {
		result := r.Result
		if len(result) == 0 {
			result = json.RawMessage("null")
		}
		return json.Marshal(responseOKWire{Tag: true, Type: typResponse, ID: r.ID, OK: true, Result: result})
	}
	var shape ErrorShape
	if r.Error != nil {
		shape = *r.Error
	}
	return json.Marshal(responseErrWire{Tag: true, Type: typResponse, ID: r.ID, Error: shape})
}

func (e *Event) MarshalJSON() ([]byte, error) {
	return json.Marshal(eventWire{Tag: true, Type: typEvent, Name: e.Name, Payload: e.Payload})
}

// Success builds an ok Response carrying result encoded as JSON.
func Success(id string, result any) (*Response, error) {
	raw, err := marshalValue(result)
	if err != nil {
		return nil, err
	}
	return &Response{ID: id, OK: true, Result: raw}, nil
}

// Failure builds a failed Response.
func Failure(id string, shape ErrorShape) *Response {
	return &Response{ID: id, Error: &shape}
}

// NewEvent builds an Event with payload encoded as JSON.
func NewEvent(name string, payload any) (*Event, error) {
	raw, err := marshalValue(payload)
	if err != nil {
		return nil, err
	}
	return &Event{Name: name, Payload: raw}, nil
}

// marshalValue: []byte / json.RawMessage must already hold JSON and pass through; nil stays empty.
func marshalValue(v any) (json.RawMessage, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case json.RawMessage:
		return x, nil
	case []byte:
		return json.RawMessage(x), nil
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return nil, err
		}
		return b, nil
	}
}
