package bridge

import (
	"encoding/json"
	"errors"
	"strings"
)

// ErrorKind classifies why a call failed.
type ErrorKind string

const (
	KindRemote    ErrorKind = "remote"    // host answered ok:false
	KindTimeout   ErrorKind = "timeout"   // no response in time
	KindTransport ErrorKind = "transport" // send failed or its future failed
	KindUsage     ErrorKind = "usage"     // InvokeSync against an async host
	KindDestroyed ErrorKind = "destroyed" // manager torn down
)

// Codes sent by hosts and produced locally.
const (
	CodeTimeout   = "TIMEOUT"
	CodeDestroyed = "DESTROYED"
	CodeNotSync   = "NOT_SYNC"
	CodeNoReturn  = "NO_RETURN"
	CodeTransport = "TRANSPORT"
)

// Error is returned by every failed call.
type Error struct {
	Cause   error
	Kind    ErrorKind
	Method  string
	Message string
	Code    string
	Data    json.RawMessage
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("bridge: ")
	b.WriteString(string(e.Kind))
	if e.Method != "" {
		b.WriteString(" [")
		b.WriteString(e.Method)
		b.WriteByte(']')
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Code != "" {
		b.WriteString(" (code ")
		b.WriteString(e.Code)
		b.WriteByte(')')
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Cause }

// Is matches by kind, so errors.Is(err, ErrTimeout) works for any timeout.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Kind == t.Kind
	}
	return false
}

// Shape converts the error to its wire body.
func (e *Error) Shape() ErrorShape {
	return ErrorShape{Message: e.Message, Code: e.Code, Data: e.Data}
}

var (
	ErrRemote    = &Error{Kind: KindRemote}
	ErrTimeout   = &Error{Kind: KindTimeout}
	ErrTransport = &Error{Kind: KindTransport}
	ErrUsage     = &Error{Kind: KindUsage}
	ErrDestroyed = &Error{Kind: KindDestroyed}

	errDuplicateID = errors.New("call id reused while pending")
)

func remoteError(method string, shape *ErrorShape) *Error {
	e := &Error{Kind: KindRemote, Method: method}
	if shape != nil {
		e.Message = shape.Message
		e.Code = shape.Code
		e.Data = shape.Data
	}
	return e
}

func timeoutError(method string) *Error {
	return &Error{Kind: KindTimeout, Method: method, Message: "invoke timeout: " + method, Code: CodeTimeout}
}

func transportError(method string, cause error) *Error {
	return &Error{Kind: KindTransport, Method: method, Message: "send failed", Code: CodeTransport, Cause: cause}
}

func destroyedError(method, reason string) *Error {
	return &Error{Kind: KindDestroyed, Method: method, Message: reason, Code: CodeDestroyed}
}

func notSyncError(method string) *Error {
	return &Error{Kind: KindUsage, Method: method, Message: "invokeSync received a future for method: " + method, Code: CodeNotSync}
}

func noReturnError(method string) *Error {
	return &Error{Kind: KindUsage, Method: method, Message: "invokeSync got no return value for method: " + method, Code: CodeNoReturn}
}
