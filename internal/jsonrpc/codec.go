package jsonrpc

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Parse decodes a single JSON-RPC 2.0 frame into a Request. The returned
// Request's ID is nil when the frame is a Notification (the "id" key was
// absent or literally null); it is non-nil for a Request.
//
// Parse returns a *ProtocolError with ErrorCodeParseError for malformed JSON
// and ErrorCodeInvalidRequest for any structural violation: a jsonrpc field
// other than exactly "2.0", a missing or non-string method, or a params
// value that is present but not a JSON object.
func Parse(data []byte) (*Request, error) {
	var raw struct {
		JSONRPCVersion json.RawMessage `json:"jsonrpc"`
		Method         json.RawMessage `json:"method"`
		Params         json.RawMessage `json:"params"`
		ID             json.RawMessage `json:"id"`
	}

	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, NewProtocolError(ErrorCodeParseError, fmt.Sprintf("Parse error: %v", err), nil)
	}

	var version string
	if len(raw.JSONRPCVersion) == 0 || json.Unmarshal(raw.JSONRPCVersion, &version) != nil || version != ProtocolVersion {
		return nil, NewProtocolError(ErrorCodeInvalidRequest, `Invalid Request: "jsonrpc" must be "2.0"`, nil)
	}

	var method string
	if len(raw.Method) == 0 || json.Unmarshal(raw.Method, &method) != nil || method == "" {
		return nil, NewProtocolError(ErrorCodeInvalidRequest, `Invalid Request: "method" must be a non-empty string`, nil)
	}

	params := raw.Params
	if len(params) == 0 {
		params = json.RawMessage(`{}`)
	} else if t := bytes.TrimSpace(params); len(t) == 0 || t[0] != '{' {
		return nil, NewProtocolError(ErrorCodeInvalidRequest, `Invalid Request: "params" must be an object`, nil)
	}

	req := &Request{JSONRPCVersion: ProtocolVersion, Method: method, Params: params}
	if len(raw.ID) > 0 && !bytes.Equal(bytes.TrimSpace(raw.ID), []byte("null")) {
		id := &RequestID{}
		if err := json.Unmarshal(raw.ID, id); err != nil {
			return nil, NewProtocolError(ErrorCodeInvalidRequest, `Invalid Request: "id" must be a string or number`, nil)
		}
		req.ID = id
	}
	return req, nil
}

// encode marshals v with HTML-escaping disabled (Go's encoder never escapes
// forward slashes; disabling HTML escaping additionally keeps literal "<",
// ">" and "&" bytes intact in tool text output) and trims the trailing
// newline json.Encoder always appends.
func encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// withMeta merges an optional "_meta" object into a result value that does
// not already carry one, by round-tripping through map[string]any. Handlers
// that embed their own metadata field (the common case) should pass a nil
// meta and skip this path entirely.
func withMeta(result any, meta map[string]any) (json.RawMessage, error) {
	if len(meta) == 0 {
		return json.Marshal(result)
	}
	b, err := json.Marshal(result)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		// Not an object; nothing sensible to merge into.
		return b, nil
	}
	if m == nil {
		m = map[string]any{}
	}
	m["_meta"] = meta
	return json.Marshal(m)
}

// EncodeResult builds and encodes a successful JSON-RPC response envelope.
func EncodeResult(id *RequestID, result any, meta map[string]any) ([]byte, error) {
	raw, err := withMeta(result, meta)
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return encode(&Response{JSONRPCVersion: ProtocolVersion, ID: id, Result: raw})
}

// EncodeError builds and encodes a JSON-RPC error response envelope. id may
// be nil (e.g. when a parse failure occurs before an id can be determined),
// in which case the envelope's id is emitted as JSON null.
func EncodeError(id *RequestID, code ErrorCode, message string, data any) ([]byte, error) {
	return encode(&Response{
		JSONRPCVersion: ProtocolVersion,
		ID:             id,
		Error:          &Error{Code: code, Message: message, Data: data},
	})
}

// EncodeNotification builds and encodes a JSON-RPC notification (a Request
// with no id).
func EncodeNotification(method string, params any, meta map[string]any) ([]byte, error) {
	raw, err := withMeta(params, meta)
	if err != nil {
		return nil, fmt.Errorf("marshal params: %w", err)
	}
	return encode(&Request{JSONRPCVersion: ProtocolVersion, Method: method, Params: raw})
}
