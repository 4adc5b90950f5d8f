package relay

import (
	"encoding/json"
	"fmt"
)

// envelope is a decoded client message. fields holds every top-level member
// as raw JSON so relayed payloads are passed through untouched.
type envelope struct {
	Type      Kind
	SessionID string
	Role      string
	fields    map[string]json.RawMessage
}

func parseEnvelope(data []byte) (envelope, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return envelope{}, fmt.Errorf("message must be a JSON object: %w", err)
	}
	if fields == nil {
		return envelope{}, fmt.Errorf("message must be a JSON object")
	}

	env := envelope{fields: fields}

	var typ string
	if err := stringField(fields, "type", &typ); err != nil {
		return envelope{}, err
	}
	if typ == "" {
		return envelope{}, fmt.Errorf("message missing type")
	}
	env.Type = Kind(typ)

	if err := stringField(fields, "sessionId", &env.SessionID); err != nil {
		return envelope{}, err
	}
	if err := stringField(fields, "role", &env.Role); err != nil {
		return envelope{}, err
	}
	return env, nil
}

func stringField(fields map[string]json.RawMessage, name string, dst *string) error {
	raw, ok := fields[name]
	if !ok || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%s must be a string", name)
	}
	return nil
}

// encodeRelay builds the outbound frame for a relayed kind.
func encodeRelay(kind Kind, env envelope, fields []string) ([]byte, error) {
	out := make(map[string]json.RawMessage, len(fields)+1)
	typ, err := json.Marshal(kind)
	if err != nil {
		return nil, err
	}
	out["type"] = typ
	for _, name := range fields {
		if raw, ok := env.fields[name]; ok {
			out[name] = raw
		}
	}
	return json.Marshal(out)
}

type roleNotice struct {
	Type Kind   `json:"type"`
	Role string `json:"role"`
}

type joinResultNotice struct {
	Type      Kind   `json:"type"`
	Status    string `json:"status"`
	SessionID string `json:"sessionId"`
	Role      string `json:"role,omitempty"`
}

type sessionExpiredNotice struct {
	Type      Kind   `json:"type"`
	SessionID string `json:"sessionId"`
}

type errorNotice struct {
	Type    Kind   `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func mustMarshal(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		// Notices are fixed structs of strings.
		panic(err)
	}
	return b
}

// EncodeError renders an error frame. Callers in the transport layer use it
// to report ProtocolErrors back to the sender.
func EncodeError(code, message string) []byte {
	return mustMarshal(errorNotice{Type: KindError, Code: code, Message: message})
}
