package relay

import "fmt"

// Protocol error codes sent in error frames.
const (
	CodeBadMessage       = "bad_message"
	CodeUnknownKind      = "unknown_kind"
	CodeInvalidRole      = "invalid_role"
	CodeMissingSessionID = "missing_session_id"
	CodeAlreadyJoined    = "already_joined"
	CodeNotJoined        = "not_joined"
	CodeSessionMismatch  = "session_mismatch"
	CodeSuperseded       = "superseded"
	CodeClosed           = "closed"
)

// ProtocolError is a recoverable client mistake. The connection stays open;
// the transport reports it with an error frame.
type ProtocolError struct {
	Code    string
	Message string
}

func (e *ProtocolError) Error() string { return e.Code + ": " + e.Message }

func protocolErrorf(code, format string, args ...any) *ProtocolError {
	return &ProtocolError{Code: code, Message: fmt.Sprintf(format, args...)}
}
