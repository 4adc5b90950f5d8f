package relay

import "sort"

// Kind is the "type" field of a wire envelope.
type Kind string

// Client -> server.
const (
	KindJoinSession Kind = "join-session"
)

// Relayed between peers.
const (
	KindOffer            Kind = "offer"
	KindAnswer           Kind = "answer"
	KindICECandidate     Kind = "ice-candidate"
	KindPointerMove      Kind = "pointer-move"
	KindPointerShow      Kind = "pointer-show"
	KindPointerHide      Kind = "pointer-hide"
	KindDrawStart        Kind = "draw-start"
	KindDrawMove         Kind = "draw-move"
	KindDrawEnd          Kind = "draw-end"
	KindClearAnnotations Kind = "clear-annotations"
	KindFreezeFrame      Kind = "freeze-frame"
	KindUnfreezeFrame    Kind = "unfreeze-frame"
	KindSwitchCamera     Kind = "switch-camera"
	KindTakeScreenshot   Kind = "take-screenshot"
	KindScreenshotData   Kind = "screenshot-data"
	KindChatMessage      Kind = "chat-message"
)

// Server -> client.
const (
	KindPeerJoined       Kind = "peer-joined"
	KindPeerDisconnected Kind = "peer-disconnected"
	KindJoinResult       Kind = "join-result"
	KindSessionExpired   Kind = "session-expired"
	KindError            Kind = "error"
)

// relayTable maps each relayed kind to the payload fields copied to the
// receiving side. The envelope's "type" is always preserved and "sessionId"
// is always stripped.
var relayTable = map[Kind][]string{
	KindOffer:            {"offer"},
	KindAnswer:           {"answer"},
	KindICECandidate:     {"candidate"},
	KindPointerMove:      {"x", "y"},
	KindPointerShow:      nil,
	KindPointerHide:      nil,
	KindDrawStart:        {"x", "y", "color"},
	KindDrawMove:         {"x", "y"},
	KindDrawEnd:          nil,
	KindClearAnnotations: nil,
	KindFreezeFrame:      nil,
	KindUnfreezeFrame:    nil,
	KindSwitchCamera:     nil,
	KindTakeScreenshot:   nil,
	KindScreenshotData:   {"data"},
	KindChatMessage:      {"message", "sender"},
}

// ForwardedFields returns the payload fields relayed for kind and whether
// kind is relayable at all.
func ForwardedFields(kind Kind) ([]string, bool) {
	fields, ok := relayTable[kind]
	return fields, ok
}

// RelayKinds lists every relayable kind in lexical order.
func RelayKinds() []Kind {
	out := make([]Kind, 0, len(relayTable))
	for k := range relayTable {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
