package protocol

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"
	ErrProtoVersion    = "E_PROTO_VERSION"

	// Quest/state layer.
	ErrUnknownQuest = "E_UNKNOWN_QUEST"
	ErrNotReady     = "E_NOT_READY"
	ErrTerminal     = "E_TERMINAL"
	ErrInternal     = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrProtoVersion:    {},
	ErrUnknownQuest:    {},
	ErrNotReady:        {},
	ErrTerminal:        {},
	ErrInternal:        {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
