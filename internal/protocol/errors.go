package protocol

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"
	ErrAgentNotFound   = "E_AGENT_NOT_FOUND"

	// Composition (fatal to env construction).
	ErrAlreadyRegistered       = "E_ALREADY_REGISTERED"
	ErrInvalidSubAction        = "E_INVALID_SUB_ACTION"
	ErrDuplicateAction         = "E_DUPLICATE_ACTION"
	ErrUnsupportedContribution = "E_UNSUPPORTED_CONTRIBUTION"
	ErrNoLocation              = "E_NO_LOCATION"
	ErrMalformedIdentity       = "E_MALFORMED_IDENTITY"

	// Action decoding.
	ErrNotRegistered = "E_NOT_REGISTERED"
	ErrBadAction     = "E_BAD_ACTION"
	ErrInternal      = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest:         {},
	ErrAgentNotFound:           {},
	ErrAlreadyRegistered:       {},
	ErrInvalidSubAction:        {},
	ErrDuplicateAction:         {},
	ErrUnsupportedContribution: {},
	ErrNoLocation:              {},
	ErrMalformedIdentity:       {},
	ErrNotRegistered:           {},
	ErrBadAction:               {},
	ErrInternal:                {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
