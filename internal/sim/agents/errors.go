package agents

import (
	"errors"
	"fmt"

	"foundation.ai/internal/protocol"
)

var (
	// ErrNotRegistered is returned by action-space accessors before composition has run.
	ErrNotRegistered = errors.New("agent components not registered")
	// ErrBadAction is returned when a raw policy output does not fit the composed action space.
	ErrBadAction = errors.New("bad action")
)

// AlreadyRegisteredError reports a second composition attempt on one record.
type AlreadyRegisteredError struct {
	AgentID string
}

func (e *AlreadyRegisteredError) Error() string {
	return fmt.Sprintf("agent %s: components already registered", e.AgentID)
}

func (e *AlreadyRegisteredError) Code() string { return protocol.ErrAlreadyRegistered }

// InvalidSubActionNameError reports a grouped sub-action label containing the separator.
type InvalidSubActionNameError struct {
	Component string
	SubAction string
}

func (e *InvalidSubActionNameError) Error() string {
	return fmt.Sprintf("sub-action %q of component %s is illegally named (contains %q)", e.SubAction, e.Component, Separator)
}

func (e *InvalidSubActionNameError) Code() string { return protocol.ErrInvalidSubAction }

type DuplicateActionNameError struct {
	Name string
}

func (e *DuplicateActionNameError) Error() string {
	return fmt.Sprintf("duplicate action name %q", e.Name)
}

func (e *DuplicateActionNameError) Code() string { return protocol.ErrDuplicateAction }

// UnsupportedContributionError reports a contribution outside the closed set of shapes,
// or one that claims a valid shape but violates its invariants (negative counts).
type UnsupportedContributionError struct {
	Component string
	Got       string
}

func (e *UnsupportedContributionError) Error() string {
	return fmt.Sprintf("unexpected contribution (%s) from component %s", e.Got, e.Component)
}

func (e *UnsupportedContributionError) Code() string { return protocol.ErrUnsupportedContribution }

type NoLocationError struct {
	AgentID string
	Kind    Kind
}

func (e *NoLocationError) Error() string {
	return fmt.Sprintf("%s agent %s does not occupy a location", e.Kind, e.AgentID)
}

func (e *NoLocationError) Code() string { return protocol.ErrNoLocation }

type MalformedIdentityError struct {
	ID     string
	Reason string
}

func (e *MalformedIdentityError) Error() string {
	return fmt.Sprintf("malformed agent id %q: %s", e.ID, e.Reason)
}

func (e *MalformedIdentityError) Code() string { return protocol.ErrMalformedIdentity }

// ErrorCode maps err to a protocol error code. Unknown errors map to E_INTERNAL.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	var coded interface{ Code() string }
	if errors.As(err, &coded) {
		return coded.Code()
	}
	switch {
	case errors.Is(err, ErrNotRegistered):
		return protocol.ErrNotRegistered
	case errors.Is(err, ErrBadAction):
		return protocol.ErrBadAction
	}
	return protocol.ErrInternal
}
