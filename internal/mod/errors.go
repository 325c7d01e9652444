package mod

import (
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"
)

var (
	// ErrUnauthorized means Discord refused the enforcement call. No
	// record is written when enforcement fails this way.
	ErrUnauthorized = errors.New("mod: missing permissions for enforcement")

	// ErrUserNotBanned is returned by Unban when Discord has no active
	// ban for the target.
	ErrUserNotBanned = errors.New("mod: user is not banned")

	// ErrRoleNotFound is returned by Unmute when the guild has no Muted
	// role, meaning there is nothing to reverse.
	ErrRoleNotFound = errors.New("mod: muted role does not exist")

	// ErrRecordNotFound wraps storage misses on the read surface.
	ErrRecordNotFound = errors.New("mod: record not found")

	// ErrReversalFinal rejects attempts to un-pardon, re-mute or
	// re-ban through a record update. Reversals are one way.
	ErrReversalFinal = errors.New("mod: reversal cannot be undone")

	// ErrReasonTooLong rejects reasons over the audit log limit.
	ErrReasonTooLong = errors.New("mod: reason exceeds maximum length")

	// Muted role setup failures, distinguished so command replies can
	// tell the operator which permission is missing.
	ErrUnauthorizedFetchRoles      = errors.New("mod: cannot list guild roles")
	ErrUnauthorizedCreateRole      = errors.New("mod: cannot create muted role")
	ErrUnauthorizedChannelOverride = errors.New("mod: cannot set channel overrides for muted role")
)

// ModLogFailure classifies why a mod-log post did not land.
type ModLogFailure int

const (
	ModLogChannelMissing ModLogFailure = iota
	ModLogUnauthorized
	ModLogUnknown
)

// ModLogError reports a failed mod-log post for an action that
// otherwise succeeded. Callers surface it as a caveat, not a failure.
type ModLogError struct {
	Failure ModLogFailure
	Err     error
}

func (e *ModLogError) Error() string {
	switch e.Failure {
	case ModLogChannelMissing:
		return "mod log channel no longer exists"
	case ModLogUnauthorized:
		return "missing permissions to post in mod log channel"
	default:
		return fmt.Sprintf("mod log post failed: %v", e.Err)
	}
}

func (e *ModLogError) Unwrap() error { return e.Err }

// discordErrCode extracts the Discord API error code, or 0.
func discordErrCode(err error) int {
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Message != nil {
		return restErr.Message.Code
	}
	return 0
}

func isUnauthorized(err error) bool {
	return discordErrCode(err) == discordgo.ErrCodeMissingPermissions
}
