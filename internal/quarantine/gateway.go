package quarantine

import (
	"context"
	"errors"
)

// Gateway call failures. Implementations wrap these so the controller and
// its callers can classify without knowing the platform.
var (
	// ErrPermissionDenied: the gateway lacks rights to mutate privileges.
	// Surfaced to the caller, never retried.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrGatewayUnavailable: transient remote failure. Surfaced as a
	// failure with no automatic retry; the caller may re-trigger on the
	// next violation.
	ErrGatewayUnavailable = errors.New("gateway unavailable")
)

// PrivilegeGateway is the platform-side privilege and notification surface
// the controller calls into. Calls are single-attempt and fallible; a
// timeout inside the gateway is handled identically to an explicit error.
// Cancellation is the gateway's responsibility via ctx.
type PrivilegeGateway interface {
	// EnsureRestricted returns the community's restricted privilege
	// identifier, creating it when missing.
	EnsureRestricted(ctx context.Context, communityID string) (string, error)

	// LookupRestricted returns the restricted privilege identifier
	// without creating it. exists is false when the community has none.
	LookupRestricted(ctx context.Context, communityID string) (id string, exists bool, err error)

	// ListPrivileges returns the user's current non-default privileges.
	ListPrivileges(ctx context.Context, communityID, userID string) ([]string, error)

	// CommunityPrivileges returns every privilege identifier that
	// currently exists in the community. Used on restore to skip
	// snapshotted privileges that have since been deleted.
	CommunityPrivileges(ctx context.Context, communityID string) ([]string, error)

	// SetPrivileges removes and grants privileges in one request.
	SetPrivileges(ctx context.Context, communityID, userID string, remove, add []string) error

	// Notify delivers a direct message to the user. Best-effort; the
	// controller logs failures and moves on.
	Notify(ctx context.Context, userID, message string) error
}
