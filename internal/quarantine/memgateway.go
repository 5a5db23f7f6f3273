package quarantine

import (
	"context"
	"sync"
)

// RestrictedPrivilege is the identifier MemGateway uses for its restricted
// privilege.
const RestrictedPrivilege = "quarantined"

// MemGateway is an in-memory PrivilegeGateway for dry-run daemons and
// tests. It models per-community privilege sets and per-user grants; real
// deployments supply a platform-backed gateway instead.
type MemGateway struct {
	mu sync.Mutex

	// restricted: communityID -> restricted privilege id (once ensured)
	restricted map[string]string

	// known: communityID -> privilege ids that exist in the community
	known map[string]map[string]bool

	// grants: communityID -> userID -> held privilege ids
	grants map[string]map[string][]string

	// Notifications delivered, for inspection in tests
	Notifications []string
}

// NewMemGateway creates an empty in-memory gateway.
func NewMemGateway() *MemGateway {
	return &MemGateway{
		restricted: make(map[string]string),
		known:      make(map[string]map[string]bool),
		grants:     make(map[string]map[string][]string),
	}
}

func (g *MemGateway) knownSet(communityID string) map[string]bool {
	set, ok := g.known[communityID]
	if !ok {
		set = make(map[string]bool)
		g.known[communityID] = set
	}
	return set
}

// DefinePrivilege registers a privilege as existing in the community.
func (g *MemGateway) DefinePrivilege(communityID, priv string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.knownSet(communityID)[priv] = true
}

// DeletePrivilege removes a privilege from the community, simulating a
// role deleted while a user was quarantined.
func (g *MemGateway) DeletePrivilege(communityID, priv string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.knownSet(communityID), priv)
}

// Grant gives the user a privilege, registering it as known.
func (g *MemGateway) Grant(communityID, userID, priv string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.knownSet(communityID)[priv] = true
	users, ok := g.grants[communityID]
	if !ok {
		users = make(map[string][]string)
		g.grants[communityID] = users
	}
	if !contains(users[userID], priv) {
		users[userID] = append(users[userID], priv)
	}
}

func (g *MemGateway) EnsureRestricted(_ context.Context, communityID string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	id, ok := g.restricted[communityID]
	if !ok {
		id = RestrictedPrivilege
		g.restricted[communityID] = id
		g.knownSet(communityID)[id] = true
	}
	return id, nil
}

func (g *MemGateway) LookupRestricted(_ context.Context, communityID string) (string, bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	id, ok := g.restricted[communityID]
	return id, ok, nil
}

func (g *MemGateway) ListPrivileges(_ context.Context, communityID, userID string) ([]string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	users := g.grants[communityID]
	return append([]string(nil), users[userID]...), nil
}

func (g *MemGateway) CommunityPrivileges(_ context.Context, communityID string) ([]string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []string
	for p := range g.knownSet(communityID) {
		out = append(out, p)
	}
	return out, nil
}

func (g *MemGateway) SetPrivileges(_ context.Context, communityID, userID string, remove, add []string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	users, ok := g.grants[communityID]
	if !ok {
		users = make(map[string][]string)
		g.grants[communityID] = users
	}

	held := users[userID]
	var kept []string
	for _, p := range held {
		if !contains(remove, p) {
			kept = append(kept, p)
		}
	}
	for _, p := range add {
		g.knownSet(communityID)[p] = true
		if !contains(kept, p) {
			kept = append(kept, p)
		}
	}
	users[userID] = kept
	return nil
}

func (g *MemGateway) Notify(_ context.Context, userID, message string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Notifications = append(g.Notifications, userID+": "+message)
	return nil
}
