package auth

// UserInfo holds the identity claims resolved from a userinfo response.
// Groups uses set semantics; duplicates from the provider collapse.
type UserInfo struct {
	Username string
	Groups   map[string]struct{}
}

// GroupList returns the group set as a slice, for callers that serialize it.
func (u *UserInfo) GroupList() []string {
	groups := make([]string, 0, len(u.Groups))
	for g := range u.Groups {
		groups = append(groups, g)
	}
	return groups
}

// IdentityAssertion is the final result handed to the host session layer:
// who logged in and which groups they belong to. It carries no token
// material and no further internal state.
type IdentityAssertion struct {
	Username string
	Groups   []string
}

// NewIdentityAssertion wraps resolved user info into the assertion returned
// to the host. Any upstream failure already terminated the flow before this
// point, so there are no failure modes here.
func NewIdentityAssertion(info *UserInfo) *IdentityAssertion {
	return &IdentityAssertion{
		Username: info.Username,
		Groups:   info.GroupList(),
	}
}
