package identity

import "context"

// User is the caller identity resolved from a bearer credential before any
// core call runs. The core never parses credentials itself.
type User struct {
	UID         string `json:"uid"`
	DisplayName string `json:"displayName"`
}

// Anonymous is the identity attached when no credential is presented or
// verification fails on a public endpoint.
var Anonymous = User{UID: "anon", DisplayName: "User"}

// IsAnonymous reports whether the user carries a real identity.
func (u User) IsAnonymous() bool {
	return u.UID == "" || u.UID == Anonymous.UID
}

// Verifier resolves an opaque bearer token to a User.
type Verifier interface {
	Verify(ctx context.Context, token string) (User, error)
}
