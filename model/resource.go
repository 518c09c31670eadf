// model/resource.go
package model

// AuthMethods flags which verification methods a resource accepts, in the
// order the resolver tries them.
type AuthMethods struct {
	AccessToken bool `json:"access_token"`
	HeaderAuth  bool `json:"header_auth"`
	Pincode     bool `json:"pincode"`
	Password    bool `json:"password"`
	EmailToken  bool `json:"email_token"`
	SSO         bool `json:"sso"`
}

// Resource is a protected upstream identified by its public host name.
// Instances handed out by the resolver caches are shared between requests
// and must be treated as read-only.
type Resource struct {
	ID          string      `json:"id"`
	OrgID       string      `json:"org_id"`
	Host        string      `json:"host"`
	Blocked     bool        `json:"blocked"`
	RequireAuth bool        `json:"require_auth"`
	Methods     AuthMethods `json:"methods"`

	// Shared-secret credentials for the non-session methods. Hashes, never
	// plaintext.
	PincodeHash    string `json:"pincode_hash,omitempty"`
	PasswordHash   string `json:"password_hash,omitempty"`
	HeaderAuthUser string `json:"header_auth_user,omitempty"`
	HeaderAuthHash string `json:"header_auth_hash,omitempty"`
}
