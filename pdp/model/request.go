// pdp/model/request.go
package model

import "fmt"

// AccessRequest describes one inbound request as seen by the verification
// endpoint: where the client was headed plus whatever credentials the proxy
// forwarded along.
type AccessRequest struct {
	Scheme   string `json:"scheme"`
	Host     string `json:"host"`
	Path     string `json:"path"`
	Method   string `json:"method"`
	ClientIP string `json:"client_ip"`
	TLS      bool   `json:"tls"`

	// OriginalURL is the full URL the client requested, used to send the
	// user back to their destination after authenticating.
	OriginalURL string `json:"original_url"`

	SessionID   string `json:"-"`
	AccessToken string `json:"-"`
	BasicUser   string `json:"-"`
	BasicSecret string `json:"-"`
	Pincode     string `json:"-"`
	Password    string `json:"-"`
	EmailToken  string `json:"-"`
}

// URL returns the original request URL, reconstructing it from parts when
// the proxy did not forward one.
func (r *AccessRequest) URL() string {
	if r.OriginalURL != "" {
		return r.OriginalURL
	}
	scheme := r.Scheme
	if scheme == "" {
		scheme = "http"
	}
	return fmt.Sprintf("%s://%s%s", scheme, r.Host, r.Path)
}
