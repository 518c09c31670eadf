// controller/verify_controller.go
package controller

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	pdp_model "github.com/gatewarden/gatewarden/pdp/model"
	"github.com/gatewarden/gatewarden/service"
)

// VerifyController exposes the verification path to the fronting reverse
// proxy (nginx auth_request / Traefik forwardAuth style).
type VerifyController struct {
	service       service.IVerifyService
	sessionCookie string
}

func NewVerifyController(svc service.IVerifyService, sessionCookie string) *VerifyController {
	return &VerifyController{service: svc, sessionCookie: sessionCookie}
}

func (vc *VerifyController) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/verify", vc.Verify)
	r.POST("/verify", vc.Verify)
	r.GET("/healthz", vc.Healthz)
	r.GET("/statusz", vc.Statusz)
}

// Verify authorizes the forwarded request. 200 means the proxy may pass it
// upstream; 401 carries the structured denial, with the redirect target both
// in the body and in X-Gateway-Redirect for proxies that only read headers.
// No internal error detail ever leaks to the client.
func (vc *VerifyController) Verify(c *gin.Context) {
	req := vc.buildAccessRequest(c)
	decision := vc.service.Verify(c.Request.Context(), req)

	if decision.Allowed {
		c.Header("X-Gateway-Reason", decision.Reason.String())
		c.JSON(http.StatusOK, decision)
		return
	}

	if decision.Redirect != "" {
		c.Header("X-Gateway-Redirect", decision.Redirect)
	}
	c.Header("X-Gateway-Reason", decision.Reason.String())
	c.JSON(http.StatusUnauthorized, decision)
}

func (vc *VerifyController) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (vc *VerifyController) Statusz(c *gin.Context) {
	c.JSON(http.StatusOK, vc.service.Stats())
}

// buildAccessRequest reconstructs the client's request from the forwarded
// headers, falling back to the verify request itself when the proxy did not
// set them.
func (vc *VerifyController) buildAccessRequest(c *gin.Context) *pdp_model.AccessRequest {
	scheme := c.GetHeader("X-Forwarded-Proto")
	if scheme == "" {
		scheme = "http"
		if c.Request.TLS != nil {
			scheme = "https"
		}
	}
	host := c.GetHeader("X-Forwarded-Host")
	if host == "" {
		host = c.Request.Host
	}
	uri := c.GetHeader("X-Forwarded-Uri")
	if uri == "" {
		uri = c.Request.URL.RequestURI()
	}
	method := c.GetHeader("X-Forwarded-Method")
	if method == "" {
		method = c.Request.Method
	}

	path := uri
	query := make(url.Values)
	if i := strings.IndexByte(uri, '?'); i >= 0 {
		path = uri[:i]
		if parsed, err := url.ParseQuery(uri[i+1:]); err == nil {
			query = parsed
		}
	}

	req := &pdp_model.AccessRequest{
		Scheme:      scheme,
		Host:        host,
		Path:        path,
		Method:      method,
		ClientIP:    c.ClientIP(),
		TLS:         scheme == "https",
		OriginalURL: scheme + "://" + host + uri,
		Pincode:     c.GetHeader("X-Gateway-Pincode"),
		Password:    c.GetHeader("X-Gateway-Password"),
		EmailToken:  query.Get("email_token"),
	}

	if cookie, err := c.Cookie(vc.sessionCookie); err == nil {
		req.SessionID = cookie
	}

	if auth := c.GetHeader("Authorization"); auth != "" {
		if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
			req.AccessToken = token
		}
	}
	if req.AccessToken == "" {
		req.AccessToken = query.Get("access_token")
	}
	if user, secret, ok := c.Request.BasicAuth(); ok {
		req.BasicUser = user
		req.BasicSecret = secret
	}

	return req
}
