// controller/verify_controller_test.go
package controller_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"

	"github.com/gatewarden/gatewarden/controller"
	logger "github.com/gatewarden/gatewarden/logging"
	pdp_model "github.com/gatewarden/gatewarden/pdp/model"
	"github.com/gatewarden/gatewarden/service"
	mock_service "github.com/gatewarden/gatewarden/test/service_mock"
)

func setupRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return gin.New()
}

func TestVerifyController(t *testing.T) {
	logger.InitLogger()
	defer logger.Sync()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockVerifyService := mock_service.NewMockIVerifyService(ctrl)
	verifyController := controller.NewVerifyController(mockVerifyService, "gw_session")
	router := setupRouter()
	api := router.Group("/")
	verifyController.RegisterRoutes(api)

	t.Run("Verify_Allowed", func(t *testing.T) {
		mockVerifyService.EXPECT().
			Verify(gomock.Any(), gomock.Any()).
			Return(pdp_model.Decision{Allowed: true, Reason: pdp_model.ReasonAllowedSession, ResourceID: "res-1"})

		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/verify", nil)
		req.Header.Set("X-Forwarded-Proto", "https")
		req.Header.Set("X-Forwarded-Host", "app.example.com")
		req.Header.Set("X-Forwarded-Uri", "/docs")
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "allowed_session", w.Header().Get("X-Gateway-Reason"))
	})

	t.Run("Verify_Denied_WithRedirect", func(t *testing.T) {
		mockVerifyService.EXPECT().
			Verify(gomock.Any(), gomock.Any()).
			Return(pdp_model.Decision{
				Allowed:    false,
				Reason:     pdp_model.ReasonNoSession,
				ResourceID: "res-1",
				Redirect:   "https://app.example.com/_gateway/challenge/res-1?redirect=https%3A%2F%2Fapp.example.com%2Fdocs",
			})

		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/verify", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Header().Get("X-Gateway-Redirect"), "/_gateway/challenge/res-1")

		var body pdp_model.Decision
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.False(t, body.Allowed)
		assert.Equal(t, pdp_model.ReasonNoSession, body.Reason)
	})

	t.Run("Verify_ForwardedCredentialsReachService", func(t *testing.T) {
		var captured *pdp_model.AccessRequest
		mockVerifyService.EXPECT().
			Verify(gomock.Any(), gomock.Any()).
			DoAndReturn(func(ctx interface{}, req *pdp_model.AccessRequest) pdp_model.Decision {
				captured = req
				return pdp_model.Decision{Allowed: true, Reason: pdp_model.ReasonAllowedAccessToken}
			})

		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/verify", nil)
		req.Header.Set("X-Forwarded-Proto", "https")
		req.Header.Set("X-Forwarded-Host", "api.example.com")
		req.Header.Set("X-Forwarded-Uri", "/v1/widgets?access_token=tok-123&email_token=mail-456")
		req.Header.Set("X-Forwarded-Method", "POST")
		req.AddCookie(&http.Cookie{Name: "gw_session", Value: "sess-789"})
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		if assert.NotNil(t, captured) {
			assert.Equal(t, "api.example.com", captured.Host)
			assert.Equal(t, "/v1/widgets", captured.Path)
			assert.Equal(t, "POST", captured.Method)
			assert.Equal(t, "tok-123", captured.AccessToken)
			assert.Equal(t, "mail-456", captured.EmailToken)
			assert.Equal(t, "sess-789", captured.SessionID)
		}
	})

	t.Run("Verify_BearerTokenWins", func(t *testing.T) {
		var captured *pdp_model.AccessRequest
		mockVerifyService.EXPECT().
			Verify(gomock.Any(), gomock.Any()).
			DoAndReturn(func(ctx interface{}, req *pdp_model.AccessRequest) pdp_model.Decision {
				captured = req
				return pdp_model.Decision{Allowed: true, Reason: pdp_model.ReasonAllowedAccessToken}
			})

		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/verify", nil)
		req.Header.Set("X-Forwarded-Uri", "/x?access_token=from-query")
		req.Header.Set("Authorization", "Bearer from-header")
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		if assert.NotNil(t, captured) {
			assert.Equal(t, "from-header", captured.AccessToken)
		}
	})

	t.Run("Healthz", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/healthz", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("Statusz", func(t *testing.T) {
		mockVerifyService.EXPECT().
			Stats().
			Return(service.Stats{})

		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/statusz", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})
}
