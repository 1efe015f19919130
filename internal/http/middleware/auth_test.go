package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/yungbote/bookmatch-backend/internal/platform/logger"
)

func signed(t *testing.T, method jwt.SigningMethod, key any, claims jwt.RegisteredClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	if err != nil {
		t.Fatalf("SignedString: %v", err)
	}
	return s
}

func TestRequireToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	secret := "s3cret"
	valid := signed(t, jwt.SigningMethodHS256, []byte(secret), jwt.RegisteredClaims{Subject: "ops", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))})
	expired := signed(t, jwt.SigningMethodHS256, []byte(secret), jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour))})
	wrongKey := signed(t, jwt.SigningMethodHS256, []byte("other"), jwt.RegisteredClaims{})
	wrongAlg := signed(t, jwt.SigningMethodHS512, []byte(secret), jwt.RegisteredClaims{})

	cases := []struct {
		name   string
		secret string
		header string
		want   int
	}{
		{name: "disabled", header: "", want: http.StatusOK},
		{name: "missing", secret: secret, want: http.StatusUnauthorized},
		{name: "valid", secret: secret, header: "Bearer " + valid, want: http.StatusOK},
		{name: "lowercase scheme", secret: secret, header: "bearer " + valid, want: http.StatusOK},
		{name: "expired", secret: secret, header: "Bearer " + expired, want: http.StatusUnauthorized},
		{name: "wrong key", secret: secret, header: "Bearer " + wrongKey, want: http.StatusUnauthorized},
		{name: "wrong alg", secret: secret, header: "Bearer " + wrongAlg, want: http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			am := NewAuthMiddleware(logger.Nop(), tc.secret)
			r := gin.New()
			var subject any
			r.POST("/x", am.RequireToken(), func(c *gin.Context) {
				subject, _ = c.Get(ContextKeySubject)
				c.Status(http.StatusOK)
			})
			req := httptest.NewRequest(http.MethodPost, "/x", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)
			if rec.Code != tc.want {
				t.Fatalf("status: want=%d got=%d body=%s", tc.want, rec.Code, rec.Body.String())
			}
			if tc.name == "valid" && subject != "ops" {
				t.Fatalf("subject: want=ops got=%v", subject)
			}
		})
	}
}
