package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/pesaflow/pesaflow/internal/shared/logger"
)

func newCallbackTestEngine(reached *bool) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()

	auth := NewCallbackAuth(logger.NewNop(),
		NewSourceIPPredicate([]string{"196.201.214.0/24"}, logger.NewNop()),
		NewPathSecretPredicate("sekrit"),
	)

	group := engine.Group("/callback")
	group.Use(auth.Handler())
	group.POST("/:pathSecret", func(c *gin.Context) {
		*reached = true
		c.JSON(http.StatusOK, gin.H{"ResultCode": 0, "ResultDesc": "Accepted"})
	})
	return engine
}

func postCallback(engine *gin.Engine, path, remoteIP string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(`{}`))
	req.RemoteAddr = remoteIP + ":40512"
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestCallbackAuth_AllPredicatesPass(t *testing.T) {
	var reached bool
	engine := newCallbackTestEngine(&reached)

	w := postCallback(engine, "/callback/sekrit", "196.201.214.5")

	assert.True(t, reached)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCallbackAuth_WrongPathSecret(t *testing.T) {
	var reached bool
	engine := newCallbackTestEngine(&reached)

	w := postCallback(engine, "/callback/guess", "196.201.214.5")

	assert.False(t, reached, "handler must not run")
	// Indistinguishable from a success to the caller.
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ResultCode":0,"ResultDesc":"Accepted"}`, w.Body.String())
}

func TestCallbackAuth_DisallowedSourceIP(t *testing.T) {
	var reached bool
	engine := newCallbackTestEngine(&reached)

	w := postCallback(engine, "/callback/sekrit", "203.0.113.10")

	assert.False(t, reached)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ResultCode":0,"ResultDesc":"Accepted"}`, w.Body.String())
}

func TestSourceIPPredicate_InvalidCIDRIgnored(t *testing.T) {
	p := NewSourceIPPredicate([]string{"not-a-cidr", "10.0.0.0/8"}, logger.NewNop())
	assert.Len(t, p.networks, 1)
}
