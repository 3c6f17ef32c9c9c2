package main

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magicman/marv/internal/app"
	"github.com/magicman/marv/internal/config"
	"github.com/magicman/marv/internal/triage"
)

func init() { gin.SetMode(gin.TestMode) }

func TestLambdaHandlerRoundTrip(t *testing.T) {
	var seen events.APIGatewayV2HTTPRequest
	h := func(_ context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
		seen = req
		return events.APIGatewayV2HTTPResponse{
			StatusCode: http.StatusCreated,
			Headers:    map[string]string{"Content-Type": "application/json", "X-Case": "1"},
			Body:       `{"ok":true}`,
		}, nil
	}
	r := gin.New()
	r.POST("/x", lambdaHandler(h))

	req := httptest.NewRequest(http.MethodPost, "/x?a=1", bytes.NewBufferString("hello"))
	req.Header.Set("Content-Type", "text/plain")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.JSONEq(t, `{"ok":true}`, w.Body.String())
	assert.Equal(t, "1", w.Header().Get("X-Case"))

	assert.Equal(t, "POST", seen.RequestContext.HTTP.Method)
	assert.True(t, seen.IsBase64Encoded)
	assert.Equal(t, "aGVsbG8=", seen.Body)
	assert.Equal(t, "text/plain", seen.Headers["content-type"])
	assert.Equal(t, "1", seen.QueryStringParameters["a"])
}

func TestRouterServesPreflightAndDiag(t *testing.T) {
	env := config.Env{Endpoint: "https://e", APIKey: "abcdef", Deployment: "d", Mode: config.ModeChat}
	a := app.NewWithService(env, &triage.Service{Env: env}, nil)
	r := newRouter(a)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/api/triage", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/diag", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"apiKey":"abcd…"`)
}

func TestRouterTriageBadRequests(t *testing.T) {
	env := config.Env{Endpoint: "https://e", APIKey: "k", Deployment: "d", RequireImages: true, MaxImages: 9}
	a := app.NewWithService(env, &triage.Service{Env: env}, nil)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("description", "x")
	_ = mw.Close()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/triage", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	newRouter(a).ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "At least one image is required")

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/triage", bytes.NewBufferString(`{}`))
	req.Header.Set("Content-Type", "application/json")
	newRouter(a).ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
