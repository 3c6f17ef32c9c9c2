package main

import (
	"encoding/base64"
	"io"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/gin-gonic/gin"

	"github.com/magicman/marv/internal/app"
	"github.com/magicman/marv/internal/httpx"
)

// newRouter mounts each handler on /api/<name> and /<name>, the paths the widget uses.
func newRouter(a *app.App) *gin.Engine {
	r := gin.Default()
	routes := map[string]httpx.Handler{
		"validate": a.Validate,
		"triage":   a.Triage,
		"diag":     a.Diag,
	}
	for name, h := range routes {
		lh := lambdaHandler(httpx.Recover(h))
		for _, p := range []string{"/" + name, "/api/" + name} {
			r.Any(p, lh)
		}
	}
	return r
}

// lambdaHandler adapts an API Gateway v2 handler to gin. The body is always passed base64
// encoded, the way API Gateway delivers binary payloads.
func lambdaHandler(h httpx.Handler) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "could not read body"})
			return
		}
		resp, err := h(c.Request.Context(), toEvent(c.Request, raw))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		writeEvent(c, resp)
	}
}

func toEvent(r *http.Request, body []byte) events.APIGatewayV2HTTPRequest {
	headers := make(map[string]string, len(r.Header))
	for k, v := range r.Header {
		headers[strings.ToLower(k)] = strings.Join(v, ",")
	}
	query := make(map[string]string, len(r.URL.Query()))
	for k, v := range r.URL.Query() {
		query[k] = strings.Join(v, ",")
	}
	ev := events.APIGatewayV2HTTPRequest{
		RawPath:               r.URL.Path,
		RawQueryString:        r.URL.RawQuery,
		Headers:               headers,
		QueryStringParameters: query,
		Body:                  base64.StdEncoding.EncodeToString(body),
		IsBase64Encoded:       true,
	}
	ev.RequestContext.HTTP.Method = r.Method
	ev.RequestContext.HTTP.Path = r.URL.Path
	ev.RequestContext.HTTP.SourceIP = r.RemoteAddr
	return ev
}

func writeEvent(c *gin.Context, resp events.APIGatewayV2HTTPResponse) {
	for k, v := range resp.Headers {
		c.Header(k, v)
	}
	body := []byte(resp.Body)
	if resp.IsBase64Encoded {
		if b, err := base64.StdEncoding.DecodeString(resp.Body); err == nil {
			body = b
		}
	}
	if len(body) == 0 {
		c.Status(resp.StatusCode)
		return
	}
	c.Data(resp.StatusCode, resp.Headers["Content-Type"], body)
}
