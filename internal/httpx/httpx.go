// Package httpx provides helper functions for creating HTTP responses.
package httpx

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"

	"github.com/magicman/marv/internal/api"
	"github.com/magicman/marv/internal/apierr"
)

const (
	allowMethods = "GET, POST, OPTIONS"
	allowHeaders = "Content-Type, Authorization"
)

// Header retrieves a header value in a case-insensitive manner.
func Header(h map[string]string, key string) string {
	if len(h) == 0 {
		return ""
	}
	lk := strings.ToLower(key)
	for k, v := range h {
		if strings.ToLower(k) == lk {
			return v
		}
	}
	return ""
}

// CORS returns the headers attached to every response. The request origin is echoed when present.
func CORS(reqHeaders map[string]string) map[string]string {
	origin := strings.TrimSpace(Header(reqHeaders, "Origin"))
	if origin == "" {
		origin = "*"
	}
	h := map[string]string{
		"Access-Control-Allow-Origin":  origin,
		"Access-Control-Allow-Methods": allowMethods,
		"Access-Control-Allow-Headers": allowHeaders,
	}
	if origin != "*" {
		h["Vary"] = "Origin"
	}
	return h
}

// Method returns the request method, upper-cased.
func Method(req events.APIGatewayV2HTTPRequest) string {
	return strings.ToUpper(req.RequestContext.HTTP.Method)
}

// JSON creates a JSON HTTP response with the given status code and value.
func JSON(req events.APIGatewayV2HTTPRequest, status int, v any) (events.APIGatewayV2HTTPResponse, error) {
	b, err := json.Marshal(v)
	if err != nil {
		status = http.StatusInternalServerError
		b = []byte(`{"error":"response encoding failed"}`)
	}
	headers := CORS(req.Headers)
	headers["Content-Type"] = "application/json"
	return events.APIGatewayV2HTTPResponse{
		StatusCode: status,
		Headers:    headers,
		Body:       string(b),
	}, nil
}

// Error creates a JSON HTTP error response with the given status code and message.
func Error(req events.APIGatewayV2HTTPRequest, status int, msg string) (events.APIGatewayV2HTTPResponse, error) {
	return JSON(req, status, api.ErrorResponse{Error: msg})
}

// Fail converts err into a structured error body. With debug set the underlying error is attached.
func Fail(req events.APIGatewayV2HTTPRequest, err error, debug bool) (events.APIGatewayV2HTTPResponse, error) {
	e := apierr.From(err)
	body := api.ErrorResponse{Error: e.Message}
	if body.Error == "" {
		body.Error = e.Error()
	}
	if debug {
		body.Detail = e.Detail()
	}
	return JSON(req, e.Status, body)
}

// Preflight answers an OPTIONS request with CORS headers and no body.
func Preflight(req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	return events.APIGatewayV2HTTPResponse{
		StatusCode: http.StatusNoContent,
		Headers:    CORS(req.Headers),
	}, nil
}

// Handler is the Lambda handler shape used by every function.
type Handler func(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error)

// Recover turns a panic inside h into a 500 so nothing escapes the handler boundary.
func Recover(h Handler) Handler {
	return func(ctx context.Context, req events.APIGatewayV2HTTPRequest) (resp events.APIGatewayV2HTTPResponse, err error) {
		defer func() {
			if r := recover(); r != nil {
				resp, err = Fail(req, apierr.Internal(fmt.Errorf("panic: %v", r)), false)
			}
		}()
		return h(ctx, req)
	}
}
