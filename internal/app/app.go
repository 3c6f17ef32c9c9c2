// Package app wires configuration, AWS clients and the model invokers into the Lambda
// handlers shared by every cmd binary and the local dev server.
package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/aws/aws-lambda-go/events"

	"github.com/magicman/marv/internal/aoai"
	"github.com/magicman/marv/internal/api"
	"github.com/magicman/marv/internal/apierr"
	"github.com/magicman/marv/internal/awsutil"
	"github.com/magicman/marv/internal/config"
	"github.com/magicman/marv/internal/ddb"
	"github.com/magicman/marv/internal/httpx"
	"github.com/magicman/marv/internal/imaging"
	"github.com/magicman/marv/internal/ingest"
	"github.com/magicman/marv/internal/logger"
	"github.com/magicman/marv/internal/s3io"
	"github.com/magicman/marv/internal/triage"
)

// Sampling for the triage call. Validation sets its own per request.
const (
	triageMaxTokens   = 1000
	triageTemperature = 0.7
)

// App holds the application state, including configuration and the pipeline.
type App struct {
	env config.Env
	svc *triage.Service
	log *logger.Logger
}

// New builds the pipeline from env. AWS clients are only created when blob transport or the
// audit table is configured.
func New(ctx context.Context, env config.Env, log *logger.Logger) (*App, error) {
	if log == nil {
		log = logger.Nop()
	}
	client := aoai.NewClient(aoai.Options{
		Endpoint:   env.Endpoint,
		APIKey:     env.APIKey,
		APIVersion: env.APIVersion,
		Timeout:    env.HTTPTimeout,
		Log:        log,
	})
	chat := &aoai.ChatInvoker{
		Client:      client,
		Deployment:  env.Deployment,
		MaxTokens:   triageMaxTokens,
		Temperature: triageTemperature,
	}

	svc := &triage.Service{
		Env:       env,
		Triage:    chat,
		Validator: &aoai.ChatInvoker{Client: client, Deployment: env.ValidationDeployment},
		Images:    &imaging.Normalizer{Log: log},
		Log:       log,
	}
	if env.UsesAssistant() {
		svc.Triage = &aoai.AssistantInvoker{
			Client:      client,
			AssistantID: env.AssistantID,
			Poller:      &aoai.Poller{Interval: env.PollInterval, Timeout: env.RunTimeout},
		}
	}

	needBlob := env.ImageTransport == config.TransportBlob && env.BlobBucket != ""
	if needBlob || env.AuditTable != "" {
		cfg, endpoint, err := awsutil.Load(ctx, env.Region)
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		clients := awsutil.NewClients(cfg, endpoint)
		if needBlob {
			svc.Images.Uploader = s3io.NewStore(clients.S3, env.BlobBucket, env.BlobURLTTL)
		}
		if env.AuditTable != "" {
			svc.Audit = &ddb.Repo{DB: clients.Dynamo, Table: env.AuditTable}
		}
	}

	log.Info("app ready", "mode", env.Mode, "transport", env.ImageTransport, "deployment", env.Deployment,
		"audit", env.AuditTable != "", "has_key", env.APIKey != "")
	return &App{env: env, svc: svc, log: log}, nil
}

// NewWithService is used by tests and callers that assemble the pipeline themselves.
func NewWithService(env config.Env, svc *triage.Service, log *logger.Logger) *App {
	if log == nil {
		log = logger.Nop()
	}
	return &App{env: env, svc: svc, log: log}
}

// form runs the shared method, content type and ingest checks for the POST endpoints.
func (a *App) form(req events.APIGatewayV2HTTPRequest) (*ingest.Form, *events.APIGatewayV2HTTPResponse) {
	fail := func(resp events.APIGatewayV2HTTPResponse, _ error) (*ingest.Form, *events.APIGatewayV2HTTPResponse) {
		return nil, &resp
	}
	switch httpx.Method(req) {
	case http.MethodOptions:
		return fail(httpx.Preflight(req))
	case http.MethodPost:
	default:
		return fail(httpx.Error(req, http.StatusMethodNotAllowed, "method not allowed"))
	}
	if !ingest.IsMultipart(req.Headers) {
		return fail(httpx.Error(req, http.StatusBadRequest, "Content-Type must be multipart/form-data"))
	}
	form, err := ingest.Parse(req.Headers, req.Body, req.IsBase64Encoded, a.svc.Limits())
	if err != nil {
		return fail(a.fail(req, err))
	}
	return form, nil
}

func (a *App) fail(req events.APIGatewayV2HTTPRequest, err error) (events.APIGatewayV2HTTPResponse, error) {
	e := apierr.From(err)
	if e.Status >= http.StatusInternalServerError {
		a.log.Error("request failed", "path", req.RawPath, "kind", string(e.Kind), "error", e.Error())
	} else {
		a.log.Warn("request rejected", "path", req.RawPath, "kind", string(e.Kind), "error", e.Error())
	}
	return httpx.Fail(req, e, a.env.DebugErrors)
}

// Validate handles /validate.
func (a *App) Validate(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	form, resp := a.form(req)
	if resp != nil {
		return *resp, nil
	}
	v, err := a.svc.Validate(ctx, form)
	if err != nil {
		return a.fail(req, err)
	}
	return httpx.JSON(req, http.StatusOK, api.ValidateResponse{OK: true, Validation: v})
}

// Triage handles /triage.
func (a *App) Triage(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	form, resp := a.form(req)
	if resp != nil {
		return *resp, nil
	}
	out, err := a.svc.Assess(ctx, form)
	if err != nil {
		return a.fail(req, err)
	}
	return httpx.JSON(req, http.StatusOK, api.TriageResponse{
		OK:         true,
		ResultText: out.Record.RawText,
		Assessment: api.NewAssessment(out.Record),
		CaseID:     out.CaseID,
	})
}

// Diag reports the provider configuration without exposing the key.
func (a *App) Diag(_ context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	switch httpx.Method(req) {
	case http.MethodOptions:
		return httpx.Preflight(req)
	case http.MethodGet, http.MethodPost:
	default:
		return httpx.Error(req, http.StatusMethodNotAllowed, "method not allowed")
	}
	return httpx.JSON(req, http.StatusOK, api.DiagResponse{
		OK:          true,
		Endpoint:    a.env.Endpoint,
		Deployment:  a.env.Deployment,
		APIVersion:  a.env.APIVersion,
		Mode:        a.env.Mode,
		Transport:   a.env.ImageTransport,
		HasAPIKey:   a.env.APIKey != "",
		APIKey:      a.env.MaskedKey(),
		HasAssistID: a.env.AssistantID != "",
	})
}
