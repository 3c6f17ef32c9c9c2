// Package config loads configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/magicman/marv/internal/apierr"
)

// Triage provider modes.
const (
	ModeChat      = "chat"
	ModeAssistant = "assistant"
)

// Image transports.
const (
	TransportInline = "inline"
	TransportBlob   = "blob"
)

// Env holds the configuration values for the application.
type Env struct {
	Region string

	Endpoint             string
	APIKey               string
	Deployment           string
	ValidationDeployment string
	APIVersion           string
	AssistantID          string

	Mode           string
	ImageTransport string
	RequireImages  bool
	MaxImages      int
	MaxFileBytes   int64

	PollInterval time.Duration
	RunTimeout   time.Duration
	HTTPTimeout  time.Duration

	BlobBucket string
	BlobURLTTL time.Duration

	AuditTable string

	DebugErrors bool
	LogMode     string
	DevAddr     string
}

// Load reads the environment. Provider settings are checked per request with ProviderCheck.
func Load() Env {
	deployment := get("AZURE_OPENAI_DEPLOYMENT", "gpt-4o")
	return Env{
		Region: get("AWS_REGION", "eu-west-2"),

		Endpoint:             strings.TrimRight(get("AZURE_OPENAI_ENDPOINT", ""), "/"),
		APIKey:               get("AZURE_OPENAI_API_KEY", get("AZURE_OPENAI_KEY", "")),
		Deployment:           deployment,
		ValidationDeployment: get("AZURE_OPENAI_VALIDATION_DEPLOYMENT", deployment),
		APIVersion:           get("AZURE_OPENAI_API_VERSION", "2024-08-01-preview"),
		AssistantID:          get("AZURE_OPENAI_ASSISTANT_ID", ""),

		Mode:           strings.ToLower(get("TRIAGE_MODE", ModeChat)),
		ImageTransport: strings.ToLower(get("IMAGE_TRANSPORT", TransportInline)),
		RequireImages:  boolean("REQUIRE_IMAGES", true),
		MaxImages:      integer("MAX_IMAGES", 9),
		MaxFileBytes:   int64(integer("MAX_FILE_BYTES", 10*1024*1024)),

		PollInterval: time.Duration(integer("POLL_INTERVAL_MS", 1000)) * time.Millisecond,
		RunTimeout:   time.Duration(integer("RUN_TIMEOUT_SECONDS", 60)) * time.Second,
		HTTPTimeout:  time.Duration(integer("HTTP_TIMEOUT_SECONDS", 90)) * time.Second,

		BlobBucket: get("BLOB_BUCKET", ""),
		BlobURLTTL: time.Duration(integer("BLOB_URL_TTL_SECONDS", 3600)) * time.Second,

		AuditTable: get("AUDIT_TABLE", ""),

		DebugErrors: boolean("DEBUG_ERRORS", false),
		LogMode:     get("LOG_MODE", "prod"),
		DevAddr:     get("DEV_ADDR", ":7071"),
	}
}

// ProviderCheck reports missing provider or storage settings as a configuration error.
func (e Env) ProviderCheck(needAssistant bool) error {
	var missing []string
	if e.Endpoint == "" {
		missing = append(missing, "AZURE_OPENAI_ENDPOINT")
	}
	if e.APIKey == "" {
		missing = append(missing, "AZURE_OPENAI_API_KEY")
	}
	if e.Deployment == "" && !needAssistant {
		missing = append(missing, "AZURE_OPENAI_DEPLOYMENT")
	}
	if needAssistant && e.AssistantID == "" {
		missing = append(missing, "AZURE_OPENAI_ASSISTANT_ID")
	}
	if e.ImageTransport == TransportBlob && e.BlobBucket == "" {
		missing = append(missing, "BLOB_BUCKET")
	}
	if len(missing) == 0 {
		return nil
	}
	return apierr.Config(fmt.Sprintf("Missing %s config", strings.Join(missing, ", ")))
}

// UsesAssistant reports whether triage runs on the thread/run API.
func (e Env) UsesAssistant() bool { return e.Mode == ModeAssistant }

// MaskedKey returns a short prefix of the API key for diagnostics.
func (e Env) MaskedKey() string {
	if e.APIKey == "" {
		return "MISSING"
	}
	if len(e.APIKey) <= 4 {
		return "…"
	}
	return e.APIKey[:4] + "…"
}

// get returns the value of the environment variable k or def if not set.
func get(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func integer(k string, def int) int {
	v := get(k, "")
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil || i <= 0 {
		return def
	}
	return i
}

func boolean(k string, def bool) bool {
	switch strings.ToLower(get(k, "")) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return def
	}
}
