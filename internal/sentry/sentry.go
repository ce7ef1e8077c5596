package sentry

import (
	"fmt"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/NeverVane/shellhistory/internal/config"
	"github.com/NeverVane/shellhistory/internal/logger"
)

// Client wraps an isolated Sentry hub
type Client struct {
	hub         *sentry.Hub
	config      config.SentryConfig
	logger      *logger.Logger
	initialized bool
	version     string
}

var (
	globalClient *Client
	clientMu     sync.RWMutex
)

// Initialize sets up the global client. A disabled config or an empty DSN
// leaves monitoring off without error.
func Initialize(cfg *config.Config, version string) error {
	client := &Client{
		config:  cfg.Sentry,
		logger:  logger.GetLogger().WithComponent("sentry"),
		version: version,
	}

	if err := client.initialize(); err != nil {
		return fmt.Errorf("failed to initialize Sentry client: %w", err)
	}

	clientMu.Lock()
	globalClient = client
	clientMu.Unlock()
	return nil
}

func (c *Client) initialize() error {
	if !c.config.Enabled {
		c.logger.Debug().Msg("Sentry monitoring disabled")
		return nil
	}
	if c.config.DSN == "" {
		c.logger.Warn().Msg("Sentry DSN not configured, monitoring disabled")
		return nil
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              c.config.DSN,
		Environment:      c.config.Environment,
		Release:          "shist@" + c.version,
		SampleRate:       c.config.SampleRate,
		Debug:            c.config.Debug,
		AttachStacktrace: true,
		BeforeSend: func(event *sentry.Event, hint *sentry.EventHint) *sentry.Event {
			return sanitizeEvent(event)
		},
	})
	if err != nil {
		return fmt.Errorf("failed to initialize Sentry SDK: %w", err)
	}

	c.hub = sentry.CurrentHub().Clone()
	c.hub.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetTag("app.name", "shist")
		scope.SetTag("app.version", c.version)
		scope.SetTag("os", runtime.GOOS)
		scope.SetTag("arch", runtime.GOARCH)
	})
	c.initialized = true

	c.logger.Info().
		Str("environment", c.config.Environment).
		Float64("sample_rate", c.config.SampleRate).
		Msg("Sentry monitoring initialized")
	return nil
}

func current() *Client {
	clientMu.RLock()
	defer clientMu.RUnlock()
	return globalClient
}

// IsEnabled returns whether Sentry monitoring is active
func IsEnabled() bool {
	c := current()
	return c != nil && c.initialized
}

// CaptureError reports err tagged with the component and operation that hit it
func CaptureError(err error, component, operation string) {
	c := current()
	if c == nil || !c.initialized || err == nil {
		return
	}

	c.hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("component", component)
		scope.SetTag("operation", operation)
		scope.SetContext("operation", map[string]interface{}{
			"component": component,
			"operation": operation,
			"timestamp": time.Now().UTC(),
		})
		c.hub.CaptureException(err)
	})

	c.logger.Debug().
		Str("operation", operation).
		Err(err).
		Msg("Error captured by Sentry")
}

// Flush waits for pending events
func Flush(timeout time.Duration) bool {
	c := current()
	if c == nil || !c.initialized {
		return true
	}
	return c.hub.Flush(timeout)
}

// Close flushes and disables the global client
func Close() {
	clientMu.Lock()
	defer clientMu.Unlock()
	if globalClient != nil && globalClient.initialized {
		globalClient.hub.Flush(2 * time.Second)
		globalClient.initialized = false
	}
}

// sanitizeEvent keeps the user's home directory out of reported paths
func sanitizeEvent(event *sentry.Event) *sentry.Event {
	if event == nil {
		return nil
	}
	event.ServerName = ""
	event.User = sentry.User{}
	event.Message = sanitizeValue(event.Message)
	for i := range event.Exception {
		event.Exception[i].Value = sanitizeValue(event.Exception[i].Value)
	}
	return event
}

func sanitizeValue(value string) string {
	homeDir, err := os.UserHomeDir()
	if err != nil || homeDir == "" {
		return value
	}
	return strings.ReplaceAll(value, homeDir, "~")
}
