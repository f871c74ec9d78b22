package constants

import (
	"time"
)

// Application identity
const (
	// AppName is used for the config directory, state file and log prefixes.
	AppName = "spacefiler"

	// DefaultBaseURL is the filer used when neither config nor --server set one.
	DefaultBaseURL = "http://localhost:8080"
)

// Upload tracking
const (
	// UploadCleanupDelay - how long a finished ("100%") upload entry stays
	// visible before the cleanup pass removes it (1 second, fixed)
	UploadCleanupDelay = 1 * time.Second

	// UploadInitialValue is the progress value of a freshly tracked upload.
	UploadInitialValue = "0%"

	// UploadDoneValue marks an upload as finished for cleanup purposes.
	UploadDoneValue = "100%"

	// UploadMaxInFlightPercent caps reported progress until the server has answered.
	UploadMaxInFlightPercent = 99

	// ActionReplace is sent as the upload "action" to overwrite an existing file.
	ActionReplace = "replace"
)

// Conflict check
const (
	// PlaceholderFileType is sent as file_type on every existence check.
	// The server contract requires the field; its value is not interpreted.
	PlaceholderFileType = "."
)

// Collaborator apps
const (
	// DefaultExtension is always recognized, even with no collaborator apps.
	DefaultExtension = "txt"
)

// Persisted state keys (session bucket)
const (
	KeySpaces     = "spaces"
	KeyPath       = "path"
	KeyLoginState = "loginState"
	KeyCookies    = "cookies"
)

// Persisted state keys (local bucket)
const (
	KeyCollabApps = "collab_apps"
	KeySort       = "sort"
)

// State file
const (
	// StateFileName is created under the config directory.
	StateFileName = "state.db"

	// StateOpenTimeout - how long to wait for another process holding the state file
	StateOpenTimeout = 1 * time.Second
)

// Event System
const (
	// EventBusDefaultBuffer - default buffer size for event channels (1000)
	EventBusDefaultBuffer = 1000

	// EventBusMaxBuffer - maximum buffer size for high-throughput scenarios (5000)
	EventBusMaxBuffer = 5000
)

// UI Updates
const (
	// ProgressRefreshRate - refresh interval of the upload bars (300ms)
	ProgressRefreshRate = 300 * time.Millisecond

	// WatchDebounce - quiet period before a batch of created files is dropped
	WatchDebounce = 500 * time.Millisecond
)

// API and Context Timeouts
const (
	// APIContextTimeout - default timeout for API operations (30 seconds)
	APIContextTimeout = 30 * time.Second

	// DefaultRequestTimeout - overall client timeout for non-upload calls (300 seconds)
	DefaultRequestTimeout = 300 * time.Second

	// ProxyWarmupTimeout - timeout for the proxy warmup request (15 seconds)
	ProxyWarmupTimeout = 15 * time.Second
)

// HTTP Client Timeouts
const (
	// HTTPIdleConnTimeout - how long to keep idle connections open (90 seconds)
	HTTPIdleConnTimeout = 90 * time.Second

	// HTTPTLSHandshakeTimeout - timeout for TLS handshake (60 seconds)
	HTTPTLSHandshakeTimeout = 60 * time.Second

	// HTTPExpectContinueTimeout - timeout for 100-continue response (1 second)
	HTTPExpectContinueTimeout = 1 * time.Second

	// HTTPDialTimeout - timeout for establishing connection (30 seconds)
	HTTPDialTimeout = 30 * time.Second

	// HTTPDialKeepAlive - keep-alive period for dialer (30 seconds)
	HTTPDialKeepAlive = 30 * time.Second
)

// Retry configuration
const (
	// DefaultMaxRetries - the core never retries on its own; operators may
	// raise this for idempotent listing calls
	DefaultMaxRetries = 0

	// RetryWaitMin - minimum wait between retries when enabled (1s)
	RetryWaitMin = 1 * time.Second

	// RetryWaitMax - maximum wait between retries when enabled (30s)
	RetryWaitMax = 30 * time.Second
)

// Request throttling
const (
	// DefaultRateBurst - requests allowed back to back before rate_limit applies
	DefaultRateBurst = 10
)
