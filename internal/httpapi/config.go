package httpapi

import "time"

const defaultMaxBodyBytes = 1 << 20

// Options are the process-wide settings of the HTTP layer.
type Options struct {
	// MaxBodyBytes caps JSON request bodies. Zero means 1 MiB.
	MaxBodyBytes int64
	// AnswerTimeout bounds one /answer call including a lazy model load.
	// Zero disables it.
	AnswerTimeout time.Duration
	// CORSOrigins enables CORS for the listed origins when non-empty.
	CORSOrigins []string
	// RequestLogLevel is off, error, info or debug. Empty keeps the current
	// level.
	RequestLogLevel string
}

// Configure applies o to the handlers built by NewMux.
func Configure(o Options) {
	SetMaxBodyBytes(o.MaxBodyBytes)
	SetAnswerTimeout(o.AnswerTimeout)
	SetCORSOrigins(o.CORSOrigins)
	if o.RequestLogLevel != "" {
		SetRequestLogLevel(o.RequestLogLevel)
	}
}

var maxBodyBytes int64 = defaultMaxBodyBytes

// SetMaxBodyBytes sets the maximum request body size. Non-positive values
// restore the default.
func SetMaxBodyBytes(n int64) {
	if n <= 0 {
		n = defaultMaxBodyBytes
	}
	maxBodyBytes = n
}

var answerTimeout time.Duration

// SetAnswerTimeout sets the /answer timeout (0 disables).
func SetAnswerTimeout(d time.Duration) {
	answerTimeout = max(d, 0)
}

// The API only needs these for browser clients.
var (
	corsMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	corsHeaders = []string{"Content-Type", "X-Log-Level", "X-Request-Id"}
)

var corsOrigins []string

// SetCORSOrigins enables CORS for origins. An empty list disables it.
func SetCORSOrigins(origins []string) {
	corsOrigins = append([]string(nil), origins...)
}
