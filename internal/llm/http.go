package llm

import (
	"net/http"
	"time"
)

// Outer bound for one provider HTTP exchange; the per-call context
// timeout is usually tighter.
const externalHTTPTimeout = 90 * time.Second

var externalHTTPClient = &http.Client{
	Timeout: externalHTTPTimeout,
}
