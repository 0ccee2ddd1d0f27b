package instance

import "os"

// EnvWorkerID overrides the identifier attached to worker logs.
const EnvWorkerID = "STOREFRONT_WORKER_ID"

// GetID returns the worker instance identifier, falling back to the hostname
// and then to a fixed default.
func GetID() string {
	if id := os.Getenv(EnvWorkerID); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "worker-0"
}
