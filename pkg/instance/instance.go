// Package instance identifies the running gateway process to downstream consumers.
package instance

import (
	"fmt"
	"os"

	"github.com/denisbrodbeck/machineid"
)

const appID = "signal-gateway"

// ID returns a stable per-host identifier. The raw machine id is hashed with the app id so
// it is never exposed; hosts without one fall back to the hostname.
func ID() string {
	if id, err := machineid.ProtectedID(appID); err == nil && id != "" {
		return short(id)
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return fmt.Sprintf("pid-%d", os.Getpid())
}

func short(id string) string {
	if len(id) > 16 {
		return id[:16]
	}
	return id
}
