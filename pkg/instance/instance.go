package instance

import (
	"os"
	"strings"

	"github.com/angelmondragon/cropmarket-backend/pkg/env"
)

const fallbackID = "local"

// GetID identifies the running process in logs and lock owners. It prefers
// CROPMARKET_INSTANCE_ID, then the platform dyno name, then the hostname.
func GetID() string {
	if id := env.First("", env.Prefix+"INSTANCE_ID", "DYNO"); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && strings.TrimSpace(host) != "" {
		return host
	}
	return fallbackID
}
