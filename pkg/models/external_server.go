package models

import "time"

// TransportKind is the wire transport an external tool server speaks.
type TransportKind string

const (
	TransportStdio TransportKind = "stdio"
	TransportHTTP  TransportKind = "http"
)

// TrustLevel governs whether an external server's stdio process is
// sandboxed and its default approval requirement.
type TrustLevel string

const (
	TrustBuiltin    TrustLevel = "builtin"
	TrustVerified   TrustLevel = "verified"
	TrustUserAdded  TrustLevel = "user_added"
)

// ExternalServerConfig is the persisted record of one ETP server. Stdio
// fields are populated iff Transport is stdio; HTTP fields iff Transport
// is http. A UserAdded server defaults to SandboxEnabled=true.
type ExternalServerConfig struct {
	ID             string            `json:"id"`
	Name           string            `json:"name"`
	Transport      TransportKind     `json:"transport"`
	Command        string            `json:"command,omitempty"`
	Args           []string          `json:"args,omitempty"`
	Env            map[string]string `json:"env,omitempty"`
	URL            string            `json:"url,omitempty"`
	Headers        map[string]string `json:"headers,omitempty"`
	Trust          TrustLevel        `json:"trust"`
	SandboxEnabled bool              `json:"sandbox_enabled"`
	Enabled        bool              `json:"enabled"`
	Category       string            `json:"category"`
	CreatedAt      time.Time         `json:"created_at"`
	LastConnected  *time.Time        `json:"last_connected,omitempty"`
	LastError      string            `json:"last_error,omitempty"`
}

// ApplyTrustDefaults fills in SandboxEnabled per the UserAdded default
// when the caller hasn't explicitly set it (e.g. servers imported from a
// Claude-Desktop style mcpServers document).
func (c *ExternalServerConfig) ApplyTrustDefaults() {
	if c.Trust == TrustUserAdded {
		c.SandboxEnabled = true
	}
}
