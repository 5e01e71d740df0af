package etp

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/arclight-ai/sentinel/pkg/models"
)

// desktopConfig mirrors the Claude-Desktop / Claude-Code mcpServers JSON
// shape spec.md §6 requires accepting, alongside the native
// ExternalServerConfig/YAML shape already handled by internal/config.
type desktopConfig struct {
	MCPServers map[string]desktopServer `json:"mcpServers"`
}

type desktopServer struct {
	Command string            `json:"command,omitempty"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
	URL     string            `json:"url,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
}

// ParseDesktopConfig decodes an mcpServers document into
// ExternalServerConfigs, one per key, in a deterministic (sorted by name)
// order. Transport is inferred: a server with URL set is http, otherwise
// stdio. Every parsed server defaults to trust=user_added so
// ApplyTrustDefaults enables sandboxing unless the caller overrides it.
func ParseDesktopConfig(data []byte) ([]models.ExternalServerConfig, error) {
	var doc desktopConfig
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("etp: parse mcpServers document: %w", err)
	}

	names := make([]string, 0, len(doc.MCPServers))
	for name := range doc.MCPServers {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]models.ExternalServerConfig, 0, len(names))
	for _, name := range names {
		srv := doc.MCPServers[name]
		cfg := models.ExternalServerConfig{
			ID:      name,
			Name:    name,
			Command: srv.Command,
			Args:    srv.Args,
			Env:     srv.Env,
			URL:     srv.URL,
			Headers: srv.Headers,
			Trust:   models.TrustUserAdded,
			Enabled: true,
		}
		if cfg.URL != "" {
			cfg.Transport = models.TransportHTTP
		} else {
			cfg.Transport = models.TransportStdio
		}
		cfg.ApplyTrustDefaults()
		out = append(out, cfg)
	}
	return out, nil
}
