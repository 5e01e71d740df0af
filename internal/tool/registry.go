package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/arclight-ai/sentinel/pkg/models"
)

// ExternalNamePrefix formats the collision-proof name external tools
// register under: ext_{first-8-chars-of-server-id}_{original-name}.
func ExternalNamePrefix(serverID, name string) string {
	prefix := serverID
	if len(prefix) > 8 {
		prefix = prefix[:8]
	}
	return fmt.Sprintf("ext_%s_%s", prefix, name)
}

// ExternalDescriptionPrefix formats the traceability prefix external tool
// descriptions carry: [server_name] original description.
func ExternalDescriptionPrefix(serverName, description string) string {
	return fmt.Sprintf("[%s] %s", serverName, description)
}

// Registry is the process-wide mapping from tool name to Tool. It keeps
// built-in and external tools in separate namespaces so that unregistering
// an external server's tools never touches the built-in set.
type Registry struct {
	mu       sync.RWMutex
	builtin  map[string]Tool
	external map[string]Tool
	schemas  sync.Map // name -> *jsonschema.Schema, compiled lazily
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		builtin:  map[string]Tool{},
		external: map[string]Tool{},
	}
}

// RegisterBuiltin adds t to the built-in namespace, loaded at startup.
func (r *Registry) RegisterBuiltin(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.builtin[t.Name()] = t
}

// RegisterExternal adds t to the external namespace, populated dynamically
// from ETP connections. name must already carry the ext_ prefix.
func (r *Registry) RegisterExternal(name string, t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.external[name] = t
}

// UnregisterExternalServer removes every external tool whose name carries
// the given server's ext_{prefix}_ namespace, used when an ETP server
// disconnects or reconnect is exhausted.
func (r *Registry) UnregisterExternalServer(serverID string) {
	prefix := "ext_" + serverID
	if len(serverID) > 8 {
		prefix = "ext_" + serverID[:8]
	}
	prefix += "_"
	r.mu.Lock()
	defer r.mu.Unlock()
	for name := range r.external {
		if strings.HasPrefix(name, prefix) {
			delete(r.external, name)
			r.schemas.Delete(name)
		}
	}
}

// Get looks up a tool by name, checking external first (the dynamic
// surface, which wins on deliberate collisions) then built-in.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if t, ok := r.external[name]; ok {
		return t, true
	}
	t, ok := r.builtin[name]
	return t, ok
}

// Definitions enumerates every registered tool (external first, then
// built-in) as models.ToolDefinition, for LLM function-calling catalogs.
func (r *Registry) Definitions() []models.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]models.ToolDefinition, 0, len(r.builtin)+len(r.external))
	for _, t := range r.external {
		defs = append(defs, Definition(t))
	}
	for _, t := range r.builtin {
		defs = append(defs, Definition(t))
	}
	return defs
}

func (r *Registry) compiledSchema(t Tool) (*jsonschema.Schema, error) {
	if cached, ok := r.schemas.Load(t.Name()); ok {
		return cached.(*jsonschema.Schema), nil
	}
	raw, err := json.Marshal(t.Schema())
	if err != nil {
		return nil, fmt.Errorf("marshal schema for %s: %w", t.Name(), err)
	}
	compiled, err := jsonschema.CompileString(t.Name()+".schema.json", string(raw))
	if err != nil {
		return nil, fmt.Errorf("compile schema for %s: %w", t.Name(), err)
	}
	r.schemas.Store(t.Name(), compiled)
	return compiled, nil
}

// Execute validates params against the tool's schema and dispatches to
// Tool.Execute. Schema validation failures are non-retryable and are
// returned as an error before the tool ever runs.
func (r *Registry) Execute(ctx context.Context, call models.ToolCall, actx AgentContext) (*models.ToolResult, error) {
	t, ok := r.Get(call.ToolName)
	if !ok {
		return &models.ToolResult{CallID: call.ID, Success: false, Error: "tool not found: " + call.ToolName}, nil
	}

	if len(t.Schema()) > 0 {
		schema, err := r.compiledSchema(t)
		if err != nil {
			return nil, err
		}
		if err := schema.Validate(map[string]any(call.Parameters)); err != nil {
			return &models.ToolResult{CallID: call.ID, Success: false, Error: "invalid parameters: " + err.Error()}, nil
		}
	}

	result, err := t.Execute(ctx, call.Parameters, actx)
	if err != nil {
		return nil, err
	}
	if result != nil {
		result.CallID = call.ID
	}
	return result, nil
}
