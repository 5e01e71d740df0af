// Package repo implements spec §4.4's RepoTool: create repo, list
// contents, read file, write file, and open an issue or PR against a
// Git hosting API, authenticated by token.
package repo

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/arclight-ai/sentinel/internal/tool"
	"github.com/arclight-ai/sentinel/pkg/models"
)

// Config configures RepoTool's default auth and target host.
type Config struct {
	// Token is the fallback credential, read from config/env at startup.
	// A "token" call parameter always overrides it.
	Token string
	// BaseURL is the REST API root, e.g. https://api.github.com for
	// github.com or https://github.example.com/api/v3 for an enterprise
	// install.
	BaseURL string
}

// RepoTool implements the tool.Tool interface for source-repository
// operations against a GitHub-compatible REST API. No repo-hosting API
// client library exists in the example corpus this codebase draws from,
// so this is built directly on net/http.
type RepoTool struct {
	cfg        Config
	httpClient *http.Client
}

// NewRepoTool creates a repo tool with the given defaults.
func NewRepoTool(cfg Config) *RepoTool {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.github.com"
	}
	return &RepoTool{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (t *RepoTool) Name() string { return "repo" }

func (t *RepoTool) Description() string {
	return "Manage a Git-hosted repository: create a repository, list its contents, read or write a file, and open an issue or pull request."
}

func (t *RepoTool) Category() string              { return "repo" }
func (t *RepoTool) IsDestructive() bool           { return true }
func (t *RepoTool) RequiresApprovalDefault() bool { return true }

func (t *RepoTool) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"action": map[string]any{
				"type":        "string",
				"enum":        []string{"create_repo", "list", "read_file", "write_file", "create_issue", "create_pr"},
				"description": "Operation to perform.",
			},
			"owner":   map[string]any{"type": "string", "description": "Repository owner (user or org)."},
			"repo":    map[string]any{"type": "string", "description": "Repository name."},
			"path":    map[string]any{"type": "string", "description": "File or directory path, for list/read_file/write_file."},
			"content": map[string]any{"type": "string", "description": "File contents, for write_file."},
			"message": map[string]any{"type": "string", "description": "Commit message, for write_file."},
			"branch":  map[string]any{"type": "string", "description": "Branch name, default: repository default branch."},
			"private": map[string]any{"type": "boolean", "description": "Create the repository as private, for create_repo."},
			"title":   map[string]any{"type": "string", "description": "Issue or PR title."},
			"body":    map[string]any{"type": "string", "description": "Issue or PR body."},
			"head":    map[string]any{"type": "string", "description": "Source branch, for create_pr."},
			"base":    map[string]any{"type": "string", "description": "Target branch, for create_pr."},
			"token":   map[string]any{"type": "string", "description": "Override auth token for this call; wins over the configured/env token."},
		},
		"required": []string{"action"},
	}
}

// Execute dispatches to the requested repo action.
func (t *RepoTool) Execute(ctx context.Context, params map[string]any, actx tool.AgentContext) (*models.ToolResult, error) {
	action, _ := params["action"].(string)
	if action == "" {
		return &models.ToolResult{Error: "action is required"}, nil
	}
	token := t.resolveToken(params)

	switch action {
	case "create_repo":
		return t.createRepo(ctx, params, token)
	case "list":
		return t.list(ctx, params, token)
	case "read_file":
		return t.readFile(ctx, params, token)
	case "write_file":
		return t.writeFile(ctx, params, token)
	case "create_issue":
		return t.createIssue(ctx, params, token)
	case "create_pr":
		return t.createPR(ctx, params, token)
	default:
		return &models.ToolResult{Error: fmt.Sprintf("unknown action %q", action)}, nil
	}
}

// resolveToken implements "auth by token from env or param (param wins)":
// an explicit call-level token always overrides the configured default,
// which itself may already have been populated from the environment at
// startup (see config.applyEnvOverrides).
func (t *RepoTool) resolveToken(params map[string]any) string {
	if v, ok := params["token"].(string); ok && v != "" {
		return v
	}
	if t.cfg.Token != "" {
		return t.cfg.Token
	}
	return os.Getenv("GITHUB_TOKEN")
}

func (t *RepoTool) createRepo(ctx context.Context, params map[string]any, token string) (*models.ToolResult, error) {
	name, _ := params["repo"].(string)
	if name == "" {
		return &models.ToolResult{Error: "repo is required"}, nil
	}
	private, _ := params["private"].(bool)

	body := map[string]any{"name": name, "private": private}
	var out map[string]any
	if err := t.do(ctx, http.MethodPost, "/user/repos", token, body, &out); err != nil {
		return &models.ToolResult{Error: err.Error()}, nil
	}
	return &models.ToolResult{Success: true, Data: out}, nil
}

func (t *RepoTool) list(ctx context.Context, params map[string]any, token string) (*models.ToolResult, error) {
	owner, repoName, err := ownerRepo(params)
	if err != nil {
		return &models.ToolResult{Error: err.Error()}, nil
	}
	path, _ := params["path"].(string)

	endpoint := fmt.Sprintf("/repos/%s/%s/contents/%s", owner, repoName, path)
	var out any
	if err := t.do(ctx, http.MethodGet, endpoint, token, nil, &out); err != nil {
		return &models.ToolResult{Error: err.Error()}, nil
	}
	return &models.ToolResult{Success: true, Data: out}, nil
}

func (t *RepoTool) readFile(ctx context.Context, params map[string]any, token string) (*models.ToolResult, error) {
	owner, repoName, err := ownerRepo(params)
	if err != nil {
		return &models.ToolResult{Error: err.Error()}, nil
	}
	path, _ := params["path"].(string)
	if path == "" {
		return &models.ToolResult{Error: "path is required"}, nil
	}

	endpoint := fmt.Sprintf("/repos/%s/%s/contents/%s", owner, repoName, path)
	var out struct {
		Content  string `json:"content"`
		Encoding string `json:"encoding"`
		SHA      string `json:"sha"`
	}
	if err := t.do(ctx, http.MethodGet, endpoint, token, nil, &out); err != nil {
		return &models.ToolResult{Error: err.Error()}, nil
	}

	content := out.Content
	if out.Encoding == "base64" {
		decoded, err := base64.StdEncoding.DecodeString(stripNewlines(out.Content))
		if err != nil {
			return &models.ToolResult{Error: fmt.Sprintf("decode content: %v", err)}, nil
		}
		content = string(decoded)
	}
	return &models.ToolResult{Success: true, Data: map[string]any{"path": path, "content": content, "sha": out.SHA}}, nil
}

func (t *RepoTool) writeFile(ctx context.Context, params map[string]any, token string) (*models.ToolResult, error) {
	owner, repoName, err := ownerRepo(params)
	if err != nil {
		return &models.ToolResult{Error: err.Error()}, nil
	}
	path, _ := params["path"].(string)
	if path == "" {
		return &models.ToolResult{Error: "path is required"}, nil
	}
	content, _ := params["content"].(string)
	message, _ := params["message"].(string)
	if message == "" {
		message = fmt.Sprintf("update %s", path)
	}

	// The contents API requires the current file's sha to update an
	// existing file; fetch it first and ignore a 404 (new file).
	sha := ""
	var existing struct {
		SHA string `json:"sha"`
	}
	endpoint := fmt.Sprintf("/repos/%s/%s/contents/%s", owner, repoName, path)
	if err := t.do(ctx, http.MethodGet, endpoint, token, nil, &existing); err == nil {
		sha = existing.SHA
	}

	body := map[string]any{
		"message": message,
		"content": base64.StdEncoding.EncodeToString([]byte(content)),
	}
	if sha != "" {
		body["sha"] = sha
	}
	if branch, _ := params["branch"].(string); branch != "" {
		body["branch"] = branch
	}

	var out map[string]any
	if err := t.do(ctx, http.MethodPut, endpoint, token, body, &out); err != nil {
		return &models.ToolResult{Error: err.Error()}, nil
	}
	return &models.ToolResult{Success: true, Data: out}, nil
}

func (t *RepoTool) createIssue(ctx context.Context, params map[string]any, token string) (*models.ToolResult, error) {
	owner, repoName, err := ownerRepo(params)
	if err != nil {
		return &models.ToolResult{Error: err.Error()}, nil
	}
	title, _ := params["title"].(string)
	if title == "" {
		return &models.ToolResult{Error: "title is required"}, nil
	}
	body, _ := params["body"].(string)

	endpoint := fmt.Sprintf("/repos/%s/%s/issues", owner, repoName)
	var out map[string]any
	if err := t.do(ctx, http.MethodPost, endpoint, token, map[string]any{"title": title, "body": body}, &out); err != nil {
		return &models.ToolResult{Error: err.Error()}, nil
	}
	return &models.ToolResult{Success: true, Data: out}, nil
}

func (t *RepoTool) createPR(ctx context.Context, params map[string]any, token string) (*models.ToolResult, error) {
	owner, repoName, err := ownerRepo(params)
	if err != nil {
		return &models.ToolResult{Error: err.Error()}, nil
	}
	title, _ := params["title"].(string)
	head, _ := params["head"].(string)
	base, _ := params["base"].(string)
	if title == "" || head == "" || base == "" {
		return &models.ToolResult{Error: "title, head, and base are required"}, nil
	}
	body, _ := params["body"].(string)

	endpoint := fmt.Sprintf("/repos/%s/%s/pulls", owner, repoName)
	reqBody := map[string]any{"title": title, "head": head, "base": base, "body": body}
	var out map[string]any
	if err := t.do(ctx, http.MethodPost, endpoint, token, reqBody, &out); err != nil {
		return &models.ToolResult{Error: err.Error()}, nil
	}
	return &models.ToolResult{Success: true, Data: out}, nil
}

// do issues an authenticated REST call against cfg.BaseURL+endpoint,
// decoding a successful JSON response into out.
func (t *RepoTool) do(ctx context.Context, method, endpoint, token string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, t.cfg.BaseURL+endpoint, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("repo API returned status %d: %s", resp.StatusCode, string(respBody))
	}
	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func ownerRepo(params map[string]any) (string, string, error) {
	owner, _ := params["owner"].(string)
	repoName, _ := params["repo"].(string)
	if owner == "" || repoName == "" {
		return "", "", fmt.Errorf("owner and repo are required")
	}
	return owner, repoName, nil
}

func stripNewlines(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != '\n' && s[i] != '\r' {
			out = append(out, s[i])
		}
	}
	return string(out)
}
