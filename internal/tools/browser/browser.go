package browser

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/playwright-community/playwright-go"

	"github.com/arclight-ai/sentinel/internal/tool"
	"github.com/arclight-ai/sentinel/pkg/models"
)

// BrowserTool implements the tool.Tool interface for browser automation.
type BrowserTool struct {
	pool *Pool
}

// NewBrowserTool creates a new browser automation tool.
func NewBrowserTool(pool *Pool) *BrowserTool {
	return &BrowserTool{pool: pool}
}

func (b *BrowserTool) Name() string { return "browser" }

func (b *BrowserTool) Description() string {
	return "Automate web browser interactions including navigation, clicking, form filling, screenshots, content extraction, and JavaScript execution. Supports headless browsing with configurable timeouts and session management."
}

func (b *BrowserTool) Category() string              { return "browser" }
func (b *BrowserTool) IsDestructive() bool           { return true }
func (b *BrowserTool) RequiresApprovalDefault() bool { return true }

func (b *BrowserTool) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"action": map[string]any{
				"type": "string",
				"enum": []string{
					"navigate", "click", "type", "screenshot", "extract_text",
					"extract_html", "wait_for_element", "wait_for_navigation", "execute_js",
				},
				"description": "The browser action to perform",
			},
			"url": map[string]any{
				"type":        "string",
				"description": "URL to navigate to (required for navigate action)",
			},
			"selector": map[string]any{
				"type":        "string",
				"description": "CSS selector for the target element (required for click, type, extract actions)",
			},
			"text": map[string]any{
				"type":        "string",
				"description": "Text to type into an input field (required for type action)",
			},
			"script": map[string]any{
				"type":        "string",
				"description": "JavaScript code to execute (required for execute_js action)",
			},
			"timeout": map[string]any{
				"type":        "integer",
				"description": "Timeout in milliseconds for wait operations (default: 30000)",
			},
			"full_page": map[string]any{
				"type":        "boolean",
				"description": "Whether to capture full page screenshot (default: false)",
			},
		},
		"required": []string{"action"},
	}
}

func errTool(format string, args ...any) (*models.ToolResult, error) {
	return &models.ToolResult{Error: fmt.Sprintf(format, args...)}, nil
}

func okTool(data any) (*models.ToolResult, error) {
	return &models.ToolResult{Success: true, Data: data}, nil
}

func paramString(params map[string]any, key string) string {
	s, _ := params[key].(string)
	return s
}

func paramFloat(params map[string]any, key string, fallback float64) float64 {
	switch v := params[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return fallback
	}
}

func paramBool(params map[string]any, key string) bool {
	v, _ := params[key].(bool)
	return v
}

// Execute runs the browser tool with the given parameters.
func (b *BrowserTool) Execute(ctx context.Context, params map[string]any, actx tool.AgentContext) (*models.ToolResult, error) {
	action := paramString(params, "action")

	instance, err := b.pool.Acquire(ctx)
	if err != nil {
		return errTool("failed to acquire browser instance: %v", err)
	}
	defer b.pool.Release(instance)

	switch action {
	case "navigate":
		return b.handleNavigate(instance, params)
	case "click":
		return b.handleClick(instance, params)
	case "type":
		return b.handleType(instance, params)
	case "screenshot":
		return b.handleScreenshot(instance, params)
	case "extract_text":
		return b.handleExtractText(instance, params)
	case "extract_html":
		return b.handleExtractHTML(instance, params)
	case "wait_for_element":
		return b.handleWaitForElement(instance, params)
	case "wait_for_navigation":
		return b.handleWaitForNavigation(instance, params)
	case "execute_js":
		return b.handleExecuteJS(instance, params)
	default:
		return errTool("unknown action: %s", action)
	}
}

func (b *BrowserTool) handleNavigate(instance *BrowserInstance, params map[string]any) (*models.ToolResult, error) {
	url := paramString(params, "url")
	if url == "" {
		return errTool("url parameter is required for navigate action")
	}
	if _, err := instance.Page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	}); err != nil {
		return errTool("navigation failed: %v", err)
	}
	return okTool(fmt.Sprintf("successfully navigated to %s", url))
}

func (b *BrowserTool) handleClick(instance *BrowserInstance, params map[string]any) (*models.ToolResult, error) {
	selector := paramString(params, "selector")
	if selector == "" {
		return errTool("selector parameter is required for click action")
	}
	if err := instance.Page.Click(selector); err != nil {
		return errTool("click failed: %v", err)
	}
	return okTool(fmt.Sprintf("successfully clicked element: %s", selector))
}

func (b *BrowserTool) handleType(instance *BrowserInstance, params map[string]any) (*models.ToolResult, error) {
	selector := paramString(params, "selector")
	text := paramString(params, "text")
	if selector == "" {
		return errTool("selector parameter is required for type action")
	}
	if err := instance.Page.Fill(selector, text); err != nil {
		return errTool("type failed: %v", err)
	}
	return okTool(fmt.Sprintf("successfully typed text into element: %s", selector))
}

func (b *BrowserTool) handleScreenshot(instance *BrowserInstance, params map[string]any) (*models.ToolResult, error) {
	fullPage := paramBool(params, "full_page")
	screenshot, err := instance.Page.Screenshot(playwright.PageScreenshotOptions{
		FullPage: playwright.Bool(fullPage),
		Type:     playwright.ScreenshotTypePng,
	})
	if err != nil {
		return errTool("screenshot failed: %v", err)
	}
	encoded := base64.StdEncoding.EncodeToString(screenshot)
	return okTool(map[string]any{"format": "png", "base64": encoded})
}

func (b *BrowserTool) handleExtractText(instance *BrowserInstance, params map[string]any) (*models.ToolResult, error) {
	selector := paramString(params, "selector")
	target := selector
	if target == "" {
		target = "body"
	}
	text, err := instance.Page.TextContent(target)
	if err != nil {
		return errTool("text extraction failed: %v", err)
	}
	return okTool(text)
}

func (b *BrowserTool) handleExtractHTML(instance *BrowserInstance, params map[string]any) (*models.ToolResult, error) {
	selector := paramString(params, "selector")
	var html string
	var err error
	if selector == "" {
		html, err = instance.Page.Content()
	} else {
		result, evalErr := instance.Page.Evaluate(fmt.Sprintf("document.querySelector('%s').innerHTML", selector))
		if evalErr != nil {
			return errTool("HTML extraction failed: %v", evalErr)
		}
		html = fmt.Sprintf("%v", result)
	}
	if err != nil {
		return errTool("HTML extraction failed: %v", err)
	}
	return okTool(html)
}

func (b *BrowserTool) handleWaitForElement(instance *BrowserInstance, params map[string]any) (*models.ToolResult, error) {
	selector := paramString(params, "selector")
	if selector == "" {
		return errTool("selector parameter is required for wait_for_element action")
	}
	timeout := paramFloat(params, "timeout", 30000)
	if _, err := instance.Page.WaitForSelector(selector, playwright.PageWaitForSelectorOptions{
		Timeout: playwright.Float(timeout),
	}); err != nil {
		return errTool("wait for element failed: %v", err)
	}
	return okTool(fmt.Sprintf("element appeared: %s", selector))
}

func (b *BrowserTool) handleWaitForNavigation(instance *BrowserInstance, params map[string]any) (*models.ToolResult, error) {
	timeout := paramFloat(params, "timeout", 30000)
	if err := instance.Page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		Timeout: playwright.Float(timeout),
	}); err != nil {
		return errTool("wait for navigation failed: %v", err)
	}
	return okTool("navigation completed")
}

func (b *BrowserTool) handleExecuteJS(instance *BrowserInstance, params map[string]any) (*models.ToolResult, error) {
	script := paramString(params, "script")
	if script == "" {
		return errTool("script parameter is required for execute_js action")
	}
	result, err := instance.Page.Evaluate(script)
	if err != nil {
		return errTool("javascript execution failed: %v", err)
	}
	return okTool(fmt.Sprintf("%v", result))
}
