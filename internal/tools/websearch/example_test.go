package websearch_test

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/arclight-ai/sentinel/internal/tool"
	"github.com/arclight-ai/sentinel/internal/tools/websearch"
)

func toParamsMap(p websearch.SearchParams) map[string]any {
	b, err := json.Marshal(p)
	if err != nil {
		log.Fatal(err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		log.Fatal(err)
	}
	return m
}

func asSearchResponse(data any) *websearch.SearchResponse {
	resp, _ := data.(*websearch.SearchResponse)
	return resp
}

// Example demonstrates basic web search usage
func Example_basicSearch() {
	config := &websearch.Config{
		DefaultBackend:     websearch.BackendDuckDuckGo,
		DefaultResultCount: 5,
		CacheTTL:           300,
	}
	searchTool := websearch.NewWebSearchTool(config)

	params := websearch.SearchParams{
		Query:       "golang programming",
		ResultCount: 3,
	}

	result, err := searchTool.Execute(context.Background(), toParamsMap(params), tool.AgentContext{})
	if err != nil {
		log.Fatal(err)
	}

	if !result.Success {
		log.Printf("Search failed: %s", result.Error)
		return
	}

	response := asSearchResponse(result.Data)

	fmt.Printf("Query: %s\n", response.Query)
	fmt.Printf("Backend: %s\n", response.Backend)
	fmt.Printf("Results: %d\n\n", response.ResultCount)

	for i, r := range response.Results {
		fmt.Printf("%d. %s\n", i+1, r.Title)
		fmt.Printf("   URL: %s\n", r.URL)
		if r.Snippet != "" {
			fmt.Printf("   %s\n", r.Snippet)
		}
		fmt.Println()
	}
}

// Example demonstrates web search with content extraction
func Example_withContentExtraction() {
	config := &websearch.Config{
		DefaultBackend:     websearch.BackendDuckDuckGo,
		ExtractContent:     true,
		DefaultResultCount: 2,
	}
	searchTool := websearch.NewWebSearchTool(config)

	params := websearch.SearchParams{
		Query:          "machine learning tutorial",
		ResultCount:    2,
		ExtractContent: true,
	}

	result, err := searchTool.Execute(context.Background(), toParamsMap(params), tool.AgentContext{})
	if err != nil {
		log.Fatal(err)
	}

	response := asSearchResponse(result.Data)
	for _, r := range response.Results {
		fmt.Printf("Title: %s\n", r.Title)
		fmt.Printf("URL: %s\n", r.URL)
		if r.Content != "" {
			fmt.Printf("Content Preview: %s...\n", r.Content[:min(200, len(r.Content))])
		}
		fmt.Println()
	}
}

// Example demonstrates direct content extraction from URLs
func Example_contentExtraction() {
	extractor := websearch.NewContentExtractor()

	content, err := extractor.Extract(
		context.Background(),
		"https://example.com/article",
	)
	if err != nil {
		log.Printf("Failed to extract content: %v", err)
		return
	}

	fmt.Printf("Extracted content:\n%s\n", content)
}

// Example demonstrates batch content extraction
func Example_batchExtraction() {
	extractor := websearch.NewContentExtractor()

	urls := []string{
		"https://example.com/article1",
		"https://example.com/article2",
		"https://example.com/article3",
	}

	results := extractor.ExtractBatch(context.Background(), urls)

	for url, content := range results {
		fmt.Printf("Content from %s:\n", url)
		fmt.Printf("%s\n\n", content[:min(200, len(content))])
	}
}

// Example demonstrates image search
func Example_imageSearch() {
	config := &websearch.Config{
		DefaultBackend: websearch.BackendDuckDuckGo,
	}
	searchTool := websearch.NewWebSearchTool(config)

	params := websearch.SearchParams{
		Query:       "golang gopher mascot",
		Type:        websearch.SearchTypeImage,
		ResultCount: 5,
	}

	result, err := searchTool.Execute(context.Background(), toParamsMap(params), tool.AgentContext{})
	if err != nil {
		log.Fatal(err)
	}

	response := asSearchResponse(result.Data)
	for i, r := range response.Results {
		fmt.Printf("%d. %s\n", i+1, r.Title)
		fmt.Printf("   Image: %s\n", r.ImageURL)
		fmt.Printf("   Source: %s\n\n", r.URL)
	}
}

// Example demonstrates news search
func Example_newsSearch() {
	config := &websearch.Config{
		DefaultBackend: websearch.BackendDuckDuckGo,
	}
	searchTool := websearch.NewWebSearchTool(config)

	params := websearch.SearchParams{
		Query:       "technology news",
		Type:        websearch.SearchTypeNews,
		ResultCount: 5,
	}

	result, err := searchTool.Execute(context.Background(), toParamsMap(params), tool.AgentContext{})
	if err != nil {
		log.Fatal(err)
	}

	response := asSearchResponse(result.Data)
	for i, r := range response.Results {
		fmt.Printf("%d. %s\n", i+1, r.Title)
		if r.PublishedAt != "" {
			fmt.Printf("   Published: %s\n", r.PublishedAt)
		}
		fmt.Printf("   %s\n", r.Snippet)
		fmt.Printf("   %s\n\n", r.URL)
	}
}

// Example demonstrates using SearXNG backend
func Example_searxngBackend() {
	config := &websearch.Config{
		SearXNGURL:     "https://searxng.example.com",
		DefaultBackend: websearch.BackendSearXNG,
	}
	searchTool := websearch.NewWebSearchTool(config)

	params := websearch.SearchParams{
		Query:       "privacy-focused search",
		ResultCount: 5,
	}

	result, err := searchTool.Execute(context.Background(), toParamsMap(params), tool.AgentContext{})
	if err != nil {
		log.Fatal(err)
	}

	response := asSearchResponse(result.Data)
	fmt.Printf("Using backend: %s\n", response.Backend)
	fmt.Printf("Found %d results\n", response.ResultCount)
}

// Example demonstrates Brave Search API
func Example_braveBackend() {
	config := &websearch.Config{
		BraveAPIKey:    "your-api-key-here",
		DefaultBackend: websearch.BackendBraveSearch,
	}
	searchTool := websearch.NewWebSearchTool(config)

	params := websearch.SearchParams{
		Query:       "artificial intelligence",
		ResultCount: 10,
		Backend:     websearch.BackendBraveSearch,
	}

	result, err := searchTool.Execute(context.Background(), toParamsMap(params), tool.AgentContext{})
	if err != nil {
		log.Fatal(err)
	}

	response := asSearchResponse(result.Data)
	for _, r := range response.Results {
		fmt.Printf("Title: %s\n", r.Title)
		fmt.Printf("URL: %s\n", r.URL)
		fmt.Printf("Snippet: %s\n\n", r.Snippet)
	}
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
