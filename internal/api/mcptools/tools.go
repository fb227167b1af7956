// Package mcptools exposes web search and image generation as MCP tools over
// streamable HTTP, so agent clients can call them without going through chat.
package mcptools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog/log"

	"github.com/matiasleandrokruk/askbot/internal/infra/kandinsky"
)

// Tool names.
const (
	ToolWebSearch     = "web_search"
	ToolGenerateImage = "generate_image"
	ToolImageStatus   = "image_service_status"
)

const serverName = "askbot"

// Searcher returns a formatted result bundle, or "" when search is unavailable.
type Searcher interface {
	Search(ctx context.Context, query string) string
}

// ImageService generates images and reports service health.
type ImageService interface {
	GenerateImage(ctx context.Context, req kandinsky.Request) (*kandinsky.Image, error)
	ServiceStatus(ctx context.Context) kandinsky.ServiceStatus
}

// SearchInput is the web_search argument.
type SearchInput struct {
	Query string `json:"query" jsonschema:"what to look up on the web"`
}

// ImageInput is the generate_image argument.
type ImageInput struct {
	Prompt         string `json:"prompt" jsonschema:"description of the picture, up to 1000 characters"`
	Width          int    `json:"width,omitempty" jsonschema:"image width in pixels, default 1024"`
	Height         int    `json:"height,omitempty" jsonschema:"image height in pixels, default 1024"`
	Style          string `json:"style,omitempty" jsonschema:"style name from the style catalogue, default DEFAULT"`
	NegativePrompt string `json:"negative_prompt,omitempty" jsonschema:"what the picture must not contain"`
}

type tools struct {
	search Searcher
	images ImageService
}

// NewServer builds the MCP server. images may be nil; generate_image is then
// not registered and image_service_status reports the service as unconfigured.
func NewServer(search Searcher, images ImageService, version string) *mcp.Server {
	t := &tools{search: search, images: images}
	s := mcp.NewServer(&mcp.Implementation{Name: serverName, Version: version}, nil)

	mcp.AddTool(s, &mcp.Tool{
		Name:        ToolWebSearch,
		Description: "Search the web (SearXNG, then DuckDuckGo) and return the top results as text.",
	}, t.webSearch)
	if images != nil {
		mcp.AddTool(s, &mcp.Tool{
			Name:        ToolGenerateImage,
			Description: "Generate a PNG image with Kandinsky 3.0 from a text description.",
		}, t.generateImage)
	}
	mcp.AddTool(s, &mcp.Tool{
		Name:        ToolImageStatus,
		Description: "Report whether the image generation service is configured and reachable.",
	}, t.imageStatus)
	return s
}

// Handler serves s over streamable HTTP.
func Handler(s *mcp.Server) http.Handler {
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return s }, nil)
}

func (t *tools) webSearch(ctx context.Context, _ *mcp.CallToolRequest, in SearchInput) (*mcp.CallToolResult, any, error) {
	query := strings.TrimSpace(in.Query)
	if query == "" {
		return toolError("query is required"), nil, nil
	}
	results := ""
	if t.search != nil {
		results = t.search.Search(ctx, query)
	}
	if results == "" {
		return toolError("web search is unavailable"), nil, nil
	}
	return textResult(results), nil, nil
}

func (t *tools) generateImage(ctx context.Context, _ *mcp.CallToolRequest, in ImageInput) (*mcp.CallToolResult, any, error) {
	img, err := t.images.GenerateImage(ctx, kandinsky.Request{
		Prompt:         in.Prompt,
		Width:          in.Width,
		Height:         in.Height,
		Style:          in.Style,
		NegativePrompt: in.NegativePrompt,
	})
	if err != nil {
		log.Warn().Err(err).Msg("mcp image generation failed")
		return toolError("could not create image: " + err.Error()), nil, nil
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.ImageContent{Data: img.Data, MIMEType: "image/png"},
			&mcp.TextContent{Text: fmt.Sprintf("%q %dx%d, style %s, %s", img.Prompt, img.Width, img.Height, img.Style, img.Service)},
		},
	}, nil, nil
}

func (t *tools) imageStatus(ctx context.Context, _ *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, any, error) {
	status := kandinsky.ServiceStatus{
		Service: kandinsky.ServiceName,
		Status:  "offline",
		Message: "API keys are not configured",
	}
	if t.images != nil {
		status = t.images.ServiceStatus(ctx)
	}
	raw, err := json.Marshal(status)
	if err != nil {
		return nil, nil, err
	}
	return textResult(string(raw)), nil, nil
}

func textResult(s string) *mcp.CallToolResult {
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: s}}}
}

func toolError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{IsError: true, Content: []mcp.Content{&mcp.TextContent{Text: msg}}}
}
