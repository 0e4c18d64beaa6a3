package webpage

import (
	"context"
	"fmt"

	"github.com/junctionhq/junction/gateway/internal/shared/types"
)

// Provider fetches and dissects remote web pages. Fetching happens
// inside the gateway process, so browser clients can read content from
// origins their own CORS policy would block.
type Provider struct {
	ops *pageOps
}

// NewProvider creates the webpage provider with its own HTTP client.
func NewProvider() *Provider {
	return &Provider{ops: newPageOps()}
}

// Definition returns the webpage service definition.
func (p *Provider) Definition() types.Service {
	return types.Service{
		ID:          "webpage",
		Name:        "Webpage Service",
		Description: "Fetch remote pages and extract content, links, and metadata",
		Category:    types.CategoryWeb,
		Capabilities: []string{
			"fetch",
			"css_selectors",
			"xpath_queries",
			"link_extraction",
			"metadata_extraction",
			"html_sanitization",
			"charset_detection",
		},
		Methods: []types.Method{
			{
				ID:          "webpage.fetch",
				Name:        "Fetch Page",
				Description: "Download a page and return its sanitized HTML",
				Parameters: []types.Parameter{
					{Name: "url", Type: "string", Description: "Page URL (http or https)", Required: true},
					{Name: "sanitize", Type: "boolean", Description: "Strip scripts and unsafe markup (default: true)", Required: false},
				},
				Returns: "object",
			},
			{
				ID:          "webpage.extract",
				Name:        "Extract Elements",
				Description: "Select elements with a CSS selector",
				Parameters: []types.Parameter{
					{Name: "url", Type: "string", Description: "Page URL to fetch", Required: false},
					{Name: "html", Type: "string", Description: "HTML to parse instead of fetching", Required: false},
					{Name: "selector", Type: "string", Description: "CSS selector", Required: true},
					{Name: "attribute", Type: "string", Description: "Return this attribute instead of element text", Required: false},
				},
				Returns: "object",
			},
			{
				ID:          "webpage.links",
				Name:        "Extract Links",
				Description: "Collect anchor targets, resolved to absolute URLs",
				Parameters: []types.Parameter{
					{Name: "url", Type: "string", Description: "Page URL to fetch", Required: false},
					{Name: "html", Type: "string", Description: "HTML to parse instead of fetching", Required: false},
					{Name: "base", Type: "string", Description: "Base URL for resolving relative links in supplied HTML", Required: false},
				},
				Returns: "object",
			},
			{
				ID:          "webpage.metadata",
				Name:        "Extract Metadata",
				Description: "Get the title and meta tags (standard, Open Graph, Twitter)",
				Parameters: []types.Parameter{
					{Name: "url", Type: "string", Description: "Page URL to fetch", Required: false},
					{Name: "html", Type: "string", Description: "HTML to parse instead of fetching", Required: false},
				},
				Returns: "object",
			},
			{
				ID:          "webpage.xpath",
				Name:        "XPath Query",
				Description: "Query elements with an XPath expression",
				Parameters: []types.Parameter{
					{Name: "url", Type: "string", Description: "Page URL to fetch", Required: false},
					{Name: "html", Type: "string", Description: "HTML to parse instead of fetching", Required: false},
					{Name: "query", Type: "string", Description: "XPath expression", Required: true},
				},
				Returns: "object",
			},
		},
	}
}

// Execute routes a method to its implementation.
func (p *Provider) Execute(ctx context.Context, methodID string, params map[string]interface{}, call *types.CallContext) (*types.Result, error) {
	switch methodID {
	case "webpage.fetch":
		return p.ops.fetch(ctx, params)
	case "webpage.extract":
		return p.ops.extract(ctx, params)
	case "webpage.links":
		return p.ops.links(ctx, params)
	case "webpage.metadata":
		return p.ops.metadata(ctx, params)
	case "webpage.xpath":
		return p.ops.xpath(ctx, params)
	default:
		return types.Failure(fmt.Sprintf("unknown method: %s", methodID)), nil
	}
}
