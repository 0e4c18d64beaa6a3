package webpage

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"

	"github.com/junctionhq/junction/gateway/internal/shared/types"
)

func (o *pageOps) extract(ctx context.Context, params map[string]interface{}) (*types.Result, error) {
	selector, ok := getString(params, "selector")
	if !ok || selector == "" {
		return types.Failure("selector parameter required"), nil
	}

	data, _, fail := o.source(ctx, params)
	if fail != nil {
		return fail, nil
	}

	doc, err := parseDocument(data)
	if err != nil {
		return types.Failure(fmt.Sprintf("parse failed: %v", err)), nil
	}

	attribute, _ := getString(params, "attribute")

	matches := make([]string, 0)
	doc.Find(selector).Each(func(i int, s *goquery.Selection) {
		if attribute != "" {
			if val, exists := s.Attr(attribute); exists {
				matches = append(matches, val)
			}
			return
		}
		if text := normalizeWhitespace(s.Text()); text != "" {
			matches = append(matches, text)
		}
	})

	return types.Success(map[string]interface{}{
		"matches": matches,
		"count":   len(matches),
	}), nil
}

func (o *pageOps) links(ctx context.Context, params map[string]interface{}) (*types.Result, error) {
	data, base, fail := o.source(ctx, params)
	if fail != nil {
		return fail, nil
	}

	doc, err := parseDocument(data)
	if err != nil {
		return types.Failure(fmt.Sprintf("parse failed: %v", err)), nil
	}

	var baseURL *url.URL
	if base != "" {
		baseURL, _ = url.Parse(base)
	}

	collected := make([]string, 0)
	doc.Find("a[href]").Each(func(i int, s *goquery.Selection) {
		href := strings.TrimSpace(s.AttrOr("href", ""))
		if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") {
			return
		}
		if baseURL != nil {
			if ref, err := url.Parse(href); err == nil {
				href = baseURL.ResolveReference(ref).String()
			}
		}
		collected = append(collected, href)
	})
	collected = dedupe(collected)

	return types.Success(map[string]interface{}{
		"links": collected,
		"count": len(collected),
	}), nil
}

func (o *pageOps) metadata(ctx context.Context, params map[string]interface{}) (*types.Result, error) {
	data, _, fail := o.source(ctx, params)
	if fail != nil {
		return fail, nil
	}

	doc, err := parseDocument(data)
	if err != nil {
		return types.Failure(fmt.Sprintf("parse failed: %v", err)), nil
	}

	standard := make(map[string]string)
	openGraph := make(map[string]string)
	twitter := make(map[string]string)

	doc.Find("meta").Each(func(i int, s *goquery.Selection) {
		name := s.AttrOr("name", "")
		property := s.AttrOr("property", "")
		content := s.AttrOr("content", "")
		if content == "" {
			return
		}
		switch {
		case strings.HasPrefix(property, "og:"):
			openGraph[strings.TrimPrefix(property, "og:")] = content
		case strings.HasPrefix(name, "twitter:"):
			twitter[strings.TrimPrefix(name, "twitter:")] = content
		case name != "":
			standard[name] = content
		}
	})

	return types.Success(map[string]interface{}{
		"title":      normalizeWhitespace(doc.Find("title").First().Text()),
		"standard":   standard,
		"open_graph": openGraph,
		"twitter":    twitter,
		"count":      len(standard) + len(openGraph) + len(twitter),
	}), nil
}

func (o *pageOps) xpath(ctx context.Context, params map[string]interface{}) (*types.Result, error) {
	query, ok := getString(params, "query")
	if !ok || query == "" {
		return types.Failure("query parameter required"), nil
	}

	data, _, fail := o.source(ctx, params)
	if fail != nil {
		return fail, nil
	}

	root, err := parseNode(data)
	if err != nil {
		return types.Failure(fmt.Sprintf("parse failed: %v", err)), nil
	}

	nodes, err := htmlquery.QueryAll(root, query)
	if err != nil {
		return types.Failure(fmt.Sprintf("invalid xpath: %v", err)), nil
	}

	matches := make([]string, 0, len(nodes))
	for _, n := range nodes {
		if text := normalizeWhitespace(htmlquery.InnerText(n)); text != "" {
			matches = append(matches, text)
		}
	}

	return types.Success(map[string]interface{}{
		"matches": matches,
		"count":   len(matches),
	}), nil
}
