package webpage

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/microcosm-cc/bluemonday"

	"github.com/junctionhq/junction/gateway/internal/shared/types"
)

const (
	// maxFetchBytes caps downloaded pages to protect gateway memory.
	maxFetchBytes = 5 * 1024 * 1024

	// maxHTMLBytes caps caller-supplied HTML.
	maxHTMLBytes = 10 * 1024 * 1024

	fetchTimeout = 20 * time.Second
	maxRedirects = 5
)

// pageOps owns the HTTP client and sanitizer shared by all webpage
// methods.
type pageOps struct {
	client    *resty.Client
	sanitizer *bluemonday.Policy
}

func newPageOps() *pageOps {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 2
	retryClient.RetryWaitMin = 200 * time.Millisecond
	retryClient.RetryWaitMax = 2 * time.Second
	retryClient.Logger = nil

	client := resty.NewWithClient(retryClient.StandardClient()).
		SetTimeout(fetchTimeout).
		SetRedirectPolicy(resty.FlexibleRedirectPolicy(maxRedirects)).
		SetHeader("User-Agent", "junction-gateway/1.0")

	return &pageOps{
		client:    client,
		sanitizer: bluemonday.UGCPolicy(),
	}
}

// page is one downloaded document.
type page struct {
	url         string
	body        []byte
	status      int
	contentType string
	charset     string
}

// download fetches a URL and returns the page, or a failure result
// describing why it could not be fetched.
func (o *pageOps) download(ctx context.Context, rawURL string) (*page, *types.Result) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, types.Failure(fmt.Sprintf("invalid url: %v", err))
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, types.Failure(fmt.Sprintf("unsupported scheme: %s", parsed.Scheme))
	}

	resp, err := o.client.R().SetContext(ctx).Get(rawURL)
	if err != nil {
		return nil, types.Failure(fmt.Sprintf("fetch failed: %v", err))
	}

	body := resp.Body()
	if len(body) > maxFetchBytes {
		return nil, types.Failure(fmt.Sprintf("page exceeds maximum size of %d bytes", maxFetchBytes))
	}

	contentType := resp.Header().Get("Content-Type")
	if contentType == "" {
		contentType = mimetype.Detect(body).String()
	}

	finalURL := rawURL
	if r := resp.RawResponse; r != nil && r.Request != nil && r.Request.URL != nil {
		finalURL = r.Request.URL.String()
	}

	return &page{
		url:         finalURL,
		body:        body,
		status:      resp.StatusCode(),
		contentType: contentType,
		charset:     detectCharset(body),
	}, nil
}

// source resolves the html/url parameter pair into raw bytes plus the
// base URL used for resolving relative links.
func (o *pageOps) source(ctx context.Context, params map[string]interface{}) ([]byte, string, *types.Result) {
	if raw, ok := getString(params, "html"); ok && raw != "" {
		if len(raw) > maxHTMLBytes {
			return nil, "", types.Failure(fmt.Sprintf("html exceeds maximum size of %d bytes", maxHTMLBytes))
		}
		base, _ := getString(params, "base")
		return []byte(raw), base, nil
	}

	rawURL, ok := getString(params, "url")
	if !ok || rawURL == "" {
		return nil, "", types.Failure("url or html parameter required")
	}

	pg, fail := o.download(ctx, rawURL)
	if fail != nil {
		return nil, "", fail
	}
	if pg.status >= 400 {
		return nil, "", types.Failure(fmt.Sprintf("page returned status %d", pg.status))
	}
	if !isHTML(pg.contentType) {
		return nil, "", types.Failure(fmt.Sprintf("content type %s is not HTML", pg.contentType))
	}
	return pg.body, pg.url, nil
}

func (o *pageOps) fetch(ctx context.Context, params map[string]interface{}) (*types.Result, error) {
	rawURL, ok := getString(params, "url")
	if !ok || rawURL == "" {
		return types.Failure("url parameter required"), nil
	}

	pg, fail := o.download(ctx, rawURL)
	if fail != nil {
		return fail, nil
	}

	content := string(pg.body)
	if getBool(params, "sanitize", true) && isHTML(pg.contentType) {
		content = o.sanitizer.Sanitize(content)
	}

	return types.Success(map[string]interface{}{
		"url":          pg.url,
		"status":       pg.status,
		"content_type": pg.contentType,
		"charset":      pg.charset,
		"size":         len(pg.body),
		"html":         content,
	}), nil
}
