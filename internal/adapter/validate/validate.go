// Package validate implements pipeline.UrlValidator: syntax checking,
// YouTube host classification, and a HEAD-based content-type/size check.
// The host-classification regex style is adapted from the teacher's
// internal/registry/registry.go pattern-matching-then-domain-fallback
// shape, narrowed from the teacher's three scrape targets (TikTok/XHS/
// Kuaishou) to this pipeline's single special case: YouTube.
package validate

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"path"
	"regexp"
	"strconv"
	"strings"

	"video-pipeline/internal/config"
)

var youtubePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^https?://(?:www\.)?youtube\.com/watch\?`),
	regexp.MustCompile(`(?i)^https?://(?:www\.)?youtube\.com/shorts/`),
	regexp.MustCompile(`(?i)^https?://youtu\.be/`),
	regexp.MustCompile(`(?i)^https?://m\.youtube\.com/watch\?`),
}

// URLValidator checks submitted URLs for syntax validity, YouTube
// classification, and (optionally) remote content acceptability.
type URLValidator struct {
	maxBytes        int64
	allowedTypes    map[string]bool
	client          *http.Client
}

// New builds a URLValidator from cfg.
func New(cfg config.ValidationConfig) *URLValidator {
	allowed := make(map[string]bool, len(cfg.AllowedContentTypes))
	for _, t := range cfg.AllowedContentTypes {
		allowed[strings.ToLower(t)] = true
	}
	return &URLValidator{
		maxBytes:     int64(cfg.MaxFileSizeMB) * 1024 * 1024,
		allowedTypes: allowed,
		client:       &http.Client{},
	}
}

// dangerousExtensions blocks submission of executables and scripts disguised
// as media URLs.
var dangerousExtensions = map[string]bool{
	".exe": true, ".bat": true, ".cmd": true, ".com": true, ".msi": true,
	".scr": true, ".dll": true, ".sh": true, ".bash": true, ".ps1": true,
	".vbs": true, ".jar": true, ".apk": true, ".app": true,
}

// IsSyntaxValid reports whether rawURL parses as an absolute http(s) URL
// that is neither local/loopback nor carrying a dangerous file extension.
func (v *URLValidator) IsSyntaxValid(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return false
	}
	if isLoopbackHost(u.Hostname()) {
		return false
	}
	if dangerousExtensions[strings.ToLower(path.Ext(u.Path))] {
		return false
	}
	return true
}

// isLoopbackHost reports whether host names localhost or resolves (by
// literal address, not DNS) to a loopback/private/link-local IP.
func isLoopbackHost(host string) bool {
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return false
	}
	return ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsUnspecified()
}

// IsYoutube reports whether rawURL matches a known YouTube watch/shorts URL
// shape or otherwise contains "youtube.com" or "youtu.be" anywhere in it.
func (v *URLValidator) IsYoutube(rawURL string) bool {
	for _, p := range youtubePatterns {
		if p.MatchString(rawURL) {
			return true
		}
	}
	lower := strings.ToLower(rawURL)
	return strings.Contains(lower, "youtube.com") || strings.Contains(lower, "youtu.be")
}

// IsContentAcceptable issues a HEAD request and checks Content-Type against
// the configured allow-list and Content-Length against the configured cap.
// Absent allow-list/cap configuration, the corresponding check is skipped.
func (v *URLValidator) IsContentAcceptable(ctx context.Context, rawURL string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return false, err
	}
	resp, err := v.client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return false, fmt.Errorf("HEAD %s returned status %d", rawURL, resp.StatusCode)
	}

	if len(v.allowedTypes) > 0 {
		contentType := strings.ToLower(strings.SplitN(resp.Header.Get("Content-Type"), ";", 2)[0])
		if contentType != "" && !v.allowedTypes[contentType] {
			return false, nil
		}
	}

	if v.maxBytes > 0 {
		if cl := resp.Header.Get("Content-Length"); cl != "" {
			if size, err := strconv.ParseInt(cl, 10, 64); err == nil && size > v.maxBytes {
				return false, nil
			}
		}
	}

	return true, nil
}
