package server

import (
	"html"
	"net/http"
	"regexp"
	"strings"
)

// CSPConfig holds Content-Security-Policy configuration.
type CSPConfig struct {
	// DefaultSrc specifies default source for all directives
	DefaultSrc []string
	// ConnectSrc specifies valid sources for fetch, XMLHttpRequest, WebSocket
	ConnectSrc []string
	// FrameAncestors specifies valid parents that may embed the page
	FrameAncestors []string
	// BaseURI restricts URLs that can be used in <base> element
	BaseURI []string
	// FormAction restricts URLs that can be used as form action targets
	FormAction []string
	// UpgradeInsecureRequests forces HTTPS
	UpgradeInsecureRequests bool
}

// APICSPConfig returns a strict CSP configuration for JSON endpoints.
// Responses never load resources, so everything is denied.
func APICSPConfig() CSPConfig {
	return CSPConfig{
		DefaultSrc:     []string{"'none'"},
		FrameAncestors: []string{"'none'"},
		BaseURI:        []string{"'none'"},
		FormAction:     []string{"'none'"},
	}
}

// BuildCSPHeader builds a Content-Security-Policy header value from config.
func (cfg CSPConfig) BuildCSPHeader() string {
	var directives []string
	add := func(name string, sources []string) {
		if len(sources) > 0 {
			directives = append(directives, name+" "+strings.Join(sources, " "))
		}
	}
	add("default-src", cfg.DefaultSrc)
	add("connect-src", cfg.ConnectSrc)
	add("frame-ancestors", cfg.FrameAncestors)
	add("base-uri", cfg.BaseURI)
	add("form-action", cfg.FormAction)
	if cfg.UpgradeInsecureRequests {
		directives = append(directives, "upgrade-insecure-requests")
	}
	return strings.Join(directives, "; ")
}

// SecurityHeadersWithCSP adds the standard security headers plus the
// configured CSP to every response.
func SecurityHeadersWithCSP(cfg CSPConfig, next http.Handler) http.Handler {
	cspHeader := cfg.BuildCSPHeader()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		if cspHeader != "" {
			h.Set("Content-Security-Policy", cspHeader)
		}
		next.ServeHTTP(w, r)
	})
}

// SanitizeUserInput trims whitespace and removes control characters other
// than newline and tab.
func SanitizeUserInput(input string) string {
	input = strings.TrimSpace(input)

	var result strings.Builder
	for _, r := range input {
		if r >= 0x20 && r != 0x7f || r == '\n' || r == '\t' {
			result.WriteRune(r)
		}
	}
	return result.String()
}

var htmlTag = regexp.MustCompile(`<[^>]*>`)

// StripHTMLTags removes HTML tags and decodes entities, leaving plain text.
func StripHTMLTags(input string) string {
	return html.UnescapeString(htmlTag.ReplaceAllString(input, ""))
}

// AllowedJSONContentTypes are the request bodies the API accepts.
var AllowedJSONContentTypes = []string{"application/json"}

// ValidateContentType checks if a Content-Type header is in the allowed list.
// Media type parameters such as charset are ignored.
func ValidateContentType(contentType string, allowed []string) bool {
	mediaType := strings.TrimSpace(strings.Split(contentType, ";")[0])
	for _, a := range allowed {
		if strings.EqualFold(mediaType, a) {
			return true
		}
	}
	return false
}
