package middle

import (
	"net/http"
	"strings"

	"github.com/mstgnz/idpay/infra/config"
	"github.com/mstgnz/idpay/infra/response"
)

// maxBodySize caps request bodies; gateway callbacks are a handful of form fields
const maxBodySize = 1 << 20

// SecurityHeadersMiddleware adds security headers to responses. Inline scripts stay
// allowed because payment redirects navigate with one.
func SecurityHeadersMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			w.Header().Set("Content-Security-Policy", "default-src 'self'; script-src 'self' 'unsafe-inline'")
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

			next.ServeHTTP(w, r)
		})
	}
}

// IPWhitelistMiddleware restricts access to the IPs listed in ADMIN_IP_WHITELIST.
// An empty list allows everyone.
func IPWhitelistMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			whitelist := config.GetEnv("ADMIN_IP_WHITELIST", "")
			if whitelist == "" {
				next.ServeHTTP(w, r)
				return
			}

			clientIP := GetClientIP(r)
			for _, ip := range strings.Split(whitelist, ",") {
				if strings.TrimSpace(ip) == clientIP {
					next.ServeHTTP(w, r)
					return
				}
			}

			response.Error(w, http.StatusForbidden, "IP not whitelisted", nil)
		})
	}
}

// RequestValidationMiddleware validates content types and body size. Gateway
// callbacks and checkout links also accept form posts; everything else is JSON.
func RequestValidationMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxBodySize {
				response.Error(w, http.StatusRequestEntityTooLarge, "Request body too large", nil)
				return
			}

			if r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
				contentType := r.Header.Get("Content-Type")
				acceptsForm := strings.HasPrefix(r.URL.Path, "/v1/callback/") || strings.HasSuffix(r.URL.Path, "/pay")

				switch {
				case acceptsForm:
					if contentType != "" && !isJSON(contentType) && !isForm(contentType) {
						response.Error(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json or a form encoding", nil)
						return
					}
				case contentType == "":
					response.Error(w, http.StatusBadRequest, "Content-Type header is required", nil)
					return
				case !isJSON(contentType):
					response.Error(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json", nil)
					return
				}
			}

			r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
			next.ServeHTTP(w, r)
		})
	}
}

func isJSON(contentType string) bool {
	return strings.Contains(contentType, "application/json")
}

func isForm(contentType string) bool {
	return strings.Contains(contentType, "application/x-www-form-urlencoded") ||
		strings.Contains(contentType, "multipart/form-data")
}
