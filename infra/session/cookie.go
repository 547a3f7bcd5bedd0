package session

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/mstgnz/idpay/infra/config"
)

// sameSitePolicy returns the SameSite mode and Secure flag for the session and
// lease cookies. The gateway sends the user back with a cross-site POST, which
// only carries SameSite=None cookies, and browsers accept those over https only.
// Plain http deployments keep Lax.
func sameSitePolicy() (http.SameSite, bool) {
	if strings.HasPrefix(strings.ToLower(config.GetEnv("APP_URL", "")), "https://") {
		return http.SameSiteNoneMode, true
	}
	return http.SameSiteLaxMode, false
}

// newCookie builds an HttpOnly cookie on the root path with the cross-site policy
func newCookie(name, value string) *http.Cookie {
	sameSite, secure := sameSitePolicy()
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: sameSite,
	}
}

// encodeCookieValue escapes bytes net/http would drop from a cookie value
func encodeCookieValue(value string) string {
	return url.QueryEscape(value)
}

func decodeCookieValue(value string) (string, bool) {
	decoded, err := url.QueryUnescape(value)
	if err != nil {
		return "", false
	}
	return decoded, true
}
