package memberauth

import (
	"net/http"
	"net/url"
)

// CSRFToken reads the CSRF cookie the jar holds for target. It is called at
// the moment of each refresh or logout so a token rotated by the server is
// always picked up.
func CSRFToken(jar http.CookieJar, target *url.URL) (string, bool) {
	if jar == nil || target == nil {
		return "", false
	}
	for _, c := range jar.Cookies(target) {
		if c.Name == CSRFCookieName && c.Value != "" {
			return c.Value, true
		}
	}
	return "", false
}

// AttachCSRF sets the CSRF header. An empty token is still sent as an empty
// header; the service decides whether that is acceptable.
func AttachCSRF(req *http.Request, token string) {
	req.Header.Set(CSRFHeaderName, token)
}
