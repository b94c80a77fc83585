package memberauth

const (
	// LoginPath is the authentication service endpoint that exchanges an
	// identifier and secret for an access credential.
	LoginPath = "/auth/login"

	// RegisterPath creates a new member account.
	RegisterPath = "/auth/register"

	// RefreshPath mints a new access credential from the refresh anchor cookie.
	//
	// The anchor is httponly and travels in the cookie jar; client code never
	// reads it.
	RefreshPath = "/auth/refresh"

	// LogoutPath invalidates the refresh anchor server-side.
	LogoutPath = "/auth/logout"

	// ProfilePath returns the authenticated member's profile. It is consumed
	// through the Gateway, never by the token client.
	ProfilePath = "/auth/me"

	// CSRFCookieName is the readable cookie the service mirrors the CSRF token
	// into. It is paired 1:1 with the refresh anchor.
	CSRFCookieName = "csrf_token"

	// CSRFHeaderName carries the CSRF token on refresh and logout calls.
	CSRFHeaderName = "X-CSRF-Token"

	// RequestIDHeader is attached by the Gateway to every outbound request
	// that does not already carry one.
	RequestIDHeader = "X-Request-ID"

	// StorageKey is the fixed key the access credential is persisted under.
	StorageKey = "access_token"

	// ReturnToParam names the query parameter that preserves the originally
	// requested location when the guard redirects a guest.
	ReturnToParam = "return_to"

	// DefaultEntryPoint is the public page guests are redirected to.
	DefaultEntryPoint = "/"

	refreshFlightKey = "refresh"
)
