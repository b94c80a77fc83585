package memberauth

import (
	"errors"
	"strings"
)

var (
	ErrInvalidCredentials = errors.New("memberauth: invalid credentials")
	ErrRegistrationFailed = errors.New("memberauth: registration failed")
	ErrRefreshFailed      = errors.New("memberauth: refresh failed")
	ErrNetwork            = errors.New("memberauth: network error")
	ErrAutoLoginFailed    = errors.New("memberauth: account created but login failed")
)

const (
	defaultLoginMessage        = "Login failed"
	defaultRegistrationMessage = "Registration failed"
	networkMessage             = "Network error"
	autoLoginMessage           = "Account created but login failed. Please sign in."
)

// FieldError is a single structured validation message returned by the
// authentication service.
type FieldError struct {
	// Field is the last element of the server-provided location, if any.
	Field   string
	Message string
}

// AuthError is returned by login and registration. Kind is one of the
// sentinel errors above so callers can branch with errors.Is; Message is the
// human-readable text meant for display.
type AuthError struct {
	Kind        error
	Message     string
	FieldErrors []FieldError

	cause error
}

func (e *AuthError) Error() string {
	if e.Message == "" {
		return e.Kind.Error()
	}
	return e.Kind.Error() + ": " + e.Message
}

func (e *AuthError) Unwrap() []error {
	if e.cause == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.cause}
}

// Fields returns the field errors keyed by field name. Messages for the same
// field are joined in server order.
func (e *AuthError) Fields() map[string]string {
	if len(e.FieldErrors) == 0 {
		return nil
	}
	out := make(map[string]string, len(e.FieldErrors))
	for _, fe := range e.FieldErrors {
		if fe.Field == "" {
			continue
		}
		if prev, ok := out[fe.Field]; ok {
			out[fe.Field] = prev + ", " + fe.Message
			continue
		}
		out[fe.Field] = fe.Message
	}
	return out
}

// DisplayMessage returns the text a UI should show for err. Login and
// registration errors carry their own message; anything else collapses to a
// generic network message.
func DisplayMessage(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrAutoLoginFailed) {
		return autoLoginMessage
	}
	var ae *AuthError
	if errors.As(err, &ae) && strings.TrimSpace(ae.Message) != "" {
		return ae.Message
	}
	return networkMessage
}

func networkError(cause error) *AuthError {
	return &AuthError{Kind: ErrNetwork, Message: networkMessage, cause: cause}
}
