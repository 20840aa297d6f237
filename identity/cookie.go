package identity

import (
	"net/http"

	"github.com/gorilla/sessions"
	"github.com/rs/zerolog"
)

const (
	sessionKey = "ideabox-identity"
	userIDKey  = "userId"

	cookieMaxAge = 365 * 24 * 60 * 60
)

// A CookieProvider persists identifiers in a signed cookie.
type CookieProvider struct {
	sessionStore *sessions.CookieStore
	logger       zerolog.Logger
}

func NewCookieProvider(secret []byte, secure bool, logger zerolog.Logger) *CookieProvider {
	sessionStore := sessions.NewCookieStore(secret)
	sessionStore.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   cookieMaxAge,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}

	return &CookieProvider{
		sessionStore: sessionStore,
		logger:       logger,
	}
}

// Identify returns the identifier stored in the request cookie. If there is none,
// or if the cookie cannot be decoded, a new identifier is issued and the cookie
// is written on w.
func (p *CookieProvider) Identify(w http.ResponseWriter, r *http.Request) (string, error) {
	session, err := p.sessionStore.Get(r, sessionKey)
	if err != nil {
		// Get still returns a fresh session when the cookie is unreadable,
		// typically after the secret changed.
		p.logger.Debug().Err(err).Msg("Discarding unreadable identity cookie")
	}

	if v, ok := session.Values[userIDKey].(string); ok {
		if id, ok := Normalize(v); ok {
			return id, nil
		}
	}

	id, err := New()
	if err != nil {
		return "", err
	}

	session.Values[userIDKey] = id
	if err := session.Save(r, w); err != nil {
		return "", err
	}

	p.logger.Debug().Str("user_id", id).Msg("Issued identifier")

	return id, nil
}
