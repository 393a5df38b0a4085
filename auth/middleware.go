package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/teranos/newsdesk/am"
	"github.com/teranos/newsdesk/logger"
)

type credential struct {
	token []byte
	actor Actor
}

// Authenticator resolves bearer tokens to the actors configured under [[auth.actors]].
// The token set can be replaced at runtime with Reload.
type Authenticator struct {
	mu          sync.RWMutex
	credentials []credential
	logger      *zap.SugaredLogger
}

// NewAuthenticator creates an authenticator over cfg's actors
func NewAuthenticator(cfg am.AuthConfig, log *zap.SugaredLogger) *Authenticator {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	a := &Authenticator{logger: log.Named("auth")}
	a.Reload(cfg)
	return a
}

// Reload replaces the configured actors. Actors without an id or token are ignored.
func (a *Authenticator) Reload(cfg am.AuthConfig) {
	creds := make([]credential, 0, len(cfg.Actors))
	for _, actor := range cfg.Actors {
		if actor.ID == "" || actor.Token == "" {
			a.logger.Warnw("Ignoring actor without id or token", logger.FieldActor, actor.ID)
			continue
		}
		creds = append(creds, credential{
			token: []byte(actor.Token),
			actor: Actor{ID: actor.ID, Admin: actor.Admin},
		})
	}

	a.mu.Lock()
	a.credentials = creds
	a.mu.Unlock()

	a.logger.Infow("Actors loaded", logger.FieldCount, len(creds))
}

// OnConfigReload adapts Reload to am.ConfigWatcher callbacks
func (a *Authenticator) OnConfigReload(cfg *am.Config) error {
	a.Reload(cfg.Auth)
	return nil
}

// Authenticate returns the actor owning token. Every credential is compared in
// constant time.
func (a *Authenticator) Authenticate(token string) (*Actor, bool) {
	if token == "" {
		return nil, false
	}
	presented := []byte(token)

	a.mu.RLock()
	defer a.mu.RUnlock()

	var found *Actor
	for i := range a.credentials {
		if subtle.ConstantTimeCompare(presented, a.credentials[i].token) == 1 && found == nil {
			actor := a.credentials[i].actor
			found = &actor
		}
	}
	return found, found != nil
}

// Middleware puts the actor owning the request's token into the request context.
// Requests without a valid token pass through without an actor; the operations
// behind it reject them.
func (a *Authenticator) Middleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := extractToken(r)
		if token == "" {
			next(w, r)
			return
		}

		actor, ok := a.Authenticate(token)
		if !ok {
			a.logger.Debugw("Unknown token", logger.FieldPath, r.URL.Path)
			next(w, r)
			return
		}
		next(w, r.WithContext(WithActor(r.Context(), actor)))
	}
}

// extractToken extracts the bearer token from request
// Checks Authorization header first, then falls back to query param (for WebSocket)
func extractToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		if token, ok := strings.CutPrefix(header, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
		return strings.TrimSpace(header)
	}
	return r.URL.Query().Get("token")
}
