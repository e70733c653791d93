package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/MrEthical07/credkit"
)

type ctxKey int

const subjectKey ctxKey = iota

// SubjectFromContext returns the subject Guard attached to ctx.
func SubjectFromContext(ctx context.Context) (*credkit.Subject, bool) {
	s, ok := ctx.Value(subjectKey).(*credkit.Subject)
	return s, ok && s != nil
}

func withSubject(ctx context.Context, s *credkit.Subject) context.Context {
	return context.WithValue(ctx, subjectKey, s)
}

// Guard only lets requests through when the bearer token resolves to a
// subject. The subject is then available through SubjectFromContext.
func Guard(engine *credkit.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			subject := resolve(engine, r)
			if subject == nil {
				challenge(w)
				return
			}
			next.ServeHTTP(w, r.WithContext(withSubject(r.Context(), subject)))
		})
	}
}

func resolve(engine *credkit.Engine, r *http.Request) *credkit.Subject {
	if engine == nil {
		return nil
	}
	token, ok := BearerToken(r.Header.Get("Authorization"))
	if !ok {
		return nil
	}
	subject, err := engine.ResolveCurrentSubject(r.Context(), token)
	if err != nil {
		return nil
	}
	return subject
}

func challenge(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="credkit"`)
	http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
}

// BearerToken parses an Authorization header value of the form
// "Bearer <token>". The scheme is matched case-insensitively.
func BearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
