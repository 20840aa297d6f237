package ideabox

import (
	"context"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
)

// middleware is a convenient type for declaring middlewares.
type middleware func(httprouter.Handle) httprouter.Handle

// httpMiddleware is a convenient type for declaring middlewares wrapping the whole router.
type httpMiddleware func(http.Handler) http.Handler

// contextKey is a type for storing values in each request context.
type contextKey string

// String returns a stringified context key.
func (k contextKey) String() string { return string(k) }

// ctxKeyUserID is the context key for storing the identifier of the browser in a context.
var ctxKeyUserID = contextKey("userID")

// ctxUserID is a helper func to fetch the identifier from the context, empty if there is none.
func ctxUserID(ctx context.Context) string {
	v, _ := ctx.Value(ctxKeyUserID).(string)
	return v
}

// withMiddlewares is a helper function to declare routes with middlewares more easily.
// The caller declares its routes in the body on the f function, calling f's argument on its
// httprouter.Handle to wrap them.
func withMiddlewares(f func(middleware), middlewares ...middleware) {
	wrapper := func(handle httprouter.Handle) httprouter.Handle {
		h := handle
		for i := len(middlewares) - 1; i >= 0; i-- {
			m := middlewares[i]
			h = m(h)
		}
		return h
	}

	f(wrapper)
}

// identityMiddleware fetches the identifier of the browser through the identity provider,
// issuing one if needed, and stores it in the request context.
func (s *Server) identityMiddleware() middleware {
	return func(next httprouter.Handle) httprouter.Handle {
		return httprouter.Handle(func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
			userID, err := s.identities.Identify(w, r)
			if err != nil {
				s.Logger.Error().Err(err).Msg("Failed to identify browser")
				writeMessage(w, http.StatusInternalServerError, "Failed to issue identifier")
				return
			}

			ctx := context.WithValue(r.Context(), ctxKeyUserID, userID)
			next(w, r.WithContext(ctx), p)
		})
	}
}

// limitBodyMiddleware caps the size of request bodies.
func (s *Server) limitBodyMiddleware() middleware {
	return func(next httprouter.Handle) httprouter.Handle {
		return httprouter.Handle(func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
			}
			next(w, r, p)
		})
	}
}

// statusRecorder remembers the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// logMiddleware logs every request once it has been served.
func (s *Server) logMiddleware() httpMiddleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			s.Logger.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", rec.status).
				Dur("duration", time.Since(start)).
				Msg("request")
		})
	}
}

// corsMiddleware allows browsers to call the API from any origin.
func (s *Server) corsMiddleware() httpMiddleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", "*")
			h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type")
			next.ServeHTTP(w, r)
		})
	}
}
