package httpapi

import (
	"bytes"
	"context"
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/google/uuid"

	"powchallenge/internal/apierr"
)

// logging records method, path, final status, and wall-clock duration for
// every request, error responses included. It always runs first in the
// chain so it observes the outcome of every later stage.
func (a *API) logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		a.logger.Info("request handled",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// bufferedResponse collects the inner handler's output instead of writing it
// to the live connection, so a losing handler can be discarded without ever
// touching the real http.ResponseWriter after ServeHTTP returns.
type bufferedResponse struct {
	header http.Header
	status int
	body   bytes.Buffer
}

func newBufferedResponse() *bufferedResponse {
	return &bufferedResponse{header: make(http.Header), status: http.StatusOK}
}

func (b *bufferedResponse) Header() http.Header         { return b.header }
func (b *bufferedResponse) Write(p []byte) (int, error) { return b.body.Write(p) }
func (b *bufferedResponse) WriteHeader(status int)      { b.status = status }

// flushTo copies the buffered response onto a real ResponseWriter.
func (b *bufferedResponse) flushTo(w http.ResponseWriter) {
	dst := w.Header()
	for k, v := range b.header {
		dst[k] = v
	}
	w.WriteHeader(b.status)
	w.Write(b.body.Bytes())
}

// timeout attaches a deadline to the request context. The inner chain always
// runs against a buffered recorder, never the live ResponseWriter: if the
// deadline fires first, the client receives a Timeout response and whatever
// the inner chain writes afterward is discarded instead of racing the
// connection net/http has already begun finalizing. This mirrors
// http.TimeoutHandler's own buffer-then-copy approach.
func timeout(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()

			rec := newBufferedResponse()
			done := make(chan struct{})
			go func() {
				defer close(done)
				next.ServeHTTP(rec, r.WithContext(ctx))
			}()

			select {
			case <-done:
				rec.flushTo(w)
			case <-ctx.Done():
				apierr.Write(w, apierr.New(apierr.Timeout, "request exceeded its deadline"))
			}
		})
	}
}

// siteResolve parses the {siteId} path value as a UUID and looks it up in
// the store's catalogue, attaching the resolved Site to the request
// context. Malformed or unknown ids are both SiteNotFound: the caller
// cannot distinguish a syntactically invalid id from a valid but absent one.
func (a *API) siteResolve(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(r.PathValue("siteId"))
		if err != nil {
			apierr.Write(w, apierr.New(apierr.SiteNotFound, "siteId is not a valid uuid"))
			return
		}

		s, ok := a.store.GetSite(id)
		if !ok {
			apierr.Write(w, apierr.New(apierr.SiteNotFound, "no site with that id"))
			return
		}

		next.ServeHTTP(w, r.WithContext(withSite(r.Context(), s)))
	})
}

// challengeResolve parses {challengeId} and looks it up under the site
// already attached to the context by siteResolve, which must run first.
func (a *API) challengeResolve(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, ok := siteFromContext(r.Context())
		if !ok {
			apierr.Write(w, apierr.New(apierr.InternalServerError, "site missing from context"))
			return
		}

		id, err := uuid.Parse(r.PathValue("challengeId"))
		if err != nil {
			apierr.Write(w, apierr.New(apierr.ChallengeNotFound, "challengeId is not a valid uuid"))
			return
		}

		c, ok := a.store.GetChallenge(s.ID, id)
		if !ok {
			apierr.Write(w, apierr.New(apierr.ChallengeNotFound, "no challenge with that id"))
			return
		}

		next.ServeHTTP(w, r.WithContext(withChallenge(r.Context(), c)))
	})
}

// auth requires the api-key header to match the resolved site's API key
// using a constant-time comparison. The site's precomputed APIKeyHash is not
// consulted here; the raw key comparison below is what gates access.
func (a *API) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, ok := siteFromContext(r.Context())
		if !ok {
			apierr.Write(w, apierr.New(apierr.InternalServerError, "site missing from context"))
			return
		}

		key := r.Header.Get("api-key")
		if key == "" {
			apierr.Write(w, apierr.New(apierr.MissingApiKey, "api-key header is required"))
			return
		}

		if subtle.ConstantTimeCompare([]byte(key), []byte(s.APIKey)) != 1 {
			apierr.Write(w, apierr.New(apierr.WrongApiKey, "api-key does not match"))
			return
		}

		next.ServeHTTP(w, r)
	})
}
