package httpapi

import (
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/justinas/alice"

	"powchallenge/internal/apierr"
	"powchallenge/internal/challenge"
	"powchallenge/internal/store"
	"powchallenge/internal/validator"
)

// API wires the store to the HTTP request pipeline of SPEC_FULL.md's C5.
type API struct {
	store  *store.Store
	logger *slog.Logger
	now    func() time.Time
}

// New constructs an API bound to s, logging through logger.
func New(s *store.Store, logger *slog.Logger) *API {
	return &API{store: s, logger: logger, now: time.Now}
}

// Routes builds the full mux, wiring the ordered middleware chain of
// SPEC_FULL.md §C5 onto each endpoint.
func (a *API) Routes() http.Handler {
	mux := http.NewServeMux()

	base := alice.New(a.logging, timeout(time.Second))
	siteChain := base.Append(a.siteResolve)
	challengeChain := siteChain.Append(a.challengeResolve)

	mux.Handle("GET /site/{siteId}/challenge", siteChain.Append(a.auth).ThenFunc(a.issueHandler))
	mux.Handle("POST /site/{siteId}/challenge/{challengeId}", challengeChain.Append(a.auth).ThenFunc(a.verifyHandler))
	mux.Handle("DELETE /site/{siteId}/challenge/{challengeId}", challengeChain.Append(a.auth).ThenFunc(a.deleteHandler))
	mux.Handle("GET /health", base.ThenFunc(a.healthHandler))

	return mux
}

func (a *API) issueHandler(w http.ResponseWriter, r *http.Request) {
	s, ok := siteFromContext(r.Context())
	if !ok {
		apierr.Write(w, apierr.New(apierr.InternalServerError, "site missing from context"))
		return
	}

	c, err := challenge.Generate(s, a.now())
	if err != nil {
		a.logger.Error("failed to generate challenge", "error", err)
		apierr.Write(w, apierr.New(apierr.InternalServerError, "failed to generate challenge"))
		return
	}

	if err := a.store.StoreChallenge(s, c); err != nil {
		apierr.Write(w, apierr.New(apierr.SiteNotFound, "failed to store challenge"))
		return
	}

	writeJSON(w, http.StatusOK, c)
}

type verifyRequest struct {
	Solutions []*string `json:"solutions"`
}

type verifyResponse struct {
	Valid bool `json:"valid"`
}

func (a *API) verifyHandler(w http.ResponseWriter, r *http.Request) {
	s, ok := siteFromContext(r.Context())
	if !ok {
		apierr.Write(w, apierr.New(apierr.InternalServerError, "site missing from context"))
		return
	}
	c, ok := challengeFromContext(r.Context())
	if !ok {
		apierr.Write(w, apierr.New(apierr.InternalServerError, "challenge missing from context"))
		return
	}

	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierr.Write(w, apierr.New(apierr.WrongNumberOfSolutions, "malformed request body"))
		return
	}

	if len(req.Solutions) != s.PrefixCount {
		apierr.Write(w, apierr.New(apierr.WrongNumberOfSolutions, "solutions count does not match prefixCount"))
		return
	}

	difficulty := c.Params.Difficulty
	threshold := c.Params.PrefixesToSolve

	validCount := 0
	for i, encoded := range req.Solutions {
		if encoded == nil {
			continue
		}
		if i >= len(c.Prefixes) {
			apierr.Write(w, apierr.New(apierr.InternalServerError, "missing internal prefix"))
			return
		}

		solution, err := base64.StdEncoding.DecodeString(*encoded)
		if err != nil {
			continue
		}

		if len(solution) != c.Params.SolutionLength {
			apierr.Write(w, apierr.New(apierr.SolutionWrongSize, "decoded solution length does not match solutionLength"))
			return
		}

		if validator.Validate(c.Prefixes[i], solution, difficulty) {
			validCount++
		}
	}

	valid := validCount >= threshold

	// Consume the challenge unconditionally: the store is the authority on
	// at-most-once consumption, so the verification result above is
	// discarded if deletion loses the race.
	if err := a.store.DeleteChallenge(s, c); err != nil {
		apierr.Write(w, apierr.New(apierr.ChallengeNotFound, "challenge was already consumed or expired"))
		return
	}

	writeJSON(w, http.StatusOK, verifyResponse{Valid: valid})
}

func (a *API) deleteHandler(w http.ResponseWriter, r *http.Request) {
	s, ok := siteFromContext(r.Context())
	if !ok {
		apierr.Write(w, apierr.New(apierr.InternalServerError, "site missing from context"))
		return
	}
	c, ok := challengeFromContext(r.Context())
	if !ok {
		apierr.Write(w, apierr.New(apierr.InternalServerError, "challenge missing from context"))
		return
	}

	if err := a.store.DeleteChallenge(s, c); err != nil {
		apierr.Write(w, apierr.New(apierr.ChallengeNotFound, "challenge not found"))
		return
	}

	w.WriteHeader(http.StatusOK)
}

func (a *API) healthHandler(w http.ResponseWriter, r *http.Request) {
	if !a.store.Healthy() {
		apierr.Write(w, apierr.New(apierr.InternalServerError, "store is not healthy"))
		return
	}
	w.WriteHeader(http.StatusOK)
}

func writeJSON(w http.ResponseWriter, status int, body any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(body)
}
