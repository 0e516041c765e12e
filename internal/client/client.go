// Package client implements an HTTP client that requests a challenge,
// brute-forces solutions for it, and submits them for verification — the
// solver side of SPEC_FULL.md's [C6 — supplemented] component.
package client

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"powchallenge/internal/challenge"
	"powchallenge/internal/validator"
)

// Config holds client configuration.
type Config struct {
	BaseURL        string
	SiteID         string
	APIKey         string
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	SolveTimeout   time.Duration
}

// Client requests challenges from a server and solves them.
type Client struct {
	config Config
	http   *http.Client
	logger *slog.Logger
}

// NewClient creates a new HTTP client instance.
func NewClient(config Config, logger *slog.Logger) *Client {
	return &Client{
		config: config,
		http: &http.Client{
			Timeout: config.ConnectTimeout + config.ReadTimeout + config.WriteTimeout,
		},
		logger: logger,
	}
}

// verifyResponse mirrors the server's {"valid": bool} response body.
type verifyResponse struct {
	Valid bool `json:"valid"`
}

// errorResponse mirrors the server's taxonomy error body.
type errorResponse struct {
	ID      string `json:"id"`
	Context string `json:"context"`
}

// Solve requests a challenge, brute-forces enough prefixes to clear the
// threshold, and submits the solutions for verification. It reports whether
// the server accepted the result.
func (c *Client) Solve(ctx context.Context) (bool, error) {
	ch, err := c.fetchChallenge(ctx)
	if err != nil {
		return false, fmt.Errorf("client: failed to fetch challenge: %w", err)
	}

	c.logger.Info("challenge received",
		"id", ch.ID,
		"difficulty", ch.Params.Difficulty,
		"prefixesToSolve", ch.Params.PrefixesToSolve,
		"prefixCount", len(ch.Prefixes))

	solveCtx, cancel := context.WithTimeout(ctx, c.config.SolveTimeout)
	defer cancel()

	startTime := time.Now()
	solutions := make([]*string, len(ch.Prefixes))
	solved := 0
	for i, prefix := range ch.Prefixes {
		if solved >= ch.Params.PrefixesToSolve {
			break
		}
		sol, err := solvePrefix(solveCtx, prefix, ch.Params.Difficulty, ch.Params.SolutionLength)
		if err != nil {
			c.logger.Warn("failed to solve prefix", "index", i, "error", err)
			continue
		}
		encoded := base64.StdEncoding.EncodeToString(sol)
		solutions[i] = &encoded
		solved++
	}

	c.logger.Info("solving finished", "solved", solved, "duration", time.Since(startTime))

	if solved < ch.Params.PrefixesToSolve {
		return false, fmt.Errorf("client: only solved %d of %d required prefixes before timeout", solved, ch.Params.PrefixesToSolve)
	}

	return c.submit(ctx, ch.ID.String(), solutions)
}

func (c *Client) fetchChallenge(ctx context.Context) (challenge.Challenge, error) {
	url := fmt.Sprintf("%s/site/%s/challenge", c.config.BaseURL, c.config.SiteID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return challenge.Challenge{}, err
	}
	req.Header.Set("api-key", c.config.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return challenge.Challenge{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errBody errorResponse
		_ = json.NewDecoder(resp.Body).Decode(&errBody)
		return challenge.Challenge{}, fmt.Errorf("server returned %d: %s: %s", resp.StatusCode, errBody.ID, errBody.Context)
	}

	var ch challenge.Challenge
	if err := json.NewDecoder(resp.Body).Decode(&ch); err != nil {
		return challenge.Challenge{}, err
	}
	return ch, nil
}

func (c *Client) submit(ctx context.Context, challengeID string, solutions []*string) (bool, error) {
	payload, err := json.Marshal(struct {
		Solutions []*string `json:"solutions"`
	}{Solutions: solutions})
	if err != nil {
		return false, err
	}

	url := fmt.Sprintf("%s/site/%s/challenge/%s", c.config.BaseURL, c.config.SiteID, challengeID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return false, err
	}
	req.Header.Set("api-key", c.config.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errBody errorResponse
		_ = json.NewDecoder(resp.Body).Decode(&errBody)
		return false, fmt.Errorf("server returned %d: %s: %s", resp.StatusCode, errBody.ID, errBody.Context)
	}

	var result verifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return false, err
	}
	return result.Valid, nil
}

// solvePrefix brute-forces a solutionLength-byte value that, concatenated
// onto prefix, hashes to at least difficulty leading zero bits. Candidates
// are counted up as a little-endian counter written into the leading bytes
// of the solution buffer, which keeps progress deterministic under test.
func solvePrefix(ctx context.Context, prefix challenge.Prefix, difficulty, solutionLength int) ([]byte, error) {
	solution := make([]byte, solutionLength)

	counterBytes := 8
	if counterBytes > solutionLength {
		counterBytes = solutionLength
	}

	for counter := uint64(0); ; counter++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		var tmp [8]byte
		binary.LittleEndian.PutUint64(tmp[:], counter)
		copy(solution[:counterBytes], tmp[:counterBytes])

		if validator.Validate(prefix, solution, difficulty) {
			out := make([]byte, solutionLength)
			copy(out, solution)
			return out, nil
		}
	}
}
