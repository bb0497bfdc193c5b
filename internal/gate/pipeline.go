package gate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// Handler is the business collaborator guarded by the pipeline. It receives a
// payload that has already passed schema and security validation and returns
// an opaque success value or an error; typed failures map per the taxonomy,
// anything else becomes an internal error.
type Handler func(ctx context.Context, payload map[string]any) (any, error)

// Op describes one protected operation. Zero values select pipeline defaults.
type Op struct {
	Name           string
	RequiredFields []string
	RequireAuth    bool          // bearer-token format stub, not credential verification
	MaxRequests    int           // rate limit override
	Window         time.Duration // rate limit window override
	MaxBodyBytes   int64         // body ceiling override
}

// Config assembles a Pipeline from its stateful parts.
type Config struct {
	Logger    zerolog.Logger
	Store     Store      // rate limit store; nil selects an in-memory store
	Validator *Validator // nil selects the default check set
	Ledger    *Ledger    // nil selects the default capacity

	MaxRequests  int           // default rate limit, 60 when zero
	Window       time.Duration // default window, 60s when zero
	MaxBodyBytes int64         // default body ceiling, 1 MiB when zero
	SlowAfter    time.Duration // advisory slow-handler threshold, 30s when zero

	// Metric hooks, invoked on the matching rejection. Optional.
	OnRateLimited      func(op string)
	OnCapacityRejected func(op string)
}

const (
	defaultMaxBodyBytes = int64(1 << 20)
	defaultSlowAfter    = 30 * time.Second
	minTokenLen         = 10
)

// Pipeline composes the admission stages in a fixed order around a handler:
// start log, outer catch-all, rate limit, schema/shape checks, security
// validation, resource admission, handler, end log. Stages 3-6 each
// short-circuit the chain; the chain itself holds no business state.
type Pipeline struct {
	log       zerolog.Logger
	limiter   *Limiter
	validator *Validator
	ledger    *Ledger
	maxBody   int64
	slowAfter time.Duration

	onRateLimited      func(op string)
	onCapacityRejected func(op string)
}

// New builds a Pipeline, filling unset parts with defaults.
func New(cfg Config) *Pipeline {
	store := cfg.Store
	if store == nil {
		store = NewMemoryStore(nil)
	}
	validator := cfg.Validator
	if validator == nil {
		validator = NewValidator(ValidatorConfig{})
	}
	ledger := cfg.Ledger
	if ledger == nil {
		ledger = NewLedger(0)
	}
	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = defaultMaxBodyBytes
	}
	slowAfter := cfg.SlowAfter
	if slowAfter <= 0 {
		slowAfter = defaultSlowAfter
	}
	return &Pipeline{
		log:                cfg.Logger,
		limiter:            NewLimiter(store, cfg.MaxRequests, cfg.Window),
		validator:          validator,
		ledger:             ledger,
		maxBody:            maxBody,
		slowAfter:          slowAfter,
		onRateLimited:      cfg.OnRateLimited,
		onCapacityRejected: cfg.OnCapacityRejected,
	}
}

// Ledger exposes the admission ledger for status reporting.
func (p *Pipeline) Ledger() *Ledger { return p.ledger }

// Handler wraps h in the fixed-order stage chain for op.
func (p *Pipeline) Handler(op Op, h Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		client := ClientKey(r)

		log := p.log.With().
			Str("op", op.Name).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("client", client).
			Logger()
		if rid := middleware.GetReqID(r.Context()); rid != "" {
			log = log.With().Str("request_id", rid).Logger()
		}
		log.Info().Msg("request started")

		if err := p.run(w, r, op, h, client, log); err != nil {
			// The only place a failure becomes a client response.
			WriteFailure(w, log, op.Name, err)
			log.Info().Int("status", StatusFor(err)).Dur("duration", time.Since(start)).Msg("request failed")
			return
		}
		log.Info().Int("status", http.StatusOK).Dur("duration", time.Since(start)).Msg("request completed")
	})
}

// run executes stages 3-8. Any returned error, including a recovered panic,
// is rendered by the caller's catch-all.
func (p *Pipeline) run(w http.ResponseWriter, r *http.Request, op Op, h Handler, client string, log zerolog.Logger) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic in %s: %v", op.Name, rec)
		}
	}()

	// Cheapest gate first: reject abusive clients before any parsing.
	if err := p.limiter.Check(r.Context(), client, op.MaxRequests, op.Window); err != nil {
		if IsRateLimit(err) && p.onRateLimited != nil {
			p.onRateLimited(op.Name)
		}
		return err
	}

	if op.RequireAuth {
		if err := checkBearerFormat(r); err != nil {
			return err
		}
	}

	payload, err := p.decodePayload(w, r, op)
	if err != nil {
		return err
	}
	if missing := missingFields(payload, op.RequiredFields); len(missing) > 0 {
		return NewValidationError("Missing required fields: "+strings.Join(missing, ", "), "")
	}

	if err := p.validator.Validate(payload); err != nil {
		return err
	}

	release, err := p.ledger.Acquire()
	if err != nil {
		if p.onCapacityRejected != nil {
			p.onCapacityRejected(op.Name)
		}
		return err
	}
	// Tied to scope exit, not to response delivery: a disconnected client
	// still returns the slot when the handler ends.
	defer release()

	handlerStart := time.Now()
	result, err := h(r.Context(), payload)
	if d := time.Since(handlerStart); d > p.slowAfter {
		log.Warn().Dur("handler_duration", d).Msg("generation unusually slow")
	}
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(result); err != nil {
		// Headers are gone; all we can do is record it.
		log.Error().Err(err).Msg("failed to encode response")
	}
	return nil
}

// decodePayload enforces content type, the body-size ceiling and the expected
// top-level object shape.
func (p *Pipeline) decodePayload(w http.ResponseWriter, r *http.Request, op Op) (map[string]any, error) {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		return nil, NewValidationError("Content-Type must be application/json", "")
	}

	maxBody := op.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = p.maxBody
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)

	var payload map[string]any
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return nil, NewValidationError(fmt.Sprintf("Request too large. Maximum size: %d bytes", maxBody), "")
		case errors.Is(err, io.EOF):
			return nil, NewValidationError("Request body is required", "")
		default:
			return nil, NewMalformedError("Invalid JSON format")
		}
	}
	if payload == nil {
		return nil, NewValidationError("Request body is required", "")
	}
	return payload, nil
}

func missingFields(payload map[string]any, required []string) []string {
	var missing []string
	for _, f := range required {
		if v, ok := payload[f]; !ok || v == nil {
			missing = append(missing, f)
		}
	}
	return missing
}

// checkBearerFormat verifies presence and minimum length of a bearer token.
// A format stub only; it does not verify credentials against any store.
func checkBearerFormat(r *http.Request) error {
	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return &UnauthorizedError{Message: "Missing or invalid Authorization header"}
	}
	if len(strings.TrimPrefix(auth, "Bearer ")) < minTokenLen {
		return &UnauthorizedError{Message: "Invalid API key format"}
	}
	return nil
}
