// Package registrar registers the button field type with a Bitrix24 portal,
// walking a configured list of candidate REST methods until one succeeds.
package registrar

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/Pusher91/fieldbutton/internal/bitrix"
	"github.com/Pusher91/fieldbutton/internal/domain"
)

// FieldTypeAdder is the outbound call made for each candidate endpoint.
type FieldTypeAdder interface {
	AddUserFieldType(ctx context.Context, host, token, method string, payload domain.FieldTypePayload) (*bitrix.Response, error)
}

// Observer receives per-attempt and per-registration outcomes.
type Observer interface {
	ObserveAttempt(endpoint string, outcome domain.Outcome, d time.Duration)
	ObserveResult(outcome domain.Outcome)
}

type Config struct {
	// Endpoints are tried in order. Empty means bitrix.DefaultEndpoint.
	Endpoints     []string
	DefaultDomain string
	Field         domain.FieldDefinition
}

type Registrar struct {
	client        FieldTypeAdder
	endpoints     []string
	defaultDomain string
	field         domain.FieldDefinition

	cache    domain.RegistrationCache
	recorder domain.Recorder
	emitter  domain.Emitter
	observer Observer
	logger   *slog.Logger
	now      func() time.Time
}

type Option func(*Registrar)

func WithCache(c domain.RegistrationCache) Option {
	return func(r *Registrar) { r.cache = c }
}

func WithRecorder(rec domain.Recorder) Option {
	return func(r *Registrar) { r.recorder = rec }
}

func WithEmitter(e domain.Emitter) Option {
	return func(r *Registrar) { r.emitter = e }
}

func WithObserver(o Observer) Option {
	return func(r *Registrar) { r.observer = o }
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Registrar) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func New(client FieldTypeAdder, cfg Config, opts ...Option) *Registrar {
	endpoints := make([]string, 0, len(cfg.Endpoints))
	for _, ep := range cfg.Endpoints {
		if ep = strings.TrimSpace(ep); ep != "" {
			endpoints = append(endpoints, ep)
		}
	}
	if len(endpoints) == 0 {
		endpoints = []string{bitrix.DefaultEndpoint}
	}

	r := &Registrar{
		client:        client,
		endpoints:     endpoints,
		defaultDomain: cfg.DefaultDomain,
		field:         cfg.Field,
		logger:        slog.Default(),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Registrar) Field() domain.FieldDefinition { return r.field }

func (r *Registrar) Endpoints() []string { return append([]string(nil), r.endpoints...) }

// Result describes a successful (or already cached) registration.
type Result struct {
	RequestID   string          `json:"requestId"`
	Domain      string          `json:"domain"`
	FieldTypeID string          `json:"fieldTypeId"`
	Endpoint    string          `json:"endpoint,omitempty"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	Cached      bool            `json:"cached"`
	Attempts    int             `json:"attempts"`
}

// Register validates req and registers the field type.
//
// Errors are *domain.ValidationError (no call was made), *bitrix.APIError
// (the last rejection seen) or *bitrix.TransportError (every candidate
// failed below the API level).
func (r *Registrar) Register(ctx context.Context, req domain.RegistrationRequest) (*Result, error) {
	if req.RequestID == "" {
		req.RequestID = domain.NewRequestID()
	}
	started := r.now()

	if details := req.NormalizeAndValidate(r.defaultDomain); len(details) > 0 {
		err := &domain.ValidationError{Details: details}
		r.finish(req, "", domain.OutcomeValidationError, 0, started, err)
		return nil, err
	}

	res := &Result{
		RequestID:   req.RequestID,
		Domain:      req.Domain,
		FieldTypeID: r.field.ID,
	}

	if r.cache != nil && r.cache.Contains(req.Domain, req.AuthToken) {
		res.Cached = true
		r.logger.Info("Field type already registered, skipping",
			"request_id", req.RequestID,
			"domain", req.Domain)
		r.finish(req, "", domain.OutcomeCached, 0, started, nil)
		return res, nil
	}

	payload := r.field.Payload(req.HandlerURL)

	var lastAPIErr, lastErr error
	for _, ep := range r.endpoints {
		res.Attempts++

		t0 := r.now()
		resp, err := r.client.AddUserFieldType(ctx, req.Domain, req.AuthToken, ep, payload)
		r.attempt(req, ep, err, r.now().Sub(t0))

		if err == nil {
			res.Endpoint = ep
			res.Payload = resp.Payload
			if r.cache != nil {
				r.cache.Remember(req.Domain, req.AuthToken)
			}
			r.logger.Info("Field type registered",
				"request_id", req.RequestID,
				"domain", req.Domain,
				"endpoint", ep,
				"attempts", res.Attempts)
			r.finish(req, ep, domain.OutcomeSuccess, res.Attempts, started, nil)
			return res, nil
		}

		lastErr = err
		if bitrix.IsAPIError(err) {
			lastAPIErr = err
		}

		r.logger.Warn("Endpoint failed, trying next candidate",
			"request_id", req.RequestID,
			"domain", req.Domain,
			"endpoint", ep,
			"error", err)
	}

	if lastAPIErr != nil {
		lastErr = lastAPIErr
	}
	if lastErr == nil {
		lastErr = &bitrix.TransportError{Message: "no registration endpoints configured"}
	}

	r.finish(req, endpointOf(lastErr), outcomeOf(lastErr), res.Attempts, started, lastErr)
	return nil, lastErr
}

func (r *Registrar) attempt(req domain.RegistrationRequest, ep string, err error, d time.Duration) {
	outcome := outcomeOf(err)
	status := statusOf(err)

	if r.observer != nil {
		r.observer.ObserveAttempt(ep, outcome, d)
	}

	if r.emitter != nil {
		r.emitter.Emit("registration_attempt", domain.AttemptMsg{
			RequestID:  req.RequestID,
			Domain:     req.Domain,
			Endpoint:   ep,
			StatusCode: status,
			Outcome:    outcome,
			DurationMs: d.Milliseconds(),
		})
	}

	r.record(domain.Record{
		RequestID:  req.RequestID,
		Kind:       domain.RecordKindAttempt,
		Domain:     req.Domain,
		Token:      domain.MaskToken(req.AuthToken),
		Endpoint:   ep,
		StatusCode: status,
		Outcome:    outcome,
		Error:      errString(err),
		DurationMs: d.Milliseconds(),
	})
}

func (r *Registrar) finish(req domain.RegistrationRequest, ep string, outcome domain.Outcome, attempts int, started time.Time, err error) {
	if r.observer != nil {
		r.observer.ObserveResult(outcome)
	}

	if r.emitter != nil {
		r.emitter.Emit("registration_result", domain.ResultMsg{
			RequestID: req.RequestID,
			Domain:    req.Domain,
			Endpoint:  ep,
			Outcome:   outcome,
			Attempts:  attempts,
		})
	}

	r.record(domain.Record{
		RequestID:  req.RequestID,
		Kind:       domain.RecordKindResult,
		Domain:     req.Domain,
		Token:      domain.MaskToken(req.AuthToken),
		Endpoint:   ep,
		StatusCode: statusOf(err),
		Outcome:    outcome,
		Error:      errString(err),
		DurationMs: r.now().Sub(started).Milliseconds(),
	})
}

func (r *Registrar) record(rec domain.Record) {
	if r.recorder == nil {
		return
	}
	rec.At = r.now().UTC().Format(time.RFC3339Nano)
	if err := r.recorder.WriteRecord(rec); err != nil {
		r.logger.Warn("Failed to write registration record",
			"request_id", rec.RequestID,
			"error", err)
	}
}

func outcomeOf(err error) domain.Outcome {
	var vErr *domain.ValidationError
	switch {
	case err == nil:
		return domain.OutcomeSuccess
	case errors.As(err, &vErr):
		return domain.OutcomeValidationError
	case bitrix.IsAPIError(err):
		return domain.OutcomeAPIError
	default:
		return domain.OutcomeTransportError
	}
}

func statusOf(err error) int {
	var apiErr *bitrix.APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	var tErr *bitrix.TransportError
	if errors.As(err, &tErr) {
		return tErr.StatusCode
	}
	return 0
}

func endpointOf(err error) string {
	var apiErr *bitrix.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Endpoint
	}
	var tErr *bitrix.TransportError
	if errors.As(err, &tErr) {
		return tErr.Endpoint
	}
	return ""
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
