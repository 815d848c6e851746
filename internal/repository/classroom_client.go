package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/classroom-portal/internal/dto"
	appErrors "github.com/noah-isme/classroom-portal/pkg/errors"
	"github.com/noah-isme/classroom-portal/pkg/middleware/requestid"
)

// UpstreamObserver receives timing for every upstream call.
type UpstreamObserver interface {
	ObserveUpstream(method, route string, status int, duration time.Duration)
}

// UnauthorizedHandler is invoked with the request context when the upstream answers 401.
type UnauthorizedHandler func(ctx context.Context, err *appErrors.Error)

// ClientConfig configures the classroom API client.
type ClientConfig struct {
	BaseURL     string
	Timeout     time.Duration
	ReadRetries int
}

// ClassroomClient is the typed HTTP client of the upstream classroom REST API.
type ClassroomClient struct {
	baseURL        string
	httpClient     *http.Client
	readRetries    int
	observer       UpstreamObserver
	onUnauthorized UnauthorizedHandler
	logger         *zap.Logger
}

// Call describes one upstream request. Route is the templated path used as metric label.
type Call struct {
	Method string
	Path   string
	Route  string
	Token  string
	Query  url.Values
	Body   interface{}
}

// NewClassroomClient constructs the client. A nil httpClient gets one bound to cfg.Timeout.
func NewClassroomClient(cfg ClientConfig, httpClient *http.Client, observer UpstreamObserver, logger *zap.Logger) *ClassroomClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	retries := cfg.ReadRetries
	if retries < 0 {
		retries = 0
	}
	return &ClassroomClient{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		httpClient:  httpClient,
		readRetries: retries,
		observer:    observer,
		logger:      logger,
	}
}

// OnUnauthorized registers the hook fired on upstream 401 responses.
func (c *ClassroomClient) OnUnauthorized(fn UnauthorizedHandler) {
	c.onUnauthorized = fn
}

// Get performs a read. Reads are retried on network failure.
func (c *ClassroomClient) Get(ctx context.Context, call Call, dest interface{}) error {
	call.Method = http.MethodGet
	return c.Do(ctx, call, dest)
}

// Post performs a mutation. Mutations are never retried.
func (c *ClassroomClient) Post(ctx context.Context, call Call, dest interface{}) error {
	call.Method = http.MethodPost
	return c.Do(ctx, call, dest)
}

// Do executes the call and decodes the envelope data into dest.
func (c *ClassroomClient) Do(ctx context.Context, call Call, dest interface{}) error {
	attempts := 1
	if call.Method == http.MethodGet {
		attempts += c.readRetries
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		err := c.once(ctx, call, dest)
		if err == nil {
			return nil
		}
		lastErr = err
		if !isRetryable(err) || ctx.Err() != nil {
			break
		}
		if attempt < attempts {
			c.logger.Debug("upstream read failed, retrying",
				zap.String("route", routeLabel(call)),
				zap.Int("attempt", attempt),
				zap.Error(err))
		}
	}

	appErr := appErrors.FromError(lastErr)
	if appErr != nil && appErr.Status == http.StatusUnauthorized && c.onUnauthorized != nil {
		c.onUnauthorized(ctx, appErr)
	}
	return lastErr
}

func (c *ClassroomClient) once(ctx context.Context, call Call, dest interface{}) error {
	target := c.baseURL + call.Path
	if len(call.Query) > 0 {
		target += "?" + call.Query.Encode()
	}

	var body io.Reader
	if call.Body != nil {
		payload, err := json.Marshal(call.Body)
		if err != nil {
			return fmt.Errorf("marshal %s request: %w", routeLabel(call), err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, call.Method, target, body)
	if err != nil {
		return fmt.Errorf("create %s request: %w", routeLabel(call), err)
	}
	req.Header.Set("Accept", "application/json")
	if call.Body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if call.Token != "" {
		req.Header.Set("Authorization", "Bearer "+call.Token)
	}
	if reqID := requestid.FromContext(ctx); reqID != "" {
		req.Header.Set(requestid.Header, reqID)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.observe(call, 0, time.Since(start))
		return transportError(ctx, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	c.observe(call, resp.StatusCode, time.Since(start))
	if err != nil {
		return transportError(ctx, err)
	}

	var envelope dto.Envelope
	decodeErr := json.Unmarshal(raw, &envelope)
	if resp.StatusCode >= http.StatusBadRequest {
		if decodeErr != nil {
			return statusError(resp.StatusCode, dto.Envelope{})
		}
		return statusError(resp.StatusCode, envelope)
	}
	if decodeErr != nil {
		return appErrors.Wrap(decodeErr, appErrors.ErrUpstreamUnavailable.Code, appErrors.ErrUpstreamUnavailable.Status, "invalid response from the classroom service")
	}
	if envelope.Failed() {
		return statusError(http.StatusBadRequest, envelope)
	}
	if dest == nil || len(envelope.Data) == 0 || bytes.Equal(envelope.Data, []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(envelope.Data, dest); err != nil {
		return appErrors.Wrap(err, appErrors.ErrUpstreamUnavailable.Code, appErrors.ErrUpstreamUnavailable.Status, "invalid response from the classroom service")
	}
	return nil
}

func (c *ClassroomClient) observe(call Call, status int, duration time.Duration) {
	if c.observer == nil {
		return
	}
	c.observer.ObserveUpstream(call.Method, routeLabel(call), status, duration)
}

func routeLabel(call Call) string {
	if call.Route != "" {
		return call.Route
	}
	return call.Path
}

// statusError maps a failed envelope into the portal error taxonomy.
func statusError(status int, envelope dto.Envelope) *appErrors.Error {
	message := envelope.Message
	code := ""
	var details map[string]interface{}
	if envelope.Error != nil {
		code = envelope.Error.Code
		details = envelope.Error.Details
		if envelope.Error.Message != "" {
			message = envelope.Error.Message
		}
	}

	if len(envelope.Errors) > 0 {
		fields := make([]appErrors.FieldError, 0, len(envelope.Errors))
		for _, fe := range envelope.Errors {
			fields = append(fields, appErrors.FieldError{Field: fe.Field, Message: fe.Message})
		}
		appErr := appErrors.WithFields(fields)
		if status >= http.StatusBadRequest && status < http.StatusInternalServerError && status != http.StatusUnauthorized {
			appErr.Status = status
		}
		return appErr
	}

	var base *appErrors.Error
	switch {
	case status == http.StatusUnauthorized && code == appErrors.ErrSessionRevoked.Code:
		base = appErrors.ErrSessionRevoked
	case status == http.StatusUnauthorized:
		base = appErrors.ErrUnauthorized
	case status == http.StatusForbidden:
		base = appErrors.ErrForbidden
	case status == http.StatusNotFound:
		base = appErrors.ErrNotFound
	case status == http.StatusConflict:
		base = appErrors.ErrConflict
	case status == http.StatusBadGateway || status == http.StatusServiceUnavailable:
		return appErrors.Clone(appErrors.ErrUpstreamUnavailable, "")
	case status == http.StatusGatewayTimeout:
		return appErrors.Clone(appErrors.ErrUpstreamTimeout, "")
	case status >= http.StatusInternalServerError:
		base = appErrors.ErrInternal
	default:
		if code == "" {
			code = appErrors.ErrValidation.Code
		}
		if message == "" {
			message = appErrors.ErrValidation.Message
		}
		return &appErrors.Error{Code: code, Status: status, Message: message, Details: details}
	}

	appErr := appErrors.Clone(base, message)
	if details != nil {
		appErr.Details = details
	}
	return appErr
}

// transportError separates caller cancellation from network failures.
func transportError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			return appErrors.Wrap(err, appErrors.ErrUpstreamTimeout.Code, appErrors.ErrUpstreamTimeout.Status, appErrors.ErrUpstreamTimeout.Message)
		}
		return ctxErr
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return appErrors.Wrap(err, appErrors.ErrUpstreamTimeout.Code, appErrors.ErrUpstreamTimeout.Status, appErrors.ErrUpstreamTimeout.Message)
	}
	return appErrors.Wrap(err, appErrors.ErrUpstreamUnavailable.Code, appErrors.ErrUpstreamUnavailable.Status, appErrors.ErrUpstreamUnavailable.Message)
}

func isRetryable(err error) bool {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
