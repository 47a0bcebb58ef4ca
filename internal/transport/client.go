package transport

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"github.com/mapaction/mapimport/pkg/constants"
	"github.com/mapaction/mapimport/pkg/errors"
	"github.com/mapaction/mapimport/pkg/logging"
)

// DefaultHTTPTimeout is the default timeout for HTTP requests.
var DefaultHTTPTimeout = constants.DefaultHTTPTimeout

// Client sends authenticated requests to the catalog through a circuit
// breaker. Transport failures and 5xx responses count against the breaker;
// 4xx responses are answers, not outages.
type Client struct {
	http    *http.Client
	auth    Authenticator
	apiKey  string
	breaker *gobreaker.CircuitBreaker
}

// Option configures a Client.
type Option func(*options)

type options struct {
	httpClient      *http.Client
	timeout         time.Duration
	auth            Authenticator
	apiKey          string
	name            string
	breakerFailures uint32
	breakerTimeout  time.Duration
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithAuth sets the authenticator and the key it applies.
func WithAuth(auth Authenticator, apiKey string) Option {
	return func(o *options) {
		o.auth = auth
		o.apiKey = apiKey
	}
}

// WithBreaker sets how many consecutive failures open the breaker and how
// long it stays open.
func WithBreaker(name string, failures uint32, timeout time.Duration) Option {
	return func(o *options) {
		if name != "" {
			o.name = name
		}
		if failures > 0 {
			o.breakerFailures = failures
		}
		if timeout > 0 {
			o.breakerTimeout = timeout
		}
	}
}

// New creates a transport client.
func New(opts ...Option) *Client {
	o := &options{
		timeout:         DefaultHTTPTimeout,
		auth:            &NoAuth{},
		name:            "catalog",
		breakerFailures: constants.BreakerFailures,
		breakerTimeout:  constants.BreakerTimeout,
	}
	for _, opt := range opts {
		opt(o)
	}

	httpClient := o.httpClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: o.timeout}
	}

	failures := o.breakerFailures
	settings := gobreaker.Settings{
		Name:        o.name,
		MaxRequests: 1,
		Interval:    constants.BreakerInterval,
		Timeout:     o.breakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || stderrors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Catalog circuit breaker changed state")
		},
	}

	return &Client{
		http:    httpClient,
		auth:    o.auth,
		apiKey:  o.apiKey,
		breaker: gobreaker.NewCircuitBreaker(settings),
	}
}

// serverError marks a 5xx response so the breaker counts it.
type serverError struct {
	status int
}

func (e *serverError) Error() string {
	return fmt.Sprintf("server error: status %d", e.status)
}

// Do performs a request with authentication applied. A response is returned
// for every status code; callers decode error bodies themselves.
func (c *Client) Do(ctx context.Context, action string, req *http.Request) (*http.Response, error) {
	req = req.WithContext(ctx)
	if c.apiKey != "" {
		c.auth.Apply(req, c.apiKey)
	}
	req.Header.Set("Accept", "application/json")

	result, err := c.breaker.Execute(func() (any, error) {
		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			return resp, &serverError{status: resp.StatusCode}
		}
		return resp, nil
	})

	var se *serverError
	switch {
	case err == nil, stderrors.As(err, &se):
		return result.(*http.Response), nil
	case stderrors.Is(err, gobreaker.ErrOpenState), stderrors.Is(err, gobreaker.ErrTooManyRequests):
		// The request never reached http.Do, which would have closed the body.
		if req.Body != nil {
			_ = req.Body.Close()
		}
		return nil, &errors.APIError{
			Action:  action,
			Message: "catalog circuit breaker is open",
			Err:     errors.ErrCatalogUnavailable,
		}
	case stderrors.Is(err, context.Canceled):
		return nil, err
	case stderrors.Is(err, context.DeadlineExceeded):
		return nil, &errors.APIError{Action: action, Message: "request timed out", Err: errors.ErrTimeout}
	default:
		return nil, errors.WrapAPI(action, 0, err)
	}
}

// State returns the breaker state, for diagnostics.
func (c *Client) State() gobreaker.State {
	return c.breaker.State()
}
