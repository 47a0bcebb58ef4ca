// Package ckan implements catalog.Client over the CKAN action API
// (POST {base}/api/3/action/{name}).
package ckan

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/mapaction/mapimport/internal/transport"
	"github.com/mapaction/mapimport/pkg/catalog"
	"github.com/mapaction/mapimport/pkg/errors"
	"github.com/mapaction/mapimport/pkg/logging"
)

// Vocabulary actions. The record actions live in package catalog.
const (
	ActionShowVocabulary   = "vocabulary_show"
	ActionCreateVocabulary = "vocabulary_create"
	ActionUpdateVocabulary = "vocabulary_update"
	ActionPurgeRecord      = "dataset_purge"
)

// urlInUse is the validation message CKAN gives for a taken dataset name.
const urlInUse = "That URL is already in use."

// Client talks to one CKAN site.
type Client struct {
	baseURL   string
	transport *transport.Client
	purge     bool
}

// Option configures a Client.
type Option func(*options) error

type options struct {
	transport []transport.Option
	purge     bool
}

// WithAPIKey authenticates every call with key. scheme is one of "token"
// (the default), "bearer" or "legacy".
func WithAPIKey(key, scheme string) Option {
	return func(o *options) error {
		if key == "" {
			return &errors.ValidationError{Field: "api_key", Message: "cannot be empty"}
		}
		o.transport = append(o.transport, transport.WithAuth(transport.AuthenticatorFor(scheme), key))
		return nil
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) error {
		if c == nil {
			return &errors.ValidationError{Field: "http_client", Message: "cannot be nil"}
		}
		o.transport = append(o.transport, transport.WithHTTPClient(c))
		return nil
	}
}

// WithTimeout sets the per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *options) error {
		if d <= 0 {
			return &errors.ValidationError{Field: "http_timeout", Value: d, Message: "must be positive"}
		}
		o.transport = append(o.transport, transport.WithTimeout(d))
		return nil
	}
}

// WithBreaker sets the circuit breaker thresholds.
func WithBreaker(failures uint32, timeout time.Duration) Option {
	return func(o *options) error {
		o.transport = append(o.transport, transport.WithBreaker("ckan", failures, timeout))
		return nil
	}
}

// WithPurge makes DeleteRecord purge records instead of marking them deleted.
// Purging needs sysadmin rights but frees the record name.
func WithPurge() Option {
	return func(o *options) error {
		o.purge = true
		return nil
	}
}

// New creates a client for the site at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, &errors.ValidationError{Field: "catalog_url", Value: baseURL, Message: "must be an http(s) URL"}
	}

	o := &options{}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}

	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		transport: transport.New(o.transport...),
		purge:     o.purge,
	}, nil
}

func (c *Client) actionURL(action string) string {
	return c.baseURL + "/api/3/action/" + action
}

// envelope is the CKAN action response wrapper.
type envelope struct {
	Success bool            `json:"success"`
	Result  json.RawMessage `json:"result"`
	Error   map[string]any  `json:"error"`
}

// call posts payload as JSON to an action and decodes its result into out.
// id names the entity in not-found and conflict errors.
func (c *Client) call(ctx context.Context, action, id string, payload, out any) error {
	req, err := transport.NewJSONRequest(ctx, c.actionURL(action), payload)
	if err != nil {
		return err
	}
	return c.send(ctx, action, id, req, out)
}

func (c *Client) send(ctx context.Context, action, id string, req *http.Request, out any) error {
	logger := logging.FromContext(ctx)
	start := time.Now()

	resp, err := c.transport.Do(ctx, action, req)
	if err != nil {
		logger.Debug().Err(err).Str("action", action).Msg("Catalog call failed")
		return err
	}
	status := resp.StatusCode

	var env envelope
	if err := transport.DecodeResponse(action, resp, &env); err != nil {
		return err
	}
	logger.Debug().
		Str("action", action).
		Int("status", status).
		Bool("success", env.Success).
		Dur("duration", time.Since(start)).
		Msg("Catalog call")

	if !env.Success {
		return actionError(action, id, status, env.Error)
	}
	if out == nil || len(env.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return errors.WrapParse("json", action+" result", err)
	}
	return nil
}

// actionError maps a CKAN error object onto the errors taxonomy.
func actionError(action, id string, status int, body map[string]any) error {
	kind, _ := body["__type"].(string)
	message, _ := body["message"].(string)
	resource := resourceFor(action)

	switch {
	case kind == "Not Found Error" || status == http.StatusNotFound:
		return errors.NewNotFoundError(resource, id)
	case kind == "Authorization Error" || status == http.StatusForbidden || status == http.StatusUnauthorized:
		if message == "" {
			message = "access denied"
		}
		return &errors.AuthenticationError{Method: "api key", Message: message, Err: errors.ErrAPIKeyInvalid}
	case kind == "Validation Error":
		fields := validationFields(body)
		if slices.Contains(fields["name"], urlInUse) {
			return errors.NewAlreadyExistsError(resource, id)
		}
		if len(fields) > 0 {
			return errors.NewFieldsError(fields)
		}
		return &errors.ValidationError{Message: message}
	default:
		if message == "" {
			message = kind
		}
		return &errors.APIError{Action: action, StatusCode: status, Type: kind, Message: message}
	}
}

// validationFields collects the per-field messages of a validation error.
func validationFields(body map[string]any) errors.Fields {
	fields := errors.Fields{}
	for key, value := range body {
		if strings.HasPrefix(key, "__") || key == "message" {
			continue
		}
		switch v := value.(type) {
		case []any:
			for _, m := range v {
				if s, ok := m.(string); ok {
					fields.Add(key, s)
				}
			}
		case string:
			fields.Add(key, v)
		}
	}
	return fields
}

func resourceFor(action string) string {
	switch {
	case strings.HasPrefix(action, "package_"), action == ActionPurgeRecord:
		return "dataset"
	case strings.HasPrefix(action, "resource_"):
		return "resource"
	case strings.HasPrefix(action, "group_"):
		return "group"
	case strings.HasPrefix(action, "member_"):
		return "member"
	case strings.HasPrefix(action, "vocabulary_"):
		return "vocabulary"
	case action == catalog.ActionCreateVersion:
		return "version"
	default:
		return action
	}
}

// ShowRecord implements catalog.Client.
func (c *Client) ShowRecord(ctx context.Context, idOrName string) (*catalog.Record, error) {
	var raw json.RawMessage
	if err := c.call(ctx, catalog.ActionShowRecord, idOrName, map[string]any{"id": idOrName}, &raw); err != nil {
		return nil, err
	}
	return decodeRecord(raw)
}

// CreateRecord implements catalog.Client.
func (c *Client) CreateRecord(ctx context.Context, record *catalog.Record) (*catalog.Record, error) {
	var raw json.RawMessage
	if err := c.call(ctx, catalog.ActionCreateRecord, record.Name, encodeRecord(record), &raw); err != nil {
		return nil, err
	}
	return decodeRecord(raw)
}

// UpdateRecord implements catalog.Client.
func (c *Client) UpdateRecord(ctx context.Context, record *catalog.Record) (*catalog.Record, error) {
	var raw json.RawMessage
	if err := c.call(ctx, catalog.ActionUpdateRecord, record.Name, encodeRecord(record), &raw); err != nil {
		return nil, err
	}
	return decodeRecord(raw)
}

// DeleteRecord implements catalog.Client.
func (c *Client) DeleteRecord(ctx context.Context, id string) error {
	action := catalog.ActionDeleteRecord
	if c.purge {
		action = ActionPurgeRecord
	}
	return c.call(ctx, action, id, map[string]any{"id": id}, nil)
}

// CreateResource implements catalog.Client. A nil body creates a link
// resource pointing at resource.URL.
func (c *Client) CreateResource(ctx context.Context, resource *catalog.Resource, body io.Reader) (*catalog.Resource, error) {
	var (
		req *http.Request
		err error
	)
	if body == nil {
		req, err = transport.NewJSONRequest(ctx, c.actionURL(catalog.ActionCreateResource), resource)
	} else {
		fields := map[string]string{
			"package_id": resource.PackageID,
			"name":       resource.Name,
			"url":        resource.Name,
			"url_type":   "upload",
		}
		req, err = transport.NewMultipartRequest(ctx, c.actionURL(catalog.ActionCreateResource), fields,
			transport.FileUpload{Field: "upload", FileName: resource.Name, Body: body})
	}
	if err != nil {
		return nil, err
	}

	var raw json.RawMessage
	if err := c.send(ctx, catalog.ActionCreateResource, resource.Name, req, &raw); err != nil {
		return nil, err
	}
	return decodeResource(raw)
}

// DeleteResource implements catalog.Client.
func (c *Client) DeleteResource(ctx context.Context, id string) error {
	return c.call(ctx, catalog.ActionDeleteResource, id, map[string]any{"id": id}, nil)
}

// ShowGroup implements catalog.Client.
func (c *Client) ShowGroup(ctx context.Context, id string) (*catalog.Group, error) {
	var g catalog.Group
	payload := map[string]any{"id": id, "include_datasets": false}
	if err := c.call(ctx, catalog.ActionShowGroup, id, payload, &g); err != nil {
		return nil, err
	}
	return &g, nil
}

// CreateMember implements catalog.Client.
func (c *Client) CreateMember(ctx context.Context, member *catalog.Member) error {
	return c.call(ctx, catalog.ActionCreateMember, member.GroupID, member, nil)
}

// CreateVersion implements catalog.Client.
func (c *Client) CreateVersion(ctx context.Context, version *catalog.Version) error {
	return c.call(ctx, catalog.ActionCreateVersion, version.RecordID, version, nil)
}

type wireTag struct {
	Name string `json:"name"`
}

type wireVocabulary struct {
	ID   string    `json:"id,omitempty"`
	Name string    `json:"name"`
	Tags []wireTag `json:"tags"`
}

// EnsureVocabulary implements catalog.VocabularyManager.
func (c *Client) EnsureVocabulary(ctx context.Context, name string, tags []string) (*catalog.Vocabulary, error) {
	want := wireVocabulary{Name: name, Tags: make([]wireTag, len(tags))}
	for i, t := range tags {
		want.Tags[i] = wireTag{Name: t}
	}

	var current wireVocabulary
	err := c.call(ctx, ActionShowVocabulary, name, map[string]any{"id": name}, &current)
	action := ActionUpdateVocabulary
	switch {
	case errors.IsNotFound(err):
		action = ActionCreateVocabulary
	case err != nil:
		return nil, err
	default:
		want.ID = current.ID
	}

	var got wireVocabulary
	if err := c.call(ctx, action, name, want, &got); err != nil {
		return nil, err
	}
	logging.FromContext(ctx).Info().
		Str("vocabulary", name).
		Str("action", action).
		Int("tags", len(got.Tags)).
		Msg("Vocabulary declared")

	v := &catalog.Vocabulary{ID: got.ID, Name: got.Name, Tags: make([]string, len(got.Tags))}
	for i, t := range got.Tags {
		v.Tags[i] = t.Name
	}
	return v, nil
}

var (
	_ catalog.Client            = (*Client)(nil)
	_ catalog.VocabularyManager = (*Client)(nil)
)
