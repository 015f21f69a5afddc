// Package engine talks to Vertex AI Agent Engine: it creates, fetches and
// deletes reasoning engines and opens sessions and streamed queries against
// deployed agents.
package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"agentdeck/internal/trace"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
	aiplatform "google.golang.org/api/aiplatform/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	htransport "google.golang.org/api/transport/http"
)

const (
	cloudPlatformScope  = "https://www.googleapis.com/auth/cloud-platform"
	defaultPollInterval = 5 * time.Second
	maxErrorBody        = 64 << 10
)

var numericID = regexp.MustCompile(`^[0-9]+$`)

// Client is an Agent Engine client bound to one project and location.
type Client struct {
	svc      *aiplatform.Service
	hc       *http.Client
	endpoint string
	project  string
	location string
	poll     time.Duration
}

type clientOptions struct {
	endpoint string
	hc       *http.Client
	poll     time.Duration
}

type Option func(*clientOptions)

// WithEndpoint overrides the regional endpoint, e.g. for tests.
func WithEndpoint(url string) Option {
	return func(o *clientOptions) { o.endpoint = url }
}

// WithHTTPClient supplies a pre-authenticated HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *clientOptions) { o.hc = hc }
}

// WithPollInterval sets how often long-running operations are polled.
func WithPollInterval(d time.Duration) Option {
	return func(o *clientOptions) { o.poll = d }
}

// RegionalEndpoint returns the Vertex AI endpoint for location.
func RegionalEndpoint(location string) string {
	return fmt.Sprintf("https://%s-aiplatform.googleapis.com/", location)
}

// New creates a client. Without WithHTTPClient it authenticates with
// Application Default Credentials.
func New(ctx context.Context, project, location string, opts ...Option) (*Client, error) {
	if project == "" || location == "" {
		return nil, errors.New("engine: project and location are required")
	}
	o := clientOptions{endpoint: RegionalEndpoint(location), poll: defaultPollInterval}
	for _, opt := range opts {
		opt(&o)
	}
	if !strings.HasSuffix(o.endpoint, "/") {
		o.endpoint += "/"
	}

	hc := o.hc
	if hc == nil {
		authed, _, err := htransport.NewClient(ctx, option.WithScopes(cloudPlatformScope))
		if err != nil {
			return nil, fmt.Errorf("engine: creating authenticated client: %w", err)
		}
		authed.Transport = otelhttp.NewTransport(authed.Transport)
		hc = authed
	}

	svc, err := aiplatform.NewService(ctx, option.WithHTTPClient(hc), option.WithEndpoint(o.endpoint))
	if err != nil {
		return nil, fmt.Errorf("engine: creating aiplatform service: %w", err)
	}

	return &Client{
		svc:      svc,
		hc:       hc,
		endpoint: o.endpoint,
		project:  project,
		location: location,
		poll:     o.poll,
	}, nil
}

// HTTPClient returns the authenticated client, shared with the stager.
func (c *Client) HTTPClient() *http.Client { return c.hc }

func (c *Client) Project() string  { return c.project }
func (c *Client) Location() string { return c.location }

func (c *Client) parent() string {
	return fmt.Sprintf("projects/%s/locations/%s", c.project, c.location)
}

// ResourceName expands a bare numeric id into a full reasoning engine
// resource name. Full names are returned unchanged.
func (c *Client) ResourceName(id string) string {
	id = strings.TrimSpace(id)
	if numericID.MatchString(id) {
		return c.parent() + "/reasoningEngines/" + id
	}
	return id
}

// RemoteAgent is a deployed reasoning engine.
type RemoteAgent struct {
	client *Client

	Name        string
	DisplayName string
	Description string
	CreateTime  string
	UpdateTime  string
}

// ID returns the trailing numeric id of the resource name.
func (a *RemoteAgent) ID() string {
	return a.Name[strings.LastIndex(a.Name, "/")+1:]
}

func (c *Client) remote(re *aiplatform.GoogleCloudAiplatformV1ReasoningEngine) *RemoteAgent {
	return &RemoteAgent{
		client:      c,
		Name:        re.Name,
		DisplayName: re.DisplayName,
		Description: re.Description,
		CreateTime:  re.CreateTime,
		UpdateTime:  re.UpdateTime,
	}
}

func (c *Client) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, oteltrace.Span) {
	attrs = append(attrs,
		attribute.String("gcp.project", c.project),
		attribute.String("gcp.location", c.location),
	)
	return trace.Tracer().Start(ctx, name, oteltrace.WithAttributes(attrs...))
}

func endSpan(span oteltrace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// Get fetches a deployed agent by numeric id or full resource name.
func (c *Client) Get(ctx context.Context, resourceID string) (_ *RemoteAgent, err error) {
	name := c.ResourceName(resourceID)
	ctx, span := c.startSpan(ctx, "engine.get", attribute.String("engine.resource", name))
	defer func() { endSpan(span, err) }()

	re, err := c.svc.Projects.Locations.ReasoningEngines.Get(name).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("getting agent %s: %w", name, err)
	}
	slog.Debug("engine: fetched agent", "name", re.Name, "display_name", re.DisplayName)
	return c.remote(re), nil
}

// Delete removes the deployed agent. With force, its sessions and other
// child resources are deleted too.
func (a *RemoteAgent) Delete(ctx context.Context, force bool) (err error) {
	c := a.client
	ctx, span := c.startSpan(ctx, "engine.delete",
		attribute.String("engine.resource", a.Name),
		attribute.Bool("engine.force", force),
	)
	defer func() { endSpan(span, err) }()

	op, err := c.svc.Projects.Locations.ReasoningEngines.Delete(a.Name).Force(force).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("deleting agent %s: %w", a.Name, err)
	}
	if _, err := c.wait(ctx, op); err != nil {
		return fmt.Errorf("deleting agent %s: %w", a.Name, err)
	}
	slog.Info("engine: deleted agent", "name", a.Name)
	return nil
}

// wait polls op until it is done and returns its response payload.
func (c *Client) wait(ctx context.Context, op *aiplatform.GoogleLongrunningOperation) (googleapi.RawMessage, error) {
	for !op.Done {
		slog.Debug("engine: waiting for operation", "operation", op.Name)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.poll):
		}
		next, err := c.svc.Projects.Locations.ReasoningEngines.Operations.Get(op.Name).Context(ctx).Do()
		if err != nil {
			return nil, fmt.Errorf("polling operation %s: %w", op.Name, err)
		}
		op = next
	}
	if op.Error != nil {
		return nil, fmt.Errorf("operation %s failed: %s (code %d)", op.Name, op.Error.Message, op.Error.Code)
	}
	return op.Response, nil
}

// post sends a JSON body to the engine's REST surface and returns the open
// response. Non-2xx responses are turned into *googleapi.Error.
func (c *Client) post(ctx context.Context, path string, body any) (*http.Response, error) {
	buf, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"v1/"+path, bytes.NewReader(buf))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, err
	}
	if err := googleapi.CheckResponse(resp); err != nil {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
		resp.Body.Close()
		return nil, err
	}
	return resp, nil
}
