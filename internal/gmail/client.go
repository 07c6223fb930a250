package gmail

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/oauth2"
	gmailapi "google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/teemow/mvgmail/internal/instrumentation"
	"github.com/teemow/mvgmail/internal/logging"
)

// Options configures a Client. Zero values are replaced with defaults.
type Options struct {
	HTTPClient *http.Client
	Logger     *slog.Logger
	Metrics    *instrumentation.Metrics
}

// Client calls the Gmail REST API with a caller supplied access token.
type Client struct {
	endpoint   string
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *instrumentation.Metrics
}

// NewClient returns a Client for the API rooted at endpoint.
func NewClient(endpoint string, opts Options) *Client {
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		endpoint:   endpoint,
		httpClient: opts.HTTPClient,
		logger:     logging.WithComponent(logging.OrDefault(opts.Logger), "gmail"),
		metrics:    opts.Metrics,
	}
}

// service builds a Users service that authenticates with accessToken.
func (c *Client) service(ctx context.Context, accessToken string) (*gmailapi.UsersService, error) {
	if accessToken == "" {
		return nil, errors.New("access token is required")
	}
	base := c.httpClient.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	hc := &http.Client{
		Timeout: c.httpClient.Timeout,
		Transport: &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"}),
			Base:   base,
		},
	}

	svc, err := gmailapi.NewService(ctx, option.WithHTTPClient(hc), option.WithEndpoint(c.endpoint))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gmail service: %w", err)
	}
	return svc.Users, nil
}

// observe starts the span and returns the func that records the outcome.
func (c *Client) observe(ctx context.Context, op, email string, attrs ...attribute.KeyValue) (context.Context, func(*error)) {
	start := time.Now()
	attrs = append(attrs, instrumentation.UserHash(email))
	ctx, span := instrumentation.StartAPISpan(ctx, op, attrs...)

	return ctx, func(errp *error) {
		err := *errp
		c.metrics.RecordAPIOperation(ctx, op, instrumentation.Status(err), time.Since(start))
		instrumentation.EndSpan(span, err)
		if err != nil {
			c.logger.Debug("gmail call failed",
				logging.Operation(op),
				logging.UserHash(email),
				logging.TraceID(instrumentation.GetTraceID(ctx)),
				logging.Err(err),
			)
		}
	}
}

// GetMessage fetches one message.
func (c *Client) GetMessage(ctx context.Context, req GetMessageRequest) (msg *gmailapi.Message, err error) {
	const op = "messages.get"
	ctx, done := c.observe(ctx, op, req.Email, instrumentation.MessageID(req.MessageID))
	defer done(&err)

	if req.MessageID == "" {
		return nil, errors.New("message id is required")
	}
	users, err := c.service(ctx, req.AccessToken)
	if err != nil {
		return nil, err
	}

	format := req.Format
	if format == "" {
		format = FormatFull
	}
	call := users.Messages.Get(req.Email, req.MessageID).Format(format).Context(ctx)
	if len(req.MetadataHeaders) > 0 {
		call = call.MetadataHeaders(req.MetadataHeaders...)
	}

	msg, err = call.Do()
	if err != nil {
		return nil, asAPIError(op, err)
	}
	return msg, nil
}

// ListMessages returns one page of messages matching req.Query.
func (c *Client) ListMessages(ctx context.Context, req ListRequest) (res *ListResult, err error) {
	const op = "messages.list"
	ctx, done := c.observe(ctx, op, req.Email)
	defer done(&err)

	users, err := c.service(ctx, req.AccessToken)
	if err != nil {
		return nil, err
	}

	call := users.Messages.List(req.Email).Context(ctx)
	if req.Query != "" {
		call = call.Q(req.Query)
	}
	if req.MaxResults > 0 {
		call = call.MaxResults(req.MaxResults)
	}
	if req.PageToken != "" {
		call = call.PageToken(req.PageToken)
	}

	resp, err := call.Do()
	if err != nil {
		return nil, asAPIError(op, err)
	}
	return &ListResult{
		Messages:           resp.Messages,
		NextPageToken:      resp.NextPageToken,
		ResultSizeEstimate: resp.ResultSizeEstimate,
	}, nil
}

// SendMessage sends a complete RFC 822 message as a media upload.
func (c *Client) SendMessage(ctx context.Context, email string, raw []byte, accessToken string) (sent *gmailapi.Message, err error) {
	const op = "messages.send"
	ctx, done := c.observe(ctx, op, email)
	defer done(&err)

	users, err := c.service(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	sent, err = users.Messages.Send(email, &gmailapi.Message{}).
		Media(bytes.NewReader(raw), googleapi.ContentType("message/rfc822")).
		Context(ctx).
		Do()
	if err != nil {
		return nil, asAPIError(op, err)
	}
	c.logger.Info("message sent", logging.UserHash(email), logging.MessageID(sent.Id))
	return sent, nil
}

// SendMessageMeta sends req.Raw base64url encoded inside a JSON message
// resource, optionally as part of a thread.
func (c *Client) SendMessageMeta(ctx context.Context, req SendRequest) (sent *gmailapi.Message, err error) {
	const op = "messages.send"
	ctx, done := c.observe(ctx, op, req.Email)
	defer done(&err)

	users, err := c.service(ctx, req.AccessToken)
	if err != nil {
		return nil, err
	}

	msg := &gmailapi.Message{
		Raw:      base64.URLEncoding.EncodeToString(req.Raw),
		ThreadId: req.ThreadID,
	}
	sent, err = users.Messages.Send(req.Email, msg).Context(ctx).Do()
	if err != nil {
		return nil, asAPIError(op, err)
	}
	c.logger.Info("message sent", logging.UserHash(req.Email), logging.MessageID(sent.Id))
	return sent, nil
}
