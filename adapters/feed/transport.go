package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	sheetfeed "github.com/ideamans/go-sheetfeed"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/api/googleapi"
)

var tracer = otel.Tracer("sheetfeed/adapters/feed")

// Request is one feed API call. Entry, when set, produces the request
// body and is run again for the retry after a token refresh.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Entry  EntryFunc
}

// Transport sends feed requests with bearer authentication. An expired
// access token is refreshed once and the request retried once.
type Transport struct {
	client    *http.Client
	refresher Refresher
	logger    *slog.Logger
	userAgent string
	streaming bool
}

// NewTransport creates a transport. A nil refresher makes every request
// anonymous and single-attempt.
func NewTransport(config Config, refresher Refresher) *Transport {
	config = config.withDefaults()
	return &Transport{
		client:    config.HTTPClient,
		refresher: refresher,
		logger:    config.Logger,
		userAgent: config.UserAgent,
		streaming: config.Streaming,
	}
}

// Do performs req with creds. The returned credentials differ from creds
// when a refresh happened, including when the retried request failed, so
// callers can persist the new token either way.
func (t *Transport) Do(ctx context.Context, creds sheetfeed.Credentials, req Request) (*Document, sheetfeed.Credentials, error) {
	ctx, span := tracer.Start(ctx, "transport:Do")
	defer span.End()
	span.SetAttributes(
		attribute.String("http.method", req.Method),
		attribute.String("http.url", req.URL),
	)

	if t.refresher == nil {
		doc, expired, err := t.attempt(ctx, creds.AccessToken, req)
		if err == nil && expired {
			err = fmt.Errorf("%w: %s %s: access rejected and no credentials to refresh", sheetfeed.ErrAuth, req.Method, req.URL)
		}
		return doc, creds, t.finish(span, err)
	}

	if creds.AccessToken == "" {
		t.logger.InfoContext(ctx, "no access token, refreshing before request", "url", req.URL)
	} else {
		doc, expired, err := t.attempt(ctx, creds.AccessToken, req)
		if err != nil || !expired {
			return doc, creds, t.finish(span, err)
		}
		t.logger.InfoContext(ctx, "access token expired, refreshing", "method", req.Method, "url", req.URL)
	}

	refreshed, err := t.refresher.Refresh(ctx, creds)
	if err != nil {
		return nil, creds, t.finish(span, err)
	}
	span.AddEvent("token refreshed")

	doc, expired, err := t.attempt(ctx, refreshed.AccessToken, req)
	if err == nil && expired {
		err = fmt.Errorf("%w: %s %s: access still rejected after refresh", sheetfeed.ErrAuth, req.Method, req.URL)
	}
	return doc, refreshed, t.finish(span, err)
}

func (t *Transport) finish(span trace.Span, err error) error {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "feed request failed")
	}
	return err
}

// attempt sends req once. expired reports a 401 or an empty successful
// response, both of which the feed API uses for a stale access token.
func (t *Transport) attempt(ctx context.Context, token string, req Request) (doc *Document, expired bool, err error) {
	var body io.Reader
	length := int64(0)
	if req.Entry != nil {
		if t.streaming {
			body, length = streamingBody(req.Entry)
		} else {
			body, length, err = bufferedBody(req.Entry)
			if err != nil {
				return nil, false, err
			}
		}
	}

	hreq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		if c, ok := body.(io.Closer); ok {
			c.Close()
		}
		return nil, false, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		hreq.ContentLength = length
		hreq.Header.Set("Content-Type", "application/atom+xml")
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			hreq.Header.Add(k, v)
		}
	}
	if token != "" {
		hreq.Header.Set("Authorization", "Bearer "+token)
	}
	hreq.Header.Set("Accept", strings.Join(AcceptedTypes, ", "))
	hreq.Header.Set("User-Agent", t.userAgent)

	res, err := t.client.Do(hreq)
	if err != nil {
		t.logger.ErrorContext(ctx, "feed request failed", "method", req.Method, "url", req.URL, "err", err)
		return nil, false, fmt.Errorf("failed to %s %s: %w", req.Method, req.URL, err)
	}
	defer res.Body.Close()

	t.logger.InfoContext(ctx, "feed request",
		"method", req.Method,
		"url", req.URL,
		"status", res.StatusCode,
		"content_length", res.ContentLength,
	)

	switch {
	case res.StatusCode == http.StatusUnauthorized:
		return nil, true, nil
	case res.StatusCode == http.StatusConflict:
		return nil, false, t.conflict(req, res)
	case res.StatusCode >= 200 && res.StatusCode <= 299 && res.ContentLength == 0:
		return nil, true, nil
	}

	if err := googleapi.CheckResponse(res); err != nil {
		return nil, false, fmt.Errorf("%s %s: %w", req.Method, req.URL, err)
	}

	doc, err = decodeResponse(res)
	if err != nil {
		return nil, false, fmt.Errorf("%s %s: %w", req.Method, req.URL, err)
	}
	return doc, false, nil
}

// conflict builds the error for a 409, carrying the row the server
// currently holds.
func (t *Transport) conflict(req Request, res *http.Response) error {
	cerr := &sheetfeed.ConflictError{Method: req.Method, URL: req.URL}
	doc, err := decodeResponse(res)
	if err == nil && doc.Entry == nil {
		err = fmt.Errorf("%w: conflict response is not an entry", sheetfeed.ErrDecode)
	}
	if err == nil {
		cerr.Current, err = DecodeEntry(doc.Entry)
	}
	if err != nil {
		return errors.Join(cerr, err)
	}
	return cerr
}

func decodeResponse(res *http.Response) (*Document, error) {
	contentType := res.Header.Get("Content-Type")
	if !acceptedType(contentType) {
		return nil, fmt.Errorf("%w: unexpected content type %q", sheetfeed.ErrProtocol, contentType)
	}
	_, params, _ := mime.ParseMediaType(contentType)
	return Decode(res.Body, params["charset"])
}
