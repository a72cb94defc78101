package catalog

import (
	"bufio"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"mime"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	sheetfeed "github.com/ideamans/go-sheetfeed"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"
)

var tracer = otel.Tracer("sheetfeed/adapters/catalog")

// response headers that describe a transfer rather than the content
var transferHeaders = []string{
	"Connection", "Content-Encoding", "Content-Length", "Keep-Alive",
	"Set-Cookie", "Trailer", "Transfer-Encoding",
}

// Entry is a fetched page, fresh or from the cache. Body yields the same
// bytes either way; the caller must close it.
type Entry struct {
	URL    string
	Header http.Header
	Body   io.ReadCloser
	Cached bool
}

// ContentType returns the media type and its parameters
func (e *Entry) ContentType() (string, map[string]string) {
	mediaType, params, err := mime.ParseMediaType(e.Header.Get("Content-Type"))
	if err != nil {
		return "", nil
	}
	return mediaType, params
}

// Cache fetches pages and keeps each response on disk forever. A stored
// entry is a body file plus a metadata file; the metadata is published
// last, so its presence means the body is complete.
type Cache struct {
	dir    string
	accept []string
	http   *resty.Client
	logger *slog.Logger
}

func NewCache(config Config) *Cache {
	config = config.withDefaults()

	client := resty.New()
	client.SetTransport(config.Transport)
	if config.CloudflareBypass {
		client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)
	}
	client.SetHeader("User-Agent", config.UserAgent)
	client.SetHeader("Accept", strings.Join(config.AcceptTypes, ", "))

	limit := rate.Limit(config.RequestsPerSecond)
	if config.RequestsPerSecond < 0 {
		limit = rate.Inf
	}
	limiter := rate.NewLimiter(limit, 1)
	client.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		return limiter.Wait(req.Context())
	})

	return &Cache{
		dir:    config.Dir,
		accept: config.AcceptTypes,
		http:   client,
		logger: config.Logger,
	}
}

// Key returns the cache directory and file stem for rawURL. The directory
// mirrors the URL's scheme, host and path; the stem is the last path
// segment plus a short hash of the whole URL.
func Key(rawURL string) (dir string, stem string, err error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", fmt.Errorf("%w: bad url %q: %v", sheetfeed.ErrConfig, rawURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", "", fmt.Errorf("%w: url %q is not absolute", sheetfeed.ErrConfig, rawURL)
	}

	segments := []string{u.Scheme, strings.ReplaceAll(u.Host, ":", "_")}
	parts := strings.Split(strings.TrimPrefix(u.Path, "/"), "/")
	for _, p := range parts[:len(parts)-1] {
		if p == "" {
			continue
		}
		if p == "." || p == ".." || strings.ContainsAny(p, `\`) {
			return "", "", fmt.Errorf("%w: url %q has unsafe path segment %q", sheetfeed.ErrConfig, rawURL, p)
		}
		segments = append(segments, p)
	}

	sum := sha256.Sum256([]byte(rawURL))
	stem = base64.URLEncoding.EncodeToString(sum[:6])
	if last := parts[len(parts)-1]; last != "" && last != "." && last != ".." {
		stem = last + "." + stem
	}
	return filepath.Join(segments...), stem, nil
}

// Fetch returns the page at rawURL, from disk when a complete entry exists
func (c *Cache) Fetch(ctx context.Context, rawURL string) (*Entry, error) {
	ctx, span := tracer.Start(ctx, "cache:Fetch")
	defer span.End()
	span.SetAttributes(attribute.String("url", rawURL))

	rel, stem, err := Key(rawURL)
	if err != nil {
		return nil, err
	}
	dir := filepath.Join(c.dir, rel)
	metaPath := filepath.Join(dir, stem+".mime")

	entry, err := c.open(dir, metaPath, rawURL)
	if err == nil {
		span.SetStatus(codes.Ok, "CACHE HIT")
		c.logger.InfoContext(ctx, "GET (cached)", "url", rawURL)
		return entry, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		span.RecordError(err)
		span.SetStatus(codes.Error, "bad cache entry")
		return nil, err
	}

	entry, err = c.download(ctx, dir, stem, metaPath, rawURL)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch")
		return nil, err
	}
	return entry, nil
}

// open reads a stored entry. A missing metadata file reports fs.ErrNotExist.
func (c *Cache) open(dir, metaPath, rawURL string) (*Entry, error) {
	data, err := os.ReadFile(metaPath)
	if err != nil {
		return nil, err
	}
	bodyName, header, err := parseMetadata(data)
	if err != nil {
		return nil, fmt.Errorf("%w: cache metadata %s: %v", sheetfeed.ErrConfig, metaPath, err)
	}
	body, err := os.Open(filepath.Join(dir, bodyName))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: cache metadata %s names missing body %s", sheetfeed.ErrConfig, metaPath, bodyName)
		}
		return nil, err
	}
	return &Entry{URL: rawURL, Header: header, Body: body, Cached: true}, nil
}

func (c *Cache) download(ctx context.Context, dir, stem, metaPath, rawURL string) (*Entry, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	// a body without metadata is left over from an interrupted fetch
	bodyName := stem + ".body"
	bodyPath := filepath.Join(dir, bodyName)
	if err := os.Remove(bodyPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to remove incomplete cache body: %w", err)
	}
	file, err := os.OpenFile(bodyPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache body: %w", err)
	}
	discard := func() {
		file.Close()
		os.Remove(bodyPath)
	}

	res, err := c.http.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(rawURL)
	if err != nil {
		discard()
		c.logger.ErrorContext(ctx, "GET failed", "url", rawURL, "err", err)
		return nil, fmt.Errorf("failed to GET %s: %w", rawURL, err)
	}
	raw := res.RawBody()
	c.logger.InfoContext(ctx, "GET", "url", rawURL, "status", res.Status())

	if !res.IsSuccess() {
		raw.Close()
		discard()
		return nil, fmt.Errorf("%w: GET %s: %s", sheetfeed.ErrProtocol, rawURL, res.Status())
	}
	header := res.Header().Clone()
	for _, h := range transferHeaders {
		header.Del(h)
	}
	entry := &Entry{URL: rawURL, Header: header}
	if mediaType, _ := entry.ContentType(); !contains(c.accept, mediaType) {
		raw.Close()
		discard()
		return nil, fmt.Errorf("%w: GET %s: unexpected content type %q", sheetfeed.ErrProtocol, rawURL, header.Get("Content-Type"))
	}

	entry.Body = &teeBody{
		src:      raw,
		file:     file,
		bodyPath: bodyPath,
		publish: func() error {
			return publishMetadata(metaPath, formatMetadata(bodyName, header))
		},
	}
	return entry, nil
}

// teeBody copies everything read from src into the cache body file and
// publishes the metadata once src is exhausted without error.
type teeBody struct {
	src      io.ReadCloser
	file     *os.File
	bodyPath string
	publish  func() error
	done     bool
	err      error
}

func (t *teeBody) Read(p []byte) (int, error) {
	if t.err != nil {
		return 0, t.err
	}
	n, err := t.src.Read(p)
	if n > 0 {
		if _, werr := t.file.Write(p[:n]); werr != nil {
			t.err = fmt.Errorf("failed to write cache body: %w", werr)
			return n, t.err
		}
	}
	if err == io.EOF {
		if cerr := t.complete(); cerr != nil {
			t.err = cerr
			return n, cerr
		}
		return n, io.EOF
	}
	if err != nil {
		t.err = err
	}
	return n, err
}

func (t *teeBody) complete() error {
	if t.done {
		return nil
	}
	if err := t.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync cache body: %w", err)
	}
	if err := t.file.Close(); err != nil {
		return fmt.Errorf("failed to close cache body: %w", err)
	}
	if err := t.publish(); err != nil {
		return fmt.Errorf("failed to publish cache metadata: %w", err)
	}
	t.done = true
	return nil
}

// Close releases the response. An entry not read to the end is discarded.
func (t *teeBody) Close() error {
	err := t.src.Close()
	if !t.done {
		t.file.Close()
		os.Remove(t.bodyPath)
	}
	return err
}

const externalBody = "message/external-body"

// formatMetadata renders a MIME header block pointing at the body file,
// followed by the stored response headers.
func formatMetadata(bodyName string, header http.Header) []byte {
	var buf bytes.Buffer
	outer := mime.FormatMediaType(externalBody, map[string]string{
		"access-type": "local-file",
		"name":        bodyName,
	})
	fmt.Fprintf(&buf, "Content-Type: %s\r\n\r\n", outer)
	header.Write(&buf)
	buf.WriteString("\r\n")
	return buf.Bytes()
}

func parseMetadata(data []byte) (string, http.Header, error) {
	r := textproto.NewReader(bufio.NewReader(bytes.NewReader(data)))
	outer, err := r.ReadMIMEHeader()
	if err != nil {
		return "", nil, err
	}
	mediaType, params, err := mime.ParseMediaType(outer.Get("Content-Type"))
	if err != nil {
		return "", nil, err
	}
	name := params["name"]
	if mediaType != externalBody || params["access-type"] != "local-file" || name == "" {
		return "", nil, fmt.Errorf("not a local-file external body: %q", outer.Get("Content-Type"))
	}
	if filepath.Base(name) != name || name == "." || name == ".." {
		return "", nil, fmt.Errorf("body name %q is not a plain file name", name)
	}
	inner, err := r.ReadMIMEHeader()
	if err != nil {
		return "", nil, err
	}
	return name, http.Header(inner), nil
}

// publishMetadata writes data to a temporary file and links it into place,
// failing if metaPath already exists.
func publishMetadata(metaPath string, data []byte) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(metaPath), "."+filepath.Base(metaPath)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Link(tmpName, metaPath)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
