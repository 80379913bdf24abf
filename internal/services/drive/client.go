package drive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	defaultBaseURL = "https://www.googleapis.com/drive/v3"
	fileFields     = "id,name,mimeType,modifiedTime,size,shortcutDetails"
	maxShortcuts   = 5
)

type ClientOptions struct {
	BaseURL    string
	MaxRetries uint64
	// MaxElapsed bounds the total retry time of one request. Zero means 2m.
	MaxElapsed time.Duration
}

// Client is a thin Drive v3 REST client over an authorized http.Client.
type Client struct {
	http *http.Client
	opt  ClientOptions
}

func NewClient(hc *http.Client, opt ClientOptions) *Client {
	if opt.BaseURL == "" {
		opt.BaseURL = defaultBaseURL
	}
	if opt.MaxRetries == 0 {
		opt.MaxRetries = 4
	}
	if opt.MaxElapsed == 0 {
		opt.MaxElapsed = 2 * time.Minute
	}
	return &Client{http: hc, opt: opt}
}

// Get fetches metadata for one object.
func (c *Client) Get(ctx context.Context, id string) (File, error) {
	q := url.Values{}
	q.Set("fields", fileFields)
	q.Set("supportsAllDrives", "true")

	var f File
	err := c.getJSON(ctx, "/files/"+url.PathEscape(id), q, &f)
	if err != nil {
		return File{}, fmt.Errorf("drive metadata %s: %w", id, err)
	}
	return f, nil
}

// Resolve follows shortcut indirection until a file or folder is reached.
func (c *Client) Resolve(ctx context.Context, id string) (File, error) {
	for i := 0; i <= maxShortcuts; i++ {
		f, err := c.Get(ctx, id)
		if err != nil {
			return File{}, err
		}
		if !f.IsShortcut() {
			return f, nil
		}
		id = f.ShortcutDetails.TargetID
	}
	return File{}, fmt.Errorf("drive object %s: too many shortcut hops", id)
}

// List returns the non-trashed children of a folder in the order Drive
// returns them.
func (c *Client) List(ctx context.Context, folderID string) ([]File, error) {
	var out []File
	token := ""
	for {
		q := url.Values{}
		q.Set("q", fmt.Sprintf("'%s' in parents and trashed = false", folderID))
		q.Set("fields", "nextPageToken,files("+fileFields+")")
		q.Set("pageSize", "200")
		q.Set("supportsAllDrives", "true")
		q.Set("includeItemsFromAllDrives", "true")
		if token != "" {
			q.Set("pageToken", token)
		}

		var page fileList
		if err := c.getJSON(ctx, "/files", q, &page); err != nil {
			return nil, fmt.Errorf("drive list %s: %w", folderID, err)
		}
		out = append(out, page.Files...)
		if page.NextPageToken == "" {
			return out, nil
		}
		token = page.NextPageToken
	}
}

// Download streams an object's bytes to dest through a .part file.
func (c *Client) Download(ctx context.Context, id, dest string, onProgress func(cur, total int64)) error {
	q := url.Values{}
	q.Set("alt", "media")
	q.Set("supportsAllDrives", "true")

	resp, err := c.do(ctx, "/files/"+url.PathEscape(id), q)
	if err != nil {
		return fmt.Errorf("drive download %s: %w", id, err)
	}
	defer resp.Body.Close()

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("drive download %s: %w", id, err)
	}
	part := dest + ".part"
	out, err := os.Create(part)
	if err != nil {
		return fmt.Errorf("drive download %s: %w", id, err)
	}

	w := io.Writer(out)
	if onProgress != nil {
		w = &progressWriter{w: out, total: resp.ContentLength, fn: onProgress}
	}
	if _, err := io.Copy(w, resp.Body); err != nil {
		_ = out.Close()
		_ = os.Remove(part)
		return fmt.Errorf("drive download %s: stream: %w", id, err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(part)
		return fmt.Errorf("drive download %s: %w", id, err)
	}
	if err := os.Rename(part, dest); err != nil {
		_ = os.Remove(part)
		return fmt.Errorf("drive download %s: %w", id, err)
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, path string, q url.Values, v any) error {
	resp, err := c.do(ctx, path, q)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(v)
}

// do issues a GET with retries on transport errors, 429 and 5xx. Auth and
// not-found responses are permanent. The caller owns the response body.
func (c *Client) do(ctx context.Context, path string, q url.Values) (*http.Response, error) {
	u := c.opt.BaseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	var resp *http.Response
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		r, err := c.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return err
		}
		if r.StatusCode >= 200 && r.StatusCode < 300 {
			resp = r
			return nil
		}
		_ = r.Body.Close()
		switch {
		case r.StatusCode == http.StatusUnauthorized:
			return backoff.Permanent(fmt.Errorf("%w: %s", ErrAuth, r.Status))
		case r.StatusCode == http.StatusNotFound:
			return backoff.Permanent(fmt.Errorf("%w: %s", ErrNotFound, r.Status))
		case r.StatusCode == http.StatusTooManyRequests || r.StatusCode >= 500:
			return fmt.Errorf("drive: %s", r.Status)
		case r.StatusCode == http.StatusForbidden:
			return backoff.Permanent(fmt.Errorf("%w: %s", ErrAuth, r.Status))
		default:
			return backoff.Permanent(fmt.Errorf("drive: %s", r.Status))
		}
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = 500 * time.Millisecond
	eb.MaxElapsedTime = c.opt.MaxElapsed
	b := backoff.WithContext(backoff.WithMaxRetries(eb, c.opt.MaxRetries), ctx)
	if err := backoff.Retry(op, b); err != nil {
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			return nil, perm.Err
		}
		return nil, err
	}
	return resp, nil
}

type progressWriter struct {
	w     io.Writer
	cur   int64
	total int64
	fn    func(cur, total int64)
}

func (p *progressWriter) Write(b []byte) (int, error) {
	n, err := p.w.Write(b)
	p.cur += int64(n)
	p.fn(p.cur, p.total)
	return n, err
}
