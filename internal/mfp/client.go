// internal/mfp/client.go
//
// Stateful HTTP client for the MFP admin web UI. The device protects every
// form with single-use anti-CSRF tokens (token1/token2) embedded as hidden
// inputs; a token is only valid for the form on the page it was scraped
// from, so each protected POST is preceded by a fresh GET of its page.
package mfp

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/campusit/mfpusage/internal/export"
)

// Form constants observed on the device. The checkbox set selects which
// columns the job-log report includes; the bitmask below is its
// download-side counterpart.
var (
	jobLogCheckboxes = []int{
		1, 62, 3, 4, 5, 6, 63, 64, 65, 66,
		7, 8, 9, 58, 10, 11, 12, 13, 14, 15,
		16, 17, 18, 19, 20, 21, 73, 74, 22, 23,
		24, 25, 26, 27, 28, 29, 30, 67, 68, 31,
		51, 52, 32, 33, 35, 36, 37, 53, 38, 39,
		70, 40, 41, 72, 49, 50, 54, 55, 56, 57,
		71,
	}
	jobLogSelectItem = "1101111111101111111111111111111111111111111101111111111111111111"
)

const jobLogGgtSelect116 = "59"

// Options tunes a Client beyond its credentials.
type Options struct {
	Timeout         time.Duration // per-request ceiling; default 30s
	UserNum         int           // usernum param on the user-count download
	DeleteAfterSave bool          // del/delAfterSave param
	UserAgent       string
}

// Client owns one authenticated session against one printer. Sessions are
// not pooled: construct, Login, export, discard.
type Client struct {
	base  string
	user  string
	pass  string
	opts  Options
	httpc *http.Client
}

// NewClient builds a Client for one printer base URL. The cookie jar is
// fresh; no session state survives from earlier runs.
func NewClient(base, username, password string, opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.UserNum <= 0 {
		opts.UserNum = 85
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "Mozilla/5.0"
	}
	jar, _ := cookiejar.New(nil)
	return &Client{
		base: strings.TrimRight(base, "/"),
		user: username,
		pass: password,
		opts: opts,
		httpc: &http.Client{
			Jar:     jar,
			Timeout: opts.Timeout,
		},
	}
}

// Base returns the printer base URL the client talks to.
func (c *Client) Base() string { return c.base }

// hiddenValue extracts <input name="..." value="..."> from a page.
func hiddenValue(doc *goquery.Document, name string) string {
	v, _ := doc.Find(fmt.Sprintf(`input[name=%q]`, name)).First().Attr("value")
	return v
}

// get fetches a page and returns the parsed document plus the final URL
// after redirects.
func (c *Client) get(ctx context.Context, op, rawurl string) (*goquery.Document, *url.URL, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawurl, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("User-Agent", c.opts.UserAgent)
	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, nil, &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, nil, &StatusError{Op: op, Status: resp.StatusCode}
	}
	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: parse page: %w", op, err)
	}
	return doc, resp.Request.URL, nil
}

// postForm submits a form and discards the body.
func (c *Client) postForm(ctx context.Context, op, rawurl string, form url.Values) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawurl, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("User-Agent", c.opts.UserAgent)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := c.httpc.Do(req)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{Op: op, Status: resp.StatusCode}
	}
	return nil
}

// download fetches raw bytes from a device endpoint.
func (c *Client) download(ctx context.Context, op, rawurl string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawurl, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("User-Agent", c.opts.UserAgent)
	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{Op: op, Status: resp.StatusCode}
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	return body, nil
}

// Login authenticates the session. The flow is: GET the login page for a
// fresh token2, POST credentials with it, then GET a known authenticated
// page and confirm the final URL did not bounce back to login.html. No
// session state is considered valid until that check passes.
func (c *Client) Login(ctx context.Context) error {
	loginURL := c.base + "/login.html?/main.html"

	doc, _, err := c.get(ctx, "login", loginURL)
	if err != nil {
		return err
	}
	token2 := hiddenValue(doc, "token2")
	if token2 == "" {
		return &ProtocolError{Op: "login", Reason: "token2 not found (UI/firmware changed or blocked)"}
	}

	form := url.Values{
		"ggt_textbox(10002)": {c.user},
		"ggt_textbox(10003)": {c.pass},
		"ggt_select(10004)":  {"0"},
		"action":             {"loginbtn"},
		"token2":             {token2},
		"ordinate":           {"0"},
		"ggt_hidden(10008)":  {"0"},
	}
	if err := c.postForm(ctx, "login", loginURL, form); err != nil {
		return err
	}

	_, finalURL, err := c.get(ctx, "login verify", c.base+"/main.html")
	if err != nil {
		return err
	}
	if strings.Contains(finalURL.String(), "login.html") {
		return &ProtocolError{Op: "login", Reason: fmt.Sprintf("login failed (redirected to %s)", finalURL)}
	}
	return nil
}

// ExportUserCount runs the user-count export flow and writes the CSV
// artifact under destDir, returning its path:
//
//	GET  /account_usercountlist_save.html  -> token1/token2
//	POST /account_usercountlist_save.html  action=countsavebtn
//	GET  /account_count_save.html?usernum=..&del=..
func (c *Client) ExportUserCount(ctx context.Context, destDir string) (string, error) {
	savePage := c.base + "/account_usercountlist_save.html"

	doc, _, err := c.get(ctx, "usercount save page", savePage)
	if err != nil {
		return "", err
	}
	token1 := hiddenValue(doc, "token1")
	token2 := hiddenValue(doc, "token2")
	if token1 == "" || token2 == "" {
		return "", &ProtocolError{Op: "usercount", Reason: "token1/token2 not found"}
	}

	form := url.Values{
		"action":   {"countsavebtn"},
		"token1":   {token1},
		"token2":   {token2},
		"ordinate": {""},
	}
	if err := c.postForm(ctx, "usercount trigger", savePage, form); err != nil {
		return "", err
	}

	q := url.Values{
		"usernum": {strconv.Itoa(c.opts.UserNum)},
		"del":     {boolParam(c.opts.DeleteAfterSave)},
	}
	body, err := c.download(ctx, "usercount download", c.base+"/account_count_save.html?"+q.Encode())
	if err != nil {
		return "", err
	}
	return c.writeArtifact(destDir, export.KindUserCount, body)
}

// ExportJobLog runs the job-log export flow and writes the CSV artifact
// under destDir, returning its path:
//
//	GET  /sysmgt_joblog_save.html -> token1/token2
//	POST /sysmgt_joblog_save.html action=jobsavebtn + column checkboxes
//	GET  /joblog_download.html?format=0&order=1&selectItem=..&date=0&delAfterSave=..
func (c *Client) ExportJobLog(ctx context.Context, destDir string) (string, error) {
	page := c.base + "/sysmgt_joblog_save.html"

	doc, _, err := c.get(ctx, "joblog save page", page)
	if err != nil {
		return "", err
	}
	token1 := hiddenValue(doc, "token1")
	token2 := hiddenValue(doc, "token2")
	if token1 == "" || token2 == "" {
		return "", &ProtocolError{Op: "joblog", Reason: "token1/token2 not found"}
	}

	form := url.Values{
		"ggt_select(116)": {jobLogGgtSelect116},
		"action":          {"jobsavebtn"},
		"token1":          {token1},
		"token2":          {token2},
	}
	for _, i := range jobLogCheckboxes {
		form.Set(fmt.Sprintf("ggt_checkbox(%d)", i), "1")
	}
	if err := c.postForm(ctx, "joblog trigger", page, form); err != nil {
		return "", err
	}

	q := url.Values{
		"format":       {"0"},
		"order":        {"1"},
		"selectItem":   {jobLogSelectItem},
		"date":         {"0"},
		"delAfterSave": {boolParam(c.opts.DeleteAfterSave)},
	}
	body, err := c.download(ctx, "joblog download", c.base+"/joblog_download.html?"+q.Encode())
	if err != nil {
		return "", err
	}
	return c.writeArtifact(destDir, export.KindJobLog, body)
}

// writeArtifact stores a downloaded CSV under its timestamped name.
// Each call produces a new file; nothing is overwritten.
func (c *Client) writeArtifact(destDir string, kind export.Kind, body []byte) (string, error) {
	path := export.ArtifactPath(destDir, kind, c.base, time.Now())
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}
	if err := os.WriteFile(path, body, 0644); err != nil {
		return "", fmt.Errorf("write artifact: %w", err)
	}
	return path, nil
}

func boolParam(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
