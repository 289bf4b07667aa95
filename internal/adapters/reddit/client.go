package reddit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/ivashkin-reddit/ukpol-sticky/internal/kit"
	"github.com/ivashkin-reddit/ukpol-sticky/pkg/logx"
)

const (
	defaultBaseURL = "https://oauth.reddit.com"
	defaultAuthURL = "https://www.reddit.com"
)

type Config struct {
	BaseURL      string
	AuthURL      string
	Subreddit    string
	Username     string
	Password     string
	ClientID     string
	ClientSecret string
	UserAgent    string
	Timeout      time.Duration
}

// Client is a narrow script-app client for the Reddit API, covering only
// the calls the sticky engine needs. It implements kit.Forum.
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
	log     logx.Logger

	tokenMu     sync.Mutex
	token       string
	tokenExpiry time.Time
}

var _ kit.Forum = (*Client)(nil)

func New(cfg Config, log logx.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.Subreddit) == "" {
		return nil, errors.New("reddit subreddit is required")
	}
	if cfg.ClientID == "" || cfg.ClientSecret == "" || cfg.Username == "" || cfg.Password == "" {
		return nil, errors.New("reddit script credentials are incomplete")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.AuthURL == "" {
		cfg.AuthURL = defaultAuthURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "ukpol-sticky (by /u/" + cfg.Username + ")"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: timeout},
		// Stay well under the API quota; the engine's call volume is tiny.
		limiter: rate.NewLimiter(rate.Limit(1), 2),
		log:     log,
	}, nil
}

// ensureToken refreshes the OAuth bearer token when missing or near expiry.
func (c *Client) ensureToken(ctx context.Context) (string, error) {
	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()
	if c.token != "" && time.Now().Before(c.tokenExpiry.Add(-time.Minute)) {
		return c.token, nil
	}

	form := url.Values{
		"grant_type": {"password"},
		"username":   {c.cfg.Username},
		"password":   {c.cfg.Password},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.AuthURL+"/api/v1/access_token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(c.cfg.ClientID, c.cfg.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token request: unexpected status %s", resp.Status)
	}

	var tok struct {
		AccessToken string  `json:"access_token"`
		ExpiresIn   float64 `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return "", fmt.Errorf("token response: %w", err)
	}
	if tok.AccessToken == "" {
		return "", errors.New("token response: empty access_token")
	}
	c.token = tok.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(tok.ExpiresIn) * time.Second)
	return c.token, nil
}

func (c *Client) do(ctx context.Context, method, path string, form url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	token, err := c.ensureToken(ctx)
	if err != nil {
		return err
	}

	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return kit.ErrNotFound
	}
	if resp.StatusCode >= 400 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s %s: status %s: %s", method, path, resp.Status, strings.TrimSpace(string(snippet)))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// thing is the listing element shape shared by post responses.
type thing struct {
	Kind string `json:"kind"`
	Data struct {
		Name        string  `json:"name"` // fullname, e.g. t3_abc
		Title       string  `json:"title"`
		Selftext    string  `json:"selftext"`
		CreatedUTC  float64 `json:"created_utc"`
		NumComments int     `json:"num_comments"`
		Stickied    bool    `json:"stickied"`
		Locked      bool    `json:"locked"`
		Author      string  `json:"author"`
	} `json:"data"`
}

type listing struct {
	Data struct {
		Children []thing `json:"children"`
	} `json:"data"`
}

// apiResp is the api_type=json envelope of mutation endpoints.
type apiResp struct {
	JSON struct {
		Errors [][]any `json:"errors"`
		Data   struct {
			Name string `json:"name"`
		} `json:"data"`
	} `json:"json"`
}

func (r apiResp) err() error {
	if len(r.JSON.Errors) == 0 {
		return nil
	}
	parts := make([]string, 0, len(r.JSON.Errors))
	for _, e := range r.JSON.Errors {
		fields := make([]string, 0, len(e))
		for _, f := range e {
			fields = append(fields, fmt.Sprint(f))
		}
		parts = append(parts, strings.Join(fields, " "))
	}
	return errors.New("api errors: " + strings.Join(parts, "; "))
}

func (c *Client) PostByID(ctx context.Context, id string) (*kit.Post, error) {
	var l listing
	if err := c.do(ctx, http.MethodGet, "/api/info?id="+url.QueryEscape(id), nil, &l); err != nil {
		return nil, err
	}
	if len(l.Data.Children) == 0 {
		return nil, kit.ErrNotFound
	}
	d := l.Data.Children[0].Data
	// A removed author means the post itself was deleted.
	if d.Author == "[deleted]" {
		return nil, kit.ErrNotFound
	}
	return &kit.Post{
		ID:          d.Name,
		Title:       d.Title,
		Body:        d.Selftext,
		CreatedAt:   time.Unix(int64(d.CreatedUTC), 0).UTC(),
		NumComments: d.NumComments,
		Stickied:    d.Stickied,
		Locked:      d.Locked,
	}, nil
}

func (c *Client) SubmitPost(ctx context.Context, title, body string) (*kit.Post, error) {
	form := url.Values{
		"sr":       {c.cfg.Subreddit},
		"kind":     {"self"},
		"title":    {title},
		"text":     {body},
		"api_type": {"json"},
	}
	var r apiResp
	if err := c.do(ctx, http.MethodPost, "/api/submit", form, &r); err != nil {
		return nil, err
	}
	if err := r.err(); err != nil {
		return nil, err
	}
	if r.JSON.Data.Name == "" {
		return nil, errors.New("submit: response carried no fullname")
	}
	return &kit.Post{
		ID:        r.JSON.Data.Name,
		Title:     title,
		Body:      body,
		CreatedAt: time.Now().UTC(),
	}, nil
}

func (c *Client) EditPostBody(ctx context.Context, id, body string) error {
	form := url.Values{"thing_id": {id}, "text": {body}, "api_type": {"json"}}
	var r apiResp
	if err := c.do(ctx, http.MethodPost, "/api/editusertext", form, &r); err != nil {
		return err
	}
	return r.err()
}

func (c *Client) Sticky(ctx context.Context, id string, position int) error {
	form := url.Values{"id": {id}, "state": {"true"}, "api_type": {"json"}}
	if position > 0 {
		form.Set("num", strconv.Itoa(position))
	}
	var r apiResp
	if err := c.do(ctx, http.MethodPost, "/api/set_subreddit_sticky", form, &r); err != nil {
		return err
	}
	return r.err()
}

func (c *Client) Unsticky(ctx context.Context, id string) error {
	form := url.Values{"id": {id}, "state": {"false"}, "api_type": {"json"}}
	var r apiResp
	if err := c.do(ctx, http.MethodPost, "/api/set_subreddit_sticky", form, &r); err != nil {
		return err
	}
	return r.err()
}

func (c *Client) Lock(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/api/lock", url.Values{"id": {id}}, nil)
}

func (c *Client) DistinguishPost(ctx context.Context, id string) error {
	form := url.Values{"id": {id}, "how": {"yes"}, "api_type": {"json"}}
	var r apiResp
	if err := c.do(ctx, http.MethodPost, "/api/distinguish", form, &r); err != nil {
		return err
	}
	return r.err()
}

func (c *Client) AddComment(ctx context.Context, postID, body string) (string, error) {
	form := url.Values{"thing_id": {postID}, "text": {body}, "api_type": {"json"}}
	var r apiResp
	if err := c.do(ctx, http.MethodPost, "/api/comment", form, &r); err != nil {
		return "", err
	}
	if err := r.err(); err != nil {
		return "", err
	}
	return r.JSON.Data.Name, nil
}

func (c *Client) DistinguishComment(ctx context.Context, commentID string, sticky bool) error {
	form := url.Values{"id": {commentID}, "how": {"yes"}, "api_type": {"json"}}
	if sticky {
		form.Set("sticky", "true")
	}
	var r apiResp
	if err := c.do(ctx, http.MethodPost, "/api/distinguish", form, &r); err != nil {
		return err
	}
	return r.err()
}

func (c *Client) GetWikiPage(ctx context.Context, page string) (*kit.WikiPage, error) {
	var w struct {
		Data struct {
			ContentMD  string `json:"content_md"`
			RevisionID string `json:"revision_id"`
		} `json:"data"`
	}
	path := "/r/" + url.PathEscape(c.cfg.Subreddit) + "/wiki/" + page
	if err := c.do(ctx, http.MethodGet, path, nil, &w); err != nil {
		return nil, err
	}
	return &kit.WikiPage{Name: page, Content: w.Data.ContentMD, RevisionID: w.Data.RevisionID}, nil
}

func (c *Client) PutWikiPage(ctx context.Context, page, content string) error {
	form := url.Values{
		"page":    {page},
		"content": {content},
		"reason":  {"sticky manager update"},
	}
	path := "/r/" + url.PathEscape(c.cfg.Subreddit) + "/api/wiki/edit"
	return c.do(ctx, http.MethodPost, path, form, nil)
}

func (c *Client) Me(ctx context.Context) (string, error) {
	var me struct {
		Name string `json:"name"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/me", nil, &me); err != nil {
		return "", err
	}
	return me.Name, nil
}
