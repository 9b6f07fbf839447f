// Package sessionclient is the API-side token manager for the admin
// console backend: it attaches the current access token to outbound
// calls, silently refreshes it when a call comes back 401, and
// guarantees a single refresh round-trip no matter how many calls
// failed concurrently.
package sessionclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

var (
	// ErrNoSession means no stored session exists; the caller must log in.
	ErrNoSession = errors.New("sessionclient: no active session")
	// ErrSessionExpired means a refresh failed terminally; the stored
	// session has been cleared and the user must re-authenticate.
	ErrSessionExpired = errors.New("sessionclient: session expired, please re-authenticate")
)

const defaultRefreshTimeout = 10 * time.Second

type Client struct {
	baseURL        string
	httpClient     *http.Client
	store          Store
	refreshTimeout time.Duration

	mu      sync.Mutex
	session *Session

	refreshGroup singleflight.Group

	// OnSessionExpired is invoked once per terminal refresh failure,
	// after the session has been cleared. The application shell
	// typically redirects to the login surface.
	OnSessionExpired func(error)
}

func New(baseURL string, store Store) (*Client, error) {
	sess, err := store.Load()
	if err != nil {
		return nil, err
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		store:          store,
		refreshTimeout: defaultRefreshTimeout,
		session:        sess,
	}, nil
}

// Session returns a copy of the current session, or nil when logged out.
func (c *Client) Session() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil
	}
	cp := *c.session
	return &cp
}

type loginPayload struct {
	User         json.RawMessage `json:"user"`
	AccessToken  string          `json:"accessToken"`
	RefreshToken string          `json:"refreshToken"`
}

func (c *Client) Login(ctx context.Context, email, password string) error {
	body, _ := json.Marshal(map[string]string{"email": email, "password": password})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/login", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sessionclient: login: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("sessionclient: login failed: %s", apiMessage(resp))
	}

	var payload loginPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return fmt.Errorf("sessionclient: decode login response: %w", err)
	}

	sess := &Session{
		AccessToken:  payload.AccessToken,
		RefreshToken: payload.RefreshToken,
		User:         payload.User,
	}
	c.mu.Lock()
	c.session = sess
	c.mu.Unlock()
	return c.store.Save(sess)
}

// Logout clears the stored session. The server call is best effort;
// tokens are stateless and expire on their own.
func (c *Client) Logout(ctx context.Context) error {
	sess := c.Session()
	if sess != nil {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/logout", nil)
		if err == nil {
			req.Header.Set("Authorization", "Bearer "+sess.AccessToken)
			if resp, err := c.httpClient.Do(req); err == nil {
				io.Copy(io.Discard, resp.Body)
				resp.Body.Close()
			}
		}
	}

	c.mu.Lock()
	c.session = nil
	c.mu.Unlock()
	return c.store.Clear()
}

// NewRequest builds a request against the backend; the path is joined
// to the configured base URL.
func (c *Client) NewRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// Do sends the request with the current access token. On a 401 it
// performs (or joins) a single refresh and retries the request exactly
// once with the new token; any other failure propagates unmodified.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	sess := c.Session()
	if sess == nil {
		return nil, ErrNoSession
	}

	req.Header.Set("Authorization", "Bearer "+sess.AccessToken)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Timeouts and transport errors are not authorization
		// failures; they never enter the refresh path.
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}

	// The body cannot be resent without GetBody; surface the 401 as-is.
	if req.Body != nil && req.GetBody == nil {
		return resp, nil
	}

	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	token, err := c.freshAccessToken(sess.AccessToken)
	if err != nil {
		return nil, err
	}

	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		req.Body = body
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return c.httpClient.Do(req)
}

// freshAccessToken returns an access token newer than the stale one,
// refreshing at most once system-wide. Callers that arrive while a
// refresh is in flight join it; callers that arrive after it finished
// get the already-renewed token without a second round-trip.
func (c *Client) freshAccessToken(stale string) (string, error) {
	c.mu.Lock()
	current := ""
	if c.session != nil {
		current = c.session.AccessToken
	}
	c.mu.Unlock()

	if current == "" {
		return "", ErrSessionExpired
	}
	if current != stale {
		return current, nil
	}

	v, err, _ := c.refreshGroup.Do("refresh", func() (any, error) {
		c.mu.Lock()
		sess := c.session
		c.mu.Unlock()
		if sess == nil {
			return nil, ErrSessionExpired
		}
		if sess.AccessToken != stale {
			return sess.AccessToken, nil
		}

		token, err := c.refreshOnce(sess.RefreshToken)
		if err != nil {
			c.teardown(err)
			return nil, fmt.Errorf("%w: %v", ErrSessionExpired, err)
		}

		c.mu.Lock()
		if c.session != nil {
			c.session.AccessToken = token
			cp := *c.session
			c.mu.Unlock()
			if err := c.store.Save(&cp); err != nil {
				return token, nil // persisted state lags; the in-memory token is authoritative
			}
		} else {
			c.mu.Unlock()
		}
		return token, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// refreshOnce performs the actual refresh round-trip. It runs on its
// own bounded timeout, detached from any single caller's context, so
// one cancelled request cannot doom every queued waiter.
func (c *Client) refreshOnce(refreshToken string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), c.refreshTimeout)
	defer cancel()

	body, _ := json.Marshal(map[string]string{"refreshToken": refreshToken})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/refresh", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("refresh failed: %s", apiMessage(resp))
	}

	var payload struct {
		AccessToken string `json:"accessToken"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", err
	}
	if payload.AccessToken == "" {
		return "", errors.New("refresh response missing access token")
	}
	return payload.AccessToken, nil
}

func (c *Client) teardown(cause error) {
	c.mu.Lock()
	c.session = nil
	c.mu.Unlock()
	c.store.Clear()
	if c.OnSessionExpired != nil {
		c.OnSessionExpired(cause)
	}
}

func apiMessage(resp *http.Response) string {
	var payload struct {
		Message string `json:"message"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if json.Unmarshal(data, &payload) == nil && payload.Message != "" {
		return fmt.Sprintf("%s (status %d)", payload.Message, resp.StatusCode)
	}
	return fmt.Sprintf("status %d", resp.StatusCode)
}
