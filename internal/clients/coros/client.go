// Package coros implements the COROS Training Hub client.
package coros

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/stridesync/stridesync/internal/models"
)

const (
	defaultBaseURL = "https://teamcnapi.coros.com"
	pageSize       = 20
	resultOK       = "0000"
)

// fileTypes maps download formats to the COROS wire codes.
var fileTypes = map[string]int{
	"gpx": 1,
	"tcx": 3,
	"fit": 4,
}

// Client talks to the COROS Training Hub API. Not safe for concurrent use;
// construct one per in-flight item.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	logger      arbor.ILogger
	limiter     *rate.Limiter
	accessToken string
	userID      string
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API endpoint, used by tests.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(baseURL, "/") }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = timeout }
}

// WithRateLimitDelay sets the minimum gap between activity list pages.
func WithRateLimitDelay(delay time.Duration) Option {
	return func(c *Client) {
		if delay > 0 {
			c.limiter = rate.NewLimiter(rate.Every(delay), 1)
		}
	}
}

// NewClient creates an unauthenticated COROS client.
func NewClient(logger arbor.ILogger, opts ...Option) *Client {
	c := &Client{
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
		limiter:    rate.NewLimiter(rate.Every(time.Second), 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// envelope is the COROS response wrapper. result is "0000" on success.
type envelope struct {
	Result  string          `json:"result"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type loginData struct {
	AccessToken string `json:"accessToken"`
	UserID      string `json:"userId"`
}

type queryData struct {
	Count    int                     `json:"count"`
	DataList []models.SourceActivity `json:"dataList"`
}

type downloadData struct {
	FileURL string `json:"fileUrl"`
}

func hashPassword(password string) string {
	sum := md5.Sum([]byte(password))
	return hex.EncodeToString(sum[:])
}

// Login authenticates with an MD5-hashed password and stores the returned
// access token for subsequent requests.
func (c *Client) Login(ctx context.Context, email, password string) error {
	payload := map[string]interface{}{
		"account":     email,
		"accountType": 2,
		"pwd":         hashPassword(password),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode login payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/account/login", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	env, err := c.do(req)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	var data loginData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return fmt.Errorf("failed to decode login response: %w", err)
	}
	if data.AccessToken == "" {
		return fmt.Errorf("login response missing access token")
	}

	c.accessToken = data.AccessToken
	c.userID = data.UserID

	c.logger.Info().Str("account", email).Msg("Logged in to COROS")
	return nil
}

// ListActivities pages through the activity query endpoint. Stops on an empty
// or short page, waiting out the rate limiter between pages.
func (c *Client) ListActivities(ctx context.Context, startDate, endDate time.Time, sportTypes []string) ([]models.SourceActivity, error) {
	if c.accessToken == "" {
		return nil, fmt.Errorf("not authenticated")
	}

	var activities []models.SourceActivity
	page := 1

	for {
		params := url.Values{}
		params.Set("pageNumber", strconv.Itoa(page))
		params.Set("size", strconv.Itoa(pageSize))
		params.Set("startDay", startDate.Format("20060102"))
		params.Set("endDay", endDate.Format("20060102"))
		params.Set("modeList", strings.Join(sportTypes, ","))

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/activity/query?"+params.Encode(), nil)
		if err != nil {
			return nil, fmt.Errorf("failed to build activity query: %w", err)
		}
		req.Header.Set("accesstoken", c.accessToken)

		env, err := c.do(req)
		if err != nil {
			return nil, fmt.Errorf("activity query failed on page %d: %w", page, err)
		}

		var data queryData
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return nil, fmt.Errorf("failed to decode activity page %d: %w", page, err)
		}
		if len(data.DataList) == 0 {
			break
		}

		activities = append(activities, data.DataList...)
		if len(data.DataList) < pageSize {
			break
		}
		page++

		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	c.logger.Info().
		Int("count", len(activities)).
		Str("start", startDate.Format("2006-01-02")).
		Str("end", endDate.Format("2006-01-02")).
		Msg("Retrieved COROS activities")

	return activities, nil
}

// Download fetches one activity file. The API returns a file URL which is
// then fetched separately. TCX payloads pass through the extension fixer
// before hitting disk.
func (c *Client) Download(ctx context.Context, labelID string, sportType int, format string, savePath string) (string, error) {
	if c.accessToken == "" {
		return "", fmt.Errorf("not authenticated")
	}

	fileType, ok := fileTypes[strings.ToLower(format)]
	if !ok {
		return "", fmt.Errorf("unsupported file format: %s", format)
	}

	params := url.Values{}
	params.Set("labelId", labelID)
	params.Set("sportType", strconv.Itoa(sportType))
	params.Set("fileType", strconv.Itoa(fileType))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/activity/detail/download?"+params.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("failed to build download request: %w", err)
	}
	req.Header.Set("accesstoken", c.accessToken)

	env, err := c.do(req)
	if err != nil {
		return "", fmt.Errorf("download request failed for %s: %w", labelID, err)
	}

	var data downloadData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return "", fmt.Errorf("failed to decode download response: %w", err)
	}
	if data.FileURL == "" {
		return "", fmt.Errorf("no file URL in download response for %s", labelID)
	}

	fileReq, err := http.NewRequestWithContext(ctx, http.MethodGet, data.FileURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build file request: %w", err)
	}
	resp, err := c.httpClient.Do(fileReq)
	if err != nil {
		return "", fmt.Errorf("failed to fetch activity file for %s: %w", labelID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("file fetch returned status %d for %s", resp.StatusCode, labelID)
	}

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read activity file for %s: %w", labelID, err)
	}

	if strings.EqualFold(format, "tcx") {
		content = FixTCXExtensions(content)
	}

	if err := os.MkdirAll(filepath.Dir(savePath), 0755); err != nil {
		return "", fmt.Errorf("failed to create download directory: %w", err)
	}
	if err := os.WriteFile(savePath, content, 0644); err != nil {
		return "", fmt.Errorf("failed to write activity file: %w", err)
	}

	c.logger.Info().
		Str("label_id", labelID).
		Str("path", savePath).
		Msg("Downloaded activity")

	return savePath, nil
}

// do executes a request and unwraps the COROS envelope, treating a non-"0000"
// result as an error carrying the API message.
func (c *Client) do(req *http.Request) (*envelope, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if env.Result != resultOK {
		return nil, fmt.Errorf("API error %s: %s", env.Result, env.Message)
	}
	return &env, nil
}
