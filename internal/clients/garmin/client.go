// Package garmin implements the Garmin Connect client.
package garmin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/stridesync/stridesync/internal/interfaces"
	"github.com/stridesync/stridesync/internal/models"
)

const (
	defaultAPIBaseURL = "https://connect.garmin.cn"
	defaultSSOBaseURL = "https://sso.garmin.cn"
	listPageLimit     = 100

	// duplicateMessageCode is the import-result code the sink uses for an
	// already-uploaded activity.
	duplicateMessageCode = 202
)

var (
	csrfPattern   = regexp.MustCompile(`name="_csrf"\s+value="([^"]+)"`)
	ticketPattern = regexp.MustCompile(`embed\?ticket=([^"]+)"`)
)

// Client talks to Garmin Connect over a cookie session. Not safe for
// concurrent use; construct one per in-flight item.
type Client struct {
	apiBaseURL    string
	ssoBaseURL    string
	httpClient    *http.Client
	logger        arbor.ILogger
	limiter       *rate.Limiter
	authenticated bool
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURLs overrides the API and SSO endpoints, used by tests.
func WithBaseURLs(apiBaseURL, ssoBaseURL string) Option {
	return func(c *Client) {
		c.apiBaseURL = strings.TrimRight(apiBaseURL, "/")
		c.ssoBaseURL = strings.TrimRight(ssoBaseURL, "/")
	}
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

// NewClient creates an unauthenticated Garmin client with its own cookie jar.
func NewClient(logger arbor.ILogger, opts ...Option) *Client {
	jar, _ := cookiejar.New(nil)
	c := &Client{
		apiBaseURL: defaultAPIBaseURL,
		ssoBaseURL: defaultSSOBaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second, Jar: jar},
		logger:     logger,
		limiter:    rate.NewLimiter(rate.Every(time.Second), 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Login runs the SSO form flow: fetch the signin page for a CSRF token, post
// credentials, pull the service ticket out of the response, then redeem the
// ticket against the API host to establish session cookies.
func (c *Client) Login(ctx context.Context, email, password string) error {
	signinURL := c.ssoBaseURL + "/sso/signin?" + url.Values{
		"service": {c.apiBaseURL + "/modern"},
		"embed":   {"false"},
	}.Encode()

	page, err := c.fetch(ctx, http.MethodGet, signinURL, nil, nil)
	if err != nil {
		return fmt.Errorf("failed to load signin page: %w", err)
	}
	csrfMatch := csrfPattern.FindSubmatch(page)
	if csrfMatch == nil {
		return fmt.Errorf("signin page missing CSRF token")
	}

	form := url.Values{
		"username": {email},
		"password": {password},
		"embed":    {"false"},
		"_csrf":    {string(csrfMatch[1])},
	}
	headers := map[string]string{
		"Content-Type": "application/x-www-form-urlencoded",
		"Referer":      signinURL,
	}
	result, err := c.fetch(ctx, http.MethodPost, signinURL, strings.NewReader(form.Encode()), headers)
	if err != nil {
		return fmt.Errorf("signin failed: %w", err)
	}

	ticketMatch := ticketPattern.FindSubmatch(result)
	if ticketMatch == nil {
		return fmt.Errorf("signin response missing service ticket (wrong credentials?)")
	}

	redeemURL := c.apiBaseURL + "/modern?ticket=" + url.QueryEscape(string(ticketMatch[1]))
	if _, err := c.fetch(ctx, http.MethodGet, redeemURL, nil, nil); err != nil {
		return fmt.Errorf("failed to redeem service ticket: %w", err)
	}

	c.authenticated = true
	c.logger.Info().Str("account", email).Msg("Logged in to Garmin")
	return nil
}

// importMessage is one entry of a success or failure message list.
type importMessage struct {
	Code    int    `json:"code"`
	Content string `json:"content"`
}

type importEntry struct {
	InternalID json.Number     `json:"internalId"`
	Messages   []importMessage `json:"messages"`
}

type importResult struct {
	DetailedImportResult struct {
		Successes []importEntry `json:"successes"`
		Failures  []importEntry `json:"failures"`
	} `json:"detailedImportResult"`
}

// UploadFIT uploads an activity file and classifies the import result:
// accepted (id), explicit duplicate (code 202 or HTTP 409), or ambiguous
// when both lists come back empty.
func (c *Client) UploadFIT(ctx context.Context, path string) (interfaces.UploadResult, error) {
	if !c.authenticated {
		return interfaces.UploadResult{}, fmt.Errorf("not authenticated")
	}

	file, err := os.Open(path)
	if err != nil {
		return interfaces.UploadResult{}, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return interfaces.UploadResult{}, fmt.Errorf("failed to build upload form: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return interfaces.UploadResult{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := writer.Close(); err != nil {
		return interfaces.UploadResult{}, fmt.Errorf("failed to finish upload form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiBaseURL+"/upload-service/upload", &body)
	if err != nil {
		return interfaces.UploadResult{}, fmt.Errorf("failed to build upload request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("nk", "NT")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return interfaces.UploadResult{}, fmt.Errorf("upload failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusConflict {
		c.logger.Warn().Str("path", path).Msg("Upload rejected as duplicate (409)")
		return interfaces.UploadResult{Duplicate: true}, nil
	}
	if resp.StatusCode >= 400 {
		return interfaces.UploadResult{}, fmt.Errorf("upload returned status %d", resp.StatusCode)
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return interfaces.UploadResult{}, fmt.Errorf("failed to read upload response: %w", err)
	}

	var result importResult
	if err := json.Unmarshal(respBody, &result); err != nil {
		return interfaces.UploadResult{}, fmt.Errorf("failed to decode upload response: %w", err)
	}

	detailed := result.DetailedImportResult
	if len(detailed.Successes) > 0 {
		id := detailed.Successes[0].InternalID.String()
		c.logger.Info().Str("path", path).Str("activity_id", id).Msg("Uploaded activity")
		return interfaces.UploadResult{SinkID: id}, nil
	}

	if len(detailed.Failures) > 0 {
		failure := detailed.Failures[0]
		if len(failure.Messages) > 0 && failure.Messages[0].Code == duplicateMessageCode {
			// The failure entry carries the existing activity's id when the
			// sink knows it.
			c.logger.Warn().Str("path", path).Msg("Activity already exists on sink")
			return interfaces.UploadResult{SinkID: failure.InternalID.String(), Duplicate: true}, nil
		}
		return interfaces.UploadResult{}, fmt.Errorf("upload rejected: %s", describeMessages(failure.Messages))
	}

	// Neither accepted nor rejected. The caller resolves this with the
	// duplicate probe.
	c.logger.Warn().Str("path", path).Msg("Upload returned empty import result")
	return interfaces.UploadResult{Ambiguous: true}, nil
}

func describeMessages(messages []importMessage) string {
	if len(messages) == 0 {
		return "no failure detail"
	}
	parts := make([]string, len(messages))
	for i, m := range messages {
		parts[i] = fmt.Sprintf("%d: %s", m.Code, m.Content)
	}
	return strings.Join(parts, "; ")
}

// ListActivities pages through the activity search endpoint. Stops on an
// empty or short page, waiting out the rate limiter between pages.
func (c *Client) ListActivities(ctx context.Context, startDate, endDate time.Time) ([]models.SinkActivity, error) {
	if !c.authenticated {
		return nil, fmt.Errorf("not authenticated")
	}

	var activities []models.SinkActivity
	start := 0

	for {
		params := url.Values{}
		params.Set("start", fmt.Sprintf("%d", start))
		params.Set("limit", fmt.Sprintf("%d", listPageLimit))
		params.Set("startDate", startDate.Format("2006-01-02"))
		params.Set("endDate", endDate.Format("2006-01-02"))

		body, err := c.connectAPI(ctx, http.MethodGet, "/activitylist-service/activities/search/activities?"+params.Encode(), nil)
		if err != nil {
			return nil, fmt.Errorf("activity search failed at offset %d: %w", start, err)
		}

		var batch []models.SinkActivity
		if err := json.Unmarshal(body, &batch); err != nil {
			return nil, fmt.Errorf("failed to decode activity search at offset %d: %w", start, err)
		}
		if len(batch) == 0 {
			break
		}

		activities = append(activities, batch...)
		if len(batch) < listPageLimit {
			break
		}
		start += listPageLimit

		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	return activities, nil
}

// SetActivityName renames an uploaded activity.
func (c *Client) SetActivityName(ctx context.Context, activityID, name string) error {
	payload := map[string]interface{}{"activityId": activityID, "activityName": name}
	return c.putActivity(ctx, activityID, payload)
}

// SetActivityDescription sets the activity description.
func (c *Client) SetActivityDescription(ctx context.Context, activityID, description string) error {
	payload := map[string]interface{}{"activityId": activityID, "description": description}
	return c.putActivity(ctx, activityID, payload)
}

// SetActivityPrivacy sets the activity visibility ("private" or "public").
func (c *Client) SetActivityPrivacy(ctx context.Context, activityID, visibility string) error {
	payload := map[string]interface{}{
		"activityId": activityID,
		"privacy":    map[string]string{"typeKey": visibility},
	}
	return c.putActivity(ctx, activityID, payload)
}

func (c *Client) putActivity(ctx context.Context, activityID string, payload map[string]interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode activity update: %w", err)
	}
	if _, err := c.connectAPI(ctx, http.MethodPut, "/activity-service/activity/"+activityID, bytes.NewReader(body)); err != nil {
		return fmt.Errorf("failed to update activity %s: %w", activityID, err)
	}
	return nil
}

// LinkGear attaches a gear entry to an activity.
func (c *Client) LinkGear(ctx context.Context, gearID, activityID string) error {
	path := fmt.Sprintf("/gear-service/gear/link/%s/activity/%s", gearID, activityID)
	if _, err := c.connectAPI(ctx, http.MethodPut, path, nil); err != nil {
		return fmt.Errorf("failed to link gear %s to activity %s: %w", gearID, activityID, err)
	}
	return nil
}

// gearEntry is the wire shape of one gear list item.
type gearEntry struct {
	UUID            string `json:"uuid"`
	GearPk          int64  `json:"gearPk"`
	DisplayName     string `json:"displayName"`
	CustomMakeModel string `json:"customMakeModel"`
	GearTypeName    string `json:"gearTypeName"`
}

// ListGear fetches the user's gear list.
func (c *Client) ListGear(ctx context.Context, limit int) ([]models.GearEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	params := url.Values{}
	params.Set("start", "0")
	params.Set("limit", fmt.Sprintf("%d", limit))

	body, err := c.connectAPI(ctx, http.MethodGet, "/gear-service/gear/filterGear?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch gear: %w", err)
	}

	var entries []gearEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode gear list: %w", err)
	}

	gear := make([]models.GearEntry, 0, len(entries))
	for _, e := range entries {
		id := e.UUID
		if id == "" && e.GearPk != 0 {
			id = fmt.Sprintf("%d", e.GearPk)
		}
		name := e.DisplayName
		if name == "" {
			name = e.CustomMakeModel
		}
		if name == "" {
			name = "Unknown"
		}
		gear = append(gear, models.GearEntry{ID: id, Name: name, Type: e.GearTypeName})
	}
	return gear, nil
}

// connectAPI performs an authenticated JSON API call and returns the body.
func (c *Client) connectAPI(ctx context.Context, method, path string, body io.Reader) ([]byte, error) {
	if !c.authenticated {
		return nil, fmt.Errorf("not authenticated")
	}
	headers := map[string]string{
		"nk":               "NT",
		"X-Requested-With": "XMLHttpRequest",
	}
	if body != nil {
		headers["Content-Type"] = "application/json"
	}
	return c.fetch(ctx, method, c.apiBaseURL+path, body, headers)
}

func (c *Client) fetch(ctx context.Context, method, rawURL string, body io.Reader, headers map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return respBody, nil
}
