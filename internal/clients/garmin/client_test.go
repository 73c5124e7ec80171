package garmin

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewClient(arbor.NewLogger(),
		WithBaseURLs(server.URL, server.URL),
		WithRateLimitDelay(time.Millisecond),
	)
}

func writeFIT(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "activity.fit")
	require.NoError(t, os.WriteFile(path, []byte("FITDATA"), 0644))
	return path
}

func TestLoginFlow(t *testing.T) {
	var steps []string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/sso/signin" && r.Method == http.MethodGet:
			steps = append(steps, "signin-page")
			fmt.Fprint(w, `<input type="hidden" name="_csrf" value="csrf-token"/>`)
		case r.URL.Path == "/sso/signin" && r.Method == http.MethodPost:
			steps = append(steps, "signin-post")
			require.NoError(t, r.ParseForm())
			require.Equal(t, "csrf-token", r.PostForm.Get("_csrf"))
			require.Equal(t, "user@example.com", r.PostForm.Get("username"))
			fmt.Fprint(w, `<a href="https://example/embed?ticket=ST-123"</a>`)
		case r.URL.Path == "/modern":
			steps = append(steps, "redeem")
			require.Equal(t, "ST-123", r.URL.Query().Get("ticket"))
		default:
			http.NotFound(w, r)
		}
	})

	err := client.Login(context.Background(), "user@example.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, []string{"signin-page", "signin-post", "redeem"}, steps)
	assert.True(t, client.authenticated)
}

func TestLoginFailsWithoutTicket(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			fmt.Fprint(w, `<input name="_csrf" value="x"/>`)
			return
		}
		fmt.Fprint(w, `invalid credentials`)
	})

	err := client.Login(context.Background(), "user@example.com", "wrong")
	assert.Error(t, err)
	assert.False(t, client.authenticated)
}

func TestUploadFITSuccess(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/upload-service/upload", r.URL.Path)
		require.Equal(t, "NT", r.Header.Get("nk"))
		require.NoError(t, r.ParseMultipartForm(1 << 20))
		_, header, err := r.FormFile("file")
		require.NoError(t, err)
		require.Equal(t, "activity.fit", header.Filename)

		json.NewEncoder(w).Encode(map[string]interface{}{
			"detailedImportResult": map[string]interface{}{
				"successes": []map[string]interface{}{{"internalId": 12345}},
				"failures":  []interface{}{},
			},
		})
	})
	client.authenticated = true

	result, err := client.UploadFIT(context.Background(), writeFIT(t))
	require.NoError(t, err)
	assert.Equal(t, "12345", result.SinkID)
	assert.False(t, result.Duplicate)
	assert.False(t, result.Ambiguous)
}

func TestUploadFITDuplicateCode(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"detailedImportResult": map[string]interface{}{
				"successes": []interface{}{},
				"failures": []map[string]interface{}{{
					"internalId": 678,
					"messages":   []map[string]interface{}{{"code": 202, "content": "Duplicate Activity"}},
				}},
			},
		})
	})
	client.authenticated = true

	result, err := client.UploadFIT(context.Background(), writeFIT(t))
	require.NoError(t, err)
	assert.True(t, result.Duplicate)
	assert.Equal(t, "678", result.SinkID)
}

func TestUploadFITConflictStatus(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	})
	client.authenticated = true

	result, err := client.UploadFIT(context.Background(), writeFIT(t))
	require.NoError(t, err)
	assert.True(t, result.Duplicate)
	assert.Empty(t, result.SinkID)
}

func TestUploadFITAmbiguousEmptyResult(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"detailedImportResult": map[string]interface{}{
				"successes": []interface{}{},
				"failures":  []interface{}{},
			},
		})
	})
	client.authenticated = true

	result, err := client.UploadFIT(context.Background(), writeFIT(t))
	require.NoError(t, err)
	assert.True(t, result.Ambiguous)
	assert.False(t, result.Duplicate)
	assert.Empty(t, result.SinkID)
}

func TestUploadFITRejectionIsError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"detailedImportResult": map[string]interface{}{
				"successes": []interface{}{},
				"failures": []map[string]interface{}{{
					"messages": []map[string]interface{}{{"code": 400, "content": "Corrupt file"}},
				}},
			},
		})
	})
	client.authenticated = true

	_, err := client.UploadFIT(context.Background(), writeFIT(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Corrupt file")
}

func TestListActivitiesPaginates(t *testing.T) {
	pages := 0
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/activitylist-service/activities/search/activities", r.URL.Path)
		pages++
		size := listPageLimit
		if r.URL.Query().Get("start") != "0" {
			size = 2
		}
		batch := make([]map[string]interface{}, size)
		for i := range batch {
			batch[i] = map[string]interface{}{
				"activityId":     fmt.Sprintf("%d", i),
				"startTimeLocal": "2025-06-01 07:00:00",
			}
		}
		json.NewEncoder(w).Encode(batch)
	})
	client.authenticated = true

	activities, err := client.ListActivities(context.Background(),
		time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 2, pages)
	assert.Len(t, activities, listPageLimit+2)
}

func TestMetadataPuts(t *testing.T) {
	var bodies []map[string]interface{}
	var paths []string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method)
		paths = append(paths, r.URL.Path)
		if r.Body != nil {
			var payload map[string]interface{}
			if json.NewDecoder(r.Body).Decode(&payload) == nil {
				bodies = append(bodies, payload)
			}
		}
	})
	client.authenticated = true
	ctx := context.Background()

	require.NoError(t, client.SetActivityName(ctx, "42", "Morning Run"))
	require.NoError(t, client.SetActivityDescription(ctx, "42", "desc"))
	require.NoError(t, client.SetActivityPrivacy(ctx, "42", "private"))
	require.NoError(t, client.LinkGear(ctx, "gear-1", "42"))

	assert.Equal(t, []string{
		"/activity-service/activity/42",
		"/activity-service/activity/42",
		"/activity-service/activity/42",
		"/gear-service/gear/link/gear-1/activity/42",
	}, paths)
	require.Len(t, bodies, 3)
	assert.Equal(t, "Morning Run", bodies[0]["activityName"])
	assert.Equal(t, "desc", bodies[1]["description"])
	privacy := bodies[2]["privacy"].(map[string]interface{})
	assert.Equal(t, "private", privacy["typeKey"])
}

func TestListGearMapsFields(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/gear-service/gear/filterGear", r.URL.Path)
		json.NewEncoder(w).Encode([]map[string]interface{}{
			{"uuid": "u-1", "displayName": "Pegasus 40", "gearTypeName": "Shoes"},
			{"gearPk": 99, "customMakeModel": "Old Bike", "gearTypeName": "Bike"},
		})
	})
	client.authenticated = true

	gear, err := client.ListGear(context.Background(), 50)
	require.NoError(t, err)
	require.Len(t, gear, 2)
	assert.Equal(t, "u-1", gear[0].ID)
	assert.Equal(t, "Pegasus 40", gear[0].Name)
	assert.Equal(t, "99", gear[1].ID)
	assert.Equal(t, "Old Bike", gear[1].Name)
}

func TestUnauthenticatedCallsFail(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})

	_, err := client.UploadFIT(context.Background(), "x.fit")
	assert.Error(t, err)
	_, err = client.ListActivities(context.Background(), time.Now(), time.Now())
	assert.Error(t, err)
}
