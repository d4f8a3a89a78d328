package timesheet_test

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/andresuchdata/timesheet-relay/internal/timesheet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetch(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		status int
		body   string

		wantBody   string
		wantStatus int
	}{
		"OK returns raw body": {
			status:   http.StatusOK,
			body:     `{"hours": 8}`,
			wantBody: `{"hours": 8}`,
		},
		"Non JSON body is not validated": {
			status:   http.StatusOK,
			body:     `not json at all`,
			wantBody: `not json at all`,
		},
		"Accepted counts as success": {
			status:   http.StatusAccepted,
			body:     `[]`,
			wantBody: `[]`,
		},
		"Not found": {
			status:     http.StatusNotFound,
			body:       `{"error": "nope"}`,
			wantStatus: http.StatusNotFound,
		},
		"Server error": {
			status:     http.StatusBadGateway,
			wantStatus: http.StatusBadGateway,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			reqs := make(chan *http.Request, 1)
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				reqs <- r.Clone(context.Background())
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			client := timesheet.NewClient(srv.URL, "secret-token")
			body, err := client.Fetch(context.Background())

			require.Len(t, reqs, 1, "API should have been called once")
			got := <-reqs
			assert.Equal(t, http.MethodGet, got.Method)
			assert.Equal(t, "Bearer secret-token", got.Header.Get("Authorization"))
			assert.Equal(t, "application/json", got.Header.Get("Content-Type"))
			assert.Equal(t, "application/json", got.Header.Get("Accept"))

			if tc.wantStatus != 0 {
				var statusErr *timesheet.StatusError
				require.ErrorAs(t, err, &statusErr)
				assert.Equal(t, tc.wantStatus, statusErr.Code)
				assert.Contains(t, err.Error(), srv.URL)
				assert.Nil(t, body)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantBody, string(body))
		})
	}
}

func TestStatusErrorMessage(t *testing.T) {
	t.Parallel()

	err := &timesheet.StatusError{Code: http.StatusNotFound, URL: "https://api.example.com/ts"}
	assert.Equal(t, "404 Client Error: Not Found for url: https://api.example.com/ts", err.Error())

	err = &timesheet.StatusError{Code: http.StatusInternalServerError, URL: "https://api.example.com/ts"}
	assert.Equal(t, "500 Server Error: Internal Server Error for url: https://api.example.com/ts", err.Error())
}

func TestFetchTimeout(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	client := timesheet.NewClient(srv.URL, "secret-token", timesheet.WithTimeout(50*time.Millisecond))
	_, err := client.Fetch(context.Background())
	require.Error(t, err)

	var netErr net.Error
	require.True(t, errors.As(err, &netErr), "timeout should surface as a net.Error")
	assert.True(t, netErr.Timeout())
}

func TestFetchConnectionRefused(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := timesheet.NewClient(url, "secret-token").Fetch(context.Background())
	require.Error(t, err)
}
