package relay_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/andresuchdata/timesheet-relay/internal/config"
	"github.com/andresuchdata/timesheet-relay/internal/relay"
	"github.com/andresuchdata/timesheet-relay/internal/timesheet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var keyPattern = regexp.MustCompile(`^timesheets/data_\d{4}-\d{2}-\d{2}-\d{6}\.json$`)

type storedObject struct {
	bucket, key, contentType string
	data                     []byte
}

// fakeStorage records uploads and optionally fails or panics.
type fakeStorage struct {
	mu      sync.Mutex
	objects []storedObject

	err      error
	panicVal any
}

func (s *fakeStorage) UploadObject(_ context.Context, bucket, key string, data []byte, contentType string) error {
	if s.panicVal != nil {
		panic(s.panicVal)
	}
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects = append(s.objects, storedObject{bucket: bucket, key: key, contentType: contentType, data: append([]byte(nil), data...)})
	return nil
}

func (s *fakeStorage) uploads() []storedObject {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]storedObject(nil), s.objects...)
}

type fakeFetcher struct {
	calls int
	body  []byte
	err   error
}

func (f *fakeFetcher) Fetch(context.Context) ([]byte, error) {
	f.calls++
	return f.body, f.err
}

func validConfig(apiURL string) config.RelayConfig {
	return config.RelayConfig{
		APIURL: apiURL,
		APIKey: "secret",
		Bucket: "timesheet-bucket",
	}
}

func TestInvokeMissingConfig(t *testing.T) {
	t.Parallel()

	// Every non-empty subset of the three variables.
	for mask := 1; mask < 8; mask++ {
		cfg := validConfig("https://timesheets.example.com")
		var missing []string
		if mask&1 != 0 {
			cfg.APIURL = ""
			missing = append(missing, config.EnvAPIURL)
		}
		if mask&2 != 0 {
			cfg.APIKey = ""
			missing = append(missing, config.EnvAPIKey)
		}
		if mask&4 != 0 {
			cfg.Bucket = ""
			missing = append(missing, config.EnvBucketName)
		}

		t.Run(fmtMissing(missing), func(t *testing.T) {
			t.Parallel()

			fetcher := &fakeFetcher{body: []byte(`{}`)}
			store := &fakeStorage{}
			res := relay.New(cfg, store, relay.WithFetcher(fetcher)).Invoke(context.Background())

			assert.Equal(t, http.StatusInternalServerError, res.Status)
			var cfgErr *relay.ConfigError
			require.ErrorAs(t, res.Err, &cfgErr)
			assert.Contains(t, missing, cfgErr.Key)
			assert.Contains(t, res.Message, cfgErr.Key)
			assert.Zero(t, fetcher.calls, "No fetch should happen with a bad configuration")
			assert.Empty(t, store.uploads(), "No upload should happen with a bad configuration")
		})
	}
}

func fmtMissing(missing []string) string {
	name := "Missing"
	for _, m := range missing {
		name += " " + m
	}
	return name
}

func TestInvoke(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		apiStatus    int
		apiBody      string
		storageErr   error
		storagePanic any

		wantStatus   int
		wantErr      any
		wantUploaded bool
	}{
		"Success": {
			apiStatus:    http.StatusOK,
			apiBody:      `{"hours": 8}`,
			wantStatus:   http.StatusOK,
			wantUploaded: true,
		},
		"Empty body is stored as is": {
			apiStatus:    http.StatusOK,
			apiBody:      ``,
			wantStatus:   http.StatusOK,
			wantUploaded: true,
		},
		"Source not found": {
			apiStatus:  http.StatusNotFound,
			wantStatus: http.StatusInternalServerError,
			wantErr:    &relay.FetchError{},
		},
		"Source unauthorized": {
			apiStatus:  http.StatusUnauthorized,
			wantStatus: http.StatusInternalServerError,
			wantErr:    &relay.FetchError{},
		},
		"Source server error": {
			apiStatus:  http.StatusServiceUnavailable,
			wantStatus: http.StatusInternalServerError,
			wantErr:    &relay.FetchError{},
		},
		"Storage rejects write": {
			apiStatus:  http.StatusOK,
			apiBody:    `{"hours": 8}`,
			storageErr: errors.New("403 forbidden"),
			wantStatus: http.StatusInternalServerError,
			wantErr:    &relay.StorageError{},
		},
		"Storage panics": {
			apiStatus:    http.StatusOK,
			apiBody:      `{"hours": 8}`,
			storagePanic: "nil bucket handle",
			wantStatus:   http.StatusInternalServerError,
			wantErr:      &relay.UnexpectedError{},
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.apiStatus)
				_, _ = w.Write([]byte(tc.apiBody))
			}))
			defer srv.Close()

			store := &fakeStorage{err: tc.storageErr, panicVal: tc.storagePanic}
			res := relay.New(validConfig(srv.URL), store).Invoke(context.Background())

			assert.Equal(t, tc.wantStatus, res.Status)

			switch want := tc.wantErr.(type) {
			case nil:
				require.NoError(t, res.Err)
				assert.True(t, res.OK())
			case *relay.FetchError:
				require.ErrorAs(t, res.Err, &want)
				assert.Contains(t, res.Message, "Error fetching data from timesheet API")
				var statusErr *timesheet.StatusError
				require.ErrorAs(t, res.Err, &statusErr)
				assert.Equal(t, tc.apiStatus, statusErr.Code)
			case *relay.StorageError:
				require.ErrorAs(t, res.Err, &want)
				assert.Contains(t, res.Message, "Error uploading to object storage")
				assert.ErrorIs(t, res.Err, tc.storageErr)
			case *relay.UnexpectedError:
				require.ErrorAs(t, res.Err, &want)
				assert.Contains(t, res.Message, "An unexpected error occurred")
				assert.Contains(t, res.Message, "nil bucket handle")
			}

			uploads := store.uploads()
			if !tc.wantUploaded {
				assert.Empty(t, uploads, "Nothing should be stored")
				return
			}

			require.Len(t, uploads, 1)
			got := uploads[0]
			assert.Equal(t, tc.apiBody, string(got.data), "Payload should be stored byte for byte")
			assert.Equal(t, "application/json", got.contentType)
			assert.Equal(t, "timesheet-bucket", got.bucket)
			assert.Regexp(t, keyPattern, got.key)
			assert.Equal(t, got.key, res.Key)
			assert.Equal(t, "Successfully uploaded file "+got.key+" to bucket timesheet-bucket.", res.Message)
		})
	}
}

func TestInvokeFetchAndStorageMessagesDiffer(t *testing.T) {
	t.Parallel()

	cfg := validConfig("https://timesheets.example.com")

	fetchRes := relay.New(cfg, &fakeStorage{},
		relay.WithFetcher(&fakeFetcher{err: errors.New("dial tcp: connection refused")})).Invoke(context.Background())
	storeRes := relay.New(cfg, &fakeStorage{err: errors.New("bucket does not exist")},
		relay.WithFetcher(&fakeFetcher{body: []byte(`{}`)})).Invoke(context.Background())

	assert.Equal(t, http.StatusInternalServerError, fetchRes.Status)
	assert.Equal(t, http.StatusInternalServerError, storeRes.Status)
	assert.NotEqual(t, fetchRes.Message, storeRes.Message)
	assert.Contains(t, fetchRes.Message, "connection refused")
	assert.Contains(t, storeRes.Message, "bucket does not exist")
}

func TestInvokeFetchTimeout(t *testing.T) {
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

	cfg := validConfig(srv.URL)
	client := timesheet.NewClient(cfg.APIURL, cfg.APIKey, timesheet.WithTimeout(50*time.Millisecond))
	store := &fakeStorage{}

	res := relay.New(cfg, store, relay.WithFetcher(client)).Invoke(context.Background())

	assert.Equal(t, http.StatusInternalServerError, res.Status)
	var fetchErr *relay.FetchError
	require.ErrorAs(t, res.Err, &fetchErr)
	assert.True(t, fetchErr.Timeout(), "Fetch error should be reported as a timeout")
	assert.Contains(t, res.Message, "Error fetching data from timesheet API")
	assert.Contains(t, res.Message, "Timeout")
	assert.Empty(t, store.uploads())
}

func TestInvokeKeysFollowTheClock(t *testing.T) {
	t.Parallel()

	base := time.Date(2025, time.March, 4, 9, 15, 30, 0, time.Local)
	tests := map[string]struct {
		second time.Time

		wantSameKey bool
	}{
		"One second apart": {second: base.Add(time.Second)},
		"Same second":      {second: base.Add(400 * time.Millisecond), wantSameKey: true},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			times := []time.Time{base, tc.second}
			store := &fakeStorage{}
			r := relay.New(validConfig("https://timesheets.example.com"), store,
				relay.WithFetcher(&fakeFetcher{body: []byte(`{"hours": 8}`)}),
				relay.WithClock(func() time.Time {
					now := times[0]
					times = times[1:]
					return now
				}))

			first := r.Invoke(context.Background())
			second := r.Invoke(context.Background())
			require.True(t, first.OK())
			require.True(t, second.OK())

			assert.Equal(t, "timesheets/data_2025-03-04-091530.json", first.Key)
			if tc.wantSameKey {
				assert.Equal(t, first.Key, second.Key, "Keys collide within the same second")
			} else {
				assert.NotEqual(t, first.Key, second.Key)
			}
			assert.Len(t, store.uploads(), 2)
		})
	}
}

func TestObjectKey(t *testing.T) {
	t.Parallel()

	key := relay.ObjectKey(time.Date(2024, time.December, 31, 23, 59, 58, 999, time.UTC))
	assert.Equal(t, "timesheets/data_2024-12-31-235958.json", key)
	assert.Regexp(t, keyPattern, relay.ObjectKey(time.Now()))
}
