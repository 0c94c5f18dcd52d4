package adapters

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockHTTPClient struct {
	mock.Mock
}

func (m *MockHTTPClient) Do(req *http.Request) (*http.Response, error) {
	args := m.Called(req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*http.Response), args.Error(1)
}

type staticSource string

func (s staticSource) Fetch(context.Context) ([]byte, error) { return []byte(s), nil }

func staticFactory(content string) Factory {
	return func([]byte) (Source, error) { return staticSource(content), nil }
}

func TestRegister_FirstWins(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	r.Register("test", staticFactory("first"))
	r.Register("test", staticFactory("second"))

	src, err := r.NewSource([]byte(`{"type":"test"}`))
	require.NoError(t, err)
	data, err := src.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "first", string(data))
	assert.Equal(t, []string{"test"}, r.Types())
}

func TestRegister_Concurrent(t *testing.T) {
	t.Parallel()

	var wg sync.WaitGroup
	r := NewRegistry()
	for i := range 100 {
		wg.Go(func() {
			key := fmt.Sprintf("test%d", i)
			r.Register(key, staticFactory(key))
			src, err := r.NewSource([]byte(`{"type":"` + key + `"}`))
			assert.NoError(t, err)
			assert.NotNil(t, src)
		})
	}
	wg.Wait()
	assert.Len(t, r.Types(), 100)
}

func TestNewSource_Errors(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	r.Register("bad", func([]byte) (Source, error) { return nil, errors.New("bad config") })

	_, err := r.NewSource([]byte(`{"foo":"bar"}`))
	assert.ErrorIs(t, err, ErrNoType)

	_, err = r.NewSource([]byte(`{"type":"nope"}`))
	assert.ErrorContains(t, err, `no factory for "nope"`)

	_, err = r.NewSource([]byte(`{"type":"bad"}`))
	assert.EqualError(t, err, "bad config")

	_, err = r.NewSource([]byte(`not json`))
	assert.Error(t, err)
}

func TestRegisterBuiltins(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	RegisterBuiltins(r)
	assert.ElementsMatch(t, []string{HTTPAdapterType, InlineAdapterType}, r.Types())

	only := NewRegistry()
	RegisterBuiltins(only, InlineAdapterType)
	assert.Equal(t, []string{InlineAdapterType}, only.Types())
}

func TestInlineSource(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	RegisterInline(r)
	ctx := context.Background()

	src, err := r.NewSource([]byte(`{"type":"inline","content":"hello"}`))
	require.NoError(t, err)
	data, err := src.Fetch(ctx)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	src, err = r.NewSource([]byte(`{"type":"inline","content":"AAEC","encoding":"base64"}`))
	require.NoError(t, err)
	data, err = src.Fetch(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 1, 2}, data)

	_, err = r.NewSource([]byte(`{"type":"inline","content":"x","encoding":"rot13"}`))
	assert.Error(t, err)
}

func createCfg(url string) []byte {
	data, _ := json.Marshal(struct {
		Type string `json:"type"`
		HTTPSource
	}{Type: HTTPAdapterType, HTTPSource: HTTPSource{URL: url}})
	return data
}

func TestHTTPSource_URLValidation(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	RegisterHTTP(r, &MockHTTPClient{})

	tests := []struct {
		url     string
		wantErr bool
		desc    string
	}{
		// Valid cases
		{"http://test.com", false, "basic HTTP URL"},
		{"https://test.com", false, "basic HTTPS URL"},
		{"  http://test.com   ", false, "URL with whitespace"},
		{"http://test.com/path?arg=1&arg2=2", false, "URL with path and query"},
		{"http://test.com:8080", false, "URL with port"},
		{"http://localhost:8080/test", false, "localhost with port"},
		{"http://123.123.123.123/test", false, "IP address"},
		{"http://mylocalnet/test", false, "single label hostname"},

		// Invalid cases
		{"", true, "empty string"},
		{" ", true, "whitespace only"},
		{"_", true, "invalid character"},
		{"ftp://test.com", true, "different scheme rejected"},
		{"test.com", true, "missing scheme"},
		{"http://user@test.com/path", true, "URL with user info"},
	}
	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			src, err := r.NewSource(createCfg(tt.url))
			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, src)
				return
			}
			require.NoError(t, err)
			require.IsType(t, &HTTPSource{}, src)
			assert.Equal(t, HTTPMethodGet, src.(*HTTPSource).Method)
		})
	}
}

func TestHTTPSource_Fetch(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		switch req.URL.Path {
		case "/ok":
			assert.Equal(t, "secret", req.Header.Get("X-Token"))
			fmt.Fprint(w, "remote content")
		case "/post":
			assert.Equal(t, http.MethodPost, req.Method)
			fmt.Fprint(w, "posted")
		default:
			http.NotFound(w, req)
		}
	}))
	t.Cleanup(srv.Close)

	r := NewRegistry()
	RegisterHTTP(r, srv.Client())
	ctx := context.Background()

	src, err := r.NewSource([]byte(`{"type":"http","url":"` + srv.URL + `/ok","headers":{"X-Token":"secret"}}`))
	require.NoError(t, err)
	data, err := src.Fetch(ctx)
	require.NoError(t, err)
	assert.Equal(t, "remote content", string(data))

	src, err = r.NewSource([]byte(`{"type":"http","url":"` + srv.URL + `/post","method":"post"}`))
	require.NoError(t, err)
	data, err = src.Fetch(ctx)
	require.NoError(t, err)
	assert.Equal(t, "posted", string(data))

	src, err = r.NewSource([]byte(`{"type":"http","url":"` + srv.URL + `/missing"}`))
	require.NoError(t, err)
	_, err = src.Fetch(ctx)
	assert.ErrorContains(t, err, "404")

	_, err = r.NewSource([]byte(`{"type":"http","url":"` + srv.URL + `","method":"DELETE"}`))
	assert.Error(t, err)
}

func TestHTTPSource_FetchTransportError(t *testing.T) {
	t.Parallel()

	client := &MockHTTPClient{}
	client.On("Do", mock.Anything).Return(nil, errors.New("connection refused"))

	r := NewRegistry()
	RegisterHTTP(r, client)
	src, err := r.NewSource(createCfg("http://test.com/x"))
	require.NoError(t, err)

	_, err = src.Fetch(context.Background())
	assert.EqualError(t, err, "connection refused")
	client.AssertExpectations(t)
}

func TestHTTPSource_FetchTooLarge(t *testing.T) {
	t.Parallel()

	client := &MockHTTPClient{}
	client.On("Do", mock.Anything).Return(&http.Response{
		StatusCode: http.StatusOK,
		Status:     "200 OK",
		Body:       httpBody(strings.Repeat("x", MaxFetchSize+1)),
	}, nil)

	r := NewRegistry()
	RegisterHTTP(r, client)
	src, err := r.NewSource(createCfg("http://test.com/big"))
	require.NoError(t, err)

	_, err = src.Fetch(context.Background())
	assert.ErrorIs(t, err, ErrTooLarge)
}

func httpBody(s string) io.ReadCloser {
	return io.NopCloser(strings.NewReader(s))
}
