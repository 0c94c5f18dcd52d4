package requests

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/brettbedarf/webvfs/adapters"
	"github.com/brettbedarf/webvfs/config"
	"github.com/brettbedarf/webvfs/filesystem"
	"github.com/brettbedarf/webvfs/internal/mocks"
	"github.com/brettbedarf/webvfs/persist"
	"github.com/brettbedarf/webvfs/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRegistry() *adapters.Registry {
	r := adapters.NewRegistry()
	adapters.RegisterBuiltins(r)
	return r
}

func newCoordinator(t *testing.T) *persist.Coordinator {
	t.Helper()
	cfg := config.NewDefaultConfig()
	cfg.Seed = false
	c := persist.New(store.NewMemoryStore(), cfg)
	require.NoError(t, c.Boot(context.Background()))
	return c
}

func TestGetNodeType(t *testing.T) {
	t.Parallel()

	typ, err := GetNodeType([]byte(`{"type":"dir","path":"/a"}`))
	require.NoError(t, err)
	assert.Equal(t, DirNodeType, typ)

	_, err = GetNodeType([]byte(`[`))
	assert.Error(t, err)
}

func TestParse(t *testing.T) {
	t.Parallel()

	data := []byte(`[
		{"type":"dir","path":"/docs/","id":"docs"},
		{"type":"file","path":"docs//a.txt","sources":[
			{"type":"inline","content":"low","priority":9},
			{"type":"inline","content":"high","priority":1}
		]},
		{"type":"file","path":"/nosrc","sources":[]},
		{"type":"file","path":"/","sources":[{"type":"inline","content":"x"}]},
		{"type":"link","path":"/l"},
		{"type":"file","path":"/bad","sources":[{"type":"ftp"}]},
		{"type":"dir"}
	]`)

	reqs, err := Parse(data, newRegistry())
	require.Error(t, err)
	for _, want := range []string{"node 2:", "node 3:", "node 4:", "node 5:", "node 6:"} {
		assert.ErrorContains(t, err, want)
	}

	require.Len(t, reqs.Dirs, 1)
	assert.Equal(t, "/docs", reqs.Dirs[0].Path)
	assert.Equal(t, "docs", reqs.Dirs[0].ID)

	require.Len(t, reqs.Files, 1)
	file := reqs.Files[0]
	assert.Equal(t, "/docs/a.txt", file.Path)
	assert.NotEmpty(t, file.ID, "id defaults to a generated one")
	require.Len(t, file.Sources, 2)
	assert.Equal(t, 1, file.Sources[0].Priority)

	data, err2 := file.Sources[0].Fetch(context.Background())
	require.NoError(t, err2)
	assert.Equal(t, "high", string(data))
}

func TestParse_NotAnArray(t *testing.T) {
	t.Parallel()

	_, err := Parse([]byte(`{"type":"dir"}`), newRegistry())
	assert.Error(t, err)
}

func TestApply(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Path == "/down" {
			http.Error(w, "down", http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, "from the web")
	}))
	t.Cleanup(srv.Close)

	data := []byte(`[
		{"type":"dir","path":"/x/y/z"},
		{"type":"dir","path":"/x"},
		{"type":"file","path":"/web/page.html","sources":[{"type":"http","url":"` + srv.URL + `/page"}]},
		{"type":"file","path":"/fallback.txt","sources":[
			{"type":"http","url":"` + srv.URL + `/down"},
			{"type":"inline","content":"offline copy"}
		]},
		{"type":"file","path":"/broken.txt","sources":[{"type":"http","url":"` + srv.URL + `/down"}]}
	]`)
	reqs, err := Parse(data, newRegistry())
	require.NoError(t, err)

	ctx := context.Background()
	c := newCoordinator(t)
	report, err := Apply(ctx, c, reqs)
	require.Error(t, err)
	assert.ErrorContains(t, err, "no source for /broken.txt")
	assert.Equal(t, Report{Dirs: 2, Files: 2}, report)

	st, err := c.Stat(ctx, "/x/y/z")
	require.NoError(t, err)
	assert.True(t, st.IsDir)

	got, err := c.ReadFile(ctx, "/web/page.html")
	require.NoError(t, err)
	assert.Equal(t, "from the web", string(got))

	got, err = c.ReadFile(ctx, "/fallback.txt")
	require.NoError(t, err)
	assert.Equal(t, "offline copy", string(got))

	_, err = c.Stat(ctx, "/broken.txt")
	assert.ErrorIs(t, err, filesystem.NotFound)
}

func TestApply_ConflictsAndWarnings(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	reqs, err := Parse([]byte(`[
		{"type":"dir","path":"/f/sub"},
		{"type":"file","path":"/new","sources":[{"type":"inline","content":"n"}]}
	]`), newRegistry())
	require.NoError(t, err)

	warning := &persist.PersistError{Op: "mkdir", Path: "/f", Err: errors.New("disk full")}
	op := &mocks.MockOperator{}
	op.On("Mkdir", ctx, "/f").Return(warning).Once()
	op.On("Mkdir", ctx, "/f/sub").Return(&filesystem.Error{Op: "mkdir", Path: "/f/sub", Kind: filesystem.AlreadyExists}).Once()
	op.On("WriteFile", ctx, "/new", []byte("n")).Return(warning).Once()

	report, err := Apply(ctx, op, reqs)
	assert.ErrorIs(t, err, filesystem.AlreadyExists)
	assert.Equal(t, Report{Files: 1, Warnings: 2}, report)
	op.AssertExpectations(t)
}
