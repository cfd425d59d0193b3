/*
Copyright 2025 The Shipmate Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package gitrepo

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// apiServer serves a minimal slice of the GitHub REST API under the
// enterprise /api/v3 prefix the client is pointed at.
func apiServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("/api/v3/repos/acme/web/commits/abc123", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"sha":"abc123","parents":[{"sha":"parent1"}]}`)
	})
	mux.HandleFunc("/api/v3/repos/acme/web/compare/parent1...abc123", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"files":[{"filename":"main.go","patch":"@@ -1 +1 @@\n-old\n+new"}]}`)
	})
	mux.HandleFunc("/api/v3/repos/acme/web/commits", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `[{"sha":"abc123","commit":{"message":"fix handler","author":{"name":"Dana"}}},{"sha":"parent1","commit":{"message":"initial"}}]`)
	})
	mux.HandleFunc("/api/v3/repos/acme/web/contents/README.md", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"type":"file","encoding":"base64","name":"README.md","path":"README.md","content":"aGVsbG8="}`)
	})

	return httptest.NewServer(mux)
}

func newTestClient(t *testing.T, server *httptest.Server) *Client {
	t.Helper()
	client, err := NewClient(context.Background(), "", server.URL)
	require.NoError(t, err)
	return client
}

func TestSplitRepository(t *testing.T) {
	owner, name, err := splitRepository("acme/web")
	require.NoError(t, err)
	assert.Equal(t, "acme", owner)
	assert.Equal(t, "web", name)

	for _, bad := range []string{"", "acme", "acme/", "/web", "a/b/c"} {
		_, _, err := splitRepository(bad)
		assert.Error(t, err, "repository %q", bad)
	}
}

func TestDiff(t *testing.T) {
	server := apiServer(t)
	defer server.Close()

	diff, err := newTestClient(t, server).Diff(context.Background(), "acme/web", "abc123")
	require.NoError(t, err)
	assert.Contains(t, diff, "--- main.go")
	assert.Contains(t, diff, "+new")
}

func TestHistory(t *testing.T) {
	server := apiServer(t)
	defer server.Close()

	history, err := newTestClient(t, server).History(context.Background(), "acme/web", "main", 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "abc123", history[0].SHA)
	assert.Equal(t, "fix handler", history[0].Message)
	assert.Equal(t, "Dana", history[0].Author)
}

func TestFileContents(t *testing.T) {
	server := apiServer(t)
	defer server.Close()

	contents, err := newTestClient(t, server).FileContents(context.Background(), "acme/web", "README.md", "main")
	require.NoError(t, err)
	assert.Equal(t, "hello", contents)
}

func TestDiffBadRepository(t *testing.T) {
	server := apiServer(t)
	defer server.Close()

	_, err := newTestClient(t, server).Diff(context.Background(), "not-a-repo", "abc123")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "owner/name")
}
