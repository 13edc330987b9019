package archive

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericksa/lexiguard/internal/config"
)

func TestObjectKey(t *testing.T) {
	assert.Equal(t, "contracts/abc.pdf", ObjectKey("abc", "MSA.PDF"))
	assert.Equal(t, "contracts/abc.txt", ObjectKey("abc", "nda.final.txt"))
	assert.Equal(t, "contracts/abc", ObjectKey("abc", "README"))
	assert.Equal(t, "contracts/abc", ObjectKey("abc", "v1.2/contract"))
}

func TestNop(t *testing.T) {
	key, err := Nop{}.Put(context.Background(), "abc", "a.docx", []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, "contracts/abc.docx", key)
}

// fakeS3 accepts bucket probes and object uploads.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string]string
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodHead:
		w.WriteHeader(http.StatusOK)
	case http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		f.objects[r.URL.Path] = string(body)
		f.mu.Unlock()
		w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
		w.WriteHeader(http.StatusOK)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func TestMinIOArchive_Put(t *testing.T) {
	s3 := &fakeS3{objects: make(map[string]string)}
	srv := httptest.NewServer(s3)
	defer srv.Close()

	a, err := NewMinIOArchive(config.MinIOConfig{
		Endpoint:  strings.TrimPrefix(srv.URL, "http://"),
		AccessKey: "minioadmin",
		SecretKey: "minioadmin",
		Bucket:    "lexiguard-contracts",
	})
	require.NoError(t, err)
	require.NoError(t, a.EnsureBucket(context.Background()))

	key, err := a.Put(context.Background(), "abc123", "nda.txt", []byte("The Provider shall indemnify the Client."))
	require.NoError(t, err)
	assert.Equal(t, "contracts/abc123.txt", key)

	s3.mu.Lock()
	defer s3.mu.Unlock()
	assert.Contains(t, s3.objects["/lexiguard-contracts/contracts/abc123.txt"], "The Provider shall indemnify the Client.")
}
