package lookaside

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jotnar/internal/krb"
)

type alwaysValidRunner struct{}

func (alwaysValidRunner) Run(ctx context.Context, name string, args ...string) (string, error) {
	return "Valid starting 01/01/24 00:00:00 expires 01/01/68 00:00:00\n", nil
}

func TestDownloadSourcesWritesFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/bash/bash-5.3.tar.gz", r.URL.Path)
		w.Write([]byte("tarball-bytes"))
	}))
	defer srv.Close()

	broker := &krb.Broker{Principal: "", Runner: alwaysValidRunner{}}
	c := NewClient(srv.URL, broker)

	destDir := t.TempDir()
	path, err := c.DownloadSources(context.Background(), "bash", "bash-5.3.tar.gz", destDir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(destDir, "bash-5.3.tar.gz"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "tarball-bytes", string(data))
}
