package builder

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPackagePollsToSuccess(t *testing.T) {
	var polls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/builds":
			json.NewEncoder(w).Encode(map[string]string{"build_id": "b1"})
		case r.Method == http.MethodGet && r.URL.Path == "/builds/b1":
			n := atomic.AddInt32(&polls, 1)
			status := "running"
			if n >= 2 {
				status = "success"
			}
			json.NewEncoder(w).Encode(map[string]string{"build_id": "b1", "status": status})
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok")
	c.PollInterval = 5 * time.Millisecond
	c.PollDeadline = time.Second

	result, err := c.BuildPackage(context.Background(), BuildPackageInput{Package: "bash", TargetBranch: "rhel-9.4.0"})
	require.NoError(t, err)
	assert.Equal(t, BuildSuccess, result.Status)
	assert.GreaterOrEqual(t, polls, int32(2))
}

func TestBuildPackageDeadlineExceeded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost:
			json.NewEncoder(w).Encode(map[string]string{"build_id": "b2"})
		default:
			json.NewEncoder(w).Encode(map[string]string{"build_id": "b2", "status": "running"})
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok")
	c.PollInterval = 2 * time.Millisecond
	c.PollDeadline = 10 * time.Millisecond

	result, err := c.BuildPackage(context.Background(), BuildPackageInput{Package: "bash"})
	require.NoError(t, err)
	assert.Equal(t, BuildFailed, result.Status)
	assert.Contains(t, result.Error, "deadline")
}
