package repositories

import (
	"context"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestR2ConfigEnabled(t *testing.T) {
	assert.False(t, R2Config{}.Enabled())
	assert.False(t, R2Config{BucketName: "inputs", AccessKeyID: "k"}.Enabled())
	assert.True(t, R2Config{BucketName: "inputs", AccessKeyID: "k", AccountID: "acct"}.Enabled())
	assert.True(t, R2Config{BucketName: "inputs", AccessKeyID: "k", Endpoint: "http://minio:9000"}.Enabled())
}

func TestPresignGet(t *testing.T) {
	mirror := NewR2Mirror(R2Config{
		AccountID:       "acct",
		AccessKeyID:     "key",
		SecretAccessKey: "secret",
		BucketName:      "inputs",
	})

	raw, err := mirror.PresignGet(context.Background(), "inputs/abc-dsm.tif", 15*time.Minute)
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "acct.r2.cloudflarestorage.com", u.Host)
	assert.True(t, strings.HasPrefix(u.Path, "/inputs/inputs/abc-dsm.tif"))
	assert.NotEmpty(t, u.Query().Get("X-Amz-Signature"))
	assert.Equal(t, "900", u.Query().Get("X-Amz-Expires"))
}
