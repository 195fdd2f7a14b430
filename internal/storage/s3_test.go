package storage

import (
	"context"
	"fmt"
	"net/url"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func offlineStore(t *testing.T, expiry time.Duration) *SourceStore {
	t.Helper()
	s, err := NewSourceStore(context.Background(), Config{
		Endpoint:        "http://localhost:9000",
		Region:          "us-east-1",
		AccessKeyID:     "key",
		SecretAccessKey: "secret",
		Bucket:          "coverdraft-documents",
		UsePathStyle:    true,
		URLExpiry:       expiry,
	})
	require.NoError(t, err)
	return s
}

func TestNewSourceStore_RequiresBucket(t *testing.T) {
	_, err := NewSourceStore(context.Background(), Config{Region: "us-east-1"})
	require.Error(t, err)
}

func TestNewSourceStore_DefaultExpiry(t *testing.T) {
	assert.Equal(t, defaultURLExpiry, offlineStore(t, 0).urlExpiry)
}

func TestGenerateDownloadURL_Offline(t *testing.T) {
	s := offlineStore(t, 5*time.Minute)

	raw, err := s.GenerateDownloadURL(context.Background(), "documents/abc/2024-02-01_CV_Acme Corp.pdf")
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "localhost:9000", u.Host)
	assert.Equal(t, "/coverdraft-documents/documents/abc/2024-02-01_CV_Acme Corp.pdf", u.Path)

	q := u.Query()
	assert.NotEmpty(t, q.Get("X-Amz-Signature"))
	assert.Equal(t, "300", q.Get("X-Amz-Expires"))
	assert.Equal(t, `attachment; filename="2024-02-01_CV_Acme Corp.pdf"`, q.Get("response-content-disposition"))
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, isNotFound(&types.NotFound{}))
	assert.True(t, isNotFound(&types.NoSuchKey{}))
	assert.True(t, isNotFound(fmt.Errorf("head: %w", &smithy.GenericAPIError{Code: "NoSuchBucket"})))
	assert.False(t, isNotFound(&smithy.GenericAPIError{Code: "AccessDenied"}))
	assert.False(t, isNotFound(context.DeadlineExceeded))
}

func TestAttachment(t *testing.T) {
	assert.Equal(t, `attachment; filename=cv.txt`, attachment("cv.txt"))
}
