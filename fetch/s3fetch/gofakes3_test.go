/* SPDX-License-Identifier: BSD-2-Clause */

package s3fetch

import (
	"bytes"
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/johannesboyne/gofakes3"
	"github.com/johannesboyne/gofakes3/backend/s3mem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ricardobranco777/rangeseek/fetch"
)

// setupFakeS3 serves an in-memory S3 API and returns a client for it.
func setupFakeS3(t *testing.T, objects map[string][]byte) *s3.Client {
	t.Helper()

	backend := s3mem.New()
	faker := gofakes3.New(backend,
		gofakes3.WithTimeSource(gofakes3.FixedTimeSource(time.Time{})),
	)

	srv := httptest.NewServer(faker.Server())
	t.Cleanup(srv.Close)

	require.NoError(t, backend.CreateBucket("mybucket"))
	for key, data := range objects {
		_, err := backend.PutObject("mybucket", key,
			map[string]string{"Content-Type": "application/octet-stream"},
			bytes.NewReader(data), int64(len(data)))
		require.NoError(t, err)
	}

	cfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithRegion("us-east-1"),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("test", "test", "")),
	)
	require.NoError(t, err)

	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(srv.URL)
		o.UsePathStyle = true
	})
}

func TestFakeS3_ProbeAndFetchRange(t *testing.T) {
	data := []byte("the quick brown fox jumps over the lazy dog")
	client := setupFakeS3(t, map[string][]byte{"dir/fox.txt": data})
	ctx := context.Background()

	f, err := New(client, "mybucket", "dir/fox.txt")
	require.NoError(t, err)
	assert.Equal(t, "s3://mybucket/dir/fox.txt", f.URL())

	info, err := f.Probe(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), info.Size)
	assert.NotEmpty(t, info.ETag)

	got, err := f.FetchRange(ctx, 4, 9)
	require.NoError(t, err)
	assert.Equal(t, []byte("quick"), got)

	got, err = f.FetchRange(ctx, 40, int64(len(data)))
	require.NoError(t, err)
	assert.Equal(t, []byte("dog"), got)
}

func TestFakeS3_NotFound(t *testing.T) {
	client := setupFakeS3(t, nil)

	f, err := New(client, "mybucket", "missing")
	require.NoError(t, err)

	_, err = f.Probe(context.Background())
	assert.ErrorIs(t, err, fetch.ErrNotFound)
}
