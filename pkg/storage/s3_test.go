package storage

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPresignExpire(t *testing.T) {
	assert.Equal(t, 15*time.Minute, PresignExpire(0))
	assert.Equal(t, 15*time.Minute, PresignExpire(-3))
	assert.Equal(t, 60*time.Minute, PresignExpire(60))
}

func TestNewS3_RequiresBucket(t *testing.T) {
	_, err := NewS3(context.Background(), S3Config{Region: "eu-central-1"}, nil)
	assert.Error(t, err)
}

func TestPresignDownload_IsOffline(t *testing.T) {
	s, err := NewS3(context.Background(), S3Config{
		Region:               "eu-central-1",
		AccessKeyID:          "AKIDEXAMPLE",
		SecretAccessKey:      "secret",
		Bucket:               "exports",
		PresignExpireMinutes: 5,
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "exports", s.Bucket())

	url, err := s.PresignDownload(context.Background(), "exports/districts/audit.xlsx")
	require.NoError(t, err)
	assert.True(t, strings.Contains(url, "exports/districts/audit.xlsx"), url)
	assert.Contains(t, url, "X-Amz-Expires=300")
}
