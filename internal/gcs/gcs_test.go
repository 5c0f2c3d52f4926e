package gcs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsURI(t *testing.T) {
	assert.True(t, IsURI("gs://bucket/object.csv"))
	assert.False(t, IsURI("/tmp/batch.csv"))
	assert.False(t, IsURI("https://example.com/batch.csv"))
}

func TestSplitURI(t *testing.T) {
	tests := []struct {
		uri        string
		wantBucket string
		wantObject string
		wantErr    bool
	}{
		{uri: "gs://bucket/object.csv", wantBucket: "bucket", wantObject: "object.csv"},
		{uri: "gs://bucket/nested/path/object.csv", wantBucket: "bucket", wantObject: "nested/path/object.csv"},
		{uri: "gs://bucket", wantErr: true},
		{uri: "gs://bucket/", wantErr: true},
		{uri: "gs:///object.csv", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			bucket, object, err := SplitURI(tt.uri)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantBucket, bucket)
			assert.Equal(t, tt.wantObject, object)
		})
	}
}
