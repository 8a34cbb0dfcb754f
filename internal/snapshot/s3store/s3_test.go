package s3store

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leadetl/internal/snapshot"
	"leadetl/internal/table"
)

type fakeClient struct {
	objects map[string][]byte
	types   map[string]string
	getErr  error
}

func newFakeClient() *fakeClient {
	return &fakeClient{objects: map[string][]byte{}, types: map[string]string{}}
}

func (f *fakeClient) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	b, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	k := aws.ToString(in.Bucket) + "/" + aws.ToString(in.Key)
	f.objects[k] = b
	f.types[k] = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeClient) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	b, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{Message: aws.String("missing")}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(b))}, nil
}

func TestParseDSN(t *testing.T) {
	t.Parallel()
	loc, err := ParseDSN("s3://leads-bucket/etl/snapshots/?region=us-east-2")
	require.NoError(t, err)
	assert.Equal(t, Location{Bucket: "leads-bucket", Prefix: "etl/snapshots", Region: "us-east-2"}, loc)

	loc, err = ParseDSN("s3://bare")
	require.NoError(t, err)
	assert.Equal(t, "", loc.Prefix)

	for _, bad := range []string{"", "/tmp/x", "https://bucket/x", "s3:///x"} {
		_, err := ParseDSN(bad)
		assert.Error(t, err, bad)
	}
}

func TestStore_RoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fc := newFakeClient()
	s := New(fc, Location{Bucket: "b", Prefix: "run1"})

	in := table.New("x", "UUID", "Status")
	in.Append("u1", "Aged - Uncontacted")
	require.NoError(t, s.Save(ctx, "add_status", in))

	require.Contains(t, fc.objects, "b/run1/add_status.csv")
	assert.Equal(t, "text/csv", fc.types["b/run1/add_status.csv"])

	got, err := s.Load(ctx, "add_status")
	require.NoError(t, err)
	assert.Equal(t, in.Columns, got.Columns)
	assert.Equal(t, []string{"u1", "Aged - Uncontacted"}, got.Rows[0].V)
}

func TestStore_LoadErrors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fc := newFakeClient()
	s := New(fc, Location{Bucket: "b"})

	_, err := s.Load(ctx, "missing")
	assert.ErrorIs(t, err, snapshot.ErrNotFound)

	fc.getErr = errors.New("access denied")
	_, err = s.Load(ctx, "missing")
	require.Error(t, err)
	assert.NotErrorIs(t, err, snapshot.ErrNotFound)
}
