// Package s3store stores snapshots as CSV objects in an S3 bucket.
package s3store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"leadetl/internal/snapshot"
	"leadetl/internal/table"
)

func init() {
	snapshot.Register("s3", func(ctx context.Context, cfg snapshot.Config) (snapshot.Store, error) {
		return Open(ctx, cfg.DSN)
	})
}

// Client is the subset of *s3.Client the store uses.
type Client interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Store keeps "<prefix>/<name>.csv" objects in Bucket.
type Store struct {
	client Client
	Bucket string
	Prefix string
}

// Location is a parsed "s3://bucket/prefix?region=xx" DSN.
type Location struct {
	Bucket string
	Prefix string
	Region string
}

// ParseDSN parses an s3 URL. The prefix may be empty; region is optional.
func ParseDSN(dsn string) (Location, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return Location{}, fmt.Errorf("snapshot: s3: %w", err)
	}
	if u.Scheme != "s3" || u.Host == "" {
		return Location{}, fmt.Errorf("snapshot: s3: dsn must look like s3://bucket/prefix, got %q", dsn)
	}
	return Location{
		Bucket: u.Host,
		Prefix: strings.Trim(u.Path, "/"),
		Region: u.Query().Get("region"),
	}, nil
}

// Open loads the default AWS configuration (environment, shared files,
// instance role) and returns a store for the DSN location.
func Open(ctx context.Context, dsn string) (*Store, error) {
	loc, err := ParseDSN(dsn)
	if err != nil {
		return nil, err
	}
	var opts []func(*awsconfig.LoadOptions) error
	if loc.Region != "" {
		opts = append(opts, awsconfig.WithRegion(loc.Region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("snapshot: s3: load aws config: %w", err)
	}
	return New(s3.NewFromConfig(cfg), loc), nil
}

// New returns a store using client.
func New(client Client, loc Location) *Store {
	return &Store{client: client, Bucket: loc.Bucket, Prefix: loc.Prefix}
}

func (s *Store) key(name string) string {
	return path.Join(s.Prefix, name+".csv")
}

func (s *Store) Save(ctx context.Context, name string, t *table.Table) error {
	if err := snapshot.ValidName(name); err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := t.WriteCSV(&buf); err != nil {
		return fmt.Errorf("snapshot: s3: encode %s: %w", name, err)
	}
	key := s.key(name)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("text/csv"),
	})
	if err != nil {
		return fmt.Errorf("snapshot: s3: put %s/%s: %w", s.Bucket, key, err)
	}
	return nil
}

func (s *Store) Load(ctx context.Context, name string) (*table.Table, error) {
	if err := snapshot.ValidName(name); err != nil {
		return nil, err
	}
	key := s.key(name)
	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(key),
	})
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return nil, &snapshot.NotFoundError{Kind: "s3", Name: name}
	}
	if err != nil {
		return nil, fmt.Errorf("snapshot: s3: get %s/%s: %w", s.Bucket, key, err)
	}
	defer resp.Body.Close()

	t, err := table.ReadCSV(name, resp.Body)
	if err != nil {
		return nil, fmt.Errorf("snapshot: s3: decode %s/%s: %w", s.Bucket, key, err)
	}
	return t, nil
}

func (s *Store) Close() error { return nil }
