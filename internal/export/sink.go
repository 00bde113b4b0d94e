package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/dusk-indust/deepresearch/internal/checkpoint"
	"github.com/dusk-indust/deepresearch/internal/config"
)

// Sink stores published artifacts. Put returns where the artifact landed.
type Sink interface {
	Put(ctx context.Context, sessionID, name string, content []byte) (string, error)
}

// Compile-time interface checks.
var (
	_ Sink = (*FileSink)(nil)
	_ Sink = (*S3Sink)(nil)
)

// Artifact names written by Publish.
const (
	ReportFile  = "report.md"
	SessionFile = "session.json"
	DiagramFile = "stages.mmd"
)

// NewSink builds the sink selected by cfg. The "none" sink is nil.
func NewSink(cfg config.ArtifactsConfig) (Sink, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Sink)) {
	case "", "none":
		return nil, nil
	case "file":
		s, err := NewFileSink(cfg.Dir)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "s3":
		s, err := NewS3Sink(S3Config{
			Endpoint:  cfg.Endpoint,
			Region:    cfg.Region,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
			Bucket:    cfg.Bucket,
			UseSSL:    cfg.UseSSL,
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("export: unknown sink %q", cfg.Sink)
	}
}

// Publish writes the report, the session document and the stage diagram of
// a completed session to sink and returns their locations.
func Publish(ctx context.Context, sink Sink, cp *checkpoint.Checkpoint) ([]string, error) {
	report, err := Markdown(cp)
	if err != nil {
		return nil, err
	}
	var doc bytes.Buffer
	if err := WriteJSON(&doc, ExportSession(cp, time.Now())); err != nil {
		return nil, err
	}

	artifacts := []struct {
		name string
		body []byte
	}{
		{ReportFile, []byte(report)},
		{SessionFile, doc.Bytes()},
		{DiagramFile, []byte(GenerateMermaid(cp))},
	}

	locations := make([]string, 0, len(artifacts))
	for _, a := range artifacts {
		loc, err := sink.Put(ctx, cp.SessionID, a.name, a.body)
		if err != nil {
			return locations, fmt.Errorf("export: publish %s: %w", a.name, err)
		}
		locations = append(locations, loc)
	}
	return locations, nil
}

// FileSink writes artifacts under dir/<session>/<name>.
type FileSink struct {
	dir string
}

// NewFileSink creates dir if needed.
func NewFileSink(dir string) (*FileSink, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("export: file sink dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("export: mkdir %s: %w", dir, err)
	}
	return &FileSink{dir: dir}, nil
}

// Put implements Sink.
func (f *FileSink) Put(_ context.Context, sessionID, name string, content []byte) (string, error) {
	key, err := objectKey(sessionID, name)
	if err != nil {
		return "", err
	}
	path := filepath.Join(f.dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("export: mkdir %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return "", fmt.Errorf("export: write %s: %w", path, err)
	}
	return path, nil
}

// S3Config configures an S3Sink.
type S3Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// S3Sink stores artifacts in an S3-compatible bucket, creating the bucket
// on first use.
type S3Sink struct {
	client   *minio.Client
	bucket   string
	region   string
	initOnce sync.Once
	initErr  error
}

// NewS3Sink validates cfg and creates the client. No request is made until
// the first Put.
func NewS3Sink(cfg S3Config) (*S3Sink, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, errors.New("export: s3 endpoint is required")
	}
	access, secret := strings.TrimSpace(cfg.AccessKey), strings.TrimSpace(cfg.SecretKey)
	if access == "" || secret == "" {
		return nil, errors.New("export: s3 access key and secret key are required")
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, errors.New("export: s3 bucket is required")
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(access, secret, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("export: init s3 client: %w", err)
	}
	return &S3Sink{client: client, bucket: bucket, region: region}, nil
}

func (s *S3Sink) ensureBucket(ctx context.Context) error {
	s.initOnce.Do(func() {
		exists, err := s.client.BucketExists(ctx, s.bucket)
		if err != nil {
			s.initErr = err
			return
		}
		if exists {
			return
		}
		s.initErr = s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region})
	})
	return s.initErr
}

// Put implements Sink. The location is an s3:// URI.
func (s *S3Sink) Put(ctx context.Context, sessionID, name string, content []byte) (string, error) {
	key, err := objectKey(sessionID, name)
	if err != nil {
		return "", err
	}
	if err := s.ensureBucket(ctx); err != nil {
		return "", fmt.Errorf("export: ensure bucket: %w", err)
	}
	_, err = s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(content), int64(len(content)), minio.PutObjectOptions{
		ContentType: contentType(name),
	})
	if err != nil {
		return "", fmt.Errorf("export: put %s: %w", key, err)
	}
	return "s3://" + s.bucket + "/" + key, nil
}

func objectKey(sessionID, name string) (string, error) {
	sessionID = strings.TrimSpace(sessionID)
	name = strings.TrimLeft(strings.TrimSpace(name), "/")
	if sessionID == "" {
		return "", errors.New("export: session id is required")
	}
	if name == "" {
		return "", errors.New("export: artifact name is required")
	}
	if strings.Contains(sessionID, "/") || strings.Contains(sessionID, "..") || strings.Contains(name, "..") {
		return "", fmt.Errorf("export: invalid artifact path %s/%s", sessionID, name)
	}
	return sessionID + "/" + name, nil
}

func contentType(name string) string {
	switch filepath.Ext(name) {
	case ".md":
		return "text/markdown; charset=utf-8"
	case ".json":
		return "application/json"
	default:
		return "text/plain; charset=utf-8"
	}
}
