// Package s3publ uploads a finished run directory to S3 so results survive
// the benchmark host.
package s3publ

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/klauspost/compress/zstd"
	"golang.org/x/sync/errgroup"
)

const uploadConcurrency = 4

type Publisher struct {
	client *s3.Client
	bucket string
}

func New(ctx context.Context, region, bucket string) (*Publisher, error) {
	if bucket == "" {
		return nil, fmt.Errorf("s3 bucket is not configured")
	}
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}
	return &Publisher{client: s3.NewFromConfig(cfg), bucket: bucket}, nil
}

// PublishRunDir uploads every file under outDir to bucket/prefix, keeping
// the directory layout. Logs are zstd compressed in transit and stored with
// a .zst suffix.
func (p *Publisher) PublishRunDir(ctx context.Context, outDir, prefix string) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(uploadConcurrency)

	err := filepath.WalkDir(outDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(outDir, path)
		if err != nil {
			return err
		}
		g.Go(func() error {
			return p.uploadFile(ctx, path, prefix+"/"+filepath.ToSlash(rel))
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to walk run directory: %w", err)
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("failed to publish run directory: %w", err)
	}
	return nil
}

func (p *Publisher) uploadFile(ctx context.Context, path, key string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	contentType := "application/octet-stream"
	switch {
	case strings.HasSuffix(key, ".json"):
		contentType = "application/json"
	case strings.HasSuffix(key, ".log"):
		data, err = compress(data)
		if err != nil {
			return fmt.Errorf("failed to compress %s: %w", path, err)
		}
		key += ".zst"
		contentType = "application/zstd"
	}

	slog.Info("uploading to s3", "bucket", p.bucket, "key", key, "bytes", len(data))
	_, err = p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return nil
}

func compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := zstd.NewWriter(&buf)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
