package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Store holds the ebook asset served to leads after signup.
type Store struct {
	client     *minio.Client
	bucketName string
	region     string
	ebookKey   string
}

// New buat koneksi MinIO
func New(ctx context.Context, endpoint, region, bucket, accessKey, secretKey, ebookKey string, useSSL bool) (*Store, error) {
	cli, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
		Region: region,
	})
	if err != nil {
		return nil, err
	}

	// pastikan bucket ada
	exists, err := cli.BucketExists(ctx, bucket)
	if err != nil {
		return nil, err
	}
	if !exists {
		if err := cli.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: region}); err != nil {
			return nil, err
		}
	}

	return &Store{client: cli, bucketName: bucket, region: region, ebookKey: ebookKey}, nil
}

// Fetch streams the ebook object. Caller owns the reader.
func (s *Store) Fetch(ctx context.Context) (io.ReadCloser, string, error) {
	obj, err := s.client.GetObject(ctx, s.bucketName, s.ebookKey, minio.GetObjectOptions{})
	if err != nil {
		return nil, "", fmt.Errorf("fetching ebook object: %w", err)
	}
	// GetObject is lazy; Stat forces the first request so a missing key
	// surfaces here instead of mid-stream.
	info, err := obj.Stat()
	if err != nil {
		obj.Close()
		return nil, "", fmt.Errorf("ebook object %q: %w", s.ebookKey, err)
	}
	contentType := info.ContentType
	if contentType == "" {
		contentType = "application/pdf"
	}
	return obj, contentType, nil
}

// DownloadLink buat presigned URL untuk dipakai di email
func (s *Store) DownloadLink(ctx context.Context, expiry time.Duration) (string, error) {
	params := url.Values{}
	params.Set("response-content-disposition", fmt.Sprintf("attachment; filename=%q", "credit-secrets-ebook.pdf"))

	u, err := s.client.PresignedGetObject(ctx, s.bucketName, s.ebookKey, expiry, params)
	if err != nil {
		return "", fmt.Errorf("presigning ebook link: %w", err)
	}
	return u.String(), nil
}
