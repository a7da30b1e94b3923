package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/raktar-project/raktar/pkg/apperr"
)

// S3Store keeps archives in an S3 bucket.
type S3Store struct {
	bucket string
	client *s3.Client
}

// NewS3Store creates an S3-backed archive store using the ambient AWS
// configuration.
func NewS3Store(ctx context.Context, bucket string) (*S3Store, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return &S3Store{
		bucket: bucket,
		client: s3.NewFromConfig(cfg),
	}, nil
}

// Put stores the archive bytes for a version.
func (s *S3Store) Put(ctx context.Context, crateName, version string, data []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey(crateName, version)),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return fmt.Errorf("failed to store archive: %w", err)
	}
	return nil
}

// Get returns the archive bytes.
func (s *S3Store) Get(ctx context.Context, crateName, version string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey(crateName, version)),
	})
	if err != nil {
		var noSuchKey *s3types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, apperr.NonExistentCrateVersion(crateName, version)
		}
		return nil, apperr.Internal(err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return data, nil
}
