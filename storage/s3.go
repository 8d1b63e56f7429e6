package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	smithy "github.com/aws/smithy-go"
)

type s3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3DocumentStore reads vendor documents from <bucket>/<prefix>/<filename>.
type S3DocumentStore struct {
	bucket string
	prefix string
	s3     s3API
}

func NewS3DocumentStore(s3Client s3API, bucket, prefix string) *S3DocumentStore {
	return &S3DocumentStore{
		bucket: bucket,
		prefix: prefix,
		s3:     s3Client,
	}
}

func (s *S3DocumentStore) Load(ctx context.Context, filename string) ([]byte, error) {
	key := path.Join(s.prefix, filename)
	resp, err := s.s3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if notFound(err) {
			return nil, &fs.PathError{Op: "get", Path: key, Err: fs.ErrNotExist}
		}
		return nil, fmt.Errorf("failed to get document %s from S3: %w", key, err)
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

// S3ReportStore writes each report to <bucket>/reports/<run id>.json.
type S3ReportStore struct {
	bucket string
	s3     s3API
}

func NewS3ReportStore(s3Client s3API, bucket string) *S3ReportStore {
	return &S3ReportStore{
		bucket: bucket,
		s3:     s3Client,
	}
}

func (s *S3ReportStore) Save(ctx context.Context, runID string, data []byte) error {
	key := path.Join("reports", runID+".json")
	_, err := s.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to put report %s to S3: %w", key, err)
	}
	return nil
}

// notFound also accepts the generic codes some S3-compatible stores send instead of NoSuchKey.
func notFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}
