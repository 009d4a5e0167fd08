package objectstore

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/yixin-zhu/yx-chatbot/internal/config"
	"github.com/yixin-zhu/yx-chatbot/internal/faults"
	"github.com/yixin-zhu/yx-chatbot/pkg/logger_i"
)

type S3Store struct {
	client *s3.Client
	bucket string
	logger *logger_i.Logger
}

func NewS3Store(ctx context.Context) (*S3Store, error) {
	accessKey := os.Getenv("AWS_ACCESS_KEY_ID")
	secretKey := os.Getenv("AWS_SECRET_ACCESS_KEY")
	if accessKey == "" || secretKey == "" {
		return nil, fmt.Errorf("AWS credentials not set")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(
		ctx,
		awsconfig.WithRegion(config.AwsRegion()),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKey, secretKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		//localstack / minio style endpoints for dev
		if endpoint := os.Getenv("S3_ENDPOINT"); endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})

	logger := logger_i.NewLogger("S3Store")
	logger.Info("Connected to object storage", "bucket", config.BucketName())

	return &S3Store{
		client: client,
		bucket: config.BucketName(),
		logger: logger,
	}, nil
}

func (s *S3Store) Put(ctx context.Context, key string, data io.Reader, size int64) error {
	uploader := manager.NewUploader(s.client)

	ctxUpload, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	_, err := uploader.Upload(ctxUpload, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   data,
	})
	if err != nil {
		return fmt.Errorf("%w: s3 upload %s: %v", faults.ErrStorageFailure, key, err)
	}
	return nil
}

func (s *S3Store) GetReader(ctx context.Context, key string) (io.ReadCloser, error) {
	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: s3 get %s: %v", faults.ErrStorageFailure, key, err)
	}
	return resp.Body, nil
}

// Compose performs the server-side merge: a multipart upload whose parts are
// copied from the source objects in order. Chunk size is 5 MiB, which clears
// the multipart minimum part size for every part but the last.
func (s *S3Store) Compose(ctx context.Context, sourceKeys []string, targetKey string) error {
	if len(sourceKeys) == 0 {
		return fmt.Errorf("%w: compose with no sources", faults.ErrInvalidInput)
	}

	create, err := s.client.CreateMultipartUpload(ctx, &s3.CreateMultipartUploadInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(targetKey),
	})
	if err != nil {
		return fmt.Errorf("%w: create multipart %s: %v", faults.ErrStorageFailure, targetKey, err)
	}
	uploadId := create.UploadId

	completed := make([]types.CompletedPart, 0, len(sourceKeys))
	for i, sourceKey := range sourceKeys {
		partNumber := int32(i + 1)
		part, err := s.client.UploadPartCopy(ctx, &s3.UploadPartCopyInput{
			Bucket:     aws.String(s.bucket),
			Key:        aws.String(targetKey),
			UploadId:   uploadId,
			PartNumber: aws.Int32(partNumber),
			CopySource: aws.String(s.bucket + "/" + sourceKey),
		})
		if err != nil {
			s.abortCompose(ctx, targetKey, uploadId)
			return fmt.Errorf("%w: copy part %d from %s: %v", faults.ErrStorageFailure, partNumber, sourceKey, err)
		}
		completed = append(completed, types.CompletedPart{
			ETag:       part.CopyPartResult.ETag,
			PartNumber: aws.Int32(partNumber),
		})
	}

	_, err = s.client.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:          aws.String(s.bucket),
		Key:             aws.String(targetKey),
		UploadId:        uploadId,
		MultipartUpload: &types.CompletedMultipartUpload{Parts: completed},
	})
	if err != nil {
		s.abortCompose(ctx, targetKey, uploadId)
		return fmt.Errorf("%w: complete multipart %s: %v", faults.ErrStorageFailure, targetKey, err)
	}
	return nil
}

func (s *S3Store) abortCompose(ctx context.Context, targetKey string, uploadId *string) {
	_, err := s.client.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(s.bucket),
		Key:      aws.String(targetKey),
		UploadId: uploadId,
	})
	if err != nil {
		s.logger.Error("Could not abort multipart upload", "key", targetKey, "error", err)
	}
}

func (s *S3Store) Stat(ctx context.Context, key string) (int64, error) {
	head, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return 0, fmt.Errorf("%w: s3 head %s: %v", faults.ErrStorageFailure, key, err)
	}
	return aws.ToInt64(head.ContentLength), nil
}

func (s *S3Store) Remove(ctx context.Context, keys ...string) error {
	ctxDel, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	for _, key := range keys {
		_, err := s.client.DeleteObject(ctxDel, &s3.DeleteObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			return fmt.Errorf("%w: s3 delete %s: %v", faults.ErrStorageFailure, key, err)
		}
	}
	return nil
}

func (s *S3Store) PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error) {
	presigner := s3.NewPresignClient(s.client)
	req, err := presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(expiry))
	if err != nil {
		return "", fmt.Errorf("%w: presign %s: %v", faults.ErrStorageFailure, key, err)
	}
	return req.URL, nil
}
