package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/dmitrijs2005/gophdrive/internal/client/models"
	"github.com/dmitrijs2005/gophdrive/internal/client/objkey"
	"github.com/dmitrijs2005/gophdrive/internal/logging"
)

const (
	folderContentType = "application/x-directory"
	presignExpiry     = 15 * time.Minute
)

// S3Config locates the object storage. With Bucket empty every user owns the
// bucket "<userID><BucketSuffix>", the layout used by the backend.
type S3Config struct {
	Endpoint     string
	Region       string
	AccessKey    string
	SecretKey    string
	Bucket       string
	BucketSuffix string
}

// s3API is the part of *s3.Client used by S3Store.
type s3API interface {
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	CopyObject(ctx context.Context, in *s3.CopyObjectInput, optFns ...func(*s3.Options)) (*s3.CopyObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	CreateMultipartUpload(ctx context.Context, in *s3.CreateMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error)
	UploadPart(ctx context.Context, in *s3.UploadPartInput, optFns ...func(*s3.Options)) (*s3.UploadPartOutput, error)
	ListParts(ctx context.Context, in *s3.ListPartsInput, optFns ...func(*s3.Options)) (*s3.ListPartsOutput, error)
	CompleteMultipartUpload(ctx context.Context, in *s3.CompleteMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error)
	AbortMultipartUpload(ctx context.Context, in *s3.AbortMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error)
}

type presignAPI interface {
	PresignGetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

var (
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}
	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}
)

// S3Store is an ObjectStore talking to the bucket directly.
type S3Store struct {
	api     s3API
	presign presignAPI
	cfg     S3Config
	session *Session
	log     logging.Logger
}

var _ ObjectStore = (*S3Store)(nil)

// NewS3Store builds an S3 client with static credentials and path-style
// addressing, which MinIO requires.
func NewS3Store(ctx context.Context, cfg S3Config, session *Session, log logging.Logger) (*S3Store, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("load s3 config: %w", err)
	}

	client := newS3ClientFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = true
	})

	return &S3Store{
		api:     client,
		presign: newS3PresignClient(client),
		cfg:     cfg,
		session: session,
		log:     log,
	}, nil
}

func (s *S3Store) bucketFor(userID int64) (string, error) {
	if s.cfg.Bucket != "" {
		return s.cfg.Bucket, nil
	}
	if userID == 0 {
		return "", ErrNoSession
	}
	return fmt.Sprintf("%d%s", userID, s.cfg.BucketSuffix), nil
}

func (s *S3Store) bucket() (string, error) {
	return s.bucketFor(s.session.UserID())
}

// mapError converts SDK errors to the package sentinels by HTTP status.
func (s *S3Store) mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}

	var re *awshttp.ResponseError
	if errors.As(err, &re) {
		switch code := re.HTTPStatusCode(); {
		case code == http.StatusNotFound:
			return fmt.Errorf("%w: %v", ErrNotFound, err)
		case code == http.StatusForbidden:
			return fmt.Errorf("%w: %v", ErrForbidden, err)
		case code == http.StatusUnauthorized:
			return fmt.Errorf("%w: %v", ErrUnauthorized, err)
		case code == http.StatusConflict:
			return fmt.Errorf("%w: %v", ErrConflict, err)
		case code >= http.StatusInternalServerError:
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		default:
			return fmt.Errorf("%w: %v", ErrBadRequest, err)
		}
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

func (s *S3Store) listPrefix(ctx context.Context, bucket, prefix string) ([]types.Object, error) {
	in := &s3.ListObjectsV2Input{Bucket: aws.String(bucket)}
	if prefix != "" {
		in.Prefix = aws.String(prefix)
	}

	var out []types.Object
	p := s3.NewListObjectsV2Paginator(s.api, in)
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, s.mapError(err)
		}
		out = append(out, page.Contents...)
	}
	return out, nil
}

func (s *S3Store) ListObjects(ctx context.Context) ([]models.FileObject, error) {
	bucket, err := s.bucket()
	if err != nil {
		return nil, err
	}
	objs, err := s.listPrefix(ctx, bucket, "")
	if err != nil {
		return nil, err
	}

	files := make([]models.FileObject, 0, len(objs))
	for _, o := range objs {
		f := models.FileObject{
			ObjectKey:    aws.ToString(o.Key),
			Size:         aws.ToInt64(o.Size),
			ETag:         strings.Trim(aws.ToString(o.ETag), `"`),
			StorageClass: string(o.StorageClass),
		}
		if o.LastModified != nil {
			f.LastModified = o.LastModified.UTC().Format(time.RFC3339Nano)
		}
		files = append(files, f)
	}
	return files, nil
}

func (s *S3Store) CreateFolder(ctx context.Context, key string) error {
	bucket, err := s.bucket()
	if err != nil {
		return err
	}
	if !objkey.IsFolder(key) {
		key += objkey.Separator
	}
	_, err = s.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          strings.NewReader(""),
		ContentLength: aws.Int64(0),
		ContentType:   aws.String(folderContentType),
	})
	return s.mapError(err)
}

// keysUnder returns key itself for files and every key under the prefix for
// folders, the marker included.
func (s *S3Store) keysUnder(ctx context.Context, bucket, key string) ([]string, error) {
	if !objkey.IsFolder(key) {
		return []string{key}, nil
	}
	objs, err := s.listPrefix(ctx, bucket, key)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(objs))
	for _, o := range objs {
		keys = append(keys, aws.ToString(o.Key))
	}
	return keys, nil
}

// RenameObject copies then deletes. Renaming a folder moves every key under
// its prefix.
func (s *S3Store) RenameObject(ctx context.Context, key, newKey string) error {
	bucket, err := s.bucket()
	if err != nil {
		return err
	}
	keys, err := s.keysUnder(ctx, bucket, key)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}

	for _, old := range keys {
		target := newKey + strings.TrimPrefix(old, key)
		_, err := s.api.CopyObject(ctx, &s3.CopyObjectInput{
			Bucket:     aws.String(bucket),
			CopySource: aws.String(url.PathEscape(bucket + "/" + old)),
			Key:        aws.String(target),
		})
		if err != nil {
			return s.mapError(err)
		}
		if _, err := s.api.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: aws.String(bucket), Key: aws.String(old)}); err != nil {
			return s.mapError(err)
		}
		s.log.Debug(ctx, "object moved", "from", old, "to", target)
	}
	return nil
}

func (s *S3Store) DeleteObject(ctx context.Context, key string) error {
	bucket, err := s.bucket()
	if err != nil {
		return err
	}
	keys, err := s.keysUnder(ctx, bucket, key)
	if err != nil {
		return err
	}
	for _, k := range keys {
		if _, err := s.api.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: aws.String(bucket), Key: aws.String(k)}); err != nil {
			return s.mapError(err)
		}
	}
	return nil
}

func (s *S3Store) Download(ctx context.Context, ownerID int64, key string, w io.Writer) (string, error) {
	bucket, err := s.bucketFor(ownerID)
	if err != nil {
		return "", err
	}
	out, err := s.api.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)})
	if err != nil {
		return "", s.mapError(err)
	}
	defer out.Body.Close()

	if _, err := io.Copy(w, out.Body); err != nil {
		return "", fmt.Errorf("read object body: %w", err)
	}
	return objkey.DisplayName(key), nil
}

func (s *S3Store) PresignDownload(ctx context.Context, ownerID int64, key string) (string, error) {
	bucket, err := s.bucketFor(ownerID)
	if err != nil {
		return "", err
	}
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(presignExpiry))
	if err != nil {
		return "", s.mapError(err)
	}
	return req.URL, nil
}

// Upload puts the object in one request. The SDK consumes the body as a
// whole, so progress is reported once on success.
func (s *S3Store) Upload(ctx context.Context, key, contentType string, r io.Reader, size int64, progress func(int64)) error {
	bucket, err := s.bucket()
	if err != nil {
		return err
	}
	_, err = s.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          r,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return s.mapError(err)
	}
	if progress != nil {
		progress(size)
	}
	return nil
}

func (s *S3Store) InitiateMultipart(ctx context.Context, key, contentType string) (string, error) {
	bucket, err := s.bucket()
	if err != nil {
		return "", err
	}
	out, err := s.api.CreateMultipartUpload(ctx, &s3.CreateMultipartUploadInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", s.mapError(err)
	}
	return aws.ToString(out.UploadId), nil
}

func (s *S3Store) UploadPart(ctx context.Context, key, uploadID string, part int32, r io.Reader, size int64) (string, error) {
	bucket, err := s.bucket()
	if err != nil {
		return "", err
	}
	out, err := s.api.UploadPart(ctx, &s3.UploadPartInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		UploadId:      aws.String(uploadID),
		PartNumber:    aws.Int32(part),
		Body:          r,
		ContentLength: aws.Int64(size),
	})
	if err != nil {
		return "", s.mapError(err)
	}
	return aws.ToString(out.ETag), nil
}

// CompleteMultipart assembles the parts the server reports for the upload, so
// the caller does not have to track ETags.
func (s *S3Store) CompleteMultipart(ctx context.Context, key, uploadID string) error {
	bucket, err := s.bucket()
	if err != nil {
		return err
	}

	var parts []types.CompletedPart
	p := s3.NewListPartsPaginator(s.api, &s3.ListPartsInput{
		Bucket:   aws.String(bucket),
		Key:      aws.String(key),
		UploadId: aws.String(uploadID),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return s.mapError(err)
		}
		for _, part := range page.Parts {
			parts = append(parts, types.CompletedPart{ETag: part.ETag, PartNumber: part.PartNumber})
		}
	}

	_, err = s.api.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:          aws.String(bucket),
		Key:             aws.String(key),
		UploadId:        aws.String(uploadID),
		MultipartUpload: &types.CompletedMultipartUpload{Parts: parts},
	})
	return s.mapError(err)
}

func (s *S3Store) AbortMultipart(ctx context.Context, key, uploadID string) error {
	bucket, err := s.bucket()
	if err != nil {
		return err
	}
	_, err = s.api.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(bucket),
		Key:      aws.String(key),
		UploadId: aws.String(uploadID),
	})
	return s.mapError(err)
}
