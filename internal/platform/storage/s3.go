package storage

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"net/http"
	"path"
	"strings"
	"time"

	"sweet_shop/internal/common"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
)

// MaxImageSize is the largest image accepted for a product (5 MiB).
const MaxImageSize = 5 << 20

var (
	ErrImageEmpty    = fmt.Errorf("image is empty: %w", common.ErrImageUpload)
	ErrImageTooLarge = fmt.Errorf("image must be 5MB or smaller: %w", common.ErrImageUpload)
	ErrNotAnImage    = fmt.Errorf("only image files are allowed: %w", common.ErrImageUpload)
	ErrNotConfigured = fmt.Errorf("image storage is not configured: %w", common.ErrImageUpload)
)

// ImageUpload is a product image received from a client.
type ImageUpload struct {
	Filename    string
	ContentType string
	Data        []byte
	// NameHint feeds the object key, usually the product name.
	NameHint string
}

// Validate enforces the size and type limits before any network I/O.
// It fills ContentType by sniffing when the client did not send a usable one.
func (img *ImageUpload) Validate() error {
	if len(img.Data) == 0 {
		return ErrImageEmpty
	}
	if len(img.Data) > MaxImageSize {
		return ErrImageTooLarge
	}
	ct := img.ContentType
	if ct == "" || ct == "application/octet-stream" {
		ct = http.DetectContentType(img.Data)
	}
	if mediaType, _, err := mime.ParseMediaType(ct); err == nil {
		ct = mediaType
	}
	if !strings.HasPrefix(ct, "image/") {
		return ErrNotAnImage
	}
	img.ContentType = ct
	return nil
}

type S3Options struct {
	Endpoint      string
	Region        string
	Bucket        string
	AccessKey     string
	SecretKey     string
	PublicBaseURL string
	KeyPrefix     string
}

// s3API is the part of *s3.Client the uploader needs.
type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// S3Uploader stores product images in an S3-compatible bucket and returns their public URL.
// It does not retry; a failed upload fails the calling operation.
type S3Uploader struct {
	client s3API
	opts   S3Options
	now    func() time.Time
}

var loadDefaultAWSConfig = config.LoadDefaultConfig

func NewS3Uploader(ctx context.Context, opts S3Options) (*S3Uploader, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(opts.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})
	return newS3Uploader(client, opts), nil
}

func newS3Uploader(client s3API, opts S3Options) *S3Uploader {
	opts.KeyPrefix = strings.Trim(opts.KeyPrefix, "/")
	return &S3Uploader{client: client, opts: opts, now: time.Now}
}

func (u *S3Uploader) Configured() bool {
	return true
}

func (u *S3Uploader) Upload(ctx context.Context, img ImageUpload) (string, error) {
	if err := img.Validate(); err != nil {
		return "", err
	}

	key := u.objectKey(img)
	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(u.opts.Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(img.Data),
		ContentLength: aws.Int64(int64(len(img.Data))),
		ContentType:   aws.String(img.ContentType),
		CacheControl:  aws.String("public, max-age=31536000, immutable"),
	})
	if err != nil {
		return "", fmt.Errorf("%w: put %s: %v", common.ErrImageUpload, key, err)
	}
	return u.publicURL(key), nil
}

func (u *S3Uploader) Ping(ctx context.Context) error {
	_, err := u.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(u.opts.Bucket)})
	return err
}

// objectKey builds <prefix>/<yyyy>/<mm>/<slug>-<uuid><ext>.
func (u *S3Uploader) objectKey(img ImageUpload) string {
	name := img.NameHint
	if name == "" {
		name = strings.TrimSuffix(img.Filename, path.Ext(img.Filename))
	}
	base := slug.Make(name)
	if base == "" {
		base = "image"
	}

	ext := strings.ToLower(path.Ext(img.Filename))
	if ext == "" {
		if exts, _ := mime.ExtensionsByType(img.ContentType); len(exts) > 0 {
			ext = exts[0]
		}
	}

	d := u.now().UTC()
	file := fmt.Sprintf("%s-%s%s", base, uuid.NewString(), ext)
	if u.opts.KeyPrefix == "" {
		return fmt.Sprintf("%04d/%02d/%s", d.Year(), int(d.Month()), file)
	}
	return fmt.Sprintf("%s/%04d/%02d/%s", u.opts.KeyPrefix, d.Year(), int(d.Month()), file)
}

func (u *S3Uploader) publicURL(key string) string {
	if u.opts.PublicBaseURL != "" {
		return strings.TrimRight(u.opts.PublicBaseURL, "/") + "/" + key
	}
	if u.opts.Endpoint != "" {
		return strings.TrimRight(u.opts.Endpoint, "/") + "/" + u.opts.Bucket + "/" + key
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", u.opts.Bucket, u.opts.Region, key)
}

// DisabledUploader is used when no bucket is configured: products without images still work.
type DisabledUploader struct{}

func (DisabledUploader) Configured() bool { return false }

func (DisabledUploader) Upload(_ context.Context, img ImageUpload) (string, error) {
	if err := img.Validate(); err != nil {
		return "", err
	}
	return "", ErrNotConfigured
}

func (DisabledUploader) Ping(context.Context) error { return ErrNotConfigured }
