// Package storage persists uploaded recording media in S3-compatible object
// storage and hands back durable public URLs that the rest of the system
// treats as opaque strings.
package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/unainr/screen-recorder/internal/apperr"
)

// MediaKind selects the key prefix and the set of accepted content types.
type MediaKind string

const (
	KindImage MediaKind = "image"
	KindVideo MediaKind = "video"
)

const (
	imagePrefix = "screen-images/"
	videoPrefix = "screen-recordings/"
)

var imageContentTypes = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

var videoContentTypes = map[string]string{
	"video/webm":      ".webm",
	"video/mp4":       ".mp4",
	"video/quicktime": ".mov",
}

type Storage struct {
	client    *s3.Client
	presigner *s3.PresignClient
	bucket    string
	publicURL string
	maxBytes  int64
}

type Config struct {
	Endpoint       string
	PublicEndpoint string // Used in returned media URLs; falls back to Endpoint if empty
	Bucket         string
	AccessKey      string
	SecretKey      string
	Region         string
	MaxUploadBytes int64
}

func New(ctx context.Context, cfg Config) (*Storage, error) {
	if cfg.Region == "" {
		cfg.Region = "eu-central-1"
	}

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.Endpoint)
		o.UsePathStyle = true
	})

	publicEndpoint := cfg.Endpoint
	if cfg.PublicEndpoint != "" {
		publicEndpoint = cfg.PublicEndpoint
	}
	presignClient := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(publicEndpoint)
		o.UsePathStyle = true
	})

	return &Storage{
		client:    client,
		presigner: s3.NewPresignClient(presignClient),
		bucket:    cfg.Bucket,
		publicURL: strings.TrimSuffix(publicEndpoint, "/"),
		maxBytes:  cfg.MaxUploadBytes,
	}, nil
}

// UploadMedia streams an object into the bucket under a freshly generated
// key and returns its durable public URL. Content type decides the file
// extension; the caller-supplied filename contributes nothing to the key so
// uploads can never collide or traverse prefixes.
func (s *Storage) UploadMedia(ctx context.Context, kind MediaKind, contentType string, size int64, body io.Reader) (string, error) {
	key, err := objectKey(kind, contentType)
	if err != nil {
		return "", err
	}
	if s.maxBytes > 0 && size > s.maxBytes {
		return "", apperr.New(apperr.KindValidationFailed,
			fmt.Sprintf("file too large: %d bytes exceeds limit of %d", size, s.maxBytes))
	}

	input := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	}
	if size > 0 {
		input.ContentLength = aws.Int64(size)
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		return "", apperr.Wrap(apperr.KindUploadFailed, "failed to store media", err)
	}

	return s.publicURL + "/" + s.bucket + "/" + key, nil
}

// DeleteByURL removes the object a previously returned media URL points at.
// URLs outside this bucket are rejected so a crafted URL cannot delete
// arbitrary keys.
func (s *Storage) DeleteByURL(ctx context.Context, mediaURL string) error {
	key, err := s.keyFromURL(mediaURL)
	if err != nil {
		return err
	}
	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}); err != nil {
		return fmt.Errorf("delete object %s: %w", key, err)
	}
	return nil
}

// GenerateDownloadURL presigns a GET with an attachment disposition so the
// browser downloads the recording instead of playing it inline.
func (s *Storage) GenerateDownloadURL(ctx context.Context, mediaURL string, filename string, expiry time.Duration) (string, error) {
	key, err := s.keyFromURL(mediaURL)
	if err != nil {
		return "", err
	}
	disposition := fmt.Sprintf(`attachment; filename="%s"`, sanitizeFilename(filename))
	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket:                     aws.String(s.bucket),
		Key:                        aws.String(key),
		ResponseContentDisposition: aws.String(disposition),
	}, s3.WithPresignExpires(expiry))
	if err != nil {
		return "", fmt.Errorf("presign download: %w", err)
	}
	return req.URL, nil
}

func (s *Storage) HeadObject(ctx context.Context, mediaURL string) (int64, string, error) {
	key, err := s.keyFromURL(mediaURL)
	if err != nil {
		return 0, "", err
	}
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return 0, "", fmt.Errorf("head object: %w", err)
	}
	size := int64(0)
	if out.ContentLength != nil {
		size = *out.ContentLength
	}
	ct := ""
	if out.ContentType != nil {
		ct = *out.ContentType
	}
	return size, ct, nil
}

func (s *Storage) EnsureBucket(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err == nil {
		return nil
	}

	_, err = s.client.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err != nil {
		return fmt.Errorf("create bucket: %w", err)
	}
	return nil
}

func objectKey(kind MediaKind, contentType string) (string, error) {
	contentType, _, _ = strings.Cut(contentType, ";")
	contentType = strings.TrimSpace(strings.ToLower(contentType))

	switch kind {
	case KindImage:
		ext, ok := imageContentTypes[contentType]
		if !ok {
			return "", apperr.New(apperr.KindValidationFailed,
				fmt.Sprintf("unsupported image type %q", contentType))
		}
		return imagePrefix + uuid.NewString() + ext, nil
	case KindVideo:
		ext, ok := videoContentTypes[contentType]
		if !ok {
			return "", apperr.New(apperr.KindValidationFailed,
				fmt.Sprintf("unsupported video type %q", contentType))
		}
		return videoPrefix + uuid.NewString() + ext, nil
	default:
		return "", apperr.New(apperr.KindValidationFailed,
			fmt.Sprintf("unknown media kind %q", kind))
	}
}

func (s *Storage) keyFromURL(mediaURL string) (string, error) {
	prefix := s.publicURL + "/" + s.bucket + "/"
	key, found := strings.CutPrefix(mediaURL, prefix)
	if !found || key == "" || key != path.Clean(key) {
		return "", apperr.New(apperr.KindValidationFailed, "media URL does not belong to this storage")
	}
	if !strings.HasPrefix(key, imagePrefix) && !strings.HasPrefix(key, videoPrefix) {
		return "", apperr.New(apperr.KindValidationFailed, "media URL does not belong to this storage")
	}
	return key, nil
}

func sanitizeFilename(name string) string {
	var b strings.Builder
	for _, r := range name {
		if r == '"' || r == '\\' || r == '/' || r < 0x20 {
			b.WriteRune('_')
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}
