package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog"

	"linechat/internal/app/user"
	"linechat/internal/pkg/logx"
)

// objectAPI is the subset of *s3.Client used to read the credential document.
type objectAPI interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// uploadAPI is the subset of *manager.Uploader used to write it.
type uploadAPI interface {
	Upload(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// s3Client implements user.Backend against S3-compatible storage.
type s3Client struct {
	cfg      ServiceConfig
	objects  objectAPI
	uploader uploadAPI
	logger   zerolog.Logger
}

// newS3Client initializes the S3 client using a custom configuration that supports S3-compatible endpoints.
func newS3Client(ctx context.Context, cfg ServiceConfig) (*s3Client, error) {
	sdkCfg, err := config.LoadDefaultConfig(ctx,
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.S3AccessKeyID,
			cfg.S3SecretAccessKey,
			"",
		)),
		config.WithRegion("auto"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize S3 client configuration: %w", err)
	}

	client := s3.NewFromConfig(sdkCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
		}
		o.UsePathStyle = true
	})

	return &s3Client{
		cfg:      cfg,
		objects:  client,
		uploader: manager.NewUploader(client),
		logger:   logx.Component("s3-store"),
	}, nil
}

// Load downloads and decodes the credential document. A missing object is an empty store.
func (c *s3Client) Load(ctx context.Context) ([]user.Credential, error) {
	out, err := c.objects.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.cfg.S3BucketName),
		Key:    aws.String(c.cfg.S3ObjectKey),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			c.logger.Info().Str("key", c.cfg.S3ObjectKey).Msg("Credential object not found, starting empty.")
			return []user.Credential{}, nil
		}
		return nil, fmt.Errorf("get s3://%s/%s: %w", c.cfg.S3BucketName, c.cfg.S3ObjectKey, err)
	}
	defer out.Body.Close()

	creds, err := user.DecodeCredentials(out.Body)
	if err != nil {
		return nil, user.Corrupt(fmt.Errorf("s3://%s/%s: %w", c.cfg.S3BucketName, c.cfg.S3ObjectKey, err))
	}
	return creds, nil
}

// Save uploads the complete list, replacing the previous object.
func (c *s3Client) Save(ctx context.Context, all []user.Credential, _ user.Credential) error {
	data, err := user.EncodeCredentials(all)
	if err != nil {
		return err
	}

	_, err = c.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.cfg.S3BucketName),
		Key:         aws.String(c.cfg.S3ObjectKey),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("put s3://%s/%s: %w", c.cfg.S3BucketName, c.cfg.S3ObjectKey, err)
	}

	c.logger.Debug().Int("users", len(all)).Msg("Credential object uploaded.")
	return nil
}
