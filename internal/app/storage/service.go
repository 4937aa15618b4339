/*
Package storage provides the S3-compatible credential backend.

This file defines the connection settings and the factory used by the server
bootstrap when STORE_BACKEND is "s3".
*/
package storage

import (
	"context"
	"errors"

	"linechat/internal/app/user"
)

// ServiceConfig holds the configuration required to connect to the storage service.
type ServiceConfig struct {
	S3BucketName      string
	S3Endpoint        string
	S3AccessKeyID     string
	S3SecretAccessKey string

	// S3ObjectKey is the key of the JSON credential document inside the bucket.
	S3ObjectKey string
}

// NewCredentialBackend returns a user.Backend that keeps the credential list
// as a single JSON object in an S3-compatible bucket.
func NewCredentialBackend(ctx context.Context, cfg ServiceConfig) (user.Backend, error) {
	if cfg.S3BucketName == "" || cfg.S3ObjectKey == "" {
		return nil, errors.New("S3 bucket name and object key are required")
	}
	return newS3Client(ctx, cfg)
}
