// Package artifacts uploads training run artifacts to S3.
package artifacts

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3_types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/densedit/train-launcher/pkg/fileutil"
	"github.com/dustin/go-humanize"
	"go.uber.org/zap"
)

// S3API is the subset of the S3 client the uploader needs.
type S3API interface {
	CreateBucket(ctx context.Context, params *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Uploader uploads run artifacts to a S3 bucket.
type Uploader struct {
	lg     *zap.Logger
	s3API  S3API
	bucket string
	region string
}

// New creates a new Uploader.
func New(lg *zap.Logger, s3API S3API, bucket string, region string) *Uploader {
	return &Uploader{lg: lg, s3API: s3API, bucket: bucket, region: region}
}

// CreateBucket creates the artifact bucket, tolerating buckets
// that already exist.
func (up *Uploader) CreateBucket(ctx context.Context) (err error) {
	for i := 0; i < 5; i++ {
		err = up.createBucket(ctx)
		if err == nil {
			return nil
		}
		var exists *s3_types.BucketAlreadyExists
		var owned *s3_types.BucketAlreadyOwnedByYou
		if errors.As(err, &exists) {
			up.lg.Warn("bucket already exists", zap.String("s3-bucket", up.bucket), zap.Error(err))
			return nil
		}
		if errors.As(err, &owned) {
			up.lg.Warn("bucket already owned by me", zap.String("s3-bucket", up.bucket), zap.Error(err))
			return nil
		}
		up.lg.Warn("failed to create bucket; retrying", zap.Error(err))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(5 * time.Second):
		}
	}
	return err
}

func (up *Uploader) createBucket(ctx context.Context) error {
	up.lg.Info("creating S3 bucket", zap.String("s3-bucket", up.bucket))
	createBucketInput := &s3.CreateBucketInput{
		Bucket: aws.String(up.bucket),
		// https://docs.aws.amazon.com/AmazonS3/latest/dev/acl-overview.html#canned-acl
		// vs. "public-read"
		ACL: s3_types.BucketCannedACLPrivate,
	}
	// Setting LocationConstraint to us-east-1 fails with InvalidLocationConstraint. This region is handled differerntly and must be omitted.
	// https://github.com/boto/boto3/issues/125
	if up.region != "us-east-1" {
		createBucketInput.CreateBucketConfiguration = &s3_types.CreateBucketConfiguration{
			LocationConstraint: s3_types.BucketLocationConstraint(up.region),
		}
	}
	if _, err := up.s3API.CreateBucket(ctx, createBucketInput); err != nil {
		return err
	}
	up.lg.Info("created S3 bucket", zap.String("s3-bucket", up.bucket))
	return nil
}

// UploadRun uploads the run config snapshot and the run log
// under the given S3 directory.
func (up *Uploader) UploadRun(ctx context.Context, dir string, configPath string, runLogPath string) error {
	if err := up.UploadFile(ctx, path.Join(dir, filepath.Base(configPath)), configPath); err != nil {
		return err
	}
	return up.UploadFile(ctx, path.Join(dir, filepath.Base(runLogPath)), runLogPath)
}

// UploadFile uploads the local file to the bucket under s3Key.
func (up *Uploader) UploadFile(ctx context.Context, s3Key string, fpath string) (err error) {
	if !fileutil.Exist(fpath) {
		return fmt.Errorf("file %q does not exist; failed to upload to %s/%s", fpath, up.bucket, s3Key)
	}
	stat, err := os.Stat(fpath)
	if err != nil {
		return err
	}
	size := humanize.Bytes(uint64(stat.Size()))

	up.lg.Info("uploading",
		zap.String("s3-bucket", up.bucket),
		zap.String("remote-path", s3Key),
		zap.String("file-size", size),
	)

	for i := 0; i < 5; i++ {
		rf, oerr := os.OpenFile(fpath, os.O_RDONLY, 0444)
		if oerr != nil {
			up.lg.Warn("failed to read a file", zap.String("file-path", fpath), zap.Error(oerr))
			return oerr
		}
		_, err = up.s3API.PutObject(ctx, &s3.PutObjectInput{
			Bucket: aws.String(up.bucket),
			Key:    aws.String(s3Key),

			Body: rf,

			// https://docs.aws.amazon.com/AmazonS3/latest/dev/acl-overview.html#canned-acl
			// vs. "public-read"
			ACL: s3_types.ObjectCannedACLPrivate,

			Metadata: map[string]string{
				"Kind": "train-launcher",
			},
		})
		rf.Close()
		if err == nil {
			up.lg.Info("uploaded",
				zap.String("s3-bucket", up.bucket),
				zap.String("remote-path", s3Key),
				zap.String("file-size", size),
			)
			break
		}

		up.lg.Warn("failed to upload",
			zap.String("s3-bucket", up.bucket),
			zap.String("remote-path", s3Key),
			zap.String("file-size", size),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second * time.Duration(i+5)):
		}
	}
	return err
}
