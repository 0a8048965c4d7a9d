package artifacts

import (
	"context"
	"os"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3_types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/densedit/train-launcher/pkg/fileutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeS3 struct {
	createErr   error
	createCalls int

	putErr  error
	putKeys []string
}

func (f *fakeS3) CreateBucket(ctx context.Context, params *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error) {
	f.createCalls++
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &s3.CreateBucketOutput{}, nil
}

func (f *fakeS3) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.putKeys = append(f.putKeys, *params.Key)
	if f.putErr != nil {
		return nil, f.putErr
	}
	return &s3.PutObjectOutput{}, nil
}

func TestCreateBucket(t *testing.T) {
	fake := &fakeS3{}
	up := New(zap.NewExample(), fake, "test-bucket", "us-west-2")
	require.NoError(t, up.CreateBucket(context.Background()))
	require.Equal(t, 1, fake.createCalls)
}

func TestCreateBucketAlreadyOwned(t *testing.T) {
	fake := &fakeS3{createErr: &s3_types.BucketAlreadyOwnedByYou{}}
	up := New(zap.NewExample(), fake, "test-bucket", "us-west-2")
	require.NoError(t, up.CreateBucket(context.Background()))

	fake = &fakeS3{createErr: &s3_types.BucketAlreadyExists{}}
	up = New(zap.NewExample(), fake, "test-bucket", "us-east-1")
	require.NoError(t, up.CreateBucket(context.Background()))
}

func TestCreateBucketCanceled(t *testing.T) {
	fake := &fakeS3{createErr: context.DeadlineExceeded}
	up := New(zap.NewExample(), fake, "test-bucket", "us-west-2")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.Error(t, up.CreateBucket(ctx))
	require.Equal(t, 1, fake.createCalls)
}

func TestUploadRun(t *testing.T) {
	cfgPath, err := fileutil.WriteTempFile([]byte("name: test\n"))
	require.NoError(t, err)
	defer os.RemoveAll(cfgPath)
	logPath, err := fileutil.WriteTempFile([]byte("step 1\nstep 2\n"))
	require.NoError(t, err)
	defer os.RemoveAll(logPath)

	fake := &fakeS3{}
	up := New(zap.NewExample(), fake, "test-bucket", "us-west-2")
	require.NoError(t, up.UploadRun(context.Background(), "runs/test", cfgPath, logPath))
	require.Len(t, fake.putKeys, 2)
	require.Contains(t, fake.putKeys[0], "runs/test/")
	require.Contains(t, fake.putKeys[1], "runs/test/")
}

func TestUploadFileMissing(t *testing.T) {
	fake := &fakeS3{}
	up := New(zap.NewExample(), fake, "test-bucket", "us-west-2")
	err := up.UploadFile(context.Background(), "runs/x/none.log", "/does/not/exist.log")
	require.Error(t, err)
	require.Zero(t, len(fake.putKeys))
}
