package s3store_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/subledger/pkg/recordstore"
	"github.com/dmitrymomot/subledger/pkg/recordstore/s3store"
)

// MockS3Client is a mock implementation of the S3Client interface
type MockS3Client struct {
	mock.Mock
}

func (m *MockS3Client) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	args := m.Called(ctx, params, optFns)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*s3.PutObjectOutput), args.Error(1)
}

func (m *MockS3Client) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	args := m.Called(ctx, params, optFns)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*s3.GetObjectOutput), args.Error(1)
}

type note struct {
	ID   string `json:"id"`
	Body string `json:"body"`
}

func newBackend(t *testing.T, client *MockS3Client) *s3store.Backend {
	t.Helper()
	b, err := s3store.New(context.Background(), s3store.Config{
		Bucket: "ledger",
		Region: "us-east-1",
		Prefix: "/snapshots/",
	}, s3store.WithS3Client(client))
	require.NoError(t, err)
	return b
}

func keyIs(key string) any {
	return mock.MatchedBy(func(in *s3.GetObjectInput) bool {
		return aws.ToString(in.Bucket) == "ledger" && aws.ToString(in.Key) == key
	})
}

func TestNew_RequiresBucket(t *testing.T) {
	t.Parallel()
	_, err := s3store.New(context.Background(), s3store.Config{Region: "eu-west-1"})
	assert.ErrorIs(t, err, s3store.ErrMissingBucket)
}

func TestBackend_Key(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "snapshots/plans.json", newBackend(t, &MockS3Client{}).Key("plans"))
}

func TestBackend_Load(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("NoSuchKey is an empty collection", func(t *testing.T) {
		t.Parallel()
		client := &MockS3Client{}
		client.On("GetObject", ctx, keyIs("snapshots/notes.json"), mock.Anything).
			Return(nil, &types.NoSuchKey{Message: aws.String("The specified key does not exist.")})

		raw, err := newBackend(t, client).Load(ctx, "notes")
		require.NoError(t, err)
		assert.Nil(t, raw)
	})

	t.Run("generic NoSuchKey API error", func(t *testing.T) {
		t.Parallel()
		client := &MockS3Client{}
		client.On("GetObject", ctx, mock.Anything, mock.Anything).
			Return(nil, &smithy.GenericAPIError{Code: "NoSuchKey"})

		raw, err := newBackend(t, client).Load(ctx, "notes")
		require.NoError(t, err)
		assert.Nil(t, raw)
	})

	t.Run("reads object body", func(t *testing.T) {
		t.Parallel()
		client := &MockS3Client{}
		client.On("GetObject", ctx, keyIs("snapshots/notes.json"), mock.Anything).
			Return(&s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(`[{"id":"n1","body":"stored"}]`))}, nil)

		coll, err := recordstore.Open(ctx, newBackend(t, client), recordstore.MustSchema[note]("notes"))
		require.NoError(t, err)
		got, err := coll.FindByID(ctx, "n1")
		require.NoError(t, err)
		assert.Equal(t, "stored", got.Body)
	})

	t.Run("access denied", func(t *testing.T) {
		t.Parallel()
		client := &MockS3Client{}
		client.On("GetObject", ctx, mock.Anything, mock.Anything).
			Return(nil, &smithy.GenericAPIError{Code: "AccessDenied", Message: "denied"})

		_, err := newBackend(t, client).Load(ctx, "notes")
		assert.ErrorIs(t, err, s3store.ErrAccessDenied)
	})

	t.Run("missing bucket", func(t *testing.T) {
		t.Parallel()
		client := &MockS3Client{}
		client.On("GetObject", ctx, mock.Anything, mock.Anything).Return(nil, &types.NoSuchBucket{})

		_, err := newBackend(t, client).Load(ctx, "notes")
		assert.ErrorIs(t, err, s3store.ErrBucketNotFound)
	})
}

func TestBackend_Save(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("puts snapshot as json", func(t *testing.T) {
		t.Parallel()
		client := &MockS3Client{}
		client.On("GetObject", ctx, mock.Anything, mock.Anything).Return(nil, &types.NoSuchKey{})
		var put *s3.PutObjectInput
		var body []byte
		client.On("PutObject", ctx, mock.Anything, mock.Anything).
			Run(func(args mock.Arguments) {
				put = args.Get(1).(*s3.PutObjectInput)
				body, _ = io.ReadAll(put.Body)
			}).
			Return(&s3.PutObjectOutput{}, nil).Once()

		coll, err := recordstore.Open(ctx, newBackend(t, client), recordstore.MustSchema[note]("notes"))
		require.NoError(t, err)
		_, err = coll.Create(ctx, note{Body: "hello"})
		require.NoError(t, err)

		require.NotNil(t, put)
		assert.Equal(t, "snapshots/notes.json", aws.ToString(put.Key))
		assert.Equal(t, "application/json", aws.ToString(put.ContentType))
		assert.Equal(t, int64(len(body)), aws.ToInt64(put.ContentLength))
		assert.Contains(t, string(body), `"body": "hello"`)
		client.AssertExpectations(t)
	})

	t.Run("throttling surfaces as persistence failure", func(t *testing.T) {
		t.Parallel()
		client := &MockS3Client{}
		client.On("GetObject", ctx, mock.Anything, mock.Anything).Return(nil, &types.NoSuchKey{})
		client.On("PutObject", ctx, mock.Anything, mock.Anything).
			Return(nil, &smithy.GenericAPIError{Code: "SlowDown"})

		coll, err := recordstore.Open(ctx, newBackend(t, client), recordstore.MustSchema[note]("notes"))
		require.NoError(t, err)
		_, err = coll.Create(ctx, note{Body: "hello"})
		require.ErrorIs(t, err, recordstore.ErrPersistence)
		require.ErrorIs(t, err, s3store.ErrServiceUnavailable)
		assert.Zero(t, coll.Count(ctx))
	})

	t.Run("canceled context", func(t *testing.T) {
		t.Parallel()
		client := &MockS3Client{}
		client.On("PutObject", mock.Anything, mock.Anything, mock.Anything).Return(nil, context.Canceled)

		err := newBackend(t, client).Save(ctx, "notes", []byte("[]"))
		assert.True(t, errors.Is(err, s3store.ErrOperationCanceled))
	})
}
