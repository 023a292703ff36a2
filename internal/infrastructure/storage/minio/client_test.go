package minio

import (
	"context"
	"errors"
	"io"
	"net/url"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/turtacn/KinKeep/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/KinKeep/internal/infrastructure/persistence"
	pkgerrors "github.com/turtacn/KinKeep/pkg/errors"
)

type MockObjectAPI struct {
	mock.Mock
}

func (m *MockObjectAPI) ListBuckets(ctx context.Context) ([]minio.BucketInfo, error) {
	args := m.Called(ctx)
	return args.Get(0).([]minio.BucketInfo), args.Error(1)
}

func (m *MockObjectAPI) BucketExists(ctx context.Context, bucketName string) (bool, error) {
	args := m.Called(ctx, bucketName)
	return args.Bool(0), args.Error(1)
}

func (m *MockObjectAPI) MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error {
	return m.Called(ctx, bucketName, opts).Error(0)
}

func (m *MockObjectAPI) PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	body, _ := io.ReadAll(reader)
	args := m.Called(ctx, bucketName, objectName, string(body), objectSize, opts.ContentType)
	return minio.UploadInfo{Bucket: bucketName, Key: objectName, Size: objectSize}, args.Error(0)
}

func (m *MockObjectAPI) GetObject(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (*minio.Object, error) {
	args := m.Called(ctx, bucketName, objectName)
	return nil, args.Error(0)
}

func (m *MockObjectAPI) StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error) {
	args := m.Called(ctx, bucketName, objectName)
	return minio.ObjectInfo{Key: objectName}, args.Error(0)
}

func (m *MockObjectAPI) PresignedGetObject(ctx context.Context, bucketName, objectName string, expiry time.Duration, reqParams url.Values) (*url.URL, error) {
	args := m.Called(ctx, bucketName, objectName, expiry)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*url.URL), args.Error(1)
}

type ClientTestSuite struct {
	suite.Suite
	api    *MockObjectAPI
	client *Client
	reads  map[string][]byte
}

func (s *ClientTestSuite) SetupTest() {
	s.api = new(MockObjectAPI)
	s.api.On("ListBuckets", mock.Anything).Return([]minio.BucketInfo{}, nil).Once()
	s.api.On("BucketExists", mock.Anything, "family").Return(true, nil).Once()

	client, err := newClientWithAPI(context.Background(), s.api, Config{Bucket: "family", ObjectPrefix: "kk/"}, logging.NewNopLogger())
	s.Require().NoError(err)
	s.client = client

	s.reads = map[string][]byte{}
	original := readObject
	s.T().Cleanup(func() { readObject = original })
	readObject = func(_ context.Context, _ ObjectAPI, bucket, name string) ([]byte, error) {
		raw, ok := s.reads[bucket+"/"+name]
		if !ok {
			return nil, minio.ErrorResponse{Code: "NoSuchKey"}
		}
		return raw, nil
	}
}

func (s *ClientTestSuite) TestGet_Missing() {
	s.api.On("StatObject", mock.Anything, "family", "kk/kinkeep_family_data.json").
		Return(minio.ErrorResponse{Code: "NoSuchKey"})

	_, err := s.client.Get(context.Background(), "kinkeep_family_data")
	s.True(pkgerrors.IsNotFound(err))
}

func (s *ClientTestSuite) TestGet_StatFailure() {
	s.api.On("StatObject", mock.Anything, "family", "kk/kinkeep_family_data.json").
		Return(errors.New("connection reset"))

	_, err := s.client.Get(context.Background(), "kinkeep_family_data")
	s.True(pkgerrors.IsCode(err, pkgerrors.ErrCodeStorageError))
}

func (s *ClientTestSuite) TestGet_ReadsObject() {
	s.api.On("StatObject", mock.Anything, "family", "kk/kinkeep_family_data.json").Return(nil)
	s.reads["family/kk/kinkeep_family_data.json"] = []byte(`{"members":[{"id":"a","firstName":"Ann","lastName":"Lee"}]}`)

	doc, err := persistence.NewDocumentRepository(s.client, "kinkeep_family_data", nil).Load(context.Background())
	s.Require().NoError(err)
	s.Require().Len(doc.Members, 1)
	s.Equal("Ann", doc.Members[0].FirstName)
}

func (s *ClientTestSuite) TestPut() {
	s.api.On("PutObject", mock.Anything, "family", "kk/kinkeep_family_data.json", `{"members":[]}`, int64(14), "application/json").
		Return(nil)

	s.NoError(s.client.Put(context.Background(), "kinkeep_family_data", []byte(`{"members":[]}`)))
	s.api.AssertExpectations(s.T())
}

func (s *ClientTestSuite) TestUpload() {
	signed, _ := url.Parse("https://minio.local/family/kk/exports/family.xlsx?sig=1")
	s.api.On("PutObject", mock.Anything, "family", "kk/exports/family.xlsx", "data", int64(4), "application/octet-stream").Return(nil)
	s.api.On("PresignedGetObject", mock.Anything, "family", "kk/exports/family.xlsx", time.Hour).Return(signed, nil)

	link, err := s.client.Upload(context.Background(), "family.xlsx", []byte("data"), "application/octet-stream")
	s.Require().NoError(err)
	s.Equal(signed.String(), link)
}

func (s *ClientTestSuite) TestClosed() {
	s.NoError(s.client.Close())
	_, err := s.client.Get(context.Background(), "k")
	s.Equal(ErrClientClosed, err)
	s.Equal(ErrClientClosed, s.client.Put(context.Background(), "k", nil))
	s.Equal(ErrClientClosed, s.client.Ping(context.Background()))
}

func TestClientTestSuite(t *testing.T) {
	suite.Run(t, new(ClientTestSuite))
}

func TestNewClient_CreatesMissingBucket(t *testing.T) {
	api := new(MockObjectAPI)
	api.On("ListBuckets", mock.Anything).Return([]minio.BucketInfo{}, nil)
	api.On("BucketExists", mock.Anything, "kinkeep").Return(false, nil)
	api.On("MakeBucket", mock.Anything, "kinkeep", minio.MakeBucketOptions{Region: "us-east-1"}).Return(nil)

	client, err := newClientWithAPI(context.Background(), api, Config{}, logging.NewNopLogger())
	require.NoError(t, err)
	assert.Equal(t, "kinkeep", client.Bucket())
	api.AssertExpectations(t)
}

func TestNewClient_Unreachable(t *testing.T) {
	api := new(MockObjectAPI)
	api.On("ListBuckets", mock.Anything).Return([]minio.BucketInfo(nil), errors.New("dial tcp: refused"))

	_, err := newClientWithAPI(context.Background(), api, Config{}, logging.NewNopLogger())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeServiceUnavailable))
}
