package storage

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"

	"github.com/khaledhikmat/vs-frames/service/config"
	"github.com/khaledhikmat/vs-frames/service/lgr"
	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"gocv.io/x/gocv"
)

// minioService writes frames locally (so the output folder is always
// populated) and then uploads each file to a bucket.
type minioService struct {
	local  IService
	client *miniogo.Client
	bucket string
}

func NewMinio(ctx context.Context, params config.StorageParameters, local IService) (IService, error) {
	client, err := miniogo.New(params.Endpoint, &miniogo.Options{
		Creds:  credentials.NewStaticV4(params.AccessKey, params.SecretKey, ""),
		Secure: params.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, params.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", params.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, params.Bucket, miniogo.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", params.Bucket, err)
		}
		lgr.Logger.Info("minio bucket created", slog.String("bucket", params.Bucket))
	}

	return &minioService{
		local:  local,
		client: client,
		bucket: params.Bucket,
	}, nil
}

// New picks the storage implementation named in params.Type.
func New(ctx context.Context, params config.StorageParameters) (IService, error) {
	switch params.Type {
	case "", "local":
		return NewLocal(), nil
	case "minio":
		return NewMinio(ctx, params, NewLocal())
	default:
		return nil, fmt.Errorf("unknown storage type %q", params.Type)
	}
}

func (svc *minioService) EnsureFolder(folder string) (bool, error) {
	return svc.local.EnsureFolder(folder)
}

func (svc *minioService) StoreFrame(ctx context.Context, folder, name string, frame gocv.Mat) (string, error) {
	localPath, err := svc.local.StoreFrame(ctx, folder, name, frame)
	if err != nil {
		return "", err
	}

	objectName := objectKey(folder, name)
	_, err = svc.client.FPutObject(ctx, svc.bucket, objectName, localPath, miniogo.PutObjectOptions{
		ContentType: "image/png",
	})
	if err != nil {
		return "", fmt.Errorf("upload frame %s: %w", objectName, err)
	}

	return fmt.Sprintf("%s/%s/%s", svc.client.EndpointURL().String(), svc.bucket, objectName), nil
}

// objectKey keeps the last folder element so jobs do not overwrite each other.
func objectKey(folder, name string) string {
	return path.Join(path.Base(filepath.ToSlash(folder)), name)
}
