package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/khaledhikmat/vs-frames/service/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func TestFrameName(t *testing.T) {
	assert.Equal(t, "frame_00000.png", FrameName(0))
	assert.Equal(t, "frame_00042.png", FrameName(42))
	assert.Equal(t, "frame_123456.png", FrameName(123456))
}

func TestEnsureFolder(t *testing.T) {
	svc := NewLocal()
	folder := filepath.Join(t.TempDir(), "Output")

	existed, err := svc.EnsureFolder(folder)
	require.NoError(t, err)
	assert.False(t, existed)
	assert.DirExists(t, folder)

	existed, err = svc.EnsureFolder(folder)
	require.NoError(t, err)
	assert.True(t, existed)
}

func TestEnsureFolderOnFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "Output")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0644))

	_, err := NewLocal().EnsureFolder(file)
	assert.Error(t, err)
}

func TestStoreFrame(t *testing.T) {
	svc := NewLocal()
	folder := t.TempDir()

	frame := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 255, 0), 48, 64, gocv.MatTypeCV8UC3)
	defer frame.Close()

	path, err := svc.StoreFrame(context.Background(), folder, FrameName(7), frame)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(folder, "frame_00007.png"), path)
	assert.FileExists(t, path)

	img := gocv.IMRead(path, gocv.IMReadColor)
	defer img.Close()
	assert.Equal(t, 64, img.Cols())
	assert.Equal(t, 48, img.Rows())
}

func TestStoreEmptyFrame(t *testing.T) {
	empty := gocv.NewMat()
	defer empty.Close()

	_, err := NewLocal().StoreFrame(context.Background(), t.TempDir(), FrameName(0), empty)
	assert.Error(t, err)
}

func TestNewPicksImplementation(t *testing.T) {
	svc, err := New(context.Background(), config.StorageParameters{Type: "local"})
	require.NoError(t, err)
	assert.IsType(t, &localService{}, svc)

	_, err = New(context.Background(), config.StorageParameters{Type: "ftp"})
	assert.Error(t, err)
}

func TestObjectKey(t *testing.T) {
	assert.Equal(t, "Output2/frame_00001.png", objectKey("/data/Output2", "frame_00001.png"))
	assert.Equal(t, "Output/frame_00001.png", objectKey("Output/", "frame_00001.png"))
}

func TestNewMinioUnreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	_, err := NewMinio(ctx, config.StorageParameters{
		Type:      "minio",
		Endpoint:  "127.0.0.1:1",
		AccessKey: "minioadmin",
		SecretKey: "minioadmin",
		Bucket:    "frames",
	}, NewLocal())
	assert.Error(t, err)
}
