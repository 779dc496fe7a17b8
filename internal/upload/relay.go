package upload

import (
	"context"
	"encoding/base64"
	"fmt"
	"path"
	"strings"

	"galleria/api/internal/util"
)

// ObjectStore persists an object and returns its public URL.
type ObjectStore interface {
	Put(ctx context.Context, objectName, contentType string, data []byte) (string, error)
}

// StorageRelay decodes upload payloads and writes them to object storage
// under a generated name. The caller's path never reaches the bucket.
type StorageRelay struct {
	objects ObjectStore
}

func NewStorageRelay(objects ObjectStore) *StorageRelay {
	return &StorageRelay{objects: objects}
}

func (r *StorageRelay) Store(ctx context.Context, fileName, fileType, fileData string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(fileData)
	if err != nil {
		return "", fmt.Errorf("decode upload payload: %w", err)
	}

	objectName := util.RandomHex(16) + extensionOf(fileName)
	url, err := r.objects.Put(ctx, objectName, fileType, data)
	if err != nil {
		return "", fmt.Errorf("store upload: %w", err)
	}
	return url, nil
}

// extensionOf returns the lowercased extension of the ASCII-stripped
// filename, or empty when none survives.
func extensionOf(fileName string) string {
	var b strings.Builder
	for _, r := range fileName {
		if r < 128 {
			b.WriteRune(r)
		}
	}
	ext := strings.ToLower(path.Ext(b.String()))
	if ext == "." {
		return ""
	}
	return ext
}
