// Package upload moves store imagery from the API surface into object
// storage.
package upload

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// ErrValidation marks an upload rejected before any relay call.
var ErrValidation = errors.New("upload validation failed")

// File is a raw upload as received from the client.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// Relay receives the encoded payload and returns the public URL of the
// stored object.
type Relay interface {
	Store(ctx context.Context, fileName, fileType, fileData string) (string, error)
}

// Orchestrator validates and encodes uploads before handing them to the
// relay. One attempt per upload, no retry, no dedup.
type Orchestrator struct {
	relay Relay
}

func NewOrchestrator(relay Relay) *Orchestrator {
	return &Orchestrator{relay: relay}
}

// Upload stores one image and returns its public URL.
func (o *Orchestrator) Upload(ctx context.Context, file File) (string, error) {
	if !strings.HasPrefix(file.ContentType, "image/") {
		return "", fmt.Errorf("%w: %q is not an image content type", ErrValidation, file.ContentType)
	}

	encoded := base64.StdEncoding.EncodeToString(file.Data)
	url, err := o.relay.Store(ctx, file.Name, file.ContentType, encoded)
	if err != nil {
		return "", err
	}
	if url == "" {
		return "", errors.New("upload relay returned no URL")
	}
	return url, nil
}
