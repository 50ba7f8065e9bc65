// Package media removes images stored with a remote media host.
package media

import (
	"context"
	"fmt"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

// ImageDeleter deletes a previously uploaded image by its public id.
type ImageDeleter interface {
	DeleteImage(ctx context.Context, publicID string) error
}

// Cloudinary deletes images from a Cloudinary account.
type Cloudinary struct {
	cld *cloudinary.Cloudinary
}

func NewCloudinary(cloudName, apiKey, apiSecret string) (*Cloudinary, error) {
	cld, err := cloudinary.NewFromParams(cloudName, apiKey, apiSecret)
	if err != nil {
		return nil, fmt.Errorf("cloudinary init: %w", err)
	}
	return &Cloudinary{cld: cld}, nil
}

// DeleteImage destroys publicID. An image that is already gone is not an
// error.
func (c *Cloudinary) DeleteImage(ctx context.Context, publicID string) error {
	res, err := c.cld.Upload.Destroy(ctx, uploader.DestroyParams{PublicID: publicID})
	if err != nil {
		return fmt.Errorf("destroy %s: %w", publicID, err)
	}
	switch res.Result {
	case "ok", "not found":
		return nil
	}
	if res.Error.Message != "" {
		return fmt.Errorf("destroy %s: %s", publicID, res.Error.Message)
	}
	return fmt.Errorf("destroy %s: unexpected result %q", publicID, res.Result)
}

// Noop is used when no media host is configured.
type Noop struct{}

func (Noop) DeleteImage(context.Context, string) error { return nil }
