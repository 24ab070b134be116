package storage

import (
	"context"
	"fmt"
	"image"
	"net/url"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
)

// AzureScheme addresses blobs as azblob://<container>/<blob>.
const AzureScheme = "azblob"

type azureStorage struct {
	client *azblob.Client
}

// NewAzureStorage creates a fetcher for azblob URIs in the given account.
func NewAzureStorage(accountName string, accountKey string) (ImageFetcher, error) {
	credential, err := azblob.NewSharedKeyCredential(accountName, accountKey)
	if err != nil {
		return nil, fmt.Errorf("azure credential: %w", err)
	}

	client, err := azblob.NewClientWithSharedKeyCredential(
		fmt.Sprintf("https://%s.blob.core.windows.net", accountName),
		credential,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("azure client: %w", err)
	}

	return &azureStorage{client: client}, nil
}

// ParseBlobURI splits azblob://<container>/<blob> into its parts.
func ParseBlobURI(uri string) (container, blob string, err error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", "", fmt.Errorf("invalid blob URI: %w", err)
	}
	if u.Scheme != AzureScheme {
		return "", "", fmt.Errorf("invalid blob URI: scheme %q", u.Scheme)
	}
	container = u.Host
	blob = strings.TrimPrefix(u.Path, "/")
	if container == "" || blob == "" {
		return "", "", fmt.Errorf("invalid blob URI: container and blob are required")
	}
	return container, blob, nil
}

func (s *azureStorage) FetchImage(ctx context.Context, uri string) (image.Image, error) {
	container, blob, err := ParseBlobURI(uri)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.DownloadStream(ctx, container, blob, nil)
	if err != nil {
		return nil, fmt.Errorf("download failed: %w", err)
	}
	body := resp.Body
	defer body.Close()

	img, _, err := image.Decode(body)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}
