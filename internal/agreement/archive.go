package agreement

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	"github.com/shinyyama/agri-market-backend/internal/model"
	"google.golang.org/api/option"
)

// Archiver stores rendered agreements in a Cloud Storage bucket served
// through Firebase download tokens.
type Archiver struct {
	client *storage.Client
	bucket string
	now    func() time.Time
}

func NewArchiver(ctx context.Context, bucket, credentialsFile string) (*Archiver, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("storage client: %w", err)
	}
	return &Archiver{client: client, bucket: bucket, now: func() time.Time { return time.Now().UTC() }}, nil
}

func (a *Archiver) Archive(ctx context.Context, o *model.Order, crop *model.Crop) (string, error) {
	data, err := Render(o, crop, a.now())
	if err != nil {
		return "", fmt.Errorf("render agreement: %w", err)
	}
	return a.upload(ctx, ObjectPath(o), data)
}

func (a *Archiver) Close() error {
	return a.client.Close()
}

func ObjectPath(o *model.Order) string {
	return fmt.Sprintf("agreements/negotiation-%d/order-%d.pdf", o.NegotiationID, o.ID)
}

func (a *Archiver) upload(ctx context.Context, objectPath string, data []byte) (string, error) {
	token := uuid.NewString()
	w := a.client.Bucket(a.bucket).Object(objectPath).NewWriter(ctx)
	w.ContentType = "application/pdf"
	w.Metadata = map[string]string{
		"firebaseStorageDownloadTokens": token,
	}
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}
	return DownloadURL(a.bucket, objectPath, token), nil
}

func DownloadURL(bucket, objectPath, token string) string {
	return fmt.Sprintf("https://firebasestorage.googleapis.com/v0/b/%s/o/%s?alt=media&token=%s",
		bucket, url.PathEscape(objectPath), token)
}
