package remote

import (
	"context"
	"errors"
	"fmt"
	"path"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/finey-app/finey/internal/models"
)

// ErrInvalidProof is returned for proofs without a usable filename or content.
var ErrInvalidProof = errors.New("invalid proof")

// ProofStore uploads completion proofs to a storage bucket.
type ProofStore struct {
	client *storage.Client
	bucket string
}

// NewProofStore connects to bucket.
func NewProofStore(ctx context.Context, bucket string, opts ...option.ClientOption) (*ProofStore, error) {
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return &ProofStore{client: client, bucket: bucket}, nil
}

// Close releases the client.
func (p *ProofStore) Close() error {
	return p.client.Close()
}

// ProofObjectName returns the object path a proof is stored under.
func ProofObjectName(userID string, proof models.Proof) (string, error) {
	name := path.Base(path.Clean("/" + proof.Filename))
	if name == "/" || name == "." || userID == "" {
		return "", fmt.Errorf("%w: missing filename or owner", ErrInvalidProof)
	}
	return userID + "/" + name, nil
}

// Upload stores proof for task and returns the object reference.
func (p *ProofStore) Upload(ctx context.Context, userID string, task models.Task, proof models.Proof) (string, error) {
	name, err := ProofObjectName(userID, proof)
	if err != nil {
		return "", err
	}
	if len(proof.Content) == 0 {
		return "", fmt.Errorf("%w: empty content", ErrInvalidProof)
	}

	w := p.client.Bucket(p.bucket).Object(name).NewWriter(ctx)
	w.ContentType = proof.ContentType
	w.Metadata = map[string]string{
		"taskId":      task.ID,
		"taskTitle":   task.Name,
		"description": proof.Description,
	}
	if _, err := w.Write(proof.Content); err != nil {
		w.Close()
		return "", fmt.Errorf("upload proof: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("upload proof: %w", err)
	}
	return name, nil
}
