package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/cloo-solutions/bomsearch/internal/domain"
	"github.com/cloo-solutions/bomsearch/internal/storage"
)

// BOMDocument is a batch input file. Files may also hold a bare array of
// line items.
type BOMDocument struct {
	Items    []domain.BomLineItem `json:"items"`
	Mode     string               `json:"mode,omitempty"`
	Warnings []string             `json:"warnings,omitempty"`
}

// ParseBOM decodes a BOM document.
func ParseBOM(data []byte) (*BOMDocument, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("empty BOM document")
	}

	var doc BOMDocument
	if data[0] == '[' {
		if err := json.Unmarshal(data, &doc.Items); err != nil {
			return nil, fmt.Errorf("invalid BOM document: %w", err)
		}
	} else if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("invalid BOM document: %w", err)
	}

	if len(doc.Items) == 0 {
		return nil, fmt.Errorf("BOM document has no line items")
	}
	return &doc, nil
}

// ObjectStore is the subset of the S3 client used for BOM input and output.
type ObjectStore interface {
	Get(ctx context.Context, ref storage.ObjectRef) ([]byte, error)
	Put(ctx context.Context, ref storage.ObjectRef, body []byte, contentType string) error
	DownloadURL(ctx context.Context, ref storage.ObjectRef) (string, error)
}

// readSource reads a local path or an s3:// URI. store is only called for
// s3:// URIs.
func readSource(ctx context.Context, src string, store func(context.Context) (ObjectStore, error)) ([]byte, error) {
	ref, ok := storage.ParseObjectURI(src)
	if !ok {
		data, err := os.ReadFile(src)
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", src, domain.Wrap(domain.ErrBOMNotFound, err))
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", src, err)
		}
		return data, nil
	}

	s, err := store(ctx)
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, ref)
}

// writeDestination writes body to a local path or an s3:// URI. For S3 it
// returns a presigned download URL.
func writeDestination(ctx context.Context, dst string, body []byte, store func(context.Context) (ObjectStore, error)) (string, error) {
	ref, ok := storage.ParseObjectURI(dst)
	if !ok {
		if err := os.WriteFile(dst, body, 0o644); err != nil {
			return "", fmt.Errorf("failed to write %s: %w", dst, err)
		}
		return "", nil
	}

	s, err := store(ctx)
	if err != nil {
		return "", err
	}
	if err := s.Put(ctx, ref, body, "application/json"); err != nil {
		return "", err
	}
	return s.DownloadURL(ctx, ref)
}
