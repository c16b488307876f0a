package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tariffsync/tariff-service/internal/tariff"
)

// BuildArchiveKey builds the storage key for a published document
func BuildArchiveKey(target string, publishedAt time.Time, fingerprint string) string {
	short := fingerprint
	if len(short) > 12 {
		short = short[:12]
	}
	return fmt.Sprintf("archives/%s/%s/%s-%s.json",
		target, publishedAt.UTC().Format("2006-01-02"), publishedAt.UTC().Format("150405"), short)
}

// ArchiveDocument stores an indented copy of doc with its metadata
func ArchiveDocument(ctx context.Context, s Storage, target string, doc *tariff.TariffDocument, fingerprint string, publishedAt time.Time) (*FileInfo, error) {
	if doc == nil {
		return nil, tariff.ErrNilDocument
	}
	content, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}

	key := BuildArchiveKey(target, publishedAt, fingerprint)
	meta := &Metadata{
		ContentType: "application/json",
		Target:      target,
		Code:        doc.Code,
		Fingerprint: fingerprint,
		PublishedAt: publishedAt,
	}
	if err := s.Put(ctx, key, content, meta); err != nil {
		return nil, err
	}

	return &FileInfo{
		Key:         key,
		Size:        int64(len(content)),
		Checksum:    ComputeChecksum(content),
		ContentType: meta.ContentType,
		ModifiedAt:  publishedAt,
		Metadata:    meta,
	}, nil
}

// LoadDocument reads an archived document back
func LoadDocument(ctx context.Context, s Storage, key string) (*tariff.TariffDocument, error) {
	content, err := s.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	var doc tariff.TariffDocument
	if err := json.Unmarshal(content, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode archived document %s: %w", key, err)
	}
	return &doc, nil
}
