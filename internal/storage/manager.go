/**
 * Storage manager for the Annotex evaluation worker
 *
 * Coordinates PostgreSQL (records), local file storage (documents) and
 * the optional Qdrant index (segment vectors) behind one facade.
 */

package storage

import (
	"context"
	"fmt"
	"log"
)

// Manager coordinates database, file and vector storage
type Manager struct {
	Postgres *PostgresClient
	Files    *FileStorage
	Qdrant   *QdrantClient // nil when vector indexing is disabled
}

// NewManager creates a storage manager. qdrantAddress may be empty to
// disable vector indexing.
func NewManager(postgresURL, storageRoot, qdrantAddress, qdrantCollection string, vectorSize int) (*Manager, error) {
	postgres, err := NewPostgresClient(postgresURL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize PostgreSQL client: %w", err)
	}

	files, err := NewFileStorage(storageRoot)
	if err != nil {
		postgres.Close()
		return nil, fmt.Errorf("failed to initialize file storage: %w", err)
	}

	var qdrantClient *QdrantClient
	if qdrantAddress != "" {
		qdrantClient, err = NewQdrantClient(qdrantAddress, qdrantCollection, vectorSize)
		if err != nil {
			postgres.Close()
			return nil, fmt.Errorf("failed to initialize Qdrant client: %w", err)
		}
	}

	return &Manager{
		Postgres: postgres,
		Files:    files,
		Qdrant:   qdrantClient,
	}, nil
}

// IndexSegmentVector upserts a segment embedding when indexing is
// enabled. Index failures are logged, not fatal: the evaluation record
// in PostgreSQL remains the source of truth.
func (m *Manager) IndexSegmentVector(ctx context.Context, sv *SegmentVector) {
	if m.Qdrant == nil {
		return
	}
	if err := m.Qdrant.UpsertSegmentVector(ctx, sv); err != nil {
		log.Printf("[Storage] Failed to index segment vector for job %s question %d: %v",
			sv.JobID, sv.QuestionNumber, err)
	}
}

// SearchSimilarSegments finds indexed segments closest to the query
// vector. Requires vector indexing to be enabled.
func (m *Manager) SearchSimilarSegments(ctx context.Context, queryVector []float32, limit int) ([]*SegmentVector, error) {
	if m.Qdrant == nil {
		return nil, fmt.Errorf("vector indexing is disabled")
	}
	return m.Qdrant.SearchSimilarSegments(ctx, queryVector, limit)
}

// Close releases all underlying connections
func (m *Manager) Close() error {
	var firstErr error
	if m.Postgres != nil {
		if err := m.Postgres.Close(); err != nil {
			firstErr = err
		}
	}
	if m.Qdrant != nil {
		if err := m.Qdrant.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
