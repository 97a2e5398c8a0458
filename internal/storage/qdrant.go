/**
 * Qdrant vector index for scored answer segments
 *
 * Optional component: when configured, segment embeddings are upserted
 * after evaluation so graders can search for similar answers across
 * submissions. Uses Qdrant's native gRPC API.
 */

package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	qdrant "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// SegmentVector is one scored segment embedding with its metadata
type SegmentVector struct {
	ID             string
	Vector         []float32
	JobID          string
	ExamID         string
	QuestionNumber int
	Verdict        string
	Score          float64
}

// QdrantClient handles vector index operations
type QdrantClient struct {
	client           qdrant.PointsClient
	collectionClient qdrant.CollectionsClient
	conn             *grpc.ClientConn
	collectionName   string
	vectorSize       uint64
}

// NewQdrantClient creates a new Qdrant client and ensures the segment
// collection exists with the given vector size
func NewQdrantClient(address, collectionName string, vectorSize int) (*QdrantClient, error) {
	if address == "" {
		return nil, fmt.Errorf("qdrant address is required")
	}
	if collectionName == "" {
		return nil, fmt.Errorf("collection name is required")
	}
	if vectorSize <= 0 {
		return nil, fmt.Errorf("vector size must be positive, got %d", vectorSize)
	}

	conn, err := grpc.Dial(address, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Qdrant: %w", err)
	}

	qc := &QdrantClient{
		client:           qdrant.NewPointsClient(conn),
		collectionClient: qdrant.NewCollectionsClient(conn),
		conn:             conn,
		collectionName:   collectionName,
		vectorSize:       uint64(vectorSize),
	}

	if err := qc.ensureCollection(context.Background()); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ensure collection: %w", err)
	}

	return qc, nil
}

// ensureCollection creates the collection if it doesn't exist
func (q *QdrantClient) ensureCollection(ctx context.Context) error {
	listResp, err := q.collectionClient.List(ctx, &qdrant.ListCollectionsRequest{})
	if err != nil {
		return fmt.Errorf("failed to list collections: %w", err)
	}

	for _, col := range listResp.Collections {
		if col.Name == q.collectionName {
			return nil
		}
	}

	_, err = q.collectionClient.Create(ctx, &qdrant.CreateCollection{
		CollectionName: q.collectionName,
		VectorsConfig: &qdrant.VectorsConfig{
			Config: &qdrant.VectorsConfig_Params{
				Params: &qdrant.VectorParams{
					Size:     q.vectorSize,
					Distance: qdrant.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}
	return nil
}

// UpsertSegmentVector stores or updates a segment embedding
func (q *QdrantClient) UpsertSegmentVector(ctx context.Context, sv *SegmentVector) error {
	if sv == nil {
		return fmt.Errorf("segment vector is required")
	}
	if uint64(len(sv.Vector)) != q.vectorSize {
		return fmt.Errorf("invalid vector dimensions: expected %d, got %d", q.vectorSize, len(sv.Vector))
	}
	if sv.ID == "" {
		sv.ID = uuid.New().String()
	}

	payload := map[string]*qdrant.Value{
		"job_id": {Kind: &qdrant.Value_StringValue{StringValue: sv.JobID}},
		"exam_id": {Kind: &qdrant.Value_StringValue{StringValue: sv.ExamID}},
		"question_number": {Kind: &qdrant.Value_IntegerValue{IntegerValue: int64(sv.QuestionNumber)}},
		"verdict": {Kind: &qdrant.Value_StringValue{StringValue: sv.Verdict}},
		"similarity_score": {Kind: &qdrant.Value_DoubleValue{DoubleValue: sv.Score}},
	}

	point := &qdrant.PointStruct{
		Id: &qdrant.PointId{
			PointIdOptions: &qdrant.PointId_Uuid{Uuid: sv.ID},
		},
		Vectors: &qdrant.Vectors{
			VectorsOptions: &qdrant.Vectors_Vector{
				Vector: &qdrant.Vector{Data: sv.Vector},
			},
		},
		Payload: payload,
	}

	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.collectionName,
		Points:         []*qdrant.PointStruct{point},
	})
	if err != nil {
		return fmt.Errorf("failed to upsert segment vector: %w", err)
	}
	return nil
}

// SearchSimilarSegments finds segments whose embeddings are closest to
// the query vector
func (q *QdrantClient) SearchSimilarSegments(ctx context.Context, queryVector []float32, limit int) ([]*SegmentVector, error) {
	if uint64(len(queryVector)) != q.vectorSize {
		return nil, fmt.Errorf("invalid query vector dimensions: expected %d, got %d", q.vectorSize, len(queryVector))
	}
	if limit <= 0 {
		limit = 10
	}

	results, err := q.client.Search(ctx, &qdrant.SearchPoints{
		CollectionName: q.collectionName,
		Vector:         queryVector,
		Limit:          uint64(limit),
		WithPayload: &qdrant.WithPayloadSelector{
			SelectorOptions: &qdrant.WithPayloadSelector_Enable{Enable: true},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search segment vectors: %w", err)
	}

	points := make([]*SegmentVector, 0, len(results.Result))
	for _, result := range results.Result {
		sv := &SegmentVector{Score: float64(result.Score)}
		if result.Id != nil {
			sv.ID = result.Id.GetUuid()
		}
		if result.Payload != nil {
			if v, ok := result.Payload["job_id"]; ok {
				sv.JobID = v.GetStringValue()
			}
			if v, ok := result.Payload["exam_id"]; ok {
				sv.ExamID = v.GetStringValue()
			}
			if v, ok := result.Payload["question_number"]; ok {
				sv.QuestionNumber = int(v.GetIntegerValue())
			}
			if v, ok := result.Payload["verdict"]; ok {
				sv.Verdict = v.GetStringValue()
			}
		}
		points = append(points, sv)
	}
	return points, nil
}

// Close closes the Qdrant client connection
func (q *QdrantClient) Close() error {
	if q.conn != nil {
		return q.conn.Close()
	}
	return nil
}
