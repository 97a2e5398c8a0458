/**
 * PostgreSQL client for the Annotex evaluation worker
 *
 * Persists model answers, evaluation jobs, answer segments, evaluation
 * results and annotated file records. Segment and result writes are
 * idempotent upserts so a retried job overwrites instead of
 * duplicating.
 */

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	apperrors "github.com/arjun-kshirsagar/annotex/internal/errors"
	"github.com/arjun-kshirsagar/annotex/internal/ocr"
	"github.com/arjun-kshirsagar/annotex/internal/segmentation"
)

// Job status values
const (
	StatusQueued     = "queued"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// ModelAnswer is a versioned reference answer sheet for an exam
type ModelAnswer struct {
	ID        string
	ExamID    string
	Version   int
	FilePath  string
	OCRData   *ocr.Result
	Segments  map[string]segmentation.Segment
	IsActive  bool
	CreatedAt time.Time
}

// EvaluationJob tracks one submission through the pipeline
type EvaluationJob struct {
	ID               string
	SubmissionID     string
	ExamID           string
	ModelAnswerID    string
	OriginalFilePath string
	Status           string
	ErrorMessage     string
	Attempts         int
	CreatedAt        time.Time
	UpdatedAt        time.Time
	CompletedAt      *time.Time
}

// AnswerSegment is one detected answer region of a submission
type AnswerSegment struct {
	ID             string
	JobID          string
	QuestionNumber int
	ExtractedText  string
	BoundingBox    ocr.BoundingBox
}

// EvaluationResult is the scored outcome for one segment
type EvaluationResult struct {
	ID                   string
	SegmentID            string
	ModelAnswerReference string
	SimilarityScore      float64
	Verdict              string
	Confidence           float64
}

// AnnotatedFile records the rendered output for a job
type AnnotatedFile struct {
	ID           string
	JobID        string
	SubmissionID string
	ExamID       string
	FilePath     string
	Checksum     string
}

// PostgresClient handles database operations
type PostgresClient struct {
	db *sql.DB
}

// NewPostgresClient creates a new PostgreSQL client
func NewPostgresClient(databaseURL string) (*PostgresClient, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("database URL is required")
	}

	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(2 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresClient{db: db}, nil
}

// CreateJob inserts a new evaluation job in queued state
func (p *PostgresClient) CreateJob(ctx context.Context, job *EvaluationJob) error {
	if job.SubmissionID == "" {
		return apperrors.NewValidationError("submission ID is required")
	}
	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	if job.Status == "" {
		job.Status = StatusQueued
	}

	query := `
		INSERT INTO evaluation_jobs (
			id, submission_id, exam_id, model_answer_id,
			original_file_path, status, attempts, created_at, updated_at
		) VALUES ($1::uuid, $2, $3, $4::uuid, $5, $6, 0, NOW(), NOW())
	`

	_, err := p.db.ExecContext(ctx, query,
		job.ID, job.SubmissionID, job.ExamID, job.ModelAnswerID,
		job.OriginalFilePath, job.Status,
	)
	if err != nil {
		return apperrors.NewDatabaseFailedError(job.ID, err)
	}
	return nil
}

// GetJob loads a job by ID
func (p *PostgresClient) GetJob(ctx context.Context, jobID string) (*EvaluationJob, error) {
	query := `
		SELECT id, submission_id, exam_id, model_answer_id, original_file_path,
		       status, COALESCE(error_message, ''), attempts,
		       created_at, updated_at, completed_at
		FROM evaluation_jobs
		WHERE id = $1::uuid
	`

	var job EvaluationJob
	var completedAt sql.NullTime
	err := p.db.QueryRowContext(ctx, query, jobID).Scan(
		&job.ID, &job.SubmissionID, &job.ExamID, &job.ModelAnswerID,
		&job.OriginalFilePath, &job.Status, &job.ErrorMessage, &job.Attempts,
		&job.CreatedAt, &job.UpdatedAt, &completedAt,
	)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError("job", jobID)
	}
	if err != nil {
		return nil, apperrors.NewDatabaseFailedError(jobID, err)
	}
	if completedAt.Valid {
		job.CompletedAt = &completedAt.Time
	}
	return &job, nil
}

// MarkJobProcessing transitions a job to processing and bumps its
// attempt counter. Completed jobs are never touched; re-delivery of a
// finished job surfaces as a validation error.
func (p *PostgresClient) MarkJobProcessing(ctx context.Context, jobID string) (int, error) {
	query := `
		UPDATE evaluation_jobs
		SET status = $2, attempts = attempts + 1, error_message = NULL, updated_at = NOW()
		WHERE id = $1::uuid AND status <> $3
		RETURNING attempts
	`

	var attempts int
	err := p.db.QueryRowContext(ctx, query, jobID, StatusProcessing, StatusCompleted).Scan(&attempts)
	if err == sql.ErrNoRows {
		return 0, apperrors.NewValidationError(fmt.Sprintf("job %s is already completed or does not exist", jobID))
	}
	if err != nil {
		return 0, apperrors.NewDatabaseFailedError(jobID, err)
	}
	return attempts, nil
}

// MarkJobCompleted finalizes a successful job
func (p *PostgresClient) MarkJobCompleted(ctx context.Context, jobID string) error {
	query := `
		UPDATE evaluation_jobs
		SET status = $2, completed_at = NOW(), updated_at = NOW()
		WHERE id = $1::uuid
	`
	if _, err := p.db.ExecContext(ctx, query, jobID, StatusCompleted); err != nil {
		return apperrors.NewDatabaseFailedError(jobID, err)
	}
	return nil
}

// MarkJobFailed records a terminal failure with its message
func (p *PostgresClient) MarkJobFailed(ctx context.Context, jobID, message string) error {
	query := `
		UPDATE evaluation_jobs
		SET status = $2, error_message = $3, updated_at = NOW()
		WHERE id = $1::uuid
	`
	if _, err := p.db.ExecContext(ctx, query, jobID, StatusFailed, message); err != nil {
		return apperrors.NewDatabaseFailedError(jobID, err)
	}
	return nil
}

// CreateModelAnswer inserts a model answer version for an exam
func (p *PostgresClient) CreateModelAnswer(ctx context.Context, ma *ModelAnswer) error {
	if ma.ID == "" {
		ma.ID = uuid.New().String()
	}

	query := `
		INSERT INTO model_answers (id, exam_id, version, file_path, is_active, created_at)
		VALUES ($1::uuid, $2, $3, $4, $5, NOW())
		ON CONFLICT (exam_id, version) DO UPDATE SET
			file_path = EXCLUDED.file_path
		RETURNING id
	`
	err := p.db.QueryRowContext(ctx, query,
		ma.ID, ma.ExamID, ma.Version, ma.FilePath, ma.IsActive,
	).Scan(&ma.ID)
	if err != nil {
		return apperrors.NewDatabaseFailedError("", err)
	}
	return nil
}

// SaveModelAnswerData stores the OCR payload and segment map produced
// by model answer ingestion
func (p *PostgresClient) SaveModelAnswerData(ctx context.Context, id string, ocrData *ocr.Result, segments map[string]segmentation.Segment) error {
	ocrJSON, err := json.Marshal(ocrData)
	if err != nil {
		return fmt.Errorf("failed to marshal OCR data: %w", err)
	}
	segmentsJSON, err := json.Marshal(segments)
	if err != nil {
		return fmt.Errorf("failed to marshal segments: %w", err)
	}

	query := `
		UPDATE model_answers
		SET ocr_data = $2::jsonb, segments = $3::jsonb
		WHERE id = $1::uuid
	`
	result, err := p.db.ExecContext(ctx, query, id, ocrJSON, segmentsJSON)
	if err != nil {
		return apperrors.NewDatabaseFailedError("", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return apperrors.NewNotFoundError("model answer", id)
	}
	return nil
}

// ActivateModelAnswer makes one version active and deactivates the rest
func (p *PostgresClient) ActivateModelAnswer(ctx context.Context, id, examID string) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.NewDatabaseFailedError("", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`UPDATE model_answers SET is_active = FALSE WHERE exam_id = $1`, examID); err != nil {
		return apperrors.NewDatabaseFailedError("", err)
	}
	result, err := tx.ExecContext(ctx,
		`UPDATE model_answers SET is_active = TRUE WHERE id = $1::uuid`, id)
	if err != nil {
		return apperrors.NewDatabaseFailedError("", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return apperrors.NewNotFoundError("model answer", id)
	}

	if err := tx.Commit(); err != nil {
		return apperrors.NewDatabaseFailedError("", err)
	}
	return nil
}

// GetModelAnswer loads a model answer by ID
func (p *PostgresClient) GetModelAnswer(ctx context.Context, id string) (*ModelAnswer, error) {
	query := `
		SELECT id, exam_id, version, file_path, ocr_data, segments, is_active, created_at
		FROM model_answers
		WHERE id = $1::uuid
	`
	return p.scanModelAnswer(p.db.QueryRowContext(ctx, query, id), id)
}

// GetActiveModelAnswer loads the active model answer for an exam
func (p *PostgresClient) GetActiveModelAnswer(ctx context.Context, examID string) (*ModelAnswer, error) {
	query := `
		SELECT id, exam_id, version, file_path, ocr_data, segments, is_active, created_at
		FROM model_answers
		WHERE exam_id = $1 AND is_active = TRUE
		ORDER BY version DESC
		LIMIT 1
	`
	return p.scanModelAnswer(p.db.QueryRowContext(ctx, query, examID), examID)
}

func (p *PostgresClient) scanModelAnswer(row *sql.Row, key string) (*ModelAnswer, error) {
	var ma ModelAnswer
	var ocrJSON, segmentsJSON []byte
	err := row.Scan(
		&ma.ID, &ma.ExamID, &ma.Version, &ma.FilePath,
		&ocrJSON, &segmentsJSON, &ma.IsActive, &ma.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError("model answer", key)
	}
	if err != nil {
		return nil, apperrors.NewDatabaseFailedError("", err)
	}

	if len(ocrJSON) > 0 {
		if err := json.Unmarshal(ocrJSON, &ma.OCRData); err != nil {
			return nil, fmt.Errorf("failed to unmarshal OCR data: %w", err)
		}
	}
	if len(segmentsJSON) > 0 {
		if err := json.Unmarshal(segmentsJSON, &ma.Segments); err != nil {
			return nil, fmt.Errorf("failed to unmarshal segments: %w", err)
		}
	}
	return &ma, nil
}

// UpsertAnswerSegment writes a segment, replacing a previous attempt's
// row for the same (job, question) pair
func (p *PostgresClient) UpsertAnswerSegment(ctx context.Context, seg *AnswerSegment) error {
	if seg.ID == "" {
		seg.ID = uuid.New().String()
	}

	bboxJSON, err := json.Marshal(seg.BoundingBox)
	if err != nil {
		return fmt.Errorf("failed to marshal bounding box: %w", err)
	}

	query := `
		INSERT INTO answer_segments (id, job_id, question_number, extracted_text, bounding_box, created_at)
		VALUES ($1::uuid, $2::uuid, $3, $4, $5::jsonb, NOW())
		ON CONFLICT (job_id, question_number) DO UPDATE SET
			extracted_text = EXCLUDED.extracted_text,
			bounding_box = EXCLUDED.bounding_box
		RETURNING id
	`
	err = p.db.QueryRowContext(ctx, query,
		seg.ID, seg.JobID, seg.QuestionNumber, seg.ExtractedText, bboxJSON,
	).Scan(&seg.ID)
	if err != nil {
		return apperrors.NewDatabaseFailedError(seg.JobID, err)
	}
	return nil
}

// UpsertEvaluationResult writes a result, replacing a previous
// attempt's row for the same segment
func (p *PostgresClient) UpsertEvaluationResult(ctx context.Context, res *EvaluationResult) error {
	if res.ID == "" {
		res.ID = uuid.New().String()
	}

	query := `
		INSERT INTO evaluation_results (
			id, segment_id, model_answer_reference, similarity_score, verdict, confidence, created_at
		) VALUES ($1::uuid, $2::uuid, $3, $4, $5, $6, NOW())
		ON CONFLICT (segment_id) DO UPDATE SET
			model_answer_reference = EXCLUDED.model_answer_reference,
			similarity_score = EXCLUDED.similarity_score,
			verdict = EXCLUDED.verdict,
			confidence = EXCLUDED.confidence
		RETURNING id
	`
	err := p.db.QueryRowContext(ctx, query,
		res.ID, res.SegmentID, res.ModelAnswerReference,
		res.SimilarityScore, res.Verdict, res.Confidence,
	).Scan(&res.ID)
	if err != nil {
		return apperrors.NewDatabaseFailedError("", err)
	}
	return nil
}

// UpsertAnnotatedFile writes the annotated file record for a job
func (p *PostgresClient) UpsertAnnotatedFile(ctx context.Context, af *AnnotatedFile) error {
	if af.ID == "" {
		af.ID = uuid.New().String()
	}

	query := `
		INSERT INTO annotated_files (id, job_id, submission_id, exam_id, file_path, checksum, created_at)
		VALUES ($1::uuid, $2::uuid, $3, $4, $5, $6, NOW())
		ON CONFLICT (job_id) DO UPDATE SET
			file_path = EXCLUDED.file_path,
			checksum = EXCLUDED.checksum
		RETURNING id
	`
	err := p.db.QueryRowContext(ctx, query,
		af.ID, af.JobID, af.SubmissionID, af.ExamID, af.FilePath, af.Checksum,
	).Scan(&af.ID)
	if err != nil {
		return apperrors.NewDatabaseFailedError(af.JobID, err)
	}
	return nil
}

// Ping checks database connectivity
func (p *PostgresClient) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// Close closes the database connection
func (p *PostgresClient) Close() error {
	if p.db != nil {
		return p.db.Close()
	}
	return nil
}
