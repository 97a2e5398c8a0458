/**
 * Evaluation processor for the Annotex worker
 *
 * Orchestrates the evaluation pipeline:
 * - Load job and model answer
 * - OCR the student answer sheet
 * - Segment answers by question
 * - Score each segment against the model answer (one embedding batch)
 * - Render verdict annotations onto the submission
 * - Persist segments, results and the annotated file
 *
 * Also handles model answer ingestion: OCR + segmentation of a
 * reference sheet, persisted as the exam's segment map.
 */

package processor

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/arjun-kshirsagar/annotex/internal/annotation"
	apperrors "github.com/arjun-kshirsagar/annotex/internal/errors"
	"github.com/arjun-kshirsagar/annotex/internal/evaluation"
	"github.com/arjun-kshirsagar/annotex/internal/ocr"
	"github.com/arjun-kshirsagar/annotex/internal/segmentation"
	"github.com/arjun-kshirsagar/annotex/internal/storage"
)

// EventPublisher broadcasts job status transitions. Publish failures
// must not fail the pipeline.
type EventPublisher interface {
	PublishStatus(ctx context.Context, jobID, status, message string)
}

// Config holds processor dependencies
type Config struct {
	Storage      *storage.Manager
	OCR          ocr.Provider
	Segmentation *segmentation.Service
	Engine       *evaluation.Engine
	Embedder     evaluation.Embedder // used for optional vector indexing
	Renderer     *annotation.Renderer
	Previewer    *annotation.Previewer
	Events       EventPublisher // optional
}

// Summary reports the outcome of one evaluation job
type Summary struct {
	JobID           string         `json:"job_id"`
	SegmentCount    int            `json:"segment_count"`
	Verdicts        map[string]int `json:"verdicts"`
	Unscored        int            `json:"unscored"`
	AnnotatedFileID string         `json:"annotated_file_id"`
}

// EvaluationProcessor runs evaluation and ingestion pipelines
type EvaluationProcessor struct {
	storage      *storage.Manager
	ocr          ocr.Provider
	segmentation *segmentation.Service
	engine       *evaluation.Engine
	embedder     evaluation.Embedder
	renderer     *annotation.Renderer
	previewer    *annotation.Previewer
	events       EventPublisher
}

// NewEvaluationProcessor creates a processor
func NewEvaluationProcessor(cfg *Config) (*EvaluationProcessor, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if cfg.Storage == nil {
		return nil, fmt.Errorf("storage manager is required")
	}
	if cfg.OCR == nil {
		return nil, fmt.Errorf("OCR provider is required")
	}
	if cfg.Engine == nil {
		return nil, fmt.Errorf("evaluation engine is required")
	}

	seg := cfg.Segmentation
	if seg == nil {
		seg = segmentation.NewService(nil)
	}
	renderer := cfg.Renderer
	if renderer == nil {
		renderer = annotation.NewRenderer(0.3)
	}
	previewer := cfg.Previewer
	if previewer == nil {
		previewer = annotation.NewPreviewer(150, 0.3)
	}

	return &EvaluationProcessor{
		storage:      cfg.Storage,
		ocr:          cfg.OCR,
		segmentation: seg,
		engine:       cfg.Engine,
		embedder:     cfg.Embedder,
		renderer:     renderer,
		previewer:    previewer,
		events:       cfg.Events,
	}, nil
}

// publish sends a status event when a publisher is configured
func (p *EvaluationProcessor) publish(ctx context.Context, jobID, status, message string) {
	if p.events != nil {
		p.events.PublishStatus(ctx, jobID, status, message)
	}
}

// ProcessEvaluation runs the full evaluation pipeline for a job
func (p *EvaluationProcessor) ProcessEvaluation(ctx context.Context, jobID string) (*Summary, error) {
	log.Printf("[Job %s] Starting evaluation pipeline", jobID)

	// Step 1: Load job and model answer
	log.Printf("[Job %s] Step 1: Loading job and model answer", jobID)
	job, err := p.storage.Postgres.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	attempts, err := p.storage.Postgres.MarkJobProcessing(ctx, jobID)
	if err != nil {
		return nil, err
	}
	p.publish(ctx, jobID, storage.StatusProcessing, "")
	log.Printf("[Job %s] Attempt %d (submission %s, exam %s)", jobID, attempts, job.SubmissionID, job.ExamID)

	modelAnswer, err := p.storage.Postgres.GetModelAnswer(ctx, job.ModelAnswerID)
	if err != nil {
		return nil, err
	}

	// Step 2: OCR student answer sheet
	log.Printf("[Job %s] Step 2: Running OCR on %s", jobID, job.OriginalFilePath)
	fileData, err := p.storage.Files.LoadBytes(job.OriginalFilePath)
	if err != nil {
		return nil, err
	}

	ocrResult, err := p.ocr.ExtractText(ctx, fileData, job.OriginalFilePath)
	if err != nil {
		if apperrors.CodeOf(err) == "" {
			err = apperrors.NewOCRFailedError(jobID, err)
		}
		return nil, err
	}
	log.Printf("[Job %s] OCR complete: %d pages, %d blocks", jobID, len(ocrResult.Pages), len(ocrResult.AllBlocks()))

	// Step 3: Segment student answers
	log.Printf("[Job %s] Step 3: Segmenting answers", jobID)
	studentSegments := p.segmentation.SegmentByQuestion(ocrResult)
	modelSegments := modelAnswer.Segments
	log.Printf("[Job %s] Segmented: %d student segments, %d model segments",
		jobID, len(studentSegments), len(modelSegments))

	// Step 4: Persist segments and collect scoring pairs
	log.Printf("[Job %s] Step 4: Evaluating segments", jobID)
	type scoredSegment struct {
		record  *storage.AnswerSegment
		segment segmentation.Segment
	}

	var toScore []scoredSegment
	var studentTexts, modelTexts []string
	unscored := 0

	for _, seg := range studentSegments {
		record := &storage.AnswerSegment{
			JobID:          jobID,
			QuestionNumber: seg.QuestionNumber,
			ExtractedText:  seg.Text,
			BoundingBox:    seg.BoundingBox,
		}
		if err := p.storage.Postgres.UpsertAnswerSegment(ctx, record); err != nil {
			return nil, err
		}

		modelSeg, ok := modelSegments[strconv.Itoa(seg.QuestionNumber)]
		if !ok {
			log.Printf("[Job %s] No model answer for question %d", jobID, seg.QuestionNumber)
			unscored++
			continue
		}

		toScore = append(toScore, scoredSegment{record: record, segment: seg})
		studentTexts = append(studentTexts, seg.Text)
		modelTexts = append(modelTexts, modelSeg.Text)
	}

	scores, err := p.engine.EvaluateBatch(ctx, studentTexts, modelTexts)
	if err != nil {
		return nil, err
	}

	verdicts := map[string]int{"correct": 0, "partial": 0, "incorrect": 0}
	specs := make([]annotation.Spec, 0, len(scores))

	for i, score := range scores {
		item := toScore[i]
		verdicts[string(score.Verdict)]++

		result := &storage.EvaluationResult{
			SegmentID:            item.record.ID,
			ModelAnswerReference: score.ModelAnswerReference,
			SimilarityScore:      score.SimilarityScore,
			Verdict:              string(score.Verdict),
			Confidence:           score.Confidence,
		}
		if err := p.storage.Postgres.UpsertEvaluationResult(ctx, result); err != nil {
			return nil, err
		}

		specs = append(specs, annotation.Spec{
			BoundingBox:    item.segment.BoundingBox,
			Verdict:        score.Verdict,
			QuestionNumber: item.segment.QuestionNumber,
		})
	}
	log.Printf("[Job %s] Evaluation complete: correct=%d partial=%d incorrect=%d unscored=%d",
		jobID, verdicts["correct"], verdicts["partial"], verdicts["incorrect"], unscored)

	// Step 5: Index segment vectors (optional, non-fatal)
	if p.storage.Qdrant != nil && p.embedder != nil && len(studentTexts) > 0 {
		log.Printf("[Job %s] Step 5: Indexing segment vectors", jobID)
		meta := make([]segmentMeta, len(scores))
		for i, score := range scores {
			meta[i] = segmentMeta{
				questionNumber: toScore[i].segment.QuestionNumber,
				verdict:        string(score.Verdict),
				score:          score.SimilarityScore,
			}
		}
		p.indexSegments(ctx, job, studentTexts, meta)
	}

	// Step 6: Render annotations
	log.Printf("[Job %s] Step 6: Rendering annotations", jobID)
	annotatedData, annotatedName, err := p.renderAnnotated(fileData, job.OriginalFilePath, ocrResult, specs)
	if err != nil {
		return nil, err
	}

	// Step 7: Save annotated file and record
	log.Printf("[Job %s] Step 7: Saving annotated file", jobID)
	annotatedPath, checksum, err := p.storage.Files.SaveBytes(annotatedData, job.ExamID, job.SubmissionID, annotatedName)
	if err != nil {
		return nil, err
	}

	annotatedFile := &storage.AnnotatedFile{
		JobID:        jobID,
		SubmissionID: job.SubmissionID,
		ExamID:       job.ExamID,
		FilePath:     annotatedPath,
		Checksum:     checksum,
	}
	if err := p.storage.Postgres.UpsertAnnotatedFile(ctx, annotatedFile); err != nil {
		return nil, err
	}

	// Step 8: Finalize job
	if err := p.storage.Postgres.MarkJobCompleted(ctx, jobID); err != nil {
		return nil, err
	}
	p.publish(ctx, jobID, storage.StatusCompleted, "")

	log.Printf("[Job %s] Evaluation pipeline complete (annotated file %s)", jobID, annotatedFile.ID)
	return &Summary{
		JobID:           jobID,
		SegmentCount:    len(studentSegments),
		Verdicts:        verdicts,
		Unscored:        unscored,
		AnnotatedFileID: annotatedFile.ID,
	}, nil
}

// renderAnnotated produces the annotated artifact. PDFs get an
// incremental update; image submissions get a rasterized overlay sized
// from the OCR page geometry.
func (p *EvaluationProcessor) renderAnnotated(fileData []byte, path string, ocrResult *ocr.Result, specs []annotation.Spec) ([]byte, string, error) {
	if strings.HasSuffix(strings.ToLower(path), ".pdf") {
		data, err := p.renderer.RenderAnnotations(fileData, specs)
		if err != nil {
			return nil, "", err
		}
		return data, "annotated.pdf", nil
	}

	pageW, pageH := 612.0, 792.0
	if len(ocrResult.Pages) > 0 && ocrResult.Pages[0].Width > 0 && ocrResult.Pages[0].Height > 0 {
		pageW = ocrResult.Pages[0].Width
		pageH = ocrResult.Pages[0].Height
	}
	data, err := p.previewer.RenderCanvas(pageW, pageH, specs)
	if err != nil {
		return nil, "", apperrors.NewRenderFailedError("", err)
	}
	return data, "annotated.png", nil
}

// indexSegments embeds student texts and upserts them into the vector
// index. Failures are logged, never fatal.
func (p *EvaluationProcessor) indexSegments(ctx context.Context, job *storage.EvaluationJob, texts []string, meta []segmentMeta) {
	embeddings, err := p.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		log.Printf("[Job %s] Skipping vector indexing: %v", job.ID, err)
		return
	}
	if len(embeddings) != len(meta) {
		log.Printf("[Job %s] Skipping vector indexing: embedding count mismatch", job.ID)
		return
	}

	for i, embedding := range embeddings {
		vector := make([]float32, len(embedding))
		for j, v := range embedding {
			vector[j] = float32(v)
		}
		p.storage.IndexSegmentVector(ctx, &storage.SegmentVector{
			Vector:         vector,
			JobID:          job.ID,
			ExamID:         job.ExamID,
			QuestionNumber: meta[i].questionNumber,
			Verdict:        meta[i].verdict,
			Score:          meta[i].score,
		})
	}
}

type segmentMeta struct {
	questionNumber int
	verdict        string
	score          float64
}

// ProcessModelAnswerIngestion runs OCR and segmentation over a model
// answer sheet and persists its segment map
func (p *EvaluationProcessor) ProcessModelAnswerIngestion(ctx context.Context, modelAnswerID string) error {
	log.Printf("[ModelAnswer %s] Starting ingestion pipeline", modelAnswerID)

	modelAnswer, err := p.storage.Postgres.GetModelAnswer(ctx, modelAnswerID)
	if err != nil {
		return err
	}

	fileData, err := p.storage.Files.LoadBytes(modelAnswer.FilePath)
	if err != nil {
		return err
	}

	ocrResult, err := p.ocr.ExtractText(ctx, fileData, modelAnswer.FilePath)
	if err != nil {
		if apperrors.CodeOf(err) == "" {
			err = apperrors.NewOCRFailedError("", err)
		}
		return err
	}

	segments := p.segmentation.SegmentsByNumber(ocrResult)
	if err := p.storage.Postgres.SaveModelAnswerData(ctx, modelAnswerID, ocrResult, segments); err != nil {
		return err
	}

	if err := p.storage.Postgres.ActivateModelAnswer(ctx, modelAnswerID, modelAnswer.ExamID); err != nil {
		return err
	}

	log.Printf("[ModelAnswer %s] Ingestion complete: %d segments for exam %s",
		modelAnswerID, len(segments), modelAnswer.ExamID)
	return nil
}

// MarkJobFailed records a terminal failure and publishes the event
func (p *EvaluationProcessor) MarkJobFailed(ctx context.Context, jobID, message string) error {
	if err := p.storage.Postgres.MarkJobFailed(ctx, jobID, message); err != nil {
		return err
	}
	p.publish(ctx, jobID, storage.StatusFailed, message)
	return nil
}
