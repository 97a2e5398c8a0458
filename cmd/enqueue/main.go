/**
 * Enqueue CLI
 *
 * Submits work to the evaluation worker and queries the vector index:
 *
 *   enqueue -mode eval -exam EX1 -submission SUB1 -file sheet.pdf
 *   enqueue -mode ingest -exam EX1 -version 2 -file model.pdf
 *   enqueue -mode similar -text "answer text" -limit 5
 *
 * eval stores the answer sheet, creates an evaluation job against the
 * exam's active model answer and queues it. ingest stores a model
 * answer sheet and queues its OCR and segmentation. similar embeds the
 * given text and searches indexed answer segments across submissions.
 */

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/arjun-kshirsagar/annotex/internal/config"
	"github.com/arjun-kshirsagar/annotex/internal/evaluation"
	"github.com/arjun-kshirsagar/annotex/internal/queue"
	"github.com/arjun-kshirsagar/annotex/internal/storage"
)

var supportedExtensions = map[string]bool{
	".pdf":  true,
	".png":  true,
	".jpg":  true,
	".jpeg": true,
}

func main() {
	mode := flag.String("mode", "eval", "eval | ingest | similar")
	examID := flag.String("exam", "", "exam identifier")
	submissionID := flag.String("submission", "", "submission identifier (eval mode)")
	version := flag.Int("version", 1, "model answer version (ingest mode)")
	filePath := flag.String("file", "", "path to the answer sheet")
	queryText := flag.String("text", "", "answer text to search for (similar mode)")
	limit := flag.Int("limit", 10, "maximum matches to return (similar mode)")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if *mode == "similar" {
		if *queryText == "" {
			log.Fatal("-text is required in similar mode")
		}
		if err := searchSimilar(ctx, cfg, *queryText, *limit); err != nil {
			log.Fatalf("Similarity search failed: %v", err)
		}
		return
	}

	if *examID == "" || *filePath == "" {
		flag.Usage()
		os.Exit(2)
	}

	data, err := os.ReadFile(*filePath)
	if err != nil {
		log.Fatalf("Failed to read %s: %v", *filePath, err)
	}
	if int64(len(data)) > cfg.MaxFileSize {
		log.Fatalf("File %s exceeds the %d byte limit", *filePath, cfg.MaxFileSize)
	}
	ext := strings.ToLower(filepath.Ext(*filePath))
	if !supportedExtensions[ext] {
		log.Fatalf("Unsupported file type %q (want .pdf, .png, .jpg or .jpeg)", ext)
	}

	// The CLI only writes records and files, vector indexing stays off
	storageManager, err := storage.NewManager(cfg.DatabaseURL, cfg.StorageRoot, "", "", 0)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	defer storageManager.Close()

	producer, err := queue.NewProducer(cfg.RedisURL, cfg.MaxRetries,
		time.Duration(cfg.ProcessingTimeout)*time.Second)
	if err != nil {
		log.Fatalf("Failed to initialize producer: %v", err)
	}
	defer producer.Close()

	// Status events are best effort, a missing publisher only logs
	events, err := queue.NewEventPublisher(cfg.RedisURL)
	if err != nil {
		log.Printf("Event publisher unavailable: %v", err)
		events = nil
	} else {
		defer events.Close()
	}

	switch *mode {
	case "eval":
		if *submissionID == "" {
			log.Fatal("-submission is required in eval mode")
		}
		if err := enqueueEvaluation(ctx, cfg, storageManager, producer, events, *examID, *submissionID, data, ext); err != nil {
			log.Fatalf("Failed to enqueue evaluation: %v", err)
		}
	case "ingest":
		if err := enqueueIngestion(ctx, storageManager, producer, *examID, *version, data, ext); err != nil {
			log.Fatalf("Failed to enqueue ingestion: %v", err)
		}
	default:
		log.Fatalf("Unknown mode %q (want eval, ingest or similar)", *mode)
	}
}

func enqueueEvaluation(ctx context.Context, cfg *config.Config, sm *storage.Manager, producer *queue.Producer, events *queue.EventPublisher, examID, submissionID string, data []byte, ext string) error {
	modelAnswer, err := sm.Postgres.GetActiveModelAnswer(ctx, examID)
	if err != nil {
		return fmt.Errorf("no active model answer for exam %s: %w", examID, err)
	}
	if len(modelAnswer.Segments) == 0 {
		return fmt.Errorf("model answer %s has not been ingested yet", modelAnswer.ID)
	}

	path, checksum, err := sm.Files.SaveBytes(data, examID, submissionID, "original"+ext)
	if err != nil {
		return err
	}

	job := &storage.EvaluationJob{
		SubmissionID:     submissionID,
		ExamID:           examID,
		ModelAnswerID:    modelAnswer.ID,
		OriginalFilePath: path,
	}
	if err := sm.Postgres.CreateJob(ctx, job); err != nil {
		return err
	}
	if events != nil {
		events.PublishStatus(ctx, job.ID, storage.StatusQueued, "")
	}

	if err := producer.EnqueueEvaluation(job.ID); err != nil {
		return err
	}

	log.Printf("Queued evaluation job %s (submission %s, checksum %s)", job.ID, submissionID, checksum[:12])
	return nil
}

func enqueueIngestion(ctx context.Context, sm *storage.Manager, producer *queue.Producer, examID string, version int, data []byte, ext string) error {
	path, checksum, err := sm.Files.SaveBytes(data, examID, "model-answers", fmt.Sprintf("v%d%s", version, ext))
	if err != nil {
		return err
	}

	modelAnswer := &storage.ModelAnswer{
		ExamID:   examID,
		Version:  version,
		FilePath: path,
	}
	if err := sm.Postgres.CreateModelAnswer(ctx, modelAnswer); err != nil {
		return err
	}

	if err := producer.EnqueueModelAnswerIngestion(modelAnswer.ID); err != nil {
		return err
	}

	log.Printf("Queued model answer ingestion %s (exam %s v%d, checksum %s)", modelAnswer.ID, examID, version, checksum[:12])
	return nil
}

// searchSimilar embeds the query text and lists the closest indexed
// answer segments across submissions
func searchSimilar(ctx context.Context, cfg *config.Config, text string, limit int) error {
	sm, err := storage.NewManager(cfg.DatabaseURL, cfg.StorageRoot,
		cfg.QdrantURL, cfg.QdrantCollection, cfg.EmbeddingDimensions)
	if err != nil {
		return err
	}
	defer sm.Close()

	embedder, err := evaluation.NewEmbedder(cfg)
	if err != nil {
		return err
	}
	embeddings, err := embedder.EmbedBatch(ctx, []string{text})
	if err != nil {
		return err
	}
	if len(embeddings) != 1 {
		return fmt.Errorf("expected one embedding, got %d", len(embeddings))
	}

	vector := make([]float32, len(embeddings[0]))
	for i, v := range embeddings[0] {
		vector[i] = float32(v)
	}

	matches, err := sm.SearchSimilarSegments(ctx, vector, limit)
	if err != nil {
		return err
	}
	if len(matches) == 0 {
		log.Println("No similar segments found")
		return nil
	}
	for _, match := range matches {
		log.Printf("score=%.4f exam=%s job=%s question=%d verdict=%s",
			match.Score, match.ExamID, match.JobID, match.QuestionNumber, match.Verdict)
	}
	return nil
}
