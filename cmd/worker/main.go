/**
 * Annotex evaluation worker
 *
 * Consumes evaluation and model answer ingestion tasks from Redis and
 * runs the OCR -> segmentation -> scoring -> annotation pipeline.
 */

package main

import (
	"log"
	"time"

	"github.com/joho/godotenv"

	"github.com/arjun-kshirsagar/annotex/internal/annotation"
	"github.com/arjun-kshirsagar/annotex/internal/config"
	"github.com/arjun-kshirsagar/annotex/internal/evaluation"
	"github.com/arjun-kshirsagar/annotex/internal/ocr"
	"github.com/arjun-kshirsagar/annotex/internal/processor"
	"github.com/arjun-kshirsagar/annotex/internal/queue"
	"github.com/arjun-kshirsagar/annotex/internal/segmentation"
	"github.com/arjun-kshirsagar/annotex/internal/storage"
)

func main() {
	// .env is optional, environment variables take precedence
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	log.Printf("Starting evaluation worker (ocr=%s embedder=%s concurrency=%d)",
		cfg.OCRProvider, cfg.EmbeddingProvider, cfg.WorkerConcurrency)

	storageManager, err := storage.NewManager(
		cfg.DatabaseURL, cfg.StorageRoot,
		cfg.QdrantURL, cfg.QdrantCollection, cfg.EmbeddingDimensions,
	)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	defer storageManager.Close()

	ocrProvider, err := ocr.NewProvider(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize OCR provider: %v", err)
	}

	embedder, err := evaluation.NewEmbedder(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize embedder: %v", err)
	}

	classifier, err := evaluation.NewClassifier(cfg.CorrectThreshold, cfg.PartialThreshold)
	if err != nil {
		log.Fatalf("Failed to initialize verdict classifier: %v", err)
	}

	events, err := queue.NewEventPublisher(cfg.RedisURL)
	if err != nil {
		log.Fatalf("Failed to initialize event publisher: %v", err)
	}
	defer events.Close()

	proc, err := processor.NewEvaluationProcessor(&processor.Config{
		Storage:      storageManager,
		OCR:          ocrProvider,
		Segmentation: segmentation.NewService(nil),
		Engine:       evaluation.NewEngine(embedder, classifier),
		Embedder:     embedder,
		Renderer:     annotation.NewRenderer(cfg.AnnotationOpacity),
		Previewer:    annotation.NewPreviewer(cfg.AnnotationDPI, cfg.AnnotationOpacity),
		Events:       events,
	})
	if err != nil {
		log.Fatalf("Failed to initialize processor: %v", err)
	}

	consumer, err := queue.NewConsumer(cfg, proc)
	if err != nil {
		log.Fatalf("Failed to initialize consumer: %v", err)
	}

	log.Printf("Worker ready (timeout=%s, max retries=%d)",
		time.Duration(cfg.ProcessingTimeout)*time.Second, cfg.MaxRetries)

	// Run blocks until SIGTERM or SIGINT, then drains in-flight tasks
	if err := consumer.Run(); err != nil {
		log.Fatalf("Worker stopped with error: %v", err)
	}
	log.Println("Worker shut down")
}
