package service

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"qaforge/loader/internal"
	"qaforge/store"
	"qaforge/types"

	"github.com/google/uuid"
)

type Service struct {
	logger *slog.Logger
	docs   store.DocumentStorer
	chunks store.ChunkStorer
	loader *internal.FileLoader
}

func New(docs store.DocumentStorer, chunks store.ChunkStorer, loader *internal.FileLoader) *Service {
	return &Service{
		logger: slog.Default(),
		docs:   docs,
		chunks: chunks,
		loader: loader,
	}
}

func (s *Service) Stop() {
	s.logger.Info("Loader Service stopped")
}

func (s *Service) Run() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fileChan := make(chan string, 10)
	docChan := make(chan *types.Document)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(fileChan)
		s.loader.WatchFile(ctx, fileChan)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.loader.ProcessFile(ctx, fileChan, docChan)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.DocumentSave(ctx, docChan)
	}()

	sigch := make(chan os.Signal, 1)
	signal.Notify(sigch, os.Interrupt, syscall.SIGTERM)

	<-sigch
	log.Println("Received shutdown signal, shutting down gracefully...")

	cancel()
	signal.Stop(sigch)
	close(sigch)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("All goroutines stopped successfully")
	case <-shutdownCtx.Done():
		log.Println("Timeout waiting for goroutines to stop, forcing shutdown...")
	}

	s.Stop()
	log.Println("Service stopped successfully")
}

// DocumentSave drains the document channel, replacing a document's chunks
// when the source file is newer than what the store holds.
func (s *Service) DocumentSave(ctx context.Context, docChan <-chan *types.Document) {
	for doc := range docChan {
		if !s.ShouldUpdateFile(ctx, doc.ID, doc.UpdatedAt) {
			fmt.Printf("Document %s is up to date, archiving source file\n", doc.Title)
			s.loader.MoveToArchive(doc.SourcePath, false)
			s.loader.Forget(doc.SourcePath)
			continue
		}

		if err := s.docs.SaveDocument(ctx, *doc); err != nil {
			log.Printf("[SERVICE] save document %s: %v", doc.Title, err)
			s.loader.MoveToArchive(doc.SourcePath, true)
			s.loader.Forget(doc.SourcePath)
			continue
		}

		// Chunks are immutable per document version, so a re-ingest replaces
		// the whole set instead of patching individual rows.
		if err := s.docs.DeleteChunksByDocID(ctx, doc.ID); err != nil {
			log.Printf("[SERVICE] delete stale chunks for %s: %v", doc.Title, err)
		}

		saved := 0
		for i := range doc.Chunks {
			if err := s.chunks.SaveChunk(ctx, doc.Chunks[i]); err != nil {
				log.Printf("[SERVICE] save chunk %d of %s: %v", i, doc.Title, err)
				continue
			}
			saved++
		}

		fmt.Printf("Successfully saved document %s (%d/%d chunks)\n", doc.Title, saved, len(doc.Chunks))
		s.loader.MoveToArchive(doc.SourcePath, false)
		s.loader.Forget(doc.SourcePath)
	}
}

// ShouldUpdateFile reports whether the file on disk is newer than the
// stored document. Unknown documents always load.
func (s *Service) ShouldUpdateFile(ctx context.Context, docID uuid.UUID, modTime time.Time) bool {
	doc, err := s.docs.GetDocumentByID(ctx, docID)
	if err != nil {
		return true
	}
	return modTime.After(doc.UpdatedAt)
}
