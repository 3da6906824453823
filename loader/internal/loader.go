package internal

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"qaforge/model"
	"qaforge/types"

	"github.com/google/uuid"
)

// FileLoader watches the source directory for dropped requirement
// documents, parses them per extension, splits them into chunks and hands
// the resulting documents over for saving.
type FileLoader struct {
	cfg      types.Config
	embedder model.EmbedderInterface
	splitter *Splitter

	FileMutex       sync.Mutex
	FileFirstSeen   map[string]time.Time
	FilesProcessing map[string]bool
}

func NewFileLoader(cfg types.Config, embedder model.EmbedderInterface, splitter *Splitter) *FileLoader {
	if err := createDirectories(cfg.SourceDir, cfg.ArchiveDir, cfg.BadDir); err != nil {
		log.Printf("[LOADER] create directories: %v", err)
	}
	return &FileLoader{
		cfg:             cfg,
		embedder:        embedder,
		splitter:        splitter,
		FileFirstSeen:   make(map[string]time.Time),
		FilesProcessing: make(map[string]bool),
	}
}

// WatchFile polls the source directory and emits a file path once the
// file has stopped changing for the configured settle time.
func (l *FileLoader) WatchFile(ctx context.Context, fileChan chan<- string) {
	fmt.Printf("Start monitoring folder: %s\n", l.cfg.SourceDir)

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()
	defer fmt.Println("File watcher stopped and cleaned up")

	for {
		select {
		case <-ctx.Done():
			fmt.Println("Stopping file watcher (context cancelled)...")
			return
		case <-ticker.C:
			files, err := os.ReadDir(l.cfg.SourceDir)
			if err != nil {
				fmt.Printf("error while reading source directory: %s\n", err)
				continue
			}

			for _, file := range files {
				if file.IsDir() {
					continue
				}

				filePath := filepath.Join(l.cfg.SourceDir, file.Name())

				l.FileMutex.Lock()
				if l.FilesProcessing[filePath] {
					l.FileMutex.Unlock()
					continue
				}

				// New files are tracked first and only picked up after the
				// settle time, so half-copied files are never parsed.
				if _, exists := l.FileFirstSeen[filePath]; !exists {
					l.FileFirstSeen[filePath] = time.Now()
					fmt.Printf("New file detected: %s\n", filePath)
					l.FileMutex.Unlock()
					continue
				}

				firstSeen := l.FileFirstSeen[filePath]
				l.FileMutex.Unlock()

				if time.Since(firstSeen) > l.cfg.MonitoringTime {
					fmt.Printf("The file %s has not been modified for more than %v seconds. Start processing...\n", filePath, l.cfg.MonitoringTime.Seconds())

					l.FileMutex.Lock()
					l.FilesProcessing[filePath] = true
					l.FileMutex.Unlock()

					select {
					case fileChan <- filePath:
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}
}

// ProcessFile parses every incoming file into a chunked document.
func (l *FileLoader) ProcessFile(ctx context.Context, fileChan <-chan string, docChan chan<- *types.Document) {
	defer close(docChan)

	for {
		select {
		case <-ctx.Done():
			return
		case filePath, ok := <-fileChan:
			if !ok {
				return
			}

			doc, err := l.loadDocument(filePath)
			if err != nil {
				log.Printf("[LOADER] failed to process %s: %v", filePath, err)
				l.MoveToArchive(filePath, true)
				l.forget(filePath)
				continue
			}

			select {
			case docChan <- doc:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (l *FileLoader) loadDocument(filePath string) (*types.Document, error) {
	title, text, err := l.parseFile(filePath)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("document %s contains no text", filePath)
	}

	info, err := os.Stat(filePath)
	if err != nil {
		return nil, err
	}

	// Deterministic per source file, so re-dropping the same file updates
	// the same document instead of duplicating it.
	docID := uuid.NewMD5(uuid.NameSpaceURL, []byte(filepath.Base(filePath)))

	doc := &types.Document{
		ID:         docID,
		Title:      title,
		Source:     strings.TrimPrefix(filepath.Ext(filePath), "."),
		SourcePath: filePath,
		CreatedAt:  time.Now().UTC(),
		UpdatedAt:  info.ModTime().UTC(),
		Version:    1,
	}

	for i, content := range l.splitter.Split(text) {
		chunk := types.Chunk{
			ID:      uuid.New(),
			DocID:   docID,
			Index:   i,
			Content: content,
		}
		if l.embedder != nil {
			embedding, err := l.embedder.Embed(content)
			if err != nil {
				log.Printf("[LOADER] embedding error for chunk %d: %v", i, err)
			} else {
				chunk.Embedding = embedding
			}
		}
		doc.Chunks = append(doc.Chunks, chunk)
	}

	fmt.Printf("Loaded document %s: %d chunks\n", title, len(doc.Chunks))
	return doc, nil
}

func (l *FileLoader) parseFile(filePath string) (title, text string, err error) {
	base := filepath.Base(filePath)
	title = strings.TrimSuffix(base, filepath.Ext(base))

	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".pdf":
		if err := RemoveHeaderFooterCrop(filePath, filePath, 46, 57); err != nil {
			log.Printf("[LOADER] header/footer crop failed, using original: %v", err)
		}
		text, err = ExtractPDFText(filePath)
		return title, text, err
	case ".txt", ".md":
		data, err := os.ReadFile(filePath)
		if err != nil {
			return title, "", err
		}
		return title, string(data), nil
	default:
		return title, "", fmt.Errorf("unsupported file type: %s", filepath.Ext(filePath))
	}
}

// MoveToArchive moves a processed file out of the source directory; bad
// files land in the quarantine directory instead.
func (l *FileLoader) MoveToArchive(filePath string, bad bool) {
	destDir := l.cfg.ArchiveDir
	if bad {
		destDir = l.cfg.BadDir
	}
	destPath := filepath.Join(destDir, filepath.Base(filePath))

	if err := copyFile(filePath, destPath); err != nil {
		// The source file stays in place so the document is never lost to a
		// half-written archive copy.
		fmt.Printf("error moving file to archive: %s\n", err)
		return
	}
	if err := os.Remove(filePath); err != nil {
		fmt.Printf("error removing source file: %s\n", err)
		return
	}

	fmt.Printf("File moved to %s\n", destPath)
}

func copyFile(srcPath, destPath string) error {
	in, err := os.Open(srcPath)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(destPath)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func (l *FileLoader) forget(filePath string) {
	l.FileMutex.Lock()
	delete(l.FileFirstSeen, filePath)
	delete(l.FilesProcessing, filePath)
	l.FileMutex.Unlock()
}

// Forget clears tracking state so a re-dropped file is picked up again.
func (l *FileLoader) Forget(filePath string) {
	l.forget(filePath)
}

func createDirectories(sourceDir, archiveDir, badDir string) error {
	dirs := []string{sourceDir, archiveDir, badDir}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}
