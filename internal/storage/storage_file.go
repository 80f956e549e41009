package storage

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"go.uber.org/zap"

	"imgpub/internal/config"
	"imgpub/internal/domain/models"
)

const eventsBufSize = 100

// StorageFile - in-memory storage whose changes are journaled to a file.
type StorageFile struct {
	*StorageMemory
	Events chan models.JournalEntry

	path   string
	file   io.WriteCloser
	fileMu sync.Mutex
	saving sync.WaitGroup
	closed bool
	log    *zap.SugaredLogger
}

// NewStorageFile creates a StorageFile journaling to c.LinkStorageFile.
func NewStorageFile(c *config.Config, log *zap.SugaredLogger) (*StorageFile, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	file, err := OpenFileAsWriter(c.LinkStorageFile)
	if err != nil {
		return nil, err
	}

	s := &StorageFile{
		StorageMemory: NewStorageMemory(),
		Events:        make(chan models.JournalEntry, eventsBufSize),
		path:          c.LinkStorageFile,
		file:          file,
		log:           log,
	}
	s.StorageMemory.emit = func(e models.JournalEntry) {
		s.Events <- e
	}
	return s, nil
}

// RestoreLinks replays the journal into memory and rewrites the file as a
// compact snapshot of the resulting state.
func RestoreLinks(s *StorageFile) error {
	file, err := OpenFileAsReader(s.path)
	if err != nil {
		return err
	}

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var entry models.JournalEntry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			_ = file.Close()
			return fmt.Errorf("journal %s line %d: %w", s.path, line, err)
		}
		s.StorageMemory.apply(entry)
	}
	if err := scanner.Err(); err != nil {
		_ = file.Close()
		return fmt.Errorf("read journal %s: %w", s.path, err)
	}
	_ = file.Close()

	s.fileMu.Lock()
	defer s.fileMu.Unlock()
	if err := os.Truncate(s.path, 0); err != nil {
		return fmt.Errorf("truncate journal %s: %w", s.path, err)
	}
	for _, entry := range s.StorageMemory.snapshot() {
		if err := s.writeEntry(entry); err != nil {
			return err
		}
	}
	s.log.Infow("journal restored", "path", s.path, "lines", line)
	return nil
}

// AutoSave starts the goroutine that appends queued changes to the journal.
func AutoSave(s *StorageFile) {
	s.saving.Add(1)
	go func() {
		defer s.saving.Done()
		for entry := range s.Events {
			s.fileMu.Lock()
			err := s.writeEntry(entry)
			s.fileMu.Unlock()
			if err != nil {
				s.log.Errorw("journal write failed", "op", entry.Op, "code", entry.Link.Code, "error", err)
			}
		}
	}()
}

// writeEntry appends one JSON line; fileMu must be held.
func (s *StorageFile) writeEntry(entry models.JournalEntry) error {
	data, err := json.Marshal(&entry)
	if err != nil {
		return fmt.Errorf("marshal journal entry: %w", err)
	}
	data = append(data, '\n')
	if _, err := s.file.Write(data); err != nil {
		return fmt.Errorf("write journal entry: %w", err)
	}
	return nil
}

// Close flushes queued changes and closes the journal.
func (s *StorageFile) Close() error {
	s.StorageMemory.mu.Lock()
	if s.closed {
		s.StorageMemory.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.Events)
	s.StorageMemory.emit = nil
	s.StorageMemory.mu.Unlock()

	s.saving.Wait()
	s.fileMu.Lock()
	defer s.fileMu.Unlock()
	return s.file.Close()
}

// OpenFileAsReader opens a file for reading and creates the file if it does not exist.
func OpenFileAsReader(path string) (io.ReadCloser, error) {
	file, err := os.OpenFile(path, os.O_RDONLY|os.O_CREATE, 0o644) //nolint:mnd // owner read/write, others read
	if err != nil {
		return nil, fmt.Errorf("error open file %s: %w", path, err)
	}
	return file, nil
}

// OpenFileAsWriter opens a file for appending and creates the file if it does not exist.
func OpenFileAsWriter(path string) (io.WriteCloser, error) {
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o644) //nolint:mnd // same
	if err != nil {
		return nil, fmt.Errorf("error open file %s: %w", path, err)
	}
	return file, nil
}
