package history

import (
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	errJournalClosed = errors.New("journal is closed")
	errJournalFull   = errors.New("journal buffer full")
)

// Journal appends JSON lines asynchronously to <dir>/<date>/<name>.jsonl,
// rotating by size through lumberjack and by UTC day.
type Journal struct {
	dir       string
	name      string
	maxSizeMB int
	writeCh   chan any
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup

	mu          sync.Mutex
	currentDate string
	logger      *lumberjack.Logger
}

// NewJournal starts the writer goroutine.
func NewJournal(dir, name string, bufferSize, maxSizeMB int) *Journal {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	if maxSizeMB <= 0 {
		maxSizeMB = 50
	}
	j := &Journal{
		dir:       dir,
		name:      name,
		maxSizeMB: maxSizeMB,
		writeCh:   make(chan any, bufferSize),
		done:      make(chan struct{}),
	}
	j.wg.Add(1)
	go j.writeLoop()
	return j
}

// Write queues record. It never blocks; a full buffer drops the record.
func (j *Journal) Write(record any) error {
	select {
	case <-j.done:
		return errJournalClosed
	default:
	}
	select {
	case j.writeCh <- record:
		return nil
	default:
		slog.Warn("history journal buffer full, dropping record", "name", j.name)
		return errJournalFull
	}
}

// Close flushes queued records and closes the file.
func (j *Journal) Close() error {
	j.closeOnce.Do(func() { close(j.done) })
	j.wg.Wait()

	j.mu.Lock()
	defer j.mu.Unlock()
	if j.logger != nil {
		return j.logger.Close()
	}
	return nil
}

func (j *Journal) writeLoop() {
	defer j.wg.Done()
	for {
		select {
		case record := <-j.writeCh:
			j.writeRecord(record)
		case <-j.done:
			j.drain()
			return
		}
	}
}

func (j *Journal) drain() {
	timeout := time.After(5 * time.Second)
	for {
		select {
		case record := <-j.writeCh:
			j.writeRecord(record)
		case <-timeout:
			slog.Warn("history journal close timeout, some records may be lost", "name", j.name)
			return
		default:
			return
		}
	}
}

func (j *Journal) writeRecord(record any) {
	data, err := json.Marshal(record)
	if err != nil {
		slog.Error("history record marshal failed", "error", err)
		return
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	date := time.Now().UTC().Format("2006-01-02")
	if date != j.currentDate || j.logger == nil {
		if err := j.rotate(date); err != nil {
			slog.Error("history journal rotate failed", "error", err)
			return
		}
	}
	if _, err := j.logger.Write(append(data, '\n')); err != nil {
		slog.Error("history record write failed", "error", err)
	}
}

func (j *Journal) rotate(date string) error {
	if j.logger != nil {
		if err := j.logger.Close(); err != nil {
			slog.Debug("history journal close failed", "error", err)
		}
	}
	dir := filepath.Join(j.dir, date)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	j.logger = &lumberjack.Logger{
		Filename:   filepath.Join(dir, j.name+".jsonl"),
		MaxSize:    j.maxSizeMB,
		MaxBackups: 30,
		MaxAge:     30,
	}
	j.currentDate = date
	slog.Info("history journal opened", "file", j.logger.Filename)
	return nil
}
