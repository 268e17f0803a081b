package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"stock-reservation-engine/internal/models"
)

// FileLedger is an append-only stock event log held in memory and
// persisted to a JSON file. Appends update memory synchronously, so a
// read that follows an append always observes it; the file write happens
// on a background flusher with atomic temp-file replacement.
type FileLedger struct {
	mu         sync.RWMutex
	events     []models.StockEvent
	byItem     map[string][]int // indexes into events, append order
	totals     map[string]int
	nextOffset int64

	filePath  string
	persist   bool
	flushChan chan struct{}
	stopChan  chan struct{}
	done      sync.WaitGroup
}

type ledgerFile struct {
	Events     []models.StockEvent `json:"events"`
	NextOffset int64               `json:"nextOffset"`
}

// NewFileLedger creates the ledger, loading existing events from dataDir
// when present. With persist false nothing is ever written to disk.
func NewFileLedger(dataDir string, persist bool) (*FileLedger, error) {
	l := &FileLedger{
		byItem:    make(map[string][]int),
		totals:    make(map[string]int),
		persist:   persist,
		flushChan: make(chan struct{}, 1),
		stopChan:  make(chan struct{}),
	}

	if persist {
		if err := os.MkdirAll(dataDir, 0755); err != nil {
			return nil, fmt.Errorf("creating ledger directory: %w", err)
		}
		l.filePath = filepath.Join(dataDir, "stock_events.json")
		if err := l.loadFromFile(); err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("loading ledger: %w", err)
			}
			slog.Info("No existing ledger file, starting empty", "path", l.filePath)
		}

		l.done.Add(1)
		go l.flusher()
	}

	slog.Info("Stock ledger initialized",
		"events", len(l.events),
		"next_offset", l.nextOffset,
		"persistence", persist)

	return l, nil
}

func (l *FileLedger) Append(ctx context.Context, itemID string, quantity int) (models.StockEvent, error) {
	event := models.StockEvent{
		ID:        uuid.NewString(),
		ItemID:    itemID,
		Quantity:  quantity,
		Timestamp: time.Now().UTC(),
	}

	l.mu.Lock()
	event.Offset = l.nextOffset
	l.nextOffset++
	l.events = append(l.events, event)
	l.byItem[itemID] = append(l.byItem[itemID], len(l.events)-1)
	l.totals[itemID] += quantity
	l.mu.Unlock()

	l.requestFlush()

	slog.Debug("Stock event appended",
		"event_id", event.ID,
		"item_id", itemID,
		"quantity", quantity,
		"offset", event.Offset)

	return event, nil
}

func (l *FileLedger) TotalStock(ctx context.Context, itemID string) (int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.totals[itemID], nil
}

func (l *FileLedger) EventsForItem(ctx context.Context, itemID string) ([]models.StockEvent, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	idxs := l.byItem[itemID]
	events := make([]models.StockEvent, 0, len(idxs))
	for _, i := range idxs {
		events = append(events, l.events[i])
	}
	return events, nil
}

func (l *FileLedger) ItemIDs(ctx context.Context) ([]string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	ids := make([]string, 0, len(l.byItem))
	for id := range l.byItem {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (l *FileLedger) Close() error {
	if !l.persist {
		return nil
	}
	close(l.stopChan)
	l.done.Wait()
	return l.save()
}

// requestFlush wakes the flusher without blocking the append path.
func (l *FileLedger) requestFlush() {
	if !l.persist {
		return
	}
	select {
	case l.flushChan <- struct{}{}:
	default:
	}
}

func (l *FileLedger) flusher() {
	defer l.done.Done()
	for {
		select {
		case <-l.flushChan:
			if err := l.save(); err != nil {
				slog.Error("Failed to persist stock ledger", "error", err)
			}
		case <-l.stopChan:
			return
		}
	}
}

func (l *FileLedger) loadFromFile() error {
	data, err := os.ReadFile(l.filePath)
	if err != nil {
		return err
	}

	var file ledgerFile
	if err := json.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parsing ledger file: %w", err)
	}

	l.events = file.Events
	l.nextOffset = file.NextOffset
	for i, ev := range l.events {
		l.byItem[ev.ItemID] = append(l.byItem[ev.ItemID], i)
		l.totals[ev.ItemID] += ev.Quantity
	}

	slog.Info("Stock ledger loaded",
		"path", l.filePath,
		"events", len(l.events),
		"next_offset", l.nextOffset)
	return nil
}

func (l *FileLedger) save() error {
	l.mu.RLock()
	file := ledgerFile{
		Events:     append([]models.StockEvent(nil), l.events...),
		NextOffset: l.nextOffset,
	}
	l.mu.RUnlock()

	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling ledger: %w", err)
	}

	tmp := l.filePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("writing temp ledger: %w", err)
	}
	if err := os.Rename(tmp, l.filePath); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replacing ledger file: %w", err)
	}

	return nil
}
