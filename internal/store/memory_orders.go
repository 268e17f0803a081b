package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"stock-reservation-engine/internal/models"
)

// MemoryOrderStore keeps orders in memory with optional JSON file
// persistence. Every mutation rewrites the file atomically via a temp
// file so a crash never leaves a torn snapshot.
type MemoryOrderStore struct {
	mu sync.RWMutex

	orders map[string]*models.Order
	// itemIndex maps order item ID to its owning order ID.
	itemIndex map[string]string
	// catalogIndex maps catalog item ID to the order item IDs referencing it.
	catalogIndex map[string][]string

	dataFile string
	persist  bool
}

// orderFile is the on-disk snapshot format.
type orderFile struct {
	Orders []models.Order `json:"orders"`
}

// NewMemoryOrderStore creates the store and loads an existing snapshot
// from dataDir if one is present. When persist is false the store is
// purely in-memory (tests, ephemeral deployments).
func NewMemoryOrderStore(dataDir string, persist bool) (*MemoryOrderStore, error) {
	s := &MemoryOrderStore{
		orders:       make(map[string]*models.Order),
		itemIndex:    make(map[string]string),
		catalogIndex: make(map[string][]string),
		persist:      persist,
	}

	if persist {
		if err := os.MkdirAll(dataDir, 0755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		s.dataFile = filepath.Join(dataDir, "orders.json")
		if err := s.loadFromFile(); err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("loading order snapshot: %w", err)
			}
			slog.Info("No existing order snapshot, starting empty", "path", s.dataFile)
		}
	}

	slog.Info("Order store initialized",
		"orders", len(s.orders),
		"persistence", persist)

	return s, nil
}

func (s *MemoryOrderStore) CreateOrder(ctx context.Context, order models.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.orders[order.ID]; exists {
		return fmt.Errorf("%w: %s", ErrOrderExists, order.ID)
	}
	for _, it := range order.Items {
		if _, exists := s.itemIndex[it.ID]; exists {
			return fmt.Errorf("order item already exists: %s", it.ID)
		}
	}

	stored := order
	stored.Items = append([]models.OrderItem(nil), order.Items...)
	s.orders[order.ID] = &stored
	for _, it := range stored.Items {
		s.itemIndex[it.ID] = order.ID
		s.catalogIndex[it.ItemID] = append(s.catalogIndex[it.ItemID], it.ID)
	}

	return s.saveLocked()
}

func (s *MemoryOrderStore) GetOrder(ctx context.Context, orderID string) (models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	order, exists := s.orders[orderID]
	if !exists {
		return models.Order{}, fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
	}
	return copyOrder(order), nil
}

func (s *MemoryOrderStore) ListOrders(ctx context.Context) ([]models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	orders := make([]models.Order, 0, len(s.orders))
	for _, o := range s.orders {
		orders = append(orders, copyOrder(o))
	}
	return orders, nil
}

func (s *MemoryOrderStore) GetOrderItem(ctx context.Context, orderItemID string) (models.OrderItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, _, _, err := s.findItemLocked(orderItemID)
	if err != nil {
		return models.OrderItem{}, err
	}
	return *item, nil
}

func (s *MemoryOrderStore) ListOrderItemsByCatalogItem(ctx context.Context, itemID string) ([]models.OrderItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.catalogIndex[itemID]
	items := make([]models.OrderItem, 0, len(ids))
	for _, id := range ids {
		item, _, _, err := s.findItemLocked(id)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	return items, nil
}

func (s *MemoryOrderStore) UpdateItemStatus(ctx context.Context, orderItemID string, status models.ItemStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, _, _, err := s.findItemLocked(orderItemID)
	if err != nil {
		return err
	}
	item.Status = status

	return s.saveLocked()
}

func (s *MemoryOrderStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked()
}

// findItemLocked returns a pointer into the stored order so callers can
// mutate the item in place. Callers must hold at least a read lock.
func (s *MemoryOrderStore) findItemLocked(orderItemID string) (*models.OrderItem, *models.Order, int, error) {
	orderID, exists := s.itemIndex[orderItemID]
	if !exists {
		return nil, nil, 0, fmt.Errorf("%w: %s", ErrOrderItemNotFound, orderItemID)
	}
	order := s.orders[orderID]
	for i := range order.Items {
		if order.Items[i].ID == orderItemID {
			return &order.Items[i], order, i, nil
		}
	}
	return nil, nil, 0, fmt.Errorf("%w: %s", ErrOrderItemNotFound, orderItemID)
}

func copyOrder(o *models.Order) models.Order {
	out := *o
	out.Items = append([]models.OrderItem(nil), o.Items...)
	return out
}

func (s *MemoryOrderStore) loadFromFile() error {
	data, err := os.ReadFile(s.dataFile)
	if err != nil {
		return err
	}

	var file orderFile
	if err := json.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parsing order snapshot: %w", err)
	}

	for i := range file.Orders {
		order := file.Orders[i]
		s.orders[order.ID] = &order
		for _, it := range order.Items {
			s.itemIndex[it.ID] = order.ID
			s.catalogIndex[it.ItemID] = append(s.catalogIndex[it.ItemID], it.ID)
		}
	}

	slog.Info("Order snapshot loaded", "path", s.dataFile, "orders", len(s.orders))
	return nil
}

// saveLocked persists the current state. Callers must hold the write lock.
func (s *MemoryOrderStore) saveLocked() error {
	if !s.persist {
		return nil
	}

	file := orderFile{Orders: make([]models.Order, 0, len(s.orders))}
	for _, o := range s.orders {
		file.Orders = append(file.Orders, copyOrder(o))
	}

	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling order snapshot: %w", err)
	}

	tmp := s.dataFile + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("writing temp snapshot: %w", err)
	}
	if err := os.Rename(tmp, s.dataFile); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replacing snapshot: %w", err)
	}

	return nil
}
