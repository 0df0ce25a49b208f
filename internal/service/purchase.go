package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rmadden/backroom/internal/models"
)

// keyPurchases is the per-user document holding the purchase list.
const keyPurchases = "purchases"

// PurchaseInput carries the payment capture fields posted by the client
// after the provider confirms an order.
type PurchaseInput struct {
	OrderID     string          `json:"orderId"`
	ProductID   string          `json:"productId"`
	Size        string          `json:"size"`
	Amount      string          `json:"amount"`
	Status      string          `json:"status"`
	Environment string          `json:"environment"`
	ProviderRaw json.RawMessage `json:"paypalData"`
}

// PurchaseService appends and lists purchase records in the owning user's
// state partition. Like the credential store, writes for the same user are
// serialized with a per-username mutex.
type PurchaseService struct {
	repo UserStateRepository
	log  *zap.Logger

	now func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewPurchaseService constructs a PurchaseService over the per-user state
// repository.
func NewPurchaseService(repo UserStateRepository, log *zap.Logger) *PurchaseService {
	return &PurchaseService{
		repo:  repo,
		log:   log,
		now:   time.Now,
		locks: make(map[string]*sync.Mutex),
	}
}

func (s *PurchaseService) userLock(username string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[username]
	if !ok {
		l = &sync.Mutex{}
		s.locks[username] = l
	}
	return l
}

func (s *PurchaseService) load(ctx context.Context, username string) ([]models.Purchase, error) {
	raw, err := s.repo.Get(ctx, username, keyPurchases)
	if err != nil {
		return nil, fmt.Errorf("load purchases: %w", err)
	}
	purchases := []models.Purchase{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &purchases); err != nil {
			return nil, fmt.Errorf("decode purchases: %w", err)
		}
	}
	return purchases, nil
}

// Record appends a purchase for username and returns the stored record.
func (s *PurchaseService) Record(ctx context.Context, username string, input PurchaseInput, userAgent string) (*models.Purchase, error) {
	lock := s.userLock(username)
	lock.Lock()
	defer lock.Unlock()

	purchases, err := s.load(ctx, username)
	if err != nil {
		return nil, err
	}

	environment := input.Environment
	if environment == "" {
		environment = "sandbox"
	}
	if userAgent == "" {
		userAgent = "unknown"
	}
	purchase := models.Purchase{
		ID:           uuid.New().String(),
		Username:     username,
		OrderID:      input.OrderID,
		ProductID:    input.ProductID,
		Size:         input.Size,
		Amount:       input.Amount,
		Status:       input.Status,
		Environment:  environment,
		Timestamp:    s.now().UTC().Format(time.RFC3339),
		UserAgent:    userAgent,
		ProviderData: input.ProviderRaw,
	}
	purchases = append(purchases, purchase)

	raw, err := json.Marshal(purchases)
	if err != nil {
		return nil, fmt.Errorf("encode purchases: %w", err)
	}
	if err := s.repo.Put(ctx, username, keyPurchases, raw); err != nil {
		return nil, fmt.Errorf("store purchases: %w", err)
	}

	s.log.Info("purchase recorded",
		zap.String("username", username),
		zap.String("order", purchase.OrderID))
	return &purchase, nil
}

// List returns the user's purchases in insertion order; an empty list when
// none exist.
func (s *PurchaseService) List(ctx context.Context, username string) ([]models.Purchase, error) {
	lock := s.userLock(username)
	lock.Lock()
	defer lock.Unlock()

	return s.load(ctx, username)
}
