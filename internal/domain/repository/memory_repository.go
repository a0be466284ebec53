package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"sweet_shop/internal/common"
	"sweet_shop/internal/domain/model"
)

// In-memory repositories back STORE_BACKEND=memory and the service/handler tests.
// They follow the same contracts as the Postgres ones, including the conditional stock decrement.

type memUserRepository struct {
	mu     sync.RWMutex
	byName map[string]*model.User
}

func NewMemoryUserRepository() UserRepository {
	return &memUserRepository{byName: map[string]*model.User{}}
}

func (r *memUserRepository) Create(_ context.Context, user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, taken := r.byName[user.Username]; taken {
		return fmt.Errorf("user %q: %w", user.Username, common.ErrDuplicateUsername)
	}
	u := *user
	r.byName[u.Username] = &u
	return nil
}

func (r *memUserRepository) FindByUsername(_ context.Context, username string) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.byName[username]
	if !ok {
		return nil, common.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

type memProduct struct {
	product model.Product
	seq     uint64
}

type memProductRepository struct {
	mu    sync.RWMutex
	items map[string]*memProduct
	seq   uint64
	now   func() time.Time
}

func NewMemoryProductRepository() ProductRepository {
	return &memProductRepository{items: map[string]*memProduct{}, now: time.Now}
}

func (r *memProductRepository) Create(_ context.Context, p *model.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.items[p.ID]; exists {
		return fmt.Errorf("memProductRepository.Create: duplicate id %s", p.ID)
	}
	r.seq++
	r.items[p.ID] = &memProduct{product: copyProduct(*p), seq: r.seq}
	return nil
}

func (r *memProductRepository) FindByID(_ context.Context, id string) (*model.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	it, ok := r.items[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	p := copyProduct(it.product)
	return &p, nil
}

func (r *memProductRepository) List(_ context.Context) ([]model.Product, error) {
	return r.filter(func(*model.Product) bool { return true }), nil
}

func (r *memProductRepository) ListBySeller(_ context.Context, sellerUsername string) ([]model.Product, error) {
	return r.filter(func(p *model.Product) bool { return p.SellerUsername == sellerUsername }), nil
}

func (r *memProductRepository) filter(keep func(*model.Product) bool) []model.Product {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matched := make([]*memProduct, 0, len(r.items))
	for _, it := range r.items {
		if keep(&it.product) {
			matched = append(matched, it)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if !a.product.CreatedAt.Equal(b.product.CreatedAt) {
			return a.product.CreatedAt.After(b.product.CreatedAt)
		}
		return a.seq > b.seq
	})

	out := make([]model.Product, 0, len(matched))
	for _, it := range matched {
		out = append(out, copyProduct(it.product))
	}
	return out
}

func (r *memProductRepository) Update(_ context.Context, id string, patch model.ProductPatch) (*model.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	it, ok := r.items[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	patch.Apply(&it.product)
	it.product.UpdatedAt = r.now().UTC()
	p := copyProduct(it.product)
	return &p, nil
}

func (r *memProductRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[id]; !ok {
		return common.ErrNotFound
	}
	delete(r.items, id)
	return nil
}

func (r *memProductRepository) DecrementStock(_ context.Context, id string, qty int) (*model.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	it, ok := r.items[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	if it.product.Quantity < qty {
		return nil, common.ErrInsufficientStock
	}
	it.product.Quantity -= qty
	it.product.UpdatedAt = r.now().UTC()
	p := copyProduct(it.product)
	return &p, nil
}

func (r *memProductRepository) Ping(context.Context) error {
	return nil
}

func copyProduct(p model.Product) model.Product {
	if p.Image != nil {
		img := *p.Image
		p.Image = &img
	}
	return p
}

type memPurchaseRepository struct {
	mu       sync.RWMutex
	receipts []model.PurchaseReceipt
	ids      map[string]struct{}
}

func NewMemoryPurchaseRepository() PurchaseRepository {
	return &memPurchaseRepository{ids: map[string]struct{}{}}
}

func (r *memPurchaseRepository) Create(_ context.Context, rc *model.PurchaseReceipt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.ids[rc.ID]; dup {
		return nil
	}
	r.ids[rc.ID] = struct{}{}
	r.receipts = append(r.receipts, *rc)
	return nil
}

func (r *memPurchaseRepository) ListByBuyer(_ context.Context, buyerUsername string) ([]model.PurchaseReceipt, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []model.PurchaseReceipt{}
	for i := len(r.receipts) - 1; i >= 0; i-- {
		if r.receipts[i].BuyerUsername == buyerUsername {
			out = append(out, r.receipts[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].PurchasedAt.After(out[j].PurchasedAt)
	})
	return out, nil
}
