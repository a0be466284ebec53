package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"sweet_shop/internal/common"
	"sweet_shop/internal/domain/model"
	"sweet_shop/internal/domain/repository"
	"sweet_shop/internal/platform/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeUploader struct {
	mu      sync.Mutex
	url     string
	err     error
	uploads []storage.ImageUpload
}

func (f *fakeUploader) Upload(_ context.Context, img storage.ImageUpload) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads = append(f.uploads, img)
	if f.err != nil {
		return "", f.err
	}
	return f.url, nil
}

type fakePublisher struct {
	mu       sync.Mutex
	receipts []model.PurchaseReceipt
	err      error
}

func (f *fakePublisher) Publish(_ context.Context, rc model.PurchaseReceipt) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.receipts = append(f.receipts, rc)
	return nil
}

// writeCounter records the writes that reach the store.
type writeCounter struct {
	repository.ProductRepository
	updates    int
	decrements int
}

func (w *writeCounter) Update(ctx context.Context, id string, patch model.ProductPatch) (*model.Product, error) {
	w.updates++
	return w.ProductRepository.Update(ctx, id, patch)
}

func (w *writeCounter) DecrementStock(ctx context.Context, id string, qty int) (*model.Product, error) {
	w.decrements++
	return w.ProductRepository.DecrementStock(ctx, id, qty)
}

type productFixture struct {
	svc       *ProductService
	repo      repository.ProductRepository
	uploader  *fakeUploader
	publisher *fakePublisher
}

func newProductFixture(t *testing.T) *productFixture {
	t.Helper()
	f := &productFixture{
		repo:      repository.NewMemoryProductRepository(),
		uploader:  &fakeUploader{url: "https://cdn.example.com/sweets/ladoo.png"},
		publisher: &fakePublisher{},
	}
	f.svc = NewProductService(f.repo, f.uploader, f.publisher, zaptest.NewLogger(t))
	return f
}

func strPtr(s string) *string { return &s }
func floatPtr(v float64) *float64 { return &v }
func intPtr(v int) *int { return &v }

func ladooInput() CreateProductInput {
	return CreateProductInput{
		Name:        strPtr("Ladoo"),
		Description: strPtr("Tasty sweet"),
		Price:       floatPtr(50),
		Quantity:    intPtr(10),
	}
}

func TestCreate_SetsSellerAndTimestamps(t *testing.T) {
	f := newProductFixture(t)
	ctx := context.Background()

	p, err := f.svc.Create(ctx, "seller1", ladooInput(), nil)
	require.NoError(t, err)
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, "seller1", p.SellerUsername)
	assert.Equal(t, 10, p.Quantity)
	assert.Nil(t, p.Image)
	assert.False(t, p.CreatedAt.IsZero())
	assert.Equal(t, p.CreatedAt, p.UpdatedAt)
	assert.Empty(t, f.uploader.uploads)

	stored, err := f.svc.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ladoo", stored.Name)
}

func TestCreate_WithImage(t *testing.T) {
	f := newProductFixture(t)

	p, err := f.svc.Create(context.Background(), "seller1", ladooInput(), &storage.ImageUpload{Filename: "l.png", Data: []byte{1}})
	require.NoError(t, err)
	require.NotNil(t, p.Image)
	assert.Equal(t, f.uploader.url, *p.Image)
	require.Len(t, f.uploader.uploads, 1)
	assert.Equal(t, "Ladoo", f.uploader.uploads[0].NameHint)
}

func TestCreate_UploadFailureWritesNothing(t *testing.T) {
	f := newProductFixture(t)
	f.uploader.err = errors.New("bucket unreachable")
	ctx := context.Background()

	_, err := f.svc.Create(ctx, "seller1", ladooInput(), &storage.ImageUpload{Filename: "l.png", Data: []byte{1}})
	assert.ErrorIs(t, err, common.ErrImageUpload)

	all, err := f.svc.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestCreate_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*CreateProductInput)
	}{
		{name: "missing name", mutate: func(in *CreateProductInput) { in.Name = nil }},
		{name: "blank name", mutate: func(in *CreateProductInput) { in.Name = strPtr("   ") }},
		{name: "missing description", mutate: func(in *CreateProductInput) { in.Description = nil }},
		{name: "missing price", mutate: func(in *CreateProductInput) { in.Price = nil }},
		{name: "negative price", mutate: func(in *CreateProductInput) { in.Price = floatPtr(-1) }},
		{name: "missing quantity", mutate: func(in *CreateProductInput) { in.Quantity = nil }},
		{name: "zero quantity", mutate: func(in *CreateProductInput) { in.Quantity = intPtr(0) }},
		{name: "quantity beyond stock column", mutate: func(in *CreateProductInput) { in.Quantity = intPtr(model.MaxQuantity + 1) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newProductFixture(t)
			in := ladooInput()
			tt.mutate(&in)

			_, err := f.svc.Create(context.Background(), "seller1", in, nil)
			assert.ErrorIs(t, err, common.ErrValidation)
		})
	}
}

func TestCreate_FreeProductAllowed(t *testing.T) {
	f := newProductFixture(t)
	in := ladooInput()
	in.Price = floatPtr(0)

	p, err := f.svc.Create(context.Background(), "seller1", in, nil)
	require.NoError(t, err)
	assert.Equal(t, 0.0, p.Price)
}

func TestList_NewestFirst(t *testing.T) {
	f := newProductFixture(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	f.svc.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}

	first, err := f.svc.Create(ctx, "seller1", ladooInput(), nil)
	require.NoError(t, err)
	second, err := f.svc.Create(ctx, "seller2", ladooInput(), nil)
	require.NoError(t, err)

	all, err := f.svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, second.ID, all[0].ID)
	assert.Equal(t, first.ID, all[1].ID)
}

func TestListBySeller(t *testing.T) {
	f := newProductFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, "seller1", ladooInput(), nil)
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, "seller2", ladooInput(), nil)
	require.NoError(t, err)

	mine, err := f.svc.ListBySeller(ctx, "seller1")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "seller1", mine[0].SellerUsername)

	none, err := f.svc.ListBySeller(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestGet_UnknownOrMalformedID(t *testing.T) {
	f := newProductFixture(t)

	_, err := f.svc.Get(context.Background(), "not-a-uuid")
	assert.ErrorIs(t, err, common.ErrNotFound)

	_, err = f.svc.Get(context.Background(), "2b1e5c3a-9d4e-4f1a-8c6b-1a2b3c4d5e6f")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestUpdate_PartialByOwner(t *testing.T) {
	f := newProductFixture(t)
	ctx := context.Background()
	p, err := f.svc.Create(ctx, "seller1", ladooInput(), nil)
	require.NoError(t, err)

	updated, err := f.svc.Update(ctx, "seller1", p.ID, UpdateProductInput{Price: floatPtr(60)}, nil)
	require.NoError(t, err)
	assert.Equal(t, 60.0, updated.Price)
	assert.Equal(t, "Ladoo", updated.Name)
	assert.Equal(t, 10, updated.Quantity)
	assert.Equal(t, "seller1", updated.SellerUsername)
}

func TestUpdate_NothingSuppliedSkipsWrite(t *testing.T) {
	f := newProductFixture(t)
	counter := &writeCounter{ProductRepository: f.repo}
	f.svc.productRepo = counter
	ctx := context.Background()
	p, err := f.svc.Create(ctx, "seller1", ladooInput(), nil)
	require.NoError(t, err)

	got, err := f.svc.Update(ctx, "seller1", p.ID, UpdateProductInput{}, nil)
	require.NoError(t, err)
	assert.Equal(t, p.UpdatedAt, got.UpdatedAt)
	assert.Equal(t, "Ladoo", got.Name)
	assert.Zero(t, counter.updates)

	_, err = f.svc.Update(ctx, "seller2", p.ID, UpdateProductInput{}, nil)
	assert.ErrorIs(t, err, common.ErrForbidden)
}

func TestUpdate_ReplacesImage(t *testing.T) {
	f := newProductFixture(t)
	ctx := context.Background()
	p, err := f.svc.Create(ctx, "seller1", ladooInput(), nil)
	require.NoError(t, err)

	updated, err := f.svc.Update(ctx, "seller1", p.ID, UpdateProductInput{Name: strPtr("Besan Ladoo")},
		&storage.ImageUpload{Filename: "b.png", Data: []byte{1}})
	require.NoError(t, err)
	require.NotNil(t, updated.Image)
	assert.Equal(t, f.uploader.url, *updated.Image)
	assert.Equal(t, "Besan Ladoo", f.uploader.uploads[0].NameHint)
}

func TestUpdate_RejectsOtherSeller(t *testing.T) {
	f := newProductFixture(t)
	ctx := context.Background()
	p, err := f.svc.Create(ctx, "seller1", ladooInput(), nil)
	require.NoError(t, err)

	_, err = f.svc.Update(ctx, "seller2", p.ID, UpdateProductInput{Price: floatPtr(1)}, nil)
	assert.ErrorIs(t, err, common.ErrForbidden)

	unchanged, err := f.svc.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 50.0, unchanged.Price)
}

func TestUpdate_InvalidValues(t *testing.T) {
	f := newProductFixture(t)
	ctx := context.Background()
	p, err := f.svc.Create(ctx, "seller1", ladooInput(), nil)
	require.NoError(t, err)

	_, err = f.svc.Update(ctx, "seller1", p.ID, UpdateProductInput{Quantity: intPtr(-1)}, nil)
	assert.ErrorIs(t, err, common.ErrValidation)

	_, err = f.svc.Update(ctx, "seller1", p.ID, UpdateProductInput{Price: floatPtr(-5)}, nil)
	assert.ErrorIs(t, err, common.ErrValidation)

	_, err = f.svc.Update(ctx, "seller1", p.ID, UpdateProductInput{Quantity: intPtr(model.MaxQuantity + 1)}, nil)
	assert.ErrorIs(t, err, common.ErrValidation)

	restocked, err := f.svc.Update(ctx, "seller1", p.ID, UpdateProductInput{Quantity: intPtr(0)}, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, restocked.Quantity)
}

func TestDelete(t *testing.T) {
	f := newProductFixture(t)
	ctx := context.Background()
	p, err := f.svc.Create(ctx, "seller1", ladooInput(), nil)
	require.NoError(t, err)

	assert.ErrorIs(t, f.svc.Delete(ctx, "seller2", p.ID), common.ErrForbidden)
	require.NoError(t, f.svc.Delete(ctx, "seller1", p.ID))
	assert.ErrorIs(t, f.svc.Delete(ctx, "seller1", p.ID), common.ErrNotFound)

	_, err = f.svc.Get(ctx, p.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestPurchase_DecrementsAndPublishesReceipt(t *testing.T) {
	f := newProductFixture(t)
	ctx := context.Background()
	p, err := f.svc.Create(ctx, "seller1", ladooInput(), nil)
	require.NoError(t, err)

	res, err := f.svc.Purchase(ctx, "buyer1", p.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, 7, res.NewQuantity)
	assert.Equal(t, 7, res.Product.Quantity)

	require.Len(t, f.publisher.receipts, 1)
	rc := f.publisher.receipts[0]
	assert.Equal(t, p.ID, rc.ProductID)
	assert.Equal(t, "buyer1", rc.BuyerUsername)
	assert.Equal(t, "seller1", rc.SellerUsername)
	assert.Equal(t, 3, rc.Quantity)
	assert.Equal(t, 150.0, rc.Total)
	assert.Equal(t, 7, rc.RemainingQuantity)
}

func TestPurchase_InsufficientStockLeavesQuantity(t *testing.T) {
	f := newProductFixture(t)
	ctx := context.Background()
	p, err := f.svc.Create(ctx, "seller1", ladooInput(), nil)
	require.NoError(t, err)

	_, err = f.svc.Purchase(ctx, "buyer1", p.ID, 3)
	require.NoError(t, err)

	_, err = f.svc.Purchase(ctx, "buyer1", p.ID, 8)
	assert.ErrorIs(t, err, common.ErrInsufficientStock)

	after, err := f.svc.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, after.Quantity)
	assert.Len(t, f.publisher.receipts, 1)
}

func TestPurchase_InvalidQuantityAndUnknownProduct(t *testing.T) {
	f := newProductFixture(t)
	ctx := context.Background()
	p, err := f.svc.Create(ctx, "seller1", ladooInput(), nil)
	require.NoError(t, err)

	_, err = f.svc.Purchase(ctx, "buyer1", p.ID, 0)
	assert.ErrorIs(t, err, common.ErrInvalidQuantity)
	_, err = f.svc.Purchase(ctx, "buyer1", p.ID, -2)
	assert.ErrorIs(t, err, common.ErrInvalidQuantity)
	_, err = f.svc.Purchase(ctx, "buyer1", "2b1e5c3a-9d4e-4f1a-8c6b-1a2b3c4d5e6f", 1)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestPurchase_QuantityBeyondAnyStock(t *testing.T) {
	f := newProductFixture(t)
	counter := &writeCounter{ProductRepository: f.repo}
	f.svc.productRepo = counter
	ctx := context.Background()
	p, err := f.svc.Create(ctx, "seller1", ladooInput(), nil)
	require.NoError(t, err)

	_, err = f.svc.Purchase(ctx, "buyer1", p.ID, 3000000000)
	assert.ErrorIs(t, err, common.ErrInsufficientStock)
	_, err = f.svc.Purchase(ctx, "buyer1", "2b1e5c3a-9d4e-4f1a-8c6b-1a2b3c4d5e6f", 3000000000)
	assert.ErrorIs(t, err, common.ErrNotFound)
	assert.Zero(t, counter.decrements)

	after, err := f.svc.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, after.Quantity)
	assert.Empty(t, f.publisher.receipts)
}

func TestPurchase_ReceiptFailureDoesNotFailPurchase(t *testing.T) {
	f := newProductFixture(t)
	f.publisher.err = errors.New("redis down")
	ctx := context.Background()
	p, err := f.svc.Create(ctx, "seller1", ladooInput(), nil)
	require.NoError(t, err)

	res, err := f.svc.Purchase(ctx, "buyer1", p.ID, 10)
	require.NoError(t, err)
	assert.Equal(t, 0, res.NewQuantity)
}

func TestPurchase_ConcurrentNeverOversells(t *testing.T) {
	f := newProductFixture(t)
	ctx := context.Background()
	p, err := f.svc.Create(ctx, "seller1", ladooInput(), nil)
	require.NoError(t, err)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.svc.Purchase(ctx, "buyer1", p.ID, 1); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, succeeded)
	after, err := f.svc.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, after.Quantity)
}
