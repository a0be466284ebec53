package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"sweet_shop/internal/common"
	"sweet_shop/internal/domain/model"
	"sweet_shop/internal/domain/repository"
	"sweet_shop/internal/platform/storage"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type ImageUploader interface {
	Upload(ctx context.Context, img storage.ImageUpload) (string, error)
}

// ReceiptPublisher hands a completed purchase off for recording.
type ReceiptPublisher interface {
	Publish(ctx context.Context, receipt model.PurchaseReceipt) error
}

type ProductService struct {
	productRepo repository.ProductRepository
	uploader    ImageUploader
	receipts    ReceiptPublisher
	log         *zap.Logger
	now         func() time.Time
}

func NewProductService(
	productRepo repository.ProductRepository,
	uploader ImageUploader,
	receipts ReceiptPublisher,
	log *zap.Logger,
) *ProductService {
	return &ProductService{
		productRepo: productRepo,
		uploader:    uploader,
		receipts:    receipts,
		log:         log,
		now:         time.Now,
	}
}

// CreateProductInput holds the raw create fields; nil means the client did not send it.
type CreateProductInput struct {
	Name        *string
	Description *string
	Price       *float64
	Quantity    *int
}

// UpdateProductInput holds the optional update fields.
type UpdateProductInput struct {
	Name        *string
	Description *string
	Price       *float64
	Quantity    *int
}

type PurchaseResult struct {
	NewQuantity int            `json:"newQuantity"`
	Product     *model.Product `json:"product"`
}

// ValidateCreate returns the normalized product fields or the first validation failure.
func ValidateCreate(in CreateProductInput) (name, description string, price float64, quantity int, err error) {
	if in.Name == nil || strings.TrimSpace(*in.Name) == "" ||
		in.Description == nil || strings.TrimSpace(*in.Description) == "" ||
		in.Price == nil || in.Quantity == nil {
		return "", "", 0, 0, common.NewValidationError("product", "Please provide all required fields")
	}
	if err := validatePrice(*in.Price); err != nil {
		return "", "", 0, 0, err
	}
	if *in.Quantity < 1 {
		return "", "", 0, 0, common.NewValidationError("quantity", "Quantity must be at least 1 for new products")
	}
	if *in.Quantity > model.MaxQuantity {
		return "", "", 0, 0, quantityTooLarge()
	}
	return strings.TrimSpace(*in.Name), *in.Description, *in.Price, *in.Quantity, nil
}

// ValidateUpdate turns the supplied fields into a patch, rejecting values the store would refuse.
func ValidateUpdate(in UpdateProductInput) (model.ProductPatch, error) {
	var patch model.ProductPatch
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return patch, common.NewValidationError("name", "Product name cannot be empty")
		}
		patch.Name = &name
	}
	if in.Description != nil {
		if strings.TrimSpace(*in.Description) == "" {
			return patch, common.NewValidationError("description", "Description cannot be empty")
		}
		desc := *in.Description
		patch.Description = &desc
	}
	if in.Price != nil {
		if err := validatePrice(*in.Price); err != nil {
			return patch, err
		}
		price := *in.Price
		patch.Price = &price
	}
	if in.Quantity != nil {
		if *in.Quantity < 0 {
			return patch, common.NewValidationError("quantity", "Quantity cannot be negative")
		}
		if *in.Quantity > model.MaxQuantity {
			return patch, quantityTooLarge()
		}
		qty := *in.Quantity
		patch.Quantity = &qty
	}
	return patch, nil
}

func quantityTooLarge() error {
	return common.NewValidationError("quantity", fmt.Sprintf("Quantity cannot exceed %d", model.MaxQuantity))
}

func validatePrice(price float64) error {
	if math.IsNaN(price) || math.IsInf(price, 0) {
		return common.NewValidationError("price", "Price must be a number")
	}
	if price < 0 {
		return common.NewValidationError("price", "Price cannot be negative")
	}
	return nil
}

func (s *ProductService) List(ctx context.Context) ([]model.Product, error) {
	products, err := s.productRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	return products, nil
}

func (s *ProductService) ListBySeller(ctx context.Context, sellerUsername string) ([]model.Product, error) {
	products, err := s.productRepo.ListBySeller(ctx, sellerUsername)
	if err != nil {
		return nil, fmt.Errorf("failed to list products of %s: %w", sellerUsername, err)
	}
	return products, nil
}

func (s *ProductService) Get(ctx context.Context, id string) (*model.Product, error) {
	if !validID(id) {
		return nil, common.ErrNotFound
	}
	return s.productRepo.FindByID(ctx, id)
}

// Create uploads the image (if any) before writing, so a failed upload leaves nothing behind.
func (s *ProductService) Create(ctx context.Context, sellerUsername string, in CreateProductInput, image *storage.ImageUpload) (*model.Product, error) {
	if sellerUsername == "" {
		return nil, common.ErrUnauthorized
	}
	name, description, price, quantity, err := ValidateCreate(in)
	if err != nil {
		return nil, err
	}

	var imageURL *string
	if image != nil {
		url, err := s.upload(ctx, name, image)
		if err != nil {
			return nil, err
		}
		imageURL = &url
	}

	now := s.now().UTC()
	product := &model.Product{
		ID:             uuid.NewString(),
		Name:           name,
		Description:    description,
		Price:          price,
		Quantity:       quantity,
		Image:          imageURL,
		SellerUsername: sellerUsername,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.productRepo.Create(ctx, product); err != nil {
		return nil, common.Errorf("failed to create product: %w", err)
	}

	s.log.Info("product created",
		zap.String("product_id", product.ID),
		zap.String("seller", sellerUsername),
		zap.Int("quantity", quantity))
	return product, nil
}

// Update applies a partial update. Only the seller that created the product may change it.
func (s *ProductService) Update(ctx context.Context, callerUsername, id string, in UpdateProductInput, image *storage.ImageUpload) (*model.Product, error) {
	patch, err := ValidateUpdate(in)
	if err != nil {
		return nil, err
	}

	existing, err := s.ownedProduct(ctx, callerUsername, id)
	if err != nil {
		return nil, err
	}
	if patch.IsEmpty() && image == nil {
		return existing, nil
	}

	if image != nil {
		name := existing.Name
		if patch.Name != nil {
			name = *patch.Name
		}
		url, err := s.upload(ctx, name, image)
		if err != nil {
			return nil, err
		}
		patch.Image = &url
	}

	product, err := s.productRepo.Update(ctx, id, patch)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, err
		}
		return nil, common.Errorf("failed to update product: %w", err)
	}
	return product, nil
}

func (s *ProductService) Delete(ctx context.Context, callerUsername, id string) error {
	if _, err := s.ownedProduct(ctx, callerUsername, id); err != nil {
		return err
	}
	if err := s.productRepo.Delete(ctx, id); err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return err
		}
		return common.Errorf("failed to delete product: %w", err)
	}
	s.log.Info("product deleted", zap.String("product_id", id), zap.String("seller", callerUsername))
	return nil
}

// Purchase decrements stock atomically at the store: concurrent purchases can never
// drive quantity below zero, and a rejected purchase leaves it untouched.
func (s *ProductService) Purchase(ctx context.Context, buyerUsername, id string, quantity int) (*PurchaseResult, error) {
	if quantity <= 0 {
		return nil, common.ErrInvalidQuantity
	}
	if !validID(id) {
		return nil, common.ErrNotFound
	}
	if quantity > model.MaxQuantity {
		// No product can hold this much; the store would reject the parameter outright.
		if _, err := s.Get(ctx, id); err != nil {
			return nil, err
		}
		return nil, common.ErrInsufficientStock
	}

	product, err := s.productRepo.DecrementStock(ctx, id, quantity)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) || errors.Is(err, common.ErrInsufficientStock) {
			return nil, err
		}
		return nil, common.Errorf("failed to process purchase: %w", err)
	}

	s.publishReceipt(ctx, buyerUsername, product, quantity)
	return &PurchaseResult{NewQuantity: product.Quantity, Product: product}, nil
}

func (s *ProductService) publishReceipt(ctx context.Context, buyerUsername string, product *model.Product, quantity int) {
	if s.receipts == nil {
		return
	}
	receipt := model.PurchaseReceipt{
		ID:                uuid.NewString(),
		ProductID:         product.ID,
		ProductName:       product.Name,
		BuyerUsername:     buyerUsername,
		SellerUsername:    product.SellerUsername,
		Quantity:          quantity,
		UnitPrice:         product.Price,
		Total:             product.Price * float64(quantity),
		RemainingQuantity: product.Quantity,
		PurchasedAt:       s.now().UTC(),
	}
	if err := s.receipts.Publish(ctx, receipt); err != nil {
		// Stock is already decremented; the receipt is informational.
		s.log.Error("failed to publish purchase receipt",
			zap.String("product_id", product.ID),
			zap.String("buyer", buyerUsername),
			zap.Error(err))
	}
}

func (s *ProductService) ownedProduct(ctx context.Context, callerUsername, id string) (*model.Product, error) {
	if callerUsername == "" {
		return nil, common.ErrUnauthorized
	}
	if !validID(id) {
		return nil, common.ErrNotFound
	}
	product, err := s.productRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, err
		}
		return nil, common.Errorf("failed to load product: %w", err)
	}
	if product.SellerUsername != callerUsername {
		return nil, common.ErrForbidden
	}
	return product, nil
}

func (s *ProductService) upload(ctx context.Context, productName string, image *storage.ImageUpload) (string, error) {
	img := *image
	img.NameHint = productName
	url, err := s.uploader.Upload(ctx, img)
	if err != nil {
		s.log.Warn("image upload failed", zap.String("product", productName), zap.Error(err))
		if errors.Is(err, common.ErrImageUpload) {
			return "", err
		}
		return "", fmt.Errorf("%w: %v", common.ErrImageUpload, err)
	}
	return url, nil
}

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
