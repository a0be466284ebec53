package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"sweet_shop/internal/api/middleware"
	"sweet_shop/internal/app/service"
	"sweet_shop/internal/common"
	"sweet_shop/internal/domain/model"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type ProductHandler struct {
	productService *service.ProductService
	log            *zap.Logger
}

func NewProductHandler(ps *service.ProductService, log *zap.Logger) *ProductHandler {
	return &ProductHandler{productService: ps, log: log}
}

func (h *ProductHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.listProducts)                  // GET /route/product
	r.Get("/seller/{username}", h.listBySeller) // GET /route/product/seller/seller1
	r.Get("/{productID}", h.getProduct)

	r.Group(func(authed chi.Router) {
		authed.Use(middleware.Authenticator)
		authed.Post("/", h.createProduct)
		authed.Put("/{productID}", h.updateProduct)
		authed.Delete("/{productID}", h.deleteProduct)
		authed.Post("/{productID}/purchase", h.purchaseProduct)
	})
}

type productListResponse struct {
	Message  string          `json:"message"`
	Products []model.Product `json:"products"`
}

type productResponse struct {
	Message string         `json:"message"`
	Product *model.Product `json:"product"`
}

type purchaseResponse struct {
	Message     string         `json:"message"`
	NewQuantity int            `json:"newQuantity"`
	Product     *model.Product `json:"product"`
}

func (h *ProductHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.productService.List(r.Context())
	if err != nil {
		respondError(w, h.log, err, "Error fetching products")
		return
	}
	common.RespondWithJSON(w, http.StatusOK, productListResponse{
		Message:  "Products fetched successfully",
		Products: products,
	})
}

func (h *ProductHandler) listBySeller(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	products, err := h.productService.ListBySeller(r.Context(), username)
	if err != nil {
		respondError(w, h.log, err, "Error fetching seller products")
		return
	}
	common.RespondWithJSON(w, http.StatusOK, productListResponse{
		Message:  fmt.Sprintf("Products from %s", username),
		Products: products,
	})
}

func (h *ProductHandler) getProduct(w http.ResponseWriter, r *http.Request) {
	product, err := h.productService.Get(r.Context(), chi.URLParam(r, "productID"))
	if err != nil {
		respondError(w, h.log, err, "Error fetching product")
		return
	}
	common.RespondWithJSON(w, http.StatusOK, productResponse{Message: "Product fetched successfully", Product: product})
}

func (h *ProductHandler) createProduct(w http.ResponseWriter, r *http.Request) {
	username, ok := middleware.GetUsernameFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "Missing user context")
		return
	}

	form, err := parseProductForm(w, r)
	if err != nil {
		respondError(w, h.log, err, "Error creating product")
		return
	}
	price, err := toFloat("price", form.Price)
	if err != nil {
		respondError(w, h.log, err, "Error creating product")
		return
	}
	quantity, err := toInt("quantity", form.Quantity)
	if err != nil {
		respondError(w, h.log, err, "Error creating product")
		return
	}

	product, err := h.productService.Create(r.Context(), username, service.CreateProductInput{
		Name:        form.Name,
		Description: form.Description,
		Price:       price,
		Quantity:    quantity,
	}, form.Image)
	if err != nil {
		respondError(w, h.log, err, "Error creating product")
		return
	}
	common.RespondWithJSON(w, http.StatusCreated, productResponse{Message: "Product created successfully", Product: product})
}

func (h *ProductHandler) updateProduct(w http.ResponseWriter, r *http.Request) {
	username, ok := middleware.GetUsernameFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "Missing user context")
		return
	}

	form, err := parseProductForm(w, r)
	if err != nil {
		respondError(w, h.log, err, "Error updating product")
		return
	}
	price, err := toFloat("price", form.Price)
	if err != nil {
		respondError(w, h.log, err, "Error updating product")
		return
	}
	quantity, err := toInt("quantity", form.Quantity)
	if err != nil {
		respondError(w, h.log, err, "Error updating product")
		return
	}

	product, err := h.productService.Update(r.Context(), username, chi.URLParam(r, "productID"), service.UpdateProductInput{
		Name:        form.Name,
		Description: form.Description,
		Price:       price,
		Quantity:    quantity,
	}, form.Image)
	if err != nil {
		respondError(w, h.log, err, "Error updating product")
		return
	}
	common.RespondWithJSON(w, http.StatusOK, productResponse{Message: "Product updated successfully", Product: product})
}

func (h *ProductHandler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	username, ok := middleware.GetUsernameFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "Missing user context")
		return
	}

	if err := h.productService.Delete(r.Context(), username, chi.URLParam(r, "productID")); err != nil {
		respondError(w, h.log, err, "Error deleting product")
		return
	}
	common.RespondWithJSON(w, http.StatusOK, common.MessageResponse{Message: "Product deleted successfully"})
}

type purchaseRequest struct {
	Quantity any `json:"quantity"`
}

func (h *ProductHandler) purchaseProduct(w http.ResponseWriter, r *http.Request) {
	username, ok := middleware.GetUsernameFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "Missing user context")
		return
	}

	var req purchaseRequest
	if err := decodeJSON(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid quantity")
		return
	}
	quantity, err := toInt("quantity", req.Quantity)
	if err != nil || quantity == nil {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid quantity")
		return
	}

	res, err := h.productService.Purchase(r.Context(), username, chi.URLParam(r, "productID"), *quantity)
	if err != nil {
		respondError(w, h.log, err, "Error processing purchase")
		return
	}
	common.RespondWithJSON(w, http.StatusOK, purchaseResponse{
		Message:     "Purchase successful",
		NewQuantity: res.NewQuantity,
		Product:     res.Product,
	})
}
