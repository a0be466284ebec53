package handler

import (
	"net/http"

	"sweet_shop/internal/api/middleware"
	"sweet_shop/internal/app/service"
	"sweet_shop/internal/common"
	"sweet_shop/internal/domain/model"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type PurchaseHandler struct {
	receiptService *service.ReceiptService
	log            *zap.Logger
}

func NewPurchaseHandler(rs *service.ReceiptService, log *zap.Logger) *PurchaseHandler {
	return &PurchaseHandler{receiptService: rs, log: log}
}

func (h *PurchaseHandler) RegisterRoutes(r chi.Router) {
	r.With(middleware.Authenticator).Get("/", h.listMine)
}

type purchaseListResponse struct {
	Message   string                  `json:"message"`
	Purchases []model.PurchaseReceipt `json:"purchases"`
}

func (h *PurchaseHandler) listMine(w http.ResponseWriter, r *http.Request) {
	username, ok := middleware.GetUsernameFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "Missing user context")
		return
	}

	receipts, err := h.receiptService.ListForBuyer(r.Context(), username)
	if err != nil {
		respondError(w, h.log, err, "Error fetching purchases")
		return
	}
	common.RespondWithJSON(w, http.StatusOK, purchaseListResponse{
		Message:   "Purchases fetched successfully",
		Purchases: receipts,
	})
}
