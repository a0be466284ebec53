package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"sweet_shop/internal/common"
	"sweet_shop/internal/platform/storage"

	"go.uber.org/zap"
)

// maxJSONBody caps credential and purchase payloads.
const maxJSONBody = 64 << 10

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	return json.NewDecoder(r.Body).Decode(dst)
}

// respondError writes a 4xx with a client-facing message, or logs the cause and
// writes a generic message for anything that maps to 5xx.
func respondError(w http.ResponseWriter, log *zap.Logger, err error, internalMsg string) {
	status := common.HTTPStatusFromError(err)
	if status >= http.StatusInternalServerError {
		log.Error(internalMsg, zap.Error(err))
		common.RespondWithError(w, status, internalMsg)
		return
	}
	common.RespondWithError(w, status, clientMessage(err))
}

func clientMessage(err error) string {
	var verr *common.ValidationError
	switch {
	case errors.As(err, &verr):
		return verr.Reason
	case errors.Is(err, common.ErrDuplicateUsername):
		return "Username already exists"
	case errors.Is(err, common.ErrNotFound):
		return "Product not found"
	case errors.Is(err, common.ErrForbidden):
		return "You can only modify your own products"
	case errors.Is(err, common.ErrInvalidQuantity):
		return "Invalid quantity"
	case errors.Is(err, common.ErrInsufficientStock):
		return "Insufficient stock available"
	case errors.Is(err, storage.ErrImageTooLarge):
		return "Image must be 5MB or smaller"
	case errors.Is(err, storage.ErrNotAnImage):
		return "Only image files are allowed"
	case errors.Is(err, common.ErrImageUpload):
		return "Image upload failed"
	case errors.Is(err, common.ErrUnauthorized):
		return "Unauthorized"
	case errors.Is(err, common.ErrBadRequest):
		return "Invalid request payload"
	}
	return err.Error()
}
