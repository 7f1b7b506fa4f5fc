package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	accesssvc "github.com/anatoliitkachenko/dreamcatcher-pay-backend/internal/services/access"
	cancelsvc "github.com/anatoliitkachenko/dreamcatcher-pay-backend/internal/services/cancel"
	checkoutsvc "github.com/anatoliitkachenko/dreamcatcher-pay-backend/internal/services/checkout"
	"github.com/anatoliitkachenko/dreamcatcher-pay-backend/internal/transport/http/dto"
	httperrors "github.com/anatoliitkachenko/dreamcatcher-pay-backend/internal/transport/http/errors"
	"github.com/anatoliitkachenko/dreamcatcher-pay-backend/internal/wayforpay"
)

type PayHandler struct {
	checkout *checkoutsvc.Service
	access   *accesssvc.Service
	cancel   *cancelsvc.Service
}

func NewPayHandler(checkout *checkoutsvc.Service, access *accesssvc.Service, cancel *cancelsvc.Service) *PayHandler {
	return &PayHandler{
		checkout: checkout,
		access:   access,
		cancel:   cancel,
	}
}

func (h *PayHandler) CreateCheckoutSession(w http.ResponseWriter, r *http.Request) {
	if h.checkout == nil {
		writeInternal(w, "CHECKOUT_SERVICE_UNAVAILABLE", "checkout service is unavailable")
		return
	}

	var req dto.CheckoutCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "INVALID_REQUEST", "invalid request body")
		return
	}

	intent, err := h.checkout.CreateIntent(r.Context(), req.UserID, req.PlanType, req.Mode)
	if err != nil {
		switch {
		case errors.Is(err, checkoutsvc.ErrInvalidUserID), errors.Is(err, checkoutsvc.ErrInvalidPlan):
			writeBadRequest(w, "VALIDATION_ERROR", "invalid checkout payload")
		default:
			writeInternal(w, "INTERNAL_ERROR", "failed to create checkout session")
		}
		return
	}

	httperrors.Write(w, http.StatusOK, intent)
}

func (h *PayHandler) CheckAccess(w http.ResponseWriter, r *http.Request) {
	if h.access == nil {
		writeInternal(w, "ACCESS_SERVICE_UNAVAILABLE", "access service is unavailable")
		return
	}

	res := h.access.Check(r.Context(), checkAccessUserID(r))
	httperrors.Write(w, http.StatusOK, dto.CheckAccessResponse{
		Active:          res.Active,
		SubscriptionEnd: res.SubscriptionEnd,
		CancelRequested: res.CancelRequested,
	})
}

func (h *PayHandler) CancelSubscription(w http.ResponseWriter, r *http.Request) {
	if h.cancel == nil {
		writeInternal(w, "CANCEL_SERVICE_UNAVAILABLE", "cancel service is unavailable")
		return
	}

	var req dto.CancelSubscriptionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "INVALID_REQUEST", "invalid request body")
		return
	}

	res, err := h.cancel.Cancel(r.Context(), req.UserID)
	if err != nil {
		switch {
		case errors.Is(err, cancelsvc.ErrNoSubscription):
			httperrors.Write(w, http.StatusNotFound, httperrors.APIError{
				Code:    "NO_SUBSCRIPTION",
				Message: "no active subscription to cancel",
			})
		case errors.Is(err, wayforpay.ErrGateway):
			httperrors.Write(w, http.StatusBadGateway, httperrors.APIError{
				Code:    "GATEWAY_ERROR",
				Message: "payment gateway refused the cancellation",
			})
		default:
			writeInternal(w, "INTERNAL_ERROR", "failed to cancel subscription")
		}
		return
	}

	httperrors.Write(w, http.StatusOK, dto.CancelSubscriptionResponse{
		Cancelled:       res.Cancelled,
		SubscriptionEnd: res.SubscriptionEnd,
		TokenRemoved:    res.TokenRemoved,
	})
}

// checkAccessUserID reads the user id from either surface: ?user_id= on GET,
// a JSON body on POST. Anything unparseable resolves to 0, which the access
// service reads as no access; this endpoint never errors at the caller.
func checkAccessUserID(r *http.Request) int64 {
	if r.Method == http.MethodGet {
		id, _ := strconv.ParseInt(r.URL.Query().Get("user_id"), 10, 64)
		return id
	}
	var req dto.CheckAccessRequest
	if err := decodeJSON(r, &req); err != nil {
		return 0
	}
	return req.UserID
}

func decodeJSON(r *http.Request, target any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(target)
}

func writeBadRequest(w http.ResponseWriter, code, message string) {
	httperrors.Write(w, http.StatusBadRequest, httperrors.APIError{Code: code, Message: message})
}

func writeInternal(w http.ResponseWriter, code, message string) {
	httperrors.Write(w, http.StatusInternalServerError, httperrors.APIError{Code: code, Message: message})
}
