package purchases

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/cropmarket-backend/api/middleware"
	"github.com/angelmondragon/cropmarket-backend/api/responses"
	"github.com/angelmondragon/cropmarket-backend/api/validators"
	"github.com/angelmondragon/cropmarket-backend/internal/payments"
	internalpurchases "github.com/angelmondragon/cropmarket-backend/internal/purchases"
	"github.com/angelmondragon/cropmarket-backend/internal/reviews"
	"github.com/angelmondragon/cropmarket-backend/pkg/db/models"
	"github.com/angelmondragon/cropmarket-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/cropmarket-backend/pkg/errors"
	"github.com/angelmondragon/cropmarket-backend/pkg/logger"
	"github.com/angelmondragon/cropmarket-backend/pkg/pagination"
)

// PaymentService is the slice of the payments service the purchase routes use.
type PaymentService interface {
	CreatePaymentIntent(ctx context.Context, purchaseID, dealerID uuid.UUID) (*payments.IntentResult, error)
	GetForPurchase(ctx context.Context, purchaseID, userID uuid.UUID) (*models.Payment, error)
}

// ReviewSubmitter records a dealer review.
type ReviewSubmitter interface {
	SubmitReview(ctx context.Context, input reviews.SubmitReviewInput) (*models.PurchaseRequest, error)
}

// Create opens a purchase request for the calling dealer.
func Create(svc internalpurchases.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "purchases service unavailable"))
			return
		}
		dealerID, _, ok := middleware.ActorFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
			return
		}

		var payload createPurchaseRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		cropID, err := uuid.Parse(payload.CropID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid crop_id"))
			return
		}

		purchase, err := svc.CreateRequest(r.Context(), internalpurchases.CreateRequestInput{
			CropID:   cropID,
			DealerID: dealerID,
			Quantity: payload.Quantity,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newPurchaseResponse(purchase))
	}
}

// List returns the dealer's requests or the farmer's incoming requests depending on role.
func List(svc internalpurchases.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "purchases service unavailable"))
			return
		}
		userID, role, ok := middleware.ActorFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
			return
		}

		params, err := validators.ParsePageParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var page pagination.Page[models.PurchaseRequest]
		switch role {
		case enums.RoleDealer:
			page, err = svc.ListForDealer(r.Context(), userID, params)
		case enums.RoleFarmer:
			page, err = svc.ListForFarmer(r.Context(), userID, params)
		default:
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "unsupported role"))
			return
		}
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]PurchaseResponse, 0, len(page.Items))
		for i := range page.Items {
			items = append(items, newPurchaseResponse(&page.Items[i]))
		}
		responses.WriteSuccess(w, pagination.Page[PurchaseResponse]{Items: items, NextCursor: page.NextCursor})
	}
}

// Detail returns one purchase, with its payment when one exists, to the dealer, the farmer or an admin.
func Detail(svc internalpurchases.Service, paymentSvc PaymentService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil || paymentSvc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "purchases service unavailable"))
			return
		}
		userID, role, ok := middleware.ActorFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
			return
		}
		purchaseID, err := validators.ParseUUIDParam(r, "purchaseId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithPurchaseID(ctx, purchaseID.String())
		}

		purchase, err := svc.Get(ctx, purchaseID, internalpurchases.Actor{UserID: userID, Role: role})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		resp := newPurchaseResponse(purchase)

		// payments are readable by the two parties; admins see the purchase only
		if role != enums.RoleAdmin {
			payment, err := paymentSvc.GetForPurchase(ctx, purchaseID, userID)
			switch {
			case err == nil:
				resp.Payment = newPaymentResponse(payment)
			case errors.Is(err, payments.ErrPaymentNotFound):
			default:
				responses.WriteError(ctx, logg, w, err)
				return
			}
		}
		responses.WriteSuccess(w, resp)
	}
}

// Confirm lets the crop's farmer accept a request and reserve stock.
func Confirm(svc internalpurchases.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "purchases service unavailable"))
			return
		}
		farmerID, _, ok := middleware.ActorFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
			return
		}
		purchaseID, err := validators.ParseUUIDParam(r, "purchaseId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithPurchaseID(ctx, purchaseID.String())
		}

		purchase, err := svc.ConfirmAndReserve(ctx, internalpurchases.ConfirmInput{
			PurchaseID: purchaseID,
			FarmerID:   farmerID,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, newPurchaseResponse(purchase))
	}
}

// Delete withdraws a dealer's request.
func Delete(svc internalpurchases.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "purchases service unavailable"))
			return
		}
		dealerID, _, ok := middleware.ActorFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
			return
		}
		purchaseID, err := validators.ParseUUIDParam(r, "purchaseId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithPurchaseID(ctx, purchaseID.String())
		}

		if err := svc.Delete(ctx, purchaseID, dealerID); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteNoContent(w)
	}
}

// PaymentIntent opens a gateway payment for a confirmed purchase.
func PaymentIntent(paymentSvc PaymentService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if paymentSvc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}
		dealerID, _, ok := middleware.ActorFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
			return
		}
		purchaseID, err := validators.ParseUUIDParam(r, "purchaseId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithPurchaseID(ctx, purchaseID.String())
		}

		result, err := paymentSvc.CreatePaymentIntent(ctx, purchaseID, dealerID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newIntentResponse(result))
	}
}

// Review records the dealer's rating once the payment has completed.
func Review(svc ReviewSubmitter, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reviews service unavailable"))
			return
		}
		dealerID, _, ok := middleware.ActorFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
			return
		}
		purchaseID, err := validators.ParseUUIDParam(r, "purchaseId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload reviewRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithPurchaseID(ctx, purchaseID.String())
		}

		purchase, err := svc.SubmitReview(ctx, reviews.SubmitReviewInput{
			PurchaseID: purchaseID,
			DealerID:   dealerID,
			Rating:     payload.Rating,
			ReviewText: payload.ReviewText,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, newPurchaseResponse(purchase))
	}
}
