package crops

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/cropmarket-backend/api/middleware"
	"github.com/angelmondragon/cropmarket-backend/api/responses"
	"github.com/angelmondragon/cropmarket-backend/api/validators"
	internalcrops "github.com/angelmondragon/cropmarket-backend/internal/crops"
	"github.com/angelmondragon/cropmarket-backend/internal/reviews"
	"github.com/angelmondragon/cropmarket-backend/pkg/db/models"
	"github.com/angelmondragon/cropmarket-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/cropmarket-backend/pkg/errors"
	"github.com/angelmondragon/cropmarket-backend/pkg/logger"
	"github.com/angelmondragon/cropmarket-backend/pkg/pagination"
)

// RatingReader exposes the review aggregates shown on crop listings.
type RatingReader interface {
	SummaryForCrop(ctx context.Context, cropID uuid.UUID) (reviews.Summary, error)
	ListReviewsForCrop(ctx context.Context, cropID uuid.UUID, params pagination.Params) (pagination.Page[reviews.Review], error)
}

// List returns active crops, newest first. Farmers may pass mine=true to see only their own listings.
func List(svc internalcrops.Service, ratings RatingReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil || ratings == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "crops service unavailable"))
			return
		}

		params, err := validators.ParsePageParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		mine, err := validators.ParseQueryBool(r, "mine")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		filters := internalcrops.ListFilters{
			CropType: validators.SanitizeString(r.URL.Query().Get("crop_type"), 60),
			Params:   params,
		}
		if mine {
			userID, role, ok := middleware.ActorFromContext(r.Context())
			if !ok || role != enums.RoleFarmer {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "mine filter requires a farmer"))
				return
			}
			filters.FarmerID = &userID
		}

		page, err := svc.List(r.Context(), filters)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]CropResponse, 0, len(page.Items))
		for i := range page.Items {
			resp, err := withRating(r.Context(), ratings, &page.Items[i])
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			items = append(items, resp)
		}
		responses.WriteSuccess(w, pagination.Page[CropResponse]{Items: items, NextCursor: page.NextCursor})
	}
}

// Detail returns a single active crop.
func Detail(svc internalcrops.Service, ratings RatingReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil || ratings == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "crops service unavailable"))
			return
		}
		cropID, err := validators.ParseUUIDParam(r, "cropId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		crop, err := svc.Get(r.Context(), cropID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		resp, err := withRating(r.Context(), ratings, crop)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, resp)
	}
}

// Reviews pages through the reviews left on a crop.
func Reviews(svc internalcrops.Service, ratings RatingReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil || ratings == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reviews service unavailable"))
			return
		}
		cropID, err := validators.ParseUUIDParam(r, "cropId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params, err := validators.ParsePageParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if _, err := svc.Get(r.Context(), cropID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := ratings.ListReviewsForCrop(r.Context(), cropID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

// Create lists a new crop for the calling farmer.
func Create(svc internalcrops.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "crops service unavailable"))
			return
		}
		farmerID, ok := farmerFromContext(r)
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
			return
		}

		var payload createCropRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		crop, err := svc.Create(r.Context(), internalcrops.CreateCropInput{
			FarmerID:          farmerID,
			Name:              payload.Name,
			CropType:          payload.CropType,
			Unit:              payload.Unit,
			PricePerUnitCents: payload.PricePerUnitCents,
			Quantity:          payload.Quantity,
			LowStockThreshold: payload.LowStockThreshold,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newCropResponse(crop, reviews.Summary{}))
	}
}

// Update edits a crop the calling farmer owns.
func Update(svc internalcrops.Service, ratings RatingReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil || ratings == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "crops service unavailable"))
			return
		}
		farmerID, ok := farmerFromContext(r)
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
			return
		}
		cropID, err := validators.ParseUUIDParam(r, "cropId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload updateCropRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		crop, err := svc.Update(r.Context(), internalcrops.UpdateCropInput{
			CropID:            cropID,
			FarmerID:          farmerID,
			Name:              payload.Name,
			CropType:          payload.CropType,
			PricePerUnitCents: payload.PricePerUnitCents,
			LowStockThreshold: payload.LowStockThreshold,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeCrop(w, r, ratings, crop, logg)
	}
}

// Restock adds quantity to both the listed and remaining counters.
func Restock(svc internalcrops.Service, ratings RatingReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil || ratings == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "crops service unavailable"))
			return
		}
		farmerID, ok := farmerFromContext(r)
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
			return
		}
		cropID, err := validators.ParseUUIDParam(r, "cropId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload restockRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		crop, err := svc.Restock(r.Context(), cropID, farmerID, payload.Quantity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeCrop(w, r, ratings, crop, logg)
	}
}

// Delete soft-deletes a crop the calling farmer owns.
func Delete(svc internalcrops.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "crops service unavailable"))
			return
		}
		farmerID, ok := farmerFromContext(r)
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
			return
		}
		cropID, err := validators.ParseUUIDParam(r, "cropId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Delete(r.Context(), cropID, farmerID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteNoContent(w)
	}
}

func writeCrop(w http.ResponseWriter, r *http.Request, ratings RatingReader, crop *models.Crop, logg *logger.Logger) {
	resp, err := withRating(r.Context(), ratings, crop)
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return
	}
	responses.WriteSuccess(w, resp)
}

func withRating(ctx context.Context, ratings RatingReader, crop *models.Crop) (CropResponse, error) {
	summary, err := ratings.SummaryForCrop(ctx, crop.ID)
	if err != nil {
		return CropResponse{}, err
	}
	return newCropResponse(crop, summary), nil
}

func farmerFromContext(r *http.Request) (uuid.UUID, bool) {
	userID, _, ok := middleware.ActorFromContext(r.Context())
	return userID, ok
}
