package reviews

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/cropmarket-backend/internal/purchases"
	"github.com/angelmondragon/cropmarket-backend/pkg/db/models"
	"github.com/angelmondragon/cropmarket-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/cropmarket-backend/pkg/errors"
	"github.com/angelmondragon/cropmarket-backend/pkg/money"
	"github.com/angelmondragon/cropmarket-backend/pkg/outbox"
	"github.com/angelmondragon/cropmarket-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/cropmarket-backend/pkg/pagination"
)

const (
	minRating        = 1
	maxRating        = 5
	maxReviewTextLen = 2000
)

var (
	ErrNotConfirmed    = pkgerrors.NewReason(pkgerrors.CodeStateConflict, pkgerrors.ReasonNotConfirmed, "purchase is not confirmed")
	ErrNotReviewable   = pkgerrors.NewReason(pkgerrors.CodeStateConflict, pkgerrors.ReasonNotReviewable, "purchase has no completed payment")
	ErrAlreadyReviewed = pkgerrors.NewReason(pkgerrors.CodeStateConflict, pkgerrors.ReasonAlreadyReviewed, "purchase already reviewed")
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, events ...outbox.DomainEvent) error
}

// SubmitReviewInput is a dealer rating their own paid purchase.
type SubmitReviewInput struct {
	PurchaseID uuid.UUID
	DealerID   uuid.UUID
	Rating     int
	ReviewText *string
}

// Review is the public view of a reviewed purchase.
type Review struct {
	PurchaseID uuid.UUID `json:"purchase_id"`
	DealerID   uuid.UUID `json:"dealer_id"`
	Rating     int       `json:"rating"`
	ReviewText *string   `json:"review_text,omitempty"`
	ReviewDate time.Time `json:"review_date"`
}

// Summary aggregates ratings for a crop.
type Summary struct {
	AverageRating decimal.Decimal `json:"average_rating"`
	TotalReviews  int64           `json:"total_reviews"`
}

type Service interface {
	SubmitReview(ctx context.Context, input SubmitReviewInput) (*models.PurchaseRequest, error)
	AverageRatingForCrop(ctx context.Context, cropID uuid.UUID) (decimal.Decimal, error)
	TotalReviewsForCrop(ctx context.Context, cropID uuid.UUID) (int64, error)
	SummaryForCrop(ctx context.Context, cropID uuid.UUID) (Summary, error)
	ListReviewsForCrop(ctx context.Context, cropID uuid.UUID, params pagination.Params) (pagination.Page[Review], error)
}

type service struct {
	repo   Repository
	tx     txRunner
	outbox outboxPublisher
	now    func() time.Time
}

func NewService(repo Repository, tx txRunner, outbox outboxPublisher) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("reviews repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{
		repo:   repo,
		tx:     tx,
		outbox: outbox,
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

// SubmitReview records a one-time rating. Input is validated before any
// read, then ownership, confirmation, payment and prior review are checked in
// that order.
func (s *service) SubmitReview(ctx context.Context, input SubmitReviewInput) (*models.PurchaseRequest, error) {
	if input.Rating < minRating || input.Rating > maxRating {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "rating must be between 1 and 5").
			WithDetails(map[string]string{"rating": "must be between 1 and 5"})
	}
	text := normalizeText(input.ReviewText)
	if text != nil && utf8.RuneCountInString(*text) > maxReviewTextLen {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "review text too long").
			WithDetails(map[string]string{"review_text": fmt.Sprintf("must be at most %d characters", maxReviewTextLen)})
	}
	if input.PurchaseID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "purchase id required")
	}
	if input.DealerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	var reviewed *models.PurchaseRequest
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		purchase, err := repo.FindPurchaseForUpdate(ctx, input.PurchaseID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return purchases.ErrPurchaseNotFound
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load purchase")
		}
		if purchase.DealerID != input.DealerID {
			return purchases.ErrPurchaseNotOwned
		}
		if !purchase.IsConfirmed {
			return ErrNotConfirmed
		}

		payment, err := repo.FindPayment(ctx, purchase.ID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
		}
		if payment == nil || !payment.CanBeReviewed {
			return ErrNotReviewable
		}
		if purchase.HasBeenReviewed {
			return ErrAlreadyReviewed
		}

		at := s.now()
		ok, err := repo.MarkReviewed(ctx, purchase.ID, input.Rating, text, at)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store review")
		}
		if !ok {
			return ErrAlreadyReviewed
		}
		rating := input.Rating
		purchase.Rating = &rating
		purchase.ReviewText = text
		purchase.ReviewDate = &at
		purchase.HasBeenReviewed = true

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPurchaseReviewed,
			AggregateType: enums.AggregatePurchaseRequest,
			AggregateID:   purchase.ID,
			Actor:         &outbox.ActorRef{UserID: input.DealerID, Role: enums.RoleDealer},
			Data: payloads.PurchaseReviewedEvent{
				PurchaseID: purchase.ID,
				CropID:     purchase.CropID,
				DealerID:   purchase.DealerID,
				FarmerID:   purchase.FarmerID,
				Rating:     rating,
				ReviewText: text,
			},
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit purchase reviewed")
		}
		reviewed = purchase
		return nil
	})
	if err != nil {
		return nil, err
	}
	return reviewed, nil
}

func (s *service) AverageRatingForCrop(ctx context.Context, cropID uuid.UUID) (decimal.Decimal, error) {
	summary, err := s.SummaryForCrop(ctx, cropID)
	if err != nil {
		return decimal.Zero, err
	}
	return summary.AverageRating, nil
}

func (s *service) TotalReviewsForCrop(ctx context.Context, cropID uuid.UUID) (int64, error) {
	summary, err := s.SummaryForCrop(ctx, cropID)
	if err != nil {
		return 0, err
	}
	return summary.TotalReviews, nil
}

func (s *service) SummaryForCrop(ctx context.Context, cropID uuid.UUID) (Summary, error) {
	if cropID == uuid.Nil {
		return Summary{}, pkgerrors.New(pkgerrors.CodeValidation, "crop id required")
	}
	sum, count, err := s.repo.CropStats(ctx, cropID)
	if err != nil {
		return Summary{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load crop ratings")
	}
	return Summary{AverageRating: money.Average(sum, count), TotalReviews: count}, nil
}

func (s *service) ListReviewsForCrop(ctx context.Context, cropID uuid.UUID, params pagination.Params) (pagination.Page[Review], error) {
	if cropID == uuid.Nil {
		return pagination.Page[Review]{}, pkgerrors.New(pkgerrors.CodeValidation, "crop id required")
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return pagination.Page[Review]{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.ListForCrop(ctx, cropID, cursor, params.Limit)
	if err != nil {
		return pagination.Page[Review]{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list reviews")
	}
	items := make([]Review, 0, len(rows))
	for _, row := range rows {
		items = append(items, toReview(row))
	}
	return pagination.Build(items, params.Limit, func(r Review) pagination.Cursor {
		return pagination.Cursor{CreatedAt: r.ReviewDate, ID: r.PurchaseID}
	}), nil
}

func toReview(p models.PurchaseRequest) Review {
	review := Review{PurchaseID: p.ID, DealerID: p.DealerID, ReviewText: p.ReviewText}
	if p.Rating != nil {
		review.Rating = *p.Rating
	}
	if p.ReviewDate != nil {
		review.ReviewDate = *p.ReviewDate
	}
	return review
}

func normalizeText(text *string) *string {
	if text == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*text)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
