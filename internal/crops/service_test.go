package crops

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/angelmondragon/cropmarket-backend/pkg/db"
	"github.com/angelmondragon/cropmarket-backend/pkg/db/dbtest"
	pkgerrors "github.com/angelmondragon/cropmarket-backend/pkg/errors"
	"github.com/angelmondragon/cropmarket-backend/pkg/pagination"
)

func newTestService(t *testing.T) (Service, Repository) {
	t.Helper()
	conn := dbtest.New(t)
	repo := NewRepository(conn)
	svc, err := NewService(repo, db.Wrap(conn), 10)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, repo
}

func int64Ptr(v int64) *int64 { return &v }

func TestCreateCropDefaults(t *testing.T) {
	svc, _ := newTestService(t)
	farmerID := uuid.New()

	crop, err := svc.Create(context.Background(), CreateCropInput{
		FarmerID:          farmerID,
		Name:              "  Maize ",
		CropType:          "grain",
		PricePerUnitCents: 120,
		Quantity:          500,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if crop.Name != "Maize" || crop.Unit != "kg" || crop.LowStockThreshold != 10 {
		t.Fatalf("unexpected crop %+v", crop)
	}
	if crop.ListedQuantity != 500 || crop.RemainingQuantity != 500 {
		t.Fatalf("remaining should start equal to listed: %+v", crop)
	}

	zero, err := svc.Create(context.Background(), CreateCropInput{
		FarmerID:          farmerID,
		Name:              "Rice",
		CropType:          "grain",
		PricePerUnitCents: 90,
		Quantity:          5,
		LowStockThreshold: int64Ptr(0),
	})
	if err != nil {
		t.Fatalf("create with zero threshold: %v", err)
	}
	stored, err := svc.Get(context.Background(), zero.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.LowStockThreshold != 0 {
		t.Fatalf("explicit zero threshold should persist, got %d", stored.LowStockThreshold)
	}
}

func TestCreateCropValidation(t *testing.T) {
	svc, _ := newTestService(t)
	base := CreateCropInput{FarmerID: uuid.New(), Name: "Wheat", CropType: "grain", PricePerUnitCents: 100, Quantity: 1}

	cases := map[string]func(in *CreateCropInput){
		"missing name":       func(in *CreateCropInput) { in.Name = " " },
		"zero price":         func(in *CreateCropInput) { in.PricePerUnitCents = 0 },
		"negative quantity":  func(in *CreateCropInput) { in.Quantity = -1 },
		"negative threshold": func(in *CreateCropInput) { in.LowStockThreshold = int64Ptr(-1) },
	}
	for name, mutate := range cases {
		input := base
		mutate(&input)
		_, err := svc.Create(context.Background(), input)
		if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
			t.Fatalf("%s: expected validation error, got %v", name, err)
		}
	}
}

func TestUpdateRestockDeleteRequireOwnership(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	farmerID := uuid.New()
	crop, err := svc.Create(ctx, CreateCropInput{FarmerID: farmerID, Name: "Beans", CropType: "legume", PricePerUnitCents: 300, Quantity: 50})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	stranger := uuid.New()

	if _, err := svc.Update(ctx, UpdateCropInput{CropID: crop.ID, FarmerID: stranger, PricePerUnitCents: int64Ptr(1)}); !errors.Is(err, ErrCropNotOwned) {
		t.Fatalf("expected crop not owned on update, got %v", err)
	}
	if _, err := svc.Restock(ctx, crop.ID, stranger, 5); !errors.Is(err, ErrCropNotOwned) {
		t.Fatalf("expected crop not owned on restock, got %v", err)
	}
	if err := svc.Delete(ctx, crop.ID, stranger); !errors.Is(err, ErrCropNotOwned) {
		t.Fatalf("expected crop not owned on delete, got %v", err)
	}

	updated, err := svc.Update(ctx, UpdateCropInput{CropID: crop.ID, FarmerID: farmerID, PricePerUnitCents: int64Ptr(350)})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.PricePerUnitCents != 350 || updated.RemainingQuantity != 50 {
		t.Fatalf("unexpected update result %+v", updated)
	}

	restocked, err := svc.Restock(ctx, crop.ID, farmerID, 25)
	if err != nil {
		t.Fatalf("restock: %v", err)
	}
	if restocked.ListedQuantity != 75 || restocked.RemainingQuantity != 75 {
		t.Fatalf("restock should grow listed and remaining together: %+v", restocked)
	}
	if _, err := svc.Restock(ctx, crop.ID, farmerID, 0); err == nil {
		t.Fatalf("expected validation error for zero restock")
	}

	if err := svc.Delete(ctx, crop.ID, farmerID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.Get(ctx, crop.ID); !errors.Is(err, ErrCropNotFound) {
		t.Fatalf("deleted crop should be hidden, got %v", err)
	}
}

func TestListCropsPaginates(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	farmerID := uuid.New()
	for _, name := range []string{"A", "B", "C"} {
		if _, err := svc.Create(ctx, CreateCropInput{FarmerID: farmerID, Name: name, CropType: "grain", PricePerUnitCents: 10, Quantity: 1}); err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
	}

	first, err := svc.List(ctx, ListFilters{Params: pagination.Params{Limit: 2}})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(first.Items) != 2 || first.NextCursor == "" {
		t.Fatalf("expected 2 items and a cursor, got %d items cursor=%q", len(first.Items), first.NextCursor)
	}
	second, err := svc.List(ctx, ListFilters{Params: pagination.Params{Limit: 2, Cursor: first.NextCursor}})
	if err != nil {
		t.Fatalf("list page 2: %v", err)
	}
	if len(second.Items) != 1 || second.NextCursor != "" {
		t.Fatalf("expected final page with 1 item, got %d cursor=%q", len(second.Items), second.NextCursor)
	}
	seen := map[uuid.UUID]bool{}
	for _, c := range append(first.Items, second.Items...) {
		if seen[c.ID] {
			t.Fatalf("crop %s returned twice", c.ID)
		}
		seen[c.ID] = true
	}

	if _, err := svc.List(ctx, ListFilters{Params: pagination.Params{Cursor: "%%%"}}); err == nil {
		t.Fatalf("expected invalid cursor error")
	}
}
