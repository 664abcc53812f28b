package crops

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/angelmondragon/cropmarket-backend/pkg/db/dbtest"
	"github.com/angelmondragon/cropmarket-backend/pkg/db/models"
)

func seedCrop(t *testing.T, repo Repository, farmerID uuid.UUID, qty int64) *models.Crop {
	t.Helper()
	crop := &models.Crop{
		FarmerID:          farmerID,
		Name:              "Wheat",
		CropType:          "grain",
		Unit:              "kg",
		PricePerUnitCents: 250,
		ListedQuantity:    qty,
		RemainingQuantity: qty,
		LowStockThreshold: 10,
	}
	if err := repo.Create(context.Background(), crop); err != nil {
		t.Fatalf("seed crop: %v", err)
	}
	return crop
}

func TestReserveGuardsRemainingQuantity(t *testing.T) {
	repo := NewRepository(dbtest.New(t))
	ctx := context.Background()
	crop := seedCrop(t, repo, uuid.New(), 100)

	ok, err := repo.Reserve(ctx, crop.ID, 60)
	if err != nil || !ok {
		t.Fatalf("first reserve: ok=%v err=%v", ok, err)
	}
	ok, err = repo.Reserve(ctx, crop.ID, 50)
	if err != nil {
		t.Fatalf("second reserve: %v", err)
	}
	if ok {
		t.Fatalf("expected guard to reject reserve beyond remaining stock")
	}

	reloaded, err := repo.FindByID(ctx, crop.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.RemainingQuantity != 40 || reloaded.ListedQuantity != 100 {
		t.Fatalf("unexpected quantities %+v", reloaded)
	}
}

// TestReserveIgnoresStaleRead checks that the guard reads the row at write
// time: stock drained after the caller loaded the crop still blocks the
// decrement even though the loaded copy says there is enough.
func TestReserveIgnoresStaleRead(t *testing.T) {
	conn := dbtest.New(t)
	repo := NewRepository(conn)
	ctx := context.Background()
	crop := seedCrop(t, repo, uuid.New(), 100)

	loaded, err := repo.FindByID(ctx, crop.ID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := conn.Exec(`UPDATE crops SET remaining_quantity = 30 WHERE id = ?`, crop.ID).Error; err != nil {
		t.Fatalf("drain: %v", err)
	}
	if loaded.RemainingQuantity < 60 {
		t.Fatalf("loaded copy should still show the old stock, got %d", loaded.RemainingQuantity)
	}

	ok, err := repo.Reserve(ctx, crop.ID, 60)
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if ok {
		t.Fatalf("expected guard to reject a reserve the stale copy would allow")
	}
	reloaded, err := repo.FindByID(ctx, crop.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.RemainingQuantity != 30 {
		t.Fatalf("expected remaining 30 untouched, got %d", reloaded.RemainingQuantity)
	}
}

// dbtest holds a single connection, so the two goroutines below take turns;
// this pins the guard's outcome, not postgres row locking.
func TestReserveConcurrentOnlyOneWins(t *testing.T) {
	repo := NewRepository(dbtest.New(t))
	ctx := context.Background()
	crop := seedCrop(t, repo, uuid.New(), 100)

	var wg sync.WaitGroup
	results := make([]bool, 2)
	for i, qty := range []int64{60, 50} {
		wg.Add(1)
		go func(i int, qty int64) {
			defer wg.Done()
			ok, err := repo.Reserve(ctx, crop.ID, qty)
			if err != nil {
				t.Errorf("reserve %d: %v", qty, err)
			}
			results[i] = ok
		}(i, qty)
	}
	wg.Wait()

	if results[0] == results[1] {
		t.Fatalf("expected exactly one reservation to succeed, got %v", results)
	}
	reloaded, err := repo.FindByID(ctx, crop.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.RemainingQuantity != 40 && reloaded.RemainingQuantity != 50 {
		t.Fatalf("unexpected remaining %d", reloaded.RemainingQuantity)
	}
}

func TestReserveRejectsDeletedCrop(t *testing.T) {
	repo := NewRepository(dbtest.New(t))
	ctx := context.Background()
	crop := seedCrop(t, repo, uuid.New(), 10)

	if err := repo.SoftDelete(ctx, crop.ID); err != nil {
		t.Fatalf("soft delete: %v", err)
	}
	ok, err := repo.Reserve(ctx, crop.ID, 1)
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if ok {
		t.Fatalf("deleted crop must not be reservable")
	}
}

func TestReleaseAndRestock(t *testing.T) {
	repo := NewRepository(dbtest.New(t))
	ctx := context.Background()
	crop := seedCrop(t, repo, uuid.New(), 20)

	if ok, err := repo.Reserve(ctx, crop.ID, 15); err != nil || !ok {
		t.Fatalf("reserve: ok=%v err=%v", ok, err)
	}
	if err := repo.Release(ctx, crop.ID, 15); err != nil {
		t.Fatalf("release: %v", err)
	}
	if err := repo.Release(ctx, crop.ID, 1); err == nil {
		t.Fatalf("release above listed quantity should fail")
	}
	if err := repo.Restock(ctx, crop.ID, 5); err != nil {
		t.Fatalf("restock: %v", err)
	}
	reloaded, err := repo.FindByID(ctx, crop.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.ListedQuantity != 25 || reloaded.RemainingQuantity != 25 {
		t.Fatalf("unexpected quantities %+v", reloaded)
	}
}
