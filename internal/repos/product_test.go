package repos

import (
  "context"
  "errors"
  "testing"
  "github.com/jibbs1703/Retail-Chat-Agent/internal/repos/testutil"
  "github.com/jibbs1703/Retail-Chat-Agent/internal/types"
  "github.com/google/uuid"
)

func TestProductRepoUpsert(t *testing.T) {
  db := testutil.DB(t)
  tx := testutil.Tx(t, db)

  repo := NewProductRepo(db, testutil.Logger(t))
  ctx := context.Background()

  created, err := repo.Upsert(ctx, tx, &types.Product{
    Title:      "Leather Sofa",
    Price:      899.99,
    Category:   "sofas",
    ProductURL: "https://shop.example.com/sofas/leather-sofa",
  })
  if err != nil {
    t.Fatalf("Upsert: %v", err)
  }
  if created.ID == uuid.Nil {
    t.Fatalf("Upsert: expected generated ID")
  }

  updated, err := repo.Upsert(ctx, tx, &types.Product{
    Title:      "Leather Sofa (Brown)",
    Price:      799.99,
    Category:   "sofas",
    ProductURL: "https://shop.example.com/sofas/leather-sofa",
  })
  if err != nil {
    t.Fatalf("Upsert (conflict): %v", err)
  }
  if updated.ID != created.ID {
    t.Fatalf("Upsert (conflict): expected existing ID %s, got %s", created.ID, updated.ID)
  }

  got, err := repo.GetByID(ctx, tx, created.ID)
  if err != nil {
    t.Fatalf("GetByID: %v", err)
  }
  if got.Title != "Leather Sofa (Brown)" || got.Price != 799.99 {
    t.Fatalf("GetByID: conflict upsert did not refresh fields: %+v", got)
  }
}

func TestProductRepoLookups(t *testing.T) {
  db := testutil.DB(t)
  tx := testutil.Tx(t, db)

  repo := NewProductRepo(db, testutil.Logger(t))
  ctx := context.Background()

  first, err := repo.Upsert(ctx, tx, &types.Product{
    Title:      "Oak Table",
    Category:   "tables",
    ProductURL: "https://shop.example.com/tables/oak-table",
  })
  if err != nil {
    t.Fatalf("Upsert: %v", err)
  }
  second, err := repo.Upsert(ctx, tx, &types.Product{
    Title:      "Walnut Table",
    Category:   "tables",
    ProductURL: "https://shop.example.com/tables/walnut-table",
  })
  if err != nil {
    t.Fatalf("Upsert: %v", err)
  }

  byIDs, err := repo.GetByIDs(ctx, tx, []uuid.UUID{first.ID, second.ID})
  if err != nil {
    t.Fatalf("GetByIDs: %v", err)
  }
  if len(byIDs) != 2 {
    t.Fatalf("GetByIDs: expected 2 products, got %d", len(byIDs))
  }

  byURL, err := repo.GetByProductURL(ctx, tx, "https://shop.example.com/tables/oak-table")
  if err != nil {
    t.Fatalf("GetByProductURL: %v", err)
  }
  if byURL.ID != first.ID {
    t.Fatalf("GetByProductURL: expected %s, got %s", first.ID, byURL.ID)
  }

  byCategory, err := repo.ListByCategory(ctx, tx, "tables", 10)
  if err != nil {
    t.Fatalf("ListByCategory: %v", err)
  }
  if len(byCategory) != 2 {
    t.Fatalf("ListByCategory: expected 2 products, got %d", len(byCategory))
  }

  if err := repo.DeleteByID(ctx, tx, first.ID); err != nil {
    t.Fatalf("DeleteByID: %v", err)
  }
  if _, err := repo.GetByID(ctx, tx, first.ID); !errors.Is(err, ErrProductNotFound) {
    t.Fatalf("GetByID (deleted): expected ErrProductNotFound, got %v", err)
  }
}
