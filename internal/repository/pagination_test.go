package repository

import (
	"testing"
	"time"

	"github.com/dujiao-next/affiliate/internal/models"
)

func TestSystemLogListPagesNewestFirst(t *testing.T) {
	db := setupRepositoryTestDB(t, "pagination")
	repo := NewSystemLogRepository(db)
	base := time.Now().UTC().Truncate(time.Second)
	for i := 0; i < 5; i++ {
		log := &models.SystemLog{Level: "info", Source: "test", Message: "entry", CreatedAt: base.Add(time.Duration(i) * time.Minute)}
		if err := repo.Create(log); err != nil {
			t.Fatalf("create log failed: %v", err)
		}
	}
	same := &models.SystemLog{Level: "info", Source: "test", Message: "tie", CreatedAt: base.Add(4 * time.Minute)}
	if err := repo.Create(same); err != nil {
		t.Fatalf("create log failed: %v", err)
	}

	first, total, err := repo.List(SystemLogListFilter{Page: 1, PageSize: 2})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if total != 6 || len(first) != 2 {
		t.Fatalf("unexpected page total=%d len=%d", total, len(first))
	}
	if first[0].ID != same.ID || !first[1].CreatedAt.Equal(base.Add(4*time.Minute)) {
		t.Fatalf("expected newest first with id tie-break, got %+v", first)
	}

	last, _, err := repo.List(SystemLogListFilter{Page: 3, PageSize: 2})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(last) != 2 || !last[1].CreatedAt.Equal(base) {
		t.Fatalf("unexpected last page %+v", last)
	}

	all, _, err := repo.List(SystemLogListFilter{Page: 0, PageSize: 0})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(all) != 6 {
		t.Fatalf("pageSize 0 should return all rows, got %d", len(all))
	}
}
