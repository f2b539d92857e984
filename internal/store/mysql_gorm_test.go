package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/apshuang/ShareDocs/internal/collab"
	"github.com/apshuang/ShareDocs/internal/op"
)

// 需要本地 MySQL；没有就跳过（与 redis 测试同策略）。
// 建表走 InitMySQL，读写走原生 SQL，两条路径共用同一份 schema。
func openTestMySQL(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("MYSQL_TEST_DSN")
	if dsn == "" {
		t.Skip("MYSQL_TEST_DSN not set, skipping mysql tests")
	}
	if _, err := InitMySQL(dsn); err != nil {
		t.Skipf("mysql not available: %v", err)
	}
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		t.Skipf("mysql not available: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestInitMySQL_ProvisionsRawSQLTables(t *testing.T) {
	db := openTestMySQL(t)
	ctx := context.Background()

	users := NewUserStore(db)
	username := fmt.Sprintf("migrate-%d", time.Now().UnixNano())
	userID, err := users.CreateUser(ctx, username, username+"@example.com", []byte("hash"), "")
	if err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	if err := users.SetColor(ctx, userID, "#FF6B6B"); err != nil {
		t.Fatalf("SetColor() error = %v", err)
	}
	u, err := users.GetByID(ctx, userID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if u.Color != "#FF6B6B" {
		t.Fatalf("Color = %q, want %q", u.Color, "#FF6B6B")
	}

	oplog := NewOperationStore(db)
	rec := collab.OperationRecord{
		DocID:         uint64(time.Now().UnixNano()),
		UserID:        userID,
		OperationType: string(op.KindInsert),
		OperationData: op.Operation{Type: op.KindInsert, FromPos: 0, ToPos: 0, Content: "x"},
		VersionBefore: 0,
		VersionAfter:  1,
	}
	if err := oplog.RecordOperation(ctx, rec); err != nil {
		t.Fatalf("RecordOperation() error = %v", err)
	}
	// 同一 (doc, sequence) 重复落盘应幂等
	if err := oplog.RecordOperation(ctx, rec); err != nil {
		t.Fatalf("RecordOperation() duplicate error = %v", err)
	}
}
