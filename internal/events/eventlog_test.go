package events

import (
	"context"
	"testing"

	"github.com/Dajus/daal-sub000/internal/db"
)

func TestAppendAndRecent(t *testing.T) {
	ctx := context.Background()
	h, err := db.Open(ctx, db.DriverSQLite, db.MemoryDSN(t.Name()))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer h.Close()

	r := NewRepo(h)
	if err := r.Append(ctx, SessionCreated, "s-1", map[string]string{"email": "a@x"}); err != nil {
		t.Fatal(err)
	}
	if err := r.Append(ctx, AttemptRecorded, "s-1", map[string]int{"attemptNumber": 1}); err != nil {
		t.Fatal(err)
	}
	if err := r.Append(ctx, SessionCreated, "s-2", nil); err != nil {
		t.Fatal(err)
	}

	got, err := r.Recent(ctx, "s-1", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].Type != AttemptRecorded || got[1].Type != SessionCreated {
		t.Fatalf("events = %+v", got)
	}
	if string(got[0].Data) != `{"attemptNumber":1}` {
		t.Fatalf("data = %s", got[0].Data)
	}

	all, err := r.Recent(ctx, "", 0)
	if err != nil || len(all) != 3 {
		t.Fatalf("all = %d, %v", len(all), err)
	}
}
