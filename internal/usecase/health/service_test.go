package health

import (
	"context"
	"errors"
	"testing"
)

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

func TestCheckHealthy(t *testing.T) {
	svc := New(fakePinger{})
	rep := svc.Check(context.Background())

	if rep.Status != Healthy {
		t.Fatalf("Status = %q, want ok", rep.Status)
	}
	if rep.Checks["database"] != CheckOK {
		t.Errorf("database check = %q, want ok", rep.Checks["database"])
	}
}

func TestCheckDegraded(t *testing.T) {
	svc := New(fakePinger{err: errors.New("connection refused")})
	rep := svc.Check(context.Background())

	if rep.Status != Degraded {
		t.Fatalf("Status = %q, want degraded", rep.Status)
	}
	if rep.Checks["database"] != CheckError {
		t.Errorf("database check = %q, want error", rep.Checks["database"])
	}
}

func TestCheckNoDatabase(t *testing.T) {
	svc := New(nil)
	rep := svc.Check(context.Background())

	if rep.Status != Healthy {
		t.Fatalf("Status = %q, want ok without a database", rep.Status)
	}
	if len(rep.Checks) != 0 {
		t.Errorf("Checks = %v, want none", rep.Checks)
	}
}
