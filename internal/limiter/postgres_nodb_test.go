package limiter

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

/************ fake pgx ************/
type fakeRow struct{ scan func(dest ...any) error }

func (r fakeRow) Scan(dest ...any) error { return r.scan(dest...) }

type fakePool struct {
	qrErr         error
	qrBlockedTill *time.Time
	qrFailsRet    int

	lastExecSQL  string
	lastExecArgs []any
	execErr      error
}

func (f *fakePool) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.lastExecSQL, f.lastExecArgs = sql, args
	return pgconn.CommandTag{}, f.execErr
}

func (f *fakePool) QueryRow(_ context.Context, sql string, _ ...any) pgx.Row {
	switch {
	case strings.Contains(sql, "SELECT blocked_until"):
		return fakeRow{scan: func(dest ...any) error {
			if f.qrErr != nil {
				return f.qrErr
			}
			if f.qrBlockedTill != nil {
				*(dest[0].(*time.Time)) = *f.qrBlockedTill
			} else {
				*(dest[0].(*time.Time)) = time.Time{} // 'epoch'
			}
			return nil
		}}
	case strings.Contains(sql, "RETURNING fail_count"):
		return fakeRow{scan: func(dest ...any) error {
			if f.qrErr != nil {
				return f.qrErr
			}
			*(dest[0].(*int)) = f.qrFailsRet
			return nil
		}}
	default:
		return fakeRow{scan: func(...any) error { return errors.New("unexpected query") }}
	}
}

var testSettings = Settings{Window: 15 * time.Minute, MaxFails: 5, BlockFor: 10 * time.Minute}

func TestPGAllow_NoRow_Allows(t *testing.T) {
	l := NewPG(&fakePool{qrErr: pgx.ErrNoRows}, testSettings)

	ok, dur, err := l.Allow(context.Background(), "a@example.com", []byte("h"))
	if err != nil || !ok || dur != 0 {
		t.Fatalf("Allow no-row: ok=%v dur=%v err=%v", ok, dur, err)
	}
}

func TestPGAllow_BlockedUntilFuture(t *testing.T) {
	now := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	fut := now.Add(10 * time.Minute)
	l := NewPG(&fakePool{qrBlockedTill: &fut}, testSettings)
	l.now = func() time.Time { return now }

	ok, dur, err := l.Allow(context.Background(), "a@example.com", []byte("h"))
	if err != nil || ok || dur != 10*time.Minute {
		t.Fatalf("Allow blocked: ok=%v dur=%v err=%v", ok, dur, err)
	}
}

func TestPGAllow_PastOrEpoch_Allows(t *testing.T) {
	past := time.Now().Add(-time.Minute)
	l := NewPG(&fakePool{qrBlockedTill: &past}, testSettings)

	ok, dur, err := l.Allow(context.Background(), "a@example.com", []byte("h"))
	if err != nil || !ok || dur != 0 {
		t.Fatalf("Allow past: ok=%v dur=%v err=%v", ok, dur, err)
	}
}

func TestPGAllow_DBError_Propagates(t *testing.T) {
	l := NewPG(&fakePool{qrErr: errors.New("db boom")}, testSettings)

	ok, _, err := l.Allow(context.Background(), "a@example.com", []byte("h"))
	if err == nil || ok {
		t.Fatalf("want error propagate, got ok=%v err=%v", ok, err)
	}
}

func TestPGSuccess(t *testing.T) {
	fp := &fakePool{}
	l := NewPG(fp, testSettings)

	if err := l.Success(context.Background(), "a@example.com", []byte("h")); err != nil {
		t.Fatalf("success err: %v", err)
	}
	if !strings.Contains(fp.lastExecSQL, "INSERT INTO auth_limiter") {
		t.Fatalf("unexpected exec: %s", fp.lastExecSQL)
	}

	fp.execErr = errors.New("exec fail")
	if err := l.Success(context.Background(), "a@example.com", []byte("h")); err == nil {
		t.Fatalf("want exec error")
	}
}

func TestPGFailure_Increments_NoBlock(t *testing.T) {
	l := NewPG(&fakePool{qrFailsRet: 2}, testSettings)

	blocked, dur, err := l.Failure(context.Background(), "a@example.com", []byte("h"))
	if err != nil || blocked || dur != 0 {
		t.Fatalf("Failure no block: blocked=%v dur=%v err=%v", blocked, dur, err)
	}
}

func TestPGFailure_BlocksAtThreshold(t *testing.T) {
	now := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	fp := &fakePool{qrFailsRet: 5}
	l := NewPG(fp, testSettings)
	l.now = func() time.Time { return now }

	blocked, dur, err := l.Failure(context.Background(), "a@example.com", []byte("h"))
	if err != nil || !blocked || dur != 10*time.Minute {
		t.Fatalf("Failure block: blocked=%v dur=%v err=%v", blocked, dur, err)
	}
	if !strings.Contains(fp.lastExecSQL, "UPDATE auth_limiter SET blocked_until") {
		t.Fatalf("must update blocked_until, exec=%s", fp.lastExecSQL)
	}
	if got := fp.lastExecArgs[2].(time.Time); !got.Equal(now.Add(10 * time.Minute)) {
		t.Fatalf("blocked_until=%v", got)
	}
}

func TestPGFailure_DBErrorOnReturning(t *testing.T) {
	l := NewPG(&fakePool{qrErr: errors.New("query error")}, testSettings)

	if _, _, err := l.Failure(context.Background(), "a@example.com", []byte("h")); err == nil {
		t.Fatalf("want error from returning fail_count")
	}
}

func TestHashIP_Determinism(t *testing.T) {
	a := HashIP("1.2.3.4")
	b := HashIP("1.2.3.4")
	c := HashIP("5.6.7.8")
	if string(a) != string(b) || string(a) == string(c) || len(a) != 32 {
		t.Fatalf("hash mismatch/len: %d", len(a))
	}
}
