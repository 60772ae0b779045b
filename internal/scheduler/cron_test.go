package scheduler

import (
	"testing"
	"time"

	"github.com/shaiso/Convoy/internal/domain"
)

func TestCalculateNextDue_Interval(t *testing.T) {
	sched := &domain.Schedule{IntervalSec: 3600}
	from := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	next, err := CalculateNextDue(sched, from)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !next.Equal(from.Add(time.Hour)) {
		t.Errorf("expected %v, got %v", from.Add(time.Hour), next)
	}
}

func TestCalculateNextDue_Cron(t *testing.T) {
	sched := &domain.Schedule{CronExpr: "0 3 * * *"} // каждый день в 3:00
	from := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	next, err := CalculateNextDue(sched, from)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := time.Date(2025, 6, 2, 3, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("expected %v, got %v", want, next)
	}
}

func TestCalculateNextDue_CronWithTimezone(t *testing.T) {
	sched := &domain.Schedule{
		CronExpr: "0 3 * * *",
		Timezone: "Europe/Moscow", // UTC+3
	}
	from := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	next, err := CalculateNextDue(sched, from)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// 3:00 по Москве = 0:00 UTC
	want := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("expected %v, got %v", want, next)
	}
}

func TestCalculateNextDue_InvalidSchedule(t *testing.T) {
	sched := &domain.Schedule{}

	if _, err := CalculateNextDue(sched, time.Now()); err == nil {
		t.Error("expected error for schedule without cron or interval")
	}
}

func TestCalculateNextDue_InvalidCron(t *testing.T) {
	sched := &domain.Schedule{CronExpr: "not a cron"}

	if _, err := CalculateNextDue(sched, time.Now()); err == nil {
		t.Error("expected error for invalid cron expression")
	}
}

func TestValidateCronExpr(t *testing.T) {
	if err := ValidateCronExpr("*/5 * * * *"); err != nil {
		t.Errorf("unexpected error for valid expression: %v", err)
	}
	if err := ValidateCronExpr("61 * * * *"); err == nil {
		t.Error("expected error for invalid expression")
	}
}
