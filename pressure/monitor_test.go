package pressure

import (
	"errors"
	"testing"
)

func TestMonitor_Levels(t *testing.T) {
	m, err := NewMonitor(100, DefaultThresholds())
	if err != nil {
		t.Fatalf("NewMonitor: %v", err)
	}

	tests := []struct {
		usage uint64
		want  Level
	}{
		{0, LevelNone},
		{59, LevelNone},
		{60, LevelLow},
		{74, LevelLow},
		{75, LevelMedium},
		{82, LevelMedium},
		{85, LevelHigh},
		{94, LevelHigh},
		{95, LevelCritical},
		{120, LevelCritical},
	}
	for _, tt := range tests {
		if got := m.Update(tt.usage); got != tt.want {
			t.Errorf("Update(%d) = %v, want %v", tt.usage, got, tt.want)
		}
		if got := m.Level(); got != tt.want {
			t.Errorf("Level() after Update(%d) = %v, want %v", tt.usage, got, tt.want)
		}
	}
}

func TestMonitor_UsageAndRatio(t *testing.T) {
	m, err := NewMonitor(200, DefaultThresholds())
	if err != nil {
		t.Fatalf("NewMonitor: %v", err)
	}

	m.Update(164)
	if got := m.Usage(); got != 164 {
		t.Errorf("Usage = %d, want 164", got)
	}
	if got := m.Ratio(); got != 0.82 {
		t.Errorf("Ratio = %v, want 0.82", got)
	}
	if got := m.Budget(); got != 200 {
		t.Errorf("Budget = %d, want 200", got)
	}
}

func TestMonitor_HysteresisHoldsLevelOnTheWayDown(t *testing.T) {
	th := DefaultThresholds()
	th.Hysteresis = 0.05
	m, err := NewMonitor(100, th)
	if err != nil {
		t.Fatalf("NewMonitor: %v", err)
	}

	m.Update(80) // medium
	if got := m.Level(); got != LevelMedium {
		t.Fatalf("Level = %v, want medium", got)
	}

	// Dipping just below the medium boundary stays medium.
	if got := m.Update(72); got != LevelMedium {
		t.Errorf("Update(72) = %v, hysteresis should hold medium", got)
	}

	// Clearing the boundary by the margin drops the level.
	if got := m.Update(69); got != LevelLow {
		t.Errorf("Update(69) = %v, want low once clear of the margin", got)
	}

	// Upward transitions are never delayed.
	if got := m.Update(96); got != LevelCritical {
		t.Errorf("Update(96) = %v, upward moves apply immediately", got)
	}
}

func TestMonitor_HysteresisNeverRaisesLevel(t *testing.T) {
	th := DefaultThresholds()
	th.Hysteresis = 0.05
	m, err := NewMonitor(100, th)
	if err != nil {
		t.Fatalf("NewMonitor: %v", err)
	}

	// From none, usage just under a boundary must not round up.
	if got := m.Update(58); got != LevelNone {
		t.Errorf("Update(58) = %v, want none", got)
	}
}

func TestNewMonitor_Validation(t *testing.T) {
	if _, err := NewMonitor(0, DefaultThresholds()); !errors.Is(err, ErrZeroBudget) {
		t.Errorf("zero budget: err = %v, want ErrZeroBudget", err)
	}

	bad := []Thresholds{
		{Low: 0.8, Medium: 0.7, High: 0.85, Critical: 0.95},          // not ascending
		{Low: 0.6, Medium: 0.75, High: 0.85, Critical: 1.5},          // above 1
		{Low: 0, Medium: 0.75, High: 0.85, Critical: 0.95},           // zero bound
		{Low: 0.6, Medium: 0.75, High: 0.85, Critical: 0.95, Hysteresis: 0.7}, // margin past Low
	}
	for _, th := range bad {
		if _, err := NewMonitor(100, th); !errors.Is(err, ErrInvalidThresholds) {
			t.Errorf("thresholds %+v: err = %v, want ErrInvalidThresholds", th, err)
		}
	}
}
