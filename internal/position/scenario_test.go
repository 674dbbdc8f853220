package position

import (
	"errors"
	"math"
	"testing"
)

func TestSolveDCAVolumeRoundTrip(t *testing.T) {
	// Long holding 1000 units at 0.50 average, price now 0.40: how much to
	// buy to pull the average down to 0.46?
	res, err := SolveDCAVolume(0.50, 1000, 0.46, 0.40, Long)
	if err != nil {
		t.Fatalf("SolveDCAVolume() error = %v", err)
	}

	// Averaging the solved volume back in must land on the target.
	gotAvg := (0.50*1000 + 0.40*res.Volume) / (1000 + res.Volume)
	if math.Abs(gotAvg-0.46) > 1e-6 {
		t.Errorf("round-trip average = %v, want 0.46", gotAvg)
	}
	if math.Abs(res.Volume-1000.0/1.5) > 1e-6 {
		t.Errorf("volume = %v, want 666.667", res.Volume)
	}
	if math.Abs(res.Notional-res.Volume*0.40) > 1e-9 {
		t.Errorf("notional = %v, want volume * price", res.Notional)
	}
	if math.Abs(res.NewVolume-(1000+res.Volume)) > 1e-9 {
		t.Errorf("new volume = %v, want current + solved", res.NewVolume)
	}
}

func TestSolveDCAVolumeShort(t *testing.T) {
	// Short at 0.50 average with price at 0.60 averages its entry UP.
	res, err := SolveDCAVolume(0.50, 1000, 0.54, 0.60, Short)
	if err != nil {
		t.Fatalf("SolveDCAVolume() error = %v", err)
	}
	gotAvg := (0.50*1000 + 0.60*res.Volume) / (1000 + res.Volume)
	if math.Abs(gotAvg-0.54) > 1e-6 {
		t.Errorf("round-trip average = %v, want 0.54", gotAvg)
	}
}

func TestSolveDCAVolumeInfeasibleTargets(t *testing.T) {
	cases := []struct {
		name                    string
		avg, vol, target, price float64
		dir                     Direction
	}{
		{"long target above average", 0.50, 1000, 0.55, 0.40, Long},
		{"long target below price", 0.50, 1000, 0.39, 0.40, Long},
		{"long target equals price", 0.50, 1000, 0.40, 0.40, Long},
		{"short target below average", 0.50, 1000, 0.45, 0.60, Short},
		{"short target above price", 0.50, 1000, 0.65, 0.60, Short},
		{"zero volume", 0.50, 0, 0.46, 0.40, Long},
		{"negative price", 0.50, 1000, 0.46, -1, Long},
		{"unknown direction", 0.50, 1000, 0.46, 0.40, Direction("sideways")},
	}
	for _, tc := range cases {
		if _, err := SolveDCAVolume(tc.avg, tc.vol, tc.target, tc.price, tc.dir); !errors.Is(err, ErrInfeasibleTarget) {
			t.Errorf("%s: err = %v, want ErrInfeasibleTarget", tc.name, err)
		}
	}
}
