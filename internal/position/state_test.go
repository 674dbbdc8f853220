package position

import (
	"errors"
	"math"
	"testing"
	"time"
)

var baseTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func openLong(t *testing.T) State {
	t.Helper()
	s, err := Open(OpenParams{
		Symbol:     "ETHUSDT",
		Strategy:   "baseline",
		Direction:  Long,
		Price:      100,
		Volume:     10,
		Margin:     200,
		Leverage:   5,
		Confidence: 80,
		Mode:       ModeFull,
		FeePercent: 0.05,
		Now:        baseTime,
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	return s
}

func TestOpenInitializesState(t *testing.T) {
	s := openLong(t)

	if !s.IsOpen || s.Phase != PhaseEntry {
		t.Errorf("open=%v phase=%s, want open in entry phase", s.IsOpen, s.Phase)
	}
	if s.AvgPrice != 100 || s.TotalVolume != 10 || s.TotalMarginUsed != 200 {
		t.Errorf("avg=%v vol=%v margin=%v, want 100/10/200", s.AvgPrice, s.TotalVolume, s.TotalMarginUsed)
	}
	if len(s.Entries) != 1 || s.Entries[0].Kind != EntryInitial || s.Entries[0].ID == "" {
		t.Errorf("entries = %+v, want one initial entry with an id", s.Entries)
	}
	// 100 * 10 * 0.05% taker fee on the opening fill.
	if math.Abs(s.TotalFees-0.5) > 1e-9 {
		t.Errorf("fees = %v, want 0.5", s.TotalFees)
	}
	// Long at 5x with the 0.2/leverage maintenance model: 100 * (1 - 0.2 + 0.04).
	if math.Abs(s.LiquidationPrice-84) > 1e-9 {
		t.Errorf("liquidation price = %v, want 84", s.LiquidationPrice)
	}
	if math.Abs(s.LiquidationDistancePercent-16) > 1e-9 {
		t.Errorf("liquidation distance = %v, want 16%%", s.LiquidationDistancePercent)
	}
}

func TestOpenShortLiquidationAboveEntry(t *testing.T) {
	s, err := Open(OpenParams{
		Symbol: "ETHUSDT", Strategy: "baseline", Direction: Short,
		Price: 100, Volume: 10, Margin: 200, Leverage: 5, Now: baseTime,
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	// 100 * (1 + 0.2 - 0.04).
	if math.Abs(s.LiquidationPrice-116) > 1e-9 {
		t.Errorf("short liquidation price = %v, want 116", s.LiquidationPrice)
	}
}

func TestOpenMaintenanceRateOverride(t *testing.T) {
	s, err := Open(OpenParams{
		Symbol: "ETHUSDT", Strategy: "baseline", Direction: Long,
		Price: 100, Volume: 10, Margin: 200, Leverage: 5,
		MaintenanceMarginRate: 0.01, Now: baseTime,
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	// 100 * (1 - 0.2 + 0.01).
	if math.Abs(s.LiquidationPrice-81) > 1e-9 {
		t.Errorf("liquidation price = %v, want 81 with 1%% maintenance", s.LiquidationPrice)
	}
}

func TestOpenRejectsBadParams(t *testing.T) {
	cases := []OpenParams{
		{Direction: Long, Price: 0, Volume: 10, Margin: 200, Leverage: 5},
		{Direction: Long, Price: 100, Volume: 0, Margin: 200, Leverage: 5},
		{Direction: Long, Price: 100, Volume: 10, Margin: 0, Leverage: 5},
		{Direction: Long, Price: 100, Volume: 10, Margin: 200, Leverage: 0},
		{Direction: "sideways", Price: 100, Volume: 10, Margin: 200, Leverage: 5},
	}
	for i, p := range cases {
		if _, err := Open(p); !errors.Is(err, ErrInvalidEntry) {
			t.Errorf("case %d: err = %v, want ErrInvalidEntry", i, err)
		}
	}
}

func TestAddEntryRecomputesVWAP(t *testing.T) {
	s := openLong(t)
	next, err := AddEntry(s, DCAParams{
		Price: 90, Volume: 10, Margin: 100, FeePercent: 0.05, Now: baseTime.Add(4 * time.Hour),
	})
	if err != nil {
		t.Fatalf("AddEntry() error = %v", err)
	}

	// (100*10 + 90*10) / 20.
	if math.Abs(next.AvgPrice-95) > 1e-9 {
		t.Errorf("avg price = %v, want 95", next.AvgPrice)
	}
	if next.TotalVolume != 20 || next.TotalMarginUsed != 300 || next.DCACount != 1 {
		t.Errorf("vol=%v margin=%v count=%d, want 20/300/1", next.TotalVolume, next.TotalMarginUsed, next.DCACount)
	}
	if next.Phase != PhaseInDCA {
		t.Errorf("phase = %s, want in_dca", next.Phase)
	}
	if len(next.Entries) != 2 || next.Entries[1].DCALevel != 1 || next.Entries[1].Kind != EntryDCA {
		t.Errorf("entries = %+v, want appended dca record at level 1", next.Entries)
	}
	// Liquidation moves with the new average: 95 * 0.84.
	if math.Abs(next.LiquidationPrice-79.8) > 1e-9 {
		t.Errorf("liquidation price = %v, want 79.8", next.LiquidationPrice)
	}

	// The prior state is untouched.
	if s.AvgPrice != 100 || len(s.Entries) != 1 || s.DCACount != 0 {
		t.Errorf("prior state mutated: avg=%v entries=%d count=%d", s.AvgPrice, len(s.Entries), s.DCACount)
	}
}

func TestAddEntryRequiresOpenPosition(t *testing.T) {
	_, err := AddEntry(State{}, DCAParams{Price: 90, Volume: 1, Margin: 10})
	if !errors.Is(err, ErrNotOpen) {
		t.Errorf("err = %v, want ErrNotOpen", err)
	}
}

func TestRefreshTickMarksToMarket(t *testing.T) {
	s := openLong(t)

	up := RefreshTick(s, 102, baseTime.Add(2*time.Hour))
	if math.Abs(up.UnrealizedPnL-20) > 1e-9 {
		t.Errorf("pnl = %v, want 20", up.UnrealizedPnL)
	}
	// 20 on 200 margin.
	if math.Abs(up.UnrealizedPnLPercent-10) > 1e-9 {
		t.Errorf("margin roi = %v, want 10%%", up.UnrealizedPnLPercent)
	}
	// 20 on 1000 notional.
	if math.Abs(up.NotionalPnLPercent-2) > 1e-9 {
		t.Errorf("notional pnl = %v, want 2%%", up.NotionalPnLPercent)
	}
	if up.HighWaterMarkPnL != 20 || up.DrawdownFromHWM != 0 {
		t.Errorf("hwm=%v dd=%v, want 20/0", up.HighWaterMarkPnL, up.DrawdownFromHWM)
	}
	if up.TimeInTradeMs != 2*time.Hour.Milliseconds() {
		t.Errorf("time in trade = %dms, want 2h", up.TimeInTradeMs)
	}

	// Retrace: pnl halves, the high-water mark holds.
	back := RefreshTick(up, 101, baseTime.Add(3*time.Hour))
	if back.HighWaterMarkPnL != 20 {
		t.Errorf("hwm = %v, want to hold at 20", back.HighWaterMarkPnL)
	}
	if math.Abs(back.DrawdownFromHWM-50) > 1e-9 {
		t.Errorf("drawdown from hwm = %v, want 50%%", back.DrawdownFromHWM)
	}

	// Pure: the input state is unchanged.
	if s.UnrealizedPnL != 0 || s.HighWaterMarkPnL != 0 {
		t.Errorf("input state mutated: pnl=%v hwm=%v", s.UnrealizedPnL, s.HighWaterMarkPnL)
	}
}

func TestRefreshTickShortDirection(t *testing.T) {
	s, err := Open(OpenParams{
		Symbol: "ETHUSDT", Strategy: "baseline", Direction: Short,
		Price: 100, Volume: 10, Margin: 200, Leverage: 5, Now: baseTime,
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	down := RefreshTick(s, 97, baseTime.Add(time.Hour))
	if math.Abs(down.UnrealizedPnL-30) > 1e-9 {
		t.Errorf("short pnl on a drop = %v, want 30", down.UnrealizedPnL)
	}
}

func TestRefreshTickIgnoresClosedAndBadPrice(t *testing.T) {
	s := openLong(t)
	if got := RefreshTick(s, 0, baseTime); got.LastPrice != s.LastPrice {
		t.Errorf("zero price should be a no-op")
	}
	closed := State{IsOpen: false, LastPrice: 100}
	if got := RefreshTick(closed, 120, baseTime); got.UnrealizedPnL != 0 {
		t.Errorf("closed position should not mark to market")
	}
}

func TestWithPhase(t *testing.T) {
	s := openLong(t)
	next := WithPhase(s, PhaseExitWatch)
	if next.Phase != PhaseExitWatch {
		t.Errorf("phase = %s, want exit_watch", next.Phase)
	}
	if s.Phase != PhaseEntry {
		t.Errorf("prior phase mutated to %s", s.Phase)
	}
	if next.AvgPrice != s.AvgPrice || next.TotalVolume != s.TotalVolume {
		t.Errorf("numeric state changed across phase transition")
	}
}

func TestCloseRealizesPnLNetOfFees(t *testing.T) {
	s := openLong(t)
	res, err := Close(s, 102, 0.05, baseTime.Add(6*time.Hour))
	if err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	// Entry fee 0.5 + exit fee 102*10*0.05% = 0.51.
	if math.Abs(res.TotalFees-1.01) > 1e-9 {
		t.Errorf("total fees = %v, want 1.01", res.TotalFees)
	}
	if math.Abs(res.RealizedPnL-18.99) > 1e-9 {
		t.Errorf("realized pnl = %v, want 18.99", res.RealizedPnL)
	}
	if res.State.IsOpen || res.State.Phase != PhaseClosed {
		t.Errorf("closed state open=%v phase=%s", res.State.IsOpen, res.State.Phase)
	}
	if res.ExitPrice != 102 || res.HoldingMs != 6*time.Hour.Milliseconds() {
		t.Errorf("exit=%v holding=%dms, want 102/6h", res.ExitPrice, res.HoldingMs)
	}
	if s.IsOpen != true {
		t.Errorf("prior state mutated by close")
	}
}

func TestCloseGuards(t *testing.T) {
	if _, err := Close(State{}, 100, 0.05, baseTime); !errors.Is(err, ErrNotOpen) {
		t.Errorf("err = %v, want ErrNotOpen", err)
	}
	s := openLong(t)
	if _, err := Close(s, 0, 0.05, baseTime); !errors.Is(err, ErrInvalidEntry) {
		t.Errorf("err = %v, want ErrInvalidEntry", err)
	}
}
