package audio

import "testing"

type fixedPeaks struct {
	readings [][2]int
	i        int
}

func (f *fixedPeaks) PeakHold() (int, int) {
	r := f.readings[min(f.i, len(f.readings)-1)]
	f.i++
	return r[0], r[1]
}

type disk bool

func (d disk) DiskActive() bool { return bool(d) }

func repeat(l, r, n int) [][2]int {
	out := make([][2]int, n)
	for i := range out {
		out[i] = [2]int{l, r}
	}
	return out
}

func TestSamplerStaleBelowFullScale(t *testing.T) {
	s := NewSampler(&fixedPeaks{readings: repeat(1000, 1000, 4)}, disk(false))

	for i, want := range []bool{true, true, false, false} {
		got := s.Sample()
		if got.Valid != want {
			t.Errorf("sample %d: Valid got %v, want %v", i+1, got.Valid, want)
		}
		if got.Tick != i+1 {
			t.Errorf("sample %d: Tick got %d, want %d", i+1, got.Tick, i+1)
		}
	}
}

func TestSamplerFullScaleStaysValid(t *testing.T) {
	s := NewSampler(&fixedPeaks{readings: repeat(FullScale, FullScale, 5)}, disk(false))
	for i := range 5 {
		if got := s.Sample(); !got.Valid {
			t.Errorf("sample %d: full-scale reading rejected", i+1)
		}
	}
}

func TestSamplerFullScaleDiskActive(t *testing.T) {
	s := NewSampler(&fixedPeaks{readings: repeat(FullScale, FullScale, 3)}, disk(true))
	s.Sample()
	s.Sample()
	if got := s.Sample(); got.Valid {
		t.Error("full-scale reading during disk activity should be rejected")
	}
}

func TestSamplerChangingReadingsValid(t *testing.T) {
	s := NewSampler(&fixedPeaks{readings: [][2]int{{1000, 1000}, {1001, 1000}, {1000, 1000}, {1001, 1000}}}, nil)
	for i := range 4 {
		if got := s.Sample(); !got.Valid {
			t.Errorf("sample %d: varying reading rejected", i+1)
		}
	}
}

func TestBalanceOf(t *testing.T) {
	tests := []struct {
		name        string
		left, right int
		want        int
	}{
		{"equal", 10000, 10000, 0},
		{"right louder", 10000, 12000, 2000},
		{"left louder", 12000, 10000, -2000},
		{"right clamp", 1000, 20000, MaxBalance},
		{"left clamp", 20000, 1000, -MaxBalance},
		{"left silent", 0, 500, MaxBalance},
		{"right silent", 500, 0, -MaxBalance},
		{"both silent", 0, 0, -MaxBalance},
	}
	for _, tt := range tests {
		if got := balanceOf(tt.left, tt.right); got != tt.want {
			t.Errorf("%s: got %d, want %d", tt.name, got, tt.want)
		}
	}
}

func TestSamplerBalanceAverage(t *testing.T) {
	// Alternate two readings so none is stale; the right channel is 20% louder.
	readings := make([][2]int, BalanceWindow)
	for i := range readings {
		readings[i] = [2]int{10000 + i%2, 12000 + i%2*2}
	}
	s := NewSampler(&fixedPeaks{readings: readings}, nil)

	var last PeakSample
	for range BalanceWindow {
		last = s.Sample()
	}
	if !last.Valid {
		t.Fatal("last sample should be valid")
	}
	if last.Balance < 1990 || last.Balance > 2010 {
		t.Errorf("averaged balance: got %d, want about 2000", last.Balance)
	}
}

func TestSamplerBalanceWarmsUp(t *testing.T) {
	s := NewSampler(&fixedPeaks{readings: [][2]int{{10000, 12000}}}, nil)
	got := s.Sample()
	if want := 2000 / BalanceWindow; got.Balance != want {
		t.Errorf("first balance: got %d, want %d", got.Balance, want)
	}
}

func TestSamplerReset(t *testing.T) {
	s := NewSampler(&fixedPeaks{readings: repeat(1000, 1000, 10)}, nil)
	s.Sample()
	s.Sample()
	s.Reset()
	if s.Tick() != 0 {
		t.Errorf("Tick after Reset: got %d, want 0", s.Tick())
	}
	if got := s.Sample(); !got.Valid {
		t.Error("first sample after Reset should be valid")
	}
}
