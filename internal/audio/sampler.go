package audio

// Sampler constants.
const (
	// MaxBalance bounds a single balance reading (about ±3.6 dB as an amplitude ratio).
	MaxBalance = 15118
	// BalanceWindow is the number of readings averaged into PeakSample.Balance.
	BalanceWindow = 24
	// staleWindow is the number of equal left readings that mark a sample stale.
	staleWindow = 3
)

// PeakSource provides peak-hold readings.
type PeakSource interface {
	// PeakHold returns the peaks held since the previous call.
	PeakHold() (left, right int)
}

// ActivitySource reports whether the storage medium is busy.
type ActivitySource interface {
	DiskActive() bool
}

// Sampler reads peak-hold levels once per tick, rejects stale readings and
// maintains a running stereo balance.
//
// Sampler is not safe for concurrent use.
type Sampler struct {
	peaks    PeakSource
	activity ActivitySource

	tick    int
	recent  [staleWindow]int
	balance [BalanceWindow]int
}

// NewSampler returns a sampler reading from peaks. activity may be nil.
func NewSampler(peaks PeakSource, activity ActivitySource) *Sampler {
	return &Sampler{peaks: peaks, activity: activity}
}

// Reset clears the tick counter and history.
func (s *Sampler) Reset() {
	s.tick = 0
	s.recent = [staleWindow]int{}
	s.balance = [BalanceWindow]int{}
}

// Tick returns the number of samples taken since the last Reset.
func (s *Sampler) Tick() int {
	return s.tick
}

// Sample takes one reading.
//
// A reading is invalid when the last three left peaks are identical and the
// left level is below full scale or the disk is active: a peak-hold value
// that does not move usually means the meter stalled during disk I/O.
func (s *Sampler) Sample() PeakSample {
	s.tick++
	left, right := s.peaks.PeakHold()

	sample := PeakSample{Tick: s.tick, Left: left, Right: right}

	s.recent[s.tick%staleWindow] = left
	if s.recent[0] == s.recent[1] && s.recent[1] == s.recent[2] &&
		(left < FullScale || s.diskActive()) {
		return sample
	}

	s.balance[s.tick%BalanceWindow] = balanceOf(left, right)
	sum := 0
	for _, b := range s.balance {
		sum += b
	}
	sample.Balance = sum / BalanceWindow
	sample.Valid = true
	return sample
}

func (s *Sampler) diskActive() bool {
	return s.activity != nil && s.activity.DiskActive()
}

// balanceOf returns the right/left ratio mapped to ±MaxBalance, positive when
// the right channel is louder.
func balanceOf(left, right int) int {
	if right > left {
		if left == 0 {
			return MaxBalance
		}
		return min(10000*right/left-10000, MaxBalance)
	}
	if right == 0 {
		return -MaxBalance
	}
	return max(10000-10000*left/right, -MaxBalance)
}
