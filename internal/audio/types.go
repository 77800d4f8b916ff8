package audio

// Device represents an available audio input device.
type Device struct {
	// ID is the device identifier.
	ID string `json:"id"`
	// Name is the device display name.
	Name string `json:"name"`
}

// PeakSample is one reading of the peak sampler.
type PeakSample struct {
	// Tick is the sampler tick the reading belongs to.
	Tick int
	// Left is the left peak-hold amplitude in [0, FullScale].
	Left int
	// Right is the right peak-hold amplitude in [0, FullScale].
	Right int
	// Balance is the averaged stereo balance, positive when right is louder.
	// Units are 1/10000 of the amplitude ratio, bounded by ±MaxBalance.
	Balance int
	// Valid is false when the reading looks stale.
	Valid bool
}
