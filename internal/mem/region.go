package mem

import "fmt"

// Region is a half-open address range [Start, End). The boot sequencer and
// board config treat region bounds as opaque linker-supplied addresses.
type Region struct {
	Start uint32
	End   uint32
}

// Size returns the region length in bytes.
func (r Region) Size() uint32 {
	if r.End < r.Start {
		return 0
	}
	return r.End - r.Start
}

// Validate checks that the region is well-formed and word-aligned.
// Word alignment is required because boot initialization copies and zeroes
// word-at-a-time.
func (r Region) Validate() error {
	if r.End < r.Start {
		return fmt.Errorf("region end %#x before start %#x", r.End, r.Start)
	}
	if r.Start%4 != 0 || r.End%4 != 0 {
		return fmt.Errorf("region [%#x, %#x) not word-aligned", r.Start, r.End)
	}
	return nil
}

// Words returns the number of 32-bit words in the region.
func (r Region) Words() uint32 { return r.Size() / 4 }

// String formats the region for trace and CLI output.
func (r Region) String() string {
	return fmt.Sprintf("[%#x, %#x)", r.Start, r.End)
}
