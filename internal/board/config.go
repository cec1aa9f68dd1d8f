// Package board describes the simulated target: clock rates, memory map,
// and the boot image regions that linker symbols would supply on real
// hardware. Descriptions load from YAML and are validated against an
// embedded CUE schema before anything is built from them.
package board

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/ferrite/internal/boot"
	"github.com/roach88/ferrite/internal/mem"
)

// Bank describes a memory bank.
type Bank struct {
	Base uint32 `yaml:"base"`
	Size uint32 `yaml:"size"`
}

// End returns the first address past the bank.
func (b Bank) End() uint32 { return b.Base + b.Size }

// RegionSpec describes a half-open address range in the config file.
type RegionSpec struct {
	Start uint32 `yaml:"start"`
	End   uint32 `yaml:"end"`
}

// Region converts to the core's region type.
func (r RegionSpec) Region() mem.Region { return mem.Region{Start: r.Start, End: r.End} }

// Config is a complete board description.
type Config struct {
	Name       string     `yaml:"name"`
	ClockHz    uint32     `yaml:"clock_hz"`
	TickRateHz uint32     `yaml:"tick_rate_hz"`
	Flash      Bank       `yaml:"flash"`
	SRAM       Bank       `yaml:"sram"`
	DataLoad   RegionSpec `yaml:"data_load"`
	Data       RegionSpec `yaml:"data"`
	BSS        RegionSpec `yaml:"bss"`
	InitialSP  uint32     `yaml:"initial_sp"`
}

// Default returns the stock STM32F407 discovery description: 168 MHz
// core clock, 1 kHz tick, 1 MiB flash at 0x08000000, 128 KiB SRAM at
// 0x20000000, stack top at the end of SRAM.
func Default() Config {
	return Config{
		Name:       "stm32f407-discovery",
		ClockHz:    168_000_000,
		TickRateHz: 1000,
		Flash:      Bank{Base: 0x0800_0000, Size: 1024 * 1024},
		SRAM:       Bank{Base: 0x2000_0000, Size: 128 * 1024},
		DataLoad:   RegionSpec{Start: 0x0800_0400, End: 0x0800_0440},
		Data:       RegionSpec{Start: 0x2000_0000, End: 0x2000_0040},
		BSS:        RegionSpec{Start: 0x2000_0040, End: 0x2000_00C0},
		InitialSP:  0x2002_0000,
	}
}

// Load reads and validates a board description from a YAML file.
func Load(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read board config: %w", err)
	}
	return Parse(raw)
}

// Parse decodes and validates a YAML board description.
func Parse(raw []byte) (Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse board config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Image returns the boot memory image described by the config.
func (c Config) Image() boot.Image {
	return boot.Image{
		DataLoad: c.DataLoad.Region(),
		Data:     c.Data.Region(),
		BSS:      c.BSS.Region(),
	}
}
