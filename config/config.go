// Package config loads the declarative region and memory-domain lists a
// boot sequence installs, from a YAML document.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"paevm/mem"
	"paevm/vm"
)

// maxConfigSize bounds how large a config file this package will read,
// so a malformed or hostile file can't be used to exhaust memory before
// paging is even set up.
const maxConfigSize = 1 << 20

// RegionSpec is the YAML representation of a vm.Region: a named, flag-typed
// address range a boot sequence installs.
type RegionSpec struct {
	Name  string   `yaml:"name"`
	Base  uint32   `yaml:"base"`
	Size  uint32   `yaml:"size"`
	Flags []string `yaml:"flags"`
}

// PartitionSpec is the YAML representation of a vm.MemPartition.
type PartitionSpec struct {
	Name  string   `yaml:"name"`
	Start uint32   `yaml:"start"`
	Size  uint32   `yaml:"size"`
	Attr  []string `yaml:"attr"`
}

// DomainSpec groups the partitions belonging to one named memory domain.
type DomainSpec struct {
	Name       string          `yaml:"name"`
	Partitions []PartitionSpec `yaml:"partitions"`
}

// Config is the top-level document: the boot region list plus zero or more
// memory domains a simulator may apply to threads after boot.
type Config struct {
	SystemRAM struct {
		Start uint32 `yaml:"start"`
		End   uint32 `yaml:"end"`
	} `yaml:"system_ram"`
	Trampoline uint32       `yaml:"trampoline"`
	KPTI       bool         `yaml:"kpti"`
	Regions    []RegionSpec `yaml:"regions"`
	Domains    []DomainSpec `yaml:"domains"`
}

var flagBits = map[string]mem.Entry{
	"read":    0, // read access comes with PRESENT, which Install always adds
	"write":   mem.WRITE,
	"user":    mem.USER,
	"xd":      mem.EXECUTE_DISABLE,
	"wt":      mem.WRITE_THROUGH,
	"nocache": mem.CACHE_DISABLE,
	"runtime": mem.RUNTIME_USER,
}

func parseFlags(names []string) (mem.Entry, error) {
	var flags mem.Entry
	for _, n := range names {
		bit, ok := flagBits[n]
		if !ok {
			return 0, fmt.Errorf("config: unknown flag %q", n)
		}
		flags |= bit
	}
	return flags, nil
}

// Load reads and parses a region/domain config file. The file must not
// exceed maxConfigSize.
func Load(path string) (*Config, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("config: stat %s: %w", path, err)
	}
	if info.Size() > maxConfigSize {
		return nil, fmt.Errorf("config: %s is %d bytes, exceeds %d byte limit", path, info.Size(), maxConfigSize)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return &cfg, nil
}

// ResolveRegions converts the config's region list into vm.Region values.
func (c *Config) ResolveRegions() ([]vm.Region, error) {
	out := make([]vm.Region, 0, len(c.Regions))
	for _, r := range c.Regions {
		flags, err := parseFlags(r.Flags)
		if err != nil {
			return nil, fmt.Errorf("config: region %q: %w", r.Name, err)
		}
		out = append(out, vm.Region{Base: mem.VA(r.Base), Size: r.Size, Flags: flags})
	}
	return out, nil
}

// ResolvePartitions converts one domain's partition list into
// vm.MemPartition values.
func (d *DomainSpec) ResolvePartitions() ([]vm.MemPartition, error) {
	out := make([]vm.MemPartition, 0, len(d.Partitions))
	for _, p := range d.Partitions {
		attr, err := parseFlags(p.Attr)
		if err != nil {
			return nil, fmt.Errorf("config: partition %q: %w", p.Name, err)
		}
		out = append(out, vm.MemPartition{Start: mem.VA(p.Start), Size: p.Size, Attr: attr})
	}
	return out, nil
}

// SystemRAMRange converts the config's system-ram bounds into a vm.Range.
func (c *Config) SystemRAMRange() vm.Range {
	return vm.Range{Start: mem.VA(c.SystemRAM.Start), End: mem.VA(c.SystemRAM.End)}
}
