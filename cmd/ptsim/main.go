// Command ptsim boots a PAE page-table simulation from a YAML region/domain
// file, clones a thread into it, applies a memory domain, validates a
// sample user buffer, and prints the resulting table dump.
package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"

	"paevm/config"
	"paevm/mem"
	"paevm/vm"
)

func main() {
	cfgPath := flag.String("config", "", "path to a region/domain YAML file")
	poolPages := flag.Int("pool-pages", 4096, "page pool capacity")
	domainName := flag.String("domain", "", "name of a domain to apply to the simulated thread")
	flag.Parse()

	if *cfgPath == "" {
		log.Fatal("ptsim: -config is required")
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("ptsim: %v", err)
	}

	regions, err := cfg.ResolveRegions()
	if err != nil {
		log.Fatalf("ptsim: %v", err)
	}

	masterArena := mem.NewMemory(0x00100000)
	pool := mem.NewPool(masterArena, *poolPages)

	ins := &vm.Installer{
		Pool:       pool,
		KPTI:       cfg.KPTI,
		SystemRAM:  cfg.SystemRAMRange(),
		Trampoline: mem.VA(cfg.Trampoline),
	}

	kernel, user := vm.NewMasterTrees(cfg.KPTI, masterArena)
	vm.Boot(ins, kernel, user, regions)
	slog.Info("boot complete", "pool_remaining", pool.Remaining())

	cloner := &vm.Cloner{Pool: pool, KPTI: cfg.KPTI, SystemRAM: cfg.SystemRAMRange()}

	threadArena := mem.NewMemory(0x20000000)
	th := &vm.Thread{
		IsUser:     true,
		StackStart: cfg.SystemRAMRange().Start,
		StackSize:  mem.PGSIZE,
	}
	cloner.ThreadPtInit(th, threadArena, user)

	if *domainName != "" {
		spec := findDomain(cfg, *domainName)
		if spec == nil {
			log.Fatalf("ptsim: no such domain %q", *domainName)
		}
		partitions, err := spec.ResolvePartitions()
		if err != nil {
			log.Fatalf("ptsim: %v", err)
		}

		domain := &vm.MemDomain{}
		for _, p := range partitions {
			if _, ok := cloner.AddPartition(domain, p); !ok {
				log.Fatalf("ptsim: domain %q exceeds %d partitions", *domainName, vm.MaxPartitions)
			}
		}
		cloner.ThreadAdd(th, domain)
	}

	ok := th.Tree.Validate(th.StackStart, mem.PGSIZE, true)
	fmt.Printf("validate(stack, write=true) = %v\n", ok)

	fmt.Println(vm.Dump(th.Tree))
}

func findDomain(cfg *config.Config, name string) *config.DomainSpec {
	for i := range cfg.Domains {
		if cfg.Domains[i].Name == name {
			return &cfg.Domains[i]
		}
	}
	return nil
}
