package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/kevmo314/go-uvcmanager/pkg/config"
	"github.com/kevmo314/go-uvcmanager/pkg/device"
	"github.com/kevmo314/go-uvcmanager/pkg/hotplug"
)

func main() {
	configPath := flag.String("config", "", "path to a yaml config file")
	all := flag.Bool("all", false, "also list devices the monitor would ignore")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	devices, err := hotplug.ListDevices()
	if err != nil {
		log.Fatalf("Failed to list devices: %v", err)
	}

	matched := 0
	for _, dev := range devices {
		ok := matches(cfg.Monitor.Filters, dev)
		if ok {
			matched++
		}
		if !ok && !*all {
			continue
		}
		fmt.Printf("%s\n", dev)
		fmt.Printf("  Bus %03d Device %03d\n", dev.Bus, dev.Address)
		fmt.Printf("  Class: %d, SubClass: %d\n", dev.Class, dev.SubClass)
		if !ok {
			fmt.Printf("  (ignored by filters)\n")
			continue
		}
		token, err := hotplug.OpenDevice(dev)
		if err != nil {
			fmt.Printf("  (Could not open: %v)\n", err)
			continue
		}
		fmt.Printf("  Accessible: yes\n")
		token.Close()
	}
	fmt.Printf("\n%d of %d device(s) match the monitor filters\n", matched, len(devices))
}

func matches(filters []hotplug.Filter, dev device.Device) bool {
	if len(filters) == 0 {
		return true
	}
	for _, f := range filters {
		if f.Match(dev) {
			return true
		}
	}
	return false
}
