package factory

import (
	"NetDeviation/internal/attack"
	"NetDeviation/internal/config"
	"NetDeviation/internal/model"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
)

// Deps are the side-effecting collaborators handed to module builders.
type Deps struct {
	Sink   model.PacketSink
	Runner attack.CommandRunner
	Dial   attack.DialFunc
	Logger log.FieldLogger
}

// ModuleFactory builds one attack module from its config entry.
type ModuleFactory func(def config.ModuleDef, deps Deps) (attack.Module, error)

// registry holds the mapping of module types to their factory functions.
var registry = make(map[string]ModuleFactory)

// RegisterModule registers a new attack module type with its factory function.
func RegisterModule(typ string, factory ModuleFactory) {
	if _, exists := registry[typ]; exists {
		panic(fmt.Sprintf("attack module type '%s' already registered", typ))
	}
	registry[typ] = factory
}

// Build creates the attack modules listed in cfg, in order.
func Build(cfg config.AttackConfig, deps Deps) ([]attack.Module, error) {
	modules := make([]attack.Module, 0, len(cfg.Modules))
	for _, def := range cfg.Modules {
		if deps.Logger != nil {
			deps.Logger.WithFields(log.Fields{"module": def.Name, "type": def.Type}).Debug("Creating attack module")
		}

		factory, ok := registry[def.Type]
		if !ok {
			return nil, fmt.Errorf("unknown attack module type: '%s'", def.Type)
		}

		m, err := factory(def, deps)
		if err != nil {
			return nil, fmt.Errorf("error creating attack module '%s': %w", def.Name, err)
		}
		modules = append(modules, m)
	}
	return modules, nil
}

func init() {
	RegisterModule("port_scan", func(def config.ModuleDef, deps Deps) (attack.Module, error) {
		portRange := def.PortRange
		if portRange == "" {
			portRange = "1-1000"
		}
		return attack.NewPortScan(nameOr(def), def.Binary, portRange, deps.Runner), nil
	})
	RegisterModule("syn_flood", floodFactory(attack.NewSYNFlood))
	RegisterModule("icmp_flood", floodFactory(attack.NewICMPFlood))
	RegisterModule("udp_flood", floodFactory(attack.NewUDPFlood))
	RegisterModule("banner_grab", func(def config.ModuleDef, deps Deps) (attack.Module, error) {
		timeout := 500 * time.Millisecond
		if def.Timeout != "" {
			d, err := time.ParseDuration(def.Timeout)
			if err != nil {
				return nil, fmt.Errorf("invalid timeout %q: %w", def.Timeout, err)
			}
			timeout = d
		}
		ports := def.Ports
		if len(ports) == 0 {
			ports = []int{21, 22, 23, 25, 80, 443, 3306, 8080}
		}
		return attack.NewBannerGrab(nameOr(def), ports, timeout, deps.Dial), nil
	})
}

func floodFactory(newFlood func(name string, count int, sink model.PacketSink) *attack.Flood) ModuleFactory {
	return func(def config.ModuleDef, deps Deps) (attack.Module, error) {
		if def.Count <= 0 {
			return nil, fmt.Errorf("count must be positive, got %d", def.Count)
		}
		if deps.Sink == nil {
			return nil, fmt.Errorf("no packet sink available")
		}
		return newFlood(nameOr(def), def.Count, deps.Sink), nil
	}
}

func nameOr(def config.ModuleDef) string {
	if def.Name != "" {
		return def.Name
	}
	return def.Type
}
