package controller

import (
	"fmt"
	"time"

	"worldclear/internal/config"
	"worldclear/internal/monitor"
	"worldclear/internal/orchestrator"
	"worldclear/internal/scan"
)

// ScanOptions derives scanner parameters from cfg.
func ScanOptions(cfg *config.Config) scan.Options {
	return scan.Options{
		AllowList:       cfg.Items.AllowList,
		DenyList:        cfg.Items.DenyList,
		LifetimeSeconds: cfg.Items.LifetimeSeconds,
		TicksPerSecond:  cfg.Throughput.TicksPerSecond,
		ClusterSize:     cfg.Entities.ClusterSize,
		ClusterRadius:   cfg.Entities.ClusterRadius,
		MaxPerPartition: cfg.Entities.MaxPerPartition,
	}
}

// MonitorSettings derives monitor settings from cfg.
func MonitorSettings(cfg *config.Config) monitor.Settings {
	t := cfg.Throughput
	return monitor.Settings{
		SampleInterval:    t.SampleInterval,
		WarningThreshold:  t.WarningThreshold,
		CriticalThreshold: t.CriticalThreshold,
		AutoCleanup:       t.AutoCleanup,
		Cooldown:          t.Cooldown,
		StatsInterval:     t.StatsInterval,
	}
}

// OrchestratorSettings derives orchestrator switches from cfg.
func OrchestratorSettings(cfg *config.Config) orchestrator.Settings {
	return orchestrator.Settings{
		Enabled:           cfg.General.Enabled,
		ItemsEnabled:      cfg.Items.Enabled,
		WarningDelay:      time.Duration(cfg.Items.WarningBeforeClear) * time.Second,
		BroadcastWarnings: cfg.Items.BroadcastWarnings,
		ScopeEnabled:      cfg.ScopeEnabled,
	}
}

// Rules converts configured rules, skipping unknown categories.
func Rules(cfg *config.Config) ([]orchestrator.Rule, []string) {
	var (
		out   []orchestrator.Rule
		warns []string
	)
	for _, r := range cfg.Cleanup.Rules {
		rule := orchestrator.Rule{
			Name:      r.Name,
			Interval:  r.Interval,
			Scopes:    r.Scopes,
			Broadcast: r.BroadcastEnabled(),
		}
		for _, c := range r.Categories {
			cat, err := orchestrator.ParseCategory(c)
			if err != nil {
				warns = append(warns, fmt.Sprintf("rule %q: %v", r.Name, err))
				continue
			}
			rule.Categories = append(rule.Categories, cat)
		}
		if len(rule.Categories) == 0 {
			warns = append(warns, fmt.Sprintf("rule %q has no usable categories, skipping it", r.Name))
			continue
		}
		out = append(out, rule)
	}
	return out, warns
}
