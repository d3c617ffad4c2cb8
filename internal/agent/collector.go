// Package agent collects host metrics and ships them to the monitoring
// server. It is the data source feeding the dashboards.
package agent

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/hostpulse/dash/internal/client"
)

// Collector gathers one full SystemMetrics sample per Collect call.
type Collector struct {
	serverID string
	// cpuSampleWindow is the measurement window for the CPU percentage.
	cpuSampleWindow time.Duration
}

// NewCollector creates a collector reporting under the given server id.
func NewCollector(serverID string) *Collector {
	return &Collector{serverID: serverID, cpuSampleWindow: time.Second}
}

// Collect gathers CPU, memory, disk, load, uptime and failed systemd
// units. Partitions we cannot stat are skipped, matching what a
// non-root agent can see.
func (c *Collector) Collect(ctx context.Context) (*client.SystemMetrics, error) {
	cpuPct, err := cpu.PercentWithContext(ctx, c.cpuSampleWindow, false)
	if err != nil {
		return nil, fmt.Errorf("cpu sample: %w", err)
	}
	var cpuUsage float64
	if len(cpuPct) > 0 {
		cpuUsage = cpuPct[0]
	}

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("memory sample: %w", err)
	}

	disks, err := collectDiskUsage(ctx)
	if err != nil {
		return nil, err
	}

	avg, err := load.AvgWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("load average: %w", err)
	}

	uptime, err := host.UptimeWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("uptime: %w", err)
	}

	return &client.SystemMetrics{
		ServerID:  c.serverID,
		Timestamp: time.Now().UTC(),
		CPUUsage:  cpuUsage,
		Memory: client.MemoryInfo{
			Total:      vm.Total,
			Used:       vm.Used,
			Percentage: vm.UsedPercent,
		},
		DiskUsage: disks,
		LoadAverage: client.LoadAverage{
			OneMin:     avg.Load1,
			FiveMin:    avg.Load5,
			FifteenMin: avg.Load15,
		},
		Uptime:         int64(uptime),
		FailedServices: failedUnits(ctx),
	}, nil
}

func collectDiskUsage(ctx context.Context) ([]client.DiskUsage, error) {
	parts, err := disk.PartitionsWithContext(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("disk partitions: %w", err)
	}
	out := make([]client.DiskUsage, 0, len(parts))
	for _, part := range parts {
		usage, err := disk.UsageWithContext(ctx, part.Mountpoint)
		if err != nil {
			continue
		}
		out = append(out, client.DiskUsage{
			Mountpoint: part.Mountpoint,
			Total:      usage.Total,
			Used:       usage.Used,
			Percentage: usage.UsedPercent,
		})
	}
	return out, nil
}

// failedUnits lists failed systemd units via systemctl. Hosts without
// systemd simply report none.
func failedUnits(ctx context.Context) []client.FailedService {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, "systemctl",
		"list-units", "--failed", "--no-pager", "--no-legend", "--plain")
	output, err := cmd.Output()
	if err != nil {
		return nil
	}
	return parseFailedUnits(output)
}

// parseFailedUnits reads `systemctl list-units --failed --plain` rows:
// UNIT LOAD ACTIVE SUB DESCRIPTION.
func parseFailedUnits(output []byte) []client.FailedService {
	var failed []client.FailedService
	scanner := bufio.NewScanner(bytes.NewReader(output))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 3 {
			continue
		}
		if fields[2] != "failed" {
			continue
		}
		failed = append(failed, client.FailedService{
			Name:   fields[0],
			Status: fields[2],
		})
	}
	return failed
}
