// Package diagnostics collects host and audio subsystem information for
// debugging abnormal events such as repeated underruns or device loss.
package diagnostics

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/klauspost/cpuid/v2"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/pcmflow/pcmflow/internal/conf"
	"github.com/pcmflow/pcmflow/internal/platform/malgodev"
)

// CPUSpec describes the processor the stream is running on. DSP
// throughput depends heavily on the vector extensions available.
type CPUSpec struct {
	BrandName     string
	PhysicalCores int
	LogicalCores  int
	HasAVX2       bool
	HasSSE42      bool
}

// GetCPUSpec returns the host processor specification.
func GetCPUSpec() CPUSpec {
	return CPUSpec{
		BrandName:     cpuid.CPU.BrandName,
		PhysicalCores: cpuid.CPU.PhysicalCores,
		LogicalCores:  cpuid.CPU.LogicalCores,
		HasAVX2:       cpuid.CPU.Supports(cpuid.AVX2),
		HasSSE42:      cpuid.CPU.Supports(cpuid.SSE42),
	}
}

// CaptureSystemInfo captures system information, writes it to a debug
// file next to the config file, and returns it as a string.
func CaptureSystemInfo(errorMessage string) string {
	var info strings.Builder

	separator := "======== DEBUG INFO START ========"
	info.WriteString(fmt.Sprintf("%s\n", separator))
	info.WriteString(fmt.Sprintf("Error Occurred: %s\n", errorMessage))

	spec := GetCPUSpec()
	info.WriteString(fmt.Sprintf("CPU: %s (%d physical / %d logical cores, AVX2=%v, SSE4.2=%v)\n",
		spec.BrandName, spec.PhysicalCores, spec.LogicalCores, spec.HasAVX2, spec.HasSSE42))

	if hostInfo, err := host.Info(); err == nil {
		info.WriteString(fmt.Sprintf("Host: %s %s (%s), uptime %s\n",
			hostInfo.Platform, hostInfo.PlatformVersion, hostInfo.KernelVersion,
			(time.Duration(hostInfo.Uptime) * time.Second).String()))
	}

	if cpuPercent, err := cpu.Percent(time.Second, false); err == nil && len(cpuPercent) > 0 {
		info.WriteString(fmt.Sprintf("CPU Utilization: %.2f%%\n", cpuPercent[0]))
	}

	if vmStat, err := mem.VirtualMemory(); err == nil {
		info.WriteString(fmt.Sprintf("RAM Usage: %.2f%%\n", vmStat.UsedPercent))
	}

	if swapStat, err := mem.SwapMemory(); err == nil {
		info.WriteString(fmt.Sprintf("Swap Usage: %.2f%%\n", swapStat.UsedPercent))
	}

	writeDeviceList(&info, malgodev.DirectionPlayback)
	writeDeviceList(&info, malgodev.DirectionCapture)

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	info.WriteString(fmt.Sprintf("Go Runtime: Alloc = %v MiB, TotalAlloc = %v MiB, Sys = %v MiB, NumGC = %v\n",
		bToMb(m.Alloc), bToMb(m.TotalAlloc), bToMb(m.Sys), m.NumGC))

	info.WriteString(fmt.Sprintf("%s\n", strings.ReplaceAll(separator, "START", "END")))

	writeDebugFile(info.String())
	return info.String()
}

// writeDeviceList appends the audio endpoints for one direction.
func writeDeviceList(info *strings.Builder, dir malgodev.Direction) {
	devices, err := malgodev.EnumerateDevices(dir)
	if err != nil {
		info.WriteString(fmt.Sprintf("Audio %s devices: enumeration failed: %v\n", dir, err))
		return
	}

	info.WriteString(fmt.Sprintf("Audio %s devices:\n", dir))
	for _, device := range devices {
		marker := " "
		if device.IsDefault {
			marker = "*"
		}
		info.WriteString(fmt.Sprintf("  %s %d: %s (%s)\n", marker, device.Index, device.Name, device.ID))
	}
}

// writeDebugFile stores the report next to the active config file.
func writeDebugFile(contents string) {
	configPath, err := conf.FindConfigFile()
	if err != nil {
		log.Printf("Error finding config file: %v", err)
		return
	}

	debugFileName := fmt.Sprintf("debug_%s.txt", time.Now().Format("2006-01-02_15-04-05"))
	debugFilePath := filepath.Join(filepath.Dir(configPath), debugFileName)

	if err := os.WriteFile(debugFilePath, []byte(contents), 0o644); err != nil {
		log.Printf("Error writing debug file: %v", err)
		return
	}
	log.Printf("Abnormal event detected. Debug information written to: %s", debugFilePath)
}

// bToMb converts bytes to megabytes.
func bToMb(b uint64) uint64 {
	return b / 1024 / 1024
}
