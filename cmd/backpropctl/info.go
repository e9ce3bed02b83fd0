package main

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/klauspost/cpuid/v2"

	"backprop/internal/storage"
)

// hostInfo reports what the training loop will run on. gonum's floats
// kernels pick assembly paths based on the SIMD features listed here.
type hostInfo struct {
	OS             string   `json:"os"`
	Arch           string   `json:"arch"`
	GoVersion      string   `json:"go_version"`
	CPU            string   `json:"cpu"`
	Vendor         string   `json:"vendor"`
	PhysicalCores  int      `json:"physical_cores"`
	LogicalCores   int      `json:"logical_cores"`
	ThreadsPerCore int      `json:"threads_per_core"`
	L1DataBytes    int      `json:"l1d_bytes"`
	L2Bytes        int      `json:"l2_bytes"`
	L3Bytes        int      `json:"l3_bytes"`
	SIMD           []string `json:"simd"`
	DefaultStore   string   `json:"default_store"`
}

func collectHostInfo() hostInfo {
	simd := make([]string, 0, 4)
	for _, feature := range []struct {
		id   cpuid.FeatureID
		name string
	}{
		{cpuid.SSE2, "sse2"},
		{cpuid.AVX, "avx"},
		{cpuid.AVX2, "avx2"},
		{cpuid.FMA3, "fma3"},
		{cpuid.AVX512F, "avx512f"},
		{cpuid.ASIMD, "asimd"},
	} {
		if cpuid.CPU.Supports(feature.id) {
			simd = append(simd, feature.name)
		}
	}
	return hostInfo{
		OS:             runtime.GOOS,
		Arch:           runtime.GOARCH,
		GoVersion:      runtime.Version(),
		CPU:            cpuid.CPU.BrandName,
		Vendor:         cpuid.CPU.VendorString,
		PhysicalCores:  cpuid.CPU.PhysicalCores,
		LogicalCores:   cpuid.CPU.LogicalCores,
		ThreadsPerCore: cpuid.CPU.ThreadsPerCore,
		L1DataBytes:    cpuid.CPU.Cache.L1D,
		L2Bytes:        cpuid.CPU.Cache.L2,
		L3Bytes:        cpuid.CPU.Cache.L3,
		SIMD:           simd,
		DefaultStore:   storage.DefaultStoreKind(),
	}
}

func (h hostInfo) Lines() []string {
	simd := "none"
	if len(h.SIMD) > 0 {
		simd = strings.Join(h.SIMD, ",")
	}
	return []string{
		fmt.Sprintf("os=%s arch=%s go=%s", h.OS, h.Arch, h.GoVersion),
		fmt.Sprintf("cpu=%q vendor=%s cores=%d threads=%d threads_per_core=%d", h.CPU, h.Vendor, h.PhysicalCores, h.LogicalCores, h.ThreadsPerCore),
		fmt.Sprintf("cache l1d=%s l2=%s l3=%s", cacheSize(h.L1DataBytes), cacheSize(h.L2Bytes), cacheSize(h.L3Bytes)),
		fmt.Sprintf("simd=%s", simd),
		fmt.Sprintf("default_store=%s", h.DefaultStore),
	}
}

func cacheSize(bytes int) string {
	if bytes <= 0 {
		return "unknown"
	}
	return humanize.IBytes(uint64(bytes))
}
