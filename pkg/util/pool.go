package util

import "runtime"

const (
	minPoolSize = 4
	maxPoolSize = 32
)

// GetOptimalPoolSize returns the default concurrency for parsing and
// extraction: 2× CPU cores, clamped to [4, 32].
//
// Tree-sitter parsing spends most of its time in CGO, so running more
// workers than cores keeps the CPUs busy. The cap bounds the memory held
// by per-language parser pools.
func GetOptimalPoolSize() int {
	return clampPoolSize(runtime.NumCPU() * 2)
}

// GetOptimalPoolSizeWithOverride returns override when positive, otherwise
// GetOptimalPoolSize().
func GetOptimalPoolSizeWithOverride(override int) int {
	if override > 0 {
		return override
	}
	return GetOptimalPoolSize()
}

func clampPoolSize(n int) int {
	return max(minPoolSize, min(n, maxPoolSize))
}
