package cost

// Config tunes the cost model. The zero value is not usable; start from
// DefaultConfig.
type Config struct {
	// IOWeight, CPUWeight and MemoryWeight combine the three objectives
	// into the total. IO is weighted highest: it is the least compressible
	// resource in analytic workloads.
	IOWeight     float64
	CPUWeight    float64
	MemoryWeight float64

	// DefaultScanRows is the row estimate for entities without statistics.
	// Never zero: a zero estimate would make every plan through the entity
	// free and poison selection.
	DefaultScanRows float64

	// IndexScanIOFactor discounts the IO of an index access path relative
	// to a full scan.
	IndexScanIOFactor float64
}

// DefaultConfig returns the standard cost model.
func DefaultConfig() Config {
	return Config{
		IOWeight:          10,
		CPUWeight:         1,
		MemoryWeight:      0.1,
		DefaultScanRows:   1_000_000,
		IndexScanIOFactor: 0.1,
	}
}

func (c Config) total(e CostEstimate) float64 {
	return c.IOWeight*e.IO + c.CPUWeight*e.CPU + c.MemoryWeight*e.Memory
}
