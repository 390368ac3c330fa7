package engine

// PeriodOf maps a unix timestamp to its discrete period index. Periods are
// the only unit of time the weight math reasons about; periodSeconds is
// validated strictly positive at configuration time.
func PeriodOf(unix uint64, periodSeconds uint64) uint64 {
	return unix / periodSeconds
}
