package config

import "time"

// LockConfig controls the distributed per-seat lock used to serialize
// concurrent booking attempts across instances. The lock is a latency
// optimization layered on top of the conditional write in the booking
// path: disabling it never affects correctness, only how much load
// reaches the database under contention.
//
// TTL must exceed the worst-case critical-section duration with margin,
// otherwise a legitimate holder can expire mid-flight and a second
// attempt can acquire the same seat. The conditional write still
// prevents a double booking in that case.
type LockConfig struct {
	Enabled bool          // when false, booking relies on the conditional write alone
	TTL     time.Duration // lifetime of a lock record if never released
	Prefix  string        // redis key prefix, e.g. "lock:seat"
}

// LoadLockConfig reads environment variables to build a LockConfig.
// Defaults match the original deployment: 5 second TTL against a
// critical section that is bounded by per-call timeouts well under that.
func LoadLockConfig() LockConfig {
	cfg := LockConfig{
		Enabled: envBool("LOCK_ENABLED", true),
		TTL:     envDur("LOCK_TTL", 5*time.Second),
		Prefix:  envStr("LOCK_PREFIX", "lock:seat"),
	}
	if cfg.TTL < time.Second {
		cfg.TTL = time.Second
	}
	return cfg
}
