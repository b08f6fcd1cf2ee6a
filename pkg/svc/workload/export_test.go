package workload

import "time"

// SetIntervalForTest shortens the readiness polling interval.
func (d *Deployer) SetIntervalForTest(interval time.Duration) {
	d.interval = interval
}
