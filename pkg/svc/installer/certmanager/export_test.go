package certmanagerinstaller

import "time"

// SetIntervalForTest shortens the readiness polling interval.
func (i *Installer) SetIntervalForTest(interval time.Duration) {
	i.interval = interval
}
