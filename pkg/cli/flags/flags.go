package flags

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

// TimingFlagName is the persistent flag that enables per-step timing output.
const TimingFlagName = "timing"

var (
	errNilCommand   = errors.New("command is nil")
	errFlagNotFound = errors.New("flag not found")
)

// IsTimingEnabled reports the value of the timing flag on cmd or any of its parents.
func IsTimingEnabled(cmd *cobra.Command) (bool, error) {
	if cmd == nil {
		return false, errNilCommand
	}

	flag := cmd.Flags().Lookup(TimingFlagName)
	if flag == nil {
		flag = cmd.PersistentFlags().Lookup(TimingFlagName)
	}

	if flag == nil {
		flag = cmd.InheritedFlags().Lookup(TimingFlagName)
	}

	if flag == nil {
		return false, fmt.Errorf("%w: --%s", errFlagNotFound, TimingFlagName)
	}

	return flag.Value.String() == "true", nil
}
