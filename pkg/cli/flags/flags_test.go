package flags_test

import (
	"testing"

	"github.com/devantler-tech/standalone/pkg/cli/flags"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsTimingEnabled(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		setupCmd func() *cobra.Command
		want     bool
		wantErr  bool
	}{
		{
			name:     "nil command",
			setupCmd: func() *cobra.Command { return nil },
			wantErr:  true,
		},
		{
			name:     "flag missing",
			setupCmd: func() *cobra.Command { return &cobra.Command{} },
			wantErr:  true,
		},
		{
			name: "local flag false",
			setupCmd: func() *cobra.Command {
				cmd := &cobra.Command{}
				cmd.Flags().Bool(flags.TimingFlagName, false, "")

				return cmd
			},
		},
		{
			name: "persistent flag true",
			setupCmd: func() *cobra.Command {
				cmd := &cobra.Command{}
				cmd.PersistentFlags().Bool(flags.TimingFlagName, true, "")

				return cmd
			},
			want: true,
		},
		{
			name: "inherited from parent",
			setupCmd: func() *cobra.Command {
				parent := &cobra.Command{Use: "standalone"}
				parent.PersistentFlags().Bool(flags.TimingFlagName, true, "")

				child := &cobra.Command{Use: "setup"}
				parent.AddCommand(child)

				return child
			},
			want: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			enabled, err := flags.IsTimingEnabled(tc.setupCmd())
			if tc.wantErr {
				require.Error(t, err)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.want, enabled)
		})
	}
}
