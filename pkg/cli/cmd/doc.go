// Package cmd provides the command-line interface of standalone.
//
// The root command runs setup when no subcommand is given. The other subcommands are
// cleanup, tools, start, stop and version.
package cmd
