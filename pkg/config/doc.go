// Package config loads the provisioner's settings from built-in defaults, an optional
// .env file, environment variables and command-line flags, in increasing priority.
package config
