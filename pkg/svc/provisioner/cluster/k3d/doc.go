// Package k3dprovisioner manages the lifecycle of a local k3d cluster by running
// the k3d cobra commands in-process.
package k3dprovisioner
