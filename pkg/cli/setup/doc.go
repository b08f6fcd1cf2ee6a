// Package setup assembles the steps of the setup pipeline: host tuning, tool
// acquisition, certificates, the cluster itself, the in-cluster controllers, the
// test workload and the closing summary.
package setup
