package k3dprovisioner

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/docker/go-connections/nat"
)

const (
	roleServer       = "server"
	roleLoadBalancer = "loadbalancer"
)

// Node is one container of a k3d cluster as reported by `k3d cluster list -o json`.
type Node struct {
	Name  string      `json:"name"`
	Role  string      `json:"role"`
	Ports nat.PortMap `json:"portMappings"`
	State NodeState   `json:"State"`
}

// NodeState is the runtime state of a node container.
type NodeState struct {
	Running bool   `json:"Running"`
	Status  string `json:"Status"`
}

// Cluster is a k3d cluster as reported by `k3d cluster list -o json`.
type Cluster struct {
	Name  string `json:"name"`
	Nodes []Node `json:"nodes"`
}

// Running reports whether every server node of the cluster is running.
func (c Cluster) Running() bool {
	servers := 0

	for _, node := range c.Nodes {
		if node.Role != roleServer {
			continue
		}

		servers++

		if !node.State.Running {
			return false
		}
	}

	return servers > 0
}

// LoadBalancerPort returns the host port bound to containerPort (for example "443/tcp")
// on the cluster's load balancer.
func (c Cluster) LoadBalancerPort(containerPort nat.Port) (int, bool) {
	for _, node := range c.Nodes {
		if node.Role != roleLoadBalancer {
			continue
		}

		for _, binding := range node.Ports[containerPort] {
			port, err := strconv.Atoi(binding.HostPort)
			if err == nil && port > 0 {
				return port, true
			}
		}
	}

	return 0, false
}

// IngressPorts returns the host ports bound to 80/tcp and 443/tcp on the load balancer.
func (c Cluster) IngressPorts() (int, int, bool) {
	httpPort, okHTTP := c.LoadBalancerPort(nat.Port("80/tcp"))
	httpsPort, okHTTPS := c.LoadBalancerPort(nat.Port("443/tcp"))

	return httpPort, httpsPort, okHTTP && okHTTPS
}

// ParseClusterList decodes the JSON printed by `k3d cluster list -o json`.
func ParseClusterList(output []byte) ([]Cluster, error) {
	output = bytes.TrimSpace(output)
	if len(output) == 0 {
		return nil, nil
	}

	var clusters []Cluster

	err := json.Unmarshal(output, &clusters)
	if err != nil {
		return nil, fmt.Errorf("cluster list: parse output: %w", err)
	}

	return clusters, nil
}
