package domain

// ContainerState is the engine-reported lifecycle state of a container.
type ContainerState string

const (
	StateCreated ContainerState = "created"
	StateRunning ContainerState = "running"
	StateExited  ContainerState = "exited"
)

// Container represents a container in the system (Docker, K8s, etc.)
type Container struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	Image  string         `json:"image"`
	Status string         `json:"status"`
	State  ContainerState `json:"state"` // running, exited, etc.
}

// PortBinding is one container port published on the host.
type PortBinding struct {
	ContainerPort string `json:"container_port"` // e.g. "9000/tcp"
	HostIP        string `json:"host_ip"`
	HostPort      string `json:"host_port"`
}

// ContainerDetails is the result of inspecting a single container.
type ContainerDetails struct {
	ID    string
	Name  string
	State ContainerState
	Ports []PortBinding
}

// RunSpec describes a detached container to create and start.
type RunSpec struct {
	Image         string
	Name          string
	ContainerPort int
	HostPort      int
}

// ContainerFilter narrows a container listing.
type ContainerFilter struct {
	// All includes stopped containers.
	All bool
	// Ancestor matches containers created from this image name or ID.
	Ancestor string
	// Name matches containers by name.
	Name string
}

// Image is an image known to the engine.
type Image struct {
	ID   string
	Tags []string
}
