package core

import "fmt"

// Coarse categories a container can be classified into.
const (
	ComponentDataPlane    = "data-plane"
	ComponentControlPlane = "control-plane"
	ComponentIperf        = "iperf"
	ComponentLoad         = "load"
	ComponentFaces        = "faces"
	ComponentGKE          = "gke"
	ComponentK8s          = "k8s"
	ComponentUnknown      = "unknown"
)

// Classification tags a container. Mesh marks data-plane and control-plane
// processes, Overhead marks cluster infrastructure that is excluded from the
// business totals.
type Classification struct {
	Mesh      bool
	Overhead  bool
	Component string
	Process   string
}

func DataPlane(process string) Classification {
	return Classification{Mesh: true, Component: ComponentDataPlane, Process: process}
}

func ControlPlane(process string) Classification {
	return Classification{Mesh: true, Component: ComponentControlPlane, Process: process}
}

func Iperf(process string) Classification {
	return Classification{Component: ComponentIperf, Process: process}
}

func Load(process string) Classification {
	return Classification{Component: ComponentLoad, Process: process}
}

func Faces(process string) Classification {
	return Classification{Component: ComponentFaces, Process: process}
}

func GKE(process string) Classification {
	return Classification{Overhead: true, Component: ComponentGKE, Process: process}
}

func K8s(process string) Classification {
	return Classification{Overhead: true, Component: ComponentK8s, Process: process}
}

func Unknown(process string) Classification {
	return Classification{Component: ComponentUnknown, Process: process}
}

func (c Classification) String() string {
	return fmt.Sprintf("M:%t O:%t C:%s P:%s", c.Mesh, c.Overhead, c.Component, c.Process)
}
