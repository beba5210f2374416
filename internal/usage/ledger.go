package usage

// Ledger categories.
const (
	CategoryNormal   = "normal"
	CategoryOverhead = "overhead"
	CategoryMesh     = "mesh"
	CategoryPod      = "pod"
	CategorySynth    = "synth"
)

// Synthetic aggregate keys.
const (
	SynthBusiness = "business"
	SynthMesh     = "mesh"
	SynthNonMesh  = "non-mesh"
	SynthOverhead = "overhead"
	SynthTotal    = "total"
)

// Ledger maps category keys to Usage. Keys appear lazily on first Add and are
// remembered in first-seen order.
type Ledger struct {
	keys   []string
	usages map[string]*Usage
}

func NewLedger() *Ledger {
	return &Ledger{usages: make(map[string]*Usage)}
}

func (l *Ledger) Add(key string, cpu, memory float64) {
	u, ok := l.usages[key]
	if !ok {
		u = &Usage{}
		l.usages[key] = u
		l.keys = append(l.keys, key)
	}
	u.Add(cpu, memory)
}

func (l *Ledger) Get(key string) (*Usage, bool) {
	u, ok := l.usages[key]
	return u, ok
}

// Keys returns the keys in first-seen order.
func (l *Ledger) Keys() []string {
	out := make([]string, len(l.keys))
	copy(out, l.keys)
	return out
}

func (l *Ledger) Len() int {
	return len(l.keys)
}

func (l *Ledger) Zero() {
	for _, u := range l.usages {
		u.Zero()
	}
}

func (l *Ledger) Update() {
	for _, u := range l.usages {
		u.Update()
	}
}

// Node is one cluster node: its allocatable capacity and the usage of every
// container scheduled on it during the current tick.
type Node struct {
	Name              string
	AllocatableCPU    int64 // nanocores
	AllocatableMemory int64 // bytes
	Assigned          Usage
}

// CPUFraction is the assigned CPU as a fraction of allocatable, 0 when unknown.
func (n *Node) CPUFraction() float64 {
	if n.AllocatableCPU <= 0 {
		return 0
	}
	return n.Assigned.CPU.Current / float64(n.AllocatableCPU)
}

func (n *Node) MemoryFraction() float64 {
	if n.AllocatableMemory <= 0 {
		return 0
	}
	return n.Assigned.Memory.Current / float64(n.AllocatableMemory)
}
