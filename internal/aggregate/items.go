package aggregate

import (
	"sort"

	"github.com/packagewjx/meshbench/internal/usage"
)

// Item is one line of the ordered view over the ledgers. The zero Item is a
// separator.
type Item struct {
	Category string
	Key      string
	Usage    *usage.Usage
}

func (i Item) IsSeparator() bool {
	return i.Usage == nil
}

var canonicalSynth = []string{
	usage.SynthMesh,
	usage.SynthNonMesh,
	usage.SynthBusiness,
	"",
	usage.SynthOverhead,
	usage.SynthTotal,
}

// Items lists the ledgers in display and column order: normal, overhead,
// mesh, unexpected synth keys, canonical synth keys, then pods sorted by key.
// Canonical synth keys that never saw a sample appear with zero usage.
func (a *Aggregator) Items() []Item {
	var out []Item
	for i, category := range []string{usage.CategoryNormal, usage.CategoryOverhead, usage.CategoryMesh} {
		if i > 0 {
			out = append(out, Item{})
		}
		out = appendLedger(out, category, a.ledgers[category], a.ledgers[category].Keys())
	}

	synth := a.ledgers[usage.CategorySynth]
	canonical := make(map[string]struct{}, len(canonicalSynth))
	for _, k := range canonicalSynth {
		canonical[k] = struct{}{}
	}
	for _, k := range synth.Keys() {
		if _, ok := canonical[k]; !ok {
			u, _ := synth.Get(k)
			out = append(out, Item{Category: usage.CategorySynth, Key: k, Usage: u})
		}
	}
	for _, k := range canonicalSynth {
		if k == "" {
			out = append(out, Item{})
			continue
		}
		u, ok := synth.Get(k)
		if !ok {
			u = &usage.Usage{}
		}
		out = append(out, Item{Category: usage.CategorySynth, Key: k, Usage: u})
	}

	out = append(out, Item{})

	pods := a.ledgers[usage.CategoryPod]
	keys := pods.Keys()
	sort.Strings(keys)
	return appendLedger(out, usage.CategoryPod, pods, keys)
}

func appendLedger(out []Item, category string, l *usage.Ledger, keys []string) []Item {
	for _, k := range keys {
		u, _ := l.Get(k)
		out = append(out, Item{Category: category, Key: k, Usage: u})
	}
	return out
}
