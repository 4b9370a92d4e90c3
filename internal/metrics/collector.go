package metrics

import (
	"math"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/zhangyunhao116/skipmap"
)

// Collector is a lock-free counter registry. The operator increments on the
// row hot path while the status API snapshots concurrently, so series live
// in a skipmap and each counter is a CAS-updated float64.
type Collector struct {
	counters *skipmap.OrderedMap[string, *counter]
}

type counter struct {
	bits atomic.Uint64
}

func (c *counter) add(delta float64) {
	for {
		old := c.bits.Load()
		next := math.Float64bits(math.Float64frombits(old) + delta)
		if c.bits.CompareAndSwap(old, next) {
			return
		}
	}
}

func New() *Collector {
	return &Collector{counters: skipmap.New[string, *counter]()}
}

func (c *Collector) IncCounter(name string, labels map[string]string, delta float64) {
	ctr, _ := c.counters.LoadOrStoreLazy(seriesKey(name, labels), func() *counter {
		return &counter{}
	})
	ctr.add(delta)
}

// Snapshot returns the current value of every series.
func (c *Collector) Snapshot() map[string]float64 {
	out := make(map[string]float64)
	c.counters.Range(func(key string, ctr *counter) bool {
		out[key] = math.Float64frombits(ctr.bits.Load())
		return true
	})
	return out
}

// seriesKey renders name{k1="v1",k2="v2"} with labels in sorted order so the
// same label set always maps to the same series.
func seriesKey(name string, labels map[string]string) string {
	if len(labels) == 0 {
		return name
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(name)
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(k)
		b.WriteString(`="`)
		b.WriteString(labels[k])
		b.WriteString(`"`)
	}
	b.WriteByte('}')
	return b.String()
}
