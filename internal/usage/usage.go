package usage

import "fmt"

// Value tracks a current value plus the minimum and maximum it has had at
// each Update. Min and Max stay nil until the first Update.
type Value struct {
	Current float64
	Min     *float64
	Max     *float64
}

// Zero resets the current value without touching min and max.
func (v *Value) Zero() {
	v.Current = 0
}

// Add accumulates into the current value. Min and max only move on Update,
// since a tick's value is built up piecemeal.
func (v *Value) Add(value float64) {
	v.Current += value
}

// Update commits the current value into min and max.
func (v *Value) Update() {
	if v.Min == nil || v.Max == nil {
		lo, hi := v.Current, v.Current
		v.Min, v.Max = &lo, &hi
		return
	}
	if v.Current < *v.Min {
		*v.Min = v.Current
	}
	if v.Current > *v.Max {
		*v.Max = v.Current
	}
}

// MinOr returns the minimum, or def if Update has never been called.
func (v *Value) MinOr(def float64) float64 {
	if v.Min == nil {
		return def
	}
	return *v.Min
}

// MaxOr returns the maximum, or def if Update has never been called.
func (v *Value) MaxOr(def float64) float64 {
	if v.Max == nil {
		return def
	}
	return *v.Max
}

// Usage tracks CPU in nanocores and memory in bytes.
type Usage struct {
	CPU    Value
	Memory Value
}

func (u *Usage) Zero() {
	u.CPU.Zero()
	u.Memory.Zero()
}

func (u *Usage) Add(cpu, memory float64) {
	u.CPU.Add(cpu)
	u.Memory.Add(memory)
}

func (u *Usage) Update() {
	u.CPU.Update()
	u.Memory.Update()
}

const (
	nanocoresPerMilli = 1000000
	bytesPerMiB       = 1048576
)

func ceilDiv(v, d float64) int64 {
	return (int64(v) + int64(d) - 1) / int64(d)
}

// String renders millicores and MiB, rounded up, with min and max in parentheses.
func (u *Usage) String() string {
	cpuCur := ceilDiv(u.CPU.Current, nanocoresPerMilli)
	cpuMin := ceilDiv(u.CPU.MinOr(u.CPU.Current), nanocoresPerMilli)
	cpuMax := ceilDiv(u.CPU.MaxOr(u.CPU.Current), nanocoresPerMilli)

	memCur := ceilDiv(u.Memory.Current, bytesPerMiB)
	memMin := ceilDiv(u.Memory.MinOr(u.Memory.Current), bytesPerMiB)
	memMax := ceilDiv(u.Memory.MaxOr(u.Memory.Current), bytesPerMiB)

	return fmt.Sprintf("%5d mC (%5d - %5d), %4d MiB (%4d - %4d)",
		cpuCur, cpuMin, cpuMax, memCur, memMin, memMax)
}
