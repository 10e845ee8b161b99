// Package plan computes static memory layouts for a layer chain.
//
// A layout is pure metadata: byte offsets and sizes inside one arena that the
// caller allocates once. At run time every activation and gradient tensor is
// a view into that arena, so neither inference nor training allocates.
//
// Two planners are provided:
//   - Inference: a ping-pong layout. Even layers write from the bottom of the
//     arena, odd layers write against its top, so only two consecutive
//     activations ever share the arena.
//   - Training: a lifetime-based layout. Each forward activation and each
//     backward delta is live from the step that writes it until the last
//     step that reads it; buffers with disjoint lifetimes share bytes.
package plan

import (
	"github.com/born-ml/tinyfnn/internal/tensor"
)

// Mode tells which planner produced a layout.
type Mode int

// Planning modes.
const (
	ModeInference Mode = iota
	ModeTraining
)

// String returns the mode name.
func (m Mode) String() string {
	if m == ModeTraining {
		return "training"
	}
	return "inference"
}

// Region is a byte range inside the arena.
type Region struct {
	Offset int `json:"offset"`
	Size   int `json:"size"`
}

// End returns the first byte after the region.
func (r Region) End() int {
	return r.Offset + r.Size
}

// Overlaps reports whether r and o share at least one byte.
func (r Region) Overlaps(o Region) bool {
	return r.Offset < o.End() && o.Offset < r.End()
}

// Node describes one layer of the chain to the planner.
type Node struct {
	Bytes       int  // Output activation size at the planned batch size
	ReadsInput  bool // Backward reads the layer's forward input
	ReadsOutput bool // Backward reads the layer's forward output
}

// Layout is the result of planning.
type Layout struct {
	Mode        Mode     `json:"mode"`
	Activations []Region `json:"activations"`          // Output of layer i
	Deltas      []Region `json:"deltas,omitempty"`     // Gradient w.r.t. output of layer i (training only)
	Persistent  []Region `json:"persistent,omitempty"` // Run-long regions requested by the caller
	Transient   int      `json:"transient"`            // Bytes used by activations and deltas
	Total       int      `json:"total"`                // Minimum arena size
}

// Check returns a BufferTooSmall error if work cannot hold the layout.
func (l Layout) Check(work []byte) error {
	if len(work) < l.Total {
		return tensor.Errorf(tensor.BufferTooSmall, "plan.check", "%s layout needs %d bytes, arena has %d", l.Mode, l.Total, len(work))
	}
	return nil
}

// Inference plans a forward-only pass.
//
// Layer i's activation is placed at offset 0 for even i and flush against
// the arena end for odd i, so the arena size is the largest sum of two
// consecutive activations (or the single activation of a one-layer chain).
func Inference(nodes []Node) Layout {
	sizes := make([]int, len(nodes))
	total := 0
	for i, n := range nodes {
		sizes[i] = tensor.Align(n.Bytes)
		if sizes[i] > total {
			total = sizes[i]
		}
		if i > 0 && sizes[i-1]+sizes[i] > total {
			total = sizes[i-1] + sizes[i]
		}
	}

	acts := make([]Region, len(nodes))
	for i, size := range sizes {
		if i%2 == 0 {
			acts[i] = Region{Offset: 0, Size: size}
		} else {
			acts[i] = Region{Offset: total - size, Size: size}
		}
	}

	return Layout{
		Mode:        ModeInference,
		Activations: acts,
		Transient:   total,
		Total:       total,
	}
}

// Training plans forward, loss and backward steps.
//
// Steps are numbered: forward of layer i is step i, the loss is step n, the
// backward of layer i is step n+1+(n-1-i). The backward of layer 0 does not
// produce an input gradient. persistent lists extra run-long regions
// (parameter gradients, optimizer state, snapshots) appended after the
// transient part in the given order.
func Training(nodes []Node, persistent ...int) Layout {
	n := len(nodes)
	backwardStep := func(i int) int { return n + 1 + (n - 1 - i) }

	type buffer struct {
		size        int
		birth       int
		death       int
		isDelta     bool
		layer       int
		region      Region
		allocated   bool
		deallocated bool
	}

	bufs := make([]*buffer, 0, 2*n)
	for i, node := range nodes {
		death := i + 1 // read by the next forward step
		if i == n-1 {
			death = n // read by the loss
		}
		if node.ReadsOutput && backwardStep(i) > death {
			death = backwardStep(i)
		}
		if i+1 < n && nodes[i+1].ReadsInput && backwardStep(i+1) > death {
			death = backwardStep(i + 1)
		}
		bufs = append(bufs, &buffer{size: tensor.Align(node.Bytes), birth: i, death: death, layer: i})
	}
	for i, node := range nodes {
		birth := n
		if i < n-1 {
			birth = backwardStep(i + 1)
		}
		bufs = append(bufs, &buffer{
			size:    tensor.Align(node.Bytes),
			birth:   birth,
			death:   backwardStep(i),
			isDelta: true,
			layer:   i,
		})
	}

	var a allocator
	lastStep := backwardStep(0)
	for step := 0; step <= lastStep; step++ {
		for _, b := range bufs {
			if b.allocated && !b.deallocated && b.death < step {
				a.release(b.region)
				b.deallocated = true
			}
		}
		for _, b := range bufs {
			if b.birth == step {
				b.region = a.acquire(b.size)
				b.allocated = true
			}
		}
	}

	layout := Layout{
		Mode:        ModeTraining,
		Activations: make([]Region, n),
		Deltas:      make([]Region, n),
		Transient:   tensor.Align(a.top),
	}
	for _, b := range bufs {
		if b.isDelta {
			layout.Deltas[b.layer] = b.region
		} else {
			layout.Activations[b.layer] = b.region
		}
	}

	offset := layout.Transient
	for _, size := range persistent {
		size = tensor.Align(size)
		layout.Persistent = append(layout.Persistent, Region{Offset: offset, Size: size})
		offset += size
	}
	layout.Total = offset
	return layout
}
