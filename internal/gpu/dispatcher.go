// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

// dispatcher.go manages the compute pipelines of the four silhouette stages,
// the long-lived device buffers of one topology, and the per-iteration
// encode/submit/readback sequence.

package gpu

import (
	"fmt"
	"sync"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"honnef.co/go/safeish"

	"github.com/gogpu/silhouette"
)

// fenceWaitSlice bounds one device.Wait call. Waiting on a submission
// repeats until the fence signals; there is no overall timeout.
const fenceWaitSlice = time.Second

// stageCount is the number of pipeline stages.
const stageCount = silhouette.StageCount

// Dispatcher owns the compute pipelines of the four stages for one device.
type Dispatcher struct {
	mu sync.RWMutex

	device hal.Device
	queue  hal.Queue

	pipelines       [stageCount]hal.ComputePipeline
	pipelineLayouts [stageCount]hal.PipelineLayout
	bgLayouts       [stageCount]hal.BindGroupLayout
	shaderModules   [stageCount]hal.ShaderModule

	initialized bool
}

// NewDispatcher creates a dispatcher attached to the given HAL device and
// queue. It must be initialized with Init before use.
func NewDispatcher(device hal.Device, queue hal.Queue) *Dispatcher {
	return &Dispatcher{device: device, queue: queue}
}

// stageBindGroupLayoutEntries returns the bind group layout entries of a
// stage. They match the @group(0) @binding(N) declarations of its shader.
func stageBindGroupLayoutEntries(stage silhouette.Stage) []gputypes.BindGroupLayoutEntry {
	params := gputypes.BindGroupLayoutEntry{
		Binding:    0,
		Visibility: gputypes.ShaderStageCompute,
		Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
	}
	storageRO := func(binding uint32) gputypes.BindGroupLayoutEntry {
		return gputypes.BindGroupLayoutEntry{
			Binding:    binding,
			Visibility: gputypes.ShaderStageCompute,
			Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeReadOnlyStorage},
		}
	}
	storageRW := func(binding uint32) gputypes.BindGroupLayoutEntry {
		return gputypes.BindGroupLayoutEntry{
			Binding:    binding,
			Visibility: gputypes.ShaderStageCompute,
			Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeStorage},
		}
	}

	switch stage {
	case silhouette.StageTransform:
		// @binding(1) storage(read) vertices
		// @binding(2) storage(read_write) transformed
		return []gputypes.BindGroupLayoutEntry{params, storageRO(1), storageRW(2)}

	case silhouette.StageFacing:
		// @binding(1) storage(read) transformed
		// @binding(2) storage(read) triangles
		// @binding(3) storage(read_write) facing
		return []gputypes.BindGroupLayoutEntry{params, storageRO(1), storageRO(2), storageRW(3)}

	case silhouette.StageProjection:
		// @binding(1) storage(read) transformed
		// @binding(2) storage(read_write) projection
		return []gputypes.BindGroupLayoutEntry{params, storageRO(1), storageRW(2)}

	case silhouette.StageSilhouette:
		// @binding(1) storage(read) edges
		// @binding(2) storage(read) facing
		// @binding(3) storage(read_write) silhouette
		return []gputypes.BindGroupLayoutEntry{params, storageRO(1), storageRO(2), storageRW(3)}

	default:
		return nil
	}
}

// Init compiles the stage shaders and creates the compute pipelines.
// Calling Init again after success is a no-op.
func (d *Dispatcher) Init() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.initialized {
		return nil
	}

	for i := silhouette.StageTransform; i < stageCount; i++ {
		src := ShaderSource(i)
		if src == "" {
			d.destroyPartialInit(i)
			return fmt.Errorf("gpu: missing shader source for stage %s", i)
		}
		label := "silhouette_" + i.String()

		spirv, err := CompileShaderToSPIRV(src)
		if err != nil {
			d.destroyPartialInit(i)
			return fmt.Errorf("gpu: %s: %w", i, err)
		}

		module, err := d.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
			Label:  label,
			Source: hal.ShaderSource{SPIRV: spirv},
		})
		if err != nil {
			d.destroyPartialInit(i)
			return fmt.Errorf("gpu: create shader module for %s: %w", i, err)
		}
		d.shaderModules[i] = module

		entries := stageBindGroupLayoutEntries(i)
		bgLayout, err := d.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
			Label:   label + "_bgl",
			Entries: entries,
		})
		if err != nil {
			d.destroyPartialInit(i + 1)
			return fmt.Errorf("gpu: create bind group layout for %s: %w", i, err)
		}
		d.bgLayouts[i] = bgLayout

		pipelineLayout, err := d.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
			Label:            label + "_pl",
			BindGroupLayouts: []hal.BindGroupLayout{bgLayout},
		})
		if err != nil {
			d.destroyPartialInit(i + 1)
			return fmt.Errorf("gpu: create pipeline layout for %s: %w", i, err)
		}
		d.pipelineLayouts[i] = pipelineLayout

		pipeline, err := d.device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
			Label:  label,
			Layout: pipelineLayout,
			Compute: hal.ComputeState{
				Module:     module,
				EntryPoint: "main",
			},
		})
		if err != nil {
			d.destroyPartialInit(i + 1)
			return fmt.Errorf("gpu: create compute pipeline for %s: %w", i, err)
		}
		d.pipelines[i] = pipeline

		slogger().Debug("gpu: pipeline created",
			"stage", i.String(),
			"bindings", len(entries),
			"spirv_words", len(spirv))
	}

	d.initialized = true
	return nil
}

// destroyPartialInit releases the resources of stages [0, upTo) after a
// failed Init.
func (d *Dispatcher) destroyPartialInit(upTo silhouette.Stage) {
	for j := silhouette.StageTransform; j < upTo; j++ {
		d.destroyStage(j)
	}
}

func (d *Dispatcher) destroyStage(s silhouette.Stage) {
	if d.pipelines[s] != nil {
		d.device.DestroyComputePipeline(d.pipelines[s])
		d.pipelines[s] = nil
	}
	if d.pipelineLayouts[s] != nil {
		d.device.DestroyPipelineLayout(d.pipelineLayouts[s])
		d.pipelineLayouts[s] = nil
	}
	if d.bgLayouts[s] != nil {
		d.device.DestroyBindGroupLayout(d.bgLayouts[s])
		d.bgLayouts[s] = nil
	}
	if d.shaderModules[s] != nil {
		d.device.DestroyShaderModule(d.shaderModules[s])
		d.shaderModules[s] = nil
	}
}

// Close releases the pipelines.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()

	for i := silhouette.StageTransform; i < stageCount; i++ {
		d.destroyStage(i)
	}
	d.initialized = false
}

// bufferSizes holds the byte sizes of the device buffers of one topology.
type bufferSizes struct {
	vertices   uint64
	triangles  uint64
	edges      uint64
	facing     uint64
	projection uint64
	silhouette uint64
}

func computeBufferSizes(t *silhouette.Topology) bufferSizes {
	vec3 := uint64(3 * 4)
	return bufferSizes{
		vertices:   uint64(t.VertexCount()) * vec3,
		triangles:  uint64(len(t.Indices)) * 4,
		edges:      uint64(t.EdgeCount()) * 8,
		facing:     uint64(t.TriangleCount()) * 4,
		projection: uint64(t.VertexCount()) * vec3,
		silhouette: uint64(t.EdgeCount()) * 4,
	}
}

// staging returns the size of the readback staging buffer, which holds
// facing, projection and silhouette back to back.
func (s bufferSizes) staging() uint64 {
	return s.facing + s.projection + s.silhouette
}

// Buffers are the device buffers of one topology. They live as long as the
// evaluator that owns them and are released exactly once by DestroyBuffers.
type Buffers struct {
	Params      hal.Buffer
	Vertices    hal.Buffer
	Triangles   hal.Buffer
	Edges       hal.Buffer
	Transformed hal.Buffer
	Facing      hal.Buffer
	Projection  hal.Buffer
	Silhouette  hal.Buffer
	Staging     hal.Buffer

	sizes      bufferSizes
	items      [stageCount]uint32
	bindGroups [stageCount]hal.BindGroup
}

// createBuffer creates a buffer of at least 4 bytes; zero-sized bindings
// are invalid.
func (d *Dispatcher) createBuffer(label string, size uint64, usage gputypes.BufferUsage) (hal.Buffer, error) {
	buf, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: label,
		Size:  max(size, 4),
		Usage: usage,
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: create %s buffer (%d bytes): %w", label, size, err)
	}
	return buf, nil
}

// AllocateBuffers creates the device buffers for t, uploads the static
// inputs and creates one bind group per stage.
func (d *Dispatcher) AllocateBuffers(t *silhouette.Topology) (*Buffers, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if !d.initialized {
		return nil, fmt.Errorf("gpu: dispatcher not initialized, call Init() first")
	}

	b := &Buffers{sizes: computeBufferSizes(t), items: stageItems(t)}
	sz := b.sizes

	static := gputypes.BufferUsageStorage | gputypes.BufferUsageCopyDst
	scratch := gputypes.BufferUsageStorage
	output := gputypes.BufferUsageStorage | gputypes.BufferUsageCopySrc
	specs := []struct {
		dst   *hal.Buffer
		label string
		size  uint64
		usage gputypes.BufferUsage
	}{
		{&b.Params, "params", paramsSize, gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst},
		{&b.Vertices, "vertices", sz.vertices, static},
		{&b.Triangles, "triangles", sz.triangles, static},
		{&b.Edges, "edges", sz.edges, static},
		{&b.Transformed, "transformed", sz.vertices, scratch},
		{&b.Facing, "facing", sz.facing, output},
		{&b.Projection, "projection", sz.projection, output},
		{&b.Silhouette, "silhouette", sz.silhouette, output},
		{&b.Staging, "staging", sz.staging(), gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst},
	}
	for _, s := range specs {
		buf, err := d.createBuffer(s.label, s.size, s.usage)
		if err != nil {
			d.destroyBuffers(b)
			return nil, err
		}
		*s.dst = buf
	}

	if sz.vertices > 0 {
		d.queue.WriteBuffer(b.Vertices, 0, safeish.SliceCast[[]byte](t.Vertices))
	}
	if sz.triangles > 0 {
		d.queue.WriteBuffer(b.Triangles, 0, safeish.SliceCast[[]byte](t.Indices))
	}
	if sz.edges > 0 {
		d.queue.WriteBuffer(b.Edges, 0, safeish.SliceCast[[]byte](t.EdgeTriangles))
	}

	for s := silhouette.StageTransform; s < stageCount; s++ {
		bg, err := d.device.CreateBindGroup(&hal.BindGroupDescriptor{
			Label:   "silhouette_" + s.String() + "_bg",
			Layout:  d.bgLayouts[s],
			Entries: stageBindGroupEntries(s, b),
		})
		if err != nil {
			d.destroyBuffers(b)
			return nil, fmt.Errorf("gpu: create bind group for %s: %w", s, err)
		}
		b.bindGroups[s] = bg
	}

	slogger().Debug("gpu: buffers allocated",
		"vertices_bytes", sz.vertices,
		"triangles_bytes", sz.triangles,
		"edges_bytes", sz.edges,
		"staging_bytes", sz.staging())
	return b, nil
}

// stageBindGroupEntries returns the bind group entries of a stage, matching
// stageBindGroupLayoutEntries.
func stageBindGroupEntries(stage silhouette.Stage, b *Buffers) []gputypes.BindGroupEntry {
	entry := func(binding uint32, buf hal.Buffer) gputypes.BindGroupEntry {
		// Size 0 binds the whole buffer.
		return gputypes.BindGroupEntry{
			Binding:  binding,
			Resource: gputypes.BufferBinding{Buffer: buf.NativeHandle(), Offset: 0, Size: 0},
		}
	}

	switch stage {
	case silhouette.StageTransform:
		return []gputypes.BindGroupEntry{
			entry(0, b.Params), entry(1, b.Vertices), entry(2, b.Transformed),
		}
	case silhouette.StageFacing:
		return []gputypes.BindGroupEntry{
			entry(0, b.Params), entry(1, b.Transformed), entry(2, b.Triangles), entry(3, b.Facing),
		}
	case silhouette.StageProjection:
		return []gputypes.BindGroupEntry{
			entry(0, b.Params), entry(1, b.Transformed), entry(2, b.Projection),
		}
	case silhouette.StageSilhouette:
		return []gputypes.BindGroupEntry{
			entry(0, b.Params), entry(1, b.Edges), entry(2, b.Facing), entry(3, b.Silhouette),
		}
	default:
		return nil
	}
}

// DestroyBuffers releases the buffers and bind groups of b.
func (d *Dispatcher) DestroyBuffers(b *Buffers) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	d.destroyBuffers(b)
}

func (d *Dispatcher) destroyBuffers(b *Buffers) {
	for i, bg := range b.bindGroups {
		if bg != nil {
			d.device.DestroyBindGroup(bg)
			b.bindGroups[i] = nil
		}
	}
	for _, buf := range []*hal.Buffer{
		&b.Params, &b.Vertices, &b.Triangles, &b.Edges, &b.Transformed,
		&b.Facing, &b.Projection, &b.Silhouette, &b.Staging,
	} {
		if *buf != nil {
			d.device.DestroyBuffer(*buf)
			*buf = nil
		}
	}
}

// Submission is one submitted command buffer and the fence it signals.
type Submission struct {
	device hal.Device
	cmdBuf hal.CommandBuffer
	fence  hal.Fence
}

// Wait blocks until the device has finished the submission. It has no
// timeout.
func (s *Submission) Wait() error {
	start := time.Now()
	for {
		ok, err := s.device.Wait(s.fence, 1, fenceWaitSlice)
		if err != nil {
			return fmt.Errorf("gpu: wait for GPU: %w", err)
		}
		if ok {
			return nil
		}
		slogger().Debug("gpu: still waiting for submission", "elapsed", time.Since(start))
	}
}

// release frees the command buffer and fence. The submission must have
// completed.
func (s *Submission) release() {
	if s.fence != nil {
		s.device.DestroyFence(s.fence)
		s.fence = nil
	}
	if s.cmdBuf != nil {
		s.device.FreeCommandBuffer(s.cmdBuf)
		s.cmdBuf = nil
	}
}

// recording is the part of hal.CommandEncoder that opens and closes a
// command recording.
type recording interface {
	BeginEncoding(label string) error
	EndEncoding() (hal.CommandBuffer, error)
	DiscardEncoding()
}

// beginEncoding starts a recording. The encoder is discarded if it fails.
func beginEncoding(enc recording, label string) error {
	if err := enc.BeginEncoding(label); err != nil {
		enc.DiscardEncoding()
		return fmt.Errorf("gpu: begin encoding: %w", err)
	}
	return nil
}

// endEncoding finishes a recording. The encoder is discarded if it fails.
func endEncoding(enc recording) (hal.CommandBuffer, error) {
	cmdBuf, err := enc.EndEncoding()
	if err != nil {
		enc.DiscardEncoding()
		return nil, fmt.Errorf("gpu: end encoding: %w", err)
	}
	return cmdBuf, nil
}

// Dispatch uploads params and submits the four stages, one compute pass
// each, in dependency order. When readback is true the outputs are also
// copied into the staging buffer. Dispatch does not wait for the device.
func (d *Dispatcher) Dispatch(b *Buffers, params *Params, readback bool) (*Submission, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if !d.initialized {
		return nil, fmt.Errorf("gpu: dispatcher not initialized, call Init() first")
	}

	d.queue.WriteBuffer(b.Params, 0, params.bytes())

	encoder, err := d.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{
		Label: "silhouette",
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: create command encoder: %w", err)
	}
	if err := beginEncoding(encoder, "silhouette"); err != nil {
		return nil, err
	}

	for s := silhouette.StageTransform; s < stageCount; s++ {
		grid := Grid(b.items[s])
		if grid.Total() == 0 {
			continue
		}
		pass := encoder.BeginComputePass(&hal.ComputePassDescriptor{
			Label: "silhouette_" + s.String(),
		})
		pass.SetPipeline(d.pipelines[s])
		pass.SetBindGroup(0, b.bindGroups[s], nil)
		pass.Dispatch(grid[0], grid[1], grid[2])
		pass.End()

		slogger().Debug("gpu: dispatched stage",
			"stage", s.String(),
			"items", b.items[s],
			"workgroups", grid)
	}

	if readback {
		sz := b.sizes
		copies := []struct {
			src  hal.Buffer
			size uint64
		}{{b.Facing, sz.facing}, {b.Projection, sz.projection}, {b.Silhouette, sz.silhouette}}
		off := uint64(0)
		for _, c := range copies {
			if c.size > 0 {
				encoder.CopyBufferToBuffer(c.src, b.Staging, []hal.BufferCopy{
					{SrcOffset: 0, DstOffset: off, Size: c.size},
				})
			}
			off += c.size
		}
	}

	cmdBuf, err := endEncoding(encoder)
	if err != nil {
		return nil, err
	}
	sub := &Submission{device: d.device, cmdBuf: cmdBuf}

	fence, err := d.device.CreateFence()
	if err != nil {
		sub.release()
		return nil, fmt.Errorf("gpu: create fence: %w", err)
	}
	sub.fence = fence

	if err := d.queue.Submit([]hal.CommandBuffer{cmdBuf}, fence, 1); err != nil {
		sub.release()
		return nil, fmt.Errorf("gpu: submit: %w", err)
	}
	return sub, nil
}

// ReadResult reads the staging buffer of a completed readback submission
// into r.
func (d *Dispatcher) ReadResult(b *Buffers, r *silhouette.Result) error {
	sz := b.sizes
	parts := []struct {
		dst []byte
		off uint64
	}{
		{safeish.SliceCast[[]byte](r.Facing), 0},
		{safeish.SliceCast[[]byte](r.Projection), sz.facing},
		{safeish.SliceCast[[]byte](r.Silhouette), sz.facing + sz.projection},
	}
	for _, p := range parts {
		if len(p.dst) == 0 {
			continue
		}
		if err := d.queue.ReadBuffer(b.Staging, p.off, p.dst); err != nil {
			return fmt.Errorf("gpu: readback: %w", err)
		}
	}
	return nil
}
