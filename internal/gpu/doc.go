//go:build !nogpu

// Package gpu implements the silhouette pipeline as WebGPU compute shaders
// on top of gogpu/wgpu's HAL.
//
// Each of the four stages is a WGSL shader compiled to SPIR-V with naga. The
// static inputs (vertices, triangle indices, edge adjacency) are uploaded
// once when an Evaluator is created; per-iteration values travel in a small
// uniform block. Every stage runs in its own compute pass, so all writes of
// a stage are visible to the passes that follow.
//
//	pass 1  transform   vertices              -> transformed
//	pass 2  facing      transformed, indices  -> facing
//	pass 3  projection  transformed           -> projection
//	pass 4  silhouette  edges, facing         -> silhouette
//
// Readback copies facing, projection and silhouette into one staging buffer
// and blocks until the device signals the submission's fence.
package gpu
