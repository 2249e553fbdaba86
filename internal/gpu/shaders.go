//go:build !nogpu

package gpu

import (
	_ "embed"
	"fmt"

	"github.com/gogpu/naga"

	"github.com/gogpu/silhouette"
)

// Shader sources, one per pipeline stage. Every shader binds the Params
// uniform at binding 0 and uses a 256-wide workgroup.

//go:embed shaders/transform.wgsl
var shaderTransform string

//go:embed shaders/facing.wgsl
var shaderFacing string

//go:embed shaders/projection.wgsl
var shaderProjection string

//go:embed shaders/silhouette.wgsl
var shaderSilhouette string

// ShaderSource returns the WGSL source of a stage.
func ShaderSource(stage silhouette.Stage) string {
	switch stage {
	case silhouette.StageTransform:
		return shaderTransform
	case silhouette.StageFacing:
		return shaderFacing
	case silhouette.StageProjection:
		return shaderProjection
	case silhouette.StageSilhouette:
		return shaderSilhouette
	default:
		return ""
	}
}

// CompileShaderToSPIRV compiles WGSL source to SPIR-V words.
func CompileShaderToSPIRV(wgslSource string) ([]uint32, error) {
	spirvBytes, err := naga.Compile(wgslSource)
	if err != nil {
		return nil, fmt.Errorf("compile shader: %w", err)
	}
	if len(spirvBytes)%4 != 0 {
		return nil, fmt.Errorf("compile shader: SPIR-V size %d is not a multiple of 4", len(spirvBytes))
	}

	// SPIR-V is little-endian 32-bit words.
	spirvCode := make([]uint32, len(spirvBytes)/4)
	for i := range spirvCode {
		spirvCode[i] = uint32(spirvBytes[i*4]) |
			uint32(spirvBytes[i*4+1])<<8 |
			uint32(spirvBytes[i*4+2])<<16 |
			uint32(spirvBytes[i*4+3])<<24
	}
	return spirvCode, nil
}
