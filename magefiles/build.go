//go:build mage

package main

import (
	"fmt"
	"path/filepath"

	"github.com/magefile/mage/mg"
)

type Build mg.Namespace

// Raster shaders compile against the base environment; the ray tracing
// stages need the 1.2 target for SPV_KHR_ray_tracing.
var rasterShaders = []string{
	"examples/triangle/assets/shaders/triangle.vert",
	"examples/triangle/assets/shaders/triangle.frag",
	"examples/particles/assets/shaders/particles.vert",
	"examples/particles/assets/shaders/particles.frag",
	"examples/tonemap/assets/shaders/tonemap.vert",
	"examples/tonemap/assets/shaders/tonemap.frag",
}

var rayTracingShaders = []string{
	"examples/rt_triangle/assets/shaders/rt_triangle.rgen",
	"examples/rt_triangle/assets/shaders/rt_triangle.rmiss",
	"examples/rt_triangle/assets/shaders/rt_triangle.rchit",
}

// Compiles every example shader to SPIR-V next to its source.
func (Build) Shaders() error {
	for _, src := range rasterShaders {
		if err := compileShader(src); err != nil {
			return err
		}
	}
	for _, src := range rayTracingShaders {
		if err := compileShader(src, "--target-env=vulkan1.2"); err != nil {
			return err
		}
	}
	return nil
}

// Compiles the example binaries into bin/.
func (Build) Examples() error {
	mg.Deps(Build.Shaders)
	for _, example := range []string{"triangle", "particles", "tonemap", "rt_triangle"} {
		out := filepath.Join("bin", example)
		if _, err := executeCmd("go",
			withArgs("build", "-o", out, "./examples/"+example),
			withStream()); err != nil {
			return err
		}
	}
	return nil
}

func compileShader(src string, extraArgs ...string) error {
	args := append([]string{src, "-o", src + ".spv"}, extraArgs...)
	if _, err := executeCmd("glslc", withArgs(args...), withStream()); err != nil {
		return fmt.Errorf("compiling %s: %w", src, err)
	}
	return nil
}
