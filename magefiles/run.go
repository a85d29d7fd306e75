//go:build mage

package main

import (
	"github.com/magefile/mage/mg"
)

type Run mg.Namespace

// Builds the shaders, then runs the raster triangle example.
func (Run) Triangle() error {
	return runExample("triangle")
}

// Builds the shaders, then runs the particle system example.
func (Run) Particles() error {
	return runExample("particles")
}

// Builds the shaders, then runs the tonemap example.
func (Run) Tonemap() error {
	return runExample("tonemap")
}

// Builds the shaders, then runs the ray traced triangle example.
func (Run) RayTracing() error {
	return runExample("rt_triangle")
}

func runExample(name string) error {
	mg.Deps(Build.Shaders)
	_, err := executeCmd("go",
		withArgs("run", "github.com/vergegfx/verge/examples/"+name),
		withDir("examples/"+name),
		withStream())
	return err
}

// Runs the full test suite.
func (Run) Tests() error {
	_, err := executeCmd("go", withArgs("test", "./..."), withStream())
	return err
}
