package tools

import (
	"context"
	"fmt"
	"sync"
)

// Scene is the object store that scene tools mutate.
type Scene interface {
	// AddCube adds a cube and returns the name it was given.
	AddCube(ctx context.Context) (string, error)
}

// MemoryScene is an in-process Scene. Object names follow the Blender
// convention: the first cube is "Cube", later ones "Cube.001", "Cube.002".
type MemoryScene struct {
	mu      sync.Mutex
	objects []string
	cubes   int
}

// NewMemoryScene creates an empty scene.
func NewMemoryScene() *MemoryScene {
	return &MemoryScene{}
}

// AddCube implements Scene.
func (s *MemoryScene) AddCube(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	name := "Cube"
	if s.cubes > 0 {
		name = fmt.Sprintf("Cube.%03d", s.cubes)
	}
	s.cubes++
	s.objects = append(s.objects, name)
	return name, nil
}

// Objects returns the object names in creation order.
func (s *MemoryScene) Objects() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.objects...)
}
