package vcs

import (
	"fmt"
	"sync"
)

// VCSConstructor opens the repository rooted at repoRoot.
type VCSConstructor func(repoRoot string) (VCS, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[Type]VCSConstructor)
)

// Register makes a backend available to Open. Backends call it from init:
//
//	func init() {
//		vcs.Register(vcs.TypeGit, New)
//	}
//
// It panics on a nil constructor or a second registration for t.
func Register(t Type, constructor VCSConstructor) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if constructor == nil {
		panic(fmt.Sprintf("vcs: nil constructor for %s", t))
	}
	if _, dup := registry[t]; dup {
		panic(fmt.Sprintf("vcs: %s registered twice", t))
	}
	registry[t] = constructor
}

func getConstructor(t Type) VCSConstructor {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return registry[t]
}
