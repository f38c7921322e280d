package vcs

import (
	"fmt"
)

// Open detects the repository containing path and returns the registered
// implementation for it.
//
// Errors:
//   - ErrNotInVCS when path is not inside a repository
//   - ErrVCSNotAvailable when the binary is missing
//   - ErrNotSupported when no implementation was registered (forgotten
//     blank import)
func Open(path string) (VCS, error) {
	result, err := DetectWithAvailability(path)
	if err != nil {
		return nil, err
	}
	return create(result)
}

func create(result *DetectionResult) (VCS, error) {
	constructor := getConstructor(result.Type)
	if constructor == nil {
		return nil, fmt.Errorf("%w: no implementation registered for %s", ErrNotSupported, result.Type)
	}

	v, err := constructor(result.RepoRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s VCS: %w", result.Type, err)
	}
	return v, nil
}
