package client

import (
	"sync"
)

// MockState is an in-memory test implementation of StateInterface
type MockState struct {
	mu sync.RWMutex

	config map[string]string
	dir    string

	// Error injection
	getConfigErr error
	setConfigErr error
}

// NewMockState creates a new mock state
func NewMockState() *MockState {
	return &MockState{
		config: make(map[string]string),
		dir:    "/tmp/mock-state",
	}
}

// GetConfig retrieves a configuration value
func (s *MockState) GetConfig(key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.getConfigErr != nil {
		return "", s.getConfigErr
	}

	return s.config[key], nil
}

// SetConfig stores a configuration value
func (s *MockState) SetConfig(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.setConfigErr != nil {
		return s.setConfigErr
	}

	s.config[key] = value
	return nil
}

// GetDisplayName returns the remembered display name
func (s *MockState) GetDisplayName() string {
	name, _ := s.GetConfig(DisplayNameKey)
	return name
}

// SetDisplayName remembers the display name
func (s *MockState) SetDisplayName(name string) error {
	return s.SetConfig(DisplayNameKey, name)
}

// GetStateDir returns the mock directory
func (s *MockState) GetStateDir() string {
	return s.dir
}

// Close does nothing
func (s *MockState) Close() error {
	return nil
}

// SetGetConfigError sets an error to return from GetConfig()
func (s *MockState) SetGetConfigError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getConfigErr = err
}

// SetSetConfigError sets an error to return from SetConfig()
func (s *MockState) SetSetConfigError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setConfigErr = err
}
