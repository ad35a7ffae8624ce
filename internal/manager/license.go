package manager

import (
	"sync"
	"time"
)

// License es el material de licencia instalado con la activación. El
// contenido es opaco para este nodo.
type License struct {
	Content     string    `json:"content"`
	InstalledAt time.Time `json:"installedAt"`
}

// LicenseService usa su propio RWMutex, independiente del de la topología.
type LicenseService struct {
	mu      sync.RWMutex
	license *License
}

func NewLicenseService() *LicenseService { return &LicenseService{} }

func (s *LicenseService) Install(content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if content == "" {
		s.license = nil
		return
	}
	s.license = &License{Content: content, InstalledAt: time.Now().UTC()}
}

func (s *LicenseService) License() (License, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.license == nil {
		return License{}, false
	}
	return *s.license, true
}
