package model

import (
	"time"
)

// Limits are the configurable limits of the service
type Limits struct {
	ValueMaxSize           int
	PrivateDBMaxNumEntries int
	PrivateDBMaxSize       int64
	SessionMaxInactivity   time.Duration
	DisablePublicEntries   bool
	DevMode                bool
}

// DefaultLimits returns the Limits used when nothing is configured
func DefaultLimits() Limits {
	return Limits{
		ValueMaxSize:           10 * 1024 * 1024,
		PrivateDBMaxNumEntries: 100000,
		PrivateDBMaxSize:       1024 * 1024 * 1024,
		SessionMaxInactivity:   time.Hour,
	}
}

// WithDefaults returns l with every unset limit replaced by its default
func (l Limits) WithDefaults() Limits {
	def := DefaultLimits()
	if l.ValueMaxSize <= 0 {
		l.ValueMaxSize = def.ValueMaxSize
	}
	if l.PrivateDBMaxNumEntries <= 0 {
		l.PrivateDBMaxNumEntries = def.PrivateDBMaxNumEntries
	}
	if l.PrivateDBMaxSize <= 0 {
		l.PrivateDBMaxSize = def.PrivateDBMaxSize
	}
	if l.SessionMaxInactivity <= 0 {
		l.SessionMaxInactivity = def.SessionMaxInactivity
	}
	return l
}

// AppInfo describes the running instance to clients
type AppInfo struct {
	DevMode                  bool  `json:"devMode"`
	HasAnyUsers              bool  `json:"hasAnyUsers"`
	SessionMaxInactivityTime int64 `json:"sessionMaxInactivityTime"`
	ValueMaxSize             int   `json:"valueMaxSize"`
	PrivateDBMaxNumEntries   int   `json:"privateDbMaxNumEntries"`
	PrivateDBMaxSize         int64 `json:"privateDbMaxSize"`
	DisablePublicEntries     bool  `json:"disablePublicEntries"`
}

// AppInfo returns the AppInfo for these Limits
func (l Limits) AppInfo(hasAnyUsers bool) AppInfo {
	return AppInfo{
		DevMode:                  l.DevMode,
		HasAnyUsers:              hasAnyUsers,
		SessionMaxInactivityTime: l.SessionMaxInactivity.Milliseconds(),
		ValueMaxSize:             l.ValueMaxSize,
		PrivateDBMaxNumEntries:   l.PrivateDBMaxNumEntries,
		PrivateDBMaxSize:         l.PrivateDBMaxSize,
		DisablePublicEntries:     l.DisablePublicEntries,
	}
}
