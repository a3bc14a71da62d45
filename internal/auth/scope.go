package auth

import (
	"fmt"
	"strings"
)

// Scope is a named capability requested during authorization.
type Scope string

// Scopes understood by the Netatmo authorization server.
const (
	ReadStation       Scope = "read_station"       // weather station data
	ReadThermostat    Scope = "read_thermostat"    // thermostat data (homestatus, getroommeasure)
	WriteThermostat   Scope = "write_thermostat"   // thermostat control (synchomeschedule, setroomthermpoint)
	ReadCamera        Scope = "read_camera"        // indoor camera data
	WriteCamera       Scope = "write_camera"       // setpersonsaway / setpersonshome
	AccessCamera      Scope = "access_camera"      // camera video and live stream
	ReadPresence      Scope = "read_presence"      // outdoor camera data
	AccessPresence    Scope = "access_presence"    // outdoor camera video and live stream
	ReadSmokeDetector Scope = "read_smokedetector" // smoke alarm data and events
	ReadHomeCoach     Scope = "read_homecoach"     // indoor air quality monitor
)

// DefaultScope is what the provider grants when no scope is requested.
const DefaultScope = ReadStation

var knownScopes = map[Scope]bool{
	ReadStation:       true,
	ReadThermostat:    true,
	WriteThermostat:   true,
	ReadCamera:        true,
	WriteCamera:       true,
	AccessCamera:      true,
	ReadPresence:      true,
	AccessPresence:    true,
	ReadSmokeDetector: true,
	ReadHomeCoach:     true,
}

// ParseScope validates a scope name.
func ParseScope(s string) (Scope, error) {
	sc := Scope(strings.TrimSpace(s))
	if !knownScopes[sc] {
		return "", fmt.Errorf("auth: unknown scope %q", s)
	}

	return sc, nil
}

// ScopeSet is an ordered set of scopes. Iteration order is insertion order,
// which keeps the rendered scope string deterministic.
type ScopeSet struct {
	scopes []Scope
}

// NewScopeSet builds a set from scopes, dropping duplicates.
func NewScopeSet(scopes ...Scope) ScopeSet {
	var s ScopeSet
	for _, sc := range scopes {
		s = s.With(sc)
	}

	return s
}

// ParseScopeSet parses scope names. An empty input yields a set holding
// DefaultScope.
func ParseScopeSet(names []string) (ScopeSet, error) {
	if len(names) == 0 {
		return NewScopeSet(DefaultScope), nil
	}

	var s ScopeSet

	for _, name := range names {
		sc, err := ParseScope(name)
		if err != nil {
			return ScopeSet{}, err
		}

		s = s.With(sc)
	}

	return s, nil
}

// With returns a copy of s with sc appended, unless it is already present.
func (s ScopeSet) With(sc Scope) ScopeSet {
	if s.Contains(sc) {
		return s
	}

	out := make([]Scope, len(s.scopes), len(s.scopes)+1)
	copy(out, s.scopes)

	return ScopeSet{scopes: append(out, sc)}
}

// Contains reports whether sc is in the set.
func (s ScopeSet) Contains(sc Scope) bool {
	for _, have := range s.scopes {
		if have == sc {
			return true
		}
	}

	return false
}

// Len returns the number of scopes.
func (s ScopeSet) Len() int {
	return len(s.scopes)
}

// Scopes returns the scopes in insertion order.
func (s ScopeSet) Scopes() []Scope {
	out := make([]Scope, len(s.scopes))
	copy(out, s.scopes)

	return out
}

// String renders the set as the space-separated form used on the wire.
func (s ScopeSet) String() string {
	names := make([]string, len(s.scopes))
	for i, sc := range s.scopes {
		names[i] = string(sc)
	}

	return strings.Join(names, " ")
}
