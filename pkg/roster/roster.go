// Package roster defines the agent personas that make up a
// development crew: who they are, what they deliver, and how they are
// expected to coordinate through the ledger.
package roster

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Persona describes one crew member. Name is the short identifier
// used as the ledger agent ID; Role is the human-readable title fed to
// the model.
type Persona struct {
	Name           string   `yaml:"name"`
	Role           string   `yaml:"role"`
	Goal           string   `yaml:"goal"`
	Backstory      string   `yaml:"backstory"`
	Task           string   `yaml:"task"`
	Deliverables   []string `yaml:"deliverables"`
	Protocol       string   `yaml:"protocol"`
	ExpectedOutput string   `yaml:"expected_output"`
	MaxIterations  int      `yaml:"max_iterations"`
	// LockManager marks the persona that decides lock requests rather
	// than producing deliverables.
	LockManager bool `yaml:"lock_manager"`
}

// Validate checks the fields every persona must carry.
func (p Persona) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("persona has no name")
	}
	if p.Role == "" {
		return fmt.Errorf("persona %s has no role", p.Name)
	}
	if p.Goal == "" {
		return fmt.Errorf("persona %s has no goal", p.Name)
	}
	if p.MaxIterations < 0 {
		return fmt.Errorf("persona %s has negative max_iterations", p.Name)
	}
	return nil
}

// Roster is a named set of personas.
type Roster struct {
	personas map[string]Persona
}

// New builds a roster from personas, rejecting duplicates and invalid
// entries.
func New(personas ...Persona) (*Roster, error) {
	r := &Roster{personas: make(map[string]Persona, len(personas))}
	for _, p := range personas {
		if err := r.add(p); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Roster) add(p Persona) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if _, dup := r.personas[p.Name]; dup {
		return fmt.Errorf("duplicate persona %s", p.Name)
	}
	if p.MaxIterations == 0 {
		p.MaxIterations = 10
	}
	r.personas[p.Name] = p
	return nil
}

// Get returns the persona by name.
func (r *Roster) Get(name string) (Persona, bool) {
	p, ok := r.personas[name]
	return p, ok
}

// Names returns all persona names in stable order.
func (r *Roster) Names() []string {
	names := make([]string, 0, len(r.personas))
	for name := range r.personas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Workers returns every persona except lock managers, in stable order.
func (r *Roster) Workers() []Persona {
	var out []Persona
	for _, name := range r.Names() {
		if p := r.personas[name]; !p.LockManager {
			out = append(out, p)
		}
	}
	return out
}

// LockManagers returns the lock-manager personas, in stable order.
func (r *Roster) LockManagers() []Persona {
	var out []Persona
	for _, name := range r.Names() {
		if p := r.personas[name]; p.LockManager {
			out = append(out, p)
		}
	}
	return out
}

// Len returns the roster size.
func (r *Roster) Len() int {
	return len(r.personas)
}

// MergeFile loads extra personas from a YAML file and adds them to
// the roster. Entries with names already present override the
// built-in persona.
func (r *Roster) MergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read roster file: %w", err)
	}
	var extras struct {
		Personas []Persona `yaml:"personas"`
	}
	if err := yaml.Unmarshal(data, &extras); err != nil {
		return fmt.Errorf("parse roster file %s: %w", path, err)
	}
	for _, p := range extras.Personas {
		if err := p.Validate(); err != nil {
			return err
		}
		if p.MaxIterations == 0 {
			p.MaxIterations = 10
		}
		r.personas[p.Name] = p
	}
	return nil
}
