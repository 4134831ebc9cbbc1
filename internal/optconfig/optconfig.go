// Package optconfig provides a small option-bag config type adapted
// from perkeep.org's pkg/jsonconfig.Obj (see DESIGN.md), trimmed
// of the recursive file-include/expression-evaluation machinery that
// package also has — this system's option bags are never nested
// config files; the one user is the IMPORT FROM CSV ... WITH (...)
// clause (engine.Open takes its directory as a plain string).
package optconfig

import "fmt"

// Obj is a parsed option bag: keys map to string, bool, or int values.
type Obj struct {
	m        map[string]interface{}
	known    map[string]bool
	errs     []error
}

// New wraps m as an Obj.
func New(m map[string]interface{}) *Obj {
	return &Obj{m: m, known: map[string]bool{}}
}

func (o *Obj) noteKnownKey(k string) { o.known[k] = true }

func (o *Obj) appendError(err error) { o.errs = append(o.errs, err) }

// RequiredString returns the string value of key, recording an error
// if it is absent or not a string.
func (o *Obj) RequiredString(key string) string {
	o.noteKnownKey(key)
	v, ok := o.m[key]
	if !ok {
		o.appendError(fmt.Errorf("optconfig: missing required key %q", key))
		return ""
	}
	s, ok := v.(string)
	if !ok {
		o.appendError(fmt.Errorf("optconfig: key %q is not a string", key))
		return ""
	}
	return s
}

// OptionalString returns the string value of key, or def if absent.
func (o *Obj) OptionalString(key, def string) string {
	o.noteKnownKey(key)
	v, ok := o.m[key]
	if !ok {
		return def
	}
	s, ok := v.(string)
	if !ok {
		o.appendError(fmt.Errorf("optconfig: key %q is not a string", key))
		return def
	}
	return s
}

// OptionalBool returns the bool value of key, or def if absent.
func (o *Obj) OptionalBool(key string, def bool) bool {
	o.noteKnownKey(key)
	v, ok := o.m[key]
	if !ok {
		return def
	}
	b, ok := v.(bool)
	if !ok {
		o.appendError(fmt.Errorf("optconfig: key %q is not a bool", key))
		return def
	}
	return b
}

// Validate returns an error describing every unknown key and every
// accessor-reported type error encountered so far.
func (o *Obj) Validate() error {
	for k := range o.m {
		if !o.known[k] {
			o.appendError(fmt.Errorf("optconfig: unknown key %q", k))
		}
	}
	if len(o.errs) == 0 {
		return nil
	}
	return fmt.Errorf("optconfig: %d error(s), first: %w", len(o.errs), o.errs[0])
}
