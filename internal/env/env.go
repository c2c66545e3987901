package env

import (
	"os"
	"sort"
	"strings"
	"sync"
)

// Env holds variables exported to every frpc process a supervisor launches.
// frpc can reference them from its config as {{ .Envs.NAME }}.
type Env struct {
	mu   sync.RWMutex
	vars map[string]string
}

func New(vars map[string]string) *Env {
	e := &Env{vars: make(map[string]string, len(vars))}
	for k, v := range vars {
		e.Set(k, v)
	}
	return e
}

// Set stores K=V; empty or malformed keys are ignored.
func (e *Env) Set(k, v string) {
	k = strings.TrimSpace(k)
	if k == "" || strings.ContainsAny(k, "=\x00") {
		return
	}
	e.mu.Lock()
	e.vars[k] = v
	e.mu.Unlock()
}

func (e *Env) Unset(k string) {
	e.mu.Lock()
	delete(e.vars, k)
	e.mu.Unlock()
}

// List returns the variables as sorted "K=V" pairs with ${VAR} references
// expanded against the other variables first and the OS environment second.
// Expansion is a single pass.
func (e *Env) List() []string {
	if e == nil {
		return nil
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	keys := make([]string, 0, len(e.vars))
	for k := range e.vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+e.expand(e.vars[k]))
	}
	return out
}

func (e *Env) expand(s string) string {
	return os.Expand(s, func(name string) string {
		if v, ok := e.vars[name]; ok {
			return v
		}
		return os.Getenv(name)
	})
}
