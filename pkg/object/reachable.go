package object

import (
	"fmt"
	"sort"
	"strings"
)

// ReachableSet returns all oids reachable from roots by following commit
// parents, commit trees and tree entries. Missing objects are skipped so a
// partially populated store can still be walked.
func (s *Store) ReachableSet(roots []Oid) (map[Oid]struct{}, error) {
	roots = uniqueOids(roots)
	out := make(map[Oid]struct{}, len(roots))

	stack := make([]Oid, 0, len(roots))
	stack = append(stack, roots...)
	for len(stack) > 0 {
		oid := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, ok := out[oid]; ok {
			continue
		}
		if !s.Has(oid) {
			continue
		}
		out[oid] = struct{}{}

		obj, err := s.Read(oid)
		if err != nil {
			return nil, fmt.Errorf("reachable set read %s: %w", oid, err)
		}
		refs, err := referencedOids(obj)
		if err != nil {
			return nil, fmt.Errorf("reachable set parse %s (%s): %w", oid, obj.Kind, err)
		}
		stack = append(stack, refs...)
	}
	return out, nil
}

// Missing returns the oids reachable from roots whose closure is not
// complete in the store: each returned oid is referenced but absent.
func (s *Store) Missing(roots []Oid) ([]Oid, error) {
	seen := make(map[Oid]struct{})
	var missing []Oid
	stack := uniqueOids(roots)
	for len(stack) > 0 {
		oid := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, ok := seen[oid]; ok {
			continue
		}
		seen[oid] = struct{}{}
		if !s.Has(oid) {
			missing = append(missing, oid)
			continue
		}
		obj, err := s.Read(oid)
		if err != nil {
			return nil, fmt.Errorf("missing objects read %s: %w", oid, err)
		}
		refs, err := referencedOids(obj)
		if err != nil {
			return nil, fmt.Errorf("missing objects parse %s: %w", oid, err)
		}
		stack = append(stack, refs...)
	}
	sort.Slice(missing, func(i, j int) bool { return missing[i] < missing[j] })
	return missing, nil
}

func referencedOids(obj *Object) ([]Oid, error) {
	switch obj.Kind {
	case KindBlob:
		return nil, nil
	case KindCommit:
		c, err := obj.Commit()
		if err != nil {
			return nil, err
		}
		refs := []Oid{c.Tree}
		if c.Parent != "" {
			refs = append(refs, c.Parent)
		}
		return refs, nil
	case KindTree:
		t, err := obj.Tree()
		if err != nil {
			return nil, err
		}
		refs := make([]Oid, 0, len(t.Entries))
		for _, e := range t.Entries {
			refs = append(refs, e.Oid)
		}
		return refs, nil
	default:
		return nil, fmt.Errorf("unsupported object kind %q", obj.Kind)
	}
}

func uniqueOids(in []Oid) []Oid {
	seen := make(map[Oid]struct{}, len(in))
	out := make([]Oid, 0, len(in))
	for _, oid := range in {
		oid = Oid(strings.TrimSpace(string(oid)))
		if oid == "" {
			continue
		}
		if _, ok := seen[oid]; ok {
			continue
		}
		seen[oid] = struct{}{}
		out = append(out, oid)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
