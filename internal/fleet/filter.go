package fleet

import "fmt"

// Filter is (type, value): type names an indexed predicate, value is one
// of string / bool / unsigned.
type Filter struct {
	Type  string
	Value interface{}
}

// Group is an ordered list of filters whose evaluated set is their
// intersection.
type Group []Filter

// Union is an ordered list of groups whose evaluated set is their union.
type Union []Group

// Predicate evaluates one filter type against the container's indices,
// returning the matching id set.
type Predicate func(c *Container, value interface{}) (map[uint64]bool, error)

// registerPredicates installs the rules the container recognizes at
// construction: at minimum is_running and name_starts, per spec.
func registerPredicates() map[string]Predicate {
	return map[string]Predicate{
		"is_running": func(c *Container, value interface{}) (map[uint64]bool, error) {
			b, ok := value.(bool)
			if !ok {
				return nil, fmt.Errorf("is_running filter requires a bool value")
			}
			out := make(map[uint64]bool)
			for id := range c.byRunning[b] {
				out[id] = true
			}
			return out, nil
		},
		"name_starts": func(c *Container, value interface{}) (map[uint64]bool, error) {
			prefix, ok := value.(string)
			if !ok {
				return nil, fmt.Errorf("name_starts filter requires a string value")
			}
			out := make(map[uint64]bool)
			for name, ids := range c.byName {
				if len(name) >= len(prefix) && name[:len(prefix)] == prefix {
					for id := range ids {
						out[id] = true
					}
				}
			}
			return out, nil
		},
	}
}

// evaluate computes ⋃_g ⋂_f f(g) over the union, under the caller's held
// index lock (idxMu). An unsupported filter type is an error the caller
// renders as 400.
func (c *Container) evaluate(u Union) (map[uint64]bool, error) {
	result := make(map[uint64]bool)
	for _, group := range u {
		groupSet, err := c.evaluateGroup(group)
		if err != nil {
			return nil, err
		}
		for id := range groupSet {
			result[id] = true
		}
	}
	return result, nil
}

func (c *Container) evaluateGroup(g Group) (map[uint64]bool, error) {
	if len(g) == 0 {
		return map[uint64]bool{}, nil
	}
	var intersection map[uint64]bool
	for _, f := range g {
		pred, ok := c.predicates[f.Type]
		if !ok {
			return nil, fmt.Errorf("Unsupported filter '%s'", f.Type)
		}
		set, err := pred(c, f.Value)
		if err != nil {
			return nil, err
		}
		if intersection == nil {
			intersection = set
			continue
		}
		for id := range intersection {
			if !set[id] {
				delete(intersection, id)
			}
		}
		if len(intersection) == 0 {
			return map[uint64]bool{}, nil
		}
	}
	return intersection, nil
}
