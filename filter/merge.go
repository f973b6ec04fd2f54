package filter

// Merge conjoins newWhere with baseWhere and folds newJoins into baseJoins.
//
// The result is a flat AND whose OR operands are parenthesised. A new join
// sharing an alias with a base join is not appended; the base join is
// promoted to INNER when the new one is INNER. Inputs are not modified.
func Merge(baseWhere Predicate, baseJoins []Join, newWhere Predicate, newJoins []Join) (Predicate, []Join) {
	return mergeWhere(baseWhere, newWhere), mergeJoins(baseJoins, newJoins)
}

func mergeWhere(base, next Predicate) Predicate {
	switch {
	case base == nil:
		return next
	case next == nil:
		return base
	}
	terms := make([]Predicate, 0, 4)
	terms = appendConjuncts(terms, base)
	terms = appendConjuncts(terms, next)
	return &And{Terms: terms}
}

// appendConjuncts flattens nested ANDs and protects lower-precedence terms.
func appendConjuncts(terms []Predicate, p Predicate) []Predicate {
	switch v := p.(type) {
	case *And:
		for _, t := range v.Terms {
			terms = appendConjuncts(terms, t)
		}
		return terms
	case *Or:
		return append(terms, &Paren{Term: v})
	default:
		return append(terms, p)
	}
}

func mergeJoins(base, next []Join) []Join {
	if len(next) == 0 {
		return base
	}
	out := make([]Join, len(base), len(base)+len(next))
	copy(out, base)

	byAlias := make(map[string]int, len(out))
	for i, j := range out {
		byAlias[j.Alias] = i
	}
	for _, j := range next {
		if i, ok := byAlias[j.Alias]; ok {
			out[i].Kind = out[i].Kind.stronger(j.Kind)
			if out[i].With == nil && j.With != nil {
				out[i].With = j.With
			}
			continue
		}
		byAlias[j.Alias] = len(out)
		out = append(out, j)
	}
	return out
}
