// Package merge joins tables on declared keys. Columns present on both sides
// are collapsed into a single column with the original name according to a
// per-column conflict policy; no suffixed copies are ever produced.
package merge

import (
	"fmt"

	"leadetl/internal/table"
)

// Kind selects the join type.
type Kind int

const (
	Left Kind = iota
	Right
	Inner
)

func (k Kind) String() string {
	switch k {
	case Left:
		return "left"
	case Right:
		return "right"
	case Inner:
		return "inner"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Policy resolves a non-key column present on both sides.
type Policy int

const (
	LeftWins Policy = iota
	RightWins
	CoalesceLeft  // left value unless empty
	CoalesceRight // right value unless empty
	Fail          // *ConflictError when both sides are non-empty and differ
)

// Keep controls right-side fan-out.
type Keep int

const (
	KeepAll   Keep = iota // every matching right row produces an output row
	KeepFirst             // first right row per key
	KeepLast              // last right row per key
)

// Spec declares one join.
type Spec struct {
	On          []string
	Kind        Kind
	Conflicts   map[string]Policy // per shared column; absent uses Default
	Default     Policy
	RightUnique Keep
}

// ConflictError is returned under the Fail policy.
type ConflictError struct {
	Column      string
	Key         string
	Left, Right string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("merge: conflicting values for %q at key %q: %q vs %q", e.Column, e.Key, e.Left, e.Right)
}

// Join joins left and right per spec. Empty key values never match. Key
// columns appear once. The output carries the left columns followed by the
// right-only columns, and is named after left.
func Join(left, right *table.Table, spec Spec) (*table.Table, error) {
	if len(spec.On) == 0 {
		return nil, fmt.Errorf("merge: %s join of %s and %s: no key columns", spec.Kind, left.Name, right.Name)
	}
	lk, err := left.Indexes(spec.On...)
	if err != nil {
		return nil, err
	}
	rk, err := right.Indexes(spec.On...)
	if err != nil {
		return nil, err
	}

	isKey := make(map[string]bool, len(spec.On))
	for _, c := range spec.On {
		isKey[c] = true
	}

	// Output layout.
	cols := append([]string(nil), left.Columns...)
	type shared struct {
		out, r int
		pol    Policy
	}
	var both []shared
	var rightOnly []int // right column positions appended after left columns
	for ri, c := range right.Columns {
		if isKey[c] {
			continue
		}
		if li, ok := left.Index(c); ok {
			pol, ok := spec.Conflicts[c]
			if !ok {
				pol = spec.Default
			}
			both = append(both, shared{out: li, r: ri, pol: pol})
			continue
		}
		rightOnly = append(rightOnly, ri)
		cols = append(cols, c)
	}
	rkOut := make([]int, len(spec.On)) // key positions in the output row
	for i, c := range spec.On {
		rkOut[i], _ = left.Index(c)
	}

	rightRows := uniqueRight(right, rk, spec.RightUnique)
	byKey := make(map[string][]int, len(rightRows))
	for _, i := range rightRows {
		k, ok := key(right.Rows[i].V, rk)
		if !ok {
			continue
		}
		byKey[k] = append(byKey[k], i)
	}

	out := table.New(left.Name, cols...)
	emit := func(l, r *table.Row, k string) error {
		v := make([]string, len(cols))
		if l != nil {
			copy(v, l.V)
		}
		if r != nil {
			if l == nil {
				for i, ri := range rk {
					v[rkOut[i]] = r.V[ri]
				}
			}
			for i, ri := range rightOnly {
				v[len(left.Columns)+i] = r.V[ri]
			}
			for _, s := range both {
				lv := ""
				if l != nil {
					lv = l.V[s.out]
				}
				rv := r.V[s.r]
				res, ok := resolve(s.pol, lv, rv, l == nil)
				if !ok {
					return &ConflictError{Column: cols[s.out], Key: k, Left: lv, Right: rv}
				}
				v[s.out] = res
			}
		}
		line := 0
		if l != nil {
			line = l.Line
		} else if r != nil {
			line = r.Line
		}
		out.Rows = append(out.Rows, table.Row{V: v, Line: line})
		return nil
	}

	switch spec.Kind {
	case Left, Inner:
		for li := range left.Rows {
			l := &left.Rows[li]
			k, ok := key(l.V, lk)
			var matches []int
			if ok {
				matches = byKey[k]
			}
			if len(matches) == 0 {
				if spec.Kind == Left {
					if err := emit(l, nil, k); err != nil {
						return nil, err
					}
				}
				continue
			}
			for _, ri := range matches {
				if err := emit(l, &right.Rows[ri], k); err != nil {
					return nil, err
				}
			}
		}
	case Right:
		leftByKey := make(map[string][]int, len(left.Rows))
		for li, r := range left.Rows {
			if k, ok := key(r.V, lk); ok {
				leftByKey[k] = append(leftByKey[k], li)
			}
		}
		for _, ri := range rightRows {
			r := &right.Rows[ri]
			k, ok := key(r.V, rk)
			var matches []int
			if ok {
				matches = leftByKey[k]
			}
			if len(matches) == 0 {
				if err := emit(nil, r, k); err != nil {
					return nil, err
				}
				continue
			}
			for _, li := range matches {
				if err := emit(&left.Rows[li], r, k); err != nil {
					return nil, err
				}
			}
		}
	default:
		return nil, fmt.Errorf("merge: unknown join kind %s", spec.Kind)
	}
	return out, nil
}

// resolve applies pol. Rows without a left match always take the right value.
// ok is false only for a Fail conflict.
func resolve(pol Policy, l, r string, rightOnly bool) (v string, ok bool) {
	if rightOnly {
		return r, true
	}
	switch pol {
	case RightWins:
		return r, true
	case CoalesceLeft:
		if l != "" {
			return l, true
		}
		return r, true
	case CoalesceRight:
		if r != "" {
			return r, true
		}
		return l, true
	case Fail:
		if l != "" && r != "" && l != r {
			return "", false
		}
		if l != "" {
			return l, true
		}
		return r, true
	default:
		return l, true
	}
}

// uniqueRight returns the right row positions to join, in right order.
func uniqueRight(t *table.Table, ix []int, keep Keep) []int {
	out := make([]int, 0, len(t.Rows))
	if keep == KeepAll {
		for i := range t.Rows {
			out = append(out, i)
		}
		return out
	}
	chosen := make(map[string]int, len(t.Rows))
	for i, r := range t.Rows {
		k, ok := key(r.V, ix)
		if !ok {
			continue
		}
		if _, seen := chosen[k]; !seen || keep == KeepLast {
			chosen[k] = i
		}
	}
	for i, r := range t.Rows {
		k, ok := key(r.V, ix)
		if !ok || chosen[k] == i {
			out = append(out, i)
		}
	}
	return out
}

// key builds the join key. ok is false when any key cell is empty.
func key(v []string, ix []int) (string, bool) {
	parts := make([]string, len(ix))
	for i, p := range ix {
		if v[p] == "" {
			return "", false
		}
		parts[i] = v[p]
	}
	return table.JoinKey(parts), true
}
