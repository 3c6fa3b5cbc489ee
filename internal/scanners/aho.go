package scanners

// ahoNode and ahoAutomaton implement Aho-Corasick multi-pattern matching,
// generalized from other_examples' signature-engine scanner-aho.go: the
// same fail-link-BFS construction and output-set propagation, simplified
// to a single banned-substring rule set (no per-rule sampling or
// versioning — this scanner only needs "does any banned phrase occur",
// spec.md §8 scenario 1).
type ahoNode struct {
	next map[byte]*ahoNode
	fail *ahoNode
	out  []string // patterns ending at this node (includes propagated suffix matches)
}

type ahoAutomaton struct {
	root *ahoNode
}

// buildAho compiles patterns into an automaton. Empty patterns are skipped.
func buildAho(patterns []string) *ahoAutomaton {
	root := &ahoNode{next: make(map[byte]*ahoNode)}
	for _, p := range patterns {
		if p == "" {
			continue
		}
		cur := root
		for i := 0; i < len(p); i++ {
			b := p[i]
			nxt, ok := cur.next[b]
			if !ok {
				nxt = &ahoNode{next: make(map[byte]*ahoNode)}
				cur.next[b] = nxt
			}
			cur = nxt
		}
		cur.out = append(cur.out, p)
	}

	queue := make([]*ahoNode, 0, len(root.next))
	for _, n := range root.next {
		n.fail = root
		queue = append(queue, n)
	}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		for b, nxt := range n.next {
			f := n.fail
			for f != nil && f.next[b] == nil {
				f = f.fail
			}
			if f == nil {
				nxt.fail = root
			} else {
				nxt.fail = f.next[b]
			}
			if nxt.fail != nil && len(nxt.fail.out) > 0 {
				nxt.out = append(nxt.out, nxt.fail.out...)
			}
			queue = append(queue, nxt)
		}
	}
	return &ahoAutomaton{root: root}
}

// ahoMatch is one occurrence of a banned pattern.
type ahoMatch struct {
	Pattern    string
	Start, End int
}

// scan finds every occurrence of every compiled pattern in data.
func (a *ahoAutomaton) scan(data []byte) []ahoMatch {
	if a == nil || a.root == nil {
		return nil
	}
	var matches []ahoMatch
	n := a.root
	for i, b := range data {
		for n != nil && n.next[b] == nil {
			n = n.fail
		}
		if n == nil {
			n = a.root
			continue
		}
		n = n.next[b]
		for _, pat := range n.out {
			start := i - len(pat) + 1
			if start < 0 {
				continue
			}
			matches = append(matches, ahoMatch{Pattern: pat, Start: start, End: i + 1})
		}
	}
	return matches
}
