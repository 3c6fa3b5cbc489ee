package anonymizer

import (
	"sort"

	"github.com/llmshield/gateway/internal/entity"
	"github.com/llmshield/gateway/internal/gwerrors"
)

// Replace substitutes each matches[i] span in text with placeholders[i].
// matches and placeholders must be the same length and matches' spans must
// lie within text and not overlap.
//
// Replacement proceeds in strictly decreasing Start order so that splicing
// one span never shifts the byte offsets of a span not yet processed — the
// spec calls this out explicitly as the one place where order is not
// optional. Replace sorts its own working copy rather than trusting caller
// order. Walking in that order, a span whose End runs past the Start of the
// span spliced before it overlaps that span and is rejected as InvalidInput.
func Replace(text string, matches []entity.Match, placeholders []string) (string, error) {
	const op = "anonymizer.Replace"
	if len(matches) != len(placeholders) {
		return "", gwerrors.Invalid(op, "matches and placeholders must be the same length")
	}

	order := make([]int, len(matches))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		return matches[order[a]].Start > matches[order[b]].Start
	})

	out := []byte(text)
	boundary := len(text)
	for _, i := range order {
		m := matches[i]
		if m.Start < 0 || m.End > len(text) || m.Start > m.End {
			return "", gwerrors.Invalid(op, "match span out of range")
		}
		if m.End > boundary {
			return "", gwerrors.Invalid(op, "match spans overlap")
		}
		boundary = m.Start

		spliced := make([]byte, 0, len(out)-(m.End-m.Start)+len(placeholders[i]))
		spliced = append(spliced, out[:m.Start]...)
		spliced = append(spliced, placeholders[i]...)
		spliced = append(spliced, out[m.End:]...)
		out = spliced
	}
	return string(out), nil
}
