package entity

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"
)

// HybridDetector runs a regex and an NER detector concurrently and merges
// their matches: every regex match is kept, and an NER match is kept only
// when it overlaps no regex match. Confidence and regex validation are not
// compared when resolving an overlap.
type HybridDetector struct {
	regex Detector
	ner   Detector
}

// NewHybridDetector combines regex and ner.
func NewHybridDetector(regex, ner Detector) *HybridDetector {
	return &HybridDetector{regex: regex, ner: ner}
}

func (d *HybridDetector) Detect(ctx context.Context, text string) ([]Match, error) {
	var regexMatches, nerMatches []Match

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		m, err := d.regex.Detect(gctx, text)
		regexMatches = m
		return err
	})
	g.Go(func() error {
		m, err := d.ner.Detect(gctx, text)
		nerMatches = m
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return mergeByPrecedence(regexMatches, nerMatches), nil
}

// mergeByPrecedence combines regex and NER matches, dropping any NER match
// that overlaps any regex match whatever either side's confidence (regex
// matches that overlap each other are all kept), then sorts the result by
// start offset ascending, ties by end offset (the "source order" required
// for deterministic placeholder numbering, spec.md §4.9).
func mergeByPrecedence(regexMatches, nerMatches []Match) []Match {
	all := append([]Match{}, regexMatches...)
	for _, n := range nerMatches {
		overlaps := false
		for _, r := range regexMatches {
			if spansOverlap(n.Start, n.End, r.Start, r.End) {
				overlaps = true
				break
			}
		}
		if !overlaps {
			all = append(all, n)
		}
	}

	sort.Slice(all, func(i, j int) bool {
		if all[i].Start != all[j].Start {
			return all[i].Start < all[j].Start
		}
		return all[i].End < all[j].End
	})
	return all
}

func spansOverlap(aStart, aEnd, bStart, bEnd int) bool {
	return aStart < bEnd && bStart < aEnd
}
