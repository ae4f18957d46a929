package frontier

import "regexp"

/*
Priority strategies

A Strategy decides which pending entry pops next. Score-based strategies
order by descending score with insertion order as the stable tie-breaker;
breadth-first and depth-first are expressed through the same mechanism so
the composite strategy can blend any of them.
*/

// Scorer produces a priority score for an entry; higher pops first.
type Scorer interface {
	Score(e *Entry) float64
}

// Strategy is a Scorer with a registered name for config selection.
type Strategy interface {
	Scorer
	Name() string
}

const (
	StrategyBFS       = "bfs"
	StrategyDFS       = "dfs"
	StrategySitemap   = "sitemap"
	StrategyPattern   = "pattern"
	StrategyComposite = "composite"
)

// BreadthFirst pops shallow entries first; within one depth, insertion
// order.
type BreadthFirst struct{}

func NewBreadthFirst() BreadthFirst { return BreadthFirst{} }

func (BreadthFirst) Name() string { return StrategyBFS }

func (BreadthFirst) Score(e *Entry) float64 {
	return -float64(e.depth)
}

// DepthFirst pops the newest entry first (LIFO), which walks each branch to
// its end before backtracking.
type DepthFirst struct{}

func NewDepthFirst() DepthFirst { return DepthFirst{} }

func (DepthFirst) Name() string { return StrategyDFS }

func (DepthFirst) Score(e *Entry) float64 {
	return float64(e.seq)
}

// SitemapPriority orders by the sitemap-declared priority, descending, then
// shallower depth.
type SitemapPriority struct{}

func NewSitemapPriority() SitemapPriority { return SitemapPriority{} }

func (SitemapPriority) Name() string { return StrategySitemap }

func (SitemapPriority) Score(e *Entry) float64 {
	// Depth only splits equal priorities; sitemap priorities live in
	// [0.0, 1.0] so a small depth penalty cannot cross priority bands.
	return e.priorityScore - float64(e.depth)*1e-6
}

// PatternRule adds weight to entries whose URL matches the expression.
type PatternRule struct {
	Expr   *regexp.Regexp
	Weight float64
}

// URLPattern scores entries by the sum of matching rule weights.
type URLPattern struct {
	rules []PatternRule
}

func NewURLPattern(rules []PatternRule) URLPattern {
	return URLPattern{rules: rules}
}

func (URLPattern) Name() string { return StrategyPattern }

func (p URLPattern) Score(e *Entry) float64 {
	target := e.url.String()
	score := 0.0
	for _, rule := range p.rules {
		if rule.Expr.MatchString(target) {
			score += rule.Weight
		}
	}
	return score
}

// Weighted pairs a sub-strategy with its weight in a composite.
type Weighted struct {
	Scorer Scorer
	Weight float64
}

// Composite scores entries by the weighted sum of sub-strategy scores.
// The stable tie-breaker is insertion order, as for every strategy.
type Composite struct {
	children []Weighted
}

func NewComposite(children []Weighted) Composite {
	return Composite{children: children}
}

func (Composite) Name() string { return StrategyComposite }

func (c Composite) Score(e *Entry) float64 {
	total := 0.0
	for _, child := range c.children {
		total += child.Weight * child.Scorer.Score(e)
	}
	return total
}
