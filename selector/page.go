// Package selector picks working CSS selectors for job-list pages at
// runtime. Markup on the target site changes between deploys and A/B
// buckets, so selectors are probed in tiers, scored against validation
// rules, and ranked by historical success.
package selector

// Element is a single DOM node, live or parsed from a snapshot.
type Element interface {
	// Text returns the node's visible text, innerText-style: block
	// boundaries become newlines.
	Text() (string, error)

	// Attr returns the value of an attribute, or "" when absent.
	Attr(name string) (string, error)

	// Visible reports whether the node is rendered.
	Visible() (bool, error)

	// Box returns the node's layout position. ok is false when the
	// backend has no layout (static snapshots).
	Box() (x, y float64, ok bool)

	// QueryAll runs a CSS selector scoped to this node.
	QueryAll(sel string) ([]Element, error)
}

// Page is the minimal document surface the engine queries against.
type Page interface {
	QueryAll(sel string) ([]Element, error)
}
