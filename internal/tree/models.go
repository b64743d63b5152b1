// Package tree materializes a chart's graph into the flattened
// nodes-and-links shape graph visualization clients consume.
package tree

// Node is the display projection of one person. Dates are rendered as
// YYYY-MM-DD text or null.
type Node struct {
	PersonID    int64   `json:"personId"`
	Name        string  `json:"name"`
	Gender      string  `json:"gender"`
	Level       int     `json:"level"`
	Description *string `json:"description"`
	PhotoURL    *string `json:"photoUrl"`
	DOB         *string `json:"dob"`
	DOD         *string `json:"dod"`
}

// Link is one PARENT_OF edge, source pointing at the parent.
type Link struct {
	Source int64 `json:"source"`
	Target int64 `json:"target"`
}

// Tree is a full chart snapshot. Nodes are ordered by person id so
// repeated assemblies of unchanged data are byte-identical; links carry
// no ordering guarantee. Isolated persons appear with no links.
type Tree struct {
	Nodes []Node `json:"nodes"`
	Links []Link `json:"links"`
}
