package statement

import "github.com/shopspring/decimal"

// GeneratedStatement describes one statement file written during a render pass.
type GeneratedStatement struct {
	Branch        int
	Administrator string
	AccountID     string
	HolderName    string
	Opening       decimal.Decimal
	Closing       decimal.Decimal
	Movements     int
	Path          string
}

// AdministratorCount is the number of statements generated for one administrator.
type AdministratorCount struct {
	Administrator string
	Count         int
}

// BranchCount groups per-administrator counts under one branch.
type BranchCount struct {
	Branch         int
	Count          int
	Administrators []AdministratorCount
}

// RenderSummary is the result of a single render pass. Branches and administrators keep
// first-seen order.
type RenderSummary struct {
	Statements []GeneratedStatement
	Branches   []BranchCount
}

// Add records a generated statement and bumps its branch and administrator counters.
func (s *RenderSummary) Add(g GeneratedStatement) {
	s.Statements = append(s.Statements, g)
	bi := -1
	for i := range s.Branches {
		if s.Branches[i].Branch == g.Branch {
			bi = i
			break
		}
	}
	if bi < 0 {
		s.Branches = append(s.Branches, BranchCount{Branch: g.Branch})
		bi = len(s.Branches) - 1
	}
	branch := &s.Branches[bi]
	branch.Count++
	for i := range branch.Administrators {
		if branch.Administrators[i].Administrator == g.Administrator {
			branch.Administrators[i].Count++
			return
		}
	}
	branch.Administrators = append(branch.Administrators, AdministratorCount{Administrator: g.Administrator, Count: 1})
}

// Total returns the number of generated statements.
func (s RenderSummary) Total() int {
	return len(s.Statements)
}
