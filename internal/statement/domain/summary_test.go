package statement

import "testing"

func TestRenderSummaryKeepsFirstSeenOrder(t *testing.T) {
	var s RenderSummary
	s.Add(GeneratedStatement{Branch: 3, Administrator: "B"})
	s.Add(GeneratedStatement{Branch: 1, Administrator: "A"})
	s.Add(GeneratedStatement{Branch: 3, Administrator: "A"})
	s.Add(GeneratedStatement{Branch: 3, Administrator: "B"})

	if s.Total() != 4 {
		t.Fatalf("expected 4 statements, got %d", s.Total())
	}
	if len(s.Branches) != 2 || s.Branches[0].Branch != 3 || s.Branches[1].Branch != 1 {
		t.Fatalf("unexpected branch order %+v", s.Branches)
	}
	ua3 := s.Branches[0]
	if ua3.Count != 3 || len(ua3.Administrators) != 2 {
		t.Fatalf("unexpected branch 3 counts %+v", ua3)
	}
	if ua3.Administrators[0].Administrator != "B" || ua3.Administrators[0].Count != 2 {
		t.Fatalf("unexpected administrator counts %+v", ua3.Administrators)
	}
}
