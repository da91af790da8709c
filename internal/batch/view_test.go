package batch

import "testing"

func projectionFixture() []*Item {
	return []*Item{
		{
			ID:               "1",
			OriginalFilename: "margaux.jpg",
			Status:           StatusFormatted,
			Result:           &Result{OcrText: "Chateau Margaux 2015", FinalOutput: "Chateau Margaux 2015"},
		},
		{
			ID:               "2",
			OriginalFilename: "latour.jpg",
			Status:           StatusFormatted,
			Result:           &Result{OcrText: "Chateau Latour", NeedsReview: true, CorrectionStatus: CorrectionSearchFailed},
		},
		{
			ID:               "3",
			OriginalFilename: "blurry.jpg",
			Status:           StatusFailed,
			ErrorMessage:     "unreadable image",
		},
		{
			ID:               "4",
			OriginalFilename: "petrus.jpg",
			Status:           StatusPublished,
			Result:           &Result{OcrText: "Petrus Pomerol", FinalOutput: "Petrus Pomerol 2010"},
		},
	}
}

func ids(items []*Item) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, item.ID)
	}
	return out
}

func TestProjectNoCriteriaPreservesOrder(t *testing.T) {
	items := projectionFixture()
	got := Project(items, FilterCriteria{})
	if len(got) != len(items) {
		t.Fatalf("expected all %d items, got %d", len(items), len(got))
	}
	for i, item := range got {
		if item.ID != items[i].ID {
			t.Fatalf("order not preserved at %d: got %s want %s", i, item.ID, items[i].ID)
		}
	}
}

func TestProjectByStatus(t *testing.T) {
	got := Project(projectionFixture(), FilterCriteria{Status: StatusFormatted})
	want := []string{"1", "2"}
	if gotIDs := ids(got); len(gotIDs) != len(want) || gotIDs[0] != want[0] || gotIDs[1] != want[1] {
		t.Fatalf("expected %v, got %v", want, gotIDs)
	}
}

func TestProjectByNeedsReview(t *testing.T) {
	review := true
	got := Project(projectionFixture(), FilterCriteria{NeedsReview: &review})
	if len(got) != 1 || got[0].ID != "2" {
		t.Fatalf("expected only item 2, got %v", ids(got))
	}

	noReview := false
	got = Project(projectionFixture(), FilterCriteria{NeedsReview: &noReview})
	if len(got) != 3 {
		t.Fatalf("expected three items without review flag, got %v", ids(got))
	}
}

func TestProjectBySearch(t *testing.T) {
	cases := []struct {
		name   string
		search string
		want   []string
	}{
		{name: "filename", search: "BLURRY", want: []string{"3"}},
		{name: "ocr text", search: "pomerol", want: []string{"4"}},
		{name: "final output", search: "2015", want: []string{"1"}},
		{name: "no hit", search: "riesling", want: nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ids(Project(projectionFixture(), FilterCriteria{Search: tc.search}))
			if len(got) != len(tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Fatalf("expected %v, got %v", tc.want, got)
				}
			}
		})
	}
}

func TestProjectCombinesCriteria(t *testing.T) {
	review := false
	got := Project(projectionFixture(), FilterCriteria{Status: StatusFormatted, NeedsReview: &review, Search: "margaux"})
	if len(got) != 1 || got[0].ID != "1" {
		t.Fatalf("expected only item 1, got %v", ids(got))
	}
}

func TestParseStatus(t *testing.T) {
	if status, ok := ParseStatus("  Formatted "); !ok || status != StatusFormatted {
		t.Fatalf("expected formatted status, got %q ok=%v", status, ok)
	}
	if _, ok := ParseStatus("shipped"); ok {
		t.Fatal("expected unknown status to fail parsing")
	}
	if _, ok := ParseStatus(""); ok {
		t.Fatal("expected empty status to fail parsing")
	}
}
