package domain

import "testing"

func TestNormalizeHostStatus(t *testing.T) {
	t.Parallel()

	cases := []struct {
		levels []StatusLevel
		want   StatusLevel
		label  string
	}{
		{nil, StatusOK, "Ready"},
		{[]StatusLevel{StatusOK, StatusWarn}, StatusWarn, "Warnings"},
		{[]StatusLevel{StatusWarn, StatusError, StatusOK}, StatusError, "Blocked"},
	}
	for _, tc := range cases {
		var s HostStatus
		for _, l := range tc.levels {
			s.Items = append(s.Items, StatusItem{Level: l})
		}
		got := NormalizeHostStatus(s)
		if got.Overall != tc.want || got.OverallLabel != tc.label || got.UpdatedAt.IsZero() {
			t.Fatalf("NormalizeHostStatus(%v)=(%s,%q); want (%s,%q)", tc.levels, got.Overall, got.OverallLabel, tc.want, tc.label)
		}
	}
}

func TestPreChecksSatisfied(t *testing.T) {
	t.Parallel()

	if !PreChecksSatisfied(nil) {
		t.Fatalf("PreChecksSatisfied(nil)=false; want true")
	}
	items := []PreCheckItem{{ID: "a", Checked: true}, {ID: "b"}}
	if PreChecksSatisfied(items) {
		t.Fatalf("PreChecksSatisfied with unchecked item=true; want false")
	}
	items[1].Checked = true
	if !PreChecksSatisfied(items) {
		t.Fatalf("PreChecksSatisfied all checked=false; want true")
	}
}

func TestStepStatusTerminal(t *testing.T) {
	t.Parallel()

	for s, want := range map[StepStatus]bool{
		StepPending:   false,
		StepRunning:   false,
		StepCompleted: true,
		StepError:     true,
	} {
		if got := s.Terminal(); got != want {
			t.Fatalf("%s.Terminal()=%v; want %v", s, got, want)
		}
	}
}
