package study

import (
	"reflect"
	"testing"
)

func twoSetManifest() map[string]map[string][]string {
	return map[string]map[string][]string{
		"A": {"m1": {"v1"}, "m2": {"v2"}},
		"B": {"m1": {"v3"}, "m2": {"v4"}},
	}
}

func TestPlanProducesRequestedTrials(t *testing.T) {
	sets := map[string]map[string][]string{
		"alpha": {"m1": {"a1"}, "m2": {"a2"}, "m3": {"a3"}},
		"beta":  {"m1": {"b1"}, "m2": {"b2"}},
		"gamma": {"m1": {"c1"}, "m2": {"c2"}},
	}
	plan, err := Plan(sets, 7, 42)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if len(plan) != 7 {
		t.Fatalf("want 7 trials, got %d", len(plan))
	}
	for i, spec := range plan {
		methods := sets[spec.Set]
		if methods == nil {
			t.Fatalf("trial %d references unknown set %q", i, spec.Set)
		}
		if spec.Left.Method == spec.Right.Method {
			t.Fatalf("trial %d pairs method %q with itself", i, spec.Left.Method)
		}
		if _, ok := methods[spec.Left.Method]; !ok {
			t.Fatalf("trial %d left method %q not in set %q", i, spec.Left.Method, spec.Set)
		}
		if _, ok := methods[spec.Right.Method]; !ok {
			t.Fatalf("trial %d right method %q not in set %q", i, spec.Right.Method, spec.Set)
		}
	}
}

func TestPlanIsDeterministicPerSeed(t *testing.T) {
	sets := twoSetManifest()
	a, err := Plan(sets, 10, 1234)
	if err != nil {
		t.Fatalf("plan a: %v", err)
	}
	b, err := Plan(sets, 10, 1234)
	if err != nil {
		t.Fatalf("plan b: %v", err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("same seed produced different plans:\n%v\n%v", a, b)
	}
}

func TestPlanCyclesSetsEvenly(t *testing.T) {
	sets := map[string]map[string][]string{
		"A": {"m1": {"a1"}, "m2": {"a2"}},
		"B": {"m1": {"b1"}, "m2": {"b2"}},
		"C": {"m1": {"c1"}, "m2": {"c2"}},
	}
	// 7 trials over 3 sets: two full cycles plus one, so counts must be
	// {3,2,2} in some assignment.
	plan, err := Plan(sets, 7, 99)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	counts := map[string]int{}
	for _, spec := range plan {
		counts[spec.Set]++
	}
	for set, n := range counts {
		if n < 2 || n > 3 {
			t.Fatalf("set %q drawn %d times, want 2 or 3 (counts=%v)", set, n, counts)
		}
	}
	// Within each full cycle of 3 there are no repeats.
	for start := 0; start+3 <= len(plan); start += 3 {
		seen := map[string]bool{}
		for _, spec := range plan[start : start+3] {
			if seen[spec.Set] {
				t.Fatalf("set %q repeated within one cycle starting at %d", spec.Set, start)
			}
			seen[spec.Set] = true
		}
	}
}

func TestPlanTruncatesWhenFewerTrialsThanSets(t *testing.T) {
	sets := map[string]map[string][]string{
		"A": {"m1": {"a1"}, "m2": {"a2"}},
		"B": {"m1": {"b1"}, "m2": {"b2"}},
		"C": {"m1": {"c1"}, "m2": {"c2"}},
		"D": {"m1": {"d1"}, "m2": {"d2"}},
	}
	plan, err := Plan(sets, 2, 7)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if len(plan) != 2 {
		t.Fatalf("want 2 trials, got %d", len(plan))
	}
	if plan[0].Set == plan[1].Set {
		t.Fatalf("truncated shuffle repeated set %q", plan[0].Set)
	}
}

func TestPlanPairsFilesPerSet(t *testing.T) {
	// With one file per method, file pairing per set is forced: set A must
	// always show v1/v2 and set B v3/v4, regardless of side assignment.
	plan, err := Plan(twoSetManifest(), 2, 555)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	want := map[string]map[string]string{
		"A": {"m1": "v1", "m2": "v2"},
		"B": {"m1": "v3", "m2": "v4"},
	}
	for i, spec := range plan {
		for _, side := range []SideSpec{spec.Left, spec.Right} {
			if got := want[spec.Set][side.Method]; side.Video != got {
				t.Fatalf("trial %d set %q method %q: video %q, want %q", i, spec.Set, side.Method, side.Video, got)
			}
		}
	}
}

func TestPlanAvoidsVideoRepeatsWithinParticipant(t *testing.T) {
	sets := map[string]map[string][]string{
		"S": {"m1": {"x1", "x2"}, "m2": {"y1", "y2"}},
	}
	plan, err := Plan(sets, 2, 3)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	perMethod := map[string][]string{}
	for _, spec := range plan {
		perMethod[spec.Left.Method] = append(perMethod[spec.Left.Method], spec.Left.Video)
		perMethod[spec.Right.Method] = append(perMethod[spec.Right.Method], spec.Right.Video)
	}
	for method, vids := range perMethod {
		if len(vids) == 2 && vids[0] == vids[1] {
			t.Fatalf("method %q repeated video %q before exhausting its pool", method, vids[0])
		}
	}
}

func TestPlanErrors(t *testing.T) {
	if _, err := Plan(map[string]map[string][]string{}, 3, 1); !IsCode(err, ErrorPlanning) {
		t.Fatalf("empty sets: want planning error, got %v", err)
	}
	if _, err := Plan(twoSetManifest(), 0, 1); !IsCode(err, ErrorPlanning) {
		t.Fatalf("zero trials: want planning error, got %v", err)
	}
	broken := map[string]map[string][]string{"solo": {"only": {"v"}}}
	if _, err := Plan(broken, 1, 1); !IsCode(err, ErrorPlanning) {
		t.Fatalf("single-method set: want planning error, got %v", err)
	}
}
