package tiers

import "testing"

func TestProductTableClassify(t *testing.T) {
	cases := []struct {
		value int64
		want  string
	}{
		{0, "Standard"},
		{199, "Standard"},
		{200, "Eco Aware"},
		{399, "Eco Aware"},
		{400, "Eco Friendly"},
		{620, "Eco Leader"},
		{800, "Eco Champion"},
		{1000, "Eco Champion"},
		{-50, "Standard"},
	}
	for _, tc := range cases {
		if got := ProductTable.Classify(tc.value); got != tc.want {
			t.Errorf("Classify(%d) = %q, want %q", tc.value, got, tc.want)
		}
	}
}

func TestUserTableClassify(t *testing.T) {
	cases := []struct {
		value int64
		want  string
	}{
		{0, "Seedling"},
		{499, "Seedling"},
		{500, "Eco Conscious"},
		{2000, "Green Advocate"},
		{4999, "Green Advocate"},
		{5000, "Eco Warrior"},
		{10000, "Planet Guardian"},
		{250000, "Planet Guardian"},
	}
	for _, tc := range cases {
		if got := UserTable.Classify(tc.value); got != tc.want {
			t.Errorf("Classify(%d) = %q, want %q", tc.value, got, tc.want)
		}
	}
}

func TestGroupTableClassify(t *testing.T) {
	cases := []struct {
		value int64
		want  string
	}{
		{0, "Eco Beginners"},
		{5000, "Eco Collective"},
		{20000, "Green Guardians"},
		{50000, "Planet Protectors"},
	}
	for _, tc := range cases {
		if got := GroupTable.Classify(tc.value); got != tc.want {
			t.Errorf("Classify(%d) = %q, want %q", tc.value, got, tc.want)
		}
	}
}

func TestClassifyIsMonotonic(t *testing.T) {
	prev := -1
	for points := int64(0); points <= 12000; points += 100 {
		rank := UserTable.Rank(UserTable.Classify(points))
		if rank < prev {
			t.Fatalf("tier rank regressed at %d points: %d < %d", points, rank, prev)
		}
		prev = rank
	}
}

func TestRankUnknownLabel(t *testing.T) {
	if got := UserTable.Rank("Galactic Custodian"); got != -1 {
		t.Fatalf("expected unknown label to rank -1, got %d", got)
	}
	if got := UserTable.Rank("Seedling"); got != 0 {
		t.Fatalf("expected floor rank 0, got %d", got)
	}
}
