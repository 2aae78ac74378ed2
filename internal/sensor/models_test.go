package sensor

import "testing"

func TestPercent(t *testing.T) {
	cases := map[float64]string{25: "25%", 12.5: "12.5%", 0: "0%"}
	for v, want := range cases {
		if got := (Reading{Value: v}).Percent(); got != want {
			t.Fatalf("Percent(%v) = %q, want %q", v, got, want)
		}
	}
}

func TestBelow(t *testing.T) {
	if !(Reading{Value: 29.9}).Below(30) {
		t.Fatal("29.9 should be below 30")
	}
	if (Reading{Value: 30}).Below(30) {
		t.Fatal("30 should not be below 30")
	}
}
