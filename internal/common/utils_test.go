package common

import "testing"

func TestContainsAnyFold(t *testing.T) {
	t.Parallel()

	cases := []struct {
		s    string
		subs []string
		want bool
	}{
		{s: "Patchy light snow", subs: []string{"snow"}, want: true},
		{s: "Moderate or heavy SLEET", subs: []string{"rain", "sleet"}, want: true},
		{s: "Blowing snow", subs: []string{"Blizzard", "BLOWING"}, want: true},
		{s: "Freezing fog", subs: []string{"freezing rain", "freezing drizzle"}, want: false},
		{s: "Sunny", subs: nil, want: false},
		{s: "Sunny", subs: []string{""}, want: false},
	}

	for _, tc := range cases {
		t.Run(tc.s, func(t *testing.T) {
			t.Parallel()
			if got := ContainsAnyFold(tc.s, tc.subs...); got != tc.want {
				t.Errorf("ContainsAnyFold(%q, %q) = %t, want %t", tc.s, tc.subs, got, tc.want)
			}
		})
	}
}
