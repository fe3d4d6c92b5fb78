package util

import (
	"reflect"
	"testing"
)

func TestParseIntDefault(t *testing.T) {
	cases := map[string]int{"": 7, "12": 12, " 3 ": 3, "x": 7, "-1": -1}
	for in, want := range cases {
		if got := ParseIntDefault(in, 7); got != want {
			t.Fatalf("ParseIntDefault(%q) = %d, want %d", in, got, want)
		}
	}
}

func TestSplitList(t *testing.T) {
	got := SplitList(" EURUSD, ,GBPUSD,")
	if !reflect.DeepEqual(got, []string{"EURUSD", "GBPUSD"}) {
		t.Fatalf("unexpected list %v", got)
	}
	if SplitList("") != nil {
		t.Fatalf("empty input should give nil")
	}
}

func TestEnvHelpers(t *testing.T) {
	t.Setenv("AOWI_TEST_STR", " live ")
	t.Setenv("AOWI_TEST_INT", "5")
	t.Setenv("AOWI_TEST_BAD", "five")
	t.Setenv("AOWI_TEST_LIST", "a,b")
	t.Setenv("AOWI_TEST_BLANK", "  ")

	if got := EnvString("AOWI_TEST_STR", "x"); got != "live" {
		t.Fatalf("EnvString = %q", got)
	}
	if got := EnvString("AOWI_TEST_BLANK", "x"); got != "x" {
		t.Fatalf("blank EnvString = %q", got)
	}
	if got := EnvInt("AOWI_TEST_INT", 1); got != 5 {
		t.Fatalf("EnvInt = %d", got)
	}
	if got := EnvInt("AOWI_TEST_BAD", 1); got != 1 {
		t.Fatalf("invalid EnvInt = %d", got)
	}
	if got := EnvInt64("AOWI_TEST_INT", 0); got != 5 {
		t.Fatalf("EnvInt64 = %d", got)
	}
	if got := EnvList("AOWI_TEST_LIST"); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Fatalf("EnvList = %v", got)
	}
	if _, ok := LookupEnv("AOWI_TEST_BLANK"); ok {
		t.Fatalf("blank variable reported as set")
	}
	if v, ok := LookupEnv("AOWI_TEST_STR"); !ok || v != "live" {
		t.Fatalf("LookupEnv = %q %v", v, ok)
	}
}
