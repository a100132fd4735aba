package template

import "testing"

func condVars() map[string]any {
	return map[string]any{
		"length":   2000,
		"tone":     "casual",
		"language": "ja",
		"debug":    false,
	}
}

func TestEvalConditionComparisons(t *testing.T) {
	t.Parallel()

	cases := []struct {
		expr string
		want bool
	}{
		{`language == "ja"`, true},
		{`language == "en"`, false},
		{`language != "en"`, true},
		{`tone == 'casual'`, true},
		{`length >= 2000`, true},
		{`length > 2000`, false},
		{`length < 3000`, true},
		{`length <= 1999`, false},
		{`debug == false`, true},
		{`debug`, false},
		{`!debug`, true},
	}

	for _, tc := range cases {
		got, err := EvalCondition(tc.expr, condVars())
		if err != nil {
			t.Fatalf("EvalCondition(%q) error: %v", tc.expr, err)
		}
		if got != tc.want {
			t.Fatalf("EvalCondition(%q) = %v, want %v", tc.expr, got, tc.want)
		}
	}
}

func TestEvalConditionBooleanCombinators(t *testing.T) {
	t.Parallel()

	cases := []struct {
		expr string
		want bool
	}{
		{`language == "ja" && length >= 1000`, true},
		{`language == "en" && length >= 1000`, false},
		{`language == "en" || tone == "casual"`, true},
		{`!(language == "en") && (length > 500 || debug)`, true},
	}

	for _, tc := range cases {
		got, err := EvalCondition(tc.expr, condVars())
		if err != nil {
			t.Fatalf("EvalCondition(%q) error: %v", tc.expr, err)
		}
		if got != tc.want {
			t.Fatalf("EvalCondition(%q) = %v, want %v", tc.expr, got, tc.want)
		}
	}
}

func TestEvalConditionBareWordString(t *testing.T) {
	t.Parallel()

	got, err := EvalCondition(`language == ja`, condVars())
	if err != nil {
		t.Fatalf("bare-word literal should parse: %v", err)
	}
	if !got {
		t.Fatal("language == ja should hold")
	}
}

func TestEvalConditionErrors(t *testing.T) {
	t.Parallel()

	bad := []string{
		`unknown_option == 1`,
		`language ==`,
		`language == "ja`,
		`length === 5`,
		`(length > 1`,
		`tone > "casual"`,
		``,
	}

	for _, expr := range bad {
		if _, err := EvalCondition(expr, condVars()); err == nil {
			t.Fatalf("EvalCondition(%q) should fail", expr)
		}
	}
}
