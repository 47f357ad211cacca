package repository

import "testing"

func TestLikeOperatorByDialect(t *testing.T) {
	if got := likeOperatorByDialect("postgres"); got != "ILIKE" {
		t.Fatalf("postgres like operator want ILIKE got %s", got)
	}
	if got := likeOperatorByDialect("sqlite"); got != "LIKE" {
		t.Fatalf("sqlite like operator want LIKE got %s", got)
	}
	if got := dbDialectName(nil); got != "sqlite" {
		t.Fatalf("nil db dialect want sqlite got %s", got)
	}
}

func TestPathPrefixPattern(t *testing.T) {
	cases := map[string]string{
		"root.7":      `root.7.%`,
		" root.7.12 ": `root.7.12.%`,
		"root.a_b":    `root.a\_b.%`,
		"root.50%":    `root.50\%.%`,
	}
	for input, want := range cases {
		if got := pathPrefixPattern(input); got != want {
			t.Fatalf("pattern for %q want %s got %s", input, want, got)
		}
	}
}
