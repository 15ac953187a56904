package fastparse

import (
	"strconv"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestParseInt_Property(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("整数与其 .0 形式解析结果相同", prop.ForAll(
		func(v int64) bool {
			a, err1 := ParseInt(" " + strconv.FormatInt(v, 10) + "\t")
			b, err2 := ParseInt(strconv.FormatInt(v, 10) + ".0")
			return err1 == nil && err2 == nil && a == v && b == v
		},
		gen.Int64Range(-1_000_000_000, 1_000_000_000),
	))

	properties.TestingRun(t)
}

func TestParseInt_Rejects(t *testing.T) {
	if _, err := ParseInt("  "); err != ErrEmpty {
		t.Fatalf("空字段 err = %v, want ErrEmpty", err)
	}
	for _, s := range []string{"12.5", "abc", "1e400", "NaN"} {
		if v, err := ParseInt(s); err == nil {
			t.Fatalf("ParseInt(%q) = %d, want error", s, v)
		}
	}
}
