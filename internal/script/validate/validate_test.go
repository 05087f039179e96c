package validate

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestValidScript(t *testing.T) {
	src := `
subroutines:
  - name: gen
    args: [name, {name: sep, default: ","}]
    body:
      - value: name
main:
  - for:
      var: x
      in: list
      body:
        - call: {name: gen, args: {name: {path: x}}}
        - hasNext: [{text: ","}]
  - cmd: [make]
  - onerror: {kind: cmd, body: [{text: failed}]}
`
	r := ValidateSource(src, "ok.jzy")
	if !r.Valid || len(r.Errors) != 0 {
		t.Fatalf("expected valid result, got %+v", r)
	}
}

func TestFindings(t *testing.T) {
	tests := []struct {
		name     string
		src      string
		valid    bool
		severity string
		message  string
		line     int
	}{
		{
			name:     "undefined subroutine",
			src:      "main:\n  - call: nope\n",
			severity: SeverityError,
			message:  `undefined subroutine "nope"`,
			line:     2,
		},
		{
			name:     "undeclared argument",
			src:      "subroutines:\n  - {name: s, args: [a]}\nmain:\n  - call: {name: s, args: {a: 1, b: 2}}\n",
			severity: SeverityError,
			message:  `has no argument "b"`,
			line:     4,
		},
		{
			name:     "missing required argument",
			src:      "subroutines:\n  - {name: s, args: [a]}\nmain:\n  - call: s\n",
			valid:    true,
			severity: SeverityWarning,
			message:  `required argument "a"`,
			line:     4,
		},
		{
			name:     "hasNext outside for",
			src:      "main:\n  - hasNext: [{text: x}]\n",
			valid:    true,
			severity: SeverityWarning,
			message:  "hasNext outside",
			line:     2,
		},
		{
			name:     "break outside loop",
			src:      "main:\n  - text: a\n  - break\n",
			valid:    true,
			severity: SeverityWarning,
			message:  "break outside",
			line:     3,
		},
		{
			name:     "leading onerror",
			src:      "main:\n  - onerror: {body: []}\n",
			valid:    true,
			severity: SeverityWarning,
			message:  "never runs",
			line:     2,
		},
		{
			name:     "call inside nested text",
			src:      "main:\n  - value: {sub: [{call: missing}]}\n",
			severity: SeverityError,
			message:  `undefined subroutine "missing"`,
			line:     2,
		},
		{
			name:     "load error",
			src:      "main:\n  - nonsense: 1\n",
			severity: SeverityError,
			message:  `unknown statement "nonsense"`,
			line:     2,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := ValidateSource(tt.src, "t.jzy")
			if r.Valid != tt.valid {
				t.Errorf("valid = %v, want %v", r.Valid, tt.valid)
			}
			if len(r.Errors) != 1 {
				t.Fatalf("expected one finding, got %+v", r.Errors)
			}
			got := r.Errors[0]
			if got.Severity != tt.severity || !strings.Contains(got.Message, tt.message) || got.Line != tt.line {
				t.Errorf("finding = %+v", got)
			}
			if got.Context == "" {
				t.Error("expected the source line as context")
			}
		})
	}
}

func TestFindingsSortedByPosition(t *testing.T) {
	src := "main:\n  - break\n  - call: a\n  - continue\n"
	r := ValidateSource(src, "")
	if len(r.Errors) != 3 {
		t.Fatalf("expected three findings, got %+v", r.Errors)
	}
	for i, line := range []int{2, 3, 4} {
		if r.Errors[i].Line != line {
			t.Errorf("finding %d on line %d, want %d", i, r.Errors[i].Line, line)
		}
	}
}

func TestJSONShape(t *testing.T) {
	r := ValidateSource("main:\n  - call: x\n", "")
	data, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var back map[string]interface{}
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if back["valid"] != false {
		t.Errorf("valid = %v", back["valid"])
	}
	errs, ok := back["errors"].([]interface{})
	if !ok || len(errs) != 1 {
		t.Fatalf("errors = %v", back["errors"])
	}
	first := errs[0].(map[string]interface{})
	if first["severity"] != "error" || first["line"] != float64(2) {
		t.Errorf("first = %v", first)
	}
}

func TestValidateFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.jzy")
	if err := os.WriteFile(path, []byte("main:\n  - text: hi\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	r, err := ValidateFile(path)
	if err != nil || !r.Valid {
		t.Fatalf("result = %+v, err = %v", r, err)
	}
	if _, err := ValidateFile(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("expected error for a missing file")
	}
}
