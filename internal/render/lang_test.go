package render

import (
	"strconv"
	"testing"
)

func TestEvalExpandsVariablesAndHexFormat(t *testing.T) {
	ctx := newContext()
	ctx.set("device.vendor_id", "10ec")
	ctx.set("msix.table_offset", uint64(0x2000))

	out, err := Eval("vendor={{device.vendor_id}} offset={{msix.table_offset|hex:8}}", ctx)
	if err != nil {
		t.Fatalf("Eval() error = %v", err)
	}
	if want := "vendor=10ec offset=00002000"; out != want {
		t.Errorf("Eval() = %q, want %q", out, want)
	}
}

func TestEvalUndeclaredKeyIsAnError(t *testing.T) {
	ctx := newContext()
	if _, err := Eval("{{missing.key}}", ctx); err == nil {
		t.Fatal("expected error for reference to undeclared render-context key")
	}
}

func TestEvalConditional(t *testing.T) {
	ctx := newContext()
	ctx.set("msix.present", true)

	out, err := Eval("{{#if msix.present}}yes{{#else}}no{{/if}}", ctx)
	if err != nil {
		t.Fatalf("Eval() error = %v", err)
	}
	if out != "yes" {
		t.Errorf("Eval() = %q, want %q", out, "yes")
	}

	ctx.set("msix.present", false)
	out, err = Eval("{{#if msix.present}}yes{{#else}}no{{/if}}", ctx)
	if err != nil {
		t.Fatalf("Eval() error = %v", err)
	}
	if out != "no" {
		t.Errorf("Eval() = %q, want %q", out, "no")
	}
}

func TestEvalRangeSubstitutesLoopIndexInArrayLiterals(t *testing.T) {
	ctx := newContext()
	for i := 0; i < 3; i++ {
		ctx.set("bars["+strconv.Itoa(i)+"].present", i == 1)
	}

	out, err := Eval("{{#range bars 0 2 as i}}bar[i]={{bars[i].present}}\n{{/range}}", ctx)
	if err != nil {
		t.Fatalf("Eval() error = %v", err)
	}
	want := "bar[0]=false\nbar[1]=true\nbar[2]=false\n"
	if out != want {
		t.Errorf("Eval() = %q, want %q", out, want)
	}
}
