package main

import (
	"debug/elf"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func writeFile(t *testing.T, path, contents string) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestModulePath(t *testing.T) {
	root := t.TempDir()

	if _, err := modulePath(root); err == nil {
		t.Fatal("expected an error when go.mod is missing")
	}

	writeFile(t, filepath.Join(root, "go.mod"), "go 1.23.0\n")
	if _, err := modulePath(root); err == nil {
		t.Fatal("expected an error when the module directive is missing")
	}

	writeFile(t, filepath.Join(root, "go.mod"), "module rikaos\n\ngo 1.23.0\n")
	got, err := modulePath(root)
	if err != nil {
		t.Fatal(err)
	}

	if exp := "rikaos"; got != exp {
		t.Fatalf("expected module path to be %q; got %q", exp, got)
	}
}

func TestFindRedirects(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "kernel", "kfmt", "panic.go"), `package kfmt

// Panic halts the CPU.
//go:redirect-from runtime.gopanic
func Panic(e interface{}) {}

//go:redirect-from runtime.throw
func panicString(msg string) {}

// Printf has no redirect.
func Printf(format string, args ...interface{}) {}
`)
	writeFile(t, filepath.Join(root, "kernel", "kfmt", "panic_test.go"), `package kfmt

//go:redirect-from runtime.ignored
func mockPanic() {}
`)

	cwd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err = os.Chdir(root); err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.Chdir(cwd) }()

	goFiles, err := collectGoFiles("kernel")
	if err != nil {
		t.Fatal(err)
	}

	if exp := []string{filepath.Join("kernel", "kfmt", "panic.go")}; !reflect.DeepEqual(goFiles, exp) {
		t.Fatalf("expected collected files to be %v; got %v", exp, goFiles)
	}

	redirects, err := findRedirects("rikaos", goFiles)
	if err != nil {
		t.Fatal(err)
	}

	exp := []*redirect{
		{src: "runtime.gopanic", dst: "rikaos/kernel/kfmt.Panic"},
		{src: "runtime.throw", dst: "rikaos/kernel/kfmt.panicString"},
	}
	if !reflect.DeepEqual(redirects, exp) {
		for i, r := range redirects {
			t.Errorf("redirect %d: %q -> %q", i, r.src, r.dst)
		}
		t.Fatalf("expected %d redirects", len(exp))
	}
}

func TestFindRedirectsErrors(t *testing.T) {
	root := t.TempDir()

	specs := []struct {
		file     string
		contents string
	}{
		{"malformed.go", "package kfmt\n\n//go:redirect-from\nfunc Panic() {}\n"},
		{"extra.go", "package kfmt\n\n//go:redirect-from runtime.gopanic runtime.throw\nfunc Panic() {}\n"},
		{"syntax.go", "package kfmt\n\nfunc Panic( {}\n"},
	}

	for specIndex, spec := range specs {
		path := filepath.Join(root, spec.file)
		writeFile(t, path, spec.contents)

		if _, err := findRedirects("rikaos", []string{path}); err == nil {
			t.Errorf("[spec %d] expected to get an error", specIndex)
		}
	}
}

func TestResolveRedirectSymbols(t *testing.T) {
	symbols := []elf.Symbol{
		{Name: "runtime.gopanic", Value: 0x1000},
		{Name: "runtime.throw", Value: 0x2000},
		{Name: "rikaos/kernel/kfmt.Panic", Value: 0x3000},
	}

	redirects := []*redirect{
		{src: "runtime.gopanic", dst: "rikaos/kernel/kfmt.Panic"},
	}
	if err := resolveRedirectSymbols(redirects, symbols); err != nil {
		t.Fatal(err)
	}

	if redirects[0].srcVMA != 0x1000 || redirects[0].dstVMA != 0x3000 {
		t.Fatalf("expected src/dst VMAs to be 0x1000/0x3000; got 0x%x/0x%x", redirects[0].srcVMA, redirects[0].dstVMA)
	}

	specs := [][]*redirect{
		{{src: "runtime.missing", dst: "rikaos/kernel/kfmt.Panic"}},
		{{src: "runtime.throw", dst: "rikaos/kernel/kfmt.panicString"}},
	}

	for specIndex, spec := range specs {
		if err := resolveRedirectSymbols(spec, symbols); err == nil {
			t.Errorf("[spec %d] expected to get an error", specIndex)
		}
	}
}
