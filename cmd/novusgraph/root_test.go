package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// execute lance la commande racine avec args et retourne la sortie standard.
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "", "version")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, version) {
		t.Errorf("version output = %q", out)
	}
}

func TestRunFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	script := "- create: person:tobie\n  set: {name: Tobie}\n- select: [name]\n  from: person\n"
	if err := os.WriteFile(path, []byte(script), 0o644); err != nil {
		t.Fatal(err)
	}
	out, err := execute(t, "", "run", path, "--ns", "test", "--db", "test")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	var res []struct {
		Status string `json:"status"`
		Result any    `json:"result"`
	}
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if len(res) != 2 || res[0].Status != "OK" || res[1].Status != "OK" {
		t.Fatalf("unexpected responses: %s", out)
	}
	if !strings.Contains(out, `"Tobie"`) {
		t.Errorf("select output misses the record: %s", out)
	}
}

func TestRunStdin(t *testing.T) {
	out, err := execute(t, "- return: 42\n", "run", "-")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out, "42") {
		t.Errorf("output = %s", out)
	}
}

func TestRunErrors(t *testing.T) {
	if _, err := execute(t, "- explode: now\n", "run"); err == nil {
		t.Error("expected a parse error")
	}
	if _, err := execute(t, "", "run", filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected an error for a missing script")
	}
	if _, err := execute(t, "- return: 1\n", "run", "--store", "tape:x"); err == nil {
		t.Error("expected an error for an unknown store")
	}
}

func TestRunFileStore(t *testing.T) {
	store := "file:" + filepath.Join(t.TempDir(), "data.ngs")
	if _, err := execute(t, "- create: person:a\n", "run", "--ns", "t", "--db", "t", "--store", store); err != nil {
		t.Fatalf("first run: %v", err)
	}
	out, err := execute(t, "- select: \"*\"\n  from: person\n", "run", "--ns", "t", "--db", "t", "--store", store)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if !strings.Contains(out, "person:a") {
		t.Errorf("record not persisted: %s", out)
	}
}
