package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestRootCommandRegistersSubcommands(t *testing.T) {
	root := NewRootCmd()

	for _, path := range [][]string{{"serve"}, {"migrate", "up"}, {"migrate", "status"}} {
		cmd, _, err := root.Find(path)
		if err != nil {
			t.Fatalf("find %v: %v", path, err)
		}
		if cmd.Name() != path[len(path)-1] {
			t.Fatalf("expected %q, got %q", path[len(path)-1], cmd.Name())
		}
	}
}

func TestMigrateRejectsUnexpectedArgs(t *testing.T) {
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"migrate", "up", "extra"})

	err := root.Execute()
	if err == nil {
		t.Fatalf("expected error for extra argument")
	}
	if !strings.Contains(err.Error(), "unknown command") && !strings.Contains(err.Error(), "accepts 0 arg") {
		t.Fatalf("unexpected error %v", err)
	}
}
