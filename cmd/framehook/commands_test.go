package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tidwall/gjson"
)

const trampoline = `
local dbg = require("dbg")
dbg.register_unwinder(nil, dbg.unwinder("trampoline", function(self, pf)
  if pf:pc() ~= 0x4000 then return nil end
  return pf:create_unwind_info({ sp = "0x7ffe0000", pc = "0x4000" })
end))
`

func extRoot(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, src := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

// run runs the CLI with args and returns stdout and stderr.
func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd, s := newRootCmd()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--log-level", "error"}, args...))
	err := execute(cmd, s)
	return stdout.String(), stderr.String(), err
}

func TestVersionCmd(t *testing.T) {
	out, _, err := run(t, "version")
	if err != nil {
		t.Fatalf("version error = %v", err)
	}
	if !strings.Contains(out, "framehook "+version) {
		t.Errorf("output = %q", out)
	}
}

func TestLoadCmd(t *testing.T) {
	root := extRoot(t, map[string]string{
		"unwinder/trampoline.lua": trampoline,
		"command/broken.lua":      `error("broken on purpose")`,
	})

	out, stderr, err := run(t, "-d", root, "load")
	if err != nil {
		t.Fatalf("load error = %v", err)
	}
	if !strings.Contains(out, "loaded   dbg.unwinder.trampoline") {
		t.Errorf("output = %q", out)
	}
	if !strings.Contains(out, "failed   dbg.command.broken") || !strings.Contains(out, "1 loaded, 0 reloaded, 1 failed") {
		t.Errorf("output = %q", out)
	}
	if !strings.Contains(stderr, "broken on purpose") {
		t.Errorf("stderr = %q, want the load failure", stderr)
	}

	if _, _, err := run(t, "-d", root, "load", "--strict"); err == nil {
		t.Error("load --strict succeeded with a failing extension")
	}
}

func TestUnwindCmd(t *testing.T) {
	root := extRoot(t, map[string]string{"unwinder/trampoline.lua": trampoline})
	frames := filepath.Join(t.TempDir(), "frames.json")
	if err := os.WriteFile(frames, []byte(`{"frames": [{"pc": "0x4000"}, {"level": 1, "pc": 16}]}`), 0o644); err != nil {
		t.Fatal(err)
	}

	out, _, err := run(t, "-d", root, "unwind", "--frames", frames)
	if err != nil {
		t.Fatalf("unwind error = %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 {
		t.Fatalf("output = %q, want 2 lines", out)
	}
	if gjson.Get(lines[0], "unwinder").String() != "trampoline" {
		t.Errorf("first = %s", lines[0])
	}
	if gjson.Get(lines[1], "pc").String() != "0x10" || gjson.Get(lines[1], "unwinder").Type != gjson.Null {
		t.Errorf("second = %s", lines[1])
	}

	if _, _, err := run(t, "-d", root, "unwind"); err == nil {
		t.Error("unwind without --frames succeeded")
	}
}

func TestUnwindersCmd(t *testing.T) {
	root := extRoot(t, map[string]string{"unwinder/trampoline.lua": trampoline})

	out, _, err := run(t, "-d", root, "unwinders")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "LOCUS") || !strings.Contains(out, "trampoline") || !strings.Contains(out, "true") {
		t.Errorf("list output = %q", out)
	}

	out, _, err = run(t, "-d", root, "unwinders", "disable", "global", "^tramp")
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out) != "1 unwinder(s) disabled" {
		t.Errorf("disable output = %q", out)
	}

	if _, _, err := run(t, "-d", root, "unwinders", "enable", "("); err == nil {
		t.Error("enable with an invalid pattern succeeded")
	}
}

func TestParameterCmds(t *testing.T) {
	root := t.TempDir()

	tests := []struct {
		args []string
		want string
	}{
		{[]string{"show", "width"}, "width is 80"},
		{[]string{"set", "print", "elements", "10"}, "print elements is 10"},
		{[]string{"set", "height", "unlimited"}, "height is unlimited"},
		{[]string{"--param", "width=100", "show", "width"}, "width is 100"},
		{[]string{"set", "prompt", "(fh)"}, "prompt is (fh)"},
	}
	for _, tt := range tests {
		t.Run(strings.Join(tt.args, " "), func(t *testing.T) {
			out, _, err := run(t, append([]string{"-d", root}, tt.args...)...)
			if err != nil {
				t.Fatalf("error = %v", err)
			}
			if strings.TrimSpace(out) != tt.want {
				t.Errorf("output = %q, want %q", out, tt.want)
			}
		})
	}

	out, _, err := run(t, "-d", root, "show")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "print elements is 200\n") || !strings.Contains(out, "pagination is on\n") {
		t.Errorf("show output = %q", out)
	}

	if _, _, err := run(t, "-d", root, "set", "width", "wide"); err == nil {
		t.Error("set width wide succeeded")
	}
}

func TestInvokeExecPrintCmds(t *testing.T) {
	root := extRoot(t, map[string]string{
		"function/strlen.lua": `
local dbg = require("dbg")
dbg.register_function("strlen", function(s) return #s end)
`,
		"command/greet.lua": `
local dbg = require("dbg")
dbg.register_command("greet", function(args) return "hello " .. args[1] end)
`,
		"printer/point.lua": `
local dbg = require("dbg")
dbg.register_printer("point", "^point$", function(t, v)
  return "(" .. v.x .. "," .. v.y .. ")"
end)
`,
	})

	tests := []struct {
		args []string
		want string
	}{
		{[]string{"invoke", "strlen", "abcd"}, "4"},
		{[]string{"exec", "greet", "you"}, "hello you"},
		{[]string{"print", "point", `{"x": 1, "y": 2}`}, "(1,2)"},
		{[]string{"print", "string", "plain"}, "plain"},
	}
	for _, tt := range tests {
		t.Run(strings.Join(tt.args, " "), func(t *testing.T) {
			out, stderr, err := run(t, append([]string{"-d", root}, tt.args...)...)
			if err != nil {
				t.Fatalf("error = %v; stderr: %s", err, stderr)
			}
			if strings.TrimSpace(out) != tt.want {
				t.Errorf("output = %q, want %q", out, tt.want)
			}
		})
	}

	if _, _, err := run(t, "-d", root, "invoke", "nosuch"); err == nil {
		t.Error("invoke of an unknown function succeeded")
	}
}

func TestConfigFile(t *testing.T) {
	root := extRoot(t, map[string]string{"unwinder/trampoline.lua": trampoline})
	cfgPath := filepath.Join(t.TempDir(), "framehook.yaml")
	src := "extensions:\n  dir: " + root + "\n  packages: [unwinder]\nparameters:\n  width: 132\n"
	if err := os.WriteFile(cfgPath, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}

	out, _, err := run(t, "-c", cfgPath, "show", "width")
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out) != "width is 132" {
		t.Errorf("output = %q", out)
	}

	out, _, err = run(t, "-c", cfgPath, "load")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "1 loaded") {
		t.Errorf("load output = %q", out)
	}

	if _, _, err := run(t, "-c", cfgPath, "--reload-policy", "sometimes", "load"); err == nil {
		t.Error("invalid --reload-policy accepted")
	}
}

func TestParseObjfile(t *testing.T) {
	tests := []struct {
		arg     string
		path    string
		base    uint64
		wantErr bool
	}{
		{"/bin/app", "/bin/app", 0, false},
		{"/lib/libc.so.6@0x7f0000", "/lib/libc.so.6", 0x7f0000, false},
		{"/lib/x.so@4096", "/lib/x.so", 4096, false},
		{"/lib/x.so@zz", "", 0, true},
	}
	for _, tt := range tests {
		o, err := parseObjfile(tt.arg)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseObjfile(%q) error = %v", tt.arg, err)
			continue
		}
		if !tt.wantErr && (o.Path != tt.path || o.Base != tt.base) {
			t.Errorf("parseObjfile(%q) = %+v", tt.arg, o)
		}
	}
}

func TestParseArg(t *testing.T) {
	tests := []struct {
		in   string
		want any
	}{
		{"42", int64(42)},
		{"0x10", int64(16)},
		{"1.5", 1.5},
		{"true", true},
		{"word", "word"},
	}
	for _, tt := range tests {
		if got := parseArg(tt.in); got != tt.want {
			t.Errorf("parseArg(%q) = %#v, want %#v", tt.in, got, tt.want)
		}
	}
}

func TestSessionClosedOnFailure(t *testing.T) {
	root := extRoot(t, map[string]string{"unwinder/trampoline.lua": trampoline})

	tests := []struct {
		name string
		args []string
	}{
		{"command fails", []string{"-d", root, "invoke", "nosuch"}},
		{"open fails", []string{"-d", root, "--param", "nosuch=1", "show"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, s := newRootCmd()
			cmd.SetOut(&bytes.Buffer{})
			cmd.SetErr(&bytes.Buffer{})
			cmd.SetArgs(append([]string{"--log-level", "error"}, tt.args...))

			if err := execute(cmd, s); err == nil {
				t.Fatal("execute() succeeded, want an error")
			}
			if s.runtime != nil {
				t.Error("runtime left open after a failed command")
			}
		})
	}
}
