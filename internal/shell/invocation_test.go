package shell

import (
	"reflect"
	"runtime"
	"strings"
	"testing"

	"github.com/Use-Tusk/shellgate/internal/config"
)

func TestSimpleArgv(t *testing.T) {
	tests := []struct {
		command string
		want    []string
		ok      bool
	}{
		{"ls -la", []string{"ls", "-la"}, true},
		{`grep "hello world" file.txt`, []string{"grep", "hello world", "file.txt"}, true},
		{`echo 'a b' c`, []string{"echo", "a b", "c"}, true},
		{"echo $HOME", nil, false},
		{"ls *.go", nil, false},
		{"ls | wc -l", nil, false},
		{"ls > out", nil, false},
		{"FOO=1 env", nil, false},
		{"cd /tmp && ls", nil, false},
		{"echo $(pwd)", nil, false},
		{`echo "unterminated`, nil, false},
		{"", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.command, func(t *testing.T) {
			got, ok := SimpleArgv(tt.command)
			if ok != tt.ok {
				t.Fatalf("SimpleArgv(%q) ok = %v, want %v", tt.command, ok, tt.ok)
			}
			if tt.ok && !reflect.DeepEqual(got, tt.want) {
				t.Errorf("SimpleArgv(%q) = %q, want %q", tt.command, got, tt.want)
			}
		})
	}
}

func TestInvocation_StringShapes(t *testing.T) {
	r := NewRegistry(nil, Builtins()...)

	tests := []struct {
		shell string
		dir   string
		want  []string
	}{
		{config.ShellCmd, `C:\work`, []string{"cmd.exe", "/c", "dir /b"}},
		{config.ShellPowerShell, `C:\work`, []string{"powershell.exe", "-NoLogo", "-NoProfile", "-NonInteractive", "-Command", "dir /b"}},
		{config.ShellBash, "/work", []string{"bash", "-c", "dir /b"}},
	}

	for _, tt := range tests {
		t.Run(tt.shell, func(t *testing.T) {
			p, _ := r.Get(tt.shell)
			inv, err := p.Invocation(InvocationRequest{
				Executable: p.Executable(),
				Command:    "dir /b",
				WorkDir:    tt.dir,
			})
			if err != nil {
				t.Fatalf("Invocation() error = %v", err)
			}
			if !reflect.DeepEqual(inv.Argv(), tt.want) {
				t.Errorf("Argv() = %q, want %q", inv.Argv(), tt.want)
			}
			if inv.Dir != tt.dir {
				t.Errorf("Dir = %q, want %q", inv.Dir, tt.dir)
			}
		})
	}
}

func TestInvocation_PosixArgv(t *testing.T) {
	r := NewRegistry(nil, Builtins()...)
	bash, _ := r.Get(config.ShellBash)

	tests := []struct {
		command string
		script  string
	}{
		{`grep "hello world" file.txt`, `grep 'hello world' file.txt`},
		{`echo 'a b'   c`, `echo 'a b' c`},
		{"ls -la", "ls -la"},
		{"ls | wc -l", "ls | wc -l"},
		{"echo $HOME", "echo $HOME"},
	}

	for _, tt := range tests {
		t.Run(tt.command, func(t *testing.T) {
			inv, err := bash.Invocation(InvocationRequest{Executable: bash.Executable(), Command: tt.command, WorkDir: "/work"})
			if err != nil {
				t.Fatalf("Invocation() error = %v", err)
			}
			want := []string{"bash", "-c", tt.script}
			if !reflect.DeepEqual(inv.Argv(), want) {
				t.Errorf("Argv() = %q, want %q", inv.Argv(), want)
			}
		})
	}
}

func TestInvocation_Mixed(t *testing.T) {
	r := NewRegistry(nil, Builtins()...)
	p, _ := r.Get(config.ShellGitBash)

	inv, err := p.Invocation(InvocationRequest{Executable: p.Executable(), Command: "ls", WorkDir: `C:\work`})
	if err != nil {
		t.Fatalf("Invocation() error = %v", err)
	}
	if inv.Dir != `C:\work` || inv.Args[len(inv.Args)-1] != "ls" {
		t.Errorf("drive dir: got %+v", inv)
	}

	inv, err = p.Invocation(InvocationRequest{Executable: p.Executable(), Command: "ls", WorkDir: "/usr/my dir"})
	if err != nil {
		t.Fatalf("Invocation() error = %v", err)
	}
	if inv.Dir != "" {
		t.Errorf("POSIX-only dir should not become the host dir, got %q", inv.Dir)
	}
	if got := inv.Args[len(inv.Args)-1]; got != "cd '/usr/my dir' && ls" {
		t.Errorf("script = %q", got)
	}
}

func TestInvocation_WSL(t *testing.T) {
	t.Setenv("WSLENV", "")

	r := NewRegistry(nil, Builtins()...)
	p, _ := r.Get(config.ShellWSL)

	inv, err := p.Invocation(InvocationRequest{
		Executable:   p.Executable(),
		Command:      `grep -r "needle" .`,
		WorkDir:      "/mnt/c/work",
		RequestedDir: `C:\work`,
		MountPoint:   "/mnt/",
	})
	if err != nil {
		t.Fatalf("Invocation() error = %v", err)
	}
	want := []string{"wsl.exe", "--cd", "/mnt/c/work", "-e", "grep", "-r", "needle", "."}
	if !reflect.DeepEqual(inv.Argv(), want) {
		t.Errorf("Argv() = %q, want %q", inv.Argv(), want)
	}
	env := strings.Join(inv.Env, "\n")
	if !strings.Contains(env, OriginalPathEnv+`=C:\work`) {
		t.Errorf("Env missing original path: %q", inv.Env)
	}
	if !strings.Contains(env, "WSLENV="+OriginalPathEnv) {
		t.Errorf("Env missing WSLENV: %q", inv.Env)
	}
	if runtime.GOOS == "windows" {
		if inv.Dir != `C:\work` {
			t.Errorf("Dir = %q, want C:\\work", inv.Dir)
		}
	} else if inv.Dir != "" {
		t.Errorf("Dir = %q, want empty off Windows", inv.Dir)
	}

	inv, err = p.Invocation(InvocationRequest{Executable: p.Executable(), Command: "ls | wc -l"})
	if err != nil {
		t.Fatalf("Invocation() error = %v", err)
	}
	want = []string{"wsl.exe", "-e", "bash", "-c", "ls | wc -l"}
	if !reflect.DeepEqual(inv.Argv(), want) {
		t.Errorf("Argv() = %q, want %q", inv.Argv(), want)
	}
	if len(inv.Env) != 0 {
		t.Errorf("Env = %q, want none without a requested dir", inv.Env)
	}
}
