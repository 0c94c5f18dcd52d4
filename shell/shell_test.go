package shell

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/brettbedarf/webvfs/config"
	"github.com/brettbedarf/webvfs/filesystem"
	"github.com/brettbedarf/webvfs/internal/mocks"
	"github.com/brettbedarf/webvfs/persist"
	"github.com/brettbedarf/webvfs/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newShell(t *testing.T) *Shell {
	t.Helper()
	cfg := config.NewDefaultConfig()
	c := persist.New(store.NewMemoryStore(), cfg)
	require.NoError(t, c.Boot(context.Background()))
	return New(c, "test", persist.HomeDir)
}

func TestTokenize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"empty", "", nil},
		{"blank", "   \t ", nil},
		{"words", "ls  -l\t/tmp", []string{"ls", "-l", "/tmp"}},
		{"double_quotes", `echo "Hello World" > f`, []string{"echo", "Hello World", ">", "f"}},
		{"single_quotes", `echo 'a "b" \n'`, []string{"echo", `a "b" \n`}},
		{"escapes", `echo "l1\nl2\tx \"q\" \\"`, []string{"echo", "l1\nl2\tx \"q\" \\"}},
		{"unknown_escape", `echo "\z"`, []string{"echo", "z"}},
		{"adjacent", `pre"fix"'ed'`, []string{"prefixed"}},
		{"empty_quotes_dropped", `echo "" x`, []string{"echo", "x"}},
		{"unterminated", `echo "abc def`, []string{"echo", "abc def"}},
		{"trailing_backslash", `echo "abc\`, []string{"echo", "abc"}},
		{"unicode", "cat ünï/çødé", []string{"cat", "ünï/çødé"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Tokenize(tt.in))
		})
	}
}

func TestShell_Session(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newShell(t)

	assert.Equal(t, "test:/home/user$", s.Prompt())
	assert.Equal(t, ok("/home/user"), s.Exec(ctx, "pwd"))

	assert.Equal(t, ok(""), s.Exec(ctx, "mkdir docs"))
	assert.Equal(t, ok(""), s.Exec(ctx, `echo "Hello World" > docs/hello.txt`))
	assert.Equal(t, ok("Hello World"), s.Exec(ctx, "cat /home/user/docs/hello.txt"))

	assert.Equal(t, ok(""), s.Exec(ctx, "cd docs"))
	assert.Equal(t, "/home/user/docs", s.Cwd())
	assert.Equal(t, ok("hello.txt"), s.Exec(ctx, "ls"))

	assert.Equal(t, ok(""), s.Exec(ctx, "cp hello.txt copy.txt"))
	assert.Equal(t, ok(""), s.Exec(ctx, "mv copy.txt ../moved.txt"))
	assert.Equal(t, ok("hello.txt"), s.Exec(ctx, "ls ."))
	assert.Equal(t, ok("Path: /home/user/moved.txt\nType: file\nSize: 11 bytes"), s.Exec(ctx, "stat ../moved.txt"))
	assert.Equal(t, ok("Path: /home/user\nType: directory\nSize: 0 bytes"), s.Exec(ctx, "stat .."))

	assert.Equal(t, ok(""), s.Exec(ctx, "rm hello.txt"))
	assert.Equal(t, ok(""), s.Exec(ctx, "cd .."))
	assert.Equal(t, ok(""), s.Exec(ctx, "rmdir docs"))
	assert.Equal(t, ok("moved.txt\nwelcome.txt"), s.Exec(ctx, "ls"))

	assert.Equal(t, ok(""), s.Exec(ctx, "cd"))
	assert.Equal(t, "/", s.Cwd())
	assert.Equal(t, ok("etc\nhome\ntmp"), s.Exec(ctx, "ls"))
}

func TestShell_Errors(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newShell(t)

	res := s.Exec(ctx, "cat nope.txt")
	assert.Equal(t, 1, res.Code)
	assert.Empty(t, res.Stdout)
	assert.Equal(t, "not_found: read_file /home/user/nope.txt: no such file or directory", res.Stderr)

	res = s.Exec(ctx, "rmdir /")
	assert.Equal(t, "invalid_operation: rmdir /: invalid operation", res.Stderr)

	res = s.Exec(ctx, "rmdir /etc")
	assert.True(t, strings.HasPrefix(res.Stderr, "directory_not_empty: "), res.Stderr)

	res = s.Exec(ctx, "cd welcome.txt")
	assert.Equal(t, "not_a_directory: cd /home/user/welcome.txt: not a directory", res.Stderr)
	assert.Equal(t, "/home/user", s.Cwd(), "failed cd keeps the working directory")

	res = s.Exec(ctx, "cd /missing")
	assert.True(t, strings.HasPrefix(res.Stderr, "not_found: "), res.Stderr)

	res = s.Exec(ctx, "frobnicate now")
	assert.Equal(t, fail("command not found: frobnicate"), res)
}

func TestShell_Usage(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newShell(t)

	tests := map[string]string{
		"mkdir":        "usage: mkdir <path>",
		"cat":          "usage: cat <file>",
		"rm":           "usage: rm <file>",
		"rmdir":        "usage: rmdir <dir>",
		"mv a":         "usage: mv <from> <to>",
		"cp a":         "usage: cp <from> <to>",
		"stat":         "usage: stat <path>",
		"echo hi >":    "usage: echo <text> [> <file>]",
		"echo a > b c": "usage: echo <text> [> <file>]",
	}
	for line, want := range tests {
		assert.Equal(t, fail(want), s.Exec(ctx, line), line)
	}
}

func TestShell_Echo(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newShell(t)

	assert.Equal(t, ok("a b  c"), s.Exec(ctx, `echo a b " c"`))
	assert.Equal(t, ok(""), s.Exec(ctx, "echo"))
	assert.Equal(t, ok(""), s.Exec(ctx, `echo "line1\nline2" > /tmp/two`))
	assert.Equal(t, ok("line1\nline2"), s.Exec(ctx, "cat /tmp/two"))

	assert.Equal(t, ok(""), s.Exec(ctx, "echo > /tmp/empty"))
	assert.Equal(t, ok("Path: /tmp/empty\nType: file\nSize: 0 bytes"), s.Exec(ctx, "stat /tmp/empty"))
}

func TestShell_HelpClearHistory(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newShell(t)

	help := s.Exec(ctx, "help")
	require.Equal(t, 0, help.Code)
	for _, name := range []string{"help", "clear", "pwd", "cd", "ls", "mkdir", "cat", "echo", "rm", "rmdir", "mv", "cp", "stat", "history"} {
		assert.Contains(t, help.Stdout, "  "+name, name)
	}

	assert.Equal(t, ok(ClearScreen), s.Exec(ctx, "clear"))
	s.Exec(ctx, "  ")
	s.Exec(ctx, "bogus")

	assert.Equal(t, []string{"help", "clear", "bogus"}, s.History())
	assert.Equal(t, ok("   1  help\n   2  clear\n   3  bogus\n   4  history"), s.Exec(ctx, "history"))
}

func TestShell_Warning(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	op := &mocks.MockOperator{}
	op.On("Mkdir", ctx, "/x").Return(&persist.PersistError{Op: "mkdir", Path: "/x", Err: errors.New("disk full")})
	op.On("ReadDir", ctx, "/").Return(nil, errors.New("connection lost"))

	s := New(op, "t", "")
	res := s.Exec(ctx, "mkdir /x")
	assert.Equal(t, 0, res.Code)
	assert.Equal(t, "warning: persist after mkdir /x: disk full", res.Stderr)

	res = s.Exec(ctx, "ls")
	assert.Equal(t, fail("error: connection lost"), res)

	op.AssertExpectations(t)
}

func TestShell_KindFromRemoteStyleError(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	op := &mocks.MockOperator{}
	op.On("Stat", ctx, "/gone").Return(filesystem.Stat{}, &filesystem.Error{Op: "stat", Path: "/gone", Kind: filesystem.NotFound})

	s := New(op, "t", "/")
	assert.Equal(t, fail("not_found: stat /gone: no such file or directory"), s.Exec(ctx, "stat gone"))
	op.AssertExpectations(t)
}

func TestShell_Run(t *testing.T) {
	t.Parallel()

	s := newShell(t)
	in := strings.NewReader("echo hi > note\ncat note\ncat missing\nexit\npwd\n")
	var out, errOut bytes.Buffer

	require.NoError(t, s.Run(context.Background(), in, &out, &errOut))

	assert.Equal(t, "test:/home/user$ test:/home/user$ hi\ntest:/home/user$ test:/home/user$ ", out.String())
	assert.Equal(t, "not_found: read_file /home/user/missing: no such file or directory\n", errOut.String())
	assert.Equal(t, []string{"echo hi > note", "cat note", "cat missing"}, s.History())
}

func TestShell_RunEOF(t *testing.T) {
	t.Parallel()

	op := &mocks.MockOperator{}
	s := New(op, "p", "/")
	var out, errOut bytes.Buffer
	require.NoError(t, s.Run(context.Background(), strings.NewReader("pwd"), &out, &errOut))
	assert.Equal(t, "p:/$ /\np:/$ \n", out.String())
	op.AssertNotCalled(t, "Stat", mock.Anything, mock.Anything)
}
