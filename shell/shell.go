// Package shell is a small command interpreter over the filesystem
// operations. It keeps a working directory and a history and resolves
// every path argument against the working directory.
package shell

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/brettbedarf/webvfs"
	"github.com/brettbedarf/webvfs/filesystem"
	"github.com/brettbedarf/webvfs/persist"
)

// ClearScreen is written by the clear builtin
const ClearScreen = "\x1b[2J\x1b[H"

// Result is the outcome of one command line. Code is 0 on success.
type Result struct {
	Stdout string
	Stderr string
	Code   int
}

func ok(stdout string) Result {
	return Result{Stdout: stdout}
}

func fail(stderr string) Result {
	return Result{Stderr: stderr, Code: 1}
}

type command struct {
	usage   string
	summary string
	minArgs int
	run     func(ctx context.Context, args []string) Result
}

// Shell is not safe for concurrent use
type Shell struct {
	op       webvfs.Operator
	cwd      string
	prompt   string
	history  []string
	commands map[string]*command
	order    []string
}

// New creates a shell over op starting in cwd ("/" when empty)
func New(op webvfs.Operator, prompt, cwd string) *Shell {
	s := &Shell{
		op:       op,
		cwd:      filesystem.Normalize(cwd),
		prompt:   prompt,
		commands: map[string]*command{},
	}
	s.registerBuiltins()
	return s
}

// Prompt returns the prompt line, e.g. "webvfs:/home/user$"
func (s *Shell) Prompt() string {
	return fmt.Sprintf("%s:%s$", s.prompt, s.cwd)
}

func (s *Shell) Cwd() string { return s.cwd }

// History returns the executed lines, oldest first
func (s *Shell) History() []string {
	return append([]string(nil), s.history...)
}

// Exec runs one command line
func (s *Shell) Exec(ctx context.Context, line string) Result {
	line = strings.TrimSpace(line)
	if line == "" {
		return ok("")
	}
	s.history = append(s.history, line)

	tokens := Tokenize(line)
	if len(tokens) == 0 {
		return ok("")
	}
	name, args := tokens[0], tokens[1:]

	cmd, found := s.commands[name]
	if !found {
		return fail("command not found: " + name)
	}
	if len(args) < cmd.minArgs {
		return fail("usage: " + cmd.usage)
	}
	return cmd.run(ctx, args)
}

// Run reads lines from in until EOF or "exit", writing the prompt and
// command output to out and failures to errOut.
func (s *Shell) Run(ctx context.Context, in io.Reader, out, errOut io.Writer) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprintf(out, "%s ", s.Prompt())
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := scanner.Text()
		if strings.TrimSpace(line) == "exit" {
			return nil
		}

		res := s.Exec(ctx, line)
		if res.Stdout != "" {
			fmt.Fprint(out, res.Stdout)
			if !strings.HasSuffix(res.Stdout, "\n") && res.Stdout != ClearScreen {
				fmt.Fprintln(out)
			}
		}
		if res.Stderr != "" {
			fmt.Fprintln(errOut, res.Stderr)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}
}

func (s *Shell) resolve(p string) string {
	return filesystem.Resolve(s.cwd, p)
}

// fromError renders err as "<kind>: <message>". A warning keeps the
// command successful and is reported on stderr.
func fromError(stdout string, err error) Result {
	switch {
	case err == nil:
		return ok(stdout)
	case persist.IsWarning(err):
		return Result{Stdout: stdout, Stderr: "warning: " + err.Error()}
	}
	if kind, found := filesystem.KindOf(err); found {
		return fail(fmt.Sprintf("%s: %s", kind, err))
	}
	return fail(fmt.Sprintf("error: %s", err))
}

func (s *Shell) register(name, usage, summary string, minArgs int, run func(context.Context, []string) Result) {
	s.commands[name] = &command{usage: usage, summary: summary, minArgs: minArgs, run: run}
	s.order = append(s.order, name)
}

func (s *Shell) registerBuiltins() {
	s.register("help", "help", "Show this help message", 0, s.help)
	s.register("clear", "clear", "Clear the terminal", 0, func(context.Context, []string) Result {
		return ok(ClearScreen)
	})
	s.register("pwd", "pwd", "Print working directory", 0, func(context.Context, []string) Result {
		return ok(s.cwd)
	})
	s.register("cd", "cd [path]", "Change directory", 0, s.cd)
	s.register("ls", "ls [path]", "List directory contents", 0, s.ls)
	s.register("mkdir", "mkdir <path>", "Create a directory", 1, func(ctx context.Context, args []string) Result {
		return fromError("", s.op.Mkdir(ctx, s.resolve(args[0])))
	})
	s.register("cat", "cat <file>", "Display file contents", 1, func(ctx context.Context, args []string) Result {
		data, err := s.op.ReadFile(ctx, s.resolve(args[0]))
		return fromError(string(data), err)
	})
	s.register("echo", "echo <text> [> <file>]", "Print text or write it to a file", 0, s.echo)
	s.register("rm", "rm <file>", "Remove a file", 1, func(ctx context.Context, args []string) Result {
		return fromError("", s.op.Remove(ctx, s.resolve(args[0])))
	})
	s.register("rmdir", "rmdir <dir>", "Remove an empty directory", 1, func(ctx context.Context, args []string) Result {
		return fromError("", s.op.RemoveDir(ctx, s.resolve(args[0])))
	})
	s.register("mv", "mv <from> <to>", "Move or rename a file or directory", 2, func(ctx context.Context, args []string) Result {
		return fromError("", s.op.Move(ctx, s.resolve(args[0]), s.resolve(args[1])))
	})
	s.register("cp", "cp <from> <to>", "Copy a file", 2, func(ctx context.Context, args []string) Result {
		return fromError("", s.op.Copy(ctx, s.resolve(args[0]), s.resolve(args[1])))
	})
	s.register("stat", "stat <path>", "Show file or directory information", 1, s.stat)
	s.register("history", "history", "Show command history", 0, s.showHistory)
}

func (s *Shell) help(context.Context, []string) Result {
	var b strings.Builder
	b.WriteString("Commands:\n")
	for _, name := range s.order {
		cmd := s.commands[name]
		fmt.Fprintf(&b, "  %-24s - %s\n", cmd.usage, cmd.summary)
	}
	b.WriteString("\nExamples:\n")
	b.WriteString("  mkdir /docs\n")
	b.WriteString("  echo \"Hello World\" > /docs/hello.txt\n")
	b.WriteString("  cat /docs/hello.txt\n")
	b.WriteString("  ls /docs")
	return ok(b.String())
}

func (s *Shell) cd(ctx context.Context, args []string) Result {
	target := filesystem.Root
	if len(args) > 0 {
		target = s.resolve(args[0])
	}
	st, err := s.op.Stat(ctx, target)
	if err != nil {
		return fromError("", err)
	}
	if !st.IsDir {
		return fromError("", &filesystem.Error{Op: "cd", Path: target, Kind: filesystem.NotADirectory})
	}
	s.cwd = target
	return ok("")
}

func (s *Shell) ls(ctx context.Context, args []string) Result {
	target := s.cwd
	if len(args) > 0 {
		target = s.resolve(args[0])
	}
	names, err := s.op.ReadDir(ctx, target)
	return fromError(strings.Join(names, "\n"), err)
}

func (s *Shell) echo(ctx context.Context, args []string) Result {
	redirect := -1
	for i, arg := range args {
		if arg == ">" {
			redirect = i
			break
		}
	}
	if redirect == -1 {
		return ok(strings.Join(args, " "))
	}
	if redirect != len(args)-2 {
		return fail("usage: " + s.commands["echo"].usage)
	}
	text := strings.Join(args[:redirect], " ")
	return fromError("", s.op.WriteFile(ctx, s.resolve(args[redirect+1]), []byte(text)))
}

func (s *Shell) stat(ctx context.Context, args []string) Result {
	p := s.resolve(args[0])
	st, err := s.op.Stat(ctx, p)
	if err != nil {
		return fromError("", err)
	}
	kind := "file"
	if st.IsDir {
		kind = "directory"
	}
	return ok(fmt.Sprintf("Path: %s\nType: %s\nSize: %d bytes", p, kind, st.Size))
}

func (s *Shell) showHistory(context.Context, []string) Result {
	lines := make([]string, len(s.history))
	for i, line := range s.history {
		lines[i] = fmt.Sprintf("%4d  %s", i+1, line)
	}
	return ok(strings.Join(lines, "\n"))
}
