package interp

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ushell/ush/core/parse"
)

func bufIO(buf *bytes.Buffer) stdio {
	return stdio{in: strings.NewReader(""), out: buf, err: buf}
}

func cmdArgs(args ...string) *parse.Command {
	return &parse.Command{Args: args}
}

func TestEcho(t *testing.T) {
	cases := []struct {
		name string
		args []string
		want string
	}{
		{"words", []string{"echo", "a", "b"}, "a b\n"},
		{"single", []string{"echo", "hi"}, "hi\n"},
		{"no args at all", []string{"echo"}, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			status := echo(cmdArgs(tc.args...), bufIO(&buf))

			assert.Equal(t, 0, status)
			assert.Equal(t, tc.want, buf.String())
		})
	}
}

func TestPwd(t *testing.T) {
	var buf bytes.Buffer
	status := pwd(cmdArgs("pwd"), bufIO(&buf))

	wd, err := os.Getwd()
	require.NoError(t, err)

	assert.Equal(t, 0, status)
	assert.Equal(t, wd+"\n", buf.String())
}

func TestCd(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, os.Chdir(wd)) })

	e := &Engine{}
	dir := t.TempDir()

	t.Run("to directory", func(t *testing.T) {
		var buf bytes.Buffer
		status := e.cd(cmdArgs("cd", dir), bufIO(&buf))

		assert.Equal(t, 0, status)
		assert.Empty(t, buf.String())

		got, err := os.Getwd()
		require.NoError(t, err)
		want, err := filepath.EvalSymlinks(dir)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})

	t.Run("missing path leaves directory unchanged", func(t *testing.T) {
		before, err := os.Getwd()
		require.NoError(t, err)

		var buf bytes.Buffer
		status := e.cd(cmdArgs("cd", "/definitely/not/here"), bufIO(&buf))

		assert.Equal(t, 1, status)
		assert.Equal(t, "/definitely/not/here: No such file or directory.\n", buf.String())

		after, err := os.Getwd()
		require.NoError(t, err)
		assert.Equal(t, before, after)
	})

	t.Run("not a directory", func(t *testing.T) {
		file := filepath.Join(dir, "plain")
		require.NoError(t, os.WriteFile(file, nil, 0644))

		var buf bytes.Buffer
		status := e.cd(cmdArgs("cd", file), bufIO(&buf))

		assert.Equal(t, 1, status)
		assert.Equal(t, file+": Not a directory.\n", buf.String())
	})

	t.Run("no argument goes home", func(t *testing.T) {
		home := t.TempDir()
		t.Setenv("HOME", home)

		var buf bytes.Buffer
		status := e.cd(cmdArgs("cd"), bufIO(&buf))

		assert.Equal(t, 0, status)

		got, err := os.Getwd()
		require.NoError(t, err)
		want, err := filepath.EvalSymlinks(home)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})
}

func TestSetenv(t *testing.T) {
	t.Run("two arguments set and overwrite", func(t *testing.T) {
		t.Setenv("USH_TEST_VAR", "old")

		var buf bytes.Buffer
		status := setenv(cmdArgs("setenv", "USH_TEST_VAR", "new"), bufIO(&buf))

		assert.Equal(t, 0, status)
		assert.Equal(t, "new", os.Getenv("USH_TEST_VAR"))
	})

	t.Run("one argument sets empty", func(t *testing.T) {
		t.Setenv("USH_TEST_VAR", "old")

		status := setenv(cmdArgs("setenv", "USH_TEST_VAR"), bufIO(&bytes.Buffer{}))
		assert.Equal(t, 0, status)

		v, ok := os.LookupEnv("USH_TEST_VAR")
		assert.True(t, ok)
		assert.Empty(t, v)
	})

	t.Run("no arguments list the environment", func(t *testing.T) {
		t.Setenv("USH_TEST_VAR", "listed")

		var buf bytes.Buffer
		status := setenv(cmdArgs("setenv"), bufIO(&buf))

		assert.Equal(t, 0, status)
		assert.Contains(t, buf.String(), "USH_TEST_VAR=listed\n")
	})
}

func TestUnsetenv(t *testing.T) {
	t.Run("removes the variable", func(t *testing.T) {
		t.Setenv("USH_TEST_VAR", "set")

		status := unsetenv(cmdArgs("unsetenv", "USH_TEST_VAR"), bufIO(&bytes.Buffer{}))
		assert.Equal(t, 0, status)

		_, ok := os.LookupEnv("USH_TEST_VAR")
		assert.False(t, ok)
	})

	t.Run("missing argument reports", func(t *testing.T) {
		var buf bytes.Buffer
		status := unsetenv(cmdArgs("unsetenv"), bufIO(&buf))

		assert.Equal(t, 1, status)
		assert.Equal(t, "unsetenv: too few arguments\n", buf.String())
	})
}

func TestWhere(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/pbin/tool", []byte("#!"), 0755))
	require.NoError(t, afero.WriteFile(fs, "/pother/tool", []byte("#!"), 0644))
	require.NoError(t, fs.MkdirAll("/pdir/tool", 0755))

	t.Setenv("PATH", "/pbin:/pother:/pdir")
	e := &Engine{FS: fs}

	t.Run("executable files only", func(t *testing.T) {
		var buf bytes.Buffer
		status := e.where(cmdArgs("where", "tool"), bufIO(&buf))

		assert.Equal(t, 0, status)
		assert.Equal(t, "/pbin/tool\n", buf.String())
	})

	t.Run("builtins are reported first", func(t *testing.T) {
		require.NoError(t, afero.WriteFile(fs, "/pbin/echo", []byte("#!"), 0755))

		var buf bytes.Buffer
		status := e.where(cmdArgs("where", "echo"), bufIO(&buf))

		assert.Equal(t, 0, status)
		assert.Equal(t, "echo\n/pbin/echo\n", buf.String())
	})

	t.Run("missing argument reports", func(t *testing.T) {
		var buf bytes.Buffer
		status := e.where(cmdArgs("where"), bufIO(&buf))

		assert.Equal(t, 1, status)
		assert.Equal(t, "where: too few arguments\n", buf.String())
	})
}

func TestNice(t *testing.T) {
	e := &Engine{}

	t.Run("adjustment only", func(t *testing.T) {
		var buf bytes.Buffer
		status, err := e.nice(cmdArgs("nice", "5"), bufIO(&buf))

		require.NoError(t, err)
		assert.Equal(t, 0, status)
		assert.Empty(t, buf.String())
	})

	t.Run("trailing builtin inherits streams", func(t *testing.T) {
		var buf bytes.Buffer
		status, err := e.nice(cmdArgs("nice", "6", "echo", "lowered"), bufIO(&buf))

		require.NoError(t, err)
		assert.Equal(t, 0, status)
		assert.Equal(t, "lowered\n", buf.String())
	})

	t.Run("command alone without adjustment", func(t *testing.T) {
		var buf bytes.Buffer
		status, err := e.nice(cmdArgs("nice", "echo", "plain"), bufIO(&buf))

		require.NoError(t, err)
		assert.Equal(t, 0, status)
		assert.Equal(t, "plain\n", buf.String())
	})

	t.Run("trailing external command", func(t *testing.T) {
		var buf bytes.Buffer
		status, err := e.nice(cmdArgs("nice", "7", "sh", "-c", "echo spawned"), bufIO(&buf))

		require.NoError(t, err)
		assert.Equal(t, 0, status)
		assert.Equal(t, "spawned\n", buf.String())
	})
}

func TestHistory(t *testing.T) {
	lines := []string{"first", "second"}
	cleared := false
	e := &Engine{Hist: &HistoryHooks{
		List:  func() []string { return lines },
		Clear: func() { cleared = true },
	}}

	t.Run("lists numbered entries", func(t *testing.T) {
		var buf bytes.Buffer
		status := e.history(cmdArgs("history"), bufIO(&buf))

		assert.Equal(t, 0, status)
		assert.Equal(t, "    1  first\n    2  second\n", buf.String())
	})

	t.Run("clear flag", func(t *testing.T) {
		var buf bytes.Buffer
		status := e.history(cmdArgs("history", "-c"), bufIO(&buf))

		assert.Equal(t, 0, status)
		assert.True(t, cleared)
		assert.Empty(t, buf.String())
	})

	t.Run("nop without an interactive shell", func(t *testing.T) {
		var buf bytes.Buffer
		status := (&Engine{}).history(cmdArgs("history"), bufIO(&buf))

		assert.Equal(t, 0, status)
		assert.Empty(t, buf.String())
	})
}

func TestRunBuiltinLogout(t *testing.T) {
	e := &Engine{}
	status, err := e.runBuiltin(BuiltinLogout, cmdArgs("logout"), bufIO(&bytes.Buffer{}))

	assert.Equal(t, 0, status)
	assert.ErrorIs(t, err, ErrLogout)
}

func TestLookupBuiltinCoversRegistry(t *testing.T) {
	for _, name := range []string{
		"cd", "echo", "logout", "nice", "pwd", "setenv", "unsetenv", "where", "history",
	} {
		_, ok := lookupBuiltin(name)
		assert.True(t, ok, name)
	}

	_, ok := lookupBuiltin("ls")
	assert.False(t, ok)
}

func TestIsExecutable(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/bin/x", []byte{}, 0755))
	require.NoError(t, afero.WriteFile(fs, "/bin/plain", []byte{}, 0644))
	require.NoError(t, fs.MkdirAll("/bin/dir", 0755))

	assert.True(t, isExecutable(fs, "/bin/x"))
	assert.False(t, isExecutable(fs, "/bin/plain"))
	assert.False(t, isExecutable(fs, "/bin/dir"))
	assert.False(t, isExecutable(fs, "/bin/missing"))
}
