package main

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/pathways/apps/shared"
	"github.com/trezcool/pathways/core"
	"github.com/trezcool/pathways/core/user"
	testutil "github.com/trezcool/pathways/tests"
)

func setup(t *testing.T) (*commandLine, *bytes.Buffer) {
	conf := &core.Config{
		Env:      "TEST",
		TestMode: true,
		AppName:  "Pathways",
		Database: core.DatabaseConfig{Engine: shared.EngineInMemory},
		Import:   core.ImportConfig{DefaultMaterialType: "document", LoginDomain: "training.local"},
	}
	c, err := shared.NewContainer(context.Background(), conf, shared.NewLogger(conf, "TEST"))
	require.NoError(t, err)
	t.Cleanup(c.Close)

	out := new(bytes.Buffer)
	return newCommandLine(c, out), out
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	extra      interface{}
}

func checkRunErr(t *testing.T, tt cliTest, err error) {
	t.Helper()
	switch {
	case tt.wantErr != nil:
		assert.Equal(t, tt.wantErr, err)
	case tt.wantErrStr != "":
		assert.EqualError(t, err, tt.wantErrStr)
	default:
		assert.NoError(t, err)
	}
}

func Test_commandLine_usage(t *testing.T) {
	cli, _ := setup(t)

	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "import: no args", args: []string{"import"}, wantErr: errHelp},
		{name: "import: bad kind", args: []string{"import", "-kind", "courses", "-file", "a.csv"}, wantErr: errHelp},
		{name: "import: no file", args: []string{"import", "-kind", "branches"}, wantErr: errHelp},
		{name: "import: unknown flag", args: []string{"import", "-lol"}, wantErr: errHelp},
		{name: "export: bad kind", args: []string{"export", "-kind", "courses"}, wantErr: errHelp},
		{name: "adduser: no args", args: []string{"adduser"}, wantErr: errHelp},
		{name: "resetpassword: no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "migrate: no command", args: []string{"migrate"}, wantErr: errHelp},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkRunErr(t, tt, cli.run(append([]string{"admin"}, tt.args...)))
		})
	}
}

func Test_commandLine_import(t *testing.T) {
	cli, out := setup(t)
	ctx := context.Background()

	t.Run("csv", func(t *testing.T) {
		out.Reset()
		path := writeFile(t, "branches.csv", "branch name,region\nDowntown,North\n,South\nUptown,\n")

		require.NoError(t, cli.run([]string{"admin", "import", "-kind", "branches", "-file", path}))
		assert.Contains(t, out.String(), "branches import: 2 succeeded, 1 failed\n")
		assert.Contains(t, out.String(), "  line 3: ")

		buf := new(bytes.Buffer)
		require.NoError(t, cli.importSvc.Export(ctx, "branches", buf))
		assert.Equal(t, "branch name,region\nDowntown,North\nUptown,\n", buf.String())
	})

	t.Run("missing file", func(t *testing.T) {
		err := cli.run([]string{"admin", "import", "-kind", "branches", "-file", filepath.Join(t.TempDir(), "nope.csv")})
		assert.Error(t, err)
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("parse error", func(t *testing.T) {
		path := writeFile(t, "broken.csv", "branch name,region\n\"Downtown,North\n")
		err := cli.run([]string{"admin", "import", "-kind", "branches", "-file", path})
		assert.Error(t, err)
	})
}

func Test_commandLine_export(t *testing.T) {
	cli, out := setup(t)

	path := writeFile(t, "branches.csv", "branch name,region\nDowntown,North\n")
	require.NoError(t, cli.run([]string{"admin", "import", "-kind", "branches", "-file", path}))

	t.Run("stdout", func(t *testing.T) {
		out.Reset()
		require.NoError(t, cli.run([]string{"admin", "export", "-kind", "branches"}))
		assert.Equal(t, "branch name,region\nDowntown,North\n", out.String())
	})

	t.Run("file", func(t *testing.T) {
		dest := filepath.Join(t.TempDir(), "export.csv")
		require.NoError(t, cli.run([]string{"admin", "export", "-kind", "branches", "-file", dest}))
		content, err := os.ReadFile(dest)
		require.NoError(t, err)
		assert.Equal(t, "branch name,region\nDowntown,North\n", string(content))
	})
}

func Test_commandLine_addUser(t *testing.T) {
	cli, _ := setup(t)
	ctx := context.Background()

	type extra struct {
		pwd string
	}
	tests := []cliTest{
		{name: "username but no password", args: []string{"adduser", "-username", "admin"}, wantErr: errHelp},
		{name: "create admin", args: []string{"adduser", "-username", "admin", "-name", "Admin"}, extra: extra{pwd: testutil.StrongPassword}},
		{name: "existing admin", args: []string{"adduser", "-username", "admin"}, extra: extra{pwd: testutil.StrongPassword + "1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			readPasswordFunc = func(fd int) ([]byte, error) {
				if extra, ok := tt.extra.(extra); ok {
					return []byte(extra.pwd), nil
				}
				return nil, nil
			}
			checkRunErr(t, tt, cli.run(append([]string{"admin"}, tt.args...)))
		})
	}

	usr, err := cli.userSvc.GetByUsernameOrEmail(ctx, "admin@training.local")
	require.NoError(t, err)
	assert.Equal(t, "Admin", usr.Name)
	assert.Equal(t, user.RoleAdmin, usr.Role)
	assert.NoError(t, usr.CheckPassword(testutil.StrongPassword+"1"))
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli, _ := setup(t)
	ctx := context.Background()

	usr, err := cli.userSvc.CreateIdentity(ctx, user.NewUser{
		Name:     "Ada Lee",
		Username: "ada",
		Email:    "ada@training.local",
		Password: testutil.StrongPassword,
		Role:     user.RoleAdmin,
	})
	require.NoError(t, err)

	type extra struct {
		pwd string
	}
	tests := []cliTest{
		{name: "username but no password", args: []string{"resetpassword", "-username", "ada"}, wantErr: errHelp},
		{name: "user not found", args: []string{"resetpassword", "-username", "bob"}, extra: extra{pwd: testutil.StrongPassword}, wantErr: user.ErrNotFound},
		{name: "weak password", args: []string{"resetpassword", "-username", "ada"}, extra: extra{pwd: "12345678"}, wantErrStr: "validation failed"},
		{name: "reset with username", args: []string{"resetpassword", "-username", "ada"}, extra: extra{pwd: testutil.StrongPassword + "1"}},
		{name: "reset with email", args: []string{"resetpassword", "-username", "ADA@training.local"}, extra: extra{pwd: testutil.StrongPassword + "2"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			readPasswordFunc = func(fd int) ([]byte, error) {
				if extra, ok := tt.extra.(extra); ok {
					return []byte(extra.pwd), nil
				}
				return nil, nil
			}

			err := cli.run(append([]string{"admin"}, tt.args...))
			if tt.wantErrStr != "" { // message depends on the translator
				assert.Error(t, err)
				return
			}
			checkRunErr(t, tt, err)
			if err == nil {
				refreshed, err := cli.userSvc.GetByID(ctx, usr.ID)
				require.NoError(t, err)
				assert.False(t, bytes.Equal(refreshed.PasswordHash, usr.PasswordHash), "failed to update new password")
				usr = refreshed
			}
		})
	}
}

func Test_commandLine_migrate(t *testing.T) {
	cli, _ := setup(t)

	t.Run("in-memory engine", func(t *testing.T) {
		assert.Equal(t, errNoDB, cli.run([]string{"admin", "migrate", "up"}))
	})

	cli.db = new(sql.DB)
	migrateFunc = func(ctx context.Context, db *sql.DB, command string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "redo", "reset", "status", "version": // pass
		case "up-to", "down-to":
			if len(args) == 0 {
				return fmt.Errorf("%s must be of form: goose [OPTIONS] DRIVER DBSTRING %s VERSION", command, command)
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-by-one", args: []string{"migrate", "up-by-one"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "redo", args: []string{"migrate", "redo"}},
		{name: "reset", args: []string{"migrate", "reset"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "version", args: []string{"migrate", "version"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkRunErr(t, tt, cli.run(append([]string{"admin"}, tt.args...)))
		})
	}
}
