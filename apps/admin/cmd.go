package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/pkg/errors"
	"golang.org/x/term"

	"github.com/trezcool/pathways/apps/shared"
	"github.com/trezcool/pathways/core"
	"github.com/trezcool/pathways/core/importer"
	"github.com/trezcool/pathways/core/user"
	"github.com/trezcool/pathways/storage/database"
)

var (
	readPasswordFunc = term.ReadPassword // mockable
	migrateFunc      = database.Migrate  // mockable

	errHelp      = errors.New("help provided")
	errNoDB      = errors.New("migrations need the postgres database engine")
	errPwdPrompt = errors.New("no password provided")
)

type commandLine struct {
	conf      *core.Config
	db        *sql.DB // nil for the in-memory engine
	userSvc   *user.Service
	importSvc *importer.Service
	out       io.Writer
}

func newCommandLine(c *shared.Container, out io.Writer) *commandLine {
	cli := &commandLine{
		conf:      c.Conf,
		userSvc:   c.UserSvc,
		importSvc: c.ImportSvc,
		out:       out,
	}
	if db := c.DB(); db != nil {
		cli.db = db.DB
	}
	return cli
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  import -kind materials|branches|users -file FILE - import a csv or xlsx file")
	fmt.Fprintln(cli.out, "  export -kind materials|branches|users [-file FILE] - export as csv (stdout by default)")
	fmt.Fprintln(cli.out, "  adduser -username USERNAME [-name NAME] - create an admin, or reset an existing user's password")
	fmt.Fprintln(cli.out, "  resetpassword -username USERNAME|EMAIL - reset user's password")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS] - run a database migration command (up, down, status, ...)")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}
	ctx := context.Background()

	importCmd := flag.NewFlagSet("import", flag.ContinueOnError)
	importKind := importCmd.String("kind", "", "The kind of records: materials, branches or users.")
	importFile := importCmd.String("file", "", "The csv or xlsx file to import.")

	exportCmd := flag.NewFlagSet("export", flag.ContinueOnError)
	exportKind := exportCmd.String("kind", "", "The kind of records: materials, branches or users.")
	exportFile := exportCmd.String("file", "", "The csv file to write. Defaults to stdout.")

	addUserCmd := flag.NewFlagSet("adduser", flag.ContinueOnError)
	addUserUname := addUserCmd.String("username", "", "The admin's username. The password will be prompted next.")
	addUserName := addUserCmd.String("name", "", "The admin's full name. Defaults to the username.")

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ContinueOnError)
	resetPasswordUname := resetPasswordCmd.String("username", "", "The user's username or email. The password will be prompted next.")

	for _, cmd := range []*flag.FlagSet{importCmd, exportCmd, addUserCmd, resetPasswordCmd} {
		cmd.SetOutput(cli.out)
	}

	switch args[1] {
	case "import":
		if err := importCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		kind, err := importer.ParseKind(*importKind)
		if err != nil || *importFile == "" {
			importCmd.Usage()
			return errHelp
		}
		return cli.importFile(ctx, kind, *importFile)

	case "export":
		if err := exportCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		kind, err := importer.ParseKind(*exportKind)
		if err != nil {
			exportCmd.Usage()
			return errHelp
		}
		return cli.exportFile(ctx, kind, *exportFile)

	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *addUserUname == "" {
			addUserCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword()
		if err != nil {
			addUserCmd.Usage()
			return errHelp
		}
		return cli.addUser(ctx, *addUserUname, *addUserName, pwd)

	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *resetPasswordUname == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword()
		if err != nil {
			resetPasswordCmd.Usage()
			return errHelp
		}
		return cli.resetPassword(ctx, *resetPasswordUname, pwd)

	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(ctx, args[2:])

	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) promptPassword() (string, error) {
	fmt.Fprint(cli.out, "Enter password:")
	pwd, err := readPasswordFunc(syscall.Stdin)
	fmt.Fprintln(cli.out)
	if err != nil {
		return "", err
	}
	if len(pwd) == 0 {
		return "", errPwdPrompt
	}
	return string(pwd), nil
}

// importFile imports path and prints the report.
func (cli *commandLine) importFile(ctx context.Context, kind importer.Kind, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var tbl importer.Table
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		tbl, err = importer.ParseXLSX(f)
	} else {
		tbl, err = importer.ParseTable(f)
	}
	if err != nil {
		return err
	}

	rep, err := cli.importSvc.ImportTable(ctx, kind, tbl)
	if err != nil {
		return err
	}
	fmt.Fprintln(cli.out, rep.Summary())
	for _, msg := range rep.Messages() {
		fmt.Fprintln(cli.out, "  "+msg)
	}
	return nil
}

func (cli *commandLine) exportFile(ctx context.Context, kind importer.Kind, path string) error {
	if path == "" {
		return cli.importSvc.Export(ctx, kind, cli.out)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err = cli.importSvc.Export(ctx, kind, f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// addUser creates an admin, or resets the password of the existing user.
func (cli *commandLine) addUser(ctx context.Context, uname, name, pwd string) error {
	uname = core.CleanString(uname, true /* lower */)
	if usr, err := cli.userSvc.GetByUsernameOrEmail(ctx, uname); err == nil {
		_, err = cli.userSvc.ResetPassword(ctx, usr, pwd)
		return err
	} else if errors.Cause(err) != user.ErrNotFound {
		return err
	}

	if name == "" {
		name = uname
	}
	_, err := cli.userSvc.CreateIdentity(ctx, user.NewUser{
		Name:     name,
		Username: uname,
		Email:    user.LoginFor(uname, cli.conf.Import.LoginDomain),
		Password: pwd,
		Role:     user.RoleAdmin,
	})
	return err
}

func (cli *commandLine) resetPassword(ctx context.Context, uname, pwd string) error {
	usr, err := cli.userSvc.GetByUsernameOrEmail(ctx, uname)
	if err != nil {
		return err
	}
	_, err = cli.userSvc.ResetPassword(ctx, usr, pwd)
	return err
}

func (cli *commandLine) migrate(ctx context.Context, args []string) error {
	if cli.db == nil {
		return errNoDB
	}
	return migrateFunc(ctx, cli.db, args[0], args[1:]...)
}
