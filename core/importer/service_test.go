package importer

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/pathways/core"
	"github.com/trezcool/pathways/core/branch"
	"github.com/trezcool/pathways/core/catalog"
	"github.com/trezcool/pathways/core/user"
	"github.com/trezcool/pathways/storage/database/inmem"
	"github.com/trezcool/pathways/tests"
)

type countingProvider struct {
	user.IdentityProvider
	calls int
}

func (p *countingProvider) CreateIdentity(ctx context.Context, nu user.NewUser) (user.User, error) {
	p.calls++
	return p.IdentityProvider.CreateIdentity(ctx, nu)
}

type fixture struct {
	svc        *Service
	catalogSvc *catalog.Service
	branchRepo branch.Repository
	userRepo   user.Repository
	identities *countingProvider
}

func setup(t *testing.T, opts Options) *fixture {
	t.Helper()
	db := inmemdb.Open()
	catalogRepo := inmemdb.NewCatalogRepository(db)
	branchRepo := inmemdb.NewBranchRepository(db)
	userRepo := inmemdb.NewUserRepository(db)

	validate, translator := testutil.NewValidator()
	InitValidators(validate, translator)

	catalogSvc := catalog.NewService(catalogRepo)
	userSvc := user.NewService(userRepo, branchRepo, validate)
	identities := &countingProvider{IdentityProvider: userSvc}
	svc := NewService(Deps{
		CatalogSvc: catalogSvc,
		BranchSvc:  branch.NewService(branchRepo),
		Identities: identities,
		Users:      userSvc,
		Validate:   validate,
		Translator: translator,
	}, opts)

	return &fixture{
		svc:        svc,
		catalogSvc: catalogSvc,
		branchRepo: branchRepo,
		userRepo:   userRepo,
		identities: identities,
	}
}

func TestImport_Materials(t *testing.T) {
	ctx := context.Background()
	f := setup(t, Options{})

	rep, err := f.svc.Import(ctx, KindMaterials, ""+
		"path,category,material name,type,url\n"+
		"Sales,Basics,Intro Video,video,https://x/v1\n"+
		"Sales,Basics,Intro Doc,document,https://x/d1\n"+
		"Parts,Inventory,Guide,document,\n")
	require.NoError(t, err)
	assert.Equal(t, 3, rep.Succeeded)
	assert.Equal(t, 0, rep.Failed)
	assert.Empty(t, rep.Messages())

	tree, err := f.catalogSvc.Tree(ctx)
	require.NoError(t, err)
	require.Len(t, tree, 2)
	assert.Equal(t, 2, catalog.NumCategories(tree))

	parts, sales := tree[0], tree[1]
	assert.Equal(t, "Parts", parts.Name)
	assert.Equal(t, "Sales", sales.Name)
	require.Len(t, sales.Categories, 1)
	assert.Equal(t, "Basics", sales.Categories[0].Name)
	require.Len(t, sales.Categories[0].Materials, 2)
	assert.Equal(t, "Intro Doc", sales.Categories[0].Materials[0].Name)
	assert.Equal(t, catalog.MaterialDocument, sales.Categories[0].Materials[0].Type)
	assert.Equal(t, "Intro Video", sales.Categories[0].Materials[1].Name)
	assert.Equal(t, catalog.MaterialVideo, sales.Categories[0].Materials[1].Type)
	assert.Equal(t, "https://x/v1", sales.Categories[0].Materials[1].URL)

	require.Len(t, parts.Categories, 1)
	require.Len(t, parts.Categories[0].Materials, 1)
	assert.Equal(t, "", parts.Categories[0].Materials[0].URL)
}

func TestImport_MaterialsReusesParents(t *testing.T) {
	ctx := context.Background()
	f := setup(t, Options{})

	rep, err := f.svc.Import(ctx, KindMaterials, ""+
		"path,category,material name\n"+
		"Sales,Basics,One\n"+
		"Sales,Basics,Two\n")
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Succeeded)

	// a second import finds the existing path and category
	rep, err = f.svc.Import(ctx, KindMaterials, "path,category,material\nSales,Basics,Three\nSales,Advanced,Four\n")
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Succeeded)

	tree, err := f.catalogSvc.Tree(ctx)
	require.NoError(t, err)
	require.Len(t, tree, 1)
	require.Len(t, tree[0].Categories, 2)
	assert.Equal(t, "Advanced", tree[0].Categories[0].Name)
	assert.Len(t, tree[0].Categories[0].Materials, 1)
	assert.Equal(t, "Basics", tree[0].Categories[1].Name)
	assert.Len(t, tree[0].Categories[1].Materials, 3)
}

func TestImport_MaterialType(t *testing.T) {
	tests := []struct {
		name     string
		fallback catalog.MaterialType
		typ      string
		want     catalog.MaterialType
	}{
		{name: "missing type, default fallback", typ: "", want: catalog.MaterialDocument},
		{name: "missing type, configured fallback", fallback: catalog.MaterialLink, typ: "", want: catalog.MaterialLink},
		{name: "unknown type", fallback: catalog.MaterialLink, typ: "podcast", want: catalog.MaterialLink},
		{name: "invalid fallback", fallback: "podcast", typ: "", want: catalog.MaterialDocument},
		{name: "case-insensitive", typ: "VIDEO", want: catalog.MaterialVideo},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			f := setup(t, Options{DefaultMaterialType: tt.fallback})

			rep, err := f.svc.Import(ctx, KindMaterials, "path,category,material name,type\nP,C,M,"+tt.typ+"\n")
			require.NoError(t, err)
			require.Equal(t, 1, rep.Succeeded)

			tree, err := f.catalogSvc.Tree(ctx)
			require.NoError(t, err)
			mat := tree[0].Categories[0].Materials[0]
			assert.Equal(t, tt.want, mat.Type)
			assert.Equal(t, "", mat.URL)
		})
	}
}

func TestImport_MaterialsRejectedRows(t *testing.T) {
	ctx := context.Background()
	f := setup(t, Options{})

	rep, err := f.svc.Import(ctx, KindMaterials, ""+
		"path,category,material name\n"+
		",Basics,One\n"+
		"Sales,,Two\n"+
		"Sales,Basics,\n"+
		"Sales,Basics,Three\n")
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Succeeded)
	assert.Equal(t, 3, rep.Failed)
	assert.Equal(t, []string{
		"line 2: path: this field is required",
		"line 3: category: this field is required",
		"line 4: material name: this field is required",
	}, rep.Errors)
}

func TestImport_Branches(t *testing.T) {
	ctx := context.Background()
	f := setup(t, Options{})

	var sb strings.Builder
	sb.WriteString("Branch Name,Region\n")
	n := 7
	for i := 0; i < n; i++ {
		_, _ = fmt.Fprintf(&sb, "Branch %d,Region %d\n", i, i%2)
	}
	sb.WriteString("\"Acme, Inc\",\n")

	rep, err := f.svc.Import(ctx, KindBranches, sb.String())
	require.NoError(t, err)
	assert.Equal(t, n+1, rep.Succeeded)

	branches, err := f.branchRepo.QueryBranches(ctx)
	require.NoError(t, err)
	require.Len(t, branches, n+1)
	ids := make(map[string]bool, len(branches))
	for _, b := range branches {
		ids[b.ID] = true
	}
	assert.Len(t, ids, n+1)
	assert.Equal(t, "Acme, Inc", branches[0].Name)
	assert.Equal(t, "", branches[0].Region)
	assert.Equal(t, "", branches[0].ManagerID)
}

func TestImport_BranchesDuplicateName(t *testing.T) {
	ctx := context.Background()
	f := setup(t, Options{})

	rep, err := f.svc.Import(ctx, KindBranches, "branch name,region\nDowntown,North\nDowntown,South\n,East\n")
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Succeeded)
	assert.Equal(t, []string{
		"line 3: " + branch.ErrNameExists.Error(),
		"line 4: branch name: this field is required",
	}, rep.Errors)
}

func TestImport_Users(t *testing.T) {
	ctx := context.Background()
	f := setup(t, Options{LoginDomain: "training.local"})
	downtown := testutil.CreateBranch(t, f.branchRepo, "Downtown", "North")

	rep, err := f.svc.Import(ctx, KindUsers, ""+
		"name,username,password,role,branch\n"+
		"Alice Smith,Alice,"+testutil.StrongPassword+",Staff,Downtown\n"+
		"Bob Stone,bob@corp.com,"+testutil.StrongPassword+",manager,Downtown\n"+
		"Ada Lee,ada,"+testutil.StrongPassword+",admin,Downtown\n")
	require.NoError(t, err)
	assert.Equal(t, 3, rep.Succeeded, rep.Errors)
	assert.Equal(t, 3, f.identities.calls)

	alice, err := f.userRepo.GetUser(ctx, user.GetFilter{Username: "alice"})
	require.NoError(t, err)
	assert.Equal(t, "alice@training.local", alice.Email)
	assert.Equal(t, user.RoleStaff, alice.Role)
	assert.Equal(t, downtown.ID, alice.BranchID)
	assert.True(t, alice.IsActive)
	assert.NoError(t, alice.CheckPassword(testutil.StrongPassword))

	bob, err := f.userRepo.GetUser(ctx, user.GetFilter{Username: "bob@corp.com"})
	require.NoError(t, err)
	assert.Equal(t, "bob@corp.com", bob.Email)
	assert.Equal(t, user.RoleManager, bob.Role)

	ada, err := f.userRepo.GetUser(ctx, user.GetFilter{Username: "ada"})
	require.NoError(t, err)
	assert.Equal(t, user.RoleAdmin, ada.Role)
	assert.Equal(t, "", ada.BranchID)
}

func TestImport_UsersMissingBranch(t *testing.T) {
	ctx := context.Background()
	f := setup(t, Options{})

	rep, err := f.svc.Import(ctx, KindUsers, "name,username,password,role\nAlice Smith,alice,"+testutil.StrongPassword+",staff\n")
	require.NoError(t, err)
	assert.Equal(t, 0, rep.Succeeded)
	assert.Equal(t, 1, rep.Failed)
	require.Len(t, rep.Errors, 1)
	assert.Contains(t, rep.Errors[0], "branch")
	assert.Equal(t, 0, f.identities.calls)

	users, err := f.userRepo.QueryUsers(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, users)
}

func TestImport_UsersRejected(t *testing.T) {
	ctx := context.Background()
	f := setup(t, Options{})

	rep, err := f.svc.Import(ctx, KindUsers, ""+
		"name,username,password,role,branch\n"+
		"Olive Owens,olive,"+testutil.StrongPassword+",owner,Downtown\n"+
		"Stan Marsh,stan,"+testutil.StrongPassword+",staff,Unknown Branch\n")
	require.NoError(t, err)
	assert.Equal(t, 0, rep.Succeeded)
	assert.Equal(t, 2, rep.Failed)
	require.Len(t, rep.Errors, 2)
	assert.NotEqual(t, rep.Errors[0], rep.Errors[1])
	assert.Equal(t, "line 2: role: invalid role", rep.Errors[0])
	assert.Contains(t, rep.Errors[1], "Unknown Branch")
	assert.Contains(t, rep.Errors[1], branch.ErrNotFound.Error())
	assert.Equal(t, 0, f.identities.calls)
}

func TestImport_UsersProviderFailures(t *testing.T) {
	ctx := context.Background()
	f := setup(t, Options{})
	testutil.CreateBranch(t, f.branchRepo, "Downtown", "")

	rep, err := f.svc.Import(ctx, KindUsers, ""+
		"name,username,password,role,branch\n"+
		"Alice Smith,alice,"+testutil.StrongPassword+",staff,Downtown\n"+
		"Alice Again,alice,"+testutil.StrongPassword+",staff,Downtown\n"+
		"Weak Will,will,12345678,staff,Downtown\n")
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Succeeded)
	assert.Equal(t, 2, rep.Failed)
	assert.Equal(t, 3, f.identities.calls)
	assert.Equal(t, []string{
		"line 3: " + user.ErrUsernameExists.Error(),
		"line 4: password: password cannot be entirely numeric",
	}, rep.Errors)
}

func TestImport_ReportCap(t *testing.T) {
	ctx := context.Background()
	f := setup(t, Options{MaxErrors: 3})

	var sb strings.Builder
	sb.WriteString("path,category,material name\n")
	for i := 0; i < 8; i++ {
		sb.WriteString(",,x\n")
	}
	rep, err := f.svc.Import(ctx, KindMaterials, sb.String())
	require.NoError(t, err)
	assert.Equal(t, 8, rep.Failed)
	assert.Len(t, rep.Errors, 3)
	assert.Equal(t, 5, rep.More)
	msgs := rep.Messages()
	assert.Equal(t, "+5 more", msgs[len(msgs)-1])
}

func TestImport_OnRowAndCancel(t *testing.T) {
	f := setup(t, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var seen []Outcome
	ctx = WithOnRow(ctx, func(o Outcome) {
		seen = append(seen, o)
		if len(seen) == 2 {
			cancel()
		}
	})

	rep, err := f.svc.Import(ctx, KindBranches, "branch name\nA\nB\nC\nD\n")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 2, rep.Succeeded)
	require.Len(t, seen, 2)
	assert.Equal(t, 2, seen[0].Line)
	assert.True(t, seen[1].OK())

	branches, err := f.branchRepo.QueryBranches(context.Background())
	require.NoError(t, err)
	assert.Len(t, branches, 2)
}

func TestImport_Fatal(t *testing.T) {
	tests := []struct {
		name    string
		kind    Kind
		text    string
		wantErr error
	}{
		{name: "empty", kind: KindBranches, text: "", wantErr: ErrNoRows},
		{name: "header only", kind: KindBranches, text: "branch name,region\n", wantErr: ErrNoRows},
		{name: "unknown kind", kind: "courses", text: "name\nx\n", wantErr: ErrUnknownKind},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setup(t, Options{})
			rep, err := f.svc.Import(context.Background(), tt.kind, tt.text)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, Report{}, rep)
		})
	}

	t.Run("unterminated quote", func(t *testing.T) {
		f := setup(t, Options{})
		rep, err := f.svc.Import(context.Background(), KindBranches, "branch name\n\"Downtown\n")
		var pe *ParseError
		assert.ErrorAs(t, err, &pe)
		assert.Equal(t, Report{}, rep)

		branches, err := f.branchRepo.QueryBranches(context.Background())
		require.NoError(t, err)
		assert.Empty(t, branches)
	})
}

func TestParseKind(t *testing.T) {
	for _, s := range []string{"materials", " Branches ", "USERS"} {
		_, err := ParseKind(s)
		assert.NoError(t, err, s)
	}
	_, err := ParseKind("paths")
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestImport_StrayQuotes(t *testing.T) {
	ctx := context.Background()
	f := setup(t, Options{})

	rep, err := f.svc.Import(ctx, KindBranches, ""+
		"branch name,region\n"+
		"\"Acme, Inc\" ,North\n"+
		"O\"Brien Store,South\n")
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Succeeded)
	assert.Equal(t, 0, rep.Failed)

	branches, err := f.branchRepo.QueryBranches(ctx)
	require.NoError(t, err)
	require.Len(t, branches, 2)
	assert.Equal(t, "Acme, Inc", branches[0].Name)
	assert.Equal(t, `O"Brien Store`, branches[1].Name)
}

func TestImport_MatchesUnnormalizedNames(t *testing.T) {
	ctx := context.Background()
	f := setup(t, Options{})

	// decomposed form, as sent by some clients
	path, err := f.catalogSvc.CreatePath(ctx, catalog.NewPath{Name: "Cafe\u0301"})
	require.NoError(t, err)
	assert.Equal(t, "Caf\u00e9", path.Name)

	rep, err := f.svc.Import(ctx, KindMaterials, "path,category,material name\nCaf\u00e9,Basics,Menu\nCafe\u0301,Basics,Prices\n")
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Succeeded)

	tree, err := f.catalogSvc.Tree(ctx)
	require.NoError(t, err)
	require.Len(t, tree, 1)
	assert.Equal(t, path.ID, tree[0].ID)
	require.Len(t, tree[0].Categories, 1)
	assert.Len(t, tree[0].Categories[0].Materials, 2)
}

type mailRecorder struct {
	sent []*core.EmailMessage
}

func (m *mailRecorder) SendMessages(messages ...*core.EmailMessage) {
	m.sent = append(m.sent, messages...)
}

func TestImport_MailsReport(t *testing.T) {
	ctx := context.Background()
	f := setup(t, Options{MaxErrors: 1, ReportRecipients: core.ParseAddresses("admin@training.local")})
	mails := new(mailRecorder)
	f.svc.deps.MailSvc = mails

	rep, err := f.svc.Import(ctx, KindBranches, "branch name\nDowntown\nDowntown\n\nDowntown\n")
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Succeeded)
	assert.Equal(t, 2, rep.Failed)

	require.Len(t, mails.sent, 1)
	msg := mails.sent[0]
	assert.Equal(t, "branches import report", msg.Subject)
	assert.Equal(t, "admin@training.local", msg.To[0].Address)
	assert.Equal(t, ""+
		"branches import: 1 succeeded, 2 failed\n"+
		"  line 3: a branch with this name already exists\n"+
		"  +1 more\n", msg.BodyStr)

	// the attachment lists every failure, beyond the cap
	require.Len(t, msg.Attachments, 1)
	at := msg.Attachments[0]
	assert.Equal(t, "branches-import-failures.csv", at.Filename)
	assert.Equal(t, "text/csv", at.ContentType)
	content, err := base64.StdEncoding.DecodeString(at.Content.String())
	require.NoError(t, err)
	assert.Equal(t, ""+
		"line,reason\n"+
		"3,a branch with this name already exists\n"+
		"5,a branch with this name already exists\n", string(content))

	t.Run("no failures, no attachment", func(t *testing.T) {
		mails.sent = nil
		_, err := f.svc.Import(ctx, KindBranches, "branch name\nUptown\n")
		require.NoError(t, err)
		require.Len(t, mails.sent, 1)
		assert.Empty(t, mails.sent[0].Attachments)
	})
}
