package echoapi_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	. "github.com/trezcool/pathways/apps/api/echo"
	"github.com/trezcool/pathways/core"
	"github.com/trezcool/pathways/core/branch"
	"github.com/trezcool/pathways/core/catalog"
	"github.com/trezcool/pathways/core/importer"
	"github.com/trezcool/pathways/core/progress"
	"github.com/trezcool/pathways/core/user"
	logsvc "github.com/trezcool/pathways/services/logger"
	"github.com/trezcool/pathways/storage/database/inmem"
	"github.com/trezcool/pathways/tests"
)

const (
	appName   = "Pathways"
	secretKey = "test-secret"
)

type env struct {
	server     Server
	userRepo   user.Repository
	branchRepo branch.Repository
	catalogSvc *catalog.Service
}

func setup(t *testing.T) *env {
	t.Helper()

	// set up DB & repos
	db := inmemdb.Open()
	userRepo := inmemdb.NewUserRepository(db)
	branchRepo := inmemdb.NewBranchRepository(db)
	catalogRepo := inmemdb.NewCatalogRepository(db)
	progressRepo := inmemdb.NewProgressRepository(db)

	// set up services
	conf := &core.Config{Env: "TEST", TestMode: true, AppName: appName}
	logger := logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), conf)
	validate, translator := testutil.NewValidator()
	importer.InitValidators(validate, translator)

	catalogSvc := catalog.NewService(catalogRepo)
	branchSvc := branch.NewService(branchRepo)
	userSvc := user.NewService(userRepo, branchRepo, validate)
	importSvc := importer.NewService(importer.Deps{
		CatalogSvc: catalogSvc,
		BranchSvc:  branchSvc,
		Identities: userSvc,
		Users:      userSvc,
		Validate:   validate,
		Translator: translator,
		Logger:     logger,
	}, importer.Options{LoginDomain: "training.local"})

	// set up server
	srv := NewServer(
		Options{
			AppName:        appName,
			TestMode:       true,
			DisableReqLogs: true,
			SecretKey:      secretKey,
		},
		ServerDeps{
			Logger:      logger,
			Validate:    validate,
			Translator:  translator,
			CatalogSvc:  catalogSvc,
			BranchSvc:   branchSvc,
			UserSvc:     userSvc,
			ProgressSvc: progress.NewService(progressRepo, catalogSvc, userSvc),
			ImportSvc:   importSvc,
		},
	)
	return &env{server: srv, userRepo: userRepo, branchRepo: branchRepo, catalogSvc: catalogSvc}
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func getToken(t *testing.T, usr user.User) string {
	t.Helper()
	token, err := GenerateToken(GetUserClaims(usr, appName, time.Hour), secretKey)
	require.NoError(t, err)
	return token
}

func marshalObj(t *testing.T, obj interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(obj)
	require.NoError(t, err)
	return data
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	require.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
	if tt.wantData != nil {
		require.JSONEq(t, string(tt.wantData), rec.Body.String())
	}
}

func runHTTPTests(t *testing.T, srv Server, tests []httpTest) {
	t.Helper()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			srv.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func createUser(t *testing.T, e *env, name, uname string, role user.Role, branchID string) user.User {
	t.Helper()
	return testutil.CreateUser(t, e.userRepo, name, uname, uname+"@training.local", testutil.StrongPassword, role, branchID)
}
