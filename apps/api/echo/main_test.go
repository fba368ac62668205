package echoapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	echoapi "github.com/occupeye/backend/apps/api/echo"
	"github.com/occupeye/backend/core"
	"github.com/occupeye/backend/core/access"
	"github.com/occupeye/backend/core/application"
	"github.com/occupeye/backend/core/housing"
	"github.com/occupeye/backend/core/notification"
	"github.com/occupeye/backend/core/user"
	emailsvc "github.com/occupeye/backend/services/email"
	logsvc "github.com/occupeye/backend/services/logger"
	dummydb "github.com/occupeye/backend/storage/database/dummy"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type testFixture struct {
	conf       *core.Config
	db         *dummydb.DB
	usrRepo    user.Repository
	accessRepo access.Repository
	usrSvc     user.Service
	housingSvc housing.Service
	appSvc     application.Service
	notifSvc   notification.Service
	recorder   access.Recorder
	logger     core.Logger
	server     echoapi.Server
}

func setup(t *testing.T) *testFixture {
	t.Helper()

	conf := core.NewConfig("test")
	conf.Debug = false
	conf.TestMode = true

	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("dummydb.Open() failed, %v", err)
	}

	logger := logsvc.NewStdLogger(log.New(io.Discard, "", 0))
	mailSvc := emailsvc.NewConsoleServiceMock(conf)

	usrRepo := dummydb.NewUserRepository(db)
	housingRepo := dummydb.NewHousingRepository(db)
	appRepo := dummydb.NewApplicationRepository(db)
	accessRepo := dummydb.NewAccessRepository(db)
	notifRepo := dummydb.NewNotificationRepository(db)

	usrSvc := user.NewServiceMock(conf, usrRepo, mailSvc, logger)
	housingSvc := housing.NewService(housingRepo, logger)
	notifSvc := notification.NewService(conf, notifRepo, mailSvc, logger)
	appSvc := application.NewService(appRepo, usrSvc, housingSvc, notifSvc, logger)
	recorder := access.NewRecorder(accessRepo, usrSvc, housingSvc, notifSvc, logger)

	validate, translator := core.NewValidator()
	user.RegisterValidators(validate, translator)

	fix := &testFixture{
		conf:       conf,
		db:         db,
		usrRepo:    usrRepo,
		accessRepo: accessRepo,
		usrSvc:     usrSvc,
		housingSvc: housingSvc,
		appSvc:     appSvc,
		notifSvc:   notifSvc,
		recorder:   recorder,
		logger:     logger,
	}
	fix.server = echoapi.NewServer(
		echoapi.ServerDeps{
			Conf:            conf,
			Logger:          logger,
			UserSvc:         usrSvc,
			HousingSvc:      housingSvc,
			ApplicationSvc:  appSvc,
			NotificationSvc: notifSvc,
			Recorder:        recorder,
			Validate:        validate,
			Translator:      translator,
			DisableReqLogs:  true,
		},
	)
	return fix
}

// newServerWithRecorder rebuilds the server around an alternate recorder,
// sharing the fixture's stores and services.
func (fix *testFixture) newServerWithRecorder(rec access.Recorder) echoapi.Server {
	validate, translator := core.NewValidator()
	user.RegisterValidators(validate, translator)
	return echoapi.NewServer(
		echoapi.ServerDeps{
			Conf:            fix.conf,
			Logger:          fix.logger,
			UserSvc:         fix.usrSvc,
			HousingSvc:      fix.housingSvc,
			ApplicationSvc:  fix.appSvc,
			NotificationSvc: fix.notifSvc,
			Recorder:        rec,
			Validate:        validate,
			Translator:      translator,
			DisableReqLogs:  true,
		},
	)
}

func (fix *testFixture) createUser(t *testing.T, fname, uname, pwd string, roles []string, opts ...func(*user.User)) user.User {
	t.Helper()

	now := time.Now().UTC()
	usr := user.User{
		FirstName: fname,
		LastName:  "Doe",
		Username:  uname,
		Email:     uname + "@test.cd",
		Roles:     roles,
		CreatedAt: now,
		UpdatedAt: now,
	}
	usr.SetActive(true)
	if err := usr.SetPassword(pwd); err != nil {
		t.Fatalf("SetPassword() failed, %v", err)
	}
	for _, opt := range opts {
		opt(&usr)
	}
	usr, err := fix.usrRepo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed, %v", err)
	}
	return usr
}

func (fix *testFixture) createDorm(t *testing.T, name string, capacity int) housing.Dorm {
	t.Helper()

	dorm, err := fix.housingSvc.CreateDorm(context.Background(), housing.NewDorm{Name: name, Capacity: capacity})
	if err != nil {
		t.Fatalf("CreateDorm() failed, %v", err)
	}
	return dorm
}

func (fix *testFixture) createRoom(t *testing.T, dormID, number string, capacity int) housing.Room {
	t.Helper()

	room, err := fix.housingSvc.CreateRoom(context.Background(), housing.NewRoom{Number: number, DormID: dormID, Capacity: capacity})
	if err != nil {
		t.Fatalf("CreateRoom() failed, %v", err)
	}
	return room
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
	extra    interface{}
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

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func getToken(t *testing.T, conf *core.Config, usr user.User) string {
	t.Helper()

	claims := echoapi.GetUserClaims(conf, usr)
	token, err := echoapi.GenerateToken(conf, claims)
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	t.Helper()

	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	if j1 == nil || j2 == nil {
		return false, nil
	}
	return assert.ObjectsAreEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()

	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}
