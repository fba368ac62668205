package echoapi_test

import (
	"encoding/json"
	"net/http"
	"testing"

	echoapi "github.com/occupeye/backend/apps/api/echo"
	"github.com/occupeye/backend/core/user"
)

func TestUserLogin(t *testing.T) {
	fix := setup(t)

	usr := fix.createUser(t, "Jane", "janedoe", "s3cret", user.StudentRoles)

	inactive := fix.createUser(t, "Gone", "gonedoe", "s3cret", user.StudentRoles, func(u *user.User) {
		u.SetActive(false)
	})

	tests := []httpTest{
		{
			name:     "empty body",
			body:     []byte(`{}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{
				"username": "this field is required",
				"password": "this field is required",
			}),
		},
		{
			name:     "unknown user",
			body:     marchallObj(t, echoapi.LoginRequest{Username: "ghost", Password: "lol"}),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name:     "wrong password",
			body:     marchallObj(t, echoapi.LoginRequest{Username: usr.Username, Password: "wrong"}),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name:     "deactivated account",
			body:     marchallObj(t, echoapi.LoginRequest{Username: inactive.Username, Password: "s3cret"}),
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "account deactivated"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(http.MethodPost, "/v1/users/login", tt.body)
			fix.server.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("login ok", func(t *testing.T) {
		body := marchallObj(t, echoapi.LoginRequest{Username: usr.Username, Password: "s3cret"})
		req, rec := newRequest(http.MethodPost, "/v1/users/login", body)
		fix.server.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %d; body %s", rec.Code, rec.Body.String())
		}
		var res echoapi.LoginResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
			t.Fatalf("unmarshal failed, %v", err)
		}
		if res.Token == "" {
			t.Error("empty token")
		}

		// email is accepted in place of the username
		body = marchallObj(t, echoapi.LoginRequest{Username: usr.Email, Password: "s3cret"})
		req, rec = newRequest(http.MethodPost, "/v1/users/login", body)
		fix.server.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %d; body %s", rec.Code, rec.Body.String())
		}
	})
}

func TestUserDetail(t *testing.T) {
	fix := setup(t)

	student := fix.createUser(t, "Jane", "janedoe", "s3cret", user.StudentRoles)
	other := fix.createUser(t, "John", "johndoe", "s3cret", user.StudentRoles)
	admin := fix.createUser(t, "Ada", "adadoe", "s3cret", user.AdminRoles)

	studentToken := getToken(t, fix.conf, student)
	adminToken := getToken(t, fix.conf, admin)

	tests := []httpTest{
		{
			name:     "requires auth",
			path:     "/v1/users/" + student.ID,
			wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, errMissingToken),
		},
		{
			name:     "own record ok",
			path:     "/v1/users/" + student.ID,
			token:    studentToken,
			wantCode: http.StatusOK,
			wantData: marchallObj(t, student),
		},
		{
			name:     "other's record hidden",
			path:     "/v1/users/" + other.ID,
			token:    studentToken,
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: "not found"}),
		},
		{
			name:     "admin sees any record",
			path:     "/v1/users/" + other.ID,
			token:    adminToken,
			wantCode: http.StatusOK,
			wantData: marchallObj(t, other),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, tt.path, tt.token)
			fix.server.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func TestUserQuery_adminOnly(t *testing.T) {
	fix := setup(t)

	student := fix.createUser(t, "Jane", "janedoe", "s3cret", user.StudentRoles)
	admin := fix.createUser(t, "Ada", "adadoe", "s3cret", user.AdminRoles)

	t.Run("students forbidden", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/users", getToken(t, fix.conf, student))
		fix.server.ServeHTTP(rec, req)
		if rec.Code != http.StatusForbidden {
			t.Errorf("code = %d, want %d", rec.Code, http.StatusForbidden)
		}
	})

	t.Run("admin lists all", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/users", getToken(t, fix.conf, admin))
		fix.server.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %d; body %s", rec.Code, rec.Body.String())
		}
		var users []user.User
		if err := json.Unmarshal(rec.Body.Bytes(), &users); err != nil {
			t.Fatalf("unmarshal failed, %v", err)
		}
		if len(users) != 2 {
			t.Errorf("len = %d, want 2", len(users))
		}
	})

	t.Run("search filter", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/users?search=jane", getToken(t, fix.conf, admin))
		fix.server.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %d; body %s", rec.Code, rec.Body.String())
		}
		var users []user.User
		if err := json.Unmarshal(rec.Body.Bytes(), &users); err != nil {
			t.Fatalf("unmarshal failed, %v", err)
		}
		if len(users) != 1 || users[0].ID != student.ID {
			t.Errorf("unexpected result %+v", users)
		}
	})
}
