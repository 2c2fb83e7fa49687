package controllers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/AndrewArto/laundropi-control-sub000/backend/app/dto"
	jwtutil "github.com/AndrewArto/laundropi-control-sub000/backend/app/jwt"
	"github.com/AndrewArto/laundropi-control-sub000/backend/app/models"
	"github.com/AndrewArto/laundropi-control-sub000/backend/app/repo"
	"github.com/AndrewArto/laundropi-control-sub000/backend/app/services"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newAuthController(t *testing.T) *AuthController {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := gdb.AutoMigrate(&models.User{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	users := services.NewUserService(repo.NewUserRepository(gdb))
	if err := users.EnsureAdmin("admin", "hunter2"); err != nil {
		t.Fatalf("ensure admin: %v", err)
	}
	signer := &jwtutil.Signer{Secret: []byte("test-secret"), Issuer: "hub", ExpMin: 60}
	return NewAuthController(users, signer)
}

func postLogin(c *AuthController, req dto.LoginRequest) *httptest.ResponseRecorder {
	body, _ := json.Marshal(req)
	r := httptest.NewRequest(http.MethodPost, "/login", bytes.NewReader(body))
	w := httptest.NewRecorder()
	c.Login(w, r)
	return w
}

func TestLoginIssuesVerifiableToken(t *testing.T) {
	c := newAuthController(t)

	w := postLogin(c, dto.LoginRequest{Username: "admin", Password: "hunter2"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp dto.LoginResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Role != "admin" {
		t.Errorf("role = %q, want admin", resp.Role)
	}
	claims, err := c.Signer.Parse(resp.Token)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if claims.Username != "admin" || claims.Role != "admin" {
		t.Errorf("claims = %+v, want admin/admin", claims)
	}
}

func TestLoginRejectsBadPassword(t *testing.T) {
	c := newAuthController(t)

	w := postLogin(c, dto.LoginRequest{Username: "admin", Password: "wrong"})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestLoginRejectsEmptyUsername(t *testing.T) {
	c := newAuthController(t)

	w := postLogin(c, dto.LoginRequest{Password: "hunter2"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}
