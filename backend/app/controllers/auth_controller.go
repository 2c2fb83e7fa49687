package controllers

import (
	"encoding/json"
	"net/http"

	"github.com/AndrewArto/laundropi-control-sub000/backend/app/dto"
	jwtutil "github.com/AndrewArto/laundropi-control-sub000/backend/app/jwt"
	"github.com/AndrewArto/laundropi-control-sub000/backend/app/services"
	"github.com/AndrewArto/laundropi-control-sub000/backend/global"
)

type AuthController struct {
	Users  *services.UserService
	Signer *jwtutil.Signer
}

func NewAuthController(users *services.UserService, signer *jwtutil.Signer) *AuthController {
	return &AuthController{Users: users, Signer: signer}
}

// Login handles POST /login.
func (c *AuthController) Login(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	user, err := c.Users.ValidateCredentials(req.Username, req.Password)
	if err != nil {
		global.Logger.Warn().Str("user", req.Username).Msg("login rejected")
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	token, err := c.Signer.Sign(user.ID, user.Username, user.Role)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(dto.LoginResponse{Token: token, Role: user.Role})
}
