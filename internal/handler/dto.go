package handler

import (
	"time"

	"github.com/iliyamo/identity-service/internal/model"
)

// ----- request bodies -----

type registerReq struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,strongpassword"`
	FullName string `json:"fullName" validate:"required,fullname"`
}

type loginReq struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type refreshReq struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

type resendOTPReq struct {
	Email string `json:"email" validate:"required,email"`
}

type activateReq struct {
	Email string `json:"email" validate:"required,email"`
	OTP   string `json:"otp" validate:"required,len=6,numeric"`
}

type updateProfileReq struct {
	FullName  string `json:"fullName" validate:"omitempty,fullname"`
	Phone     string `json:"phone" validate:"omitempty,max=32"`
	Address   string `json:"address" validate:"omitempty,max=255"`
	AvatarURL string `json:"avatarUrl" validate:"omitempty,url,max=512"`
}

// ----- response bodies -----

type userResp struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	FullName    string    `json:"fullName"`
	Phone       string    `json:"phone,omitempty"`
	Address     string    `json:"address,omitempty"`
	AvatarURL   string    `json:"avatarUrl,omitempty"`
	Role        string    `json:"role"`
	Status      string    `json:"status"`
	Authorities []string  `json:"authorities"`
	CreatedAt   time.Time `json:"createdAt"`
}

func toUserResp(u *model.User) userResp {
	return userResp{
		ID:          u.ID,
		Email:       u.Email,
		FullName:    u.FullName,
		Phone:       u.Phone,
		Address:     u.Address,
		AvatarURL:   u.AvatarURL,
		Role:        string(u.Role),
		Status:      string(u.Status),
		Authorities: u.Role.Authorities(),
		CreatedAt:   u.CreatedAt,
	}
}

type loginResp struct {
	AccessToken      string    `json:"accessToken"`
	RefreshToken     string    `json:"refreshToken"`
	AccessExpiresAt  time.Time `json:"accessTokenExpiresAt"`
	RefreshExpiresAt time.Time `json:"refreshTokenExpiresAt"`
	User             userResp  `json:"user"`
}
