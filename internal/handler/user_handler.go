package handler

import (
	"net/http"

	"firebase.google.com/go/v4/auth"
	"github.com/labstack/echo/v4"
	"github.com/shinyyama/barter-backend/internal/service"
)

type UserHandler struct {
	authClient *auth.Client
	users      service.UserService
}

// NewUserHandler accepts a nil auth client; profiles then come from the users table only.
func NewUserHandler(client *auth.Client, users service.UserService) *UserHandler {
	return &UserHandler{authClient: client, users: users}
}

type PublicUserResponse struct {
	UID         string  `json:"uid"`
	DisplayName string  `json:"displayName"`
	PhotoURL    *string `json:"photoURL"`
}

func (h *UserHandler) GetPublic(c echo.Context) error {
	uid := c.Param("uid")
	if uid == "" {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid uid"))
	}
	ctx := c.Request().Context()
	if h.authClient != nil {
		if user, err := h.authClient.GetUser(ctx, uid); err == nil {
			return c.JSON(http.StatusOK, PublicUserResponse{
				UID:         user.UID,
				DisplayName: user.DisplayName,
				PhotoURL:    strPtrOrNil(user.PhotoURL),
			})
		}
	}
	u, err := h.users.Get(ctx, uid)
	if err != nil {
		return writeServiceError(c, err, "failed to fetch user")
	}
	return c.JSON(http.StatusOK, PublicUserResponse{UID: u.UID, DisplayName: u.DisplayName, PhotoURL: u.PhotoURL})
}

func strPtrOrNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
