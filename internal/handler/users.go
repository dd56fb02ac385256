package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/kids-checkin/internal/config"
	"github.com/iliyamo/kids-checkin/internal/repository"
)

// UserHandler lets admins manage staff accounts.
type UserHandler struct {
	Cfg    config.Config
	Users  *repository.UserRepo
	Tokens *repository.TokenRepo
}

func NewUserHandler(cfg config.Config, u *repository.UserRepo, t *repository.TokenRepo) *UserHandler {
	return &UserHandler{Cfg: cfg, Users: u, Tokens: t}
}

type createUserReq struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=8,max=200"`
	Name     string `json:"name" validate:"max=255"`
	Role     string `json:"role" validate:"required,oneof=ADMIN VOLUNTEER"`
}

// Create handles POST /v1/users.
func (h *UserHandler) Create(c echo.Context) error {
	var req createUserReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	id, err := h.Users.Create(ctx, req.Email, req.Password, req.Name, req.Role, h.Cfg.BcryptCost)
	if err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "email already exists"})
		}
		return dbError(c, err)
	}
	u, err := h.Users.GetByID(ctx, id)
	if err != nil {
		return dbError(c, err)
	}
	return c.JSON(http.StatusCreated, u)
}

// List handles GET /v1/users.
func (h *UserHandler) List(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	items, err := h.Users.List(ctx)
	if err != nil {
		return dbError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// SetActive handles PATCH /v1/users/:id/active.  Admins cannot disable
// themselves.  Disabling ends the user's sessions; access tokens already
// issued run out on their own.
func (h *UserHandler) SetActive(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	var body struct {
		Active *bool `json:"active" validate:"required"`
	}
	if ok, err := bindValid(c, &body); !ok {
		return err
	}
	if me, err := getUserID(c); err == nil && me == id && !*body.Active {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "cannot deactivate yourself"})
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Users.SetActive(ctx, id, *body.Active); err != nil {
		return dbError(c, err)
	}
	if !*body.Active {
		if err := h.Tokens.RevokeAllForUser(ctx, id); err != nil {
			return dbError(c, err)
		}
	}
	u, err := h.Users.GetByID(ctx, id)
	if err != nil {
		return dbError(c, err)
	}
	return c.JSON(http.StatusOK, u)
}
