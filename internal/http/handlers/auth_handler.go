package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nicoiwnl/SGC-Maule/internal/http/middleware"
)

// LoginRequest carries the credentials checked by Login.
type LoginRequest struct {
	Username string `json:"username" binding:"required,max=150" example:"jperez"`
	Password string `json:"password" binding:"required,max=200" example:"s3cret-pass"`
}

// LoginResponse names the person to send as X-User-ID on later requests.
type LoginResponse struct {
	PersonID uint `json:"person_id" example:"4"`
}

// Login godoc
// @ID          login
// @Summary     Check credentials
// @Description Returns the person id bound to the user. No session is created.
// @Tags        Auth
// @Accept      json
// @Produce     json
// @Param       body  body  handlers.LoginRequest  true  "Credentials"
// @Success     200  {object} handlers.LoginResponse
// @Failure     400  {object} handlers.ErrorResponse "Invalid body"
// @Failure     401  {object} handlers.ErrorResponse "Bad credentials"
// @Router      /auth/login [post]
func (h *Handlers) Login(c *gin.Context) {
	var req LoginRequest
	if !bindJSON(c, &req) {
		return
	}
	id, err := h.auth.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		middleware.LoggerFrom(c).Info().Msg("login refused")
		mapServiceError(c, err)
		return
	}
	ok(c, http.StatusOK, LoginResponse{PersonID: id})
}

// Me godoc
// @ID          me
// @Summary     The resolved caller
// @Tags        Auth
// @Produce     json
// @Param       X-User-ID  header  int  true  "Person id of the caller"
// @Success     200  {object} domain.Actor
// @Failure     401  {object} handlers.ErrorResponse "Unknown person"
// @Router      /me [get]
func (h *Handlers) Me(c *gin.Context) {
	a, okA := actor(c)
	if !okA {
		return
	}
	ok(c, http.StatusOK, a)
}
