package echoapi

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	pkgerrors "github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/user"
)

var (
	errUsrNotFoundInCtx  = errors.New("user object not found in echo.Context")
	errNoPermsToSetRoles = "not enough rights to set these roles"
	errNotAdminRoles     = "only admin roles can be given to an admin account"
)

type userApi struct {
	*Server
}

func registerAuthAPI(g *echo.Group, jwt echo.MiddlewareFunc, s *Server) {
	api := userApi{Server: s}

	ag := g.Group("/auth")

	// un-authed endpoints
	ag.POST("/login", api.login)
	ag.POST("/password-reset", api.requestPasswordReset)
	ag.POST("/password-reset/confirm", api.resetPassword)

	// authed endpoints
	ag.POST("/token-refresh", api.refreshToken, jwt)
	ag.POST("/logout", api.logout, jwt)
}

func registerAdminAPI(g *echo.Group, jwt echo.MiddlewareFunc, s *Server) {
	api := userApi{Server: s}

	ag := g.Group("/admins", jwt, adminMiddleware())
	ag.GET("", api.query, adminMiddleware(user.RoleAdminOwner))
	ag.POST("", api.create, adminMiddleware(user.RoleAdminOwner))
	ag.GET("/roles", api.queryRoles)
	ag.GET("/dashboard/data", api.dashboardData)
	ag.GET("/dashboard/summary", api.dashboardSummary)

	// detail endpoints
	dg := ag.Group("/:id", adminObjectMiddleware(api.UserSvc))
	dg.GET("", api.retrieve)
	dg.PUT("", api.update, ownerOrSelfMiddleware())
	dg.PUT("/role", api.setRoles, adminMiddleware(user.RoleAdminOwner))
	dg.DELETE("", api.destroy, adminMiddleware(user.RoleAdminOwner))
}

// Handlers

func (api *userApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return pkgerrors.Wrap(err, "binding to LoginRequest")
	}
	if err := data.Validate(api.Validate); err != nil {
		return err
	}

	claims, err := authenticate(ctx.Request().Context(), api.Conf, data.login(), data.Password, api.UserSvc)
	if err != nil {
		return pkgerrors.Wrap(err, "authenticating")
	}
	token, err := GenerateToken(api.Conf, claims)
	if err != nil {
		return pkgerrors.Wrap(err, "generating token")
	}

	return ctx.JSON(http.StatusOK, LoginResponse{Token: token})
}

func (api *userApi) refreshToken(ctx echo.Context) error {
	token, err := refreshToken(ctx, api.Conf, api.UserSvc)
	if err != nil {
		return pkgerrors.Wrap(err, "refreshing token")
	}
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token})
}

// logout is stateless: clients drop their token.
func (api *userApi) logout(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "logged out"})
}

// requestPasswordReset answers the same whether the email has an account or not.
func (api *userApi) requestPasswordReset(ctx echo.Context) error {
	var data user.PasswordResetRequest
	if err := ctx.Bind(&data); err != nil {
		return pkgerrors.Wrap(err, "binding to PasswordResetRequest")
	}
	data.Email = core.CleanString(data.Email, true /* lower */)
	if err := api.Validate.Struct(data); err != nil {
		return err
	}

	if err := api.UserSvc.RequestPasswordReset(ctx.Request().Context(), data.Email); err != nil {
		return pkgerrors.Wrap(err, "requesting password reset")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "if the email has an account, a reset link was sent to it"})
}

func (api *userApi) resetPassword(ctx echo.Context) error {
	var data user.PasswordReset
	if err := ctx.Bind(&data); err != nil {
		return pkgerrors.Wrap(err, "binding to PasswordReset")
	}
	if err := data.Validate(api.Validate); err != nil {
		return err
	}

	usr, err := api.UserSvc.CheckResetToken(ctx.Request().Context(), data.UID, data.Token)
	if err != nil {
		return pkgerrors.Wrap(err, "checking reset token")
	}

	// the password policy compares the password against the user's attributes
	uu := user.UpdateUser{Password: data.Password, PasswordConfirm: data.PasswordConfirm}
	if err = uu.Validate(ctx.Request().Context(), usr, api.Validate, api.UserSvc); err != nil {
		return err
	}
	if usr, err = api.UserSvc.Update(ctx.Request().Context(), usr, uu); err != nil {
		return pkgerrors.Wrap(err, "resetting password")
	}

	api.Recorder.Record("Reset the password of account "+usr.Username, usr.Username)
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "password has been reset"})
}

func (api *userApi) create(ctx echo.Context) error {
	var data user.NewUser
	if err := ctx.Bind(&data); err != nil {
		return pkgerrors.Wrap(err, "binding to NewUser")
	}
	if len(data.Roles) == 0 {
		data.Roles = []string{user.RoleAdmin}
	}
	if err := data.Validate(ctx.Request().Context(), api.Validate, api.UserSvc); err != nil {
		return err
	}
	if err := api.checkRoles(ctx, data.Roles); err != nil {
		return err
	}

	usr, err := api.UserSvc.Create(ctx.Request().Context(), data)
	if err != nil {
		return pkgerrors.Wrap(err, "creating user")
	}

	api.record(ctx, fmt.Sprintf("Created admin account %s", usr.Username))
	return ctx.JSON(http.StatusCreated, usr)
}

// checkRoles refuses non admin roles and roles above the context user's own.
func (api *userApi) checkRoles(ctx echo.Context, roles []string) error {
	for _, role := range roles {
		if user.RolePriority(role) < user.RolePriority(user.RoleAdmin) {
			return core.NewValidationError(nil, core.FieldError{Field: "roles", Error: errNotAdminRoles})
		}
	}

	ctxUsr, err := getContextUser(ctx, api.UserSvc)
	if err != nil {
		return pkgerrors.Wrap(err, "getting context user")
	}
	if user.MaxRolePriority(roles) > user.MaxRolePriority(ctxUsr.Roles) {
		return core.NewValidationError(nil, core.FieldError{Field: "roles", Error: errNoPermsToSetRoles})
	}
	return nil
}

func (api *userApi) query(ctx echo.Context) error {
	filter := new(user.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []user.User{})
	}
	filter.Clean()
	if len(filter.Roles) == 0 {
		filter.Roles = []string{user.RoleAdmin}
	}
	ordering := new(Ordering)
	ordering.Bind(ctx, user.OrderingFields)

	users, err := api.UserSvc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return pkgerrors.Wrap(err, "querying users")
	}
	if users == nil {
		users = []user.User{}
	}
	return ctx.JSON(http.StatusOK, users)
}

func (api *userApi) queryRoles(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, user.Roles)
}

func (api *userApi) dashboardData(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.UserSvc)
	if err != nil {
		return pkgerrors.Wrap(err, "getting context user")
	}
	return ctx.JSON(http.StatusOK, DashboardData{Message: "Hello, " + usr.Name, AdminData: usr})
}

func (api *userApi) dashboardSummary(ctx echo.Context) error {
	sum, err := api.DashboardSvc.Summary(ctx.Request().Context())
	if err != nil {
		return pkgerrors.Wrap(err, "computing dashboard summary")
	}
	return ctx.JSON(http.StatusOK, sum)
}

func (api *userApi) retrieve(ctx echo.Context) error {
	usr, ok := ctx.Get("object").(user.User)
	if !ok {
		return pkgerrors.Wrap(errUsrNotFoundInCtx, "retrieving object from context")
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userApi) update(ctx echo.Context) error {
	usr, ok := ctx.Get("object").(user.User)
	if !ok {
		return pkgerrors.Wrap(errUsrNotFoundInCtx, "retrieving object from context")
	}

	var data user.UpdateUser
	if err := ctx.Bind(&data); err != nil {
		return pkgerrors.Wrap(err, "binding to UpdateUser")
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return pkgerrors.Wrap(err, "getting context claims")
	}
	// only the owner may (de)activate accounts
	if data.IsActive != nil && !claims.IsOwner() {
		return errHttpForbidden
	}

	if err := data.Validate(ctx.Request().Context(), usr, api.Validate, api.UserSvc); err != nil {
		return err
	}

	usr, err = api.UserSvc.Update(ctx.Request().Context(), usr, data)
	if err != nil {
		return pkgerrors.Wrap(err, "updating user")
	}

	api.record(ctx, fmt.Sprintf("Updated admin account %s", usr.Username))
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userApi) setRoles(ctx echo.Context) error {
	usr, ok := ctx.Get("object").(user.User)
	if !ok {
		return pkgerrors.Wrap(errUsrNotFoundInCtx, "retrieving object from context")
	}

	var data user.UpdateRoles
	if err := ctx.Bind(&data); err != nil {
		return pkgerrors.Wrap(err, "binding to UpdateRoles")
	}
	if err := data.Validate(api.Validate); err != nil {
		return err
	}
	if err := api.checkRoles(ctx, data.Roles); err != nil {
		return err
	}

	usr, err := api.UserSvc.SetRoles(ctx.Request().Context(), usr, data.Roles)
	if err != nil {
		return pkgerrors.Wrap(err, "setting roles")
	}

	api.record(ctx, fmt.Sprintf("Changed roles of admin account %s", usr.Username))
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userApi) destroy(ctx echo.Context) error {
	usr, ok := ctx.Get("object").(user.User)
	if !ok {
		return pkgerrors.Wrap(errUsrNotFoundInCtx, "retrieving object from context")
	}

	// Say No to Suicide! ctxUser cannot delete themselves
	claims, err := getContextClaims(ctx)
	if err != nil {
		return pkgerrors.Wrap(err, "getting context claims")
	}
	if usr.ID == claims.Subject {
		return errHttpForbidden
	}

	if _, err := api.UserSvc.Delete(ctx.Request().Context(), usr.ID); err != nil {
		return pkgerrors.Wrap(err, "deleting user")
	}

	api.record(ctx, fmt.Sprintf("Deleted admin account %s", usr.Username))
	return ctx.NoContent(http.StatusNoContent)
}

// adminObjectMiddleware loads the admin account of the `:id` path param into "object".
func adminObjectMiddleware(svc user.ServiceInterface) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			usr, err := svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
			if err != nil {
				if pkgerrors.Cause(err) == user.ErrNotFound {
					return errHttpNotFound
				}
				return pkgerrors.Wrap(err, "finding user by ID")
			}
			if !usr.IsAdmin() {
				return errHttpNotFound
			}
			ctx.Set("object", usr)
			return next(ctx)
		}
	}
}

func ownerOrSelfMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return pkgerrors.Wrap(err, "getting context claims")
			}
			if claims.IsOwner() || claims.Subject == ctx.Param("id") {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

type (
	LoginRequest struct {
		Username string `json:"username" validate:"required_without=Email"`
		Email    string `json:"email" validate:"omitempty,email"`
		Password string `json:"password" validate:"required"`
	}

	LoginResponse struct {
		Token string `json:"token"`
	}

	SuccessResponse struct {
		Success string `json:"success"`
	}

	DashboardData struct {
		Message   string    `json:"message"`
		AdminData user.User `json:"adminData"`
	}
)

func (lr *LoginRequest) Validate(validate *validator.Validate) error {
	lr.Username = core.CleanString(lr.Username, true /* lower */)
	lr.Email = core.CleanString(lr.Email, true /* lower */)
	return validate.Struct(lr)
}

func (lr *LoginRequest) login() string {
	if lr.Username != "" {
		return lr.Username
	}
	return lr.Email
}
