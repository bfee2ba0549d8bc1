package core

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// UserCacheInvalidator is implemented by credential stores that cache users.
type UserCacheInvalidator interface {
	Invalidate(ctx context.Context, u UserRecord)
}

// Services bundles what the HTTP layer depends on.
type Services struct {
	Users         UserRepository
	Tasks         TaskRepository
	Auth          *AuthService
	Authenticator *RequestAuthenticator
	Access        *AccessEvaluator
	Cache         UserCacheInvalidator // optional
}

// NewServices wires the auth core around the given stores. credentials is
// the store used for per-request identity lookups; it may be a cache in
// front of users. Ownership checks always read users directly.
func NewServices(codec *TokenCodec, users UserRepository, tasks TaskRepository, credentials CredentialStore) Services {
	svc := Services{
		Users:         users,
		Tasks:         tasks,
		Auth:          NewAuthService(users, codec),
		Authenticator: NewRequestAuthenticator(NewIdentityResolver(codec, credentials)),
		Access:        NewAccessEvaluator(tasks, users),
	}
	if inv, ok := credentials.(UserCacheInvalidator); ok {
		svc.Cache = inv
	}
	return svc
}

func (s Services) invalidate(ctx context.Context, u UserRecord) {
	if s.Cache != nil {
		s.Cache.Invalidate(ctx, u)
	}
}

type userResponse struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

func toUserResponse(u UserRecord) userResponse {
	return userResponse{ID: u.ID, Username: u.Username, Email: u.Email, Role: u.Role, CreatedAt: u.CreatedAt}
}

// NewRouter constructs the Gin engine with routes wired.
func NewRouter(cfg Config, svc Services) *gin.Engine {
	startedAt := time.Now()
	registerValidators()
	r := gin.Default()

	// Global middleware: request id -> CORS -> bearer authentication
	r.Use(RequestIDMiddleware())
	r.Use(CORSMiddleware(cfg))
	r.Use(svc.Authenticator.Middleware())

	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "Task Manager API is running.")
	})
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api/v1")
	{
		api.POST("/auth/register", func(c *gin.Context) {
			var req RegisterInput
			if !bindJSON(c, &req) {
				return
			}
			u, err := svc.Auth.Register(c.Request.Context(), req)
			if err != nil {
				respondDomainError(c, err)
				return
			}
			c.JSON(http.StatusCreated, toUserResponse(*u))
		})

		api.POST("/auth/login", func(c *gin.Context) {
			var req struct {
				Username string `json:"username" binding:"required"`
				Password string `json:"password" binding:"required"`
			}
			if !bindJSON(c, &req) {
				return
			}
			res, err := svc.Auth.Login(c.Request.Context(), req.Username, req.Password)
			if err != nil {
				respondDomainError(c, err)
				return
			}
			c.JSON(http.StatusOK, res)
		})

		api.GET("/users/me", func(c *gin.Context) {
			ctx := c.Request.Context()
			p, err := svc.Access.RequireAuthenticated(ctx)
			if err != nil {
				respondDomainError(c, err)
				return
			}
			u, err := svc.Users.FindByID(ctx, p.ID)
			if err != nil {
				respondDomainError(c, err)
				return
			}
			c.JSON(http.StatusOK, toUserResponse(*u))
		})

		api.GET("/users", AdminOnly(svc.Access), func(c *gin.Context) {
			pr, err := parsePageRequest(c.Query("page"), c.Query("per_page"), c.Query("sort"), UserSortFields)
			if err != nil {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
				return
			}
			users, total, err := svc.Users.List(c.Request.Context(), pr)
			if err != nil {
				respondDomainError(c, err)
				return
			}
			items := make([]userResponse, 0, len(users))
			for _, u := range users {
				items = append(items, toUserResponse(u))
			}
			c.JSON(http.StatusOK, pageResponse(items, total, pr))
		})

		api.GET("/users/:id", func(c *gin.Context) {
			id, ok := pathID(c, "id")
			if !ok {
				return
			}
			u, _, err := svc.Access.UserForAction(c.Request.Context(), id)
			if err != nil {
				respondDomainError(c, err)
				return
			}
			c.JSON(http.StatusOK, toUserResponse(*u))
		})

		api.PUT("/users/:id", func(c *gin.Context) {
			id, ok := pathID(c, "id")
			if !ok {
				return
			}
			ctx := c.Request.Context()
			existing, p, err := svc.Access.UserForAction(ctx, id)
			if err != nil {
				respondDomainError(c, err)
				return
			}
			var req updateUserRequest
			if !bindJSON(c, &req) {
				return
			}
			updated, err := applyUserUpdate(ctx, svc.Users, p, *existing, req)
			if err != nil {
				respondDomainError(c, err)
				return
			}
			saved, err := svc.Users.Update(ctx, updated)
			if err != nil {
				respondDomainError(c, err)
				return
			}
			svc.invalidate(ctx, *existing)
			c.JSON(http.StatusOK, toUserResponse(*saved))
		})

		api.DELETE("/users/:id", func(c *gin.Context) {
			id, ok := pathID(c, "id")
			if !ok {
				return
			}
			ctx := c.Request.Context()
			existing, _, err := svc.Access.UserForAction(ctx, id)
			if err != nil {
				respondDomainError(c, err)
				return
			}
			if err := svc.Users.Delete(ctx, id); err != nil {
				respondDomainError(c, err)
				return
			}
			svc.invalidate(ctx, *existing)
			c.Status(http.StatusNoContent)
		})

		registerTaskRoutes(api, svc)

		admin := api.Group("/admin")
		admin.Use(AdminOnly(svc.Access))
		admin.GET("/system/status", func(c *gin.Context) {
			st, err := CollectSystemStatus(c.Request.Context(), svc.Users, svc.Tasks, startedAt)
			if err != nil {
				respondDomainError(c, err)
				return
			}
			c.JSON(http.StatusOK, st)
		})
	}

	return r
}

type updateUserRequest struct {
	Username *string `json:"username"`
	Email    *string `json:"email" binding:"omitempty,email"`
	Password *string `json:"password"`
	Role     *string `json:"role"`
}

// applyUserUpdate merges the fields present in req into u. A username, when
// given, must not be blank. Only an administrator may change a role.
func applyUserUpdate(ctx context.Context, users UserRepository, p *Principal, u UserRecord, req updateUserRequest) (UserRecord, error) {
	if req.Role != nil && strings.TrimSpace(*req.Role) != "" {
		role, ok := ParseRole(*req.Role)
		if !ok {
			return u, fmt.Errorf("%w: role: invalid value, possible values: USER, ADMIN", ErrValidation)
		}
		if role != u.Role && !p.IsAdmin() {
			return u, ErrAccessDenied
		}
		u.Role = role
	}
	if req.Email != nil {
		if email := strings.TrimSpace(*req.Email); email != "" && !strings.EqualFold(email, u.Email) {
			taken, err := users.ExistsByEmail(ctx, email)
			if err != nil {
				return u, err
			}
			if taken {
				return u, fmt.Errorf("%w: email already exists", ErrConflict)
			}
			u.Email = email
		}
	}
	if req.Username != nil {
		name := strings.TrimSpace(*req.Username)
		if name == "" {
			return u, fmt.Errorf("%w: username: must not be blank", ErrValidation)
		}
		if name != u.Username {
			taken, err := users.ExistsByUsername(ctx, name)
			if err != nil {
				return u, err
			}
			if taken {
				return u, fmt.Errorf("%w: username already exists", ErrConflict)
			}
			u.Username = name
		}
	}
	if req.Password != nil && *req.Password != "" {
		if err := ValidatePasswordStrength(*req.Password); err != nil {
			return u, err
		}
		hash, err := HashPassword(*req.Password)
		if err != nil {
			return u, err
		}
		u.PasswordHash = hash
	}
	return u, nil
}
