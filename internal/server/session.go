package server

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"blogicum/internal/middleware"
	"blogicum/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	sessionCookie   = "session"
	sessionIssuer   = "blogicum"
	sessionAudience = "blogicum-web"
	sessionTTL      = 14 * 24 * time.Hour
	blacklistPrefix = "blacklist:"
)

// sessionClaims is the parsed content of a session cookie.
type sessionClaims struct {
	UserID    uint
	Username  string
	JTI       string
	ExpiresAt time.Time
}

// generateToken creates a signed session token for the given user.
func (s *Server) generateToken(userID uint, username string) (string, error) {
	if s.config.SessionSecret == "" {
		return "", fmt.Errorf("session secret not configured")
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"sub":      strconv.FormatUint(uint64(userID), 10),
		"username": username,
		"iss":      sessionIssuer,
		"aud":      sessionAudience,
		"exp":      now.Add(sessionTTL).Unix(),
		"iat":      now.Unix(),
		"nbf":      now.Unix(),
		"jti":      uuid.NewString(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.config.SessionSecret))
}

// parseToken validates a session token and extracts its claims.
func (s *Server) parseToken(tokenString string) (*sessionClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return []byte(s.config.SessionSecret), nil
	},
		jwt.WithIssuer(sessionIssuer),
		jwt.WithAudience(sessionAudience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("invalid token claims")
	}
	sub, err := claims.GetSubject()
	if err != nil {
		return nil, err
	}
	userID, err := strconv.ParseUint(sub, 10, 32)
	if err != nil || userID == 0 {
		return nil, errors.New("invalid user ID in token")
	}
	exp, err := claims.GetExpirationTime()
	if err != nil {
		return nil, err
	}

	out := &sessionClaims{UserID: uint(userID), ExpiresAt: exp.Time}
	out.Username, _ = claims["username"].(string)
	out.JTI, _ = claims["jti"].(string)
	return out, nil
}

func (s *Server) setSessionCookie(c *fiber.Ctx, token string) {
	c.Cookie(&fiber.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  time.Now().Add(sessionTTL),
		HTTPOnly: true,
		Secure:   s.config.IsProduction(),
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

func (s *Server) clearSessionCookie(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		HTTPOnly: true,
		Secure:   s.config.IsProduction(),
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

// isRevoked reports whether the token ID was blacklisted by a logout.
// Without Redis nothing is ever revoked.
func (s *Server) isRevoked(ctx context.Context, jti string) bool {
	if s.redis == nil || jti == "" {
		return false
	}
	n, err := s.redis.Exists(ctx, blacklistPrefix+jti).Result()
	return err == nil && n > 0
}

// revoke blacklists the token ID until the token would have expired anyway.
func (s *Server) revoke(ctx context.Context, claims *sessionClaims) error {
	if s.redis == nil || claims.JTI == "" {
		return nil
	}
	ttl := time.Until(claims.ExpiresAt)
	if ttl <= 0 {
		return nil
	}
	return s.redis.Set(ctx, blacklistPrefix+claims.JTI, claims.UserID, ttl).Err()
}

// Session resolves the current user from the session cookie. Invalid or revoked
// cookies are cleared and the request continues anonymously.
func (s *Server) Session() fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw := c.Cookies(sessionCookie)
		if raw == "" {
			return c.Next()
		}

		claims, err := s.parseToken(raw)
		if err != nil || s.isRevoked(c.UserContext(), claims.JTI) {
			s.clearSessionCookie(c)
			return c.Next()
		}

		user, err := s.userService.GetByID(c.UserContext(), claims.UserID)
		if err != nil {
			if models.IsNotFound(err) {
				s.clearSessionCookie(c)
				return c.Next()
			}
			return err
		}

		c.Locals("userID", user.ID)
		c.Locals("user", user)
		c.Locals("session", claims)
		c.SetUserContext(middleware.WithRequestValues(c))
		return c.Next()
	}
}

// LoginRequired redirects anonymous visitors to the login page, keeping the target in ?next=.
func (s *Server) LoginRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := c.Locals("userID").(uint); ok {
			return c.Next()
		}
		return c.Redirect("/auth/login?next="+url.QueryEscape(c.OriginalURL()), fiber.StatusFound)
	}
}

// GuestOnly sends logged-in users away from the login and sign-up pages.
func (s *Server) GuestOnly() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if user := currentUser(c); user != nil {
			return c.Redirect("/profile/"+url.PathEscape(user.Username), fiber.StatusFound)
		}
		return c.Next()
	}
}

func currentUser(c *fiber.Ctx) *models.User {
	user, _ := c.Locals("user").(*models.User)
	return user
}

func currentUserID(c *fiber.Ctx) uint {
	id, _ := c.Locals("userID").(uint)
	return id
}

// safeNext returns next when it is a local path, fallback otherwise.
func safeNext(next, fallback string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return fallback
	}
	return next
}
