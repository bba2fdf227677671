package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

// Claims are the token claims minted by the external identity service.
// The engine only verifies them; it never issues tokens.
type Claims struct {
	ParticipantID string `json:"participant_id"`
	Role          string `json:"role"`
	jwt.RegisteredClaims
}

// verifyToken parses and verifies a bearer token against the shared
// secret and the expected issuer.
func (s *Server) verifyToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.JWT.Secret), nil
	}, jwt.WithIssuer(s.config.JWT.Issuer))

	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}

	return claims, nil
}

// authMiddleware validates JWT tokens
func (s *Server) authMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Missing authorization header")
			}

			// Extract token from "Bearer <token>"
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid authorization header format")
			}

			claims, err := s.verifyToken(parts[1])
			if err != nil {
				s.logger.Warnw("Invalid token", "error", err, "ip", c.RealIP())
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid token")
			}

			// Set participant information in context
			c.Set("participant_id", claims.ParticipantID)
			c.Set("participant_role", claims.Role)

			return next(c)
		}
	}
}

// requireRole middleware checks if the caller has one of the required roles
func (s *Server) requireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			callerRole := c.Get("participant_role")
			if callerRole == nil {
				return echo.NewHTTPError(http.StatusForbidden, "Role information not found")
			}

			role, _ := callerRole.(string)
			for _, requiredRole := range roles {
				if role == requiredRole {
					return next(c)
				}
			}

			s.logger.Warnw("Insufficient permissions",
				"participant_id", c.Get("participant_id"),
				"role", role,
				"required_roles", roles,
				"endpoint", c.Request().URL.Path)

			return echo.NewHTTPError(http.StatusForbidden, "Insufficient permissions")
		}
	}
}
