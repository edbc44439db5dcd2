package middleware

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"weebchat/internal/config"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
)

var cfg *config.Config

// InitMiddleware initializes authentication middleware with the given config.
func InitMiddleware(c *config.Config) {
	cfg = c
}

// WSTicket is the payload stored in Redis for a single-use WebSocket ticket.
type WSTicket struct {
	Uid   string `json:"uid"`
	Email string `json:"email,omitempty"`
}

// WSTicketTTL bounds how long an issued ticket stays redeemable.
const WSTicketTTL = 30 * time.Second

func wsTicketKey(ticket string) string {
	return "ws:ticket:" + ticket
}

// StoreWSTicket persists a single-use WebSocket ticket.
func StoreWSTicket(ctx context.Context, rdb *redis.Client, ticket string, payload WSTicket) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return rdb.Set(ctx, wsTicketKey(ticket), data, WSTicketTTL).Err()
}

// RedeemWSTicket atomically consumes a ticket. A second redemption of the
// same ticket fails.
func RedeemWSTicket(ctx context.Context, rdb *redis.Client, ticket string) (*WSTicket, error) {
	data, err := rdb.GetDel(ctx, wsTicketKey(ticket)).Result()
	if err != nil {
		return nil, err
	}
	var payload WSTicket
	if err := json.Unmarshal([]byte(data), &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

func parseToken(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fiber.NewError(fiber.StatusUnauthorized, "Invalid signing method")
		}
		return []byte(cfg.JWTSecret), nil
	})
	if err != nil || !token.Valid {
		return nil, fiber.NewError(fiber.StatusUnauthorized, "Invalid or expired token")
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fiber.NewError(fiber.StatusUnauthorized, "Invalid token claims")
	}
	return claims, nil
}

func setIdentityLocals(c *fiber.Ctx, claims jwt.MapClaims) error {
	subClaim, ok := claims["sub"]
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Invalid token structure - missing subject",
		})
	}
	uid, ok := subClaim.(string)
	if !ok || uid == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Invalid token subject type",
		})
	}

	c.Locals("uid", uid)
	if email, ok := claims["email"].(string); ok {
		c.Locals("email", email)
	}
	return c.Next()
}

// AuthRequired is a middleware that enforces authentication for protected
// routes. The verified subject claim becomes the user's opaque uid.
func AuthRequired(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Authorization header required",
		})
	}

	// Extract token from "Bearer <token>"
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Invalid authorization header format",
		})
	}

	claims, err := parseToken(parts[1])
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Invalid or expired token",
		})
	}

	return setIdentityLocals(c, claims)
}

// WebSocketAuthRequired validates identity for WebSocket upgrade requests.
// Browsers cannot set an Authorization header on a WebSocket handshake, so
// clients first fetch a single-use ticket over an authenticated route and pass
// it as ?ticket=. A raw ?token= JWT is accepted as a fallback for non-browser
// clients.
func WebSocketAuthRequired(rdb *redis.Client) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if ticket := c.Query("ticket"); ticket != "" {
			if rdb == nil {
				return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
					"error": "Ticket validation unavailable",
				})
			}
			payload, err := RedeemWSTicket(c.UserContext(), rdb, ticket)
			if err != nil {
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
					"error": "Invalid or expired ticket",
				})
			}
			c.Locals("uid", payload.Uid)
			if payload.Email != "" {
				c.Locals("email", payload.Email)
			}
			return c.Next()
		}

		token := c.Query("token")
		if token == "" {
			authHeader := c.Get("Authorization")
			if authHeader == "" {
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
					"error": "Token required",
				})
			}
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
					"error": "Invalid authorization header format",
				})
			}
			token = parts[1]
		}

		claims, err := parseToken(token)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid or expired token",
			})
		}

		return setIdentityLocals(c, claims)
	}
}
