package middleware

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/noah-isme/mathla-api/internal/observability"
	"github.com/noah-isme/mathla-api/internal/ratelimit"
	"github.com/noah-isme/mathla-api/internal/utils"
)

// JWTProtected returns a middleware that validates JWT bearer tokens. When a
// throttle is supplied, failed verifications are counted per client IP and
// addresses over the limit are refused with 429.
func JWTProtected(secret string, throttle *ratelimit.SlidingWindow) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString, headerErr := bearerToken(c.Get("Authorization"))
		key := throttleKey(c.IP())

		if throttle != nil && !throttle.Allow(key) {
			observability.AuthThrottled().Inc()
			retry := throttle.RetryAfter(key)
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(math.Ceil(retry.Seconds()))))
			return utils.SendFailure(c, fiber.StatusTooManyRequests, "TOO_MANY_ATTEMPTS", "too many failed authentication attempts")
		}

		fail := func(message string) error {
			if throttle != nil {
				throttle.Record(key)
			}
			return utils.SendError(c, fiber.StatusUnauthorized, message)
		}

		if headerErr != "" {
			return fail(headerErr)
		}

		token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method")
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			return fail("invalid token")
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			return fail("invalid token claims")
		}

		userID := extractUserIDFromClaims(claims)
		if userID == nil {
			return fail("token subject missing")
		}
		c.Locals("user_id", *userID)
		if role := extractUserRoleFromClaims(claims); role != "" {
			c.Locals("user_role", role)
		}

		if throttle != nil {
			throttle.Reset(key)
		}

		return c.Next()
	}
}

func bearerToken(authorization string) (string, string) {
	if authorization == "" {
		return "", "authorization header missing"
	}

	const bearer = "Bearer "
	if !strings.HasPrefix(strings.ToLower(authorization), strings.ToLower(bearer)) {
		return "", "invalid authorization header"
	}

	tokenString := strings.TrimSpace(authorization[len(bearer):])
	if tokenString == "" {
		return "", "invalid token"
	}
	return tokenString, ""
}

// throttleKey ignores token claims: nothing in a token is trusted before its
// signature is checked.
func throttleKey(ip string) string {
	return "ip|" + ip
}

func extractUserIDFromClaims(claims jwt.MapClaims) *uint {
	keys := []string{"sub", "user_id", "id"}
	for _, key := range keys {
		if value, ok := claims[key]; ok {
			if normalized, err := normalizeUserID(value); err == nil && normalized != 0 {
				return &normalized
			}
		}
	}

	return nil
}

func normalizeUserID(value interface{}) (uint, error) {
	switch v := value.(type) {
	case float64:
		if v < 0 {
			return 0, fmt.Errorf("invalid subject")
		}
		return uint(v), nil
	case string:
		parsed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return 0, err
		}
		return uint(parsed), nil
	case int:
		if v < 0 {
			return 0, fmt.Errorf("invalid subject")
		}
		return uint(v), nil
	default:
		return 0, fmt.Errorf("unsupported subject type")
	}
}

func extractUserRoleFromClaims(claims jwt.MapClaims) string {
	candidates := []string{"role", "roles"}
	for _, key := range candidates {
		if value, ok := claims[key]; ok {
			if role := normalizeRole(value); role != "" {
				return role
			}
		}
	}
	return ""
}

func normalizeRole(value interface{}) string {
	switch v := value.(type) {
	case string:
		return strings.ToLower(strings.TrimSpace(v))
	case []interface{}:
		for _, item := range v {
			if str, ok := item.(string); ok {
				role := strings.ToLower(strings.TrimSpace(str))
				if role != "" {
					return role
				}
			}
		}
	default:
		return ""
	}
	return ""
}

// QueryTokenFallback copies a token from the query string into the
// Authorization header for websocket upgrades, where browsers cannot set headers.
func QueryTokenFallback(param string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Get(fiber.HeaderAuthorization) == "" {
			if token := strings.TrimSpace(c.Query(param)); token != "" {
				c.Request().Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
			}
		}
		return c.Next()
	}
}
