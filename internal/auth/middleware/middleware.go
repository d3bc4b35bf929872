package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Dajus/daal-sub000/internal/rbac"
)

const issuer = "training-gateway"

type AuthService struct {
	hmac       []byte
	studentTTL time.Duration
	adminTTL   time.Duration
	now        func() time.Time
}

func NewAuthService(secret string, studentTTL, adminTTL time.Duration) *AuthService {
	return &AuthService{hmac: []byte(secret), studentTTL: studentTTL, adminTTL: adminTTL, now: time.Now}
}

type Claims struct {
	Sub       string `json:"sub"`
	Role      string `json:"role"`          // student | company_admin | super_admin
	CompanyID string `json:"cid,omitempty"` // company admins only
	jwt.RegisteredClaims
}

// IssueJWT signs a token for p. Students get the student TTL (sub is the
// session id), admins the admin TTL.
func (a *AuthService) IssueJWT(p Principal) (string, error) {
	ttl := a.adminTTL
	if p.Role == rbac.RoleStudent {
		ttl = a.studentTTL
	}
	now := a.now()
	claims := &Claims{
		Sub:       p.Subject,
		Role:      p.Role,
		CompanyID: p.CompanyID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   p.Subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(a.hmac)
}

var errBadToken = errors.New("invalid token")

func (a *AuthService) Parse(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return a.hmac, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(issuer), jwt.WithTimeFunc(a.now))
	if err != nil {
		return nil, err
	}
	c, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || c.Sub == "" {
		return nil, errBadToken
	}
	return c, nil
}

// JWTMiddleware requires a bearer token and puts its Principal, subject and
// role in the request context.
func JWTMiddleware(a *AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := r.Header.Get("Authorization")
			if !strings.HasPrefix(h, "Bearer ") {
				unauthorized(w, "missing bearer token")
				return
			}
			c, err := a.Parse(strings.TrimPrefix(h, "Bearer "))
			if err != nil {
				msg := "invalid token"
				if errors.Is(err, jwt.ErrTokenExpired) {
					msg = "token expired"
				}
				unauthorized(w, msg)
				return
			}
			p := Principal{Subject: c.Sub, Role: c.Role, CompanyID: c.CompanyID}
			ctx := WithPrincipal(r.Context(), p)
			ctx = rbac.WithRole(ctx, p.Role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter, msg string) {
	writeErr(w, http.StatusUnauthorized, msg, "auth")
}

func writeErr(w http.ResponseWriter, status int, msg, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg, "code": code})
}
