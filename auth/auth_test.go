package auth

import (
	"errors"
	"testing"
	"time"

	"storefront/models"

	"github.com/golang-jwt/jwt/v5"
)

func TestResolveCaller(t *testing.T) {
	r, err := NewResolver("test-secret")
	if err != nil {
		t.Fatal(err)
	}

	adminToken, _ := r.IssueToken(models.Caller{UserID: "u-1", Username: "root", Role: models.RoleAdmin}, time.Hour)
	userToken, _ := r.IssueToken(models.Caller{UserID: "u-2", Username: "ada", Role: models.RoleCustomer}, time.Hour)
	expired, _ := r.IssueToken(models.Caller{UserID: "u-2", Role: models.RoleCustomer}, -time.Minute)

	other, _ := NewResolver("another-secret")
	foreign, _ := other.IssueToken(models.Caller{UserID: "u-3", Role: models.RoleAdmin}, time.Hour)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{UserID: "u-4", Role: []string{"admin"}})
	unsigned, _ := none.SignedString(jwt.UnsafeAllowNoneSignatureType)

	t.Run("admin bearer", func(t *testing.T) {
		c, err := r.ResolveCaller("Bearer " + adminToken)
		if err != nil || c.UserID != "u-1" || !c.IsAdmin() || c.Username != "root" {
			t.Fatalf("caller = %+v err %v", c, err)
		}
	})
	t.Run("bare customer token", func(t *testing.T) {
		c, err := r.ResolveCaller(userToken)
		if err != nil || c.Role != models.RoleCustomer {
			t.Fatalf("caller = %+v err %v", c, err)
		}
	})

	for name, cred := range map[string]string{
		"empty":        "",
		"bearer only":  "Bearer ",
		"garbage":      "Bearer not.a.jwt",
		"expired":      "Bearer " + expired,
		"wrong secret": "Bearer " + foreign,
		"alg none":     "Bearer " + unsigned,
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := r.ResolveCaller(cred); !errors.Is(err, models.ErrUnauthenticated) {
				t.Fatalf("err = %v", err)
			}
		})
	}
}

func TestNewResolverRequiresSecret(t *testing.T) {
	if _, err := NewResolver(""); err == nil {
		t.Fatal("empty secret accepted")
	}
}
