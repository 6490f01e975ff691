package rest

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/davidleathers/qaudit-backend/internal/domain/errors"
)

var (
	errTokenRequired = errors.NewUnauthorizedError("يجب تقديم رمز الدخول")
	errTokenInvalid  = errors.NewUnauthorizedError("رمز الدخول غير صالح أو منتهي الصلاحية")
)

// actorResolver decides who performs a mutating request. With a signing
// secret the bearer token subject is the only source; without one the
// body's created_by field is trusted.
type actorResolver struct {
	secret []byte
}

func (a actorResolver) enabled() bool {
	return len(a.secret) > 0
}

func (a actorResolver) resolve(r *http.Request, createdBy *uuid.UUID) (uuid.UUID, error) {
	if !a.enabled() {
		if createdBy == nil || *createdBy == uuid.Nil {
			return uuid.Nil, errors.ErrActorRequired
		}
		return *createdBy, nil
	}

	header := r.Header.Get("Authorization")
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || raw == "" {
		return uuid.Nil, errTokenRequired
	}

	token, err := jwt.Parse(raw, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return uuid.Nil, errTokenInvalid
	}

	sub, err := token.Claims.GetSubject()
	if err != nil {
		return uuid.Nil, errTokenInvalid
	}
	actor, err := uuid.Parse(sub)
	if err != nil || actor == uuid.Nil {
		return uuid.Nil, errTokenInvalid
	}
	return actor, nil
}
