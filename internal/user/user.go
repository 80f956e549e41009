// Package user identifies link owners through a signed cookie.
package user

import (
	"fmt"
	"net/http"
	"time"

	"github.com/9ssi7/nanoid"
	"github.com/gorilla/securecookie"

	"imgpub/internal/config"
)

const (
	cookieName   = "OwnerToken"
	cookieMaxAge = 30 * 24 * time.Hour
)

// owner реализует выдачу и проверку куки владельца ссылок.
type owner struct {
	cookieName string
	cookie     *securecookie.SecureCookie
	secure     bool
}

//go:generate mockgen -destination=../mocks/mock_user.go -package=mocks imgpub/internal/user OwnerService

// OwnerService - интерфейс для работы с идентификатором владельца в куки.
type OwnerService interface {
	// GetOwnerIDFromCookie получает идентификатор владельца из куки.
	GetOwnerIDFromCookie(r *http.Request) (string, error)
	// SetOwnerIDCookie устанавливает куки с идентификатором владельца.
	SetOwnerIDCookie(res http.ResponseWriter, ownerID string) error
	// NewOwnerID создаёт новый идентификатор владельца.
	NewOwnerID() (string, error)
}

// newSecurecookie создаёт экземпляр securecookie из ключей конфигурации.
func newSecurecookie(c *config.Config) *securecookie.SecureCookie {
	return securecookie.New([]byte(c.CookieHashKey), []byte(c.CookieBlockKey))
}

// NewOwnerService создаёт и возвращает новый экземпляр OwnerService.
func NewOwnerService(c *config.Config) OwnerService {
	return &owner{
		cookieName: cookieName,
		cookie:     newSecurecookie(c),
		secure:     c.EnableHTTPS,
	}
}

// GetOwnerIDFromCookie возвращает идентификатор владельца из HTTP-запроса.
func (o *owner) GetOwnerIDFromCookie(req *http.Request) (string, error) {
	cookie, err := req.Cookie(o.cookieName)
	if err != nil {
		return "", err
	}

	var ownerID string
	if err := o.cookie.Decode(o.cookieName, cookie.Value, &ownerID); err != nil {
		return "", err
	}
	if ownerID == "" {
		return "", fmt.Errorf("empty owner id in cookie")
	}

	return ownerID, nil
}

// SetOwnerIDCookie устанавливает HTTP-куки с идентификатором владельца.
func (o *owner) SetOwnerIDCookie(res http.ResponseWriter, ownerID string) error {
	encoded, err := o.cookie.Encode(o.cookieName, ownerID)
	if err != nil {
		return fmt.Errorf("encode owner cookie: %w", err)
	}

	http.SetCookie(res, &http.Cookie{
		Name:     o.cookieName,
		Value:    encoded,
		Path:     "/",
		Secure:   o.secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Now().Add(cookieMaxAge),
	})
	return nil
}

// NewOwnerID возвращает случайный идентификатор владельца.
func (o *owner) NewOwnerID() (string, error) {
	id, err := nanoid.New()
	if err != nil {
		return "", fmt.Errorf("generate owner id: %w", err)
	}
	return id, nil
}
